package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/wangablestudio/paysplit/gateway"
	"github.com/wangablestudio/paysplit/models"
)

func partnerRouter(db *gorm.DB, gw gateway.Client) *gin.Engine {
	r := gin.New()
	r.POST("/partner/register", NewPartnerHandler(db, gw).Register)
	return r
}

func TestRegisterPartner(t *testing.T) {
	db := setupTestDB(t)
	c := &models.Contractor{
		Name:  "OOO Romashka",
		Type:  models.ContractorLimited,
		Inn:   "7701234567",
		Phone: "+74951234567",
	}
	require.NoError(t, db.Create(c).Error)

	gw := &mockGateway{
		registerPartnerFn: func(_ context.Context, req gateway.RegisterPartnerRequest) (*gateway.RegisterPartnerResult, error) {
			assert.Equal(t, "OOO Romashka", req.Name)
			assert.Equal(t, "7701234567", req.Inn)
			return &gateway.RegisterPartnerResult{PartnerID: "partner-42"}, nil
		},
	}
	r := partnerRouter(db, gw)

	w := postJSON(r, "/partner/register", gin.H{"contractorId": c.ID})
	assert.Equal(t, http.StatusOK, w.Code)

	var stored models.Contractor
	require.NoError(t, db.First(&stored, "id = ?", c.ID).Error)
	assert.Equal(t, "partner-42", stored.PartnerID)
}

func TestRegisterPartnerAlreadyRegistered(t *testing.T) {
	db := setupTestDB(t)
	c := &models.Contractor{
		Name:      "OOO Romashka",
		Type:      models.ContractorLimited,
		PartnerID: "partner-42",
		Phone:     "+74951234567",
	}
	require.NoError(t, db.Create(c).Error)
	r := partnerRouter(db, &mockGateway{})

	w := postJSON(r, "/partner/register", gin.H{"contractorId": c.ID})
	assert.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, true, body["alreadyRegistered"])
	assert.Equal(t, "partner-42", body["partnerId"])
}

func TestRegisterPartnerUnknownContractor(t *testing.T) {
	r := partnerRouter(setupTestDB(t), &mockGateway{})

	w := postJSON(r, "/partner/register", gin.H{"contractorId": "missing"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRegisterPartnerGatewayRejection(t *testing.T) {
	db := setupTestDB(t)
	c := &models.Contractor{Name: "OOO Romashka", Type: models.ContractorLimited}
	require.NoError(t, db.Create(c).Error)

	gw := &mockGateway{
		registerPartnerFn: func(context.Context, gateway.RegisterPartnerRequest) (*gateway.RegisterPartnerResult, error) {
			return nil, &gateway.Error{Code: "330", Message: "partner data invalid"}
		},
	}
	r := partnerRouter(db, gw)

	w := postJSON(r, "/partner/register", gin.H{"contractorId": c.ID})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var stored models.Contractor
	require.NoError(t, db.First(&stored, "id = ?", c.ID).Error)
	assert.Empty(t, stored.PartnerID)
}
