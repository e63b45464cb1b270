package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/wangablestudio/paysplit/gateway"
	"github.com/wangablestudio/paysplit/models"
)

// PartnerHandler registers contractors as settlement partners with the
// gateway. Entity-type contractors need this before any payout leg can be
// addressed to them.
type PartnerHandler struct {
	db *gorm.DB
	gw gateway.Client
}

func NewPartnerHandler(db *gorm.DB, gw gateway.Client) *PartnerHandler {
	return &PartnerHandler{db: db, gw: gw}
}

type RegisterPartnerRequest struct {
	ContractorID string `json:"contractorId" binding:"required"`
}

func (h *PartnerHandler) Register(c *gin.Context) {
	var req RegisterPartnerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var contractor models.Contractor
	if err := h.db.First(&contractor, "id = ?", req.ContractorID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Contractor not found"})
		return
	}

	if contractor.PartnerID != "" {
		c.JSON(http.StatusOK, gin.H{
			"success":           true,
			"alreadyRegistered": true,
			"partnerId":         contractor.PartnerID,
		})
		return
	}

	res, err := h.gw.RegisterPartner(c.Request.Context(), gateway.RegisterPartnerRequest{
		Name:              contractor.Name,
		FullName:          contractor.FullName,
		Inn:               contractor.Inn,
		Kpp:               contractor.Kpp,
		Ogrn:              contractor.Ogrn,
		Okved:             contractor.Okved,
		Email:             contractor.Email,
		Phone:             contractor.Phone,
		SiteURL:           contractor.SiteURL,
		BillingDescriptor: contractor.BillingDescriptor,
		City:              contractor.City,
		Zip:               contractor.Zip,
		Country:           contractor.Country,
		Street:            contractor.Street,
		BankAccount:       contractor.BankAccount,
		BankName:          contractor.BankName,
		BankBik:           contractor.BankBik,
		CeoFirstName:      contractor.CeoFirstName,
		CeoLastName:       contractor.CeoLastName,
		CeoPhone:          contractor.CeoPhone,
		CeoCountry:        contractor.CeoCountry,
	})
	if err != nil {
		if ge, ok := gateway.AsError(err); ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": ge.Message})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Partner registration failed"})
		return
	}

	if err := h.db.Model(&models.Contractor{}).
		Where("id = ?", contractor.ID).
		Update("partner_id", res.PartnerID).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store partner id"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "partnerId": res.PartnerID})
}
