package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/wangablestudio/paysplit/gateway"
	"github.com/wangablestudio/paysplit/models"
)

// MemberHandler maintains the local mirror of the instant-transfer scheme
// participant directory.
type MemberHandler struct {
	db *gorm.DB
	gw gateway.Client
}

func NewMemberHandler(db *gorm.DB, gw gateway.Client) *MemberHandler {
	return &MemberHandler{db: db, gw: gw}
}

// Refresh pulls the participant list from the gateway and upserts it.
func (h *MemberHandler) Refresh(c *gin.Context) {
	members, err := h.gw.ListMembers(c.Request.Context())
	if err != nil {
		if ge, ok := gateway.AsError(err); ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": ge.Message})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch member directory"})
		return
	}

	for _, m := range members {
		row := models.Member{
			MemberID:      m.MemberID,
			MemberName:    m.MemberName,
			MemberNameRus: m.MemberNameRus,
		}
		if err := h.db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "member_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"member_name", "member_name_rus", "updated_at"}),
		}).Create(&row).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store members"})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "count": len(members)})
}

// List serves the mirrored directory.
func (h *MemberHandler) List(c *gin.Context) {
	var members []models.Member
	if err := h.db.Find(&members).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch members"})
		return
	}
	c.JSON(http.StatusOK, members)
}
