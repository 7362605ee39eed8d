package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/clientsure/backend/internal/models"
	"gorm.io/gorm"
)

// PlanFrontHandler serves the public plan catalog.
type PlanFrontHandler struct {
	db *gorm.DB
}

// NewPlanFrontHandler constructs a PlanFrontHandler.
func NewPlanFrontHandler(db *gorm.DB) *PlanFrontHandler {
	return &PlanFrontHandler{db: db}
}

// List returns enabled plans ordered for display.
func (h *PlanFrontHandler) List(c *gin.Context) {
	var plans []models.Plan
	if errFind := h.db.WithContext(c.Request.Context()).
		Where("is_enabled = ?", true).
		Order("sort_order ASC, created_at DESC").
		Find(&plans).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list plans failed"})
		return
	}

	out := make([]gin.H, 0, len(plans))
	for _, plan := range plans {
		out = append(out, gin.H{
			"id":                 plan.ID,
			"name":               plan.Name,
			"price":              plan.Price,
			"description":        plan.Description,
			"duration_days":      plan.DurationDays,
			"daily_rate":         plan.DailyRate,
			"monthly_allocation": plan.MonthlyAllocation(),
			"sort_order":         plan.SortOrder,
		})
	}

	c.JSON(http.StatusOK, gin.H{"plans": out})
}
