package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/clientsure/backend/internal/models"
	"gorm.io/gorm"
)

// PlanHandler manages admin CRUD endpoints for plans.
type PlanHandler struct {
	db *gorm.DB
}

// NewPlanHandler constructs a plan handler.
func NewPlanHandler(db *gorm.DB) *PlanHandler {
	return &PlanHandler{db: db}
}

// planRequest captures the payload for creating or updating a plan.
type planRequest struct {
	Name         string  `json:"name"`
	Price        float64 `json:"price"`
	Description  string  `json:"description"`
	DurationDays int     `json:"duration_days"`
	DailyRate    int64   `json:"daily_rate"`
	SortOrder    int     `json:"sort_order"`
	IsEnabled    *bool   `json:"is_enabled"`
}

func planResponse(plan *models.Plan) gin.H {
	return gin.H{
		"id":                 plan.ID,
		"name":               plan.Name,
		"price":              plan.Price,
		"description":        plan.Description,
		"duration_days":      plan.DurationDays,
		"daily_rate":         plan.DailyRate,
		"monthly_allocation": plan.MonthlyAllocation(),
		"sort_order":         plan.SortOrder,
		"is_enabled":         plan.IsEnabled,
		"created_at":         plan.CreatedAt,
		"updated_at":         plan.UpdatedAt,
	}
}

// Create validates input and inserts a new plan.
func (h *PlanHandler) Create(c *gin.Context) {
	var body planRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	if strings.TrimSpace(body.Name) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}
	if body.DurationDays <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "duration_days must be positive"})
		return
	}
	if body.DailyRate <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "daily_rate must be positive"})
		return
	}

	isEnabled := true
	if body.IsEnabled != nil {
		isEnabled = *body.IsEnabled
	}

	now := time.Now().UTC()
	plan := models.Plan{
		Name:         strings.TrimSpace(body.Name),
		Price:        body.Price,
		Description:  body.Description,
		DurationDays: body.DurationDays,
		DailyRate:    body.DailyRate,
		SortOrder:    body.SortOrder,
		IsEnabled:    isEnabled,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if errCreate := h.db.WithContext(c.Request.Context()).Create(&plan).Error; errCreate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create plan failed"})
		return
	}

	c.JSON(http.StatusOK, planResponse(&plan))
}

// List returns all plans ordered for display.
func (h *PlanHandler) List(c *gin.Context) {
	var plans []models.Plan
	if errFind := h.db.WithContext(c.Request.Context()).
		Order("sort_order ASC, created_at DESC").
		Find(&plans).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list plans failed"})
		return
	}

	out := make([]gin.H, 0, len(plans))
	for i := range plans {
		out = append(out, planResponse(&plans[i]))
	}
	c.JSON(http.StatusOK, gin.H{"plans": out})
}

// Get returns one plan by id.
func (h *PlanHandler) Get(c *gin.Context) {
	plan, ok := h.loadPlan(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, planResponse(plan))
}

// Update modifies a plan. Live subscriptions keep the rate and allocation
// copied at grant time; edits only affect future grants.
func (h *PlanHandler) Update(c *gin.Context) {
	plan, ok := h.loadPlan(c)
	if !ok {
		return
	}

	var body planRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	if name := strings.TrimSpace(body.Name); name != "" {
		plan.Name = name
	}
	if body.Price > 0 {
		plan.Price = body.Price
	}
	if body.Description != "" {
		plan.Description = body.Description
	}
	if body.DurationDays > 0 {
		plan.DurationDays = body.DurationDays
	}
	if body.DailyRate > 0 {
		plan.DailyRate = body.DailyRate
	}
	plan.SortOrder = body.SortOrder
	if body.IsEnabled != nil {
		plan.IsEnabled = *body.IsEnabled
	}
	plan.UpdatedAt = time.Now().UTC()

	if errSave := h.db.WithContext(c.Request.Context()).Save(plan).Error; errSave != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update plan failed"})
		return
	}
	c.JSON(http.StatusOK, planResponse(plan))
}

// Delete removes a plan with no subscribed users.
func (h *PlanHandler) Delete(c *gin.Context) {
	plan, ok := h.loadPlan(c)
	if !ok {
		return
	}

	var subscribed int64
	if errCount := h.db.WithContext(c.Request.Context()).
		Model(&models.User{}).
		Where("plan_id = ?", plan.ID).
		Count(&subscribed).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "count subscribers failed"})
		return
	}
	if subscribed > 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "plan has subscribed users"})
		return
	}

	if errDelete := h.db.WithContext(c.Request.Context()).Delete(plan).Error; errDelete != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete plan failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": plan.ID})
}

// Enable marks a plan purchasable.
func (h *PlanHandler) Enable(c *gin.Context) { h.setEnabled(c, true) }

// Disable hides a plan from the catalog without touching live subscriptions.
func (h *PlanHandler) Disable(c *gin.Context) { h.setEnabled(c, false) }

func (h *PlanHandler) setEnabled(c *gin.Context, enabled bool) {
	plan, ok := h.loadPlan(c)
	if !ok {
		return
	}
	if errSave := h.db.WithContext(c.Request.Context()).
		Model(plan).
		Updates(map[string]any{"is_enabled": enabled, "updated_at": time.Now().UTC()}).Error; errSave != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update plan failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": plan.ID, "is_enabled": enabled})
}

func (h *PlanHandler) loadPlan(c *gin.Context) (*models.Plan, bool) {
	id, errParse := strconv.ParseUint(c.Param("id"), 10, 64)
	if errParse != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid plan id"})
		return nil, false
	}
	var plan models.Plan
	if errFind := h.db.WithContext(c.Request.Context()).First(&plan, id).Error; errFind != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "plan not found"})
		return nil, false
	}
	return &plan, true
}
