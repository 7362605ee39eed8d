package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/clientsure/backend/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// maxDailyPurchaseOrders caps how many pending orders a user may originate
// per calendar day, bounding abuse of unsettled order creation.
const maxDailyPurchaseOrders = 10

// PurchaseHandler originates pending transactions that the payment webhook
// later settles.
type PurchaseHandler struct {
	db  *gorm.DB
	now func() time.Time
}

// NewPurchaseHandler constructs a PurchaseHandler.
func NewPurchaseHandler(db *gorm.DB) *PurchaseHandler {
	return &PurchaseHandler{db: db, now: time.Now}
}

type subscribeRequest struct {
	PlanID uint64 `json:"plan_id"`
}

// Subscribe originates a pending subscription order for an enabled plan.
// Nothing is granted until the gateway reports success.
func (h *PurchaseHandler) Subscribe(c *gin.Context) {
	userID := c.GetUint64("userID")

	var body subscribeRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	var plan models.Plan
	if errPlan := h.db.WithContext(c.Request.Context()).
		Where("id = ? AND is_enabled = ?", body.PlanID, true).
		First(&plan).Error; errPlan != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "plan not found"})
		return
	}

	if !h.underDailyOrderCap(c, userID) {
		return
	}

	now := h.now().UTC()
	txn := models.TokenTransaction{
		TransactionID: fmt.Sprintf("SUB_%d_%d", now.UnixMilli(), userID),
		UserID:        userID,
		Type:          models.TransactionTypeSubscription,
		PlanID:        &plan.ID,
		Amount:        plan.Price,
		Status:        models.TransactionStatusPending,
		Payload:       mustJSON(gin.H{"plan_id": plan.ID, "plan_name": plan.Name}),
	}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&txn).Error; errCreate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create order failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"transaction_id": txn.TransactionID,
		"amount":         txn.Amount,
		"plan":           plan.Name,
		"status":         txn.Status,
	})
}

type topupRequest struct {
	Tokens int64   `json:"tokens"`
	Amount float64 `json:"amount"`
}

// Topup originates a pending token purchase order. Topups require a live
// subscription; standalone credits have no refresh window to live in.
func (h *PurchaseHandler) Topup(c *gin.Context) {
	userID := c.GetUint64("userID")

	var body topupRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if body.Tokens <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tokens must be positive"})
		return
	}

	var user models.User
	if errUser := h.db.WithContext(c.Request.Context()).First(&user, userID).Error; errUser != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	if !user.SubActive {
		c.JSON(http.StatusForbidden, gin.H{"error": "active subscription required for token purchase"})
		return
	}

	if !h.underDailyOrderCap(c, userID) {
		return
	}

	now := h.now().UTC()
	txn := models.TokenTransaction{
		TransactionID: fmt.Sprintf("TKN_%d_%d", now.UnixMilli(), userID),
		UserID:        userID,
		Type:          models.TransactionTypeTokenTopup,
		Tokens:        body.Tokens,
		Amount:        body.Amount,
		Status:        models.TransactionStatusPending,
		Payload:       mustJSON(gin.H{"tokens": body.Tokens}),
	}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&txn).Error; errCreate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create order failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"transaction_id": txn.TransactionID,
		"tokens":         txn.Tokens,
		"amount":         txn.Amount,
		"status":         txn.Status,
	})
}

// underDailyOrderCap enforces the per-day origination cap, writing the error
// response itself when the cap is hit.
func (h *PurchaseHandler) underDailyOrderCap(c *gin.Context, userID uint64) bool {
	now := h.now().UTC()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	var count int64
	if errCount := h.db.WithContext(c.Request.Context()).
		Model(&models.TokenTransaction{}).
		Where("user_id = ? AND created_at >= ?", userID, dayStart).
		Count(&count).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "count orders failed"})
		return false
	}
	if count >= maxDailyPurchaseOrders {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "daily purchase order limit reached"})
		return false
	}
	return true
}

func mustJSON(v any) datatypes.JSON {
	raw, errMarshal := json.Marshal(v)
	if errMarshal != nil {
		return datatypes.JSON([]byte("{}"))
	}
	return datatypes.JSON(raw)
}
