package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/clientsure/backend/internal/ledger"
	"github.com/clientsure/backend/internal/models"
	"github.com/clientsure/backend/internal/ratelimit"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// TokenHandler serves balance, spend, and history endpoints for the
// authenticated user.
type TokenHandler struct {
	db         *gorm.DB
	engine     *ledger.Engine
	limiter    ratelimit.Limiter
	spendLimit int
}

// NewTokenHandler constructs a TokenHandler. A nil limiter or non-positive
// limit disables spend rate limiting.
func NewTokenHandler(db *gorm.DB, engine *ledger.Engine, limiter ratelimit.Limiter, spendLimit int) *TokenHandler {
	return &TokenHandler{db: db, engine: engine, limiter: limiter, spendLimit: spendLimit}
}

// Balance returns the caller's current pool breakdown. Expired bonus credits
// are reconciled away before reporting.
func (h *TokenHandler) Balance(c *gin.Context) {
	userID := c.GetUint64("userID")
	breakdown, errBalance := h.engine.Balance(c.Request.Context(), userID)
	if errBalance != nil {
		if errors.Is(errBalance, ledger.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "load balance failed"})
		return
	}
	c.JSON(http.StatusOK, breakdown)
}

type spendRequest struct {
	Amount int64 `json:"amount"`
}

// Spend deducts credits for resource access. Bulk access passes the resource
// count as amount; the deduction is all-or-nothing.
func (h *TokenHandler) Spend(c *gin.Context) {
	userID := c.GetUint64("userID")

	if h.limiter != nil && h.spendLimit > 0 {
		res, errAllow := h.limiter.Allow(c.Request.Context(), ratelimit.SpendKey(userID), h.spendLimit, time.Now())
		if errAllow != nil {
			log.Warnf("tokens: rate limit check failed for user %d: %v", userID, errAllow)
		} else if !res.Allowed {
			c.Header("Retry-After", strconv.FormatInt(int64(time.Until(res.Reset).Seconds())+1, 10))
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many spend requests"})
			return
		}
	}

	var body spendRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	result, errSpend := h.engine.Spend(c.Request.Context(), userID, body.Amount)
	if errSpend != nil {
		switch {
		case errors.Is(errSpend, ledger.ErrInvalidAmount):
			c.JSON(http.StatusBadRequest, gin.H{"error": "amount must be positive"})
		case errors.Is(errSpend, ledger.ErrUserNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		case errors.Is(errSpend, ledger.ErrInsufficientBalance):
			var short *ledger.InsufficientBalanceError
			payload := gin.H{"error": "insufficient balance"}
			if errors.As(errSpend, &short) {
				payload["requested"] = short.Requested
				payload["available"] = short.Available
			}
			c.JSON(http.StatusPaymentRequired, payload)
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "spend failed"})
		}
		return
	}

	c.JSON(http.StatusOK, result)
}

// History lists the caller's settlement transactions, newest first.
func (h *TokenHandler) History(c *gin.Context) {
	userID := c.GetUint64("userID")

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	query := h.db.WithContext(c.Request.Context()).
		Model(&models.TokenTransaction{}).
		Where("user_id = ?", userID)

	var total int64
	if errCount := query.Count(&total).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "count transactions failed"})
		return
	}

	var txns []models.TokenTransaction
	if errFind := query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&txns).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list transactions failed"})
		return
	}

	out := make([]gin.H, 0, len(txns))
	for _, txn := range txns {
		out = append(out, gin.H{
			"transaction_id": txn.TransactionID,
			"type":           txn.Type,
			"plan_id":        txn.PlanID,
			"tokens":         txn.Tokens,
			"amount":         txn.Amount,
			"status":         txn.Status,
			"created_at":     txn.CreatedAt,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"transactions": out,
		"total":        total,
		"page":         page,
		"page_size":    pageSize,
	})
}
