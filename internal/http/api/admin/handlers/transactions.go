package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/clientsure/backend/internal/models"
	"gorm.io/gorm"
)

// TransactionHandler serves admin settlement inspection.
type TransactionHandler struct {
	db *gorm.DB
}

// NewTransactionHandler constructs a TransactionHandler.
func NewTransactionHandler(db *gorm.DB) *TransactionHandler {
	return &TransactionHandler{db: db}
}

// List returns settlement transactions, optionally filtered by user or status.
func (h *TransactionHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	query := h.db.WithContext(c.Request.Context()).Model(&models.TokenTransaction{})
	if rawUser := c.Query("user_id"); rawUser != "" {
		userID, errParse := strconv.ParseUint(rawUser, 10, 64)
		if errParse != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user_id"})
			return
		}
		query = query.Where("user_id = ?", userID)
	}
	if rawStatus := c.Query("status"); rawStatus != "" {
		status, errParse := strconv.Atoi(rawStatus)
		if errParse != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
			return
		}
		query = query.Where("status = ?", status)
	}

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
			"id":             txn.ID,
			"transaction_id": txn.TransactionID,
			"user_id":        txn.UserID,
			"type":           txn.Type,
			"plan_id":        txn.PlanID,
			"tokens":         txn.Tokens,
			"amount":         txn.Amount,
			"status":         txn.Status,
			"balance_before": txn.BalanceBefore,
			"balance_after":  txn.BalanceAfter,
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
