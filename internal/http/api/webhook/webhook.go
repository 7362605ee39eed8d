package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/clientsure/backend/internal/settlement"
	log "github.com/sirupsen/logrus"
)

// maxPayloadBytes bounds webhook bodies; gateway notifications are small.
const maxPayloadBytes = 64 * 1024

// Handler receives payment gateway notifications.
type Handler struct {
	settler *settlement.Handler
	secret  string
}

// NewHandler constructs a webhook handler.
func NewHandler(settler *settlement.Handler, secret string) *Handler {
	return &Handler{settler: settler, secret: secret}
}

// RegisterWebhookRoutes registers the payment notification endpoint.
func RegisterWebhookRoutes(r *gin.Engine, settler *settlement.Handler, secret string) {
	if r == nil || settler == nil {
		return
	}
	handler := NewHandler(settler, secret)
	r.POST("/v0/webhook/payment", handler.Payment)
}

type paymentNotification struct {
	TransactionID string  `json:"transactionId"`
	Outcome       string  `json:"outcome"`
	SubjectType   string  `json:"subjectType"`
	SubjectRef    string  `json:"subjectRef"`
	Amount        float64 `json:"amount"`
}

// Payment verifies the gateway signature and applies the settlement. Unknown
// transaction ids return 404 so gateway operators see the mismatch instead of
// a silently swallowed notification.
func (h *Handler) Payment(c *gin.Context) {
	body, errRead := io.ReadAll(io.LimitReader(c.Request.Body, maxPayloadBytes))
	if errRead != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "read body failed"})
		return
	}

	if !h.verifySignature(body, c.GetHeader("X-Signature")) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
		return
	}

	var notification paymentNotification
	if errUnmarshal := json.Unmarshal(body, &notification); errUnmarshal != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(notification.TransactionID) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "transactionId is required"})
		return
	}

	outcome := settlement.OutcomeFailure
	if notification.Outcome == string(settlement.OutcomeSuccess) {
		outcome = settlement.OutcomeSuccess
	}

	receipt, errApply := h.settler.Apply(c.Request.Context(), notification.TransactionID, outcome, body)
	if errApply != nil {
		switch {
		case errors.Is(errApply, settlement.ErrTransactionNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "transaction not found"})
		case errors.Is(errApply, settlement.ErrInconsistentSettlement):
			log.Errorf("webhook: %v", errApply)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "settlement inconsistent, manual reconciliation required"})
		default:
			log.Errorf("webhook: apply %s: %v", notification.TransactionID, errApply)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "settlement failed"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"transaction_id": receipt.TransactionID,
		"applied":        receipt.Applied,
	})
}

// verifySignature checks the hex HMAC-SHA256 of the raw body. An empty
// configured secret disables verification for local development.
func (h *Handler) verifySignature(body []byte, signature string) bool {
	if h.secret == "" {
		return true
	}
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(h.secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(signature)))
}
