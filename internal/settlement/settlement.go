package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/clientsure/backend/internal/lifecycle"
	"github.com/clientsure/backend/internal/metrics"
	"github.com/clientsure/backend/internal/models"
	"github.com/clientsure/backend/internal/notify"

	log "github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Outcome is the gateway's verdict for a transaction.
type Outcome string

// Gateway outcomes.
const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// Sentinel errors for errors.Is checks.
var (
	// ErrTransactionNotFound marks a settlement referencing an unknown id.
	ErrTransactionNotFound = errors.New("settlement: transaction not found")
	// ErrInconsistentSettlement marks a ledger write failure after the status
	// flip. Retrying would double-credit; manual reconciliation is required.
	ErrInconsistentSettlement = errors.New("settlement: inconsistent state, manual reconciliation required")
)

// InconsistentError carries the transaction needing manual reconciliation.
type InconsistentError struct {
	TransactionID string
	Cause         error
}

func (e *InconsistentError) Error() string {
	return fmt.Sprintf("settlement: transaction %s marked completed but ledger write failed: %v", e.TransactionID, e.Cause)
}

func (e *InconsistentError) Unwrap() error { return ErrInconsistentSettlement }

// Receipt reports whether a settlement mutated the ledger.
type Receipt struct {
	TransactionID string `json:"transaction_id"`
	Applied       bool   `json:"applied"`
}

// Handler applies external payment outcomes to the ledger exactly once per
// transaction id.
type Handler struct {
	db       *gorm.DB
	notifier notify.Notifier
	now      func() time.Time
}

// NewHandler constructs a settlement handler.
func NewHandler(db *gorm.DB, notifier notify.Notifier) *Handler {
	return &Handler{db: db, notifier: notifier, now: time.Now}
}

// Apply consumes one gateway notification. Redelivery of an already-completed
// transaction returns Receipt{Applied: false} with no error; an unknown id is
// surfaced as ErrTransactionNotFound, never swallowed.
func (h *Handler) Apply(ctx context.Context, transactionID string, outcome Outcome, payload []byte) (Receipt, error) {
	receipt := Receipt{TransactionID: transactionID}

	var txn models.TokenTransaction
	errFind := h.db.WithContext(ctx).Where("transaction_id = ?", transactionID).First(&txn).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			metrics.SettlementsTotal.WithLabelValues("not_found").Inc()
			return receipt, fmt.Errorf("%w: %s", ErrTransactionNotFound, transactionID)
		}
		metrics.SettlementsTotal.WithLabelValues("error").Inc()
		return receipt, fmt.Errorf("settlement: load transaction %s: %w", transactionID, errFind)
	}

	if txn.Status == models.TransactionStatusCompleted {
		metrics.SettlementsTotal.WithLabelValues("duplicate").Inc()
		return receipt, nil
	}

	now := h.now().UTC()

	if outcome != OutcomeSuccess {
		res := h.db.WithContext(ctx).Model(&models.TokenTransaction{}).
			Where("id = ? AND status <> ?", txn.ID, models.TransactionStatusCompleted).
			Updates(map[string]any{"status": models.TransactionStatusFailed, "updated_at": now})
		if res.Error != nil {
			metrics.SettlementsTotal.WithLabelValues("error").Inc()
			return receipt, fmt.Errorf("settlement: mark %s failed: %w", transactionID, res.Error)
		}
		metrics.SettlementsTotal.WithLabelValues("failed").Inc()
		log.Infof("settlement: transaction %s failed, no ledger mutation", transactionID)
		return receipt, nil
	}

	// Flip the status first; the conditional write is the idempotency guard
	// against concurrent redelivery.
	updates := map[string]any{"status": models.TransactionStatusCompleted, "updated_at": now}
	if len(payload) > 0 {
		updates["payload"] = datatypes.JSON(payload)
	}
	flip := h.db.WithContext(ctx).Model(&models.TokenTransaction{}).
		Where("id = ? AND status <> ?", txn.ID, models.TransactionStatusCompleted).
		Updates(updates)
	if flip.Error != nil {
		metrics.SettlementsTotal.WithLabelValues("error").Inc()
		return receipt, fmt.Errorf("settlement: mark %s completed: %w", transactionID, flip.Error)
	}
	if flip.RowsAffected == 0 {
		metrics.SettlementsTotal.WithLabelValues("duplicate").Inc()
		return receipt, nil
	}

	// The transaction is now completed. A ledger failure past this point must
	// not be retried automatically; it would double-credit on redelivery.
	if errCredit := h.credit(ctx, &txn, now); errCredit != nil {
		metrics.SettlementsTotal.WithLabelValues("error").Inc()
		return receipt, &InconsistentError{TransactionID: transactionID, Cause: errCredit}
	}

	metrics.SettlementsTotal.WithLabelValues("applied").Inc()
	receipt.Applied = true
	return receipt, nil
}

// credit applies the purchased entitlement to the user ledger.
func (h *Handler) credit(ctx context.Context, txn *models.TokenTransaction, now time.Time) error {
	return h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if errUser := tx.First(&user, txn.UserID).Error; errUser != nil {
			return fmt.Errorf("load user %d: %w", txn.UserID, errUser)
		}
		balanceBefore := user.DailyBalance

		switch txn.Type {
		case models.TransactionTypeSubscription:
			if txn.PlanID == nil {
				return fmt.Errorf("subscription transaction %s has no plan", txn.TransactionID)
			}
			var plan models.Plan
			if errPlan := tx.First(&plan, *txn.PlanID).Error; errPlan != nil {
				return fmt.Errorf("load plan %d: %w", *txn.PlanID, errPlan)
			}
			if errGrant := grantSubscription(tx, user.ID, &plan, now); errGrant != nil {
				return errGrant
			}
			if h.notifier != nil {
				h.notifier.Send(ctx, user.ID, notify.KindSubscriptionStarted, map[string]any{
					"plan":       plan.Name,
					"daily_rate": plan.DailyRate,
					"end_date":   now.AddDate(0, 0, plan.DurationDays),
				})
			}
		case models.TransactionTypeTokenTopup:
			res := tx.Model(&models.User{}).
				Where("id = ?", user.ID).
				Updates(map[string]any{
					"daily_balance": gorm.Expr("daily_balance + ?", txn.Tokens),
					"updated_at":    now,
				})
			if res.Error != nil {
				return fmt.Errorf("credit %d tokens to user %d: %w", txn.Tokens, user.ID, res.Error)
			}
			if h.notifier != nil {
				h.notifier.Send(ctx, user.ID, notify.KindTokensCredited, map[string]any{
					"tokens": txn.Tokens,
				})
			}
		default:
			return fmt.Errorf("unknown transaction type %d", txn.Type)
		}

		var after models.User
		if errAfter := tx.First(&after, user.ID).Error; errAfter != nil {
			return fmt.Errorf("reload user %d: %w", user.ID, errAfter)
		}
		return tx.Model(&models.TokenTransaction{}).
			Where("id = ?", txn.ID).
			Updates(map[string]any{
				"balance_before": balanceBefore,
				"balance_after":  after.DailyBalance,
			}).Error
	})
}

// grantSubscription installs a full subscription window: quotas, monthly
// allocation, and an Active lifecycle state. First-time grants and renewals
// through settlement both take the full set.
func grantSubscription(tx *gorm.DB, userID uint64, plan *models.Plan, now time.Time) error {
	allocation := plan.MonthlyAllocation()
	endDate := now.AddDate(0, 0, plan.DurationDays)
	res := tx.Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]any{
			"plan_id":                plan.ID,
			"daily_balance":          plan.DailyRate,
			"daily_spent_today":      0,
			"monthly_spent":          0,
			"monthly_remaining":      allocation,
			"sub_start_date":         now,
			"sub_end_date":           endDate,
			"sub_daily_rate":         plan.DailyRate,
			"sub_monthly_allocation": allocation,
			"sub_last_refreshed_at":  now,
			"sub_active":             true,
			"lifecycle_state":        int(lifecycle.StateActive),
			"updated_at":             now,
		})
	if res.Error != nil {
		return fmt.Errorf("grant plan %d to user %d: %w", plan.ID, userID, res.Error)
	}
	return nil
}
