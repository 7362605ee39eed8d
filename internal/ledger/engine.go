package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	dbutil "github.com/clientsure/backend/internal/db"
	"github.com/clientsure/backend/internal/metrics"
	"github.com/clientsure/backend/internal/models"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	defaultBonusValidity = 24 * time.Hour
	spendAttempts        = 3
)

// errConcurrentUpdate signals that the guarded update matched no row because
// another writer changed the balances between the locked read and the write.
var errConcurrentUpdate = errors.New("ledger: concurrent balance update")

// Engine performs all request-path mutations of a user's token ledger.
// Every mutation is a single transaction: row lock where the dialect supports
// it, plus floor-guarded conditional updates so a stale read can never
// overdraw a pool.
type Engine struct {
	db            *gorm.DB
	now           func() time.Time
	bonusValidity time.Duration
}

// NewEngine constructs a ledger engine.
func NewEngine(db *gorm.DB) *Engine {
	return &Engine{
		db:            db,
		now:           time.Now,
		bonusValidity: defaultBonusValidity,
	}
}

// SetBonusValidity overrides the bonus grant window.
func (e *Engine) SetBonusValidity(d time.Duration) {
	if d > 0 {
		e.bonusValidity = d
	}
}

// SpendResult reports the balances left after a successful spend.
type SpendResult struct {
	Spent          int64 `json:"spent"`
	DailyRemaining int64 `json:"daily_remaining"`
	BonusRemaining int64 `json:"bonus_remaining"`
	TotalRemaining int64 `json:"total_remaining"`
}

// Spend deducts amount credits from the user's effective balance, daily pool
// first, bonus remainder second. Bulk access uses the same call with
// amount = count. Returns ErrInsufficientBalance (with the shortfall) without
// touching any balance when the effective balance is short.
func (e *Engine) Spend(ctx context.Context, userID uint64, amount int64) (SpendResult, error) {
	if amount <= 0 {
		return SpendResult{}, ErrInvalidAmount
	}

	var result SpendResult
	var errSpend error
	for attempt := 0; attempt < spendAttempts; attempt++ {
		result, errSpend = e.trySpend(ctx, userID, amount)
		if !errors.Is(errSpend, errConcurrentUpdate) {
			break
		}
	}

	switch {
	case errSpend == nil:
		metrics.SpendsTotal.WithLabelValues("ok").Inc()
		metrics.TokensSpentTotal.Add(float64(amount))
	case errors.Is(errSpend, ErrInsufficientBalance):
		metrics.SpendsTotal.WithLabelValues("insufficient").Inc()
	default:
		metrics.SpendsTotal.WithLabelValues("error").Inc()
	}
	return result, errSpend
}

func (e *Engine) trySpend(ctx context.Context, userID uint64, amount int64) (SpendResult, error) {
	var result SpendResult
	// The denial is carried outside the transaction error so a reconciled
	// bonus expiry still commits when the spend itself is refused.
	var denied *InsufficientBalanceError
	errTx := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, errLoad := lockUser(tx, userID)
		if errLoad != nil {
			return errLoad
		}

		now := e.now().UTC()
		if errReconcile := reconcileLocked(tx, user, now); errReconcile != nil {
			return errReconcile
		}

		effective := user.EffectiveBalance(now)
		if effective < amount {
			denied = &InsufficientBalanceError{Requested: amount, Available: effective}
			return nil
		}

		fromDaily := amount
		if fromDaily > user.DailyBalance {
			fromDaily = user.DailyBalance
		}
		fromBonus := amount - fromDaily

		updates := map[string]any{
			"daily_balance":        gorm.Expr("daily_balance - ?", fromDaily),
			"daily_spent_today":    gorm.Expr("daily_spent_today + ?", amount),
			"total_spent_lifetime": gorm.Expr("total_spent_lifetime + ?", amount),
			// Monthly mirrors are informational, never a spend ceiling.
			"monthly_spent":     gorm.Expr("monthly_spent + ?", amount),
			"monthly_remaining": gorm.Expr("CASE WHEN monthly_remaining >= ? THEN monthly_remaining - ? ELSE 0 END", amount, amount),
			"updated_at":        now,
		}
		q := tx.Model(&models.User{}).Where("id = ? AND daily_balance >= ?", user.ID, fromDaily)
		if fromBonus > 0 {
			updates["bonus_amount"] = gorm.Expr("bonus_amount - ?", fromBonus)
			q = q.Where("bonus_amount >= ?", fromBonus)
		}

		res := q.Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errConcurrentUpdate
		}

		bonusLeft := int64(0)
		if user.HasLiveBonus(now) {
			bonusLeft = user.BonusAmount - fromBonus
		}
		result = SpendResult{
			Spent:          amount,
			DailyRemaining: user.DailyBalance - fromDaily,
			BonusRemaining: bonusLeft,
			TotalRemaining: effective - amount,
		}
		return nil
	})
	if errTx != nil {
		return SpendResult{}, errTx
	}
	if denied != nil {
		return SpendResult{}, denied
	}
	return result, nil
}

// Reconcile clears an expired bonus grant. It is idempotent and reports
// whether a change was made.
func (e *Engine) Reconcile(ctx context.Context, userID uint64) (bool, error) {
	changed := false
	errTx := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, errLoad := lockUser(tx, userID)
		if errLoad != nil {
			return errLoad
		}
		before := user.BonusAmount
		if errReconcile := reconcileLocked(tx, user, e.now().UTC()); errReconcile != nil {
			return errReconcile
		}
		changed = before != user.BonusAmount
		return nil
	})
	return changed, errTx
}

// BalanceBreakdown reports the pools a user can see and spend right now.
type BalanceBreakdown struct {
	Daily           int64      `json:"daily"`
	Bonus           int64      `json:"bonus"`
	Effective       int64      `json:"effective"`
	DailySpentToday int64      `json:"daily_spent_today"`
	MonthlySpent    int64      `json:"monthly_spent"`
	MonthlyLeft     int64      `json:"monthly_remaining"`
	LifetimeSpent   int64      `json:"lifetime_spent"`
	BonusExpiresAt  *time.Time `json:"bonus_expires_at,omitempty"`
	PlanID          *uint64    `json:"plan_id,omitempty"`
	SubActive       bool       `json:"subscription_active"`
	SubEndDate      *time.Time `json:"subscription_end_date,omitempty"`
}

// Balance reconciles bonus expiry and returns the current breakdown.
func (e *Engine) Balance(ctx context.Context, userID uint64) (BalanceBreakdown, error) {
	var out BalanceBreakdown
	errTx := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, errLoad := lockUser(tx, userID)
		if errLoad != nil {
			return errLoad
		}
		now := e.now().UTC()
		if errReconcile := reconcileLocked(tx, user, now); errReconcile != nil {
			return errReconcile
		}
		out = BalanceBreakdown{
			Daily:           user.DailyBalance,
			Bonus:           user.BonusAmount,
			Effective:       user.EffectiveBalance(now),
			DailySpentToday: user.DailySpentToday,
			MonthlySpent:    user.MonthlySpent,
			MonthlyLeft:     user.MonthlyRemaining,
			LifetimeSpent:   user.TotalSpentLifetime,
			BonusExpiresAt:  user.BonusExpiresAt,
			PlanID:          user.PlanID,
			SubActive:       user.SubActive,
			SubEndDate:      user.SubEndDate,
		}
		return nil
	})
	return out, errTx
}

// BonusGrant describes a granted bonus.
type BonusGrant struct {
	Amount    int64     `json:"amount"`
	GrantedAt time.Time `json:"granted_at"`
	ExpiresAt time.Time `json:"expires_at"`
	GrantedBy string    `json:"granted_by"`
	Reason    string    `json:"reason"`
}

// GrantBonus installs a time-boxed bonus grant. An unexpired grant blocks a
// new one; an expired one is reconciled away first, so re-granting after
// expiry needs no sweep.
func (e *Engine) GrantBonus(ctx context.Context, userID uint64, amount int64, reason, grantedBy string) (BonusGrant, error) {
	if amount <= 0 {
		return BonusGrant{}, ErrInvalidAmount
	}

	var grant BonusGrant
	errTx := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, errLoad := lockUser(tx, userID)
		if errLoad != nil {
			return errLoad
		}
		now := e.now().UTC()
		if errReconcile := reconcileLocked(tx, user, now); errReconcile != nil {
			return errReconcile
		}
		if user.HasLiveBonus(now) {
			return &BonusActiveError{Amount: user.BonusAmount, ExpiresAt: *user.BonusExpiresAt}
		}

		expiresAt := now.Add(e.bonusValidity)
		res := tx.Model(&models.User{}).Where("id = ?", user.ID).Updates(map[string]any{
			"bonus_amount":     amount,
			"bonus_granted_at": now,
			"bonus_expires_at": expiresAt,
			"bonus_granted_by": grantedBy,
			"bonus_reason":     reason,
			"updated_at":       now,
		})
		if res.Error != nil {
			return res.Error
		}
		grant = BonusGrant{
			Amount:    amount,
			GrantedAt: now,
			ExpiresAt: expiresAt,
			GrantedBy: grantedBy,
			Reason:    reason,
		}
		return nil
	})
	if errTx != nil {
		return BonusGrant{}, errTx
	}
	log.Infof("ledger: granted %d bonus credits to user %d by %s (%s)", amount, userID, grantedBy, reason)
	return grant, nil
}

// lockUser loads the user row under a row lock where supported.
func lockUser(tx *gorm.DB, userID uint64) (*models.User, error) {
	var user models.User
	if errFind := dbutil.LockForUpdate(tx).First(&user, userID).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("ledger: load user %d: %w", userID, errFind)
	}
	return &user, nil
}

// reconcileLocked clears an expired bonus grant inside the caller's
// transaction and mirrors the change onto the in-memory record, so balance
// checks in the same transaction see the reconciled state.
func reconcileLocked(tx *gorm.DB, user *models.User, now time.Time) error {
	if user.BonusAmount <= 0 || user.BonusExpiresAt == nil || !now.After(*user.BonusExpiresAt) {
		return nil
	}

	res := tx.Model(&models.User{}).Where("id = ?", user.ID).Updates(map[string]any{
		"bonus_amount":     0,
		"bonus_granted_at": nil,
		"bonus_expires_at": nil,
		"bonus_granted_by": "",
		"bonus_reason":     "",
		"updated_at":       now,
	})
	if res.Error != nil {
		return fmt.Errorf("ledger: clear expired bonus for user %d: %w", user.ID, res.Error)
	}

	user.BonusAmount = 0
	user.BonusGrantedAt = nil
	user.BonusExpiresAt = nil
	user.BonusGrantedBy = ""
	user.BonusReason = ""
	return nil
}
