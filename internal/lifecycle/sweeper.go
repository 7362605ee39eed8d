package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/clientsure/backend/internal/metrics"
	"github.com/clientsure/backend/internal/models"
	"github.com/clientsure/backend/internal/notify"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const sweepBatchSize = 200

// UserFailure records one user whose sweep update failed.
type UserFailure struct {
	UserID uint64 `json:"user_id"`
	Err    string `json:"error"`
}

// Summary reports the outcome of one sweep run. Per-user failures are
// collected here instead of aborting the run.
type Summary struct {
	Sweep     string        `json:"sweep"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Processed int           `json:"processed"`
	Refreshed int           `json:"refreshed,omitempty"`
	Renewed   int           `json:"renewed,omitempty"`
	Notified  int           `json:"notified,omitempty"`
	Expired   int           `json:"expired,omitempty"`
	Failures  []UserFailure `json:"failures,omitempty"`
}

// Sweeper runs the two daily batch passes over subscribed users.
type Sweeper struct {
	db       *gorm.DB
	notifier notify.Notifier
	now      func() time.Time
	loc      *time.Location
}

// NewSweeper constructs a Sweeper. A nil location defaults to UTC.
func NewSweeper(db *gorm.DB, notifier notify.Notifier, loc *time.Location) *Sweeper {
	if loc == nil {
		loc = time.UTC
	}
	return &Sweeper{db: db, notifier: notifier, now: time.Now, loc: loc}
}

// RunRefreshSweep resets daily quotas for active subscriptions and renews
// expired ones that still reference a plan. Renewal is unconditional: the
// plan reference is treated as continued entitlement.
func (s *Sweeper) RunRefreshSweep(ctx context.Context) Summary {
	now := s.now().UTC()
	summary := Summary{Sweep: "refresh", StartedAt: now}

	s.eachSubscribedUser(ctx, &summary, func(user *models.User) error {
		if user.SubEndDate != nil && user.SubEndDate.After(now) {
			if errRefresh := s.refreshDaily(ctx, user, now); errRefresh != nil {
				return errRefresh
			}
			summary.Refreshed++
			return nil
		}
		renewed, errRenew := s.renewPlan(ctx, user, now)
		if errRenew != nil {
			return errRenew
		}
		if renewed {
			summary.Renewed++
		}
		return nil
	})

	summary.Duration = s.now().UTC().Sub(now)
	metrics.SweepDuration.WithLabelValues("refresh").Observe(summary.Duration.Seconds())
	log.Infof("lifecycle: refresh sweep done: %d refreshed, %d renewed, %d failed of %d",
		summary.Refreshed, summary.Renewed, len(summary.Failures), summary.Processed)
	return summary
}

// RunLifecycleSweep derives each user's contact state and emits the single
// notification for a state change. Re-running within the same calendar day
// derives the same state and sends nothing.
func (s *Sweeper) RunLifecycleSweep(ctx context.Context) Summary {
	now := s.now().UTC()
	summary := Summary{Sweep: "lifecycle", StartedAt: now}

	s.eachSubscribedUser(ctx, &summary, func(user *models.User) error {
		derived := DeriveState(now, user.SubEndDate, s.loc)
		previous := State(user.LifecycleState)
		if derived == previous {
			return nil
		}

		if derived == StateExpired {
			if errExpire := s.expireUser(ctx, user, now); errExpire != nil {
				return errExpire
			}
			summary.Expired++
		} else {
			res := s.db.WithContext(ctx).Model(&models.User{}).
				Where("id = ?", user.ID).
				Update("lifecycle_state", int(derived))
			if res.Error != nil {
				return fmt.Errorf("persist state for user %d: %w", user.ID, res.Error)
			}
		}

		if s.emitTransition(ctx, user, derived, now) {
			summary.Notified++
		}
		return nil
	})

	summary.Duration = s.now().UTC().Sub(now)
	metrics.SweepDuration.WithLabelValues("lifecycle").Observe(summary.Duration.Seconds())
	log.Infof("lifecycle: state sweep done: %d notified, %d expired, %d failed of %d",
		summary.Notified, summary.Expired, len(summary.Failures), summary.Processed)
	return summary
}

// eachSubscribedUser streams users holding a plan reference in batches,
// handing each to fn as an independent unit of work.
func (s *Sweeper) eachSubscribedUser(ctx context.Context, summary *Summary, fn func(*models.User) error) {
	var lastID uint64
	for {
		var users []models.User
		errFind := s.db.WithContext(ctx).
			Where("plan_id IS NOT NULL AND id > ?", lastID).
			Order("id ASC").
			Limit(sweepBatchSize).
			Find(&users).Error
		if errFind != nil {
			log.WithError(errFind).Errorf("lifecycle: %s sweep: list users failed", summary.Sweep)
			summary.Failures = append(summary.Failures, UserFailure{Err: errFind.Error()})
			return
		}
		if len(users) == 0 {
			return
		}
		for i := range users {
			user := &users[i]
			lastID = user.ID
			summary.Processed++
			if errUser := fn(user); errUser != nil {
				metrics.SweepUsersTotal.WithLabelValues(summary.Sweep, "error").Inc()
				log.WithError(errUser).Warnf("lifecycle: %s sweep: user %d failed", summary.Sweep, user.ID)
				summary.Failures = append(summary.Failures, UserFailure{UserID: user.ID, Err: errUser.Error()})
				continue
			}
			metrics.SweepUsersTotal.WithLabelValues(summary.Sweep, "ok").Inc()
		}
		if len(users) < sweepBatchSize {
			return
		}
	}
}

// refreshDaily resets the daily pool to the plan rate. Monthly mirrors and
// bonus credits are left untouched.
func (s *Sweeper) refreshDaily(ctx context.Context, user *models.User, now time.Time) error {
	rate := user.SubDailyRate
	if user.Plan == nil && user.PlanID != nil {
		var plan models.Plan
		if errPlan := s.db.WithContext(ctx).First(&plan, *user.PlanID).Error; errPlan == nil {
			rate = plan.DailyRate
		}
	} else if user.Plan != nil {
		rate = user.Plan.DailyRate
	}

	res := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", user.ID).
		Updates(map[string]any{
			"daily_balance":         rate,
			"daily_spent_today":     0,
			"sub_last_refreshed_at": now,
			"updated_at":            now,
		})
	if res.Error != nil {
		return fmt.Errorf("refresh user %d: %w", user.ID, res.Error)
	}
	return nil
}

// renewPlan slides an expired window forward for a full new cycle. No fresh
// settlement is required; preserved behavior, flagged for product review.
func (s *Sweeper) renewPlan(ctx context.Context, user *models.User, now time.Time) (bool, error) {
	if user.PlanID == nil {
		return false, nil
	}
	var plan models.Plan
	if errPlan := s.db.WithContext(ctx).First(&plan, *user.PlanID).Error; errPlan != nil {
		return false, fmt.Errorf("load plan %d for user %d: %w", *user.PlanID, user.ID, errPlan)
	}

	allocation := plan.MonthlyAllocation()
	endDate := now.AddDate(0, 0, plan.DurationDays)
	res := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", user.ID).
		Updates(map[string]any{
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
			"updated_at":             now,
		})
	if res.Error != nil {
		return false, fmt.Errorf("renew user %d: %w", user.ID, res.Error)
	}
	log.Infof("lifecycle: auto-renewed plan %q for user %d without a fresh settlement (%d credits)", plan.Name, user.ID, allocation)
	return true, nil
}

// expireUser zeroes the spendable pools and deactivates the window. The
// lifecycle sweep is the sole writer that flips sub_active to false.
func (s *Sweeper) expireUser(ctx context.Context, user *models.User, now time.Time) error {
	res := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", user.ID).
		Updates(map[string]any{
			"daily_balance":     0,
			"daily_spent_today": 0,
			"monthly_remaining": 0,
			"sub_active":        false,
			"lifecycle_state":   int(StateExpired),
			"updated_at":        now,
		})
	if res.Error != nil {
		return fmt.Errorf("expire user %d: %w", user.ID, res.Error)
	}
	return nil
}

// emitTransition sends at most one notification for the new state.
func (s *Sweeper) emitTransition(ctx context.Context, user *models.User, state State, now time.Time) bool {
	if s.notifier == nil {
		return false
	}

	switch state {
	case StateWarnedT7, StateWarnedT3, StateWarnedT1:
		daysLeft := 0
		if user.SubEndDate != nil {
			daysLeft = DaysUntilExpiry(now, *user.SubEndDate, s.loc)
		}
		return s.notifier.Send(ctx, user.ID, notify.KindExpiryWarning, map[string]any{
			"days_left": daysLeft,
			"end_date":  user.SubEndDate,
		})
	case StateExpired:
		return s.notifier.Send(ctx, user.ID, notify.KindSubscriptionExpired, map[string]any{
			"end_date": user.SubEndDate,
		})
	case StateWinbackDay3, StateWinbackDay7, StateWinbackDay14:
		return s.notifier.Send(ctx, user.ID, notify.KindWinbackReminder, map[string]any{
			"tier_days": state.WinbackTier(),
			"end_date":  user.SubEndDate,
		})
	default:
		return false
	}
}
