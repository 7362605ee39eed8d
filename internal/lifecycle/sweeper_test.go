package lifecycle

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/clientsure/backend/internal/db"
	"github.com/clientsure/backend/internal/models"
	"gorm.io/gorm"
)

type capturedNotification struct {
	UserID  uint64
	Kind    string
	Payload map[string]any
}

// captureNotifier records sends instead of delivering them.
type captureNotifier struct {
	sent []capturedNotification
}

func (n *captureNotifier) Send(_ context.Context, userID uint64, kind string, payload map[string]any) bool {
	n.sent = append(n.sent, capturedNotification{UserID: userID, Kind: kind, Payload: payload})
	return true
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "lifecycle-test.db")
	conn, err := db.Open(dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	return conn
}

func createPlan(t *testing.T, conn *gorm.DB) *models.Plan {
	t.Helper()
	plan := models.Plan{Name: "Team", Price: 49, DurationDays: 30, DailyRate: 100, IsEnabled: true}
	if errCreate := conn.Create(&plan).Error; errCreate != nil {
		t.Fatalf("create plan: %v", errCreate)
	}
	return &plan
}

func subscribedUser(t *testing.T, conn *gorm.DB, plan *models.Plan, email string, endDate time.Time, state State) *models.User {
	t.Helper()
	start := endDate.AddDate(0, 0, -plan.DurationDays)
	user := models.User{
		Email:                email,
		Active:               true,
		PlanID:               &plan.ID,
		SubStartDate:         &start,
		SubEndDate:           &endDate,
		SubDailyRate:         plan.DailyRate,
		SubMonthlyAllocation: plan.MonthlyAllocation(),
		SubActive:            true,
		LifecycleState:       int(state),
	}
	if errCreate := conn.Create(&user).Error; errCreate != nil {
		t.Fatalf("create user: %v", errCreate)
	}
	return &user
}

func TestRefreshSweep_ResetsDailyPool(t *testing.T) {
	conn := openTestDB(t)
	plan := createPlan(t, conn)

	now := time.Date(2026, 3, 15, 1, 0, 0, 0, time.UTC)
	endDate := now.AddDate(0, 0, 10)
	user := subscribedUser(t, conn, plan, "active@example.com", endDate, StateActive)
	conn.Model(user).Updates(map[string]any{"daily_balance": 7, "daily_spent_today": 93})

	sweeper := NewSweeper(conn, nil, time.UTC)
	sweeper.now = func() time.Time { return now }

	summary := sweeper.RunRefreshSweep(context.Background())
	if summary.Refreshed != 1 || summary.Renewed != 0 || len(summary.Failures) != 0 {
		t.Fatalf("summary = %+v, want 1 refreshed", summary)
	}

	var stored models.User
	if errFind := conn.First(&stored, user.ID).Error; errFind != nil {
		t.Fatalf("reload user: %v", errFind)
	}
	if stored.DailyBalance != 100 || stored.DailySpentToday != 0 {
		t.Fatalf("daily=%d spent=%d, want 100 and 0", stored.DailyBalance, stored.DailySpentToday)
	}
	if stored.SubLastRefreshedAt == nil {
		t.Fatalf("last refreshed not stamped")
	}
}

func TestRefreshSweep_RenewsExpiredWindow(t *testing.T) {
	conn := openTestDB(t)
	plan := createPlan(t, conn)

	now := time.Date(2026, 3, 15, 1, 0, 0, 0, time.UTC)
	endDate := now.AddDate(0, 0, -1)
	user := subscribedUser(t, conn, plan, "lapsed@example.com", endDate, StateActive)
	conn.Model(user).Updates(map[string]any{"monthly_spent": 2500, "monthly_remaining": 500})

	sweeper := NewSweeper(conn, nil, time.UTC)
	sweeper.now = func() time.Time { return now }

	summary := sweeper.RunRefreshSweep(context.Background())
	if summary.Renewed != 1 {
		t.Fatalf("summary = %+v, want 1 renewed", summary)
	}

	var stored models.User
	conn.First(&stored, user.ID)
	if stored.MonthlySpent != 0 || stored.MonthlyRemaining != plan.MonthlyAllocation() {
		t.Fatalf("monthly spent=%d remaining=%d, want 0 and %d", stored.MonthlySpent, stored.MonthlyRemaining, plan.MonthlyAllocation())
	}
	if stored.DailyBalance != plan.DailyRate || !stored.SubActive {
		t.Fatalf("daily=%d active=%v after renewal", stored.DailyBalance, stored.SubActive)
	}
	if stored.SubEndDate == nil || !stored.SubEndDate.Equal(now.AddDate(0, 0, plan.DurationDays)) {
		t.Fatalf("window end = %v, want %v", stored.SubEndDate, now.AddDate(0, 0, plan.DurationDays))
	}
}

func TestLifecycleSweep_WarningBand(t *testing.T) {
	conn := openTestDB(t)
	plan := createPlan(t, conn)

	now := time.Date(2026, 3, 15, 2, 30, 0, 0, time.UTC)
	endDate := now.AddDate(0, 0, 3)
	user := subscribedUser(t, conn, plan, "warn@example.com", endDate, StateActive)

	notifier := &captureNotifier{}
	sweeper := NewSweeper(conn, notifier, time.UTC)
	sweeper.now = func() time.Time { return now }

	summary := sweeper.RunLifecycleSweep(context.Background())
	if summary.Notified != 1 {
		t.Fatalf("summary = %+v, want 1 notified", summary)
	}
	if len(notifier.sent) != 1 || notifier.sent[0].Kind != "expiry_warning" {
		t.Fatalf("sent = %+v, want one expiry_warning", notifier.sent)
	}
	if daysLeft := notifier.sent[0].Payload["days_left"]; daysLeft != 3 {
		t.Fatalf("days_left = %v, want 3", daysLeft)
	}

	var stored models.User
	conn.First(&stored, user.ID)
	if State(stored.LifecycleState) != StateWarnedT3 {
		t.Fatalf("state = %s, want warned_t3", State(stored.LifecycleState))
	}
}

func TestLifecycleSweep_ExpiryIdempotentSameDay(t *testing.T) {
	conn := openTestDB(t)
	plan := createPlan(t, conn)

	now := time.Date(2026, 3, 15, 2, 30, 0, 0, time.UTC)
	endDate := now
	user := subscribedUser(t, conn, plan, "expire@example.com", endDate, StateWarnedT1)
	conn.Model(user).Updates(map[string]any{"daily_balance": 40, "monthly_remaining": 900})

	notifier := &captureNotifier{}
	sweeper := NewSweeper(conn, notifier, time.UTC)
	sweeper.now = func() time.Time { return now }

	first := sweeper.RunLifecycleSweep(context.Background())
	if first.Expired != 1 || first.Notified != 1 {
		t.Fatalf("first run summary = %+v, want 1 expired 1 notified", first)
	}

	var stored models.User
	conn.First(&stored, user.ID)
	if stored.SubActive || stored.DailyBalance != 0 || stored.MonthlyRemaining != 0 {
		t.Fatalf("expiry did not zero pools: %+v", stored)
	}
	if State(stored.LifecycleState) != StateExpired {
		t.Fatalf("state = %s, want expired", State(stored.LifecycleState))
	}

	// Re-running on the same day derives the same state and sends nothing.
	second := sweeper.RunLifecycleSweep(context.Background())
	if second.Expired != 0 || second.Notified != 0 {
		t.Fatalf("second run summary = %+v, want no work", second)
	}
	if len(notifier.sent) != 1 {
		t.Fatalf("sent %d notifications, want 1", len(notifier.sent))
	}
}

func TestLifecycleSweep_WinbackTier(t *testing.T) {
	conn := openTestDB(t)
	plan := createPlan(t, conn)

	now := time.Date(2026, 3, 15, 2, 30, 0, 0, time.UTC)
	endDate := now.AddDate(0, 0, -3)
	subscribedUser(t, conn, plan, "winback@example.com", endDate, StateExpired)

	notifier := &captureNotifier{}
	sweeper := NewSweeper(conn, notifier, time.UTC)
	sweeper.now = func() time.Time { return now }

	summary := sweeper.RunLifecycleSweep(context.Background())
	if summary.Notified != 1 {
		t.Fatalf("summary = %+v, want 1 notified", summary)
	}
	if notifier.sent[0].Kind != "winback_reminder" {
		t.Fatalf("kind = %s, want winback_reminder", notifier.sent[0].Kind)
	}
	if tier := notifier.sent[0].Payload["tier_days"]; tier != 3 {
		t.Fatalf("tier_days = %v, want 3", tier)
	}
}

func TestLifecycleSweep_TerminalStateStaysSilent(t *testing.T) {
	conn := openTestDB(t)
	plan := createPlan(t, conn)

	now := time.Date(2026, 3, 15, 2, 30, 0, 0, time.UTC)
	endDate := now.AddDate(0, 0, -60)
	subscribedUser(t, conn, plan, "gone@example.com", endDate, StateWinbackDay14)

	notifier := &captureNotifier{}
	sweeper := NewSweeper(conn, notifier, time.UTC)
	sweeper.now = func() time.Time { return now }

	summary := sweeper.RunLifecycleSweep(context.Background())
	if summary.Notified != 0 || len(notifier.sent) != 0 {
		t.Fatalf("terminal state produced contact: %+v", summary)
	}
}

func TestLifecycleSweep_SkipsUsersWithoutPlans(t *testing.T) {
	conn := openTestDB(t)

	user := models.User{Email: "free@example.com", Active: true}
	if errCreate := conn.Create(&user).Error; errCreate != nil {
		t.Fatalf("create user: %v", errCreate)
	}

	notifier := &captureNotifier{}
	sweeper := NewSweeper(conn, notifier, time.UTC)

	summary := sweeper.RunLifecycleSweep(context.Background())
	if summary.Processed != 0 {
		t.Fatalf("processed %d users, want 0", summary.Processed)
	}
}
