package lifecycle

import (
	"testing"
	"time"
)

func TestDeriveState_Bands(t *testing.T) {
	now := time.Date(2026, 3, 15, 10, 30, 0, 0, time.UTC)

	cases := []struct {
		name     string
		daysLeft int
		want     State
	}{
		{"far out", 30, StateActive},
		{"band edge active", 8, StateActive},
		{"week warning upper", 7, StateWarnedT7},
		{"week warning lower", 4, StateWarnedT7},
		{"three day upper", 3, StateWarnedT3},
		{"three day lower", 2, StateWarnedT3},
		{"last day", 1, StateWarnedT1},
		{"expires today", 0, StateExpired},
		{"expired yesterday", -1, StateExpired},
		{"expired grace edge", -2, StateExpired},
		{"winback 3 lower", -3, StateWinbackDay3},
		{"winback 3 upper", -6, StateWinbackDay3},
		{"winback 7 lower", -7, StateWinbackDay7},
		{"winback 7 upper", -13, StateWinbackDay7},
		{"winback 14", -14, StateWinbackDay14},
		{"long gone", -90, StateWinbackDay14},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			endDate := now.AddDate(0, 0, tc.daysLeft)
			got := DeriveState(now, &endDate, time.UTC)
			if got != tc.want {
				t.Fatalf("daysLeft=%d: got %s, want %s", tc.daysLeft, got, tc.want)
			}
		})
	}
}

func TestDeriveState_NilEndDate(t *testing.T) {
	if got := DeriveState(time.Now(), nil, time.UTC); got != StateNone {
		t.Fatalf("nil end date: got %s, want none", got)
	}
}

func TestDaysUntilExpiry_DateOnly(t *testing.T) {
	// Late evening vs early morning must still count whole calendar days.
	now := time.Date(2026, 3, 15, 23, 50, 0, 0, time.UTC)
	endDate := time.Date(2026, 3, 16, 0, 10, 0, 0, time.UTC)
	if days := DaysUntilExpiry(now, endDate, time.UTC); days != 1 {
		t.Fatalf("got %d days, want 1", days)
	}

	sameDay := time.Date(2026, 3, 15, 0, 5, 0, 0, time.UTC)
	if days := DaysUntilExpiry(now, sameDay, time.UTC); days != 0 {
		t.Fatalf("same day: got %d days, want 0", days)
	}
}

func TestDaysUntilExpiry_Timezone(t *testing.T) {
	loc := time.FixedZone("UTC+9", 9*3600)
	// 16:00 UTC on the 15th is already the 16th at UTC+9.
	now := time.Date(2026, 3, 15, 16, 0, 0, 0, time.UTC)
	endDate := time.Date(2026, 3, 16, 20, 0, 0, 0, time.UTC)
	if days := DaysUntilExpiry(now, endDate, loc); days != 0 {
		t.Fatalf("got %d days in UTC+9, want 0", days)
	}
	if days := DaysUntilExpiry(now, endDate, time.UTC); days != 1 {
		t.Fatalf("got %d days in UTC, want 1", days)
	}
}

func TestWinbackTier(t *testing.T) {
	if StateWinbackDay3.WinbackTier() != 3 || StateWinbackDay7.WinbackTier() != 7 || StateWinbackDay14.WinbackTier() != 14 {
		t.Fatalf("unexpected winback tiers")
	}
	if StateActive.WinbackTier() != 0 {
		t.Fatalf("active state should have no winback tier")
	}
}
