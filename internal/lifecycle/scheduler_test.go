package lifecycle

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestParseClockTime(t *testing.T) {
	cases := []struct {
		raw    string
		hour   int
		minute int
		ok     bool
	}{
		{"01:00", 1, 0, true},
		{"23:59", 23, 59, true},
		{"0:5", 0, 5, true},
		{"24:00", 0, 0, false},
		{"12:60", 0, 0, false},
		{"noon", 0, 0, false},
		{"", 0, 0, false},
	}
	for _, tc := range cases {
		got, errParse := parseClockTime(tc.raw)
		if tc.ok && (errParse != nil || got.hour != tc.hour || got.minute != tc.minute) {
			t.Fatalf("parseClockTime(%q) = %+v, %v", tc.raw, got, errParse)
		}
		if !tc.ok && errParse == nil {
			t.Fatalf("parseClockTime(%q) accepted invalid input", tc.raw)
		}
	}
}

func TestNewScheduler_RejectsIdenticalTimes(t *testing.T) {
	conn := openTestDB(t)
	sweeper := NewSweeper(conn, nil, time.UTC)

	if _, errNew := NewScheduler(sweeper, "01:00", "01:00", time.UTC); errNew == nil {
		t.Fatalf("expected error for identical sweep times")
	}
	if _, errNew := NewScheduler(sweeper, "01:00", "02:30", time.UTC); errNew != nil {
		t.Fatalf("NewScheduler: %v", errNew)
	}
}

func TestScheduler_UntilNext(t *testing.T) {
	conn := openTestDB(t)
	sweeper := NewSweeper(conn, nil, time.UTC)
	scheduler, errNew := NewScheduler(sweeper, "01:00", "02:30", time.UTC)
	if errNew != nil {
		t.Fatalf("NewScheduler: %v", errNew)
	}

	// Before the trigger, same day.
	scheduler.now = func() time.Time { return time.Date(2026, 3, 15, 0, 30, 0, 0, time.UTC) }
	if wait := scheduler.untilNext(clockTime{hour: 1}); wait != 30*time.Minute {
		t.Fatalf("wait = %s, want 30m", wait)
	}

	// At or past the trigger, next day.
	scheduler.now = func() time.Time { return time.Date(2026, 3, 15, 1, 0, 0, 0, time.UTC) }
	if wait := scheduler.untilNext(clockTime{hour: 1}); wait != 24*time.Hour {
		t.Fatalf("wait = %s, want 24h", wait)
	}
}

func TestScheduler_FiresAndStops(t *testing.T) {
	conn := openTestDB(t)
	sweeper := NewSweeper(conn, nil, time.UTC)
	scheduler, errNew := NewScheduler(sweeper, "01:00", "02:30", time.UTC)
	if errNew != nil {
		t.Fatalf("NewScheduler: %v", errNew)
	}

	var fires atomic.Int32
	scheduler.after = func(time.Duration) <-chan time.Time {
		// Fire each loop exactly once, then hold until Stop cancels.
		if fires.Add(1) <= 2 {
			ch := make(chan time.Time, 1)
			ch <- time.Now()
			return ch
		}
		return make(chan time.Time)
	}

	scheduler.Start(context.Background())
	deadline := time.After(5 * time.Second)
	for fires.Load() < 2 {
		select {
		case <-deadline:
			t.Fatalf("sweeps did not fire, count=%d", fires.Load())
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	scheduler.Stop()

	// Stop must be idempotent.
	scheduler.Stop()
}
