package lifecycle

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Scheduler fires the two sweeps once per day at fixed wall-clock times. The
// clock is injectable so tests can drive arbitrary "now" values; sweeps run
// in the background and never block request handlers.
type Scheduler struct {
	sweeper *Sweeper

	refreshAt   clockTime
	lifecycleAt clockTime
	loc         *time.Location

	now   func() time.Time
	after func(time.Duration) <-chan time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// clockTime is a wall-clock time of day.
type clockTime struct {
	hour   int
	minute int
}

// parseClockTime parses "HH:MM".
func parseClockTime(raw string) (clockTime, error) {
	parts := strings.SplitN(strings.TrimSpace(raw), ":", 2)
	if len(parts) != 2 {
		return clockTime{}, fmt.Errorf("lifecycle: invalid time %q, want HH:MM", raw)
	}
	hour, errHour := strconv.Atoi(parts[0])
	minute, errMinute := strconv.Atoi(parts[1])
	if errHour != nil || errMinute != nil || hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return clockTime{}, fmt.Errorf("lifecycle: invalid time %q, want HH:MM", raw)
	}
	return clockTime{hour: hour, minute: minute}, nil
}

// NewScheduler constructs a scheduler. refreshAt and lifecycleAt are "HH:MM"
// in loc and must differ so the sweeps do not contend at the same instant.
func NewScheduler(sweeper *Sweeper, refreshAt, lifecycleAt string, loc *time.Location) (*Scheduler, error) {
	if sweeper == nil {
		return nil, fmt.Errorf("lifecycle: nil sweeper")
	}
	if loc == nil {
		loc = time.UTC
	}
	refresh, errRefresh := parseClockTime(refreshAt)
	if errRefresh != nil {
		return nil, errRefresh
	}
	lifecycleTime, errLifecycle := parseClockTime(lifecycleAt)
	if errLifecycle != nil {
		return nil, errLifecycle
	}
	if refresh == lifecycleTime {
		return nil, fmt.Errorf("lifecycle: refresh and lifecycle sweeps must run at distinct times")
	}
	return &Scheduler{
		sweeper:     sweeper,
		refreshAt:   refresh,
		lifecycleAt: lifecycleTime,
		loc:         loc,
		now:         time.Now,
		after:       func(d time.Duration) <-chan time.Time { return time.After(d) },
	}, nil
}

// Start launches both daily loops. Calling Start on a running scheduler is a
// no-op.
func (s *Scheduler) Start(ctx context.Context) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{}, 2)

	go s.runDaily(runCtx, "refresh", s.refreshAt, func(c context.Context) { s.sweeper.RunRefreshSweep(c) })
	go s.runDaily(runCtx, "lifecycle", s.lifecycleAt, func(c context.Context) { s.sweeper.RunLifecycleSweep(c) })

	log.Infof("lifecycle: scheduler started (refresh %02d:%02d, lifecycle %02d:%02d, %s)",
		s.refreshAt.hour, s.refreshAt.minute, s.lifecycleAt.hour, s.lifecycleAt.minute, s.loc)
}

// Stop cancels the loops and waits for both to exit.
func (s *Scheduler) Stop() {
	if s == nil {
		return
	}
	s.mu.Lock()
	cancel := s.cancel
	done := s.done
	s.cancel = nil
	s.done = nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	for i := 0; i < 2; i++ {
		<-done
	}
}

func (s *Scheduler) runDaily(ctx context.Context, name string, at clockTime, run func(context.Context)) {
	defer func() { s.done <- struct{}{} }()
	for {
		wait := s.untilNext(at)
		select {
		case <-ctx.Done():
			return
		case <-s.after(wait):
			// A started sweep runs to completion; there is no abort signal.
			log.Debugf("lifecycle: firing %s sweep", name)
			run(context.WithoutCancel(ctx))
		}
		if ctx.Err() != nil {
			return
		}
	}
}

// untilNext returns the duration until the next occurrence of at in s.loc.
func (s *Scheduler) untilNext(at clockTime) time.Duration {
	now := s.now().In(s.loc)
	next := time.Date(now.Year(), now.Month(), now.Day(), at.hour, at.minute, 0, 0, s.loc)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next.Sub(now)
}
