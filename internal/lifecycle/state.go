package lifecycle

import "time"

// State enumerates the subscription contact states. The state is derived from
// the window's end date each run; users move forward through warnings into
// expiry and win-back tiers, and jump back to StateActive when a settlement
// renews the window.
type State int

const (
	// StateNone marks a user with no subscription window yet.
	StateNone State = iota
	// StateActive marks a healthy window more than a week from expiry.
	StateActive
	// StateWarnedT7 marks the one-week warning band (7..4 days left).
	StateWarnedT7
	// StateWarnedT3 marks the three-day warning band (3..2 days left).
	StateWarnedT3
	// StateWarnedT1 marks the last-day warning (1 day left).
	StateWarnedT1
	// StateExpired marks a window that lapsed within the last two days.
	StateExpired
	// StateWinbackDay3 marks the first win-back tier (3..6 days expired).
	StateWinbackDay3
	// StateWinbackDay7 marks the second win-back tier (7..13 days expired).
	StateWinbackDay7
	// StateWinbackDay14 marks the final win-back tier; the state never
	// advances past it, so no further automated contact happens.
	StateWinbackDay14
)

// String returns a stable tag for logs and notification payloads.
func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateWarnedT7:
		return "warned_t7"
	case StateWarnedT3:
		return "warned_t3"
	case StateWarnedT1:
		return "warned_t1"
	case StateExpired:
		return "expired"
	case StateWinbackDay3:
		return "winback_day3"
	case StateWinbackDay7:
		return "winback_day7"
	case StateWinbackDay14:
		return "winback_day14"
	default:
		return "none"
	}
}

// WinbackTier returns the offer tier in days for win-back states, 0 otherwise.
func (s State) WinbackTier() int {
	switch s {
	case StateWinbackDay3:
		return 3
	case StateWinbackDay7:
		return 7
	case StateWinbackDay14:
		return 14
	default:
		return 0
	}
}

// DaysUntilExpiry returns the date-only difference between the window end and
// now, in loc. A same-day expiry yields 0; yesterday yields -1.
func DaysUntilExpiry(now, endDate time.Time, loc *time.Location) int {
	if loc == nil {
		loc = time.UTC
	}
	nowDay := dateOnly(now.In(loc))
	endDay := dateOnly(endDate.In(loc))
	return int(endDay.Sub(nowDay) / (24 * time.Hour))
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DeriveState maps a subscription window onto its contact state at now. It is
// a pure function of the two timestamps so it can be tested without storage.
func DeriveState(now time.Time, endDate *time.Time, loc *time.Location) State {
	if endDate == nil {
		return StateNone
	}
	days := DaysUntilExpiry(now, *endDate, loc)
	switch {
	case days >= 8:
		return StateActive
	case days >= 4:
		return StateWarnedT7
	case days >= 2:
		return StateWarnedT3
	case days == 1:
		return StateWarnedT1
	case days >= -2:
		return StateExpired
	case days >= -6:
		return StateWinbackDay3
	case days >= -13:
		return StateWinbackDay7
	default:
		return StateWinbackDay14
	}
}
