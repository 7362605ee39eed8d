package ledger

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for errors.Is checks.
var (
	// ErrInvalidAmount marks a non-positive spend or grant amount (caller error).
	ErrInvalidAmount = errors.New("ledger: amount must be a positive integer")
	// ErrUserNotFound marks an unknown user ID.
	ErrUserNotFound = errors.New("ledger: user not found")
	// ErrInsufficientBalance marks a spend exceeding the effective balance.
	ErrInsufficientBalance = errors.New("ledger: insufficient balance")
	// ErrBonusAlreadyActive marks a grant attempt while a live grant exists.
	ErrBonusAlreadyActive = errors.New("ledger: bonus already active")
)

// InsufficientBalanceError reports the shortfall so callers can show it.
type InsufficientBalanceError struct {
	Requested int64
	Available int64
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("ledger: insufficient balance: requested %d, available %d", e.Requested, e.Available)
}

func (e *InsufficientBalanceError) Unwrap() error { return ErrInsufficientBalance }

// BonusActiveError reports the live grant blocking a new one.
type BonusActiveError struct {
	Amount    int64
	ExpiresAt time.Time
}

func (e *BonusActiveError) Error() string {
	return fmt.Sprintf("ledger: bonus already active: %d credits until %s", e.Amount, e.ExpiresAt.Format(time.RFC3339))
}

func (e *BonusActiveError) Unwrap() error { return ErrBonusAlreadyActive }
