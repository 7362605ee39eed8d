package models

import (
	"time"

	"gorm.io/datatypes"
)

// TransactionType distinguishes what a settlement pays for.
type TransactionType int

// TransactionType constants define settlement subjects.
const (
	// TransactionTypeSubscription purchases or renews a plan.
	TransactionTypeSubscription TransactionType = 1
	// TransactionTypeTokenTopup purchases extra daily credits.
	TransactionTypeTokenTopup TransactionType = 2
)

// TransactionStatus represents the lifecycle state of a settlement.
type TransactionStatus int

// TransactionStatus constants define settlement lifecycle states.
const (
	// TransactionStatusPending marks a settlement awaiting the gateway outcome.
	TransactionStatusPending TransactionStatus = 1
	// TransactionStatusCompleted marks a settlement applied to the ledger.
	TransactionStatusCompleted TransactionStatus = 2
	// TransactionStatusFailed marks a settlement the gateway reported as failed.
	TransactionStatusFailed TransactionStatus = 3
)

// TokenTransaction records one settlement with the external payment gateway.
// TransactionID is the idempotency key: a completed transaction is never
// re-applied to the ledger.
type TokenTransaction struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	TransactionID string `gorm:"type:varchar(64);not null;uniqueIndex"` // Gateway-facing idempotency key.

	UserID uint64 `gorm:"not null;index"`    // Owning user ID.
	User   User   `gorm:"foreignKey:UserID"` // Owning user record.

	Type TransactionType `gorm:"not null"` // Settlement subject.

	PlanID *uint64 `gorm:"index"`             // Purchased plan, subscription settlements only.
	Plan   *Plan   `gorm:"foreignKey:PlanID"` // Purchased plan record.

	Tokens int64   `gorm:"not null;default:0"`                    // Purchased credits, topups only.
	Amount float64 `gorm:"type:decimal(10,2);not null;default:0"` // Charged amount.

	Status TransactionStatus `gorm:"not null;default:1;index"` // Settlement state.

	BalanceBefore int64 `gorm:"not null;default:0"` // Daily balance before application.
	BalanceAfter  int64 `gorm:"not null;default:0"` // Daily balance after application.

	Payload datatypes.JSON `gorm:"type:jsonb"` // Raw gateway payload for audits.

	CreatedAt time.Time `gorm:"not null;autoCreateTime;index"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"`       // Last update timestamp.
}
