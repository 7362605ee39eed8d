package models

import "time"

// User represents an end-user account with its embedded token ledger
// and subscription window.
type User struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Name     string `gorm:"type:text;not null"`    // Display name.
	Email    string `gorm:"type:text;uniqueIndex"` // Email address.
	Phone    string `gorm:"type:text"`             // Optional phone number.
	Password string `gorm:"type:text"`             // Hashed password, empty until first setup.

	Active bool `gorm:"not null;default:true"` // Whether the user can sign in.

	// Token ledger. DailyBalance is the spendable daily pool; the monthly
	// columns mirror spend for reporting and are not enforced as a ceiling.
	DailyBalance       int64 `gorm:"not null;default:0"` // Spendable daily credits.
	DailySpentToday    int64 `gorm:"not null;default:0"` // Credits spent since last refresh.
	MonthlySpent       int64 `gorm:"not null;default:0"` // Credits spent this cycle.
	MonthlyRemaining   int64 `gorm:"not null;default:0"` // Informational cycle remainder.
	TotalSpentLifetime int64 `gorm:"not null;default:0"` // Monotonic lifetime spend counter.

	// Bonus grant. At most one live grant per user; cleared in place once expired.
	BonusAmount    int64      `gorm:"not null;default:0"` // Remaining bonus credits.
	BonusGrantedAt *time.Time // Grant timestamp.
	BonusExpiresAt *time.Time // Expiry timestamp.
	BonusGrantedBy string     `gorm:"type:text"` // Admin username that granted the bonus.
	BonusReason    string     `gorm:"type:text"` // Grant reason shown to the user.

	// Subscription window. DailyRate and MonthlyAllocation are copied from the
	// plan at grant time so later plan edits do not change live entitlements.
	PlanID *uint64 `gorm:"index"`             // Active plan ID.
	Plan   *Plan   `gorm:"foreignKey:PlanID"` // Active plan.

	SubStartDate         *time.Time // Window start.
	SubEndDate           *time.Time `gorm:"index"` // Window end.
	SubDailyRate         int64      `gorm:"not null;default:0"`
	SubMonthlyAllocation int64      `gorm:"not null;default:0"`
	SubLastRefreshedAt   *time.Time
	SubActive            bool `gorm:"not null;default:false"` // True only while now <= SubEndDate.

	// LifecycleState is written only by the lifecycle sweep.
	LifecycleState int `gorm:"not null;default:0"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// HasLiveBonus reports whether the user holds an unexpired bonus grant at now.
func (u *User) HasLiveBonus(now time.Time) bool {
	if u == nil || u.BonusAmount <= 0 || u.BonusExpiresAt == nil {
		return false
	}
	return !now.After(*u.BonusExpiresAt)
}

// EffectiveBalance returns the credits a spend will actually honor at now.
func (u *User) EffectiveBalance(now time.Time) int64 {
	if u == nil {
		return 0
	}
	if u.HasLiveBonus(now) {
		return u.DailyBalance + u.BonusAmount
	}
	return u.DailyBalance
}
