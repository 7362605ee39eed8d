package models

import "time"

// Plan represents a subscription plan configuration. Price, duration and
// daily rate are immutable after creation; user records copy them at grant
// time.
type Plan struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Name        string  `gorm:"type:varchar(255);not null"`            // Plan name.
	Price       float64 `gorm:"type:decimal(10,2);not null;default:0"` // Purchase price.
	Description string  `gorm:"type:text"`                             // Plan description.

	DurationDays int   `gorm:"not null;default:30"`  // Subscription window length.
	DailyRate    int64 `gorm:"not null;default:100"` // Credits granted per refresh.

	SortOrder int  `gorm:"not null;default:0"`    // Display ordering weight.
	IsEnabled bool `gorm:"not null;default:true"` // Whether the plan is purchasable.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// MonthlyAllocation returns the total credits a full window grants.
func (p *Plan) MonthlyAllocation() int64 {
	if p == nil {
		return 0
	}
	return int64(p.DurationDays) * p.DailyRate
}
