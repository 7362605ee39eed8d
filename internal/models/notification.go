package models

import (
	"time"

	"gorm.io/datatypes"
)

// NotificationRecord logs one outbound notification attempt. Delivery itself
// is handled by an external collaborator; only its success signal is kept.
type NotificationRecord struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	UserID uint64 `gorm:"not null;index"`            // Recipient user ID.
	Kind   string `gorm:"type:varchar(64);not null"` // Notification kind tag.

	Payload   datatypes.JSON `gorm:"type:jsonb"`             // Kind-specific payload.
	Delivered bool           `gorm:"not null;default:false"` // Collaborator success signal.

	CreatedAt time.Time `gorm:"not null;autoCreateTime;index"` // Creation timestamp.
}
