package notify

import (
	"context"
	"encoding/json"

	"github.com/clientsure/backend/internal/models"

	log "github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Notification kinds emitted by the engine.
const (
	KindExpiryWarning       = "expiry_warning"
	KindSubscriptionExpired = "subscription_expired"
	KindWinbackReminder     = "winback_reminder"
	KindBonusGranted        = "bonus_granted"
	KindSubscriptionStarted = "subscription_started"
	KindTokensCredited      = "tokens_credited"
)

// Notifier hands a notification to the delivery collaborator and reports its
// success signal. Delivery internals (templates, retries) live outside this
// service.
type Notifier interface {
	Send(ctx context.Context, userID uint64, kind string, payload map[string]any) bool
}

// Recorder logs every notification attempt to the database and delegates
// delivery to an optional sink. With a nil sink attempts are recorded as
// delivered, which keeps environments without a mail collaborator working.
type Recorder struct {
	db   *gorm.DB
	sink Notifier
}

// NewRecorder constructs a Recorder around an optional delivery sink.
func NewRecorder(db *gorm.DB, sink Notifier) *Recorder {
	return &Recorder{db: db, sink: sink}
}

// Send records the attempt and forwards it to the sink.
func (r *Recorder) Send(ctx context.Context, userID uint64, kind string, payload map[string]any) bool {
	delivered := true
	if r.sink != nil {
		delivered = r.sink.Send(ctx, userID, kind, payload)
	}

	raw, errMarshal := json.Marshal(payload)
	if errMarshal != nil {
		raw = []byte("{}")
	}
	record := models.NotificationRecord{
		UserID:    userID,
		Kind:      kind,
		Payload:   datatypes.JSON(raw),
		Delivered: delivered,
	}
	if r.db != nil {
		if errCreate := r.db.WithContext(ctx).Create(&record).Error; errCreate != nil {
			log.WithError(errCreate).Warnf("notify: record %s for user %d failed", kind, userID)
		}
	}
	if !delivered {
		log.Warnf("notify: delivery of %s to user %d reported failure", kind, userID)
	}
	return delivered
}

var _ Notifier = (*Recorder)(nil)
