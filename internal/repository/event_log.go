package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/ApollonSMK/MEXperience-sub003/internal/domain"
)

// EventLog dedupes consumed MQ deliveries. The primary key on the event
// id makes the mark an atomic insert-if-absent, so two workers racing the
// same redelivery agree on one consumer.
type EventLog struct{ db *gorm.DB }

func NewEventLog(db *gorm.DB) *EventLog {
	return &EventLog{db: db}
}

// MarkConsumed records an event id; a second call for the same id reports
// consumed=true without writing.
func (r *EventLog) MarkConsumed(ctx context.Context, eventID, eventKey string) (consumed bool, err error) {
	rec := domain.EventConsumed{ID: eventID, EventKey: eventKey, ProcessedAt: time.Now().UTC()}
	err = r.db.WithContext(ctx).Create(&rec).Error
	if err == nil {
		return false, nil
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true, nil
	}
	return false, err
}
