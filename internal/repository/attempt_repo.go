package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ApollonSMK/MEXperience-sub003/internal/domain"
)

type AttemptRepo struct{ db *gorm.DB }

func NewAttemptRepo(db *gorm.DB) *AttemptRepo {
	return &AttemptRepo{db: db}
}

// Record mirrors a freshly created provider intent. Re-recording the same
// ref is a no-op (webhook retries).
func (r *AttemptRepo) Record(ctx context.Context, a *domain.PaymentAttempt) error {
	if a.Status == "" {
		a.Status = domain.AttemptInitiated
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(a).Error
}

func (r *AttemptRepo) MarkStatus(ctx context.Context, ref string, to domain.AttemptStatus) error {
	return r.db.WithContext(ctx).Model(&domain.PaymentAttempt{}).
		Where("ref = ?", ref).
		Update("status", to).Error
}

// Stale lists attempts older than the cutoff that never reached a
// terminal state; the sweep re-checks each against the provider.
func (r *AttemptRepo) Stale(ctx context.Context, olderThan time.Time, limit int) ([]domain.PaymentAttempt, error) {
	if limit <= 0 {
		limit = 100
	}
	var out []domain.PaymentAttempt
	err := r.db.WithContext(ctx).
		Where("status IN ?", []domain.AttemptStatus{domain.AttemptInitiated, domain.AttemptAwaiting}).
		Where("created_at < ?", olderThan).
		Order("created_at ASC").
		Limit(limit).
		Find(&out).Error
	return out, err
}
