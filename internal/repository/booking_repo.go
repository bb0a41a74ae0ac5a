package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ApollonSMK/MEXperience-sub003/internal/domain"
)

type BookingRepo struct{ db *gorm.DB }

func NewBookingRepo(db *gorm.DB) *BookingRepo {
	return &BookingRepo{db: db}
}

// CreateOccupying inserts a booking that occupies its slot. The unique
// index on slot_key is the double-booking guard; the one on payment_ref is
// the reconciliation idempotency key. On a duplicate-key error the
// payment_ref is re-queried to decide which index fired: an existing row
// for the same reference means a lost idempotency race (the prior row is
// returned with ErrDuplicateRef), otherwise the slot is taken.
func (r *BookingRepo) CreateOccupying(ctx context.Context, b *domain.Booking) (*domain.Booking, error) {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if b.Status.ActiveSlot() {
		k := domain.SlotKey(b.ServiceID, b.Date, b.StartTime)
		b.SlotKey = &k
	}
	err := r.db.WithContext(ctx).Create(b).Error
	if err == nil {
		return b, nil
	}
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, err
	}
	if b.PaymentRef != nil {
		if prior, ferr := r.ByPaymentRef(ctx, *b.PaymentRef); ferr == nil {
			return prior, domain.ErrDuplicateRef
		}
	}
	return nil, domain.ErrSlotTaken
}

func (r *BookingRepo) ByID(ctx context.Context, id string) (*domain.Booking, error) {
	var b domain.Booking
	if err := r.db.WithContext(ctx).First(&b, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &b, nil
}

func (r *BookingRepo) ByPaymentRef(ctx context.Context, ref string) (*domain.Booking, error) {
	var b domain.Booking
	if err := r.db.WithContext(ctx).First(&b, "payment_ref = ?", ref).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &b, nil
}

// OccupiedTimes returns the start times holding the slot for a service on
// a date. Cancelled bookings carry a NULL slot_key, so they fall out here
// and the slot is bookable again.
func (r *BookingRepo) OccupiedTimes(ctx context.Context, serviceID, date string) ([]string, error) {
	var times []string
	err := r.db.WithContext(ctx).Model(&domain.Booking{}).
		Where("service_id = ? AND date = ? AND slot_key IS NOT NULL", serviceID, date).
		Where("status IN ?", []domain.BookingStatus{domain.BookingPending, domain.BookingConfirmed}).
		Order("start_time ASC").
		Pluck("start_time", &times).Error
	return times, err
}

// CheckIn moves CONFIRMED -> COMPLETED and appends the appointment log row
// in the same transaction.
func (r *BookingRepo) CheckIn(ctx context.Context, id string) (*domain.Booking, error) {
	var b domain.Booking
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&b, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrNotFound
			}
			return err
		}
		if b.Status != domain.BookingConfirmed {
			return domain.ErrInvalidTransition
		}
		b.Status = domain.BookingCompleted
		if err := tx.Save(&b).Error; err != nil {
			return err
		}
		return tx.Create(&domain.AppointmentLog{BookingID: b.ID, Action: "checked_in"}).Error
	})
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// Cancel is terminal and frees the slot (slot_key NULLed so a re-booking
// can take it).
func (r *BookingRepo) Cancel(ctx context.Context, id, note string) (*domain.Booking, error) {
	var b domain.Booking
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&b, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrNotFound
			}
			return err
		}
		if b.Status == domain.BookingCancelled {
			return nil
		}
		b.Status = domain.BookingCancelled
		b.SlotKey = nil
		if err := tx.Save(&b).Error; err != nil {
			return err
		}
		return tx.Create(&domain.AppointmentLog{BookingID: b.ID, Action: "cancelled", Note: note}).Error
	})
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *BookingRepo) LogAction(ctx context.Context, bookingID, action, note string) error {
	return r.db.WithContext(ctx).Create(&domain.AppointmentLog{BookingID: bookingID, Action: action, Note: note}).Error
}

func (r *BookingRepo) List(ctx context.Context, page, size int, userID, serviceID, date string) ([]domain.Booking, int64, error) {
	if size <= 0 {
		size = 20
	}
	if page < 0 {
		page = 0
	}
	qb := r.db.WithContext(ctx).Model(&domain.Booking{})
	if userID != "" {
		qb = qb.Where("user_id = ?", userID)
	}
	if serviceID != "" {
		qb = qb.Where("service_id = ?", serviceID)
	}
	if date != "" {
		qb = qb.Where("date = ?", date)
	}
	var total int64
	if err := qb.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var out []domain.Booking
	if err := qb.Order("date ASC, start_time ASC").Limit(size).Offset(page * size).Find(&out).Error; err != nil {
		return nil, 0, err
	}
	return out, total, nil
}
