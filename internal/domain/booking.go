package domain

import "time"

type BookingStatus string

const (
	BookingPending   BookingStatus = "PENDING"
	BookingConfirmed BookingStatus = "CONFIRMED"
	BookingCompleted BookingStatus = "COMPLETED"
	BookingCancelled BookingStatus = "CANCELLED"
)

type PaymentMethod string

const (
	MethodCard      PaymentMethod = "card"
	MethodMinutes   PaymentMethod = "minutes"
	MethodReception PaymentMethod = "reception"
	MethodOnline    PaymentMethod = "online"
	MethodGift      PaymentMethod = "gift"
	MethodCash      PaymentMethod = "cash"
	MethodBlocked   PaymentMethod = "blocked"
)

// Booking is one appointment slot for one service.
//
// SlotKey is "<service_id>|<date>|<time>" while the booking occupies its
// slot and NULL once cancelled; the unique index on it is the actual
// double-booking guard (capacity 1), the availability checker is only a
// hint. PaymentRef carries the provider reference and its unique index is
// the reconciliation idempotency key.
type Booking struct {
	ID          string        `gorm:"primaryKey"`
	UserID      *string       `gorm:"index"` // nil for guest/manual bookings
	ServiceID   string        `gorm:"index"`
	Date        string        `gorm:"index"` // "2006-01-02"
	StartTime   string        // "15:04"
	DurationMin int
	Status      BookingStatus `gorm:"index"`
	Method      PaymentMethod
	PaymentRef  *string `gorm:"uniqueIndex"`
	SlotKey     *string `gorm:"uniqueIndex"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ActiveSlot reports whether the booking's status still occupies its slot.
func (s BookingStatus) ActiveSlot() bool {
	return s == BookingPending || s == BookingConfirmed || s == BookingCompleted
}

func SlotKey(serviceID, date, startTime string) string {
	return serviceID + "|" + date + "|" + startTime
}

type AppointmentLog struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	BookingID string `gorm:"index"`
	Action    string // "confirmed" | "checked_in" | "cancelled" | "manual"
	Note      string
	CreatedAt time.Time
}

// EventConsumed dedupes MQ deliveries on the consuming side.
type EventConsumed struct {
	ID          string `gorm:"primaryKey"` // event unique id (payment ref or composed key)
	EventKey    string `gorm:"index"`      // e.g. payment.captured
	ProcessedAt time.Time
}
