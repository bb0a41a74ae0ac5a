package domain

import (
	"time"

	"gorm.io/datatypes"
)

// Service is a bookable treatment. SlotTemplate maps lowercase weekday
// names to the day's bookable "HH:MM" start times, e.g.
// {"monday": ["10:00","10:45"], ...}; a missing weekday means closed.
type Service struct {
	ID           string `gorm:"primaryKey"`
	Slug         string `gorm:"uniqueIndex"`
	Name         string
	DurationMin  int
	PriceCents   int64
	Maintenance  bool
	SlotTemplate datatypes.JSON
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Plan struct {
	ID            string `gorm:"primaryKey"`
	Name          string
	Minutes       int // credited per billing cycle
	PriceCents    int64
	StripePriceID string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type MinutePack struct {
	ID         string `gorm:"primaryKey"`
	Name       string
	Minutes    int
	PriceCents int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type AttemptStatus string

const (
	AttemptInitiated  AttemptStatus = "initiated"
	AttemptAwaiting   AttemptStatus = "awaiting"
	AttemptReconciled AttemptStatus = "reconciled"
	AttemptFailed     AttemptStatus = "failed"
	AttemptAbandoned  AttemptStatus = "abandoned"
	// AttemptManual: the payment is captured but its effect cannot be
	// applied (e.g. the slot went to another payer). Terminal for the
	// sweep; a human settles it with a refund or a re-booking.
	AttemptManual AttemptStatus = "manual"
)

// PaymentAttempt mirrors a provider intent by reference only. The provider
// owns the intent lifecycle; this row exists so the sweep can find
// attempts that never received a terminal signal.
type PaymentAttempt struct {
	Ref         string `gorm:"primaryKey"` // provider intent id
	Kind        string `gorm:"index"`      // appointment | gift_card | minute_pack | subscription
	AmountCents int64
	Currency    string
	Status      AttemptStatus `gorm:"index"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
