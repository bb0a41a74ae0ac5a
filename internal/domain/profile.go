package domain

import "time"

// Profile carries the per-user minute pool and the Stripe mirror fields.
//
// MinutesBalance never goes negative: every debit is a conditional UPDATE
// at the store, not a read-modify-write. RefundedMinutes is an additive
// audit counter; a refund credit bumps both columns so the spendable pool
// stays a single column.
type Profile struct {
	UserID               string `gorm:"primaryKey"`
	Email                string `gorm:"index"`
	FullName             string
	MinutesBalance       int
	RefundedMinutes      int
	PlanID               *string
	StripeCustomerID     string
	StripeSubscriptionID string
	CancelAtPeriodEnd    bool
	IsAdmin              bool
	IsReseller           bool
	CreatedAt            time.Time
	UpdatedAt            time.Time
}
