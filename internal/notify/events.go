package notify

import (
	"encoding/json"
	"fmt"
)

// Routing keys on the studio exchange. The reconciler publishes these
// fire-and-forget; the notify worker turns them into emails.
const (
	RKBookingConfirmed      = "booking.confirmed"
	RKGiftCardIssued        = "giftcard.issued"
	RKMinutesCredited       = "minutes.credited"
	RKSubscriptionActivated = "subscription.activated"
	RKPaymentFailed         = "payment.failed"
)

type BookingConfirmed struct {
	BookingID   string `json:"booking_id"`
	UserID      string `json:"user_id,omitempty"`
	Email       string `json:"email,omitempty"`
	ServiceName string `json:"service_name"`
	Date        string `json:"date"`
	Time        string `json:"time"`
	DurationMin int    `json:"duration_min"`
}

type GiftCardIssued struct {
	CardID         string `json:"card_id"`
	Code           string `json:"code"`
	AmountCents    int64  `json:"amount_cents"`
	RecipientEmail string `json:"recipient_email,omitempty"`
	SenderName     string `json:"sender_name,omitempty"`
	Message        string `json:"message,omitempty"`
}

// InvoiceID identifies the purchase, not the purchaser: the worker
// dedupes on it, so two packs bought by the same user stay two events.
type MinutesCredited struct {
	InvoiceID  string `json:"invoice_id"`
	UserID     string `json:"user_id"`
	Email      string `json:"email,omitempty"`
	Minutes    int    `json:"minutes"`
	NewBalance int    `json:"new_balance"`
}

type SubscriptionActivated struct {
	InvoiceID string `json:"invoice_id"`
	UserID    string `json:"user_id"`
	Email     string `json:"email,omitempty"`
	PlanName  string `json:"plan_name"`
	Minutes   int    `json:"minutes"`
}

type PaymentFailed struct {
	PaymentRef string `json:"payment_ref"`
	Reason     string `json:"reason,omitempty"`
}

func MustUnmarshal[T any](b []byte) (T, error) {
	var t T
	if err := json.Unmarshal(b, &t); err != nil {
		var zero T
		return zero, fmt.Errorf("decode payload failed: %w", err)
	}
	return t, nil
}
