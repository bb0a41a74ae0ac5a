// Package pricing turns transaction intents into the (amount, metadata)
// pair the payment provider needs: integer minor units and a string-only
// metadata map the reconciler can parse back without ambiguity.
package pricing

import (
	"math"

	"github.com/ApollonSMK/MEXperience-sub003/internal/domain"
)

// ToMinorUnits converts a major-unit amount (euros with cents) to integer
// cents, rounding half-up. The provider rejects fractional minor units and
// zero/negative amounts, so anything below one cent is invalid.
func ToMinorUnits(major float64) (int64, error) {
	if major < 0.01 {
		return 0, domain.ErrInvalidAmount
	}
	return int64(math.Round(major * 100)), nil
}

// ResolveAppointment prices a slot booking from the service catalog entry.
func ResolveAppointment(svc *domain.Service, userID, date, startTime string, method domain.PaymentMethod) (int64, map[string]string, error) {
	if svc == nil || date == "" || startTime == "" {
		return 0, nil, domain.ErrMissingField
	}
	md := AppointmentMeta{
		ServiceID:   svc.ID,
		UserID:      userID,
		Date:        date,
		Time:        startTime,
		DurationMin: svc.DurationMin,
		Method:      string(method),
	}.Encode()
	if svc.PriceCents <= 0 {
		return 0, nil, domain.ErrInvalidAmount
	}
	return svc.PriceCents, md, nil
}

// ResolveGiftCard prices a gift card purchase; the card's initial balance
// is the charged amount.
func ResolveGiftCard(amountMajor float64, buyerUserID, recipientEmail, senderName, recipientName, message string) (int64, map[string]string, error) {
	cents, err := ToMinorUnits(amountMajor)
	if err != nil {
		return 0, nil, err
	}
	md := GiftCardMeta{
		BuyerUserID:    buyerUserID,
		RecipientEmail: recipientEmail,
		SenderName:     senderName,
		RecipientName:  recipientName,
		Message:        message,
	}.Encode()
	return cents, md, nil
}

func ResolveMinutePack(pack *domain.MinutePack, userID string) (int64, map[string]string, error) {
	if pack == nil || userID == "" {
		return 0, nil, domain.ErrMissingField
	}
	if pack.PriceCents <= 0 {
		return 0, nil, domain.ErrInvalidAmount
	}
	md := MinutePackMeta{PackID: pack.ID, UserID: userID, Minutes: pack.Minutes}.Encode()
	return pack.PriceCents, md, nil
}

func ResolveSubscription(plan *domain.Plan, userID string) (int64, map[string]string, error) {
	if plan == nil || userID == "" {
		return 0, nil, domain.ErrMissingField
	}
	if plan.PriceCents <= 0 {
		return 0, nil, domain.ErrInvalidAmount
	}
	md := SubscriptionMeta{PlanID: plan.ID, UserID: userID, Minutes: plan.Minutes}.Encode()
	return plan.PriceCents, md, nil
}
