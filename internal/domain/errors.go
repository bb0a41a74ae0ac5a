package domain

import "errors"

// Validation / lookup
var (
	ErrNotFound           = errors.New("not_found")
	ErrMissingField       = errors.New("missing_required_field")
	ErrInvalidAmount      = errors.New("invalid_amount")
	ErrPastDate           = errors.New("date_in_past")
	ErrServiceUnavailable = errors.New("service_in_maintenance")
)

// Conflicts
var (
	ErrSlotTaken         = errors.New("slot_taken")
	ErrDuplicateRef      = errors.New("duplicate_payment_reference")
	ErrInvalidTransition = errors.New("invalid_status_transition")
)

// Ledger
var (
	ErrInsufficientBalance = errors.New("insufficient_minute_balance")
	ErrInsufficientFunds   = errors.New("insufficient_gift_card_funds")
	ErrGiftCardInactive    = errors.New("gift_card_inactive")
	ErrNoActivePlan        = errors.New("no_active_plan")
)

// Provider / persistence
var (
	ErrProviderUnavailable = errors.New("payment_provider_unavailable")
	ErrUnverifiedPayment   = errors.New("payment_not_verified")
)
