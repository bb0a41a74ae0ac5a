package domain

import (
	"time"

	"gorm.io/datatypes"
)

type GiftCardStatus string

const (
	GiftCardActive   GiftCardStatus = "active"
	GiftCardRedeemed GiftCardStatus = "redeemed"
	GiftCardExpired  GiftCardStatus = "expired"
)

// GiftCard is a stored-value card. CurrentBalanceCents only moves down
// (admin correction aside) and CurrentBalanceCents <= InitialBalanceCents
// always. A nil RecipientEmail means a bearer/physical card.
type GiftCard struct {
	ID                  string `gorm:"primaryKey"`
	Code                string `gorm:"uniqueIndex"` // human-entered, e.g. GIFT-AB12-CD34
	InitialBalanceCents int64
	CurrentBalanceCents int64
	BuyerUserID         *string `gorm:"index"`
	RecipientEmail      *string
	Status              GiftCardStatus    `gorm:"index"`
	Meta                datatypes.JSONMap // sender/recipient display names, message
	PaymentRef          *string           `gorm:"uniqueIndex"` // nil for reseller-issued cards
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Invoice is the append-only sale record (POS, packs, subscriptions,
// gift card redemptions). Never mutated after creation.
type Invoice struct {
	ID          string  `gorm:"primaryKey"`
	UserID      *string `gorm:"index"`
	AmountCents int64
	Method      PaymentMethod
	Description string
	Items       datatypes.JSON
	PaymentRef  *string `gorm:"uniqueIndex"`
	CreatedAt   time.Time
}

type EmailLog struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	Type      string `gorm:"index"`
	Recipient string
	Subject   string
	MessageID string
	CreatedAt time.Time
}
