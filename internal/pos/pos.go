// Package pos is the staff point-of-sale: walk-in sales paid by cash,
// card-at-reception, gift card or minutes. Every sale appends an Invoice;
// gift and minutes sales also move the matching ledger.
package pos

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ApollonSMK/MEXperience-sub003/internal/domain"
	"github.com/ApollonSMK/MEXperience-sub003/internal/repository"
)

type SaleItem struct {
	Name       string `json:"name"`
	Quantity   int    `json:"quantity"`
	PriceCents int64  `json:"price_cents"`
}

type SaleInput struct {
	UserID       *string
	Method       domain.PaymentMethod
	Items        []SaleItem
	GiftCardCode string // required when Method is gift
	Minutes      int    // required when Method is minutes
}

type SaleResult struct {
	InvoiceID       string `json:"invoice_id"`
	AmountCents     int64  `json:"amount_cents"`
	GiftCardBalance *int64 `json:"gift_card_balance,omitempty"`
	MinutesBalance  *int   `json:"minutes_balance,omitempty"`
}

type Register struct {
	ledger             *repository.LedgerRepo
	giftCardAutoRedeem bool
}

func NewRegister(ledger *repository.LedgerRepo, giftCardAutoRedeem bool) *Register {
	return &Register{ledger: ledger, giftCardAutoRedeem: giftCardAutoRedeem}
}

// Sell validates the sale, settles its payment side, and appends the
// invoice. Cash and reception-card sales have no ledger side; gift sales
// redeem the card (the redeem writes its own audit invoice, so the sale
// invoice here carries the item detail); minutes sales debit the pool.
func (r *Register) Sell(ctx context.Context, in SaleInput) (*SaleResult, error) {
	if len(in.Items) == 0 {
		return nil, domain.ErrMissingField
	}
	var total int64
	for _, it := range in.Items {
		if it.Quantity <= 0 || it.PriceCents < 0 {
			return nil, domain.ErrInvalidAmount
		}
		total += int64(it.Quantity) * it.PriceCents
	}
	if total <= 0 && in.Method != domain.MethodMinutes {
		return nil, domain.ErrInvalidAmount
	}

	out := &SaleResult{AmountCents: total}
	switch in.Method {
	case domain.MethodCash, domain.MethodCard, domain.MethodReception:
		// settled physically at the desk
	case domain.MethodGift:
		if in.GiftCardCode == "" {
			return nil, domain.ErrMissingField
		}
		red, err := r.ledger.RedeemGiftCard(ctx, in.GiftCardCode, total, in.UserID, r.giftCardAutoRedeem)
		if err != nil {
			return nil, err
		}
		out.GiftCardBalance = &red.NewBalance
	case domain.MethodMinutes:
		if in.UserID == nil || in.Minutes <= 0 {
			return nil, domain.ErrMissingField
		}
		bal, err := r.ledger.DebitMinutes(ctx, *in.UserID, in.Minutes)
		if err != nil {
			return nil, err
		}
		out.MinutesBalance = &bal
	default:
		return nil, fmt.Errorf("payment method %q: %w", in.Method, domain.ErrMissingField)
	}

	items, err := json.Marshal(in.Items)
	if err != nil {
		return nil, err
	}
	inv, err := r.ledger.CreateInvoice(ctx, &domain.Invoice{
		UserID:      in.UserID,
		AmountCents: total,
		Method:      in.Method,
		Description: describe(in.Items),
		Items:       items,
	})
	if err != nil {
		return nil, err
	}
	out.InvoiceID = inv.ID
	return out, nil
}

func describe(items []SaleItem) string {
	if len(items) == 1 {
		return fmt.Sprintf("%dx %s", items[0].Quantity, items[0].Name)
	}
	return fmt.Sprintf("%d items", len(items))
}
