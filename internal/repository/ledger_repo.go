package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ApollonSMK/MEXperience-sub003/internal/domain"
)

type LedgerRepo struct{ db *gorm.DB }

func NewLedgerRepo(db *gorm.DB) *LedgerRepo {
	return &LedgerRepo{db: db}
}

// DebitMinutes takes minutes from a profile as a single conditional
// UPDATE ("decrement if balance >= amount"), so two devices spending the
// last minutes at once cannot drive the balance negative.
func (r *LedgerRepo) DebitMinutes(ctx context.Context, userID string, minutes int) (newBalance int, err error) {
	if minutes <= 0 {
		return 0, domain.ErrInvalidAmount
	}
	res := r.db.WithContext(ctx).Model(&domain.Profile{}).
		Where("user_id = ? AND minutes_balance >= ?", userID, minutes).
		UpdateColumn("minutes_balance", gorm.Expr("minutes_balance - ?", minutes))
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		// distinguish a missing profile from an insufficient one
		var p domain.Profile
		if ferr := r.db.WithContext(ctx).First(&p, "user_id = ?", userID).Error; ferr != nil {
			if errors.Is(ferr, gorm.ErrRecordNotFound) {
				return 0, domain.ErrNotFound
			}
			return 0, ferr
		}
		return p.MinutesBalance, domain.ErrInsufficientBalance
	}
	return r.balance(ctx, userID)
}

func (r *LedgerRepo) CreditMinutes(ctx context.Context, userID string, minutes int) (newBalance int, err error) {
	if minutes <= 0 {
		return 0, domain.ErrInvalidAmount
	}
	res := r.db.WithContext(ctx).Model(&domain.Profile{}).
		Where("user_id = ?", userID).
		UpdateColumn("minutes_balance", gorm.Expr("minutes_balance + ?", minutes))
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, domain.ErrNotFound
	}
	return r.balance(ctx, userID)
}

// RefundMinutes is the admin bonus path: it credits the spendable pool and
// bumps the refunded_minutes audit counter in one statement.
func (r *LedgerRepo) RefundMinutes(ctx context.Context, userID string, minutes int) (newBalance int, err error) {
	if minutes <= 0 {
		return 0, domain.ErrInvalidAmount
	}
	res := r.db.WithContext(ctx).Model(&domain.Profile{}).
		Where("user_id = ?", userID).
		UpdateColumns(map[string]any{
			"minutes_balance":  gorm.Expr("minutes_balance + ?", minutes),
			"refunded_minutes": gorm.Expr("refunded_minutes + ?", minutes),
		})
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, domain.ErrNotFound
	}
	return r.balance(ctx, userID)
}

func (r *LedgerRepo) balance(ctx context.Context, userID string) (int, error) {
	var p domain.Profile
	if err := r.db.WithContext(ctx).First(&p, "user_id = ?", userID).Error; err != nil {
		return 0, err
	}
	return p.MinutesBalance, nil
}

type RedeemResult struct {
	CardID     string
	NewBalance int64
	Status     domain.GiftCardStatus
	InvoiceID  string
}

// RedeemGiftCard decrements a card and appends the audit invoice in one
// transaction. The decrement itself is conditional on status and balance,
// so concurrent redemptions of the same code cannot overdraw it.
// autoRedeem is the zero-balance policy: when true a card landing on zero
// flips to "redeemed", otherwise it stays active for later top-ups.
func (r *LedgerRepo) RedeemGiftCard(ctx context.Context, code string, amountCents int64, userID *string, autoRedeem bool) (*RedeemResult, error) {
	if amountCents <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	var out RedeemResult
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&domain.GiftCard{}).
			Where("code = ? AND status = ? AND current_balance_cents >= ?", code, domain.GiftCardActive, amountCents).
			UpdateColumn("current_balance_cents", gorm.Expr("current_balance_cents - ?", amountCents))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var card domain.GiftCard
			if err := tx.First(&card, "code = ?", code).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return domain.ErrNotFound
				}
				return err
			}
			if card.Status != domain.GiftCardActive {
				return domain.ErrGiftCardInactive
			}
			return domain.ErrInsufficientFunds
		}

		var card domain.GiftCard
		if err := tx.First(&card, "code = ?", code).Error; err != nil {
			return err
		}
		if autoRedeem && card.CurrentBalanceCents == 0 {
			card.Status = domain.GiftCardRedeemed
			if err := tx.Save(&card).Error; err != nil {
				return err
			}
		}

		inv := domain.Invoice{
			ID:          uuid.NewString(),
			UserID:      userID,
			AmountCents: amountCents,
			Method:      domain.MethodGift,
			Description: fmt.Sprintf("gift card %s redemption", code),
		}
		if err := tx.Create(&inv).Error; err != nil {
			return err
		}
		out = RedeemResult{CardID: card.ID, NewBalance: card.CurrentBalanceCents, Status: card.Status, InvoiceID: inv.ID}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateGiftCard inserts a payment-gated card. A duplicate payment_ref
// returns the prior card with ErrDuplicateRef (idempotent under retries);
// a duplicate code is surfaced as ErrSlotTaken-style conflict for the
// caller to regenerate.
func (r *LedgerRepo) CreateGiftCard(ctx context.Context, card *domain.GiftCard) (*domain.GiftCard, error) {
	if card.ID == "" {
		card.ID = uuid.NewString()
	}
	if card.Status == "" {
		card.Status = domain.GiftCardActive
	}
	card.CurrentBalanceCents = card.InitialBalanceCents
	err := r.db.WithContext(ctx).Create(card).Error
	if err == nil {
		return card, nil
	}
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, err
	}
	if card.PaymentRef != nil {
		if prior, ferr := r.GiftCardByPaymentRef(ctx, *card.PaymentRef); ferr == nil {
			return prior, domain.ErrDuplicateRef
		}
	}
	return nil, fmt.Errorf("gift card code %s: %w", card.Code, gorm.ErrDuplicatedKey)
}

func (r *LedgerRepo) GiftCardByCode(ctx context.Context, code string) (*domain.GiftCard, error) {
	var card domain.GiftCard
	if err := r.db.WithContext(ctx).First(&card, "code = ?", code).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &card, nil
}

func (r *LedgerRepo) GiftCardByPaymentRef(ctx context.Context, ref string) (*domain.GiftCard, error) {
	var card domain.GiftCard
	if err := r.db.WithContext(ctx).First(&card, "payment_ref = ?", ref).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &card, nil
}

// CreateInvoice appends a sale row. Same duplicate-ref contract as the
// booking and gift card inserts.
func (r *LedgerRepo) CreateInvoice(ctx context.Context, inv *domain.Invoice) (*domain.Invoice, error) {
	if inv.ID == "" {
		inv.ID = uuid.NewString()
	}
	err := r.db.WithContext(ctx).Create(inv).Error
	if err == nil {
		return inv, nil
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) && inv.PaymentRef != nil {
		if prior, ferr := r.InvoiceByPaymentRef(ctx, *inv.PaymentRef); ferr == nil {
			return prior, domain.ErrDuplicateRef
		}
	}
	return nil, err
}

func (r *LedgerRepo) InvoiceByPaymentRef(ctx context.Context, ref string) (*domain.Invoice, error) {
	var inv domain.Invoice
	if err := r.db.WithContext(ctx).First(&inv, "payment_ref = ?", ref).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &inv, nil
}

func (r *LedgerRepo) Profile(ctx context.Context, userID string) (*domain.Profile, error) {
	var p domain.Profile
	if err := r.db.WithContext(ctx).First(&p, "user_id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// ActivatePlan sets the plan assignment and Stripe mirror fields.
func (r *LedgerRepo) ActivatePlan(ctx context.Context, userID, planID, stripeSubID string) error {
	res := r.db.WithContext(ctx).Model(&domain.Profile{}).
		Where("user_id = ?", userID).
		Updates(map[string]any{
			"plan_id":                planID,
			"stripe_subscription_id": stripeSubID,
			"cancel_at_period_end":   false,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// MarkCancelAtPeriodEnd mirrors the provider's flag; the plan stays active
// until the period closes.
func (r *LedgerRepo) MarkCancelAtPeriodEnd(ctx context.Context, userID string) error {
	res := r.db.WithContext(ctx).Model(&domain.Profile{}).
		Where("user_id = ?", userID).
		Update("cancel_at_period_end", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ClearPlan is the immediate termination: plan assignment gone, minute
// balance zeroed, mirror fields reset.
func (r *LedgerRepo) ClearPlan(ctx context.Context, userID string) error {
	res := r.db.WithContext(ctx).Model(&domain.Profile{}).
		Where("user_id = ?", userID).
		Updates(map[string]any{
			"plan_id":                nil,
			"stripe_subscription_id": "",
			"cancel_at_period_end":   false,
			"minutes_balance":        0,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
