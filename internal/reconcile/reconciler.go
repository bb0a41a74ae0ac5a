// Package reconcile durably records the business effect of a payment once
// its success is verified. It is the single writer for bookings, gift
// cards and invoices born from payments, and the only component allowed
// to move the minute ledger on a payment's behalf.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/ApollonSMK/MEXperience-sub003/internal/domain"
	"github.com/ApollonSMK/MEXperience-sub003/internal/notify"
	"github.com/ApollonSMK/MEXperience-sub003/internal/payments"
	"github.com/ApollonSMK/MEXperience-sub003/internal/pricing"
	"github.com/ApollonSMK/MEXperience-sub003/internal/repository"
)

// Publisher is the slice of pkg/mq the reconciler needs; nil-able in
// tests.
type Publisher interface {
	PublishJSON(ctx context.Context, key string, v any) error
}

type Result struct {
	Kind      pricing.Kind `json:"kind"`
	Duplicate bool         `json:"duplicate"` // a prior call already reconciled this reference
	BookingID string       `json:"booking_id,omitempty"`
	GiftCard  string       `json:"gift_card_id,omitempty"`
	InvoiceID string       `json:"invoice_id,omitempty"`
}

type Reconciler struct {
	gw       payments.Gateway
	bookings *repository.BookingRepo
	ledger   *repository.LedgerRepo
	catalog  *repository.CatalogRepo
	attempts *repository.AttemptRepo
	pub      Publisher
}

func NewReconciler(
	gw payments.Gateway,
	bookings *repository.BookingRepo,
	ledger *repository.LedgerRepo,
	catalog *repository.CatalogRepo,
	attempts *repository.AttemptRepo,
	pub Publisher,
) *Reconciler {
	return &Reconciler{gw: gw, bookings: bookings, ledger: ledger, catalog: catalog, attempts: attempts, pub: pub}
}

// Reconcile verifies a payment reference against the provider and applies
// its business effect exactly once. The caller's claimed status is never
// trusted: both the client confirmation call and the webhook consumer end
// up here, and both get the same provider check. Calling it again with a
// reference that was already applied returns the prior result with
// Duplicate set: first writer wins, decided by the unique index on the
// payment reference.
func (r *Reconciler) Reconcile(ctx context.Context, paymentRef string) (*Result, error) {
	if paymentRef == "" {
		return nil, fmt.Errorf("payment reference: %w", domain.ErrMissingField)
	}

	v, err := r.gw.VerifyPayment(ctx, paymentRef)
	if err != nil {
		return nil, err
	}
	if !v.Succeeded {
		_ = r.attempts.MarkStatus(ctx, paymentRef, domain.AttemptAwaiting)
		log.Printf("[reconcile] ref=%s provider status=%s, refusing to reconcile", paymentRef, v.Status)
		return nil, fmt.Errorf("ref %s status %s: %w", paymentRef, v.Status, domain.ErrUnverifiedPayment)
	}

	kind, err := pricing.DecodeKind(v.Metadata)
	if err != nil {
		return nil, err
	}

	var res *Result
	switch kind {
	case pricing.KindAppointment:
		res, err = r.applyAppointment(ctx, v)
	case pricing.KindGiftCard:
		res, err = r.applyGiftCard(ctx, v)
	case pricing.KindMinutePack:
		res, err = r.applyMinutePack(ctx, v)
	case pricing.KindSubscription:
		res, err = r.applySubscription(ctx, v)
	}
	if err != nil {
		if errors.Is(err, domain.ErrSlotTaken) {
			// captured payment, slot gone to another payer: replaying
			// cannot fix this, so park the attempt for a human to settle
			if merr := r.attempts.MarkStatus(ctx, paymentRef, domain.AttemptManual); merr != nil {
				log.Printf("[reconcile] ref=%s mark manual: %v", paymentRef, merr)
			}
			log.Printf("[reconcile] ref=%s kind=%s paid but slot taken, parked for manual settlement", paymentRef, kind)
			return nil, err
		}
		// the payment itself is not reversed; the sweep picks these up
		// on its next pass (logged with enough context)
		log.Printf("[reconcile] ref=%s kind=%s apply failed: %v", paymentRef, kind, err)
		return nil, err
	}

	if err := r.attempts.MarkStatus(ctx, paymentRef, domain.AttemptReconciled); err != nil {
		log.Printf("[reconcile] ref=%s mark reconciled: %v", paymentRef, err)
	}
	return res, nil
}

func (r *Reconciler) applyAppointment(ctx context.Context, v payments.Verification) (*Result, error) {
	meta, err := pricing.DecodeAppointment(v.Metadata)
	if err != nil {
		return nil, err
	}
	ref := v.Ref
	b := &domain.Booking{
		ServiceID:   meta.ServiceID,
		Date:        meta.Date,
		StartTime:   meta.Time,
		DurationMin: meta.DurationMin,
		Status:      domain.BookingConfirmed,
		Method:      domain.PaymentMethod(meta.Method),
		PaymentRef:  &ref,
	}
	if meta.UserID != "" {
		uid := meta.UserID
		b.UserID = &uid
	}

	created, err := r.bookings.CreateOccupying(ctx, b)
	if errors.Is(err, domain.ErrDuplicateRef) {
		return &Result{Kind: pricing.KindAppointment, Duplicate: true, BookingID: created.ID}, nil
	}
	if err != nil {
		return nil, err
	}
	if err := r.bookings.LogAction(ctx, created.ID, "confirmed", "payment "+ref); err != nil {
		log.Printf("[reconcile] ref=%s appointment log: %v", ref, err)
	}

	// ledger adjustment after the authoritative row write: failures are
	// logged and tolerated, never rolled back; the booking row is the
	// source of truth and the sweep reconciles the rest
	if b.Method == domain.MethodMinutes && meta.UserID != "" {
		if _, err := r.ledger.DebitMinutes(ctx, meta.UserID, meta.DurationMin); err != nil {
			log.Printf("[reconcile] ref=%s minute debit user=%s: %v", ref, meta.UserID, err)
		}
	}

	r.publish(ctx, notify.RKBookingConfirmed, notify.BookingConfirmed{
		BookingID:   created.ID,
		UserID:      meta.UserID,
		Email:       r.emailOf(ctx, meta.UserID),
		ServiceName: r.serviceName(ctx, meta.ServiceID),
		Date:        meta.Date,
		Time:        meta.Time,
		DurationMin: meta.DurationMin,
	})
	return &Result{Kind: pricing.KindAppointment, BookingID: created.ID}, nil
}

func (r *Reconciler) applyGiftCard(ctx context.Context, v payments.Verification) (*Result, error) {
	meta, err := pricing.DecodeGiftCard(v.Metadata)
	if err != nil {
		return nil, err
	}
	ref := v.Ref
	card := &domain.GiftCard{
		Code:                NewGiftCode(),
		InitialBalanceCents: v.AmountCents,
		Status:              domain.GiftCardActive,
		PaymentRef:          &ref,
		Meta: datatypes.JSONMap{
			"sender_name":    meta.SenderName,
			"recipient_name": meta.RecipientName,
			"message":        meta.Message,
		},
	}
	if meta.BuyerUserID != "" {
		b := meta.BuyerUserID
		card.BuyerUserID = &b
	}
	if meta.RecipientEmail != "" {
		e := meta.RecipientEmail
		card.RecipientEmail = &e
	}

	created, err := r.ledger.CreateGiftCard(ctx, card)
	if errors.Is(err, domain.ErrDuplicateRef) {
		return &Result{Kind: pricing.KindGiftCard, Duplicate: true, GiftCard: created.ID}, nil
	}
	if err != nil {
		return nil, err
	}

	r.publish(ctx, notify.RKGiftCardIssued, notify.GiftCardIssued{
		CardID:         created.ID,
		Code:           created.Code,
		AmountCents:    created.InitialBalanceCents,
		RecipientEmail: meta.RecipientEmail,
		SenderName:     meta.SenderName,
		Message:        meta.Message,
	})
	return &Result{Kind: pricing.KindGiftCard, GiftCard: created.ID}, nil
}

func (r *Reconciler) applyMinutePack(ctx context.Context, v payments.Verification) (*Result, error) {
	meta, err := pricing.DecodeMinutePack(v.Metadata)
	if err != nil {
		return nil, err
	}
	ref := v.Ref
	uid := meta.UserID
	inv, err := r.ledger.CreateInvoice(ctx, &domain.Invoice{
		UserID:      &uid,
		AmountCents: v.AmountCents,
		Method:      domain.MethodOnline,
		Description: fmt.Sprintf("minute pack %s (%d min)", meta.PackID, meta.Minutes),
		PaymentRef:  &ref,
	})
	if errors.Is(err, domain.ErrDuplicateRef) {
		return &Result{Kind: pricing.KindMinutePack, Duplicate: true, InvoiceID: inv.ID}, nil
	}
	if err != nil {
		return nil, err
	}

	newBal, err := r.ledger.CreditMinutes(ctx, meta.UserID, meta.Minutes)
	if err != nil {
		log.Printf("[reconcile] ref=%s minute credit user=%s: %v", ref, meta.UserID, err)
	}

	r.publish(ctx, notify.RKMinutesCredited, notify.MinutesCredited{
		InvoiceID:  inv.ID,
		UserID:     meta.UserID,
		Email:      r.emailOf(ctx, meta.UserID),
		Minutes:    meta.Minutes,
		NewBalance: newBal,
	})
	return &Result{Kind: pricing.KindMinutePack, InvoiceID: inv.ID}, nil
}

func (r *Reconciler) applySubscription(ctx context.Context, v payments.Verification) (*Result, error) {
	meta, err := pricing.DecodeSubscription(v.Metadata)
	if err != nil {
		return nil, err
	}
	ref := v.Ref
	uid := meta.UserID
	planName := meta.PlanID
	if plan, perr := r.catalog.PlanByID(ctx, meta.PlanID); perr == nil {
		planName = plan.Name
	}

	inv, err := r.ledger.CreateInvoice(ctx, &domain.Invoice{
		UserID:      &uid,
		AmountCents: v.AmountCents,
		Method:      domain.MethodOnline,
		Description: fmt.Sprintf("subscription plan %s", planName),
		PaymentRef:  &ref,
	})
	if errors.Is(err, domain.ErrDuplicateRef) {
		return &Result{Kind: pricing.KindSubscription, Duplicate: true, InvoiceID: inv.ID}, nil
	}
	if err != nil {
		return nil, err
	}

	if err := r.ledger.ActivatePlan(ctx, meta.UserID, meta.PlanID, v.SubscriptionID); err != nil {
		log.Printf("[reconcile] ref=%s activate plan user=%s: %v", ref, meta.UserID, err)
	}
	if _, err := r.ledger.CreditMinutes(ctx, meta.UserID, meta.Minutes); err != nil {
		log.Printf("[reconcile] ref=%s plan minute credit user=%s: %v", ref, meta.UserID, err)
	}

	r.publish(ctx, notify.RKSubscriptionActivated, notify.SubscriptionActivated{
		InvoiceID: inv.ID,
		UserID:    meta.UserID,
		Email:     r.emailOf(ctx, meta.UserID),
		PlanName:  planName,
		Minutes:   meta.Minutes,
	})
	return &Result{Kind: pricing.KindSubscription, InvoiceID: inv.ID}, nil
}

// MarkFailed records a terminal provider failure for the attempt and
// relays it to the notifier.
func (r *Reconciler) MarkFailed(ctx context.Context, paymentRef, reason string) error {
	if err := r.attempts.MarkStatus(ctx, paymentRef, domain.AttemptFailed); err != nil {
		return err
	}
	r.publish(ctx, notify.RKPaymentFailed, notify.PaymentFailed{PaymentRef: paymentRef, Reason: reason})
	return nil
}

// publish is fire-and-forget: a down broker must never block or fail the
// payment path.
func (r *Reconciler) publish(ctx context.Context, key string, v any) {
	if r.pub == nil {
		return
	}
	if err := r.pub.PublishJSON(ctx, key, v); err != nil {
		log.Printf("[reconcile] publish %s: %v", key, err)
	}
}

func (r *Reconciler) emailOf(ctx context.Context, userID string) string {
	if userID == "" {
		return ""
	}
	p, err := r.ledger.Profile(ctx, userID)
	if err != nil {
		return ""
	}
	return p.Email
}

func (r *Reconciler) serviceName(ctx context.Context, serviceID string) string {
	svc, err := r.catalog.ServiceByID(ctx, serviceID)
	if err != nil {
		return serviceID
	}
	return svc.Name
}

// NewGiftCode mints a GIFT-XXXX-XXXX code from uuid entropy.
func NewGiftCode() string {
	u := strings.ToUpper(uuid.NewString()) // 8-4-4-4-12 hex
	return "GIFT-" + u[0:4] + "-" + u[4:8]
}
