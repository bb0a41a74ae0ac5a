// Package payments wraps the Stripe SDK. The gateway never touches local
// persisted state (the reconciler is the single writer) and never retries;
// callers own retry policy. Every provider call runs under a bounded
// timeout and surfaces ErrProviderUnavailable past it.
package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"

	"github.com/ApollonSMK/MEXperience-sub003/internal/domain"
)

type IntentRef struct {
	ID           string
	ClientSecret string
}

// Verification is the provider's authoritative view of one payment.
type Verification struct {
	Ref         string
	Succeeded   bool
	Canceled    bool
	Status      string
	AmountCents int64
	Currency    string
	Metadata    map[string]string
	// Set when the payment belongs to a subscription invoice.
	SubscriptionID string
}

type SubscriptionState struct {
	ID                string
	Status            string
	CancelAtPeriodEnd bool
}

// Gateway is what the reconciler and handlers consume; tests inject a
// fake, production wires StripeGateway.
type Gateway interface {
	CreateIntent(ctx context.Context, amountCents int64, currency string, metadata map[string]string) (IntentRef, error)
	VerifyPayment(ctx context.Context, ref string) (Verification, error)
	CancelSubscription(ctx context.Context, subscriptionID string, immediate bool) (SubscriptionState, error)
}

type StripeGateway struct {
	sc      *client.API
	timeout time.Duration
}

func NewStripeGateway(secretKey string) *StripeGateway {
	sc := &client.API{}
	sc.Init(secretKey, nil)
	return &StripeGateway{sc: sc, timeout: 15 * time.Second}
}

func (g *StripeGateway) CreateIntent(ctx context.Context, amountCents int64, currency string, metadata map[string]string) (IntentRef, error) {
	if amountCents <= 0 {
		return IntentRef{}, domain.ErrInvalidAmount
	}
	if currency == "" {
		return IntentRef{}, domain.ErrMissingField
	}
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	params := &stripe.PaymentIntentParams{
		Params:   stripe.Params{Context: ctx},
		Amount:   stripe.Int64(amountCents),
		Currency: stripe.String(currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}
	pi, err := g.sc.PaymentIntents.New(params)
	if err != nil {
		return IntentRef{}, providerErr("create intent", err)
	}
	return IntentRef{ID: pi.ID, ClientSecret: pi.ClientSecret}, nil
}

func (g *StripeGateway) VerifyPayment(ctx context.Context, ref string) (Verification, error) {
	if ref == "" {
		return Verification{}, domain.ErrMissingField
	}
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	params := &stripe.PaymentIntentParams{Params: stripe.Params{Context: ctx}}
	// intents paid against a subscription invoice carry the subscription
	// only through the invoice; expand it so the plan mirror gets the id
	params.AddExpand("invoice")
	pi, err := g.sc.PaymentIntents.Get(ref, params)
	if err != nil {
		return Verification{}, providerErr("retrieve intent", err)
	}
	v := Verification{
		Ref:         pi.ID,
		Succeeded:   pi.Status == stripe.PaymentIntentStatusSucceeded,
		Canceled:    pi.Status == stripe.PaymentIntentStatusCanceled,
		Status:      string(pi.Status),
		AmountCents: pi.Amount,
		Currency:    string(pi.Currency),
		Metadata:    pi.Metadata,
	}
	if pi.Invoice != nil && pi.Invoice.Subscription != nil {
		v.SubscriptionID = pi.Invoice.Subscription.ID
	}
	return v, nil
}

func (g *StripeGateway) CancelSubscription(ctx context.Context, subscriptionID string, immediate bool) (SubscriptionState, error) {
	if subscriptionID == "" {
		return SubscriptionState{}, domain.ErrMissingField
	}
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	var sub *stripe.Subscription
	var err error
	if immediate {
		sub, err = g.sc.Subscriptions.Cancel(subscriptionID, &stripe.SubscriptionCancelParams{
			Params: stripe.Params{Context: ctx},
		})
	} else {
		sub, err = g.sc.Subscriptions.Update(subscriptionID, &stripe.SubscriptionParams{
			Params:            stripe.Params{Context: ctx},
			CancelAtPeriodEnd: stripe.Bool(true),
		})
	}
	if err != nil {
		return SubscriptionState{}, providerErr("cancel subscription", err)
	}
	return SubscriptionState{
		ID:                sub.ID,
		Status:            string(sub.Status),
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
	}, nil
}

// providerErr keeps Stripe internals out of what callers surface to
// users; the original error stays in the chain for logs.
func providerErr(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: timeout: %w", op, domain.ErrProviderUnavailable)
	}
	return fmt.Errorf("%s: %v: %w", op, err, domain.ErrProviderUnavailable)
}
