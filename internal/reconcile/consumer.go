package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"log"

	"github.com/ApollonSMK/MEXperience-sub003/internal/domain"
	"github.com/ApollonSMK/MEXperience-sub003/internal/payments"
	"github.com/ApollonSMK/MEXperience-sub003/pkg/mq"
)

// Consumer drives the reconciler from the payment exchange: the webhook
// publishes payment.captured / payment.failed, this consumer applies
// them. The client confirmation endpoint races this path on purpose; the
// reconciler's idempotency decides the winner.
type Consumer struct {
	rec  *Reconciler
	cons *mq.Consumer
}

func NewConsumer(rec *Reconciler, cons *mq.Consumer) *Consumer {
	return &Consumer{rec: rec, cons: cons}
}

func (c *Consumer) Run(ctx context.Context) error {
	msgs, err := c.cons.Deliveries(ctx)
	if err != nil {
		return err
	}
	go func() {
		for d := range msgs {
			switch d.RoutingKey {
			case payments.RKPaymentCaptured:
				var evt payments.PaymentCaptured
				if err := json.Unmarshal(d.Body, &evt); err != nil {
					log.Printf("[payment-consumer] unmarshal error: %v", err)
					_ = d.Nack(false, false)
					continue
				}
				if evt.Data.PaymentRef == "" {
					log.Printf("[payment-consumer] event without payment_ref")
					_ = d.Ack(false)
					continue
				}
				if _, err := c.rec.Reconcile(ctx, evt.Data.PaymentRef); err != nil {
					if errors.Is(err, domain.ErrProviderUnavailable) {
						// transient: requeue so a later delivery retries
						log.Printf("[payment-consumer] reconcile %s: %v (requeue)", evt.Data.PaymentRef, err)
						_ = d.Nack(false, true)
						continue
					}
					// non-transient (bad metadata, unverified): park it
					log.Printf("[payment-consumer] reconcile %s: %v (drop)", evt.Data.PaymentRef, err)
					_ = d.Nack(false, false)
					continue
				}
				_ = d.Ack(false)
			case payments.RKPaymentFailed:
				var evt payments.PaymentFailedEvent
				if err := json.Unmarshal(d.Body, &evt); err != nil {
					log.Printf("[payment-consumer] unmarshal error: %v", err)
					_ = d.Nack(false, false)
					continue
				}
				if err := c.rec.MarkFailed(ctx, evt.Data.PaymentRef, evt.Data.Reason); err != nil {
					log.Printf("[payment-consumer] mark failed %s: %v", evt.Data.PaymentRef, err)
				}
				_ = d.Ack(false)
			default:
				_ = d.Ack(false)
			}
		}
	}()
	return nil
}
