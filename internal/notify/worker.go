package notify

import (
	"context"
	"fmt"
	"log"

	amqp "github.com/rabbitmq/amqp091-go"
	"gorm.io/gorm"

	"github.com/ApollonSMK/MEXperience-sub003/internal/domain"
	"github.com/ApollonSMK/MEXperience-sub003/internal/repository"
	"github.com/ApollonSMK/MEXperience-sub003/pkg/mq"
)

// Worker consumes studio events and turns them into notifications. Every
// send lands in email_logs; deliveries are deduped through the
// events_consumed table so a requeued message never mails twice. The
// dedupe entity id is the event's own record (booking, card, invoice),
// never the recipient: the same user buying twice is two events.
type Worker struct {
	cons     *mq.Consumer
	notifier Notifier
	db       *gorm.DB
	events   *repository.EventLog
}

func NewWorker(cons *mq.Consumer, n Notifier, db *gorm.DB) *Worker {
	return &Worker{cons: cons, notifier: n, db: db, events: repository.NewEventLog(db)}
}

func (w *Worker) Run(ctx context.Context) error {
	msgs, err := w.cons.Deliveries(ctx)
	if err != nil {
		return err
	}
	go func() {
		for d := range msgs {
			if err := w.handle(ctx, d); err != nil {
				log.Printf("[notify-worker] %s: %v", d.RoutingKey, err)
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}()
	return nil
}

func (w *Worker) handle(ctx context.Context, d amqp.Delivery) error {
	switch d.RoutingKey {
	case RKBookingConfirmed:
		evt, err := MustUnmarshal[BookingConfirmed](d.Body)
		if err != nil {
			return err
		}
		subject := "Your appointment is confirmed"
		body := fmt.Sprintf("%s on %s. See you soon!", evt.ServiceName, HumanSlot(evt.Date, evt.Time, evt.DurationMin))
		return w.send(ctx, d.RoutingKey, evt.BookingID, evt.Email, subject, body)

	case RKGiftCardIssued:
		evt, err := MustUnmarshal[GiftCardIssued](d.Body)
		if err != nil {
			return err
		}
		// bearer cards have no recipient to mail; still log the issue
		subject := "You received a gift card"
		body := fmt.Sprintf("%s sent you a gift card of %.2f. Code: %s. %s",
			orDefault(evt.SenderName, "Someone"), float64(evt.AmountCents)/100, evt.Code, evt.Message)
		return w.send(ctx, d.RoutingKey, evt.CardID, evt.RecipientEmail, subject, body)

	case RKMinutesCredited:
		evt, err := MustUnmarshal[MinutesCredited](d.Body)
		if err != nil {
			return err
		}
		subject := "Minutes added to your account"
		body := fmt.Sprintf("%d minutes credited. New balance: %d.", evt.Minutes, evt.NewBalance)
		return w.send(ctx, d.RoutingKey, evt.InvoiceID, evt.Email, subject, body)

	case RKSubscriptionActivated:
		evt, err := MustUnmarshal[SubscriptionActivated](d.Body)
		if err != nil {
			return err
		}
		subject := "Your plan is active"
		body := fmt.Sprintf("Plan %s is active; %d minutes credited.", evt.PlanName, evt.Minutes)
		return w.send(ctx, d.RoutingKey, evt.InvoiceID, evt.Email, subject, body)

	case RKPaymentFailed:
		evt, err := MustUnmarshal[PaymentFailed](d.Body)
		if err != nil {
			return err
		}
		// internal heads-up only; the customer saw the failure in-flow
		log.Printf("[notify-worker] payment failed ref=%s reason=%s", evt.PaymentRef, evt.Reason)
		return nil
	}
	return nil
}

// send dedupes on (routing key, entity id), delivers, and appends the
// email log row. A missing recipient is not an error: the send is skipped
// and only logged.
func (w *Worker) send(ctx context.Context, eventKey, entityID, to, subject, body string) error {
	consumed, err := w.events.MarkConsumed(ctx, eventKey+"|"+entityID, eventKey)
	if err != nil {
		return err
	}
	if consumed {
		return nil
	}
	if to == "" {
		log.Printf("[notify-worker] %s %s: no recipient, skipping send", eventKey, entityID)
		return nil
	}
	msgID, err := w.notifier.Send(eventKey, to, subject, body)
	if err != nil {
		// never bounce the delivery for a mail failure; log and move on
		log.Printf("[notify-worker] send %s to %s: %v", eventKey, to, err)
		return nil
	}
	rec := domain.EmailLog{Type: eventKey, Recipient: to, Subject: subject, MessageID: msgID}
	if err := w.db.WithContext(ctx).Create(&rec).Error; err != nil {
		log.Printf("[notify-worker] email log %s: %v", eventKey, err)
	}
	return nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
