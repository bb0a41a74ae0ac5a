package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ApollonSMK/MEXperience-sub003/internal/domain"
	"github.com/ApollonSMK/MEXperience-sub003/internal/repository"
)

// recordingNotifier captures every Send for assertions.
type recordingNotifier struct {
	sent []string // "to|subject"
}

func (r *recordingNotifier) Send(kind, to, subject, body string) (string, error) {
	r.sent = append(r.sent, to+"|"+subject)
	return "msg-" + kind, nil
}

func newWorkerFixture(t *testing.T) (*Worker, *recordingNotifier, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repository.Migrate(gdb); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	rec := &recordingNotifier{}
	return NewWorker(nil, rec, gdb), rec, gdb
}

func delivery(t *testing.T, key string, evt any) amqp.Delivery {
	t.Helper()
	b, err := json.Marshal(evt)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	return amqp.Delivery{RoutingKey: key, Body: b}
}

func TestHandle_MinutesCreditedDedupesPerInvoice(t *testing.T) {
	w, rec, gdb := newWorkerFixture(t)
	ctx := context.Background()

	first := MinutesCredited{InvoiceID: "inv-1", UserID: "u1", Email: "u1@example.com", Minutes: 120, NewBalance: 120}
	second := MinutesCredited{InvoiceID: "inv-2", UserID: "u1", Email: "u1@example.com", Minutes: 60, NewBalance: 180}

	// same user buys two packs back to back; both must mail
	if err := w.handle(ctx, delivery(t, RKMinutesCredited, first)); err != nil {
		t.Fatalf("first: %v", err)
	}
	if err := w.handle(ctx, delivery(t, RKMinutesCredited, second)); err != nil {
		t.Fatalf("second: %v", err)
	}
	if len(rec.sent) != 2 {
		t.Fatalf("sends = %d, want 2 (second purchase swallowed)", len(rec.sent))
	}
	var n int64
	gdb.Model(&domain.EmailLog{}).Where("type = ?", RKMinutesCredited).Count(&n)
	if n != 2 {
		t.Fatalf("email log rows = %d, want 2", n)
	}

	// a broker redelivery of the first invoice stays deduped
	if err := w.handle(ctx, delivery(t, RKMinutesCredited, first)); err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	if len(rec.sent) != 2 {
		t.Fatalf("redelivery mailed again, sends = %d", len(rec.sent))
	}
}

func TestHandle_SubscriptionActivatedDedupesPerInvoice(t *testing.T) {
	w, rec, _ := newWorkerFixture(t)
	ctx := context.Background()

	// cancel-then-resubscribe to the same plan is two activations
	for i, inv := range []string{"inv-a", "inv-b"} {
		evt := SubscriptionActivated{InvoiceID: inv, UserID: "u1", Email: "u1@example.com", PlanName: "Pro", Minutes: 200}
		if err := w.handle(ctx, delivery(t, RKSubscriptionActivated, evt)); err != nil {
			t.Fatalf("activation %d: %v", i, err)
		}
	}
	if len(rec.sent) != 2 {
		t.Fatalf("sends = %d, want 2", len(rec.sent))
	}
}

func TestHandle_BookingConfirmedWithoutRecipient(t *testing.T) {
	w, rec, gdb := newWorkerFixture(t)

	evt := BookingConfirmed{BookingID: "b1", ServiceName: "Collagen Boost", Date: "2026-06-01", Time: "10:00", DurationMin: 30}
	if err := w.handle(context.Background(), delivery(t, RKBookingConfirmed, evt)); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(rec.sent) != 0 {
		t.Fatalf("mailed without a recipient: %v", rec.sent)
	}
	// still consumed, a requeue will not retry the send
	var n int64
	gdb.Model(&domain.EventConsumed{}).Count(&n)
	if n != 1 {
		t.Fatalf("events consumed = %d, want 1", n)
	}
}
