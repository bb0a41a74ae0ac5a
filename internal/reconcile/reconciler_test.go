package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ApollonSMK/MEXperience-sub003/internal/domain"
	"github.com/ApollonSMK/MEXperience-sub003/internal/payments"
	"github.com/ApollonSMK/MEXperience-sub003/internal/pricing"
	"github.com/ApollonSMK/MEXperience-sub003/internal/repository"
)

// fakeGateway serves canned verifications keyed by reference, standing in
// for the provider. Unknown refs fail the way a dead provider would.
type fakeGateway struct {
	verifications map[string]payments.Verification
}

func (f *fakeGateway) CreateIntent(ctx context.Context, amountCents int64, currency string, metadata map[string]string) (payments.IntentRef, error) {
	return payments.IntentRef{ID: "pi_fake", ClientSecret: "pi_fake_secret"}, nil
}

func (f *fakeGateway) VerifyPayment(ctx context.Context, ref string) (payments.Verification, error) {
	v, ok := f.verifications[ref]
	if !ok {
		return payments.Verification{}, domain.ErrProviderUnavailable
	}
	return v, nil
}

func (f *fakeGateway) CancelSubscription(ctx context.Context, subscriptionID string, immediate bool) (payments.SubscriptionState, error) {
	return payments.SubscriptionState{ID: subscriptionID, Status: "canceled"}, nil
}

type fixture struct {
	rec *Reconciler
	gw  *fakeGateway
	db  *gorm.DB
}

func newFixture(t *testing.T) *fixture {
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
	gw := &fakeGateway{verifications: map[string]payments.Verification{}}
	rec := NewReconciler(
		gw,
		repository.NewBookingRepo(gdb),
		repository.NewLedgerRepo(gdb),
		repository.NewCatalogRepo(gdb),
		repository.NewAttemptRepo(gdb),
		nil, // broker absent; publish is fire-and-forget
	)
	return &fixture{rec: rec, gw: gw, db: gdb}
}

func (f *fixture) seedService(t *testing.T) {
	t.Helper()
	svc := domain.Service{
		ID: "svc-collagen", Slug: "collagen-boost", Name: "Collagen Boost",
		DurationMin: 30, PriceCents: 4500,
		SlotTemplate: datatypes.JSON(`{"monday": ["10:00", "10:45"]}`),
	}
	if err := f.db.Create(&svc).Error; err != nil {
		t.Fatalf("seed service: %v", err)
	}
}

func (f *fixture) seedProfile(t *testing.T, userID string, minutes int) {
	t.Helper()
	p := domain.Profile{UserID: userID, Email: userID + "@example.com", MinutesBalance: minutes}
	if err := f.db.Create(&p).Error; err != nil {
		t.Fatalf("seed profile: %v", err)
	}
}

func succeededAppointment(ref string) payments.Verification {
	return payments.Verification{
		Ref: ref, Succeeded: true, Status: "succeeded",
		AmountCents: 4500, Currency: "eur",
		Metadata: pricing.AppointmentMeta{
			ServiceID: "svc-collagen", UserID: "u1",
			Date: "2026-06-01", Time: "10:00",
			DurationMin: 30, Method: "card",
		}.Encode(),
	}
}

func TestReconcile_AppointmentConfirmedOnce(t *testing.T) {
	f := newFixture(t)
	f.seedService(t)
	f.seedProfile(t, "u1", 0)
	ctx := context.Background()
	f.gw.verifications["pi_1"] = succeededAppointment("pi_1")

	res, err := f.rec.Reconcile(ctx, "pi_1")
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if res.Kind != pricing.KindAppointment || res.Duplicate || res.BookingID == "" {
		t.Fatalf("result = %+v", res)
	}

	var b domain.Booking
	if err := f.db.First(&b, "id = ?", res.BookingID).Error; err != nil {
		t.Fatalf("booking row: %v", err)
	}
	if b.Status != domain.BookingConfirmed || b.PaymentRef == nil || *b.PaymentRef != "pi_1" {
		t.Fatalf("booking = %+v", b)
	}

	// second confirmation of the same reference: prior result, one row
	again, err := f.rec.Reconcile(ctx, "pi_1")
	if err != nil {
		t.Fatalf("second reconcile: %v", err)
	}
	if !again.Duplicate || again.BookingID != res.BookingID {
		t.Fatalf("duplicate result = %+v, first booking %s", again, res.BookingID)
	}
	var n int64
	f.db.Model(&domain.Booking{}).Where("payment_ref = ?", "pi_1").Count(&n)
	if n != 1 {
		t.Fatalf("booking rows for pi_1 = %d, want 1", n)
	}
}

func TestReconcile_PaidButSlotTakenParksAttempt(t *testing.T) {
	f := newFixture(t)
	f.seedService(t)
	f.seedProfile(t, "u1", 0)
	f.seedProfile(t, "u2", 0)
	ctx := context.Background()

	// two captured payments racing for the same slot
	f.gw.verifications["pi_win"] = succeededAppointment("pi_win")
	loser := succeededAppointment("pi_lose")
	loser.Metadata = pricing.AppointmentMeta{
		ServiceID: "svc-collagen", UserID: "u2",
		Date: "2026-06-01", Time: "10:00",
		DurationMin: 30, Method: "card",
	}.Encode()
	f.gw.verifications["pi_lose"] = loser
	for _, ref := range []string{"pi_win", "pi_lose"} {
		if err := f.db.Create(&domain.PaymentAttempt{Ref: ref, Kind: "appointment", Status: domain.AttemptInitiated}).Error; err != nil {
			t.Fatalf("seed attempt %s: %v", ref, err)
		}
	}

	if _, err := f.rec.Reconcile(ctx, "pi_win"); err != nil {
		t.Fatalf("winner reconcile: %v", err)
	}
	if _, err := f.rec.Reconcile(ctx, "pi_lose"); !errors.Is(err, domain.ErrSlotTaken) {
		t.Fatalf("want ErrSlotTaken, got %v", err)
	}

	// the loser's money is captured, so the attempt must land in a
	// terminal state the sweep leaves alone instead of replaying forever
	var a domain.PaymentAttempt
	f.db.First(&a, "ref = ?", "pi_lose")
	if a.Status != domain.AttemptManual {
		t.Fatalf("loser attempt status = %s, want %s", a.Status, domain.AttemptManual)
	}
	var b domain.Booking
	f.db.First(&b, "payment_ref = ?", "pi_win")
	if b.UserID == nil || *b.UserID != "u1" {
		t.Fatalf("slot held by %v, want u1", b.UserID)
	}
}

func TestReconcile_RefusesUnverifiedPayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.gw.verifications["pi_pending"] = payments.Verification{
		Ref: "pi_pending", Succeeded: false, Status: "requires_payment_method",
		Metadata: map[string]string{"kind": "appointment"},
	}

	if _, err := f.rec.Reconcile(ctx, "pi_pending"); !errors.Is(err, domain.ErrUnverifiedPayment) {
		t.Fatalf("want ErrUnverifiedPayment, got %v", err)
	}
	var n int64
	f.db.Model(&domain.Booking{}).Count(&n)
	if n != 0 {
		t.Fatalf("unverified payment produced %d bookings", n)
	}
}

func TestReconcile_ProviderDownSurfaces(t *testing.T) {
	f := newFixture(t)
	if _, err := f.rec.Reconcile(context.Background(), "pi_unknown"); !errors.Is(err, domain.ErrProviderUnavailable) {
		t.Fatalf("want ErrProviderUnavailable, got %v", err)
	}
}

func TestReconcile_GiftCard(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	md := pricing.GiftCardMeta{
		BuyerUserID: "u1", RecipientEmail: "friend@example.com",
		SenderName: "Ana", RecipientName: "Rui", Message: "happy birthday",
	}.Encode()
	f.gw.verifications["pi_gift"] = payments.Verification{
		Ref: "pi_gift", Succeeded: true, Status: "succeeded",
		AmountCents: 5000, Currency: "eur", Metadata: md,
	}

	res, err := f.rec.Reconcile(ctx, "pi_gift")
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	var card domain.GiftCard
	if err := f.db.First(&card, "id = ?", res.GiftCard).Error; err != nil {
		t.Fatalf("card row: %v", err)
	}
	if card.InitialBalanceCents != 5000 || card.CurrentBalanceCents != 5000 {
		t.Fatalf("card balances = %d/%d", card.InitialBalanceCents, card.CurrentBalanceCents)
	}
	if card.Status != domain.GiftCardActive {
		t.Fatalf("card status = %s", card.Status)
	}
	if !strings.HasPrefix(card.Code, "GIFT-") {
		t.Fatalf("card code = %q", card.Code)
	}

	again, err := f.rec.Reconcile(ctx, "pi_gift")
	if err != nil {
		t.Fatalf("second reconcile: %v", err)
	}
	if !again.Duplicate || again.GiftCard != res.GiftCard {
		t.Fatalf("duplicate = %+v, first card %s", again, res.GiftCard)
	}
}

func TestReconcile_MinutePackCreditsOnce(t *testing.T) {
	f := newFixture(t)
	f.seedProfile(t, "u1", 10)
	ctx := context.Background()
	f.gw.verifications["pi_pack"] = payments.Verification{
		Ref: "pi_pack", Succeeded: true, Status: "succeeded",
		AmountCents: 9900, Currency: "eur",
		Metadata: pricing.MinutePackMeta{PackID: "pack-120", UserID: "u1", Minutes: 120}.Encode(),
	}

	res, err := f.rec.Reconcile(ctx, "pi_pack")
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if res.InvoiceID == "" {
		t.Fatalf("no invoice in result: %+v", res)
	}

	var p domain.Profile
	f.db.First(&p, "user_id = ?", "u1")
	if p.MinutesBalance != 130 {
		t.Fatalf("balance = %d, want 130", p.MinutesBalance)
	}

	// replayed webhook must not credit twice
	again, err := f.rec.Reconcile(ctx, "pi_pack")
	if err != nil {
		t.Fatalf("second reconcile: %v", err)
	}
	if !again.Duplicate {
		t.Fatalf("replay not marked duplicate: %+v", again)
	}
	f.db.First(&p, "user_id = ?", "u1")
	if p.MinutesBalance != 130 {
		t.Fatalf("replay moved balance to %d", p.MinutesBalance)
	}
}

func TestReconcile_SubscriptionActivatesPlan(t *testing.T) {
	f := newFixture(t)
	f.seedProfile(t, "u1", 0)
	if err := f.db.Create(&domain.Plan{ID: "plan-pro", Name: "Pro", Minutes: 200, PriceCents: 4900}).Error; err != nil {
		t.Fatalf("seed plan: %v", err)
	}
	ctx := context.Background()
	f.gw.verifications["pi_sub"] = payments.Verification{
		Ref: "pi_sub", Succeeded: true, Status: "succeeded",
		AmountCents: 4900, Currency: "eur", SubscriptionID: "sub_123",
		Metadata: pricing.SubscriptionMeta{PlanID: "plan-pro", UserID: "u1", Minutes: 200}.Encode(),
	}

	if _, err := f.rec.Reconcile(ctx, "pi_sub"); err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	var p domain.Profile
	f.db.First(&p, "user_id = ?", "u1")
	if p.PlanID == nil || *p.PlanID != "plan-pro" {
		t.Fatalf("plan not activated: %+v", p)
	}
	if p.StripeSubscriptionID != "sub_123" {
		t.Fatalf("subscription id = %q", p.StripeSubscriptionID)
	}
	if p.MinutesBalance != 200 {
		t.Fatalf("balance = %d, want 200", p.MinutesBalance)
	}
}

func TestReconcile_MarkFailed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if err := f.db.Create(&domain.PaymentAttempt{Ref: "pi_bad", Kind: "appointment", Status: domain.AttemptInitiated}).Error; err != nil {
		t.Fatalf("seed attempt: %v", err)
	}
	if err := f.rec.MarkFailed(ctx, "pi_bad", "card_declined"); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	var a domain.PaymentAttempt
	f.db.First(&a, "ref = ?", "pi_bad")
	if a.Status != domain.AttemptFailed {
		t.Fatalf("attempt status = %s", a.Status)
	}
}

func TestBookWithMinutes(t *testing.T) {
	f := newFixture(t)
	f.seedService(t)
	f.seedProfile(t, "u1", 60)
	ctx := context.Background()

	res, err := f.rec.BookWithMinutes(ctx, "u1", "svc-collagen", "2026-06-01", "10:00")
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	var p domain.Profile
	f.db.First(&p, "user_id = ?", "u1")
	if p.MinutesBalance != 30 {
		t.Fatalf("balance = %d, want 30", p.MinutesBalance)
	}
	var b domain.Booking
	f.db.First(&b, "id = ?", res.BookingID)
	if b.Method != domain.MethodMinutes || b.Status != domain.BookingConfirmed {
		t.Fatalf("booking = %+v", b)
	}
}

func TestBookWithMinutes_InsufficientBalance(t *testing.T) {
	f := newFixture(t)
	f.seedService(t)
	f.seedProfile(t, "u1", 15)

	_, err := f.rec.BookWithMinutes(context.Background(), "u1", "svc-collagen", "2026-06-01", "10:00")
	if !errors.Is(err, domain.ErrInsufficientBalance) {
		t.Fatalf("want ErrInsufficientBalance, got %v", err)
	}
	var n int64
	f.db.Model(&domain.Booking{}).Count(&n)
	if n != 0 {
		t.Fatalf("rejected booking still wrote %d rows", n)
	}
}

func TestBookWithMinutes_SlotLostRecreditsMinutes(t *testing.T) {
	f := newFixture(t)
	f.seedService(t)
	f.seedProfile(t, "u1", 60)
	f.seedProfile(t, "u2", 60)
	ctx := context.Background()

	if _, err := f.rec.BookWithMinutes(ctx, "u1", "svc-collagen", "2026-06-01", "10:00"); err != nil {
		t.Fatalf("first booking: %v", err)
	}
	if _, err := f.rec.BookWithMinutes(ctx, "u2", "svc-collagen", "2026-06-01", "10:00"); !errors.Is(err, domain.ErrSlotTaken) {
		t.Fatalf("want ErrSlotTaken, got %v", err)
	}
	var p domain.Profile
	f.db.First(&p, "user_id = ?", "u2")
	if p.MinutesBalance != 60 {
		t.Fatalf("loser's balance = %d, want full re-credit to 60", p.MinutesBalance)
	}
}
