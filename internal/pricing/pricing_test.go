package pricing

import (
	"errors"
	"testing"

	"github.com/ApollonSMK/MEXperience-sub003/internal/domain"
)

func TestToMinorUnits_HalfUp(t *testing.T) {
	cases := []struct {
		major float64
		want  int64
	}{
		{45.00, 4500},
		{0.01, 1},
		{10.005, 1001}, // half rounds up
		{10.004, 1000},
		{19.99, 1999},
		{0.1, 10},
	}
	for _, tc := range cases {
		got, err := ToMinorUnits(tc.major)
		if err != nil {
			t.Fatalf("ToMinorUnits(%v): %v", tc.major, err)
		}
		if got != tc.want {
			t.Fatalf("ToMinorUnits(%v) = %d, want %d", tc.major, got, tc.want)
		}
		if got <= 0 {
			t.Fatalf("ToMinorUnits(%v) produced non-positive %d", tc.major, got)
		}
	}
}

func TestToMinorUnits_RejectsBelowOneCent(t *testing.T) {
	for _, major := range []float64{0, -1, 0.004} {
		if _, err := ToMinorUnits(major); !errors.Is(err, domain.ErrInvalidAmount) {
			t.Fatalf("ToMinorUnits(%v): want ErrInvalidAmount, got %v", major, err)
		}
	}
}

func TestAppointmentMeta_RoundTrip(t *testing.T) {
	in := AppointmentMeta{
		ServiceID:   "collagen-boost",
		UserID:      "user-1",
		Date:        "2026-09-01",
		Time:        "10:00",
		DurationMin: 30,
		Method:      "card",
	}
	md := in.Encode()
	if md["kind"] != string(KindAppointment) {
		t.Fatalf("kind = %q", md["kind"])
	}
	if md["duration"] != "30" {
		t.Fatalf("duration encoded as %q, want base-10 string", md["duration"])
	}
	out, err := DecodeAppointment(md)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out != in {
		t.Fatalf("round trip mismatch: %+v != %+v", out, in)
	}
}

func TestAppointmentMeta_GuestOmitsUser(t *testing.T) {
	md := AppointmentMeta{ServiceID: "s", Date: "2026-09-01", Time: "10:00", DurationMin: 45, Method: "card"}.Encode()
	if _, ok := md["user"]; ok {
		t.Fatalf("guest metadata should omit user key")
	}
	out, err := DecodeAppointment(md)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.UserID != "" {
		t.Fatalf("UserID = %q, want empty", out.UserID)
	}
}

func TestDecodeAppointment_MissingField(t *testing.T) {
	md := AppointmentMeta{ServiceID: "s", Date: "2026-09-01", Time: "10:00", DurationMin: 45, Method: "card"}.Encode()
	delete(md, "duration")
	if _, err := DecodeAppointment(md); !errors.Is(err, domain.ErrMissingField) {
		t.Fatalf("want ErrMissingField, got %v", err)
	}
}

func TestSubscriptionMeta_RoundTrip(t *testing.T) {
	in := SubscriptionMeta{PlanID: "plan-pro", UserID: "user-2", Minutes: 120}
	out, err := DecodeSubscription(in.Encode())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out != in {
		t.Fatalf("round trip mismatch: %+v != %+v", out, in)
	}
}

func TestMinutePackMeta_RoundTrip(t *testing.T) {
	in := MinutePackMeta{PackID: "pack-60", UserID: "user-3", Minutes: 60}
	out, err := DecodeMinutePack(in.Encode())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out != in {
		t.Fatalf("round trip mismatch: %+v != %+v", out, in)
	}
}

func TestDecodeKind(t *testing.T) {
	if _, err := DecodeKind(map[string]string{}); !errors.Is(err, domain.ErrMissingField) {
		t.Fatalf("empty metadata: want ErrMissingField, got %v", err)
	}
	if _, err := DecodeKind(map[string]string{"kind": "mystery"}); err == nil {
		t.Fatalf("unknown kind accepted")
	}
	k, err := DecodeKind(map[string]string{"kind": "gift_card"})
	if err != nil || k != KindGiftCard {
		t.Fatalf("kind = %v err = %v", k, err)
	}
}

func TestResolveAppointment(t *testing.T) {
	svc := &domain.Service{ID: "collagen-boost", DurationMin: 30, PriceCents: 4500}
	amount, md, err := ResolveAppointment(svc, "", "2026-09-01", "10:00", domain.MethodCard)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if amount != 4500 {
		t.Fatalf("amount = %d, want 4500", amount)
	}
	if md["service"] != "collagen-boost" || md["duration"] != "30" {
		t.Fatalf("metadata = %v", md)
	}
}
