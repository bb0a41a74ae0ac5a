package reconcile

import (
	"context"
	"log"

	"github.com/ApollonSMK/MEXperience-sub003/internal/domain"
	"github.com/ApollonSMK/MEXperience-sub003/internal/notify"
)

// BookWithMinutes is the no-provider booking path: the appointment is paid
// from the user's minute pool, so there is no intent to verify. The debit
// runs first (atomic, floor zero); if the slot insert then loses the race
// the minutes are re-credited. A re-credit failure is logged for manual
// correction rather than retried.
func (r *Reconciler) BookWithMinutes(ctx context.Context, userID, serviceID, date, startTime string) (*Result, error) {
	if userID == "" || serviceID == "" || date == "" || startTime == "" {
		return nil, domain.ErrMissingField
	}
	svc, err := r.catalog.ServiceByID(ctx, serviceID)
	if err != nil {
		return nil, err
	}
	if svc.Maintenance {
		return nil, domain.ErrServiceUnavailable
	}

	if _, err := r.ledger.DebitMinutes(ctx, userID, svc.DurationMin); err != nil {
		return nil, err
	}

	uid := userID
	b := &domain.Booking{
		UserID:      &uid,
		ServiceID:   svc.ID,
		Date:        date,
		StartTime:   startTime,
		DurationMin: svc.DurationMin,
		Status:      domain.BookingConfirmed,
		Method:      domain.MethodMinutes,
	}
	created, err := r.bookings.CreateOccupying(ctx, b)
	if err != nil {
		if _, cerr := r.ledger.CreditMinutes(ctx, userID, svc.DurationMin); cerr != nil {
			log.Printf("[reconcile] minute re-credit user=%s min=%d after failed booking: %v", userID, svc.DurationMin, cerr)
		}
		return nil, err
	}
	if err := r.bookings.LogAction(ctx, created.ID, "confirmed", "paid with minutes"); err != nil {
		log.Printf("[reconcile] booking=%s appointment log: %v", created.ID, err)
	}

	r.publish(ctx, notify.RKBookingConfirmed, notify.BookingConfirmed{
		BookingID:   created.ID,
		UserID:      userID,
		Email:       r.emailOf(ctx, userID),
		ServiceName: svc.Name,
		Date:        date,
		Time:        startTime,
		DurationMin: svc.DurationMin,
	})
	return &Result{Kind: "appointment", BookingID: created.ID}, nil
}
