// Package sweep is the operational safeguard for abandoned payment
// flows: a client can create an intent and walk away, and a webhook can
// get lost. The sweeper periodically re-checks stale attempts against the
// provider and re-drives the reconciler, which is idempotent, so sweep
// and live traffic share one apply path.
package sweep

import (
	"context"
	"log"
	"time"

	"github.com/ApollonSMK/MEXperience-sub003/internal/domain"
	"github.com/ApollonSMK/MEXperience-sub003/internal/payments"
	"github.com/ApollonSMK/MEXperience-sub003/internal/reconcile"
	"github.com/ApollonSMK/MEXperience-sub003/internal/repository"
)

type Sweeper struct {
	attempts *repository.AttemptRepo
	gw       payments.Gateway
	rec      *reconcile.Reconciler

	Window time.Duration // attempts younger than this are left alone
	Limit  int
	DryRun bool
}

func NewSweeper(attempts *repository.AttemptRepo, gw payments.Gateway, rec *reconcile.Reconciler, window time.Duration, limit int, dryRun bool) *Sweeper {
	return &Sweeper{attempts: attempts, gw: gw, rec: rec, Window: window, Limit: limit, DryRun: dryRun}
}

// Pass inspects one batch of stale attempts and returns how many reached
// a terminal state.
func (s *Sweeper) Pass(ctx context.Context) (settled int, err error) {
	cutoff := time.Now().UTC().Add(-s.Window)
	stale, err := s.attempts.Stale(ctx, cutoff, s.Limit)
	if err != nil {
		return 0, err
	}
	for _, a := range stale {
		v, err := s.gw.VerifyPayment(ctx, a.Ref)
		if err != nil {
			log.Printf("[sweep] verify %s: %v", a.Ref, err)
			continue
		}
		switch {
		case v.Succeeded:
			if s.DryRun {
				log.Printf("[sweep] dry-run: %s succeeded at provider but has no record", a.Ref)
				continue
			}
			if _, err := s.rec.Reconcile(ctx, a.Ref); err != nil {
				log.Printf("[sweep] reconcile %s: %v", a.Ref, err)
				continue
			}
			log.Printf("[sweep] reconciled %s (%s)", a.Ref, a.Kind)
			settled++
		case v.Canceled:
			if s.DryRun {
				log.Printf("[sweep] dry-run: %s canceled at provider", a.Ref)
				continue
			}
			if err := s.attempts.MarkStatus(ctx, a.Ref, domain.AttemptAbandoned); err != nil {
				log.Printf("[sweep] mark abandoned %s: %v", a.Ref, err)
				continue
			}
			settled++
		default:
			// still non-terminal at the provider; leave for the next pass
		}
	}
	return settled, nil
}

// Run loops Pass on a ticker until the context ends.
func (s *Sweeper) Run(ctx context.Context, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		if n, err := s.Pass(ctx); err != nil {
			log.Printf("[sweep] pass: %v", err)
		} else if n > 0 {
			log.Printf("[sweep] settled %d attempts", n)
		}
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}
