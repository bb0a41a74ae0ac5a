package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/ApollonSMK/MEXperience-sub003/internal/payments"
	"github.com/ApollonSMK/MEXperience-sub003/internal/reconcile"
	"github.com/ApollonSMK/MEXperience-sub003/internal/repository"
	"github.com/ApollonSMK/MEXperience-sub003/internal/sweep"
	"github.com/ApollonSMK/MEXperience-sub003/pkg/db"
	"github.com/ApollonSMK/MEXperience-sub003/pkg/mq"
	"github.com/ApollonSMK/MEXperience-sub003/pkg/obs"
)

type Cfg struct {
	PGStudioDSN     string `envconfig:"PG_STUDIO_DSN" required:"true"`
	StripeSecretKey string `envconfig:"STRIPE_SECRET_KEY" required:"true"`
	RabbitURL       string `envconfig:"RABBIT_URL" required:"true"`
	StudioExchange  string `envconfig:"STUDIO_EXCHANGE" default:"studio.exchange"`

	SweepWindowMin   int  `envconfig:"SWEEP_WINDOW_MIN" default:"30"`
	SweepIntervalMin int  `envconfig:"SWEEP_INTERVAL_MIN" default:"10"`
	SweepLimit       int  `envconfig:"SWEEP_LIMIT" default:"100"`
	DryRun           bool `envconfig:"SWEEP_DRY_RUN" default:"false"`
}

func must[T any](v T, err error) T {
	if err != nil {
		log.Fatal(err)
	}
	return v
}

func main() {
	_ = godotenv.Load()
	var cfg Cfg
	must(0, envconfig.Process("", &cfg))

	shutdown := obs.InitTracer("studio-sweep")
	defer func() { _ = shutdown(context.Background()) }()

	gdb := db.Open(cfg.PGStudioDSN)
	bookings := repository.NewBookingRepo(gdb)
	ledger := repository.NewLedgerRepo(gdb)
	catalog := repository.NewCatalogRepo(gdb)
	attempts := repository.NewAttemptRepo(gdb)

	gw := payments.NewStripeGateway(cfg.StripeSecretKey)
	pub := must(mq.NewPublisher(cfg.RabbitURL, cfg.StudioExchange))
	defer pub.Close()

	rec := reconcile.NewReconciler(gw, bookings, ledger, catalog, attempts, pub)
	sw := sweep.NewSweeper(attempts, gw, rec,
		time.Duration(cfg.SweepWindowMin)*time.Minute, cfg.SweepLimit, cfg.DryRun)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		cancel()
	}()

	log.Printf("[sweep] window=%dm interval=%dm limit=%d dry_run=%v",
		cfg.SweepWindowMin, cfg.SweepIntervalMin, cfg.SweepLimit, cfg.DryRun)
	sw.Run(ctx, time.Duration(cfg.SweepIntervalMin)*time.Minute)
	log.Println("[sweep] stopped")
}
