package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/ApollonSMK/MEXperience-sub003/internal/notify"
	"github.com/ApollonSMK/MEXperience-sub003/pkg/db"
	"github.com/ApollonSMK/MEXperience-sub003/pkg/mq"
	"github.com/ApollonSMK/MEXperience-sub003/pkg/obs"
)

type Cfg struct {
	PGStudioDSN    string `envconfig:"PG_STUDIO_DSN" required:"true"`
	RabbitURL      string `envconfig:"RABBIT_URL" required:"true"`
	StudioExchange string `envconfig:"STUDIO_EXCHANGE" default:"studio.exchange"`
	NotifyQueue    string `envconfig:"NOTIFY_QUEUE" default:"notify.q"`

	// Mail transport; console when SMTP_ADDR is unset
	SMTPAddr     string `envconfig:"SMTP_ADDR" default:""`
	SMTPFrom     string `envconfig:"SMTP_FROM" default:"studio@localhost"`
	SMTPUsername string `envconfig:"SMTP_USERNAME" default:""`
	SMTPPassword string `envconfig:"SMTP_PASSWORD" default:""`
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

	shutdown := obs.InitTracer("studio-notify")
	defer func() { _ = shutdown(context.Background()) }()

	gdb := db.Open(cfg.PGStudioDSN)

	var n notify.Notifier
	if cfg.SMTPAddr != "" {
		n = notify.NewSMTP(cfg.SMTPAddr, cfg.SMTPFrom, cfg.SMTPUsername, cfg.SMTPPassword)
		log.Println("[notify] smtp notifier ->", cfg.SMTPAddr)
	} else {
		n = notify.NewConsole()
		log.Println("[notify] console notifier (no SMTP_ADDR)")
	}

	cons := must(mq.NewConsumer(cfg.RabbitURL, cfg.StudioExchange, cfg.NotifyQueue, []string{
		notify.RKBookingConfirmed,
		notify.RKGiftCardIssued,
		notify.RKMinutesCredited,
		notify.RKSubscriptionActivated,
		notify.RKPaymentFailed,
	}))
	defer cons.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	must(0, notify.NewWorker(cons, n, gdb).Run(ctx))
	log.Println("[notify] worker started")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	cancel()
	log.Println("[notify] stopped")
}
