package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/ApollonSMK/MEXperience-sub003/internal/availability"
	"github.com/ApollonSMK/MEXperience-sub003/internal/handlers"
	"github.com/ApollonSMK/MEXperience-sub003/internal/middlewares"
	"github.com/ApollonSMK/MEXperience-sub003/internal/payments"
	"github.com/ApollonSMK/MEXperience-sub003/internal/pos"
	"github.com/ApollonSMK/MEXperience-sub003/internal/reconcile"
	"github.com/ApollonSMK/MEXperience-sub003/internal/repository"
	"github.com/ApollonSMK/MEXperience-sub003/pkg/config"
	"github.com/ApollonSMK/MEXperience-sub003/pkg/db"
	"github.com/ApollonSMK/MEXperience-sub003/pkg/mq"
	"github.com/ApollonSMK/MEXperience-sub003/pkg/obs"
)

func must[T any](v T, err error) T {
	if err != nil {
		log.Fatal(err)
	}
	return v
}

func main() {
	_ = godotenv.Load()
	cfg := must(config.Load())

	shutdown := obs.InitTracer("studio-api")
	defer func() { _ = shutdown(context.Background()) }()

	// DB
	gdb := db.Open(cfg.PGStudioDSN)
	must(0, repository.Migrate(gdb))
	bookings := repository.NewBookingRepo(gdb)
	ledger := repository.NewLedgerRepo(gdb)
	catalog := repository.NewCatalogRepo(gdb)
	attempts := repository.NewAttemptRepo(gdb)

	// Provider + messaging
	gw := payments.NewStripeGateway(cfg.StripeSecretKey)
	paymentPub := must(mq.NewPublisher(cfg.RabbitURL, cfg.PaymentExchange))
	defer paymentPub.Close()
	studioPub := must(mq.NewPublisher(cfg.RabbitURL, cfg.StudioExchange))
	defer studioPub.Close()

	rec := reconcile.NewReconciler(gw, bookings, ledger, catalog, attempts, studioPub)

	// Consumer: provider webhook events -> reconciler
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	paymentCons := must(mq.NewConsumer(cfg.RabbitURL, cfg.PaymentExchange, cfg.PaymentQueue,
		[]string{payments.RKPaymentCaptured, payments.RKPaymentFailed}))
	defer paymentCons.Close()
	must(0, reconcile.NewConsumer(rec, paymentCons).Run(ctx))
	log.Println("[api] payment consumer started")

	// HTTP
	checker := availability.NewChecker(catalog, bookings)
	register := pos.NewRegister(ledger, cfg.GiftCardAutoRedeem)

	ph := handlers.NewPaymentHandler(gw, rec, catalog, attempts, cfg.Currency)
	bh := handlers.NewBookingHandler(checker, bookings, rec)
	gh := handlers.NewGiftCardHandler(ledger, cfg.GiftCardAutoRedeem)
	posh := handlers.NewPOSHandler(register)
	sh := handlers.NewSubscriptionHandler(gw, ledger)
	ch := handlers.NewCatalogHandler(catalog, ledger)
	wh := payments.NewWebhookHandler(cfg.StripeWebhookSecret, paymentPub)

	r := gin.Default()
	r.GET("/healthz", func(c *gin.Context) { c.JSON(200, gin.H{"ok": true}) })

	v1 := r.Group("/v1")
	{
		v1.GET("/services", ch.ListServices)
		v1.GET("/services/:id/slots", bh.Slots)

		v1.POST("/payments/intent", ph.CreateIntent)
		v1.POST("/payments/confirm", ph.Confirm)
		v1.POST("/payments/charge", ph.ChargeDeprecated)
		v1.POST("/webhooks/stripe", wh.Handle)

		me := v1.Group("")
		me.Use(middlewares.JWTAuth(cfg.JWTSecret))
		{
			me.POST("/bookings/minutes", bh.BookWithMinutes)
			me.POST("/subscription/cancel", sh.Cancel)
		}

		staff := v1.Group("")
		staff.Use(middlewares.JWTAuth(cfg.JWTSecret), middlewares.RequireRole("STAFF", "ADMIN"))
		{
			staff.POST("/pos/sales", posh.Sell)
			staff.POST("/giftcards/redeem", gh.Redeem)
			staff.POST("/bookings/manual", bh.CreateManual)
			staff.POST("/bookings/:id/checkin", bh.CheckIn)
			staff.POST("/bookings/:id/cancel", bh.Cancel)
			staff.GET("/bookings", bh.List)
		}

		admin := v1.Group("")
		admin.Use(middlewares.JWTAuth(cfg.JWTSecret), middlewares.RequireRole("ADMIN"))
		{
			admin.POST("/giftcards/issue", gh.Issue)
			admin.POST("/profiles/:id/refund-minutes", ch.RefundMinutes)
		}
	}

	go func() {
		log.Println("[api] http listening on", cfg.APIHTTPAddr)
		log.Fatal(r.Run(cfg.APIHTTPAddr))
	}()

	// graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	cancel()
	log.Println("[api] stopped")
}
