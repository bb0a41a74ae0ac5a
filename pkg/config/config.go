package config

import (
	"github.com/kelseyhightower/envconfig"
)

type App struct {
	// DB
	PGStudioDSN string `envconfig:"PG_STUDIO_DSN" required:"true"`
	// JWT
	JWTSecret string `envconfig:"JWT_SECRET" required:"true"`
	// Stripe
	StripeSecretKey     string `envconfig:"STRIPE_SECRET_KEY" required:"true"`
	StripeWebhookSecret string `envconfig:"STRIPE_WEBHOOK_SECRET" required:"true"`
	Currency            string `envconfig:"CURRENCY" default:"eur"`
	// RabbitMQ
	RabbitURL       string `envconfig:"RABBIT_URL" required:"true"`
	PaymentExchange string `envconfig:"PAYMENT_EXCHANGE" default:"payment.exchange"`
	StudioExchange  string `envconfig:"STUDIO_EXCHANGE" default:"studio.exchange"`
	PaymentQueue    string `envconfig:"API_PAYMENT_QUEUE" default:"api.payment.q"`
	// Network
	APIHTTPAddr string `envconfig:"API_HTTP_ADDR" default:":8080"`
	// Policy
	GiftCardAutoRedeem bool `envconfig:"GIFTCARD_AUTO_REDEEM" default:"false"`
}

func Load() (App, error) {
	var c App
	err := envconfig.Process("", &c)
	return c, err
}
