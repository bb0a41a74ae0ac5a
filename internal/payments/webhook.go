package payments

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"

	"github.com/ApollonSMK/MEXperience-sub003/pkg/mq"
)

const (
	RKPaymentCaptured = "payment.captured"
	RKPaymentFailed   = "payment.failed"
)

// PaymentCaptured is published once a signed provider event reports a
// successful intent; the reconciler consumes it.
type PaymentCaptured struct {
	Event      string `json:"event"`   // "payment.captured"
	Version    int    `json:"version"` // 1
	OccurredAt string `json:"occurred_at"`
	Data       struct {
		PaymentRef  string `json:"payment_ref"`
		AmountCents int64  `json:"amount_cents"`
		Currency    string `json:"currency"`
	} `json:"data"`
}

type PaymentFailedEvent struct {
	Event      string `json:"event"` // "payment.failed"
	Version    int    `json:"version"`
	OccurredAt string `json:"occurred_at"`
	Data       struct {
		PaymentRef string `json:"payment_ref"`
		Reason     string `json:"reason"`
	} `json:"data"`
}

type WebhookHandler struct {
	signingSecret string
	pub           *mq.Publisher
}

func NewWebhookHandler(signingSecret string, pub *mq.Publisher) *WebhookHandler {
	return &WebhookHandler{signingSecret: signingSecret, pub: pub}
}

const maxWebhookBody = 1 << 16

// Handle verifies the provider signature before trusting anything in the
// payload, then republishes the outcome on the payment exchange. Unsigned
// or badly signed requests get 401 and publish nothing.
func (h *WebhookHandler) Handle(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}
	event, err := webhook.ConstructEvent(payload, c.GetHeader("Stripe-Signature"), h.signingSecret)
	if err != nil {
		log.Printf("[webhook] signature verification failed: %v", err)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
		return
	}

	switch event.Type {
	case "payment_intent.succeeded":
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			log.Printf("[webhook] unmarshal intent: %v", err)
			c.Status(http.StatusOK)
			return
		}
		evt := PaymentCaptured{Event: RKPaymentCaptured, Version: 1, OccurredAt: time.Now().UTC().Format(time.RFC3339)}
		evt.Data.PaymentRef = pi.ID
		evt.Data.AmountCents = pi.Amount
		evt.Data.Currency = string(pi.Currency)
		if err := h.pub.PublishJSON(c.Request.Context(), RKPaymentCaptured, evt); err != nil {
			log.Printf("[webhook] publish %s: %v", RKPaymentCaptured, err)
			// 500 so the provider redelivers; the reconciler is idempotent
			c.Status(http.StatusInternalServerError)
			return
		}
	case "payment_intent.payment_failed":
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			log.Printf("[webhook] unmarshal intent: %v", err)
			c.Status(http.StatusOK)
			return
		}
		evt := PaymentFailedEvent{Event: RKPaymentFailed, Version: 1, OccurredAt: time.Now().UTC().Format(time.RFC3339)}
		evt.Data.PaymentRef = pi.ID
		if pi.LastPaymentError != nil {
			evt.Data.Reason = string(pi.LastPaymentError.Code)
		}
		if err := h.pub.PublishJSON(c.Request.Context(), RKPaymentFailed, evt); err != nil {
			log.Printf("[webhook] publish %s: %v", RKPaymentFailed, err)
			c.Status(http.StatusInternalServerError)
			return
		}
	default:
		// other event types are none of our business
	}

	c.Status(http.StatusOK)
}
