package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ApollonSMK/MEXperience-sub003/internal/domain"
	"github.com/ApollonSMK/MEXperience-sub003/internal/payments"
	"github.com/ApollonSMK/MEXperience-sub003/internal/pricing"
	"github.com/ApollonSMK/MEXperience-sub003/internal/reconcile"
	"github.com/ApollonSMK/MEXperience-sub003/internal/repository"
)

type PaymentHandler struct {
	gw       payments.Gateway
	rec      *reconcile.Reconciler
	catalog  *repository.CatalogRepo
	attempts *repository.AttemptRepo
	currency string
}

func NewPaymentHandler(gw payments.Gateway, rec *reconcile.Reconciler, catalog *repository.CatalogRepo, attempts *repository.AttemptRepo, currency string) *PaymentHandler {
	return &PaymentHandler{gw: gw, rec: rec, catalog: catalog, attempts: attempts, currency: currency}
}

type createIntentBody struct {
	Type string `json:"type" binding:"required"` // appointment | gift_card | minute_pack | subscription

	// appointment
	ServiceID string `json:"service_id"`
	Date      string `json:"date"` // "2006-01-02"
	Time      string `json:"time"` // "15:04"

	// gift_card
	Amount         float64 `json:"amount"` // major units
	RecipientEmail string  `json:"recipient_email"`
	SenderName     string  `json:"sender_name"`
	RecipientName  string  `json:"recipient_name"`
	Message        string  `json:"message"`

	// minute_pack / subscription
	PackID string `json:"pack_id"`
	PlanID string `json:"plan_id"`
}

// POST /v1/payments/intent
func (h *PaymentHandler) CreateIntent(c *gin.Context) {
	var body createIntentBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	userID := optionalSub(c)

	var (
		amount int64
		md     map[string]string
		err    error
	)
	switch pricing.Kind(body.Type) {
	case pricing.KindAppointment:
		var svc *domain.Service
		if body.ServiceID == "" {
			err = domain.ErrMissingField
			break
		}
		svc, err = h.catalog.ServiceByID(c.Request.Context(), body.ServiceID)
		if err != nil {
			break
		}
		amount, md, err = pricing.ResolveAppointment(svc, userID, body.Date, body.Time, domain.MethodCard)
	case pricing.KindGiftCard:
		amount, md, err = pricing.ResolveGiftCard(body.Amount, userID, body.RecipientEmail, body.SenderName, body.RecipientName, body.Message)
	case pricing.KindMinutePack:
		var pack *domain.MinutePack
		pack, err = h.catalog.MinutePackByID(c.Request.Context(), body.PackID)
		if err != nil {
			break
		}
		amount, md, err = pricing.ResolveMinutePack(pack, userID)
	case pricing.KindSubscription:
		var plan *domain.Plan
		plan, err = h.catalog.PlanByID(c.Request.Context(), body.PlanID)
		if err != nil {
			break
		}
		amount, md, err = pricing.ResolveSubscription(plan, userID)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown transaction type"})
		return
	}
	if err != nil {
		fail(c, err)
		return
	}

	ref, err := h.gw.CreateIntent(c.Request.Context(), amount, h.currency, md)
	if err != nil {
		fail(c, err)
		return
	}
	if err := h.attempts.Record(c.Request.Context(), &domain.PaymentAttempt{
		Ref: ref.ID, Kind: body.Type, AmountCents: amount, Currency: h.currency,
	}); err != nil {
		// the intent already exists at the provider and the secret is
		// issued; losing the mirror row only costs the sweep its pointer,
		// so log it and hand the secret back anyway
		log.Printf("[api] record attempt %s: %v", ref.ID, err)
	}
	c.JSON(http.StatusOK, gin.H{"client_secret": ref.ClientSecret, "intent_id": ref.ID})
}

type confirmBody struct {
	PaymentRef string `json:"payment_ref" binding:"required"`
}

// POST /v1/payments/confirm
//
// The client's word that the payment succeeded is worthless on its own;
// the reconciler re-verifies with the provider. A repeat call with the
// same reference returns the original result, not an error.
func (h *PaymentHandler) Confirm(c *gin.Context) {
	var body confirmBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	res, err := h.rec.Reconcile(c.Request.Context(), body.PaymentRef)
	if err != nil {
		if isPersistence(err) {
			failAfterPayment(c, body.PaymentRef, err)
			return
		}
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// POST /v1/payments/charge: the pre-intent charge endpoint. Gone.
func (h *PaymentHandler) ChargeDeprecated(c *gin.Context) {
	c.JSON(http.StatusGone, gin.H{"error": "this endpoint was replaced by /v1/payments/intent"})
}

// isPersistence: the payment is verified-good but our side failed, the
// one case that must not read like a failed payment. SlotTaken counts:
// the charge went through and only then lost the slot race, so telling
// the customer to "pick another slot" would imply they were not charged.
func isPersistence(err error) bool {
	return !errors.Is(err, domain.ErrMissingField) &&
		!errors.Is(err, domain.ErrUnverifiedPayment) &&
		!errors.Is(err, domain.ErrProviderUnavailable) &&
		!errors.Is(err, domain.ErrNotFound)
}

func optionalSub(c *gin.Context) string {
	v, _ := c.Get("sub")
	s, _ := v.(string)
	return s
}
