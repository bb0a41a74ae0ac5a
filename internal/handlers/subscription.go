package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ApollonSMK/MEXperience-sub003/internal/domain"
	"github.com/ApollonSMK/MEXperience-sub003/internal/payments"
	"github.com/ApollonSMK/MEXperience-sub003/internal/repository"
)

type SubscriptionHandler struct {
	gw     payments.Gateway
	ledger *repository.LedgerRepo
}

func NewSubscriptionHandler(gw payments.Gateway, ledger *repository.LedgerRepo) *SubscriptionHandler {
	return &SubscriptionHandler{gw: gw, ledger: ledger}
}

type cancelBody struct {
	CancelNow bool `json:"cancel_now"`
}

// POST /v1/subscription/cancel (authenticated)
//
// Provider-backed plans go through the provider: cancel_now terminates
// immediately, otherwise the subscription is flagged to end at period
// close and the profile mirrors the flag. A manual/comp plan (no provider
// subscription id) has nothing to cancel at the provider; the plan
// assignment is cleared and the minute balance zeroed right away,
// cancel_now ignored.
func (h *SubscriptionHandler) Cancel(c *gin.Context) {
	var body cancelBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	userID := optionalSub(c)
	if userID == "" {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	p, err := h.ledger.Profile(c.Request.Context(), userID)
	if err != nil {
		fail(c, err)
		return
	}
	if p.PlanID == nil {
		fail(c, domain.ErrNoActivePlan)
		return
	}

	if p.StripeSubscriptionID == "" {
		if err := h.ledger.ClearPlan(c.Request.Context(), userID); err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "cancelled", "message": "plan removed and minute balance cleared"})
		return
	}

	state, err := h.gw.CancelSubscription(c.Request.Context(), p.StripeSubscriptionID, body.CancelNow)
	if err != nil {
		fail(c, err)
		return
	}
	if body.CancelNow {
		if err := h.ledger.ClearPlan(c.Request.Context(), userID); err != nil {
			fail(c, err)
			return
		}
	} else {
		if err := h.ledger.MarkCancelAtPeriodEnd(c.Request.Context(), userID); err != nil {
			fail(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"status":               state.Status,
		"cancel_at_period_end": state.CancelAtPeriodEnd,
	})
}
