package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"

	"github.com/ApollonSMK/MEXperience-sub003/internal/domain"
	"github.com/ApollonSMK/MEXperience-sub003/internal/pricing"
	"github.com/ApollonSMK/MEXperience-sub003/internal/reconcile"
	"github.com/ApollonSMK/MEXperience-sub003/internal/repository"
)

type GiftCardHandler struct {
	ledger     *repository.LedgerRepo
	autoRedeem bool
}

func NewGiftCardHandler(ledger *repository.LedgerRepo, autoRedeem bool) *GiftCardHandler {
	return &GiftCardHandler{ledger: ledger, autoRedeem: autoRedeem}
}

type redeemBody struct {
	Code   string  `json:"code" binding:"required"`
	Amount float64 `json:"amount" binding:"required"` // major units
	UserID *string `json:"user_id"`
}

// POST /v1/giftcards/redeem (STAFF/ADMIN)
func (h *GiftCardHandler) Redeem(c *gin.Context) {
	var body redeemBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cents, err := pricing.ToMinorUnits(body.Amount)
	if err != nil {
		fail(c, err)
		return
	}
	res, err := h.ledger.RedeemGiftCard(c.Request.Context(), body.Code, cents, body.UserID, h.autoRedeem)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"card_id":     res.CardID,
		"new_balance": res.NewBalance,
		"status":      res.Status,
		"invoice_id":  res.InvoiceID,
	})
}

type issueBody struct {
	Amount         float64 `json:"amount" binding:"required"` // major units
	RecipientEmail string  `json:"recipient_email"`
	SenderName     string  `json:"sender_name"`
	RecipientName  string  `json:"recipient_name"`
	Message        string  `json:"message"`
}

// POST /v1/giftcards/issue (ADMIN/reseller console): no payment gate;
// the reseller settles outside the system. Different trust boundary than
// the public purchase flow, hence the role gate.
func (h *GiftCardHandler) Issue(c *gin.Context) {
	var body issueBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cents, err := pricing.ToMinorUnits(body.Amount)
	if err != nil {
		fail(c, err)
		return
	}
	issuer := optionalSub(c)
	card := &domain.GiftCard{
		Code:                reconcile.NewGiftCode(),
		InitialBalanceCents: cents,
		Status:              domain.GiftCardActive,
		Meta: datatypes.JSONMap{
			"sender_name":    body.SenderName,
			"recipient_name": body.RecipientName,
			"message":        body.Message,
			"issued_by":      issuer,
		},
	}
	if body.RecipientEmail != "" {
		e := body.RecipientEmail
		card.RecipientEmail = &e
	}
	created, err := h.ledger.CreateGiftCard(c.Request.Context(), card)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"card_id": created.ID, "code": created.Code, "balance": created.CurrentBalanceCents})
}
