package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ApollonSMK/MEXperience-sub003/internal/domain"
	"github.com/ApollonSMK/MEXperience-sub003/internal/pos"
)

type POSHandler struct {
	register *pos.Register
}

func NewPOSHandler(register *pos.Register) *POSHandler {
	return &POSHandler{register: register}
}

type saleBody struct {
	UserID       *string        `json:"user_id"`
	Method       string         `json:"method" binding:"required"` // cash | card | reception | gift | minutes
	Items        []pos.SaleItem `json:"items" binding:"required"`
	GiftCardCode string         `json:"gift_card_code"`
	Minutes      int            `json:"minutes"`
}

// POST /v1/pos/sales (STAFF/ADMIN)
func (h *POSHandler) Sell(c *gin.Context) {
	var body saleBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	res, err := h.register.Sell(c.Request.Context(), pos.SaleInput{
		UserID:       body.UserID,
		Method:       domain.PaymentMethod(body.Method),
		Items:        body.Items,
		GiftCardCode: body.GiftCardCode,
		Minutes:      body.Minutes,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}
