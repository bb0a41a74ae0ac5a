package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ApollonSMK/MEXperience-sub003/internal/domain"
)

// fail maps domain sentinels to HTTP responses. The client gets a stable
// human-readable message; the wrapped detail (provider internals, SQL
// errors) only goes to the log.
func fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrMissingField), errors.Is(err, domain.ErrInvalidAmount), errors.Is(err, domain.ErrPastDate):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, domain.ErrNoActivePlan):
		c.JSON(http.StatusNotFound, gin.H{"error": "no active plan"})
	case errors.Is(err, domain.ErrServiceUnavailable):
		c.JSON(http.StatusConflict, gin.H{"error": "service unavailable for booking"})
	case errors.Is(err, domain.ErrSlotTaken):
		c.JSON(http.StatusConflict, gin.H{"error": "that slot was just taken, please pick another"})
	case errors.Is(err, domain.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": "booking is not in a state that allows this"})
	case errors.Is(err, domain.ErrInsufficientBalance):
		c.JSON(http.StatusConflict, gin.H{"error": "not enough minutes on the account"})
	case errors.Is(err, domain.ErrInsufficientFunds):
		c.JSON(http.StatusConflict, gin.H{"error": "gift card balance is too low"})
	case errors.Is(err, domain.ErrGiftCardInactive):
		c.JSON(http.StatusConflict, gin.H{"error": "gift card is not active"})
	case errors.Is(err, domain.ErrUnverifiedPayment):
		log.Printf("[api] rejected unverified payment: %v", err)
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "payment could not be verified"})
	case errors.Is(err, domain.ErrProviderUnavailable):
		log.Printf("[api] provider error: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "payment provider unavailable, please retry"})
	default:
		log.Printf("[api] internal error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// failAfterPayment covers the one case that must not read like a failed
// payment: the charge went through but our write did not.
func failAfterPayment(c *gin.Context, paymentRef string, err error) {
	log.Printf("[api] payment %s succeeded but recording failed: %v", paymentRef, err)
	c.JSON(http.StatusInternalServerError, gin.H{
		"error": "your payment was received, but we could not finish your booking; our team will follow up shortly",
	})
}
