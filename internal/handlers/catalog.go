package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ApollonSMK/MEXperience-sub003/internal/repository"
)

type CatalogHandler struct {
	catalog *repository.CatalogRepo
	ledger  *repository.LedgerRepo
}

func NewCatalogHandler(catalog *repository.CatalogRepo, ledger *repository.LedgerRepo) *CatalogHandler {
	return &CatalogHandler{catalog: catalog, ledger: ledger}
}

// GET /v1/services
func (h *CatalogHandler) ListServices(c *gin.Context) {
	out, err := h.catalog.ListServices(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"services": out})
}

type refundBody struct {
	Minutes int `json:"minutes" binding:"required"`
}

// POST /v1/profiles/:id/refund-minutes (ADMIN)
func (h *CatalogHandler) RefundMinutes(c *gin.Context) {
	var body refundBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	bal, err := h.ledger.RefundMinutes(c.Request.Context(), c.Param("id"), body.Minutes)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"minutes_balance": bal})
}
