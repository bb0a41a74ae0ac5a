package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ApollonSMK/MEXperience-sub003/internal/availability"
	"github.com/ApollonSMK/MEXperience-sub003/internal/domain"
	"github.com/ApollonSMK/MEXperience-sub003/internal/reconcile"
	"github.com/ApollonSMK/MEXperience-sub003/internal/repository"
)

type BookingHandler struct {
	checker  *availability.Checker
	bookings *repository.BookingRepo
	rec      *reconcile.Reconciler
}

func NewBookingHandler(checker *availability.Checker, bookings *repository.BookingRepo, rec *reconcile.Reconciler) *BookingHandler {
	return &BookingHandler{checker: checker, bookings: bookings, rec: rec}
}

// GET /v1/services/:id/slots?date=2006-01-02
func (h *BookingHandler) Slots(c *gin.Context) {
	date := c.Query("date")
	if date == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date is required"})
		return
	}
	slots, err := h.checker.ListSlots(c.Request.Context(), c.Param("id"), date)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"date": date, "slots": slots})
}

type bookMinutesBody struct {
	ServiceID string `json:"service_id" binding:"required"`
	Date      string `json:"date" binding:"required"`
	Time      string `json:"time" binding:"required"`
}

// POST /v1/bookings/minutes: book a slot paid from the minute pool.
func (h *BookingHandler) BookWithMinutes(c *gin.Context) {
	var body bookMinutesBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	userID := optionalSub(c)
	if userID == "" {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	res, err := h.rec.BookWithMinutes(c.Request.Context(), userID, body.ServiceID, body.Date, body.Time)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

type manualBookingBody struct {
	ServiceID string  `json:"service_id" binding:"required"`
	Date      string  `json:"date" binding:"required"`
	Time      string  `json:"time" binding:"required"`
	Duration  int     `json:"duration_min"`
	UserID    *string `json:"user_id"`
	Method    string  `json:"method"` // reception | blocked; defaults to reception
}

// POST /v1/bookings/manual (STAFF/ADMIN): desk bookings and slot blocks,
// no payment gate.
func (h *BookingHandler) CreateManual(c *gin.Context) {
	var body manualBookingBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	method := domain.PaymentMethod(body.Method)
	if method == "" {
		method = domain.MethodReception
	}
	if method != domain.MethodReception && method != domain.MethodBlocked {
		c.JSON(http.StatusBadRequest, gin.H{"error": "method must be reception or blocked"})
		return
	}
	b := &domain.Booking{
		UserID:      body.UserID,
		ServiceID:   body.ServiceID,
		Date:        body.Date,
		StartTime:   body.Time,
		DurationMin: body.Duration,
		Status:      domain.BookingConfirmed,
		Method:      method,
	}
	created, err := h.bookings.CreateOccupying(c.Request.Context(), b)
	if err != nil {
		fail(c, err)
		return
	}
	if err := h.bookings.LogAction(c.Request.Context(), created.ID, "manual", string(method)); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// POST /v1/bookings/:id/checkin (STAFF/ADMIN)
func (h *BookingHandler) CheckIn(c *gin.Context) {
	b, err := h.bookings.CheckIn(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

// POST /v1/bookings/:id/cancel (STAFF/ADMIN)
func (h *BookingHandler) Cancel(c *gin.Context) {
	var body struct {
		Note string `json:"note"`
	}
	_ = c.ShouldBindJSON(&body)
	b, err := h.bookings.Cancel(c.Request.Context(), c.Param("id"), body.Note)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

// GET /v1/bookings?page=1&page_size=20&user_id=...&service_id=...&date=...
func (h *BookingHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if page < 1 {
		page = 1
	}
	out, total, err := h.bookings.List(c.Request.Context(), page-1, size, c.Query("user_id"), c.Query("service_id"), c.Query("date"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bookings": out, "total": total})
}
