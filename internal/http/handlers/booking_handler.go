// README: Booking handlers for create/get/list/cancel/status/history/receipt.
package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"rental/internal/http/middleware"
	"rental/internal/modules/booking"
	"rental/internal/types"
)

type BookingHandler struct {
	bookings *booking.Service
	now      func() time.Time
}

func NewBookingHandler(svc *booking.Service) *BookingHandler {
	return &BookingHandler{bookings: svc, now: time.Now}
}

// Create handles POST /bookings. The renter is always the caller; an
// Idempotency-Key header is used when the body carries no key.
func (h *BookingHandler) Create(c *gin.Context) {
	var req booking.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	req.UserID = types.ID(middleware.CallerUID(c))
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = strings.TrimSpace(c.GetHeader("Idempotency-Key"))
	}

	res, err := h.bookings.Create(c.Request.Context(), req)
	if err != nil {
		writeBookingError(c, err)
		return
	}
	status := http.StatusCreated
	if res.Replayed {
		status = http.StatusOK
	}
	writeJSON(c, status, gin.H{
		"success":   true,
		"bookingId": res.Booking.ID,
		"booking":   res.Booking,
		"replayed":  res.Replayed,
	})
}

func (h *BookingHandler) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	b, err := h.bookings.Get(c.Request.Context(), id, actorFrom(c))
	if err != nil {
		writeBookingError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"success": true, "booking": b})
}

// ListMine handles GET /bookings: the caller's own bookings.
func (h *BookingHandler) ListMine(c *gin.Context) {
	list, err := h.bookings.ListByUser(c.Request.Context(), types.ID(middleware.CallerUID(c)))
	if err != nil {
		writeBookingError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"success": true, "bookings": list})
}

type cancelReq struct {
	Reason string `json:"reason"`
}

func (h *BookingHandler) Cancel(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req cancelReq
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			writeError(c, http.StatusBadRequest, "invalid json")
			return
		}
	}
	res, err := h.bookings.Cancel(c.Request.Context(), booking.CancelCommand{
		BookingID: id,
		Reason:    req.Reason,
		Actor:     actorFrom(c),
	})
	if err != nil {
		writeBookingError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{
		"success":         true,
		"cancellationFee": res.CancellationFee,
		"refundAmount":    res.RefundAmount,
		"booking":         res.Booking,
	})
}

type updateStatusReq struct {
	Status    string `json:"status"`
	PaymentID string `json:"paymentId"`
}

// UpdateStatus handles POST /bookings/:id/status (admin only).
func (h *BookingHandler) UpdateStatus(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req updateStatusReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	status := booking.Status(strings.ToLower(strings.TrimSpace(req.Status)))
	switch status {
	case booking.StatusPending, booking.StatusConfirmed, booking.StatusCompleted, booking.StatusCancelled:
	default:
		writeFieldErrors(c, []booking.FieldError{{Field: "status", Message: "must be one of pending confirmed completed cancelled"}})
		return
	}
	b, err := h.bookings.UpdateStatus(c.Request.Context(), booking.UpdateStatusCommand{
		BookingID: id,
		Status:    status,
		PaymentID: strings.TrimSpace(req.PaymentID),
		Actor:     actorFrom(c),
	})
	if err != nil {
		writeBookingError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"success": true, "booking": b})
}

// Events handles GET /bookings/:id/events, the status audit trail.
func (h *BookingHandler) Events(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	events, err := h.bookings.History(c.Request.Context(), id, actorFrom(c))
	if err != nil {
		writeBookingError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"success": true, "events": events})
}

// Receipt handles GET /bookings/:id/receipt.pdf.
func (h *BookingHandler) Receipt(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	b, err := h.bookings.Get(c.Request.Context(), id, actorFrom(c))
	if err != nil {
		writeBookingError(c, err)
		return
	}
	pdf, err := booking.Receipt(b, h.now())
	if err != nil {
		writeError(c, http.StatusInternalServerError, "failed to render receipt")
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`inline; filename="%s.pdf"`, b.ConfirmationNumber))
	c.Data(http.StatusOK, "application/pdf", pdf)
}
