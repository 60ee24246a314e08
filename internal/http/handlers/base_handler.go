// README: Base handler utilities (JSON helpers, caller actor, error mapping).
package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"rental/internal/http/middleware"
	"rental/internal/modules/availability"
	"rental/internal/modules/booking"
	"rental/internal/types"
)

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Kind    string `json:"kind,omitempty"`
}

// isValidID accepts uuid-style booking ids and slug-style vehicle ids.
func isValidID(v string) bool {
	if v == "" || len(v) > 64 {
		return false
	}
	for _, c := range v {
		if (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '-' || c == '_' {
			continue
		}
		return false
	}
	return true
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg string) {
	writeJSON(c, status, errorResponse{Error: msg})
}

func writeFieldErrors(c *gin.Context, errs []booking.FieldError) {
	writeJSON(c, http.StatusBadRequest, gin.H{
		"success": false,
		"kind":    string(booking.KindValidation),
		"errors":  errs,
	})
}

func actorFrom(c *gin.Context) booking.Actor {
	return booking.Actor{ID: types.ID(middleware.CallerUID(c)), IsAdmin: middleware.IsAdmin(c)}
}

// pathID reads and checks the :id route parameter.
func pathID(c *gin.Context) (types.ID, bool) {
	id := c.Param("id")
	if !isValidID(id) {
		writeError(c, http.StatusBadRequest, "invalid booking id")
		return "", false
	}
	return types.ID(id), true
}

// parseRange parses a YYYY-MM-DD pair, reporting every bad field.
func parseRange(startRaw, endRaw string) (time.Time, time.Time, []booking.FieldError) {
	var errs []booking.FieldError
	parse := func(field, raw string) time.Time {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			errs = append(errs, booking.FieldError{Field: field, Message: "is required"})
			return time.Time{}
		}
		d, err := types.ParseDate(raw)
		if err != nil {
			errs = append(errs, booking.FieldError{Field: field, Message: "must be a date in YYYY-MM-DD format"})
		}
		return d
	}
	start := parse("startDate", startRaw)
	end := parse("endDate", endRaw)
	return start, end, errs
}

type dateRange struct {
	BookingID string `json:"bookingId,omitempty"`
	Start     string `json:"start"`
	End       string `json:"end"`
}

type suggestedDate struct {
	AvailableFrom string `json:"availableFrom"`
	DaysAvailable int    `json:"daysAvailable"`
}

// toDateRanges hides booking ids unless the caller may see them.
func toDateRanges(rs []availability.Range, withIDs bool) []dateRange {
	out := make([]dateRange, 0, len(rs))
	for _, r := range rs {
		d := dateRange{Start: types.FormatDate(r.Start), End: types.FormatDate(r.End)}
		if withIDs {
			d.BookingID = string(r.BookingID)
		}
		out = append(out, d)
	}
	return out
}

func toSuggestedDates(ss []availability.Suggestion) []suggestedDate {
	out := make([]suggestedDate, 0, len(ss))
	for _, s := range ss {
		out = append(out, suggestedDate{AvailableFrom: types.FormatDate(s.AvailableFrom), DaysAvailable: s.DaysAvailable})
	}
	return out
}

func statusForKind(k booking.Kind) int {
	switch k {
	case booking.KindValidation:
		return http.StatusBadRequest
	case booking.KindNotFound:
		return http.StatusNotFound
	case booking.KindAuthorization:
		return http.StatusForbidden
	case booking.KindAvailabilityConflict, booking.KindInvalidStateTransition,
		booking.KindCancellationNotAllowed, booking.KindConflict, booking.KindCreationFailedAfterPayment:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeBookingError(c *gin.Context, err error) {
	kind := booking.KindOf(err)
	status := statusForKind(kind)

	var verr booking.ValidationError
	var conflict booking.AvailabilityConflictError
	var paid booking.CreationFailedAfterPaymentError
	switch {
	case errors.As(err, &paid):
		body := gin.H{
			"success":         false,
			"kind":            string(kind),
			"error":           "booking could not be created; your payment has been reversed",
			"paymentId":       paid.PaymentID,
			"paymentRefunded": paid.Refunded(),
			"cause":           string(booking.KindOf(paid.Cause)),
		}
		if !paid.Refunded() {
			body["error"] = "booking could not be created and the automatic refund failed; contact support with your payment id"
		}
		if errors.As(paid.Cause, &conflict) {
			body["suggestedDates"] = toSuggestedDates(conflict.Suggestions)
		}
		writeJSON(c, status, body)
	case errors.As(err, &verr):
		writeFieldErrors(c, verr.Errors)
	case errors.As(err, &conflict):
		writeJSON(c, status, gin.H{
			"success":        false,
			"kind":           string(kind),
			"error":          "vehicle is not available for the selected dates",
			"conflicts":      toDateRanges(conflict.Conflicts, false),
			"suggestedDates": toSuggestedDates(conflict.Suggestions),
		})
	case status == http.StatusInternalServerError:
		writeJSON(c, status, errorResponse{Error: "internal error", Kind: string(kind)})
	default:
		writeJSON(c, status, errorResponse{Error: err.Error(), Kind: string(kind)})
	}
}
