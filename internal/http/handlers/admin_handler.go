// README: Admin handlers: booking listing and spreadsheet export.
package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"rental/internal/modules/booking"
	"rental/internal/types"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type AdminHandler struct {
	bookings *booking.Service
	now      func() time.Time
}

func NewAdminHandler(svc *booking.Service) *AdminHandler {
	return &AdminHandler{bookings: svc, now: time.Now}
}

// filter reads ?userId&vehicleId&from&to. from/to select bookings overlapping [from, to).
func filter(c *gin.Context) (booking.ListFilter, []booking.FieldError) {
	f := booking.ListFilter{
		UserID:    types.ID(strings.TrimSpace(c.Query("userId"))),
		VehicleID: types.ID(strings.TrimSpace(c.Query("vehicleId"))),
	}
	var errs []booking.FieldError
	for _, p := range []struct {
		key string
		dst *time.Time
	}{{"from", &f.From}, {"to", &f.To}} {
		raw := strings.TrimSpace(c.Query(p.key))
		if raw == "" {
			continue
		}
		d, err := types.ParseDate(raw)
		if err != nil {
			errs = append(errs, booking.FieldError{Field: p.key, Message: "must be a date in YYYY-MM-DD format"})
			continue
		}
		*p.dst = d
	}
	return f, errs
}

func (h *AdminHandler) List(c *gin.Context) {
	f, errs := filter(c)
	if len(errs) > 0 {
		writeFieldErrors(c, errs)
		return
	}
	list, err := h.bookings.List(c.Request.Context(), f)
	if err != nil {
		writeBookingError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"success": true, "bookings": list})
}

// Export handles GET /admin/bookings/export.xlsx.
func (h *AdminHandler) Export(c *gin.Context) {
	f, errs := filter(c)
	if len(errs) > 0 {
		writeFieldErrors(c, errs)
		return
	}
	list, err := h.bookings.List(c.Request.Context(), f)
	if err != nil {
		writeBookingError(c, err)
		return
	}
	data, err := booking.ExportXLSX(list)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "failed to build export")
		return
	}
	name := fmt.Sprintf("bookings-%s.xlsx", h.now().UTC().Format("20060102-150405"))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	c.Data(http.StatusOK, xlsxContentType, data)
}
