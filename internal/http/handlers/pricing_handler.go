// README: Pricing handler: quote a rental without booking it.
package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"rental/internal/modules/booking"
	"rental/internal/modules/pricing"
	"rental/internal/types"
)

type PricingHandler struct {
	pricing *pricing.Service
}

func NewPricingHandler(svc *pricing.Service) *PricingHandler {
	return &PricingHandler{pricing: svc}
}

type quoteReq struct {
	VehicleID          string   `json:"vehicleId"`
	StartDate          string   `json:"startDate"`
	EndDate            string   `json:"endDate"`
	AddonIDs           []string `json:"addonIds"`
	InsurancePackageID string   `json:"insurancePackageId"`
	MileagePackageID   string   `json:"mileagePackageId"`
}

// Quote handles POST /pricing/quote.
func (h *PricingHandler) Quote(c *gin.Context) {
	var req quoteReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	start, end, errs := parseRange(req.StartDate, req.EndDate)
	vehicleID := strings.TrimSpace(req.VehicleID)
	if vehicleID == "" {
		errs = append(errs, booking.FieldError{Field: "vehicleId", Message: "is required"})
	}
	if len(errs) > 0 {
		writeFieldErrors(c, errs)
		return
	}

	quote, _, err := h.pricing.QuoteVehicle(c.Request.Context(), types.ID(vehicleID), start, end, pricing.Selection{
		AddonIDs:           uniqueIDs(req.AddonIDs),
		InsurancePackageID: strings.TrimSpace(req.InsurancePackageID),
		MileagePackageID:   strings.TrimSpace(req.MileagePackageID),
	})
	switch {
	case err == nil:
		writeJSON(c, http.StatusOK, gin.H{"success": true, "quote": quote})
	case errors.Is(err, pricing.ErrInvalidRange):
		writeFieldErrors(c, []booking.FieldError{{Field: "endDate", Message: "must be after startDate"}})
	case errors.Is(err, pricing.ErrUnknownOption):
		writeFieldErrors(c, []booking.FieldError{{Field: "selection", Message: err.Error()}})
	case errors.Is(err, pricing.ErrNoRateCard):
		writeError(c, http.StatusNotFound, "no rate card for vehicle "+vehicleID)
	default:
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}

// uniqueIDs matches how booking creation normalises addon selections.
func uniqueIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
