// README: Availability handlers: per-vehicle check and catalog search.
package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"rental/internal/maps"
	"rental/internal/modules/booking"
	"rental/internal/modules/vehicle"
	"rental/internal/types"
)

// defaultSearchRadiusKm applies when lat/lng are given without radiusKm.
const defaultSearchRadiusKm = 25

// Geocoder resolves a free-text address for radius search.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (types.Point, error)
}

type AvailabilityHandler struct {
	bookings *booking.Service
	geocoder Geocoder
}

func NewAvailabilityHandler(svc *booking.Service, geocoder Geocoder) *AvailabilityHandler {
	return &AvailabilityHandler{bookings: svc, geocoder: geocoder}
}

type checkAvailabilityReq struct {
	VehicleID string `json:"vehicleId"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

// Check handles POST /availability/check. It is display-only; booking
// creation re-checks atomically.
func (h *AvailabilityHandler) Check(c *gin.Context) {
	var req checkAvailabilityReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	start, end, errs := parseRange(req.StartDate, req.EndDate)
	if strings.TrimSpace(req.VehicleID) == "" {
		errs = append(errs, booking.FieldError{Field: "vehicleId", Message: "is required"})
	}
	if len(errs) > 0 {
		writeFieldErrors(c, errs)
		return
	}

	res, err := h.bookings.CheckAvailability(c.Request.Context(), types.ID(strings.TrimSpace(req.VehicleID)), start, end)
	if err != nil {
		writeBookingError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{
		"available":      res.Available,
		"conflicts":      toDateRanges(res.Conflicts, false),
		"suggestedDates": toSuggestedDates(res.Suggestions),
	})
}

// Search handles GET /availability/search?startDate&endDate&location[&lat&lng|&near][&radiusKm].
func (h *AvailabilityHandler) Search(c *gin.Context) {
	start, end, errs := parseRange(c.Query("startDate"), c.Query("endDate"))

	q := vehicle.Query{Location: c.Query("location")}
	if c.Query("lat") != "" || c.Query("lng") != "" {
		lat, latErr := strconv.ParseFloat(c.Query("lat"), 64)
		lng, lngErr := strconv.ParseFloat(c.Query("lng"), 64)
		if latErr != nil || lngErr != nil || lat < -90 || lat > 90 || lng < -180 || lng > 180 {
			errs = append(errs, booking.FieldError{Field: "lat,lng", Message: "must be valid coordinates"})
		} else {
			q.Near = &types.Point{Lat: lat, Lng: lng}
			q.RadiusKm = defaultSearchRadiusKm
		}
	} else if near := strings.TrimSpace(c.Query("near")); near != "" {
		if h.geocoder == nil {
			errs = append(errs, booking.FieldError{Field: "near", Message: "address search is not enabled"})
		} else {
			p, err := h.geocoder.Geocode(c.Request.Context(), near)
			switch {
			case errors.Is(err, maps.ErrNoResult):
				errs = append(errs, booking.FieldError{Field: "near", Message: "address not found"})
			case err != nil:
				log.Printf("geocode %q: %v", near, err)
				writeError(c, http.StatusBadGateway, "geocoding unavailable")
				return
			default:
				q.Near = &p
				q.RadiusKm = defaultSearchRadiusKm
			}
		}
	}
	if raw := c.Query("radiusKm"); raw != "" {
		r, err := strconv.ParseFloat(raw, 64)
		if err != nil || r <= 0 {
			errs = append(errs, booking.FieldError{Field: "radiusKm", Message: "must be a positive number"})
		} else {
			q.RadiusKm = r
		}
	}
	if len(errs) > 0 {
		writeFieldErrors(c, errs)
		return
	}

	vehicles, err := h.bookings.SearchAvailable(c.Request.Context(), start, end, q)
	if err != nil {
		writeBookingError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"availableVehicles": vehicles})
}
