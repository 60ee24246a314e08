// README: HTTP router registration (gin).
package http

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"rental/internal/http/handlers"
	"rental/internal/http/middleware"
	"rental/internal/infra"
	"rental/internal/modules/booking"
	"rental/internal/modules/pricing"
)

type RouterDeps struct {
	Bookings    *booking.Service
	Pricing     *pricing.Service
	Verifier    infra.TokenVerifier
	CORSOrigins []string
	// Geocoder enables ?near=<address> on availability search; may be nil.
	Geocoder handlers.Geocoder
}

func NewRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(middleware.Recovery(), middleware.Logging())
	if len(deps.CORSOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     deps.CORSOrigins,
			AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Idempotency-Key"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	availabilityHandler := handlers.NewAvailabilityHandler(deps.Bookings, deps.Geocoder)
	r.POST("/availability/check", availabilityHandler.Check)
	r.GET("/availability/search", availabilityHandler.Search)

	pricingHandler := handlers.NewPricingHandler(deps.Pricing)
	r.POST("/pricing/quote", pricingHandler.Quote)

	authed := r.Group("/", middleware.Auth(deps.Verifier))

	bookingHandler := handlers.NewBookingHandler(deps.Bookings)
	authed.POST("/bookings", bookingHandler.Create)
	authed.GET("/bookings", bookingHandler.ListMine)
	authed.GET("/bookings/:id", bookingHandler.Get)
	authed.POST("/bookings/:id/cancel", bookingHandler.Cancel)
	authed.GET("/bookings/:id/events", bookingHandler.Events)
	authed.GET("/bookings/:id/receipt.pdf", bookingHandler.Receipt)
	authed.POST("/bookings/:id/status", middleware.RequireAdmin(), bookingHandler.UpdateStatus)

	adminHandler := handlers.NewAdminHandler(deps.Bookings)
	admin := authed.Group("/admin", middleware.RequireAdmin())
	admin.GET("/bookings", adminHandler.List)
	admin.GET("/bookings/export.xlsx", adminHandler.Export)

	return r
}
