package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/tour-booking-engine/internal/handler"
	"github.com/iliyamo/tour-booking-engine/internal/middleware"
)

// RegisterBookings registers the holder-facing booking routes under
// /v1/bookings.  A bearer token is optional so guests can book; ownership
// of an existing booking is proven by the JWT subject or the
// X-Guest-Token header.
func RegisterBookings(e *echo.Echo, h *handler.BookingHandler, jwtSecret, adminRole string, limit echo.MiddlewareFunc) {
	g := e.Group("/v1/bookings", middleware.OptionalJWT(jwtSecret, adminRole))
	g.POST("", h.Create, limit)
	g.GET("/:id", h.Get)
	g.POST("/:id/cancel-request", h.RequestCancel)
	g.POST("/:id/payments", h.InitiatePayment, limit)
}
