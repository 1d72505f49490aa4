package router // router registers the HTTP routes of the booking API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/tour-booking-engine/internal/handler"
)

// RegisterRoutes registers the unauthenticated routes: the health check,
// seat availability (optionally cached) and the payment provider callback
// (rate limited, authenticated by its signature instead of a JWT).
func RegisterRoutes(e *echo.Echo, health echo.HandlerFunc, b *handler.BookingHandler, w *handler.WebhookHandler, cache, limit echo.MiddlewareFunc) {
	e.GET("/healthz", health)
	e.GET("/v1/tours/:id/availability", b.Availability, cache)
	e.POST("/v1/payments/callback", w.Callback, limit)
}
