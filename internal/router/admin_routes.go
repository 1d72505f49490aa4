package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/tour-booking-engine/internal/handler"
	"github.com/iliyamo/tour-booking-engine/internal/middleware"
)

// RegisterAdmin registers administrator routes under /v1/admin.  All
// routes require a valid JWT whose role claim equals adminRole.
func RegisterAdmin(e *echo.Echo, h *handler.AdminBookingHandler, jwtSecret, adminRole string) {
	g := e.Group(
		"/v1/admin",
		middleware.JWTAuth(jwtSecret, adminRole),
		middleware.RequireAdmin(),
	)
	g.GET("/bookings", h.List)
	g.GET("/bookings/:id", h.Get)
	g.POST("/bookings/:id/transitions", h.Transition)
	g.POST("/bookings/:id/payments/mark-paid", h.MarkPaid)
}
