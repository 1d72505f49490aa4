package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/tour-booking-engine/internal/middleware"
	"github.com/iliyamo/tour-booking-engine/internal/model"
	"github.com/iliyamo/tour-booking-engine/internal/service"
)

// AdminBookingHandler serves /v1/admin/bookings.  All routes sit behind
// JWTAuth and RequireAdmin; the services check the admin flag again.
type AdminBookingHandler struct {
	Bookings *service.BookingService
	Payments *service.PaymentService
	Log      *zap.Logger
}

// NewAdminBookingHandler constructs an AdminBookingHandler.
func NewAdminBookingHandler(bookings *service.BookingService, payments *service.PaymentService, log *zap.Logger) *AdminBookingHandler {
	if bookings == nil || payments == nil {
		panic("nil service passed to NewAdminBookingHandler")
	}
	return &AdminBookingHandler{Bookings: bookings, Payments: payments, Log: log}
}

// List handles GET /v1/admin/bookings?status=&tour_id=&date=&limit=.
func (h *AdminBookingHandler) List(c echo.Context) error {
	var f model.BookingFilter
	if s := c.QueryParam("status"); s != "" {
		st, err := model.ParseBookingStatus(s)
		if err != nil {
			return respondError(c, h.Log, err)
		}
		f.Status = st
	}
	if s := c.QueryParam("tour_id"); s != "" {
		id, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return badRequest(c, "invalid tour_id")
		}
		f.TourID = id
	}
	if s := c.QueryParam("date"); s != "" {
		d, err := model.ParseDate(s)
		if err != nil {
			return respondError(c, h.Log, err)
		}
		f.StartDate = d
	}
	if s := c.QueryParam("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			return badRequest(c, "invalid limit")
		}
		f.Limit = n
	}

	list, err := h.Bookings.List(c.Request().Context(), middleware.CallerFrom(c), f)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	out := make([]bookingDTO, 0, len(list))
	for _, b := range list {
		out = append(out, toBookingDTO(b))
	}
	return c.JSON(http.StatusOK, echo.Map{"bookings": out, "count": len(out)})
}

// Get handles GET /v1/admin/bookings/:id.
func (h *AdminBookingHandler) Get(c echo.Context) error {
	b, err := h.Bookings.Get(c.Request().Context(), middleware.CallerFrom(c), c.Param("id"))
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"booking": toBookingDTO(b)})
}

// Transition handles POST /v1/admin/bookings/:id/transitions with body
// {"event": "...", "reason": "..."}.  A purge answers with the final
// DELETED snapshot; the record itself is gone afterwards.
func (h *AdminBookingHandler) Transition(c echo.Context) error {
	var body struct {
		Event  string `json:"event"`
		Reason string `json:"reason"`
	}
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	ev, err := model.ParseBookingEvent(body.Event)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	b, err := h.Bookings.Transition(c.Request().Context(), middleware.CallerFrom(c), c.Param("id"), ev, body.Reason)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"booking": toBookingDTO(b)})
}

// MarkPaid handles POST /v1/admin/bookings/:id/payments/mark-paid.
func (h *AdminBookingHandler) MarkPaid(c echo.Context) error {
	b, err := h.Payments.MarkPaidDirect(c.Request().Context(), middleware.CallerFrom(c), c.Param("id"))
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"booking": toBookingDTO(b)})
}
