package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/tour-booking-engine/internal/middleware"
	"github.com/iliyamo/tour-booking-engine/internal/model"
	"github.com/iliyamo/tour-booking-engine/internal/service"
)

// BookingHandler serves the holder-facing booking endpoints.  Routes are
// wrapped by OptionalJWT so both account holders and guests reach them;
// ownership is checked by the services.
type BookingHandler struct {
	Bookings *service.BookingService
	Payments *service.PaymentService
	Log      *zap.Logger
}

// NewBookingHandler constructs a BookingHandler and panics on nil services.
func NewBookingHandler(bookings *service.BookingService, payments *service.PaymentService, log *zap.Logger) *BookingHandler {
	if bookings == nil || payments == nil {
		panic("nil service passed to NewBookingHandler")
	}
	return &BookingHandler{Bookings: bookings, Payments: payments, Log: log}
}

type createBookingRequest struct {
	TourID    uint64    `json:"tour_id"`
	Date      string    `json:"date"`
	Headcount int       `json:"headcount"`
	Transport string    `json:"transport"`
	Note      string    `json:"note"`
	Guest     *guestDTO `json:"guest"`
}

// Create handles POST /v1/bookings.  Guests must send their contact
// details and receive a guest_token that authorises later calls through
// the X-Guest-Token header; it is shown only once.
func (h *BookingHandler) Create(c echo.Context) error {
	var req createBookingRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	date, err := model.ParseDate(req.Date)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	in := service.CreateBookingInput{
		TourID:    req.TourID,
		StartDate: date,
		Headcount: req.Headcount,
		Transport: req.Transport,
		Note:      req.Note,
	}
	if req.Guest != nil {
		in.Contact = model.Contact{
			GuestName:  strings.TrimSpace(req.Guest.Name),
			GuestEmail: strings.TrimSpace(req.Guest.Email),
			GuestPhone: strings.TrimSpace(req.Guest.Phone),
		}
	}

	b, guestToken, err := h.Bookings.Create(c.Request().Context(), middleware.CallerFrom(c), in)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	resp := echo.Map{"booking": toBookingDTO(b)}
	if guestToken != "" {
		resp["guest_token"] = guestToken
	}
	return c.JSON(http.StatusCreated, resp)
}

// Get handles GET /v1/bookings/:id for the holder.
func (h *BookingHandler) Get(c echo.Context) error {
	b, err := h.Bookings.Get(c.Request().Context(), middleware.CallerFrom(c), c.Param("id"))
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"booking": toBookingDTO(b)})
}

// RequestCancel handles POST /v1/bookings/:id/cancel-request.  The
// optional "reason" in the body is kept for the administrator.
func (h *BookingHandler) RequestCancel(c echo.Context) error {
	var body struct {
		Reason string `json:"reason"`
	}
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&body); err != nil {
			return badRequest(c, "invalid request body")
		}
	}
	b, err := h.Bookings.Transition(c.Request().Context(), middleware.CallerFrom(c), c.Param("id"), model.EventRequestCancel, body.Reason)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"booking": toBookingDTO(b)})
}

// InitiatePayment handles POST /v1/bookings/:id/payments with body
// {"method": "DIRECT"|"GATEWAY"}.  Gateway payments return the URL the
// payer must follow.
func (h *BookingHandler) InitiatePayment(c echo.Context) error {
	var body struct {
		Method string `json:"method"`
	}
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	method, err := model.ParsePaymentMethod(body.Method)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	b, url, err := h.Payments.Initiate(c.Request().Context(), middleware.CallerFrom(c), c.Param("id"), method)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	resp := echo.Map{"booking": toBookingDTO(b)}
	if url != "" {
		resp["payment_url"] = url
	}
	return c.JSON(http.StatusOK, resp)
}

// Availability handles GET /v1/tours/:id/availability?date=YYYY-MM-DD.
func (h *BookingHandler) Availability(c echo.Context) error {
	tourID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || tourID == 0 {
		return badRequest(c, "invalid tour id")
	}
	date, err := model.ParseDate(c.QueryParam("date"))
	if err != nil {
		return respondError(c, h.Log, err)
	}
	av, err := h.Bookings.Availability(c.Request().Context(), tourID, date)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, av)
}
