package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/tour-booking-engine/internal/model"
)

// errorMapping pairs a domain error with its HTTP status and a stable
// machine-readable code.  Order matters: the first match wins.
var errorMapping = []struct {
	err    error
	status int
	code   string
}{
	{model.ErrInvalidHeadcount, http.StatusBadRequest, "invalid_headcount"},
	{model.ErrInvalidPrice, http.StatusBadRequest, "invalid_price"},
	{model.ErrInvalidContact, http.StatusBadRequest, "invalid_contact"},
	{model.ErrReasonRequired, http.StatusBadRequest, "reason_required"},
	{model.ErrValidation, http.StatusBadRequest, "validation_error"},
	{model.ErrInvalidSignature, http.StatusUnauthorized, "invalid_signature"},
	{model.ErrForbidden, http.StatusForbidden, "forbidden"},
	{model.ErrBookingNotFound, http.StatusNotFound, "booking_not_found"},
	{model.ErrTourNotFound, http.StatusNotFound, "tour_not_found"},
	{model.ErrTransportNotFound, http.StatusNotFound, "transport_not_found"},
	{model.ErrIntentNotFound, http.StatusNotFound, "intent_not_found"},
	{model.ErrCapacityExceeded, http.StatusConflict, "capacity_exceeded"},
	{model.ErrIllegalTransition, http.StatusConflict, "illegal_transition"},
	{model.ErrConcurrentModification, http.StatusConflict, "concurrent_modification"},
	{model.ErrNotDirectPayment, http.StatusConflict, "not_direct_payment"},
	{model.ErrAlreadyPaid, http.StatusConflict, "already_paid"},
	{model.ErrPaymentNotAllowed, http.StatusConflict, "payment_not_allowed"},
	{model.ErrStaleIntentToken, http.StatusConflict, "stale_intent_token"},
	{model.ErrDuplicateCallback, http.StatusConflict, "duplicate_callback"},
	{model.ErrAmountMismatch, http.StatusConflict, "amount_mismatch"},
	{model.ErrGateway, http.StatusBadGateway, "gateway_error"},
}

// respondError writes err as {"error": code, "message": text}.  Unknown
// errors are logged and reported as a generic 500 so internals do not leak.
func respondError(c echo.Context, log *zap.Logger, err error) error {
	for _, m := range errorMapping {
		if !errors.Is(err, m.err) {
			continue
		}
		body := echo.Map{"error": m.code, "message": err.Error()}
		var capErr *model.CapacityExceededError
		if errors.As(err, &capErr) {
			body["remaining"] = capErr.Remaining
		}
		if m.status >= http.StatusInternalServerError {
			log.Warn("upstream failure", zap.String("path", c.Path()), zap.Error(err))
			body["message"] = "payment provider unavailable, try again"
		}
		return c.JSON(m.status, body)
	}
	log.Error("request failed", zap.String("path", c.Path()), zap.Error(err))
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal_error", "message": "internal server error"})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation_error", "message": msg})
}
