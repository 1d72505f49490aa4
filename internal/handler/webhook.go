package handler

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/tour-booking-engine/internal/gateway"
)

// SignatureHeader carries the hex HMAC-SHA256 of the raw callback body.
const SignatureHeader = "X-Callback-Signature"

const maxCallbackBytes = 64 << 10

// WebhookHandler receives payment provider callbacks.
type WebhookHandler struct {
	Adapter *gateway.Adapter
	Log     *zap.Logger
}

// NewWebhookHandler constructs a WebhookHandler.
func NewWebhookHandler(adapter *gateway.Adapter, log *zap.Logger) *WebhookHandler {
	if adapter == nil {
		panic("nil adapter passed to NewWebhookHandler")
	}
	return &WebhookHandler{Adapter: adapter, Log: log}
}

// Callback handles POST /v1/payments/callback.  The raw body is needed
// for the signature, so it is read directly instead of bound.  Applied,
// duplicate and ignored callbacks all answer 200 so the provider stops
// redelivering them.
func (h *WebhookHandler) Callback(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxCallbackBytes+1))
	if err != nil {
		return badRequest(c, "unreadable body")
	}
	if len(body) > maxCallbackBytes {
		return c.JSON(http.StatusRequestEntityTooLarge, echo.Map{"error": "body_too_large", "message": "callback body too large"})
	}

	res, b, err := h.Adapter.Handle(c.Request().Context(), body, c.Request().Header.Get(SignatureHeader))
	if err != nil {
		h.Log.Info("callback rejected", zap.Error(err))
		return respondError(c, h.Log, err)
	}
	resp := echo.Map{"result": string(res)}
	if b != nil {
		resp["booking_id"] = b.ID
		resp["payment_status"] = string(b.Payment.Status)
	}
	return c.JSON(http.StatusOK, resp)
}
