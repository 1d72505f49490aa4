package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/tour-booking-engine/internal/config"
	"github.com/iliyamo/tour-booking-engine/internal/gateway"
	"github.com/iliyamo/tour-booking-engine/internal/handler"
	"github.com/iliyamo/tour-booking-engine/internal/middleware"
	"github.com/iliyamo/tour-booking-engine/internal/repository/memory"
	"github.com/iliyamo/tour-booking-engine/internal/router"
	"github.com/iliyamo/tour-booking-engine/internal/service"
	"github.com/iliyamo/tour-booking-engine/internal/utils"
)

const (
	jwtSecret     = "jwt-secret"
	webhookSecret = "whsec"
	checkout      = "http://pay.local/checkout"
)

type api struct {
	t     *testing.T
	e     *echo.Echo
	store *memory.Store
}

func newAPI(t *testing.T) *api {
	t.Helper()
	log := zap.NewNop()
	store := memory.NewStore()
	catalog := memory.NewCatalog(memory.Tour{
		ID: 1, Title: "Komodo Island Hopping", BasePrice: 1_000_000, MaxParticipants: 4,
		Transports: map[string]int64{"speedboat": 100_000},
	})
	opts := service.Options{Retry: config.RetryConfig{Attempts: 2, BaseDelay: time.Millisecond}, BcryptCost: bcrypt.MinCost}
	bookings := service.NewBookingService(store, catalog, nil, log, opts)
	payments := service.NewPaymentService(store, gateway.Sandbox{CheckoutURL: checkout}, nil, log, opts)

	noLimit := middleware.NewTokenBucket(config.RateLimitConfig{}, nil, log)
	noCache := middleware.NewRedisCache(config.CacheConfig{}, nil, log)
	bh := handler.NewBookingHandler(bookings, payments, log)
	wh := handler.NewWebhookHandler(gateway.NewAdapter(webhookSecret, store, payments, log), log)

	e := echo.New()
	router.RegisterRoutes(e, handler.Health(map[string]handler.Pinger{"store": store}), bh, wh, noCache, noLimit)
	router.RegisterBookings(e, bh, jwtSecret, "ADMIN", noLimit)
	router.RegisterAdmin(e, handler.NewAdminBookingHandler(bookings, payments, log), jwtSecret, "ADMIN")
	return &api{t: t, e: e, store: store}
}

func bearer(t *testing.T, sub, role string) string {
	t.Helper()
	at, err := utils.NewAccessToken(jwtSecret, sub, role, time.Hour)
	require.NoError(t, err)
	return "Bearer " + at.Token
}

// do sends a JSON request and decodes a JSON object response.
func (a *api) do(method, path string, body any, headers map[string]string) (int, map[string]any) {
	a.t.Helper()
	var rdr *bytes.Reader
	switch b := body.(type) {
	case nil:
		rdr = bytes.NewReader(nil)
	case []byte:
		rdr = bytes.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(a.t, err)
		rdr = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rdr)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)

	out := map[string]any{}
	if strings.HasPrefix(rec.Header().Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		require.NoError(a.t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	} else {
		out["text"] = rec.Body.String()
	}
	return rec.Code, out
}

func booking(resp map[string]any) map[string]any {
	b, _ := resp["booking"].(map[string]any)
	return b
}

func TestGuestBookingFlow(t *testing.T) {
	a := newAPI(t)
	admin := map[string]string{"Authorization": bearer(t, "admin-1", "ADMIN")}

	code, resp := a.do(http.MethodPost, "/v1/bookings", map[string]any{
		"tour_id": 1, "date": "2025-12-01", "headcount": 2, "transport": "speedboat",
		"guest": map[string]string{"name": "Sari", "email": "sari@example.com", "phone": "+62813"},
	}, nil)
	require.Equal(t, http.StatusCreated, code, resp)
	b := booking(resp)
	id := b["id"].(string)
	token := resp["guest_token"].(string)
	assert.EqualValues(t, 2_200_000, b["total_price"])
	assert.Equal(t, "PENDING", b["status"])
	assert.Equal(t, []any{"CONFIRM", "REJECT", "REQUEST_CANCEL"}, b["allowed_actions"])

	code, _ = a.do(http.MethodGet, "/v1/bookings/"+id, nil, nil)
	assert.Equal(t, http.StatusForbidden, code)
	code, resp = a.do(http.MethodGet, "/v1/bookings/"+id, nil, map[string]string{middleware.GuestTokenHeader: token})
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Sari", booking(resp)["guest"].(map[string]any)["name"])

	code, resp = a.do(http.MethodGet, "/v1/tours/1/availability?date=2025-12-01", nil, nil)
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 2, resp["remaining"])

	code, resp = a.do(http.MethodPost, "/v1/bookings/"+id+"/cancel-request", nil, map[string]string{middleware.GuestTokenHeader: token})
	require.Equal(t, http.StatusOK, code, resp)
	assert.Equal(t, "CANCEL_REQUEST", booking(resp)["status"])

	code, resp = a.do(http.MethodPost, "/v1/admin/bookings/"+id+"/transitions", map[string]string{"event": "approve_cancel"}, admin)
	require.Equal(t, http.StatusOK, code, resp)
	assert.Equal(t, "CANCELLED", booking(resp)["status"])

	code, resp = a.do(http.MethodGet, "/v1/tours/1/availability?date=2025-12-01", nil, nil)
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 4, resp["remaining"])

	code, resp = a.do(http.MethodPost, "/v1/admin/bookings/"+id+"/transitions", map[string]string{"event": "PURGE"}, admin)
	require.Equal(t, http.StatusOK, code, resp)
	assert.Equal(t, "DELETED", booking(resp)["status"])
	code, resp = a.do(http.MethodGet, "/v1/admin/bookings/"+id, nil, admin)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "booking_not_found", resp["error"])
}

func TestCreateErrors(t *testing.T) {
	a := newAPI(t)
	user := map[string]string{"Authorization": bearer(t, "u-1", "CUSTOMER")}

	code, resp := a.do(http.MethodPost, "/v1/bookings", map[string]any{"tour_id": 1, "date": "2025-12-01", "headcount": 5}, user)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "capacity_exceeded", resp["error"])
	assert.EqualValues(t, 4, resp["remaining"])

	code, resp = a.do(http.MethodPost, "/v1/bookings", map[string]any{"tour_id": 1, "date": "01/12/2025", "headcount": 1}, user)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "validation_error", resp["error"])

	code, resp = a.do(http.MethodPost, "/v1/bookings", map[string]any{"tour_id": 1, "date": "2025-12-01", "headcount": 0}, user)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "invalid_headcount", resp["error"])

	code, resp = a.do(http.MethodPost, "/v1/bookings", map[string]any{"tour_id": 7, "date": "2025-12-01", "headcount": 1}, user)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "tour_not_found", resp["error"])

	code, resp = a.do(http.MethodPost, "/v1/bookings", map[string]any{"tour_id": 1, "date": "2025-12-01", "headcount": 1}, nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "invalid_contact", resp["error"])

	code, _ = a.do(http.MethodPost, "/v1/bookings", map[string]any{"tour_id": 1, "date": "2025-12-01", "headcount": 1},
		map[string]string{"Authorization": "Bearer nope"})
	assert.Equal(t, http.StatusUnauthorized, code)
}

func sign(body []byte) map[string]string {
	return map[string]string{handler.SignatureHeader: gateway.Sign([]byte(webhookSecret), body)}
}

func TestGatewayPaymentFlow(t *testing.T) {
	a := newAPI(t)
	user := map[string]string{"Authorization": bearer(t, "u-1", "CUSTOMER")}

	code, resp := a.do(http.MethodPost, "/v1/bookings", map[string]any{"tour_id": 1, "date": "2025-12-01", "headcount": 1}, user)
	require.Equal(t, http.StatusCreated, code, resp)
	id := booking(resp)["id"].(string)

	code, resp = a.do(http.MethodPost, "/v1/bookings/"+id+"/payments", map[string]string{"method": "GATEWAY"}, user)
	require.Equal(t, http.StatusOK, code, resp)
	firstRef := strings.TrimPrefix(resp["payment_url"].(string), checkout+"/")

	code, resp = a.do(http.MethodPost, "/v1/bookings/"+id+"/payments", map[string]string{"method": "gateway"}, user)
	require.Equal(t, http.StatusOK, code, resp)
	ref := strings.TrimPrefix(resp["payment_url"].(string), checkout+"/")
	assert.Equal(t, "GATEWAY", booking(resp)["payment"].(map[string]any)["method"])

	cb := func(txID, status string, amount int64) []byte {
		raw, err := json.Marshal(gateway.Callback{TransactionID: txID, Status: status, GrossAmount: amount})
		require.NoError(t, err)
		return raw
	}

	body := cb(firstRef, "settlement", 1_000_000)
	code, resp = a.do(http.MethodPost, "/v1/payments/callback", body, sign(body))
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "stale_intent_token", resp["error"])

	body = cb(ref, "settlement", 1_000_000)
	code, _ = a.do(http.MethodPost, "/v1/payments/callback", body, map[string]string{handler.SignatureHeader: "00"})
	assert.Equal(t, http.StatusUnauthorized, code)

	body = cb(ref, "pending", 1_000_000)
	code, resp = a.do(http.MethodPost, "/v1/payments/callback", body, sign(body))
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ignored", resp["result"])

	body = cb(ref, "settlement", 999)
	code, resp = a.do(http.MethodPost, "/v1/payments/callback", body, sign(body))
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "amount_mismatch", resp["error"])

	body = cb(ref, "settlement", 1_000_000)
	code, resp = a.do(http.MethodPost, "/v1/payments/callback", body, sign(body))
	require.Equal(t, http.StatusOK, code, resp)
	assert.Equal(t, "applied", resp["result"])
	assert.Equal(t, "PAID", resp["payment_status"])

	code, resp = a.do(http.MethodPost, "/v1/payments/callback", body, sign(body))
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "duplicate", resp["result"])

	body = cb("unknown", "settlement", 0)
	code, resp = a.do(http.MethodPost, "/v1/payments/callback", body, sign(body))
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "intent_not_found", resp["error"])

	code, resp = a.do(http.MethodGet, "/v1/bookings/"+id, nil, user)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "PAID", booking(resp)["payment"].(map[string]any)["status"])
}

func TestAdminRoutes(t *testing.T) {
	a := newAPI(t)
	user := map[string]string{"Authorization": bearer(t, "u-1", "CUSTOMER")}
	admin := map[string]string{"Authorization": bearer(t, "admin-1", "ADMIN")}

	_, resp := a.do(http.MethodPost, "/v1/bookings", map[string]any{"tour_id": 1, "date": "2025-12-01", "headcount": 1}, user)
	id := booking(resp)["id"].(string)

	code, _ := a.do(http.MethodGet, "/v1/admin/bookings", nil, user)
	assert.Equal(t, http.StatusForbidden, code)
	code, _ = a.do(http.MethodGet, "/v1/admin/bookings", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, resp = a.do(http.MethodGet, "/v1/admin/bookings?status=pending&tour_id=1&date=2025-12-01", nil, admin)
	require.Equal(t, http.StatusOK, code, resp)
	assert.EqualValues(t, 1, resp["count"])
	code, _ = a.do(http.MethodGet, "/v1/admin/bookings?status=LOST", nil, admin)
	assert.Equal(t, http.StatusBadRequest, code)

	path := "/v1/admin/bookings/" + id + "/transitions"
	code, resp = a.do(http.MethodPost, path, map[string]string{"event": "TELEPORT"}, admin)
	assert.Equal(t, http.StatusBadRequest, code)
	code, resp = a.do(http.MethodPost, path, map[string]string{"event": "REJECT"}, admin)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "reason_required", resp["error"])
	code, resp = a.do(http.MethodPost, path, map[string]string{"event": "COMPLETE"}, admin)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "illegal_transition", resp["error"])

	code, resp = a.do(http.MethodPost, "/v1/admin/bookings/"+id+"/payments/mark-paid", nil, admin)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "not_direct_payment", resp["error"])

	code, _ = a.do(http.MethodPost, "/v1/bookings/"+id+"/payments", map[string]string{"method": "DIRECT"}, admin)
	require.Equal(t, http.StatusOK, code)
	code, resp = a.do(http.MethodPost, "/v1/admin/bookings/"+id+"/payments/mark-paid", nil, admin)
	require.Equal(t, http.StatusOK, code, resp)
	assert.Equal(t, "PAID", booking(resp)["payment"].(map[string]any)["status"])

	code, resp = a.do(http.MethodPost, path, map[string]string{"event": "CONFIRM"}, admin)
	require.Equal(t, http.StatusOK, code, resp)
	assert.Equal(t, []any{"REQUEST_CANCEL", "COMPLETE"}, booking(resp)["allowed_actions"])
}

func TestHealth(t *testing.T) {
	a := newAPI(t)
	code, resp := a.do(http.MethodGet, "/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", resp["text"])

	e := echo.New()
	e.GET("/healthz", handler.Health(map[string]handler.Pinger{
		"redis": handler.PingFunc(func(context.Context) error { return errors.New("connection refused") }),
	}))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "connection refused")
}
