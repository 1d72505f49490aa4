package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/tour-booking-engine/internal/model"
)

type fakeIntents map[string]*model.PaymentIntent

func (f fakeIntents) GetIntentByProviderRef(_ context.Context, ref string) (*model.PaymentIntent, error) {
	if in, ok := f[ref]; ok {
		return in, nil
	}
	return nil, model.ErrIntentNotFound
}

type fakeReconciler struct {
	calls []string
	err   error
}

func (f *fakeReconciler) OnGatewayCallback(_ context.Context, token string, outcome model.GatewayOutcome) (*model.Booking, error) {
	f.calls = append(f.calls, token+":"+string(outcome))
	if f.err != nil {
		return nil, f.err
	}
	return &model.Booking{ID: "b-1", Payment: model.Payment{Method: model.MethodGateway, Status: model.PaymentStatus(outcome)}}, nil
}

const secret = "whsec_test"

func signed(t *testing.T, cb Callback) ([]byte, string) {
	t.Helper()
	body, err := json.Marshal(cb)
	require.NoError(t, err)
	return body, Sign([]byte(secret), body)
}

func newAdapter(rec *fakeReconciler) *Adapter {
	intents := fakeIntents{"ref-1": {Token: "tok-1", BookingID: "b-1", ProviderRef: "ref-1", Amount: 2_200_000}}
	return NewAdapter(secret, intents, rec, zap.NewNop())
}

func TestHandleAppliesSettlement(t *testing.T) {
	rec := &fakeReconciler{}
	body, sig := signed(t, Callback{TransactionID: "ref-1", Status: "settlement", GrossAmount: 2_200_000})

	res, b, err := newAdapter(rec).Handle(context.Background(), body, sig)
	require.NoError(t, err)
	assert.Equal(t, ResultApplied, res)
	assert.Equal(t, model.PaymentPaid, b.Payment.Status)
	assert.Equal(t, []string{"tok-1:PAID"}, rec.calls)
}

func TestHandleRejectsBadSignature(t *testing.T) {
	rec := &fakeReconciler{}
	body, _ := signed(t, Callback{TransactionID: "ref-1", Status: "settlement"})

	_, _, err := newAdapter(rec).Handle(context.Background(), body, Sign([]byte("other"), body))
	require.ErrorIs(t, err, model.ErrInvalidSignature)

	_, _, err = newAdapter(rec).Handle(context.Background(), body, "not-hex")
	require.ErrorIs(t, err, model.ErrInvalidSignature)
	assert.Empty(t, rec.calls)
}

func TestHandleDuplicateIsAcknowledged(t *testing.T) {
	rec := &fakeReconciler{err: model.ErrDuplicateCallback}
	body, sig := signed(t, Callback{TransactionID: "ref-1", Status: "capture"})

	res, _, err := newAdapter(rec).Handle(context.Background(), body, sig)
	require.NoError(t, err)
	assert.Equal(t, ResultDuplicate, res)
}

func TestHandleStaleIsRejected(t *testing.T) {
	rec := &fakeReconciler{err: model.ErrStaleIntentToken}
	body, sig := signed(t, Callback{TransactionID: "ref-1", Status: "settlement"})

	_, _, err := newAdapter(rec).Handle(context.Background(), body, sig)
	require.ErrorIs(t, err, model.ErrStaleIntentToken)
}

func TestHandlePendingIsIgnored(t *testing.T) {
	rec := &fakeReconciler{}
	body, sig := signed(t, Callback{TransactionID: "ref-1", Status: "pending"})

	res, _, err := newAdapter(rec).Handle(context.Background(), body, sig)
	require.NoError(t, err)
	assert.Equal(t, ResultIgnored, res)
	assert.Empty(t, rec.calls)
}

func TestHandleUnknownTransactionAndAmount(t *testing.T) {
	rec := &fakeReconciler{}
	a := newAdapter(rec)

	body, sig := signed(t, Callback{TransactionID: "ref-9", Status: "settlement"})
	_, _, err := a.Handle(context.Background(), body, sig)
	require.ErrorIs(t, err, model.ErrIntentNotFound)

	body, sig = signed(t, Callback{TransactionID: "ref-1", Status: "settlement", GrossAmount: 1})
	_, _, err = a.Handle(context.Background(), body, sig)
	require.ErrorIs(t, err, model.ErrAmountMismatch)

	body, sig = signed(t, Callback{TransactionID: "ref-1", Status: "refund_maybe"})
	_, _, err = a.Handle(context.Background(), body, sig)
	require.ErrorIs(t, err, model.ErrValidation)
	assert.Empty(t, rec.calls)
}

func TestHandleFailureOutcome(t *testing.T) {
	rec := &fakeReconciler{}
	body, sig := signed(t, Callback{TransactionID: "ref-1", Status: "expire"})

	res, _, err := newAdapter(rec).Handle(context.Background(), body, sig)
	require.NoError(t, err)
	assert.Equal(t, ResultApplied, res)
	assert.Equal(t, []string{"tok-1:FAILED"}, rec.calls)
}

func TestSandboxCreateIntent(t *testing.T) {
	resp, err := Sandbox{CheckoutURL: "http://localhost:8080/checkout/"}.CreateIntent(context.Background(), IntentRequest{IntentToken: "t", Amount: 10})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(resp.ProviderRef, "sbx_"))
	assert.Equal(t, "http://localhost:8080/checkout/"+resp.ProviderRef, resp.RedirectURL)

	other, err := Sandbox{}.CreateIntent(context.Background(), IntentRequest{})
	require.NoError(t, err)
	assert.NotEqual(t, resp.ProviderRef, other.ProviderRef)
}

func TestHTTPProviderCreateIntent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/payment-links", r.URL.Path)
		user, _, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "server-key", user)

		var req createLinkReq
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "tok-1", req.Reference)
		assert.Equal(t, int64(2_200_000), req.Amount)
		assert.Equal(t, "b-1", req.Metadata["booking_id"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"trx-1","url":"https://pay.example/trx-1"}`))
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL+"/", "server-key", time.Second)
	resp, err := p.CreateIntent(context.Background(), IntentRequest{IntentToken: "tok-1", BookingID: "b-1", Amount: 2_200_000})
	require.NoError(t, err)
	assert.Equal(t, "trx-1", resp.ProviderRef)
	assert.Equal(t, "https://pay.example/trx-1", resp.RedirectURL)
}

func TestHTTPProviderErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "merchant suspended", http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := NewHTTPProvider(srv.URL, "k", time.Second).CreateIntent(context.Background(), IntentRequest{IntentToken: "t"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}
