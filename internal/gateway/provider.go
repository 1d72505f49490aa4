// Package gateway talks to the external payment provider.  Outbound, a
// Provider creates payment intents; inbound, the Adapter verifies signed
// callbacks and hands their outcome to the payment orchestrator.
package gateway

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
)

// IntentRequest asks the provider for a redirect payment page.
type IntentRequest struct {
	IntentToken   string // our token, echoed by the provider as its merchant reference
	BookingID     string
	Amount        int64
	CustomerName  string
	CustomerEmail string
}

// IntentResponse is what the provider returns for a new intent.
type IntentResponse struct {
	ProviderRef string // provider transaction id carried by later callbacks
	RedirectURL string // page the payer follows
}

// Provider creates payment intents.
type Provider interface {
	CreateIntent(ctx context.Context, req IntentRequest) (IntentResponse, error)
}

// Sandbox is a local Provider for development.  It invents provider
// references and points to a checkout page under CheckoutURL; callbacks are
// posted by hand or by a test harness.
type Sandbox struct {
	CheckoutURL string
}

// CreateIntent returns a random reference and its checkout URL.
func (s Sandbox) CreateIntent(ctx context.Context, req IntentRequest) (IntentResponse, error) {
	if err := ctx.Err(); err != nil {
		return IntentResponse{}, err
	}
	if req.Amount < 0 {
		return IntentResponse{}, fmt.Errorf("negative amount %d", req.Amount)
	}
	b := make([]byte, 12)
	if _, err := rand.Read(b); err != nil {
		return IntentResponse{}, err
	}
	ref := "sbx_" + hex.EncodeToString(b)
	return IntentResponse{
		ProviderRef: ref,
		RedirectURL: strings.TrimRight(s.CheckoutURL, "/") + "/" + ref,
	}, nil
}
