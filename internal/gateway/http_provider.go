package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPProvider creates intents through the provider's REST API:
// POST {BaseURL}/v1/payment-links with basic auth (server key as user).
type HTTPProvider struct {
	baseURL   string
	serverKey string
	client    *http.Client
}

// NewHTTPProvider returns a provider client with the given request timeout.
func NewHTTPProvider(baseURL, serverKey string, timeout time.Duration) *HTTPProvider {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPProvider{
		baseURL:   strings.TrimRight(baseURL, "/"),
		serverKey: serverKey,
		client:    &http.Client{Timeout: timeout},
	}
}

type createLinkReq struct {
	Reference string `json:"reference"`
	Amount    int64  `json:"amount"`
	Customer  struct {
		Name  string `json:"name,omitempty"`
		Email string `json:"email,omitempty"`
	} `json:"customer"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type createLinkResp struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// CreateIntent posts the intent and decodes the provider reference and
// redirect URL.  Any non-2xx status is an error.
func (p *HTTPProvider) CreateIntent(ctx context.Context, req IntentRequest) (IntentResponse, error) {
	body := createLinkReq{Reference: req.IntentToken, Amount: req.Amount}
	body.Customer.Name = req.CustomerName
	body.Customer.Email = req.CustomerEmail
	body.Metadata = map[string]string{"booking_id": req.BookingID}

	raw, err := json.Marshal(body)
	if err != nil {
		return IntentResponse{}, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/payment-links", bytes.NewReader(raw))
	if err != nil {
		return IntentResponse{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.SetBasicAuth(p.serverKey, "")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return IntentResponse{}, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return IntentResponse{}, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return IntentResponse{}, fmt.Errorf("provider returned %d: %s", resp.StatusCode, truncate(string(payload), 200))
	}

	var out createLinkResp
	if err := json.Unmarshal(payload, &out); err != nil {
		return IntentResponse{}, fmt.Errorf("decode provider response: %w", err)
	}
	if out.ID == "" || out.URL == "" {
		return IntentResponse{}, fmt.Errorf("provider response missing id or url")
	}
	return IntentResponse{ProviderRef: out.ID, RedirectURL: out.URL}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
