// Package commerce is the narrow seam to the commerce platform: issue
// or retrieve a discount code for a (store, campaign, email) tuple.
// Issuance is idempotent per tuple, so the reward flow may call it
// zero or more times without double-issuing distinct codes to the same
// lead.
package commerce

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"

	"github.com/popsmart/campaign-engine/internal/campaign"
)

// maxResponseBodySize limits how much of an error response body is read (1KB).
const maxResponseBodySize = 1024

// Request identifies one code issuance.
type Request struct {
	StoreID    string                  `json:"storeId"`
	CampaignID string                  `json:"campaignId"`
	Email      string                  `json:"email"`
	Discount   campaign.DiscountConfig `json:"discountConfig"`
}

func (r Request) idempotencyKey() string {
	return r.StoreID + "|" + r.CampaignID + "|" + r.Email
}

// Issuer issues or retrieves a discount code.
type Issuer interface {
	IssueCode(ctx context.Context, req Request) (string, error)
}

// HTTPIssuer talks to the commerce platform over HTTP with exponential
// backoff retries. Issued codes are cached per idempotency key so a
// repeated claim returns the original code without another round trip.
type HTTPIssuer struct {
	client  *http.Client
	baseURL string
	apiKey  string
	log     zerolog.Logger

	mu     sync.Mutex
	issued map[string]string
}

// NewHTTPIssuer creates an issuer against the given commerce API.
func NewHTTPIssuer(baseURL, apiKey string, log zerolog.Logger) *HTTPIssuer {
	return &HTTPIssuer{
		client:  &http.Client{Timeout: 10 * time.Second},
		baseURL: baseURL,
		apiKey:  apiKey,
		log:     log,
		issued:  make(map[string]string),
	}
}

type issueResponse struct {
	Code string `json:"code"`
}

// IssueCode issues a code, retrying transient failures. The same
// (store, campaign, email) tuple always yields the same code.
func (h *HTTPIssuer) IssueCode(ctx context.Context, req Request) (string, error) {
	key := req.idempotencyKey()

	h.mu.Lock()
	if code, ok := h.issued[key]; ok {
		h.mu.Unlock()
		return code, nil
	}
	h.mu.Unlock()

	code, err := backoff.Retry(ctx, func() (string, error) {
		return h.issueOnce(ctx, req, key)
	}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxTries(4))
	if err != nil {
		return "", fmt.Errorf("issue discount code: %w", err)
	}

	h.mu.Lock()
	h.issued[key] = code
	h.mu.Unlock()
	return code, nil
}

func (h *HTTPIssuer) issueOnce(ctx context.Context, req Request, key string) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", backoff.Permanent(err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+"/v1/discount-codes", bytes.NewReader(body))
	if err != nil {
		return "", backoff.Permanent(err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+h.apiKey)
	httpReq.Header.Set("Idempotency-Key", key)

	resp, err := h.client.Do(httpReq)
	if err != nil {
		h.log.Warn().Err(err).Str("campaign", req.CampaignID).Msg("commerce request failed, retrying")
		return "", err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
		var out issueResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return "", backoff.Permanent(fmt.Errorf("decode commerce response: %w", err))
		}
		if out.Code == "" {
			return "", backoff.Permanent(fmt.Errorf("commerce returned empty code"))
		}
		return out.Code, nil
	case resp.StatusCode >= 500:
		// Server-side failures are retryable.
		return "", fmt.Errorf("commerce API status %d", resp.StatusCode)
	default:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
		return "", backoff.Permanent(fmt.Errorf("commerce API status %d: %s", resp.StatusCode, string(msg)))
	}
}

// MemoryIssuer is a fake Issuer for tests and development. It mints
// deterministic codes and honors the idempotency contract.
type MemoryIssuer struct {
	mu     sync.Mutex
	issued map[string]string
	serial int
}

// NewMemoryIssuer creates an empty in-memory issuer.
func NewMemoryIssuer() *MemoryIssuer {
	return &MemoryIssuer{issued: make(map[string]string)}
}

// IssueCode returns the code for the tuple, minting one on first use.
func (m *MemoryIssuer) IssueCode(_ context.Context, req Request) (string, error) {
	key := req.idempotencyKey()
	m.mu.Lock()
	defer m.mu.Unlock()
	if code, ok := m.issued[key]; ok {
		return code, nil
	}
	m.serial++
	code := fmt.Sprintf("PROMO-%s-%04d", req.CampaignID, m.serial)
	m.issued[key] = code
	return code, nil
}
