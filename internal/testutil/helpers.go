// Package testutil provides shared helpers for HTTP-level tests.
package testutil

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/popsmart/campaign-engine/internal/api"
	"github.com/popsmart/campaign-engine/internal/campaign"
	"github.com/popsmart/campaign-engine/internal/commerce"
	"github.com/popsmart/campaign-engine/internal/frequency"
	"github.com/popsmart/campaign-engine/internal/pipeline"
	"github.com/popsmart/campaign-engine/internal/store"
)

// NewTestServer creates a test server wired over in-memory stores.
func NewTestServer(t *testing.T, adminKey string) (*api.Server, *store.MemoryStore, *frequency.MemoryStore) {
	t.Helper()
	memStore := store.NewMemoryStore()
	caps := frequency.NewMemoryStore(30*time.Minute, frequency.DayWindowRolling)
	pipe := pipeline.New(caps, pipeline.Options{BucketSalt: "test-salt"}, zerolog.Nop())
	server := api.NewServer(memStore, pipe, commerce.NewMemoryIssuer(), nil, nil, adminKey, 0, zerolog.Nop())
	return server, memStore, caps
}

// HTTPRequest is a helper for making test HTTP requests.
type HTTPRequest struct {
	Method  string
	Path    string
	Body    string
	Headers map[string]string
	Cookies []*http.Cookie
}

// Do executes the HTTP request and returns the response recorder.
func (r *HTTPRequest) Do(t *testing.T, handler http.Handler) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if r.Body != "" {
		body = bytes.NewBufferString(r.Body)
	}
	req := httptest.NewRequest(r.Method, r.Path, body)
	if r.Body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range r.Headers {
		req.Header.Set(k, v)
	}
	for _, c := range r.Cookies {
		req.AddCookie(c)
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

// SeedCampaigns populates the store with test campaigns.
func SeedCampaigns(ctx context.Context, st store.Store, campaigns []campaign.Campaign) error {
	for _, c := range campaigns {
		if err := st.UpsertCampaign(ctx, c); err != nil {
			return err
		}
	}
	return nil
}
