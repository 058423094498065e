package commerce

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"

	"github.com/popsmart/campaign-engine/internal/campaign"
)

func testRequest() Request {
	return Request{
		StoreID:    "shop-1",
		CampaignID: "camp-1",
		Email:      "lead@example.com",
		Discount:   campaign.DiscountConfig{Type: "percentage", Value: 10},
	}
}

func TestHTTPIssuer_IssuesCode(t *testing.T) {
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/discount-codes" {
			t.Errorf("Unexpected path %q", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer api-key" {
			t.Errorf("Missing bearer token, got %q", r.Header.Get("Authorization"))
		}
		gotKey = r.Header.Get("Idempotency-Key")

		var req Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.CampaignID != "camp-1" {
			t.Errorf("Expected camp-1, got %q", req.CampaignID)
		}
		_ = json.NewEncoder(w).Encode(issueResponse{Code: "SAVE10"})
	}))
	defer srv.Close()

	issuer := NewHTTPIssuer(srv.URL, "api-key", zerolog.Nop())
	code, err := issuer.IssueCode(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if code != "SAVE10" {
		t.Errorf("Expected SAVE10, got %q", code)
	}
	if gotKey != "shop-1|camp-1|lead@example.com" {
		t.Errorf("Unexpected idempotency key %q", gotKey)
	}
}

func TestHTTPIssuer_CachesPerIdempotencyKey(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_ = json.NewEncoder(w).Encode(issueResponse{Code: "SAVE10"})
	}))
	defer srv.Close()

	issuer := NewHTTPIssuer(srv.URL, "api-key", zerolog.Nop())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		code, err := issuer.IssueCode(ctx, testRequest())
		if err != nil {
			t.Fatalf("issue %d: %v", i, err)
		}
		if code != "SAVE10" {
			t.Errorf("Expected SAVE10, got %q", code)
		}
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("Expected one upstream call, got %d", got)
	}

	// A different email is a different tuple and does hit the platform.
	other := testRequest()
	other.Email = "other@example.com"
	if _, err := issuer.IssueCode(ctx, other); err != nil {
		t.Fatalf("issue other: %v", err)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("Expected a second upstream call, got %d", got)
	}
}

func TestHTTPIssuer_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode(issueResponse{Code: "SAVE10"})
	}))
	defer srv.Close()

	issuer := NewHTTPIssuer(srv.URL, "api-key", zerolog.Nop())
	code, err := issuer.IssueCode(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if code != "SAVE10" {
		t.Errorf("Expected SAVE10 after retries, got %q", code)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("Expected 3 attempts, got %d", got)
	}
}

func TestHTTPIssuer_ClientErrorIsPermanent(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "unknown store", http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	issuer := NewHTTPIssuer(srv.URL, "api-key", zerolog.Nop())
	if _, err := issuer.IssueCode(context.Background(), testRequest()); err == nil {
		t.Fatal("Expected an error for a 422 response")
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("Expected no retries on a client error, got %d attempts", got)
	}
}

func TestHTTPIssuer_EmptyCodeIsPermanent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(issueResponse{})
	}))
	defer srv.Close()

	issuer := NewHTTPIssuer(srv.URL, "api-key", zerolog.Nop())
	if _, err := issuer.IssueCode(context.Background(), testRequest()); err == nil {
		t.Fatal("Expected an error for an empty code")
	}
}

func TestMemoryIssuer_Idempotent(t *testing.T) {
	issuer := NewMemoryIssuer()
	ctx := context.Background()

	first, err := issuer.IssueCode(ctx, testRequest())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	again, err := issuer.IssueCode(ctx, testRequest())
	if err != nil {
		t.Fatalf("second issue: %v", err)
	}
	if first != again {
		t.Errorf("Expected the same code, got %q then %q", first, again)
	}

	other := testRequest()
	other.Email = "other@example.com"
	distinct, err := issuer.IssueCode(ctx, other)
	if err != nil {
		t.Fatalf("issue other: %v", err)
	}
	if distinct == first {
		t.Error("Expected a distinct code for a different lead")
	}
}
