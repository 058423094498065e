// Package api exposes the storefront widget and admin HTTP surfaces.
// The widget surface never returns an error status for admission
// requests: the contract is "always return a valid, possibly-empty
// list" so a popup service hiccup can never break page rendering.
package api

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/rs/zerolog"

	"github.com/popsmart/campaign-engine/internal/audit"
	"github.com/popsmart/campaign-engine/internal/commerce"
	"github.com/popsmart/campaign-engine/internal/pipeline"
	"github.com/popsmart/campaign-engine/internal/prize"
	"github.com/popsmart/campaign-engine/internal/store"
	"github.com/popsmart/campaign-engine/internal/telemetry"
	"github.com/popsmart/campaign-engine/internal/webhook"
)

// Server carries the dependencies of the HTTP surface.
type Server struct {
	store       store.Store
	pipe        *pipeline.Pipeline
	prizes      *prize.Selector
	issuer      commerce.Issuer
	events      *webhook.Dispatcher
	auditor     *audit.Service
	adminAPIKey string
	rateLimit   int
	log         zerolog.Logger

	// claims pins the first prize draw per claimant so a repeated claim
	// returns the same prize and code pair.
	claimMu sync.Mutex
	claims  map[string]claimResponse
}

// NewServer creates the HTTP server. issuer may be nil when no
// commerce platform is configured; reward claims then return prizes
// without codes. events and auditor may likewise be nil.
func NewServer(st store.Store, pipe *pipeline.Pipeline, issuer commerce.Issuer, events *webhook.Dispatcher, auditor *audit.Service, adminKey string, rateLimitPerIP int, log zerolog.Logger) *Server {
	return &Server{
		store:       st,
		pipe:        pipe,
		prizes:      prize.New(),
		issuer:      issuer,
		events:      events,
		auditor:     auditor,
		adminAPIKey: adminKey,
		rateLimit:   rateLimitPerIP,
		log:         log,
		claims:      make(map[string]claimResponse),
	}
}

// dispatchEvent forwards an event when a dispatcher is configured.
func (s *Server) dispatchEvent(e webhook.Event) {
	if s.events != nil {
		s.events.Dispatch(e)
	}
}

// recordAudit forwards an entry when an audit service is configured.
func (s *Server) recordAudit(e audit.Entry) {
	if s.auditor != nil {
		s.auditor.Record(e)
	}
}

// Router builds the chi router with all routes and middleware.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Second))
	r.Use(telemetry.Middleware)

	// health
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// widget surface, rate limited per IP
	r.Group(func(r chi.Router) {
		if s.rateLimit > 0 {
			r.Use(httprate.LimitByIP(s.rateLimit, time.Minute))
		}
		r.Get("/v1/campaigns/active", s.handleActiveCampaigns)
		r.Post("/v1/campaigns/{id}/shown", s.handleShown)
		r.Post("/v1/campaigns/{id}/claim", s.handleClaim)
	})

	// admin (protected)
	r.Route("/v1/admin/campaigns", func(r chi.Router) {
		r.Get("/", s.authAdmin(s.handleListCampaigns))
		r.Post("/", s.authAdmin(s.handleUpsertCampaign))
		r.Delete("/{id}", s.authAdmin(s.handleDeleteCampaign))
	})

	return r
}

// authAdmin guards write operations with a constant-time bearer token
// comparison.
func (s *Server) authAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if s.adminAPIKey == "" ||
			subtle.ConstantTimeCompare([]byte(token), []byte(s.adminAPIKey)) != 1 {
			writeError(w, http.StatusUnauthorized, "invalid or missing API key")
			return
		}
		next(w, r)
	}
}
