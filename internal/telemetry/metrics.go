package telemetry

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpReqs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"route", "method", "status"},
	)
	httpDur = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)

	Admissions = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "campaign_admissions_total",
		Help: "Campaigns admitted by the filter pipeline",
	})
	Exclusions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campaign_exclusions_total",
			Help: "Campaigns excluded by the filter pipeline, by reason",
		},
		[]string{"reason"},
	)
	DegradedChecks = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "frequency_cap_degraded_checks_total",
		Help: "Cap checks that failed open because the counter store was unreachable",
	})
	PrizeDraws = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prize_draws_total",
			Help: "Server-side weighted prize draws, by template type",
		},
		[]string{"template"},
	)
	ActiveCampaigns = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "active_campaigns",
		Help: "Active campaigns returned by the most recent store load",
	})
)

func Init() {
	prometheus.MustRegister(httpReqs, httpDur, Admissions, Exclusions, DegradedChecks, PrizeDraws, ActiveCampaigns)
}

func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// get route pattern if available
		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}

		start := time.Now()
		ww := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(ww, r)

		httpReqs.WithLabelValues(route, r.Method, http.StatusText(ww.status)).Inc()
		httpDur.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
