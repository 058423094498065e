package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/popsmart/campaign-engine/internal/api"
	"github.com/popsmart/campaign-engine/internal/audit"
	"github.com/popsmart/campaign-engine/internal/commerce"
	"github.com/popsmart/campaign-engine/internal/config"
	"github.com/popsmart/campaign-engine/internal/frequency"
	"github.com/popsmart/campaign-engine/internal/pipeline"
	"github.com/popsmart/campaign-engine/internal/store"
	"github.com/popsmart/campaign-engine/internal/telemetry"
	"github.com/popsmart/campaign-engine/internal/webhook"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("config")
	}

	telemetry.Init()
	ctx := context.Background()

	st, err := store.NewStore(ctx, store.Backend(cfg.StoreType), cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("campaign store")
	}
	defer st.Close()

	sessionTTL := time.Duration(cfg.SessionTTLSeconds) * time.Second
	dayWindow := frequency.DayWindow(cfg.DayWindow)

	var caps frequency.Store
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		caps = frequency.NewRedisStore(rdb, sessionTTL, dayWindow, logger)
		logger.Info().Str("addr", cfg.RedisAddr).Msg("frequency counters on redis")
	} else {
		caps = frequency.NewMemoryStore(sessionTTL, dayWindow)
		logger.Warn().Msg("REDIS_ADDR empty, frequency counters are in-memory and per-instance")
	}
	defer caps.Close()

	pipe := pipeline.New(caps, pipeline.Options{
		BucketSalt:           cfg.BucketSalt,
		TieBreak:             pipeline.TieBreak(cfg.TieBreak),
		VisitorImpressionCap: cfg.VisitorImpressionCap,
	}, logger)

	var issuer commerce.Issuer
	if cfg.CommerceBaseURL != "" {
		issuer = commerce.NewHTTPIssuer(cfg.CommerceBaseURL, cfg.CommerceAPIKey, logger)
	}

	var events *webhook.Dispatcher
	if cfg.WebhookURL != "" {
		events = webhook.NewDispatcher([]webhook.Subscription{{
			URL:            cfg.WebhookURL,
			Secret:         cfg.WebhookSecret,
			MaxRetries:     3,
			TimeoutSeconds: 10,
		}}, logger)
		events.Start()
		defer events.Close()
		logger.Info().Str("url", cfg.WebhookURL).Msg("webhook deliveries enabled")
	}

	auditor := audit.NewService(audit.NewLogSink(logger))
	defer auditor.Close()

	srvAPI := api.NewServer(st, pipe, issuer, events, auditor, cfg.AdminAPIKey, cfg.RateLimitPerIP, logger)

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      srvAPI.Router(),
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", cfg.HTTPAddr).Msg("listening")
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server")
		}
	}()

	metricsSrv := &http.Server{Addr: cfg.MetricsAddr, Handler: promhttp.Handler()}
	go func() {
		logger.Info().Str("addr", cfg.MetricsAddr).Msg("metrics listening")
		if err := metricsSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics server")
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	ctxShut, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctxShut)
	_ = metricsSrv.Shutdown(ctxShut)
	logger.Info().Msg("stopped")
}
