package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ABHI-11949/avatar/internal/config"
	"github.com/ABHI-11949/avatar/internal/events"
	"github.com/ABHI-11949/avatar/internal/gateway"
	"github.com/ABHI-11949/avatar/internal/heygen"
	"github.com/ABHI-11949/avatar/internal/httpapi"
	"github.com/ABHI-11949/avatar/internal/journal"
	"github.com/ABHI-11949/avatar/internal/observability"
	"github.com/ABHI-11949/avatar/internal/session"
)

// eventBuffer is the per-subscriber queue length of the live event hub.
const eventBuffer = 32

type BuildResult struct {
	Config   config.Config
	API      *httpapi.Server
	Gateway  *gateway.Service
	Sessions *session.Registry
	Hub      *events.Hub
	Metrics  *observability.Metrics

	// Cleanup releases the journal pool and the Redis client.
	Cleanup func() error
}

// Options overrides process-wide defaults, mostly for tests.
type Options struct {
	Registerer prometheus.Registerer
}

func Build(ctx context.Context, cfg config.Config, logger *slog.Logger, opts Options) (*BuildResult, error) {
	var metrics *observability.Metrics
	if opts.Registerer != nil {
		metrics = observability.NewMetricsWith(cfg.MetricsNamespace, opts.Registerer)
	} else {
		metrics = observability.NewMetrics(cfg.MetricsNamespace)
	}

	var provider heygen.Provider
	if cfg.MockProvider() {
		logger.Warn("heygen provider: mock (no upstream calls)")
		provider = heygen.NewMockProvider()
	} else {
		provider = heygen.NewClient(heygen.Config{
			BaseURL: cfg.HeyGenAPIURL,
			APIKey:  cfg.HeyGenAPIKey,
			Timeout: cfg.HeyGenTimeout,
		}, metrics)
		logger.Info("heygen provider: http", "base_url", cfg.HeyGenAPIURL)
	}

	store, err := journal.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("journal init failed: %w", err)
	}
	closers := []func() error{store.Close}

	hub := events.NewHub(eventBuffer, func() { metrics.ObserveDroppedEvent("hub") })
	sinks := events.Fanout{hub, store}

	if cfg.RedisAddr != "" {
		redisSink, err := events.NewRedisSink(ctx, events.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			Stream:   cfg.RedisStream,
		})
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("redis sink init failed: %w", err)
		}
		sinks = append(sinks, redisSink)
		closers = append(closers, redisSink.Close)
		logger.Info("session events mirrored to redis", "stream", cfg.RedisStream)
	}

	sessions := session.NewRegistry()
	gw := gateway.NewService(provider, sessions, gateway.Defaults{
		AvatarID: cfg.DefaultAvatarID,
		VoiceID:  cfg.DefaultVoiceID,
	}, sinks, metrics, logger)

	api, err := httpapi.New(cfg, gw, hub, store, metrics, logger)
	if err != nil {
		_ = closeAll(closers)
		return nil, fmt.Errorf("http api init failed: %w", err)
	}

	return &BuildResult{
		Config:   cfg,
		API:      api,
		Gateway:  gw,
		Sessions: sessions,
		Hub:      hub,
		Metrics:  metrics,
		Cleanup:  func() error { return closeAll(closers) },
	}, nil
}

func closeAll(closers []func() error) error {
	var errs []error
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
