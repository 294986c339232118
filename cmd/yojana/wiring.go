package main

import (
	"context"
	"expvar"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"yojana/internal/api"
	"yojana/internal/blob"
	"yojana/internal/config"
	"yojana/internal/core"
	"yojana/internal/infra/events"
)

// app holds everything serve needs, plus the cleanups to run on exit.
type app struct {
	logger  *slog.Logger
	svc     *core.Service
	handler http.Handler
	closers []func() error
}

func (a *app) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}

func storageConfig(cfg config.Storage) core.StorageConfig {
	return core.StorageConfig{
		Driver:      core.StorageDriver(cfg.Driver),
		SQLitePath:  cfg.SQLitePath,
		PostgresDSN: cfg.PostgresDSN,
	}
}

// openBlobs returns nil when signature storage is disabled.
func openBlobs(ctx context.Context, cfg config.Blob) (blob.Store, error) {
	if cfg.Driver == "none" {
		return nil, nil
	}
	return blob.Open(ctx, blob.Config{
		Driver: blob.Driver(cfg.Driver),
		FSRoot: cfg.FSRoot,
		S3: blob.S3Config{
			Bucket:          cfg.S3.Bucket,
			Region:          cfg.S3.Region,
			Endpoint:        cfg.S3.Endpoint,
			PathStyle:       cfg.S3.PathStyle,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
		},
	})
}

// openService opens the configured store and returns a service over it
// together with the function closing the store.
func openService(ctx context.Context, cfg config.Config, opts ...core.ServiceOption) (*core.Service, func() error, error) {
	store, closeStore, err := core.OpenPersistentStore(ctx, storageConfig(cfg.Storage), core.NewDefaultRulesEngine())
	if err != nil {
		return nil, nil, fmt.Errorf("open %s store: %w", cfg.Storage.Driver, err)
	}
	return core.NewService(store, opts...), closeStore, nil
}

// buildApp wires storage, blobs, observability and the HTTP handler.
func buildApp(ctx context.Context, cfg config.Config, logger *slog.Logger, traceOut io.Writer) (*app, error) {
	a := &app{logger: logger}
	opts := []core.ServiceOption{core.WithLogger(logger)}
	var apiOpts []api.Option
	apiOpts = append(apiOpts, api.WithLogger(logger))

	blobs, err := openBlobs(ctx, cfg.Blob)
	if err != nil {
		return nil, fmt.Errorf("open %s blob store: %w", cfg.Blob.Driver, err)
	}
	if blobs != nil {
		opts = append(opts, core.WithBlobStore(blobs))
	} else {
		logger.Warn("signature storage disabled")
	}

	switch cfg.Metrics.Exporter {
	case "prometheus":
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		recorder, err := core.NewPrometheusMetricsRecorder(reg)
		if err != nil {
			return nil, err
		}
		httpMetrics, err := api.NewHTTPMetrics(reg)
		if err != nil {
			return nil, err
		}
		opts = append(opts, core.WithMetricsRecorder(recorder))
		apiOpts = append(apiOpts,
			api.WithHTTPMetrics(httpMetrics),
			api.WithHandler(cfg.Metrics.Path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})),
		)
	case "expvar":
		opts = append(opts, core.WithMetricsRecorder(core.NewExpvarMetricsRecorder("yojana")))
		apiOpts = append(apiOpts, api.WithHandler("/debug/vars", expvar.Handler()))
	}
	if cfg.Metrics.Trace && traceOut != nil {
		opts = append(opts, core.WithTracer(core.NewJSONTracer(traceOut)))
	}

	audit := core.MultiAuditRecorder{core.NewLogAuditRecorder(logger)}
	if cfg.Events.URL != "" {
		pub, err := events.Dial(cfg.Events.URL, cfg.Events.Exchange, cfg.Events.RoutingKey, events.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, pub.Close)
		audit = append(audit, pub)
		logger.Info("publishing audit events", "exchange", cfg.Events.Exchange)
	}
	opts = append(opts, core.WithAuditRecorder(audit))

	svc, closeStore, err := openService(ctx, cfg, opts...)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.closers = append(a.closers, closeStore)
	a.svc = svc
	a.handler = api.NewServer(svc, apiOpts...)
	return a, nil
}
