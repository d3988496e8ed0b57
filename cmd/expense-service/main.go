// Command expense-service approves expense reports from actionable messages.
//
// It validates the bearer token of every POST /api/expense request, checks
// that the message was sent from an allowed domain and answers with the
// sender and the user who performed the action.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	amtokenmiddleware "github.com/actionablemessages/go-amtoken-middleware"
	"github.com/actionablemessages/go-amtoken-middleware/internal/config"
	"github.com/actionablemessages/go-amtoken-middleware/jwks"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(".env")
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.Observability)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	var registry *prometheus.Registry
	if cfg.Observability.MetricsEnabled {
		registry = prometheus.NewRegistry()
		registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}

	handler, cleanup, err := newApp(cfg, logger, registry)
	if err != nil {
		return err
	}
	defer cleanup()

	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("expense service listening", zap.String("addr", srv.Addr), zap.String("environment", cfg.Environment))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// newApp builds the validation pipeline and the router. registry may be nil
// to disable metrics.
func newApp(cfg *config.Config, logger *zap.Logger, registry *prometheus.Registry) (http.Handler, func(), error) {
	cleanup := func() {}
	amLogger := amtokenmiddleware.NewZapLogger(logger.Sugar())

	pipelineCfg := amtokenmiddleware.PipelineConfig{
		DiscoveryURL: cfg.Token.DiscoveryURL,
		JWKSURI:      cfg.Token.JWKSURI,
		Issuer:       cfg.Token.Issuer,
		AppID:        cfg.Token.AppID,
		Retry:        jwks.RetryPolicy{Attempts: cfg.Token.FetchRetries},
		CacheTTL:     cfg.Token.CacheTTL,
		ClockSkew:    &cfg.Token.ClockSkew,
		Logger:       amLogger,
		Tracer:       amtokenmiddleware.NewOpenTelemetryTracer(otel.Tracer("expense-service")),
	}

	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pipelineCfg.Cache = jwks.NewRedisCache(client, cfg.Redis.KeyPrefix)
		cleanup = func() { _ = client.Close() }
	}

	var metrics http.Handler
	if registry != nil {
		pipelineCfg.Metrics = amtokenmiddleware.NewPrometheusMetrics(registry)
		metrics = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	}

	pipeline, err := amtokenmiddleware.NewPipeline(pipelineCfg)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	opts := []amtokenmiddleware.Option{
		amtokenmiddleware.WithValidator(pipeline),
		amtokenmiddleware.WithLogger(amLogger),
		amtokenmiddleware.WithValidateOnOptions(false),
	}
	switch {
	case cfg.Token.TargetFromRequest && cfg.Token.TrustProxyHeaders:
		opts = append(opts, amtokenmiddleware.WithTargetFunc(amtokenmiddleware.TargetFromProxiedRequest(&amtokenmiddleware.TrustedProxyConfig{
			TrustXForwardedProto: true,
			TrustXForwardedHost:  true,
			TrustForwarded:       true,
		})))
	case cfg.Token.TargetFromRequest:
		opts = append(opts, amtokenmiddleware.WithTargetFunc(amtokenmiddleware.TargetFromRequest))
	default:
		opts = append(opts, amtokenmiddleware.WithTarget(cfg.Token.Target))
	}

	auth, err := amtokenmiddleware.New(opts...)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	return newServer(logger, cfg.Token.AllowedSenderDomains).routes(auth, metrics), cleanup, nil
}

func newLogger(cfg config.ObservabilityConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	zapCfg := zap.NewProductionConfig()
	if cfg.LogFormat == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
