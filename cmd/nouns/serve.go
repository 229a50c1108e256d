package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	onchainDI "github.com/nouns-dao/nouns-onchain/business/onchain/di"
	"github.com/nouns-dao/nouns-onchain/business/onchain/infra/api"
	"github.com/nouns-dao/nouns-onchain/internal/apm"
	"github.com/nouns-dao/nouns-onchain/internal/config"
	"github.com/nouns-dao/nouns-onchain/internal/health"
	"github.com/nouns-dao/nouns-onchain/internal/logger"
	"github.com/nouns-dao/nouns-onchain/internal/metrics"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, health probes and metrics endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), flags)
		},
	}
}

func serve(ctx context.Context, flags *rootFlags) error {
	s, err := bootstrap(ctx, flags, os.Stderr)
	if err != nil {
		return err
	}
	defer s.Close()

	cfg, log := s.cfg, s.log
	log.Info(ctx, "starting nouns on-chain service",
		"version", version,
		"environment", cfg.App.Environment,
	)

	// Telemetry must be installed before services resolve their tracers and meters.
	stopTelemetry, err := startTelemetry(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer stopTelemetry()

	if err := s.start(ctx); err != nil {
		return fmt.Errorf("failed to start modules: %w", err)
	}

	svc := s.service()

	healthServer := health.NewServer(cfg.Health.Port, version, log)
	healthServer.RegisterCheck("ethereum", health.Ping(onchainDI.GetBalanceReader(s.mono.Services()).Ping))
	healthServer.RegisterCheck("subgraph", health.Ping(onchainDI.GetSubgraphClient(s.mono.Services()).Ping))
	healthServer.RegisterCheck("streams", func(context.Context) (bool, string) {
		return true, fmt.Sprint(svc.StreamStates())
	})
	healthServer.Start(ctx)

	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	apiServer := api.NewServer(cfg.API.Port, onchainDI.GetRouter(s.mono.Services()), log)
	if err := apiServer.Start(ctx); err != nil {
		return fmt.Errorf("failed to start api: %w", err)
	}

	<-ctx.Done()
	log.Info(context.Background(), "shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := apiServer.Stop(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "api shutdown failed", "error", err)
	}
	if err := healthServer.Stop(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "health shutdown failed", "error", err)
	}
	return nil
}

func startTelemetry(ctx context.Context, cfg *config.Config, log logger.LoggerInterface) (func(), error) {
	if !cfg.Telemetry.Enabled {
		return func() {}, nil
	}

	tp, err := apm.NewTraceProvider(ctx, apm.Config{
		ServiceName: cfg.Telemetry.ServiceName,
		Provider:    apm.Provider(cfg.Telemetry.TraceProvider),
		Endpoint:    cfg.Telemetry.OTLPEndpoint,
		Headers:     cfg.Telemetry.OTLPHeaders,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("failed to start tracing: %w", err)
	}

	metricOpts := []metrics.OptionFn{
		metrics.WithServiceName(cfg.Telemetry.ServiceName),
		metrics.WithProviderConfig(metrics.ProviderCfg{Provider: metrics.PrometheusProvider}),
	}
	// A gRPC collector receiving spans gets the metrics as well.
	if apm.Provider(cfg.Telemetry.TraceProvider) == apm.OTLPGRPCProvider && cfg.Telemetry.OTLPEndpoint != "" {
		metricOpts = append(metricOpts, metrics.WithProviderConfig(
			metrics.NewOTLPConfig(cfg.Telemetry.OTLPEndpoint, apm.ParseHeaders(cfg.Telemetry.OTLPHeaders))))
	}

	mp, err := metrics.NewMetricProvider(ctx, metricOpts...)
	if err != nil {
		_ = tp.Stop()
		return nil, fmt.Errorf("failed to start metrics: %w", err)
	}

	metricsServer := metrics.NewServer(cfg.Telemetry.PrometheusPort, mp, log)
	metricsServer.Start(ctx)

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := metricsServer.Stop(shutdownCtx); err != nil {
			log.Warn(shutdownCtx, "metrics server shutdown failed", "error", err)
		}
		if err := mp.Shutdown(shutdownCtx); err != nil {
			log.Warn(shutdownCtx, "meter provider shutdown failed", "error", err)
		}
		if err := tp.Stop(); err != nil {
			log.Warn(shutdownCtx, "trace provider shutdown failed", "error", err)
		}
	}, nil
}
