package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"fiscalcli/internal/config"
	"fiscalcli/internal/exporter"
	"fiscalcli/internal/infrastructure"
	"fiscalcli/internal/ingest"
	"fiscalcli/internal/operations"
	"fiscalcli/internal/services"
	transporthttp "fiscalcli/internal/transport/http"
)

// Version is stamped at build time via -ldflags
var Version = "dev"

func main() {
	inPath := flag.String("in", "", "optional input file to run the pipeline on at startup")
	flag.Parse()

	if err := run(*inPath); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(inPath string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	providers, err := infrastructure.InitializeOTel(&infrastructure.OTelConfig{
		ServiceVersion: Version,
	}, logger)
	if err != nil {
		return fmt.Errorf("initialize telemetry: %w", err)
	}
	defer providers.Shutdown(context.Background())

	metrics, err := infrastructure.CreatePipelineMetrics(providers.Meter)
	if err != nil {
		return fmt.Errorf("create pipeline metrics: %w", err)
	}

	runner := operations.NewRunner(cfg.Pipeline, logger, providers.Tracer, metrics)
	exp := exporter.NewSnapshotExporter(cfg.Paths.ReportsDir, logger)
	pipeline := services.NewPipelineService(runner, exp, logger)
	scenarios := services.NewScenarioService(logger)

	if inPath != "" {
		records, err := loadRecords(ctx, inPath)
		if err != nil {
			return fmt.Errorf("load startup input: %w", err)
		}
		if _, err := pipeline.Run(ctx, records); err != nil {
			return fmt.Errorf("startup pipeline run: %w", err)
		}
		logger.Info("startup pipeline run complete", slog.Int("records", len(records)))
	}

	router := transporthttp.NewRouter(transporthttp.RouterDeps{
		Snapshots: pipeline,
		Scenarios: scenarios,
		Registry:  providers.Registry,
		Logger:    logger,
		Server:    cfg.Server,
		Version:   Version,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", slog.Int("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	return nil
}

func loadRecords(ctx context.Context, path string) ([]ingest.RawRecord, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return ingest.LoadCSV(ctx, path)
	case ".xlsx":
		return ingest.ParseWorkbook(ctx, path)
	default:
		return nil, fmt.Errorf("unsupported input format %q, expected .csv or .xlsx", filepath.Ext(path))
	}
}
