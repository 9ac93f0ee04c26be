package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"fiscalcli/internal/config"
	"fiscalcli/internal/exporter"
	"fiscalcli/internal/infrastructure"
	"fiscalcli/internal/ingest"
	"fiscalcli/internal/operations"
)

func main() {
	inPath := flag.String("in", "", "input file: raw observations as .csv or .xlsx")
	outDir := flag.String("out", "", "output directory for report artifacts (defaults to configured reports dir)")
	flag.Parse()

	if *inPath == "" {
		fmt.Fprintln(os.Stderr, "usage: fiscal-report -in <file.csv|file.xlsx> [-out <dir>]")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		slog.Error("failed to initialize logger", "error", err)
		os.Exit(1)
	}

	if *outDir == "" {
		*outDir = cfg.Paths.ReportsDir
	}

	ctx := context.Background()

	records, err := loadRecords(ctx, *inPath)
	if err != nil {
		logger.Error("failed to load input", "path", *inPath, "error", err)
		os.Exit(1)
	}
	logger.Info("input loaded",
		slog.String("path", *inPath),
		slog.Int("records", len(records)),
	)

	runner := operations.NewRunner(cfg.Pipeline, logger, nil, nil)
	snapshot, err := runner.Run(ctx, records)
	if err != nil {
		logger.Error("pipeline run failed", "error", err)
		os.Exit(1)
	}

	exp := exporter.NewSnapshotExporter(*outDir, logger)
	if err := exp.Export(snapshot); err != nil {
		logger.Error("artifact export failed", "error", err)
		os.Exit(1)
	}

	q := snapshot.Quality
	logger.Info("report complete",
		slog.String("run_id", snapshot.RunID),
		slog.Int("input_records", q.InputRecords),
		slog.Int("retained", q.RetainedRecords),
		slog.Int("archived", q.ArchivedRecords),
		slog.Int("entities_fitted", q.EntitiesFitted),
		slog.Int("anomalies", q.AnomaliesFlagged),
		slog.Int("forecast_rows", q.ForecastRowsEmitted),
		slog.String("out_dir", *outDir),
	)
}

// loadRecords dispatches on the input file's extension
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
