package exporter

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"fiscalcli/internal/operations"
)

// Artifact file names, one per output table plus the quality report
const (
	FileCanonical     = "fiscal_data_clean.csv"
	FileResolutionLog = "fiscal_resolution_log.csv"
	FileArchive       = "fiscal_archive.csv"
	FileRatios        = "fiscal_stress_ratios.csv"
	FileFeatures      = "fiscal_feature_matrix.csv"
	FileDrivers       = "fiscal_driver_analysis.csv"
	FileAnomalies     = "fiscal_anomalies.csv"
	FileForecasts     = "fiscal_forecasts.csv"
	FileQuality       = "fiscal_quality_report.json"
)

const periodLayout = "2006-01-02"

// SnapshotExporter writes every table of a pipeline snapshot to disk
type SnapshotExporter struct {
	csv     *CSVWriter
	baseDir string
	logger  *slog.Logger
}

// NewSnapshotExporter creates an exporter rooted at baseDir
func NewSnapshotExporter(baseDir string, logger *slog.Logger) *SnapshotExporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &SnapshotExporter{
		csv:     NewCSVWriter(baseDir, logger),
		baseDir: baseDir,
		logger:  logger,
	}
}

// Export writes the full artifact set. It stops at the first write error;
// partially written artifact sets are safe to regenerate because every file
// is truncated on write.
func (e *SnapshotExporter) Export(snapshot *operations.Snapshot) error {
	writers := []struct {
		name string
		fn   func(*operations.Snapshot) error
	}{
		{FileCanonical, e.exportCanonical},
		{FileResolutionLog, e.exportResolutionLog},
		{FileArchive, e.exportArchive},
		{FileRatios, e.exportRatios},
		{FileFeatures, e.exportFeatures},
		{FileDrivers, e.exportDrivers},
		{FileAnomalies, e.exportAnomalies},
		{FileForecasts, e.exportForecasts},
		{FileQuality, e.exportQuality},
	}

	for _, w := range writers {
		if err := w.fn(snapshot); err != nil {
			return fmt.Errorf("export %s: %w", w.name, err)
		}
	}

	e.logger.Info("snapshot exported",
		slog.String("run_id", snapshot.RunID),
		slog.String("dir", e.baseDir),
	)
	return nil
}

func (e *SnapshotExporter) exportCanonical(snapshot *operations.Snapshot) error {
	records := make([][]string, 0, len(snapshot.Canonical))
	for _, rec := range snapshot.Canonical {
		flags := ""
		for i, f := range rec.Flags {
			if i > 0 {
				flags += ";"
			}
			flags += string(f)
		}
		records = append(records, []string{
			rec.EntityID,
			rec.Indicator,
			rec.Period.Format(periodLayout),
			rec.Frequency,
			rec.Source,
			rec.Unit,
			string(rec.UnitCategory),
			formatFloat(rec.ValueStandard),
			flags,
		})
	}
	return e.csv.WriteCSV(FileCanonical, WriteOptions{
		Headers: []string{"entity_id", "indicator", "period", "frequency", "source", "unit", "unit_category", "value_standard", "flags"},
		Records: records,
	})
}

func (e *SnapshotExporter) exportResolutionLog(snapshot *operations.Snapshot) error {
	records := make([][]string, 0, len(snapshot.ResolutionLog))
	for _, entry := range snapshot.ResolutionLog {
		records = append(records, []string{
			entry.Key.EntityID,
			entry.Key.Indicator,
			entry.Key.Period.Format(periodLayout),
			strconv.Itoa(entry.Candidates),
			entry.KeptSource,
			formatFloat(entry.KeptValue),
			formatFloat(entry.RelativeSpread),
			string(entry.Reason),
			strconv.FormatBool(entry.NeedsManualReview),
		})
	}
	return e.csv.WriteCSV(FileResolutionLog, WriteOptions{
		Headers: []string{"entity_id", "indicator", "period", "candidates", "kept_source", "kept_value", "relative_spread", "reason", "needs_manual_review"},
		Records: records,
	})
}

func (e *SnapshotExporter) exportArchive(snapshot *operations.Snapshot) error {
	records := make([][]string, 0, len(snapshot.Archive))
	for _, arch := range snapshot.Archive {
		records = append(records, []string{
			arch.Key.EntityID,
			arch.Key.Indicator,
			arch.Key.Period.Format(periodLayout),
			arch.Record.Source,
			formatFloat(arch.Record.ValueStandard),
			string(arch.Reason),
		})
	}
	return e.csv.WriteCSV(FileArchive, WriteOptions{
		Headers: []string{"entity_id", "indicator", "period", "source", "value_standard", "reason"},
		Records: records,
	})
}

func (e *SnapshotExporter) exportRatios(snapshot *operations.Snapshot) error {
	records := make([][]string, 0, len(snapshot.Ratios))
	for _, rec := range snapshot.Ratios {
		records = append(records, []string{
			rec.EntityID,
			rec.Period.Format(periodLayout),
			string(rec.Ratio),
			formatFloat(rec.Value),
		})
	}
	return e.csv.WriteCSV(FileRatios, WriteOptions{
		Headers: []string{"entity_id", "period", "ratio", "value"},
		Records: records,
	})
}

func (e *SnapshotExporter) exportFeatures(snapshot *operations.Snapshot) error {
	records := make([][]string, 0, len(snapshot.Features))
	for _, row := range snapshot.Features {
		records = append(records, []string{
			row.EntityID,
			strconv.Itoa(row.Year),
			formatFloat(row.DeficitPctGDP),
			formatFloat(row.RevenueVolatility),
			formatFloat(row.WageProxyPctGDP),
			formatFloat(row.FiscalBurden),
			formatFloat(row.GDPGrowth),
			formatFloat(row.DebtPctGDP),
		})
	}
	return e.csv.WriteCSV(FileFeatures, WriteOptions{
		Headers: []string{"entity_id", "year", "deficit_pct_gdp", "revenue_volatility", "wage_proxy_pct_gdp", "fiscal_burden", "gdp_growth", "debt_pct_gdp"},
		Records: records,
	})
}

func (e *SnapshotExporter) exportDrivers(snapshot *operations.Snapshot) error {
	var records [][]string
	for _, res := range snapshot.Regressions {
		if len(res.Betas) == 0 {
			records = append(records, []string{
				res.EntityID, "", "", "", formatFloat(res.RSquared),
				strconv.Itoa(res.NObs), string(res.Status), res.Diagnostic,
			})
			continue
		}
		for _, feature := range []string{"revenue_volatility", "wage_proxy_pct_gdp", "fiscal_burden", "gdp_growth"} {
			records = append(records, []string{
				res.EntityID,
				feature,
				formatFloat(res.Betas[feature]),
				formatFloat(res.PValues[feature]),
				formatFloat(res.RSquared),
				strconv.Itoa(res.NObs),
				string(res.Status),
				res.Diagnostic,
			})
		}
	}
	return e.csv.WriteCSV(FileDrivers, WriteOptions{
		Headers: []string{"entity_id", "coefficient", "beta", "p_value", "r_squared", "n_obs", "status", "diagnostic"},
		Records: records,
	})
}

func (e *SnapshotExporter) exportAnomalies(snapshot *operations.Snapshot) error {
	records := make([][]string, 0, len(snapshot.Anomalies))
	for _, flag := range snapshot.Anomalies {
		records = append(records, []string{
			flag.EntityID,
			flag.Period.Format(periodLayout),
			flag.Metric,
			formatFloat(flag.Value),
			formatFloat(flag.ZScore),
		})
	}
	return e.csv.WriteCSV(FileAnomalies, WriteOptions{
		Headers: []string{"entity_id", "period", "metric", "value", "z_score"},
		Records: records,
	})
}

func (e *SnapshotExporter) exportForecasts(snapshot *operations.Snapshot) error {
	records := make([][]string, 0, len(snapshot.Forecasts))
	for _, row := range snapshot.Forecasts {
		records = append(records, []string{
			row.EntityID,
			row.Metric,
			row.Period.Format(periodLayout),
			formatFloat(row.Point),
			formatFloat(row.Lower),
			formatFloat(row.Upper),
			string(row.Status),
		})
	}
	return e.csv.WriteCSV(FileForecasts, WriteOptions{
		Headers: []string{"entity_id", "metric", "period", "point", "lower", "upper", "status"},
		Records: records,
	})
}

func (e *SnapshotExporter) exportQuality(snapshot *operations.Snapshot) error {
	fullPath := filepath.Join(e.baseDir, FileQuality)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return err
	}

	payload := struct {
		RunID       string                   `json:"run_id"`
		StartedAt   string                   `json:"started_at"`
		CompletedAt string                   `json:"completed_at"`
		Quality     operations.QualityReport `json:"quality"`
	}{
		RunID:       snapshot.RunID,
		StartedAt:   snapshot.StartedAt.Format("2006-01-02T15:04:05Z07:00"),
		CompletedAt: snapshot.CompletedAt.Format("2006-01-02T15:04:05Z07:00"),
		Quality:     snapshot.Quality,
	}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(fullPath, data, 0o644)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
