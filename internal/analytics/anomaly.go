package analytics

import (
	"context"
	"log/slog"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"fiscalcli/internal/stress"
)

// minPoolSize is the smallest pooled sample an anomaly scan will score
const minPoolSize = 3

// Detector flags unusual stress-ratio values. Scores are pooled across all
// entity-periods per metric: one distribution per metric, not one per
// entity, so a value is anomalous relative to the whole panel.
type Detector struct {
	metrics   []stress.RatioName
	threshold float64
	logger    *slog.Logger
}

// NewDetector creates a pooled z-score detector over the given metrics
func NewDetector(metrics []stress.RatioName, threshold float64, logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{metrics: metrics, threshold: threshold, logger: logger}
}

// Detect returns every observation whose pooled z-score magnitude meets the
// threshold, sorted by magnitude descending. Metrics with fewer than three
// observations or zero variance are skipped.
func (d *Detector) Detect(ctx context.Context, ratios []stress.RatioRecord) []AnomalyFlag {
	pools := make(map[stress.RatioName][]stress.RatioRecord)
	for _, rec := range ratios {
		pools[rec.Ratio] = append(pools[rec.Ratio], rec)
	}

	var flags []AnomalyFlag
	for _, metric := range d.metrics {
		pool := pools[metric]
		if len(pool) < minPoolSize {
			continue
		}

		mean, std := poolStats(pool)
		if std == 0 {
			continue
		}

		for _, rec := range pool {
			z := (rec.Value - mean) / std
			if math.Abs(z) >= d.threshold {
				flags = append(flags, AnomalyFlag{
					EntityID: rec.EntityID,
					Period:   rec.Period,
					Metric:   string(metric),
					Value:    rec.Value,
					ZScore:   z,
				})
			}
		}
	}

	sort.SliceStable(flags, func(i, j int) bool {
		return math.Abs(flags[i].ZScore) > math.Abs(flags[j].ZScore)
	})

	d.logger.InfoContext(ctx, "anomaly scan complete",
		slog.Int("metrics", len(d.metrics)),
		slog.Int("flags", len(flags)),
	)

	return flags
}

// poolStats returns the population mean and standard deviation of a pool
func poolStats(pool []stress.RatioRecord) (float64, float64) {
	values := make([]float64, len(pool))
	for i, rec := range pool {
		values[i] = rec.Value
	}
	return stat.Mean(values, nil), stat.PopStdDev(values, nil)
}
