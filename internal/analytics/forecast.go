package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	apperrors "fiscalcli/internal/errors"
	"fiscalcli/internal/ingest"
	"fiscalcli/internal/stress"
)

// ci95 is the two-sided 95% normal critical value
const ci95 = 1.959963984540054

// coefBound keeps the AR and MA coefficients inside the stationary and
// invertible region during the search.
const coefBound = 0.98

// Forecaster produces step-ahead forecasts per (entity, metric) from the
// stress ratio table using an ARIMA(1,1,1) model fitted by conditional sum
// of squares. Fit failures are isolated per series and never abort a batch.
type Forecaster struct {
	metrics         []stress.RatioName
	minObservations int
	horizon         int
	logger          *slog.Logger
}

// NewForecaster creates a forecaster for the given metrics
func NewForecaster(metrics []stress.RatioName, minObservations, horizon int, logger *slog.Logger) *Forecaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Forecaster{
		metrics:         metrics,
		minObservations: minObservations,
		horizon:         horizon,
		logger:          logger,
	}
}

// observation pairs one period with its metric value
type observation struct {
	period time.Time
	value  float64
}

// Forecast fits each (entity, metric) series with enough history and emits
// horizon rows per successful fit, 95% bounds included. Series that cannot
// be fitted are reported as ModelFitErrors and omitted from the rows.
func (f *Forecaster) Forecast(ctx context.Context, ratios []stress.RatioRecord) ([]ForecastRecord, []*apperrors.ModelFitError) {
	type seriesKey struct {
		entityID string
		metric   stress.RatioName
	}

	series := make(map[seriesKey][]observation)
	for _, rec := range ratios {
		wanted := false
		for _, m := range f.metrics {
			if rec.Ratio == m {
				wanted = true
				break
			}
		}
		if !wanted {
			continue
		}
		key := seriesKey{rec.EntityID, rec.Ratio}
		series[key] = append(series[key], observation{rec.Period, rec.Value})
	}

	keys := make([]seriesKey, 0, len(series))
	for key := range series {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].entityID != keys[j].entityID {
			return keys[i].entityID < keys[j].entityID
		}
		return keys[i].metric < keys[j].metric
	})

	var records []ForecastRecord
	var fitErrs []*apperrors.ModelFitError

	for _, key := range keys {
		obs := series[key]
		sort.Slice(obs, func(i, j int) bool { return obs[i].period.Before(obs[j].period) })

		if len(obs) < f.minObservations {
			reason := fmt.Sprintf("insufficient_data: %d observations, need %d", len(obs), f.minObservations)
			fitErrs = append(fitErrs, apperrors.NewModelFitError(key.entityID, string(key.metric), reason, nil))
			f.logger.WarnContext(ctx, "forecast skipped",
				slog.String("entity", key.entityID),
				slog.String("metric", string(key.metric)),
				slog.String("reason", reason),
			)
			continue
		}

		rows, err := f.forecastSeries(ctx, key.entityID, string(key.metric), obs)
		if err != nil {
			fitErrs = append(fitErrs, err)
			f.logger.WarnContext(ctx, "forecast fit failed",
				slog.String("entity", key.entityID),
				slog.String("metric", string(key.metric)),
				slog.String("reason", err.Reason),
			)
			continue
		}
		records = append(records, rows...)
	}

	f.logger.InfoContext(ctx, "forecasts generated",
		slog.Int("series", len(keys)),
		slog.Int("rows", len(records)),
		slog.Int("fit_failures", len(fitErrs)),
	)

	return records, fitErrs
}

// forecastSeries fits one series and projects it forward
func (f *Forecaster) forecastSeries(ctx context.Context, entityID, metric string, obs []observation) ([]ForecastRecord, *apperrors.ModelFitError) {
	values := make([]float64, len(obs))
	for i, o := range obs {
		values[i] = o.value
	}

	fit, err := fitARIMA111(ctx, values)
	if err != nil {
		return nil, apperrors.NewModelFitError(entityID, metric, err.Error(), ctx.Err())
	}

	last := obs[len(obs)-1]
	step := periodStep(obs)
	freq := stepFrequency(step)

	// Stepping from the first of the month keeps AddDate from spilling into
	// the following month when the last period is a month end; AlignPeriod
	// then snaps the result back to the period end.
	base := time.Date(last.period.Year(), last.period.Month(), 1, 0, 0, 0, 0, last.period.Location())

	points, variances := fit.project(f.horizon)

	rows := make([]ForecastRecord, 0, f.horizon)
	for h := 1; h <= f.horizon; h++ {
		margin := ci95 * math.Sqrt(variances[h-1])
		rows = append(rows, ForecastRecord{
			EntityID: entityID,
			Metric:   metric,
			Period:   ingest.AlignPeriod(base.AddDate(0, step*h, 0), freq),
			Point:    points[h-1],
			Lower:    points[h-1] - margin,
			Upper:    points[h-1] + margin,
			Status:   StatusOK,
		})
	}
	return rows, nil
}

// periodStep infers the series cadence in months from the trailing gap
func periodStep(obs []observation) int {
	gap := obs[len(obs)-1].period.Sub(obs[len(obs)-2].period)
	months := int(math.Round(gap.Hours() / (24 * 30.44)))
	if months < 1 {
		months = 12
	}
	return months
}

// stepFrequency maps a cadence in months onto the reporting frequency used
// to align forecast periods.
func stepFrequency(step int) string {
	switch {
	case step >= 12:
		return ingest.FreqYearly
	case step >= 6:
		return ingest.FreqBiannual
	case step >= 3:
		return ingest.FreqQuarterly
	default:
		return ingest.FreqMonthly
	}
}

// arimaFit holds the fitted ARIMA(1,1,1) state needed for projection
type arimaFit struct {
	phi       float64
	theta     float64
	sigma2    float64
	lastLevel float64
	lastDiff  float64
	lastResid float64
}

// fitARIMA111 fits phi and theta by conditional sum of squares on the
// differenced series: a coarse grid over the stationary/invertible square
// followed by two local refinements.
func fitARIMA111(ctx context.Context, values []float64) (*arimaFit, error) {
	diffs := make([]float64, len(values)-1)
	degenerate := true
	for i := 1; i < len(values); i++ {
		diffs[i-1] = values[i] - values[i-1]
		if diffs[i-1] != diffs[0] {
			degenerate = false
		}
	}
	if degenerate {
		return nil, fmt.Errorf("differenced series has zero variance")
	}

	bestPhi, bestTheta := 0.0, 0.0
	bestSSE := math.Inf(1)

	search := func(phiLo, phiHi, thetaLo, thetaHi, step float64) error {
		for phi := phiLo; phi <= phiHi+1e-12; phi += step {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			for theta := thetaLo; theta <= thetaHi+1e-12; theta += step {
				sse := cssResiduals(diffs, phi, theta, nil)
				if sse < bestSSE {
					bestSSE = sse
					bestPhi, bestTheta = phi, theta
				}
			}
		}
		return nil
	}

	if err := search(-coefBound, coefBound, -coefBound, coefBound, 0.05); err != nil {
		return nil, fmt.Errorf("fit timed out: %w", err)
	}
	for _, step := range []float64{0.01, 0.002} {
		phiLo := math.Max(bestPhi-5*step, -coefBound)
		phiHi := math.Min(bestPhi+5*step, coefBound)
		thetaLo := math.Max(bestTheta-5*step, -coefBound)
		thetaHi := math.Min(bestTheta+5*step, coefBound)
		if err := search(phiLo, phiHi, thetaLo, thetaHi, step); err != nil {
			return nil, fmt.Errorf("fit timed out: %w", err)
		}
	}

	if math.IsInf(bestSSE, 1) || math.IsNaN(bestSSE) {
		return nil, fmt.Errorf("conditional sum of squares did not converge")
	}

	resids := make([]float64, len(diffs))
	sse := cssResiduals(diffs, bestPhi, bestTheta, resids)

	return &arimaFit{
		phi:       bestPhi,
		theta:     bestTheta,
		sigma2:    sse / float64(len(diffs)),
		lastLevel: values[len(values)-1],
		lastDiff:  diffs[len(diffs)-1],
		lastResid: resids[len(resids)-1],
	}, nil
}

// cssResiduals runs the ARMA(1,1) residual recursion over the differenced
// series and returns the sum of squared residuals. When dst is non-nil the
// residuals are stored in it.
func cssResiduals(diffs []float64, phi, theta float64, dst []float64) float64 {
	var sse, prevDiff, prevResid float64
	for t, d := range diffs {
		var resid float64
		if t == 0 {
			resid = d
		} else {
			resid = d - phi*prevDiff - theta*prevResid
		}
		sse += resid * resid
		prevDiff, prevResid = d, resid
		if dst != nil {
			dst[t] = resid
		}
	}
	return sse
}

// project produces horizon level forecasts and their error variances. The
// variance accumulates the squared cumulative psi-weights of the integrated
// process, so bounds widen with the horizon.
func (a *arimaFit) project(horizon int) ([]float64, []float64) {
	points := make([]float64, horizon)
	variances := make([]float64, horizon)

	diffForecast := a.phi*a.lastDiff + a.theta*a.lastResid
	level := a.lastLevel

	psiSum := 1.0 // cumulative psi weight Psi_0
	varAccum := 0.0

	for h := 1; h <= horizon; h++ {
		level += diffForecast
		points[h-1] = level
		diffForecast *= a.phi

		varAccum += psiSum * psiSum
		variances[h-1] = a.sigma2 * varAccum

		// Psi_h = Psi_{h-1} + psi_h with psi_h = phi^{h-1}(phi + theta)
		psiSum += math.Pow(a.phi, float64(h-1)) * (a.phi + a.theta)
	}

	return points, variances
}
