package operations

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"fiscalcli/internal/analytics"
	"fiscalcli/internal/config"
	"fiscalcli/internal/dataprocessing"
	apperrors "fiscalcli/internal/errors"
	"fiscalcli/internal/infrastructure"
	"fiscalcli/internal/ingest"
	"fiscalcli/internal/stress"
)

// Step identifiers, in execution order
const (
	StepNormalize = "normalize"
	StepDedup     = "dedup"
	StepValidate  = "validate"
	StepRatios    = "ratios"
	StepFeatures  = "features"
	StepModels    = "models"
)

// Runner executes the cleaning and analysis pipeline over a batch of raw
// records and produces an immutable Snapshot. Data-quality and model-fit
// issues are recorded in the quality report and never abort a run.
type Runner struct {
	cfg     config.PipelineConfig
	logger  *slog.Logger
	tracer  trace.Tracer
	metrics *infrastructure.PipelineMetrics

	dedup      *dataprocessing.Deduplicator
	validator  *dataprocessing.Validator
	ratios     *stress.Calculator
	features   *analytics.FeatureBuilder
	regressor  *analytics.Regressor
	detector   *analytics.Detector
	forecaster *analytics.Forecaster
}

// NewRunner wires the pipeline components from configuration
func NewRunner(cfg config.PipelineConfig, logger *slog.Logger, tracer trace.Tracer, metrics *infrastructure.PipelineMetrics) *Runner {
	if logger == nil {
		logger = slog.Default()
	}

	anomalyMetrics := make([]stress.RatioName, 0, len(cfg.AnomalyMetrics))
	for _, m := range cfg.AnomalyMetrics {
		anomalyMetrics = append(anomalyMetrics, stress.RatioName(m))
	}

	return &Runner{
		cfg:        cfg,
		logger:     logger,
		tracer:     tracer,
		metrics:    metrics,
		dedup:      dataprocessing.NewDeduplicator(cfg.AuthoritativeSources, cfg.DuplicateTolerance, logger),
		validator:  dataprocessing.NewValidator(cfg.StaleThresholdHighFreq, cfg.StaleThresholdLowFreq, logger),
		ratios:     stress.NewCalculator(logger),
		features:   analytics.NewFeatureBuilder(logger),
		regressor:  analytics.NewRegressor(cfg.MinObservations, logger),
		detector:   analytics.NewDetector(anomalyMetrics, cfg.AnomalyThreshold, logger),
		forecaster: analytics.NewForecaster(anomalyMetrics, cfg.MinObservations, cfg.ForecastHorizon, logger),
	}
}

// Run executes one full pipeline pass. The returned snapshot is complete
// even when individual entities failed to fit; the error is non-nil only
// for failures that prevent producing a snapshot at all.
func (r *Runner) Run(ctx context.Context, records []ingest.RawRecord) (*Snapshot, error) {
	runID := uuid.New().String()
	ctx = infrastructure.WithTraceID(ctx, runID)
	logger := r.logger.With(slog.String("run_id", runID))

	state := NewRunState(runID)
	state.Start()

	if r.metrics != nil {
		r.metrics.RunsTotal.Add(ctx, 1)
		r.metrics.ActiveRuns.Add(ctx, 1)
		defer r.metrics.ActiveRuns.Add(ctx, -1)
	}

	runStart := time.Now()
	logger.InfoContext(ctx, "pipeline run started", slog.Int("input_records", len(records)))

	snapshot := &Snapshot{RunID: runID, StartedAt: runStart}
	snapshot.Quality.InputRecords = len(records)

	// Cleaning phase, strictly sequential: each step consumes the full
	// output of the previous one.
	var canonical []dataprocessing.CanonicalRecord
	err := r.runStep(ctx, state, StepNormalize, "Normalize units", func(ctx context.Context) (string, error) {
		canonical = dataprocessing.Normalize(ctx, records)
		return fmt.Sprintf("%d records", len(canonical)), nil
	})
	if err != nil {
		state.Fail(err)
		return nil, err
	}

	err = r.runStep(ctx, state, StepDedup, "Resolve duplicates", func(ctx context.Context) (string, error) {
		result := r.dedup.Resolve(ctx, canonical)
		canonical = result.Canonical
		snapshot.Archive = result.Archive
		snapshot.ResolutionLog = result.Log
		snapshot.Quality.RetainedRecords = len(result.Canonical)
		snapshot.Quality.ArchivedRecords = len(result.Archive)
		for _, entry := range result.Log {
			if entry.NeedsManualReview {
				snapshot.Quality.ManualReviewGroups++
			}
		}
		return fmt.Sprintf("%d retained, %d archived", len(result.Canonical), len(result.Archive)), nil
	})
	if err != nil {
		state.Fail(err)
		return nil, err
	}

	err = r.runStep(ctx, state, StepValidate, "Validate quality", func(ctx context.Context) (string, error) {
		annotated, issues := r.validator.Validate(ctx, canonical)
		canonical = annotated
		for _, issue := range issues {
			snapshot.Quality.DataQualityIssues = append(snapshot.Quality.DataQualityIssues, QualityIssue{
				EntityID:  issue.EntityID,
				Indicator: issue.Indicator,
				Issue:     issue.Issue,
				Details:   issue.Details,
			})
		}
		return fmt.Sprintf("%d issues", len(issues)), nil
	})
	if err != nil {
		state.Fail(err)
		return nil, err
	}
	snapshot.Canonical = canonical

	err = r.runStep(ctx, state, StepRatios, "Derive stress ratios", func(ctx context.Context) (string, error) {
		snapshot.Ratios = r.ratios.Calculate(ctx, canonical)
		return fmt.Sprintf("%d ratios", len(snapshot.Ratios)), nil
	})
	if err != nil {
		state.Fail(err)
		return nil, err
	}

	err = r.runStep(ctx, state, StepFeatures, "Build feature matrix", func(ctx context.Context) (string, error) {
		snapshot.Features = r.features.Build(ctx, canonical)
		return fmt.Sprintf("%d rows", len(snapshot.Features)), nil
	})
	if err != nil {
		state.Fail(err)
		return nil, err
	}

	// Modeling phase: regression, anomaly scan, and per-entity forecasts
	// are independent and run concurrently. Fit failures are collected,
	// never propagated.
	err = r.runStep(ctx, state, StepModels, "Fit models", func(ctx context.Context) (string, error) {
		r.runModels(ctx, snapshot)
		return fmt.Sprintf("%d regressions, %d anomalies, %d forecast rows",
			len(snapshot.Regressions), len(snapshot.Anomalies), len(snapshot.Forecasts)), nil
	})
	if err != nil {
		state.Fail(err)
		return nil, err
	}

	state.Complete()
	snapshot.CompletedAt = time.Now()

	if r.metrics != nil {
		r.metrics.RunDuration.Record(ctx, time.Since(runStart).Seconds())
		r.metrics.EntitiesFitted.Add(ctx, int64(snapshot.Quality.EntitiesFitted))
		r.metrics.FitFailures.Add(ctx, int64(snapshot.Quality.EntitiesFailed))
		r.metrics.AnomaliesFlagged.Add(ctx, int64(snapshot.Quality.AnomaliesFlagged))
	}

	logger.InfoContext(ctx, "pipeline run completed",
		slog.Duration("elapsed", time.Since(runStart)),
		slog.Int("quality_issues", len(snapshot.Quality.DataQualityIssues)),
		slog.Int("fit_issues", len(snapshot.Quality.FitIssues)),
	)

	return snapshot, nil
}

// runStep executes one pipeline step inside its own span and step state
func (r *Runner) runStep(ctx context.Context, state *RunState, id, name string, fn func(context.Context) (string, error)) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	stepCtx := ctx
	var span trace.Span
	if r.tracer != nil {
		stepCtx, span = r.tracer.Start(ctx, "pipeline."+id,
			trace.WithAttributes(attribute.String("step.id", id)))
		defer span.End()
	}

	stepState := NewStepState(id, name)
	state.AddStep(stepState)
	stepState.Start()

	start := time.Now()
	message, err := fn(stepCtx)
	if err != nil {
		stepState.Fail(err)
		return fmt.Errorf("step %s: %w", id, err)
	}
	stepState.Complete(message)

	if r.metrics != nil {
		r.metrics.StepDuration.Record(ctx, time.Since(start).Seconds(),
			metric.WithAttributes(attribute.String("step", id)))
	}

	r.logger.DebugContext(ctx, "step completed",
		slog.String("step", id),
		slog.String("summary", message),
		slog.Duration("elapsed", time.Since(start)),
	)

	return nil
}

// runModels fits the three model families concurrently. Forecasts fan out
// per entity under a soft timeout so one slow series cannot stall the run.
func (r *Runner) runModels(ctx context.Context, snapshot *Snapshot) {
	var mu sync.Mutex
	recordFitErrs := func(errs []*apperrors.ModelFitError) {
		mu.Lock()
		defer mu.Unlock()
		for _, fe := range errs {
			snapshot.Quality.FitIssues = append(snapshot.Quality.FitIssues, FitIssue{
				EntityID: fe.EntityID,
				Metric:   fe.Metric,
				Reason:   fe.Reason,
			})
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.MaxConcurrency)

	g.Go(func() error {
		results, fitErrs := r.regressor.Fit(gctx, snapshot.Features)
		mu.Lock()
		snapshot.Regressions = results
		mu.Unlock()
		recordFitErrs(fitErrs)
		return nil
	})

	g.Go(func() error {
		flags := r.detector.Detect(gctx, snapshot.Ratios)
		mu.Lock()
		snapshot.Anomalies = flags
		snapshot.Quality.AnomaliesFlagged = len(flags)
		mu.Unlock()
		return nil
	})

	byEntity := make(map[string][]stress.RatioRecord)
	for _, rec := range snapshot.Ratios {
		byEntity[rec.EntityID] = append(byEntity[rec.EntityID], rec)
	}
	for _, ratios := range byEntity {
		g.Go(func() error {
			fitCtx, cancel := context.WithTimeout(gctx, r.cfg.FitTimeout)
			defer cancel()

			rows, fitErrs := r.forecaster.Forecast(fitCtx, ratios)
			mu.Lock()
			snapshot.Forecasts = append(snapshot.Forecasts, rows...)
			mu.Unlock()
			recordFitErrs(fitErrs)
			return nil
		})
	}

	// Tasks never return errors; fit problems land in the quality report.
	_ = g.Wait()

	sortForecasts(snapshot.Forecasts)
	r.tallyFits(snapshot)
}

// sortForecasts restores a deterministic order after the concurrent
// per-entity fan-out.
func sortForecasts(rows []analytics.ForecastRecord) {
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.EntityID != b.EntityID {
			return a.EntityID < b.EntityID
		}
		if a.Metric != b.Metric {
			return a.Metric < b.Metric
		}
		return a.Period.Before(b.Period)
	})
}

// tallyFits derives the per-entity fit counters from the model outputs
func (r *Runner) tallyFits(snapshot *Snapshot) {
	for _, res := range snapshot.Regressions {
		switch res.Status {
		case analytics.StatusOK:
			snapshot.Quality.EntitiesFitted++
		case analytics.StatusInsufficientData:
			snapshot.Quality.EntitiesSkipped++
		case analytics.StatusFitFailed:
			snapshot.Quality.EntitiesFailed++
		}
	}
	snapshot.Quality.ForecastRowsEmitted = len(snapshot.Forecasts)
}
