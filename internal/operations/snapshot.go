package operations

import (
	"time"

	"fiscalcli/internal/analytics"
	"fiscalcli/internal/dataprocessing"
	"fiscalcli/internal/stress"
)

// QualityIssue is one recorded data quality finding
type QualityIssue struct {
	EntityID  string `json:"entity_id"`
	Indicator string `json:"indicator"`
	Issue     string `json:"issue"`
	Details   string `json:"details,omitempty"`
}

// FitIssue is one recorded model fit failure
type FitIssue struct {
	EntityID string `json:"entity_id"`
	Metric   string `json:"metric"`
	Reason   string `json:"reason"`
}

// QualityReport summarizes everything the run skipped, flagged, or failed.
// It ships alongside the results so a consumer can judge completeness
// without re-deriving it.
type QualityReport struct {
	InputRecords        int            `json:"input_records"`
	RetainedRecords     int            `json:"retained_records"`
	ArchivedRecords     int            `json:"archived_records"`
	ManualReviewGroups  int            `json:"manual_review_groups"`
	DataQualityIssues   []QualityIssue `json:"data_quality_issues"`
	FitIssues           []FitIssue     `json:"fit_issues"`
	EntitiesFitted      int            `json:"entities_fitted"`
	EntitiesSkipped     int            `json:"entities_skipped"`
	EntitiesFailed      int            `json:"entities_failed"`
	AnomaliesFlagged    int            `json:"anomalies_flagged"`
	ForecastRowsEmitted int            `json:"forecast_rows_emitted"`
}

// Snapshot is the immutable result of one pipeline run. A new snapshot
// replaces the previous one wholesale; nothing downstream mutates it.
type Snapshot struct {
	RunID         string                           `json:"run_id"`
	StartedAt     time.Time                        `json:"started_at"`
	CompletedAt   time.Time                        `json:"completed_at"`
	Canonical     []dataprocessing.CanonicalRecord `json:"canonical"`
	Archive       []dataprocessing.ArchivedRecord  `json:"archive"`
	ResolutionLog []dataprocessing.ResolutionEntry `json:"resolution_log"`
	Ratios        []stress.RatioRecord             `json:"ratios"`
	Features      []analytics.FeatureRow           `json:"features"`
	Regressions   []analytics.RegressionResult     `json:"regressions"`
	Anomalies     []analytics.AnomalyFlag          `json:"anomalies"`
	Forecasts     []analytics.ForecastRecord       `json:"forecasts"`
	Quality       QualityReport                    `json:"quality"`
}
