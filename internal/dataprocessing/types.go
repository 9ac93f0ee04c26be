package dataprocessing

import (
	"fmt"
	"time"
)

// UnitCategory classifies the measurement unit of a canonical value
type UnitCategory string

const (
	UnitCurrencyBillions UnitCategory = "currency_billions"
	UnitCurrencyUSD      UnitCategory = "currency_usd"
	UnitPercentage       UnitCategory = "percentage"
	UnitIndexPoints      UnitCategory = "index_points"
	UnitPopulationCount  UnitCategory = "population_count"
	UnitUnknown          UnitCategory = "unknown"
)

// QualityFlag marks a data quality concern on a canonical record. Flags
// annotate; they never remove.
type QualityFlag string

const (
	FlagUnknownUnit        QualityFlag = "unknown_unit"
	FlagRangeViolation     QualityFlag = "range_violation"
	FlagStaleSeries        QualityFlag = "stale_series"
	FlagTrendOutlier       QualityFlag = "trend_outlier"
	FlagNeedsManualReview  QualityFlag = "needs_manual_review"
)

// CanonicalRecord is the typed, unit-standardized form of a raw observation.
// ValueStandard carries currency values in billions; ValueFraction is set
// only for percentage units and holds the decimal form.
type CanonicalRecord struct {
	EntityID      string       `json:"entity_id"`
	Indicator     string       `json:"indicator"`
	Period        time.Time    `json:"period"`
	Observed      time.Time    `json:"observed"`
	Frequency     string       `json:"frequency"`
	Source        string       `json:"source"`
	Unit          string       `json:"unit"`
	UnitCategory  UnitCategory `json:"unit_category"`
	ValueStandard float64      `json:"value_standard"`
	ValueFraction *float64     `json:"value_fraction,omitempty"`
	Flags         []QualityFlag `json:"flags,omitempty"`
}

// HasFlag reports whether the record carries the given quality flag
func (r CanonicalRecord) HasFlag(flag QualityFlag) bool {
	for _, f := range r.Flags {
		if f == flag {
			return true
		}
	}
	return false
}

// GroupKey identifies a deduplication group
type GroupKey struct {
	EntityID  string    `json:"entity_id"`
	Indicator string    `json:"indicator"`
	Period    time.Time `json:"period"`
}

// Key returns the group key of a canonical record
func (r CanonicalRecord) Key() GroupKey {
	return GroupKey{EntityID: r.EntityID, Indicator: r.Indicator, Period: r.Period}
}

// String renders the key for log rows
func (k GroupKey) String() string {
	return fmt.Sprintf("%s/%s/%s", k.EntityID, k.Indicator, k.Period.Format("2006-01-02"))
}

// ResolutionReason explains why a duplicate record was archived
type ResolutionReason string

const (
	ReasonSourcePreference       ResolutionReason = "source_preference"
	ReasonRecencyWithinTolerance ResolutionReason = "recency_within_tolerance"
	ReasonNeedsManualReview      ResolutionReason = "needs_manual_review"
)

// ArchivedRecord retains a discarded duplicate together with its group key
// and the reason it lost the resolution. Nothing is silently dropped.
type ArchivedRecord struct {
	Key    GroupKey         `json:"key"`
	Record CanonicalRecord  `json:"record"`
	Reason ResolutionReason `json:"reason"`
}

// ResolutionEntry is one row of the duplicate resolution log
type ResolutionEntry struct {
	Key               GroupKey         `json:"key"`
	Candidates        int              `json:"candidates"`
	KeptSource        string           `json:"kept_source"`
	KeptValue         float64          `json:"kept_value"`
	RelativeSpread    float64          `json:"relative_spread"`
	Reason            ResolutionReason `json:"reason"`
	NeedsManualReview bool             `json:"needs_manual_review"`
	Note              string           `json:"note,omitempty"`
}

// DedupResult bundles the canonical table with the archive and resolution
// log produced as side effects of deduplication.
type DedupResult struct {
	Canonical []CanonicalRecord `json:"canonical"`
	Archive   []ArchivedRecord  `json:"archive"`
	Log       []ResolutionEntry `json:"log"`
}
