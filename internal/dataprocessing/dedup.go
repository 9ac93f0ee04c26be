package dataprocessing

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
)

// Deduplicator resolves repeated (entity, indicator, period) observations to
// one authoritative value per group, archiving the rest with a reason code.
type Deduplicator struct {
	sourceRank map[string]int
	numSources int
	tolerance  float64
	logger     *slog.Logger
}

// NewDeduplicator builds a deduplicator. authoritativeSources is an ordered
// preference list; earlier entries win when sources within a group differ.
// tolerance is the relative spread below which same-source duplicates are
// resolved by recency.
func NewDeduplicator(authoritativeSources []string, tolerance float64, logger *slog.Logger) *Deduplicator {
	if logger == nil {
		logger = slog.Default()
	}

	rank := make(map[string]int, len(authoritativeSources))
	for i, source := range authoritativeSources {
		rank[strings.ToLower(strings.TrimSpace(source))] = i
	}

	return &Deduplicator{
		sourceRank: rank,
		numSources: len(authoritativeSources),
		tolerance:  tolerance,
		logger:     logger,
	}
}

// Resolve deduplicates the canonical table. For any input set,
// len(result.Canonical) + len(result.Archive) == len(records) and every
// group contributes exactly one retained record.
func (d *Deduplicator) Resolve(ctx context.Context, records []CanonicalRecord) DedupResult {
	groups := make(map[GroupKey][]CanonicalRecord)
	order := make([]GroupKey, 0, len(records))

	for _, rec := range records {
		key := rec.Key()
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], rec)
	}

	result := DedupResult{
		Canonical: make([]CanonicalRecord, 0, len(order)),
		Archive:   make([]ArchivedRecord, 0),
		Log:       make([]ResolutionEntry, 0),
	}

	manualReviewGroups := 0
	for _, key := range order {
		group := groups[key]
		if len(group) == 1 {
			result.Canonical = append(result.Canonical, group[0])
			continue
		}

		kept, archived, entry := d.resolveGroup(key, group)
		result.Canonical = append(result.Canonical, kept)
		result.Archive = append(result.Archive, archived...)
		result.Log = append(result.Log, entry)

		if entry.NeedsManualReview {
			manualReviewGroups++
			d.logger.WarnContext(ctx, "duplicate group needs manual review",
				slog.String("group", key.String()),
				slog.Float64("relative_spread", entry.RelativeSpread),
				slog.Int("candidates", entry.Candidates),
			)
		}
	}

	d.logger.InfoContext(ctx, "resolved duplicate groups",
		slog.Int("input_records", len(records)),
		slog.Int("retained", len(result.Canonical)),
		slog.Int("archived", len(result.Archive)),
		slog.Int("manual_review_groups", manualReviewGroups),
	)

	return result
}

// resolveGroup applies the resolution order: source preference, then recency
// within tolerance, then provisional keep with manual review.
func (d *Deduplicator) resolveGroup(key GroupKey, group []CanonicalRecord) (CanonicalRecord, []ArchivedRecord, ResolutionEntry) {
	candidates := group
	var archived []ArchivedRecord

	// Rule 1: prefer authoritative sources when sources differ.
	bestRank := d.rank(candidates[0].Source)
	ranksDiffer := false
	for _, rec := range candidates[1:] {
		r := d.rank(rec.Source)
		if r != bestRank {
			ranksDiffer = true
		}
		if r < bestRank {
			bestRank = r
		}
	}

	reason := ResolutionReason("")
	if ranksDiffer {
		preferred := candidates[:0:0]
		for _, rec := range candidates {
			if d.rank(rec.Source) == bestRank {
				preferred = append(preferred, rec)
			} else {
				archived = append(archived, ArchivedRecord{Key: key, Record: rec, Reason: ReasonSourcePreference})
			}
		}
		candidates = preferred
		reason = ReasonSourcePreference
	}

	if len(candidates) == 1 {
		return candidates[0], archived, ResolutionEntry{
			Key:            key,
			Candidates:     len(group),
			KeptSource:     candidates[0].Source,
			KeptValue:      candidates[0].ValueStandard,
			RelativeSpread: 0,
			Reason:         reason,
			Note:           fmt.Sprintf("authoritative source %q preferred", candidates[0].Source),
		}
	}

	// Rules 2 and 3 operate on the surviving same-rank candidates.
	spread := relativeSpread(candidates)
	keptIdx := mostRecentIndex(candidates)
	kept := candidates[keptIdx]

	if spread <= d.tolerance {
		if reason == "" {
			reason = ReasonRecencyWithinTolerance
		}
		for i, rec := range candidates {
			if i != keptIdx {
				archived = append(archived, ArchivedRecord{Key: key, Record: rec, Reason: ReasonRecencyWithinTolerance})
			}
		}
		return kept, archived, ResolutionEntry{
			Key:            key,
			Candidates:     len(group),
			KeptSource:     kept.Source,
			KeptValue:      kept.ValueStandard,
			RelativeSpread: spread,
			Reason:         reason,
			Note:           "values within tolerance; most recent observation kept",
		}
	}

	// Spread exceeds tolerance with tied sources: keep the most recent value
	// as a provisional placeholder and escalate the group.
	kept.Flags = append(kept.Flags, FlagNeedsManualReview)
	for i, rec := range candidates {
		if i != keptIdx {
			archived = append(archived, ArchivedRecord{Key: key, Record: rec, Reason: ReasonNeedsManualReview})
		}
	}
	return kept, archived, ResolutionEntry{
		Key:               key,
		Candidates:        len(group),
		KeptSource:        kept.Source,
		KeptValue:         kept.ValueStandard,
		RelativeSpread:    spread,
		Reason:            ReasonNeedsManualReview,
		NeedsManualReview: true,
		Note:              fmt.Sprintf("spread %.2f%% exceeds tolerance; most recent value kept provisionally", spread*100),
	}
}

func (d *Deduplicator) rank(source string) int {
	if r, ok := d.sourceRank[strings.ToLower(strings.TrimSpace(source))]; ok {
		return r
	}
	return d.numSources
}

// relativeSpread computes (max - min) / max(|values|) over the candidates
func relativeSpread(records []CanonicalRecord) float64 {
	minVal := records[0].ValueStandard
	maxVal := records[0].ValueStandard
	maxAbs := math.Abs(records[0].ValueStandard)

	for _, rec := range records[1:] {
		v := rec.ValueStandard
		if v < minVal {
			minVal = v
		}
		if v > maxVal {
			maxVal = v
		}
		if math.Abs(v) > maxAbs {
			maxAbs = math.Abs(v)
		}
	}

	if maxAbs == 0 {
		return 0
	}
	return (maxVal - minVal) / maxAbs
}

// mostRecentIndex returns the candidate with the latest observed timestamp,
// breaking ties by larger absolute value then by source name for
// determinism.
func mostRecentIndex(records []CanonicalRecord) int {
	best := 0
	for i := 1; i < len(records); i++ {
		if laterRecord(records[i], records[best]) {
			best = i
		}
	}
	return best
}

func laterRecord(a, b CanonicalRecord) bool {
	if !a.Observed.Equal(b.Observed) {
		return a.Observed.After(b.Observed)
	}
	aAbs, bAbs := math.Abs(a.ValueStandard), math.Abs(b.ValueStandard)
	if aAbs != bAbs {
		return aAbs > bAbs
	}
	return a.Source < b.Source
}
