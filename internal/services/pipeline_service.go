package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"fiscalcli/internal/ingest"
	"fiscalcli/internal/operations"
)

// SnapshotExporter writes a completed snapshot's artifact set to disk
type SnapshotExporter interface {
	Export(snapshot *operations.Snapshot) error
}

// PipelineService owns the batch pipeline and the latest completed
// snapshot. Reads are served from the held snapshot; a new run replaces
// it atomically on success and leaves it untouched on failure.
type PipelineService struct {
	runner   *operations.Runner
	exporter SnapshotExporter
	logger   *slog.Logger

	mu     sync.RWMutex
	latest *operations.Snapshot
}

// NewPipelineService creates a pipeline service. The exporter is optional;
// when nil, run artifacts are kept in memory only.
func NewPipelineService(runner *operations.Runner, exporter SnapshotExporter, logger *slog.Logger) *PipelineService {
	if logger == nil {
		logger = slog.Default()
	}
	return &PipelineService{
		runner:   runner,
		exporter: exporter,
		logger:   logger,
	}
}

// Run executes the full pipeline over the given raw records and, on
// success, publishes the snapshot and exports its artifact set.
func (s *PipelineService) Run(ctx context.Context, records []ingest.RawRecord) (*operations.Snapshot, error) {
	snapshot, err := s.runner.Run(ctx, records)
	if err != nil {
		return nil, fmt.Errorf("pipeline run: %w", err)
	}

	s.mu.Lock()
	s.latest = snapshot
	s.mu.Unlock()

	if s.exporter != nil {
		if err := s.exporter.Export(snapshot); err != nil {
			// The snapshot is already published; surface the export
			// failure without discarding the run.
			s.logger.ErrorContext(ctx, "artifact export failed",
				slog.String("run_id", snapshot.RunID),
				slog.String("error", err.Error()),
			)
			return snapshot, fmt.Errorf("export artifacts: %w", err)
		}
	}

	return snapshot, nil
}

// Latest returns the most recent completed snapshot, or false when no run
// has completed yet.
func (s *PipelineService) Latest() (*operations.Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.latest == nil {
		return nil, false
	}
	return s.latest, true
}
