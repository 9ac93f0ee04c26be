package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "fiscalcli/internal/errors"
	"fiscalcli/internal/operations"
)

// SnapshotReader serves the latest completed pipeline snapshot
type SnapshotReader interface {
	Latest() (*operations.Snapshot, bool)
}

// SnapshotHandler exposes read-only views over the latest snapshot. All
// endpoints return 404 until the first pipeline run completes.
type SnapshotHandler struct {
	reader SnapshotReader
	logger *slog.Logger
}

// NewSnapshotHandler creates a snapshot handler
func NewSnapshotHandler(reader SnapshotReader, logger *slog.Logger) *SnapshotHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SnapshotHandler{
		reader: reader,
		logger: logger.With(slog.String("component", "snapshot_handler")),
	}
}

// Routes returns the snapshot read routes
func (h *SnapshotHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/ratios", h.GetRatios)
	r.Get("/drivers", h.GetDrivers)
	r.Get("/anomalies", h.GetAnomalies)
	r.Get("/forecasts", h.GetForecasts)
	r.Get("/quality", h.GetQuality)

	return r
}

func (h *SnapshotHandler) snapshot(w http.ResponseWriter, r *http.Request) (*operations.Snapshot, bool) {
	snapshot, ok := h.reader.Latest()
	if !ok {
		render.Render(w, r, apierrors.ErrSnapshotNotReady)
		return nil, false
	}
	return snapshot, true
}

// GetRatios returns the stress ratio table, optionally filtered by entity
func (h *SnapshotHandler) GetRatios(w http.ResponseWriter, r *http.Request) {
	snapshot, ok := h.snapshot(w, r)
	if !ok {
		return
	}

	ratios := snapshot.Ratios
	if entity := r.URL.Query().Get("entity"); entity != "" {
		filtered := ratios[:0:0]
		for _, rec := range ratios {
			if rec.EntityID == entity {
				filtered = append(filtered, rec)
			}
		}
		ratios = filtered
	}

	render.JSON(w, r, map[string]interface{}{
		"run_id": snapshot.RunID,
		"ratios": ratios,
		"count":  len(ratios),
	})
}

// GetDrivers returns the regression results, pooled fit included
func (h *SnapshotHandler) GetDrivers(w http.ResponseWriter, r *http.Request) {
	snapshot, ok := h.snapshot(w, r)
	if !ok {
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"run_id":  snapshot.RunID,
		"drivers": snapshot.Regressions,
		"count":   len(snapshot.Regressions),
	})
}

// GetAnomalies returns the flagged anomalies ordered by |z| descending
func (h *SnapshotHandler) GetAnomalies(w http.ResponseWriter, r *http.Request) {
	snapshot, ok := h.snapshot(w, r)
	if !ok {
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"run_id":    snapshot.RunID,
		"anomalies": snapshot.Anomalies,
		"count":     len(snapshot.Anomalies),
	})
}

// GetForecasts returns the forecast rows, optionally filtered by entity
func (h *SnapshotHandler) GetForecasts(w http.ResponseWriter, r *http.Request) {
	snapshot, ok := h.snapshot(w, r)
	if !ok {
		return
	}

	forecasts := snapshot.Forecasts
	if entity := r.URL.Query().Get("entity"); entity != "" {
		filtered := forecasts[:0:0]
		for _, rec := range forecasts {
			if rec.EntityID == entity {
				filtered = append(filtered, rec)
			}
		}
		forecasts = filtered
	}

	render.JSON(w, r, map[string]interface{}{
		"run_id":    snapshot.RunID,
		"forecasts": forecasts,
		"count":     len(forecasts),
	})
}

// GetQuality returns the run's quality report
func (h *SnapshotHandler) GetQuality(w http.ResponseWriter, r *http.Request) {
	snapshot, ok := h.snapshot(w, r)
	if !ok {
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"run_id":       snapshot.RunID,
		"started_at":   snapshot.StartedAt,
		"completed_at": snapshot.CompletedAt,
		"quality":      snapshot.Quality,
	})
}
