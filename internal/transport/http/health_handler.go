package http

import (
	"net/http"
	"time"

	"github.com/go-chi/render"
)

// HealthHandler reports liveness and whether a snapshot is available
type HealthHandler struct {
	reader  SnapshotReader
	version string
	started time.Time
}

// NewHealthHandler creates a health handler
func NewHealthHandler(reader SnapshotReader, version string) *HealthHandler {
	return &HealthHandler{
		reader:  reader,
		version: version,
		started: time.Now(),
	}
}

// Health reports service status. The service is healthy as soon as it can
// answer; snapshot_ready tells callers whether data endpoints will serve.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	_, ready := h.reader.Latest()

	render.JSON(w, r, map[string]interface{}{
		"status":         "healthy",
		"version":        h.version,
		"uptime":         time.Since(h.started).String(),
		"snapshot_ready": ready,
	})
}
