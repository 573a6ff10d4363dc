package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/koopa0/dormchat/internal/gate"
	"github.com/koopa0/dormchat/internal/reload"
)

// indexStatus is the slice of the query pipeline the admin API reports on.
type indexStatus interface {
	Ready() bool
	Generation() int64
}

// adminHandler serves the operational endpoints: on-demand index reload
// and a status snapshot.
type adminHandler struct {
	coordinator *reload.Coordinator
	registry    *gate.Registry
	limiter     *gate.RateLimiter
	index       indexStatus
	logger      *slog.Logger
}

// statusBody is the operational report returned by GET /api/v1/status.
type statusBody struct {
	ActiveConnections int   `json:"active_connections"`
	MaxConnections    int   `json:"max_connections"`
	RateLimitClients  int   `json:"rate_limit_clients"`
	ReloadInProgress  bool  `json:"reload_in_progress"`
	IndexReady        bool  `json:"index_ready"`
	IndexGeneration   int64 `json:"index_generation"`
}

// triggerReload handles POST /api/v1/reload. It runs the rebuild in the
// request's goroutine and reports the summary; a concurrent rebuild yields
// 409 without starting a second one.
func (h *adminHandler) triggerReload(w http.ResponseWriter, r *http.Request) {
	summary, err := h.coordinator.Reload(r.Context())
	if err != nil {
		if errors.Is(err, reload.ErrInProgress) {
			writeJSON(w, http.StatusConflict, map[string]string{
				"status":  "in_progress",
				"message": "a reload is already running",
			}, h.logger)
			return
		}
		// Detail is already logged by the coordinator; the previous
		// index keeps serving.
		writeError(w, http.StatusInternalServerError, "reload_failed", "index rebuild failed", h.logger)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"summary": summary,
	}, h.logger)
}

// getStatus handles GET /api/v1/status.
func (h *adminHandler) getStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, statusBody{
		ActiveConnections: h.registry.Active(),
		MaxConnections:    h.registry.Max(),
		RateLimitClients:  h.limiter.Size(),
		ReloadInProgress:  h.coordinator.InProgress(),
		IndexReady:        h.index.Ready(),
		IndexGeneration:   h.index.Generation(),
	}, h.logger)
}
