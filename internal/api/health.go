package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// readinessTimeout bounds the database ping in the readiness probe.
const readinessTimeout = 3 * time.Second

// health is the liveness probe: the process is up and serving.
func health(logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"}, logger)
	}
}

// readiness is the readiness probe: dependencies are reachable.
func readiness(pool *pgxpool.Pool, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if pool != nil {
			ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
			defer cancel()
			if err := pool.Ping(ctx); err != nil {
				logger.Warn("readiness check failed", "error", err)
				writeError(w, http.StatusServiceUnavailable, "not_ready", "database unreachable", logger)
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"}, logger)
	}
}
