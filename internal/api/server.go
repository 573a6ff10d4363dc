// Package api exposes the HTTP surface: the /ws/chat WebSocket endpoint,
// admin reload/status endpoints, and health probes.
package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/koopa0/dormchat/internal/gate"
	"github.com/koopa0/dormchat/internal/reload"
)

// ServerConfig contains configuration for creating the API server.
type ServerConfig struct {
	Logger      *slog.Logger
	Gatekeeper  *gate.Gatekeeper    // Required: session governance
	Coordinator *reload.Coordinator // Required: reload entry point
	Registry    *gate.Registry      // Required: status reporting
	Limiter     *gate.RateLimiter   // Required: status reporting
	Index       IndexStatus         // Required: status reporting
	Pool        *pgxpool.Pool       // Optional: nil disables DB ping in /ready
	AdminToken  string              // Required: bearer token for admin endpoints
	CORSOrigins []string            // Allowed origins for CORS and WS upgrades
	TrustProxy  bool                // Trust X-Real-IP/X-Forwarded-For headers
	RateBurst   int                 // Per-IP HTTP token bucket burst (0 = default 60)
}

// IndexStatus is re-exported for wiring; see indexStatus.
type IndexStatus = indexStatus

// Server is the HTTP server for chat and administration.
type Server struct {
	mux *http.ServeMux
}

// NewServer creates a server with all routes configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Gatekeeper == nil {
		return nil, errors.New("gatekeeper is required")
	}
	if cfg.Coordinator == nil {
		return nil, errors.New("reload coordinator is required")
	}
	if cfg.Registry == nil || cfg.Limiter == nil || cfg.Index == nil {
		return nil, errors.New("registry, limiter, and index status are required")
	}
	if cfg.AdminToken == "" {
		return nil, errors.New("admin token is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	admin := &adminHandler{
		coordinator: cfg.Coordinator,
		registry:    cfg.Registry,
		limiter:     cfg.Limiter,
		index:       cfg.Index,
		logger:      logger,
	}

	// Admin API behind bearer auth and the per-IP token bucket.
	apiMux := http.NewServeMux()
	auth := adminAuthMiddleware(cfg.AdminToken, logger)
	apiMux.Handle("POST /api/v1/reload", auth(http.HandlerFunc(admin.triggerReload)))
	apiMux.Handle("GET /api/v1/status", auth(http.HandlerFunc(admin.getStatus)))

	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 60
	}
	rl := newRateLimiter(1.0, burst)

	// Middleware stack, outermost first:
	//   Recovery → Logging → CORS → RateLimit → Routes
	// CORS before RateLimit so preflight OPTIONS gets proper headers.
	var handler http.Handler = apiMux
	handler = rateLimitMiddleware(rl, cfg.TrustProxy, logger)(handler)
	handler = corsMiddleware(cfg.CORSOrigins)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = recoveryMiddleware(logger)(handler)

	// Chat sessions bypass the HTTP token bucket: message throttling and
	// capacity are the gatekeeper's job.
	ws := newWSHandler(cfg.Gatekeeper, cfg.CORSOrigins, logger)

	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /health", health(logger))
	topMux.HandleFunc("GET /ready", readiness(cfg.Pool, logger))
	topMux.Handle("GET /ws/chat", ws)
	topMux.Handle("/", handler)

	return &Server{mux: topMux}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}
