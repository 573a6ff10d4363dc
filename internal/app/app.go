// Package app wires the application together: configuration, storage, the
// query pipeline, the governance core, and the background maintenance
// loops (scheduled reload, status reporting).
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/koopa0/dormchat/internal/config"
	"github.com/koopa0/dormchat/internal/database"
	"github.com/koopa0/dormchat/internal/gate"
	"github.com/koopa0/dormchat/internal/rag"
	"github.com/koopa0/dormchat/internal/reload"
)

// App is the application container. Every process-wide singleton of the
// governance core (registry, rate-limit store, reload coordinator) is an
// explicitly constructed instance living here, passed by reference to the
// components that need it; tests construct their own fresh instances.
type App struct {
	Config *config.Config
	Logger *slog.Logger

	Pool     *pgxpool.Pool
	Store    *rag.Store
	Pipeline *rag.Pipeline
	Ingestor *rag.Ingestor

	Registry    *gate.Registry
	Limiter     *gate.RateLimiter
	Gatekeeper  *gate.Gatekeeper
	Coordinator *reload.Coordinator
}

// Setup initializes all components: migrates and connects the database,
// creates the Gemini adapter, assembles the pipeline and governance core,
// and adopts the newest complete index generation if one exists. When no
// generation exists yet the pipeline stays unpublished and sessions are
// told the backend is unavailable until the first rebuild completes.
func Setup(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if err := database.Migrate(cfg.DSN()); err != nil {
		return nil, fmt.Errorf("migrating database: %w", err)
	}

	pool, err := database.Open(ctx, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	store, err := rag.NewStore(pool, logger.With("component", "store"))
	if err != nil {
		pool.Close()
		return nil, err
	}

	gemini, err := rag.NewGemini(ctx, rag.GeminiConfig{
		APIKey:        cfg.GeminiAPIKey,
		EmbedderModel: cfg.EmbedderModel,
		ModelName:     cfg.ModelName,
		Temperature:   cfg.Temperature,
		MaxTokens:     int32(cfg.MaxTokens),
		Logger:        logger.With("component", "gemini"),
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating model client: %w", err)
	}

	pipeline := rag.NewPipeline(gemini, gemini, store, logger.With("component", "pipeline"))

	if generation, err := store.LatestCompleteGeneration(ctx); err != nil {
		pool.Close()
		return nil, err
	} else if generation > 0 {
		pipeline.Publish(generation)
	} else {
		logger.Warn("no index generation found, sessions get an unavailable notice until the first rebuild")
	}

	ingestor := rag.NewIngestor(store, gemini, cfg.DataDir, cfg.SourceURLs,
		cfg.LockFile, logger.With("component", "ingestor"))

	registry := gate.NewRegistry(cfg.MaxConnections, cfg.IdleTimeout)
	limiter := gate.NewRateLimiter(cfg.RateMaxMessages, cfg.RateWindow)
	gatekeeper := gate.NewGatekeeper(registry, limiter, pipeline,
		cfg.SweepInterval, logger.With("component", "gate"))

	app := &App{
		Config:     cfg,
		Logger:     logger,
		Pool:       pool,
		Store:      store,
		Pipeline:   pipeline,
		Ingestor:   ingestor,
		Registry:   registry,
		Limiter:    limiter,
		Gatekeeper: gatekeeper,
	}
	app.Coordinator = reload.New(app.rebuild, logger.With("component", "reload"))

	return app, nil
}

// rebuild is the RebuildFunc handed to the coordinator: run a full ingest,
// publish the new generation atomically, then prune superseded rows.
// Publication happens only on success, so a failed rebuild leaves the
// previous index authoritative.
func (a *App) rebuild(ctx context.Context) (reload.Summary, error) {
	result, err := a.Ingestor.Rebuild(ctx)
	if err != nil {
		if errors.Is(err, rag.ErrIngestLocked) {
			// Another process owns the rebuild; treat like a concurrent
			// in-process reload.
			return reload.Summary{}, fmt.Errorf("%w: %w", reload.ErrInProgress, err)
		}
		return reload.Summary{}, err
	}

	a.Pipeline.Publish(result.Generation)

	if err := a.Store.PruneBefore(ctx, result.Generation); err != nil {
		// Housekeeping only; stale generations are invisible to queries.
		a.Logger.Warn("pruning old generations", "error", err)
	}

	return reload.Summary{
		Generation: result.Generation,
		Documents:  result.Documents,
		Chunks:     result.Chunks,
		Duration:   result.Duration,
	}, nil
}

// RunBackground starts the scheduled reload loop and the periodic status
// reporter. Both exit when ctx is cancelled.
func (a *App) RunBackground(ctx context.Context) {
	go a.Coordinator.Run(ctx, a.Config.ReloadInterval)
	go a.reportStatus(ctx)
}

// reportStatus logs an operational snapshot every status interval.
func (a *App) reportStatus(ctx context.Context) {
	ticker := time.NewTicker(a.Config.StatusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.Logger.Info("server status",
				"active_connections", a.Registry.Active(),
				"max_connections", a.Registry.Max(),
				"rate_limit_clients", a.Limiter.Size(),
				"index_generation", a.Pipeline.Generation(),
				"reload_in_progress", a.Coordinator.InProgress(),
			)
		}
	}
}

// Close gracefully shuts down all resources.
func (a *App) Close() error {
	a.Logger.Info("shutting down application")
	if a.Pool != nil {
		a.Pool.Close()
		a.Logger.Info("database pool closed")
	}
	return nil
}
