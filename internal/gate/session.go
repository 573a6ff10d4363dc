package gate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

// WebSocket close codes used by the governance core. The peer can tell the
// three teardown causes apart by code alone.
const (
	// CloseNormal closes an idle session (RFC 6455 normal closure).
	CloseNormal = 1000

	// CloseInternalError closes a session after an unrecoverable
	// processing failure or when the query backend is unavailable.
	CloseInternalError = 1011

	// CloseTryAgainLater rejects a session at capacity.
	CloseTryAgainLater = 1013
)

// Status values discriminate structured messages sent to the peer.
const (
	StatusSuccess     = "success"
	StatusRateLimited = "rate_limited"
	StatusTimeout     = "timeout"
	StatusError       = "error"
)

// Message is the structured payload exchanged with the chat peer.
type Message struct {
	Question string `json:"question,omitempty"`
	Answer   string `json:"answer"`
	Status   string `json:"status"`
}

// Transport is the connection surface the governance core drives. The
// WebSocket layer implements it; tests use in-memory fakes.
//
// Close must tolerate an already-closed connection (no-op, not an error),
// because teardown and the idle watcher may both try to close.
type Transport interface {
	// Receive blocks until the next inbound text message or disconnect.
	// Any returned error is treated as the end of the session.
	Receive(ctx context.Context) (string, error)

	// Send delivers a structured message. Failures during teardown are
	// expected; callers treat Send as best-effort where noted.
	Send(ctx context.Context, msg Message) error

	// Close closes the connection with the given code and reason.
	Close(code int, reason string) error
}

// Answerer is the query pipeline as seen by the governance core.
type Answerer interface {
	// Ready reports whether an index has been published and queries can
	// be served. Checked once per session, at activation.
	Ready() bool

	// Answer runs retrieval + generation for one question.
	Answer(ctx context.Context, question string) (string, error)
}

// Gatekeeper orchestrates session lifecycles: admission, the receive loop
// with rate limiting, idle supervision, and exactly-once teardown.
type Gatekeeper struct {
	registry      *Registry
	limiter       *RateLimiter
	pipeline      Answerer
	sweepInterval time.Duration
	logger        *slog.Logger
}

// NewGatekeeper wires the governance core. sweepInterval is the idle
// watcher's poll cadence; any cadence shorter than the idle timeout
// detects idleness within one poll of the threshold.
func NewGatekeeper(registry *Registry, limiter *RateLimiter, pipeline Answerer, sweepInterval time.Duration, logger *slog.Logger) *Gatekeeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gatekeeper{
		registry:      registry,
		limiter:       limiter,
		pipeline:      pipeline,
		sweepInterval: sweepInterval,
		logger:        logger,
	}
}

// Handle runs one chat session end to end and returns when it is closed.
//
// Lifecycle: admission against the registry; on success an idle watcher is
// started and the receive loop runs until disconnect, idle timeout, or an
// unrecoverable error. Teardown (watcher cancellation, capacity release,
// rate-limiter cleanup) runs exactly once on every exit path.
func (g *Gatekeeper) Handle(ctx context.Context, t Transport) {
	id, ok := g.registry.TryAdmit(time.Now())
	if !ok {
		g.logger.Warn("connection rejected, capacity reached",
			"active", g.registry.Active(),
			"max", g.registry.Max(),
		)
		// Best-effort: the peer may already be gone.
		_ = t.Close(CloseTryAgainLater, "server capacity reached")
		return
	}

	g.logger.Info("session admitted", "session_id", id, "active", g.registry.Active())

	sessionCtx, cancel := context.WithCancel(ctx)
	defer func() {
		cancel()
		g.registry.Release(id)
		g.limiter.Cleanup(id)
		g.logger.Info("session closed", "session_id", id, "active", g.registry.Active())
	}()

	go g.superviseIdle(sessionCtx, t, id)

	if !g.pipeline.Ready() {
		_ = t.Send(sessionCtx, Message{
			Answer: "Error: the service is not ready yet. Please try again later.",
			Status: StatusError,
		})
		_ = t.Close(CloseInternalError, "backend unavailable")
		return
	}

	if err := g.receiveLoop(sessionCtx, t, id); err != nil {
		g.logger.Error("session error", "session_id", id, "error", err)
		// Best-effort notification; the connection may already be dead.
		_ = t.Send(sessionCtx, Message{
			Answer: "Internal server error. Please try again.",
			Status: StatusError,
		})
		_ = t.Close(CloseInternalError, "internal error")
		return
	}

	g.logger.Debug("session disconnected", "session_id", id)
}

// receiveLoop processes inbound messages strictly in arrival order.
// Returns nil on disconnect and an error only for processing failures
// that should close the session with an internal-error code.
func (g *Gatekeeper) receiveLoop(ctx context.Context, t Transport, id uuid.UUID) error {
	for {
		data, err := t.Receive(ctx)
		if err != nil {
			// Disconnect, idle-watcher close, or context cancellation
			// all surface here; none is a processing failure.
			return nil
		}

		// One captured timestamp attributes both the activity update and
		// the rate-limit check to the message's arrival.
		now := time.Now()
		g.registry.Touch(id, now)

		if strings.TrimSpace(data) == "" {
			// No rate-limit cost, no response.
			continue
		}

		allowed, retryAfter := g.limiter.Check(id, now)
		if !allowed {
			g.logger.Debug("rate limit exceeded",
				"session_id", id,
				"retry_after", retryAfter,
			)
			// Best-effort: session stays open either way.
			_ = t.Send(ctx, Message{
				Answer: "You are sending messages too quickly. Please wait a moment before asking again.",
				Status: StatusRateLimited,
			})
			continue
		}

		answer, err := g.pipeline.Answer(ctx, data)
		if err != nil {
			return fmt.Errorf("answering question: %w", err)
		}

		if err := t.Send(ctx, Message{
			Question: data,
			Answer:   strings.TrimSpace(answer),
			Status:   StatusSuccess,
		}); err != nil {
			// The peer vanished mid-send; treat as disconnect.
			return nil
		}
	}
}

// superviseIdle polls the session's idle status every sweep interval and
// closes the connection once the idle timeout is exceeded. Cancelled via
// ctx as part of teardown; the close races harmlessly with a concurrent
// disconnect because Transport.Close and Registry.Release are idempotent.
func (g *Gatekeeper) superviseIdle(ctx context.Context, t Transport, id uuid.UUID) {
	ticker := time.NewTicker(g.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := time.Now()
			if !g.registry.IsIdle(id, now) {
				continue
			}
			g.logger.Info("closing idle session",
				"session_id", id,
				"idle_timeout", g.registry.IdleTimeout(),
			)
			_ = t.Send(ctx, Message{
				Answer: fmt.Sprintf("Connection closed after %.0f seconds of inactivity.", g.registry.IdleTimeout().Seconds()),
				Status: StatusTimeout,
			})
			_ = t.Close(CloseNormal, "idle timeout")
			return
		}
	}
}
