package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/koopa0/dormchat/internal/gate"
)

// wsWriteTimeout bounds a single outbound frame write.
const wsWriteTimeout = 10 * time.Second

// wsTransport adapts a gorilla WebSocket connection to gate.Transport.
//
// gorilla allows one concurrent writer, and both the receive loop and the
// idle watcher send through this transport, so writes are serialized with
// a mutex. Close is idempotent: the watcher and teardown may both call it.
type wsTransport struct {
	conn      *websocket.Conn
	writeMu   sync.Mutex
	closeOnce sync.Once
}

func newWSTransport(conn *websocket.Conn) *wsTransport {
	return &wsTransport{conn: conn}
}

// Receive blocks on the next text message. The read is unblocked by Close,
// so ctx is only consulted for an early-cancel fast path.
func (t *wsTransport) Receive(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("session context done: %w", err)
	}
	_, data, err := t.conn.ReadMessage()
	if err != nil {
		return "", fmt.Errorf("receiving message: %w", err)
	}
	return string(data), nil
}

// Send writes a structured message. Serialized because gorilla permits
// only one concurrent writer.
func (t *wsTransport) Send(_ context.Context, msg gate.Message) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if err := t.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout)); err != nil {
		return fmt.Errorf("setting write deadline: %w", err)
	}
	if err := t.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("sending message: %w", err)
	}
	return nil
}

// Close sends a close frame with the given code and closes the socket.
// Always a no-op after the first call, and never reports an error: by the
// time Close races with a peer disconnect, the session is over either way.
func (t *wsTransport) Close(code int, reason string) error {
	t.closeOnce.Do(func() {
		deadline := time.Now().Add(wsWriteTimeout)
		// Best-effort close frame; the peer may already be gone.
		_ = t.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(code, reason), deadline)
		_ = t.conn.Close()
	})
	return nil
}

// wsHandler upgrades chat connections and hands them to the gatekeeper.
type wsHandler struct {
	gatekeeper *gate.Gatekeeper
	upgrader   websocket.Upgrader
	logger     *slog.Logger
}

func newWSHandler(gk *gate.Gatekeeper, allowedOrigins []string, logger *slog.Logger) *wsHandler {
	originSet := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		originSet[o] = struct{}{}
	}

	return &wsHandler{
		gatekeeper: gk,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// No configured origins means open access.
				if len(originSet) == 0 {
					return true
				}
				_, ok := originSet[r.Header.Get("Origin")]
				return ok
			},
		},
		logger: logger,
	}
}

func (h *wsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		h.logger.Debug("websocket upgrade failed", "error", err, "ip", r.RemoteAddr)
		return
	}

	t := newWSTransport(conn)
	defer func() { _ = t.Close(gate.CloseNormal, "") }()

	h.gatekeeper.Handle(r.Context(), t)
}
