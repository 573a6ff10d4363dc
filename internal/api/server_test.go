package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/koopa0/dormchat/internal/gate"
	"github.com/koopa0/dormchat/internal/log"
	"github.com/koopa0/dormchat/internal/reload"
)

const testAdminToken = "test-admin-token-0123456789"

func newTestServer(t *testing.T, fp *fakePipeline, maxConnections int) *httptest.Server {
	t.Helper()

	registry := gate.NewRegistry(maxConnections, time.Minute)
	limiter := gate.NewRateLimiter(10, 10*time.Second)
	gk := gate.NewGatekeeper(registry, limiter, fp, 10*time.Millisecond, log.NewNop())
	coordinator := reload.New(func(_ context.Context) (reload.Summary, error) {
		return reload.Summary{Generation: 1}, nil
	}, log.NewNop())

	srv, err := NewServer(ServerConfig{
		Logger:      log.NewNop(),
		Gatekeeper:  gk,
		Coordinator: coordinator,
		Registry:    registry,
		Limiter:     limiter,
		Index:       fp,
		AdminToken:  testAdminToken,
	})
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func wsURL(ts *httptest.Server) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/chat"
}

func TestNewServer_Validation(t *testing.T) {
	registry := gate.NewRegistry(1, time.Minute)
	limiter := gate.NewRateLimiter(1, 10*time.Second)
	fp := &fakePipeline{ready: true}
	gk := gate.NewGatekeeper(registry, limiter, fp, time.Second, log.NewNop())
	coordinator := reload.New(func(_ context.Context) (reload.Summary, error) {
		return reload.Summary{}, nil
	}, log.NewNop())

	valid := ServerConfig{
		Gatekeeper:  gk,
		Coordinator: coordinator,
		Registry:    registry,
		Limiter:     limiter,
		Index:       fp,
		AdminToken:  testAdminToken,
	}

	tests := []struct {
		name   string
		mutate func(*ServerConfig)
	}{
		{name: "missing gatekeeper", mutate: func(c *ServerConfig) { c.Gatekeeper = nil }},
		{name: "missing coordinator", mutate: func(c *ServerConfig) { c.Coordinator = nil }},
		{name: "missing registry", mutate: func(c *ServerConfig) { c.Registry = nil }},
		{name: "missing limiter", mutate: func(c *ServerConfig) { c.Limiter = nil }},
		{name: "missing index", mutate: func(c *ServerConfig) { c.Index = nil }},
		{name: "missing admin token", mutate: func(c *ServerConfig) { c.AdminToken = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			if _, err := NewServer(cfg); err == nil {
				t.Error("NewServer() error = nil, want error")
			}
		})
	}

	if _, err := NewServer(valid); err != nil {
		t.Errorf("NewServer() with valid config error = %v", err)
	}
}

func TestServer_Health(t *testing.T) {
	ts := newTestServer(t, &fakePipeline{ready: true}, 10)

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
}

func TestServer_AdminAuth(t *testing.T) {
	ts := newTestServer(t, &fakePipeline{ready: true, generation: 2}, 10)

	// Without a token the status endpoint is off limits.
	resp, err := http.Get(ts.URL + "/api/v1/status")
	if err != nil {
		t.Fatalf("GET /api/v1/status error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("unauthenticated status = %d, want %d", resp.StatusCode, http.StatusUnauthorized)
	}

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/v1/status", nil)
	req.Header.Set("Authorization", "Bearer "+testAdminToken)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("authenticated GET error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("authenticated status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	var body statusBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if body.IndexGeneration != 2 {
		t.Errorf("IndexGeneration = %d, want 2", body.IndexGeneration)
	}
}

func TestServer_ChatSession(t *testing.T) {
	ts := newTestServer(t, &fakePipeline{ready: true, answer: "the gym opens at 06:00"}, 10)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts), nil)
	if err != nil {
		t.Fatalf("dialing websocket: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteMessage(websocket.TextMessage, []byte("when does the gym open?")); err != nil {
		t.Fatalf("writing message: %v", err)
	}

	var msg gate.Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("reading response: %v", err)
	}
	if msg.Status != gate.StatusSuccess {
		t.Errorf("Status = %q, want %q", msg.Status, gate.StatusSuccess)
	}
	if msg.Question != "when does the gym open?" {
		t.Errorf("Question = %q, want the original question", msg.Question)
	}
	if msg.Answer != "the gym opens at 06:00" {
		t.Errorf("Answer = %q, want the pipeline answer", msg.Answer)
	}
}

func TestServer_ChatCapacityRejection(t *testing.T) {
	ts := newTestServer(t, &fakePipeline{ready: true, answer: "ok"}, 1)

	first, _, err := websocket.DefaultDialer.Dial(wsURL(ts), nil)
	if err != nil {
		t.Fatalf("dialing first connection: %v", err)
	}
	defer first.Close()

	// A round trip proves the first session holds the only slot.
	if err := first.WriteMessage(websocket.TextMessage, []byte("hello")); err != nil {
		t.Fatalf("writing on first connection: %v", err)
	}
	var msg gate.Message
	if err := first.ReadJSON(&msg); err != nil {
		t.Fatalf("reading on first connection: %v", err)
	}

	second, _, err := websocket.DefaultDialer.Dial(wsURL(ts), nil)
	if err != nil {
		t.Fatalf("dialing second connection: %v", err)
	}
	defer second.Close()

	second.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = second.ReadMessage()
	if !websocket.IsCloseError(err, gate.CloseTryAgainLater) {
		t.Errorf("second connection read error = %v, want close code %d", err, gate.CloseTryAgainLater)
	}
}

func TestServer_ChatBackendNotReady(t *testing.T) {
	ts := newTestServer(t, &fakePipeline{ready: false}, 10)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts), nil)
	if err != nil {
		t.Fatalf("dialing websocket: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var msg gate.Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("reading error message: %v", err)
	}
	if msg.Status != gate.StatusError {
		t.Errorf("Status = %q, want %q", msg.Status, gate.StatusError)
	}

	_, _, err = conn.ReadMessage()
	if !websocket.IsCloseError(err, gate.CloseInternalError) {
		t.Errorf("read error = %v, want close code %d", err, gate.CloseInternalError)
	}
}
