package http

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/vovakirdan/wirerelay/internal/auth"
	"github.com/vovakirdan/wirerelay/internal/config"
	"github.com/vovakirdan/wirerelay/internal/core"
	"github.com/vovakirdan/wirerelay/internal/log"
	"github.com/vovakirdan/wirerelay/internal/metrics"
	"github.com/vovakirdan/wirerelay/internal/proto"
	"github.com/vovakirdan/wirerelay/internal/store/sqlite"
)

type testEnv struct {
	server *httptest.Server
	hub    *core.Hub
	auth   *auth.Service
	cfg    config.Config
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Addr = ":0"
	cfg.JWTSecret = "test-secret"
	cfg.JWTIssuer = "test"
	cfg.JWTAudience = "test"
	cfg.RateLimitRPS = 0
	return cfg
}

// startTestServer serves the same handler as NewServer over an in-memory SQLite store.
func startTestServer(t *testing.T, cfg config.Config) *testEnv {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	logger := log.Nop()
	reg := prometheus.NewRegistry()
	registry := core.NewRegistry(cfg.SendBuffer, core.RetentionPolicy{})
	hub := core.NewHub(registry, st, logger, metrics.New(reg), core.Options{PersistTimeout: cfg.PersistTimeout})

	authService := auth.NewService(st, &auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      cfg.JWTTTL,
	})

	server := NewServer(Deps{Hub: hub, Auth: authService, Store: st, Gatherer: reg}, cfg, logger)
	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	return &testEnv{server: ts, hub: hub, auth: authService, cfg: cfg}
}

func testContext(t *testing.T) context.Context {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// dial opens a WebSocket and waits until the hub has registered it.
func (e *testEnv) dial(t *testing.T, ctx context.Context) *websocket.Conn {
	t.Helper()

	wsURL := strings.Replace(e.server.URL, "http", "ws", 1) + "/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "done") })

	readEvent(t, ctx, conn, proto.EventUserCount)
	return conn
}

// join dials and binds identity, waiting for the roster to show it.
func (e *testEnv) join(t *testing.T, ctx context.Context, identity string) *websocket.Conn {
	t.Helper()

	conn := e.dial(t, ctx)
	send(t, ctx, conn, proto.InboundTypeSetIdentity, identity)
	waitRosterIdentity(t, ctx, conn, identity)
	return conn
}

func send(t *testing.T, ctx context.Context, conn *websocket.Conn, typ string, data any) {
	t.Helper()

	var raw json.RawMessage
	if data != nil {
		payload, err := json.Marshal(data)
		if err != nil {
			t.Fatalf("marshal %s payload: %v", typ, err)
		}
		raw = payload
	}
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: typ, Data: raw}); err != nil {
		t.Fatalf("send %s: %v", typ, err)
	}
}

type rawOutbound struct {
	Type  string          `json:"type"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	Error *proto.Error    `json:"error"`
}

// readEvent skips frames until an event with the given name arrives.
func readEvent(t *testing.T, ctx context.Context, conn *websocket.Conn, name string) json.RawMessage {
	t.Helper()

	for {
		var out rawOutbound
		if err := wsjson.Read(ctx, conn, &out); err != nil {
			t.Fatalf("waiting for %s: %v", name, err)
		}
		if out.Type == proto.OutboundTypeEvent && out.Event == name {
			return out.Data
		}
	}
}

// readError skips frames until an error frame arrives.
func readError(t *testing.T, ctx context.Context, conn *websocket.Conn) *proto.Error {
	t.Helper()

	for {
		var out rawOutbound
		if err := wsjson.Read(ctx, conn, &out); err != nil {
			t.Fatalf("waiting for error: %v", err)
		}
		if out.Type == proto.OutboundTypeError {
			if out.Error == nil {
				t.Fatalf("error frame without body")
			}
			return out.Error
		}
	}
}

func readMessage(t *testing.T, ctx context.Context, conn *websocket.Conn, name string) proto.EventMessageData {
	t.Helper()

	var msg proto.EventMessageData
	if err := json.Unmarshal(readEvent(t, ctx, conn, name), &msg); err != nil {
		t.Fatalf("unmarshal %s: %v", name, err)
	}
	return msg
}

func waitRosterIdentity(t *testing.T, ctx context.Context, conn *websocket.Conn, identity string) {
	t.Helper()

	for {
		var roster map[string]proto.RosterEntry
		if err := json.Unmarshal(readEvent(t, ctx, conn, proto.EventUpdateUserList), &roster); err != nil {
			t.Fatalf("unmarshal roster: %v", err)
		}
		for _, entry := range roster {
			if entry.Online && entry.Identity == identity {
				return
			}
		}
	}
}
