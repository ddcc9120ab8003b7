package http

import (
	"encoding/json"
	"testing"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/wirerelay/internal/core"
	"github.com/vovakirdan/wirerelay/internal/proto"
)

func TestHealthEndpoint(t *testing.T) {
	env := startTestServer(t, testConfig())

	resp, err := env.server.Client().Get(env.server.URL + "/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
}

func TestWebSocketUserCount(t *testing.T) {
	env := startTestServer(t, testConfig())
	ctx := testContext(t)

	alice := env.dial(t, ctx)
	_ = env.dial(t, ctx)

	var count int
	if err := json.Unmarshal(readEvent(t, ctx, alice, proto.EventUserCount), &count); err != nil {
		t.Fatalf("unmarshal count: %v", err)
	}
	if count != 2 {
		t.Fatalf("userCount = %d, want 2", count)
	}
}

func TestWebSocketBroadcastAndPrivate(t *testing.T) {
	env := startTestServer(t, testConfig())
	ctx := testContext(t)

	alice := env.join(t, ctx, "alice")
	bob := env.join(t, ctx, "bob")
	carol := env.join(t, ctx, "carol")

	// senderId in the payload is ignored in favour of the bound identity.
	send(t, ctx, alice, proto.InboundTypeMessage, proto.MessageData{Text: "hi all", SenderID: "mallory"})
	got := readMessage(t, ctx, bob, proto.EventMessage)
	if got.Text != "hi all" || got.SenderID != "alice" || got.ReceiverID != "" || got.ID == "" {
		t.Fatalf("unexpected broadcast %+v", got)
	}
	if echo := readMessage(t, ctx, alice, proto.EventMessage); echo.ID != got.ID {
		t.Fatalf("sender echo %s, want %s", echo.ID, got.ID)
	}
	if c := readMessage(t, ctx, carol, proto.EventMessage); c.ID != got.ID {
		t.Fatalf("carol got %s, want %s", c.ID, got.ID)
	}

	send(t, ctx, alice, proto.InboundTypePrivateMessage, proto.PrivateMessageData{
		MessageData: proto.MessageData{Text: "psst"},
		ReceiverID:  "bob",
	})
	private := readMessage(t, ctx, bob, proto.EventPrivateMessage)
	if private.Text != "psst" || private.ReceiverID != "bob" || private.SenderID != "alice" {
		t.Fatalf("unexpected private message %+v", private)
	}
	if echo := readMessage(t, ctx, alice, proto.EventPrivateMessage); echo.ID != private.ID {
		t.Fatalf("sender echo %s, want %s", echo.ID, private.ID)
	}

	// carol's next chat frame is the following broadcast, not the private message.
	send(t, ctx, bob, proto.InboundTypeMessage, proto.MessageData{Text: "after"})
	var out rawOutbound
	for {
		out = rawOutbound{}
		if err := wsjson.Read(ctx, carol, &out); err != nil {
			t.Fatalf("read carol: %v", err)
		}
		if out.Event == proto.EventMessage || out.Event == proto.EventPrivateMessage {
			break
		}
	}
	if out.Event != proto.EventMessage {
		t.Fatalf("carol received %s", out.Event)
	}
}

func TestWebSocketMessageSeenNotifiesParties(t *testing.T) {
	env := startTestServer(t, testConfig())
	ctx := testContext(t)

	alice := env.join(t, ctx, "alice")
	bob := env.join(t, ctx, "bob")

	send(t, ctx, alice, proto.InboundTypePrivateMessage, proto.PrivateMessageData{
		MessageData: proto.MessageData{Text: "read me"},
		ReceiverID:  "bob",
	})
	msg := readMessage(t, ctx, bob, proto.EventPrivateMessage)

	send(t, ctx, bob, proto.InboundTypeMessageSeen, msg.ID)

	var seen proto.EventSeenData
	if err := json.Unmarshal(readEvent(t, ctx, alice, proto.EventMessageSeen), &seen); err != nil {
		t.Fatalf("unmarshal seen: %v", err)
	}
	if seen.MessageID != msg.ID || seen.ReceiverID != "bob" {
		t.Fatalf("unexpected seen payload %+v", seen)
	}

	// Batch form with an unknown id still acknowledges the rest silently.
	send(t, ctx, alice, proto.InboundTypeMessage, proto.MessageData{Text: "broadcast"})
	bcast := readMessage(t, ctx, bob, proto.EventMessage)
	send(t, ctx, bob, proto.InboundTypeMessageSeen, []string{"missing", bcast.ID})
	if err := json.Unmarshal(readEvent(t, ctx, alice, proto.EventMessageSeen), &seen); err != nil {
		t.Fatalf("unmarshal seen: %v", err)
	}
	if seen.MessageID != bcast.ID {
		t.Fatalf("seen for %s, want %s", seen.MessageID, bcast.ID)
	}
}

func TestWebSocketTypingSkipsSender(t *testing.T) {
	env := startTestServer(t, testConfig())
	ctx := testContext(t)

	alice := env.join(t, ctx, "alice")
	bob := env.join(t, ctx, "bob")

	send(t, ctx, alice, proto.InboundTypeTyping, proto.TypingData{Name: "alice"})
	var typing proto.EventTypingData
	if err := json.Unmarshal(readEvent(t, ctx, bob, proto.EventTyping), &typing); err != nil {
		t.Fatalf("unmarshal typing: %v", err)
	}
	if typing.Name != "alice" {
		t.Fatalf("typing name = %q", typing.Name)
	}

	send(t, ctx, alice, proto.InboundTypeStopTyping, nil)
	readEvent(t, ctx, bob, proto.EventStopTyping)

	// alice's own stream carries no typing frames before her next message echo.
	send(t, ctx, alice, proto.InboundTypeMessage, proto.MessageData{Text: "done"})
	for {
		var out rawOutbound
		if err := wsjson.Read(ctx, alice, &out); err != nil {
			t.Fatalf("read alice: %v", err)
		}
		if out.Event == proto.EventTyping || out.Event == proto.EventStopTyping {
			t.Fatalf("sender received its own %s", out.Event)
		}
		if out.Event == proto.EventMessage {
			break
		}
	}
}

func TestWebSocketValidationErrors(t *testing.T) {
	env := startTestServer(t, testConfig())
	ctx := testContext(t)

	conn := env.dial(t, ctx)

	send(t, ctx, conn, "teleport", nil)
	if e := readError(t, ctx, conn); e.Code != core.ErrCodeBadRequest {
		t.Fatalf("unknown type: code %q", e.Code)
	}

	send(t, ctx, conn, proto.InboundTypeMessage, proto.MessageData{Text: "who am I"})
	if e := readError(t, ctx, conn); e.Code != core.ErrCodeBadRequest {
		t.Fatalf("message without identity: code %q", e.Code)
	}

	send(t, ctx, conn, proto.InboundTypeSetIdentity, 42)
	if e := readError(t, ctx, conn); e.Code != core.ErrCodeBadRequest {
		t.Fatalf("numeric identity: code %q", e.Code)
	}

	if err := conn.Write(ctx, websocket.MessageText, []byte("{not json")); err != nil {
		t.Fatalf("write raw: %v", err)
	}
	if e := readError(t, ctx, conn); e.Code != core.ErrCodeBadRequest {
		t.Fatalf("malformed envelope: code %q", e.Code)
	}

	// The connection survives bad input.
	send(t, ctx, conn, proto.InboundTypeSetIdentity, "dave")
	waitRosterIdentity(t, ctx, conn, "dave")
}

func TestWebSocketRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimitRPS = 0.001
	cfg.RateLimitBurst = 1
	env := startTestServer(t, cfg)
	ctx := testContext(t)

	conn := env.dial(t, ctx)
	send(t, ctx, conn, proto.InboundTypeSetIdentity, "eve")
	waitRosterIdentity(t, ctx, conn, "eve")

	send(t, ctx, conn, proto.InboundTypeMessage, proto.MessageData{Text: "spam"})
	if e := readError(t, ctx, conn); e.Code != core.ErrCodeRateLimited {
		t.Fatalf("code = %q, want %q", e.Code, core.ErrCodeRateLimited)
	}
}

func TestWebSocketDisconnectUpdatesRoster(t *testing.T) {
	env := startTestServer(t, testConfig())
	ctx := testContext(t)

	alice := env.join(t, ctx, "alice")
	bob := env.join(t, ctx, "bob")
	bob.CloseNow()

	for {
		var roster map[string]proto.RosterEntry
		if err := json.Unmarshal(readEvent(t, ctx, alice, proto.EventUpdateUserList), &roster); err != nil {
			t.Fatalf("unmarshal roster: %v", err)
		}
		offline := false
		for _, entry := range roster {
			if entry.Identity == "bob" && !entry.Online {
				offline = true
			}
		}
		if offline {
			break
		}
	}
	if n := env.hub.OnlineCount(); n != 1 {
		t.Fatalf("online count = %d, want 1", n)
	}
}

func TestWebSocketUpgradeBypassesGin(t *testing.T) {
	env := startTestServer(t, testConfig())
	ctx := testContext(t)

	env.dial(t, ctx)
	if n := env.hub.OnlineCount(); n != 1 {
		t.Fatalf("online count after upgrade = %d, want 1", n)
	}

	// REST routes still reach gin through the same handler.
	resp, err := env.server.Client().Get(env.server.URL + "/api/roster")
	if err != nil {
		t.Fatalf("roster request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Fatalf("roster status = %d", resp.StatusCode)
	}
}
