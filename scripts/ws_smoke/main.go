package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/wirerelay/internal/proto"
)

type outbound struct {
	Type  string          `json:"type"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	Error *proto.Error    `json:"error"`
}

func main() {
	if err := run(); err != nil {
		log.Printf("ws_smoke: %v", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "ws://localhost:8080/ws", "WebSocket address")
	user := flag.String("user", "tester", "identity to bind with setIdentity")
	token := flag.String("token", "", "optional JWT proving the identity")
	text := flag.String("text", "hello from smoke test", "message text to send")
	timeout := flag.Duration("timeout", 5*time.Second, "total timeout for the run")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, *addr, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	send := func(typ string, data any) error {
		payload, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", typ, err)
		}
		if err := wsjson.Write(ctx, conn, proto.Inbound{Type: typ, Data: payload}); err != nil {
			return fmt.Errorf("send %s: %w", typ, err)
		}
		return nil
	}

	if err := send(proto.InboundTypeSetIdentity, proto.SetIdentityData{Name: *user, Token: *token}); err != nil {
		return err
	}
	if err := send(proto.InboundTypeMessage, proto.MessageData{Text: *text}); err != nil {
		return err
	}

	for {
		var out outbound
		if err := wsjson.Read(ctx, conn, &out); err != nil {
			return fmt.Errorf("read: %w", err)
		}

		if out.Type == proto.OutboundTypeError && out.Error != nil {
			return fmt.Errorf("server error %s: %s", out.Error.Code, out.Error.Msg)
		}
		fmt.Printf("Received outbound: type=%s event=%s\n", out.Type, out.Event)

		switch out.Event {
		case proto.EventMessage:
			var msg proto.EventMessageData
			if err := json.Unmarshal(out.Data, &msg); err != nil {
				return fmt.Errorf("unmarshal message: %w", err)
			}
			fmt.Printf("Message: id=%s from=%s text=%q date=%s\n", msg.ID, msg.SenderID, msg.Text, msg.Date.Format(time.RFC3339))

			// Acknowledge our own echo to exercise the seen path.
			if err := send(proto.InboundTypeMessageSeen, msg.ID); err != nil {
				return err
			}
		case proto.EventMessageSeen:
			var seen proto.EventSeenData
			if err := json.Unmarshal(out.Data, &seen); err != nil {
				return fmt.Errorf("unmarshal seen: %w", err)
			}
			fmt.Printf("Seen: id=%s\n", seen.MessageID)
			return nil
		case proto.EventUserCount:
			fmt.Printf("Online: %s\n", out.Data)
		}
	}
}
