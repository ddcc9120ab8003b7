package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

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
		log.Printf("ws_chat: %v", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "ws://localhost:8080/ws", "WebSocket address")
	user := flag.String("user", "cli-user", "identity")
	token := flag.String("token", "", "optional JWT from /api/login")
	flag.Parse()

	baseCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(baseCtx)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, *addr, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	if err := send(ctx, conn, proto.InboundTypeSetIdentity, proto.SetIdentityData{Name: *user, Token: *token}); err != nil {
		return err
	}

	fmt.Printf("Connected to %s as %s\n", *addr, *user)
	fmt.Println("Type a line to broadcast, \"@name text\" for a private message, \"/seen id\" to acknowledge. Ctrl+C to exit.")

	go func() {
		defer cancel()
		readLoop(ctx, conn)
	}()

	writeLoop(ctx, conn)

	stop()
	cancel()
	_ = conn.Close(websocket.StatusNormalClosure, "bye")
	return nil
}

func send(ctx context.Context, conn *websocket.Conn, typ string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", typ, err)
	}
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: typ, Data: payload}); err != nil {
		return fmt.Errorf("send %s: %w", typ, err)
	}
	return nil
}

func readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		var out outbound
		if err := wsjson.Read(ctx, conn, &out); err != nil {
			// Treat expected shutdowns quietly.
			if errors.Is(err, context.Canceled) {
				return
			}
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return
			}
			log.Printf("read error: %v", err)
			return
		}

		if out.Type == proto.OutboundTypeError && out.Error != nil {
			fmt.Printf("! %s: %s\n", out.Error.Code, out.Error.Msg)
			continue
		}

		switch out.Event {
		case proto.EventMessage, proto.EventPrivateMessage:
			var msg proto.EventMessageData
			if err := json.Unmarshal(out.Data, &msg); err != nil {
				log.Printf("unmarshal %s: %v", out.Event, err)
				continue
			}
			if msg.ReceiverID != "" {
				fmt.Printf("[%s -> %s] %s (%s)\n", msg.SenderID, msg.ReceiverID, msg.Text, msg.ID)
			} else {
				fmt.Printf("[%s] %s (%s)\n", msg.SenderID, msg.Text, msg.ID)
			}
		case proto.EventTyping:
			var typing proto.EventTypingData
			if err := json.Unmarshal(out.Data, &typing); err == nil {
				fmt.Printf("%s is typing...\n", typing.Name)
			}
		case proto.EventMessageSeen:
			var seen proto.EventSeenData
			if err := json.Unmarshal(out.Data, &seen); err == nil {
				fmt.Printf("seen: %s\n", seen.MessageID)
			}
		case proto.EventUserCount:
			fmt.Printf("online: %s\n", out.Data)
		case proto.EventStopTyping, proto.EventUpdateUserList:
		default:
			fmt.Printf("event=%s data=%s\n", out.Event, out.Data)
		}
	}
}

func writeLoop(ctx context.Context, conn *websocket.Conn) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			text := strings.TrimSpace(line)
			if text == "" {
				continue
			}

			var err error
			switch {
			case strings.HasPrefix(text, "/seen "):
				err = send(ctx, conn, proto.InboundTypeMessageSeen, strings.Fields(strings.TrimPrefix(text, "/seen ")))
			case strings.HasPrefix(text, "@"):
				receiver, body, _ := strings.Cut(strings.TrimPrefix(text, "@"), " ")
				err = send(ctx, conn, proto.InboundTypePrivateMessage, proto.PrivateMessageData{
					MessageData: proto.MessageData{Text: body},
					ReceiverID:  receiver,
				})
			default:
				err = send(ctx, conn, proto.InboundTypeMessage, proto.MessageData{Text: text})
			}
			if err != nil {
				log.Printf("send error: %v", err)
				return
			}
		}
	}
}
