package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	stdhttp "net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirerelay/internal/auth"
	"github.com/vovakirdan/wirerelay/internal/config"
	"github.com/vovakirdan/wirerelay/internal/core"
	"github.com/vovakirdan/wirerelay/internal/proto"
)

// WSHandler upgrades HTTP connections and bridges them to the hub.
type WSHandler struct {
	hub  *core.Hub
	auth *auth.Service
	cfg  config.Config
	log  *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler. authService may be nil when tokens are not used.
func NewWSHandler(hub *core.Hub, authService *auth.Service, cfg config.Config, logger *zerolog.Logger) *WSHandler {
	return &WSHandler{hub: hub, auth: authService, cfg: cfg, log: logger}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	ctx := r.Context()

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")

	if h.cfg.MaxMessageBytes > 0 {
		conn.SetReadLimit(h.cfg.MaxMessageBytes)
	}

	session := h.hub.Connect()
	defer h.hub.Disconnect(session.ID)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, session.ID)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, session)
	}()

	err = <-errCh
	cancel() // stop the other goroutine
	<-errCh

	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != -1 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = err.Error()
			h.log.Warn().Err(err).Str("connection_id", session.ID).Msg("ws connection closed with error")
		}
	}

	conn.Close(status, reason)
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, connID string) error {
	limiter := newRateLimiter(h.cfg.RateLimitRPS, h.cfg.RateLimitBurst)

	for {
		_, payload, err := conn.Read(ctx)
		if err != nil {
			h.log.Debug().Err(err).Str("connection_id", connID).Msg("read ws inbound")
			return err
		}

		if !limiter.allow() {
			if err := h.writeError(ctx, conn, core.ErrCodeRateLimited, "too many messages"); err != nil {
				return err
			}
			continue
		}

		var inbound proto.Inbound
		if err := json.Unmarshal(payload, &inbound); err != nil {
			h.log.Debug().Err(err).Str("connection_id", connID).Msg("malformed ws envelope")
			if err := h.writeError(ctx, conn, core.ErrCodeBadRequest, "malformed envelope"); err != nil {
				return err
			}
			continue
		}

		cmd, token, protoErr := inboundToCommand(inbound)
		if protoErr == nil && cmd.Kind == core.CommandSetIdentity {
			protoErr = h.authorizeIdentity(connID, cmd, token)
		}
		if protoErr != nil {
			if err := wsjson.Write(ctx, conn, proto.Outbound{Type: proto.OutboundTypeError, Error: protoErr}); err != nil {
				return err
			}
			continue
		}

		// Commands from one connection are applied in arrival order.
		h.hub.Dispatch(ctx, connID, cmd)
	}
}

// authorizeIdentity checks the optional token on setIdentity. A valid token
// replaces the requested name with the authenticated username.
func (h *WSHandler) authorizeIdentity(connID string, cmd *core.Command, token string) *proto.Error {
	if token == "" {
		if h.cfg.JWTRequired {
			return &proto.Error{Code: core.ErrCodeUnauthorized, Msg: "token required"}
		}
		return nil
	}
	if h.auth == nil {
		return &proto.Error{Code: core.ErrCodeUnauthorized, Msg: "tokens are not accepted"}
	}

	claims, err := h.auth.ValidateToken(token)
	if err != nil {
		h.log.Debug().Err(err).Str("connection_id", connID).Msg("rejected identity token")
		return &proto.Error{Code: core.ErrCodeUnauthorized, Msg: "invalid token"}
	}
	cmd.Identity = claims.Username
	return nil
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, session *core.Connection) error {
	events := session.Events()
	for {
		select {
		case event := <-events:
			if err := wsjson.Write(ctx, conn, outboundFromEvent(event)); err != nil {
				h.log.Error().Err(err).Str("connection_id", session.ID).Msg("write ws event")
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (h *WSHandler) writeError(ctx context.Context, conn *websocket.Conn, code, msg string) error {
	return wsjson.Write(ctx, conn, errorOutbound(code, msg))
}
