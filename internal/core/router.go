package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/vovakirdan/wirerelay/internal/metrics"
	"github.com/vovakirdan/wirerelay/internal/utils"
)

// Route persists a message from the sender's bound identity and fans it out.
//
// With an empty receiver every online connection gets it, the sender included. Otherwise every
// online connection bound to receiver gets it, and the sender gets exactly one echo. Nothing is
// delivered when the store call fails.
func (h *Hub) Route(ctx context.Context, senderID, text, receiver string) (*Message, error) {
	// Whitespace is content; only a blank body is rejected.
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("route: %w: empty text", ErrValidation)
	}

	author, ok := h.registry.Identity(senderID)
	if !ok {
		return nil, fmt.Errorf("route from %s: %w", senderID, ErrConnectionGone)
	}
	if author == "" {
		return nil, fmt.Errorf("route: %w: identity not set", ErrValidation)
	}

	msg := Message{
		ID:        utils.NewID(),
		Text:      text,
		Author:    author,
		Receiver:  strings.TrimSpace(receiver),
		CreatedAt: h.now().UTC(),
	}

	pctx, cancel := h.persistContext(ctx)
	err := h.store.CreateMessage(pctx, msg.toStore())
	cancel()
	if err != nil {
		h.metrics.PersistenceFailed()
		return nil, fmt.Errorf("create message: %w: %v", ErrPersistence, err)
	}

	// Targets come from a fresh snapshot taken after the store call.
	if msg.Directed() {
		h.deliver(h.registry.targetsFor([]string{msg.Receiver}, senderID), &Event{Kind: EventPrivateMessage, Message: msg})
		h.metrics.MessageRouted(metrics.KindDirected)
	} else {
		h.deliver(h.registry.targetsAll(""), &Event{Kind: EventMessage, Message: msg})
		h.metrics.MessageRouted(metrics.KindBroadcast)
	}

	h.log.Debug().
		Str("message_id", msg.ID).
		Str("author", msg.Author).
		Str("receiver", msg.Receiver).
		Msg("message routed")
	return &msg, nil
}
