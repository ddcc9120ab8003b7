package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/vovakirdan/wirerelay/internal/store"
)

// MarkSeen flips a message to seen and notifies the interested connections.
// Acknowledging an already seen message succeeds without saving or notifying again.
func (h *Hub) MarkSeen(ctx context.Context, messageID string) (SeenAck, error) {
	messageID = strings.TrimSpace(messageID)
	if messageID == "" {
		return SeenAck{}, fmt.Errorf("mark seen: %w: empty id", ErrValidation)
	}

	pctx, cancel := h.persistContext(ctx)
	defer cancel()

	stored, err := h.store.FindMessageByID(pctx, messageID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return SeenAck{}, fmt.Errorf("mark seen %s: %w", messageID, ErrNotFound)
		}
		h.metrics.PersistenceFailed()
		return SeenAck{}, fmt.Errorf("find message %s: %w: %v", messageID, ErrPersistence, err)
	}

	ack := SeenAck{MessageID: stored.ID, Receiver: stored.Receiver}
	if stored.Seen {
		return ack, nil
	}

	stored.Seen = true
	if err := h.store.SaveMessage(pctx, stored); err != nil {
		h.metrics.PersistenceFailed()
		return SeenAck{}, fmt.Errorf("save message %s: %w: %v", messageID, ErrPersistence, err)
	}
	ack.Changed = true
	h.metrics.Seen()

	event := &Event{Kind: EventMessageSeen, Ack: ack}
	if h.opts.SeenScope == SeenScopeGlobal || !stored.Directed() {
		h.deliver(h.registry.targetsAll(""), event)
	} else {
		h.deliver(h.registry.targetsFor([]string{stored.Receiver, stored.Author}), event)
	}
	return ack, nil
}

// MarkSeenBatch acknowledges ids in order. A failing id is recorded and skipped.
func (h *Hub) MarkSeenBatch(ctx context.Context, messageIDs []string) BatchResult {
	var result BatchResult
	for _, id := range messageIDs {
		ack, err := h.MarkSeen(ctx, id)
		if err != nil {
			h.log.Debug().Err(err).Str("message_id", id).Msg("batch seen skipped id")
			result.Failures = append(result.Failures, SeenFailure{MessageID: id, Err: err})
			continue
		}
		result.Acks = append(result.Acks, ack)
	}
	return result
}
