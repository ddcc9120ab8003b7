package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirerelay/internal/core"
	"github.com/vovakirdan/wirerelay/internal/store"
	"github.com/vovakirdan/wirerelay/internal/utils"
)

// MessageHandlers serves message history and acknowledgements over REST.
type MessageHandlers struct {
	hub   *core.Hub
	store store.MessageStore
	log   *zerolog.Logger
}

// NewMessageHandlers creates a new message handlers instance.
func NewMessageHandlers(hub *core.Hub, st store.MessageStore, logger *zerolog.Logger) *MessageHandlers {
	return &MessageHandlers{
		hub:   hub,
		store: st,
		log:   logger,
	}
}

// MessageResponse represents a message in API responses.
type MessageResponse struct {
	ID         string `json:"id"`
	Text       string `json:"text"`
	SenderID   string `json:"senderId"`
	ReceiverID string `json:"receiverId,omitempty"`
	Seen       bool   `json:"seen"`
	Date       string `json:"date"`
}

// SeenRequest represents the batch acknowledgement request body.
type SeenRequest struct {
	IDs []string `json:"ids" binding:"required,min=1"`
}

// SeenAckResponse is one acknowledged message.
type SeenAckResponse struct {
	MessageID  string `json:"messageId"`
	ReceiverID string `json:"receiverId,omitempty"`
	Changed    bool   `json:"changed"`
}

// SeenFailureResponse is one skipped message id.
type SeenFailureResponse struct {
	MessageID string `json:"messageId"`
	Code      string `json:"code"`
}

// SeenResponse is the outcome of a batch acknowledgement.
type SeenResponse struct {
	Acks     []SeenAckResponse     `json:"acks"`
	Failures []SeenFailureResponse `json:"failures"`
}

// History lists messages visible to the caller, oldest first.
// GET /api/messages?limit=50&before=RFC3339
func (h *MessageHandlers) History(c *gin.Context) {
	viewer, ok := identityFromContext(c)
	if !ok {
		abortWithError(c, http.StatusUnauthorized, core.ErrCodeUnauthorized, "unauthorized")
		return
	}

	q := store.HistoryQuery{Viewer: viewer}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			abortWithError(c, http.StatusBadRequest, core.ErrCodeBadRequest, "limit must be a positive integer")
			return
		}
		q.Limit = limit
	}
	if raw := c.Query("before"); raw != "" {
		before, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			abortWithError(c, http.StatusBadRequest, core.ErrCodeBadRequest, "before must be an RFC3339 timestamp")
			return
		}
		q.Before = before
	}

	messages, err := h.store.ListMessages(c.Request.Context(), q)
	if err != nil {
		h.log.Error().Err(err).Str("viewer", viewer).Msg("failed to list messages")
		abortWithError(c, http.StatusInternalServerError, core.ErrCodeInternal, "internal server error")
		return
	}

	response := make([]MessageResponse, 0, len(messages))
	for _, msg := range messages {
		response = append(response, messageResponse(msg))
	}

	h.log.Debug().Str("viewer", viewer).Int("message_count", len(response)).Msg("history listed")
	c.JSON(http.StatusOK, response)
}

// Get returns one message if the caller may see it.
// GET /api/messages/:id
func (h *MessageHandlers) Get(c *gin.Context) {
	viewer, ok := identityFromContext(c)
	if !ok {
		abortWithError(c, http.StatusUnauthorized, core.ErrCodeUnauthorized, "unauthorized")
		return
	}

	id := c.Param("id")
	if !utils.ValidID(id) {
		abortWithError(c, http.StatusBadRequest, core.ErrCodeBadRequest, "invalid message id")
		return
	}

	msg, err := h.store.FindMessageByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			abortWithError(c, http.StatusNotFound, core.ErrCodeNotFound, "message not found")
			return
		}
		h.log.Error().Err(err).Str("message_id", id).Msg("failed to load message")
		abortWithError(c, http.StatusInternalServerError, core.ErrCodeInternal, "internal server error")
		return
	}

	// Directed messages are hidden from third parties.
	if msg.Directed() && msg.Author != viewer && msg.Receiver != viewer {
		abortWithError(c, http.StatusNotFound, core.ErrCodeNotFound, "message not found")
		return
	}

	c.JSON(http.StatusOK, messageResponse(msg))
}

// MarkSeen acknowledges a batch of messages and notifies online connections.
// Directed messages the caller is not a party to fail as not_found, as in Get.
// POST /api/messages/seen
func (h *MessageHandlers) MarkSeen(c *gin.Context) {
	viewer, ok := identityFromContext(c)
	if !ok {
		abortWithError(c, http.StatusUnauthorized, core.ErrCodeUnauthorized, "unauthorized")
		return
	}

	var req SeenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid seen request")
		abortWithError(c, http.StatusBadRequest, core.ErrCodeBadRequest, "invalid request body")
		return
	}

	response := SeenResponse{
		Acks:     make([]SeenAckResponse, 0, len(req.IDs)),
		Failures: make([]SeenFailureResponse, 0),
	}
	fail := func(id string, err error) {
		if errors.Is(err, core.ErrPersistence) {
			h.log.Error().Err(err).Str("message_id", id).Str("viewer", viewer).Msg("failed to mark message seen")
		}
		response.Failures = append(response.Failures, SeenFailureResponse{MessageID: id, Code: core.ErrorCode(err)})
	}

	ctx := c.Request.Context()
	for _, id := range req.IDs {
		if err := h.authorizeSeen(ctx, viewer, id); err != nil {
			fail(id, err)
			continue
		}
		ack, err := h.hub.MarkSeen(ctx, id)
		if err != nil {
			fail(id, err)
			continue
		}
		response.Acks = append(response.Acks, SeenAckResponse{
			MessageID:  ack.MessageID,
			ReceiverID: ack.Receiver,
			Changed:    ack.Changed,
		})
	}

	h.log.Debug().
		Str("viewer", viewer).
		Int("acked", len(response.Acks)).
		Int("failed", len(response.Failures)).
		Msg("seen batch applied")
	c.JSON(http.StatusOK, response)
}

// authorizeSeen hides directed messages from third parties behind core.ErrNotFound.
func (h *MessageHandlers) authorizeSeen(ctx context.Context, viewer, id string) error {
	msg, err := h.store.FindMessageByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("message %s: %w", id, core.ErrNotFound)
		}
		return fmt.Errorf("find message %s: %w: %v", id, core.ErrPersistence, err)
	}
	if msg.Directed() && msg.Author != viewer && msg.Receiver != viewer {
		return fmt.Errorf("message %s: %w", id, core.ErrNotFound)
	}
	return nil
}

func messageResponse(msg *store.Message) MessageResponse {
	return MessageResponse{
		ID:         msg.ID,
		Text:       msg.Text,
		SenderID:   msg.Author,
		ReceiverID: msg.Receiver,
		Seen:       msg.Seen,
		Date:       msg.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}
