package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirerelay/internal/metrics"
	"github.com/vovakirdan/wirerelay/internal/store"
)

// MaxIdentityLen is the longest accepted identity, in runes.
const MaxIdentityLen = 32

// SeenScope selects who is told that a directed message was seen.
type SeenScope int

const (
	// SeenScopeParties notifies the receiver's and the author's connections.
	SeenScopeParties SeenScope = iota
	// SeenScopeGlobal notifies every online connection.
	SeenScopeGlobal
)

// MessageStore is the persistence the hub needs for routing and acknowledgements.
type MessageStore interface {
	CreateMessage(ctx context.Context, msg *store.Message) error
	FindMessageByID(ctx context.Context, id string) (*store.Message, error)
	SaveMessage(ctx context.Context, msg *store.Message) error
}

// Options tunes hub behaviour.
type Options struct {
	SeenScope SeenScope
	// PersistTimeout bounds each store call; zero means no bound beyond the caller's context.
	PersistTimeout time.Duration
	// SweepInterval is how often Run prunes expired offline records; zero disables sweeping.
	SweepInterval time.Duration
}

// Hub routes messages and presence events between connections.
type Hub struct {
	registry *Registry
	store    MessageStore
	log      *zerolog.Logger
	metrics  *metrics.Metrics
	opts     Options
	now      func() time.Time
}

// NewHub creates a hub over the given registry and store.
// A nil logger discards output; nil metrics record nothing.
func NewHub(registry *Registry, st MessageStore, logger *zerolog.Logger, m *metrics.Metrics, opts Options) *Hub {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Hub{
		registry: registry,
		store:    st,
		log:      logger,
		metrics:  m,
		opts:     opts,
		now:      time.Now,
	}
}

// Run sweeps expired offline records until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	if h.opts.SweepInterval <= 0 {
		<-ctx.Done()
		return
	}

	ticker := time.NewTicker(h.opts.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := h.registry.PruneExpired(); n > 0 {
				h.log.Debug().Int("pruned", n).Msg("pruned offline connections")
				h.updatePresenceMetrics()
				h.publishRoster()
			}
		}
	}
}

// Connect registers a new connection and announces the new online count.
func (h *Hub) Connect() *Connection {
	conn := h.registry.Connect()
	h.log.Info().Str("connection_id", conn.ID).Msg("connection opened")

	h.updatePresenceMetrics()
	h.publishCount()
	return conn
}

// Disconnect marks the connection offline and announces the roster and count.
func (h *Hub) Disconnect(id string) {
	if !h.registry.Disconnect(id) {
		return
	}
	h.log.Info().Str("connection_id", id).Msg("connection closed")

	h.updatePresenceMetrics()
	h.publishRoster()
	h.publishCount()
}

// SetIdentity binds identity to the connection and announces the roster.
func (h *Hub) SetIdentity(id, identity string) error {
	identity, err := normalizeIdentity(identity)
	if err != nil {
		return err
	}

	if err := h.registry.SetIdentity(id, identity); err != nil {
		return err
	}
	h.log.Debug().Str("connection_id", id).Str("identity", identity).Msg("identity set")

	h.updatePresenceMetrics()
	h.publishRoster()
	return nil
}

// Roster returns the current roster snapshot.
func (h *Hub) Roster() Roster {
	return h.registry.Snapshot()
}

// OnlineCount returns the number of online connections.
func (h *Hub) OnlineCount() int {
	online, _ := h.registry.Counts()
	return online
}

// Typing tells every other online connection that the sender is typing.
// An empty identity falls back to the sender's bound identity.
func (h *Hub) Typing(senderID, identity string) error {
	bound, ok := h.registry.Identity(senderID)
	if !ok {
		return fmt.Errorf("typing from %s: %w", senderID, ErrConnectionGone)
	}
	identity = strings.TrimSpace(identity)
	if identity == "" {
		identity = bound
	}
	if identity == "" {
		return fmt.Errorf("typing: %w: identity not set", ErrValidation)
	}

	h.deliver(h.registry.targetsAll(senderID), &Event{Kind: EventTyping, User: identity})
	return nil
}

// StopTyping clears the sender's typing indicator on every other online connection.
func (h *Hub) StopTyping(senderID string) error {
	identity, ok := h.registry.Identity(senderID)
	if !ok {
		return fmt.Errorf("stop typing from %s: %w", senderID, ErrConnectionGone)
	}

	h.deliver(h.registry.targetsAll(senderID), &Event{Kind: EventStopTyping, User: identity})
	return nil
}

// Dispatch executes a client command and reports failures to the originating connection only.
func (h *Hub) Dispatch(ctx context.Context, connID string, cmd *Command) {
	var err error
	switch cmd.Kind {
	case CommandSetIdentity:
		err = h.SetIdentity(connID, cmd.Identity)
	case CommandBroadcast:
		_, err = h.Route(ctx, connID, cmd.Text, "")
	case CommandDirect:
		if strings.TrimSpace(cmd.Receiver) == "" {
			err = fmt.Errorf("private message: %w: receiver is required", ErrValidation)
			break
		}
		_, err = h.Route(ctx, connID, cmd.Text, cmd.Receiver)
	case CommandTyping:
		err = h.Typing(connID, cmd.Identity)
	case CommandStopTyping:
		err = h.StopTyping(connID)
	case CommandMarkSeen:
		err = h.dispatchSeen(ctx, cmd)
	default:
		err = fmt.Errorf("command %d: %w: unknown kind", cmd.Kind, ErrValidation)
	}

	if err != nil {
		h.reportError(connID, cmd.Kind, err)
	}
}

func (h *Hub) dispatchSeen(ctx context.Context, cmd *Command) error {
	if !cmd.Batch {
		if len(cmd.MessageIDs) != 1 {
			return fmt.Errorf("message seen: %w: expected one id", ErrValidation)
		}
		_, err := h.MarkSeen(ctx, cmd.MessageIDs[0])
		return err
	}

	result := h.MarkSeenBatch(ctx, cmd.MessageIDs)
	for _, failure := range result.Failures {
		if errors.Is(failure.Err, ErrPersistence) {
			return failure.Err
		}
	}
	return nil
}

func (h *Hub) reportError(connID string, kind CommandKind, err error) {
	level := zerolog.DebugLevel
	switch {
	case errors.Is(err, ErrConnectionGone):
		// The connection raced with its own disconnect; nobody to tell.
		h.log.Warn().Err(err).Str("connection_id", connID).Stringer("command", kind).Msg("command for gone connection")
		return
	case errors.Is(err, ErrNotFound) && kind == CommandMarkSeen:
		h.log.Debug().Err(err).Str("connection_id", connID).Msg("seen for unknown message ignored")
		return
	case errors.Is(err, ErrPersistence):
		level = zerolog.ErrorLevel
	}
	h.log.WithLevel(level).Err(err).Str("connection_id", connID).Stringer("command", kind).Msg("command failed")

	h.sendTo(connID, &Event{Kind: EventError, Error: coreError(ErrorCode(err), err.Error())})
}

// publishRoster sends the roster snapshot to every online connection.
func (h *Hub) publishRoster() {
	h.deliver(h.registry.targetsAll(""), &Event{Kind: EventRoster, Roster: h.registry.Snapshot()})
}

// publishCount sends the online count to every online connection.
func (h *Hub) publishCount() {
	h.deliver(h.registry.targetsAll(""), &Event{Kind: EventUserCount, Count: h.OnlineCount()})
}

func (h *Hub) sendTo(connID string, event *Event) {
	h.deliver(h.registry.targetsFor(nil, connID), event)
}

// deliver queues event on each target without blocking; a full queue drops the event.
func (h *Hub) deliver(targets []target, event *Event) {
	delivered, dropped := 0, 0
	for _, t := range targets {
		select {
		case t.events <- event:
			delivered++
		default:
			dropped++
			h.log.Debug().Str("connection_id", t.id).Int("event", int(event.Kind)).Msg("send queue full, event dropped")
		}
	}
	h.metrics.Delivered(delivered)
	h.metrics.Dropped(dropped)
}

func (h *Hub) updatePresenceMetrics() {
	h.metrics.SetPresence(h.registry.Counts())
}

// persistContext detaches store calls from the connection so a disconnect does not abort them.
func (h *Hub) persistContext(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx = context.WithoutCancel(ctx)
	if h.opts.PersistTimeout > 0 {
		return context.WithTimeout(ctx, h.opts.PersistTimeout)
	}
	return context.WithCancel(ctx)
}

func normalizeIdentity(identity string) (string, error) {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return "", fmt.Errorf("identity: %w: empty", ErrValidation)
	}
	if utf8.RuneCountInString(identity) > MaxIdentityLen {
		return "", fmt.Errorf("identity: %w: longer than %d characters", ErrValidation, MaxIdentityLen)
	}
	return identity, nil
}
