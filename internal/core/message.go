package core

import (
	"time"

	"github.com/vovakirdan/wirerelay/internal/store"
)

// Message is the domain model for a chat message.
// Receiver is empty for broadcast messages.
type Message struct {
	ID        string
	Text      string
	Author    string
	Receiver  string
	Seen      bool
	CreatedAt time.Time
}

// Directed reports whether the message targets a single identity.
func (m Message) Directed() bool {
	return m.Receiver != ""
}

// SeenAck is the result of acknowledging a message.
// Changed is false when the message was already seen.
type SeenAck struct {
	MessageID string
	Receiver  string
	Changed   bool
}

// SeenFailure records a message id a batch acknowledgement skipped.
type SeenFailure struct {
	MessageID string
	Err       error
}

// BatchResult lists the outcome of MarkSeenBatch in input order.
type BatchResult struct {
	Acks     []SeenAck
	Failures []SeenFailure
}

func (m Message) toStore() *store.Message {
	return &store.Message{
		ID:        m.ID,
		Text:      m.Text,
		Author:    m.Author,
		Receiver:  m.Receiver,
		Seen:      m.Seen,
		CreatedAt: m.CreatedAt,
	}
}

// MessageFromStore converts a persisted message to the domain model.
func MessageFromStore(m *store.Message) Message {
	return Message{
		ID:        m.ID,
		Text:      m.Text,
		Author:    m.Author,
		Receiver:  m.Receiver,
		Seen:      m.Seen,
		CreatedAt: m.CreatedAt,
	}
}
