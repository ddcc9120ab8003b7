package proto

import (
	"bytes"
	"encoding/json"
	"errors"
	"time"
)

// Inbound is the envelope for messages coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	InboundTypeSetIdentity    = "setIdentity"
	InboundTypeMessage        = "message"
	InboundTypePrivateMessage = "privateMessage"
	InboundTypeTyping         = "typing"
	InboundTypeStopTyping     = "stopTyping"
	InboundTypeMessageSeen    = "messageSeen"

	OutboundTypeEvent = "event"
	OutboundTypeError = "error"

	EventUserCount      = "userCount"
	EventUpdateUserList = "updateUserList"
	EventMessage        = "message"
	EventPrivateMessage = "privateMessage"
	EventTyping         = "typing"
	EventStopTyping     = "stopTyping"
	EventMessageSeen    = "messageSeen"
)

var errEmptyPayload = errors.New("empty payload")

// SetIdentityData binds a display name, optionally proven by a token.
// Clients may send it as a bare string or as an object.
type SetIdentityData struct {
	Name  string `json:"name"`
	Token string `json:"token,omitempty"`
}

func (d *SetIdentityData) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return errEmptyPayload
	}
	if b[0] == '"' {
		*d = SetIdentityData{}
		return json.Unmarshal(b, &d.Name)
	}
	type plain SetIdentityData
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*d = SetIdentityData(p)
	return nil
}

// MessageData is a broadcast chat message. SenderID and Date are accepted
// for compatibility but the server uses the bound identity and its own clock.
type MessageData struct {
	Text     string `json:"text"`
	SenderID string `json:"senderId,omitempty"`
	Date     string `json:"date,omitempty"`
}

// PrivateMessageData is a chat message for a single identity.
type PrivateMessageData struct {
	MessageData
	ReceiverID string `json:"receiverId"`
}

// TypingData names who is typing.
type TypingData struct {
	Name string `json:"name"`
}

// SeenData lists acknowledged message ids. A bare string is a single ack,
// an array is a batch.
type SeenData struct {
	IDs   []string
	Batch bool
}

func (d *SeenData) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return errEmptyPayload
	}
	if b[0] == '[' {
		var ids []string
		if err := json.Unmarshal(b, &ids); err != nil {
			return err
		}
		*d = SeenData{IDs: ids, Batch: true}
		return nil
	}
	var id string
	if err := json.Unmarshal(b, &id); err != nil {
		return err
	}
	*d = SeenData{IDs: []string{id}}
	return nil
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// EventMessageData is a persisted chat message as clients see it.
type EventMessageData struct {
	ID         string    `json:"id"`
	Text       string    `json:"text"`
	SenderID   string    `json:"senderId"`
	ReceiverID string    `json:"receiverId,omitempty"`
	Seen       bool      `json:"seen"`
	Date       time.Time `json:"date"`
}

// RosterEntry is one connection in the updateUserList payload.
type RosterEntry struct {
	Identity string `json:"identity"`
	Online   bool   `json:"online"`
}

// EventTypingData names the typing user.
type EventTypingData struct {
	Name string `json:"name"`
}

// EventSeenData tells that a message was seen.
type EventSeenData struct {
	MessageID  string `json:"messageId"`
	ReceiverID string `json:"receiverId,omitempty"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}
