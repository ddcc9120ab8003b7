package core

// EventKind is a notification the core emits to clients.
type EventKind int

const (
	// EventUserCount carries the number of online connections.
	EventUserCount EventKind = iota
	// EventRoster carries a roster snapshot.
	EventRoster
	// EventMessage delivers a broadcast message.
	EventMessage
	// EventPrivateMessage delivers a directed message.
	EventPrivateMessage
	// EventTyping notifies that User is typing.
	EventTyping
	// EventStopTyping clears a typing indicator.
	EventStopTyping
	// EventMessageSeen notifies that a message was seen.
	EventMessageSeen
	// EventError notifies the originating connection about a failed operation.
	EventError
)

// Event is sent to clients to describe what happened in the system.
// Events are shared between recipients and must not be modified after delivery.
type Event struct {
	Kind    EventKind
	Count   int
	Roster  Roster
	Message Message
	User    string
	Ack     SeenAck
	Error   *CoreError
}
