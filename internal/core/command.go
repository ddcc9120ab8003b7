package core

// CommandKind describes what the client wants to do.
type CommandKind int

const (
	// CommandSetIdentity binds a display identity to the connection.
	CommandSetIdentity CommandKind = iota
	// CommandBroadcast routes a message to every online connection.
	CommandBroadcast
	// CommandDirect routes a message to one identity plus an echo to the sender.
	CommandDirect
	// CommandTyping tells everyone else the sender is typing.
	CommandTyping
	// CommandStopTyping clears the typing indicator.
	CommandStopTyping
	// CommandMarkSeen acknowledges one or more messages.
	CommandMarkSeen
)

func (k CommandKind) String() string {
	switch k {
	case CommandSetIdentity:
		return "setIdentity"
	case CommandBroadcast:
		return "message"
	case CommandDirect:
		return "privateMessage"
	case CommandTyping:
		return "typing"
	case CommandStopTyping:
		return "stopTyping"
	case CommandMarkSeen:
		return "messageSeen"
	default:
		return "unknown"
	}
}

// Command represents an action requested by a client.
type Command struct {
	Kind CommandKind
	// Identity is the name for CommandSetIdentity and CommandTyping.
	Identity string
	Text     string
	Receiver string
	// MessageIDs holds the ids for CommandMarkSeen; Batch is set when the client sent a list.
	MessageIDs []string
	Batch      bool
}
