package core

import "time"

// OnlineState tells whether a connection is live.
type OnlineState string

const (
	StateOnline  OnlineState = "online"
	StateOffline OnlineState = "offline"
)

// Connection is one transport session as seen by the core layer.
// Identity and state are owned by the Registry and read through it.
type Connection struct {
	ID string

	identity       string
	state          OnlineState
	events         chan *Event
	connectedAt    time.Time
	disconnectedAt time.Time
}

// Events returns the outbound queue the transport drains. It is never closed;
// the transport stops reading when its own session ends.
func (c *Connection) Events() <-chan *Event {
	return c.events
}

// RosterEntry is one connection in a roster snapshot.
type RosterEntry struct {
	Identity string
	Online   bool
}

// Roster maps connection id to its identity and state.
type Roster map[string]RosterEntry

// target is a delivery destination captured under the registry lock.
type target struct {
	id     string
	events chan *Event
}
