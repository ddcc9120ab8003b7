package core

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/vovakirdan/wirerelay/internal/utils"
)

// RetentionPolicy bounds how many offline connection records the registry keeps.
// Zero values disable the corresponding rule.
type RetentionPolicy struct {
	// MaxOffline evicts the oldest offline records beyond this count.
	MaxOffline int
	// OfflineTTL evicts offline records older than this on PruneExpired.
	OfflineTTL time.Duration
	// PruneOnRebind evicts offline records whose identity is bound by another connection.
	PruneOnRebind bool
}

// Registry tracks connections, their identities and the identity index.
// One lock guards all of it.
type Registry struct {
	mu         sync.RWMutex
	conns      map[string]*Connection
	byIdentity map[string]map[string]struct{} // online connections only
	offline    int
	policy     RetentionPolicy
	sendBuffer int
	now        func() time.Time
}

// NewRegistry creates an empty registry whose connections buffer sendBuffer outbound events.
func NewRegistry(sendBuffer int, policy RetentionPolicy) *Registry {
	if sendBuffer <= 0 {
		sendBuffer = 64
	}
	return &Registry{
		conns:      make(map[string]*Connection),
		byIdentity: make(map[string]map[string]struct{}),
		policy:     policy,
		sendBuffer: sendBuffer,
		now:        time.Now,
	}
}

// Connect registers a new online connection under a fresh id.
func (r *Registry) Connect() *Connection {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := utils.NewID()
	for _, taken := r.conns[id]; taken; _, taken = r.conns[id] {
		id = utils.NewID()
	}

	conn := &Connection{
		ID:          id,
		state:       StateOnline,
		events:      make(chan *Event, r.sendBuffer),
		connectedAt: r.now(),
	}
	r.conns[id] = conn
	return conn
}

// Disconnect marks the connection offline and keeps its identity for later lookups.
// It reports false when the connection is unknown or already offline.
func (r *Registry) Disconnect(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.conns[id]
	if !ok || conn.state == StateOffline {
		return false
	}

	r.unindex(conn)
	conn.state = StateOffline
	conn.disconnectedAt = r.now()
	r.offline++

	r.enforceMaxOffline()
	return true
}

// SetIdentity binds identity to an online connection, replacing any earlier binding.
func (r *Registry) SetIdentity(id, identity string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.conns[id]
	if !ok || conn.state == StateOffline {
		return fmt.Errorf("set identity on %s: %w", id, ErrConnectionGone)
	}

	r.unindex(conn)
	conn.identity = identity
	r.index(conn)

	if r.policy.PruneOnRebind {
		for otherID, other := range r.conns {
			if other.state == StateOffline && other.identity == identity {
				r.evict(otherID)
			}
		}
	}
	return nil
}

// Snapshot returns a copy of the roster reflecting the latest committed state.
func (r *Registry) Snapshot() Roster {
	r.mu.RLock()
	defer r.mu.RUnlock()

	roster := make(Roster, len(r.conns))
	for id, conn := range r.conns {
		roster[id] = RosterEntry{Identity: conn.identity, Online: conn.state == StateOnline}
	}
	return roster
}

// Resolve returns the ids of online connections bound to identity, sorted.
func (r *Registry) Resolve(identity string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.byIdentity[identity]
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Identity returns the identity bound to an online connection.
// ok is false when the connection is unknown or offline.
func (r *Registry) Identity(id string) (identity string, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, found := r.conns[id]
	if !found || conn.state == StateOffline {
		return "", false
	}
	return conn.identity, true
}

// DisplayName returns the identity last bound to a connection, online or retained offline.
func (r *Registry) DisplayName(id string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, ok := r.conns[id]
	if !ok || conn.identity == "" {
		return "", false
	}
	return conn.identity, true
}

// Counts returns the number of online and retained offline connections.
func (r *Registry) Counts() (online, offline int) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.conns) - r.offline, r.offline
}

// PruneExpired evicts offline records older than the policy TTL and returns how many went.
func (r *Registry) PruneExpired() int {
	if r.policy.OfflineTTL <= 0 {
		return 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-r.policy.OfflineTTL)
	pruned := 0
	for id, conn := range r.conns {
		if conn.state == StateOffline && !conn.disconnectedAt.After(cutoff) {
			r.evict(id)
			pruned++
		}
	}
	return pruned
}

// targetsAll returns every online connection except exclude.
func (r *Registry) targetsAll(exclude string) []target {
	r.mu.RLock()
	defer r.mu.RUnlock()

	targets := make([]target, 0, len(r.conns)-r.offline)
	for id, conn := range r.conns {
		if conn.state == StateOnline && id != exclude {
			targets = append(targets, target{id: id, events: conn.events})
		}
	}
	return targets
}

// targetsFor returns the online connections bound to any of identities plus the listed
// connection ids, each at most once.
func (r *Registry) targetsFor(identities []string, ids ...string) []target {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]struct{})
	var targets []target
	add := func(id string) {
		if _, dup := seen[id]; dup {
			return
		}
		conn, ok := r.conns[id]
		if !ok || conn.state != StateOnline {
			return
		}
		seen[id] = struct{}{}
		targets = append(targets, target{id: id, events: conn.events})
	}

	for _, identity := range identities {
		for id := range r.byIdentity[identity] {
			add(id)
		}
	}
	for _, id := range ids {
		add(id)
	}
	return targets
}

func (r *Registry) index(conn *Connection) {
	if conn.identity == "" {
		return
	}
	set, ok := r.byIdentity[conn.identity]
	if !ok {
		set = make(map[string]struct{})
		r.byIdentity[conn.identity] = set
	}
	set[conn.ID] = struct{}{}
}

func (r *Registry) unindex(conn *Connection) {
	set, ok := r.byIdentity[conn.identity]
	if !ok {
		return
	}
	delete(set, conn.ID)
	if len(set) == 0 {
		delete(r.byIdentity, conn.identity)
	}
}

// evict drops an offline record. Caller holds the write lock.
func (r *Registry) evict(id string) {
	conn, ok := r.conns[id]
	if !ok || conn.state != StateOffline {
		return
	}
	delete(r.conns, id)
	r.offline--
}

// enforceMaxOffline evicts the oldest offline records over the bound. Caller holds the write lock.
func (r *Registry) enforceMaxOffline() {
	if r.policy.MaxOffline <= 0 {
		return
	}
	for r.offline > r.policy.MaxOffline {
		var oldestID string
		var oldest time.Time
		for id, conn := range r.conns {
			if conn.state != StateOffline {
				continue
			}
			if oldestID == "" || conn.disconnectedAt.Before(oldest) {
				oldestID, oldest = id, conn.disconnectedAt
			}
		}
		if oldestID == "" {
			return
		}
		r.evict(oldestID)
	}
}
