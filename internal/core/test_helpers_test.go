package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/vovakirdan/wirerelay/internal/store"
)

func mustEvent(t *testing.T, ch <-chan *Event, kind EventKind) *Event {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev == nil {
				continue
			}
			if ev.Kind == kind {
				return ev
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	t.Fatalf("expected event kind %v not received", kind)
	return nil
}

// countEvents drains everything queued on ch and counts events of kind.
func countEvents(ch <-chan *Event, kind EventKind) int {
	n := 0
	for {
		select {
		case ev := <-ch:
			if ev != nil && ev.Kind == kind {
				n++
			}
		default:
			return n
		}
	}
}

// drain discards everything queued on ch.
func drain(ch <-chan *Event) {
	for {
		select {
		case <-ch:
		default:
			return
		}
	}
}

// memStore is an in-memory MessageStore with failure injection.
type memStore struct {
	mu         sync.Mutex
	messages   map[string]*store.Message
	failCreate error
	failSave   error
	saves      int
}

func newMemStore() *memStore {
	return &memStore{messages: make(map[string]*store.Message)}
}

func (s *memStore) CreateMessage(_ context.Context, msg *store.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failCreate != nil {
		return s.failCreate
	}
	if _, dup := s.messages[msg.ID]; dup {
		return fmt.Errorf("message %s: %w", msg.ID, store.ErrDuplicate)
	}
	cp := *msg
	s.messages[msg.ID] = &cp
	return nil
}

func (s *memStore) FindMessageByID(_ context.Context, id string) (*store.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, ok := s.messages[id]
	if !ok {
		return nil, fmt.Errorf("message %s: %w", id, store.ErrNotFound)
	}
	cp := *msg
	return &cp, nil
}

func (s *memStore) SaveMessage(_ context.Context, msg *store.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failSave != nil {
		return s.failSave
	}
	if _, ok := s.messages[msg.ID]; !ok {
		return fmt.Errorf("message %s: %w", msg.ID, store.ErrNotFound)
	}
	cp := *msg
	s.messages[msg.ID] = &cp
	s.saves++
	return nil
}

func (s *memStore) get(id string) (*store.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, ok := s.messages[id]
	return msg, ok
}

func (s *memStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.messages)
}

var errStoreDown = errors.New("store down")

func newTestHub(st MessageStore, opts Options) *Hub {
	return NewHub(NewRegistry(64, RetentionPolicy{}), st, nil, nil, opts)
}

// connectAs opens a connection, binds identity and drains the presence noise.
func connectAs(t *testing.T, hub *Hub, identity string) *Connection {
	t.Helper()

	conn := hub.Connect()
	if identity != "" {
		if err := hub.SetIdentity(conn.ID, identity); err != nil {
			t.Fatalf("set identity %s: %v", identity, err)
		}
	}
	return conn
}

func drainAll(conns ...*Connection) {
	for _, c := range conns {
		drain(c.Events())
	}
}
