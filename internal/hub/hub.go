// Package hub keeps the registry of live client connections. Every
// connection gets an id and a buffered outbox of events; other components
// address connections by id only.
package hub

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

var ErrNoConnection = errors.New("no such connection")

type Event struct {
	Name string `json:"event"`
	Data any    `json:"data,omitempty"`
}

type conn struct {
	id string
	ch chan Event
}

type Registry struct {
	mu         sync.RWMutex
	closed     bool
	bufferSize int
	conns      map[string]conn
	hooks      []func(id string)
}

func New(bufferSize int) *Registry {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	return &Registry{
		bufferSize: bufferSize,
		conns:      make(map[string]conn),
	}
}

// OnDisconnect registers fn to run after a connection is unregistered.
func (r *Registry) OnDisconnect(fn func(id string)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks = append(r.hooks, fn)
}

// Register adds a connection and returns its id and outbox. The outbox is
// closed when the connection is unregistered.
func (r *Registry) Register() (string, <-chan Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := conn{id: uuid.NewString(), ch: make(chan Event, r.bufferSize)}
	if r.closed {
		close(c.ch)
		return c.id, c.ch
	}
	r.conns[c.id] = c
	slog.Debug("connection registered", slog.String("conn", c.id))
	return c.id, c.ch
}

// Unregister removes a connection and runs the disconnect hooks. Unknown ids
// are ignored.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	c, ok := r.conns[id]
	if ok {
		delete(r.conns, id)
		close(c.ch)
	}
	hooks := append([]func(string){}, r.hooks...)
	r.mu.Unlock()
	if !ok {
		return
	}
	slog.Debug("connection unregistered", slog.String("conn", id))
	for _, hook := range hooks {
		hook(id)
	}
}

func (r *Registry) Connected(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.conns[id]
	return ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// Emit queues an event for one connection without blocking. When the outbox
// is full the oldest queued event is dropped.
func (r *Registry) Emit(id, name string, data any) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[id]
	if !ok {
		return ErrNoConnection
	}
	if !tryPublishEvent(c.ch, Event{Name: name, Data: data}) {
		slog.Error("event dropped", slog.String("conn", id), slog.String("event", name))
	}
	return nil
}

// Close unregisters every connection.
func (r *Registry) Close() {
	r.mu.Lock()
	r.closed = true
	ids := make([]string, 0, len(r.conns))
	for id := range r.conns {
		ids = append(ids, id)
	}
	r.mu.Unlock()
	for _, id := range ids {
		r.Unregister(id)
	}
}

func tryPublishEvent(ch chan Event, event Event) bool {
	select {
	case ch <- event:
		return true
	default:
		// Drop one stale event and retry once so a slow client never blocks
		// the sender.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- event:
			return true
		default:
			return false
		}
	}
}
