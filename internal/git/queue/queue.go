// Package queue serializes work per repository path.
//
// Units of work submitted under the same key run one at a time in arrival
// order. Different keys never block each other.
package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// ErrTimeout is returned when a unit of work gave up while still waiting for
// its turn.
var ErrTimeout = errors.New("timed out waiting for repository queue")

type entry struct {
	ready chan struct{}
}

type Serializer struct {
	mu     sync.Mutex
	queues map[string][]*entry
}

func New() *Serializer {
	return &Serializer{queues: map[string][]*entry{}}
}

// Do runs fn once every earlier unit for key has completed. If ctx ends while
// the unit is still waiting it is removed from the queue and Do returns an
// error wrapping ErrTimeout. A unit that has started is never interrupted.
func (s *Serializer) Do(ctx context.Context, key string, fn func() error) error {
	if key == "" {
		return errors.New("queue: empty key")
	}
	e := s.enqueue(key)
	select {
	case <-e.ready:
	case <-ctx.Done():
		if s.abandon(key, e) {
			slog.Debug("queue wait abandoned", slog.String("key", key))
			return fmt.Errorf("%w: %w", ErrTimeout, ctx.Err())
		}
		// The entry was granted concurrently with the deadline; it owns
		// the slot and must run.
		<-e.ready
	}
	defer s.release(key, e)
	return fn()
}

// Len reports queued plus running units for key.
func (s *Serializer) Len(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queues[key])
}

// Keys reports how many keys currently have work.
func (s *Serializer) Keys() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queues)
}

func (s *Serializer) enqueue(key string) *entry {
	e := &entry{ready: make(chan struct{})}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queues[key] = append(s.queues[key], e)
	if len(s.queues[key]) == 1 {
		close(e.ready)
	}
	return e
}

// abandon removes a waiting entry. It reports false when the entry is at the
// head of the queue, i.e. it already owns the slot.
func (s *Serializer) abandon(key string, e *entry) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	q := s.queues[key]
	for i, cur := range q {
		if cur != e {
			continue
		}
		if i == 0 {
			return false
		}
		s.queues[key] = append(q[:i:i], q[i+1:]...)
		return true
	}
	return true
}

func (s *Serializer) release(key string, e *entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q := s.queues[key]
	if len(q) == 0 || q[0] != e {
		slog.Error("queue release out of order", slog.String("key", key))
		return
	}
	q = q[1:]
	if len(q) == 0 {
		delete(s.queues, key)
		return
	}
	s.queues[key] = q
	close(q[0].ready)
}
