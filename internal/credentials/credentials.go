// Package credentials relays authentication prompts raised by git child
// processes to the connection that started the command, and the answer back.
package credentials

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/thiagokokada/gitrelay/internal/hub"
)

const RequestEvent = "request-credentials"

var (
	ErrNoConnection     = hub.ErrNoConnection
	ErrRequestPending   = errors.New("credentials request already pending")
	ErrNoPendingRequest = errors.New("no pending credentials request")
	ErrDisconnected     = errors.New("connection closed before credentials were supplied")
)

type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Hub is the part of the connection registry the relay talks to.
type Hub interface {
	Connected(id string) bool
	Emit(id, name string, data any) error
}

type result struct {
	creds Credentials
	err   error
}

// Relay holds at most one outstanding request per connection.
type Relay struct {
	mu      sync.Mutex
	hub     Hub
	pending map[string]chan result
}

func New(h Hub) *Relay {
	return &Relay{hub: h, pending: map[string]chan result{}}
}

// Request asks connID for credentials and blocks until they are supplied,
// the connection goes away or ctx ends.
func (r *Relay) Request(ctx context.Context, connID string) (Credentials, error) {
	if !r.hub.Connected(connID) {
		return Credentials{}, ErrNoConnection
	}
	r.mu.Lock()
	if _, ok := r.pending[connID]; ok {
		r.mu.Unlock()
		return Credentials{}, ErrRequestPending
	}
	ch := make(chan result, 1)
	r.pending[connID] = ch
	r.mu.Unlock()
	defer r.remove(connID, ch)

	// Emit fails if the connection dropped after the check above.
	if err := r.hub.Emit(connID, RequestEvent, nil); err != nil {
		return Credentials{}, err
	}
	slog.Debug("waiting for credentials", slog.String("conn", connID))
	select {
	case res := <-ch:
		return res.creds, res.err
	case <-ctx.Done():
		return Credentials{}, ctx.Err()
	}
}

// Supply answers the pending request of connID.
func (r *Relay) Supply(connID string, creds Credentials) error {
	ch, ok := r.take(connID)
	if !ok {
		return ErrNoPendingRequest
	}
	ch <- result{creds: creds}
	return nil
}

// Drop fails the pending request of connID, if any. It is meant to run when
// the connection closes.
func (r *Relay) Drop(connID string) {
	if ch, ok := r.take(connID); ok {
		ch <- result{err: ErrDisconnected}
	}
}

func (r *Relay) Pending(connID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.pending[connID]
	return ok
}

func (r *Relay) take(connID string) (chan result, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ch, ok := r.pending[connID]
	delete(r.pending, connID)
	return ch, ok
}

func (r *Relay) remove(connID string, ch chan result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pending[connID] == ch {
		delete(r.pending, connID)
	}
}
