// Package server exposes the git service and the live connection protocol
// over HTTP and websockets.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/thiagokokada/gitrelay/internal/credentials"
	"github.com/thiagokokada/gitrelay/internal/git"
	"github.com/thiagokokada/gitrelay/internal/hub"
	"github.com/thiagokokada/gitrelay/internal/watch"
)

type Options struct {
	Addr            string
	ShutdownTimeout time.Duration
	// NoFFMerge makes merges always create a merge commit.
	NoFFMerge bool
}

type Server struct {
	opts    Options
	git     *git.Service
	hub     *hub.Registry
	watches *watch.Registry
	relay   *credentials.Relay
	mux     *http.ServeMux
}

// New wires the components together. Closing a connection drops its watcher
// and fails its pending credential request.
func New(opts Options, svc *git.Service, h *hub.Registry, watches *watch.Registry, relay *credentials.Relay) *Server {
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 5 * time.Second
	}
	s := &Server{
		opts:    opts,
		git:     svc,
		hub:     h,
		watches: watches,
		relay:   relay,
		mux:     http.NewServeMux(),
	}
	h.OnDisconnect(watches.Unwatch)
	h.OnDisconnect(relay.Drop)
	s.registerRoutes()
	return s
}

func (s *Server) Handler() http.Handler { return s.mux }

// Run listens on Options.Addr and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.opts.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done, then shuts down and closes every
// live connection.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{Handler: s.mux, ReadHeaderTimeout: 10 * time.Second}
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("listening", slog.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
		defer cancel()
		// Hijacked websocket connections are not tracked by Shutdown; closing
		// the hub ends their write loops.
		s.hub.Close()
		s.watches.Close()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
