// Package server accepts client connections and hands each one to a
// [session.Coordinator] on its own goroutine.
//
// Two transports carry the same line protocol: raw TCP ([Server.ServeTCP])
// and WebSocket ([Server.WebSocketHandler]), where every text message is one
// line. Both share the session accounting, so [Server.Shutdown] waits for
// sessions of either kind.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"

	"github.com/MrWong99/spellbook/internal/observe"
	"github.com/MrWong99/spellbook/internal/protocol"
	"github.com/MrWong99/spellbook/internal/session"
)

// Accept backoff bounds, matching net/http.
const (
	minAcceptBackoff = 5 * time.Millisecond
	maxAcceptBackoff = time.Second
)

// lineSlack is read past the input limit so that moderately long lines are
// measured by validation rather than cut off by the transport.
const lineSlack = 64

// Transport labels used in logs and metrics.
const (
	TransportTCP       = "tcp"
	TransportWebSocket = "websocket"
)

// Config configures a [Server].
type Config struct {
	// Coordinator runs each session. Required.
	Coordinator *session.Coordinator

	// IdleTimeout bounds each read from a client. Zero waits forever.
	IdleTimeout time.Duration

	// OriginPatterns lists the hosts allowed to open WebSocket sessions
	// from a browser. Empty allows only same-origin requests.
	OriginPatterns []string

	// Metrics receives session and accept counters. Defaults to
	// [observe.DefaultMetrics].
	Metrics *observe.Metrics
}

// Server serves the line protocol. All methods are safe for concurrent use.
type Server struct {
	coord   *session.Coordinator
	idle    time.Duration
	origins []string
	metrics *observe.Metrics

	// mu orders session registration against Shutdown so that wg.Add
	// never races a wg.Wait on a zero counter.
	mu      sync.Mutex
	closing bool
	wg      sync.WaitGroup

	accepting atomic.Bool
}

// track registers a new session. It reports false once Shutdown has begun.
func (s *Server) track() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return false
	}
	s.wg.Add(1)
	return true
}

// New returns a Server for cfg.
func New(cfg Config) *Server {
	s := &Server{
		coord:   cfg.Coordinator,
		idle:    cfg.IdleTimeout,
		origins: cfg.OriginPatterns,
		metrics: cfg.Metrics,
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	return s
}

// Accepting reports whether a TCP accept loop is running.
func (s *Server) Accepting() bool { return s.accepting.Load() }

// ServeTCP accepts connections on ln until ctx is cancelled or ln is closed.
// Each connection runs one session on its own goroutine. Transient accept
// errors are logged and retried with exponential backoff. ServeTCP returns
// nil after a cancellation and does not wait for running sessions; use
// [Server.Shutdown] for that.
func (s *Server) ServeTCP(ctx context.Context, ln net.Listener) error {
	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()

	s.accepting.Store(true)
	defer s.accepting.Store(false)

	slog.Info("accepting connections", "transport", TransportTCP, "addr", ln.Addr().String())

	var backoff time.Duration
	for {
		nc, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return fmt.Errorf("server: listener closed: %w", err)
			}
			if backoff == 0 {
				backoff = minAcceptBackoff
			} else {
				backoff = min(backoff*2, maxAcceptBackoff)
			}
			s.metrics.AcceptErrors.Add(ctx, 1)
			slog.Warn("accept failed, retrying", "err", err, "backoff", backoff)
			select {
			case <-time.After(backoff):
				continue
			case <-ctx.Done():
				return nil
			}
		}
		backoff = 0

		if !s.track() {
			_ = nc.Close()
			continue
		}
		maxLine := s.coord.MaxInputLength() + lineSlack
		conn := protocol.NewStreamConn(nc, maxLine, protocol.WithIdleTimeout(s.idle))
		go func() {
			defer s.wg.Done()
			s.serve(ctx, TransportTCP, conn)
		}()
	}
}

// WebSocketHandler returns an [http.Handler] that upgrades each request and
// runs one session over it. Sessions end when ctx is cancelled.
func (s *Server) WebSocketHandler(ctx context.Context) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.track() {
			http.Error(w, "server shutting down", http.StatusServiceUnavailable)
			return
		}
		defer s.wg.Done()

		ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: s.origins,
		})
		if err != nil {
			// Accept has already written the HTTP error response.
			slog.Debug("websocket upgrade failed", "remote", r.RemoteAddr, "err", err)
			return
		}

		sctx, cancel := context.WithCancel(ctx)
		defer cancel()
		stop := context.AfterFunc(r.Context(), cancel)
		defer stop()

		maxLine := s.coord.MaxInputLength() + lineSlack
		conn := protocol.NewMessageConn(ws, r.RemoteAddr, maxLine, s.idle)
		s.serve(sctx, TransportWebSocket, conn)
	})
}

// serve runs one session and records its lifecycle.
func (s *Server) serve(ctx context.Context, transport string, conn protocol.Conn) {
	// Unblock pending reads when the server shuts down.
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	start := time.Now()
	s.metrics.RecordSessionStart(ctx, transport)
	defer func() {
		s.metrics.RecordSessionEnd(context.WithoutCancel(ctx), time.Since(start).Seconds())
	}()

	tr, err := s.coord.Run(ctx, conn)
	if err != nil && ctx.Err() == nil {
		slog.Warn("session ended with transport error",
			"transport", transport,
			"remote", tr.Remote,
			"stopped", tr.Stopped.String(),
			"err", err,
		)
	}
}

// Shutdown waits for all running sessions to finish or for ctx to expire.
// Sessions arriving after Shutdown has begun are refused. Callers cancel the
// serving context first so that sessions unblock.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closing = true
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("server: shutdown: %w", ctx.Err())
	}
}
