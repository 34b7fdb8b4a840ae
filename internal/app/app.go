// Package app wires all spellbook subsystems into a running application.
//
// The App struct owns the full lifecycle: New loads the dictionary and
// builds the session pipeline, Run opens the listeners and serves until the
// context ends, and Shutdown waits for sessions and tears everything down in
// order.
//
// For testing, inject listeners and metrics via functional options
// (WithListener, WithMetrics, etc.). When an option is not provided, New and
// Run create real implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/spellbook/internal/config"
	"github.com/MrWong99/spellbook/internal/dictionary"
	"github.com/MrWong99/spellbook/internal/health"
	"github.com/MrWong99/spellbook/internal/mcp"
	"github.com/MrWong99/spellbook/internal/observe"
	"github.com/MrWong99/spellbook/internal/rank"
	"github.com/MrWong99/spellbook/internal/server"
	"github.com/MrWong99/spellbook/internal/session"
	"github.com/MrWong99/spellbook/internal/spell"
)

// httpShutdownTimeout bounds the graceful stop of the HTTP listeners.
const httpShutdownTimeout = 5 * time.Second

// Insert status labels recorded by the dictionary hook.
const (
	insertAdded    = "added"
	insertExists   = "exists"
	insertRejected = "rejected"
	insertFailed   = "failed"
)

// App owns all subsystem lifetimes.
type App struct {
	cfg     *config.Config
	version string

	// Subsystems, initialised in New and torn down in Shutdown.
	metrics  *observe.Metrics
	gatherer prometheus.Gatherer
	store    *dictionary.Store
	ranker   *rank.Ranker
	server   *server.Server
	mcp      *mcp.Server

	// Optional pre-opened listeners.
	tcpLn   net.Listener
	wsLn    net.Listener
	adminLn net.Listener

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New.
type Option func(*App)

// WithMetrics injects the metrics instance instead of [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithGatherer sets the Prometheus gatherer served on /metrics instead of
// [prometheus.DefaultGatherer].
func WithGatherer(g prometheus.Gatherer) Option {
	return func(a *App) { a.gatherer = g }
}

// WithListener serves the line protocol on ln instead of listening on the
// configured address.
func WithListener(ln net.Listener) Option {
	return func(a *App) { a.tcpLn = ln }
}

// WithWebSocketListener serves WebSocket sessions on ln instead of listening
// on the configured address.
func WithWebSocketListener(ln net.Listener) Option {
	return func(a *App) { a.wsLn = ln }
}

// WithAdminListener serves health and metrics on ln instead of listening on
// the configured address.
func WithAdminListener(ln net.Listener) Option {
	return func(a *App) { a.adminLn = ln }
}

// WithVersion sets the version reported to MCP clients.
func WithVersion(v string) Option {
	return func(a *App) { a.version = v }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together. cfg must have been
// validated. A dictionary that cannot be loaded is returned as an error and
// callers should treat it as fatal.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{cfg: cfg, version: "dev"}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}
	if a.gatherer == nil {
		a.gatherer = prometheus.DefaultGatherer
	}

	// ── 1. Dictionary ────────────────────────────────────────────────────
	if err := a.initDictionary(ctx); err != nil {
		a.closeAll()
		return nil, fmt.Errorf("app: init dictionary: %w", err)
	}

	// ── 2. Session pipeline ──────────────────────────────────────────────
	a.ranker = rank.New(cfg.Protocol.Candidates)
	eval := spell.NewEvaluator(a.store, a.ranker, spell.WithMetrics(a.metrics))
	coord := session.New(session.Config{
		Evaluator:       eval,
		MaxInputLength:  cfg.Protocol.MaxInputLength,
		MaxOutputLength: cfg.Protocol.MaxOutputLength,
		Parallelism:     cfg.Protocol.Parallelism,
		Metrics:         a.metrics,
	})
	a.server = server.New(server.Config{
		Coordinator:    coord,
		IdleTimeout:    cfg.Protocol.IdleTimeout,
		OriginPatterns: cfg.Server.AllowedOrigins,
		Metrics:        a.metrics,
	})

	// ── 3. MCP tools ─────────────────────────────────────────────────────
	if cfg.MCP.Enabled {
		a.mcp = mcp.New(a.store, a.ranker,
			mcp.WithMaxInputLength(cfg.Protocol.MaxInputLength),
			mcp.WithVersion(a.version),
		)
	}

	return a, nil
}

// ─── Init helpers ────────────────────────────────────────────────────────────

func (a *App) initDictionary(_ context.Context) error {
	store, err := dictionary.Load(a.cfg.Dictionary.Path,
		dictionary.WithMaxEntries(a.cfg.Dictionary.MaxEntries),
		dictionary.WithMaxWordLength(a.cfg.Dictionary.MaxWordLength),
		dictionary.WithInsertHook(a.recordInsert),
	)
	if err != nil {
		return err
	}
	a.store = store
	a.closers = append(a.closers, store.Close)
	slog.Info("dictionary loaded", "path", a.cfg.Dictionary.Path, "words", store.Len())
	return nil
}

func (a *App) recordInsert(word string, inserted bool, err error) {
	status := insertExists
	switch {
	case inserted:
		status = insertAdded
	case errors.Is(err, dictionary.ErrFull),
		errors.Is(err, dictionary.ErrEmptyWord),
		errors.Is(err, dictionary.ErrWordTooLong):
		status = insertRejected
	case err != nil:
		status = insertFailed
	}
	a.metrics.RecordInsert(context.Background(), status)
	if status == insertFailed {
		slog.Error("dictionary insert failed", "word", word, "err", err)
	}
}

// Dictionary returns the loaded word store.
func (a *App) Dictionary() *dictionary.Store { return a.store }

// AdminHandler returns the handler served on the admin address: /healthz,
// /readyz and /metrics.
func (a *App) AdminHandler() http.Handler {
	mux := http.NewServeMux()
	health.New(
		health.DictionaryCheck(a.store),
		health.ListenerCheck("listener", a.server.Accepting),
	).Register(mux)
	mux.Handle("GET /metrics", promhttp.HandlerFor(a.gatherer, promhttp.HandlerOpts{}))
	return observe.Middleware(a.metrics)(mux)
}

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run opens the configured listeners and serves until ctx is cancelled or a
// listener fails. It does not wait for running sessions; call Shutdown for
// that.
func (a *App) Run(ctx context.Context) error {
	if err := a.listen(); err != nil {
		return err
	}

	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		return a.server.ServeTCP(egCtx, a.tcpLn)
	})

	if a.wsLn != nil {
		mux := http.NewServeMux()
		mux.Handle("/ws", a.server.WebSocketHandler(egCtx))
		serveHTTP(egCtx, eg, "websocket", &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}, a.wsLn)
	}

	if a.adminLn != nil {
		serveHTTP(egCtx, eg, "admin", &http.Server{Handler: a.AdminHandler(), ReadHeaderTimeout: 10 * time.Second}, a.adminLn)
	}

	if a.mcp != nil {
		eg.Go(func() error {
			// The stdio client going away does not stop the line servers.
			if err := a.mcp.Run(egCtx); err != nil {
				slog.Warn("mcp server stopped", "err", err)
			}
			return nil
		})
	}

	slog.Info("app running")
	if err := eg.Wait(); err != nil {
		return fmt.Errorf("app: %w", err)
	}
	return ctx.Err()
}

// listen opens every configured listener that was not injected.
func (a *App) listen() error {
	var err error
	if a.tcpLn == nil {
		if a.tcpLn, err = net.Listen("tcp", a.cfg.Server.ListenAddr); err != nil {
			return fmt.Errorf("app: listen: %w", err)
		}
	}
	if a.wsLn == nil && a.cfg.Server.WebSocketAddr != "" {
		if a.wsLn, err = net.Listen("tcp", a.cfg.Server.WebSocketAddr); err != nil {
			return fmt.Errorf("app: listen websocket: %w", err)
		}
	}
	if a.adminLn == nil && a.cfg.Server.AdminEnabled() {
		if a.adminLn, err = net.Listen("tcp", a.cfg.Server.AdminAddr); err != nil {
			return fmt.Errorf("app: listen admin: %w", err)
		}
	}
	return nil
}

// serveHTTP runs srv on ln inside eg and stops it gracefully when ctx ends.
func serveHTTP(ctx context.Context, eg *errgroup.Group, name string, srv *http.Server, ln net.Listener) {
	eg.Go(func() error {
		slog.Info("http listener started", "name", name, "addr", ln.Addr().String())
		if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("%s listener: %w", name, err)
		}
		return nil
	})
	eg.Go(func() error {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), httpShutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown waits for running sessions, then tears down all subsystems in
// order. It respects the context deadline: if ctx expires before sessions
// finish, the closers still run and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		if err := a.server.Shutdown(ctx); err != nil {
			slog.Warn("sessions still running at shutdown deadline", "err", err)
			shutdownErr = err
		}
		a.closeAll()

		slog.Info("shutdown complete")
	})
	return shutdownErr
}

func (a *App) closeAll() {
	for i, closer := range a.closers {
		if err := closer(); err != nil {
			slog.Warn("closer error", "index", i, "err", err)
		}
	}
	a.closers = nil
}
