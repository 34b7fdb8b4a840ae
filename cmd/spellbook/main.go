// Command spellbook is the main entry point for the spellbook spell-check
// server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MrWong99/spellbook/internal/app"
	"github.com/MrWong99/spellbook/internal/config"
	"github.com/MrWong99/spellbook/internal/observe"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "", "path to the YAML configuration file (optional; defaults and SPELLBOOK_* variables apply)")
	mcpMode := flag.Bool("mcp", false, "also serve the spell tools over MCP on stdin/stdout")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "spellbook: config file %q not found, copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "spellbook: %v\n", err)
		}
		return 1
	}
	if *mcpMode {
		cfg.MCP.Enabled = true
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	var level slog.LevelVar
	level.Set(slogLevel(cfg.Server.LogLevel))
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: &level})))

	slog.Info("spellbook starting",
		"version", version,
		"config", *configPath,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	telemetry, err := observe.Setup(version)
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := telemetry.Shutdown(sctx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Application ───────────────────────────────────────────────────────────
	application, err := app.New(ctx, cfg, app.WithVersion(version))
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	// ── Config hot reload ─────────────────────────────────────────────────────
	if *configPath != "" {
		r, err := config.NewReloader(*configPath, cfg, func(d config.ConfigDiff) {
			applyConfigChange(&level, d)
		})
		if err != nil {
			slog.Warn("config reload disabled", "err", err)
		} else {
			go r.Run(ctx)
			go reloadOnHangup(ctx, r)
		}
	}

	logStartupSummary(cfg, application.Dictionary().Len())

	slog.Info("server ready, press Ctrl+C to shut down")

	runErr := application.Run(ctx)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		slog.Error("run error", "err", runErr)
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("stopping, waiting for running sessions")

	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Config reload ─────────────────────────────────────────────────────────────

func applyConfigChange(level *slog.LevelVar, d config.ConfigDiff) {
	if d.LogLevelChanged {
		level.Set(slogLevel(d.NewLogLevel))
		slog.Info("log level changed", "level", d.NewLogLevel)
	}
	if len(d.RestartRequired) > 0 {
		slog.Warn("config changed, restart required to apply", "fields", d.RestartRequired)
	}
}

// reloadOnHangup re-reads the config file on every SIGHUP until ctx ends.
func reloadOnHangup(ctx context.Context, r *config.Reloader) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			if _, err := r.Reload(); err != nil {
				slog.Warn("config reload on SIGHUP failed", "err", err)
			}
		}
	}
}

// ── Startup summary ───────────────────────────────────────────────────────────

func logStartupSummary(cfg *config.Config, words int) {
	admin := cfg.Server.AdminAddr
	if !cfg.Server.AdminEnabled() {
		admin = "(disabled)"
	}
	ws := cfg.Server.WebSocketAddr
	if ws == "" {
		ws = "(disabled)"
	}
	slog.Info("startup summary",
		"listen_addr", cfg.Server.ListenAddr,
		"websocket_addr", ws,
		"admin_addr", admin,
		"dictionary", cfg.Dictionary.Path,
		"words", words,
		"max_entries", cfg.Dictionary.MaxEntries,
		"max_input_length", cfg.Protocol.MaxInputLength,
		"max_output_length", cfg.Protocol.MaxOutputLength,
		"candidates", cfg.Protocol.Candidates,
		"idle_timeout", cfg.Protocol.IdleTimeout,
		"mcp", cfg.MCP.Enabled,
	)
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
