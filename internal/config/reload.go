package config

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

// DefaultReloadInterval is how often a [Reloader] polls its file.
const DefaultReloadInterval = 5 * time.Second

// Reloader re-reads a config file and reports how each valid edit differs
// from the running process. Only the log level is applied live, so the
// baseline keeps the startup values of every other field: reverting a
// restart-only edit clears it again.
//
// Invalid edits are logged and skipped; the file is re-read on the next
// poll.
type Reloader struct {
	path     string
	interval time.Duration
	apply    func(ConfigDiff)

	mu      sync.Mutex
	running Config
	lastSum [sha256.Size]byte
}

// ReloaderOption configures a [Reloader].
type ReloaderOption func(*Reloader)

// WithInterval sets the polling interval.
func WithInterval(d time.Duration) ReloaderOption {
	return func(r *Reloader) {
		if d > 0 {
			r.interval = d
		}
	}
}

// NewReloader returns a Reloader for path whose baseline is running, the
// config the process started with. apply is called with every non-empty
// diff. The file must be readable now.
func NewReloader(path string, running *Config, apply func(ConfigDiff), opts ...ReloaderOption) (*Reloader, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reload: %w", err)
	}
	r := &Reloader{
		path:     path,
		interval: DefaultReloadInterval,
		apply:    apply,
		running:  *running,
		lastSum:  sha256.Sum256(data),
	}
	for _, o := range opts {
		o(r)
	}
	return r, nil
}

// Run polls the file until ctx is done.
func (r *Reloader) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.Reload(); err != nil {
				slog.Warn("config reload skipped", "path", r.path, "err", err)
			}
		}
	}
}

// Reload reads the file once. Unchanged content yields an empty diff
// without parsing. A file that does not load is returned as an error and
// leaves the baseline untouched. Safe to call alongside Run, e.g. on SIGHUP.
func (r *Reloader) Reload() (ConfigDiff, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		return ConfigDiff{}, err
	}
	sum := sha256.Sum256(data)

	r.mu.Lock()
	if sum == r.lastSum {
		r.mu.Unlock()
		return ConfigDiff{}, nil
	}
	next, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		r.mu.Unlock()
		return ConfigDiff{}, err
	}
	r.lastSum = sum
	d := Diff(&r.running, next)
	if d.LogLevelChanged {
		r.running.Server.LogLevel = d.NewLogLevel
	}
	r.mu.Unlock()

	if d.Changed() && r.apply != nil {
		slog.Debug("config file changed", "path", r.path, "log_level_changed", d.LogLevelChanged, "restart_required", d.RestartRequired)
		r.apply(d)
	}
	return d, nil
}
