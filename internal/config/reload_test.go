package config_test

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/MrWong99/spellbook/internal/config"
)

const startupYAML = `
server:
  log_level: info
dictionary:
  path: words.txt
`

// reloadHarness writes startupYAML, loads it as the running config and
// records every applied diff.
type reloadHarness struct {
	path string
	r    *config.Reloader

	mu      sync.Mutex
	applied []config.ConfigDiff
}

func newReloadHarness(t *testing.T, opts ...config.ReloaderOption) *reloadHarness {
	t.Helper()
	h := &reloadHarness{path: filepath.Join(t.TempDir(), "config.yaml")}
	h.write(t, startupYAML)
	running, err := config.Load(h.path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	h.r, err = config.NewReloader(h.path, running, func(d config.ConfigDiff) {
		h.mu.Lock()
		h.applied = append(h.applied, d)
		h.mu.Unlock()
	}, opts...)
	if err != nil {
		t.Fatalf("NewReloader: %v", err)
	}
	return h
}

func (h *reloadHarness) write(t *testing.T, content string) {
	t.Helper()
	if err := os.WriteFile(h.path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func (h *reloadHarness) appliedCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.applied)
}

func TestReload_Edits(t *testing.T) {
	t.Parallel()

	h := newReloadHarness(t)
	steps := []struct {
		name        string
		yaml        string
		wantLevel   config.LogLevel
		wantRestart []string
		wantApplied int
	}{
		{
			name:        "comment only",
			yaml:        startupYAML + "# tuned later\n",
			wantApplied: 0,
		},
		{
			name:        "log level",
			yaml:        "server:\n  log_level: debug\ndictionary:\n  path: words.txt\n",
			wantLevel:   config.LogDebug,
			wantApplied: 1,
		},
		{
			name:        "same level again plus candidates",
			yaml:        "server:\n  log_level: debug\ndictionary:\n  path: words.txt\nprotocol:\n  candidates: 3\n",
			wantRestart: []string{"protocol"},
			wantApplied: 2,
		},
		{
			name:        "candidates reverted",
			yaml:        "server:\n  log_level: debug\ndictionary:\n  path: words.txt\n",
			wantApplied: 2,
		},
	}
	for _, step := range steps {
		h.write(t, step.yaml)
		d, err := h.r.Reload()
		if err != nil {
			t.Fatalf("%s: Reload: %v", step.name, err)
		}
		if step.wantLevel != "" && (!d.LogLevelChanged || d.NewLogLevel != step.wantLevel) {
			t.Errorf("%s: diff = %+v, want log level %q", step.name, d, step.wantLevel)
		}
		if step.wantLevel == "" && d.LogLevelChanged {
			t.Errorf("%s: log level reported changed again: %+v", step.name, d)
		}
		if !slices.Equal(d.RestartRequired, step.wantRestart) {
			t.Errorf("%s: RestartRequired = %v, want %v", step.name, d.RestartRequired, step.wantRestart)
		}
		if got := h.appliedCount(); got != step.wantApplied {
			t.Errorf("%s: applied = %d, want %d", step.name, got, step.wantApplied)
		}
	}
}

func TestReload_InvalidEditKeepsBaseline(t *testing.T) {
	t.Parallel()

	h := newReloadHarness(t)

	h.write(t, "server:\n  log_level: bananas\n")
	if _, err := h.r.Reload(); err == nil {
		t.Fatal("Reload of an invalid file succeeded")
	}

	// The fixed file is compared against startup, not against the broken
	// edit.
	h.write(t, startupYAML)
	d, err := h.r.Reload()
	if err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if d.Changed() || h.appliedCount() != 0 {
		t.Errorf("diff = %+v applied = %d, want nothing", d, h.appliedCount())
	}
}

func TestReload_MissingFile(t *testing.T) {
	t.Parallel()

	if _, err := config.NewReloader(filepath.Join(t.TempDir(), "nope.yaml"), &config.Config{}, nil); err == nil {
		t.Error("NewReloader on a missing file succeeded")
	}

	h := newReloadHarness(t)
	if err := os.Remove(h.path); err != nil {
		t.Fatal(err)
	}
	if _, err := h.r.Reload(); err == nil {
		t.Error("Reload of a removed file succeeded")
	}
}

func TestReloader_RunPollsUntilCancel(t *testing.T) {
	t.Parallel()

	h := newReloadHarness(t, config.WithInterval(10*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.r.Run(ctx)
		close(done)
	}()

	h.write(t, "server:\n  log_level: warn\ndictionary:\n  path: words.txt\n")
	deadline := time.Now().Add(2 * time.Second)
	for h.appliedCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if h.appliedCount() != 1 {
		t.Errorf("applied = %d after edit, want 1", h.appliedCount())
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
