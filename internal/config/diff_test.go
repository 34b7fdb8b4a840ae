package config_test

import (
	"slices"
	"testing"

	"github.com/MrWong99/spellbook/internal/config"
)

func defaultConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	return cfg
}

func TestDiff_NoChanges(t *testing.T) {
	t.Parallel()
	cfg := defaultConfig(t)
	d := config.Diff(cfg, cfg)
	if d.Changed() {
		t.Errorf("Diff of identical configs = %+v, want no changes", d)
	}
}

func TestDiff_LogLevelChanged(t *testing.T) {
	t.Parallel()
	old := defaultConfig(t)
	new := defaultConfig(t)
	new.Server.LogLevel = config.LogDebug

	d := config.Diff(old, new)
	if !d.LogLevelChanged {
		t.Error("expected LogLevelChanged=true")
	}
	if d.NewLogLevel != config.LogDebug {
		t.Errorf("expected NewLogLevel=debug, got %q", d.NewLogLevel)
	}
	if len(d.RestartRequired) != 0 {
		t.Errorf("log level alone should not require restart, got %v", d.RestartRequired)
	}
}

func TestDiff_RestartRequired(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   []string
	}{
		{
			name:   "listen address",
			mutate: func(c *config.Config) { c.Server.ListenAddr = ":7000" },
			want:   []string{"server.listen_addr"},
		},
		{
			name:   "websocket address",
			mutate: func(c *config.Config) { c.Server.WebSocketAddr = ":8080" },
			want:   []string{"server.websocket_addr"},
		},
		{
			name:   "origins",
			mutate: func(c *config.Config) { c.Server.AllowedOrigins = []string{"example.com"} },
			want:   []string{"server.allowed_origins"},
		},
		{
			name:   "dictionary path",
			mutate: func(c *config.Config) { c.Dictionary.Path = "other.txt" },
			want:   []string{"dictionary"},
		},
		{
			name: "protocol and mcp",
			mutate: func(c *config.Config) {
				c.Protocol.Candidates = 3
				c.MCP.Enabled = true
			},
			want: []string{"protocol", "mcp"},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			old := defaultConfig(t)
			new := defaultConfig(t)
			tc.mutate(new)

			d := config.Diff(old, new)
			if !slices.Equal(d.RestartRequired, tc.want) {
				t.Errorf("RestartRequired = %v, want %v", d.RestartRequired, tc.want)
			}
			if d.LogLevelChanged {
				t.Error("unexpected LogLevelChanged")
			}
			if !d.Changed() {
				t.Error("Changed() = false")
			}
		})
	}
}
