package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g.
// SPELLBOOK_SERVER_LISTEN_ADDR or SPELLBOOK_DICTIONARY_PATH.
const EnvPrefix = "SPELLBOOK_"

// Load reads the YAML configuration file at path, applies environment
// overrides and defaults, and returns a validated [Config]. An empty path
// skips the file.
func Load(path string) (*Config, error) {
	if path == "" {
		return finish(&Config{})
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies environment
// overrides and defaults, and validates the result. Useful in tests where
// configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	return finish(cfg)
}

func finish(cfg *Config) (*Config, error) {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("config: parse env: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values. Defaults must
// already be applied. It returns a joined error listing all validation
// failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	addrs := map[string]string{"server.listen_addr": cfg.Server.ListenAddr}
	if cfg.Server.WebSocketAddr != "" {
		addrs["server.websocket_addr"] = cfg.Server.WebSocketAddr
	}
	if cfg.Server.AdminEnabled() {
		addrs["server.admin_addr"] = cfg.Server.AdminAddr
	}
	seen := make(map[string]string, len(addrs))
	for _, field := range []string{"server.listen_addr", "server.websocket_addr", "server.admin_addr"} {
		addr, ok := addrs[field]
		if !ok {
			continue
		}
		if prev, dup := seen[addr]; dup {
			errs = append(errs, fmt.Errorf("%s %q is already used by %s", field, addr, prev))
			continue
		}
		seen[addr] = field
	}
	if len(cfg.Server.AllowedOrigins) > 0 && cfg.Server.WebSocketAddr == "" {
		slog.Warn("server.allowed_origins is set but server.websocket_addr is empty; origins have no effect")
	}

	// Dictionary
	if cfg.Dictionary.MaxEntries < 1 {
		errs = append(errs, fmt.Errorf("dictionary.max_entries %d must be positive", cfg.Dictionary.MaxEntries))
	}
	if cfg.Dictionary.MaxWordLength < 1 {
		errs = append(errs, fmt.Errorf("dictionary.max_word_length %d must be positive", cfg.Dictionary.MaxWordLength))
	}

	// Protocol
	p := cfg.Protocol
	if p.MaxInputLength < 1 {
		errs = append(errs, fmt.Errorf("protocol.max_input_length %d must be positive", p.MaxInputLength))
	}
	if p.MaxOutputLength < 1 {
		errs = append(errs, fmt.Errorf("protocol.max_output_length %d must be positive", p.MaxOutputLength))
	}
	if p.Candidates < 1 {
		errs = append(errs, fmt.Errorf("protocol.candidates %d must be positive", p.Candidates))
	}
	if p.IdleTimeout < 0 {
		errs = append(errs, fmt.Errorf("protocol.idle_timeout %s must not be negative", p.IdleTimeout))
	}
	if p.Parallelism < 0 {
		errs = append(errs, fmt.Errorf("protocol.parallelism %d must not be negative", p.Parallelism))
	}
	if p.MaxInputLength > 0 && p.MaxOutputLength > 0 && p.MaxOutputLength < p.MaxInputLength {
		slog.Warn("protocol.max_output_length is below max_input_length; long transcripts will be truncated",
			"max_input_length", p.MaxInputLength,
			"max_output_length", p.MaxOutputLength,
		)
	}

	return errors.Join(errs...)
}
