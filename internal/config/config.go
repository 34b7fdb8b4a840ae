// Package config provides the configuration schema, loader, and file reloader
// for the spellbook server.
//
// Configuration is layered: a YAML file, then SPELLBOOK_* environment
// variables, then built-in defaults for anything still unset. The result is
// validated as a whole so that every problem is reported at once.
package config

import "time"

// LogLevel controls log verbosity for the spellbook server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Defaults for unset fields.
const (
	DefaultListenAddr      = ":60000"
	DefaultAdminAddr       = ":9464"
	DefaultLogLevel        = LogInfo
	DefaultDictionaryPath  = "dictionary.txt"
	DefaultMaxEntries      = 5000
	DefaultMaxWordLength   = 100
	DefaultMaxInputLength  = 100
	DefaultMaxOutputLength = 200
	DefaultCandidates      = 5
)

// Config is the root configuration structure for spellbook.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server     ServerConfig     `yaml:"server"     envPrefix:"SERVER_"`
	Dictionary DictionaryConfig `yaml:"dictionary" envPrefix:"DICTIONARY_"`
	Protocol   ProtocolConfig   `yaml:"protocol"   envPrefix:"PROTOCOL_"`
	MCP        MCPConfig        `yaml:"mcp"        envPrefix:"MCP_"`
}

// ServerConfig holds network and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address of the line protocol (e.g. ":60000").
	ListenAddr string `yaml:"listen_addr" env:"LISTEN_ADDR"`

	// WebSocketAddr serves the line protocol over WebSocket at /ws when set.
	WebSocketAddr string `yaml:"websocket_addr" env:"WEBSOCKET_ADDR"`

	// AllowedOrigins lists browser origins accepted by the WebSocket
	// endpoint. Empty allows same-origin requests only.
	AllowedOrigins []string `yaml:"allowed_origins" env:"ALLOWED_ORIGINS" envSeparator:","`

	// AdminAddr serves /healthz, /readyz, and /metrics. Set to "-" to
	// disable.
	AdminAddr string `yaml:"admin_addr" env:"ADMIN_ADDR"`

	// LogLevel controls verbosity. It is the only setting applied without
	// a restart.
	LogLevel LogLevel `yaml:"log_level" env:"LOG_LEVEL"`
}

// DictionaryConfig configures the word store.
type DictionaryConfig struct {
	// Path is the flat word file, one word per line. Accepted words are
	// appended to it.
	Path string `yaml:"path" env:"PATH"`

	// MaxEntries caps the number of stored words.
	MaxEntries int `yaml:"max_entries" env:"MAX_ENTRIES"`

	// MaxWordLength caps the length of a stored word.
	MaxWordLength int `yaml:"max_word_length" env:"MAX_WORD_LENGTH"`
}

// ProtocolConfig bounds a client session.
type ProtocolConfig struct {
	MaxInputLength  int `yaml:"max_input_length"  env:"MAX_INPUT_LENGTH"`
	MaxOutputLength int `yaml:"max_output_length" env:"MAX_OUTPUT_LENGTH"`

	// Candidates is the number of suggestions shown per word.
	Candidates int `yaml:"candidates" env:"CANDIDATES"`

	// IdleTimeout closes a session whose client stays silent this long.
	// Zero waits forever.
	IdleTimeout time.Duration `yaml:"idle_timeout" env:"IDLE_TIMEOUT"`

	// Parallelism caps ranking goroutines per session. Zero means one per
	// word.
	Parallelism int `yaml:"parallelism" env:"PARALLELISM"`
}

// MCPConfig configures the Model Context Protocol server on stdio.
type MCPConfig struct {
	Enabled bool `yaml:"enabled" env:"ENABLED"`
}

// AdminEnabled reports whether the admin listener should run.
func (s ServerConfig) AdminEnabled() bool { return s.AdminAddr != "-" }

// ApplyDefaults fills every unset field of cfg with its default.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = DefaultListenAddr
	}
	if cfg.Server.AdminAddr == "" {
		cfg.Server.AdminAddr = DefaultAdminAddr
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = DefaultLogLevel
	}
	if cfg.Dictionary.Path == "" {
		cfg.Dictionary.Path = DefaultDictionaryPath
	}
	if cfg.Dictionary.MaxEntries == 0 {
		cfg.Dictionary.MaxEntries = DefaultMaxEntries
	}
	if cfg.Dictionary.MaxWordLength == 0 {
		cfg.Dictionary.MaxWordLength = DefaultMaxWordLength
	}
	if cfg.Protocol.MaxInputLength == 0 {
		cfg.Protocol.MaxInputLength = DefaultMaxInputLength
	}
	if cfg.Protocol.MaxOutputLength == 0 {
		cfg.Protocol.MaxOutputLength = DefaultMaxOutputLength
	}
	if cfg.Protocol.Candidates == 0 {
		cfg.Protocol.Candidates = DefaultCandidates
	}
}
