package config

import "slices"

// ConfigDiff describes what changed between two configs.
// Only the log level is applied live; everything else is reported so the
// operator knows a restart is needed.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// RestartRequired lists the YAML paths of changed fields that only take
	// effect after a restart, in schema order.
	RestartRequired []string
}

// Changed reports whether anything differs.
func (d ConfigDiff) Changed() bool {
	return d.LogLevelChanged || len(d.RestartRequired) > 0
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	restart := func(field string, changed bool) {
		if changed {
			d.RestartRequired = append(d.RestartRequired, field)
		}
	}
	restart("server.listen_addr", old.Server.ListenAddr != new.Server.ListenAddr)
	restart("server.websocket_addr", old.Server.WebSocketAddr != new.Server.WebSocketAddr)
	restart("server.allowed_origins", !slices.Equal(old.Server.AllowedOrigins, new.Server.AllowedOrigins))
	restart("server.admin_addr", old.Server.AdminAddr != new.Server.AdminAddr)
	restart("dictionary", old.Dictionary != new.Dictionary)
	restart("protocol", old.Protocol != new.Protocol)
	restart("mcp", old.MCP != new.MCP)

	return d
}
