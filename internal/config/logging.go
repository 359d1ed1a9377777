package config

import (
	"fmt"
	"log/slog"
	"strings"
)

// LevelTrace sits below slog.LevelDebug and is reserved for wire-level
// forensics (full JSON request/response payloads). The value -8 follows
// the convention used by Go projects that extend slog with a trace
// level.
const LevelTrace = slog.Level(-8)

// ParseLogLevel converts a case-insensitive string to an slog.Level.
// Accepted: trace, debug, info (or empty), warn/warning, error.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "trace":
		return LevelTrace, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q (valid: trace, debug, info, warn, error)", s)
	}
}

// ReplaceLogLevelNames is an slog.HandlerOptions.ReplaceAttr function
// that renders LevelTrace as "TRACE" instead of slog's "DEBUG-4".
func ReplaceLogLevelNames(groups []string, a slog.Attr) slog.Attr {
	if a.Key == slog.LevelKey {
		if level, ok := a.Value.Any().(slog.Level); ok && level == LevelTrace {
			a.Value = slog.StringValue("TRACE")
		}
	}
	return a
}
