// Package logger builds the process-wide structured logger.
package logger

import (
	"io"
	"log/slog"
	"strings"
)

// Redacted replaces the value of sensitive attributes
const Redacted = "[REDACTED]"

// Format selects the handler used by New
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// New returns a logger writing to w at level. Attributes whose key looks
// like a credential are redacted whatever the nesting.
func New(w io.Writer, level slog.Leveler, format Format) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: redact,
	}

	if format == FormatText {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// FormatFor picks text output for local development and JSON elsewhere
func FormatFor(appEnv string) Format {
	if appEnv == "development" {
		return FormatText
	}
	return FormatJSON
}

func redact(_ []string, a slog.Attr) slog.Attr {
	if a.Value.Kind() != slog.KindGroup && isSensitiveKey(a.Key) {
		return slog.String(a.Key, Redacted)
	}
	return a
}

// isSensitiveKey checks if a key might contain sensitive data
func isSensitiveKey(key string) bool {
	sensitiveKeys := map[string]bool{
		"password":      true,
		"api_key":       true,
		"apikey":        true,
		"token":         true,
		"secret":        true,
		"authorization": true,
		"auth":          true,
		"credential":    true,
		"credentials":   true,
		"cookie":        true,
	}
	key = strings.ToLower(key)
	if sensitiveKeys[key] {
		return true
	}
	return strings.HasSuffix(key, "_password") || strings.HasSuffix(key, "_secret")
}
