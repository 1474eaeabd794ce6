// Package logging builds the process-wide slog logger. Credentials that end
// up in log attributes are redacted by masq before they are written.
package logging

import (
	"io"
	"log/slog"
	"strings"

	"github.com/m-mizutani/masq"
)

const (
	FormatJSON = "json"
	FormatText = "text"
)

// New returns a logger writing to w. Unknown formats fall back to JSON.
func New(w io.Writer, level slog.Level, format string) *slog.Logger {
	filter := masq.New(
		masq.WithTag("secret"),
		masq.WithFieldName("Token"),
		masq.WithFieldName("Password"),
		masq.WithFieldName("Secret"),
		masq.WithFieldPrefix("secret_"),
	)

	opts := &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: filter,
	}

	var handler slog.Handler
	switch strings.ToLower(format) {
	case FormatText:
		handler = slog.NewTextHandler(w, opts)
	default:
		handler = slog.NewJSONHandler(w, opts)
	}
	return slog.New(handler)
}
