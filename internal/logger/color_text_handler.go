package logger

import (
	"context"
	"io"
	"log/slog"
)

// ANSI sequences keyed by severity. Errors render bold red so failures
// stand out on an operator terminal.
const (
	ansiReset  = "\033[0m"
	ansiCyan   = "\033[36m"
	ansiGreen  = "\033[32m"
	ansiYellow = "\033[33m"
	ansiRed    = "\033[1;31m"
)

// ColorTextHandler renders records as logfmt text with a colorized level
// token prefixed to the message. Formatting is delegated to the wrapped
// slog.TextHandler, so attrs and groups behave as usual.
type ColorTextHandler struct {
	*slog.TextHandler
	colorize bool
}

func NewColorTextHandler(w io.Writer, opts *slog.HandlerOptions, colorize bool) *ColorTextHandler {
	return &ColorTextHandler{
		TextHandler: slog.NewTextHandler(w, opts),
		colorize:    colorize,
	}
}

func levelColor(l slog.Level) string {
	switch {
	case l >= slog.LevelError:
		return ansiRed
	case l >= slog.LevelWarn:
		return ansiYellow
	case l >= slog.LevelInfo:
		return ansiGreen
	default:
		return ansiCyan
	}
}

func (h *ColorTextHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.colorize {
		r.Message = levelColor(r.Level) + r.Level.String() + ansiReset + "  " + r.Message
	}
	return h.TextHandler.Handle(ctx, r)
}
