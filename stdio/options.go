package stdio

import (
	"io"
	"log/slog"
)

// Option customizes a Handler.
type Option func(*Handler)

// WithReader reads messages from r instead of os.Stdin.
func WithReader(r io.Reader) Option {
	return func(h *Handler) { h.r = r }
}

// WithWriter writes responses to w instead of os.Stdout. Nothing else may
// write to w while the handler serves.
func WithWriter(w io.Writer) Option {
	return func(h *Handler) { h.w = w }
}

// WithLogger sets the logger. It must not write to the protocol stream.
func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) { h.l = l }
}

// WithUserID labels the session "stdio:<id>" instead of using the OS user.
func WithUserID(id string) Option {
	return func(h *Handler) {
		h.lookupUser = func() (string, error) { return id, nil }
	}
}
