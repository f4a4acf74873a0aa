package dfslog

import (
	"context"
	"log/slog"
	"os"

	"github.com/rs/zerolog"
)

// NewConsole builds the human-readable startup logger the distfs
// daemons use, in the same style as quay/claircore's cmd/libindexhttp
// and cmd/libvulnhttp mains: a zerolog.ConsoleWriter logger for the
// operator's terminal, bridged into a *slog.Logger so the rest of the
// process (internal/rpc, internal/coordinator, internal/storage) only
// ever depends on the standard library's logging interface.
func NewConsole(level string) *slog.Logger {
	zl := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, NoColor: true}).
		With().Timestamp().Caller().
		Logger().
		Level(parseLevel(level))
	return slog.New(WrapHandler(&zerologHandler{zl: zl}))
}

func parseLevel(s string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(s)
	if err != nil {
		return zerolog.InfoLevel
	}
	return lvl
}

// zerologHandler adapts a zerolog.Logger to the slog.Handler
// interface so it can sit underneath dfslog.WrapHandler.
type zerologHandler struct {
	zl   zerolog.Logger
	attr []slog.Attr
}

func slogToZerologLevel(l slog.Level) zerolog.Level {
	switch {
	case l >= slog.LevelError:
		return zerolog.ErrorLevel
	case l >= slog.LevelWarn:
		return zerolog.WarnLevel
	case l >= slog.LevelInfo:
		return zerolog.InfoLevel
	default:
		return zerolog.DebugLevel
	}
}

func (h *zerologHandler) Enabled(_ context.Context, l slog.Level) bool {
	return h.zl.GetLevel() <= slogToZerologLevel(l)
}

func (h *zerologHandler) Handle(_ context.Context, r slog.Record) error {
	ev := h.zl.WithLevel(slogToZerologLevel(r.Level))
	for _, a := range h.attr {
		ev = addAttr(ev, a)
	}
	r.Attrs(func(a slog.Attr) bool {
		ev = addAttr(ev, a)
		return true
	})
	ev.Msg(r.Message)
	return nil
}

func addAttr(ev *zerolog.Event, a slog.Attr) *zerolog.Event {
	v := a.Value.Resolve()
	switch v.Kind() {
	case slog.KindString:
		return ev.Str(a.Key, v.String())
	case slog.KindInt64:
		return ev.Int64(a.Key, v.Int64())
	case slog.KindBool:
		return ev.Bool(a.Key, v.Bool())
	case slog.KindDuration:
		return ev.Dur(a.Key, v.Duration())
	default:
		return ev.Interface(a.Key, v.Any())
	}
}

func (h *zerologHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	n := &zerologHandler{zl: h.zl, attr: make([]slog.Attr, 0, len(h.attr)+len(attrs))}
	n.attr = append(n.attr, h.attr...)
	n.attr = append(n.attr, attrs...)
	return n
}

func (h *zerologHandler) WithGroup(name string) slog.Handler {
	// Groups are rare in this codebase's call sites and are not
	// supported: the handler is returned unchanged, so later attributes
	// are logged under their own keys without the group name.
	return h
}
