// Package dfslog is the common spot for distfs logging: context-carried
// attributes and a per-call minimum level, layered over log/slog.
//
// Adapted from quay/claircore's toolkit/log package: same Context-key
// mechanism for stitching request-scoped attributes (component name,
// path, storage identity) onto whatever *slog.Logger a component was
// constructed with, renamed to this module's domain.
package dfslog

import (
	"context"
	"log/slog"
	"slices"
)

type ctxkey int

const (
	_ ctxkey = iota
	// attrsKey stores a slog.Value of kind Group holding attributes
	// accumulated via With.
	attrsKey
	// levelKey stores a slog.Leveler overriding the minimum level for
	// records produced under this context.
	levelKey
)

// With returns a context carrying the given key/value pairs (or
// slog.Attr values) as attributes, to be merged into any record
// logged through a handler wrapped with WrapHandler.
func With(ctx context.Context, args ...any) context.Context {
	return WithAttr(ctx, argsToAttrSlice(args)...)
}

// WithAttr is the slog.Attr-typed form of With.
func WithAttr(ctx context.Context, attrs ...slog.Attr) context.Context {
	if v, ok := ctx.Value(attrsKey).(slog.Value); ok {
		attrs = append(v.Group(), attrs...)
	}
	seen := make(map[string]struct{}, len(attrs))
	del := func(a slog.Attr) bool {
		_, dup := seen[a.Key]
		seen[a.Key] = struct{}{}
		return dup || (a.Value.Kind() == slog.KindGroup && len(a.Value.Group()) == 0)
	}
	// Keep the last value for a repeated key: scan in reverse so the
	// most recently added attribute wins the dedup, then restore order.
	slices.Reverse(attrs)
	attrs = slices.DeleteFunc(attrs, del)
	slices.Reverse(attrs)
	return context.WithValue(ctx, attrsKey, slog.GroupValue(attrs...))
}

// WithLevel returns a context that forces a minimum log level for
// records produced through a handler wrapped with WrapHandler.
func WithLevel(ctx context.Context, l slog.Leveler) context.Context {
	return context.WithValue(ctx, levelKey, l)
}

// WrapHandler wraps next with an interceptor that merges attributes
// and level overrides stashed on the context by With/WithLevel.
func WrapHandler(next slog.Handler) slog.Handler {
	return handler{next: next}
}

var _ slog.Handler = handler{}

type handler struct{ next slog.Handler }

func (h handler) Enabled(ctx context.Context, l slog.Level) bool {
	min := slog.Level(1<<31 - 1)
	if lv, ok := ctx.Value(levelKey).(slog.Leveler); ok {
		min = lv.Level()
	}
	return l >= min || h.next.Enabled(ctx, l)
}

func (h handler) Handle(ctx context.Context, r slog.Record) error {
	if v, ok := ctx.Value(attrsKey).(slog.Value); ok {
		r.AddAttrs(v.Group()...)
	}
	return h.next.Handle(ctx, r)
}

func (h handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return handler{next: h.next.WithAttrs(attrs)}
}

func (h handler) WithGroup(name string) slog.Handler {
	return handler{next: h.next.WithGroup(name)}
}

func argsToAttrSlice(args []any) []slog.Attr {
	var attrs []slog.Attr
	for len(args) > 0 {
		var a slog.Attr
		a, args = argsToAttr(args)
		attrs = append(attrs, a)
	}
	return attrs
}

func argsToAttr(args []any) (slog.Attr, []any) {
	const badKey = "!BADKEY"
	switch x := args[0].(type) {
	case string:
		if len(args) == 1 {
			return slog.String(badKey, x), nil
		}
		return slog.Any(x, args[1]), args[2:]
	case slog.Attr:
		return x, args[1:]
	default:
		return slog.Any(badKey, x), args[1:]
	}
}
