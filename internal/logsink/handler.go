package logsink

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// TagKey is the attribute used as the bracketed tag of a log line.
const TagKey = "component"

const timeLayout = "15:04:05.000"

// Handler forwards records to an inner handler and mirrors them to a Switch.
type Handler struct {
	inner slog.Handler
	sw    *Switch
	level slog.Leveler
	tag   string
	attrs string // preformatted attributes from WithAttrs
	group string
}

// NewHandler wraps inner. level gates what reaches the log channel; nil means Info.
func NewHandler(inner slog.Handler, sw *Switch, level slog.Leveler) *Handler {
	if level == nil {
		level = slog.LevelInfo
	}
	return &Handler{inner: inner, sw: sw, level: level}
}

func (h *Handler) Enabled(ctx context.Context, l slog.Level) bool {
	return l >= h.level.Level() || (h.inner != nil && h.inner.Enabled(ctx, l))
}

func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= h.level.Level() {
		h.sw.WriteLine(h.format(r))
	}
	if h.inner != nil && h.inner.Enabled(ctx, r.Level) {
		return h.inner.Handle(ctx, r)
	}
	return nil
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	var b strings.Builder
	b.WriteString(h.attrs)
	for _, a := range attrs {
		if a.Key == TagKey && h.group == "" {
			clone.tag = a.Value.String()
			continue
		}
		writeAttr(&b, h.group, a)
	}
	clone.attrs = b.String()
	if h.inner != nil {
		clone.inner = h.inner.WithAttrs(attrs)
	}
	return &clone
}

func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	if clone.group == "" {
		clone.group = name
	} else {
		clone.group = clone.group + "." + name
	}
	if h.inner != nil {
		clone.inner = h.inner.WithGroup(name)
	}
	return &clone
}

// format renders [HH:mm:ss.SSS] [TAG] message k=v...
func (h *Handler) format(r slog.Record) string {
	ts := r.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	tag := h.tag
	var b strings.Builder
	b.WriteString(h.attrs)
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == TagKey && h.group == "" {
			tag = a.Value.String()
			return true
		}
		writeAttr(&b, h.group, a)
		return true
	})
	if tag == "" {
		tag = r.Level.String()
	}
	return fmt.Sprintf("[%s] [%s] %s%s\n", ts.Format(timeLayout), strings.ToUpper(tag), r.Message, b.String())
}

func writeAttr(b *strings.Builder, group string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	key := a.Key
	if group != "" {
		key = group + "." + key
	}
	if a.Value.Kind() == slog.KindGroup {
		for _, ga := range a.Value.Group() {
			writeAttr(b, key, ga)
		}
		return
	}
	fmt.Fprintf(b, " %s=%v", key, a.Value.Any())
}
