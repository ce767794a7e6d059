// Package slogutil provides the slog handler and logger constructors used across movetrack.
package slogutil

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"time"
)

// sink is the writer shared by a handler and every handler derived from it.
type sink struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *sink) write(p []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.w.Write(p)
	return err
}

// LineHandler formats one record per line:
//
//	TIMESTAMP [level] Message | key=value key=value
//
// Attributes added through WithAttrs are rendered once, when the derived
// handler is built. Group names prefix keys with "group.".
type LineHandler struct {
	out    *sink
	level  slog.Leveler
	prefix string // dotted group path, "" or ending in "."
	preset []byte // pre-rendered " key=value" pairs
}

// NewLineHandler creates a new line handler.
func NewLineHandler(w io.Writer, opts *slog.HandlerOptions) *LineHandler {
	h := &LineHandler{out: &sink{w: w}, level: slog.LevelInfo}
	if opts != nil && opts.Level != nil {
		h.level = opts.Level
	}
	return h
}

// Enabled reports whether the handler handles records at the given level.
func (h *LineHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// Handle formats and writes the log record.
func (h *LineHandler) Handle(_ context.Context, r slog.Record) error {
	line := make([]byte, 0, 96+len(h.preset))
	line = r.Time.UTC().AppendFormat(line, time.RFC3339)
	line = append(line, " ["...)
	line = append(line, levelName(r.Level)...)
	line = append(line, "] "...)
	line = append(line, r.Message...)

	pairs := h.preset
	if r.NumAttrs() > 0 {
		pairs = append([]byte(nil), h.preset...)
		r.Attrs(func(a slog.Attr) bool {
			pairs = appendAttr(pairs, h.prefix, a)
			return true
		})
	}
	if len(pairs) > 0 {
		line = append(line, " |"...)
		line = append(line, pairs...)
	}
	line = append(line, '\n')

	return h.out.write(line)
}

// WithAttrs returns a handler that prints attrs on every record.
func (h *LineHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	child := *h
	child.preset = append([]byte(nil), h.preset...)
	for _, a := range attrs {
		child.preset = appendAttr(child.preset, h.prefix, a)
	}
	return &child
}

// WithGroup returns a handler whose later attribute keys are prefixed with name.
func (h *LineHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	child := *h
	child.prefix = h.prefix + name + "."
	return &child
}

// appendAttr renders a as " key=value", flattening group values into dotted keys.
func appendAttr(dst []byte, prefix string, a slog.Attr) []byte {
	v := a.Value.Resolve()
	if v.Kind() == slog.KindGroup {
		group := v.Group()
		if a.Key != "" {
			prefix += a.Key + "."
		}
		for _, ga := range group {
			dst = appendAttr(dst, prefix, ga)
		}
		return dst
	}
	if a.Key == "" {
		return dst
	}
	dst = append(dst, ' ')
	dst = append(dst, prefix...)
	dst = append(dst, a.Key...)
	dst = append(dst, '=')
	return appendValue(dst, v)
}

func appendValue(dst []byte, v slog.Value) []byte {
	switch v.Kind() {
	case slog.KindString:
		return append(dst, v.String()...)
	case slog.KindInt64:
		return strconv.AppendInt(dst, v.Int64(), 10)
	case slog.KindUint64:
		return strconv.AppendUint(dst, v.Uint64(), 10)
	case slog.KindBool:
		return strconv.AppendBool(dst, v.Bool())
	case slog.KindTime:
		return v.Time().AppendFormat(dst, time.RFC3339)
	case slog.KindDuration:
		return append(dst, v.Duration().String()...)
	default:
		return fmt.Append(dst, v.Any())
	}
}

func levelName(level slog.Level) string {
	switch {
	case level < slog.LevelInfo:
		return "debug"
	case level < slog.LevelWarn:
		return "info"
	case level < slog.LevelError:
		return "warn"
	default:
		return "error"
	}
}
