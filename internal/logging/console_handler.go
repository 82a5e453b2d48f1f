package logging

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	ansiReset  = "\033[0m"
	ansiDim    = "\033[2m"
	ansiRed    = "\033[31m"
	ansiYellow = "\033[33m"
	ansiBlue   = "\033[34m"
	ansiGray   = "\033[90m"
)

// consoleHandler writes one line per record:
//
//	15:04:05 INFO  message key=value ...
type consoleHandler struct {
	mu       *sync.Mutex
	w        io.Writer
	level    slog.Leveler
	colorize bool
	attrs    []slog.Attr
	group    string
}

func newConsoleHandler(w io.Writer, level slog.Leveler, colorize bool) *consoleHandler {
	return &consoleHandler{mu: &sync.Mutex{}, w: w, level: level, colorize: colorize}
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *consoleHandler) Handle(_ context.Context, r slog.Record) error {
	var buf bytes.Buffer

	ts := r.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	h.paint(&buf, ansiDim, ts.Format("15:04:05"))
	buf.WriteByte(' ')
	h.paint(&buf, levelColor(r.Level), fmt.Sprintf("%-5s", levelLabel(r.Level)))
	buf.WriteByte(' ')
	buf.WriteString(r.Message)

	for _, a := range h.attrs {
		h.writeAttr(&buf, "", a)
	}
	r.Attrs(func(a slog.Attr) bool {
		h.writeAttr(&buf, h.group, a)
		return true
	})
	buf.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.w.Write(buf.Bytes())
	return err
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	clone.attrs = append(clone.attrs, h.attrs...)
	for _, a := range attrs {
		if h.group != "" {
			a.Key = h.group + "." + a.Key
		}
		clone.attrs = append(clone.attrs, a)
	}
	return &clone
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	if clone.group != "" {
		clone.group += "." + name
	} else {
		clone.group = name
	}
	return &clone
}

func (h *consoleHandler) writeAttr(buf *bytes.Buffer, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	key := a.Key
	if prefix != "" {
		key = prefix + "." + key
	}
	if a.Value.Kind() == slog.KindGroup {
		for _, ga := range a.Value.Group() {
			h.writeAttr(buf, key, ga)
		}
		return
	}
	buf.WriteByte(' ')
	h.paint(buf, ansiGray, key+"=")
	buf.WriteString(formatValue(a.Value))
}

func (h *consoleHandler) paint(buf *bytes.Buffer, color, s string) {
	if !h.colorize {
		buf.WriteString(s)
		return
	}
	buf.WriteString(color)
	buf.WriteString(s)
	buf.WriteString(ansiReset)
}

func formatValue(v slog.Value) string {
	switch v.Kind() {
	case slog.KindDuration:
		return v.Duration().String()
	case slog.KindTime:
		return v.Time().Format(time.RFC3339)
	case slog.KindString:
		s := v.String()
		if s == "" || strings.ContainsAny(s, " \t\n\"=") {
			return strconv.Quote(s)
		}
		return s
	}
	return v.String()
}

func levelLabel(l slog.Level) string {
	switch {
	case l >= slog.LevelError:
		return "ERROR"
	case l >= slog.LevelWarn:
		return "WARN"
	case l >= slog.LevelInfo:
		return "INFO"
	}
	return "DEBUG"
}

func levelColor(l slog.Level) string {
	switch {
	case l >= slog.LevelError:
		return ansiRed
	case l >= slog.LevelWarn:
		return ansiYellow
	case l >= slog.LevelInfo:
		return ansiBlue
	}
	return ansiGray
}
