package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorGray   = "\033[90m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
)

// PrettyHandler is a slog.Handler for interactive CLI output:
//
//	[2026-01-02 15:04:05] INFO  model loaded name=mlp params=40 (serve.go:61)
//
// Colors are used only when writing to a terminal and NO_COLOR is unset.
// String values spanning several lines, such as layer outlines, are printed
// as an indented block after the record line.
type PrettyHandler struct {
	opts  slog.HandlerOptions
	w     io.Writer
	mu    *sync.Mutex
	color bool

	group string
	// attrs are already qualified with the group in effect when they were
	// added.
	attrs []slog.Attr
}

var bufPool = sync.Pool{
	New: func() any {
		b := make([]byte, 0, 1024)
		return &b
	},
}

// NewPrettyHandler creates a new PrettyHandler.
func NewPrettyHandler(w io.Writer, opts *slog.HandlerOptions) *PrettyHandler {
	if opts == nil {
		opts = &slog.HandlerOptions{}
	}
	return &PrettyHandler{
		opts:  *opts,
		w:     w,
		mu:    &sync.Mutex{},
		color: useColor(w),
	}
}

func useColor(w io.Writer) bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	f, ok := w.(*os.File)
	return ok && isTerminal(f.Fd())
}

// Enabled reports whether the handler handles records at the given level.
func (h *PrettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	minLevel := slog.LevelInfo
	if h.opts.Level != nil {
		minLevel = h.opts.Level.Level()
	}
	return level >= minLevel
}

// Handle formats and writes a log record.
func (h *PrettyHandler) Handle(_ context.Context, r slog.Record) error {
	bp := bufPool.Get().(*[]byte)
	buf := (*bp)[:0]
	defer func() {
		*bp = buf[:0]
		bufPool.Put(bp)
	}()

	if !r.Time.IsZero() {
		buf = h.paint(buf, colorGray)
		buf = append(buf, '[')
		buf = r.Time.AppendFormat(buf, time.DateTime)
		buf = append(buf, ']')
		buf = h.paint(buf, colorReset)
		buf = append(buf, ' ')
	}

	buf = h.paint(buf, levelColor(r.Level))
	buf = h.paint(buf, colorBold)
	buf = append(buf, padLevel(r.Level.String())...)
	buf = h.paint(buf, colorReset)
	buf = append(buf, ' ')
	buf = append(buf, r.Message...)

	var blocks []slog.Attr
	inline := func(a slog.Attr) {
		buf = append(buf, ' ')
		buf = h.paint(buf, colorCyan)
		buf = appendAttr(buf, a)
		buf = h.paint(buf, colorReset)
	}
	for _, a := range h.attrs {
		if isBlock(a) {
			blocks = append(blocks, a)
			continue
		}
		inline(a)
	}
	r.Attrs(func(a slog.Attr) bool {
		a = qualify(a, h.group)
		if a.Equal(slog.Attr{}) {
			return true
		}
		if isBlock(a) {
			blocks = append(blocks, a)
			return true
		}
		inline(a)
		return true
	})

	if h.opts.AddSource && r.PC != 0 {
		frame, _ := runtime.CallersFrames([]uintptr{r.PC}).Next()
		if frame.File != "" {
			buf = append(buf, ' ')
			buf = h.paint(buf, colorGray)
			buf = append(buf, '(')
			buf = append(buf, filepath.Base(frame.File)...)
			buf = append(buf, ':')
			buf = strconv.AppendInt(buf, int64(frame.Line), 10)
			buf = append(buf, ')')
			buf = h.paint(buf, colorReset)
		}
	}
	buf = append(buf, '\n')

	for _, a := range blocks {
		buf = append(buf, "  "...)
		buf = append(buf, a.Key...)
		buf = append(buf, ":\n"...)
		for line := range strings.Lines(a.Value.String()) {
			buf = append(buf, "    "...)
			buf = append(buf, strings.TrimRight(line, "\n")...)
			buf = append(buf, '\n')
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.w.Write(buf)
	return err
}

// WithAttrs returns a new handler with additional attributes.
func (h *PrettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	h2 := *h
	h2.attrs = make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	h2.attrs = append(h2.attrs, h.attrs...)
	for _, a := range attrs {
		if a = qualify(a, h.group); !a.Equal(slog.Attr{}) {
			h2.attrs = append(h2.attrs, a)
		}
	}
	return &h2
}

// WithGroup returns a new handler with a group name.
func (h *PrettyHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	h2 := *h
	if h.group != "" {
		h2.group = h.group + "." + name
	} else {
		h2.group = name
	}
	return &h2
}

func (h *PrettyHandler) paint(buf []byte, color string) []byte {
	if !h.color {
		return buf
	}
	return append(buf, color...)
}

// qualify resolves a and prefixes its key with group. Empty attributes come
// back as the zero Attr.
func qualify(a slog.Attr, group string) slog.Attr {
	a.Value = a.Value.Resolve()
	if a.Key == "" && a.Value.Kind() != slog.KindGroup {
		return slog.Attr{}
	}
	if group != "" && a.Key != "" {
		a.Key = group + "." + a.Key
	}
	return a
}

func isBlock(a slog.Attr) bool {
	return a.Value.Kind() == slog.KindString && strings.Contains(strings.TrimRight(a.Value.String(), "\n"), "\n")
}

func levelColor(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return colorRed
	case level >= slog.LevelWarn:
		return colorYellow
	case level >= slog.LevelInfo:
		return colorBlue
	default:
		return colorGray
	}
}

func padLevel(level string) string {
	if len(level) < 5 {
		return level + strings.Repeat(" ", 5-len(level))
	}
	return level
}

func appendAttr(buf []byte, attr slog.Attr) []byte {
	v := attr.Value
	if v.Kind() == slog.KindGroup {
		attrs := v.Group()
		if attr.Key == "" {
			for i, a := range attrs {
				if i > 0 {
					buf = append(buf, ' ')
				}
				buf = appendAttr(buf, a)
			}
			return buf
		}
		buf = append(buf, attr.Key...)
		buf = append(buf, "={"...)
		for i, a := range attrs {
			if i > 0 {
				buf = append(buf, ' ')
			}
			buf = appendAttr(buf, a)
		}
		return append(buf, '}')
	}

	buf = append(buf, attr.Key...)
	buf = append(buf, '=')
	switch v.Kind() {
	case slog.KindString:
		buf = appendString(buf, v.String())
	case slog.KindInt64:
		buf = strconv.AppendInt(buf, v.Int64(), 10)
	case slog.KindUint64:
		buf = strconv.AppendUint(buf, v.Uint64(), 10)
	case slog.KindFloat64:
		buf = strconv.AppendFloat(buf, v.Float64(), 'g', -1, 64)
	case slog.KindBool:
		buf = strconv.AppendBool(buf, v.Bool())
	case slog.KindDuration:
		buf = append(buf, v.Duration().String()...)
	case slog.KindTime:
		buf = v.Time().AppendFormat(buf, time.RFC3339)
	default:
		buf = appendString(buf, v.String())
	}
	return buf
}

func appendString(buf []byte, s string) []byte {
	if needsQuoting(s) {
		return strconv.AppendQuote(buf, s)
	}
	return append(buf, s...)
}

func needsQuoting(s string) bool {
	for _, c := range s {
		if c == ' ' || c == '\t' || c == '\n' || c == '"' || c == '=' {
			return true
		}
	}
	return false
}
