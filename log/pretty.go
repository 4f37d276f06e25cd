package log

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/fatih/color"
)

type palette struct {
	key, str, num, boolean, dur, tm, err *color.Color
	levels                               map[slog.Level]*color.Color
	trace                                *color.Color
}

func newPalette(enable bool) *palette {
	mk := func(attrs ...color.Attribute) *color.Color {
		c := color.New(attrs...)
		if enable {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
		return c
	}
	return &palette{
		key:     mk(color.FgHiBlack),
		str:     mk(color.FgCyan),
		num:     mk(color.FgYellow),
		boolean: mk(color.FgGreen),
		dur:     mk(color.FgMagenta),
		tm:      mk(color.FgBlue),
		err:     mk(color.FgRed),
		trace:   mk(color.FgHiBlack, color.Bold),
		levels: map[slog.Level]*color.Color{
			slog.LevelDebug: mk(color.FgBlue, color.Bold),
			slog.LevelInfo:  mk(color.FgGreen, color.Bold),
			slog.LevelWarn:  mk(color.FgYellow, color.Bold),
			slog.LevelError: mk(color.FgRed, color.Bold),
		},
	}
}

func (p *palette) level(l slog.Level) *color.Color {
	switch {
	case l >= slog.LevelError:
		return p.levels[slog.LevelError]
	case l >= slog.LevelWarn:
		return p.levels[slog.LevelWarn]
	case l >= slog.LevelInfo:
		return p.levels[slog.LevelInfo]
	case l >= slog.LevelDebug:
		return p.levels[slog.LevelDebug]
	default:
		return p.trace
	}
}

// prettyHandler writes one line per record:
//
//	TIME LEVEL message key=value ...
//
// Attributes added with WithAttrs are rendered once and prefixed to every
// record; groups qualify keys with dots.
type prettyHandler struct {
	opts   slog.HandlerOptions
	colors *palette
	mu     *sync.Mutex
	w      io.Writer
	prefix string
	preset []byte
}

func newPrettyHandler(w io.Writer, opts *slog.HandlerOptions, colorize bool) *prettyHandler {
	return &prettyHandler{
		opts:   *opts,
		colors: newPalette(colorize),
		mu:     &sync.Mutex{},
		w:      w,
	}
}

func (h *prettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	threshold := slog.LevelInfo
	if h.opts.Level != nil {
		threshold = h.opts.Level.Level()
	}
	return level >= threshold
}

func (h *prettyHandler) Handle(_ context.Context, r slog.Record) error {
	buf := new(bytes.Buffer)

	if !r.Time.IsZero() {
		if a := h.replace(nil, slog.Time(slog.TimeKey, r.Time)); !a.Equal(slog.Attr{}) {
			buf.WriteString(h.colors.key.Sprint(a.Value.String()))
			buf.WriteByte(' ')
		}
	}

	name := slog.Any(slog.LevelKey, r.Level)
	if a := h.replace(nil, name); a.Value.Kind() == slog.KindString {
		name = a
	} else {
		name = slog.String(slog.LevelKey, r.Level.String())
	}
	buf.WriteString(h.colors.level(r.Level).Sprintf("%-5s", name.Value.String()))
	buf.WriteByte(' ')

	if h.opts.AddSource {
		if file, line := recordSource(r); file != "" {
			buf.WriteString(h.colors.key.Sprintf("%s:%d", shortPath(file), line))
			buf.WriteByte(' ')
		}
	}

	buf.WriteString(r.Message)
	buf.Write(h.preset)

	r.Attrs(func(a slog.Attr) bool {
		h.writeAttr(buf, h.prefix, a)
		return true
	})
	buf.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.w.Write(buf.Bytes())
	return err
}

func (h *prettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	buf := bytes.NewBuffer(append([]byte(nil), h.preset...))
	for _, a := range attrs {
		h.writeAttr(buf, h.prefix, a)
	}
	c := *h
	c.preset = buf.Bytes()
	return &c
}

func (h *prettyHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	c := *h
	c.prefix = h.prefix + name + "."
	return &c
}

func (h *prettyHandler) replace(groups []string, a slog.Attr) slog.Attr {
	if h.opts.ReplaceAttr == nil {
		return a
	}
	return h.opts.ReplaceAttr(groups, a)
}

func (h *prettyHandler) writeAttr(buf *bytes.Buffer, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	if a.Value.Kind() == slog.KindGroup {
		attrs := a.Value.Group()
		if a.Key != "" {
			prefix += a.Key + "."
		}
		for _, ga := range attrs {
			h.writeAttr(buf, prefix, ga)
		}
		return
	}
	buf.WriteByte(' ')
	buf.WriteString(h.colors.key.Sprint(prefix + a.Key + "="))
	h.writeValue(buf, a.Key, a.Value)
}

func (h *prettyHandler) writeValue(buf *bytes.Buffer, key string, v slog.Value) {
	c := h.colors
	switch v.Kind() {
	case slog.KindString:
		s := v.String()
		if key == "error" || key == "err" {
			buf.WriteString(c.err.Sprint(quoteIfNeeded(s)))
			return
		}
		buf.WriteString(c.str.Sprint(quoteIfNeeded(s)))
	case slog.KindInt64:
		buf.WriteString(c.num.Sprint(strconv.FormatInt(v.Int64(), 10)))
	case slog.KindUint64:
		buf.WriteString(c.num.Sprint(strconv.FormatUint(v.Uint64(), 10)))
	case slog.KindFloat64:
		buf.WriteString(c.num.Sprint(strconv.FormatFloat(v.Float64(), 'g', -1, 64)))
	case slog.KindBool:
		buf.WriteString(c.boolean.Sprint(strconv.FormatBool(v.Bool())))
	case slog.KindDuration:
		buf.WriteString(c.dur.Sprint(v.Duration().String()))
	case slog.KindTime:
		buf.WriteString(c.tm.Sprint(v.Time().Format(time.RFC3339)))
	default:
		if err, ok := v.Any().(error); ok {
			buf.WriteString(c.err.Sprint(quoteIfNeeded(err.Error())))
			return
		}
		buf.WriteString(c.str.Sprint(quoteIfNeeded(fmt.Sprint(v.Any()))))
	}
}

func quoteIfNeeded(s string) string {
	if s == "" {
		return `""`
	}
	for _, r := range s {
		if unicode.IsSpace(r) || r == '"' || r == '=' || !unicode.IsPrint(r) {
			return strconv.Quote(s)
		}
	}
	return s
}

// shortPath keeps the file and its directory.
func shortPath(file string) string {
	i := strings.LastIndexByte(file, '/')
	if i < 0 {
		return file
	}
	if j := strings.LastIndexByte(file[:i], '/'); j >= 0 {
		return file[j+1:]
	}
	return file
}

func recordSource(r slog.Record) (string, int) {
	if r.PC == 0 {
		return "", 0
	}
	f, _ := runtime.CallersFrames([]uintptr{r.PC}).Next()
	return f.File, f.Line
}
