package log

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"testing"
)

func TestMakeDefaults(t *testing.T) {
	var buf bytes.Buffer
	logger := Make(&buf)

	if logger.Level() != LevelInfo {
		t.Errorf("expected default level info, got %v", logger.Level())
	}
	if logger.Format() != FormatText {
		t.Errorf("expected default format text, got %v", logger.Format())
	}
	if logger.caller {
		t.Error("expected caller disabled by default")
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := Make(&buf, WithLevel(LevelWarn), WithPretty(false))

	logger.Info("quiet")
	if buf.Len() > 0 {
		t.Errorf("info logged at warn level: %s", buf.String())
	}
	logger.Warn("loud")
	if !strings.Contains(buf.String(), "loud") {
		t.Errorf("warn message missing: %s", buf.String())
	}
}

func TestTraceLevelName(t *testing.T) {
	var buf bytes.Buffer
	logger := Make(&buf, WithLevel(LevelTrace), WithFormat(FormatJSON))
	logger.Trace("deep", slog.Int("n", 3))

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("invalid JSON %q: %v", buf.String(), err)
	}
	if rec["level"] != "TRACE" {
		t.Errorf("expected level TRACE, got %v", rec["level"])
	}
	if rec["msg"] != "deep" || rec["n"] != float64(3) {
		t.Errorf("unexpected record: %v", rec)
	}
}

func TestTimeLayout(t *testing.T) {
	tests := []struct {
		layout string
		check  func(string) bool
	}{
		{"none", func(s string) bool { return !strings.Contains(s, "time=") }},
		{"", func(s string) bool { return !strings.Contains(s, "time=") }},
		{"RFC3339Nano", func(s string) bool { return strings.Contains(s, "time=") && strings.Contains(s, ".") }},
		{"kitchen", func(s string) bool { return strings.Contains(s, "M ") }},
	}
	for _, tt := range tests {
		t.Run(tt.layout, func(t *testing.T) {
			var buf bytes.Buffer
			Make(&buf, WithTimeLayout(tt.layout), WithPretty(false)).Info("x")
			if !tt.check(buf.String()) {
				t.Errorf("layout %q produced %q", tt.layout, buf.String())
			}
		})
	}
}

func TestCaller(t *testing.T) {
	var buf bytes.Buffer
	logger := Make(&buf, WithCaller(true), WithFormat(FormatJSON))
	logger.Info("where")

	if !strings.Contains(buf.String(), "log_test.go") {
		t.Errorf("expected caller file in output, got %s", buf.String())
	}
}

func TestPrettyCaller(t *testing.T) {
	var buf bytes.Buffer
	logger := Make(&buf, WithCaller(true), WithTimeLayout("none"), WithColor(false))
	logger.Info("where")

	if !strings.Contains(buf.String(), "log_test.go:") {
		t.Errorf("expected caller file:line in pretty output, got %q", buf.String())
	}

	buf.Reset()
	Make(&buf, WithTimeLayout("none"), WithColor(false)).Info("nowhere")
	if strings.Contains(buf.String(), "log_test.go") {
		t.Errorf("caller disabled but got %q", buf.String())
	}
}

func TestPrettyHandler(t *testing.T) {
	var buf bytes.Buffer
	logger := Make(&buf, WithTimeLayout("none"), WithColor(false)).
		With(slog.String("component", "parser"))

	logger.Info("reparse done",
		slog.String("strategy", "splice"),
		slog.Int("attempts", 1),
		slog.Group("range", slog.Int("start", 4), slog.Int("end", 9)),
		slog.String("note", "two words"),
	)

	want := `INFO  reparse done component=parser strategy=splice attempts=1 range.start=4 range.end=9 note="two words"` + "\n"
	if buf.String() != want {
		t.Errorf("got  %q\nwant %q", buf.String(), want)
	}
}

func TestPrettyHandlerColor(t *testing.T) {
	var buf bytes.Buffer
	Make(&buf, WithTimeLayout("none"), WithColor(true)).Error("boom", slog.Any("error", errors.New("bad")))

	if !strings.Contains(buf.String(), "\x1b[") {
		t.Errorf("expected ANSI colors, got %q", buf.String())
	}
	if !strings.Contains(buf.String(), "ERROR") || !strings.Contains(buf.String(), "bad") {
		t.Errorf("unexpected output %q", buf.String())
	}
}

func TestPrettyHandlerGroup(t *testing.T) {
	var buf bytes.Buffer
	logger := Make(&buf, WithTimeLayout("none"), WithColor(false), WithLevel(LevelDebug)).WithGroup("lsp")
	logger.Debug("open", slog.String("uri", "file:///a.mjson5"))

	if !strings.Contains(buf.String(), "lsp.uri=file:///a.mjson5") {
		t.Errorf("expected grouped key, got %q", buf.String())
	}
}

func TestWrapKeepsSettings(t *testing.T) {
	var buf bytes.Buffer
	base := Make(&buf, WithLevel(LevelDebug), WithFormat(FormatJSON))
	wrapped := base.Wrap(WithLevel(LevelError))

	if wrapped.Format() != FormatJSON {
		t.Errorf("format lost by Wrap: %v", wrapped.Format())
	}
	if base.Level() != LevelDebug || wrapped.Level() != LevelError {
		t.Errorf("levels = %v, %v", base.Level(), wrapped.Level())
	}
}

func TestZeroLogger(t *testing.T) {
	var l Logger
	l.Info("ignored")
	if l.Level() != DefaultLevel || l.Format() != DefaultFormat {
		t.Error("zero logger does not report defaults")
	}
	if l.Slog() == nil {
		t.Error("zero logger has no slog logger")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
		ok   bool
	}{
		{"trace", LevelTrace, true},
		{"TRACE", LevelTrace, true},
		{"debug", LevelDebug, true},
		{"Info", LevelInfo, true},
		{"warn", LevelWarn, true},
		{"error", LevelError, true},
		{"debug+2", LevelDebug + 2, true},
		{"loud", DefaultLevel, false},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err == nil) != tt.ok || got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, %v", tt.in, got, err)
		}
	}
}

func TestParseFormat(t *testing.T) {
	if f, err := ParseFormat(" JSON "); err != nil || f != FormatJSON {
		t.Errorf("ParseFormat(JSON) = %v, %v", f, err)
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Error("expected error for xml")
	}
	var f Format
	if err := f.UnmarshalText([]byte("text")); err != nil || f != FormatText {
		t.Errorf("UnmarshalText = %v, %v", f, err)
	}
}

func TestLevelsAndFormats(t *testing.T) {
	if got := slices.Collect(Levels()); !slices.Equal(got, []string{"trace", "debug", "info", "warn", "error"}) {
		t.Errorf("Levels() = %v", got)
	}
	if got := slices.Collect(Formats()); !slices.Equal(got, []string{"text", "json"}) {
		t.Errorf("Formats() = %v", got)
	}
}

func TestPackageFunctions(t *testing.T) {
	original := Default()
	defer func() {
		defaultMu.Lock()
		defaultLog = original
		defaultMu.Unlock()
	}()

	var buf bytes.Buffer
	Config(WithOutput(&buf), WithLevel(LevelTrace), WithFormat(FormatJSON))

	tests := []struct {
		fn    func(string, ...slog.Attr)
		level string
	}{
		{Trace, "TRACE"},
		{Debug, "DEBUG"},
		{Info, "INFO"},
		{Warn, "WARN"},
		{Error, "ERROR"},
	}
	for _, tt := range tests {
		buf.Reset()
		tt.fn("message", slog.String("key", "value"))
		out := buf.String()
		if !strings.Contains(out, `"level":"`+tt.level+`"`) || !strings.Contains(out, `"key":"value"`) {
			t.Errorf("%s: unexpected output %s", tt.level, out)
		}
	}
}
