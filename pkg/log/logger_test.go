package log

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func newBufferLogger(level Level, f Formatter) (Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	l := NewLogger(WithLevel(level), WithFormatter(f), WithOutput(NewWriterOutput(&buf)))
	return l, &buf
}

func TestLevelFiltering(t *testing.T) {
	l, buf := newBufferLogger(WarnLevel, &TextFormatter{DisableTimestamp: true})
	l.Info("hidden")
	l.Warn("shown", Str("queue", "ORDERS"))
	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info should be filtered: %q", out)
	}
	if !strings.Contains(out, "WARN  shown queue=ORDERS") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestWithFieldsInherited(t *testing.T) {
	l, buf := newBufferLogger(DebugLevel, &TextFormatter{DisableTimestamp: true})
	child := l.With(Component("session"), Str("session", "abc"))
	child.Debug("received", Int("type", 12))
	l.Debug("parent")
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("want 2 lines, got %d: %q", len(lines), buf.String())
	}
	if !strings.Contains(lines[0], "component=session") || !strings.Contains(lines[0], "session=abc") || !strings.Contains(lines[0], "type=12") {
		t.Fatalf("child fields missing: %q", lines[0])
	}
	if strings.Contains(lines[1], "component=") {
		t.Fatalf("parent must not inherit child fields: %q", lines[1])
	}
}

func TestJSONFormatterError(t *testing.T) {
	l, buf := newBufferLogger(InfoLevel, &JSONFormatter{})
	l.Error("put failed", Err(errors.New("queue suspended")), Str("queue", "Q1"))
	var m map[string]any
	if err := json.Unmarshal(buf.Bytes(), &m); err != nil {
		t.Fatalf("decode: %v (%q)", err, buf.String())
	}
	if m["msg"] != "put failed" || m["level"] != "ERROR" {
		t.Fatalf("unexpected entry: %v", m)
	}
	if m["error"] != "queue suspended" {
		t.Fatalf("error field: %v", m["error"])
	}
}

func TestRedaction(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(
		WithFormatter(&TextFormatter{DisableTimestamp: true}),
		WithOutput(NewWriterOutput(&buf)),
		WithRedactions("password"),
	)
	l.Info("auth", Str("user", "alice"), Str("password", "s3cret"))
	if strings.Contains(buf.String(), "s3cret") {
		t.Fatalf("password leaked: %q", buf.String())
	}
}

func TestSampling(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(
		WithFormatter(&TextFormatter{DisableTimestamp: true}),
		WithOutput(NewWriterOutput(&buf)),
		WithSampling(2, 3),
	)
	for i := 0; i < 8; i++ {
		l.Info("poll")
	}
	// kept: #0, #1, then #2, #5 (every third after the first two)
	if got := strings.Count(buf.String(), "poll"); got != 4 {
		t.Fatalf("want 4 sampled entries, got %d", got)
	}
}

func TestParseLevelAndApplyConfig(t *testing.T) {
	if lvl, err := ParseLevel("DEBUG"); err != nil || lvl != DebugLevel {
		t.Fatalf("parse debug: %v %v", lvl, err)
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
	if _, err := ApplyConfig(&Config{Format: "xml"}); err == nil {
		t.Fatalf("expected error for unknown format")
	}
	l, err := ApplyConfig(&Config{Level: "warn", Format: "json", Outputs: []OutputConfig{{Type: "null"}}})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if l.GetLevel() != WarnLevel {
		t.Fatalf("level not applied")
	}
}

func TestToStdLogger(t *testing.T) {
	l, buf := newBufferLogger(InfoLevel, &TextFormatter{DisableTimestamp: true})
	std := ToStdLogger(l, WarnLevel)
	std.Printf("pebble: compaction %d", 3)
	if !strings.Contains(buf.String(), "WARN  pebble: compaction 3") {
		t.Fatalf("unexpected %q", buf.String())
	}
}
