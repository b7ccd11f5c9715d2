package log

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/kestrelworks/inkwell/internal/xerrors"
)

func newTestLogger(t *testing.T, buf *bytes.Buffer, level slog.Level) Logger {
	t.Helper()
	l, err := New(Options{App: "test", Level: level, JsonFormat: true, Writer: buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return l
}

func lastRecord(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	var m map[string]any
	if err := json.Unmarshal([]byte(lines[len(lines)-1]), &m); err != nil {
		t.Fatalf("unmarshal log line %q: %v", lines[len(lines)-1], err)
	}
	return m
}

func TestParseLevel(t *testing.T) {
	cases := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{" warn ", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"verbose", 0, true},
		{"", 0, true},
	}
	for _, c := range cases {
		got, err := ParseLevel(c.in)
		if c.wantErr {
			if err == nil {
				t.Errorf("ParseLevel(%q): expected error", c.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseLevel(%q): %v", c.in, err)
		}
		if got != c.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestInfo_EmitsFields(t *testing.T) {
	var buf bytes.Buffer
	l := newTestLogger(t, &buf, slog.LevelInfo)

	l.Info(context.Background(), "cache refreshed", "posts", 3, "series", 1)

	m := lastRecord(t, &buf)
	if m["msg"] != "cache refreshed" {
		t.Fatalf("msg = %v", m["msg"])
	}
	if m["app"] != "test" {
		t.Fatalf("app = %v", m["app"])
	}
	if m["posts"] != float64(3) {
		t.Fatalf("posts = %v", m["posts"])
	}
}

func TestWith_PropagatesAndIsolates(t *testing.T) {
	var buf bytes.Buffer
	l := newTestLogger(t, &buf, slog.LevelInfo)

	child := l.With("component", "gitcgi")
	child.Info(context.Background(), "spawned")

	m := lastRecord(t, &buf)
	if m["component"] != "gitcgi" {
		t.Fatalf("component = %v", m["component"])
	}

	buf.Reset()
	l.Info(context.Background(), "plain")
	m = lastRecord(t, &buf)
	if _, ok := m["component"]; ok {
		t.Fatal("parent logger should not inherit child fields")
	}
}

func TestError_IncludesErrorChain(t *testing.T) {
	var buf bytes.Buffer
	l := newTestLogger(t, &buf, slog.LevelInfo)

	err := xerrors.Wrap(io.ErrUnexpectedEOF, "reading cgi headers")
	l.Error(context.Background(), err, "git backend failed")

	m := lastRecord(t, &buf)
	if m["err"] != "reading cgi headers: unexpected EOF" {
		t.Fatalf("err = %v", m["err"])
	}
	if m["cause_type"] == nil || m["error_type"] == nil {
		t.Fatal("expected error_type and cause_type fields")
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := newTestLogger(t, &buf, slog.LevelWarn)

	l.Debug(context.Background(), "hidden")
	l.Info(context.Background(), "hidden too")
	if buf.Len() != 0 {
		t.Fatalf("expected no output below warn, got %q", buf.String())
	}

	l.Warn(context.Background(), "visible")
	if buf.Len() == 0 {
		t.Fatal("expected warn output")
	}
}

func TestFromContext_FallsBackToNop(t *testing.T) {
	l := FromContext(context.Background())
	if l == nil {
		t.Fatal("FromContext should never return nil")
	}
	// must not panic
	l.Info(context.Background(), "noop")
}

func TestWithContext_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	l := newTestLogger(t, &buf, slog.LevelInfo)

	ctx := WithContext(context.Background(), l)
	FromContext(ctx).Info(ctx, "via context")

	if !strings.Contains(buf.String(), "via context") {
		t.Fatalf("expected log output, got %q", buf.String())
	}
}
