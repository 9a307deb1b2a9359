package log

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("%q expected %v, got %v", in, want, got)
		}
	}
}

func TestLoggerAddsComponent(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelDebug, Component: ComponentStore, Output: &buf})
	l.Info("hello", FieldYear, "2026")
	out := buf.String()
	if !strings.Contains(out, "component=period_store") || !strings.Contains(out, "year=2026") {
		t.Fatalf("unexpected output: %s", out)
	}

	buf.Reset()
	l.WithComponent(ComponentEditor).Debug("edited")
	if out := buf.String(); !strings.Contains(out, "component=row_editor") || strings.Contains(out, "period_store") {
		t.Fatalf("unexpected output after WithComponent: %s", out)
	}
}

func TestStructuredLogger(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(New(Config{Output: &buf, Component: ComponentEditor}))

	sl.LogPeriodSaved(context.Background(), OpAddRow, "2026", "يناير", "abc", 5)
	out := buf.String()
	for _, want := range []string{"operation=add_row", "entry_id=abc", "entries=5", "period_key=2026-يناير", "component=row_editor"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in %s", want, out)
		}
	}

	buf.Reset()
	sl.LogPeriodSaved(context.Background(), OpSetNotes, "2026", "يناير", "", 5)
	if strings.Contains(buf.String(), "entry_id") {
		t.Fatalf("period-wide edit should not log an entry id: %s", buf.String())
	}
}

func TestLogHTTPEndLevels(t *testing.T) {
	cases := map[int]string{
		http.StatusOK:                  "level=INFO",
		http.StatusNotFound:            "level=WARN",
		http.StatusInternalServerError: "level=ERROR",
	}
	for status, want := range cases {
		var buf bytes.Buffer
		sl := NewStructuredLogger(New(Config{Output: &buf, Component: ComponentTrace}))
		r := httptest.NewRequest(http.MethodGet, "/api/periods/2026/1", nil)
		sl.LogHTTPEnd(context.Background(), r, status, 3, "10.0.0.1")
		out := buf.String()
		if !strings.Contains(out, want) || !strings.Contains(out, "client_ip=10.0.0.1") {
			t.Fatalf("status %d: unexpected output %s", status, out)
		}
	}
}

func TestContextCarriesLogger(t *testing.T) {
	base := New(Config{Output: &bytes.Buffer{}, Component: ComponentHTTP})
	ctx := NewContext(context.Background(), base.WithComponent(ComponentEditor))
	if got := FromContext(ctx); got.Component() != ComponentEditor {
		t.Fatalf("expected component logger in context, got %q", got.Component())
	}

	if FromContext(context.Background()).Component() != ComponentApp {
		t.Fatalf("expected default logger outside requests")
	}
}
