package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestWithAttrsOverridesByKey(t *testing.T) {
	var buf bytes.Buffer
	ctx := WithLogger(context.Background(), New(&buf, "debug", "text"))
	ctx = WithAttrs(ctx, slog.String("component", "a"), slog.String("site", "s1"))
	ctx = WithComponent(ctx, "b")

	Info(ctx, "hello", slog.String("site", "s2"))

	line := buf.String()
	if !strings.Contains(line, "component=b") || strings.Contains(line, "component=a") {
		t.Fatalf("component not overridden: %s", line)
	}
	if !strings.Contains(line, "site=s2") || strings.Contains(line, "site=s1") {
		t.Fatalf("site not overridden: %s", line)
	}
	if strings.Index(line, "component=") > strings.Index(line, "site=") {
		t.Fatalf("merged attrs lost base ordering: %s", line)
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	ctx := WithLogger(context.Background(), New(&buf, "warn", "json"))

	Info(ctx, "skipped")
	Debug(ctx, "skipped")
	Warn(ctx, "kept")

	out := buf.String()
	if strings.Contains(out, "skipped") {
		t.Fatalf("info/debug should be filtered: %s", out)
	}
	if !strings.Contains(out, `"msg":"kept"`) {
		t.Fatalf("warn should be logged as json: %s", out)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"error":   slog.LevelError,
		"verbose": slog.LevelInfo,
		"":        slog.LevelInfo,
	}
	for raw, want := range cases {
		if got := ParseLevel(raw); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", raw, got, want)
		}
	}
}
