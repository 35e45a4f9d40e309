package logging

import (
	"context"
	"log/slog"
	"testing"
)

func TestNewLevels(t *testing.T) {
	ctx := context.Background()

	debug := New("debug", "text")
	if !debug.Enabled(ctx, slog.LevelDebug) {
		t.Error("debug logger should enable debug level")
	}

	errOnly := New("error", "json")
	if errOnly.Enabled(ctx, slog.LevelInfo) {
		t.Error("error logger should not enable info level")
	}

	fallback := New("verbose", "text")
	if !fallback.Enabled(ctx, slog.LevelInfo) || fallback.Enabled(ctx, slog.LevelDebug) {
		t.Error("unknown level should fall back to info")
	}
}

func TestRequestIDRoundTrip(t *testing.T) {
	ctx := context.Background()
	if id := RequestID(ctx); id != "" {
		t.Errorf("empty context returned request ID %q", id)
	}

	ctx = WithRequestID(ctx, "req_abc")
	if id := RequestID(ctx); id != "req_abc" {
		t.Errorf("request ID = %q, want req_abc", id)
	}

	ctx = WithRequestID(ctx, "req_def")
	if id := RequestID(ctx); id != "req_def" {
		t.Errorf("request ID = %q after overwrite, want req_def", id)
	}
}

func TestLoggerRoundTrip(t *testing.T) {
	ctx := context.Background()
	if FromContext(ctx) == nil {
		t.Fatal("FromContext should fall back to the default logger")
	}

	custom := New("info", "json")
	ctx = WithLogger(ctx, custom)
	if FromContext(ctx) != custom {
		t.Error("FromContext did not return the stored logger")
	}
}

func TestL(t *testing.T) {
	ctx := WithLogger(context.Background(), New("info", "text"))
	if L(ctx) == nil {
		t.Fatal("L returned nil")
	}
	if L(WithRequestID(ctx, "req_1")) == nil {
		t.Fatal("L with request ID returned nil")
	}
}
