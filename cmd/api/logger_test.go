package main

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestRedactURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"postgres://app:s3cret@db:5432/marketplace", "postgres://app@db:5432/marketplace"},
		{"redis://:s3cret@cache:6379/0", "redis://redacted@cache:6379/0"},
		{"postgres://db/marketplace?password=s3cret&sslmode=disable", "postgres://db/marketplace?password=redacted&sslmode=disable"},
		{"redis://cache:6379", "redis://cache:6379"},
	}
	for _, tt := range tests {
		if got := redactURL(tt.in); got != tt.want {
			t.Errorf("redactURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSanitizeError(t *testing.T) {
	dsn := "postgres://app:s3cret@db:5432/marketplace"
	err := errors.New("connect " + dsn + " failed: password=hunter2 rejected")

	got := sanitizeError(err, dsn, "")
	if strings.Contains(got, "s3cret") || strings.Contains(got, "hunter2") {
		t.Errorf("secret leaked: %q", got)
	}
	if !strings.Contains(got, "postgres://app@db:5432/marketplace") || !strings.Contains(got, "password=redacted") {
		t.Errorf("sanitizeError() = %q", got)
	}
	if sanitizeError(nil) != "" {
		t.Error("nil error should render empty")
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		" WARN ":  zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"":        zapcore.InfoLevel,
		"verbose": zapcore.InfoLevel,
	}
	for in, want := range tests {
		if got := parseLogLevel(in); got != want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewLogger(t *testing.T) {
	for _, format := range []string{"json", "console"} {
		logger, flush, err := newLogger("warn", format)
		if err != nil {
			t.Fatalf("newLogger(%s) error = %v", format, err)
		}
		if logger.Handler().Enabled(context.Background(), slog.LevelDebug) {
			t.Errorf("%s logger should drop debug at warn level", format)
		}
		flush()
	}
}
