package logging

import (
	"context"
	"log/slog"
	"testing"

	"github.com/corpuslabs/ragd/internal/config"
)

func Test_FromSettings_LevelAndFormat(t *testing.T) {
	t.Parallel()

	log := FromSettings(config.LoggingSettings{Level: "debug", Format: "text"})
	if !log.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("debug level must enable debug records")
	}

	log = FromSettings(config.LoggingSettings{Level: "error"})
	if log.Enabled(context.Background(), slog.LevelWarn) {
		t.Error("error level must suppress warn records")
	}

	// Empty settings fall back to info.
	log = FromSettings(config.LoggingSettings{})
	if log.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("default level must suppress debug records")
	}
	if !log.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("default level must enable info records")
	}
}

func Test_ParseLevel(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"bogus", slog.LevelInfo},
	}
	for _, tc := range cases {
		if got := parseLevel(tc.in); got != tc.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func Test_FromContext_Fallback(t *testing.T) {
	t.Parallel()

	if FromContext(context.Background()) == nil {
		t.Fatal("FromContext must never return nil")
	}

	log := slog.New(slog.DiscardHandler)
	ctx := WithLogger(context.Background(), log)
	if FromContext(ctx) != log {
		t.Error("FromContext must return the logger stored in the context")
	}
}
