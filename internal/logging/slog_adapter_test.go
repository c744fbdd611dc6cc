// Satchel - School Platform Timetable & Task Sync
// Copyright 2026 M. Whitfield (satchelhq)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/satchelhq/satchel

package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestSlogHandlerWritesThroughZerolog(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	handler := &SlogHandler{logger: zerolog.New(&buf)}

	slogger := slog.New(handler)
	slogger.Info("test message", "service", "sync-coordinator")

	output := buf.String()
	if !strings.Contains(output, "test message") {
		t.Errorf("expected 'test message' in output: %s", output)
	}
	if !strings.Contains(output, "sync-coordinator") {
		t.Errorf("expected attribute in output: %s", output)
	}
	if !strings.Contains(output, `"level":"info"`) {
		t.Errorf("expected info level in output: %s", output)
	}
}

func TestSlogHandlerWithAttrs(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	handler := &SlogHandler{logger: zerolog.New(&buf)}

	child := handler.WithAttrs([]slog.Attr{slog.String("supervisor", "satchel")})
	slog.New(child).Warn("restarting")

	output := buf.String()
	if !strings.Contains(output, `"supervisor":"satchel"`) {
		t.Errorf("expected carried attribute in output: %s", output)
	}
	if !strings.Contains(output, `"level":"warn"`) {
		t.Errorf("expected warn level in output: %s", output)
	}
}

func TestSlogHandlerEnabled(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	handler := &SlogHandler{logger: zerolog.New(&buf).Level(zerolog.WarnLevel)}

	if handler.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("expected debug to be disabled at warn level")
	}
	if !handler.Enabled(context.Background(), slog.LevelError) {
		t.Error("expected error to be enabled at warn level")
	}
}

func TestSlogToZerologLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input    slog.Level
		expected zerolog.Level
	}{
		{slog.LevelDebug, zerolog.DebugLevel},
		{slog.LevelInfo, zerolog.InfoLevel},
		{slog.LevelWarn, zerolog.WarnLevel},
		{slog.LevelError, zerolog.ErrorLevel},
	}

	for _, tt := range tests {
		if result := slogToZerologLevel(tt.input); result != tt.expected {
			t.Errorf("slogToZerologLevel(%v) = %v, want %v", tt.input, result, tt.expected)
		}
	}
}
