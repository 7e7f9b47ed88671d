// Copyright 2026 The Hivebase Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package logger

import (
	"context"
	"log/slog"
	"testing"
	"time"
)

type recordingHandler struct {
	level   slog.Level
	records []slog.Record
}

func (h *recordingHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *recordingHandler) Handle(_ context.Context, r slog.Record) error {
	h.records = append(h.records, r)
	return nil
}

func (h *recordingHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *recordingHandler) WithGroup(string) slog.Handler      { return h }

func TestParseLevel(t *testing.T) {
	cases := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"ERROR", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tc := range cases {
		if got := parseLevel(tc.in); got != tc.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

// TestPurpose: Validates that the fanout delivers each record only to the
// sinks enabled for its level.
func TestFanout(t *testing.T) {
	ctx := context.Background()
	info := &recordingHandler{level: slog.LevelInfo}
	errOnly := &recordingHandler{level: slog.LevelError}
	fanout := Fanout(info, errOnly)

	// 1. Enabled when any sink is enabled
	if !fanout.Enabled(ctx, slog.LevelInfo) {
		t.Error("fanout should be enabled at info")
	}
	if fanout.Enabled(ctx, slog.LevelDebug) {
		t.Error("fanout should be disabled at debug")
	}

	// 2. An info record reaches only the info sink
	r := slog.NewRecord(time.Now(), slog.LevelInfo, "credential created", 0)
	if err := fanout.Handle(ctx, r); err != nil {
		t.Fatalf("handle failed: %v", err)
	}
	if len(info.records) != 1 || len(errOnly.records) != 0 {
		t.Errorf("expected 1/0 records, got %d/%d", len(info.records), len(errOnly.records))
	}

	// 3. An error record reaches both
	r = slog.NewRecord(time.Now(), slog.LevelError, "login failed", 0)
	if err := fanout.Handle(ctx, r); err != nil {
		t.Fatalf("handle failed: %v", err)
	}
	if len(info.records) != 2 || len(errOnly.records) != 1 {
		t.Errorf("expected 2/1 records, got %d/%d", len(info.records), len(errOnly.records))
	}
}

// TestPurpose: Validates that records logged outside a span carry no trace
// attributes and pass through unchanged.
func TestSpanContextHandler_NoSpan(t *testing.T) {
	sink := &recordingHandler{level: slog.LevelInfo}
	h := &spanContextHandler{next: sink}

	r := slog.NewRecord(time.Now(), slog.LevelInfo, "plain record", 0)
	if err := h.Handle(context.Background(), r); err != nil {
		t.Fatalf("handle failed: %v", err)
	}
	if len(sink.records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(sink.records))
	}
	sink.records[0].Attrs(func(a slog.Attr) bool {
		if a.Key == "trace_id" || a.Key == "span_id" {
			t.Errorf("unexpected trace attribute %q", a.Key)
		}
		return true
	})
}
