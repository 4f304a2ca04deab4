package observe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var entries []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("log line is not JSON: %v\n%s", err, line)
		}
		entries = append(entries, entry)
	}
	return entries
}

func TestLogger_OperationFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("info", &buf).With(OperationMeta{
		Name:     "GetPosts",
		Type:     "query",
		QueryID:  "recent-posts",
		CacheKey: "abc",
	})

	logger.Info(context.Background(), "cache hit", F("duration_ms", 1.5))

	entries := decodeLines(t, &buf)
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	entry := entries[0]

	want := map[string]any{
		"msg":                    "cache hit",
		"level":                  "info",
		"graphql.operation.name": "GetPosts",
		"graphql.operation.type": "query",
		"querycache.query_id":    "recent-posts",
		"querycache.key":         "abc",
		"duration_ms":            1.5,
	}
	for k, v := range want {
		if entry[k] != v {
			t.Errorf("entry[%q] = %v, want %v", k, entry[k], v)
		}
	}
	if _, ok := entry["timestamp"]; !ok {
		t.Error("entry has no timestamp")
	}
}

func TestLogger_Redaction(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("debug", &buf)

	logger.Debug(context.Background(), "request",
		F("variables", map[string]any{"password": "hunter2"}),
		F("token", "secret-token"),
		F("operation", "GetPosts"),
	)

	entry := decodeLines(t, &buf)[0]
	if entry["variables"] != "[REDACTED]" {
		t.Errorf("variables = %v, want [REDACTED]", entry["variables"])
	}
	if entry["token"] != "[REDACTED]" {
		t.Errorf("token = %v, want [REDACTED]", entry["token"])
	}
	if entry["operation"] != "GetPosts" {
		t.Errorf("operation = %v, want GetPosts", entry["operation"])
	}
}

func TestLogger_ErrorValues(t *testing.T) {
	var buf bytes.Buffer
	NewLoggerWithWriter("info", &buf).Warn(context.Background(), "backend degraded", F("error", errors.New("connection refused")))

	entry := decodeLines(t, &buf)[0]
	if entry["error"] != "connection refused" {
		t.Errorf("error = %v, want %q", entry["error"], "connection refused")
	}
	if entry["level"] != "warn" {
		t.Errorf("level = %v, want warn", entry["level"])
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	tests := []struct {
		level string
		want  int
	}{
		{"debug", 4},
		{"info", 3},
		{"warn", 2},
		{"error", 1},
		{"bogus", 3},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewLoggerWithWriter(tt.level, &buf)
			ctx := context.Background()
			logger.Debug(ctx, "d")
			logger.Info(ctx, "i")
			logger.Warn(ctx, "w")
			logger.Error(ctx, "e")

			if got := len(decodeLines(t, &buf)); got != tt.want {
				t.Errorf("level %q wrote %d entries, want %d", tt.level, got, tt.want)
			}
		})
	}
}

func TestLogger_WithDoesNotLeakIntoParent(t *testing.T) {
	var buf bytes.Buffer
	parent := NewLoggerWithWriter("info", &buf)
	_ = parent.With(OperationMeta{Name: "Child"})

	parent.Info(context.Background(), "parent")
	entry := decodeLines(t, &buf)[0]
	if _, ok := entry["graphql.operation.name"]; ok {
		t.Error("parent logger carries child operation fields")
	}
}

func TestNopLogger(t *testing.T) {
	logger := NopLogger()
	ctx := context.Background()
	logger.Info(ctx, "x")
	logger.With(OperationMeta{}).Error(ctx, "y")
}

func TestParseLogLevel(t *testing.T) {
	for _, s := range []string{"debug", "info", "warn", "error"} {
		if got := ParseLogLevel(s).String(); got != s {
			t.Errorf("ParseLogLevel(%q).String() = %q, want %q", s, got, s)
		}
	}
}
