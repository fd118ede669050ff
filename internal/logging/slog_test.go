package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func textLogger(buf *bytes.Buffer) Logger {
	return NewSlogLogger(slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
}

func TestSlogLogger_EachLevel(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		level string
		log   func(Logger)
		want  string
	}{
		{"DEBUG", func(l Logger) { l.Debug(ctx, "retrying chunk", "attempt", 1) }, "attempt=1"},
		{"INFO", func(l Logger) { l.Info(ctx, "upload complete", "file_id", "f1") }, "file_id=f1"},
		{"WARN", func(l Logger) { l.Warn(ctx, "backend not configured", "missing", "client_id") }, "missing=client_id"},
		{"ERROR", func(l Logger) { l.Error(ctx, "finalize failed", "upload_id", "u9") }, "upload_id=u9"},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			tt.log(textLogger(&buf))

			out := buf.String()
			assert.Contains(t, out, "level="+tt.level)
			assert.Contains(t, out, tt.want)
		})
	}
}

func TestSlogLogger_WithBindsAttributes(t *testing.T) {
	var buf bytes.Buffer
	l := textLogger(&buf).With("upload_id", "u1").With("backend", "s3")

	l.Info(context.Background(), "chunk accepted", "range", "bytes 0-9/20")

	out := buf.String()
	for _, s := range []string{"upload_id=u1", "backend=s3", `range="bytes 0-9/20"`} {
		assert.Contains(t, out, s)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" INFO ":  slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseLevel(in), "level %q", in)
	}
}

func TestNewJSONLogger_FiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewJSONLogger(&buf, "warn")
	ctx := context.Background()

	l.Info(ctx, "quiet")
	l.Warn(ctx, "loud", "k", "v")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "loud", rec["msg"])
	assert.Equal(t, "v", rec["k"])
	assert.Equal(t, "WARN", rec["level"])
}

func TestDiscard(t *testing.T) {
	l := Discard()
	l.With("k", "v").Error(context.Background(), "dropped")
}
