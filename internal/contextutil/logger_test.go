package contextutil

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

type otherKey struct{}

func TestLoggerFromContext(t *testing.T) {
	custom := slog.Default().With("request_id", "abc")

	tests := []struct {
		name string
		ctx  context.Context
		want *slog.Logger
	}{
		{
			name: "no logger falls back to default",
			ctx:  context.Background(),
			want: slog.Default(),
		},
		{
			name: "logger set with WithLogger",
			ctx:  WithLogger(context.Background(), custom),
			want: custom,
		},
		{
			name: "unrelated values are ignored",
			ctx:  context.WithValue(context.Background(), otherKey{}, custom),
			want: slog.Default(),
		},
		{
			name: "nil logger falls back to default",
			ctx:  WithLogger(context.Background(), nil),
			want: slog.Default(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := LoggerFromContext(tt.ctx); got != tt.want {
				t.Errorf("LoggerFromContext() = %p, want %p", got, tt.want)
			}
		})
	}
}

func TestWith(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewTextHandler(&buf, nil)).With("request_id", "abc")

	ctx := With(WithLogger(context.Background(), base), "filename", "notes.md")
	LoggerFromContext(ctx).Info("uploaded")

	out := buf.String()
	for _, want := range []string{"request_id=abc", "filename=notes.md", "msg=uploaded"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output %q missing %q", out, want)
		}
	}
}
