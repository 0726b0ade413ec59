package logger_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/englishprint/papergen/internal/config"
	"github.com/englishprint/papergen/internal/platform/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupWithWriter(t *testing.T) {
	original := slog.Default()
	t.Cleanup(func() { slog.SetDefault(original) })

	buf := &logger.LogBuffer{}
	l, err := logger.SetupWithWriter(config.ServerConfig{LogLevel: "warn", Port: 8080}, buf)
	require.NoError(t, err)
	require.NotNil(t, l)

	l.Info("dropped")
	l.Warn("kept", "task_id", "abc")

	entries, err := buf.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "kept", entries[0]["msg"])
	assert.Equal(t, "WARN", entries[0]["level"])
	assert.Equal(t, "abc", entries[0]["task_id"])
	assert.Same(t, l, slog.Default(), "Setup should install the default logger")
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  slog.Level
		ok    bool
	}{
		{"debug", slog.LevelDebug, true},
		{"INFO", slog.LevelInfo, true},
		{"Warn", slog.LevelWarn, true},
		{"error", slog.LevelError, true},
		{"verbose", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
	}

	for _, tt := range tests {
		got, ok := logger.ParseLevel(tt.input)
		assert.Equal(t, tt.want, got, tt.input)
		assert.Equal(t, tt.ok, ok, tt.input)
	}
}

func TestFromContextOrDefault(t *testing.T) {
	t.Parallel()

	defaultLogger := slog.Default()
	customLogger, _ := logger.NewCaptureLogger()

	tests := []struct {
		name     string
		ctx      context.Context
		expected *slog.Logger
	}{
		{
			name:     "nil_context_returns_default",
			ctx:      nil,
			expected: defaultLogger,
		},
		{
			name:     "context_without_logger_returns_default",
			ctx:      context.Background(),
			expected: defaultLogger,
		},
		{
			name:     "context_with_logger_returns_context_logger",
			ctx:      logger.WithLogger(context.Background(), customLogger),
			expected: customLogger,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := logger.FromContextOrDefault(tt.ctx, defaultLogger) //nolint:staticcheck
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestWithLogger(t *testing.T) {
	t.Parallel()

	t.Run("valid_logger", func(t *testing.T) {
		customLogger, _ := logger.NewCaptureLogger()
		ctx := logger.WithLogger(context.Background(), customLogger)

		assert.Equal(t, customLogger, logger.FromContext(ctx))
	})

	t.Run("nil_logger_panics", func(t *testing.T) {
		assert.Panics(t, func() {
			logger.WithLogger(context.Background(), nil)
		})
	})
}
