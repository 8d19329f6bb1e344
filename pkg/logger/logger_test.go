package logger

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
	}{
		{"debug", DebugLevel},
		{"info", InfoLevel},
		{"warn", WarnLevel},
		{"warning", WarnLevel},
		{"error", ErrorLevel},
		{"bogus", InfoLevel},
		{"", InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseLevel(tt.input))
		})
	}
}

func TestLevelString(t *testing.T) {
	assert.Equal(t, "debug", DebugLevel.String())
	assert.Equal(t, "info", InfoLevel.String())
	assert.Equal(t, "warn", WarnLevel.String())
	assert.Equal(t, "error", ErrorLevel.String())
	assert.Equal(t, "unknown", Level(42).String())
}

func TestNewWithNilConfig(t *testing.T) {
	log := New(nil)
	require.NotNil(t, log)
	log.Info("message on default config")
	require.NoError(t, log.Close())
}

func TestWithDerivesLogger(t *testing.T) {
	log := New(&Config{Level: DebugLevel, Format: "json", Output: "stdout"})
	derived := log.With("agent_id", "A1")
	require.NotNil(t, derived)
	derived.Debug("derived logger works")
}

func TestFromContextFallsBackToGlobal(t *testing.T) {
	assert.Equal(t, Global(), FromContext(context.Background()))
}

func TestFromContextReturnsAttached(t *testing.T) {
	log := New(&Config{Level: InfoLevel, Format: "text", Output: "stderr"})
	ctx := log.WithContext(context.Background())
	assert.Equal(t, log, FromContext(ctx))
}

func TestSetGlobalReplacesLogger(t *testing.T) {
	prev := Global()
	t.Cleanup(func() { SetGlobal(prev) })

	log := New(&Config{Level: DebugLevel, Format: "text", Output: "stderr"})
	SetGlobal(log)
	assert.Equal(t, log, Global())

	// A second install wins as well.
	other := New(&Config{Level: WarnLevel, Format: "text", Output: "stderr"})
	SetGlobal(other)
	assert.Equal(t, other, Global())
}

func TestGlobalSetLevelReachesInstalledLogger(t *testing.T) {
	prev := Global()
	t.Cleanup(func() { SetGlobal(prev) })

	log := New(&Config{Level: InfoLevel, Format: "text", Output: "stderr"})
	SetGlobal(log)
	SetLevel(ErrorLevel)

	sl, ok := log.(*SlogLogger)
	require.True(t, ok)
	assert.Equal(t, slog.LevelError, sl.level.Level())
}

func TestSetLevel(t *testing.T) {
	log := New(&Config{Level: InfoLevel, Format: "text", Output: "stdout"})
	sl, ok := log.(*SlogLogger)
	require.True(t, ok)
	sl.SetLevel(ErrorLevel)
	sl.Debug("should be suppressed")
}
