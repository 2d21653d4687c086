package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerRoutesByLevel(t *testing.T) {
	dir := t.TempDir()
	l, err := New(dir, "info")
	require.NoError(t, err)
	defer l.Close()

	l.Info("restored %s", "a.jpg")
	l.Warning("queue at %d%%", 90)
	l.Error("decode failed: %v", "boom")
	l.Debug("hidden")

	info, err := os.ReadFile(filepath.Join(dir, InfoFile))
	require.NoError(t, err)
	warn, err := os.ReadFile(filepath.Join(dir, WarningFile))
	require.NoError(t, err)
	errs, err := os.ReadFile(filepath.Join(dir, ErrorFile))
	require.NoError(t, err)

	assert.Contains(t, string(info), "restored a.jpg")
	assert.NotContains(t, string(info), "hidden")
	assert.NotContains(t, string(info), "boom")
	assert.Contains(t, string(warn), "queue at 90%")
	assert.Contains(t, string(errs), "decode failed: boom")
}

func TestCleanLogs(t *testing.T) {
	dir := t.TempDir()
	l, err := New(dir, "info")
	require.NoError(t, err)
	defer l.Close()

	l.Error("something broke")
	require.NoError(t, l.CleanLogs(ErrorFile))

	data, err := os.ReadFile(filepath.Join(dir, ErrorFile))
	require.NoError(t, err)
	assert.Empty(t, data)

	assert.Error(t, l.CleanLogs("../../etc/passwd"))
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"INFO", zerolog.InfoLevel},
		{"warning", zerolog.WarnLevel},
		{"warn", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"nonsense", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLevel(tt.in), tt.in)
	}
}

func TestFileForLevel(t *testing.T) {
	name, ok := FileForLevel("warning")
	assert.True(t, ok)
	assert.Equal(t, WarningFile, name)

	_, ok = FileForLevel("trace")
	assert.False(t, ok)
}
