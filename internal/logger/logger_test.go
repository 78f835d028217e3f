package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, LevelWarn, ParseLevel("warning"))
	assert.Equal(t, LevelNone, ParseLevel("off"))
	assert.Equal(t, LevelInfo, ParseLevel("bogus"))
}

// TestLevelFiltering verifies messages below the configured level are dropped.
func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New(LevelWarn, &buf)

	l.Info("hidden %d", 1)
	l.Warn("shown %d", 2)
	l.Error("also shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "[WARN] shown 2")
	assert.Contains(t, out, "[ERROR] also shown")
}

func TestWithPrefix(t *testing.T) {
	var buf bytes.Buffer
	l := New(LevelDebug, &buf).WithPrefix("server").WithPrefix("router")

	l.Debug("hello")
	assert.Contains(t, buf.String(), "[server:router] hello")
}

// TestGlobalDefaultsToDiscard verifies the package functions are safe before Init.
func TestGlobalDefaultsToDiscard(t *testing.T) {
	SetGlobal(nil)
	assert.NotPanics(t, func() { Info("nothing to see") })
}

func TestInitWithFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "chat.log")
	require.NoError(t, Init(LevelInfo, path, nil))
	t.Cleanup(func() {
		_ = Global().Close()
		SetGlobal(nil)
	})

	Info("written to %s", "file")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "written to file")
}
