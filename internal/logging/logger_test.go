package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestConsoleOutput verifies messages reach the configured console writer.
func TestConsoleOutput(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(Options{Console: &buf})

	l.Info().Str("command", "returnTicker").Msg("dispatching")

	out := buf.String()
	assert.Contains(t, out, "dispatching")
	assert.Contains(t, out, "returnTicker")
}

// TestFileOutput verifies JSON lines are written to the rotated log file.
func TestFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.log")
	l := NewLogger(Options{File: path, Quiet: true})

	l.Warnf("retrying after %d attempts", 2)
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"level":"warn"`)
	assert.Contains(t, string(data), "retrying after 2 attempts")
}

// TestChildKeepsFields verifies child loggers carry their extra fields.
func TestChildKeepsFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(Options{Console: &buf})

	child := l.Child(func(c zerolog.Context) zerolog.Context {
		return c.Str("client", "PrivateClient")
	})
	child.Info().Msg("hello")

	assert.Contains(t, buf.String(), "PrivateClient")
}

// TestNopDiscards verifies the nop logger never writes.
func TestNopDiscards(t *testing.T) {
	l := Nop()
	l.Error().Msg("ignored")
	assert.NoError(t, l.Close())
}

// TestParseLevel verifies level names and the info fallback.
func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, ParseLevel("debug"))
	assert.Equal(t, zerolog.WarnLevel, ParseLevel("warn"))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel(""))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("loud"))
}
