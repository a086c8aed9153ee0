package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerFormatsComponentAndLevel(t *testing.T) {
	var buf bytes.Buffer
	log := NewLoggerTo("pool", &buf)

	log.Infof("acquired session %s", "abc-123")

	line := buf.String()
	assert.Contains(t, line, "[pool]")
	assert.Contains(t, line, "[INFO]")
	assert.Contains(t, line, "acquired session abc-123")
}

func TestLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	log := NewLoggerTo("dispatch", &buf)

	log.Debugf("d")
	log.Warnf("w")
	log.Errorf("e")

	out := buf.String()
	assert.Contains(t, out, "[DEBUG]")
	assert.Contains(t, out, "[WARN]")
	assert.Contains(t, out, "[ERROR]")
	assert.Equal(t, 3, strings.Count(out, "\n"))
}

func TestRunIDSharedAcrossComponents(t *testing.T) {
	a := NewLoggerTo("pool", &bytes.Buffer{})
	b := NewLoggerTo("queue", &bytes.Buffer{})

	require.NotEmpty(t, a.RunID())
	assert.Equal(t, a.RunID(), b.RunID())
}

func TestFileLoggerWritesToRunFile(t *testing.T) {
	dir := t.TempDir()

	log, err := NewFileLogger("gateway", dir)
	require.NoError(t, err)
	defer log.Close()

	log.Infof("starting up")
	require.NoError(t, log.Close())

	path := filepath.Join(dir, log.RunID()+"-gateway.log")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "starting up")
}

func TestFileLoggerFallsBackOnBadDir(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0600))

	log, err := NewFileLogger("gateway", blocker)
	assert.Error(t, err)
	require.NotNil(t, log, "a usable stderr logger must still come back")
	log.Infof("still alive") // must not panic
}
