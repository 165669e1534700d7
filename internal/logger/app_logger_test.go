package logger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := NewAppLogger(&buf, WARN)

	log.Debug("debug %d", 1)
	log.Info("info %d", 2)
	assert.Empty(t, buf.String(), "messages below the level are suppressed")

	log.Warn("warn %d", 3)
	log.Error("error %d", 4)

	out := buf.String()
	assert.Contains(t, out, "WARN: warn 3")
	assert.Contains(t, out, "ERROR: error 4")
}

func TestAppLogger_SetLogLevelFromString(t *testing.T) {
	var buf bytes.Buffer
	log := NewAppLogger(&buf, ERROR)

	require.NoError(t, log.SetLogLevelFromString("debug"))
	log.Debug("now visible")
	assert.Contains(t, buf.String(), "DEBUG: now visible")

	assert.Error(t, log.SetLogLevelFromString("verbose"))
}

func TestAppLogger_LineFormat(t *testing.T) {
	var buf bytes.Buffer
	log := NewAppLogger(&buf, TRACE)

	log.Info("hello %s", "world")
	line := buf.String()
	assert.Regexp(t, `^\[\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}.*\] INFO: hello world\n$`, line)
}

func TestGetAppLogger_Singleton(t *testing.T) {
	assert.Same(t, GetAppLogger(), GetAppLogger())
}
