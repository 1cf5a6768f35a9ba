package logger

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reset() {
	SetVerbose(false)
	SetOutput(os.Stderr)
}

func TestSetVerbose(t *testing.T) {
	defer reset()

	SetVerbose(false)
	assert.False(t, IsVerbose())

	SetVerbose(true)
	assert.True(t, IsVerbose())

	SetVerbose(false)
	assert.False(t, IsVerbose())
}

func TestDebug_WhenVerbose(t *testing.T) {
	defer reset()

	var buf bytes.Buffer
	SetOutput(&buf)
	SetVerbose(true)

	Debug("test message %s", "arg")

	assert.Contains(t, buf.String(), "level=debug")
	assert.Contains(t, buf.String(), "test message arg")
}

func TestDebug_WhenNotVerbose(t *testing.T) {
	defer reset()

	var buf bytes.Buffer
	SetOutput(&buf)

	Debug("hidden")

	assert.Zero(t, buf.Len())
}

func TestInfoAndWarn(t *testing.T) {
	defer reset()

	var buf bytes.Buffer
	SetOutput(&buf)

	Info("public ip is %s", "203.0.113.7")
	Warn("slow service")

	out := buf.String()
	assert.Contains(t, out, "level=info")
	assert.Contains(t, out, "public ip is 203.0.113.7")
	assert.Contains(t, out, "level=warning")
}

func TestSetLevel(t *testing.T) {
	defer reset()

	var buf bytes.Buffer
	SetOutput(&buf)

	require.NoError(t, SetLevel("error"))
	Warn("dropped")
	Error("kept")

	assert.NotContains(t, buf.String(), "dropped")
	assert.Contains(t, buf.String(), "kept")

	assert.Error(t, SetLevel("loud"))
}

func TestWith(t *testing.T) {
	defer reset()

	var buf bytes.Buffer
	SetOutput(&buf)

	With(map[string]any{"service": "http://ident.me/"}).Info("answered")

	assert.Contains(t, buf.String(), "service=http://ident.me/")
}
