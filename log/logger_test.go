package log

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	SetSink(&buf)
	defer SetSink(os.Stdout)

	SetLevel(Warning)
	defer SetLevel(Notice)

	logger := New("test")
	logger.Info("hidden")
	logger.Warningf("shown %d", 42)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown 42")
	assert.Contains(t, out, "[test]")
}

func TestParseLevel(t *testing.T) {
	lvl, ok := ParseLevel("DEBUG")
	require.True(t, ok)
	assert.Equal(t, Debug, lvl)

	lvl, ok = ParseLevel("warn")
	require.True(t, ok)
	assert.Equal(t, Warning, lvl)

	lvl, ok = ParseLevel("verbose")
	assert.False(t, ok)
	assert.Equal(t, Notice, lvl)
}
