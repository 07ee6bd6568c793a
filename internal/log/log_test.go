package log

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorIncludesErrAndFields(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf, LevelInfo)
	t.Cleanup(func() { SetOutput(&bytes.Buffer{}, LevelInfo) })

	Error("fetch failed", errors.New("boom"), "source", "calendar", "attempt", 2, "dangling")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "error", line["level"])
	assert.Equal(t, "fetch failed", line["message"])
	assert.Equal(t, "boom", line["error"])
	assert.Equal(t, "calendar", line["source"])
	assert.InDelta(t, 2, line["attempt"], 0)
	assert.NotContains(t, line, "dangling")
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf, LevelWarn)
	t.Cleanup(func() { SetOutput(&bytes.Buffer{}, LevelInfo) })

	Debug("hidden")
	Info("hidden too")
	Warn("shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Equal(t, 1, strings.Count(out, "\n"))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("debug"))
	assert.Equal(t, LevelWarn, ParseLevel("WARN"))
	assert.Equal(t, LevelError, ParseLevel("error"))
	assert.Equal(t, LevelInfo, ParseLevel(""))
	assert.Equal(t, LevelInfo, ParseLevel("verbose"))
}

type countingStringer struct{ n *int }

func (c countingStringer) String() string {
	*c.n++
	return "x"
}

func TestDisabledLevelSkipsFields(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf, LevelInfo)
	t.Cleanup(func() { SetOutput(&bytes.Buffer{}, LevelInfo) })

	calls := 0
	Debug("parse discard", "value", countingStringer{&calls})
	assert.Zero(t, calls)
	assert.Empty(t, buf.String())

	Info("shown", "value", countingStringer{&calls})
	assert.Equal(t, 1, calls)
}
