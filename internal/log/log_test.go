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

func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() {
		SetFormat(FormatText)
		SetOutput(nil)
		SetLevel(LevelInfo)
	})
	return &buf
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", LevelDebug},
		{" WARN ", LevelWarn},
		{"warning", LevelWarn},
		{"error", LevelError},
		{"info", LevelInfo},
		{"", LevelInfo},
		{"verbose", LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestLevelFiltering(t *testing.T) {
	buf := capture(t)
	SetLevel(LevelInfo)

	Debug("hidden line")
	Info("visible line", "k", "v")

	out := buf.String()
	assert.NotContains(t, out, "hidden line")
	assert.Contains(t, out, "visible line")
	assert.Contains(t, out, "k=v")
}

func TestErrorCarriesErr(t *testing.T) {
	buf := capture(t)
	SetFormat(FormatJSON)
	SetOutput(buf)

	Error("boom", errors.New("root cause"), "id", "abc")

	var line map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line))
	assert.Equal(t, "ERROR", line["level"])
	assert.Equal(t, "boom", line["msg"])
	assert.Equal(t, "root cause", line["err"])
	assert.Equal(t, "abc", line["id"])
}

func TestLoggerWithPrefixesFields(t *testing.T) {
	buf := capture(t)

	l := With("attempt_id", "a-1").With("stage", "validating")
	l.Warn("rejected", "reason", "MISSING_INPUT")

	out := buf.String()
	assert.Equal(t, 1, strings.Count(out, "\n"))
	assert.Contains(t, out, "attempt_id=a-1")
	assert.Contains(t, out, "stage=validating")
	assert.Contains(t, out, "reason=MISSING_INPUT")
}
