package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZerologLoggerDevConsole(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	l := NewZerologLogger("engine")
	require.NotNil(t, l)
	l.Debugf("debug %d", 1)
	l.Debugw("debug", map[string]any{"queue": "q1"})
	l.Infof("info %s", "announce")
	l.Warnf("warn")
	l.Errorf("error")
}

func TestZerologLoggerJSONFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter("allocation", &buf, "debug")
	l.Debugw("queue announced", map[string]any{"station": "S1", "vehicles": 2})

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "allocation", rec["component"])
	assert.Equal(t, "debug", rec["level"])
	assert.Equal(t, "S1", rec["station"])
	assert.Equal(t, float64(2), rec["vehicles"])
}

func TestZerologLoggerLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter("allocation", &buf, "warn")
	l.Infof("hidden")
	l.Warnf("shown")
	out := buf.String()
	assert.False(t, strings.Contains(out, "hidden"))
	assert.True(t, strings.Contains(out, "shown"))
}

func TestNopLogger(t *testing.T) {
	var l Logger = NopLogger{}
	l.Infof("nothing %d", 1)
}
