package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerLevelsAndFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(WithOutput(&buf), WithLevel(LevelInfo), WithService("svc"))

	logger.Debug("skip")
	require.Zero(t, buf.Len(), "debug must be filtered at info level")

	logger.Info("hello", "correlation_id", "abc", "foo", "bar", "num", 1)
	entry := decodeLastLog(t, buf.Bytes())

	assert.Equal(t, "hello", entry["message"])
	assert.Equal(t, "abc", entry["correlation_id"])
	assert.Equal(t, "svc", entry["service"])

	fields := entry["fields"].(map[string]interface{})
	assert.Equal(t, "bar", fields["foo"])
	assert.EqualValues(t, 1, fields["num"])
}

func TestLoggerWithContext(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(WithOutput(&buf), WithLevel(LevelWarn))
	ctx := WithCorrelationID(context.Background(), "ctxid")

	logger.InfoWithContext(ctx, "skip")
	require.Zero(t, buf.Len())

	logger.WarnWithContext(ctx, "warned", "k", "v")
	entry := decodeLastLog(t, buf.Bytes())
	assert.Equal(t, "ctxid", entry["correlation_id"])
}

func TestLoggerWithFields(t *testing.T) {
	var buf bytes.Buffer
	base := NewLogger(WithOutput(&buf), WithLevel(LevelDebug))
	child := base.With("component", "client")

	child.Debug("request", "status", 200, "err", errors.New("boom"))
	entry := decodeLastLog(t, buf.Bytes())
	fields := entry["fields"].(map[string]interface{})
	assert.Equal(t, "client", fields["component"])
	assert.Equal(t, "boom", fields["err"])

	base.Info("plain")
	entry = decodeLastLog(t, buf.Bytes())
	assert.Nil(t, entry["fields"], "parent logger must not inherit child fields")
}

func TestLoggerMarshalError(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(WithOutput(&buf), WithLevel(LevelDebug))

	logger.Info("bad", "field", func() {})
	assert.Zero(t, buf.Len(), "expected no output when marshal fails")
}

func TestNopLogger(t *testing.T) {
	logger := Nop()
	logger.Error("dropped")
	assert.False(t, logger.Enabled(LevelWarn))

	var nilLogger *Logger
	nilLogger.Info("nil receivers are ignored")
}

func TestParseLevel(t *testing.T) {
	tests := map[string]LogLevel{
		"debug":   LevelDebug,
		"INFO":    LevelInfo,
		"warning": LevelWarn,
		" error ": LevelError,
		"":        LevelInfo,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestParseFields(t *testing.T) {
	cid, fields := parseFields([]interface{}{"correlation_id", "cid", "foo", 1, 42, "bad"})
	assert.Equal(t, "cid", cid)
	assert.Equal(t, 1, fields["foo"])
	assert.Len(t, fields, 1)
}

func decodeLastLog(t *testing.T, data []byte) map[string]interface{} {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &entry))
	return entry
}
