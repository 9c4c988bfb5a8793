package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSlogLogger_LevelFiltering(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		level    LogLevel
		logFunc  func(Logger)
		expected bool
	}{
		{"debug hidden at info", LogLevelInfo, func(l Logger) { l.Debug("msg") }, false},
		{"info shown at info", LogLevelInfo, func(l Logger) { l.Info("msg") }, true},
		{"trace hidden at debug", LogLevelDebug, func(l Logger) { l.Trace("msg") }, false},
		{"trace shown at trace", LogLevelTrace, func(l Logger) { l.Trace("msg") }, true},
		{"error always shown", LogLevelError, func(l Logger) { l.Error("msg") }, true},
		{"warn hidden at error", LogLevelError, func(l Logger) { l.Warn("msg") }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			buf := &bytes.Buffer{}
			tt.logFunc(NewSlogLogger(buf, tt.level, time.UTC))
			assert.Equal(t, tt.expected, strings.Contains(buf.String(), "msg=msg"))
		})
	}
}

func TestModuleLogger_FieldsAndModule(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	log := NewSlogLogger(buf, LogLevelDebug, time.UTC).Module("toast").Module("surface")
	log.With(String("surface", "stream")).Info("toast added",
		Uint64("id", 42),
		Duration("ttl", 3*time.Second),
		Bool("closed", false))

	out := buf.String()
	assert.Contains(t, out, "module=toast.surface")
	assert.Contains(t, out, "surface=stream")
	assert.Contains(t, out, "id=42")
	assert.Contains(t, out, "ttl=3s")
	assert.Contains(t, out, "closed=false")
	assert.NotContains(t, out, "time=", "console output carries no timestamp")
}

func TestModuleLogger_WithContextAddsTraceID(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	log := NewSlogLogger(buf, LogLevelInfo, time.UTC)
	ctx := WithTraceID(context.Background(), "req-123")
	log.WithContext(ctx).Info("request")
	assert.Contains(t, buf.String(), "trace_id=req-123")

	buf.Reset()
	log.WithContext(context.Background()).Info("request")
	assert.NotContains(t, buf.String(), "trace_id")
}

func TestWith_DoesNotMutateParent(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	parent := NewSlogLogger(buf, LogLevelInfo, time.UTC).With(String("a", "1"))
	_ = parent.With(String("b", "2"))
	parent.Info("parent")
	assert.NotContains(t, buf.String(), "b=2")
}

func TestError_NilValue(t *testing.T) {
	t.Parallel()
	f := Error(nil)
	assert.Equal(t, "error", f.Key)
	assert.Nil(t, f.Value)
}

func TestCentralLogger_FileOutputIsJSON(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "app.log")
	cl, err := NewCentralLogger(&LoggingConfig{
		DefaultLevel: "debug",
		Timezone:     "UTC",
		Console:      &ConsoleOutput{Enabled: false},
		FileOutput:   &FileOutput{Enabled: true, Path: path, Level: "debug", MaxSize: 1},
	})
	require.NoError(t, err)

	cl.Module("datastore").Info("opened", String("type", "sqlite"))
	require.NoError(t, cl.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(data), &entry))
	assert.Equal(t, "opened", entry["msg"])
	assert.Equal(t, "datastore", entry["module"])
	assert.Equal(t, "sqlite", entry["type"])
	assert.NotEmpty(t, entry["time"])
}

func TestCentralLogger_ModuleLevels(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")
	cl, err := NewCentralLogger(&LoggingConfig{
		DefaultLevel: "info",
		Console:      &ConsoleOutput{Enabled: false},
		FileOutput:   &FileOutput{Enabled: true, Path: path, Level: "trace"},
		ModuleLevels: map[string]string{"datastore": "trace"},
	})
	require.NoError(t, err)

	cl.Module("datastore").Trace("sql query")
	cl.Module("api").Debug("hidden")
	require.NoError(t, cl.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "sql query")
	assert.Contains(t, string(data), `"level":"TRACE"`)
	assert.NotContains(t, string(data), "hidden")
}

func TestNewCentralLogger_Errors(t *testing.T) {
	t.Parallel()

	_, err := NewCentralLogger(nil)
	require.Error(t, err)

	_, err = NewCentralLogger(&LoggingConfig{Timezone: "Mars/Olympus"})
	require.Error(t, err)
}

func TestRedactSensitiveData(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want string
	}{
		{"Authorization: Bearer abc.def.ghi", "Authorization: Bearer [REDACTED]"},
		{"password=hunter22", "password=[REDACTED]"},
		{"mysql://root:s3cret@db:3306/health", "mysql://root:[REDACTED]@db:3306/health"},
		{"plain text", "plain text"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RedactSensitiveData(tt.in))
	}
}

func TestRedactFields(t *testing.T) {
	t.Parallel()

	in := []Field{String("username", "alice"), String("password", "hunter2"), Int("token_count", 3)}
	out := RedactFields(in)
	assert.Equal(t, "alice", out[0].Value)
	assert.Equal(t, "[REDACTED]", out[1].Value)
	assert.Equal(t, 3, out[2].Value)
	assert.Equal(t, "hunter2", in[1].Value, "input untouched")

	out = RedactFields([]Field{Error(errors.New("dial mysql://root:s3cret@db:3306/health: refused"))})
	assert.Equal(t, "dial mysql://root:[REDACTED]@db:3306/health: refused", out[0].Value)
}

func TestModuleLogger_RedactsOutput(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	log := NewSlogLogger(buf, LogLevelInfo, time.UTC).Module("auth").With(String("api_key", "k-123"))
	log.Info("login with password=hunter22", String("user", "alice"), Error(errors.New("token=abc123 rejected")))

	out := buf.String()
	assert.Contains(t, out, "alice")
	assert.NotContains(t, out, "hunter22")
	assert.NotContains(t, out, "k-123")
	assert.NotContains(t, out, "abc123")
}
