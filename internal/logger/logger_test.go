package logger

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestModuleLoggerWritesFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewSlogLogger(&buf, LogLevelDebug, time.UTC).Module("engine")

	log.Info("calculation accepted",
		String("entry_id", "e-1"),
		Float64("similarity", 0.912345),
		Duration("elapsed", 1500*time.Millisecond))

	out := buf.String()
	assert.Contains(t, out, "module=engine")
	assert.Contains(t, out, "entry_id=e-1")
	assert.Contains(t, out, "similarity=0.912")
	assert.Contains(t, out, "elapsed=1.5s")
	assert.NotContains(t, out, "time=")
}

func TestModuleLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := NewSlogLogger(&buf, LogLevelWarn, nil)

	log.Debug("hidden")
	log.Info("hidden too")
	log.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestSubModuleAndWithAreImmutable(t *testing.T) {
	var buf bytes.Buffer
	parent := NewSlogLogger(&buf, LogLevelInfo, nil).Module("batch")
	child := parent.With(String("batch_id", "b-1")).Module("generative")

	parent.Info("parent line")
	child.Info("child line")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)
	assert.NotContains(t, string(lines[0]), "batch_id")
	assert.Contains(t, string(lines[1]), "module=batch.generative")
	assert.Contains(t, string(lines[1]), "batch_id=b-1")
}

func TestWithContextAddsTraceID(t *testing.T) {
	var buf bytes.Buffer
	log := NewSlogLogger(&buf, LogLevelInfo, nil)

	ctx := WithTraceID(context.Background(), "trace-42")
	log.WithContext(ctx).Info("traced")
	log.WithContext(context.Background()).Info("untraced")

	assert.Contains(t, buf.String(), "trace_id=trace-42")
}

func TestSensitiveFieldsAreRedacted(t *testing.T) {
	var buf bytes.Buffer
	log := NewSlogLogger(&buf, LogLevelInfo, nil)

	log.Info("client configured", String("api_key", "sk-secret"), String("endpoint", "https://example.test"))

	assert.NotContains(t, buf.String(), "sk-secret")
	assert.Contains(t, buf.String(), redactedValue)
	assert.Contains(t, buf.String(), "endpoint=https://example.test")
}

func TestTraceLevelName(t *testing.T) {
	var buf bytes.Buffer
	log := NewSlogLogger(&buf, LogLevelTrace, nil)

	log.Trace("very verbose")

	assert.Contains(t, buf.String(), "level=TRACE")
}

func TestCentralLoggerModuleLevels(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "logs", "engine.log")

	cl, err := NewCentralLogger(&LoggingConfig{
		DefaultLevel: "warn",
		Timezone:     "UTC",
		Console:      &ConsoleOutput{Enabled: false},
		FileOutput:   &FileOutput{Enabled: true, Path: path, Level: "warn"},
		ModuleLevels: map[string]string{"datastore": "debug"},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = cl.Close() })

	cl.Module("engine").Info("engine info hidden")
	cl.Module("datastore").Module("sqlite").Debug("datastore debug shown")
	require.NoError(t, cl.Flush())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "engine info hidden")
	assert.Contains(t, string(data), "datastore debug shown")
	assert.Contains(t, string(data), `"module":"datastore.sqlite"`)
}

func TestNewCentralLoggerRejectsBadTimezone(t *testing.T) {
	_, err := NewCentralLogger(&LoggingConfig{Timezone: "Mars/Olympus"})
	require.Error(t, err)

	_, err = NewCentralLogger(nil)
	require.Error(t, err)
}

func TestGormAdapterTrace(t *testing.T) {
	var buf bytes.Buffer
	adapter := NewGormLoggerAdapter(NewSlogLogger(&buf, LogLevelDebug, nil), 10*time.Millisecond)
	query := func() (string, int64) { return "INSERT INTO calculations", 1 }

	adapter.Trace(context.Background(), time.Now(), query, gorm.ErrDuplicatedKey)
	assert.Contains(t, buf.String(), "sql constraint hit")

	buf.Reset()
	adapter.Trace(context.Background(), time.Now().Add(-time.Second), query, nil)
	assert.Contains(t, buf.String(), "slow sql query")

	buf.Reset()
	adapter.Trace(context.Background(), time.Now(), query, nil)
	assert.Empty(t, buf.String(), "plain statements are TRACE only")
}
