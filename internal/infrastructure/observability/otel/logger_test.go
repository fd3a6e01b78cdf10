package otel

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

func decodeEntry(t *testing.T, buf *bytes.Buffer) LogEntry {
	t.Helper()
	var entry LogEntry
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	return entry
}

func TestNewLogger(t *testing.T) {
	tracer := noop.NewTracerProvider().Tracer("test")
	logger := NewLogger(tracer)

	assert.NotNil(t, logger)
	assert.Equal(t, tracer, logger.tracer)
}

func TestLogger_Log(t *testing.T) {
	tests := []struct {
		name    string
		level   LogLevel
		message string
		fields  map[string]interface{}
	}{
		{
			name:    "Infoレベルのログ",
			level:   LogLevelInfo,
			message: "test message",
			fields:  map[string]interface{}{"key": "value"},
		},
		{
			name:    "Debugレベルのログ",
			level:   LogLevelDebug,
			message: "debug message",
			fields:  nil,
		},
		{
			name:    "Warnレベルのログ",
			level:   LogLevelWarn,
			message: "warn message",
			fields:  map[string]interface{}{"count": float64(42)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewLogger(noop.NewTracerProvider().Tracer("test")).WithOutput(&buf)

			logger.Log(context.Background(), tt.level, tt.message, tt.fields)

			entry := decodeEntry(t, &buf)
			assert.Equal(t, string(tt.level), entry.Level)
			assert.Equal(t, tt.message, entry.Message)
			assert.Equal(t, tt.fields, entry.Fields)
			_, err := time.Parse(time.RFC3339Nano, entry.Timestamp)
			assert.NoError(t, err)
		})
	}
}

func TestLogger_LogWithTraceContext(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()
	tracer := tp.Tracer("test")

	var buf bytes.Buffer
	logger := NewLogger(tracer).WithOutput(&buf)

	ctx, span := tracer.Start(context.Background(), "test-span")
	defer span.End()

	logger.Info(ctx, "test message", nil)

	entry := decodeEntry(t, &buf)
	assert.Equal(t, span.SpanContext().TraceID().String(), entry.TraceID)
	assert.Equal(t, span.SpanContext().SpanID().String(), entry.SpanID)
}

func TestLogger_LogWithoutTraceContext(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(noop.NewTracerProvider().Tracer("test")).WithOutput(&buf)

	logger.Info(context.Background(), "test message", nil)

	entry := decodeEntry(t, &buf)
	assert.Empty(t, entry.TraceID)
	assert.Empty(t, entry.SpanID)
}

func TestLogger_WithComponent(t *testing.T) {
	var buf bytes.Buffer
	base := NewLogger(noop.NewTracerProvider().Tracer("test")).WithOutput(&buf)
	logger := base.WithComponent("reconciler")

	logger.Warn(context.Background(), "sweep skipped", nil)

	entry := decodeEntry(t, &buf)
	assert.Equal(t, "reconciler", entry.Component)
	assert.Empty(t, base.component)
}

func TestLogger_Error(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		fields    map[string]interface{}
		wantError interface{}
	}{
		{
			name:      "エラーあり、フィールドなし",
			err:       assert.AnError,
			fields:    nil,
			wantError: assert.AnError.Error(),
		},
		{
			name:      "エラーあり、既存のerrorフィールドは上書きされる",
			err:       assert.AnError,
			fields:    map[string]interface{}{"error": "existing", "key": "value"},
			wantError: assert.AnError.Error(),
		},
		{
			name:      "エラーなし",
			err:       nil,
			fields:    map[string]interface{}{"key": "value"},
			wantError: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewLogger(noop.NewTracerProvider().Tracer("test")).WithOutput(&buf)

			logger.Error(context.Background(), "error message", tt.err, tt.fields)

			entry := decodeEntry(t, &buf)
			assert.Equal(t, "ERROR", entry.Level)
			assert.Equal(t, tt.wantError, entry.Fields["error"])
		})
	}
}

func TestLogger_ErrorDoesNotMutateFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(noop.NewTracerProvider().Tracer("test")).WithOutput(&buf)

	fields := map[string]interface{}{"user_id": "user123"}
	logger.Error(context.Background(), "failed", assert.AnError, fields)

	assert.NotContains(t, fields, "error")
}

func TestLogger_WithMinLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(noop.NewTracerProvider().Tracer("test")).WithOutput(&buf).WithMinLevel(LogLevelWarn)

	logger.Debug(context.Background(), "job finished", nil)
	logger.Info(context.Background(), "Top-up confirmed", nil)
	assert.Zero(t, buf.Len())

	logger.Warn(context.Background(), "Gateway degraded", nil)
	entry := decodeEntry(t, &buf)
	assert.Equal(t, "WARN", entry.Level)
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want LogLevel
	}{
		{in: "debug", want: LogLevelDebug},
		{in: " WARN ", want: LogLevelWarn},
		{in: "Error", want: LogLevelError},
		{in: "", want: LogLevelInfo},
		{in: "verbose", want: LogLevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLogLevel(tt.in))
		})
	}
}
