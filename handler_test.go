/*
 * Copyright (c) 2024 yakumioto <yaku.mioto@gmail.com>
 * All rights reserved.
 */

package otelfilter

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// TestHandler tests the Handler implementation.
func TestHandler(t *testing.T) {
	setupTracer := func() *tracetest.SpanRecorder {
		spanRecorder := tracetest.NewSpanRecorder()
		tracerProvider := trace.NewTracerProvider(trace.WithSpanProcessor(spanRecorder))
		otel.SetTracerProvider(tracerProvider)
		return spanRecorder
	}

	setupLogger := func(spec string, opts ...Options) (*slog.Logger, *Filter, *bytes.Buffer) {
		filter, err := New(spec)
		require.NoError(t, err)

		buf := bytes.NewBuffer(nil)
		logger := slog.New(
			NewHandler(
				slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: LevelTrace}),
				filter,
				opts...,
			))
		return logger, filter, buf
	}

	t.Run("with options", func(t *testing.T) {
		h := NewHandler(slog.NewJSONHandler(bytes.NewBuffer(nil), nil), nil,
			WithTraceIDKey("test_trace_id"),
			WithSpanIDKey("test_span_id"),
			WithSpanEventKey("test_span_event"),
			WithTargetKey("test_target"),
			WithNoSpanEvents())

		assert.Equal(t, "test_trace_id", h.traceIDKey)
		assert.Equal(t, "test_span_id", h.spanIDKey)
		assert.Equal(t, "test_span_event", h.spanEventKey)
		assert.Equal(t, "test_target", h.targetKey)
		assert.False(t, h.spanEvent)
		assert.True(t, h.Enabled(context.Background(), LevelTrace), "a nil filter admits everything")
	})

	t.Run("enabled follows the most verbose directive", func(t *testing.T) {
		logger, _, _ := setupLogger("warn,db=debug")
		ctx := context.Background()

		assert.True(t, logger.Enabled(ctx, slog.LevelDebug))
		assert.False(t, logger.Enabled(ctx, LevelTrace))
	})

	t.Run("default level", func(t *testing.T) {
		logger, _, buf := setupLogger("")

		logger.Warn("dropped warning")
		logger.Error("kept error", "key1", "value1")

		assert.NotContains(t, buf.String(), "dropped warning")
		assert.Contains(t, buf.String(), `"level":"ERROR"`)
		assert.Contains(t, buf.String(), `"msg":"kept error"`)
		assert.Contains(t, buf.String(), `"key1":"value1"`)
	})

	t.Run("target attribute", func(t *testing.T) {
		logger, _, buf := setupLogger("error,app/db=debug")

		logger.Debug("query", "target", "app/db/postgres")
		logger.Debug("request", "target", "app/http")
		logger.With("target", "app/db").Info("connected")

		assert.Contains(t, buf.String(), `"msg":"query"`)
		assert.Contains(t, buf.String(), `"target":"app/db/postgres"`)
		assert.NotContains(t, buf.String(), `"msg":"request"`)
		assert.Contains(t, buf.String(), `"msg":"connected"`)
	})

	t.Run("caller package as target", func(t *testing.T) {
		logger, _, buf := setupLogger("error,github.com/yakumioto/otelfilter=info")

		logger.Info("from this package")
		logger.Debug("too verbose")

		assert.Contains(t, buf.String(), `"msg":"from this package"`)
		assert.NotContains(t, buf.String(), "too verbose")
	})

	t.Run("record fields", func(t *testing.T) {
		logger, _, buf := setupLogger(`error,[{user=admin}]=debug`)

		logger.Debug("admin request", "user", "admin")
		logger.Debug("guest request", "user", "guest")

		assert.Contains(t, buf.String(), "admin request")
		assert.NotContains(t, buf.String(), "guest request")
	})

	t.Run("fields on slog.With", func(t *testing.T) {
		logger, _, buf := setupLogger(`error,[{user=admin}]=debug`)

		logger.With("user", "admin").Debug("with admin")
		logger.With("user", "guest").Debug("with guest")

		assert.Contains(t, buf.String(), `"msg":"with admin"`)
		assert.NotContains(t, buf.String(), "with guest")
	})

	t.Run("fields on slog.WithGroup", func(t *testing.T) {
		logger, _, buf := setupLogger(`error,[{request.user=admin}]=debug`)

		logger.WithGroup("request").Debug("grouped", "user", "admin")
		logger.WithGroup("request").With("user", "admin").Debug("grouped with")
		logger.Debug("not grouped", "user", "admin")

		assert.Contains(t, buf.String(), `"request":{"user":"admin"}`)
		assert.Contains(t, buf.String(), `"msg":"grouped with"`)
		assert.NotContains(t, buf.String(), "not grouped")
	})

	t.Run("fields on slog.Group", func(t *testing.T) {
		logger, _, buf := setupLogger(`error,[{request.user.id=7}]=debug`)

		logger.Debug("nested group", slog.Group("request", slog.Group("user", slog.Int("id", 7))))

		assert.Contains(t, buf.String(), `"request":{"user":{"id":7}}`)
	})

	t.Run("fields of enclosing spans", func(t *testing.T) {
		setupTracer()
		logger, filter, buf := setupLogger(`error,[{tenant=acme}]=debug`)
		ctx := NewContext(context.Background(), filter)

		ctx, span := StartSpan(ctx, "app", "request", slog.LevelInfo, slog.String("tenant", "acme"))
		logger.DebugContext(ctx, "inside acme")
		span.End()
		logger.DebugContext(ctx, "after acme")

		assert.Contains(t, buf.String(), "inside acme")
		assert.NotContains(t, buf.String(), "after acme")
	})

	t.Run("with span events", func(t *testing.T) {
		spanRecorder := setupTracer()
		logger, filter, buf := setupLogger("info")
		ctx := NewContext(context.Background(), filter)

		ctx, span := StartSpan(ctx, "app", "span", slog.LevelInfo)
		logger.WarnContext(ctx, "with span test", "key1", "value1")
		span.End()

		assert.Contains(t, buf.String(), `"level":"WARN"`)
		assert.Contains(t, buf.String(), `"key1":"value1"`)
		assert.Contains(t, buf.String(), `"trace_id":"`)
		assert.Contains(t, buf.String(), `"span_id":"`)

		spans := spanRecorder.Ended()

		require.Equal(t, 1, len(spans))
		assert.Equal(t, "span", spans[0].Name())
		require.Equal(t, 1, len(spans[0].Events()))
		assert.Contains(t, spans[0].Events()[0].Attributes, attribute.String("log.key1", "value1"))
		assert.Contains(t, spans[0].Events()[0].Attributes, attribute.String(slog.MessageKey, "with span test"))
	})

	t.Run("with span no events", func(t *testing.T) {
		spanRecorder := setupTracer()
		logger, filter, _ := setupLogger("info", WithNoSpanEvents())
		ctx := NewContext(context.Background(), filter)

		ctx, span := StartSpan(ctx, "app", "span", slog.LevelInfo)
		logger.InfoContext(ctx, "with span no events test")
		span.End()

		spans := spanRecorder.Ended()

		require.Equal(t, 1, len(spans))
		assert.Empty(t, spans[0].Events())
	})

	t.Run("rejected records are not span events", func(t *testing.T) {
		spanRecorder := setupTracer()
		logger, filter, _ := setupLogger("info")
		ctx := NewContext(context.Background(), filter)

		ctx, span := StartSpan(ctx, "app", "span", slog.LevelInfo)
		logger.DebugContext(ctx, "too verbose")
		span.End()

		spans := spanRecorder.Ended()

		require.Equal(t, 1, len(spans))
		assert.Empty(t, spans[0].Events())
	})

	t.Run("error status", func(t *testing.T) {
		spanRecorder := setupTracer()
		logger, filter, _ := setupLogger("info")
		ctx := NewContext(context.Background(), filter)

		ctx, span := StartSpan(ctx, "app", "span", slog.LevelInfo)
		logger.ErrorContext(ctx, "failed")
		span.End()

		spans := spanRecorder.Ended()

		require.Equal(t, 1, len(spans))
		assert.Equal(t, codes.Error, spans[0].Status().Code)
		assert.Equal(t, "failed", spans[0].Status().Description)
	})

	t.Run("with nil next handler", func(t *testing.T) {
		spanRecorder := setupTracer()
		filter := MustNew("info")
		logger := slog.New(NewHandler(nil, filter))
		ctx := NewContext(context.Background(), filter)

		ctx, span := StartSpan(ctx, "app", "span", slog.LevelInfo)
		logger.InfoContext(ctx, "with nil next handler", "key1", "value1")
		span.End()

		spans := spanRecorder.Ended()

		require.Equal(t, 1, len(spans))
		assert.Len(t, spans[0].Events(), 1)
	})
}

func TestHandlerWithAttrsIsolation(t *testing.T) {
	h := NewHandler(nil, MustNew("info"))

	base := h.WithAttrs([]slog.Attr{slog.String("a", "1")}).(*Handler)
	left := base.WithAttrs([]slog.Attr{slog.String("b", "2")}).(*Handler)
	right := base.WithAttrs([]slog.Attr{slog.String("c", "3")}).(*Handler)

	assert.Equal(t, []Field{{Name: "a", Value: StringValue("1")}}, base.fields)
	assert.Equal(t, "b", left.fields[1].Name)
	assert.Equal(t, "c", right.fields[1].Name)
}

func TestPackagePath(t *testing.T) {
	tests := []struct {
		function string
		expected string
	}{
		{"github.com/yakumioto/otelfilter.TestPackagePath", "github.com/yakumioto/otelfilter"},
		{"github.com/yakumioto/otelfilter.(*Handler).Handle", "github.com/yakumioto/otelfilter"},
		{"main.main", "main"},
		{"example.com/a.b/c.F.func1", "example.com/a.b/c"},
		{"nodot", "nodot"},
	}

	for _, test := range tests {
		t.Run(test.function, func(t *testing.T) {
			assert.Equal(t, test.expected, packagePath(test.function))
		})
	}
}

func TestCaptureAttrs(t *testing.T) {
	type name string

	tests := []struct {
		name     string
		attr     slog.Attr
		expected []Field
	}{
		{
			name:     "string",
			attr:     slog.String("key1", "value1"),
			expected: []Field{{Name: "key1", Value: StringValue("value1")}},
		},
		{
			name:     "int",
			attr:     slog.Int("key2", 42),
			expected: []Field{{Name: "key2", Value: Int64Value(42)}},
		},
		{
			name:     "uint64",
			attr:     slog.Uint64("key3", 100),
			expected: []Field{{Name: "key3", Value: Uint64Value(100)}},
		},
		{
			name:     "bool",
			attr:     slog.Bool("key4", true),
			expected: []Field{{Name: "key4", Value: BoolValue(true)}},
		},
		{
			name:     "float64",
			attr:     slog.Float64("key5", 3.14),
			expected: []Field{{Name: "key5", Value: Float64Value(3.14)}},
		},
		{
			name:     "duration",
			attr:     slog.Duration("key6", 5*time.Second),
			expected: []Field{{Name: "key6", Value: DebugText("5s")}},
		},
		{
			name:     "time",
			attr:     slog.Time("key7", time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)),
			expected: []Field{{Name: "key7", Value: DebugText("2023-01-01T00:00:00Z")}},
		},
		{
			name:     "named string type",
			attr:     slog.Any("key8", name("hy")),
			expected: []Field{{Name: "key8", Value: DebugText("hy")}},
		},
		{
			name:     "struct",
			attr:     slog.Any("key9", struct{ A int }{A: 1}),
			expected: []Field{{Name: "key9", Value: DebugText("{A:1}")}},
		},
		{
			name: "group",
			attr: slog.Group("group", slog.String("key1", "value1"), slog.Group("sub", slog.Bool("key2", false))),
			expected: []Field{
				{Name: "group.key1", Value: StringValue("value1")},
				{Name: "group.sub.key2", Value: BoolValue(false)},
			},
		},
		{
			name:     "inline group",
			attr:     slog.Group("", slog.Int("key1", 1)),
			expected: []Field{{Name: "key1", Value: Int64Value(1)}},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.expected, CaptureAttrs([]slog.Attr{test.attr}))
		})
	}

	t.Run("group keys", func(t *testing.T) {
		fields := CaptureAttrs([]slog.Attr{slog.String("key1", "value1")}, "a", "b")
		assert.Equal(t, []Field{{Name: "a.b.key1", Value: StringValue("value1")}}, fields)
	})
}
