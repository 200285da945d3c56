/*
 * Copyright (c) 2024 yakumioto <yaku.mioto@gmail.com>
 * All rights reserved.
 */

package otelfilter

import (
	"context"
	"log/slog"
	"runtime"
	"slices"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Options is a functional option for the Handler.
type Options func(*Handler)

// WithTraceIDKey sets the key used to record the trace ID in slog records.
func WithTraceIDKey(key string) Options {
	return func(h *Handler) {
		h.traceIDKey = key
	}
}

// WithSpanIDKey sets the key used to record the span ID in slog records.
func WithSpanIDKey(key string) Options {
	return func(h *Handler) {
		h.spanIDKey = key
	}
}

// WithSpanEventKey sets the key used to record slog attributes as span events.
func WithSpanEventKey(key string) Options {
	return func(h *Handler) {
		h.spanEventKey = key
	}
}

// WithNoSpanEvents disables recording slog attributes as span events.
func WithNoSpanEvents() Options {
	return func(h *Handler) {
		h.spanEvent = false
	}
}

// WithTargetKey sets the attribute key that names the target of a record.
// Records without it are attributed to the package of their call site.
func WithTargetKey(key string) Options {
	return func(h *Handler) {
		h.targetKey = key
	}
}

// NewHandler creates a new slog.Handler that passes to handler only the
// records filter admits. A nil filter admits every record.
func NewHandler(handler slog.Handler, filter *Filter, opts ...Options) *Handler {
	if filter == nil {
		filter = MustNew("trace")
	}

	h := &Handler{
		traceIDKey:   "trace_id",
		spanIDKey:    "span_id",
		spanEventKey: "log",
		spanEvent:    true,
		targetKey:    "target",
		filter:       filter,
		Next:         handler,
	}

	for _, opt := range opts {
		opt(h)
	}

	return h
}

// Handler filters slog records with a Filter. Admitted records are recorded
// as events on the current OpenTelemetry span, get its trace and span IDs,
// and are passed to the next handler.
type Handler struct {
	// OpenTelemetry trace context keys
	traceIDKey string
	spanIDKey  string

	// Key of the attribute naming the record target
	targetKey string
	target    string

	// Fields captured from WithAttrs, already prefixed with their groups
	fields    []Field
	groupKeys []string

	// Key used to record slog attributes as span events
	spanEventKey string

	// Controls whether slog attributes should be recorded as span events
	spanEvent bool

	filter *Filter

	// Next slog.Handler in the chain
	Next slog.Handler
}

// Enabled reports whether any directive can admit a record at level.
func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.filter.MaxLevel()
}

func (h *Handler) nextHandle(ctx context.Context, record slog.Record) error {
	if h.Next != nil && h.Next.Enabled(ctx, record.Level) {
		return h.Next.Handle(ctx, record)
	}

	return nil
}

// admit asks the filter about a record raised inside the spans entered in ctx.
func (h *Handler) admit(ctx context.Context, target string, level slog.Level, fields []Field) bool {
	return h.filter.EnabledForEvent(target, level, fields, StackFromContext(ctx))
}

// Handle drops the record unless the filter admits it, then adds
// OpenTelemetry attributes and events and passes it on.
func (h *Handler) Handle(ctx context.Context, record slog.Record) error {
	target := h.target
	fields := make([]Field, 0, record.NumAttrs()+len(h.fields))
	record.Attrs(func(attr slog.Attr) bool {
		if len(h.groupKeys) == 0 && attr.Key == h.targetKey && attr.Value.Kind() == slog.KindString {
			target = attr.Value.String()
			return true
		}
		CaptureAttr(attr, func(f Field) {
			fields = append(fields, f)
		}, h.groupKeys...)
		return true
	})
	fields = append(fields, h.fields...)

	if target == "" {
		target = callerTarget(record.PC)
	}

	if !h.admit(ctx, target, record.Level, fields) {
		return nil
	}

	// Get the current span from the context
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return h.nextHandle(ctx, record)
	}

	// Add the record's fields as a span event
	if h.spanEvent {
		eventAttrs := make([]attribute.KeyValue, 0, len(fields)+4)
		for _, f := range fields {
			f.Name = h.spanEventKey + "." + f.Name
			eventAttrs = append(eventAttrs, f.KeyValue())
		}

		eventAttrs = append(eventAttrs, attribute.String(h.targetKey, target))
		eventAttrs = append(eventAttrs, attribute.String(slog.MessageKey, record.Message))
		eventAttrs = append(eventAttrs, attribute.String(slog.LevelKey, record.Level.String()))
		eventAttrs = append(eventAttrs, attribute.String(slog.TimeKey, record.Time.Format(time.RFC3339)))
		span.AddEvent(h.spanEventKey, trace.WithAttributes(eventAttrs...))
	}

	// Add trace and span IDs to the slog record
	record = record.Clone()
	spanCtx := span.SpanContext()
	if spanCtx.HasTraceID() {
		record.AddAttrs(slog.String(h.traceIDKey, spanCtx.TraceID().String()))
	}
	if spanCtx.HasSpanID() {
		record.AddAttrs(slog.String(h.spanIDKey, spanCtx.SpanID().String()))
	}

	// Set the span status based on the slog record level
	if record.Level >= slog.LevelError {
		span.SetStatus(codes.Error, record.Message)
	}

	return h.nextHandle(ctx, record)
}

func (h *Handler) clone() *Handler {
	c := *h
	c.fields = slices.Clip(h.fields)
	c.groupKeys = slices.Clip(h.groupKeys)
	return &c
}

// WithAttrs returns a new slog.Handler whose records carry attrs as fields.
func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}

	c := h.clone()
	for _, attr := range attrs {
		if len(h.groupKeys) == 0 && attr.Key == h.targetKey && attr.Value.Kind() == slog.KindString {
			c.target = attr.Value.String()
			continue
		}
		CaptureAttr(attr, func(f Field) {
			c.fields = append(c.fields, f)
		}, h.groupKeys...)
	}

	if h.Next != nil {
		c.Next = h.Next.WithAttrs(attrs)
	}
	return c
}

// WithGroup returns a new slog.Handler that qualifies later attributes with name.
func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}

	c := h.clone()
	c.groupKeys = append(c.groupKeys, name)
	if h.Next != nil {
		c.Next = h.Next.WithGroup(name)
	}
	return c
}

var callerTargets sync.Map // map[uintptr]string

// callerTarget returns the import path of the package the function at pc belongs to.
func callerTarget(pc uintptr) string {
	if pc == 0 {
		return ""
	}
	if target, ok := callerTargets.Load(pc); ok {
		return target.(string)
	}

	frame, _ := runtime.CallersFrames([]uintptr{pc}).Next()
	target := packagePath(frame.Function)
	callerTargets.Store(pc, target)
	return target
}

// packagePath trims the function and receiver from a qualified function name
// such as "github.com/a/b.(*T).Method".
func packagePath(function string) string {
	slash := strings.LastIndexByte(function, '/')
	if dot := strings.IndexByte(function[slash+1:], '.'); dot >= 0 {
		return function[:slash+1+dot]
	}
	return function
}
