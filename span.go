/*
 * Copyright (c) 2024 yakumioto <yaku.mioto@gmail.com>
 * All rights reserved.
 */

package otelfilter

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Span is a span entered through StartSpan. A span the filter rejected is
// inert: its methods do nothing and nothing is entered for it.
type Span struct {
	trace.Span
	ctx   context.Context
	frame *Frame
}

// StartSpan asks the Filter in ctx whether the span is created and, if so,
// returns a context in which it is entered, together with an OpenTelemetry
// span named name from the tracer named target. attrs are the span's fields.
//
// The span is entered only in the returned context and in contexts derived
// from it, so ctx can be shared with other goroutines freely. Without a
// Filter in ctx no span is created and ctx is returned unchanged.
func StartSpan(ctx context.Context, target, name string, level slog.Level, attrs ...slog.Attr) (context.Context, *Span) {
	inert := &Span{
		Span: trace.SpanFromContext(context.Background()),
		ctx:  ctx,
	}

	filter := FilterFromContext(ctx)
	if filter == nil {
		return ctx, inert
	}

	stack := StackFromContext(ctx)
	frame := NewFrame(name, target, level, CaptureAttrs(attrs)...)
	if !filter.EnabledForSpan(target, name, level, frame.fields, stack) {
		return ctx, inert
	}

	kvs := make([]attribute.KeyValue, 0, len(frame.fields)+1)
	for _, field := range frame.fields {
		kvs = append(kvs, field.KeyValue())
	}
	kvs = append(kvs, attribute.String(slog.LevelKey, LevelString(level)))

	s := &Span{frame: frame}
	s.ctx, s.Span = otel.Tracer(target).Start(ContextWithStack(ctx, stack.Push(frame)), name, trace.WithAttributes(kvs...))
	return s.ctx, s
}

// Instrument runs fn inside a span. An error returned by fn is recorded on
// the span and returned.
func Instrument(ctx context.Context, target, name string, level slog.Level, attrs []slog.Attr, fn func(context.Context) error) error {
	ctx, span := StartSpan(ctx, target, name, level, attrs...)
	defer span.End()

	err := fn(ctx)
	if err != nil && span.Enabled() {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// Enabled reports whether the filter admitted the span.
func (s *Span) Enabled() bool {
	return s.frame != nil
}

// Frame returns the span's frame, or nil if the span is inert.
func (s *Span) Frame() *Frame {
	return s.frame
}

// Context returns the context associated with the span.
func (s *Span) Context() context.Context {
	return s.ctx
}
