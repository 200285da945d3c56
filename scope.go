/*
 * Copyright (c) 2024 yakumioto <yaku.mioto@gmail.com>
 * All rights reserved.
 */

package otelfilter

import (
	"context"
	"log/slog"
)

// Scope is an admission point for code that enters and exits spans by hand
// instead of through a context.Context. It keeps the current Stack and asks
// the Filter about every span and event.
//
// A Scope is not safe for concurrent use. Its Stack is, and can be handed
// to other goroutines with ContextWithStack.
type Scope struct {
	filter *Filter
	stack  *Stack
}

// NewScope returns a Scope with an empty stack.
func (f *Filter) NewScope() *Scope {
	return &Scope{filter: f}
}

// Filter returns the filter s asks.
func (s *Scope) Filter() *Filter {
	return s.filter
}

// OnSpanEnter reports whether the span described by frame is created.
// If it is, frame is pushed and must later be exited with OnSpanExit.
// If not, the caller must not record anything for it.
func (s *Scope) OnSpanEnter(frame *Frame) bool {
	if !s.filter.EnabledForSpan(frame.Target, frame.Name, frame.Level, frame.fields, s.stack) {
		return false
	}

	s.stack = s.stack.Push(frame)
	return true
}

// OnSpanExit pops the frame with id together with any frame entered after it
// and not exited. Unknown ids are ignored.
func (s *Scope) OnSpanExit(id FrameID) {
	s.stack = s.stack.exit(id)
}

// OnEvent reports whether an event with fields, raised inside the entered
// spans, is recorded.
func (s *Scope) OnEvent(target string, level slog.Level, fields []Field) bool {
	return s.filter.EnabledForEvent(target, level, fields, s.stack)
}

// Lookup returns the field called name from the innermost entered span that has one.
func (s *Scope) Lookup(name string) (Field, bool) {
	return s.stack.Lookup(name)
}

// Depth returns the number of entered spans.
func (s *Scope) Depth() int {
	return s.stack.Len()
}

// Current returns the innermost entered span, or nil.
func (s *Scope) Current() *Frame {
	return s.stack.Top()
}

// Stack returns the spans entered so far.
func (s *Scope) Stack() *Stack {
	return s.stack
}

type (
	filterKey struct{}
	stackKey  struct{}
)

// NewContext returns a copy of ctx carrying f. StartSpan and Instrument only
// enter spans under a context that carries a Filter.
func NewContext(ctx context.Context, f *Filter) context.Context {
	return context.WithValue(ctx, filterKey{}, f)
}

// FilterFromContext returns the Filter carried by ctx, or nil.
func FilterFromContext(ctx context.Context) *Filter {
	f, _ := ctx.Value(filterKey{}).(*Filter)
	return f
}

// ContextWithStack returns a copy of ctx whose entered spans are stack.
func ContextWithStack(ctx context.Context, stack *Stack) context.Context {
	return context.WithValue(ctx, stackKey{}, stack)
}

// StackFromContext returns the spans entered on the path that produced ctx.
// The result is nil, the empty stack, if none were.
func StackFromContext(ctx context.Context) *Stack {
	s, _ := ctx.Value(stackKey{}).(*Stack)
	return s
}
