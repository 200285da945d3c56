/*
 * Copyright (c) 2024 yakumioto <yaku.mioto@gmail.com>
 * All rights reserved.
 */

package otelfilter

import (
	"cmp"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"
)

// DefaultEnv is the environment variable read by FromEnv when no key is given.
const DefaultEnv = "OTELFILTER_LOG"

// FilterOption is a functional option for the Filter.
type FilterOption func(*Filter)

// WithDefaultLevel sets the threshold used when no directive applies.
// The default is slog.LevelError.
func WithDefaultLevel(level slog.Level) FilterOption {
	return func(f *Filter) {
		f.defaultLevel = level
	}
}

// WithDirectives adds directives after those parsed from the filter string.
func WithDirectives(directives ...Directive) FilterOption {
	return func(f *Filter) {
		f.directives = append(f.directives, directives...)
	}
}

// Filter decides whether spans and events are recorded.
//
// Directives are ordered once, when the filter is built: directives with a
// span name or field conditions come first, then longer targets, then
// directives with a span name, then those with more field conditions.
// Directives that compare equal keep the order they were declared in.
// The first directive whose conditions hold gives the threshold.
//
// A Filter is immutable and safe for concurrent use.
type Filter struct {
	directives   Directives
	defaultLevel slog.Level
	maxLevel     slog.Level
}

// New parses spec and returns a Filter for it.
func New(spec string, opts ...FilterOption) (*Filter, error) {
	parsed, err := ParseDirectives(spec)
	if err != nil {
		return nil, err
	}

	f := &Filter{
		defaultLevel: slog.LevelError,
	}
	for _, opt := range opts {
		opt(f)
	}

	directives := make(Directives, 0, len(parsed)+len(f.directives))
	directives = append(directives, parsed...)
	directives = append(directives, f.directives...)
	slices.SortStableFunc(directives, compareSpecificity)
	f.directives = directives

	f.maxLevel = f.defaultLevel
	for _, d := range f.directives {
		f.maxLevel = min(f.maxLevel, d.Level)
	}

	return f, nil
}

// MustNew is like New but panics if spec is malformed.
func MustNew(spec string, opts ...FilterOption) *Filter {
	f, err := New(spec, opts...)
	if err != nil {
		panic(err)
	}
	return f
}

// FromEnv builds a Filter from the environment variable key, or DefaultEnv
// if key is empty. An unset variable yields a filter with no directives.
func FromEnv(key string, opts ...FilterOption) (*Filter, error) {
	if key == "" {
		key = DefaultEnv
	}

	f, err := New(os.Getenv(key), opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	return f, nil
}

// compareSpecificity orders the more specific directive first.
func compareSpecificity(a, b Directive) int {
	if a.dynamic() != b.dynamic() {
		if a.dynamic() {
			return -1
		}
		return 1
	}
	if c := cmp.Compare(len(b.Target), len(a.Target)); c != 0 {
		return c
	}
	if (a.Span != "") != (b.Span != "") {
		if a.Span != "" {
			return -1
		}
		return 1
	}
	return cmp.Compare(len(b.Fields), len(a.Fields))
}

// Directives returns the directives in the order they are tried.
func (f *Filter) Directives() Directives {
	return slices.Clone(f.directives)
}

// DefaultLevel returns the threshold used when no directive applies.
func (f *Filter) DefaultLevel() slog.Level {
	return f.defaultLevel
}

// MaxLevel returns the most verbose level the filter can admit.
// Records below it are rejected without looking at directives.
func (f *Filter) MaxLevel() slog.Level {
	return f.maxLevel
}

// String returns the directives in the order they are tried.
func (f *Filter) String() string {
	return f.directives.String()
}

// EnabledForEvent reports whether an event is recorded. fields are the
// event's own fields; stack holds the spans it is raised in and may be nil.
func (f *Filter) EnabledForEvent(target string, level slog.Level, fields []Field, stack *Stack) bool {
	if level < f.maxLevel {
		return false
	}
	return level >= f.threshold(target, "", fields, stack, false)
}

// EnabledForSpan reports whether a span is created. fields are the span's own
// fields; stack holds its enclosing spans and may be nil.
//
// A field condition is satisfied when the span declares a field of that name,
// whatever its value. The value is checked when events are raised inside the
// span, so a span may be created while the events in it are rejected.
func (f *Filter) EnabledForSpan(target, name string, level slog.Level, fields []Field, stack *Stack) bool {
	if level < f.maxLevel {
		return false
	}
	return level >= f.threshold(target, name, fields, stack, true)
}

func (f *Filter) threshold(target, span string, fields []Field, stack *Stack, isSpan bool) slog.Level {
	for i := range f.directives {
		d := &f.directives[i]
		if !strings.HasPrefix(target, d.Target) {
			continue
		}
		if d.Span != "" && !(isSpan && span == d.Span) && !stack.hasSpan(d.Span) {
			continue
		}
		if !fieldsMatch(d.Fields, fields, stack, isSpan) {
			continue
		}
		return d.Level
	}
	return f.defaultLevel
}

// fieldsMatch looks each matcher's field up in own first, then in stack.
// With declared set, a field in own satisfies its matcher by name alone.
func fieldsMatch(matchers []Matcher, own []Field, stack *Stack, declared bool) bool {
	for _, m := range matchers {
		if i := indexField(own, m.Name); i >= 0 {
			if !declared && !m.Value.Equal(own[i].Value) {
				return false
			}
			continue
		}

		field, ok := stack.Lookup(m.Name)
		if !ok || !m.Value.Equal(field.Value) {
			return false
		}
	}
	return true
}
