/*
 * Copyright (c) 2024 yakumioto <yaku.mioto@gmail.com>
 * All rights reserved.
 */

package otelfilter

import (
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
)

// Kind is the recording kind of a Value.
type Kind int

const (
	KindBool Kind = iota
	KindInt64
	KindUint64
	KindFloat64
	KindString
	// KindDebug holds the text of a value that was not recorded as one of the
	// typed kinds above, e.g. structs, durations or named types such as
	// `type Flag bool`.
	KindDebug
)

var kindNames = []string{
	KindBool:    "Bool",
	KindInt64:   "Int64",
	KindUint64:  "Uint64",
	KindFloat64: "Float64",
	KindString:  "String",
	KindDebug:   "Debug",
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "<unknown otelfilter.Kind>"
}

// Value is a field value tagged with the kind it was recorded as. It is used
// both for captured fields and for the expected value of a Matcher.
// The zero Value is Bool false.
type Value struct {
	kind Kind
	num  uint64
	str  string
}

// BoolValue returns a Value for a bool.
func BoolValue(v bool) Value {
	var u uint64
	if v {
		u = 1
	}
	return Value{kind: KindBool, num: u}
}

// Int64Value returns a Value for an int64.
func Int64Value(v int64) Value {
	return Value{kind: KindInt64, num: uint64(v)}
}

// Uint64Value returns a Value for a uint64.
func Uint64Value(v uint64) Value {
	return Value{kind: KindUint64, num: v}
}

// Float64Value returns a Value for a float64.
func Float64Value(v float64) Value {
	return Value{kind: KindFloat64, num: math.Float64bits(v)}
}

// StringValue returns a Value for a string recorded as a string.
func StringValue(v string) Value {
	return Value{kind: KindString, str: v}
}

// DebugValue returns a Value holding the debug text of v.
func DebugValue(v any) Value {
	return Value{kind: KindDebug, str: fmt.Sprintf("%+v", v)}
}

// DebugText returns a Value for already rendered debug text.
func DebugText(text string) Value {
	return Value{kind: KindDebug, str: text}
}

// Kind returns the recording kind of v.
func (v Value) Kind() Kind { return v.kind }

// Bool returns v's value as a bool. It panics if v is not a bool.
func (v Value) Bool() bool {
	v.mustBe(KindBool)
	return v.num == 1
}

// Int64 returns v's value as an int64. It panics if v is not a signed integer.
func (v Value) Int64() int64 {
	v.mustBe(KindInt64)
	return int64(v.num)
}

// Uint64 returns v's value as a uint64. It panics if v is not an unsigned integer.
func (v Value) Uint64() uint64 {
	v.mustBe(KindUint64)
	return v.num
}

// Float64 returns v's value as a float64. It panics if v is not a float64.
func (v Value) Float64() float64 {
	v.mustBe(KindFloat64)
	return math.Float64frombits(v.num)
}

func (v Value) mustBe(k Kind) {
	if v.kind != k {
		panic(fmt.Sprintf("otelfilter: Value kind is %s, not %s", v.kind, k))
	}
}

// String returns the value rendered as text, for any kind.
func (v Value) String() string {
	switch v.kind {
	case KindBool:
		return strconv.FormatBool(v.num == 1)
	case KindInt64:
		return strconv.FormatInt(int64(v.num), 10)
	case KindUint64:
		return strconv.FormatUint(v.num, 10)
	case KindFloat64:
		return strconv.FormatFloat(math.Float64frombits(v.num), 'g', -1, 64)
	default:
		return v.str
	}
}

// Equal reports whether v and w have the same kind and the same value.
// There is no coercion between kinds: Int64Value(12) is not equal to
// Uint64Value(12), and StringValue("hy") is not equal to DebugText("hy").
// NaN is not equal to anything.
func (v Value) Equal(w Value) bool {
	if v.kind != w.kind {
		return false
	}
	switch v.kind {
	case KindFloat64:
		return math.Float64frombits(v.num) == math.Float64frombits(w.num)
	case KindString, KindDebug:
		return v.str == w.str
	default:
		return v.num == w.num
	}
}

// Field is a named value captured from a span or an event.
type Field struct {
	Name  string
	Value Value
}

// KeyValue converts f to an OpenTelemetry attribute.
func (f Field) KeyValue() attribute.KeyValue {
	switch f.Value.kind {
	case KindBool:
		return attribute.Bool(f.Name, f.Value.Bool())
	case KindInt64:
		return attribute.Int64(f.Name, f.Value.Int64())
	case KindFloat64:
		return attribute.Float64(f.Name, f.Value.Float64())
	// attribute.KeyValue does not support Uint64
	default:
		return attribute.String(f.Name, f.Value.String())
	}
}

// CaptureValue converts a slog.Value to a Value.
//
// Only the typed slog kinds are recorded typed. Everything else, including
// values of named types that slog.AnyValue stores as KindAny, is recorded as
// debug text and can only be matched by a quoted directive literal.
func CaptureValue(val slog.Value) Value {
	val = val.Resolve()

	switch val.Kind() {
	case slog.KindBool:
		return BoolValue(val.Bool())
	case slog.KindInt64:
		return Int64Value(val.Int64())
	case slog.KindUint64:
		return Uint64Value(val.Uint64())
	case slog.KindFloat64:
		return Float64Value(val.Float64())
	case slog.KindString:
		return StringValue(val.String())
	case slog.KindDuration:
		return DebugText(val.Duration().String())
	case slog.KindTime:
		return DebugText(val.Time().Format(time.RFC3339))
	default:
		return DebugValue(val.Any())
	}
}

// CaptureAttr converts attr to fields and passes them to handler. Groups are
// flattened, their keys joined with "." and prefixed by groupKeys.
func CaptureAttr(attr slog.Attr, handler func(Field), groupKeys ...string) {
	key := attr.Key
	if len(groupKeys) > 0 {
		key = strings.Join(groupKeys, ".") + "." + attr.Key
	}

	val := attr.Value.Resolve()
	if val.Kind() == slog.KindGroup {
		// Inline groups, as slog handlers do for an empty key.
		if attr.Key == "" {
			for _, groupAttr := range val.Group() {
				CaptureAttr(groupAttr, handler, groupKeys...)
			}
			return
		}
		for _, groupAttr := range val.Group() {
			CaptureAttr(groupAttr, handler, key)
		}
		return
	}

	if attr.Key == "" {
		return
	}
	handler(Field{Name: key, Value: CaptureValue(val)})
}

// CaptureAttrs converts attrs to fields.
func CaptureAttrs(attrs []slog.Attr, groupKeys ...string) []Field {
	fields := make([]Field, 0, len(attrs))
	for _, attr := range attrs {
		CaptureAttr(attr, func(f Field) {
			fields = append(fields, f)
		}, groupKeys...)
	}
	return fields
}

// Matcher is the field condition of a Directive: the field called Name
// must have been recorded with the kind of Value and compare equal to it.
type Matcher struct {
	Name  string
	Value Value
}

// Matches reports whether f satisfies m.
func (m Matcher) Matches(f Field) bool {
	return f.Name == m.Name && m.Value.Equal(f.Value)
}

// String writes m in directive syntax.
func (m Matcher) String() string {
	return m.Name + "=" + formatLiteral(m.Value)
}
