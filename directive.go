/*
 * Copyright (c) 2024 yakumioto <yaku.mioto@gmail.com>
 * All rights reserved.
 */

package otelfilter

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
)

// ErrMalformedDirective is matched by every error returned from ParseDirectives.
var ErrMalformedDirective = errors.New("malformed directive")

// MalformedDirectiveError reports the clause of a filter string that
// could not be parsed.
type MalformedDirectiveError struct {
	Clause string
	Reason string
}

func (e *MalformedDirectiveError) Error() string {
	return fmt.Sprintf("malformed directive %q: %s", e.Clause, e.Reason)
}

// Is makes errors.Is(err, ErrMalformedDirective) true.
func (e *MalformedDirectiveError) Is(target error) bool {
	return target == ErrMalformedDirective
}

// Directive binds an optional target prefix, span name and field conditions
// to a level threshold.
//
// A directive is written
//
//	target[span{field=value,...}]=level
//
// where every part is optional.
type Directive struct {
	// Target is a prefix of the record target. Empty matches every target.
	Target string

	// Span, when set, restricts the directive to records inside a span of
	// that name.
	Span string

	// Fields must all match for the directive to apply. Empty means the
	// directive applies on target (and span) alone.
	Fields []Matcher

	// Level is the most verbose level the directive admits.
	Level slog.Level
}

// String writes d in directive syntax.
func (d Directive) String() string {
	var b strings.Builder
	d.write(&b)
	return b.String()
}

func (d Directive) write(b *strings.Builder) {
	if d.Target == "" && d.Span == "" && len(d.Fields) == 0 {
		b.WriteString(LevelString(d.Level))
		return
	}

	b.WriteString(d.Target)
	if d.Span != "" || len(d.Fields) > 0 {
		b.WriteByte('[')
		b.WriteString(d.Span)
		if len(d.Fields) > 0 {
			b.WriteByte('{')
			for i, m := range d.Fields {
				if i > 0 {
					b.WriteByte(',')
				}
				b.WriteString(m.String())
			}
			b.WriteByte('}')
		}
		b.WriteByte(']')
	}
	b.WriteByte('=')
	b.WriteString(LevelString(d.Level))
}

func (d Directive) dynamic() bool {
	return d.Span != "" || len(d.Fields) > 0
}

// Directives is an ordered set of directives.
type Directives []Directive

// String writes ds in directive syntax, comma separated.
func (ds Directives) String() string {
	var b strings.Builder
	for i, d := range ds {
		if i > 0 {
			b.WriteByte(',')
		}
		d.write(&b)
	}
	return b.String()
}

// ParseDirectives parses a filter string such as
//
//	error,db=info,http[request{user="admin",retry=true}]=debug
//
// A clause that is only a level sets the level for every target. A clause
// without a level has the implied level trace. Any malformed clause rejects
// the whole string with a *MalformedDirectiveError.
//
// Field values are read as follows: true and false are bools; integers that
// fit an int64 are signed; larger sign-free integers are unsigned; numbers
// containing '.', 'e' or 'E' are floats; a double quoted value matches the
// debug text of a field; anything else matches a string field exactly.
func ParseDirectives(spec string) (Directives, error) {
	clauses, err := splitTopLevel(spec)
	if err != nil {
		return nil, err
	}

	directives := make(Directives, 0, len(clauses))
	for _, clause := range clauses {
		clause = strings.TrimSpace(clause)
		if clause == "" {
			continue
		}

		d, err := parseClause(clause)
		if err != nil {
			return nil, err
		}
		directives = append(directives, d)
	}

	return directives, nil
}

// splitTopLevel splits s on commas that are outside brackets, braces and quotes.
func splitTopLevel(s string) ([]string, error) {
	var (
		parts   []string
		start   int
		depth   int
		quoted  bool
		escaped bool
	)

	for i := 0; i < len(s); i++ {
		c := s[i]
		if quoted {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				quoted = false
			}
			continue
		}

		switch c {
		case '"':
			quoted = true
		case '[', '{':
			depth++
		case ']', '}':
			depth--
			if depth < 0 {
				return nil, malformed(clauseAround(s, start), "unbalanced %q", c)
			}
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}

	if quoted {
		return nil, malformed(s[start:], "unterminated quoted value")
	}
	if depth != 0 {
		return nil, malformed(s[start:], "unbalanced brackets")
	}
	return append(parts, s[start:]), nil
}

func clauseAround(s string, start int) string {
	if end := strings.IndexByte(s[start:], ','); end >= 0 {
		return s[start : start+end]
	}
	return s[start:]
}

func parseClause(clause string) (Directive, error) {
	d := Directive{Level: LevelTrace}

	rest := clause
	closed := strings.LastIndexAny(rest, "]}\"")
	if i := strings.LastIndexByte(rest, '='); i >= 0 && i > closed {
		if closed >= 0 {
			if first := closed + 1 + strings.IndexByte(rest[closed+1:], '='); first < i {
				return Directive{}, malformed(clause, "unexpected %q after level %q", rest[i:], strings.TrimSpace(rest[first+1:i]))
			}
		}
		level, err := ParseLevel(rest[i+1:])
		if err != nil {
			return Directive{}, malformed(clause, "%v", err)
		}
		d.Level = level
		rest = strings.TrimSpace(rest[:i])
	} else if !strings.ContainsAny(rest, "[{=") {
		// A lone word is a global level if it is one, otherwise a target.
		if level, err := ParseLevel(rest); err == nil {
			d.Level = level
			return d, nil
		}
	}

	open := strings.IndexByte(rest, '[')
	if open < 0 {
		if err := checkName(rest, "target"); err != nil {
			return Directive{}, malformed(clause, "%v", err)
		}
		d.Target = rest
		return d, nil
	}

	d.Target = strings.TrimSpace(rest[:open])
	if err := checkName(d.Target, "target"); err != nil {
		return Directive{}, malformed(clause, "%v", err)
	}
	if !strings.HasSuffix(rest, "]") {
		return Directive{}, malformed(clause, "expected ']' at end of span block")
	}
	inner := strings.TrimSpace(rest[open+1 : len(rest)-1])

	brace := strings.IndexByte(inner, '{')
	if brace < 0 {
		d.Span = inner
		if d.Span == "" {
			return Directive{}, malformed(clause, "empty span block")
		}
		if err := checkName(d.Span, "span name"); err != nil {
			return Directive{}, malformed(clause, "%v", err)
		}
		return d, nil
	}

	d.Span = strings.TrimSpace(inner[:brace])
	if err := checkName(d.Span, "span name"); err != nil {
		return Directive{}, malformed(clause, "%v", err)
	}
	if !strings.HasSuffix(inner, "}") {
		return Directive{}, malformed(clause, "expected '}' at end of field block")
	}

	fields, err := parseFields(inner[brace+1 : len(inner)-1])
	if err != nil {
		return Directive{}, malformed(clause, "%v", err)
	}
	d.Fields = fields
	return d, nil
}

func parseFields(block string) ([]Matcher, error) {
	if strings.TrimSpace(block) == "" {
		return nil, nil
	}

	parts, err := splitTopLevel(block)
	if err != nil {
		return nil, errors.New("unbalanced field block")
	}

	matchers := make([]Matcher, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		eq := strings.IndexByte(part, '=')
		if eq < 0 {
			return nil, fmt.Errorf("field %q has no value", part)
		}

		name := strings.TrimSpace(part[:eq])
		if name == "" {
			return nil, fmt.Errorf("field %q has no name", part)
		}
		if err := checkName(name, "field name"); err != nil {
			return nil, err
		}

		val, err := ParseLiteral(strings.TrimSpace(part[eq+1:]))
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", name, err)
		}
		matchers = append(matchers, Matcher{Name: name, Value: val})
	}

	return matchers, nil
}

func checkName(s, what string) error {
	if i := strings.IndexAny(s, "[]{}=,\" \t\n"); i >= 0 {
		return fmt.Errorf("%s %q contains %q", what, s, s[i])
	}
	return nil
}

// ParseLiteral reads a field value the way ParseDirectives does.
func ParseLiteral(lit string) (Value, error) {
	if lit == "" {
		return Value{}, errors.New("empty value")
	}

	if lit[0] == '"' {
		text, ok := unquote(lit)
		if !ok {
			return Value{}, fmt.Errorf("bad quoted value %s", lit)
		}
		return DebugText(text), nil
	}
	if strings.ContainsAny(lit, "\"{}[]=,") {
		return Value{}, fmt.Errorf("unexpected character in value %q", lit)
	}

	switch lit {
	case "true":
		return BoolValue(true), nil
	case "false":
		return BoolValue(false), nil
	}

	if i, err := strconv.ParseInt(lit, 10, 64); err == nil {
		return Int64Value(i), nil
	}
	if lit[0] != '+' && lit[0] != '-' {
		if u, err := strconv.ParseUint(lit, 10, 64); err == nil {
			return Uint64Value(u), nil
		}
	}
	if strings.ContainsAny(lit, ".eE") {
		if f, err := strconv.ParseFloat(lit, 64); err == nil {
			return Float64Value(f), nil
		}
	}

	return StringValue(lit), nil
}

func unquote(lit string) (string, bool) {
	if len(lit) < 2 || lit[len(lit)-1] != '"' {
		return "", false
	}

	var b strings.Builder
	body := lit[1 : len(lit)-1]
	for i := 0; i < len(body); i++ {
		c := body[i]
		switch {
		case c == '\\' && i+1 < len(body) && (body[i+1] == '"' || body[i+1] == '\\'):
			i++
			b.WriteByte(body[i])
		case c == '"':
			return "", false
		default:
			b.WriteByte(c)
		}
	}
	return b.String(), true
}

func formatLiteral(v Value) string {
	switch v.kind {
	case KindDebug:
		r := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
		return `"` + r.Replace(v.str) + `"`
	case KindFloat64:
		s := v.String()
		if !strings.ContainsAny(s, ".eEnN") {
			s += ".0"
		}
		return s
	default:
		return v.String()
	}
}

func malformed(clause, format string, args ...any) error {
	return &MalformedDirectiveError{
		Clause: strings.TrimSpace(clause),
		Reason: fmt.Sprintf(format, args...),
	}
}
