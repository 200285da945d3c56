/*
 * Copyright (c) 2024 yakumioto <yaku.mioto@gmail.com>
 * All rights reserved.
 */

package otelfilter

import (
	"log/slog"
	"sync/atomic"
)

// FrameID identifies a Frame for the life of the process.
type FrameID uint64

var lastFrameID atomic.Uint64

// Frame is an entered span together with the fields captured when it was created.
// Frames are not modified once created.
type Frame struct {
	ID     FrameID
	Name   string
	Target string
	Level  slog.Level

	fields []Field
}

// NewFrame returns a frame with a new ID. When fields repeat a name the last
// one wins.
func NewFrame(name, target string, level slog.Level, fields ...Field) *Frame {
	f := &Frame{
		ID:     FrameID(lastFrameID.Add(1)),
		Name:   name,
		Target: target,
		Level:  level,
		fields: make([]Field, 0, len(fields)),
	}

	for _, field := range fields {
		if i := indexField(f.fields, field.Name); i >= 0 {
			f.fields[i] = field
			continue
		}
		f.fields = append(f.fields, field)
	}

	return f
}

// Field returns the field called name.
func (f *Frame) Field(name string) (Field, bool) {
	if i := indexField(f.fields, name); i >= 0 {
		return f.fields[i], true
	}
	return Field{}, false
}

// Fields returns the frame's fields. The slice must not be modified.
func (f *Frame) Fields() []Field {
	return f.fields
}

func indexField(fields []Field, name string) int {
	for i := range fields {
		if fields[i].Name == name {
			return i
		}
	}
	return -1
}

// Stack is the chain of spans entered on one path of execution, innermost
// first. A nil *Stack is the empty stack.
//
// A Stack is never modified: Push returns a new node that points at its
// parent, so a Stack can be stored in a context.Context and read from any
// number of goroutines. Each goroutine sees exactly the spans entered on the
// path that produced its context.
type Stack struct {
	frame  *Frame
	parent *Stack
	depth  int
}

// Push returns the stack with frame entered on top of s.
func (s *Stack) Push(frame *Frame) *Stack {
	return &Stack{frame: frame, parent: s, depth: s.Len() + 1}
}

// Pop returns the stack without its innermost frame, and that frame.
// Popping the empty stack returns nil, nil.
func (s *Stack) Pop() (*Stack, *Frame) {
	if s == nil {
		return nil, nil
	}
	return s.parent, s.frame
}

// Top returns the innermost frame, or nil.
func (s *Stack) Top() *Frame {
	if s == nil {
		return nil
	}
	return s.frame
}

// Len returns the number of entered frames.
func (s *Stack) Len() int {
	if s == nil {
		return 0
	}
	return s.depth
}

// Frames returns the entered frames, outermost first.
func (s *Stack) Frames() []*Frame {
	if s == nil {
		return nil
	}

	frames := make([]*Frame, s.depth)
	for n := s; n != nil; n = n.parent {
		frames[n.depth-1] = n.frame
	}
	return frames
}

// Lookup returns the field called name from the innermost frame that has one.
func (s *Stack) Lookup(name string) (Field, bool) {
	for n := s; n != nil; n = n.parent {
		if field, ok := n.frame.Field(name); ok {
			return field, true
		}
	}
	return Field{}, false
}

// Snapshot returns the fields of all frames. Where names collide the
// innermost frame's field is kept.
func (s *Stack) Snapshot() []Field {
	var fields []Field
	for n := s; n != nil; n = n.parent {
		for _, field := range n.frame.fields {
			if indexField(fields, field.Name) < 0 {
				fields = append(fields, field)
			}
		}
	}
	return fields
}

// exit returns the stack below the frame with id. If no frame has id, s is
// returned unchanged.
func (s *Stack) exit(id FrameID) *Stack {
	for n := s; n != nil; n = n.parent {
		if n.frame.ID == id {
			return n.parent
		}
	}
	return s
}

// hasSpan reports whether a frame called name is entered.
func (s *Stack) hasSpan(name string) bool {
	for n := s; n != nil; n = n.parent {
		if n.frame.Name == name {
			return true
		}
	}
	return false
}
