// log/stack.go
// Copyright(c) 2025 navlog contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package log

import (
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
)

const modulePath = "github.com/hdsdk/navlog/"

// StackFrame is a navlog function on the call stack. Function is given
// relative to the module, e.g. "pipeline.(*Pipeline).Run".
type StackFrame struct {
	File     string `json:"file"`
	Line     int    `json:"line"`
	Function string `json:"function"`
}

// navlogFunction returns fn relative to the module path, or false if fn
// is in the standard library or a dependency. Functions in a main
// package are kept as is.
func navlogFunction(fn string) (string, bool) {
	if rel, ok := strings.CutPrefix(fn, modulePath); ok {
		return rel, true
	}
	return fn, strings.HasPrefix(fn, "main.")
}

// Callstack returns the navlog frames on the stack, innermost first,
// starting at the caller of the function that called Callstack (i.e. the
// code doing the logging). Runtime, standard library and dependency
// frames are dropped; the walk stops at main.main. fr's storage is
// reused.
func Callstack(fr []StackFrame) []StackFrame {
	var callers [32]uintptr
	n := runtime.Callers(3, callers[:])
	frames := runtime.CallersFrames(callers[:n])

	fr = fr[:0]
	for n > 0 {
		frame, more := frames.Next()
		if fn, ok := navlogFunction(frame.Function); ok {
			fr = append(fr, StackFrame{
				File:     filepath.Base(frame.File),
				Line:     frame.Line,
				Function: fn,
			})
		}
		if !more || frame.Function == "main.main" {
			break
		}
	}
	return fr
}

func (f StackFrame) String() string {
	return f.File + ":" + strconv.Itoa(f.Line) + ":" + f.Function
}
