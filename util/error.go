// util/error.go
// Copyright(c) 2025 navlog contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package util

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorLogger accumulates validation errors along with context about what
// was being checked when each was found, so that validation can continue
// past the first problem and report all of them.
type ErrorLogger struct {
	// Tracked via Push()/Pop() calls to remember what we're looking at if
	// an error is found.
	hierarchy []string
	// Actual error messages to report.
	errors []string
}

func (e *ErrorLogger) Push(s string) {
	e.hierarchy = append(e.hierarchy, s)
}

func (e *ErrorLogger) Pop() {
	e.hierarchy = e.hierarchy[:len(e.hierarchy)-1]
}

func (e *ErrorLogger) ErrorString(s string, args ...any) {
	msg := fmt.Sprintf(s, args...)
	if len(e.hierarchy) > 0 {
		msg = strings.Join(e.hierarchy, " / ") + ": " + msg
	}
	e.errors = append(e.errors, msg)
}

func (e *ErrorLogger) Error(err error) {
	e.ErrorString("%v", err)
}

func (e *ErrorLogger) HaveErrors() bool {
	return len(e.errors) > 0
}

func (e *ErrorLogger) String() string {
	return strings.Join(e.errors, "\n")
}

// Err returns the accumulated errors as a single error, or nil if there
// were none.
func (e *ErrorLogger) Err() error {
	if !e.HaveErrors() {
		return nil
	}
	return errors.New(strings.Join(e.errors, "; "))
}

func (e *ErrorLogger) CurrentDepth() int {
	if e == nil {
		return 0
	}
	return len(e.hierarchy)
}
