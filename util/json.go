// util/json.go
// Copyright(c) 2025 navlog contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package util

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// DuplicateJSONKey is a key that appears more than once in the same JSON
// object.
type DuplicateJSONKey struct {
	Path string // path of the enclosing object, e.g. "fuel.reserve"
	Key  string
}

func (d DuplicateJSONKey) String() string {
	if d.Path == "" {
		return d.Key
	}
	return d.Path + "." + d.Key
}

// FindDuplicateJSONKeys returns the duplicated keys in data, in document
// order. Array elements share their array's path. Scanning stops at the
// first syntax error.
func FindDuplicateJSONKeys(data []byte) []DuplicateJSONKey {
	dec := json.NewDecoder(bytes.NewReader(data))
	var dups []DuplicateJSONKey

	var walk func(path string) bool
	walk = func(path string) bool {
		tok, err := dec.Token()
		if err != nil {
			return false
		}
		delim, ok := tok.(json.Delim)
		if !ok {
			return true
		}

		switch delim {
		case '{':
			seen := make(map[string]bool)
			for dec.More() {
				tok, err := dec.Token()
				if err != nil {
					return false
				}
				key, _ := tok.(string)
				if seen[key] {
					dups = append(dups, DuplicateJSONKey{Path: path, Key: key})
				}
				seen[key] = true

				sub := key
				if path != "" {
					sub = path + "." + key
				}
				if !walk(sub) {
					return false
				}
			}
		case '[':
			for dec.More() {
				if !walk(path) {
					return false
				}
			}
		}

		// Closing delimiter.
		_, err = dec.Token()
		return err == nil
	}
	walk("")

	return dups
}

// JSONError is a decoding error along with where in the input it was
// found.
type JSONError struct {
	Line, Char int
	Err        error
}

func (e *JSONError) Error() string {
	return fmt.Sprintf("line %d, character %d: %v", e.Line, e.Char, e.Err)
}

func (e *JSONError) Unwrap() error { return e.Err }

func jsonPosition(b []byte, offset int64) (line, char int) {
	line, char = 1, 1
	for i := 0; i < int(offset) && i < len(b); i++ {
		if b[i] == '\n' {
			line++
			char = 1
		} else {
			char++
		}
	}
	return
}

// DecodeJSON unmarshals b into out, which may already hold defaults.
// Unknown fields and duplicate keys are errors; decoding errors are
// returned as a *JSONError.
func DecodeJSON[T any](b []byte, out *T) error {
	if dups := FindDuplicateJSONKeys(b); len(dups) > 0 {
		return fmt.Errorf("duplicate keys: %s", strings.Join(MapSlice(dups, DuplicateJSONKey.String), ", "))
	}

	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	err := dec.Decode(out)
	if err == nil {
		return nil
	}

	offset := dec.InputOffset()
	var serr *json.SyntaxError
	var terr *json.UnmarshalTypeError
	if errors.As(err, &serr) {
		offset = serr.Offset
	} else if errors.As(err, &terr) {
		offset = terr.Offset
		err = fmt.Errorf("%s value for %s invalid for type %s: %w", terr.Value, terr.Field, terr.Type, err)
	}
	line, char := jsonPosition(b, offset)
	return &JSONError{Line: line, Char: char, Err: err}
}
