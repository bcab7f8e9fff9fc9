// navlog/import.go
// Copyright(c) 2025 navlog contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package navlog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hdsdk/navlog/log"

	"github.com/brunoga/deep"
)

// Importer produces a navlog from some external source. Execute is called
// exactly once; the accessors are only meaningful after it succeeds.
type Importer interface {
	Execute(ctx context.Context) error
	Origin() Origin
	Destination() Destination
	Fixes() []Fix
	Info() Info
	Fuel() Fuel
	Weights() Weights
}

var ErrImporterNotSet = errors.New("Importer is not set")

// ImportError reports a failed import. No host state has been touched
// when it is returned, so the import can simply be retried.
type ImportError struct {
	Source string
	Err    error
}

func (e *ImportError) Error() string {
	if e.Source == "" {
		return "navlog import: " + e.Err.Error()
	}
	return "navlog import from " + e.Source + ": " + e.Err.Error()
}

func (e *ImportError) Unwrap() error { return e.Err }

// Sourced is implemented by importers that can describe where they read
// from; it is only used for error messages and logging.
type Sourced interface {
	Source() string
}

// Import runs the importer and returns the complete, validated navlog.
// The returned Navlog is a deep copy, so the importer can't modify it
// afterward. Either a complete model is returned or an *ImportError.
func Import(ctx context.Context, imp Importer, lg *log.Logger) (*Navlog, error) {
	if imp == nil {
		return nil, &ImportError{Err: ErrImporterNotSet}
	}

	var source string
	if s, ok := imp.(Sourced); ok {
		source = s.Source()
	}

	if err := imp.Execute(ctx); err != nil {
		lg.Warn("navlog import failed", slog.String("source", source), slog.Any("error", err))
		return nil, &ImportError{Source: source, Err: err}
	}

	n, err := deep.Copy(Navlog{
		Origin:      imp.Origin(),
		Destination: imp.Destination(),
		Fixes:       imp.Fixes(),
		Info:        imp.Info(),
		Fuel:        imp.Fuel(),
		Weights:     imp.Weights(),
	})
	if err != nil {
		return nil, &ImportError{Source: source, Err: fmt.Errorf("copying navlog: %w", err)}
	}

	if err := n.Validate(); err != nil {
		lg.Warn("imported navlog is invalid", slog.String("source", source), slog.Any("error", err))
		return nil, &ImportError{Source: source, Err: err}
	}

	lg.Info("imported navlog", slog.String("source", source), slog.String("summary", n.Summary()))

	return &n, nil
}
