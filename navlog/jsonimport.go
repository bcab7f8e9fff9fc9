// navlog/jsonimport.go
// Copyright(c) 2025 navlog contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package navlog

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/hdsdk/navlog/math"
	"github.com/hdsdk/navlog/util"
)

// JSONImporter reads a navlog document in navlog's own JSON layout,
// which mirrors the Navlog struct. A fix may give its coordinates either
// as "lat"/"lon" or as a "position" string in any form math.ParseLatLong
// accepts.
type JSONImporter struct {
	// Path is read when Reader is nil.
	Path   string
	Reader io.Reader

	doc Navlog
}

type jsonFix struct {
	Fix
	Position string `json:"position,omitempty"`
}

type jsonNavlog struct {
	Navlog
	Fixes []jsonFix `json:"fixes"`
}

func (j *JSONImporter) Source() string {
	if j.Reader != nil {
		return "<reader>"
	}
	return j.Path
}

func (j *JSONImporter) Execute(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r := j.Reader
	if r == nil {
		if j.Path == "" {
			return fmt.Errorf("no navlog path or reader given")
		}
		f, err := os.Open(j.Path)
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}

	contents, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	var doc jsonNavlog
	if err := util.DecodeJSON(contents, &doc); err != nil {
		return fmt.Errorf("decoding navlog: %w", err)
	}

	n := doc.Navlog
	n.Info.Units = Units(strings.ToLower(string(n.Info.Units)))
	n.Fixes = nil
	for i, f := range doc.Fixes {
		fix := f.Fix
		if f.Position != "" {
			p, err := math.ParseLatLong([]byte(f.Position))
			if err != nil {
				return fmt.Errorf("fix %d (%s): %w", i+1, fix.Ident, err)
			}
			lat, lon := p.Latitude(), p.Longitude()
			fix.Lat, fix.Lon = &lat, &lon
		}
		fix.Ident = strings.ToUpper(strings.TrimSpace(fix.Ident))
		n.Fixes = append(n.Fixes, fix)
	}
	n.Origin.ICAO = strings.ToUpper(n.Origin.ICAO)
	n.Destination.ICAO = strings.ToUpper(n.Destination.ICAO)

	j.doc = n
	return nil
}

func (j *JSONImporter) Origin() Origin           { return j.doc.Origin }
func (j *JSONImporter) Destination() Destination { return j.doc.Destination }
func (j *JSONImporter) Fixes() []Fix             { return j.doc.Fixes }
func (j *JSONImporter) Info() Info               { return j.doc.Info }
func (j *JSONImporter) Fuel() Fuel               { return j.doc.Fuel }
func (j *JSONImporter) Weights() Weights         { return j.doc.Weights }
