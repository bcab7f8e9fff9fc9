// navlog/navlog.go
// Copyright(c) 2025 navlog contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// Package navlog holds the flight-planning data produced by an importer:
// origin, destination, route fixes, performance info, and the fuel and
// weight plans.
package navlog

import (
	"fmt"

	"github.com/hdsdk/navlog/math"
	"github.com/hdsdk/navlog/util"
)

// Units is the mass unit every quantity in a Navlog is expressed in.
type Units string

const (
	Kilograms Units = "kgs"
	Pounds    Units = "lbs"
)

// DirectSID is the SID name used when the route leaves the origin
// directly, with no published departure procedure.
const DirectSID = "DCT"

type Origin struct {
	ICAO          string `json:"icao"`
	PlannedRunway string `json:"planned_runway"`
}

type Destination struct {
	ICAO string `json:"icao"`
}

// Fix is one point in the route. A coordinates fix is placed at Lat/Lon
// directly; otherwise Ident is looked up in the navigation database and
// Lat/Lon, if present, only disambiguate between candidates.
type Fix struct {
	Ident                 string   `json:"ident"`
	IsCoordinatesWaypoint bool     `json:"is_coordinates_waypoint,omitempty"`
	Lat                   *float64 `json:"lat,omitempty"`
	Lon                   *float64 `json:"lon,omitempty"`
	Airway                string   `json:"airway,omitempty"`
}

// Location returns the fix's coordinates if both were given.
func (f Fix) Location() (math.Point2LL, bool) {
	if f.Lat == nil || f.Lon == nil {
		return math.Point2LL{}, false
	}
	return math.Point2LL{*f.Lon, *f.Lat}, true
}

type Info struct {
	InitialAltitude float64 `json:"initial_altitude"` // feet
	CostIndex       int     `json:"cost_index"`
	SID             string  `json:"sid"`
	EnRouteTrans    string  `json:"enroute_trans"`
	Units           Units   `json:"units"`
}

// HasDeparture reports whether a departure procedure should be selected.
func (i Info) HasDeparture() bool {
	return i.SID != DirectSID
}

type Fuel struct {
	PlannedRamp float64 `json:"planned_ramp"`
	Reserve     float64 `json:"reserve"`
}

type Weights struct {
	Payload float64 `json:"payload"`
}

// Navlog is a complete imported flight plan. It is built in one piece by
// Import and is not modified afterward.
type Navlog struct {
	Origin      Origin      `json:"origin"`
	Destination Destination `json:"destination"`
	Fixes       []Fix       `json:"fixes"`
	Info        Info        `json:"info"`
	Fuel        Fuel        `json:"fuel"`
	Weights     Weights     `json:"weights"`
}

const MaxCostIndex = 9999

// Validate checks the navlog's invariants and reports all violations
// together.
func (n *Navlog) Validate() error {
	var e util.ErrorLogger

	if n.Origin.ICAO == "" {
		e.ErrorString("origin ICAO missing")
	}
	if n.Destination.ICAO == "" {
		e.ErrorString("destination ICAO missing")
	}

	switch n.Info.Units {
	case Kilograms, Pounds:
	default:
		e.ErrorString("units %q: must be %q or %q", n.Info.Units, Kilograms, Pounds)
	}

	quantity := func(name string, v float64) {
		if !math.Finite(v) || v < 0 {
			e.ErrorString("%s: %v must be a non-negative quantity", name, v)
		}
	}
	quantity("initial altitude", n.Info.InitialAltitude)
	quantity("planned ramp fuel", n.Fuel.PlannedRamp)
	quantity("reserve fuel", n.Fuel.Reserve)
	quantity("payload", n.Weights.Payload)

	if n.Info.CostIndex < 0 || n.Info.CostIndex > MaxCostIndex {
		e.ErrorString("cost index %d: must be in 0-%d", n.Info.CostIndex, MaxCostIndex)
	}

	for i, fix := range n.Fixes {
		e.Push(fmt.Sprintf("fix %d (%s)", i+1, fix.Ident))
		p, hasLocation := fix.Location()
		if (fix.Lat == nil) != (fix.Lon == nil) {
			e.ErrorString("lat and lon must be given together")
		}
		if fix.IsCoordinatesWaypoint && !hasLocation {
			e.ErrorString("coordinates waypoint without lat/lon")
		}
		if !fix.IsCoordinatesWaypoint && fix.Ident == "" {
			e.ErrorString("ident missing")
		}
		if hasLocation && !p.Valid() {
			e.ErrorString("location %s out of range", p.DDString())
		}
		e.Pop()
	}

	return e.Err()
}

// Summary returns a one-line description for logging.
func (n *Navlog) Summary() string {
	return fmt.Sprintf("%s-%s via %s, %d fixes, FL%03d, CI %d, ramp %.0f %s",
		n.Origin.ICAO, n.Destination.ICAO, util.Select(n.Info.SID == "", DirectSID, n.Info.SID),
		len(n.Fixes), int(math.Round(n.Info.InitialAltitude/100)), n.Info.CostIndex,
		n.Fuel.PlannedRamp, n.Info.Units)
}
