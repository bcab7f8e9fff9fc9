// aviation/airport.go
// Copyright(c) 2025 navlog contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package aviation

import (
	"slices"
	"strings"

	"github.com/hdsdk/navlog/math"
)

// Airport is what the navigation database returns for an airport ident.
// Info is nil when the database knows the airport but has no procedure
// or runway data for it.
type Airport struct {
	ICAO     string
	Region   string
	Location math.Point2LL
	Info     *AirportInfo
}

type AirportInfo struct {
	// Runways are one-way runways in database order.
	Runways []Runway
	// Departures are SIDs in database order; the host selects them by
	// index into this slice.
	Departures []Departure
}

// Infos returns the airport's runway and procedure information, if
// available.
func (ap *Airport) Infos() (*AirportInfo, bool) {
	if ap == nil || ap.Info == nil {
		return nil, false
	}
	return ap.Info, true
}

type Runway struct {
	Designation string // e.g. "15L"
	Heading     float64
	Threshold   math.Point2LL
}

// Departure is a SID and its transitions.
type Departure struct {
	Name               string
	RunwayTransitions  []Transition
	CommonFixes        []string
	EnRouteTransitions []Transition
}

type Transition struct {
	Name  string
	Fixes []string
}

// FormatRunway normalizes a runway designation so that e.g. "RW04L",
// "04L", " 4l" all compare equal.
func FormatRunway(rwy string) string {
	rwy = strings.ToUpper(strings.TrimSpace(rwy))
	rwy = strings.TrimPrefix(rwy, "RWY")
	rwy = strings.TrimPrefix(rwy, "RW")
	rwy = strings.TrimSpace(rwy)
	if t := strings.TrimLeft(rwy, "0"); t != "" {
		rwy = t
	}
	return rwy
}

// RunwayIndex returns the index of the runway matching the designation,
// or -1.
func (ai *AirportInfo) RunwayIndex(designation string) int {
	want := FormatRunway(designation)
	return slices.IndexFunc(ai.Runways, func(r Runway) bool {
		return FormatRunway(r.Designation) == want
	})
}

// DepartureIndex returns the index of the named SID, or -1.
func (ai *AirportInfo) DepartureIndex(name string) int {
	return slices.IndexFunc(ai.Departures, func(d Departure) bool { return d.Name == name })
}

// EnRouteTransitionIndex returns the index of the named en-route
// transition, or -1.
func (d Departure) EnRouteTransitionIndex(name string) int {
	return slices.IndexFunc(d.EnRouteTransitions, func(t Transition) bool { return t.Name == name })
}
