// aviation/db.go
// Copyright(c) 2025 navlog contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package aviation

import (
	"context"
	"fmt"
	"strings"

	"github.com/hdsdk/navlog/math"
)

// NavDatabase is the navigation database lookup capability. AirportByIdent
// returns an error wrapping ErrNotFound for unknown airports.
// WaypointsByIdent returns every waypoint with the ident, in a stable
// order; an unknown ident gives an empty slice and no error.
type NavDatabase interface {
	AirportByIdent(ctx context.Context, icao string) (*Airport, error)
	WaypointsByIdent(ctx context.Context, ident string) ([]Waypoint, error)
}

type WaypointType byte

const (
	WaypointIntersection WaypointType = 'W'
	WaypointVOR          WaypointType = 'V'
	WaypointNDB          WaypointType = 'N'
	WaypointAirport      WaypointType = 'A'
)

type Waypoint struct {
	Ident    string
	Type     WaypointType
	Region   string // ICAO region code, e.g. "K6"
	Airport  string // set for terminal waypoints
	Location math.Point2LL
	// User is set for waypoints synthesized from raw coordinates rather
	// than found in the database.
	User bool
}

// ICAO returns the database key the host uses to refer to the waypoint:
// type, region, airport (blank padded) and ident.
func (w Waypoint) ICAO() string {
	return fmt.Sprintf("%c%-2s%-4s%s", w.Type, w.Region, w.Airport, w.Ident)
}

func (w Waypoint) String() string {
	return w.Ident + " " + w.Location.DDString()
}

///////////////////////////////////////////////////////////////////////////
// StaticDatabase

// StaticDatabase is an in-memory NavDatabase, typically built from a CIFP
// file by ParseARINC424.
type StaticDatabase struct {
	Airports  map[string]*Airport
	Waypoints map[string][]Waypoint // ident -> all waypoints with that ident
}

func NewStaticDatabase() *StaticDatabase {
	return &StaticDatabase{
		Airports:  make(map[string]*Airport),
		Waypoints: make(map[string][]Waypoint),
	}
}

func (db *StaticDatabase) AirportByIdent(ctx context.Context, icao string) (*Airport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if ap, ok := db.Airports[strings.ToUpper(icao)]; ok {
		return ap, nil
	}
	return nil, fmt.Errorf("%s: %w", icao, ErrNotFound)
}

func (db *StaticDatabase) WaypointsByIdent(ctx context.Context, ident string) ([]Waypoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return db.Waypoints[strings.ToUpper(ident)], nil
}

// AddWaypoint indexes w by its ident; a waypoint with the same ident,
// region, and airport as one already present is ignored.
func (db *StaticDatabase) AddWaypoint(w Waypoint) {
	for _, have := range db.Waypoints[w.Ident] {
		if have.Region == w.Region && have.Airport == w.Airport && have.Type == w.Type {
			return
		}
	}
	db.Waypoints[w.Ident] = append(db.Waypoints[w.Ident], w)
}

func (db *StaticDatabase) String() string {
	nwp := 0
	for _, wps := range db.Waypoints {
		nwp += len(wps)
	}
	return fmt.Sprintf("%d airports, %d waypoints (%d idents)", len(db.Airports), nwp, len(db.Waypoints))
}
