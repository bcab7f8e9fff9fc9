// aviation/resolve.go
// Copyright(c) 2025 navlog contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package aviation

import (
	"context"
	"fmt"

	"github.com/hdsdk/navlog/math"
	"github.com/hdsdk/navlog/navlog"
)

// MatchPrecisions are the numbers of decimal places at which candidate
// coordinates are compared with a fix's, finest first.
var MatchPrecisions = [...]int{4, 3, 2, 1}

// SelectWaypoint picks the waypoint a fix refers to from the candidates
// that share its ident. A single candidate is returned as is. With more
// than one, the first candidate whose latitude and longitude both match
// the hint when rounded to 4 decimal places is returned; failing that,
// 3, then 2, then 1.
func SelectWaypoint(candidates []Waypoint, hint *math.Point2LL) (Waypoint, error) {
	switch len(candidates) {
	case 0:
		return Waypoint{}, ErrNotFound
	case 1:
		return candidates[0], nil
	}

	if hint == nil {
		return Waypoint{}, ErrAmbiguous
	}
	for _, precision := range MatchPrecisions {
		for _, c := range candidates {
			if c.Location.EqualAtPrecision(*hint, precision) {
				return c, nil
			}
		}
	}
	return Waypoint{}, ErrAmbiguous
}

// Resolver maps route fixes to waypoints.
type Resolver struct {
	DB NavDatabase
}

// Resolve returns the waypoint for fix. Coordinates fixes become user
// waypoints without consulting the database. Errors wrap ErrNotFound or
// ErrAmbiguous when the ident can't be resolved.
func (r Resolver) Resolve(ctx context.Context, fix navlog.Fix) (Waypoint, error) {
	loc, hasLocation := fix.Location()

	if fix.IsCoordinatesWaypoint {
		if !hasLocation {
			return Waypoint{}, fmt.Errorf("%s: coordinates waypoint without location: %w", fix.Ident, ErrNotFound)
		}
		return Waypoint{
			Ident:    fix.Ident,
			Type:     WaypointIntersection,
			Location: loc,
			User:     true,
		}, nil
	}

	candidates, err := r.DB.WaypointsByIdent(ctx, fix.Ident)
	if err != nil {
		return Waypoint{}, fmt.Errorf("%s: %w", fix.Ident, err)
	}

	var hint *math.Point2LL
	if hasLocation {
		hint = &loc
	}
	wp, err := SelectWaypoint(candidates, hint)
	if err != nil {
		return Waypoint{}, fmt.Errorf("%s: %d candidates: %w", fix.Ident, len(candidates), err)
	}
	return wp, nil
}
