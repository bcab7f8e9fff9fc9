// fms/host.go
// Copyright(c) 2025 navlog contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// Package fms defines the capabilities a host flight management system
// exposes to the apply pipeline and provides SimHost, an in-memory host.
package fms

import (
	"context"
	"errors"

	"github.com/hdsdk/navlog/aviation"
)

var ErrHostRejected = errors.New("Rejected by host")

// HostFlightPlan mutates the host's flight plan. Methods that take an
// index follow the host's conventions: -1 for a procedure or transition
// index means none, and a waypoint index is the position the new waypoint
// takes in the plan.
type HostFlightPlan interface {
	SetOrigin(ctx context.Context, ap *aviation.Airport) error
	SetOriginRunwayIndex(ctx context.Context, index int) error
	SetDestination(ctx context.Context, ap *aviation.Airport) error
	// AddWaypoint inserts the database waypoint with the given ICAO key.
	AddWaypoint(ctx context.Context, icao string, index int) error
	AddUserWaypoint(ctx context.Context, wp aviation.Waypoint, index int) error
	SetDepartureProcIndex(ctx context.Context, index int) error
	SetDepartureEnrouteTransitionIndex(ctx context.Context, index int) error
	// EnsureTemporaryPlan makes subsequent changes go to the modification
	// plan, creating it if needed.
	EnsureTemporaryPlan(ctx context.Context) error
	// WaypointsCount is the number of waypoints in the plan, including
	// the origin and destination.
	WaypointsCount(ctx context.Context) (int, error)
	// Origin returns the plan's origin airport, or nil if it has none.
	Origin(ctx context.Context) (*aviation.Airport, error)
}

type Tank int

const (
	TankLeft Tank = iota
	TankCenter
	TankRight
)

func (t Tank) String() string {
	switch t {
	case TankLeft:
		return "left"
	case TankCenter:
		return "center"
	case TankRight:
		return "right"
	default:
		return "unknown"
	}
}

// HostAvionicsState writes performance and weight values. Weights are in
// pounds except where the host expects thousands of pounds.
type HostAvionicsState interface {
	// SetCruiseAltitude takes a flight level.
	SetCruiseAltitude(ctx context.Context, fl int) error
	// SetCostIndex returns false if the host doesn't accept ci given the
	// maximum max.
	SetCostIndex(ctx context.Context, ci, max int) (bool, error)
	// SetZeroFuelWeight takes thousands of pounds.
	SetZeroFuelWeight(ctx context.Context, klb float64) error
	SetBlockFuel(ctx context.Context, lb float64) error
	// SetFuelReserves takes thousands of pounds.
	SetFuelReserves(ctx context.Context, klb float64) error
	SetTankQuantity(ctx context.Context, tank Tank, gallons float64) error
	SetPayloadStation(ctx context.Context, station int, lb float64) error
}

// ProgressSink is told about each route waypoint before it is inserted.
type ProgressSink interface {
	ReportProgress(current, total int, ident string)
}

// ErrorSink shows a message to the pilot, e.g. on the FMS scratchpad.
type ErrorSink interface {
	ShowUserError(msg string)
}

// Host bundles the capabilities of a single host session.
type Host interface {
	HostFlightPlan
	HostAvionicsState
	ProgressSink
	ErrorSink
}
