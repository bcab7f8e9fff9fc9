// pipeline/pipeline_test.go
// Copyright(c) 2025 navlog contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package pipeline

import (
	"context"
	"errors"
	"io"
	"slices"
	"testing"
	"time"

	"github.com/hdsdk/navlog/aviation"
	"github.com/hdsdk/navlog/fms"
	"github.com/hdsdk/navlog/fuel"
	"github.com/hdsdk/navlog/log"
	"github.com/hdsdk/navlog/math"
	"github.com/hdsdk/navlog/navlog"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func testDB() *aviation.StaticDatabase {
	db := aviation.NewStaticDatabase()
	db.Airports["KIAH"] = &aviation.Airport{ICAO: "KIAH", Region: "K4", Info: &aviation.AirportInfo{
		Runways: []aviation.Runway{{Designation: "08L"}, {Designation: "15L"}, {Designation: "33R"}},
		Departures: []aviation.Departure{
			{Name: "MKAYE1", EnRouteTransitions: []aviation.Transition{{Name: "ELD"}}},
			{Name: "RITAA6", EnRouteTransitions: []aviation.Transition{{Name: "BILEE"}, {Name: "LFK"}}},
		},
	}}
	db.Airports["KJFK"] = &aviation.Airport{ICAO: "KJFK", Region: "K6", Info: &aviation.AirportInfo{}}
	db.Airports["KXYZ"] = &aviation.Airport{ICAO: "KXYZ"}

	db.AddWaypoint(aviation.Waypoint{Ident: "ALPHA", Type: aviation.WaypointIntersection, Region: "K1",
		Location: math.Point2LL{-73.1111, 40.1111}})
	db.AddWaypoint(aviation.Waypoint{Ident: "ALPHA", Type: aviation.WaypointIntersection, Region: "K2",
		Location: math.Point2LL{-73.1234, 40.1234}})
	db.AddWaypoint(aviation.Waypoint{Ident: "BRAVO", Type: aviation.WaypointVOR, Region: "K6",
		Location: math.Point2LL{-74, 41}})
	return db
}

func testNavlog() *navlog.Navlog {
	return &navlog.Navlog{
		Origin:      navlog.Origin{ICAO: "KIAH", PlannedRunway: "15L"},
		Destination: navlog.Destination{ICAO: "KJFK"},
		Fixes: []navlog.Fix{
			{Ident: "ALPHA", Lat: ptr(40.1234), Lon: ptr(-73.1234), Airway: "DCT"},
			{Ident: "4030N07330W", IsCoordinatesWaypoint: true, Lat: ptr(40.5), Lon: ptr(-73.5), Airway: "DCT"},
			{Ident: "BRAVO", Airway: "J75"},
		},
		Info: navlog.Info{
			InitialAltitude: 35000,
			CostIndex:       80,
			SID:             "RITAA6",
			EnRouteTrans:    "LFK",
			Units:           navlog.Pounds,
		},
		Fuel:    navlog.Fuel{PlannedRamp: 70000, Reserve: 5000},
		Weights: navlog.Weights{Payload: 40000},
	}
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.Logger = log.NewWriter(io.Discard, "debug")
	return opts
}

func run(t *testing.T, nl *navlog.Navlog, db aviation.NavDatabase, h *fms.SimHost, opts Options) (*Result, error) {
	t.Helper()
	p := New(nl, db, h, opts)
	assert.Equal(t, Idle, p.State())
	return p.Run(context.Background())
}

func callsOf(h *fms.SimHost, method string) []fms.Call {
	var calls []fms.Call
	for _, c := range h.Journal() {
		if c.Method == method {
			calls = append(calls, c)
		}
	}
	return calls
}

func TestRunComplete(t *testing.T) {
	h := fms.NewSimHost(nil)
	res, err := run(t, testNavlog(), testDB(), h, testOptions())
	require.NoError(t, err)

	assert.Equal(t, Complete, res.State)
	assert.NotEqual(t, [16]byte{}, [16]byte(res.RunID))
	assert.Equal(t, 3, res.Inserted)
	for _, s := range []State{OriginSet, DestinationSet, RunwaySet, AltitudeSet, PayloadSet, FuelSet,
		CostIndexSet, DepartureSet, RouteInserted} {
		o, ok := res.Outcome(s)
		require.True(t, ok, s)
		assert.Equal(t, Applied, o, s)
	}
	_, ok := res.Outcome(Complete)
	assert.False(t, ok)

	want := []string{"SetOrigin", "SetDestination", "Origin", "EnsureTemporaryPlan", "SetOriginRunwayIndex",
		"SetCruiseAltitude"}
	want = append(want, slices.Repeat([]string{"SetTankQuantity"}, 3)...)
	want = append(want, slices.Repeat([]string{"SetPayloadStation"}, 7)...)
	want = append(want, "SetBlockFuel", "SetZeroFuelWeight")
	want = append(want, slices.Repeat([]string{"SetTankQuantity"}, 3)...)
	want = append(want, "SetBlockFuel", "SetFuelReserves", "SetCostIndex",
		"EnsureTemporaryPlan", "SetDepartureProcIndex", "EnsureTemporaryPlan", "SetDepartureEnrouteTransitionIndex")
	for _, add := range []string{"AddWaypoint", "AddUserWaypoint", "AddWaypoint"} {
		want = append(want, "WaypointsCount", "ReportProgress", "EnsureTemporaryPlan", add)
	}
	assert.Equal(t, want, h.Methods())

	fp := h.FlightPlan()
	assert.Equal(t, "KIAH", fp.Origin.ICAO)
	assert.Equal(t, "KJFK", fp.Destination.ICAO)
	assert.Equal(t, 1, fp.OriginRunway)
	assert.Equal(t, 1, fp.Departure)
	assert.Equal(t, 1, fp.EnrouteTransition)
	assert.True(t, fp.Temporary)
	require.Len(t, fp.Route, 3)
	assert.Equal(t, "WK2    ALPHA", fp.Route[0].ICAO)
	assert.True(t, fp.Route[1].User)
	assert.Equal(t, math.Point2LL{-73.5, 40.5}, fp.Route[1].Location)
	assert.Equal(t, "BRAVO", fp.Route[2].Ident)

	// Each fix goes at the end of the route, ahead of the destination.
	var indices []any
	for _, c := range h.Journal() {
		if c.Method == "AddWaypoint" || c.Method == "AddUserWaypoint" {
			indices = append(indices, c.Args[1])
		}
	}
	assert.Equal(t, []any{1, 2, 3}, indices)

	av := h.Avionics()
	assert.Equal(t, 350, av.CruiseFL)
	assert.Equal(t, 80, av.CostIndex)
	assert.InDelta(t, 338.7, av.ZeroFuelWeight, 1e-9)
	assert.Equal(t, 70000.0, av.BlockFuel)
	assert.Equal(t, 5.0, av.Reserves)
	assert.InDelta(t, 35000/fuel.PoundsPerGallon, av.Tanks[fms.TankLeft], 1e-9)
	assert.InDelta(t, 35000/fuel.PoundsPerGallon, av.Tanks[fms.TankRight], 1e-9)
	assert.Equal(t, 0.0, av.Tanks[fms.TankCenter])
	assert.Equal(t, map[int]float64{1: 200, 2: 200, 3: 0, 4: 0, 5: 0, 6: 0, 7: 0}, av.Payload)

	assert.Equal(t, fuel.Allocation{Left: 35000, Right: 35000}, res.Allocation)
	assert.Equal(t, 70000.0, res.BlockFuel)
	assert.Equal(t, 5000.0, res.Reserve)
	assert.Equal(t, 338700.0, res.ZeroFuelWeight)

	assert.Empty(t, h.UserErrors())
	assert.Equal(t, "KIAH/15L RITAA6.LFK ALPHA 4030N07330W BRAVO KJFK\n"+
		"FL350 CI 80 ZFW 338.7 BLOCK 70000 RSV 5.0\n"+
		"left tank: 5223.9 gal\ncenter tank: 0.0 gal\nright tank: 5223.9 gal\n", h.String())
}

func TestRunOnce(t *testing.T) {
	p := New(testNavlog(), testDB(), fms.NewSimHost(nil), testOptions())
	_, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Complete, p.State())

	_, err = p.Run(context.Background())
	assert.ErrorIs(t, err, ErrAlreadyRun)
}

func TestPayloadBeforeFuel(t *testing.T) {
	for _, units := range []navlog.Units{navlog.Pounds, navlog.Kilograms} {
		for _, ramp := range []float64{0, 1, 20001, 74638, 74639, 150000, 500000} {
			nl := testNavlog()
			nl.Info.Units = units
			nl.Fuel.PlannedRamp = ramp

			h := fms.NewSimHost(nil)
			_, err := run(t, nl, testDB(), h, testOptions())
			require.NoError(t, err)

			methods := h.Methods()
			zfw := slices.Index(methods, "SetZeroFuelWeight")
			reserves := slices.Index(methods, "SetFuelReserves")
			require.GreaterOrEqual(t, zfw, 0)
			assert.Less(t, zfw, reserves)

			// The three tank writes after the zero fuel weight carry the
			// allocation; the ones before are the keep-alive fuel.
			var tankWrites []int
			for i, m := range methods {
				if m == "SetTankQuantity" {
					tankWrites = append(tankWrites, i)
				}
			}
			require.Len(t, tankWrites, 6)
			assert.Less(t, tankWrites[2], zfw)
			assert.Greater(t, tankWrites[3], zfw)
		}
	}
}

func TestKeepAliveFuel(t *testing.T) {
	h := fms.NewSimHost(nil)
	_, err := run(t, testNavlog(), testDB(), h, testOptions())
	require.NoError(t, err)

	tanks := callsOf(h, "SetTankQuantity")
	require.Len(t, tanks, 6)
	for i, want := range []struct {
		tank fms.Tank
		lb   float64
	}{{fms.TankCenter, 0}, {fms.TankLeft, 20}, {fms.TankRight, 20}} {
		assert.Equal(t, want.tank, tanks[i].Args[0])
		assert.InDelta(t, want.lb/fuel.PoundsPerGallon, tanks[i].Args[1].(float64), 1e-9)
	}

	blocks := callsOf(h, "SetBlockFuel")
	require.Len(t, blocks, 2)
	assert.Equal(t, []any{0.0}, blocks[0].Args)
}

func TestFuelUnits(t *testing.T) {
	tests := []struct {
		name        string
		units       navlog.Units
		ramp        float64
		payload     float64
		want        fuel.Allocation
		wantZFW     float64
		wantReserve float64
	}{
		{
			name:        "pounds, side tanks only",
			units:       navlog.Pounds,
			ramp:        70000,
			payload:     40000,
			want:        fuel.Allocation{Left: 35000, Right: 35000},
			wantZFW:     338700,
			wantReserve: 5000,
		},
		{
			name:        "pounds, center tank",
			units:       navlog.Pounds,
			ramp:        90000,
			payload:     40000,
			want:        fuel.Allocation{Left: 37319, Right: 37319, Center: 15362},
			wantZFW:     338700,
			wantReserve: 5000,
		},
		{
			name:        "kilograms",
			units:       navlog.Kilograms,
			ramp:        40000,
			payload:     40000,
			want:        fuel.Allocation{Left: 37319, Right: 37319, Center: 88184.9048 - 74638},
			wantZFW:     386884.9048,
			wantReserve: 11023.1131,
		},
		{
			name:        "over capacity",
			units:       navlog.Pounds,
			ramp:        300000,
			payload:     0,
			want:        fuel.Allocation{Left: 37319, Right: 37319, Center: 149034, Excess: 300000 - 223672},
			wantZFW:     298700,
			wantReserve: 5000,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nl := testNavlog()
			nl.Info.Units = tt.units
			nl.Fuel.PlannedRamp = tt.ramp
			nl.Weights.Payload = tt.payload

			h := fms.NewSimHost(nil)
			res, err := run(t, nl, testDB(), h, testOptions())
			require.NoError(t, err)

			assert.InDelta(t, tt.want.Left, res.Allocation.Left, 1e-6)
			assert.InDelta(t, tt.want.Right, res.Allocation.Right, 1e-6)
			assert.InDelta(t, tt.want.Center, res.Allocation.Center, 1e-6)
			assert.InDelta(t, tt.want.Excess, res.Allocation.Excess, 1e-6)
			assert.InDelta(t, tt.wantZFW, res.ZeroFuelWeight, 1e-6)
			assert.InDelta(t, tt.wantReserve, res.Reserve, 1e-6)

			av := h.Avionics()
			assert.InDelta(t, tt.want.Total(), av.BlockFuel, 1e-6)
			assert.InDelta(t, tt.wantZFW/1000, av.ZeroFuelWeight, 1e-9)
			assert.InDelta(t, tt.want.Center/fuel.PoundsPerGallon, av.Tanks[fms.TankCenter], 1e-6)
		})
	}
}

func TestDepartureSkipped(t *testing.T) {
	tests := []struct {
		name    string
		sid     string
		withSID bool
	}{
		{name: "direct", sid: navlog.DirectSID, withSID: true},
		{name: "disabled", sid: "RITAA6", withSID: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nl := testNavlog()
			nl.Info.SID = tt.sid
			opts := testOptions()
			opts.WithSID = tt.withSID

			h := fms.NewSimHost(nil)
			res, err := run(t, nl, testDB(), h, opts)
			require.NoError(t, err)

			o, ok := res.Outcome(DepartureSet)
			require.True(t, ok)
			assert.Equal(t, Skipped, o)
			assert.NotContains(t, h.Methods(), "SetDepartureProcIndex")
			assert.NotContains(t, h.Methods(), "SetDepartureEnrouteTransitionIndex")
			assert.Equal(t, 3, res.Inserted)
		})
	}
}

func TestDepartureIndexPassThrough(t *testing.T) {
	tests := []struct {
		name      string
		origin    string
		sid       string
		trans     string
		wantSID   int
		wantTrans int
		wantErr   error
	}{
		{name: "found", origin: "KIAH", sid: "MKAYE1", trans: "ELD", wantSID: 0, wantTrans: 0},
		{name: "no transition", origin: "KIAH", sid: "RITAA6", trans: "", wantSID: 1, wantTrans: -1},
		{name: "unknown transition", origin: "KIAH", sid: "RITAA6", trans: "NOPE", wantSID: 1, wantTrans: -1,
			wantErr: aviation.ErrNotFound},
		{name: "unknown SID", origin: "KIAH", sid: "NOPE1", trans: "LFK", wantSID: -1, wantTrans: -1,
			wantErr: aviation.ErrUnknownDeparture},
		{name: "no airport info", origin: "KXYZ", sid: "RITAA6", trans: "LFK", wantSID: -1, wantTrans: -1,
			wantErr: aviation.ErrUnknownDeparture},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nl := testNavlog()
			nl.Origin.ICAO = tt.origin
			nl.Info.SID = tt.sid
			nl.Info.EnRouteTrans = tt.trans

			h := fms.NewSimHost(nil)
			res, err := run(t, nl, testDB(), h, testOptions())
			require.NoError(t, err)

			sid := callsOf(h, "SetDepartureProcIndex")
			require.Len(t, sid, 1)
			assert.Equal(t, []any{tt.wantSID}, sid[0].Args)
			trans := callsOf(h, "SetDepartureEnrouteTransitionIndex")
			require.Len(t, trans, 1)
			assert.Equal(t, []any{tt.wantTrans}, trans[0].Args)

			dep := res.Steps[slices.IndexFunc(res.Steps, func(s StepResult) bool { return s.Step == DepartureSet })]
			assert.Equal(t, Applied, dep.Outcome)
			if tt.wantErr != nil {
				assert.ErrorIs(t, dep.Err, tt.wantErr)
			} else {
				assert.NoError(t, dep.Err)
			}
		})
	}
}

func TestProgressBeforeInsert(t *testing.T) {
	nl := testNavlog()
	for _, ident := range []string{"BRAVO", "ALPHA", "BRAVO"} {
		f := navlog.Fix{Ident: ident}
		if ident == "ALPHA" {
			f.Lat, f.Lon = ptr(40.1111), ptr(-73.1111)
		}
		nl.Fixes = append(nl.Fixes, f)
	}
	n := len(nl.Fixes)

	h := fms.NewSimHost(nil)
	_, err := run(t, nl, testDB(), h, testOptions())
	require.NoError(t, err)

	journal := h.Journal()
	current := 0
	for i, c := range journal {
		switch c.Method {
		case "ReportProgress":
			current++
			assert.Equal(t, []any{current, n, nl.Fixes[current-1].Ident}, c.Args)
			// The fix's insertion follows before the next report.
			next := slices.IndexFunc(journal[i+1:], func(c fms.Call) bool {
				return c.Method == "ReportProgress" || c.Method == "AddWaypoint" || c.Method == "AddUserWaypoint"
			})
			require.GreaterOrEqual(t, next, 0)
			assert.NotEqual(t, "ReportProgress", journal[i+1+next].Method)
		case "AddWaypoint", "AddUserWaypoint":
			assert.Greater(t, current, 0)
		}
	}
	assert.Equal(t, n, current)

	var got []string
	for _, leg := range h.FlightPlan().Route {
		got = append(got, leg.Ident)
	}
	assert.Equal(t, []string{"ALPHA", "4030N07330W", "BRAVO", "BRAVO", "ALPHA", "BRAVO"}, got)
	assert.Equal(t, "WK1    ALPHA", h.FlightPlan().Route[4].ICAO)
}

func TestSoftFailures(t *testing.T) {
	tests := []struct {
		name       string
		modify     func(*navlog.Navlog)
		setup      func(*fms.SimHost)
		step       State
		outcome    Outcome
		wantErr    error
		userErrors []string
	}{
		{
			name:       "origin not in database",
			modify:     func(nl *navlog.Navlog) { nl.Origin.ICAO = "KZZZ" },
			step:       OriginSet,
			outcome:    NotApplied,
			wantErr:    aviation.ErrNotFound,
			userErrors: []string{MsgNotInDatabase, MsgNoOriginAirport},
		},
		{
			name:       "destination not in database",
			modify:     func(nl *navlog.Navlog) { nl.Destination.ICAO = "KZZZ" },
			step:       DestinationSet,
			outcome:    NotApplied,
			wantErr:    aviation.ErrNotFound,
			userErrors: []string{MsgNotInDatabase},
		},
		{
			name:       "runway not in database",
			modify:     func(nl *navlog.Navlog) { nl.Origin.PlannedRunway = "27" },
			step:       RunwaySet,
			outcome:    NotApplied,
			wantErr:    aviation.ErrNotFound,
			userErrors: []string{MsgNotInDatabase},
		},
		{
			name: "origin without airport information",
			modify: func(nl *navlog.Navlog) {
				nl.Origin.ICAO = "KXYZ"
				nl.Info.SID = navlog.DirectSID
			},
			step:       RunwaySet,
			outcome:    NotApplied,
			wantErr:    aviation.ErrAirportNoInfo,
			userErrors: []string{MsgNoOriginAirport},
		},
		{
			name:    "runway designation normalized",
			modify:  func(nl *navlog.Navlog) { nl.Origin.PlannedRunway = "RW8L" },
			step:    RunwaySet,
			outcome: Applied,
		},
		{
			name:    "cruise altitude rejected",
			setup:   func(h *fms.SimHost) { h.Reject("SetCruiseAltitude", 1) },
			step:    AltitudeSet,
			outcome: NotApplied,
			wantErr: fms.ErrHostRejected,
		},
		{
			name:    "cost index out of range",
			modify:  func(nl *navlog.Navlog) { nl.Info.CostIndex = 12000 },
			step:    CostIndexSet,
			outcome: NotApplied,
			wantErr: ErrInvalidCostIndex,
		},
		{
			name:    "cost index rejected",
			setup:   func(h *fms.SimHost) { h.Reject("SetCostIndex", 1) },
			step:    CostIndexSet,
			outcome: NotApplied,
			wantErr: fms.ErrHostRejected,
		},
		{
			name:    "tank write rejected",
			setup:   func(h *fms.SimHost) { h.Reject("SetTankQuantity", 5) },
			step:    FuelSet,
			outcome: Applied,
			wantErr: fms.ErrHostRejected,
		},
		{
			name:    "payload station rejected",
			setup:   func(h *fms.SimHost) { h.Reject("SetPayloadStation", 0) },
			step:    PayloadSet,
			outcome: Applied,
			wantErr: fms.ErrHostRejected,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nl := testNavlog()
			if tt.modify != nil {
				tt.modify(nl)
			}
			h := fms.NewSimHost(nil)
			if tt.setup != nil {
				tt.setup(h)
			}

			res, err := run(t, nl, testDB(), h, testOptions())
			require.NoError(t, err)
			assert.Equal(t, Complete, res.State)
			assert.Equal(t, 3, res.Inserted)

			i := slices.IndexFunc(res.Steps, func(s StepResult) bool { return s.Step == tt.step })
			require.GreaterOrEqual(t, i, 0)
			assert.Equal(t, tt.outcome, res.Steps[i].Outcome)
			if tt.wantErr != nil {
				assert.ErrorIs(t, res.Steps[i].Err, tt.wantErr)
			} else {
				assert.NoError(t, res.Steps[i].Err)
			}
			assert.Equal(t, tt.userErrors, h.UserErrors())
		})
	}
}

type failingDatabase struct {
	aviation.NavDatabase
	err error
}

func (f failingDatabase) AirportByIdent(ctx context.Context, icao string) (*aviation.Airport, error) {
	return nil, f.err
}

func TestHardFailures(t *testing.T) {
	errDB := errors.New("database offline")

	tests := []struct {
		name       string
		modify     func(*navlog.Navlog)
		setup      func(*fms.SimHost)
		db         aviation.NavDatabase
		step       State
		wantErr    error
		inserted   int
		userErrors []string
		notCalled  []string
	}{
		{
			name:    "origin rejected",
			setup:   func(h *fms.SimHost) { h.Reject("SetOrigin", 1) },
			step:    OriginSet,
			wantErr: fms.ErrHostRejected,
		},
		{
			name:    "database failure",
			db:      failingDatabase{NavDatabase: testDB(), err: errDB},
			step:    OriginSet,
			wantErr: errDB,
		},
		{
			name:      "temporary plan rejected",
			setup:     func(h *fms.SimHost) { h.Reject("EnsureTemporaryPlan", 1) },
			step:      RunwaySet,
			wantErr:   fms.ErrHostRejected,
			notCalled: []string{"SetOriginRunwayIndex", "SetCruiseAltitude"},
		},
		{
			name:      "zero fuel weight rejected",
			setup:     func(h *fms.SimHost) { h.Reject("SetZeroFuelWeight", 1) },
			step:      PayloadSet,
			wantErr:   fms.ErrHostRejected,
			notCalled: []string{"SetFuelReserves", "SetCostIndex"},
		},
		{
			name:      "block fuel rejected",
			setup:     func(h *fms.SimHost) { h.Reject("SetBlockFuel", 2) },
			step:      FuelSet,
			wantErr:   fms.ErrHostRejected,
			notCalled: []string{"SetFuelReserves"},
		},
		{
			name:      "reserves rejected",
			setup:     func(h *fms.SimHost) { h.Reject("SetFuelReserves", 1) },
			step:      FuelSet,
			wantErr:   fms.ErrHostRejected,
			notCalled: []string{"SetCostIndex"},
		},
		{
			name:    "departure rejected",
			setup:   func(h *fms.SimHost) { h.Reject("SetDepartureProcIndex", 1) },
			step:    DepartureSet,
			wantErr: fms.ErrHostRejected,
		},
		{
			name: "fix not in database",
			modify: func(nl *navlog.Navlog) {
				nl.Fixes = slices.Insert(nl.Fixes, 2, navlog.Fix{Ident: "ZULU"})
			},
			step:       RouteInserted,
			wantErr:    aviation.ErrNotFound,
			inserted:   2,
			userErrors: []string{MsgNotInDatabase},
		},
		{
			name: "ambiguous fix",
			modify: func(nl *navlog.Navlog) {
				nl.Fixes[0].Lat, nl.Fixes[0].Lon = nil, nil
			},
			step:       RouteInserted,
			wantErr:    aviation.ErrAmbiguous,
			userErrors: []string{MsgNotInDatabase},
		},
		{
			name:     "insertion rejected",
			setup:    func(h *fms.SimHost) { h.Reject("AddWaypoint", 2) },
			step:     RouteInserted,
			wantErr:  fms.ErrHostRejected,
			inserted: 2,
		},
		{
			name:     "temporary plan rejected during route",
			setup:    func(h *fms.SimHost) { h.Reject("EnsureTemporaryPlan", 4) },
			step:     RouteInserted,
			wantErr:  fms.ErrHostRejected,
			inserted: 0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nl := testNavlog()
			if tt.modify != nil {
				tt.modify(nl)
			}
			h := fms.NewSimHost(nil)
			if tt.setup != nil {
				tt.setup(h)
			}
			db := tt.db
			if db == nil {
				db = testDB()
			}

			p := New(nl, db, h, testOptions())
			res, err := p.Run(context.Background())
			require.Error(t, err)

			var se *StepError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, tt.step, se.Step)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, Failed, p.State())

			require.NotNil(t, res)
			assert.Equal(t, Failed, res.State)
			assert.Equal(t, tt.inserted, res.Inserted)
			_, ran := res.Outcome(tt.step)
			assert.False(t, ran)

			assert.Equal(t, tt.userErrors, h.UserErrors())
			for _, m := range tt.notCalled {
				assert.NotContains(t, h.Methods(), m)
			}
		})
	}
}

func TestDeadline(t *testing.T) {
	h := fms.NewSimHost(nil)
	h.Latency = time.Second

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	res, err := New(testNavlog(), testDB(), h, testOptions()).Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	var se *StepError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, OriginSet, se.Step)
	assert.Equal(t, Failed, res.State)
}

type countingDatabase struct {
	aviation.NavDatabase
	airports int
}

func (c *countingDatabase) AirportByIdent(ctx context.Context, icao string) (*aviation.Airport, error) {
	c.airports++
	return c.NavDatabase.AirportByIdent(ctx, icao)
}

func TestLookupCache(t *testing.T) {
	db := &countingDatabase{NavDatabase: testDB()}
	opts := testOptions()
	opts.LookupCacheSize = 16
	opts.LookupCacheTTL = time.Minute

	_, err := run(t, testNavlog(), db, fms.NewSimHost(nil), opts)
	require.NoError(t, err)
	// Uncached, KIAH would be looked up a second time for the departure.
	assert.Equal(t, 2, db.airports)
}

func TestStateStrings(t *testing.T) {
	assert.Equal(t, "Idle", Idle.String())
	assert.Equal(t, "DepartureSet", DepartureSet.String())
	assert.Equal(t, "Failed", Failed.String())
	assert.Equal(t, "not applied", NotApplied.String())

	err := &StepError{Step: FuelSet, Err: fms.ErrHostRejected}
	assert.Equal(t, "pipeline aborted at FuelSet: Rejected by host", err.Error())
	assert.Equal(t, "RunwaySet: applied", StepResult{Step: RunwaySet}.String())
}
