// fms/sim.go
// Copyright(c) 2025 navlog contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package fms

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/hdsdk/navlog/aviation"
	"github.com/hdsdk/navlog/log"
	"github.com/hdsdk/navlog/math"
	"github.com/hdsdk/navlog/util"
)

// Call is a SimHost journal entry.
type Call struct {
	Method string
	Args   []any
	Err    error
}

func (c Call) String() string {
	args := util.MapSlice(c.Args, func(a any) string { return fmt.Sprint(a) })
	s := c.Method + "(" + strings.Join(args, ", ") + ")"
	if c.Err != nil {
		s += ": " + c.Err.Error()
	}
	return s
}

type Leg struct {
	Ident    string
	ICAO     string // empty for user waypoints
	Location math.Point2LL
	User     bool
}

// FlightPlan is a snapshot of a SimHost's flight plan.
type FlightPlan struct {
	Origin       *aviation.Airport
	OriginRunway int
	Destination  *aviation.Airport
	// Route holds the waypoints between origin and destination.
	Route              []Leg
	Departure          int
	EnrouteTransition  int
	Temporary          bool
	TemporaryPlansMade int
}

type Avionics struct {
	CruiseFL       int
	CostIndex      int
	ZeroFuelWeight float64          // klb
	BlockFuel      float64          // lb
	Reserves       float64          // klb
	Tanks          map[Tank]float64 // gallons
	Payload        map[int]float64  // lb
}

type Progress struct {
	Current, Total int
	Ident          string
}

// SimHost is an in-memory Host that journals every call. Calls can be
// made to fail and to take time so that callers' error handling and
// deadlines can be exercised.
type SimHost struct {
	// Latency is how long each host call takes.
	Latency time.Duration

	mu         sync.Mutex
	lg         *log.Logger
	fp         FlightPlan
	av         Avionics
	journal    []Call
	calls      map[string]int
	rejections map[string]int
	progress   []Progress
	userErrors []string
}

var _ Host = (*SimHost)(nil)

func NewSimHost(lg *log.Logger) *SimHost {
	return &SimHost{
		lg: lg,
		fp: FlightPlan{OriginRunway: -1, Departure: -1, EnrouteTransition: -1},
		av: Avionics{
			Tanks:   make(map[Tank]float64),
			Payload: make(map[int]float64),
		},
		calls:      make(map[string]int),
		rejections: make(map[string]int),
	}
}

// Reject makes the nth call of method from now on fail with
// ErrHostRejected; n <= 0 makes every call fail.
func (h *SimHost) Reject(method string, n int) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.rejections[method] = util.Select(n <= 0, 0, h.calls[method]+n)
}

// call journals a call and returns an error if it is rejected or ctx
// expires first. h.mu must not be held.
func (h *SimHost) call(ctx context.Context, method string, args ...any) error {
	if h.Latency > 0 {
		select {
		case <-ctx.Done():
		case <-time.After(h.Latency):
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.calls[method]++
	c := Call{Method: method, Args: args}
	if err := ctx.Err(); err != nil {
		c.Err = err
	} else if n, ok := h.rejections[method]; ok && (n == 0 || n == h.calls[method]) {
		c.Err = fmt.Errorf("%s: %w", method, ErrHostRejected)
	}
	h.journal = append(h.journal, c)

	if c.Err != nil {
		h.lg.Debug("host call failed", "call", c.String())
	} else {
		h.lg.Debug("host call", "call", c.String())
	}
	return c.Err
}

func (h *SimHost) SetOrigin(ctx context.Context, ap *aviation.Airport) error {
	if err := h.call(ctx, "SetOrigin", ap.ICAO); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.fp.Origin = ap
	h.fp.OriginRunway = -1
	return nil
}

func (h *SimHost) SetOriginRunwayIndex(ctx context.Context, index int) error {
	if err := h.call(ctx, "SetOriginRunwayIndex", index); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	if info, ok := h.fp.Origin.Infos(); !ok || index < 0 || index >= len(info.Runways) {
		return fmt.Errorf("runway index %d: %w", index, ErrHostRejected)
	}
	h.fp.OriginRunway = index
	return nil
}

func (h *SimHost) SetDestination(ctx context.Context, ap *aviation.Airport) error {
	if err := h.call(ctx, "SetDestination", ap.ICAO); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.fp.Destination = ap
	return nil
}

// insert adds leg so that it is at index in the full plan, origin
// included; nothing is inserted ahead of the origin. Negative indices
// append to the route. h.mu must be held.
func (h *SimHost) insert(leg Leg, index int) error {
	pos := index
	switch {
	case index < 0:
		pos = len(h.fp.Route)
	case h.fp.Origin != nil:
		pos = max(index-1, 0)
	}
	if pos > len(h.fp.Route) {
		return fmt.Errorf("waypoint index %d: %w", index, ErrHostRejected)
	}
	h.fp.Route = slices.Insert(h.fp.Route, pos, leg)
	return nil
}

func (h *SimHost) AddWaypoint(ctx context.Context, icao string, index int) error {
	if err := h.call(ctx, "AddWaypoint", icao, index); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	// ICAO keys are type, region, and airport in the first 7 characters.
	if len(icao) <= 7 {
		return fmt.Errorf("%q: malformed ICAO key: %w", icao, ErrHostRejected)
	}
	return h.insert(Leg{Ident: strings.TrimSpace(icao[7:]), ICAO: icao}, index)
}

func (h *SimHost) AddUserWaypoint(ctx context.Context, wp aviation.Waypoint, index int) error {
	if err := h.call(ctx, "AddUserWaypoint", wp.Ident, index); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.insert(Leg{Ident: wp.Ident, Location: wp.Location, User: true}, index)
}

func (h *SimHost) SetDepartureProcIndex(ctx context.Context, index int) error {
	if err := h.call(ctx, "SetDepartureProcIndex", index); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.fp.Departure = index
	return nil
}

func (h *SimHost) SetDepartureEnrouteTransitionIndex(ctx context.Context, index int) error {
	if err := h.call(ctx, "SetDepartureEnrouteTransitionIndex", index); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.fp.EnrouteTransition = index
	return nil
}

func (h *SimHost) EnsureTemporaryPlan(ctx context.Context) error {
	if err := h.call(ctx, "EnsureTemporaryPlan"); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.fp.Temporary {
		h.fp.Temporary = true
		h.fp.TemporaryPlansMade++
	}
	return nil
}

func (h *SimHost) WaypointsCount(ctx context.Context) (int, error) {
	if err := h.call(ctx, "WaypointsCount"); err != nil {
		return 0, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.fp.Route) + util.Select(h.fp.Origin != nil, 1, 0) + util.Select(h.fp.Destination != nil, 1, 0), nil
}

func (h *SimHost) Origin(ctx context.Context) (*aviation.Airport, error) {
	if err := h.call(ctx, "Origin"); err != nil {
		return nil, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.fp.Origin, nil
}

// ExecutePlan makes the temporary plan the active one, as the pilot does
// after reviewing the modifications.
func (h *SimHost) ExecutePlan() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.fp.Temporary = false
}

///////////////////////////////////////////////////////////////////////////
// HostAvionicsState

func (h *SimHost) SetCruiseAltitude(ctx context.Context, fl int) error {
	if err := h.call(ctx, "SetCruiseAltitude", fl); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.av.CruiseFL = fl
	return nil
}

func (h *SimHost) SetCostIndex(ctx context.Context, ci, max int) (bool, error) {
	if err := h.call(ctx, "SetCostIndex", ci, max); err != nil {
		return false, err
	}
	if ci < 0 || ci >= max {
		return false, nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.av.CostIndex = ci
	return true, nil
}

func (h *SimHost) SetZeroFuelWeight(ctx context.Context, klb float64) error {
	if err := h.call(ctx, "SetZeroFuelWeight", klb); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.av.ZeroFuelWeight = klb
	return nil
}

func (h *SimHost) SetBlockFuel(ctx context.Context, lb float64) error {
	if err := h.call(ctx, "SetBlockFuel", lb); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.av.BlockFuel = lb
	return nil
}

func (h *SimHost) SetFuelReserves(ctx context.Context, klb float64) error {
	if err := h.call(ctx, "SetFuelReserves", klb); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.av.Reserves = klb
	return nil
}

func (h *SimHost) SetTankQuantity(ctx context.Context, tank Tank, gallons float64) error {
	if err := h.call(ctx, "SetTankQuantity", tank, gallons); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.av.Tanks[tank] = gallons
	return nil
}

func (h *SimHost) SetPayloadStation(ctx context.Context, station int, lb float64) error {
	if err := h.call(ctx, "SetPayloadStation", station, lb); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.av.Payload[station] = lb
	return nil
}

///////////////////////////////////////////////////////////////////////////
// Sinks

func (h *SimHost) ReportProgress(current, total int, ident string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.journal = append(h.journal, Call{Method: "ReportProgress", Args: []any{current, total, ident}})
	h.progress = append(h.progress, Progress{Current: current, Total: total, Ident: ident})
}

func (h *SimHost) ShowUserError(msg string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.journal = append(h.journal, Call{Method: "ShowUserError", Args: []any{msg}})
	h.userErrors = append(h.userErrors, msg)
	h.lg.Warn("user error", "message", msg)
}

///////////////////////////////////////////////////////////////////////////
// Inspection

func (h *SimHost) Journal() []Call {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Clone(h.journal)
}

// Methods returns the names of the journaled calls, in order.
func (h *SimHost) Methods() []string {
	return util.MapSlice(h.Journal(), func(c Call) string { return c.Method })
}

func (h *SimHost) FlightPlan() FlightPlan {
	h.mu.Lock()
	defer h.mu.Unlock()
	fp := h.fp
	fp.Route = slices.Clone(fp.Route)
	return fp
}

func (h *SimHost) Avionics() Avionics {
	h.mu.Lock()
	defer h.mu.Unlock()
	av := h.av
	av.Tanks = make(map[Tank]float64)
	for t, q := range h.av.Tanks {
		av.Tanks[t] = q
	}
	av.Payload = make(map[int]float64)
	for s, w := range h.av.Payload {
		av.Payload[s] = w
	}
	return av
}

func (h *SimHost) Progress() []Progress {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Clone(h.progress)
}

func (h *SimHost) UserErrors() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Clone(h.userErrors)
}

// String summarizes the flight plan and avionics state.
func (h *SimHost) String() string {
	fp, av := h.FlightPlan(), h.Avionics()

	var sb strings.Builder
	icao := func(ap *aviation.Airport) string {
		if ap == nil {
			return "----"
		}
		return ap.ICAO
	}
	fmt.Fprintf(&sb, "%s", icao(fp.Origin))
	if info, ok := fp.Origin.Infos(); ok && fp.OriginRunway >= 0 && fp.OriginRunway < len(info.Runways) {
		fmt.Fprintf(&sb, "/%s", info.Runways[fp.OriginRunway].Designation)
	}
	if info, ok := fp.Origin.Infos(); ok && fp.Departure >= 0 && fp.Departure < len(info.Departures) {
		dep := info.Departures[fp.Departure]
		fmt.Fprintf(&sb, " %s", dep.Name)
		if fp.EnrouteTransition >= 0 && fp.EnrouteTransition < len(dep.EnRouteTransitions) {
			fmt.Fprintf(&sb, ".%s", dep.EnRouteTransitions[fp.EnrouteTransition].Name)
		}
	}
	for _, leg := range fp.Route {
		sb.WriteString(" " + leg.Ident)
	}
	fmt.Fprintf(&sb, " %s\n", icao(fp.Destination))

	fmt.Fprintf(&sb, "FL%03d CI %d ZFW %.1f BLOCK %.0f RSV %.1f\n", av.CruiseFL, av.CostIndex,
		av.ZeroFuelWeight, av.BlockFuel, av.Reserves)
	for _, t := range util.SortedMapKeys(av.Tanks) {
		fmt.Fprintf(&sb, "%s tank: %.1f gal\n", t, av.Tanks[t])
	}
	return sb.String()
}
