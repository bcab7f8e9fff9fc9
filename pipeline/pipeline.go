// pipeline/pipeline.go
// Copyright(c) 2025 navlog contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// Package pipeline applies an imported navlog to a host FMS: origin,
// destination, runway, cruise altitude, payload, fuel, cost index,
// departure, and then the route, one step at a time and in that order.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hdsdk/navlog/aviation"
	"github.com/hdsdk/navlog/fms"
	"github.com/hdsdk/navlog/fuel"
	"github.com/hdsdk/navlog/log"
	"github.com/hdsdk/navlog/math"
	"github.com/hdsdk/navlog/navlog"

	"github.com/google/uuid"
)

// CostIndexRange is the exclusive upper bound on cost index values
// passed to the host.
const CostIndexRange = 10000

type Options struct {
	// WithSID selects the navlog's departure procedure; when false the
	// departure step is skipped.
	WithSID bool
	Tanks   fuel.TankGeometry
	// If LookupCacheSize is positive, navigation database lookups are
	// cached for LookupCacheTTL.
	LookupCacheSize int
	LookupCacheTTL  time.Duration
	Logger          *log.Logger
}

func DefaultOptions() Options {
	return Options{
		WithSID: true,
		Tanks:   fuel.B787Tanks,
	}
}

// Result summarizes a pipeline run, including the steps that ran before a
// hard failure.
type Result struct {
	RunID uuid.UUID
	State State
	Steps []StepResult

	// Quantities written to the host, in pounds.
	Allocation     fuel.Allocation
	BlockFuel      float64
	Reserve        float64
	ZeroFuelWeight float64

	// Inserted is the number of route fixes added to the flight plan.
	Inserted int
	Elapsed  time.Duration
}

// Outcome returns how the given step ended, if it ran.
func (r *Result) Outcome(step State) (Outcome, bool) {
	for _, s := range r.Steps {
		if s.Step == step {
			return s.Outcome, true
		}
	}
	return 0, false
}

// Pipeline applies one navlog to one host. A Pipeline runs only once;
// running it again against the same flight plan would duplicate the
// route.
type Pipeline struct {
	nl       *navlog.Navlog
	db       aviation.NavDatabase
	resolver aviation.Resolver
	host     fms.Host
	opts     Options
	lg       *log.Logger

	state  State
	result *Result
}

func New(nl *navlog.Navlog, db aviation.NavDatabase, host fms.Host, opts Options) *Pipeline {
	if opts.LookupCacheSize > 0 {
		db = aviation.NewCachingDatabase(db, opts.LookupCacheSize, opts.LookupCacheTTL)
	}
	if opts.Tanks == (fuel.TankGeometry{}) {
		opts.Tanks = fuel.B787Tanks
	}

	return &Pipeline{
		nl:       nl,
		db:       db,
		resolver: aviation.Resolver{DB: db},
		host:     host,
		opts:     opts,
		lg:       opts.Logger,
	}
}

func (p *Pipeline) State() State { return p.state }

type step struct {
	state State
	apply func(context.Context) (StepResult, error)
}

func applied() (StepResult, error) { return StepResult{Outcome: Applied}, nil }

func skipped(reason string) (StepResult, error) {
	return StepResult{Outcome: Skipped, Err: errors.New(reason)}, nil
}

func notApplied(err error) (StepResult, error) {
	return StepResult{Outcome: NotApplied, Err: err}, nil
}

// isContextErr reports whether err is due to the caller's deadline or
// cancellation; such errors abort the pipeline even in steps that
// otherwise fail softly.
func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// Run applies the navlog. Soft failures are logged, reported to the
// host's ErrorSink where the pilot should see them, and recorded in the
// Result; the pipeline then continues. A hard failure stops the pipeline
// and returns a *StepError along with the Result so far.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	if p.state != Idle {
		return nil, ErrAlreadyRun
	}

	start := time.Now()
	res := &Result{RunID: uuid.New()}
	p.result = res
	lg := p.lg.With(slog.String("run", res.RunID.String()))
	p.lg = lg

	lg.Info("applying navlog", slog.String("navlog", p.nl.Summary()))

	steps := []step{
		{OriginSet, p.setOrigin},
		{DestinationSet, p.setDestination},
		{RunwaySet, p.setRunway},
		{AltitudeSet, p.setCruiseAltitude},
		// Payload must be set before fuel.
		{PayloadSet, p.setPayload},
		{FuelSet, p.setFuel},
		{CostIndexSet, p.setCostIndex},
		{DepartureSet, p.setDeparture},
		{RouteInserted, p.insertRoute},
	}

	for _, s := range steps {
		lg.Debug("step", slog.String("step", s.state.String()))

		r, err := func() (StepResult, error) {
			if err := ctx.Err(); err != nil {
				return StepResult{}, err
			}
			return s.apply(ctx)
		}()
		if err != nil {
			p.state, res.State = Failed, Failed
			res.Elapsed = time.Since(start)
			lg.Error("navlog apply aborted", slog.String("step", s.state.String()), slog.Any("error", err))
			return res, &StepError{Step: s.state, Err: err}
		}

		r.Step = s.state
		res.Steps = append(res.Steps, r)
		p.state, res.State = s.state, s.state

		switch r.Outcome {
		case Applied:
			if r.Err != nil {
				lg.Warn("step applied with errors", slog.String("step", s.state.String()), slog.Any("error", r.Err))
			} else {
				lg.Info("step applied", slog.String("step", s.state.String()))
			}
		case Skipped:
			lg.Info("step skipped", slog.String("step", s.state.String()), slog.Any("reason", r.Err))
		case NotApplied:
			lg.Warn("step not applied", slog.String("step", s.state.String()), slog.Any("error", r.Err))
		}
	}

	p.state, res.State = Complete, Complete
	res.Elapsed = time.Since(start)
	lg.Info("navlog applied", slog.Int("fixes", res.Inserted), slog.Duration("elapsed", res.Elapsed))

	return res, nil
}

// airport looks up an airport for the origin and destination steps. A nil
// airport and nil error mean it isn't in the database.
func (p *Pipeline) airport(ctx context.Context, icao string) (*aviation.Airport, error) {
	ap, err := p.db.AirportByIdent(ctx, icao)
	if errors.Is(err, aviation.ErrNotFound) {
		p.host.ShowUserError(MsgNotInDatabase)
		return nil, nil
	}
	return ap, err
}

func (p *Pipeline) setOrigin(ctx context.Context) (StepResult, error) {
	icao := p.nl.Origin.ICAO
	ap, err := p.airport(ctx, icao)
	if err != nil {
		return StepResult{}, err
	} else if ap == nil {
		return notApplied(fmt.Errorf("origin %s: %w", icao, aviation.ErrNotFound))
	}

	if err := p.host.SetOrigin(ctx, ap); err != nil {
		return StepResult{}, err
	}
	return applied()
}

func (p *Pipeline) setDestination(ctx context.Context) (StepResult, error) {
	icao := p.nl.Destination.ICAO
	ap, err := p.airport(ctx, icao)
	if err != nil {
		return StepResult{}, err
	} else if ap == nil {
		return notApplied(fmt.Errorf("destination %s: %w", icao, aviation.ErrNotFound))
	}

	if err := p.host.SetDestination(ctx, ap); err != nil {
		return StepResult{}, err
	}
	return applied()
}

func (p *Pipeline) setRunway(ctx context.Context) (StepResult, error) {
	origin, err := p.host.Origin(ctx)
	if err != nil {
		return StepResult{}, err
	}
	info, ok := origin.Infos()
	if !ok {
		p.host.ShowUserError(MsgNoOriginAirport)
		return notApplied(fmt.Errorf("origin: %w", aviation.ErrAirportNoInfo))
	}

	rwy := p.nl.Origin.PlannedRunway
	idx := info.RunwayIndex(rwy)
	if idx < 0 {
		p.host.ShowUserError(MsgNotInDatabase)
		return notApplied(fmt.Errorf("%s runway %q: %w", origin.ICAO, rwy, aviation.ErrNotFound))
	}

	if err := p.host.EnsureTemporaryPlan(ctx); err != nil {
		return StepResult{}, err
	}
	if err := p.host.SetOriginRunwayIndex(ctx, idx); err != nil {
		return StepResult{}, err
	}
	return applied()
}

func (p *Pipeline) setCruiseAltitude(ctx context.Context) (StepResult, error) {
	fl := int(math.Round(p.nl.Info.InitialAltitude / 100))
	p.lg.Debug("setting cruise altitude", slog.Int("flight_level", fl))

	if err := p.host.SetCruiseAltitude(ctx, fl); err != nil {
		if isContextErr(err) {
			return StepResult{}, err
		}
		return notApplied(err)
	}
	return applied()
}

// softWrites collects the errors from host writes whose failure is logged
// but doesn't stop the step.
type softWrites struct {
	lg   *log.Logger
	errs []error
}

func (s *softWrites) check(what string, err error) error {
	if err == nil {
		return nil
	}
	if isContextErr(err) {
		return err
	}
	err = fmt.Errorf("%s: %w", what, err)
	s.lg.Error("host write failed", slog.Any("error", err))
	s.errs = append(s.errs, err)
	return nil
}

func (s *softWrites) err() error {
	return errors.Join(s.errs...)
}

func (p *Pipeline) setPayload(ctx context.Context) (StepResult, error) {
	units := p.nl.Info.Units
	payload := fuel.ToPounds(p.nl.Weights.Payload, units)
	zfw := fuel.ZeroFuelWeight(payload)
	p.lg.Debug("setting payload", slog.Float64("payload_lb", payload), slog.Float64("zfw_lb", zfw))

	sw := softWrites{lg: p.lg}

	// Keep the engines and APU fed while the aircraft is configured.
	keepAlive := []struct {
		tank fms.Tank
		lb   float64
	}{
		{fms.TankCenter, 0},
		{fms.TankLeft, fuel.KeepAliveFuel},
		{fms.TankRight, fuel.KeepAliveFuel},
	}
	for _, ka := range keepAlive {
		err := p.host.SetTankQuantity(ctx, ka.tank, fuel.PoundsToGallons(ka.lb))
		if err := sw.check(ka.tank.String()+" tank", err); err != nil {
			return StepResult{}, err
		}
	}

	for i, w := range fuel.PayloadStations {
		err := p.host.SetPayloadStation(ctx, i+1, w)
		if err := sw.check(fmt.Sprintf("payload station %d", i+1), err); err != nil {
			return StepResult{}, err
		}
	}

	if err := sw.check("block fuel", p.host.SetBlockFuel(ctx, 0)); err != nil {
		return StepResult{}, err
	}

	if err := p.host.SetZeroFuelWeight(ctx, zfw/1000); err != nil {
		return StepResult{}, err
	}
	p.result.ZeroFuelWeight = zfw

	return StepResult{Outcome: Applied, Err: sw.err()}, nil
}

func (p *Pipeline) setFuel(ctx context.Context) (StepResult, error) {
	units := p.nl.Info.Units
	block := fuel.ToPounds(p.nl.Fuel.PlannedRamp, units)
	reserve := fuel.ToPounds(p.nl.Fuel.Reserve, units)

	alloc := fuel.Allocate(block, p.opts.Tanks)
	p.lg.Debug("fuel allocation", slog.Float64("block_lb", block), slog.Float64("reserve_lb", reserve),
		slog.Bool("center_tank", p.opts.Tanks.NeedsCenterTank(block)),
		slog.Float64("left", alloc.Left), slog.Float64("right", alloc.Right), slog.Float64("center", alloc.Center))
	if alloc.Excess > 0 {
		p.lg.Warn("block fuel exceeds tank capacity", slog.Float64("block_lb", block),
			slog.Float64("capacity_lb", p.opts.Tanks.Capacity()), slog.Float64("dropped_lb", alloc.Excess))
	}

	sw := softWrites{lg: p.lg}
	tanks := []struct {
		tank fms.Tank
		lb   float64
	}{
		{fms.TankCenter, alloc.Center},
		{fms.TankLeft, alloc.Left},
		{fms.TankRight, alloc.Right},
	}
	for _, t := range tanks {
		err := p.host.SetTankQuantity(ctx, t.tank, fuel.PoundsToGallons(t.lb))
		if err := sw.check(t.tank.String()+" tank", err); err != nil {
			return StepResult{}, err
		}
	}

	if err := p.host.SetBlockFuel(ctx, alloc.Total()); err != nil {
		return StepResult{}, err
	}
	if err := p.host.SetFuelReserves(ctx, reserve/1000); err != nil {
		return StepResult{}, err
	}

	p.result.Allocation = alloc
	p.result.BlockFuel = alloc.Total()
	p.result.Reserve = reserve

	return StepResult{Outcome: Applied, Err: sw.err()}, nil
}

func (p *Pipeline) setCostIndex(ctx context.Context) (StepResult, error) {
	ci := p.nl.Info.CostIndex
	ok, err := p.host.SetCostIndex(ctx, ci, CostIndexRange)
	if err != nil {
		if isContextErr(err) {
			return StepResult{}, err
		}
		return notApplied(err)
	}
	if !ok {
		p.lg.Warnf("cost index could not be updated (invalid value): %d; range 0-%d", ci, CostIndexRange-1)
		return notApplied(fmt.Errorf("%d: %w", ci, ErrInvalidCostIndex))
	}
	return applied()
}

func (p *Pipeline) setDeparture(ctx context.Context) (StepResult, error) {
	info := p.nl.Info
	if !info.HasDeparture() {
		return skipped("direct departure")
	}
	if !p.opts.WithSID {
		return skipped("SID selection disabled")
	}

	// Unknown procedures and transitions are passed to the host as -1,
	// which it takes as no selection.
	sid, trans := -1, -1
	ap, err := p.db.AirportByIdent(ctx, p.nl.Origin.ICAO)
	if err != nil && !errors.Is(err, aviation.ErrNotFound) {
		return StepResult{}, err
	}
	if ai, ok := ap.Infos(); ok {
		if sid = ai.DepartureIndex(info.SID); sid >= 0 {
			trans = ai.Departures[sid].EnRouteTransitionIndex(info.EnRouteTrans)
		}
	}

	var notes []error
	if sid < 0 {
		p.lg.Warn("departure not found", slog.String("sid", info.SID), slog.String("origin", p.nl.Origin.ICAO))
		notes = append(notes, fmt.Errorf("%s: %w", info.SID, aviation.ErrUnknownDeparture))
	} else if trans < 0 && info.EnRouteTrans != "" {
		p.lg.Warn("en route transition not found", slog.String("sid", info.SID),
			slog.String("transition", info.EnRouteTrans))
		notes = append(notes, fmt.Errorf("%s.%s: %w", info.SID, info.EnRouteTrans, aviation.ErrNotFound))
	}
	p.lg.Debug("departure", slog.Int("sid_index", sid), slog.Int("transition_index", trans))

	if err := p.host.EnsureTemporaryPlan(ctx); err != nil {
		return StepResult{}, err
	}
	if err := p.host.SetDepartureProcIndex(ctx, sid); err != nil {
		return StepResult{}, err
	}
	if err := p.host.EnsureTemporaryPlan(ctx); err != nil {
		return StepResult{}, err
	}
	if err := p.host.SetDepartureEnrouteTransitionIndex(ctx, trans); err != nil {
		return StepResult{}, err
	}

	return StepResult{Outcome: Applied, Err: errors.Join(notes...)}, nil
}

func (p *Pipeline) insertRoute(ctx context.Context) (StepResult, error) {
	total := len(p.nl.Fixes)
	for i, fix := range p.nl.Fixes {
		n, err := p.host.WaypointsCount(ctx)
		if err != nil {
			return StepResult{}, err
		}
		index := n - 1

		p.host.ReportProgress(i+1, total, fix.Ident)
		p.lg.Debug("adding fix", slog.String("ident", fix.Ident), slog.Int("index", index))

		if err := p.host.EnsureTemporaryPlan(ctx); err != nil {
			return StepResult{}, err
		}

		wp, err := p.resolver.Resolve(ctx, fix)
		if err != nil {
			if errors.Is(err, aviation.ErrNotFound) || errors.Is(err, aviation.ErrAmbiguous) {
				p.host.ShowUserError(MsgNotInDatabase)
			}
			return StepResult{}, fmt.Errorf("fix %d: %w", i+1, err)
		}

		if wp.User {
			err = p.host.AddUserWaypoint(ctx, wp, index)
		} else {
			err = p.host.AddWaypoint(ctx, wp.ICAO(), index)
		}
		if err != nil {
			return StepResult{}, fmt.Errorf("fix %d %s: %w", i+1, fix.Ident, err)
		}
		p.result.Inserted++
		p.lg.Info("added fix", slog.String("ident", fix.Ident))
	}
	return applied()
}
