// pipeline/state.go
// Copyright(c) 2025 navlog contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package pipeline

import (
	"errors"
	"fmt"
)

// State is the pipeline's position in the apply sequence. Each step's
// state is the one the pipeline reaches when the step finishes.
type State int

const (
	Idle State = iota
	OriginSet
	DestinationSet
	RunwaySet
	AltitudeSet
	PayloadSet
	FuelSet
	CostIndexSet
	DepartureSet
	RouteInserted
	Complete
	Failed
)

func (s State) String() string {
	return [...]string{"Idle", "OriginSet", "DestinationSet", "RunwaySet", "AltitudeSet",
		"PayloadSet", "FuelSet", "CostIndexSet", "DepartureSet", "RouteInserted", "Complete",
		"Failed"}[s]
}

// Outcome is how a step that didn't abort the pipeline ended.
type Outcome int

const (
	// Applied steps were accepted by the host.
	Applied Outcome = iota
	// Skipped steps weren't attempted, e.g. the departure for a direct
	// route.
	Skipped
	// NotApplied steps failed softly; the pipeline continued without them.
	NotApplied
)

func (o Outcome) String() string {
	return [...]string{"applied", "skipped", "not applied"}[o]
}

// StepResult records how a step ended. For NotApplied steps Err is the
// cause; Applied steps may also carry errors for individual writes that
// failed softly.
type StepResult struct {
	Step    State
	Outcome Outcome
	Err     error
}

func (r StepResult) String() string {
	if r.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", r.Step, r.Outcome, r.Err)
	}
	return fmt.Sprintf("%s: %s", r.Step, r.Outcome)
}

// StepError is returned when a step fails hard and the pipeline aborts.
// Host changes made by earlier steps are not undone.
type StepError struct {
	Step State
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("pipeline aborted at %s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

var (
	ErrAlreadyRun       = errors.New("Pipeline has already run")
	ErrSessionBusy      = errors.New("A navlog is already being applied to this host")
	ErrInvalidCostIndex = errors.New("Invalid cost index")
)

// Messages shown to the pilot through the ErrorSink.
const (
	MsgNotInDatabase   = "NOT IN DATABASE"
	MsgNoOriginAirport = "NO ORIGIN AIRPORT"
)
