// fuel/weight.go
// Copyright(c) 2025 navlog contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package fuel

const (
	// EmptyWeight is the airframe's operating empty weight in pounds.
	EmptyWeight = 298700
	// KeepAliveFuel is written to each side tank before the real fuel
	// load so the engines and APU keep running while the aircraft is
	// being configured.
	KeepAliveFuel = 20
)

// PayloadStations are the per-station weights, in pounds, written
// before the zero fuel weight; stations are numbered from 1.
var PayloadStations = [...]float64{200, 200, 0, 0, 0, 0, 0}

// ZeroFuelWeight returns the zero fuel weight in pounds for the given
// payload in pounds.
func ZeroFuelWeight(payloadLb float64) float64 {
	return EmptyWeight + payloadLb
}
