// fuel/fuel.go
// Copyright(c) 2025 navlog contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// Package fuel computes how planned fuel is distributed across the
// aircraft's tanks and converts navlog quantities to the host's units.
package fuel

import (
	gomath "math"

	"github.com/hdsdk/navlog/navlog"

	"github.com/shopspring/decimal"
)

const (
	// KgToLb converts kilograms to pounds.
	KgToLb = 2.20462262
	// PoundsPerGallon is the fuel density the host uses to convert its
	// volumetric tank quantities.
	PoundsPerGallon = 6.699999809265137
)

// TankGeometry gives the capacities, in pounds, of the two symmetric
// side tanks (each) and the center tank.
type TankGeometry struct {
	Side   float64 `json:"side"`
	Center float64 `json:"center"`
}

// B787Tanks is the 787-10's tank layout.
var B787Tanks = TankGeometry{Side: 37319, Center: 149034}

func (g TankGeometry) SideTotal() float64 { return 2 * g.Side }

func (g TankGeometry) Capacity() float64 { return 2*g.Side + g.Center }

// Allocation is the quantity to load in each tank.
type Allocation struct {
	Left, Right, Center float64
	// Excess is the fuel that did not fit in the tanks and was dropped.
	Excess float64
}

func (a Allocation) Total() float64 {
	return a.Left + a.Right + a.Center
}

// NeedsCenterTank reports whether block fuel overflows the side tanks.
func (g TankGeometry) NeedsCenterTank(block float64) bool {
	return block > g.SideTotal()
}

// Allocate distributes block fuel across the tanks. The side tanks are
// filled first and evenly; when block is odd the extra unit goes to the
// left tank. Fuel beyond the side tanks goes to the center tank, and
// anything that doesn't fit there is dropped and reported in Excess.
// block and the geometry must be in the same unit.
func Allocate(block float64, g TankGeometry) Allocation {
	if !g.NeedsCenterTank(block) {
		r := mod2(block)
		half := (block - r) / 2
		return Allocation{Left: half + r, Right: half}
	}

	remaining := block - g.SideTotal()
	center := gomath.Min(remaining, g.Center)
	return Allocation{
		Left:   g.Side,
		Right:  g.Side,
		Center: center,
		Excess: remaining - center,
	}
}

// mod2 returns block mod 2 with the sign of block, computed in decimal
// so that fractional quantities split exactly.
func mod2(block float64) float64 {
	r, _ := decimal.NewFromFloat(block).Mod(decimal.NewFromInt(2)).Float64()
	return r
}

// ToPounds converts a navlog quantity to pounds.
func ToPounds(v float64, units navlog.Units) float64 {
	if units != navlog.Kilograms {
		return v
	}
	lb, _ := decimal.NewFromFloat(v).Mul(decimal.NewFromFloat(KgToLb)).Float64()
	return lb
}

// PoundsToGallons converts a fuel mass to the host's tank volume unit.
func PoundsToGallons(lb float64) float64 {
	return lb / PoundsPerGallon
}
