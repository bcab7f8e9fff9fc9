// math/core.go
// Copyright(c) 2025 navlog contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package math

import (
	gomath "math"
	"math/big"
	"strconv"

	"github.com/shopspring/decimal"
	"golang.org/x/exp/constraints"
)

func Abs[V constraints.Integer | constraints.Float](x V) V {
	if x < 0 {
		return -x
	}
	return x
}

// Round rounds half away from zero.
func Round(v float64) float64 {
	return gomath.Round(v)
}

// Finite reports whether v is neither NaN nor an infinity.
func Finite(v float64) bool {
	return !gomath.IsNaN(v) && !gomath.IsInf(v, 0)
}

// FixedString formats v with exactly precision digits after the decimal
// point. The exact binary value of v is rounded, with ties going away
// from zero; negative values keep their sign even if they round to zero.
func FixedString(v float64, precision int) string {
	if !Finite(v) || precision < 0 {
		return strconv.FormatFloat(v, 'f', precision, 64)
	}

	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(precision)), nil)
	r := new(big.Rat).SetFloat64(gomath.Abs(v))
	r.Mul(r, new(big.Rat).SetInt(scale))

	q, rem := new(big.Int).QuoRem(r.Num(), r.Denom(), new(big.Int))
	if rem.Lsh(rem, 1).Cmp(r.Denom()) >= 0 {
		q.Add(q, big.NewInt(1))
	}

	s := decimal.NewFromBigInt(q, int32(-precision)).StringFixed(int32(precision))
	if v < 0 {
		s = "-" + s
	}
	return s
}
