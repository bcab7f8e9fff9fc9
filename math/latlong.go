// math/latlong.go
// Copyright(c) 2025 navlog contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package math

import (
	"fmt"
	"regexp"
	"strconv"
)

///////////////////////////////////////////////////////////////////////////
// Point2LL

// Point2LL represents a 2D point on the Earth in latitude-longitude.
// Important: 0 (x) is longitude, 1 (y) is latitude
type Point2LL [2]float64

func (p Point2LL) Longitude() float64 {
	return p[0]
}

func (p Point2LL) Latitude() float64 {
	return p[1]
}

// Valid reports whether the point's latitude and longitude are in range.
func (p Point2LL) Valid() bool {
	return Finite(p[0]) && Finite(p[1]) && Abs(p[1]) <= 90 && Abs(p[0]) <= 180
}

// DDString returns the position in decimal degrees, e.g.:
// (39.860901, -75.274864)
func (p Point2LL) DDString() string {
	return fmt.Sprintf("(%f, %f)", p[1], p[0]) // latitude, longitude
}

// EqualAtPrecision reports whether both coordinates of p and q agree
// when printed with the given number of decimal places.
func (p Point2LL) EqualAtPrecision(q Point2LL, precision int) bool {
	return FixedString(p[1], precision) == FixedString(q[1], precision) &&
		FixedString(p[0], precision) == FixedString(q[0], precision)
}

var (
	// pair of floats (no exponents)
	reWaypointFloat = regexp.MustCompile(`^(\-?[0-9]+(?:\.[0-9]+)?), *(\-?[0-9]+(?:\.[0-9]+)?)$`)
	// e.g. N40.37.58.400, W073.46.17.000
	reWaypointDotted = regexp.MustCompile(`^([NS])([0-9]+)\.([0-9]+)\.([0-9]+)\.([0-9]+), *([EW])([0-9]+)\.([0-9]+)\.([0-9]+)\.([0-9]+)$`)
	// short form used for oceanic coordinate fixes, e.g. 4037N/07346W
	reShortDM = regexp.MustCompile(`^([0-9]{2})([0-9]{2})([NS])/([0-9]{3})([0-9]{2})([EW])$`)
)

// ParseLatLong parses a position given as a decimal pair ("40.63, -73.77"),
// dotted degrees-minutes-seconds ("N40.37.58.400, W073.46.17.000"), or
// degrees-minutes ("4037N/07346W").
func ParseLatLong(llstr []byte) (Point2LL, error) {
	s := string(llstr)
	if strs := reWaypointFloat.FindStringSubmatch(s); len(strs) == 3 {
		lat, err := strconv.ParseFloat(strs[1], 64)
		if err != nil {
			return Point2LL{}, err
		}
		long, err := strconv.ParseFloat(strs[2], 64)
		if err != nil {
			return Point2LL{}, err
		}
		return checkLatLong(s, Point2LL{long, lat})
	} else if strs := reWaypointDotted.FindStringSubmatch(s); len(strs) == 11 {
		lat := dms(strs[2], strs[3], strs[4], strs[5])
		long := dms(strs[7], strs[8], strs[9], strs[10])
		if strs[1] == "S" {
			lat = -lat
		}
		if strs[6] == "W" {
			long = -long
		}
		return checkLatLong(s, Point2LL{long, lat})
	} else if strs := reShortDM.FindStringSubmatch(s); len(strs) == 7 {
		lat := dms(strs[1], strs[2], "0", "0")
		long := dms(strs[4], strs[5], "0", "0")
		if strs[3] == "S" {
			lat = -lat
		}
		if strs[6] == "W" {
			long = -long
		}
		return checkLatLong(s, Point2LL{long, lat})
	}
	return Point2LL{}, fmt.Errorf("%s: invalid latlong string", s)
}

func checkLatLong(s string, p Point2LL) (Point2LL, error) {
	if !p.Valid() {
		return Point2LL{}, fmt.Errorf("%s: latlong out of range", s)
	}
	return p, nil
}

// dms converts already-validated digit strings; the last group is
// treated as thousandths of a second so that "1" is handled like "100".
func dms(deg, min, sec, frac string) float64 {
	d, _ := strconv.Atoi(deg)
	m, _ := strconv.Atoi(min)
	s, _ := strconv.Atoi(sec)
	for len(frac) < 3 {
		frac += "0"
	}
	f, _ := strconv.Atoi(frac[:3])
	return float64(d) + float64(m)/60 + float64(s)/3600 + float64(f)/3600000
}
