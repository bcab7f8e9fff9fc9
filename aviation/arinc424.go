// aviation/arinc424.go
// Copyright(c) 2025 navlog contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package aviation

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/hdsdk/navlog/math"
	"github.com/hdsdk/navlog/util"
)

// ARINC424RecordLength is the length of a record, not including the line
// terminator.
const ARINC424RecordLength = 132

func empty(s []byte) bool {
	return len(bytes.TrimSpace(s)) == 0
}

func parseLLDigits(d, m, s []byte) (float64, error) {
	deg, err := strconv.Atoi(string(d))
	if err != nil {
		return 0, err
	}
	min, err := strconv.Atoi(string(m))
	if err != nil {
		return 0, err
	}
	sec, err := strconv.Atoi(string(s))
	if err != nil {
		return 0, err
	}
	return float64(deg) + float64(min)/60 + float64(sec)/100/3600, nil
}

// parseLatLong decodes the 9-character latitude (N/S DD MM SS ss) and
// 10-character longitude (E/W DDD MM SS ss) fields.
func parseLatLong(lat, long []byte) (math.Point2LL, error) {
	var p math.Point2LL
	if len(lat) != 9 || len(long) != 10 {
		return p, ErrInvalidCIFP
	}
	if (lat[0] != 'N' && lat[0] != 'S') || (long[0] != 'E' && long[0] != 'W') {
		return p, fmt.Errorf("%q %q: %w", lat, long, ErrInvalidCIFP)
	}

	var err error
	if p[1], err = parseLLDigits(lat[1:3], lat[3:5], lat[5:]); err != nil {
		return p, fmt.Errorf("%q: %w", lat, ErrInvalidCIFP)
	}
	if p[0], err = parseLLDigits(long[1:4], long[4:6], long[6:]); err != nil {
		return p, fmt.Errorf("%q: %w", long, ErrInvalidCIFP)
	}

	if lat[0] == 'S' {
		p[1] = -p[1]
	}
	if long[0] == 'W' {
		p[0] = -p[0]
	}
	return p, nil
}

func field(line []byte, start, end int) string {
	return strings.TrimSpace(string(line[start:end]))
}

type ssaRecord struct {
	icao         string
	id           string
	routeType    byte
	transition   string
	fix          string
	continuation byte
}

func parseSSA(line []byte) ssaRecord {
	return ssaRecord{
		icao:         field(line, 6, 10),
		id:           field(line, 13, 19),
		routeType:    line[19],
		transition:   field(line, 20, 25),
		fix:          field(line, 29, 34),
		continuation: line[38],
	}
}

// ParseARINC424 builds a StaticDatabase from a CIFP file: airports with
// their runways and SIDs, terminal and enroute waypoints, and navaids.
// Records the database doesn't use are skipped.
func ParseARINC424(r io.Reader) (*StaticDatabase, error) {
	db := NewStaticDatabase()

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 256), 1024)
	lineno := 0
	var pushback []byte

	getline := func() ([]byte, error) {
		if pushback != nil {
			l := pushback
			pushback = nil
			return l, nil
		}
		for sc.Scan() {
			lineno++
			b := bytes.TrimRight(sc.Bytes(), "\r\n")
			if len(b) == 0 {
				continue
			}
			if len(b) < ARINC424RecordLength {
				return nil, fmt.Errorf("line %d: %d characters: %w", lineno, len(b), ErrInvalidCIFP)
			}
			return slices.Clone(b), nil
		}
		return nil, sc.Err()
	}

	airport := func(icao string) *Airport {
		ap, ok := db.Airports[icao]
		if !ok {
			ap = &Airport{ICAO: icao, Info: &AirportInfo{}}
			db.Airports[icao] = ap
		}
		return ap
	}

	// Returns the SSA records for the procedure starting at line: all
	// following airport records with the same airport, subsection, and
	// procedure id.
	matchingSSARecs := func(line []byte, recs []ssaRecord) ([]ssaRecord, error) {
		icao, id, subsec := field(line, 6, 10), field(line, 13, 19), line[12]

		recs = recs[:0]
		for {
			recs = append(recs, parseSSA(line))
			var err error
			if line, err = getline(); err != nil {
				return nil, err
			} else if line == nil {
				break
			}
			if line[0] != 'S' || line[4] != 'P' || line[12] != subsec ||
				field(line, 6, 10) != icao || field(line, 13, 19) != id {
				pushback = line
				break
			}
		}
		return recs, nil
	}

	location := func(lat, long []byte) (math.Point2LL, error) {
		p, err := parseLatLong(lat, long)
		if err != nil {
			return p, fmt.Errorf("line %d: %w", lineno, err)
		}
		return p, nil
	}

	var recs []ssaRecord
	for {
		line, err := getline()
		if err != nil {
			return nil, err
		} else if line == nil {
			break
		}

		if line[0] != 'S' { // not a standard record
			continue
		}

		switch line[4] { // section code
		case 'D': // navaids
			subsection := line[5]
			if subsection != ' ' && subsection != 'B' {
				break
			}
			wp := Waypoint{
				Ident:  field(line, 13, 17),
				Type:   util.Select(subsection == ' ', WaypointVOR, WaypointNDB),
				Region: field(line, 19, 21),
			}
			if !empty(line[32:51]) {
				wp.Location, err = location(line[32:41], line[41:51])
			} else {
				// DME without a VOR
				wp.Location, err = location(line[55:64], line[64:74])
			}
			if err != nil {
				return nil, err
			}
			db.AddWaypoint(wp)

		case 'E':
			if line[5] != 'A' { // enroute waypoint
				break
			}
			loc, err := location(line[32:41], line[41:51])
			if err != nil {
				return nil, err
			}
			db.AddWaypoint(Waypoint{
				Ident:    field(line, 13, 18),
				Type:     WaypointIntersection,
				Region:   field(line, 19, 21),
				Location: loc,
			})

		case 'P': // airports
			icao := field(line, 6, 10)
			switch line[12] { // subsection
			case 'A': // primary airport record
				loc, err := location(line[32:41], line[41:51])
				if err != nil {
					return nil, err
				}
				ap := airport(icao)
				ap.Region = field(line, 10, 12)
				ap.Location = loc
				db.AddWaypoint(Waypoint{
					Ident:    icao,
					Type:     WaypointAirport,
					Region:   ap.Region,
					Location: loc,
				})

			case 'C': // terminal waypoint
				loc, err := location(line[32:41], line[41:51])
				if err != nil {
					return nil, err
				}
				db.AddWaypoint(Waypoint{
					Ident:    field(line, 13, 18),
					Type:     WaypointIntersection,
					Region:   field(line, 19, 21),
					Airport:  icao,
					Location: loc,
				})

			case 'D': // SID
				if recs, err = matchingSSARecs(line, recs); err != nil {
					return nil, err
				}
				ap := airport(icao)
				ap.Info.Departures = append(ap.Info.Departures, parseDeparture(recs))

			case 'G': // runway
				if continuation := line[21]; continuation != '0' && continuation != '1' {
					break
				}
				rwy := Runway{Designation: strings.TrimPrefix(field(line, 13, 18), "RW")}
				if hdg := field(line, 27, 31); hdg != "" {
					if h, err := strconv.Atoi(hdg); err == nil {
						rwy.Heading = float64(h) / 10
					}
				}
				if !empty(line[32:51]) {
					if rwy.Threshold, err = location(line[32:41], line[41:51]); err != nil {
						return nil, err
					}
				}
				ap := airport(icao)
				ap.Info.Runways = append(ap.Info.Runways, rwy)
			}
		}
	}

	return db, nil
}

// parseDeparture assembles a SID from its records, keeping transitions
// in the order they first appear.
func parseDeparture(recs []ssaRecord) Departure {
	dep := Departure{Name: recs[0].id}

	appendFix := func(fixes []string, fix string) []string {
		if fix == "" || (len(fixes) > 0 && fixes[len(fixes)-1] == fix) {
			return fixes
		}
		return append(fixes, fix)
	}
	addToTransition := func(tr []Transition, name, fix string) []Transition {
		i := slices.IndexFunc(tr, func(t Transition) bool { return t.Name == name })
		if i == -1 {
			tr = append(tr, Transition{Name: name})
			i = len(tr) - 1
		}
		tr[i].Fixes = appendFix(tr[i].Fixes, fix)
		return tr
	}

	for _, r := range recs {
		if r.continuation != '0' && r.continuation != '1' {
			continue
		}
		switch r.routeType {
		case '1', '4', 'F', 'T': // runway transitions
			dep.RunwayTransitions = addToTransition(dep.RunwayTransitions, r.transition, r.fix)
		case '2', '5', 'M': // common route
			dep.CommonFixes = appendFix(dep.CommonFixes, r.fix)
		case '3', '6', 'S', 'V': // en route transitions
			dep.EnRouteTransitions = addToTransition(dep.EnRouteTransitions, r.transition, r.fix)
		}
	}
	return dep
}
