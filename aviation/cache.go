// aviation/cache.go
// Copyright(c) 2025 navlog contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package aviation

import (
	"context"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// CachingDatabase memoizes lookups in a slower NavDatabase, such as one
// that queries the host. Only successful lookups are cached; a missing
// airport is looked up again next time.
type CachingDatabase struct {
	db        NavDatabase
	airports  *expirable.LRU[string, *Airport]
	waypoints *expirable.LRU[string, []Waypoint]
}

func NewCachingDatabase(db NavDatabase, size int, ttl time.Duration) *CachingDatabase {
	return &CachingDatabase{
		db:        db,
		airports:  expirable.NewLRU[string, *Airport](size, nil, ttl),
		waypoints: expirable.NewLRU[string, []Waypoint](size, nil, ttl),
	}
}

func (c *CachingDatabase) AirportByIdent(ctx context.Context, icao string) (*Airport, error) {
	key := strings.ToUpper(icao)
	if ap, ok := c.airports.Get(key); ok {
		return ap, nil
	}
	ap, err := c.db.AirportByIdent(ctx, icao)
	if err != nil {
		return nil, err
	}
	c.airports.Add(key, ap)
	return ap, nil
}

func (c *CachingDatabase) WaypointsByIdent(ctx context.Context, ident string) ([]Waypoint, error) {
	key := strings.ToUpper(ident)
	if wps, ok := c.waypoints.Get(key); ok {
		return wps, nil
	}
	wps, err := c.db.WaypointsByIdent(ctx, ident)
	if err != nil {
		return nil, err
	}
	c.waypoints.Add(key, wps)
	return wps, nil
}

// Len returns the number of cached airports and waypoint idents.
func (c *CachingDatabase) Len() (airports, waypoints int) {
	return c.airports.Len(), c.waypoints.Len()
}
