// pipeline/session.go
// Copyright(c) 2025 navlog contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package pipeline

import (
	"context"

	"github.com/hdsdk/navlog/aviation"
	"github.com/hdsdk/navlog/fms"
	"github.com/hdsdk/navlog/navlog"

	"golang.org/x/sync/semaphore"
)

// Session serializes navlog imports against a single host: the host's
// temporary flight plan can't be shared between concurrent writers.
type Session struct {
	host fms.Host
	db   aviation.NavDatabase
	opts Options
	sem  *semaphore.Weighted
}

func NewSession(host fms.Host, db aviation.NavDatabase, opts Options) *Session {
	if opts.LookupCacheSize > 0 {
		// Share one cache across the session's pipelines.
		db = aviation.NewCachingDatabase(db, opts.LookupCacheSize, opts.LookupCacheTTL)
		opts.LookupCacheSize = 0
	}
	return &Session{
		host: host,
		db:   db,
		opts: opts,
		sem:  semaphore.NewWeighted(1),
	}
}

// Apply runs a pipeline for nl once no other is running, or returns
// ctx's error if it is done first.
func (s *Session) Apply(ctx context.Context, nl *navlog.Navlog) (*Result, error) {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer s.sem.Release(1)

	return New(nl, s.db, s.host, s.opts).Run(ctx)
}

// TryApply is like Apply but returns ErrSessionBusy rather than waiting.
func (s *Session) TryApply(ctx context.Context, nl *navlog.Navlog) (*Result, error) {
	if !s.sem.TryAcquire(1) {
		s.opts.Logger.Warn("navlog apply rejected", "error", ErrSessionBusy)
		return nil, ErrSessionBusy
	}
	defer s.sem.Release(1)

	return New(nl, s.db, s.host, s.opts).Run(ctx)
}
