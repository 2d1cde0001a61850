// Package loader turns a datasource.Source into a table.Table and memoizes
// the result for the lifetime of a session.
//
// A Loader never retries and never caches a failure: the next render pass
// after an outage will try the source again. Successful loads are kept until
// the Loader is dropped; concurrent loads of the same key share one fetch.
package loader

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zeebo/xxh3"
	"golang.org/x/sync/singleflight"

	"lodging/internal/datasource"
	"lodging/internal/metrics"
	pcsv "lodging/internal/parser/csv"
	"lodging/internal/table"
)

// Spec describes one dataset to load.
type Spec struct {
	// Name labels logs and metrics ("hotels", "listings").
	Name string

	Source datasource.Source

	// Key identifies the source for memoization. When empty, the source's
	// ID() is used if it implements datasource.Identity.
	Key string

	// Parse holds the CSV options; Parse.Comma is part of the cache key.
	Parse pcsv.Options

	// NoCache bypasses the session cache (used for local files that may
	// change between passes).
	NoCache bool
}

// Loader loads and memoizes tables. The zero value is not usable; call New.
type Loader struct {
	mu      sync.RWMutex
	entries map[uint64]*table.Table
	group   singleflight.Group

	// fetches counts source opens.
	fetches atomic.Int64
}

// New returns an empty Loader.
func New() *Loader {
	return &Loader{entries: make(map[uint64]*table.Table)}
}

// Load returns the table for spec, fetching and parsing it at most once per
// distinct (source identity, delimiter) for this Loader.
func (l *Loader) Load(ctx context.Context, spec Spec) (*table.Table, error) {
	if spec.Source == nil {
		return nil, fmt.Errorf("loader %s: nil source", spec.Name)
	}
	id := spec.Key
	if id == "" {
		if ident, ok := spec.Source.(datasource.Identity); ok {
			id = ident.ID()
		}
	}
	if spec.NoCache || id == "" {
		return l.fetch(ctx, spec)
	}

	key := cacheKey(id, spec.Parse.Comma)

	l.mu.RLock()
	t, ok := l.entries[key]
	l.mu.RUnlock()
	if ok {
		metrics.RecordCache(spec.Name, true)
		return t, nil
	}
	metrics.RecordCache(spec.Name, false)

	// The shared fetch must not die with the first caller's context: a
	// superseded render would otherwise fail every waiter behind it. A
	// canceled caller stops waiting; the fetch still lands in the cache.
	ch := l.group.DoChan(strconv.FormatUint(key, 16), func() (any, error) {
		l.mu.RLock()
		t, ok := l.entries[key]
		l.mu.RUnlock()
		if ok {
			return t, nil
		}
		t, err := l.fetch(context.WithoutCancel(ctx), spec)
		if err != nil {
			return nil, err
		}
		l.mu.Lock()
		l.entries[key] = t
		l.mu.Unlock()
		return t, nil
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		return nil, res.Err
	}
	if res.Shared {
		log.Printf("loader: %s shared in-flight fetch of %s", spec.Name, id)
	}
	return res.Val.(*table.Table), nil
}

// Fetches returns how many times a source has been opened.
func (l *Loader) Fetches() int64 {
	return l.fetches.Load()
}

// Len returns the number of cached tables.
func (l *Loader) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

func (l *Loader) fetch(ctx context.Context, spec Spec) (*table.Table, error) {
	l.fetches.Add(1)

	start := time.Now()
	rc, err := spec.Source.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", spec.Name, err)
	}
	defer rc.Close()

	t, err := pcsv.NewParser(spec.Parse).Parse(rc)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", spec.Name, err)
	}
	metrics.RecordRow(spec.Name, "loaded", t.Len())
	log.Printf("loader: %s rows=%d cols=%d in %s", spec.Name, t.Len(), t.Width(), time.Since(start).Round(time.Millisecond))
	return t, nil
}

// cacheKey hashes the source identity and delimiter. The delimiter is
// separated by a NUL so "a|" + ',' and "a" + '|' cannot collide by
// concatenation.
func cacheKey(id string, comma rune) uint64 {
	if comma == 0 {
		comma = ','
	}
	return xxh3.HashString(id + "\x00" + string(comma))
}
