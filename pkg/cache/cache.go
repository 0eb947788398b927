// Package cache holds order records fetched during one conversation.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/singleflight"
)

const logPrefix = "cache:session"

// Record is an open-schema order document.
type Record = map[string]any

// FetchFunc loads the record for one identifier. Returned errors are never cached.
type FetchFunc func(ctx context.Context) (Record, error)

// Session maps order identifiers to records. Entries are never evicted or
// invalidated for the lifetime of the session. Safe for concurrent use.
type Session struct {
	mu      sync.RWMutex
	records map[string]Record
	group   singleflight.Group
}

// New returns an empty session cache.
func New() *Session {
	return &Session{records: make(map[string]Record)}
}

// Get returns the record cached under id.
func (s *Session) Get(id string) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	return rec, ok
}

// Put stores rec under id, replacing any earlier entry.
func (s *Session) Put(id string, rec Record) {
	if id == "" || rec == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[id] = rec
}

// IDFunc returns the identifier of a record, or "" when it has none.
type IDFunc func(Record) string

// PutAll stores every record for which idOf returns a non-empty identifier.
// It returns the number of records stored.
func (s *Session) PutAll(recs []Record, idOf IDFunc) int {
	n := 0
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range recs {
		if rec == nil {
			continue
		}
		id := idOf(rec)
		if id == "" {
			continue
		}
		s.records[id] = rec
		n++
	}
	return n
}

// Len returns the number of cached records.
func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Keys returns the cached identifiers in sorted order.
func (s *Session) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.records))
	for k := range s.records {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Load returns the cached record for id, or calls fetch and caches its result.
// Concurrent Loads for the same id share a single fetch. hit reports whether
// the record came from the cache without fetching.
//
// The shared fetch runs on a context detached from the caller's cancellation,
// so one caller giving up does not fail the others; fetch must bound itself.
// A cancelled caller returns ctx.Err() while the fetch carries on.
func (s *Session) Load(ctx context.Context, id string, fetch FetchFunc) (rec Record, hit bool, err error) {
	if rec, ok := s.Get(id); ok {
		slog.Debug(fmt.Sprintf("%s - hit %s", logPrefix, id))
		return rec, true, nil
	}

	fetchCtx := context.WithoutCancel(ctx)
	ch := s.group.DoChan(id, func() (any, error) {
		if rec, ok := s.Get(id); ok {
			return rec, nil
		}
		slog.Debug(fmt.Sprintf("%s - miss %s", logPrefix, id))
		rec, err := fetch(fetchCtx)
		if err != nil {
			return nil, err
		}
		s.Put(id, rec)
		return rec, nil
	})

	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, false, res.Err
		}
		return res.Val.(Record), false, nil
	}
}
