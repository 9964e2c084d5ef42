// Package cache provides the request cache: server-fetched entities keyed by
// (server URL, project path, entity kind, id) with per-kind staleness
// windows, stale-while-revalidate reads, and patch functions shared by
// mutations and the event channel. Both write paths converge on one value
// per key.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/opencode-ai/pocketcode/internal/bus"
	"github.com/opencode-ai/pocketcode/internal/logging"
)

// Kind identifies an entity family in the cache keyspace.
type Kind string

const (
	KindSessions  Kind = "sessions"
	KindSession   Kind = "session"
	KindMessages  Kind = "messages"
	KindTodos     Kind = "todos"
	KindStatus    Kind = "status"
	KindProjects  Kind = "projects"
	KindProviders Kind = "providers"
	KindAgents    Kind = "agents"
)

// Key addresses one cache entry. Changing the active server or project
// changes the key, so data from another scope can never leak into the
// current view.
type Key struct {
	Server  string
	Project string
	Kind    Kind
	ID      string
}

func (k Key) String() string {
	s := k.Server + "|" + k.Project + "|" + string(k.Kind)
	if k.ID != "" {
		s += "|" + k.ID
	}
	return s
}

// DefaultWindows holds the staleness window per kind. Frequently-changing
// data gets short windows, near-static catalogs long ones.
var DefaultWindows = map[Kind]time.Duration{
	KindSessions:  30 * time.Second,
	KindSession:   30 * time.Second,
	KindMessages:  30 * time.Second,
	KindTodos:     30 * time.Second,
	KindStatus:    10 * time.Second,
	KindProjects:  time.Minute,
	KindProviders: 5 * time.Minute,
	KindAgents:    5 * time.Minute,
}

type entry struct {
	value     any
	hasValue  bool
	fetchedAt time.Time
	err       error
	fetching  bool
}

// Store is the shared mutable cache. All writes go through functional
// updates under the store lock, so readers never observe partial writes.
type Store struct {
	mu      sync.Mutex
	entries map[Key]*entry
	windows map[Kind]time.Duration
	bus     *bus.Bus

	now func() time.Time
}

// NewStore creates a store publishing change notifications on b.
func NewStore(b *bus.Bus) *Store {
	windows := make(map[Kind]time.Duration, len(DefaultWindows))
	for k, v := range DefaultWindows {
		windows[k] = v
	}
	return &Store{
		entries: make(map[Key]*entry),
		windows: windows,
		bus:     b,
		now:     time.Now,
	}
}

// SetWindow overrides the staleness window for a kind.
func (s *Store) SetWindow(kind Kind, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.windows[kind] = d
}

func (s *Store) window(kind Kind) time.Duration {
	if d, ok := s.windows[kind]; ok {
		return d
	}
	return 30 * time.Second
}

// FetchFunc loads a value from the server.
type FetchFunc func(ctx context.Context) (any, error)

// Fetch returns the cached value for key, loading it with fn when missing.
// A stale value is returned immediately and revalidated in the background
// (stale-while-revalidate); reads never block on data they already have.
func (s *Store) Fetch(ctx context.Context, key Key, fn FetchFunc) (any, error) {
	s.mu.Lock()
	e, ok := s.entries[key]
	if ok && e.hasValue {
		stale := s.now().Sub(e.fetchedAt) > s.window(key.Kind)
		needsRefetch := stale && !e.fetching
		if needsRefetch {
			e.fetching = true
		}
		value := e.value
		s.mu.Unlock()

		if needsRefetch {
			go s.revalidate(key, fn)
		}
		return value, nil
	}
	s.mu.Unlock()

	value, err := fn(ctx)

	s.mu.Lock()
	if err != nil {
		s.entries[key] = &entry{err: err, fetchedAt: s.now()}
		s.mu.Unlock()
		return nil, err
	}
	s.entries[key] = &entry{value: value, hasValue: true, fetchedAt: s.now()}
	s.mu.Unlock()

	s.notify(key)
	return value, nil
}

// revalidate refetches a stale entry in the background, retrying transient
// failures with exponential backoff. The stale value stays served until the
// refetch succeeds.
func (s *Store) revalidate(key Key, fn FetchFunc) {
	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3)

	var value any
	err := backoff.Retry(func() error {
		v, err := fn(context.Background())
		if err != nil {
			return err
		}
		value = v
		return nil
	}, policy)

	s.mu.Lock()
	e, ok := s.entries[key]
	if !ok {
		// Invalidated while we were fetching; drop the result.
		s.mu.Unlock()
		return
	}
	e.fetching = false
	if err != nil {
		s.mu.Unlock()
		logging.Debug().Str("key", key.String()).Err(err).Msg("background revalidation failed")
		return
	}
	e.value = value
	e.hasValue = true
	e.err = nil
	e.fetchedAt = s.now()
	s.mu.Unlock()

	s.notify(key)
}

// Peek returns the cached value without fetching.
func (s *Store) Peek(key Key) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok || !e.hasValue {
		return nil, false
	}
	return e.value, true
}

// Patch applies a functional update to an existing entry. Missing entries
// are left untouched: an event for data the client never fetched has nothing
// to converge with, the eventual fetch will pick it up. Reports whether a
// value changed.
func (s *Store) Patch(key Key, fn func(old any) any) bool {
	s.mu.Lock()
	e, ok := s.entries[key]
	if !ok || !e.hasValue {
		s.mu.Unlock()
		return false
	}
	e.value = fn(e.value)
	s.mu.Unlock()

	s.notify(key)
	return true
}

// Upsert applies a functional update, creating the entry from a nil old
// value when absent.
func (s *Store) Upsert(key Key, fn func(old any) any) {
	s.mu.Lock()
	e, ok := s.entries[key]
	if !ok {
		e = &entry{fetchedAt: s.now()}
		s.entries[key] = e
	}
	var old any
	if e.hasValue {
		old = e.value
	}
	e.value = fn(old)
	e.hasValue = true
	s.mu.Unlock()

	s.notify(key)
}

// Invalidate drops an entry; the next read refetches.
func (s *Store) Invalidate(key Key) {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()

	s.notify(key)
}

// InvalidateKinds drops every entry of the given kinds under a (server,
// project) pair.
func (s *Store) InvalidateKinds(server, project string, kinds ...Kind) {
	wanted := make(map[Kind]bool, len(kinds))
	for _, k := range kinds {
		wanted[k] = true
	}

	s.mu.Lock()
	var dropped []Key
	for key := range s.entries {
		if key.Server == server && key.Project == project && wanted[key.Kind] {
			delete(s.entries, key)
			dropped = append(dropped, key)
		}
	}
	s.mu.Unlock()

	for _, key := range dropped {
		s.notify(key)
	}
}

// InvalidateScope drops every entry under a (server, project) pair.
func (s *Store) InvalidateScope(server, project string) {
	s.mu.Lock()
	var dropped []Key
	for key := range s.entries {
		if key.Server == server && key.Project == project {
			delete(s.entries, key)
			dropped = append(dropped, key)
		}
	}
	s.mu.Unlock()

	for _, key := range dropped {
		s.notify(key)
	}
}

func (s *Store) notify(key Key) {
	if s.bus != nil {
		s.bus.Publish(bus.TopicCache, key.String())
	}
}
