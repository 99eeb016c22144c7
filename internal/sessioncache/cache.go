// Package sessioncache holds the client's latest session snapshots.
//
// Reads always see a complete snapshot: entries swap atomically under a
// lock and clone on the way in and out, so callers can never observe or
// cause a half-applied update.
//
// The cache tracks a per-session version floor fed by canonical snapshots.
// PutCanonical refuses versions below the floor, which discards refetches
// that lost a race with a newer commit. Put publishes unconditionally; the
// sync pipeline uses it for speculative snapshots and for rollbacks, which
// must restore the pre-mutation state no matter what the floor says. The
// floor survives Invalidate so a dropped entry cannot be refilled with
// stale data.
package sessioncache

import (
	"log/slog"
	"sync"

	"tableread/internal/casting"
	"tableread/internal/logging"
)

// Cache provides thread-safe access to session snapshots.
type Cache struct {
	logger *slog.Logger

	mu      sync.RWMutex
	entries map[string]*casting.Session
	floors  map[string]int64
}

// New creates an empty cache.
func New(logger *slog.Logger) *Cache {
	return &Cache{
		logger:  logging.NewComponentLogger(logger, "sessioncache"),
		entries: make(map[string]*casting.Session),
		floors:  make(map[string]int64),
	}
}

// Get returns a copy of the cached snapshot for sessionID.
func (c *Cache) Get(sessionID string) (*casting.Session, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	session, ok := c.entries[sessionID]
	if !ok {
		return nil, false
	}
	return session.Clone(), true
}

// Put publishes a snapshot unconditionally, replacing whatever is cached.
// It never moves the version floor; canonical state goes through
// PutCanonical instead.
func (c *Cache) Put(session *casting.Session) {
	if session == nil || session.ID == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[session.ID] = session.Clone()
}

// PutCanonical publishes a canonical snapshot and advances the version
// floor. A snapshot older than the floor is discarded and PutCanonical
// reports false; the caller's refetch lost a race with a newer commit.
func (c *Cache) PutCanonical(session *casting.Session) bool {
	if session == nil || session.ID == "" {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if floor, ok := c.floors[session.ID]; ok && session.Version < floor {
		c.logger.Debug("discarding stale canonical snapshot",
			logging.String(logging.FieldSessionID, session.ID),
			logging.Int64("version", session.Version),
			logging.Int64("floor", floor))
		return false
	}
	c.floors[session.ID] = session.Version
	c.entries[session.ID] = session.Clone()
	return true
}

// Floor returns the canonical version floor for sessionID.
func (c *Cache) Floor(sessionID string) (int64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	floor, ok := c.floors[sessionID]
	return floor, ok
}

// Invalidate drops the snapshot for sessionID. The version floor is kept so
// a later canonical refill cannot regress.
func (c *Cache) Invalidate(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, sessionID)
}

// Forget removes both the snapshot and the version floor, for sessions that
// no longer exist on the store.
func (c *Cache) Forget(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, sessionID)
	delete(c.floors, sessionID)
}

// Reset drops every snapshot and floor.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*casting.Session)
	c.floors = make(map[string]int64)
}

// Len returns the number of cached snapshots.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
