// Package voicecache resolves voice identities to full catalog entries
// through a two-tier pull-through cache.
//
// The session tier keeps entries already resolved for a session, so casting
// views render without touching anything else. On a miss the library tier
// answers from provider catalogs pulled through the configured source, and
// the result is promoted into the session tier. Failed lookups are never
// cached; a voice that appears in the library later resolves on the next
// call.
package voicecache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"tableread/internal/casting"
	"tableread/internal/logging"
)

// ErrVoiceNotFound reports an identity absent from the provider's catalog.
var ErrVoiceNotFound = errors.New("voice not found in library")

// LibrarySource supplies provider catalogs on library-tier misses.
// *remote.Client satisfies it.
type LibrarySource interface {
	ListLibraryVoices(ctx context.Context, provider string) ([]casting.LibraryVoice, error)
}

// Stats counts cache effectiveness since construction or the last reset.
type Stats struct {
	Hits         uint64
	Misses       uint64
	LibraryScans uint64
}

// Cache is a two-tier voice resolution cache. All methods are safe for
// concurrent use.
type Cache struct {
	source LibrarySource
	logger *slog.Logger

	mu       sync.Mutex
	sessions map[string]map[string]casting.LibraryVoice
	library  map[string]map[string]casting.LibraryVoice
	stats    Stats
}

// New creates a cache resolving misses through source.
func New(source LibrarySource, logger *slog.Logger) *Cache {
	return &Cache{
		source:   source,
		logger:   logging.NewComponentLogger(logger, "voicecache"),
		sessions: make(map[string]map[string]casting.LibraryVoice),
		library:  make(map[string]map[string]casting.LibraryVoice),
	}
}

// Resolve returns the full catalog entry for a voice identity. The session
// tier is consulted first; a miss falls through to the library tier, which
// scans the provider catalog at most once until invalidated.
func (c *Cache) Resolve(ctx context.Context, sessionID, provider, voiceID string) (casting.LibraryVoice, error) {
	if provider == "" || voiceID == "" {
		return casting.LibraryVoice{}, fmt.Errorf("%w: empty identity", ErrVoiceNotFound)
	}
	key := provider + "/" + voiceID

	c.mu.Lock()
	if entry, ok := c.sessions[sessionID][key]; ok {
		c.stats.Hits++
		c.mu.Unlock()
		return entry.Clone(), nil
	}
	c.stats.Misses++
	catalog, scanned := c.library[provider]
	c.mu.Unlock()

	if !scanned {
		voices, err := c.source.ListLibraryVoices(ctx, provider)
		if err != nil {
			// Not cached: the next resolve rescans.
			return casting.LibraryVoice{}, fmt.Errorf("scan %s catalog: %w", provider, err)
		}
		catalog = make(map[string]casting.LibraryVoice, len(voices))
		for _, voice := range voices {
			catalog[voice.ID] = voice
		}

		c.mu.Lock()
		c.stats.LibraryScans++
		c.library[provider] = catalog
		c.mu.Unlock()

		c.logger.Debug("loaded provider catalog",
			logging.String("provider", provider),
			logging.Int("voices", len(catalog)))
	}

	entry, ok := catalog[voiceID]
	if !ok {
		return casting.LibraryVoice{}, fmt.Errorf("%w: %s/%s", ErrVoiceNotFound, provider, voiceID)
	}

	c.mu.Lock()
	session, ok := c.sessions[sessionID]
	if !ok {
		session = make(map[string]casting.LibraryVoice)
		c.sessions[sessionID] = session
	}
	session[key] = entry
	c.mu.Unlock()

	return entry.Clone(), nil
}

// ClearSession drops every resolved entry for one session.
func (c *Cache) ClearSession(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sessions, sessionID)
}

// InvalidateProvider drops one provider's library tier along with every
// session entry derived from it. The next resolve rescans the catalog.
func (c *Cache) InvalidateProvider(provider string) {
	prefix := provider + "/"
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.library, provider)
	for _, session := range c.sessions {
		for key := range session {
			if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
				delete(session, key)
			}
		}
	}
}

// Reset drops both tiers. Statistics keep accumulating.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessions = make(map[string]map[string]casting.LibraryVoice)
	c.library = make(map[string]map[string]casting.LibraryVoice)
}

// Stats returns a copy of the running counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}
