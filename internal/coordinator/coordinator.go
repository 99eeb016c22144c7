package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"tableread/internal/casting"
	"tableread/internal/config"
	"tableread/internal/logging"
	"tableread/internal/remote"
	"tableread/internal/sessioncache"
)

// ErrQueueFull rejects submissions once a session's pending queue reaches the
// configured limit.
var ErrQueueFull = errors.New("mutation queue is full")

// ErrClosed rejects work after Close.
var ErrClosed = errors.New("coordinator is closed")

// State describes where a session sits in the commit pipeline.
type State string

const (
	// StateIdle means the cached snapshot is canonical.
	StateIdle State = "idle"
	// StateOptimistic means local edits are published but no commit has
	// been dispatched yet.
	StateOptimistic State = "optimistic"
	// StateCommitting means a commit is in flight.
	StateCommitting State = "committing"
	// StateRolledBack means the last commit failed and the cache was
	// restored to the canonical snapshot. Cleared by the next submit or
	// accepted refresh.
	StateRolledBack State = "rolled_back"
)

const (
	defaultQueueLimit    = 32
	defaultCommitTimeout = 30 * time.Second
)

// Coordinator runs the optimistic commit pipeline for every open session.
// Reads come from the cache; writes go through Submit and settle against the
// store one commit at a time per session.
type Coordinator struct {
	store         remote.Store
	cache         *sessioncache.Cache
	logger        *slog.Logger
	queueLimit    int
	commitTimeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	sessions map[string]*sessionState
}

// sessionState is everything the coordinator tracks for one session. base is
// the last canonical snapshot and the version every commit is issued
// against; speculative is base plus every pending mutation, or nil when the
// queue is empty.
type sessionState struct {
	base        *casting.Session
	speculative *casting.Session
	pending     []*pendingMutation
	generation  uint64
	inFlight    bool
	rolledBack  bool
	cancel      context.CancelFunc
}

type pendingMutation struct {
	mutation Mutation
	ticket   *Ticket
}

// New builds a coordinator over the given store and cache. Queue limit and
// commit timeout come from cfg; a nil cfg falls back to defaults.
func New(store remote.Store, cache *sessioncache.Cache, cfg *config.Config, logger *slog.Logger) *Coordinator {
	queueLimit := defaultQueueLimit
	commitTimeout := defaultCommitTimeout
	if cfg != nil {
		queueLimit = cfg.Sync.QueueLimit
		if cfg.Sync.CommitTimeoutSeconds > 0 {
			commitTimeout = time.Duration(cfg.Sync.CommitTimeoutSeconds) * time.Second
		}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		store:         store,
		cache:         cache,
		logger:        logging.NewComponentLogger(logger, "coordinator"),
		queueLimit:    queueLimit,
		commitTimeout: commitTimeout,
		ctx:           ctx,
		cancel:        cancel,
		sessions:      make(map[string]*sessionState),
	}
}

// Close stops dispatching commits, cancels any in flight, and waits for the
// rollback bookkeeping to finish. Queued mutations complete with ErrClosed.
func (c *Coordinator) Close() {
	c.cancel()
	c.wg.Wait()
}

// Submit applies the mutation speculatively, publishes the result to the
// cache, and queues it for commit. The returned ticket resolves when the
// store accepts or rejects the mutation. A mutation that cannot apply to the
// current snapshot is rejected here and never queued.
func (c *Coordinator) Submit(ctx context.Context, sessionID string, mutation Mutation) (*Ticket, error) {
	if mutation == nil {
		return nil, errors.New("mutation is nil")
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, errors.New("session id is empty")
	}
	if c.ctx.Err() != nil {
		return nil, ErrClosed
	}
	if _, err := c.ensureBase(ctx, sessionID); err != nil {
		return nil, err
	}

	c.mu.Lock()
	sc := c.sessions[sessionID]
	if sc == nil || sc.base == nil {
		c.mu.Unlock()
		return nil, fmt.Errorf("session %s: %w", sessionID, remote.ErrNotFound)
	}
	if c.queueLimit > 0 && len(sc.pending) >= c.queueLimit {
		depth := len(sc.pending)
		c.mu.Unlock()
		return nil, fmt.Errorf("session %s has %d pending mutations: %w", sessionID, depth, ErrQueueFull)
	}

	head := sc.speculative
	if head == nil {
		head = sc.base
	}
	work := head.Clone()
	if err := mutation.apply(work); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	work.Version = sc.base.Version + int64(len(sc.pending)) + 1

	ticket := newTicket(mutation.Kind())
	sc.pending = append(sc.pending, &pendingMutation{mutation: mutation, ticket: ticket})
	sc.speculative = work
	sc.rolledBack = false
	c.publishLocked(sc, nil)
	depth := len(sc.pending)
	if !sc.inFlight {
		sc.inFlight = true
		c.wg.Add(1)
		go c.runCommits(sessionID)
	}
	c.mu.Unlock()

	c.logger.Debug("mutation queued",
		logging.String(logging.FieldSessionID, sessionID),
		logging.String("kind", mutation.Kind()),
		logging.Int64(logging.FieldVersion, work.Version),
		logging.Int("queue_depth", depth))
	return ticket, nil
}

// Session returns the current snapshot for sessionID, fetching from the
// store when nothing is cached. With pending mutations the snapshot is
// speculative; otherwise it is canonical.
func (c *Coordinator) Session(ctx context.Context, sessionID string) (*casting.Session, error) {
	if snapshot, ok := c.cache.Get(sessionID); ok {
		return snapshot, nil
	}
	return c.Refresh(ctx, sessionID)
}

// Refresh refetches the canonical snapshot. A refetch that lost a race with
// a commit or a newer submit is discarded and the fresher local state is
// returned instead; pending mutations are rebased onto an accepted fetch.
func (c *Coordinator) Refresh(ctx context.Context, sessionID string) (*casting.Session, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, errors.New("session id is empty")
	}

	c.mu.Lock()
	sc := c.sessions[sessionID]
	if sc == nil {
		sc = &sessionState{}
		c.sessions[sessionID] = sc
	}
	started := sc.generation
	c.mu.Unlock()

	fetched, err := c.store.FetchSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, remote.ErrNotFound) {
			c.forgetIfQuiet(sessionID, started)
		}
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	sc = c.sessions[sessionID]
	if sc == nil {
		// Deleted while fetching; do not resurrect.
		return nil, fmt.Errorf("session %s: %w", sessionID, remote.ErrNotFound)
	}
	if sc.generation != started {
		c.logger.Debug("stale refresh discarded",
			logging.String(logging.FieldSessionID, sessionID),
			logging.Uint64(logging.FieldGeneration, sc.generation),
			logging.Int64(logging.FieldVersion, fetched.Version))
		return c.currentLocked(sc), nil
	}
	if sc.base != nil && fetched.Version < sc.base.Version {
		// The store answered with an older snapshot than we already hold.
		return c.currentLocked(sc), nil
	}

	sc.base = fetched
	sc.rolledBack = false
	c.rebaseLocked(sessionID, sc)
	c.publishLocked(sc, fetched)
	return c.currentLocked(sc), nil
}

// Delete removes the session from the store and drops all local state.
// Pending mutations complete with a not-found error.
func (c *Coordinator) Delete(ctx context.Context, sessionID string) error {
	if err := c.store.DeleteSession(ctx, sessionID); err != nil {
		return err
	}

	c.mu.Lock()
	sc := c.sessions[sessionID]
	var orphans []*pendingMutation
	if sc != nil {
		orphans = sc.pending
		if sc.cancel != nil {
			// A commit is outstanding; the runner owns the head's ticket
			// and will settle it when the canceled commit returns.
			sc.cancel()
			if len(orphans) > 0 {
				orphans = orphans[1:]
			}
		}
		delete(c.sessions, sessionID)
	}
	c.mu.Unlock()

	for _, pending := range orphans {
		pending.ticket.complete(nil, fmt.Errorf("session %s: %w", sessionID, remote.ErrNotFound))
	}
	c.cache.Forget(sessionID)
	return nil
}

// Cancel aborts the in-flight commit for sessionID, if any. The abort takes
// the normal failure path: the head rolls back and queued mutations rebase
// onto the canonical snapshot.
func (c *Coordinator) Cancel(sessionID string) {
	c.mu.Lock()
	sc := c.sessions[sessionID]
	var cancel context.CancelFunc
	if sc != nil {
		cancel = sc.cancel
	}
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// State reports where the session sits in the commit pipeline.
func (c *Coordinator) State(sessionID string) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	sc := c.sessions[sessionID]
	if sc == nil {
		return StateIdle
	}
	switch {
	case sc.inFlight:
		return StateCommitting
	case len(sc.pending) > 0:
		return StateOptimistic
	case sc.rolledBack:
		return StateRolledBack
	default:
		return StateIdle
	}
}

// PendingCount returns the number of mutations queued for sessionID,
// including any commit in flight.
func (c *Coordinator) PendingCount(sessionID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if sc := c.sessions[sessionID]; sc != nil {
		return len(sc.pending)
	}
	return 0
}

// Generation returns the publish generation for sessionID. It moves on
// every cache publish, so callers can detect that their view went stale.
func (c *Coordinator) Generation(sessionID string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if sc := c.sessions[sessionID]; sc != nil {
		return sc.generation
	}
	return 0
}

// ensureBase makes sure a canonical snapshot is loaded for the session.
func (c *Coordinator) ensureBase(ctx context.Context, sessionID string) (*casting.Session, error) {
	c.mu.Lock()
	if sc := c.sessions[sessionID]; sc != nil && sc.base != nil {
		base := sc.base
		c.mu.Unlock()
		return base, nil
	}
	c.mu.Unlock()
	return c.Refresh(ctx, sessionID)
}

// forgetIfQuiet drops state for a session the store no longer knows, unless
// local activity happened since the caller sampled the generation.
func (c *Coordinator) forgetIfQuiet(sessionID string, generation uint64) {
	c.mu.Lock()
	sc := c.sessions[sessionID]
	quiet := sc != nil && sc.generation == generation && !sc.inFlight && len(sc.pending) == 0
	if quiet {
		delete(c.sessions, sessionID)
	}
	c.mu.Unlock()
	if quiet {
		c.cache.Forget(sessionID)
	}
}

// runCommits drains the session's queue one commit at a time. It exits when
// the queue empties, the session is deleted, or the coordinator closes.
func (c *Coordinator) runCommits(sessionID string) {
	defer c.wg.Done()
	for {
		c.mu.Lock()
		sc := c.sessions[sessionID]
		if sc == nil {
			c.mu.Unlock()
			return
		}
		if c.ctx.Err() != nil {
			c.drainLocked(sc)
			c.mu.Unlock()
			return
		}
		if len(sc.pending) == 0 {
			sc.inFlight = false
			c.mu.Unlock()
			return
		}
		head := sc.pending[0]
		expected := sc.base.Version
		commitCtx, cancel := context.WithTimeout(c.ctx, c.commitTimeout)
		sc.cancel = cancel
		c.mu.Unlock()

		canonical, err := head.mutation.commit(commitCtx, c.store, sessionID, expected)
		cancel()

		c.mu.Lock()
		sc = c.sessions[sessionID]
		if sc == nil {
			// Session deleted while committing; settle the head and stop.
			c.mu.Unlock()
			if err != nil {
				head.ticket.complete(nil, err)
			} else {
				head.ticket.complete(canonical.Clone(), nil)
			}
			return
		}
		sc.cancel = nil

		if err != nil {
			sc.pending = dropMutation(sc.pending, head)
			c.rebaseLocked(sessionID, sc)
			sc.rolledBack = len(sc.pending) == 0
			c.publishLocked(sc, nil)
			depth := len(sc.pending)
			c.mu.Unlock()

			logging.WarnWithContext(c.logger, "commit rejected; speculative edit rolled back", "commit_rolled_back",
				logging.String(logging.FieldSessionID, sessionID),
				logging.String("kind", head.mutation.Kind()),
				logging.Int64("expected_version", expected),
				logging.Int("queue_depth", depth),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, rollbackHint(err)),
				logging.String(logging.FieldImpact, "local edit discarded; cached session restored to canonical state"))
			head.ticket.complete(nil, err)
			continue
		}

		if canonical != nil && (sc.base == nil || canonical.Version > sc.base.Version) {
			sc.base = canonical
		}
		sc.pending = dropMutation(sc.pending, head)
		c.rebaseLocked(sessionID, sc)
		sc.rolledBack = false
		c.publishLocked(sc, canonical)
		c.mu.Unlock()

		c.logger.Info("commit accepted",
			logging.String(logging.FieldSessionID, sessionID),
			logging.String("kind", head.mutation.Kind()),
			logging.Int64(logging.FieldVersion, canonical.Version),
			logging.String(logging.FieldEventType, "commit_accepted"))
		head.ticket.complete(canonical.Clone(), nil)
	}
}

// rebaseLocked rebuilds the speculative chain by replaying pending mutations
// onto the current base. A queued mutation that no longer applies completes
// with its error and drops out; an in-flight head is kept regardless because
// its commit outcome is already owned by the runner.
func (c *Coordinator) rebaseLocked(sessionID string, sc *sessionState) {
	if len(sc.pending) == 0 {
		sc.speculative = nil
		return
	}

	work := sc.base.Clone()
	version := sc.base.Version
	kept := make([]*pendingMutation, 0, len(sc.pending))
	for i, pending := range sc.pending {
		if err := pending.mutation.apply(work); err != nil {
			if i == 0 && sc.inFlight {
				kept = append(kept, pending)
				continue
			}
			c.logger.Warn("queued mutation no longer applies; dropped",
				logging.String(logging.FieldSessionID, sessionID),
				logging.String("kind", pending.mutation.Kind()),
				logging.Error(err))
			pending.ticket.complete(nil, err)
			continue
		}
		version++
		work.Version = version
		kept = append(kept, pending)
	}
	sc.pending = kept

	if version == sc.base.Version {
		sc.speculative = nil
		return
	}
	sc.speculative = work
}

// publishLocked pushes the session's current view to the cache and bumps the
// generation. canonical, when set, advances the version floor first; the
// speculative chain, when present, is what readers see.
func (c *Coordinator) publishLocked(sc *sessionState, canonical *casting.Session) {
	sc.generation++
	if canonical != nil {
		c.cache.PutCanonical(canonical)
	}
	switch {
	case sc.speculative != nil:
		c.cache.Put(sc.speculative)
	case canonical == nil && sc.base != nil:
		c.cache.Put(sc.base)
	}
}

// drainLocked fails every remaining pending mutation with ErrClosed.
func (c *Coordinator) drainLocked(sc *sessionState) {
	for _, pending := range sc.pending {
		pending.ticket.complete(nil, ErrClosed)
	}
	sc.pending = nil
	sc.speculative = nil
	sc.inFlight = false
}

func (c *Coordinator) currentLocked(sc *sessionState) *casting.Session {
	if sc.speculative != nil {
		return sc.speculative.Clone()
	}
	return sc.base.Clone()
}

func dropMutation(pending []*pendingMutation, target *pendingMutation) []*pendingMutation {
	for i, entry := range pending {
		if entry == target {
			return append(pending[:i], pending[i+1:]...)
		}
	}
	return pending
}

// rollbackHint names the operator's next step for each failure class.
func rollbackHint(err error) string {
	switch remote.Kind(err) {
	case remote.KindConflict:
		return "another writer advanced the session; review the refreshed snapshot and resubmit"
	case remote.KindValidation:
		return "fix the rejected fields and resubmit"
	case remote.KindParse:
		return "the document no longer parses; fetch it and repair the text"
	case remote.KindNetwork:
		return "check that the tableread server is reachable"
	default:
		return "check logs for details"
	}
}
