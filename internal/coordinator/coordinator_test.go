package coordinator_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"tableread/internal/casting"
	"tableread/internal/coordinator"
	"tableread/internal/document"
	"tableread/internal/logging"
	"tableread/internal/remote"
	"tableread/internal/sessioncache"
	"tableread/internal/testsupport"
)

type commitRecord struct {
	kind     string
	expected int64
}

// fakeStore is an in-memory remote.Store with the same commit semantics as
// the server: compare-and-swap on version, one increment per accepted
// commit. Gates let tests freeze fetches and commits mid-flight.
type fakeStore struct {
	mu       sync.Mutex
	sessions map[string]*casting.Session
	commits  []commitRecord
	fetches  int
	failures []error

	commitStarted chan string
	commitBlock   chan struct{}
	fetchStarted  chan struct{}
	fetchBlock    chan struct{}
}

func newFakeStore(seed ...*casting.Session) *fakeStore {
	s := &fakeStore{sessions: make(map[string]*casting.Session)}
	for _, session := range seed {
		s.sessions[session.ID] = session.Clone()
	}
	return s
}

func (s *fakeStore) gateCommits() chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commitStarted = make(chan string, 8)
	s.commitBlock = make(chan struct{})
	return s.commitBlock
}

func (s *fakeStore) gateFetches() chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetchStarted = make(chan struct{}, 8)
	s.fetchBlock = make(chan struct{})
	return s.fetchBlock
}

func (s *fakeStore) failNext(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, err)
}

func (s *fakeStore) mutateStored(sessionID string, fn func(*casting.Session)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if session, ok := s.sessions[sessionID]; ok {
		fn(session)
	}
}

func (s *fakeStore) recordedCommits() []commitRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]commitRecord(nil), s.commits...)
}

func (s *fakeStore) fetchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetches
}

func (s *fakeStore) FetchSession(ctx context.Context, sessionID string) (*casting.Session, error) {
	s.mu.Lock()
	s.fetches++
	session, ok := s.sessions[sessionID]
	var snapshot *casting.Session
	if ok {
		// Snapshot at call time so a gated fetch models a slow response
		// carrying data that later commits have overtaken.
		snapshot = session.Clone()
	}
	started := s.fetchStarted
	gate := s.fetchBlock
	s.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", remote.ErrNetwork, ctx.Err())
		}
	}
	if snapshot == nil {
		return nil, fmt.Errorf("session %s: %w", sessionID, remote.ErrNotFound)
	}
	return snapshot, nil
}

func (s *fakeStore) commitMutation(ctx context.Context, sessionID, kind string, expected int64, mutate func(*casting.Session) error) (*casting.Session, error) {
	s.mu.Lock()
	s.commits = append(s.commits, commitRecord{kind: kind, expected: expected})
	started := s.commitStarted
	gate := s.commitBlock
	s.mu.Unlock()

	if started != nil {
		started <- kind
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", remote.ErrNetwork, ctx.Err())
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.failures) > 0 {
		err := s.failures[0]
		s.failures = s.failures[1:]
		return nil, err
	}
	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", sessionID, remote.ErrNotFound)
	}
	if session.Version != expected {
		return nil, remote.NewConflict(sessionID, expected, session.Version)
	}
	if err := mutate(session); err != nil {
		return nil, err
	}
	session.Version++
	session.UpdatedAt = time.Now().UTC()
	return session.Clone(), nil
}

func (s *fakeStore) CommitDocument(ctx context.Context, sessionID, documentText string, expectedVersion int64) (*casting.Session, error) {
	return s.commitMutation(ctx, sessionID, "replace_document", expectedVersion, func(session *casting.Session) error {
		session.DocumentText = documentText
		session.Assignments = document.Parse(documentText).Assignments
		return nil
	})
}

func (s *fakeStore) CommitAssignmentMetadata(ctx context.Context, sessionID, speaker string, patch casting.AssignmentPatch, expectedVersion int64) (*casting.Session, error) {
	return s.commitMutation(ctx, sessionID, "patch_assignment", expectedVersion, func(session *casting.Session) error {
		base := session.Assignments[speaker]
		return s.rewrite(session, speaker, patch.Apply(base))
	})
}

func (s *fakeStore) ClearAssignment(ctx context.Context, sessionID, speaker string, expectedVersion int64) (*casting.Session, error) {
	return s.commitMutation(ctx, sessionID, "clear_voice", expectedVersion, func(session *casting.Session) error {
		base := session.Assignments[speaker]
		return s.rewrite(session, speaker, base.ClearVoice())
	})
}

func (s *fakeStore) rewrite(session *casting.Session, speaker string, next casting.Assignment) error {
	if next.LineCount == 0 {
		for _, character := range session.Characters {
			if character.Name == speaker {
				next.LineCount = character.LineCount
				next.TotalCharacters = character.TotalCharacters
				next.LongestDialogue = character.LongestDialogue
				break
			}
		}
	}
	text, err := document.ApplyAssignment(session.DocumentText, speaker, next)
	if err != nil {
		return remote.NewValidation(fmt.Sprintf("document rejects edits: %v", err))
	}
	session.DocumentText = text
	session.Assignments = document.Parse(text).Assignments
	return nil
}

func (s *fakeStore) DeleteSession(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionID]; !ok {
		return fmt.Errorf("session %s: %w", sessionID, remote.ErrNotFound)
	}
	delete(s.sessions, sessionID)
	return nil
}

func (s *fakeStore) CreateSession(context.Context, remote.NewSession) (*casting.Session, error) {
	return nil, errors.New("not supported")
}

func (s *fakeStore) ListSessions(context.Context) ([]casting.SessionSummary, error) {
	return nil, nil
}

func (s *fakeStore) ValidateDocument(context.Context, string, string) (*document.Report, error) {
	return nil, nil
}

func (s *fakeStore) ListProviders(context.Context) ([]string, error) { return nil, nil }

func (s *fakeStore) ListLibraryVoices(context.Context, string) ([]casting.LibraryVoice, error) {
	return nil, nil
}

func (s *fakeStore) ExtractCharacters(context.Context, string) ([]casting.CharacterInfo, error) {
	return nil, nil
}

func makeSession(t *testing.T, id string) *casting.Session {
	t.Helper()
	characters := []casting.CharacterInfo{
		{Name: casting.DefaultSpeaker, LineCount: 3, TotalCharacters: 120, LongestDialogue: 60},
		{Name: "MARA", LineCount: 12, TotalCharacters: 900, LongestDialogue: 140},
		{Name: "JONAS", LineCount: 8, TotalCharacters: 480, LongestDialogue: 90},
	}
	text, err := document.Generate(characters, nil)
	if err != nil {
		t.Fatalf("generate document: %v", err)
	}
	now := time.Now().UTC()
	return &casting.Session{
		ID:           id,
		Title:        "Echoes of the Harbor",
		SourcePath:   "/tmp/echoes.json",
		DocumentText: text,
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
		Characters:   characters,
		Assignments:  document.Parse(text).Assignments,
	}
}

func newCoordinator(t *testing.T, store remote.Store, opts ...testsupport.ConfigOption) (*coordinator.Coordinator, *sessioncache.Cache) {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	cache := sessioncache.New(logging.NewNop())
	coord := coordinator.New(store, cache, cfg, logging.NewNop())
	t.Cleanup(coord.Close)
	return coord, cache
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func strPtr(v string) *string { return &v }

func TestSubmitPublishesSpeculativeThenCanonical(t *testing.T) {
	ctx := testContext(t)
	store := newFakeStore(makeSession(t, "sess-1"))
	coord, cache := newCoordinator(t, store)

	warmed, err := coord.Session(ctx, "sess-1")
	if err != nil {
		t.Fatalf("Session: %v", err)
	}
	if warmed.Version != 1 {
		t.Fatalf("expected canonical v1, got %d", warmed.Version)
	}
	warmGen := coord.Generation("sess-1")

	gate := store.gateCommits()
	ticket, err := coord.Submit(ctx, "sess-1", coordinator.PatchAssignment("MARA", casting.AssignmentPatch{
		Provider: strPtr("openai"),
		VoiceID:  strPtr("stern_narrator"),
	}))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	speculative, ok := cache.Get("sess-1")
	if !ok {
		t.Fatal("expected published speculative snapshot")
	}
	if speculative.Version != 2 {
		t.Fatalf("speculative version = %d, want 2", speculative.Version)
	}
	if got := speculative.Assignments["MARA"].Provider; got != "openai" {
		t.Fatalf("speculative MARA provider = %q, want openai", got)
	}
	if coord.Generation("sess-1") <= warmGen {
		t.Fatal("generation should advance on speculative publish")
	}

	select {
	case <-store.commitStarted:
	case <-ctx.Done():
		t.Fatal("commit never dispatched")
	}
	if state := coord.State("sess-1"); state != coordinator.StateCommitting {
		t.Fatalf("state = %q, want %q", state, coordinator.StateCommitting)
	}

	close(gate)
	canonical, err := ticket.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if canonical.Version != 2 {
		t.Fatalf("canonical version = %d, want 2", canonical.Version)
	}

	waitForState(t, coord, "sess-1", coordinator.StateIdle)
	cached, _ := cache.Get("sess-1")
	if cached.Version != 2 {
		t.Fatalf("cached version = %d, want 2", cached.Version)
	}
	if floor, _ := cache.Floor("sess-1"); floor != 2 {
		t.Fatalf("floor = %d, want 2", floor)
	}
	records := store.recordedCommits()
	if len(records) != 1 || records[0].expected != 1 {
		t.Fatalf("unexpected commit records: %+v", records)
	}
}

func TestConflictRollsBackToCanonicalSnapshot(t *testing.T) {
	ctx := testContext(t)
	base := makeSession(t, "sess-1")
	store := newFakeStore(base)
	coord, cache := newCoordinator(t, store)

	before, err := coord.Session(ctx, "sess-1")
	if err != nil {
		t.Fatalf("Session: %v", err)
	}

	store.failNext(remote.NewConflict("sess-1", 1, 4))
	ticket, err := coord.Submit(ctx, "sess-1", coordinator.ReplaceDocument("MARA: {provider: openai}\n"))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	_, err = ticket.Wait(ctx)
	if !errors.Is(err, remote.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	var conflict *remote.ConflictError
	if !errors.As(err, &conflict) || conflict.CurrentVersion != 4 {
		t.Fatalf("expected current version 4 on conflict, got %+v", conflict)
	}

	waitForState(t, coord, "sess-1", coordinator.StateRolledBack)
	restored, ok := cache.Get("sess-1")
	if !ok {
		t.Fatal("expected snapshot after rollback")
	}
	if restored.Version != before.Version || restored.DocumentText != before.DocumentText {
		t.Fatalf("rollback should restore the canonical snapshot: got v%d", restored.Version)
	}
	if coord.PendingCount("sess-1") != 0 {
		t.Fatal("rolled-back mutation should leave the queue")
	}
}

func TestQueuedMutationsCommitInOrderAndRebase(t *testing.T) {
	ctx := testContext(t)
	store := newFakeStore(makeSession(t, "sess-1"))
	coord, cache := newCoordinator(t, store)

	if _, err := coord.Session(ctx, "sess-1"); err != nil {
		t.Fatalf("Session: %v", err)
	}

	gate := store.gateCommits()
	first, err := coord.Submit(ctx, "sess-1", coordinator.PatchAssignment("MARA", casting.AssignmentPatch{
		Provider: strPtr("openai"),
		VoiceID:  strPtr("stern_narrator"),
	}))
	if err != nil {
		t.Fatalf("Submit first: %v", err)
	}
	<-store.commitStarted

	second, err := coord.Submit(ctx, "sess-1", coordinator.PatchAssignment("JONAS", casting.AssignmentPatch{
		Provider: strPtr("elevenlabs"),
		VoiceID:  strPtr("bright_lead"),
	}))
	if err != nil {
		t.Fatalf("Submit second: %v", err)
	}

	if depth := coord.PendingCount("sess-1"); depth != 2 {
		t.Fatalf("pending count = %d, want 2", depth)
	}
	speculative, _ := cache.Get("sess-1")
	if speculative.Version != 3 {
		t.Fatalf("speculative chain version = %d, want 3", speculative.Version)
	}
	if speculative.Assignments["MARA"].Provider != "openai" || speculative.Assignments["JONAS"].Provider != "elevenlabs" {
		t.Fatal("speculative chain should carry both pending edits")
	}

	close(gate)
	if _, err := first.Wait(ctx); err != nil {
		t.Fatalf("first commit: %v", err)
	}
	final, err := second.Wait(ctx)
	if err != nil {
		t.Fatalf("second commit: %v", err)
	}
	if final.Version != 3 {
		t.Fatalf("final version = %d, want 3", final.Version)
	}
	if final.Assignments["MARA"].VoiceID != "stern_narrator" || final.Assignments["JONAS"].VoiceID != "bright_lead" {
		t.Fatal("store should hold both committed assignments")
	}

	records := store.recordedCommits()
	if len(records) != 2 {
		t.Fatalf("expected 2 commits, got %+v", records)
	}
	if records[0].expected != 1 || records[1].expected != 2 {
		t.Fatalf("commits should chain expected versions 1 then 2, got %+v", records)
	}
	waitForState(t, coord, "sess-1", coordinator.StateIdle)
}

func TestHeadFailureRebasesQueueOntoCanonical(t *testing.T) {
	ctx := testContext(t)
	store := newFakeStore(makeSession(t, "sess-1"))
	coord, cache := newCoordinator(t, store)

	if _, err := coord.Session(ctx, "sess-1"); err != nil {
		t.Fatalf("Session: %v", err)
	}

	gate := store.gateCommits()
	store.failNext(remote.NewValidation("provider openai has no voice ghost"))

	first, err := coord.Submit(ctx, "sess-1", coordinator.PatchAssignment("MARA", casting.AssignmentPatch{
		Provider: strPtr("openai"),
		VoiceID:  strPtr("ghost"),
	}))
	if err != nil {
		t.Fatalf("Submit first: %v", err)
	}
	<-store.commitStarted
	second, err := coord.Submit(ctx, "sess-1", coordinator.PatchAssignment("JONAS", casting.AssignmentPatch{
		CastingNotes: strPtr("dry wit, slight rasp"),
	}))
	if err != nil {
		t.Fatalf("Submit second: %v", err)
	}

	close(gate)
	if _, err := first.Wait(ctx); !errors.Is(err, remote.ErrValidation) {
		t.Fatalf("expected validation failure for head, got %v", err)
	}
	final, err := second.Wait(ctx)
	if err != nil {
		t.Fatalf("queued mutation should still commit: %v", err)
	}
	if final.Version != 2 {
		t.Fatalf("final version = %d, want 2", final.Version)
	}
	if final.Assignments["MARA"].Provider != "" {
		t.Fatal("failed head's edit must not reach the store")
	}
	if final.Assignments["JONAS"].CastingNotes != "dry wit, slight rasp" {
		t.Fatal("queued edit lost after head failure")
	}

	records := store.recordedCommits()
	if len(records) != 2 || records[0].expected != 1 || records[1].expected != 1 {
		t.Fatalf("queued commit should reuse the unchanged base version, got %+v", records)
	}

	waitForState(t, coord, "sess-1", coordinator.StateIdle)
	cached, _ := cache.Get("sess-1")
	if cached.Version != 2 || cached.Assignments["MARA"].Provider != "" {
		t.Fatalf("cache should hold the canonical result, got v%d", cached.Version)
	}
}

func TestRefreshDiscardsResultWhenGenerationMoves(t *testing.T) {
	ctx := testContext(t)
	store := newFakeStore(makeSession(t, "sess-1"))
	coord, cache := newCoordinator(t, store)

	if _, err := coord.Session(ctx, "sess-1"); err != nil {
		t.Fatalf("Session: %v", err)
	}

	fetchGate := store.gateFetches()
	type refreshResult struct {
		session *casting.Session
		err     error
	}
	results := make(chan refreshResult, 1)
	go func() {
		session, err := coord.Refresh(ctx, "sess-1")
		results <- refreshResult{session, err}
	}()
	<-store.fetchStarted

	ticket, err := coord.Submit(ctx, "sess-1", coordinator.PatchAssignment("MARA", casting.AssignmentPatch{
		Provider: strPtr("openai"),
		VoiceID:  strPtr("stern_narrator"),
	}))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if _, err := ticket.Wait(ctx); err != nil {
		t.Fatalf("commit: %v", err)
	}

	close(fetchGate)
	result := <-results
	if result.err != nil {
		t.Fatalf("Refresh: %v", result.err)
	}
	if result.session.Version != 2 {
		t.Fatalf("stale refresh should yield the fresher local state, got v%d", result.session.Version)
	}
	cached, _ := cache.Get("sess-1")
	if cached.Version != 2 || cached.Assignments["MARA"].Provider != "openai" {
		t.Fatalf("stale fetch must not clobber newer state, cache has v%d", cached.Version)
	}
}

func TestRefreshRebasesPendingOntoFetchedBase(t *testing.T) {
	ctx := testContext(t)
	store := newFakeStore(makeSession(t, "sess-1"))
	coord, cache := newCoordinator(t, store)

	if _, err := coord.Session(ctx, "sess-1"); err != nil {
		t.Fatalf("Session: %v", err)
	}

	gate := store.gateCommits()
	ticket, err := coord.Submit(ctx, "sess-1", coordinator.PatchAssignment("MARA", casting.AssignmentPatch{
		Provider: strPtr("openai"),
		VoiceID:  strPtr("stern_narrator"),
	}))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	<-store.commitStarted

	// Another writer advances the session while our commit is parked.
	store.mutateStored("sess-1", func(session *casting.Session) {
		text, applyErr := document.ApplyAssignment(session.DocumentText, "JONAS", casting.Assignment{
			Provider: "elevenlabs",
			VoiceID:  "bright_lead",
		})
		if applyErr != nil {
			t.Errorf("seed foreign edit: %v", applyErr)
			return
		}
		session.DocumentText = text
		session.Assignments = document.Parse(text).Assignments
		session.Version = 5
	})

	refreshed, err := coord.Refresh(ctx, "sess-1")
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if refreshed.Version != 6 {
		t.Fatalf("pending edit should rebase onto fetched v5, got v%d", refreshed.Version)
	}
	if refreshed.Assignments["JONAS"].Provider != "elevenlabs" || refreshed.Assignments["MARA"].Provider != "openai" {
		t.Fatal("rebased snapshot should carry the foreign edit and the pending one")
	}
	if floor, _ := cache.Floor("sess-1"); floor != 5 {
		t.Fatalf("accepted refresh should advance the floor to 5, got %d", floor)
	}

	// The parked commit still carries expected version 1 and must lose.
	close(gate)
	_, err = ticket.Wait(ctx)
	var conflict *remote.ConflictError
	if !errors.As(err, &conflict) || conflict.CurrentVersion != 5 {
		t.Fatalf("expected conflict against v5, got %v", err)
	}

	waitForState(t, coord, "sess-1", coordinator.StateRolledBack)
	restored, _ := cache.Get("sess-1")
	if restored.Version != 5 || restored.Assignments["MARA"].Provider != "" {
		t.Fatalf("rollback should land on the refreshed canonical v5, got v%d", restored.Version)
	}
}

func TestSubmitRejectsMutationsThatCannotApply(t *testing.T) {
	ctx := testContext(t)
	store := newFakeStore(makeSession(t, "sess-1"))
	coord, cache := newCoordinator(t, store)

	if _, err := coord.Session(ctx, "sess-1"); err != nil {
		t.Fatalf("Session: %v", err)
	}

	if _, err := coord.Submit(ctx, "sess-1", coordinator.PatchAssignment("MARA", casting.AssignmentPatch{})); err == nil {
		t.Fatal("empty patch should be rejected at submit")
	}
	if _, err := coord.Submit(ctx, "sess-1", coordinator.PatchAssignment("", casting.AssignmentPatch{Provider: strPtr("openai")})); err == nil {
		t.Fatal("blank speaker should be rejected at submit")
	}

	if depth := coord.PendingCount("sess-1"); depth != 0 {
		t.Fatalf("rejected submissions must not queue, depth = %d", depth)
	}
	if state := coord.State("sess-1"); state != coordinator.StateIdle {
		t.Fatalf("state = %q, want idle", state)
	}
	cached, _ := cache.Get("sess-1")
	if cached.Version != 1 {
		t.Fatalf("cache should stay canonical, got v%d", cached.Version)
	}
	if len(store.recordedCommits()) != 0 {
		t.Fatal("no commit should reach the store")
	}
}

func TestSubmitEnforcesQueueLimit(t *testing.T) {
	ctx := testContext(t)
	store := newFakeStore(makeSession(t, "sess-1"))
	coord, _ := newCoordinator(t, store, testsupport.WithQueueLimit(1))

	if _, err := coord.Session(ctx, "sess-1"); err != nil {
		t.Fatalf("Session: %v", err)
	}

	gate := store.gateCommits()
	defer close(gate)
	if _, err := coord.Submit(ctx, "sess-1", coordinator.ClearVoice("MARA")); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	<-store.commitStarted

	_, err := coord.Submit(ctx, "sess-1", coordinator.ClearVoice("JONAS"))
	if !errors.Is(err, coordinator.ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
}

func TestDeleteSettlesPendingAndForgetsSession(t *testing.T) {
	ctx := testContext(t)
	store := newFakeStore(makeSession(t, "sess-1"))
	coord, cache := newCoordinator(t, store)

	if _, err := coord.Session(ctx, "sess-1"); err != nil {
		t.Fatalf("Session: %v", err)
	}

	gate := store.gateCommits()
	defer close(gate)
	first, err := coord.Submit(ctx, "sess-1", coordinator.PatchAssignment("MARA", casting.AssignmentPatch{
		Provider: strPtr("openai"),
		VoiceID:  strPtr("stern_narrator"),
	}))
	if err != nil {
		t.Fatalf("Submit first: %v", err)
	}
	<-store.commitStarted
	second, err := coord.Submit(ctx, "sess-1", coordinator.ClearVoice("JONAS"))
	if err != nil {
		t.Fatalf("Submit second: %v", err)
	}

	if err := coord.Delete(ctx, "sess-1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if _, err := first.Wait(ctx); err == nil {
		t.Fatal("in-flight commit should fail after delete")
	}
	if _, err := second.Wait(ctx); !errors.Is(err, remote.ErrNotFound) {
		t.Fatalf("queued mutation should settle as not found, got %v", err)
	}

	if _, ok := cache.Get("sess-1"); ok {
		t.Fatal("cache should forget deleted sessions")
	}
	if _, err := coord.Session(ctx, "sess-1"); !errors.Is(err, remote.ErrNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}

func TestSessionFetchesLazilyAndCaches(t *testing.T) {
	ctx := testContext(t)
	store := newFakeStore(makeSession(t, "sess-1"))
	coord, _ := newCoordinator(t, store)

	first, err := coord.Session(ctx, "sess-1")
	if err != nil {
		t.Fatalf("Session: %v", err)
	}
	second, err := coord.Session(ctx, "sess-1")
	if err != nil {
		t.Fatalf("Session: %v", err)
	}
	if first.Version != second.Version {
		t.Fatal("cached snapshot should match the fetched one")
	}
	if store.fetchCount() != 1 {
		t.Fatalf("expected a single fetch, got %d", store.fetchCount())
	}

	// Mutating the returned snapshot must not leak into the cache.
	second.Assignments["MARA"] = casting.Assignment{Provider: "scribble"}
	third, _ := coord.Session(ctx, "sess-1")
	if third.Assignments["MARA"].Provider == "scribble" {
		t.Fatal("returned snapshots must be isolated copies")
	}
}

func TestCloseSettlesInFlightAndQueued(t *testing.T) {
	ctx := testContext(t)
	store := newFakeStore(makeSession(t, "sess-1"))

	cache := sessioncache.New(logging.NewNop())
	coord := coordinator.New(store, cache, testsupport.NewConfig(t), logging.NewNop())

	if _, err := coord.Session(ctx, "sess-1"); err != nil {
		t.Fatalf("Session: %v", err)
	}

	store.gateCommits()
	first, err := coord.Submit(ctx, "sess-1", coordinator.ClearVoice("MARA"))
	if err != nil {
		t.Fatalf("Submit first: %v", err)
	}
	<-store.commitStarted
	second, err := coord.Submit(ctx, "sess-1", coordinator.ClearVoice("JONAS"))
	if err != nil {
		t.Fatalf("Submit second: %v", err)
	}

	coord.Close()

	if _, err := first.Wait(ctx); err == nil {
		t.Fatal("in-flight commit should fail when the coordinator closes")
	}
	if _, err := second.Wait(ctx); !errors.Is(err, coordinator.ErrClosed) {
		t.Fatalf("queued mutation should settle with ErrClosed, got %v", err)
	}
	if _, err := coord.Submit(ctx, "sess-1", coordinator.ClearVoice("MARA")); !errors.Is(err, coordinator.ErrClosed) {
		t.Fatalf("submit after close should fail with ErrClosed, got %v", err)
	}
}

func TestCancelAbortsInFlightCommit(t *testing.T) {
	ctx := testContext(t)
	store := newFakeStore(makeSession(t, "sess-1"))
	coord, cache := newCoordinator(t, store)

	before, err := coord.Session(ctx, "sess-1")
	if err != nil {
		t.Fatalf("Session: %v", err)
	}

	gate := store.gateCommits()
	defer close(gate)
	ticket, err := coord.Submit(ctx, "sess-1", coordinator.ClearVoice("MARA"))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	<-store.commitStarted

	coord.Cancel("sess-1")
	if _, err := ticket.Wait(ctx); !errors.Is(err, remote.ErrNetwork) {
		t.Fatalf("aborted commit should surface as a transport failure, got %v", err)
	}

	waitForState(t, coord, "sess-1", coordinator.StateRolledBack)
	restored, _ := cache.Get("sess-1")
	if restored.Version != before.Version || restored.DocumentText != before.DocumentText {
		t.Fatal("cancel should roll the cache back to the canonical snapshot")
	}
}

// waitForState polls briefly; rollback publication happens on the runner
// goroutine after the ticket resolves.
func waitForState(t *testing.T, coord *coordinator.Coordinator, sessionID string, want coordinator.State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		if got := coord.State(sessionID); got == want {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("state = %q, want %q", coord.State(sessionID), want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
