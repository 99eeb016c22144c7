package docstore_test

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"tableread/internal/casting"
	"tableread/internal/remote"
	"tableread/internal/testsupport"
)

func TestCreateSessionGeneratesDocumentAtVersionOne(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	path := testsupport.WriteScreenplay(t, t.TempDir(), "echoes_of_the_harbor.json", nil)

	session, err := store.CreateSession(context.Background(), "", path)
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if session.ID == "" {
		t.Fatal("expected generated session id")
	}
	if session.Version != 1 {
		t.Fatalf("expected version 1, got %d", session.Version)
	}
	if session.Title != "Echoes Of The Harbor" {
		t.Fatalf("unexpected derived title: %q", session.Title)
	}
	if len(session.Characters) != 3 {
		t.Fatalf("expected default, MARA, JONAS; got %+v", session.Characters)
	}
	if session.Characters[0].Name != casting.DefaultSpeaker {
		t.Fatalf("expected default speaker first, got %q", session.Characters[0].Name)
	}
	for _, speaker := range []string{"default", "MARA", "JONAS"} {
		if !strings.Contains(session.DocumentText, speaker+":") {
			t.Fatalf("generated document missing %s entry:\n%s", speaker, session.DocumentText)
		}
	}
	progress := session.Progress()
	if progress.Assigned != 0 || progress.Total != 3 {
		t.Fatalf("unexpected initial progress: %+v", progress)
	}
}

func TestCreateSessionErrors(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	if _, err := store.CreateSession(ctx, "X", ""); !errors.Is(err, remote.ErrValidation) {
		t.Fatalf("expected validation error for empty path, got %v", err)
	}
	if _, err := store.CreateSession(ctx, "X", "/nonexistent/screenplay.json"); !errors.Is(err, remote.ErrValidation) {
		t.Fatalf("expected validation error for missing file, got %v", err)
	}

	bad := testsupport.WriteScreenplay(t, t.TempDir(), "bad.json", nil)
	// Truncate into malformed JSON.
	if err := os.WriteFile(bad, []byte("[{\"type\": \"dialogue\""), 0o644); err != nil {
		t.Fatalf("overwrite fixture: %v", err)
	}
	if _, err := store.CreateSession(ctx, "X", bad); !errors.Is(err, remote.ErrParse) {
		t.Fatalf("expected parse error for malformed JSON, got %v", err)
	}
}

func TestCommitDocumentEnforcesVersion(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	path := testsupport.WriteScreenplay(t, t.TempDir(), "play.json", nil)
	session := testsupport.NewSession(t, store, "Play", path)
	ctx := context.Background()

	const doc = "MARA:\n  provider: openai\n  voice: onyx\n"
	updated, err := store.CommitDocument(ctx, session.ID, doc, session.Version)
	if err != nil {
		t.Fatalf("CommitDocument: %v", err)
	}
	if updated.Version != session.Version+1 {
		t.Fatalf("expected version bump to %d, got %d", session.Version+1, updated.Version)
	}
	if updated.Assignments["MARA"].Provider != "openai" {
		t.Fatalf("projection missing committed assignment: %+v", updated.Assignments)
	}

	// Stale commit must be rejected with the store's current version.
	_, err = store.CommitDocument(ctx, session.ID, "MARA: {}\n", session.Version)
	var conflict *remote.ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if conflict.CurrentVersion != updated.Version || conflict.ExpectedVersion != session.Version {
		t.Fatalf("conflict versions wrong: %+v", conflict)
	}

	_, err = store.CommitDocument(ctx, "no-such-session", doc, 1)
	if !errors.Is(err, remote.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCommitDocumentStoresBrokenTextVerbatim(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	path := testsupport.WriteScreenplay(t, t.TempDir(), "play.json", nil)
	session := testsupport.NewSession(t, store, "Play", path)

	const broken = "MARA: [not\nclosed"
	updated, err := store.CommitDocument(context.Background(), session.ID, broken, session.Version)
	if err != nil {
		t.Fatalf("CommitDocument with broken text: %v", err)
	}
	if updated.DocumentText != broken {
		t.Fatalf("expected verbatim storage, got %q", updated.DocumentText)
	}
	if len(updated.Assignments) != 0 {
		t.Fatalf("expected degraded projection, got %+v", updated.Assignments)
	}
}

func TestCommitAssignmentPatchesOneSpeaker(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	path := testsupport.WriteScreenplay(t, t.TempDir(), "play.json", nil)
	session := testsupport.NewSession(t, store, "Play", path)
	ctx := context.Background()

	provider := "openai"
	voice := "stern_narrator"
	patch := casting.AssignmentPatch{Provider: &provider, VoiceID: &voice}
	updated, err := store.CommitAssignment(ctx, session.ID, "MARA", patch, session.Version)
	if err != nil {
		t.Fatalf("CommitAssignment: %v", err)
	}
	assignment := updated.Assignments["MARA"]
	if assignment.Provider != "openai" || assignment.VoiceID != "stern_narrator" {
		t.Fatalf("unexpected assignment: %+v", assignment)
	}
	if assignment.LineCount == 0 {
		t.Fatal("expected line statistics carried into the rewritten entry")
	}
	// Other speakers keep their empty entries.
	if _, ok := updated.Assignments["JONAS"]; !ok {
		t.Fatalf("JONAS entry lost: %+v", updated.Assignments)
	}
	if updated.Progress().Assigned != 1 {
		t.Fatalf("expected one cast character, got %+v", updated.Progress())
	}

	notes := "Weathered, speaks slowly"
	if updated, err = store.CommitAssignment(ctx, session.ID, "MARA", casting.AssignmentPatch{CastingNotes: &notes}, updated.Version); err != nil {
		t.Fatalf("notes patch: %v", err)
	}
	assignment = updated.Assignments["MARA"]
	if assignment.CastingNotes != notes {
		t.Fatalf("casting notes not applied: %+v", assignment)
	}
	if assignment.Provider != "openai" {
		t.Fatalf("patch clobbered provider: %+v", assignment)
	}
}

func TestCommitAssignmentValidation(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	path := testsupport.WriteScreenplay(t, t.TempDir(), "play.json", nil)
	session := testsupport.NewSession(t, store, "Play", path)
	ctx := context.Background()

	if _, err := store.CommitAssignment(ctx, session.ID, " ", casting.AssignmentPatch{}, session.Version); !errors.Is(err, remote.ErrValidation) {
		t.Fatalf("expected validation error for empty speaker, got %v", err)
	}
	if _, err := store.CommitAssignment(ctx, session.ID, "MARA", casting.AssignmentPatch{}, session.Version); !errors.Is(err, remote.ErrValidation) {
		t.Fatalf("expected validation error for empty patch, got %v", err)
	}

	// Version conflicts are detected before document work.
	provider := "openai"
	if _, err := store.CommitAssignment(ctx, session.ID, "MARA", casting.AssignmentPatch{Provider: &provider}, session.Version+5); !errors.Is(err, remote.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}

	// A document broken by a raw commit rejects metadata edits.
	if _, err := store.CommitDocument(ctx, session.ID, "MARA: [broken", session.Version); err != nil {
		t.Fatalf("CommitDocument: %v", err)
	}
	_, err := store.CommitAssignment(ctx, session.ID, "MARA", casting.AssignmentPatch{Provider: &provider}, session.Version+1)
	if !errors.Is(err, remote.ErrValidation) {
		t.Fatalf("expected validation error on broken document, got %v", err)
	}
}

func TestClearAssignmentKeepsNotes(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	path := testsupport.WriteScreenplay(t, t.TempDir(), "play.json", nil)
	session := testsupport.NewSession(t, store, "Play", path)
	ctx := context.Background()

	provider := "openai"
	voice := "stern_narrator"
	notes := "Lighthouse keeper"
	updated, err := store.CommitAssignment(ctx, session.ID, "MARA",
		casting.AssignmentPatch{Provider: &provider, VoiceID: &voice, CastingNotes: &notes}, session.Version)
	if err != nil {
		t.Fatalf("CommitAssignment: %v", err)
	}

	cleared, err := store.ClearAssignment(ctx, updated.ID, "MARA", updated.Version)
	if err != nil {
		t.Fatalf("ClearAssignment: %v", err)
	}
	assignment := cleared.Assignments["MARA"]
	if assignment.Provider != "" || assignment.VoiceID != "" {
		t.Fatalf("voice not cleared: %+v", assignment)
	}
	if assignment.CastingNotes != notes {
		t.Fatalf("casting notes lost on clear: %+v", assignment)
	}
	if assignment.LineCount == 0 {
		t.Fatalf("line statistics lost on clear: %+v", assignment)
	}
	if cleared.Progress().Assigned != 0 {
		t.Fatalf("cleared speaker still counted: %+v", cleared.Progress())
	}
}

func TestListAndDeleteSessions(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	dir := t.TempDir()
	first := testsupport.NewSession(t, store, "First", testsupport.WriteScreenplay(t, dir, "a.json", nil))
	second := testsupport.NewSession(t, store, "Second", testsupport.WriteScreenplay(t, dir, "b.json", nil))
	ctx := context.Background()

	summaries, err := store.ListSessions(ctx)
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(summaries))
	}
	for _, summary := range summaries {
		if summary.Progress.Total == 0 {
			t.Fatalf("summary missing derived progress: %+v", summary)
		}
	}

	if err := store.DeleteSession(ctx, first.ID); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}
	if err := store.DeleteSession(ctx, first.ID); !errors.Is(err, remote.ErrNotFound) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
	if _, err := store.GetSession(ctx, first.ID); !errors.Is(err, remote.ErrNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
	if _, err := store.GetSession(ctx, second.ID); err != nil {
		t.Fatalf("unrelated session affected: %v", err)
	}
}
