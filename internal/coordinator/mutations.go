package coordinator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"tableread/internal/casting"
	"tableread/internal/document"
	"tableread/internal/remote"
)

// Mutation is one local edit that can be applied speculatively and later
// committed to the store. apply either folds the edit into the snapshot
// completely or returns an error and leaves it untouched, so a failed apply
// never corrupts the speculative chain.
type Mutation interface {
	// Kind names the mutation for logs and errors.
	Kind() string

	apply(session *casting.Session) error
	commit(ctx context.Context, store remote.Store, sessionID string, expectedVersion int64) (*casting.Session, error)
}

// ReplaceDocument builds a mutation that swaps the entire document text.
// Text that does not parse is still accepted; the assignment view degrades
// the same way the store's does.
func ReplaceDocument(text string) Mutation {
	return replaceDocument{text: text}
}

type replaceDocument struct {
	text string
}

func (m replaceDocument) Kind() string { return "replace_document" }

func (m replaceDocument) apply(session *casting.Session) error {
	session.DocumentText = m.text
	session.Assignments = document.Parse(m.text).Assignments
	return nil
}

func (m replaceDocument) commit(ctx context.Context, store remote.Store, sessionID string, expectedVersion int64) (*casting.Session, error) {
	return store.CommitDocument(ctx, sessionID, m.text, expectedVersion)
}

// PatchAssignment builds a mutation that folds a partial assignment update
// for one speaker into the document.
func PatchAssignment(speaker string, patch casting.AssignmentPatch) Mutation {
	return patchAssignment{speaker: strings.TrimSpace(speaker), patch: patch}
}

type patchAssignment struct {
	speaker string
	patch   casting.AssignmentPatch
}

func (m patchAssignment) Kind() string { return "patch_assignment" }

func (m patchAssignment) apply(session *casting.Session) error {
	if m.speaker == "" {
		return errors.New("speaker name is empty")
	}
	if m.patch.Empty() {
		return errors.New("no assignment fields to update")
	}
	base, _ := session.Assignment(m.speaker)
	return foldAssignment(session, m.speaker, m.patch.Apply(base))
}

func (m patchAssignment) commit(ctx context.Context, store remote.Store, sessionID string, expectedVersion int64) (*casting.Session, error) {
	return store.CommitAssignmentMetadata(ctx, sessionID, m.speaker, m.patch, expectedVersion)
}

// ClearVoice builds a mutation that removes one speaker's voice selection
// while keeping notes, role, and line statistics.
func ClearVoice(speaker string) Mutation {
	return clearVoice{speaker: strings.TrimSpace(speaker)}
}

type clearVoice struct {
	speaker string
}

func (m clearVoice) Kind() string { return "clear_voice" }

func (m clearVoice) apply(session *casting.Session) error {
	if m.speaker == "" {
		return errors.New("speaker name is empty")
	}
	base, _ := session.Assignment(m.speaker)
	return foldAssignment(session, m.speaker, base.ClearVoice())
}

func (m clearVoice) commit(ctx context.Context, store remote.Store, sessionID string, expectedVersion int64) (*casting.Session, error) {
	return store.ClearAssignment(ctx, sessionID, m.speaker, expectedVersion)
}

// foldAssignment rewrites one speaker's entry in the snapshot's document and
// refreshes the assignment view, mirroring what the store does on commit.
// Zero line statistics are filled from the extracted characters so generated
// comments stay accurate.
func foldAssignment(session *casting.Session, speaker string, next casting.Assignment) error {
	if next.LineCount == 0 {
		for _, character := range session.Characters {
			if character.Name != speaker {
				continue
			}
			next.LineCount = character.LineCount
			next.TotalCharacters = character.TotalCharacters
			next.LongestDialogue = character.LongestDialogue
			break
		}
	}

	text, err := document.ApplyAssignment(session.DocumentText, speaker, next)
	if err != nil {
		return fmt.Errorf("document rejects edits: %w", err)
	}
	session.DocumentText = text
	session.Assignments = document.Parse(text).Assignments
	return nil
}
