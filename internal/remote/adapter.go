package remote

import (
	"context"

	"tableread/internal/casting"
	"tableread/internal/document"
)

// NewSession describes a session creation request. SourcePath must point at
// a screenplay JSON file reachable by the store.
type NewSession struct {
	Title      string
	SourcePath string
}

// Store is the canonical arbiter of session state. Implementations decide
// commit acceptance; callers supply the version they believe is current and
// treat the returned snapshot as the new truth.
//
// Commit methods return the full post-commit session so callers can replace
// optimistic state wholesale instead of patching it up locally.
type Store interface {
	// CreateSession extracts characters from the screenplay at
	// req.SourcePath and stores a fresh session with a generated document.
	CreateSession(ctx context.Context, req NewSession) (*casting.Session, error)

	// FetchSession returns the canonical snapshot for sessionID.
	FetchSession(ctx context.Context, sessionID string) (*casting.Session, error)

	// ListSessions returns summaries of every stored session, newest first.
	ListSessions(ctx context.Context) ([]casting.SessionSummary, error)

	// DeleteSession removes a session outright.
	DeleteSession(ctx context.Context, sessionID string) error

	// CommitDocument replaces the raw document text. The text is stored as
	// given even when it does not parse; the assignment projection degrades
	// instead of the commit failing.
	CommitDocument(ctx context.Context, sessionID, documentText string, expectedVersion int64) (*casting.Session, error)

	// CommitAssignmentMetadata folds a partial assignment update for one
	// speaker into the stored document. Requires a parseable document.
	CommitAssignmentMetadata(ctx context.Context, sessionID, speaker string, patch casting.AssignmentPatch, expectedVersion int64) (*casting.Session, error)

	// ClearAssignment removes the voice selection for one speaker while
	// preserving casting notes, role, and line statistics.
	ClearAssignment(ctx context.Context, sessionID, speaker string, expectedVersion int64) (*casting.Session, error)

	// ValidateDocument checks documentText (or the stored text when empty)
	// against the session's characters and the voice catalogs.
	ValidateDocument(ctx context.Context, sessionID, documentText string) (*document.Report, error)

	// ListProviders returns the providers with a configured voice catalog.
	ListProviders(ctx context.Context) ([]string, error)

	// ListLibraryVoices returns the complete catalog for one provider. The
	// result is finite; any transport paging is the implementation's concern.
	ListLibraryVoices(ctx context.Context, provider string) ([]casting.LibraryVoice, error)

	// ExtractCharacters parses the screenplay at sourcePath and returns its
	// speakers with line statistics, sorted for display.
	ExtractCharacters(ctx context.Context, sourcePath string) ([]casting.CharacterInfo, error)
}
