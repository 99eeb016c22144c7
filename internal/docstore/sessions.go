package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"tableread/internal/casting"
	"tableread/internal/document"
	"tableread/internal/remote"
	"tableread/internal/screenplay"
)

const sessionColumns = "id, title, source_path, document_text, version, characters_json, created_at, updated_at"

// CreateSession extracts characters from the screenplay at sourcePath and
// stores a fresh session at version 1 with a generated casting document.
// An empty title falls back to one derived from the filename.
func (s *Store) CreateSession(ctx context.Context, title, sourcePath string) (*casting.Session, error) {
	sourcePath = strings.TrimSpace(sourcePath)
	if sourcePath == "" {
		return nil, remote.NewValidation("source_path is required")
	}

	characters, err := screenplay.ExtractFromFile(sourcePath)
	if err != nil {
		return nil, classifyScreenplayError(err)
	}

	title = strings.TrimSpace(title)
	if title == "" {
		title = screenplay.TitleFromPath(sourcePath)
	}

	text, err := document.Generate(characters, nil)
	if err != nil {
		return nil, fmt.Errorf("generate document: %w", err)
	}

	charactersJSON, err := json.Marshal(characters)
	if err != nil {
		return nil, fmt.Errorf("marshal characters: %w", err)
	}

	id := uuid.NewString()
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	_, err = s.execWithRetry(
		ctx,
		`INSERT INTO sessions (id, title, source_path, document_text, version, characters_json, created_at, updated_at)
         VALUES (?, ?, ?, ?, 1, ?, ?, ?)`,
		id,
		title,
		nullableString(sourcePath),
		text,
		string(charactersJSON),
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}

	return s.GetSession(ctx, id)
}

// GetSession fetches a session by identifier. The assignment projection is
// derived by parsing the stored document; parse damage degrades the
// projection instead of failing the read.
func (s *Store) GetSession(ctx context.Context, id string) (*casting.Session, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	session, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session %s: %w", id, remote.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return session, nil
}

// ListSessions returns summaries of every stored session, newest first.
func (s *Store) ListSessions(ctx context.Context) ([]casting.SessionSummary, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT `+sessionColumns+` FROM sessions ORDER BY updated_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var summaries []casting.SessionSummary
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, casting.SessionSummary{
			ID:         session.ID,
			Title:      session.Title,
			SourcePath: session.SourcePath,
			Version:    session.Version,
			UpdatedAt:  session.UpdatedAt,
			Progress:   session.Progress(),
		})
	}
	return summaries, rows.Err()
}

// DeleteSession removes a session outright.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	res, err := s.execWithRetry(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("session %s: %w", id, remote.ErrNotFound)
	}
	return nil
}

// CommitDocument replaces the document text if expectedVersion matches the
// stored version. The text is stored verbatim even when it does not parse;
// the projection degrades instead of the commit failing.
func (s *Store) CommitDocument(ctx context.Context, id, text string, expectedVersion int64) (*casting.Session, error) {
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(
		ctx,
		`UPDATE sessions SET document_text = ?, version = version + 1, updated_at = ?
         WHERE id = ? AND version = ?`,
		text,
		timestamp,
		id,
		expectedVersion,
	)
	if err != nil {
		return nil, fmt.Errorf("commit document: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return nil, s.swapFailure(ctx, id, expectedVersion)
	}
	return s.GetSession(ctx, id)
}

// CommitAssignment folds a partial update for one speaker into the stored
// document. The stored document must parse; a document broken by a previous
// raw commit rejects metadata edits until it is repaired.
func (s *Store) CommitAssignment(ctx context.Context, id, speaker string, patch casting.AssignmentPatch, expectedVersion int64) (*casting.Session, error) {
	speaker = strings.TrimSpace(speaker)
	if speaker == "" {
		return nil, remote.NewValidation("speaker is required")
	}
	if patch.Empty() {
		return nil, remote.NewValidation("no assignment fields to update")
	}
	return s.rewriteAssignment(ctx, id, speaker, expectedVersion, func(base casting.Assignment) casting.Assignment {
		return patch.Apply(base)
	})
}

// ClearAssignment removes the voice selection for one speaker while
// preserving casting notes, role, and line statistics.
func (s *Store) ClearAssignment(ctx context.Context, id, speaker string, expectedVersion int64) (*casting.Session, error) {
	speaker = strings.TrimSpace(speaker)
	if speaker == "" {
		return nil, remote.NewValidation("speaker is required")
	}
	return s.rewriteAssignment(ctx, id, speaker, expectedVersion, func(base casting.Assignment) casting.Assignment {
		return base.ClearVoice()
	})
}

// rewriteAssignment is the shared read-modify-write path for assignment
// commits. It runs in a transaction so the version check and the rewrite
// see the same row.
func (s *Store) rewriteAssignment(ctx context.Context, id, speaker string, expectedVersion int64, mutate func(casting.Assignment) casting.Assignment) (*casting.Session, error) {
	ctx = ensureContext(ctx)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin commit tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx,
		`SELECT document_text, version, characters_json FROM sessions WHERE id = ?`, id)
	var (
		text           string
		version        int64
		charactersJSON sql.NullString
	)
	if err := row.Scan(&text, &version, &charactersJSON); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("session %s: %w", id, remote.ErrNotFound)
		}
		return nil, fmt.Errorf("read session: %w", err)
	}
	if version != expectedVersion {
		return nil, remote.NewConflict(id, expectedVersion, version)
	}

	projection := document.Parse(text)
	base := projection.Assignments[speaker]
	next := mutate(base)
	if next.LineCount == 0 {
		fillCharacterStats(&next, speaker, charactersJSON)
	}

	updated, err := document.ApplyAssignment(text, speaker, next)
	if err != nil {
		return nil, remote.NewValidation(fmt.Sprintf("document rejects edits: %v", err))
	}

	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := tx.ExecContext(ctx,
		`UPDATE sessions SET document_text = ?, version = version + 1, updated_at = ?
         WHERE id = ? AND version = ?`,
		updated, timestamp, id, expectedVersion)
	if err != nil {
		return nil, fmt.Errorf("commit assignment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return nil, remote.NewConflict(id, expectedVersion, version)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return s.GetSession(ctx, id)
}

// swapFailure explains a failed compare-and-swap: the session is either gone
// or at a different version.
func (s *Store) swapFailure(ctx context.Context, id string, expected int64) error {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT version FROM sessions WHERE id = ?`, id)
	var current int64
	if err := row.Scan(&current); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("session %s: %w", id, remote.ErrNotFound)
		}
		return fmt.Errorf("read current version: %w", err)
	}
	return remote.NewConflict(id, expected, current)
}

func fillCharacterStats(assignment *casting.Assignment, speaker string, charactersJSON sql.NullString) {
	if !charactersJSON.Valid {
		return
	}
	var characters []casting.CharacterInfo
	if err := json.Unmarshal([]byte(charactersJSON.String), &characters); err != nil {
		return
	}
	for _, character := range characters {
		if character.Name == speaker {
			assignment.LineCount = character.LineCount
			assignment.TotalCharacters = character.TotalCharacters
			assignment.LongestDialogue = character.LongestDialogue
			return
		}
	}
}

func scanSession(scanner interface{ Scan(dest ...any) error }) (*casting.Session, error) {
	var (
		id             string
		title          string
		sourcePath     sql.NullString
		text           string
		version        int64
		charactersJSON sql.NullString
		createdRaw     string
		updatedRaw     string
	)
	if err := scanner.Scan(&id, &title, &sourcePath, &text, &version, &charactersJSON, &createdRaw, &updatedRaw); err != nil {
		return nil, err
	}

	session := &casting.Session{
		ID:           id,
		Title:        title,
		SourcePath:   sourcePath.String,
		DocumentText: text,
		Version:      version,
	}
	if charactersJSON.Valid && charactersJSON.String != "" {
		if err := json.Unmarshal([]byte(charactersJSON.String), &session.Characters); err != nil {
			return nil, fmt.Errorf("unmarshal characters: %w", err)
		}
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		session.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		session.UpdatedAt = updated
	}

	session.Assignments = document.Parse(text).Assignments
	return session, nil
}

// classifyScreenplayError maps screenplay loading failures onto the store
// error taxonomy: malformed JSON is a parse failure, everything else is the
// caller's bad input.
func classifyScreenplayError(err error) error {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return fmt.Errorf("%w: %v", remote.ErrParse, err)
	}
	return remote.NewValidation(err.Error())
}
