package remote

import (
	"errors"
	"fmt"
	"strings"
)

// Classification sentinels for every failure the remote store surfaces.
// Wrap with %w so errors.Is keeps working through added context.
var (
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("version conflict")
	ErrValidation = errors.New("validation failed")
	ErrNetwork    = errors.New("network failure")
	ErrParse      = errors.New("malformed document")
)

// Wire and log tokens for the taxonomy.
const (
	KindNotFound   = "not_found"
	KindConflict   = "conflict"
	KindValidation = "validation"
	KindNetwork    = "network"
	KindParse      = "parse"
	KindInternal   = "internal"
)

// ConflictError reports a rejected compare-and-swap commit. CurrentVersion is
// the version the store actually holds; callers must refetch before retrying,
// never resubmit blindly.
type ConflictError struct {
	SessionID       string
	ExpectedVersion int64
	CurrentVersion  int64
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("version conflict on session %s: expected %d, store has %d",
		e.SessionID, e.ExpectedVersion, e.CurrentVersion)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// NewConflict builds a ConflictError carrying both sides of the failed swap.
func NewConflict(sessionID string, expected, current int64) error {
	return &ConflictError{SessionID: sessionID, ExpectedVersion: expected, CurrentVersion: current}
}

// ValidationError lists everything wrong with a rejected mutation.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	if len(e.Problems) == 0 {
		return "validation failed"
	}
	return "validation failed: " + strings.Join(e.Problems, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NewValidation builds a ValidationError from individual problems. Blank
// entries are dropped.
func NewValidation(problems ...string) error {
	kept := make([]string, 0, len(problems))
	for _, problem := range problems {
		if trimmed := strings.TrimSpace(problem); trimmed != "" {
			kept = append(kept, trimmed)
		}
	}
	return &ValidationError{Problems: kept}
}

// Kind maps an error to its taxonomy token for wire payloads and log fields.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrConflict):
		return KindConflict
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrParse):
		return KindParse
	case errors.Is(err, ErrNetwork):
		return KindNetwork
	default:
		return KindInternal
	}
}

// Retryable reports whether a read may be reissued after err. Only transient
// network failures qualify; conflicts and validation failures never do.
func Retryable(err error) bool {
	return errors.Is(err, ErrNetwork)
}
