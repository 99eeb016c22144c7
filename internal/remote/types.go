package remote

import (
	"time"

	"tableread/internal/casting"
	"tableread/internal/document"
)

// ProgressPayload mirrors casting.Progress on the wire.
type ProgressPayload struct {
	Assigned int `json:"assigned"`
	Total    int `json:"total"`
	Percent  int `json:"percent"`
}

// CharacterPayload mirrors casting.CharacterInfo on the wire.
type CharacterPayload struct {
	Name            string `json:"name"`
	LineCount       int    `json:"line_count"`
	TotalCharacters int    `json:"total_characters"`
	LongestDialogue int    `json:"longest_dialogue"`
}

// AssignmentPayload mirrors casting.Assignment on the wire.
type AssignmentPayload struct {
	Provider        string         `json:"provider,omitempty"`
	VoiceID         string         `json:"voice_id,omitempty"`
	Config          map[string]any `json:"config,omitempty"`
	CastingNotes    string         `json:"casting_notes,omitempty"`
	Role            string         `json:"role,omitempty"`
	AdditionalNotes []string       `json:"additional_notes,omitempty"`
	LineCount       int            `json:"line_count,omitempty"`
	TotalCharacters int            `json:"total_characters,omitempty"`
	LongestDialogue int            `json:"longest_dialogue,omitempty"`
}

// SessionPayload is the full wire form of a session snapshot.
type SessionPayload struct {
	ID           string                       `json:"id"`
	Title        string                       `json:"title"`
	SourcePath   string                       `json:"source_path"`
	DocumentText string                       `json:"document_text"`
	Version      int64                        `json:"version"`
	CreatedAt    string                       `json:"created_at"`
	UpdatedAt    string                       `json:"updated_at"`
	Characters   []CharacterPayload           `json:"characters"`
	Assignments  map[string]AssignmentPayload `json:"assignments"`
	Progress     ProgressPayload              `json:"progress"`
}

// SessionSummaryPayload is the listing projection of a session.
type SessionSummaryPayload struct {
	ID         string          `json:"id"`
	Title      string          `json:"title"`
	SourcePath string          `json:"source_path"`
	Version    int64           `json:"version"`
	UpdatedAt  string          `json:"updated_at"`
	Progress   ProgressPayload `json:"progress"`
}

// LibraryVoicePayload mirrors casting.LibraryVoice on the wire.
type LibraryVoicePayload struct {
	Provider    string         `json:"provider"`
	ID          string         `json:"id"`
	DisplayName string         `json:"display_name,omitempty"`
	Description string         `json:"description,omitempty"`
	Tags        []string       `json:"tags,omitempty"`
	Config      map[string]any `json:"config,omitempty"`
}

// CreateSessionRequest starts a session from a screenplay file.
type CreateSessionRequest struct {
	Title      string `json:"title"`
	SourcePath string `json:"source_path"`
}

// SessionListResponse carries session summaries, newest first.
type SessionListResponse struct {
	Sessions []SessionSummaryPayload `json:"sessions"`
}

// CommitDocumentRequest replaces a session's document text.
type CommitDocumentRequest struct {
	DocumentText    string `json:"document_text"`
	ExpectedVersion int64  `json:"expected_version"`
}

// CommitAssignmentRequest patches one speaker's assignment. Null fields
// leave the current value untouched; Config and AdditionalNotes replace
// wholesale when present, so an empty object clears the config.
type CommitAssignmentRequest struct {
	ExpectedVersion int64          `json:"expected_version"`
	Provider        *string        `json:"provider"`
	VoiceID         *string        `json:"voice_id"`
	Config          map[string]any `json:"config"`
	CastingNotes    *string        `json:"casting_notes"`
	Role            *string        `json:"role"`
	AdditionalNotes []string       `json:"additional_notes"`
}

// Patch converts the request into the domain patch type.
func (r CommitAssignmentRequest) Patch() casting.AssignmentPatch {
	return casting.AssignmentPatch{
		Provider:        r.Provider,
		VoiceID:         r.VoiceID,
		Config:          r.Config,
		CastingNotes:    r.CastingNotes,
		Role:            r.Role,
		AdditionalNotes: r.AdditionalNotes,
	}
}

// NewCommitAssignmentRequest builds the wire form of a domain patch.
func NewCommitAssignmentRequest(patch casting.AssignmentPatch, expectedVersion int64) CommitAssignmentRequest {
	return CommitAssignmentRequest{
		ExpectedVersion: expectedVersion,
		Provider:        patch.Provider,
		VoiceID:         patch.VoiceID,
		Config:          patch.Config,
		CastingNotes:    patch.CastingNotes,
		Role:            patch.Role,
		AdditionalNotes: patch.AdditionalNotes,
	}
}

// ClearAssignmentRequest removes one speaker's voice selection.
type ClearAssignmentRequest struct {
	ExpectedVersion int64 `json:"expected_version"`
}

// ValidateRequest checks document text against a session. Empty text means
// validate the stored document.
type ValidateRequest struct {
	DocumentText string `json:"document_text,omitempty"`
}

// ValidationReportPayload mirrors document.Report on the wire.
type ValidationReportPayload struct {
	Valid             bool     `json:"valid"`
	Problems          []string `json:"problems,omitempty"`
	MissingSpeakers   []string `json:"missing_speakers,omitempty"`
	ExtraSpeakers     []string `json:"extra_speakers,omitempty"`
	DuplicateSpeakers []string `json:"duplicate_speakers,omitempty"`
	UnknownVoices     []string `json:"unknown_voices,omitempty"`
	Summary           string   `json:"summary"`
}

// ProvidersResponse lists providers with a configured voice catalog.
type ProvidersResponse struct {
	Providers []string `json:"providers"`
}

// VoicesResponse is one page of a provider's catalog.
type VoicesResponse struct {
	Provider string                `json:"provider"`
	Voices   []LibraryVoicePayload `json:"voices"`
	Page     int                   `json:"page"`
	PageSize int                   `json:"page_size"`
	Total    int                   `json:"total"`
}

// ExtractRequest asks the store to extract characters from a screenplay.
type ExtractRequest struct {
	SourcePath string `json:"source_path"`
}

// ExtractResponse carries the extracted characters, sorted for display.
type ExtractResponse struct {
	Characters []CharacterPayload `json:"characters"`
}

// ErrorPayload is the uniform error body for every non-2xx response.
type ErrorPayload struct {
	Kind           string   `json:"kind"`
	Message        string   `json:"message"`
	CurrentVersion int64    `json:"current_version,omitempty"`
	Problems       []string `json:"problems,omitempty"`
}

// Event kinds published on the commit feed.
const (
	EventCommit  = "commit"
	EventDeleted = "deleted"
)

// EventPayload announces a canonical change to one session.
type EventPayload struct {
	Kind      string `json:"kind"`
	SessionID string `json:"session_id"`
	Version   int64  `json:"version"`
	UpdatedAt string `json:"updated_at"`
}

// Event is the decoded form of EventPayload.
type Event struct {
	Kind      string
	SessionID string
	Version   int64
	UpdatedAt time.Time
}

// SessionPayloadFrom converts a domain session to its wire form. Progress is
// derived on the way out; it is never stored.
func SessionPayloadFrom(session *casting.Session) SessionPayload {
	payload := SessionPayload{
		ID:           session.ID,
		Title:        session.Title,
		SourcePath:   session.SourcePath,
		DocumentText: session.DocumentText,
		Version:      session.Version,
		CreatedAt:    session.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:    session.UpdatedAt.UTC().Format(time.RFC3339Nano),
		Progress:     ProgressPayloadFrom(session.Progress()),
	}
	for _, character := range session.Characters {
		payload.Characters = append(payload.Characters, CharacterPayload(character))
	}
	if len(session.Assignments) > 0 {
		payload.Assignments = make(map[string]AssignmentPayload, len(session.Assignments))
		for speaker, assignment := range session.Assignments {
			payload.Assignments[speaker] = AssignmentPayloadFrom(assignment)
		}
	}
	return payload
}

// Session converts the wire form back into a domain session.
func (p SessionPayload) Session() *casting.Session {
	session := &casting.Session{
		ID:           p.ID,
		Title:        p.Title,
		SourcePath:   p.SourcePath,
		DocumentText: p.DocumentText,
		Version:      p.Version,
		CreatedAt:    parseWireTime(p.CreatedAt),
		UpdatedAt:    parseWireTime(p.UpdatedAt),
	}
	for _, character := range p.Characters {
		session.Characters = append(session.Characters, casting.CharacterInfo(character))
	}
	if len(p.Assignments) > 0 {
		session.Assignments = make(map[string]casting.Assignment, len(p.Assignments))
		for speaker, assignment := range p.Assignments {
			session.Assignments[speaker] = assignment.Assignment()
		}
	}
	return session
}

// AssignmentPayloadFrom converts a domain assignment to its wire form.
func AssignmentPayloadFrom(assignment casting.Assignment) AssignmentPayload {
	return AssignmentPayload{
		Provider:        assignment.Provider,
		VoiceID:         assignment.VoiceID,
		Config:          assignment.Config,
		CastingNotes:    assignment.CastingNotes,
		Role:            assignment.Role,
		AdditionalNotes: assignment.AdditionalNotes,
		LineCount:       assignment.LineCount,
		TotalCharacters: assignment.TotalCharacters,
		LongestDialogue: assignment.LongestDialogue,
	}
}

// Assignment converts the wire form back into the domain type.
func (p AssignmentPayload) Assignment() casting.Assignment {
	return casting.Assignment{
		Provider:        p.Provider,
		VoiceID:         p.VoiceID,
		Config:          p.Config,
		CastingNotes:    p.CastingNotes,
		Role:            p.Role,
		AdditionalNotes: p.AdditionalNotes,
		LineCount:       p.LineCount,
		TotalCharacters: p.TotalCharacters,
		LongestDialogue: p.LongestDialogue,
	}
}

// ProgressPayloadFrom converts derived progress to its wire form.
func ProgressPayloadFrom(progress casting.Progress) ProgressPayload {
	return ProgressPayload{Assigned: progress.Assigned, Total: progress.Total, Percent: progress.Percent}
}

// SummaryPayloadFrom converts a listing row to its wire form.
func SummaryPayloadFrom(summary casting.SessionSummary) SessionSummaryPayload {
	return SessionSummaryPayload{
		ID:         summary.ID,
		Title:      summary.Title,
		SourcePath: summary.SourcePath,
		Version:    summary.Version,
		UpdatedAt:  summary.UpdatedAt.UTC().Format(time.RFC3339Nano),
		Progress:   ProgressPayloadFrom(summary.Progress),
	}
}

// Summary converts the wire form back into the domain type.
func (p SessionSummaryPayload) Summary() casting.SessionSummary {
	return casting.SessionSummary{
		ID:         p.ID,
		Title:      p.Title,
		SourcePath: p.SourcePath,
		Version:    p.Version,
		UpdatedAt:  parseWireTime(p.UpdatedAt),
		Progress: casting.Progress{
			Assigned: p.Progress.Assigned,
			Total:    p.Progress.Total,
			Percent:  p.Progress.Percent,
		},
	}
}

// VoicePayloadFrom converts a catalog entry to its wire form.
func VoicePayloadFrom(voice casting.LibraryVoice) LibraryVoicePayload {
	return LibraryVoicePayload{
		Provider:    voice.Provider,
		ID:          voice.ID,
		DisplayName: voice.DisplayName,
		Description: voice.Description,
		Tags:        voice.Tags,
		Config:      voice.Config,
	}
}

// Voice converts the wire form back into the domain type.
func (p LibraryVoicePayload) Voice() casting.LibraryVoice {
	return casting.LibraryVoice{
		Provider:    p.Provider,
		ID:          p.ID,
		DisplayName: p.DisplayName,
		Description: p.Description,
		Tags:        p.Tags,
		Config:      p.Config,
	}
}

// ReportPayloadFrom converts a validation report to its wire form.
func ReportPayloadFrom(report *document.Report) ValidationReportPayload {
	return ValidationReportPayload{
		Valid:             report.Valid,
		Problems:          report.Problems,
		MissingSpeakers:   report.MissingSpeakers,
		ExtraSpeakers:     report.ExtraSpeakers,
		DuplicateSpeakers: report.DuplicateSpeakers,
		UnknownVoices:     report.UnknownVoices,
		Summary:           report.Summary,
	}
}

// Report converts the wire form back into the domain type.
func (p ValidationReportPayload) Report() *document.Report {
	return &document.Report{
		Valid:             p.Valid,
		Problems:          p.Problems,
		MissingSpeakers:   p.MissingSpeakers,
		ExtraSpeakers:     p.ExtraSpeakers,
		DuplicateSpeakers: p.DuplicateSpeakers,
		UnknownVoices:     p.UnknownVoices,
		Summary:           p.Summary,
	}
}

// EventFrom decodes a wire event.
func EventFrom(payload EventPayload) Event {
	return Event{
		Kind:      payload.Kind,
		SessionID: payload.SessionID,
		Version:   payload.Version,
		UpdatedAt: parseWireTime(payload.UpdatedAt),
	}
}

// EventPayloadFrom encodes an event for the wire.
func EventPayloadFrom(event Event) EventPayload {
	return EventPayload{
		Kind:      event.Kind,
		SessionID: event.SessionID,
		Version:   event.Version,
		UpdatedAt: event.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

// parseWireTime is forgiving: a missing or malformed timestamp becomes the
// zero time rather than failing the whole payload.
func parseWireTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	parsed, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return parsed
}
