package httpapi

import (
	"errors"
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"

	"tableread/internal/casting"
	"tableread/internal/document"
	"tableread/internal/logging"
	"tableread/internal/remote"
	"tableread/internal/screenplay"
	"tableread/internal/voicelib"
)

func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleCreateSession(c *gin.Context) {
	var req remote.CreateSessionRequest
	if !s.bindJSON(c, &req) {
		return
	}

	session, err := s.store.CreateSession(c.Request.Context(), req.Title, req.SourcePath)
	if err != nil {
		s.writeError(c, err)
		return
	}

	s.logger.Info("session created",
		logging.String(logging.FieldSessionID, session.ID),
		logging.String("title", session.Title),
		logging.Int("total_speakers", len(session.Characters)))
	respondSession(c, http.StatusCreated, session)
}

func (s *Server) handleListSessions(c *gin.Context) {
	summaries, err := s.store.ListSessions(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}

	payload := remote.SessionListResponse{Sessions: make([]remote.SessionSummaryPayload, 0, len(summaries))}
	for _, summary := range summaries {
		payload.Sessions = append(payload.Sessions, remote.SummaryPayloadFrom(summary))
	}
	c.JSON(http.StatusOK, payload)
}

func (s *Server) handleGetSession(c *gin.Context) {
	session, err := s.store.GetSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	respondSession(c, http.StatusOK, session)
}

func (s *Server) handleDeleteSession(c *gin.Context) {
	// Read first so the delete event can carry the final version.
	session, err := s.store.GetSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	if err := s.store.DeleteSession(c.Request.Context(), session.ID); err != nil {
		s.writeError(c, err)
		return
	}

	s.events.Publish(remote.Event{
		Kind:      remote.EventDeleted,
		SessionID: session.ID,
		Version:   session.Version,
		UpdatedAt: session.UpdatedAt,
	})
	s.logger.Info("session deleted", logging.String(logging.FieldSessionID, session.ID))
	c.Status(http.StatusNoContent)
}

func (s *Server) handleCommitDocument(c *gin.Context) {
	var req remote.CommitDocumentRequest
	if !s.bindJSON(c, &req) {
		return
	}

	session, err := s.store.CommitDocument(c.Request.Context(), c.Param("id"), req.DocumentText, req.ExpectedVersion)
	if err != nil {
		s.writeError(c, err)
		return
	}
	s.announceCommit(session, "replace_document")
	respondSession(c, http.StatusOK, session)
}

func (s *Server) handleCommitAssignment(c *gin.Context) {
	var req remote.CommitAssignmentRequest
	if !s.bindJSON(c, &req) {
		return
	}

	session, err := s.store.CommitAssignment(c.Request.Context(), c.Param("id"), c.Param("speaker"), req.Patch(), req.ExpectedVersion)
	if err != nil {
		s.writeError(c, err)
		return
	}
	s.announceCommit(session, "patch_assignment")
	respondSession(c, http.StatusOK, session)
}

func (s *Server) handleClearAssignment(c *gin.Context) {
	var req remote.ClearAssignmentRequest
	if !s.bindJSON(c, &req) {
		return
	}

	session, err := s.store.ClearAssignment(c.Request.Context(), c.Param("id"), c.Param("speaker"), req.ExpectedVersion)
	if err != nil {
		s.writeError(c, err)
		return
	}
	s.announceCommit(session, "clear_voice")
	respondSession(c, http.StatusOK, session)
}

func (s *Server) handleValidate(c *gin.Context) {
	var req remote.ValidateRequest
	if !s.bindJSON(c, &req) {
		return
	}

	session, err := s.store.GetSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}

	text := req.DocumentText
	if text == "" {
		text = session.DocumentText
	}

	report := document.Validate(text, session.Characters)
	if err := s.appendVoiceFindings(report, text); err != nil {
		s.writeError(c, err)
		return
	}

	s.logger.Debug("document validated",
		logging.String(logging.FieldSessionID, session.ID),
		logging.Bool("valid", report.Valid),
		logging.Int("problems", len(report.Issues())))
	c.JSON(http.StatusOK, remote.ReportPayloadFrom(report))
}

// appendVoiceFindings checks every voice selection in text against the
// library catalogs. A selection whose provider directory is missing counts
// as unknown, same as a missing voice id.
func (s *Server) appendVoiceFindings(report *document.Report, text string) error {
	projection := document.Parse(text)
	for speaker, assignment := range projection.Assignments {
		if assignment.Provider == "" || assignment.VoiceID == "" {
			continue
		}
		known, err := s.library.HasVoice(assignment.Provider, assignment.VoiceID)
		if err != nil {
			if errors.Is(err, voicelib.ErrProviderNotFound) {
				known = false
			} else {
				return err
			}
		}
		if !known {
			report.UnknownVoices = append(report.UnknownVoices,
				speaker+": "+assignment.Provider+"/"+assignment.VoiceID)
		}
	}
	sort.Strings(report.UnknownVoices)
	report.Finalize()
	return nil
}

func (s *Server) handleExtractCharacters(c *gin.Context) {
	var req remote.ExtractRequest
	if !s.bindJSON(c, &req) {
		return
	}
	if req.SourcePath == "" {
		s.writeError(c, remote.NewValidation("source_path is required"))
		return
	}

	characters, err := screenplay.ExtractFromFile(req.SourcePath)
	if err != nil {
		s.writeError(c, classifyExtractError(err))
		return
	}

	payload := remote.ExtractResponse{Characters: make([]remote.CharacterPayload, 0, len(characters))}
	for _, character := range characters {
		payload.Characters = append(payload.Characters, remote.CharacterPayload(character))
	}
	c.JSON(http.StatusOK, payload)
}

func (s *Server) announceCommit(session *casting.Session, kind string) {
	s.events.Publish(remote.Event{
		Kind:      remote.EventCommit,
		SessionID: session.ID,
		Version:   session.Version,
		UpdatedAt: session.UpdatedAt,
	})
	s.logger.Info("commit accepted",
		logging.String(logging.FieldSessionID, session.ID),
		logging.String("kind", kind),
		logging.Int64(logging.FieldVersion, session.Version))
}
