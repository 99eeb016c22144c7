package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"tableread/internal/casting"
	"tableread/internal/logging"
	"tableread/internal/remote"
)

// writeError renders err as the uniform ErrorPayload with a status matching
// its taxonomy kind. The kind travels in the body so clients rebuild the
// exact failure class instead of inferring it from the status code.
func (s *Server) writeError(c *gin.Context, err error) {
	payload := remote.ErrorPayload{
		Kind:    remote.Kind(err),
		Message: err.Error(),
	}

	var conflict *remote.ConflictError
	if errors.As(err, &conflict) {
		payload.CurrentVersion = conflict.CurrentVersion
	}
	var validation *remote.ValidationError
	if errors.As(err, &validation) {
		payload.Problems = validation.Problems
	}

	status := statusForKind(payload.Kind)
	if status >= http.StatusInternalServerError {
		logging.ErrorWithContext(s.logger, "request handler failed", "api_internal_error",
			logging.String("route", c.FullPath()),
			logging.Error(err))
	}
	c.AbortWithStatusJSON(status, payload)
}

func statusForKind(kind string) int {
	switch kind {
	case remote.KindNotFound:
		return http.StatusNotFound
	case remote.KindConflict:
		return http.StatusConflict
	case remote.KindValidation:
		return http.StatusUnprocessableEntity
	case remote.KindParse:
		return http.StatusBadRequest
	case remote.KindNetwork:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// bindJSON decodes the request body, mapping malformed JSON onto the
// validation kind so clients get a classified failure.
func (s *Server) bindJSON(c *gin.Context, out any) bool {
	if err := c.ShouldBindJSON(out); err != nil {
		s.writeError(c, remote.NewValidation("invalid request body: "+err.Error()))
		return false
	}
	return true
}

func respondSession(c *gin.Context, status int, session *casting.Session) {
	c.JSON(status, remote.SessionPayloadFrom(session))
}

// classifyExtractError mirrors the store's screenplay error taxonomy for the
// extraction endpoint, which reads files without touching the database.
func classifyExtractError(err error) error {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return fmt.Errorf("%w: %v", remote.ErrParse, err)
	}
	return remote.NewValidation(err.Error())
}
