package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"tableread/internal/remote"
	"tableread/internal/voicelib"
)

const (
	defaultVoicePageSize = 200
	maxVoicePageSize     = 1000
)

func (s *Server) handleListProviders(c *gin.Context) {
	providers, err := s.library.Providers()
	if err != nil {
		s.writeError(c, err)
		return
	}
	if providers == nil {
		providers = []string{}
	}
	c.JSON(http.StatusOK, remote.ProvidersResponse{Providers: providers})
}

// handleListVoices serves one page of a provider's catalog. The catalog is
// finite and already sorted by voice id, so paging is a plain slice window.
func (s *Server) handleListVoices(c *gin.Context) {
	provider := c.Param("provider")
	voices, err := s.library.Voices(provider)
	if err != nil {
		if errors.Is(err, voicelib.ErrProviderNotFound) {
			err = fmt.Errorf("provider %s: %w", provider, remote.ErrNotFound)
		}
		s.writeError(c, err)
		return
	}

	page := queryInt(c, "page", 1)
	if page < 1 {
		page = 1
	}
	pageSize := queryInt(c, "page_size", defaultVoicePageSize)
	if pageSize < 1 {
		pageSize = defaultVoicePageSize
	}
	if pageSize > maxVoicePageSize {
		pageSize = maxVoicePageSize
	}

	start := (page - 1) * pageSize
	end := start + pageSize
	if start > len(voices) {
		start = len(voices)
	}
	if end > len(voices) {
		end = len(voices)
	}

	payload := remote.VoicesResponse{
		Provider: provider,
		Voices:   make([]remote.LibraryVoicePayload, 0, end-start),
		Page:     page,
		PageSize: pageSize,
		Total:    len(voices),
	}
	for _, voice := range voices[start:end] {
		payload.Voices = append(payload.Voices, remote.VoicePayloadFrom(voice))
	}
	c.JSON(http.StatusOK, payload)
}

func queryInt(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
