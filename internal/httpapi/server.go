package httpapi

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"tableread/internal/config"
	"tableread/internal/docstore"
	"tableread/internal/logging"
	"tableread/internal/voicelib"
)

var ginModeOnce sync.Once

// Server wires the session store and the voice library into the HTTP API.
type Server struct {
	cfg      *config.Config
	store    *docstore.Store
	library  *voicelib.Library
	logger   *slog.Logger
	events   *eventHub
	upgrader websocket.Upgrader
}

// NewServer builds the API server. The store and library must outlive it.
func NewServer(cfg *config.Config, store *docstore.Store, library *voicelib.Library, logger *slog.Logger) *Server {
	ginModeOnce.Do(func() {
		gin.SetMode(gin.ReleaseMode)
	})
	logger = logging.NewComponentLogger(logger, "httpapi")
	return &Server{
		cfg:     cfg,
		store:   store,
		library: library,
		logger:  logger,
		events:  newEventHub(logger),
		upgrader: websocket.Upgrader{
			// The bearer token is the access control; the bind address is
			// loopback by default, so browser origins carry no signal here.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Router assembles the route tree with logging, recovery, and token auth.
func (s *Server) Router() http.Handler {
	engine := gin.New()
	engine.Use(s.requestLogger(), gin.Recovery())

	engine.GET("/healthz", s.handleHealthz)

	api := engine.Group("/api")
	if token := s.cfg.Paths.APIToken; token != "" {
		api.Use(requireBearerToken(token))
	}

	api.POST("/sessions", s.handleCreateSession)
	api.GET("/sessions", s.handleListSessions)
	api.GET("/sessions/:id", s.handleGetSession)
	api.DELETE("/sessions/:id", s.handleDeleteSession)
	api.PUT("/sessions/:id/document", s.handleCommitDocument)
	api.PATCH("/sessions/:id/assignments/:speaker", s.handleCommitAssignment)
	api.POST("/sessions/:id/assignments/:speaker/clear-voice", s.handleClearAssignment)
	api.POST("/sessions/:id/validate", s.handleValidate)

	api.GET("/providers", s.handleListProviders)
	api.GET("/providers/:provider/voices", s.handleListVoices)
	api.POST("/characters/extract", s.handleExtractCharacters)

	api.GET("/events", s.handleEvents)

	return engine
}

// Close disconnects every event feed subscriber.
func (s *Server) Close() {
	s.events.Close()
}
