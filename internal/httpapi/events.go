package httpapi

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"tableread/internal/logging"
	"tableread/internal/remote"
)

const (
	eventWriteTimeout = 5 * time.Second
	eventReadLimit    = 512
)

// eventHub fans commit announcements out to websocket subscribers. Slow or
// dead subscribers are dropped on the first failed write; the feed carries
// no history, so a reconnecting client just refetches what it watches.
type eventHub struct {
	logger *slog.Logger

	mu     sync.Mutex
	conns  map[*websocket.Conn]struct{}
	closed bool
}

func newEventHub(logger *slog.Logger) *eventHub {
	return &eventHub{
		logger: logger,
		conns:  make(map[*websocket.Conn]struct{}),
	}
}

func (h *eventHub) add(conn *websocket.Conn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.conns[conn] = struct{}{}
	return true
}

func (h *eventHub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.conns, conn)
	h.mu.Unlock()
	_ = conn.Close()
}

// Publish sends the event to every subscriber. Writes are serialized under
// the hub lock; the per-write deadline bounds how long one stalled peer can
// hold everyone else up.
func (h *eventHub) Publish(event remote.Event) {
	data, err := json.Marshal(remote.EventPayloadFrom(event))
	if err != nil {
		h.logger.Warn("event encode failed", logging.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.conns {
		_ = conn.SetWriteDeadline(time.Now().Add(eventWriteTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			delete(h.conns, conn)
			_ = conn.Close()
			h.logger.Debug("event subscriber dropped", logging.Error(err))
		}
	}
}

// Close disconnects every subscriber and refuses new ones.
func (h *eventHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for conn := range h.conns {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(eventWriteTimeout))
		_ = conn.Close()
		delete(h.conns, conn)
	}
}

// handleEvents upgrades the connection and keeps it subscribed until the
// peer goes away. The feed is write-only; inbound messages are discarded.
func (s *Server) handleEvents(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		s.logger.Debug("event feed upgrade failed", logging.Error(err))
		return
	}
	if !s.events.add(conn) {
		_ = conn.Close()
		return
	}

	s.logger.Debug("event subscriber connected",
		logging.String("remote_addr", c.ClientIP()))

	conn.SetReadLimit(eventReadLimit)
	for {
		if _, _, err := conn.NextReader(); err != nil {
			break
		}
	}
	s.events.remove(conn)
}
