package remote

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"tableread/internal/logging"
)

// Watch opens the commit feed and streams events until ctx is done or the
// connection drops. The returned channel is closed on exit; callers that
// need the feed back simply call Watch again.
func (c *Client) Watch(ctx context.Context) (<-chan Event, error) {
	target := *c.base
	switch target.Scheme {
	case "https":
		target.Scheme = "wss"
	default:
		target.Scheme = "ws"
	}
	target.Path = strings.TrimRight(target.Path, "/") + "/api/events"

	header := http.Header{}
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, target.String(), header)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		return nil, fmt.Errorf("%w: open event feed: %v", ErrNetwork, err)
	}

	events := make(chan Event, 16)
	readerDone := make(chan struct{})

	go func() {
		select {
		case <-ctx.Done():
		case <-readerDone:
		}
		_ = conn.Close()
	}()

	go func() {
		defer close(events)
		defer close(readerDone)
		for {
			var payload EventPayload
			if err := conn.ReadJSON(&payload); err != nil {
				if ctx.Err() == nil {
					c.logger.Warn("event feed closed", logging.Error(err))
				}
				return
			}
			select {
			case events <- EventFrom(payload):
			case <-ctx.Done():
				return
			}
		}
	}()

	return events, nil
}
