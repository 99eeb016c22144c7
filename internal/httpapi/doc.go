// Package httpapi serves the casting session API over HTTP.
//
// The server owns the canonical session store: every commit lands here, is
// checked against the expected version, and is answered with the full
// post-commit snapshot. Non-2xx responses always carry an ErrorPayload with
// the failure's taxonomy kind so clients can classify without sniffing
// status codes. Accepted commits and deletes are also announced on the
// websocket event feed at /api/events.
package httpapi
