// Package remote defines the contract between the session core and the
// canonical store, plus the HTTP/websocket client that speaks it.
//
// Store is the arbiter of truth: every commit carries the version the caller
// believes is current, and the store either accepts it (version moves up by
// exactly one) or rejects it with a classified error. The error taxonomy in
// errors.go is the whole vocabulary callers may branch on; match with
// errors.Is against the exported sentinels rather than inspecting messages.
//
// The wire types in types.go are shared by the client here and the server in
// internal/httpapi so the two sides cannot drift apart.
package remote
