// Package casting defines the voice-casting domain model shared by the
// session cache, the mutation coordinator, and the remote store.
//
// A Session pairs an immutable identity with a versioned snapshot of the
// casting document: the raw YAML text, the assignment projection parsed from
// it, and the characters extracted from the source screenplay. Snapshots are
// value-like; anything that stores or publishes one clones it first so no two
// components ever share mutable state.
//
// Progress is derived, never stored: compute it from the snapshot you hold
// rather than caching it beside the session.
package casting
