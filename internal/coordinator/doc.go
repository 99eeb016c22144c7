// Package coordinator runs the optimistic commit pipeline between local
// edits and the remote store.
//
// Each submitted mutation is applied speculatively to the cached session so
// the caller sees the result immediately, then committed with the version
// the canonical snapshot carried. One commit per session is in flight at a
// time; further mutations queue in FIFO order on top of the speculative
// chain. When a commit succeeds the store's snapshot becomes the new
// canonical base and any queued mutations are replayed onto it. When a
// commit fails, for any reason, the speculative result is rolled back: the
// cache returns to the last canonical snapshot with queued mutations, if
// any, rebased onto it. The store stays the sole arbiter; the coordinator
// never retries a commit on its own.
//
// Every published snapshot bumps a per-session generation counter.
// Refreshes record the generation before fetching and discard their result
// if it moved, so a slow refetch can never clobber newer state.
package coordinator
