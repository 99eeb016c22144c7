// Package docstore persists casting sessions in SQLite and arbitrates
// versioned commits.
//
// The document text is the source of truth for voice assignments: commits
// store it verbatim and reads derive the assignment projection by parsing.
// Every commit is a compare-and-swap on the session version; a mismatch
// yields a conflict carrying the version the store actually holds, and the
// caller must refetch before trying again.
package docstore
