// Package document implements the casting document dialect: YAML keyed by
// speaker, with line statistics, casting notes, and role carried in the
// comment block above each entry.
//
// Parse is best-effort by contract. Broken structure lands in
// Projection.Problems while every healthy entry still makes it into the
// projection, so a half-finished manual edit never blanks the session view.
// Generate and ApplyAssignment are the write side; they normalize formatting
// but never invent or drop casting data.
package document
