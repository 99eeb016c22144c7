// Package config loads, normalizes, and validates tableread configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours TABLEREAD_* environment
// overrides. The Config type centralizes every knob the server and CLI need,
// from the session database directory to client retry budgets.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
