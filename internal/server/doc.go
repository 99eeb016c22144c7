// Package server runs the tableread HTTP server process: single-instance
// locking, pid file management, log retention, and graceful shutdown around
// the API handler.
package server
