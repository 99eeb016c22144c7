// Command tableread is the CLI for casting synthetic voices onto screenplay
// characters. It hosts the session server (serve) and the client commands
// that edit casting sessions through the optimistic sync pipeline.
package main
