// Package controller owns the command-sending side of the Qubi protocol.
//
// Ownership boundary:
// - transport session (one UDP endpoint, send + correlated wait)
// - retry/backoff primitives
// - sequence allocation
// - response/error observer registry
// - broadcast discovery
//
// Command construction is the caller's concern: the controller accepts
// already-valid commands and re-checks structure only through the codec.
package controller
