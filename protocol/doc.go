// Package protocol owns the Qubi wire contract and parsing primitives.
//
// Ownership boundary:
// - message/command/response/module wire shapes
// - JSON encode/decode with packet size enforcement
// - schema validation entry points
// - protocol error taxonomy
package protocol
