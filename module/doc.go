// Package module owns the module-side half of the Qubi protocol.
//
// Ownership boundary:
// - UDP listener bound to one module identity
// - command dispatch to registered action handlers
// - built-in discovery replies
// - response emission with sequence echo
package module
