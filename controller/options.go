package controller

import (
	"time"

	"github.com/qubi-project/qubi-go/protocol"
)

// Options defines transport session reliability behavior.
type Options struct {
	// Timeout is the per-attempt reply window.
	Timeout time.Duration

	// Retries is the number of additional delivery attempts after the
	// first. Zero means a single attempt.
	Retries int

	// DisableSequenceTracking switches the sequence allocator to random
	// per-call values and makes sends fire-and-forget.
	DisableSequenceTracking bool

	Backoff BackoffConfig
}

// DefaultOptions returns the protocol defaults: 5s reply window, 3 retries,
// sequence tracking on.
func DefaultOptions() Options {
	return Options{
		Timeout: 5 * time.Second,
		Retries: 3,
		Backoff: BackoffConfig{}.WithDefaults(),
	}
}

// WithDefaults fills zero fields. Retries is left alone: zero is a valid
// budget.
func (o Options) WithDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = 5 * time.Second
	}
	if o.Retries < 0 {
		o.Retries = 0
	}
	o.Backoff = o.Backoff.WithDefaults()
	return o
}

// DiscoveryOptions defines one broadcast discovery pass.
type DiscoveryOptions struct {
	// Timeout is the whole discovery budget, split evenly across rounds.
	Timeout time.Duration

	BroadcastAddress string
	Port             int

	// Retries is the number of broadcast rounds.
	Retries int
}

// WithDefaults fills zero fields: 3s budget over 2 rounds against the
// limited broadcast address on the default port.
func (o DiscoveryOptions) WithDefaults() DiscoveryOptions {
	if o.Timeout <= 0 {
		o.Timeout = 3 * time.Second
	}
	if o.BroadcastAddress == "" {
		o.BroadcastAddress = "255.255.255.255"
	}
	if o.Port <= 0 {
		o.Port = protocol.DefaultPort
	}
	if o.Retries <= 0 {
		o.Retries = 2
	}
	return o
}
