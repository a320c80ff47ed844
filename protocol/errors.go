package protocol

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks malformed commands/messages and oversized
	// payloads. Never retried: the input is defective.
	ErrValidation = errors.New("protocol: validation failed")

	// ErrProtocol marks encode/decode failures and version mismatches.
	// Never retried.
	ErrProtocol = errors.New("protocol: protocol error")

	// ErrConnection marks endpoint setup or send-level I/O failures.
	// Retryable.
	ErrConnection = errors.New("protocol: connection failed")

	// ErrTimeout marks the absence of a matching reply within the
	// deadline. Retryable.
	ErrTimeout = errors.New("protocol: timed out")

	// ErrClosed marks operations on a closed session. Terminal.
	ErrClosed = errors.New("protocol: session closed")
)

// RemoteError is a well-formed reply reporting status >= 400. The module
// gave a definitive answer, so it short-circuits any retry budget.
type RemoteError struct {
	Status   int
	Message  string
	ModuleID string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("protocol: remote error from %q: status=%d %s", e.ModuleID, e.Status, e.Message)
}
