package protocol

import (
	"encoding/json"
	"fmt"
)

// DecodeMessage parses and schema-checks one inbound datagram. Malformed
// JSON fails with ErrProtocol; a structurally invalid message fails with
// ErrValidation, tagging the offending command index when one command is
// at fault.
func DecodeMessage(data []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Message{}, fmt.Errorf("%w: decode message: %v", ErrProtocol, err)
	}
	if err := ValidateMessage(msg); err != nil {
		return Message{}, err
	}
	return msg, nil
}

// DecodeResponse parses a module reply. Malformed JSON and replies missing
// the required module_id, status, or timestamp fields fail with ErrProtocol.
// Status zero never appears on the wire, so it marks an absent field.
func DecodeResponse(data []byte) (Response, error) {
	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return Response{}, fmt.Errorf("%w: decode response: %v", ErrProtocol, err)
	}
	if resp.ModuleID == "" {
		return Response{}, fmt.Errorf("%w: response missing module_id", ErrProtocol)
	}
	if resp.Status == 0 {
		return Response{}, fmt.Errorf("%w: response missing status", ErrProtocol)
	}
	if resp.Timestamp == 0 {
		return Response{}, fmt.Errorf("%w: response missing timestamp", ErrProtocol)
	}
	return resp, nil
}

// ValidateMessage checks the message-level schema and every embedded
// command. Any single invalid command fails the whole message.
func ValidateMessage(msg Message) error {
	if msg.Version == "" {
		return fmt.Errorf("%w: message missing version field", ErrValidation)
	}
	if msg.Version != Version {
		return fmt.Errorf("%w: unsupported protocol version %q, expected %q",
			ErrProtocol, msg.Version, Version)
	}
	if msg.Timestamp == 0 {
		return fmt.Errorf("%w: message missing timestamp field", ErrValidation)
	}
	if msg.Commands == nil {
		return fmt.Errorf("%w: message missing commands field", ErrValidation)
	}
	if len(msg.Commands) > MaxCommands {
		return fmt.Errorf("%w: message carries %d commands, maximum is %d",
			ErrValidation, len(msg.Commands), MaxCommands)
	}
	for i, cmd := range msg.Commands {
		if err := ValidateCommand(cmd); err != nil {
			return fmt.Errorf("commands[%d]: %w", i, err)
		}
	}
	return nil
}

// ValidateCommand checks the structural invariants of one command. Action
// semantics for individual module types are the producer's responsibility.
func ValidateCommand(cmd Command) error {
	if cmd.ModuleID == "" {
		return fmt.Errorf("%w: command module_id must be a non-empty string", ErrValidation)
	}
	if !cmd.ModuleType.Valid() {
		return fmt.Errorf("%w: invalid module_type %q", ErrValidation, cmd.ModuleType)
	}
	if cmd.Action == "" {
		return fmt.Errorf("%w: command action must be a non-empty string", ErrValidation)
	}
	if cmd.Params == nil {
		return fmt.Errorf("%w: command params must be a mapping", ErrValidation)
	}
	return nil
}
