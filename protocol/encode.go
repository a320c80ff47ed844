package protocol

import (
	"encoding/json"
	"fmt"
)

// EncodeMessage serializes msg to its JSON wire form. It fails with
// ErrValidation when the encoded payload exceeds MaxPacketSize; the check
// happens here so an oversized batch never reaches a socket.
func EncodeMessage(msg Message) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("%w: encode message: %v", ErrProtocol, err)
	}
	if len(data) > MaxPacketSize {
		return nil, fmt.Errorf("%w: message size %d exceeds maximum %d bytes",
			ErrValidation, len(data), MaxPacketSize)
	}
	return data, nil
}

// EncodeResponse serializes a module reply, enforcing the same packet bound
// as outbound messages.
func EncodeResponse(resp Response) ([]byte, error) {
	data, err := json.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("%w: encode response: %v", ErrProtocol, err)
	}
	if len(data) > MaxPacketSize {
		return nil, fmt.Errorf("%w: response size %d exceeds maximum %d bytes",
			ErrValidation, len(data), MaxPacketSize)
	}
	return data, nil
}

// MessageSize returns the serialized size of msg in bytes. It reports the
// size even past MaxPacketSize; EncodeMessage enforces the bound.
func MessageSize(msg Message) (int, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return 0, fmt.Errorf("%w: encode message: %v", ErrProtocol, err)
	}
	return len(data), nil
}
