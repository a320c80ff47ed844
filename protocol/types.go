package protocol

import "time"

const (
	// Version is the protocol version carried in every message and
	// required on decode.
	Version = "1.0"

	// DefaultPort is the UDP port Qubi modules listen on.
	DefaultPort = 8888

	// MaxPacketSize bounds the serialized message size in bytes. Oversized
	// messages are rejected before any network I/O.
	MaxPacketSize = 1024

	// MaxCommands bounds the command count per message, matching the
	// module firmware's receive buffer.
	MaxCommands = 16
)

// ModuleType identifies the hardware class of an addressable module.
type ModuleType string

const (
	ModuleActuator ModuleType = "actuator"
	ModuleDisplay  ModuleType = "display"
	ModuleMobile   ModuleType = "mobile"
	ModuleSensor   ModuleType = "sensor"
	ModuleCustom   ModuleType = "custom"
)

// Valid reports whether t is one of the known module types.
func (t ModuleType) Valid() bool {
	switch t {
	case ModuleActuator, ModuleDisplay, ModuleMobile, ModuleSensor, ModuleCustom:
		return true
	}
	return false
}

// Command is one instruction addressed to a module. Commands are produced
// and semantically validated by the caller; the codec re-checks structure
// only.
type Command struct {
	ModuleID   string         `json:"module_id"`
	ModuleType ModuleType     `json:"module_type"`
	Action     string         `json:"action"`
	Params     map[string]any `json:"params"`
}

// Message is one complete wire message carrying a batch of commands.
// Sequence is nil when the sender does not track correlation.
type Message struct {
	Version   string    `json:"version"`
	Timestamp int64     `json:"timestamp"`
	Sequence  *int32    `json:"sequence,omitempty"`
	Commands  []Command `json:"commands"`
}

// Response is a module's reply to a message. Status follows HTTP
// conventions: >= 400 is an application-level failure.
type Response struct {
	Status    int            `json:"status"`
	Message   string         `json:"message"`
	ModuleID  string         `json:"module_id"`
	Timestamp int64          `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}

// Sequence extracts the correlation sequence a module echoed back in the
// response data, if present.
func (r Response) Sequence() (int32, bool) {
	if r.Data == nil {
		return 0, false
	}
	switch v := r.Data["sequence"].(type) {
	case float64:
		return int32(v), true
	case int32:
		return v, true
	case int:
		return int32(v), true
	case int64:
		return int32(v), true
	}
	return 0, false
}

// Module describes one discovered peer. Identity for deduplication is
// (ID, IP, Port).
type Module struct {
	ID       string     `json:"id"`
	Type     ModuleType `json:"type"`
	IP       string     `json:"ip"`
	Port     int        `json:"port"`
	LastSeen time.Time  `json:"last_seen"`
}

// Timestamp returns the current time in milliseconds since the epoch, the
// unit used for Message.Timestamp on the wire.
func Timestamp() int64 {
	return time.Now().UnixMilli()
}

// NewMessage builds a message around commands with the current timestamp.
// A nil sequence means no correlation is requested.
func NewMessage(commands []Command, sequence *int32) Message {
	return Message{
		Version:   Version,
		Timestamp: Timestamp(),
		Sequence:  sequence,
		Commands:  commands,
	}
}
