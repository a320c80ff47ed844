package protocol

import (
	"bytes"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/qubi-project/qubi-go/internal/testutil/testlog"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	testlog.Start(t)
	seq := int32(42)
	in := Message{
		Version:   Version,
		Timestamp: 1700000000000,
		Sequence:  &seq,
		Commands: []Command{
			{
				ModuleID:   "servo1",
				ModuleType: ModuleActuator,
				Action:     "set_servo",
				Params: map[string]any{
					"angle":  float64(90),
					"speed":  float64(100),
					"easing": "linear",
					"meta":   map[string]any{"x": float64(1)},
				},
			},
			{
				ModuleID:   "face1",
				ModuleType: ModuleDisplay,
				Action:     "clear_display",
				Params:     map[string]any{},
			},
		},
	}
	data, err := EncodeMessage(in)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	out, err := DecodeMessage(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(in, out) {
		t.Fatalf("round trip mismatch:\n in=%+v\nout=%+v", in, out)
	}
}

func TestEncodeMessageOversizedFailsBeforeIO(t *testing.T) {
	testlog.Start(t)
	params := map[string]any{"blob": strings.Repeat("x", MaxPacketSize)}
	msg := NewMessage([]Command{{
		ModuleID:   "sensor1",
		ModuleType: ModuleSensor,
		Action:     "set_blob",
		Params:     params,
	}}, nil)
	if _, err := EncodeMessage(msg); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestDecodeMessageMalformedJSON(t *testing.T) {
	testlog.Start(t)
	if _, err := DecodeMessage([]byte("{not json")); !errors.Is(err, ErrProtocol) {
		t.Fatalf("expected ErrProtocol, got %v", err)
	}
}

func TestDecodeMessageVersionMismatch(t *testing.T) {
	testlog.Start(t)
	msg := NewMessage([]Command{{
		ModuleID:   "servo1",
		ModuleType: ModuleActuator,
		Action:     "stop",
		Params:     map[string]any{},
	}}, nil)
	msg.Version = "2.0"
	data, err := EncodeMessage(msg)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := DecodeMessage(data); !errors.Is(err, ErrProtocol) {
		t.Fatalf("expected ErrProtocol, got %v", err)
	}
}

func TestDecodeMessageMissingFields(t *testing.T) {
	testlog.Start(t)
	cases := map[string]string{
		"version":   `{"timestamp":1700000000000,"commands":[]}`,
		"timestamp": `{"version":"1.0","commands":[]}`,
		"commands":  `{"version":"1.0","timestamp":1700000000000}`,
	}
	for field, raw := range cases {
		if _, err := DecodeMessage([]byte(raw)); !errors.Is(err, ErrValidation) {
			t.Fatalf("missing %s: expected ErrValidation, got %v", field, err)
		}
	}
}

func TestValidateMessageTagsOffendingCommand(t *testing.T) {
	testlog.Start(t)
	msg := NewMessage([]Command{
		{ModuleID: "servo1", ModuleType: ModuleActuator, Action: "stop", Params: map[string]any{}},
		{ModuleID: "servo2", ModuleType: "engine", Action: "stop", Params: map[string]any{}},
	}, nil)
	err := ValidateMessage(msg)
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if !strings.Contains(err.Error(), "commands[1]") {
		t.Fatalf("expected offending index in error, got %q", err.Error())
	}
}

func TestValidateCommandStructure(t *testing.T) {
	testlog.Start(t)
	valid := Command{ModuleID: "m1", ModuleType: ModuleCustom, Action: "ping", Params: map[string]any{}}
	if err := ValidateCommand(valid); err != nil {
		t.Fatalf("valid command rejected: %v", err)
	}
	bad := []Command{
		{ModuleType: ModuleCustom, Action: "ping", Params: map[string]any{}},
		{ModuleID: "m1", ModuleType: "robot", Action: "ping", Params: map[string]any{}},
		{ModuleID: "m1", ModuleType: ModuleCustom, Params: map[string]any{}},
		{ModuleID: "m1", ModuleType: ModuleCustom, Action: "ping"},
	}
	for i, cmd := range bad {
		if err := ValidateCommand(cmd); !errors.Is(err, ErrValidation) {
			t.Fatalf("case %d: expected ErrValidation, got %v", i, err)
		}
	}
}

func TestValidateMessageTooManyCommands(t *testing.T) {
	testlog.Start(t)
	cmds := make([]Command, MaxCommands+1)
	for i := range cmds {
		cmds[i] = Command{ModuleID: "m1", ModuleType: ModuleCustom, Action: "ping", Params: map[string]any{}}
	}
	if err := ValidateMessage(NewMessage(cmds, nil)); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestDecodeResponse(t *testing.T) {
	testlog.Start(t)
	raw := []byte(`{"status":200,"message":"ok","module_id":"servo1","timestamp":1700000000000,"data":{"sequence":7}}`)
	resp, err := DecodeResponse(raw)
	if err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != 200 || resp.ModuleID != "servo1" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	seq, ok := resp.Sequence()
	if !ok || seq != 7 {
		t.Fatalf("expected sequence 7, got %d ok=%v", seq, ok)
	}

	if _, err := DecodeResponse([]byte("garbage")); !errors.Is(err, ErrProtocol) {
		t.Fatalf("expected ErrProtocol, got %v", err)
	}
	if _, err := DecodeResponse([]byte(`{"status":200}`)); !errors.Is(err, ErrProtocol) {
		t.Fatalf("expected ErrProtocol on missing module_id, got %v", err)
	}
}

func TestDecodeResponseRequiresStatusAndTimestamp(t *testing.T) {
	testlog.Start(t)
	// A sequence echo alone must not pass for a reply.
	degenerate := []byte(`{"module_id":"servo1","data":{"sequence":7}}`)
	if _, err := DecodeResponse(degenerate); !errors.Is(err, ErrProtocol) {
		t.Fatalf("expected ErrProtocol on missing status, got %v", err)
	}
	noTimestamp := []byte(`{"status":200,"message":"ok","module_id":"servo1"}`)
	if _, err := DecodeResponse(noTimestamp); !errors.Is(err, ErrProtocol) {
		t.Fatalf("expected ErrProtocol on missing timestamp, got %v", err)
	}
}

func TestResponseSequenceAbsent(t *testing.T) {
	testlog.Start(t)
	resp := Response{Status: 200, ModuleID: "m1"}
	if _, ok := resp.Sequence(); ok {
		t.Fatalf("expected no sequence")
	}
	resp.Data = map[string]any{"module_type": "sensor"}
	if _, ok := resp.Sequence(); ok {
		t.Fatalf("expected no sequence")
	}
}

func TestEncodeMessageWireShape(t *testing.T) {
	testlog.Start(t)
	seq := int32(7)
	msg := NewMessage([]Command{{
		ModuleID:   "servo1",
		ModuleType: ModuleActuator,
		Action:     "set_servo",
		Params:     map[string]any{"angle": 90, "speed": 100},
	}}, &seq)
	data, err := EncodeMessage(msg)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	for _, want := range []string{`"sequence":7`, `"version":"1.0"`, `"module_id":"servo1"`, `"action":"set_servo"`} {
		if !bytes.Contains(data, []byte(want)) {
			t.Fatalf("wire bytes missing %s: %s", want, data)
		}
	}
}

func TestMessageSize(t *testing.T) {
	testlog.Start(t)
	msg := NewMessage([]Command{{
		ModuleID:   "m1",
		ModuleType: ModuleCustom,
		Action:     "ping",
		Params:     map[string]any{},
	}}, nil)
	n, err := MessageSize(msg)
	if err != nil {
		t.Fatalf("size: %v", err)
	}
	data, _ := EncodeMessage(msg)
	if n != len(data) {
		t.Fatalf("size mismatch: %d vs %d", n, len(data))
	}

	big := msg
	big.Commands = []Command{{
		ModuleID:   "m1",
		ModuleType: ModuleCustom,
		Action:     "ping",
		Params:     map[string]any{"blob": strings.Repeat("x", MaxPacketSize)},
	}}
	n, err = MessageSize(big)
	if err != nil {
		t.Fatalf("size of oversized message: %v", err)
	}
	if n <= MaxPacketSize {
		t.Fatalf("expected size past %d, got %d", MaxPacketSize, n)
	}
	if _, err := EncodeMessage(big); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation from encode, got %v", err)
	}
}
