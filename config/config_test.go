package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/qubi-project/qubi-go/internal/testutil/testlog"
	"github.com/qubi-project/qubi-go/protocol"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "qubi.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadControllerAppliesDefaults(t *testing.T) {
	testlog.Start(t)
	path := writeConfig(t, `host = "192.168.1.50"`)
	cfg, err := LoadController(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != protocol.DefaultPort {
		t.Fatalf("expected default port, got %d", cfg.Port)
	}
	if cfg.TimeoutMS != 5000 || cfg.Retries != 3 {
		t.Fatalf("defaults not applied: %+v", cfg)
	}

	opts := cfg.Options()
	if opts.Timeout != 5*time.Second || opts.Retries != 3 || opts.DisableSequenceTracking {
		t.Fatalf("options conversion wrong: %+v", opts)
	}
}

func TestLoadControllerRejectsBadHost(t *testing.T) {
	testlog.Start(t)
	path := writeConfig(t, `host = "robot.local"`)
	if _, err := LoadController(path); err == nil {
		t.Fatalf("expected validation failure for non-IPv4 host")
	}
	path = writeConfig(t, `
host = "192.168.1.50"
port = 99999
`)
	if _, err := LoadController(path); err == nil {
		t.Fatalf("expected validation failure for out-of-range port")
	}
}

func TestLoadControllerMissingFile(t *testing.T) {
	testlog.Start(t)
	if _, err := LoadController(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Fatalf("expected load failure for missing file")
	}
}

func TestLoadControllerParseError(t *testing.T) {
	testlog.Start(t)
	path := writeConfig(t, `host = [broken`)
	if _, err := LoadController(path); err == nil {
		t.Fatalf("expected parse failure")
	}
}

func TestLoadDiscoveryDefaultsAndConversion(t *testing.T) {
	testlog.Start(t)
	path := writeConfig(t, ``)
	cfg, err := LoadDiscovery(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.BroadcastAddr != "255.255.255.255" || cfg.Retries != 2 {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
	opts := cfg.Options()
	if opts.Timeout != 3*time.Second || opts.Port != protocol.DefaultPort {
		t.Fatalf("options conversion wrong: %+v", opts)
	}
}

func TestLoadModuleValidatesType(t *testing.T) {
	testlog.Start(t)
	path := writeConfig(t, `
id = "servo1"
type = "engine"
`)
	if _, err := LoadModule(path); err == nil {
		t.Fatalf("expected validation failure for unknown type")
	}

	path = writeConfig(t, `
id = "servo1"
type = "actuator"
addr = "127.0.0.1:0"
`)
	cfg, err := LoadModule(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	ec := cfg.EndpointConfig()
	if ec.ID != "servo1" || ec.Type != protocol.ModuleActuator || ec.Addr != "127.0.0.1:0" {
		t.Fatalf("endpoint config conversion wrong: %+v", ec)
	}
}
