package config

import (
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/qubi-project/qubi-go/controller"
	"github.com/qubi-project/qubi-go/module"
	"github.com/qubi-project/qubi-go/protocol"
)

// ControllerConfig is the TOML shape for one transport session.
type ControllerConfig struct {
	Host                    string `toml:"host"`
	Port                    int    `toml:"port"`
	TimeoutMS               int    `toml:"timeout_ms"`
	Retries                 int    `toml:"retries"`
	DisableSequenceTracking bool   `toml:"disable_sequence_tracking"`
}

// DiscoveryConfig is the TOML shape for one discovery pass.
type DiscoveryConfig struct {
	TimeoutMS     int    `toml:"timeout_ms"`
	BroadcastAddr string `toml:"broadcast_addr"`
	Port          int    `toml:"port"`
	Retries       int    `toml:"retries"`
}

// ModuleConfig is the TOML shape for one module endpoint.
type ModuleConfig struct {
	ID   string `toml:"id"`
	Type string `toml:"type"`
	Addr string `toml:"addr"`
}

func LoadController(path string) (ControllerConfig, error) {
	var cfg ControllerConfig
	if err := loadToml(path, &cfg); err != nil {
		return ControllerConfig{}, err
	}
	if cfg.Port == 0 {
		cfg.Port = protocol.DefaultPort
	}
	if cfg.TimeoutMS == 0 {
		cfg.TimeoutMS = 5000
	}
	if cfg.Retries == 0 {
		cfg.Retries = 3
	}
	if err := ValidateController(cfg); err != nil {
		return ControllerConfig{}, err
	}
	return cfg, nil
}

func LoadDiscovery(path string) (DiscoveryConfig, error) {
	var cfg DiscoveryConfig
	if err := loadToml(path, &cfg); err != nil {
		return DiscoveryConfig{}, err
	}
	if cfg.TimeoutMS == 0 {
		cfg.TimeoutMS = 3000
	}
	if cfg.BroadcastAddr == "" {
		cfg.BroadcastAddr = "255.255.255.255"
	}
	if cfg.Port == 0 {
		cfg.Port = protocol.DefaultPort
	}
	if cfg.Retries == 0 {
		cfg.Retries = 2
	}
	if err := ValidateDiscovery(cfg); err != nil {
		return DiscoveryConfig{}, err
	}
	return cfg, nil
}

func LoadModule(path string) (ModuleConfig, error) {
	var cfg ModuleConfig
	if err := loadToml(path, &cfg); err != nil {
		return ModuleConfig{}, err
	}
	if cfg.Addr == "" {
		cfg.Addr = fmt.Sprintf(":%d", protocol.DefaultPort)
	}
	if err := ValidateModule(cfg); err != nil {
		return ModuleConfig{}, err
	}
	return cfg, nil
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

func ValidateController(cfg ControllerConfig) error {
	host := strings.TrimSpace(cfg.Host)
	if host == "" {
		return fmt.Errorf("controller config missing host")
	}
	if ip := net.ParseIP(host); ip == nil || ip.To4() == nil {
		return fmt.Errorf("controller config host %q is not an IPv4 address", host)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return fmt.Errorf("controller config port %d out of range", cfg.Port)
	}
	if cfg.TimeoutMS < 0 {
		return fmt.Errorf("controller config timeout_ms must not be negative")
	}
	if cfg.Retries < 0 {
		return fmt.Errorf("controller config retries must not be negative")
	}
	return nil
}

func ValidateDiscovery(cfg DiscoveryConfig) error {
	if ip := net.ParseIP(strings.TrimSpace(cfg.BroadcastAddr)); ip == nil || ip.To4() == nil {
		return fmt.Errorf("discovery config broadcast_addr %q is not an IPv4 address", cfg.BroadcastAddr)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return fmt.Errorf("discovery config port %d out of range", cfg.Port)
	}
	if cfg.TimeoutMS <= 0 {
		return fmt.Errorf("discovery config timeout_ms must be positive")
	}
	if cfg.Retries < 1 {
		return fmt.Errorf("discovery config retries must be at least 1")
	}
	return nil
}

func ValidateModule(cfg ModuleConfig) error {
	if !protocol.ModuleType(cfg.Type).Valid() {
		return fmt.Errorf("module config type %q unknown", cfg.Type)
	}
	if strings.TrimSpace(cfg.Addr) == "" {
		return fmt.Errorf("module config missing addr")
	}
	return nil
}

// Options converts the file shape to controller options.
func (c ControllerConfig) Options() controller.Options {
	return controller.Options{
		Timeout:                 time.Duration(c.TimeoutMS) * time.Millisecond,
		Retries:                 c.Retries,
		DisableSequenceTracking: c.DisableSequenceTracking,
	}.WithDefaults()
}

// Options converts the file shape to discovery options.
func (c DiscoveryConfig) Options() controller.DiscoveryOptions {
	return controller.DiscoveryOptions{
		Timeout:          time.Duration(c.TimeoutMS) * time.Millisecond,
		BroadcastAddress: c.BroadcastAddr,
		Port:             c.Port,
		Retries:          c.Retries,
	}.WithDefaults()
}

// EndpointConfig converts the file shape to a module endpoint config.
func (c ModuleConfig) EndpointConfig() module.Config {
	return module.Config{
		ID:   c.ID,
		Type: protocol.ModuleType(c.Type),
		Addr: c.Addr,
	}
}
