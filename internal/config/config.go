// Package config holds the configuration surface for all three roles.
// Values come from an optional YAML file, with CLI flags applied on top.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Role represents the process role selected at startup.
type Role string

const (
	RoleStream Role = "stream"
	RoleView   Role = "view"
	RoleBridge Role = "bridge"
)

// StreamConfig configures the UDP streaming server on the vehicle.
type StreamConfig struct {
	Host           string        `yaml:"host"`            // UDP listen host
	Port           int           `yaml:"port"`            // UDP listen port
	ChunkSize      int           `yaml:"chunk_size"`      // datagram payload capacity
	MaxFPS         int           `yaml:"max_fps"`         // broadcast rate cap
	Quality        int           `yaml:"quality"`         // JPEG quality, passed to the frame source
	SessionTimeout time.Duration `yaml:"session_timeout"` // idle peer eviction, 0 disables
}

// ViewConfig configures the reference viewer.
type ViewConfig struct {
	Host       string        `yaml:"host"`        // streamer host
	Port       int           `yaml:"port"`        // streamer port
	StaleAfter time.Duration `yaml:"stale_after"` // partial-frame retention
	OutDir     string        `yaml:"out_dir"`     // frame sink directory, empty discards
}

// BridgeConfig configures the UDP → WebSocket/WebRTC bridge.
type BridgeConfig struct {
	UDPHost      string        `yaml:"udp_host"`      // upstream streamer host
	UDPPort      int           `yaml:"udp_port"`      // upstream streamer port
	WSPort       int           `yaml:"ws_port"`       // downstream WebSocket listen port
	StaleAfter   time.Duration `yaml:"stale_after"`   // partial-frame retention
	PingInterval time.Duration `yaml:"ping_interval"` // WS-native keep-alive interval
	PongTimeout  time.Duration `yaml:"pong_timeout"`  // downstream considered dead after this
	RTC          bool          `yaml:"rtc"`           // deliver frames over a WebRTC data channel
}

// Config is the top-level structure of the YAML file.
type Config struct {
	Stream StreamConfig `yaml:"stream"`
	View   ViewConfig   `yaml:"view"`
	Bridge BridgeConfig `yaml:"bridge"`
}

// Default returns the configuration matching the vehicle's stock setup.
func Default() *Config {
	return &Config{
		Stream: StreamConfig{
			Host:           "0.0.0.0",
			Port:           9999,
			ChunkSize:      1400,
			MaxFPS:         60,
			Quality:        30,
			SessionTimeout: 30 * time.Second,
		},
		View: ViewConfig{
			Host:       "localhost",
			Port:       9999,
			StaleAfter: time.Second,
		},
		Bridge: BridgeConfig{
			UDPHost:      "localhost",
			UDPPort:      9999,
			WSPort:       8765,
			StaleAfter:   2 * time.Second,
			PingInterval: 10 * time.Second,
			PongTimeout:  30 * time.Second,
		},
	}
}

// Load reads a YAML file over the defaults. A missing path returns defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config YAML: %w", err)
	}

	return cfg, cfg.validate()
}

func (c *Config) validate() error {
	if c.Stream.Port < 1 || c.Stream.Port > 65535 {
		return fmt.Errorf("invalid stream port: %d", c.Stream.Port)
	}
	if c.Stream.ChunkSize < 1 || c.Stream.ChunkSize > 65535 {
		return fmt.Errorf("invalid chunk size: %d", c.Stream.ChunkSize)
	}
	if c.Stream.MaxFPS < 1 {
		return fmt.Errorf("invalid max fps: %d", c.Stream.MaxFPS)
	}
	if c.Stream.Quality < 1 || c.Stream.Quality > 100 {
		return fmt.Errorf("invalid jpeg quality: %d", c.Stream.Quality)
	}
	if c.Bridge.WSPort < 1 || c.Bridge.WSPort > 65535 {
		return fmt.Errorf("invalid websocket port: %d", c.Bridge.WSPort)
	}
	return nil
}
