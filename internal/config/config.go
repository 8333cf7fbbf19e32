package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete movie-playback configuration
type Config struct {
	Policy      Policy  `yaml:"policy"`
	Display     Display `yaml:"display"`
	HDRMetadata string  `yaml:"hdr_metadata"` // auto, off
	Events      Events  `yaml:"events"`
}

// Policy holds the engine's timing and sizing constants
type Policy struct {
	FetchWait         time.Duration `yaml:"fetch_wait"`          // bounded wait per fetch attempt (default: 500ms)
	DrainWindow       time.Duration `yaml:"drain_window"`        // bus drain wait window (default: 2s)
	DrainPoll         time.Duration `yaml:"drain_poll"`          // bus poll granularity (default: 10ms)
	PrerollTimeout    time.Duration `yaml:"preroll_timeout"`     // open-time PAUSED wait (default: 30s)
	SeekTimeout       time.Duration `yaml:"seek_timeout"`        // SetTimeIndex completion wait (default: 30s)
	RateChangeTimeout time.Duration `yaml:"rate_change_timeout"` // SetRate state change wait (default: 10s)
	StartTimeout      time.Duration `yaml:"start_timeout"`       // deferred start wait (default: 1s)
	DeleteTimeout     time.Duration `yaml:"delete_timeout"`      // teardown state change wait (default: 20s)
	StepTimeout       time.Duration `yaml:"step_timeout"`        // manual step completion wait (default: 10s)
	StepEpsilon       time.Duration `yaml:"step_epsilon"`        // minimum step advance before end-of-fetch (default: 1ms)
	DefaultPreload    time.Duration `yaml:"default_preload"`     // preload used by forced download (default: 10s)
	MaxMovies         int           `yaml:"max_movies"`          // registry capacity (default: 100)
}

// Display describes the target window when no window collaborator is attached
type Display struct {
	Caps           []string  `yaml:"caps"`             // uyvy, apple-ycbcr, fbo, shaders, fp16, fp32
	HDR            bool      `yaml:"hdr"`              // window is HDR capable
	HDRScale       float64   `yaml:"hdr_scale"`        // normalized HDR to framebuffer units (default: 1)
	SDRScale       float64   `yaml:"sdr_scale"`        // SDR white to framebuffer units (default: 1)
	Gamut          []float64 `yaml:"gamut,omitempty"`  // Rx Ry Gx Gy Bx By Wx Wy
	ShaderProfile  string    `yaml:"shader_profile"`   // glsl130, glsl120
	MaxTextureSize int       `yaml:"max_texture_size"` // 0 = unlimited
}

// Events contains the event publisher settings
type Events struct {
	Broker         string        `yaml:"broker"` // empty disables publishing
	Topic          string        `yaml:"topic"`
	ClientID       string        `yaml:"client_id"`
	QoS            byte          `yaml:"qos"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

// Default returns the built-in configuration
func Default() *Config {
	cfg := &Config{}
	// Validate only fills defaults on an empty config; it cannot fail here.
	_ = Validate(cfg)
	return cfg
}

// Load reads and parses a YAML configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML configuration data
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Validate configuration
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}
