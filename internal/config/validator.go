package config

import (
	"fmt"
	"time"

	"github.com/e7canasta/movie-playback/internal/eotf"
	"github.com/e7canasta/movie-playback/internal/pipeline"
)

// Validate checks if the configuration is valid and fills in defaults
func Validate(cfg *Config) error {
	if err := validatePolicy(&cfg.Policy); err != nil {
		return fmt.Errorf("policy: %w", err)
	}
	if err := ValidateDisplay(&cfg.Display); err != nil {
		return fmt.Errorf("display: %w", err)
	}

	switch cfg.HDRMetadata {
	case "":
		cfg.HDRMetadata = "auto"
	case "auto", "off":
	default:
		return fmt.Errorf("hdr_metadata must be 'auto' or 'off', got '%s'", cfg.HDRMetadata)
	}

	if cfg.Events.Broker != "" {
		if cfg.Events.Topic == "" {
			cfg.Events.Topic = "movie-playback/events"
		}
		if cfg.Events.ClientID == "" {
			cfg.Events.ClientID = "movie-playback"
		}
		if cfg.Events.QoS > 2 {
			return fmt.Errorf("events.qos must be 0, 1 or 2, got %d", cfg.Events.QoS)
		}
		if cfg.Events.ConnectTimeout <= 0 {
			cfg.Events.ConnectTimeout = 5 * time.Second
		}
	}

	return nil
}

func validatePolicy(p *Policy) error {
	durations := []struct {
		name  string
		value *time.Duration
		def   time.Duration
	}{
		{"fetch_wait", &p.FetchWait, 500 * time.Millisecond},
		{"drain_window", &p.DrainWindow, 2 * time.Second},
		{"drain_poll", &p.DrainPoll, 10 * time.Millisecond},
		{"preroll_timeout", &p.PrerollTimeout, 30 * time.Second},
		{"seek_timeout", &p.SeekTimeout, 30 * time.Second},
		{"rate_change_timeout", &p.RateChangeTimeout, 10 * time.Second},
		{"start_timeout", &p.StartTimeout, time.Second},
		{"delete_timeout", &p.DeleteTimeout, 20 * time.Second},
		{"step_timeout", &p.StepTimeout, 10 * time.Second},
		{"step_epsilon", &p.StepEpsilon, time.Millisecond},
		{"default_preload", &p.DefaultPreload, 10 * time.Second},
	}
	for _, d := range durations {
		if *d.value < 0 {
			return fmt.Errorf("%s must be >= 0, got %v", d.name, *d.value)
		}
		if *d.value == 0 {
			*d.value = d.def
		}
	}

	if p.DrainPoll > p.DrainWindow {
		return fmt.Errorf("drain_poll (%v) must not exceed drain_window (%v)", p.DrainPoll, p.DrainWindow)
	}

	if p.MaxMovies < 0 {
		return fmt.Errorf("max_movies must be > 0, got %d", p.MaxMovies)
	}
	if p.MaxMovies == 0 {
		p.MaxMovies = 100 // default
	}
	return nil
}

// ValidateDisplay checks the display description and fills in defaults
func ValidateDisplay(d *Display) error {
	if _, err := pipeline.ParseGfxCaps(d.Caps); err != nil {
		return err
	}

	if d.HDRScale < 0 || d.SDRScale < 0 {
		return fmt.Errorf("scales must be >= 0 (hdr_scale=%g, sdr_scale=%g)", d.HDRScale, d.SDRScale)
	}
	if d.HDRScale == 0 {
		d.HDRScale = 1
	}
	if d.SDRScale == 0 {
		d.SDRScale = 1
	}

	if len(d.Gamut) != 0 && len(d.Gamut) != 8 {
		return fmt.Errorf("gamut must have 8 values [Rx Ry Gx Gy Bx By Wx Wy], got %d", len(d.Gamut))
	}

	if d.ShaderProfile == "" {
		d.ShaderProfile = eotf.ProfileGLSL130.String()
	}
	if _, err := eotf.ParseProfile(d.ShaderProfile); err != nil {
		return err
	}

	if d.MaxTextureSize < 0 {
		return fmt.Errorf("max_texture_size must be >= 0, got %d", d.MaxTextureSize)
	}
	return nil
}

// GfxCaps returns the parsed capability set. Call after Validate.
func (d Display) GfxCaps() pipeline.GfxCaps {
	caps, _ := pipeline.ParseGfxCaps(d.Caps)
	return caps
}
