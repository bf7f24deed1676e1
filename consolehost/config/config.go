// Package config holds the tunables of a consolehost session and loads them
// from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	AudioOto  = "oto"
	AudioWAV  = "wav"
	AudioNone = "none"
)

type Config struct {
	// TickRate is the frame clock frequency in Hz.
	TickRate int `yaml:"tick_rate"`
	// RepeatThreshold is the minimum spacing between presses of one button.
	RepeatThreshold time.Duration `yaml:"repeat_threshold"`
	// ShutdownTimeout bounds renderer cleanup during shutdown.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	MaxPendingAudio int     `yaml:"max_pending_audio"`
	AudioDevice     string  `yaml:"audio_device"`
	WAVPath         string  `yaml:"wav_path"`
	Volume          float64 `yaml:"volume"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// SnapshotInterval saves a PNG every N frames in headless mode, 0 disables.
	SnapshotInterval int    `yaml:"snapshot_interval"`
	SnapshotDir      string `yaml:"snapshot_dir"`
}

func Default() Config {
	return Config{
		TickRate:        60,
		RepeatThreshold: 50 * time.Millisecond,
		ShutdownTimeout: 500 * time.Millisecond,
		MaxPendingAudio: 120,
		AudioDevice:     AudioOto,
		WAVPath:         "consolehost.wav",
		Volume:          1,
		LogLevel:        "info",
		LogFormat:       "text",
		SnapshotDir:     "snapshots",
	}
}

// Load reads path over Default, so a file only needs the keys it changes.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports every invalid field at once.
func (c Config) Validate() error {
	var errs []error
	if c.TickRate <= 0 || c.TickRate > 1000 {
		errs = append(errs, fmt.Errorf("tick_rate must be in 1..1000, got %d", c.TickRate))
	}
	if c.RepeatThreshold < 0 {
		errs = append(errs, fmt.Errorf("repeat_threshold must not be negative, got %s", c.RepeatThreshold))
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, fmt.Errorf("shutdown_timeout must be positive, got %s", c.ShutdownTimeout))
	}
	if c.MaxPendingAudio < 0 {
		errs = append(errs, fmt.Errorf("max_pending_audio must not be negative, got %d", c.MaxPendingAudio))
	}
	switch c.AudioDevice {
	case AudioOto, AudioNone:
	case AudioWAV:
		if c.WAVPath == "" {
			errs = append(errs, errors.New("wav_path is required with the wav audio device"))
		}
	default:
		errs = append(errs, fmt.Errorf("audio_device must be oto, wav or none, got %q", c.AudioDevice))
	}
	if c.Volume < 0 || c.Volume > 1 {
		errs = append(errs, fmt.Errorf("volume must be in 0..1, got %g", c.Volume))
	}
	if c.SnapshotInterval < 0 {
		errs = append(errs, fmt.Errorf("snapshot_interval must not be negative, got %d", c.SnapshotInterval))
	}
	return errors.Join(errs...)
}

// Save writes c as YAML, used to dump the effective configuration.
func (c Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
