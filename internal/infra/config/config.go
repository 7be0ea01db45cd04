// Package config provides configuration loading from YAML files.
package config

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Library      LibraryConfig      `yaml:"library"`
	Playback     PlaybackConfig     `yaml:"playback"`
	Media        MediaConfig        `yaml:"media"`
	Notification NotificationConfig `yaml:"notification"`
	Messages     MessagesConfig     `yaml:"messages"`
}

// ServerConfig represents remote-control API configuration.
type ServerConfig struct {
	Addr  string      `yaml:"addr" default:":8080"`
	Token string      `yaml:"token"` // Empty disables authentication
	Hooks HooksConfig `yaml:"hooks"`
}

// HooksConfig represents lifecycle hooks configuration.
type HooksConfig struct {
	OnStarted []string `yaml:"on_started"`
	OnStopped []string `yaml:"on_stopped"`
}

// LibraryConfig represents the music library source.
type LibraryConfig struct {
	Dir           string `yaml:"dir" default:"library"`
	TracksFile    string `yaml:"tracks_file" default:"tracks.json"`
	PlaylistsFile string `yaml:"playlists_file" default:"playlists.json"`
	MediaBaseURL  string `yaml:"media_base_url" validate:"omitempty,url"`
	Watch         bool   `yaml:"watch"`
}

// PlaybackConfig represents playback control configuration.
type PlaybackConfig struct {
	InitialVolume      float64 `yaml:"initial_volume" default:"1" validate:"gte=0,lte=1"`
	RestartThresholdMs int     `yaml:"restart_threshold_ms" default:"3000" validate:"gte=0,lte=60000"`
	SeekStepMs         int     `yaml:"seek_step_ms" default:"5000" validate:"gt=0,lte=60000"`
	VolumeStep         float64 `yaml:"volume_step" default:"0.1" validate:"gt=0,lte=1"`
}

// MediaConfig represents the media output adapter.
type MediaConfig struct {
	Type     string         `yaml:"type" default:"beep" validate:"oneof=beep silent"`
	Settings map[string]any `yaml:"settings"`
}

// NotificationConfig represents notification broadcasting configuration.
type NotificationConfig struct {
	ViewRateHz    float64 `yaml:"view_rate_hz" default:"4" validate:"gte=0"`
	SendTimeoutMs int     `yaml:"send_timeout_ms" default:"500" validate:"gt=0,lte=10000"`
}

// MessagesConfig represents user-facing toast messages.
type MessagesConfig struct {
	LoadFailed     string `yaml:"load_failed" default:"Could not load track"`
	PlaybackFailed string `yaml:"playback_failed" default:"Playback failed"`
	MediaError     string `yaml:"media_error" default:"Playback error"`
}

// Load loads configuration from a YAML file.
// Environment variables take precedence over file values for sensitive fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}
	return Parse(data)
}

// Parse parses configuration from YAML bytes, applying environment
// overrides, defaults and validation.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	// Override with environment variables
	cfg.overrideFromEnv()

	// Set defaults using creasty/defaults
	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// Default returns a configuration with every default applied.
func Default() *Config {
	var cfg Config
	_ = defaults.Set(&cfg)
	return &cfg
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() {
	if v := os.Getenv("PLAYER_API_TOKEN"); v != "" {
		c.Server.Token = v
	}
	if v := os.Getenv("PLAYER_LIBRARY_DIR"); v != "" {
		c.Library.Dir = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}
	return nil
}

// RestartThreshold returns the playPrevious restart threshold.
func (p PlaybackConfig) RestartThreshold() time.Duration {
	return time.Duration(p.RestartThresholdMs) * time.Millisecond
}

// SeekStep returns the keyboard seek step.
func (p PlaybackConfig) SeekStep() time.Duration {
	return time.Duration(p.SeekStepMs) * time.Millisecond
}

// SendTimeout returns the per-subscriber broadcast timeout.
func (n NotificationConfig) SendTimeout() time.Duration {
	return time.Duration(n.SendTimeoutMs) * time.Millisecond
}
