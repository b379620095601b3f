// Package config loads the YAML config and channels files and resolves the
// paths the rest of the system reads from.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"tubefeed/internal/models"
)

const defaultUpdateIntervalMin = 30

// ConfigError reports malformed YAML or a wrong top-level shape. It is fatal
// at startup; no partial config is ever installed.
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %v", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// LoggerConfig configures the logrus sink. An empty File means silent.
type LoggerConfig struct {
	File  string `yaml:"file,omitempty"`
	Level string `yaml:"level,omitempty"`
}

// RofiConfig is consumed by the external rofi line emitter. The core only
// parses and carries it.
type RofiConfig struct {
	AlphabeticSort   bool      `yaml:"alphabetic_sort,omitempty"`
	ChannelFeedLimit int       `yaml:"channel_feed_limit,omitempty"`
	ChannelsFmt      string    `yaml:"channels_fmt,omitempty"`
	DatetimeFmt      string    `yaml:"datetime_fmt,omitempty"`
	EntriesFmt       string    `yaml:"entries_fmt,omitempty"`
	FeedEntriesFmt   string    `yaml:"feed_entries_fmt,omitempty"`
	FeedLimit        int       `yaml:"feed_limit,omitempty"`
	HideEmpty        bool      `yaml:"hide_empty,omitempty"`
	Separator        yaml.Node `yaml:"separator,omitempty"`
	UnwatchedFirst   bool      `yaml:"unwatched_first,omitempty"`
}

// TuiConfig is consumed by the external terminal pager.
type TuiConfig struct {
	AlphabeticSort   bool   `yaml:"alphabetic_sort,omitempty"`
	ChannelFeedLimit int    `yaml:"channel_feed_limit,omitempty"`
	FeedLimit        int    `yaml:"feed_limit,omitempty"`
	ChannelsFmt      string `yaml:"channels_fmt,omitempty"`
	EntriesFmt       string `yaml:"entries_fmt,omitempty"`
	DatetimeFmt      string `yaml:"datetime_fmt,omitempty"`
	UnwatchedFirst   bool   `yaml:"unwatched_first,omitempty"`
}

// Config is the immutable runtime configuration. View options such as sort
// order are owned by the UIs, not stored here.
type Config struct {
	ChannelsFilepath  string       `yaml:"channels_filepath,omitempty"`
	DataDir           string       `yaml:"data_dir,omitempty"`
	LockFile          string       `yaml:"lock_file,omitempty"`
	SkipShorts        bool         `yaml:"skip_shorts,omitempty"`
	UpdateIntervalMin int          `yaml:"update_interval,omitempty"`
	Logger            LoggerConfig `yaml:"logger,omitempty"`
	Rofi              RofiConfig   `yaml:"rofi,omitempty"`
	Tui               TuiConfig    `yaml:"tui,omitempty"`

	// Derived, not serialized.
	StoragePath string           `yaml:"-"`
	channels    []models.Channel `yaml:"-"`
}

// Default returns a config pointing at the XDG default locations.
func Default() *Config {
	cfg := &Config{
		ChannelsFilepath:  defaultChannelsPath(),
		DataDir:           defaultDataDir(),
		LockFile:          defaultLockFile(),
		UpdateIntervalMin: defaultUpdateIntervalMin,
		Rofi:              RofiConfig{ChannelFeedLimit: -1, FeedLimit: -1},
		Tui:               TuiConfig{ChannelFeedLimit: -1, FeedLimit: -1},
	}
	cfg.StoragePath = filepath.Join(cfg.DataDir, StorageName)
	return cfg
}

// Load reads the config file at path, falls back to defaults for absent
// keys, expands path fields once, and loads the channels file. A missing
// config file yields the default config; malformed YAML is a *ConfigError.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// defaults stand
	case err != nil:
		return nil, &ConfigError{Path: path, Err: err}
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, &ConfigError{Path: path, Err: err}
		}
	}

	cfg.ChannelsFilepath = expandPath(cfg.ChannelsFilepath)
	cfg.DataDir = expandPath(cfg.DataDir)
	cfg.LockFile = expandPath(cfg.LockFile)
	if cfg.UpdateIntervalMin <= 0 {
		cfg.UpdateIntervalMin = defaultUpdateIntervalMin
	}
	cfg.StoragePath = filepath.Join(cfg.DataDir, StorageName)

	channels, err := LoadChannels(cfg.ChannelsFilepath)
	if err != nil {
		return nil, err
	}
	cfg.channels = channels
	return cfg, nil
}

// UpdateInterval is the sync gate interval. The YAML key carries minutes.
func (c *Config) UpdateInterval() time.Duration {
	return time.Duration(c.UpdateIntervalMin) * time.Minute
}

// AllChannels returns every configured channel, hidden ones included, in
// file order.
func (c *Config) AllChannels() []models.Channel {
	return c.channels
}

// Channels returns the visible channels in file order.
func (c *Config) Channels() []models.Channel {
	visible := make([]models.Channel, 0, len(c.channels))
	for _, ch := range c.channels {
		if !ch.Hidden {
			visible = append(visible, ch)
		}
	}
	return visible
}

// Dump serializes the runtime config to YAML, for --print-config.
func (c *Config) Dump() ([]byte, error) {
	return yaml.Marshal(c)
}
