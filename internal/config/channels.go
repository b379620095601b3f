package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"tubefeed/internal/models"
)

// LoadChannels reads the channels file: a top-level YAML sequence of channel
// mappings. A missing file means an empty list; anything else malformed is a
// *ConfigError. Unknown keys survive in Channel.Extra for re-dump.
func LoadChannels(path string) ([]models.Channel, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}

	var channels []models.Channel
	if err := yaml.Unmarshal(data, &channels); err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}
	for _, ch := range channels {
		if ch.ID == "" {
			return nil, &ConfigError{Path: path, Err: fmt.Errorf("channel %q has no channel_id", ch.Title)}
		}
	}
	return channels, nil
}

// DumpChannels rewrites the channels file through a temporary sibling renamed
// into place, so a crash mid-write leaves the previous version intact.
func DumpChannels(path string, channels []models.Channel) error {
	data, err := yaml.Marshal(channels)
	if err != nil {
		return fmt.Errorf("marshal channels: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp channels file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write temp channels file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close temp channels file: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}
