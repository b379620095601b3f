package config

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	appName      = "tubefeed"
	configYaml   = "config.yaml"
	channelsYaml = "channels.yaml"
	lockFileName = "update.lock"
	StorageName  = "pytfeeder.db"
)

func configDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return dir
	}
	return filepath.Join(homeDir(), ".config")
}

func dataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return dir
	}
	return filepath.Join(homeDir(), ".local", "share")
}

func cacheDir() string {
	if dir := os.Getenv("XDG_CACHE_HOME"); dir != "" {
		return dir
	}
	return filepath.Join(homeDir(), ".cache")
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}

// DefaultConfigPath is where the CLI looks when -c is not given.
func DefaultConfigPath() string {
	return filepath.Join(configDir(), appName, configYaml)
}

func defaultChannelsPath() string {
	return filepath.Join(configDir(), appName, channelsYaml)
}

func defaultDataDir() string {
	return filepath.Join(dataDir(), appName)
}

func defaultLockFile() string {
	return filepath.Join(cacheDir(), appName, lockFileName)
}

// expandPath resolves a leading ~ and $VAR references. Called exactly once
// per path field at load time.
func expandPath(path string) string {
	if path == "~" {
		path = homeDir()
	} else if strings.HasPrefix(path, "~/") {
		path = filepath.Join(homeDir(), path[2:])
	}
	return os.ExpandEnv(path)
}
