package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	configDirName     = "caldav"
	configFile        = "config.yaml"
	identityFile      = "identity.txt"
	configDirPermMode = 0o700
)

// GetConfigDir returns the configuration directory path (~/.config/caldav)
func GetConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(homeDir, ".config", configDirName), nil
}

// GetConfigPath returns the path to the default configuration file
func GetConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, configFile), nil
}

// GetIdentityPath returns the path to the default cache identity
func GetIdentityPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, identityFile), nil
}
