package infra

import (
	"os"
	"path/filepath"
	"runtime"
)

const (
	AppName = "nft-market"
)

// DataDir returns the root directory for databases and caches.
// A local "_workspace" directory wins if it exists (portable/dev mode).
func DataDir() (string, error) {
	localDir := "_workspace"
	if _, err := os.Stat(localDir); err == nil {
		return localDir, nil
	}

	var configDir string
	var err error

	if runtime.GOOS == "windows" {
		configDir = os.Getenv("LOCALAPPDATA")
		if configDir == "" {
			configDir, err = os.UserConfigDir()
		}
	} else {
		configDir, err = os.UserConfigDir()
	}
	if err != nil {
		return "", err
	}

	return filepath.Join(configDir, AppName), nil
}

// EnsureDir creates the directory if it doesn't exist with safe permissions (0755).
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0755)
}

// ResolveConfigPath attempts to find the config.yaml.
// Priority: 1. Current Dir, 2. OS Config Dir
func ResolveConfigPath() string {
	defaultPath := filepath.Join("configs", "config.yaml")

	if _, err := os.Stat(defaultPath); err == nil {
		return defaultPath
	}

	configRoot, err := os.UserConfigDir()
	if err == nil {
		osPath := filepath.Join(configRoot, AppName, "config.yaml")
		if _, err := os.Stat(osPath); err == nil {
			return osPath
		}
	}

	// Let LoadConfig report the missing file
	return defaultPath
}
