package internal

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

const appName = "screen-session"

// StoragePaths holds the detected locations for configuration and the recording library
type StoragePaths struct {
	ConfigDir    string // directory holding config.yaml and .env
	DataDir      string // directory holding the recording database
	DatabasePath string // recordings.db
}

// DetectStoragePaths detects the per-user paths based on the operating system
func DetectStoragePaths() (StoragePaths, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return StoragePaths{}, fmt.Errorf("failed to get home directory: %w", err)
	}

	var configDir, dataDir string
	switch runtime.GOOS {
	case "darwin":
		base := filepath.Join(home, "Library/Application Support", appName)
		configDir = base
		dataDir = base
	case "linux":
		configDir = filepath.Join(xdgDir("XDG_CONFIG_HOME", filepath.Join(home, ".config")), appName)
		dataDir = filepath.Join(xdgDir("XDG_DATA_HOME", filepath.Join(home, ".local/share")), appName)
	default:
		return StoragePaths{}, fmt.Errorf("unsupported OS: %s (only macOS and Linux are supported)", runtime.GOOS)
	}

	return StoragePaths{
		ConfigDir:    configDir,
		DataDir:      dataDir,
		DatabasePath: filepath.Join(dataDir, "recordings.db"),
	}, nil
}

// GetStoragePaths returns the detected paths, or paths rooted at a custom location.
// customPath may name a database file (*.db) or a directory.
func GetStoragePaths(customPath string) (StoragePaths, error) {
	paths, err := DetectStoragePaths()
	if err != nil {
		return StoragePaths{}, err
	}
	if customPath == "" {
		return paths, nil
	}

	abs, err := filepath.Abs(customPath)
	if err != nil {
		return StoragePaths{}, fmt.Errorf("invalid storage path %q: %w", customPath, err)
	}
	if strings.HasSuffix(abs, ".db") {
		paths.DataDir = filepath.Dir(abs)
		paths.DatabasePath = abs
	} else {
		paths.DataDir = abs
		paths.DatabasePath = filepath.Join(abs, "recordings.db")
	}
	return paths, nil
}

// ConfigFile returns the path to the YAML config file
func (sp StoragePaths) ConfigFile() string {
	return filepath.Join(sp.ConfigDir, "config.yaml")
}

// EnvFile returns the path to the optional .env file
func (sp StoragePaths) EnvFile() string {
	return filepath.Join(sp.ConfigDir, ".env")
}

// DatabaseExists checks if the recording database has been created
func (sp StoragePaths) DatabaseExists() bool {
	_, err := os.Stat(sp.DatabasePath)
	return err == nil
}

// EnsureDataDir creates the data directory if needed
func (sp StoragePaths) EnsureDataDir() error {
	if err := os.MkdirAll(sp.DataDir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory %s: %w", sp.DataDir, err)
	}
	return nil
}

func xdgDir(env, fallback string) string {
	if v := os.Getenv(env); v != "" && filepath.IsAbs(v) {
		return v
	}
	return fallback
}
