package internal

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/iksnae/screen-session/testutil"
)

func TestDetectStoragePaths(t *testing.T) {
	if runtime.GOOS == "linux" {
		t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg-config")
		t.Setenv("XDG_DATA_HOME", "/tmp/xdg-data")
	}

	paths, err := DetectStoragePaths()
	if err != nil {
		t.Fatalf("DetectStoragePaths() error = %v", err)
	}

	home, _ := os.UserHomeDir()
	var wantConfig, wantData string
	switch runtime.GOOS {
	case "darwin":
		wantConfig = filepath.Join(home, "Library/Application Support/screen-session")
		wantData = wantConfig
	case "linux":
		wantConfig = "/tmp/xdg-config/screen-session"
		wantData = "/tmp/xdg-data/screen-session"
	default:
		t.Skipf("unsupported OS %s", runtime.GOOS)
	}

	if paths.ConfigDir != wantConfig {
		t.Errorf("ConfigDir = %v, want %v", paths.ConfigDir, wantConfig)
	}
	if paths.DataDir != wantData {
		t.Errorf("DataDir = %v, want %v", paths.DataDir, wantData)
	}
	if paths.DatabasePath != filepath.Join(wantData, "recordings.db") {
		t.Errorf("DatabasePath = %v", paths.DatabasePath)
	}
}

func TestDetectStoragePaths_RelativeXDGIgnored(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("XDG variables only apply on linux")
	}
	t.Setenv("XDG_DATA_HOME", "relative/dir")

	paths, err := DetectStoragePaths()
	if err != nil {
		t.Fatalf("DetectStoragePaths() error = %v", err)
	}
	home, _ := os.UserHomeDir()
	want := filepath.Join(home, ".local/share/screen-session")
	if paths.DataDir != want {
		t.Errorf("DataDir = %v, want %v", paths.DataDir, want)
	}
}

func TestGetStoragePaths(t *testing.T) {
	tmpDir := testutil.CreateTempDir(t)
	defer os.RemoveAll(tmpDir)

	tests := []struct {
		name     string
		custom   string
		wantDB   string
		wantData string
	}{
		{
			name:     "directory",
			custom:   tmpDir,
			wantDB:   filepath.Join(tmpDir, "recordings.db"),
			wantData: tmpDir,
		},
		{
			name:     "database file",
			custom:   filepath.Join(tmpDir, "lib", "custom.db"),
			wantDB:   filepath.Join(tmpDir, "lib", "custom.db"),
			wantData: filepath.Join(tmpDir, "lib"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			paths, err := GetStoragePaths(tt.custom)
			if err != nil {
				t.Fatalf("GetStoragePaths() error = %v", err)
			}
			if paths.DatabasePath != tt.wantDB {
				t.Errorf("DatabasePath = %v, want %v", paths.DatabasePath, tt.wantDB)
			}
			if paths.DataDir != tt.wantData {
				t.Errorf("DataDir = %v, want %v", paths.DataDir, tt.wantData)
			}
		})
	}
}

func TestStoragePaths_EnsureDataDir(t *testing.T) {
	tmpDir := testutil.CreateTempDir(t)
	defer os.RemoveAll(tmpDir)

	paths := StoragePaths{DataDir: filepath.Join(tmpDir, "a", "b"), DatabasePath: filepath.Join(tmpDir, "a", "b", "recordings.db")}
	if paths.DatabaseExists() {
		t.Error("DatabaseExists() = true before creation")
	}
	if err := paths.EnsureDataDir(); err != nil {
		t.Fatalf("EnsureDataDir() error = %v", err)
	}
	if info, err := os.Stat(paths.DataDir); err != nil || !info.IsDir() {
		t.Errorf("EnsureDataDir() did not create %s", paths.DataDir)
	}
}
