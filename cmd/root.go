package cmd

import (
	"fmt"
	"os"

	"github.com/iksnae/screen-session/internal"
	"github.com/spf13/cobra"
)

var (
	verbose     bool
	storagePath string
	configPath  string
	version     string = "dev"
	commit      string = "unknown"
	date        string = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "screen-session",
	Short: "Record your screen, camera overlay and microphone",
	Long: `A CLI recorder for the screen, an optional face-landmark camera overlay,
and the microphone. Recordings are kept in a local SQLite library with a
thumbnail each, and can be browsed, exported, served or published to S3.

Modes:
  • screen   display + microphone
  • face     display + camera overlay with face landmarks + microphone
  • audio    microphone only

Quick Start:
  screen-session record --duration 30s      # Record the screen for 30 seconds
  screen-session list                       # List recordings, newest first
  screen-session export --out ./exports     # Write artifacts and an index
  screen-session serve                      # Browse and control from a browser

Capture and encoding use ffmpeg, which must be on PATH (or set encoder.ffmpeg_path).`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		internal.SetVerbose(verbose)
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	defer internal.SyncLogger()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// environment is the resolved configuration and paths for one command run
type environment struct {
	cfg   internal.Config
	paths internal.StoragePaths
}

// loadEnvironment resolves paths, then loads config.yaml and .env from the config
// directory. --storage wins over the storage key of the config file.
func loadEnvironment() (*environment, error) {
	paths, err := internal.GetStoragePaths(storagePath)
	if err != nil {
		return nil, fmt.Errorf("failed to get storage paths: %w", err)
	}

	cfgFile := configPath
	if cfgFile == "" {
		cfgFile = paths.ConfigFile()
	}
	cfg, err := internal.LoadConfig(cfgFile, paths.EnvFile())
	if err != nil {
		return nil, err
	}

	if storagePath == "" && cfg.Storage != "" {
		if paths, err = internal.GetStoragePaths(cfg.Storage); err != nil {
			return nil, fmt.Errorf("failed to get storage paths: %w", err)
		}
	}
	return &environment{cfg: cfg, paths: paths}, nil
}

// openLibrary opens (creating if needed) the recording database
func (e *environment) openLibrary() (*internal.Storage, error) {
	if err := e.paths.EnsureDataDir(); err != nil {
		return nil, err
	}
	store, err := internal.OpenStorage(e.paths.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open recording library: %w", err)
	}
	return store, nil
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&storagePath, "storage", "", "Custom library location (path to database file or directory)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config.yaml (default: per-user config directory)")

	// Set version template to ensure --version flag works
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
}
