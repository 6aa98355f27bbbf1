package cmd

import (
	"fmt"
	"os/exec"

	"github.com/charmbracelet/lipgloss"
	"github.com/iksnae/screen-session/internal"
	"github.com/spf13/cobra"
)

var (
	healthcheckVerbose bool
)

var (
	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39"))

	sectionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("62")).
			Bold(true).
			Underline(true)
)

// healthcheckCmd represents the healthcheck command
var healthcheckCmd = &cobra.Command{
	Use:   "healthcheck",
	Short: "Check that screen-session can record and store recordings",
	Long: `Check the health of screen-session by verifying:
  • Config and library path detection
  • Configuration validity
  • ffmpeg availability
  • Recording library accessibility
  • Face detector command (required for face mode)

This command is useful for debugging capture setups and CI environments.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		failed := 0
		fail := func(msg string, err error) {
			failed++
			fmt.Fprintln(out, errorStyle.Render("❌ "+msg+":"), err)
		}

		fmt.Fprintln(out, sectionStyle.Render("🔍 Screen Session Health Check"))
		fmt.Fprintln(out)

		// Step 1: paths and config
		fmt.Fprintln(out, infoStyle.Render("Step 1: Loading configuration..."))
		env, err := loadEnvironment()
		if err != nil {
			fail("Failed to load configuration", err)
			return fmt.Errorf("health check failed: %w", err)
		}
		fmt.Fprintln(out, successStyle.Render("✅ Configuration loaded"))
		if healthcheckVerbose {
			fmt.Fprintf(out, "   Config dir: %s\n", env.paths.ConfigDir)
			fmt.Fprintf(out, "   Library:    %s\n", env.paths.DatabasePath)
			fmt.Fprintf(out, "   Mode:       %s at %d fps, %dx%d\n", env.cfg.Mode, env.cfg.FPS, env.cfg.Canvas.Width, env.cfg.Canvas.Height)
		}
		if err := env.cfg.Validate(); err != nil {
			fail("Invalid configuration", err)
		} else {
			fmt.Fprintln(out, successStyle.Render("✅ Configuration valid"))
		}
		fmt.Fprintln(out)

		// Step 2: ffmpeg
		fmt.Fprintln(out, infoStyle.Render("Step 2: Checking ffmpeg..."))
		if path, err := internal.FFmpegAvailable(env.cfg.Encoder.FFmpegPath); err != nil {
			fail("ffmpeg not found", err)
		} else {
			fmt.Fprintln(out, successStyle.Render("✅ ffmpeg found"))
			if healthcheckVerbose {
				fmt.Fprintf(out, "   Binary: %s\n", path)
				fmt.Fprintf(out, "   Output: %s\n", env.cfg.MimeType())
			}
		}
		fmt.Fprintln(out)

		// Step 3: library
		fmt.Fprintln(out, infoStyle.Render("Step 3: Opening recording library..."))
		count := -1
		if store, err := env.openLibrary(); err != nil {
			fail("Failed to open library", err)
		} else {
			recs, err := store.List(cmd.Context())
			if err != nil {
				fail("Failed to list recordings", err)
			} else {
				count = len(recs)
				fmt.Fprintln(out, successStyle.Render(fmt.Sprintf("✅ Library accessible (%d recording(s))", count)))
			}
			if fk, err := internal.ForeignKeysEnabled(store.DB()); err == nil && !fk {
				fmt.Fprintln(out, warningStyle.Render("⚠️  Foreign keys are off; thumbnails may outlive recordings"))
			}
			_ = store.Close()
		}
		fmt.Fprintln(out)

		// Step 4: detector
		fmt.Fprintln(out, infoStyle.Render("Step 4: Checking face detector..."))
		detector := env.cfg.Overlay.DetectorCommand
		switch {
		case len(detector) == 0 && env.cfg.Mode == internal.ModeFace:
			fail("No detector command", fmt.Errorf("face mode requires overlay.detector_command"))
		case len(detector) == 0:
			fmt.Fprintln(out, warningStyle.Render("⚠️  No detector command configured (face mode unavailable)"))
		default:
			if path, err := exec.LookPath(detector[0]); err != nil {
				if env.cfg.Mode == internal.ModeFace {
					fail("Detector command not found", err)
				} else {
					fmt.Fprintln(out, warningStyle.Render("⚠️  Detector command not found (face mode unavailable)"))
				}
			} else {
				fmt.Fprintln(out, successStyle.Render("✅ Detector command found"))
				if healthcheckVerbose {
					fmt.Fprintf(out, "   Command: %s %v\n", path, detector[1:])
				}
			}
		}
		fmt.Fprintln(out)

		// Summary
		fmt.Fprintln(out, sectionStyle.Render("📊 Summary"))
		fmt.Fprintln(out)
		if failed > 0 {
			fmt.Fprintln(out, errorStyle.Render(fmt.Sprintf("❌ Health check failed (%d problem(s))", failed)))
			return fmt.Errorf("health check failed: %d problem(s)", failed)
		}
		fmt.Fprintln(out, successStyle.Render("✅ Health check passed!"))
		if count >= 0 {
			fmt.Fprintln(out, successStyle.Render(fmt.Sprintf("   • Recordings: %d in library", count)))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(healthcheckCmd)
	healthcheckCmd.Flags().BoolVarP(&healthcheckVerbose, "verbose", "v", false, "Show detailed diagnostic information")
}
