package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/iksnae/screen-session/internal"
	"github.com/spf13/cobra"
)

var (
	showOutput string
)

var (
	// Styles for show command
	recordingHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("212")).
				Padding(0, 1).
				MarginBottom(1)

	fieldStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")).
			Bold(true).
			Width(12)

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255"))
)

// showCmd represents the show command
var showCmd = &cobra.Command{
	Use:   "show <recording-id>",
	Short: "Show details of one recording",
	Long: `Display the metadata of a recording. With --output the artifact itself is
written to the given file ("-" for stdout).`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseRecordingID(args[0])
		if err != nil {
			return err
		}

		env, err := loadEnvironment()
		if err != nil {
			return err
		}
		store, err := env.openLibrary()
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		rec, err := store.Get(cmd.Context(), id)
		if errors.Is(err, internal.ErrNotFound) {
			return fmt.Errorf("recording not found: %d (use 'screen-session list' to see available recordings)", id)
		}
		if err != nil {
			return err
		}

		switch showOutput {
		case "":
			displayRecording(cmd.OutOrStdout(), rec)
			return nil
		case "-":
			_, err := cmd.OutOrStdout().Write(rec.Data)
			return err
		default:
			if err := os.WriteFile(showOutput, rec.Data, 0644); err != nil {
				return fmt.Errorf("failed to write %s: %w", showOutput, err)
			}
			internal.PrintSuccess(fmt.Sprintf("Wrote %s (%s) to %s", rec.FileName(), internal.FormatSize(rec.Size), showOutput))
			return nil
		}
	},
}

func displayRecording(out io.Writer, rec *internal.Recording) {
	fmt.Fprintln(out, recordingHeaderStyle.Render("📼 "+rec.Title()))

	thumb := "no"
	if rec.HasThumbnail {
		thumb = "yes"
	}
	fields := []struct{ name, value string }{
		{"ID", fmt.Sprintf("%d", rec.ID)},
		{"Type", string(rec.Kind)},
		{"MIME type", rec.MimeType},
		{"Size", fmt.Sprintf("%s (%d bytes)", internal.FormatSize(rec.Size), rec.Size)},
		{"Created", rec.CreatedAt.Local().Format("2006-01-02 15:04:05 MST")},
		{"File name", rec.FileName()},
		{"Thumbnail", thumb},
	}
	for _, f := range fields {
		fmt.Fprintln(out, lipgloss.JoinHorizontal(lipgloss.Top, fieldStyle.Render(f.name), valueStyle.Render(f.value)))
	}
}

func init() {
	rootCmd.AddCommand(showCmd)
	showCmd.Flags().StringVarP(&showOutput, "output", "o", "", "Write the recording bytes to this file (\"-\" for stdout)")
}
