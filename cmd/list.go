package cmd

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/iksnae/screen-session/internal"
	"github.com/iksnae/screen-session/internal/export"
	"github.com/spf13/cobra"
)

var (
	listFormat string
)

var (
	// Styles
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62")).
			Padding(0, 1)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212"))

	idStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("240")).
		Italic(true)

	sizeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	dateStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	kindStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("135")).
			Italic(true)
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List recordings, newest first",
	Long: `List every recording in the library, newest first.

The default table is meant for people; --format json, jsonl, yaml or md prints the
same index the export command writes.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := loadEnvironment()
		if err != nil {
			return err
		}
		store, err := env.openLibrary()
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		recs, err := store.List(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to list recordings: %w", err)
		}

		if listFormat == "" || listFormat == "table" {
			displayRecordings(cmd.OutOrStdout(), recs)
			return nil
		}
		exporter, err := export.NewExporter(listFormat)
		if err != nil {
			return err
		}
		return exporter.Export(internal.NewRecordingIndex(recs, env.paths.DatabasePath), cmd.OutOrStdout())
	},
}

func displayRecordings(out io.Writer, recs []*internal.Recording) {
	if len(recs) == 0 {
		fmt.Fprintln(out, headerStyle.Render("📼 No recordings found"))
		return
	}

	fmt.Fprintln(out, headerStyle.Render(fmt.Sprintf("📼 Found %d recording(s)", len(recs))))
	fmt.Fprintln(out)

	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	_, _ = fmt.Fprintln(w, titleStyle.Render("ID")+"\t"+titleStyle.Render("Type")+"\t"+titleStyle.Render("Size")+"\t"+titleStyle.Render("Recorded")+"\t"+titleStyle.Render("Thumb")+"\t")
	_, _ = fmt.Fprintln(w, strings.Repeat("─", 80))

	for _, rec := range recs {
		thumb := dateStyle.Render("-")
		if rec.HasThumbnail {
			thumb = sizeStyle.Render("yes")
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t\n",
			idStyle.Render(strconv.FormatInt(rec.ID, 10)),
			kindStyle.Render(string(rec.Kind)),
			sizeStyle.Render(internal.FormatSize(rec.Size)),
			dateStyle.Render(formatRecorded(rec.CreatedAt, time.Now())),
			thumb)
	}

	_ = w.Flush()
	fmt.Fprintln(out)
	fmt.Fprintln(out, idStyle.Render("💡 Tip: Use the ID (e.g., ")+
		lipgloss.NewStyle().Foreground(lipgloss.Color("62")).Render(strconv.FormatInt(recs[0].ID, 10))+
		idStyle.Render(") with `screen-session show <id>`"))
}

// formatRecorded picks a short date form relative to now
func formatRecorded(t, now time.Time) string {
	t = t.Local()
	diff := now.Sub(t)
	switch {
	case diff < 24*time.Hour && t.YearDay() == now.Local().YearDay():
		return t.Format("Today 15:04")
	case diff < 7*24*time.Hour:
		return t.Format("Mon 15:04")
	case diff < 365*24*time.Hour:
		return t.Format("Jan 02 15:04")
	default:
		return t.Format("2006-01-02")
	}
}

func parseRecordingID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid recording id %q (use 'screen-session list' to see ids)", s)
	}
	return id, nil
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().StringVarP(&listFormat, "format", "f", "table", "Output format (table, json, jsonl, yaml, md)")
}
