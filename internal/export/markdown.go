package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/iksnae/screen-session/internal"
)

// MarkdownExporter exports the index as a Markdown table
type MarkdownExporter struct{}

// Export writes index as Markdown
func (e *MarkdownExporter) Export(index *internal.RecordingIndex, w io.Writer) error {
	_, _ = fmt.Fprintf(w, "# Recordings\n\n")
	_, _ = fmt.Fprintf(w, "**Generated:** %s  \n", index.GeneratedAt.UTC().Format("2006-01-02 15:04:05 UTC"))
	if index.Database != "" {
		_, _ = fmt.Fprintf(w, "**Database:** %s  \n", escapeCell(index.Database))
	}
	_, _ = fmt.Fprintf(w, "**Count:** %d\n\n", len(index.Recordings))

	if len(index.Recordings) == 0 {
		_, _ = fmt.Fprintf(w, "_No recordings._\n")
		return nil
	}

	_, _ = fmt.Fprintf(w, "| ID | Recorded | Type | Format | Size | Thumbnail | File |\n")
	_, _ = fmt.Fprintf(w, "|---:|---|---|---|---:|:---:|---|\n")
	for _, r := range index.Recordings {
		thumb := "no"
		if r.HasThumbnail {
			thumb = "yes"
		}
		_, err := fmt.Fprintf(w, "| %d | %s | %s | %s | %s | %s | `%s` |\n",
			r.ID,
			r.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
			r.Kind,
			escapeCell(r.MimeType),
			internal.FormatSize(r.Size),
			thumb,
			r.FileName())
		if err != nil {
			return err
		}
	}
	return nil
}

// escapeCell keeps a value from breaking the table layout
func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	return strings.ReplaceAll(s, "\n", " ")
}

// Extension returns the file extension for this format
func (e *MarkdownExporter) Extension() string {
	return "md"
}
