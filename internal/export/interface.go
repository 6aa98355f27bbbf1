package export

import (
	"fmt"
	"io"

	"github.com/iksnae/screen-session/internal"
)

// Exporter writes a recording index in one format
type Exporter interface {
	Export(index *internal.RecordingIndex, w io.Writer) error
	Extension() string
}

// NewExporter creates a new exporter based on format
func NewExporter(format string) (Exporter, error) {
	switch format {
	case "jsonl":
		return &JSONLExporter{}, nil
	case "md", "markdown":
		return &MarkdownExporter{}, nil
	case "yaml", "yml":
		return &YAMLExporter{}, nil
	case "json":
		return &JSONExporter{}, nil
	default:
		return nil, &internal.ExportError{Format: format,
			Err: fmt.Errorf("unsupported format (supported: jsonl, md, yaml, json)")}
	}
}

// entry is the per-recording record shared by the line-oriented formats
type entry struct {
	ID           int64  `json:"id" yaml:"id"`
	Type         string `json:"type" yaml:"type"`
	MimeType     string `json:"mime_type" yaml:"mime_type"`
	Size         int64  `json:"size" yaml:"size"`
	CreatedAt    string `json:"created_at" yaml:"created_at"`
	FileName     string `json:"file_name" yaml:"file_name"`
	HasThumbnail bool   `json:"has_thumbnail" yaml:"has_thumbnail"`
}

func newEntry(r *internal.Recording) entry {
	return entry{
		ID:           r.ID,
		Type:         string(r.Kind),
		MimeType:     r.MimeType,
		Size:         r.Size,
		CreatedAt:    r.CreatedAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		FileName:     r.FileName(),
		HasThumbnail: r.HasThumbnail,
	}
}
