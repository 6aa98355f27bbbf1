package export

import (
	"encoding/json"
	"io"

	"github.com/iksnae/screen-session/internal"
)

// JSONExporter exports the index as one pretty-printed document
type JSONExporter struct{}

// Export writes index as JSON
func (e *JSONExporter) Export(index *internal.RecordingIndex, w io.Writer) error {
	doc := struct {
		GeneratedAt string  `json:"generated_at"`
		Database    string  `json:"database,omitempty"`
		Count       int     `json:"count"`
		Recordings  []entry `json:"recordings"`
	}{
		GeneratedAt: index.GeneratedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		Database:    index.Database,
		Count:       len(index.Recordings),
		Recordings:  make([]entry, 0, len(index.Recordings)),
	}
	for _, r := range index.Recordings {
		doc.Recordings = append(doc.Recordings, newEntry(r))
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

// Extension returns the file extension for this format
func (e *JSONExporter) Extension() string {
	return "json"
}
