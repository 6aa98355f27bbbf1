package export

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/iksnae/screen-session/internal"
)

// JSONLExporter exports one recording per line
type JSONLExporter struct{}

// Export writes index as JSON lines
func (e *JSONLExporter) Export(index *internal.RecordingIndex, w io.Writer) error {
	enc := json.NewEncoder(w)
	for _, r := range index.Recordings {
		if err := enc.Encode(newEntry(r)); err != nil {
			return fmt.Errorf("failed to encode recording %d: %w", r.ID, err)
		}
	}
	return nil
}

// Extension returns the file extension for this format
func (e *JSONLExporter) Extension() string {
	return "jsonl"
}
