package export

import (
	"io"

	"github.com/iksnae/screen-session/internal"
	"gopkg.in/yaml.v3"
)

// YAMLExporter exports the index in YAML format
type YAMLExporter struct{}

// Export writes index as YAML
func (e *YAMLExporter) Export(index *internal.RecordingIndex, w io.Writer) error {
	doc := struct {
		GeneratedAt string  `yaml:"generated_at"`
		Database    string  `yaml:"database,omitempty"`
		Recordings  []entry `yaml:"recordings"`
	}{
		GeneratedAt: index.GeneratedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		Database:    index.Database,
		Recordings:  make([]entry, 0, len(index.Recordings)),
	}
	for _, r := range index.Recordings {
		doc.Recordings = append(doc.Recordings, newEntry(r))
	}

	enc := yaml.NewEncoder(w)
	defer func() { _ = enc.Close() }()
	enc.SetIndent(2)
	return enc.Encode(doc)
}

// Extension returns the file extension for this format
func (e *YAMLExporter) Extension() string {
	return "yaml"
}
