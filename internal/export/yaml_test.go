package export

import (
	"bytes"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestYAMLExporter_Export(t *testing.T) {
	var buf bytes.Buffer
	exporter := &YAMLExporter{}
	if err := exporter.Export(testIndex(), &buf); err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	var doc struct {
		Database   string  `yaml:"database"`
		Recordings []entry `yaml:"recordings"`
	}
	if err := yaml.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("Export() produced invalid YAML: %v", err)
	}
	if doc.Database != "/tmp/recordings.db" {
		t.Errorf("Database = %q", doc.Database)
	}
	if len(doc.Recordings) != 2 {
		t.Fatalf("Expected 2 recordings, got %d", len(doc.Recordings))
	}
	if doc.Recordings[1].MimeType != "audio/webm" || doc.Recordings[1].Size != 512 {
		t.Errorf("Unexpected second entry %+v", doc.Recordings[1])
	}
}

func TestYAMLExporter_EmptyIndex(t *testing.T) {
	var buf bytes.Buffer
	exporter := &YAMLExporter{}
	if err := exporter.Export(emptyIndex(), &buf); err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if !bytes.Contains(buf.Bytes(), []byte("recordings: []")) {
		t.Errorf("Expected empty list, got %q", buf.String())
	}
	if bytes.Contains(buf.Bytes(), []byte("database:")) {
		t.Errorf("Empty database should be omitted, got %q", buf.String())
	}
}

func TestYAMLExporter_Extension(t *testing.T) {
	exporter := &YAMLExporter{}
	if got := exporter.Extension(); got != "yaml" {
		t.Errorf("Extension() = %v, want yaml", got)
	}
}
