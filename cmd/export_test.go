package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/iksnae/screen-session/internal"
)

func TestExportCommand(t *testing.T) {
	dir, recs := seedLibrary(t,
		seedRecording{kind: internal.ModeScreen, data: "video", thumb: []byte{0xff, 0xd8}},
		seedRecording{kind: internal.ModeAudio, data: "audio"},
	)

	t.Run("all recordings", func(t *testing.T) {
		out := t.TempDir()
		if _, err := executeCommand(t, withLibrary(dir, "export", "--out", out)...); err != nil {
			t.Fatalf("export error = %v", err)
		}

		files := map[string]string{
			fmt.Sprintf("recording_%d.mp4", recs[0].ID):  "video",
			fmt.Sprintf("recording_%d.webm", recs[1].ID): "audio",
			fmt.Sprintf("thumbnail_%d.jpg", recs[0].ID):  "\xff\xd8",
		}
		for name, want := range files {
			data, err := os.ReadFile(filepath.Join(out, name))
			if err != nil {
				t.Errorf("Missing %s: %v", name, err)
				continue
			}
			if string(data) != want {
				t.Errorf("%s = %q, want %q", name, data, want)
			}
		}
		if _, err := os.Stat(filepath.Join(out, fmt.Sprintf("thumbnail_%d.jpg", recs[1].ID))); !os.IsNotExist(err) {
			t.Error("Audio recording should have no thumbnail file")
		}

		raw, err := os.ReadFile(filepath.Join(out, "recordings.json"))
		if err != nil {
			t.Fatalf("Missing index: %v", err)
		}
		var doc struct {
			Count int `json:"count"`
		}
		if err := json.Unmarshal(raw, &doc); err != nil || doc.Count != 2 {
			t.Errorf("Index = %s, %v", raw, err)
		}
	})

	t.Run("selected recording with markdown index", func(t *testing.T) {
		out := t.TempDir()
		id := strconv.FormatInt(recs[1].ID, 10)
		if _, err := executeCommand(t, withLibrary(dir, "export", id, "--out", out, "--index-format", "md")...); err != nil {
			t.Fatalf("export error = %v", err)
		}
		entries, _ := os.ReadDir(out)
		if len(entries) != 2 {
			t.Errorf("Expected recording and index, got %d entries", len(entries))
		}
		index, err := os.ReadFile(filepath.Join(out, "recordings.md"))
		if err != nil || !strings.Contains(string(index), id) {
			t.Errorf("Index = %q, %v", index, err)
		}
	})

	t.Run("index only", func(t *testing.T) {
		out := t.TempDir()
		if _, err := executeCommand(t, withLibrary(dir, "export", "--out", out, "--index-only", "-f", "yaml")...); err != nil {
			t.Fatalf("export error = %v", err)
		}
		entries, _ := os.ReadDir(out)
		if len(entries) != 1 || entries[0].Name() != "recordings.yaml" {
			t.Errorf("Unexpected entries: %v", entries)
		}
	})

	t.Run("errors", func(t *testing.T) {
		tests := []struct {
			name string
			args []string
		}{
			{"invalid format", []string{"export", "--index-format", "invalid"}},
			{"unknown id", []string{"export", "42"}},
			{"invalid id", []string{"export", "x"}},
		}
		for _, tt := range tests {
			args := append(tt.args, "--out", t.TempDir())
			if _, err := executeCommand(t, withLibrary(dir, args...)...); err == nil {
				t.Errorf("%s: expected error", tt.name)
			}
		}
	})
}
