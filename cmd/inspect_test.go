package cmd

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/iksnae/screen-session/internal"
)

func TestInspectCommand(t *testing.T) {
	dir, _ := seedLibrary(t,
		seedRecording{kind: internal.ModeScreen, data: "0123456789", thumb: []byte{1, 2, 3}},
	)
	dbPath := filepath.Join(dir, "recordings.db")

	t.Run("json", func(t *testing.T) {
		out, err := executeCommand(t, withLibrary(dir, "inspect", dbPath, "--format", "json")...)
		if err != nil {
			t.Fatalf("inspect error = %v", err)
		}
		var report DatabaseReport
		if err := json.Unmarshal([]byte(out), &report); err != nil {
			t.Fatalf("Output is not JSON: %v\n%s", err, out)
		}
		tables := map[string]TableInfo{}
		for _, tbl := range report.Tables {
			tables[tbl.Name] = tbl
		}
		rec, ok := tables["recordings"]
		if !ok || rec.Rows != 1 {
			t.Fatalf("recordings table = %+v", rec)
		}
		if got := rec.Sample[0]["data"]; got != "<10 bytes>" {
			t.Errorf("Blob rendered as %q", got)
		}
		if thumbs := tables["thumbnails"]; thumbs.Rows != 1 {
			t.Errorf("thumbnails rows = %d", thumbs.Rows)
		}
	})

	t.Run("text for configured library", func(t *testing.T) {
		out, err := executeCommand(t, withLibrary(dir, "inspect", "--sample", "0")...)
		if err != nil {
			t.Fatalf("inspect error = %v", err)
		}
		if !strings.Contains(out, "Table: recordings") || !strings.Contains(out, "id: INTEGER [PRIMARY KEY]") {
			t.Errorf("Unexpected output:\n%s", out)
		}
		if strings.Contains(out, "Sample Data") {
			t.Error("--sample 0 should skip sample rows")
		}
	})

	t.Run("missing library", func(t *testing.T) {
		if _, err := executeCommand(t, withLibrary(t.TempDir(), "inspect")...); err == nil {
			t.Error("Expected error for missing library")
		}
	})
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		in   interface{}
		want string
	}{
		{nil, "<NULL>"},
		{[]byte("abc"), "<3 bytes>"},
		{int64(42), "42"},
		{strings.Repeat("x", 250), strings.Repeat("x", 200) + "..."},
	}
	for _, tt := range tests {
		if got := formatValue(tt.in); got != tt.want {
			t.Errorf("formatValue(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
