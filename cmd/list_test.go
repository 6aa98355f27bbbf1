package cmd

import (
	"encoding/json"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/iksnae/screen-session/internal"
)

func TestListCommand(t *testing.T) {
	t.Run("empty library", func(t *testing.T) {
		dir := t.TempDir()
		out, err := executeCommand(t, withLibrary(dir, "list")...)
		if err != nil {
			t.Fatalf("list error = %v", err)
		}
		if !strings.Contains(out, "No recordings found") {
			t.Errorf("Unexpected output:\n%s", out)
		}
	})

	t.Run("table", func(t *testing.T) {
		dir, recs := seedLibrary(t,
			seedRecording{kind: internal.ModeScreen, data: "video", thumb: []byte{1}},
			seedRecording{kind: internal.ModeAudio, data: "audio"},
		)
		out, err := executeCommand(t, withLibrary(dir, "list")...)
		if err != nil {
			t.Fatalf("list error = %v", err)
		}
		if !strings.Contains(out, "Found 2 recording(s)") {
			t.Errorf("Missing count:\n%s", out)
		}
		for _, rec := range recs {
			if !strings.Contains(out, strconv.FormatInt(rec.ID, 10)) {
				t.Errorf("Missing id %d:\n%s", rec.ID, out)
			}
		}
		if strings.Index(out, strconv.FormatInt(recs[1].ID, 10)) > strings.Index(out, "screen") {
			t.Error("Expected newest recording first")
		}
	})

	t.Run("json", func(t *testing.T) {
		dir, recs := seedLibrary(t, seedRecording{kind: internal.ModeScreen, data: "video"})
		out, err := executeCommand(t, withLibrary(dir, "list", "--format", "json")...)
		if err != nil {
			t.Fatalf("list error = %v", err)
		}
		var doc struct {
			Count      int `json:"count"`
			Recordings []struct {
				ID   int64  `json:"id"`
				Type string `json:"type"`
			} `json:"recordings"`
		}
		if err := json.Unmarshal([]byte(out), &doc); err != nil {
			t.Fatalf("Output is not JSON: %v\n%s", err, out)
		}
		if doc.Count != 1 || doc.Recordings[0].ID != recs[0].ID || doc.Recordings[0].Type != "screen" {
			t.Errorf("Unexpected document: %+v", doc)
		}
	})

	t.Run("invalid format", func(t *testing.T) {
		dir := t.TempDir()
		if _, err := executeCommand(t, withLibrary(dir, "list", "--format", "csv")...); err == nil {
			t.Error("Expected error for unsupported format")
		}
	})
}

func TestFormatRecorded(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.Local)
	tests := []struct {
		name string
		t    time.Time
		want string
	}{
		{"today", now.Add(-time.Hour), "Today 11:00"},
		{"this week", now.Add(-72 * time.Hour), "Wed 12:00"},
		{"this year", now.Add(-30 * 24 * time.Hour), "May 16 12:00"},
		{"long ago", now.AddDate(-2, 0, 0), "2022-06-15"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatRecorded(tt.t, now); got != tt.want {
				t.Errorf("formatRecorded() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseRecordingID(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"1700000000000", 1700000000000, false},
		{"0", 0, true},
		{"-5", 0, true},
		{"abc", 0, true},
	}
	for _, tt := range tests {
		got, err := parseRecordingID(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("parseRecordingID(%q) = %d, %v", tt.in, got, err)
		}
	}
}
