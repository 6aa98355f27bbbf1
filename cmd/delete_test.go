package cmd

import (
	"context"
	"strconv"
	"testing"

	"github.com/iksnae/screen-session/internal"
)

func TestDeleteCommand(t *testing.T) {
	t.Run("single recording", func(t *testing.T) {
		dir, recs := seedLibrary(t,
			seedRecording{kind: internal.ModeScreen, data: "a", thumb: []byte{1}},
			seedRecording{kind: internal.ModeScreen, data: "b"},
		)
		if _, err := executeCommand(t, withLibrary(dir, "delete", strconv.FormatInt(recs[0].ID, 10))...); err != nil {
			t.Fatalf("delete error = %v", err)
		}
		store := openLibrary(t, dir)
		left, _ := store.List(context.Background())
		if len(left) != 1 || left[0].ID != recs[1].ID {
			t.Errorf("Remaining = %v", left)
		}
		if n, _ := store.CountThumbnails(context.Background(), recs[0].ID); n != 0 {
			t.Errorf("Thumbnail not removed: %d", n)
		}
	})

	t.Run("all", func(t *testing.T) {
		dir, _ := seedLibrary(t,
			seedRecording{kind: internal.ModeScreen, data: "a"},
			seedRecording{kind: internal.ModeAudio, data: "b"},
		)
		if _, err := executeCommand(t, withLibrary(dir, "delete", "--all")...); err != nil {
			t.Fatalf("delete --all error = %v", err)
		}
		left, _ := openLibrary(t, dir).List(context.Background())
		if len(left) != 0 {
			t.Errorf("Expected empty library, got %d", len(left))
		}
	})

	t.Run("errors", func(t *testing.T) {
		dir, recs := seedLibrary(t, seedRecording{kind: internal.ModeScreen, data: "a"})
		id := strconv.FormatInt(recs[0].ID, 10)
		tests := []struct {
			name string
			args []string
		}{
			{"no ids", []string{"delete"}},
			{"ids and all", []string{"delete", id, "--all"}},
			{"missing id", []string{"delete", "42"}},
			{"invalid id", []string{"delete", "abc"}},
		}
		for _, tt := range tests {
			if _, err := executeCommand(t, withLibrary(dir, tt.args...)...); err == nil {
				t.Errorf("%s: expected error", tt.name)
			}
		}
		left, _ := openLibrary(t, dir).List(context.Background())
		if len(left) != 1 {
			t.Errorf("Failed deletes must not remove recordings, %d left", len(left))
		}
	})
}
