package cmd

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/iksnae/screen-session/internal"
)

// executeCommand runs the root command with args and fresh flag values
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.PersistentFlags().VisitAll(reset)
	cmd.Flags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

// libraryArgs points a command at an isolated library and a config file that does not exist
func libraryArgs(dir string) []string {
	return []string{"--storage", dir, "--config", filepath.Join(dir, "missing.yaml")}
}

type seedRecording struct {
	kind  internal.Mode
	data  string
	thumb []byte
}

// seedLibrary creates recordings.db in a temp dir and returns the dir and stored recordings
func seedLibrary(t *testing.T, seeds ...seedRecording) (string, []*internal.Recording) {
	t.Helper()
	dir := t.TempDir()
	store, err := internal.OpenStorage(filepath.Join(dir, "recordings.db"))
	if err != nil {
		t.Fatalf("OpenStorage() error = %v", err)
	}
	defer func() { _ = store.Close() }()

	recs := make([]*internal.Recording, 0, len(seeds))
	for _, s := range seeds {
		rec := internal.CreateTestRecording(s.kind, []byte(s.data))
		if err := store.Save(context.Background(), rec, s.thumb); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
		recs = append(recs, rec)
	}
	return dir, recs
}

func openLibrary(t *testing.T, dir string) *internal.Storage {
	t.Helper()
	store, err := internal.OpenStorage(filepath.Join(dir, "recordings.db"))
	if err != nil {
		t.Fatalf("OpenStorage() error = %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// withLibrary appends the isolated library flags to a command line
func withLibrary(dir string, cmdline ...string) []string {
	out := append([]string{}, cmdline...)
	return append(out, libraryArgs(dir)...)
}
