package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/iksnae/screen-session/internal"
	"github.com/iksnae/screen-session/internal/export"
	"github.com/spf13/cobra"
)

var (
	indexFormat string
	outputDir   string
	skipMedia   bool
)

// exportCmd represents the export command
var exportCmd = &cobra.Command{
	Use:   "export [recording-id...]",
	Short: "Export recordings and a library index to a directory",
	Long: `Export recordings to a directory. Each recording is written as
recording_<id>.<ext> next to thumbnail_<id>.jpg when it has one, and an index of
the exported recordings is written as recordings.<ext> (jsonl, md, yaml, json).

Without ids every recording is exported. Use 'screen-session list' to see ids.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		exporter, err := export.NewExporter(indexFormat)
		if err != nil {
			return err
		}

		ids := make([]int64, 0, len(args))
		for _, arg := range args {
			id, err := parseRecordingID(arg)
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}

		env, err := loadEnvironment()
		if err != nil {
			return err
		}
		store, err := env.openLibrary()
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		ctx := cmd.Context()
		recs, err := selectRecordings(ctx, store, ids)
		if err != nil {
			return err
		}

		if err := os.MkdirAll(outputDir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}

		if !skipMedia {
			err = internal.ShowProgress(ctx, fmt.Sprintf("Exporting %d recording(s) to %s", len(recs), outputDir), func() error {
				for _, rec := range recs {
					if err := exportRecording(ctx, store, rec, outputDir); err != nil {
						return err
					}
				}
				return nil
			})
			if err != nil {
				return err
			}
		}

		indexPath := filepath.Join(outputDir, "recordings."+exporter.Extension())
		if err := writeIndex(exporter, internal.NewRecordingIndex(recs, env.paths.DatabasePath), indexPath); err != nil {
			return err
		}

		internal.PrintSuccess(fmt.Sprintf("Export complete: %d recording(s) exported to %s", len(recs), outputDir))
		return nil
	},
}

// selectRecordings returns the listed recordings, or all of them when ids is empty
func selectRecordings(ctx context.Context, store *internal.Storage, ids []int64) ([]*internal.Recording, error) {
	if len(ids) == 0 {
		return store.List(ctx)
	}
	recs := make([]*internal.Recording, 0, len(ids))
	for _, id := range ids {
		rec, err := store.Get(ctx, id)
		if errors.Is(err, internal.ErrNotFound) {
			return nil, fmt.Errorf("recording not found: %d (use 'screen-session list' to see available recordings)", id)
		}
		if err != nil {
			return nil, err
		}
		rec.Data = nil
		recs = append(recs, rec)
	}
	return recs, nil
}

func exportRecording(ctx context.Context, store *internal.Storage, meta *internal.Recording, dir string) error {
	rec, err := store.Get(ctx, meta.ID)
	if err != nil {
		return err
	}
	path := filepath.Join(dir, rec.FileName())
	if err := os.WriteFile(path, rec.Data, 0644); err != nil {
		return &internal.ExportError{Path: path, Err: err}
	}
	internal.LogDebug("Wrote %s (%s)", path, internal.FormatSize(rec.Size))

	thumb, err := store.Thumbnail(ctx, rec.ID)
	switch {
	case errors.Is(err, internal.ErrNotFound):
		return nil
	case err != nil:
		return err
	}
	thumbPath := filepath.Join(dir, fmt.Sprintf("thumbnail_%d.jpg", rec.ID))
	if err := os.WriteFile(thumbPath, thumb.Image, 0644); err != nil {
		return &internal.ExportError{Path: thumbPath, Err: err}
	}
	return nil
}

func writeIndex(exporter export.Exporter, index *internal.RecordingIndex, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return &internal.ExportError{Path: path, Err: err}
	}
	if err := exporter.Export(index, file); err != nil {
		_ = file.Close()
		return &internal.ExportError{Path: path, Err: err}
	}
	if err := file.Close(); err != nil {
		return &internal.ExportError{Path: path, Err: err}
	}
	return nil
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVarP(&indexFormat, "index-format", "f", "json", "Index format (jsonl, md, yaml, json)")
	exportCmd.Flags().StringVarP(&outputDir, "out", "o", "./exports", "Output directory")
	exportCmd.Flags().BoolVar(&skipMedia, "index-only", false, "Write only the index, not the recordings")
}
