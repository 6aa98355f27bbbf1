package cmd

import (
	"errors"
	"fmt"

	"github.com/iksnae/screen-session/internal"
	"github.com/spf13/cobra"
)

var (
	deleteAll bool
)

var deleteCmd = &cobra.Command{
	Use:   "delete <recording-id>... | --all",
	Short: "Delete recordings and their thumbnails",
	Long: `Delete one or more recordings from the library. A recording's thumbnail is
removed with it. --all empties the library.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		switch {
		case deleteAll && len(args) > 0:
			return errors.New("pass recording ids or --all, not both")
		case !deleteAll && len(args) == 0:
			return errors.New("no recording ids given (use --all to delete everything)")
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
		if deleteAll {
			n, err := store.DeleteAll(ctx)
			if err != nil {
				return fmt.Errorf("failed to delete recordings: %w", err)
			}
			internal.PrintSuccess(fmt.Sprintf("Deleted %d recording(s)", n))
			return nil
		}

		var missing []int64
		for _, id := range ids {
			err := store.Delete(ctx, id)
			switch {
			case errors.Is(err, internal.ErrNotFound):
				missing = append(missing, id)
			case err != nil:
				return fmt.Errorf("failed to delete recording %d: %w", id, err)
			default:
				internal.LogInfo("Deleted recording %d", id)
			}
		}
		deleted := len(ids) - len(missing)
		if len(missing) > 0 {
			return fmt.Errorf("deleted %d recording(s); not found: %v", deleted, missing)
		}
		internal.PrintSuccess(fmt.Sprintf("Deleted %d recording(s)", deleted))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(deleteCmd)
	deleteCmd.Flags().BoolVar(&deleteAll, "all", false, "Delete every recording")
}
