package cmd

import (
	"errors"
	"fmt"

	"github.com/iksnae/screen-session/internal"
	"github.com/iksnae/screen-session/internal/publish"
	"github.com/spf13/cobra"
)

var (
	publishBucket   string
	publishPrefix   string
	publishEndpoint string
	publishRegion   string
)

var publishCmd = &cobra.Command{
	Use:   "publish <recording-id>",
	Short: "Upload a recording and its thumbnail to S3",
	Long: `Upload a recording to S3 (or an S3-compatible server such as MinIO) as
<prefix>/<id>.<ext>, with its thumbnail as <prefix>/<id>_thumbnail.jpg.

Bucket, region, prefix and endpoint come from the publish section of the config,
SCREEN_SESSION_S3_* variables, or the flags below. Credentials come from the config,
AWS_ACCESS_KEY_ID/AWS_SECRET_ACCESS_KEY, or the default AWS credential chain.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseRecordingID(args[0])
		if err != nil {
			return err
		}
		env, err := loadEnvironment()
		if err != nil {
			return err
		}

		cfg := env.cfg.Publish
		flags := cmd.Flags()
		if flags.Changed("bucket") {
			cfg.Bucket = publishBucket
		}
		if flags.Changed("prefix") {
			cfg.Prefix = publishPrefix
		}
		if flags.Changed("endpoint") {
			cfg.Endpoint = publishEndpoint
		}
		if flags.Changed("region") {
			cfg.Region = publishRegion
		}
		if cfg.Bucket == "" {
			return errors.New("no bucket configured (set publish.bucket, SCREEN_SESSION_S3_BUCKET or --bucket)")
		}

		store, err := env.openLibrary()
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		ctx := cmd.Context()
		rec, err := store.Get(ctx, id)
		if errors.Is(err, internal.ErrNotFound) {
			return fmt.Errorf("recording not found: %d", id)
		}
		if err != nil {
			return err
		}
		var thumb []byte
		if t, err := store.Thumbnail(ctx, id); err == nil {
			thumb = t.Image
		} else if !errors.Is(err, internal.ErrNotFound) {
			return err
		}

		pub, err := publish.NewPublisher(ctx, cfg, internal.Logger())
		if err != nil {
			return err
		}

		var res *publish.Result
		err = internal.ShowProgress(ctx, fmt.Sprintf("Uploading recording %d (%s) to s3://%s", id, internal.FormatSize(rec.Size), cfg.Bucket), func() error {
			var uploadErr error
			res, uploadErr = pub.Publish(ctx, rec, thumb)
			return uploadErr
		})
		if err != nil {
			return err
		}

		internal.PrintSuccess(fmt.Sprintf("Published s3://%s/%s", res.Bucket, res.MediaKey))
		fmt.Fprintln(cmd.OutOrStdout(), res.MediaURL)
		if res.ThumbnailURL != "" {
			fmt.Fprintln(cmd.OutOrStdout(), res.ThumbnailURL)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(publishCmd)
	publishCmd.Flags().StringVar(&publishBucket, "bucket", "", "Destination bucket")
	publishCmd.Flags().StringVar(&publishPrefix, "prefix", "recordings", "Key prefix")
	publishCmd.Flags().StringVar(&publishEndpoint, "endpoint", "", "Custom S3 endpoint (path-style), e.g. http://localhost:9000")
	publishCmd.Flags().StringVar(&publishRegion, "region", "us-east-1", "Bucket region")
}
