package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/iksnae/screen-session/internal"
	"github.com/spf13/cobra"
)

var (
	recordMode     string
	recordDuration time.Duration
	recordFPS      int
	recordNoTimer  bool
)

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record until Ctrl+C or --duration elapses",
	Long: `Start a capture session and record until Ctrl+C, until --duration elapses,
or until a device or the encoder fails. The finished recording and its thumbnail
are saved to the library and the new recording id is printed.

Examples:
  screen-session record                           # screen + microphone
  screen-session record --mode face --fps 24      # with the camera overlay
  screen-session record --mode audio -d 1m        # one minute of audio`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := loadEnvironment()
		if err != nil {
			return err
		}
		if err := applyRecordFlags(cmd, &env.cfg); err != nil {
			return err
		}
		if err := env.cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		if _, err := internal.FFmpegAvailable(env.cfg.Encoder.FFmpegPath); err != nil {
			return fmt.Errorf("ffmpeg not found (%s): %w", env.cfg.Encoder.FFmpegPath, err)
		}

		store, err := env.openLibrary()
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		session := newCaptureSession(env.cfg, store)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		events, unsubscribe := session.Subscribe()
		defer unsubscribe()
		timerCtx, stopTimer := context.WithCancel(ctx)
		timerDone := make(chan struct{})
		go func() {
			defer close(timerDone)
			if recordNoTimer || !internal.IsTerminal(os.Stderr) {
				<-timerCtx.Done()
				return
			}
			for {
				select {
				case <-timerCtx.Done():
					return
				case ev, ok := <-events:
					if !ok {
						return
					}
					if ev.State == internal.SessionRecording.String() {
						internal.ShowRecordingTimer(timerCtx, os.Stderr, time.Second, session.Elapsed, func() string {
							return string(session.Mode())
						})
						return
					}
				}
			}
		}()

		internal.LogInfo("Recording %s (press Ctrl+C to stop)", env.cfg.Mode)
		rec, err := session.Record(ctx, recordDuration)
		stopTimer()
		<-timerDone

		var acqErr *internal.AcquireError
		switch {
		case errors.As(err, &acqErr) && acqErr.Reason == internal.ReasonCancelled:
			internal.PrintWarning("Recording cancelled before capture started")
			return nil
		case err != nil:
			return err
		case rec == nil:
			internal.PrintWarning("Nothing was recorded")
			return nil
		}

		internal.PrintSuccess(fmt.Sprintf("Saved recording %d (%s, %s)", rec.ID, rec.Kind, internal.FormatSize(rec.Size)))
		fmt.Fprintln(cmd.OutOrStdout(), rec.ID)
		return nil
	},
}

// applyRecordFlags overrides config values with the flags the user set
func applyRecordFlags(cmd *cobra.Command, cfg *internal.Config) error {
	if cmd.Flags().Changed("mode") {
		mode, err := internal.ParseMode(recordMode)
		if err != nil {
			return err
		}
		cfg.Mode = mode
	}
	if cmd.Flags().Changed("fps") {
		cfg.FPS = recordFPS
	}
	return nil
}

// newCaptureSession wires the ffmpeg devices and encoder, the detector process and
// the library into a capture session
func newCaptureSession(cfg internal.Config, store *internal.Storage) *internal.CaptureSession {
	logger := internal.Logger()
	return internal.NewCaptureSession(cfg, internal.SessionDeps{
		Devices:   internal.NewFFmpegDevices(cfg, logger),
		Encoder:   internal.NewFFmpegEncoder(cfg, logger),
		Detectors: internal.ProcessDetectorFactory(cfg.Overlay.DetectorCommand, logger),
		Store:     store,
		Logger:    logger,
	})
}

func init() {
	rootCmd.AddCommand(recordCmd)
	recordCmd.Flags().StringVarP(&recordMode, "mode", "m", "screen", "Capture mode (screen, face, audio)")
	recordCmd.Flags().DurationVarP(&recordDuration, "duration", "d", 0, "Stop after this long (0 records until Ctrl+C)")
	recordCmd.Flags().IntVar(&recordFPS, "fps", 60, "Frame rate of the composite video")
	recordCmd.Flags().BoolVar(&recordNoTimer, "no-timer", false, "Do not draw the elapsed-time line")
}
