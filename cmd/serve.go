package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/iksnae/screen-session/internal"
	"github.com/iksnae/screen-session/internal/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	serveAddr      string
	serveNoCapture bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the library over HTTP with recording controls",
	Long: `Run a local HTTP server for the recording library.

  GET    /api/recordings                 list, newest first
  GET    /api/recordings/:id             metadata
  GET    /api/recordings/:id/media       play (range requests supported)
  GET    /api/recordings/:id/download    download as recording_<id>.<ext>
  GET    /api/recordings/:id/thumbnail   thumbnail or placeholder
  DELETE /api/recordings/:id             delete one
  DELETE /api/recordings                 delete all
  GET    /api/session                    capture state
  POST   /api/session/start              start recording
  POST   /api/session/stop               stop and save
  GET    /api/session/preview.jpg        current composite frame
  GET    /api/session/events             websocket of session events

--no-capture serves the library only.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := loadEnvironment()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("addr") {
			env.cfg.Server.Addr = serveAddr
		}

		store, err := env.openLibrary()
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		srv, session, err := newServer(env, store, !serveNoCapture)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		internal.PrintInfo(fmt.Sprintf("Serving %s on http://%s", env.paths.DatabasePath, env.cfg.Server.Addr))
		runErr := srv.Run(ctx)

		if session != nil && session.State() != internal.SessionIdle {
			internal.LogInfo("Saving the active recording before exit")
			stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if rec, err := session.Stop(stopCtx); err != nil {
				internal.LogWarn("Failed to save active recording: %v", err)
			} else if rec != nil {
				internal.PrintSuccess(fmt.Sprintf("Saved recording %d", rec.ID))
			}
		}
		return runErr
	},
}

// newServer builds the HTTP server. With capture enabled the config must be valid and
// a capture session is attached.
func newServer(env *environment, store *internal.Storage, capture bool) (*server.Server, *internal.CaptureSession, error) {
	var (
		session *internal.CaptureSession
		ctl     server.SessionController
	)
	if capture {
		if err := env.cfg.Validate(); err != nil {
			return nil, nil, fmt.Errorf("invalid configuration: %w", err)
		}
		session = newCaptureSession(env.cfg, store)
		ctl = session
	}

	srv := server.New(store, ctl, server.Options{
		Addr:     env.cfg.Server.Addr,
		Database: env.paths.DatabasePath,
		Logger:   internal.Logger().With(zap.String("db", env.paths.DatabasePath)),
	})
	return srv, session, nil
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "127.0.0.1:8787", "Listen address")
	serveCmd.Flags().BoolVar(&serveNoCapture, "no-capture", false, "Serve the library without recording controls")
}
