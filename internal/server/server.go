// Package server exposes the recording library and the capture session over HTTP.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/iksnae/screen-session/internal"
)

// Library is the recording store the server reads and deletes from
type Library interface {
	List(ctx context.Context) ([]*internal.Recording, error)
	Get(ctx context.Context, id int64) (*internal.Recording, error)
	Thumbnail(ctx context.Context, recordingID int64) (*internal.Thumbnail, error)
	Delete(ctx context.Context, id int64) error
	DeleteAll(ctx context.Context) (int64, error)
}

// Options configure a Server
type Options struct {
	Addr     string
	Database string // shown in listings
	Logger   *zap.Logger
}

// Server serves the library API and, when a session is attached, recording controls
type Server struct {
	lib      Library
	session  SessionController
	log      *zap.Logger
	database string
	addr     string
	engine   *gin.Engine

	done     chan struct{}
	doneOnce sync.Once
}

// New builds the router. session may be nil, in which case the session routes are absent.
func New(lib Library, session SessionController, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		lib:      lib,
		session:  session,
		log:      logger.With(zap.String("component", "server")),
		database: opts.Database,
		addr:     opts.Addr,
		done:     make(chan struct{}),
	}
	s.engine = s.routes()
	return s
}

func (s *Server) routes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(s.log))

	router.GET("/health", func(c *gin.Context) { ok(c, gin.H{"status": "ok"}) })

	api := router.Group("/api")
	{
		api.GET("/recordings", s.listRecordings)
		api.DELETE("/recordings", s.deleteAll)
		api.GET("/recordings/:id", s.getRecording)
		api.DELETE("/recordings/:id", s.deleteRecording)
		api.GET("/recordings/:id/media", s.serveMedia)
		api.GET("/recordings/:id/download", s.downloadMedia)
		api.GET("/recordings/:id/thumbnail", s.serveThumbnail)

		if s.session != nil {
			api.GET("/session", s.sessionState)
			api.POST("/session/start", s.startSession)
			api.POST("/session/stop", s.stopSession)
			api.GET("/session/preview.jpg", s.sessionPreview)
			api.GET("/session/events", s.sessionEvents)
		}
	}
	return router
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on the configured address until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("server listening", zap.String("addr", ln.Addr().String()))
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		s.close()
		return err
	case <-ctx.Done():
	}

	s.close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.log.Error("server shutdown", zap.Error(err))
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.log.Info("server stopped")
	return nil
}

// close ends open event streams, which Shutdown does not wait for
func (s *Server) close() {
	s.doneOnce.Do(func() { close(s.done) })
}
