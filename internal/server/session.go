package server

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/jpeg"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/iksnae/screen-session/internal"
)

// SessionController is the capture session surface the server drives
type SessionController interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) (*internal.Recording, error)
	State() internal.SessionState
	Mode() internal.Mode
	Elapsed() time.Duration
	Preview() *image.RGBA
	Subscribe() (<-chan internal.SessionEvent, func())
}

type sessionStatus struct {
	State     string        `json:"state"`
	Mode      internal.Mode `json:"mode"`
	ElapsedMS int64         `json:"elapsed_ms"`
}

func (s *Server) status() sessionStatus {
	return sessionStatus{
		State:     s.session.State().String(),
		Mode:      s.session.Mode(),
		ElapsedMS: s.session.Elapsed().Milliseconds(),
	}
}

// sessionState handles GET /api/session
func (s *Server) sessionState(c *gin.Context) {
	ok(c, s.status())
}

// startSession handles POST /api/session/start. Acquisition is tied to the request;
// the recording itself outlives it.
func (s *Server) startSession(c *gin.Context) {
	err := s.session.Start(c.Request.Context())
	if err == nil {
		created(c, s.status())
		return
	}

	var (
		acqErr *internal.AcquireError
		detErr *internal.DetectorError
		encErr *internal.EncoderError
	)
	switch {
	case errors.Is(err, internal.ErrSessionActive):
		fail(c, http.StatusConflict, err.Error())
	case errors.As(err, &acqErr) && acqErr.PermissionDenied():
		fail(c, http.StatusForbidden, err.Error())
	case errors.As(err, &acqErr) && acqErr.Reason == internal.ReasonCancelled:
		fail(c, http.StatusConflict, err.Error())
	case errors.As(err, &acqErr), errors.As(err, &detErr), errors.As(err, &encErr):
		s.log.Warn("session start failed", zap.Error(err))
		fail(c, http.StatusServiceUnavailable, err.Error())
	default:
		s.log.Error("session start failed", zap.Error(err))
		fail(c, http.StatusInternalServerError, err.Error())
	}
}

// stopSession handles POST /api/session/stop
func (s *Server) stopSession(c *gin.Context) {
	rec, err := s.session.Stop(context.WithoutCancel(c.Request.Context()))
	switch {
	case errors.Is(err, internal.ErrNotRecording):
		fail(c, http.StatusConflict, err.Error())
	case err != nil:
		s.log.Error("session stop failed", zap.Error(err))
		fail(c, http.StatusInternalServerError, err.Error())
	case rec == nil:
		// stopped during acquisition, nothing recorded
		ok(c, s.status())
	default:
		ok(c, rec)
	}
}

// sessionPreview handles GET /api/session/preview.jpg
func (s *Server) sessionPreview(c *gin.Context) {
	frame := s.session.Preview()
	if frame == nil {
		fail(c, http.StatusNotFound, "no preview available")
		return
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, frame, &jpeg.Options{Quality: 75}); err != nil {
		fail(c, http.StatusInternalServerError, "failed to encode preview")
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/jpeg", buf.Bytes())
}
