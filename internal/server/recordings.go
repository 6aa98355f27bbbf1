package server

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/iksnae/screen-session/internal"
)

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		fail(c, http.StatusBadRequest, "invalid recording id")
		return 0, false
	}
	return id, true
}

func (s *Server) storeError(c *gin.Context, err error, what string) {
	if errors.Is(err, internal.ErrNotFound) {
		fail(c, http.StatusNotFound, "recording not found")
		return
	}
	s.log.Error(what, zap.Error(err))
	_ = c.Error(err)
	fail(c, http.StatusInternalServerError, what)
}

// listRecordings handles GET /api/recordings, newest first and without media bytes
func (s *Server) listRecordings(c *gin.Context) {
	recs, err := s.lib.List(c.Request.Context())
	if err != nil {
		s.storeError(c, err, "failed to list recordings")
		return
	}
	ok(c, internal.NewRecordingIndex(recs, s.database))
}

// getRecording handles GET /api/recordings/:id
func (s *Server) getRecording(c *gin.Context) {
	id, valid := parseID(c)
	if !valid {
		return
	}
	rec, err := s.lib.Get(c.Request.Context(), id)
	if err != nil {
		s.storeError(c, err, "failed to load recording")
		return
	}
	ok(c, rec)
}

// serveMedia handles GET /api/recordings/:id/media. Range requests are supported so
// players can seek; ?download=1 asks the browser to save the file.
func (s *Server) serveMedia(c *gin.Context) {
	dl, _ := strconv.ParseBool(c.Query("download"))
	s.serveArtifact(c, dl)
}

// downloadMedia handles GET /api/recordings/:id/download
func (s *Server) downloadMedia(c *gin.Context) {
	s.serveArtifact(c, true)
}

func (s *Server) serveArtifact(c *gin.Context, attach bool) {
	id, valid := parseID(c)
	if !valid {
		return
	}
	rec, err := s.lib.Get(c.Request.Context(), id)
	if err != nil {
		s.storeError(c, err, "failed to load recording")
		return
	}

	c.Header("Content-Type", rec.MimeType)
	disposition := "inline"
	if attach {
		disposition = "attachment"
	}
	c.Header("Content-Disposition", fmt.Sprintf("%s; filename=%q", disposition, rec.FileName()))
	http.ServeContent(c.Writer, c.Request, rec.FileName(), rec.CreatedAt, bytes.NewReader(rec.Data))
}

// serveThumbnail handles GET /api/recordings/:id/thumbnail, falling back to the placeholder
func (s *Server) serveThumbnail(c *gin.Context) {
	id, valid := parseID(c)
	if !valid {
		return
	}
	var img []byte
	thumb, err := s.lib.Thumbnail(c.Request.Context(), id)
	switch {
	case err == nil:
		img = thumb.Image
	case errors.Is(err, internal.ErrNotFound):
	default:
		s.storeError(c, err, "failed to load thumbnail")
		return
	}
	data, contentType := internal.ThumbnailOrPlaceholder(img)
	c.Data(http.StatusOK, contentType, data)
}

// deleteRecording handles DELETE /api/recordings/:id
func (s *Server) deleteRecording(c *gin.Context) {
	id, valid := parseID(c)
	if !valid {
		return
	}
	if err := s.lib.Delete(c.Request.Context(), id); err != nil {
		s.storeError(c, err, "failed to delete recording")
		return
	}
	s.log.Info("recording deleted", zap.Int64("id", id))
	ok(c, gin.H{"deleted": id})
}

// deleteAll handles DELETE /api/recordings
func (s *Server) deleteAll(c *gin.Context) {
	n, err := s.lib.DeleteAll(c.Request.Context())
	if err != nil {
		s.storeError(c, err, "failed to delete recordings")
		return
	}
	s.log.Info("all recordings deleted", zap.Int64("count", n))
	ok(c, gin.H{"deleted": n})
}
