package internal

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	"time"

	xdraw "golang.org/x/image/draw"
)

// FrameSource returns the current picture or nil when none is available yet
type FrameSource func() image.Image

const thumbnailPoll = 20 * time.Millisecond

// ExtractThumbnail scales the first available frame from src to a fixed-size JPEG.
// It gives up after cfg.Wait so finalization never hangs on a missing frame.
func ExtractThumbnail(ctx context.Context, src FrameSource, cfg ThumbnailConfig) ([]byte, error) {
	if src == nil {
		return nil, &ThumbnailError{Reason: "no frame source"}
	}
	wait := cfg.Wait
	if wait <= 0 {
		wait = 2 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	ticker := time.NewTicker(thumbnailPoll)
	defer ticker.Stop()

	for {
		if frame := src(); frame != nil && !frame.Bounds().Empty() {
			return encodeThumbnail(frame, cfg)
		}
		select {
		case <-ctx.Done():
			return nil, &ThumbnailError{Reason: "no frame available", Err: ctx.Err()}
		case <-ticker.C:
		}
	}
}

func encodeThumbnail(frame image.Image, cfg ThumbnailConfig) ([]byte, error) {
	w, h := cfg.Width, cfg.Height
	if w <= 0 || h <= 0 {
		w, h = 320, 180
	}
	quality := cfg.Quality
	if quality <= 0 || quality > 100 {
		quality = jpeg.DefaultQuality
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), frame, frame.Bounds(), xdraw.Src, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: quality}); err != nil {
		return nil, &ThumbnailError{Reason: "encode", Err: err}
	}
	return buf.Bytes(), nil
}
