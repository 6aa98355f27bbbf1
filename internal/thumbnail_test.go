package internal

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"sync/atomic"
	"testing"
	"time"

	"github.com/iksnae/screen-session/testutil"
)

func TestExtractThumbnailSize(t *testing.T) {
	src := testutil.QuadrantImage(1920, 1080)
	cfg := ThumbnailConfig{Width: 320, Height: 180, Quality: 85, Wait: time.Second}

	data, err := ExtractThumbnail(context.Background(), func() image.Image { return src }, cfg)
	if err != nil {
		t.Fatalf("ExtractThumbnail() error = %v", err)
	}
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Thumbnail is not a JPEG: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 320 || b.Dy() != 180 {
		t.Errorf("Thumbnail size = %dx%d, want 320x180", b.Dx(), b.Dy())
	}
	// quadrants survive scaling
	red := color.RGBAModel.Convert(img.At(40, 40)).(color.RGBA)
	if !testutil.ColorClose(red, color.RGBA{R: 255, A: 255}, 40) {
		t.Errorf("Top-left pixel = %v, want red", red)
	}
	white := color.RGBAModel.Convert(img.At(280, 140)).(color.RGBA)
	if !testutil.ColorClose(white, color.RGBA{R: 255, G: 255, B: 255, A: 255}, 40) {
		t.Errorf("Bottom-right pixel = %v, want white", white)
	}
}

func TestExtractThumbnailWaitsForFrame(t *testing.T) {
	var calls atomic.Int32
	frame := testutil.SolidImage(64, 36, color.RGBA{B: 255, A: 255})
	src := func() image.Image {
		if calls.Add(1) < 3 {
			return nil
		}
		return frame
	}

	data, err := ExtractThumbnail(context.Background(), src, ThumbnailConfig{Width: 32, Height: 18, Quality: 90, Wait: time.Second})
	if err != nil {
		t.Fatalf("ExtractThumbnail() error = %v", err)
	}
	if len(data) == 0 {
		t.Error("Expected thumbnail bytes")
	}
	if calls.Load() < 3 {
		t.Errorf("Expected polling, got %d calls", calls.Load())
	}
}

func TestExtractThumbnailBoundedWait(t *testing.T) {
	start := time.Now()
	_, err := ExtractThumbnail(context.Background(), func() image.Image { return nil },
		ThumbnailConfig{Width: 32, Height: 18, Quality: 90, Wait: 60 * time.Millisecond})
	var thumbErr *ThumbnailError
	if !errors.As(err, &thumbErr) {
		t.Fatalf("Expected *ThumbnailError, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline error, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Wait not bounded: %v", elapsed)
	}
}

func TestExtractThumbnailNilSource(t *testing.T) {
	_, err := ExtractThumbnail(context.Background(), nil, ThumbnailConfig{})
	var thumbErr *ThumbnailError
	if !errors.As(err, &thumbErr) {
		t.Errorf("Expected *ThumbnailError, got %v", err)
	}
}

func TestPlaceholderThumbnail(t *testing.T) {
	img, err := png.Decode(bytes.NewReader(PlaceholderThumbnail()))
	if err != nil {
		t.Fatalf("Placeholder is not a PNG: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 150 || b.Dy() != 150 {
		t.Errorf("Placeholder size = %dx%d", b.Dx(), b.Dy())
	}
	for _, p := range []image.Point{{0, 0}, {75, 75}, {149, 149}} {
		if r, g, b, a := img.At(p.X, p.Y).RGBA(); r != 0xffff || g != 0xffff || b != 0xffff || a != 0xffff {
			t.Errorf("Placeholder pixel at %v = %v, want white", p, img.At(p.X, p.Y))
		}
	}
	if again := PlaceholderThumbnail(); !bytes.Equal(again, PlaceholderThumbnail()) {
		t.Error("Placeholder should be built once and reused")
	}

	data, ct := ThumbnailOrPlaceholder(nil)
	if ct != "image/png" || !bytes.Equal(data, PlaceholderThumbnail()) {
		t.Errorf("Expected placeholder for empty thumbnail, got %s", ct)
	}
	data, ct = ThumbnailOrPlaceholder([]byte{0xff, 0xd8})
	if ct != "image/jpeg" || len(data) != 2 {
		t.Errorf("Expected stored thumbnail, got %s", ct)
	}
}
