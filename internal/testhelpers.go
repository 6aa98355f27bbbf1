package internal

import (
	"image"
	"image/color"
	"image/draw"
)

// CreateTestRecording creates a recording with sensible test values. ID is left zero so
// the store assigns one.
func CreateTestRecording(kind Mode, data []byte) *Recording {
	mime := "video/mp4"
	if kind == ModeAudio {
		mime = "audio/webm"
	}
	return &Recording{
		Kind:     kind,
		MimeType: mime,
		Data:     data,
	}
}

// CreateTestFrame creates a solid frame of the given size
func CreateTestFrame(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: c}, image.Point{}, draw.Src)
	return img
}

// CreateTestDetection creates a single-face result from (x, y, z) triples
func CreateTestDetection(points ...[3]float64) DetectionResult {
	face := make(LandmarkSet, 0, len(points))
	for _, p := range points {
		face = append(face, Landmark{X: p[0], Y: p[1], Z: p[2]})
	}
	return DetectionResult{Faces: []LandmarkSet{face}}
}
