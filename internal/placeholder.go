package internal

import (
	"bytes"
	"image"
	"image/draw"
	"image/png"
	"sync"
)

const placeholderSize = 150

var (
	placeholderOnce sync.Once
	placeholderPNG  []byte
	placeholderErr  error
)

// encodePlaceholder renders the white square shown for recordings without a thumbnail
func encodePlaceholder() ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, placeholderSize, placeholderSize))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, &ThumbnailError{Reason: "encode placeholder", Err: err}
	}
	return buf.Bytes(), nil
}

// PlaceholderThumbnail returns the stand-in preview image, a 150x150 white PNG
func PlaceholderThumbnail() []byte {
	placeholderOnce.Do(func() {
		placeholderPNG, placeholderErr = encodePlaceholder()
		if placeholderErr != nil {
			LogError("Failed to build placeholder thumbnail: %v", placeholderErr)
		}
	})
	return placeholderPNG
}

// ThumbnailOrPlaceholder returns img and its content type, falling back to the placeholder
func ThumbnailOrPlaceholder(img []byte) ([]byte, string) {
	if len(img) == 0 {
		return PlaceholderThumbnail(), "image/png"
	}
	return img, "image/jpeg"
}
