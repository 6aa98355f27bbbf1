package internal

import (
	"fmt"
	"strings"
	"time"
)

// Mode selects which sources a capture session records
type Mode string

const (
	// ModeScreen records the display plus microphone
	ModeScreen Mode = "screen"
	// ModeFace records the display with a face-landmark overlay plus microphone
	ModeFace Mode = "face"
	// ModeAudio records the microphone only
	ModeAudio Mode = "audio"
)

// ParseMode validates a mode name
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeScreen:
		return ModeScreen, nil
	case ModeFace:
		return ModeFace, nil
	case ModeAudio:
		return ModeAudio, nil
	default:
		return "", fmt.Errorf("unsupported mode: %q (supported: screen, face, audio)", s)
	}
}

// HasVideo reports whether the mode produces a video track
func (m Mode) HasVideo() bool {
	return m == ModeScreen || m == ModeFace
}

// Recording is a finalized, immutable recording artifact.
// ID is the creation time in Unix milliseconds and is unique in the store.
type Recording struct {
	ID           int64     `json:"id" yaml:"id"`
	Kind         Mode      `json:"type" yaml:"type"`
	MimeType     string    `json:"mime_type" yaml:"mime_type"`
	Size         int64     `json:"size" yaml:"size"`
	CreatedAt    time.Time `json:"created_at" yaml:"created_at"`
	HasThumbnail bool      `json:"has_thumbnail" yaml:"has_thumbnail"`
	Data         []byte    `json:"-" yaml:"-"`
}

// Extension returns the file extension matching the recording's mime type
func (r *Recording) Extension() string {
	return ExtensionForMime(r.MimeType)
}

// FileName returns the download name, recording_<id>.<ext>
func (r *Recording) FileName() string {
	return fmt.Sprintf("recording_%d.%s", r.ID, r.Extension())
}

// Title returns the one-line label shown in listings
func (r *Recording) Title() string {
	return fmt.Sprintf("Recorded on %s (%s)", r.CreatedAt.Local().Format("2006-01-02 15:04:05"), r.Kind)
}

// Thumbnail is the preview image attached to one recording
type Thumbnail struct {
	ID          int64  `json:"id" yaml:"id"`
	RecordingID int64  `json:"recording_id" yaml:"recording_id"`
	Image       []byte `json:"-" yaml:"-"`
}

// RecordingIndex is the library listing written by list and export
type RecordingIndex struct {
	Recordings  []*Recording `json:"recordings" yaml:"recordings"`
	GeneratedAt time.Time    `json:"generated_at" yaml:"generated_at"`
	Database    string       `json:"database,omitempty" yaml:"database,omitempty"`
}

// NewRecordingIndex wraps a listing with generation metadata
func NewRecordingIndex(recordings []*Recording, database string) *RecordingIndex {
	if recordings == nil {
		recordings = []*Recording{}
	}
	return &RecordingIndex{
		Recordings:  recordings,
		GeneratedAt: time.Now().UTC(),
		Database:    database,
	}
}

// ExtensionForMime maps a container mime type to a file extension
func ExtensionForMime(mime string) string {
	base := strings.TrimSpace(strings.SplitN(mime, ";", 2)[0])
	switch strings.ToLower(base) {
	case "video/mp4", "audio/mp4":
		return "mp4"
	case "video/webm", "audio/webm":
		return "webm"
	case "audio/ogg":
		return "ogg"
	case "video/x-matroska":
		return "mkv"
	default:
		return "bin"
	}
}
