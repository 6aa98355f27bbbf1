package internal

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by the store when a recording or thumbnail does not exist
	ErrNotFound = errors.New("not found")
	// ErrSessionActive is returned when Start is called on a session that is not idle
	ErrSessionActive = errors.New("capture session already active")
	// ErrNotRecording is returned when Stop is called on an idle session
	ErrNotRecording = errors.New("capture session is not recording")
	// ErrAcquireCancelled is reported when Stop interrupts device acquisition
	ErrAcquireCancelled = errors.New("acquisition cancelled")
	// ErrUnsupportedFormat is wrapped by EncoderError for unknown mime types
	ErrUnsupportedFormat = errors.New("unsupported container or codec")
)

// AcquireReason classifies why a capture device could not be opened
type AcquireReason string

const (
	ReasonPermissionDenied  AcquireReason = "permission denied"
	ReasonDeviceUnavailable AcquireReason = "device unavailable"
	ReasonCancelled         AcquireReason = "cancelled"
)

// AcquireError represents a failure to open a display, camera or microphone
type AcquireError struct {
	Device string // "display", "camera", "microphone"
	Reason AcquireReason
	Err    error
}

func (e *AcquireError) Error() string {
	return fmt.Sprintf("acquire error [%s] %s: %v", e.Device, e.Reason, e.Err)
}

func (e *AcquireError) Unwrap() error {
	return e.Err
}

// PermissionDenied reports whether the user or OS refused access
func (e *AcquireError) PermissionDenied() bool {
	return e.Reason == ReasonPermissionDenied
}

// DetectorError represents a landmark detector that failed to start
type DetectorError struct {
	Command string
	Err     error
}

func (e *DetectorError) Error() string {
	return fmt.Sprintf("detector error [%s]: %v", e.Command, e.Err)
}

func (e *DetectorError) Unwrap() error {
	return e.Err
}

// EncoderError represents errors starting or running the encoder
type EncoderError struct {
	MimeType string
	Op       string // "start", "write", "finalize"
	Err      error
}

func (e *EncoderError) Error() string {
	return fmt.Sprintf("encoder error [%s] %s: %v", e.MimeType, e.Op, e.Err)
}

func (e *EncoderError) Unwrap() error {
	return e.Err
}

// ThumbnailError represents a preview that could not be produced
type ThumbnailError struct {
	Reason string
	Err    error
}

func (e *ThumbnailError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("thumbnail error: %s", e.Reason)
	}
	return fmt.Sprintf("thumbnail error: %s: %v", e.Reason, e.Err)
}

func (e *ThumbnailError) Unwrap() error {
	return e.Err
}

// StoreError represents errors accessing the recording database
type StoreError struct {
	Op          string // "open", "migrate", "put", "get", "list", "delete"
	RecordingID int64
	Err         error
}

func (e *StoreError) Error() string {
	if e.RecordingID == 0 {
		return fmt.Sprintf("store error: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("store error: %s %d: %v", e.Op, e.RecordingID, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// ExportError represents errors during export
type ExportError struct {
	Format string
	Path   string
	Err    error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("export error [%s] %s: %v", e.Format, e.Path, e.Err)
}

func (e *ExportError) Unwrap() error {
	return e.Err
}
