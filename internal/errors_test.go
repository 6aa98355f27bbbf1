package internal

import (
	"errors"
	"strings"
	"testing"
)

func TestAcquireError(t *testing.T) {
	originalErr := errors.New("exit status 1")
	err := &AcquireError{
		Device: "microphone",
		Reason: ReasonPermissionDenied,
		Err:    originalErr,
	}

	errorMsg := err.Error()
	if !strings.Contains(errorMsg, "acquire error") {
		t.Errorf("AcquireError.Error() should contain 'acquire error', got: %q", errorMsg)
	}
	if !strings.Contains(errorMsg, "microphone") {
		t.Errorf("AcquireError.Error() should contain device, got: %q", errorMsg)
	}
	if !err.PermissionDenied() {
		t.Error("AcquireError.PermissionDenied() = false, want true")
	}
	if !errors.Is(err, originalErr) {
		t.Error("AcquireError.Unwrap() should return original error")
	}

	var target *AcquireError
	wrapped := errors.Join(errors.New("start"), err)
	if !errors.As(wrapped, &target) || target.Device != "microphone" {
		t.Error("errors.As() should find AcquireError through a wrapper")
	}
}

func TestDetectorError(t *testing.T) {
	originalErr := errors.New("no such file")
	err := &DetectorError{Command: "facemesh", Err: originalErr}

	if !strings.Contains(err.Error(), "facemesh") {
		t.Errorf("DetectorError.Error() should contain command, got: %q", err.Error())
	}
	if !errors.Is(err, originalErr) {
		t.Error("DetectorError.Unwrap() should return original error")
	}
}

func TestEncoderError(t *testing.T) {
	err := &EncoderError{MimeType: "video/x-flv", Op: "start", Err: ErrUnsupportedFormat}

	if !strings.Contains(err.Error(), "video/x-flv") {
		t.Errorf("EncoderError.Error() should contain mime type, got: %q", err.Error())
	}
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Error("EncoderError should unwrap to ErrUnsupportedFormat")
	}
}

func TestThumbnailError(t *testing.T) {
	tests := []struct {
		name string
		err  *ThumbnailError
		want string
	}{
		{
			name: "reason only",
			err:  &ThumbnailError{Reason: "no frame"},
			want: "thumbnail error: no frame",
		},
		{
			name: "with cause",
			err:  &ThumbnailError{Reason: "encode", Err: errors.New("boom")},
			want: "thumbnail error: encode: boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("ThumbnailError.Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStoreError(t *testing.T) {
	originalErr := errors.New("database is locked")
	err := &StoreError{Op: "delete", RecordingID: 42, Err: originalErr}

	if !strings.Contains(err.Error(), "delete 42") {
		t.Errorf("StoreError.Error() should contain op and id, got: %q", err.Error())
	}
	if !errors.Is(err, originalErr) {
		t.Error("StoreError.Unwrap() should return original error")
	}

	noID := &StoreError{Op: "list", Err: originalErr}
	if strings.Contains(noID.Error(), " 0:") {
		t.Errorf("StoreError.Error() should omit zero id, got: %q", noID.Error())
	}
}

func TestExportError(t *testing.T) {
	originalErr := errors.New("disk full")
	err := &ExportError{Format: "json", Path: "/tmp/out", Err: originalErr}

	if !strings.Contains(err.Error(), "export error") {
		t.Errorf("ExportError.Error() should contain 'export error', got: %q", err.Error())
	}
	if !errors.Is(err, originalErr) {
		t.Error("ExportError.Unwrap() should return original error")
	}
}
