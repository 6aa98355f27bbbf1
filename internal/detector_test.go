package internal

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image/color"
	"os"
	"testing"
	"time"
)

const detectorHelperEnv = "SCREEN_SESSION_DETECTOR_HELPER"

// TestDetectorHelperProcess is not a real test. It is re-executed as the detector
// child process by the tests below.
func TestDetectorHelperProcess(t *testing.T) {
	mode := os.Getenv(detectorHelperEnv)
	if mode == "" {
		return
	}
	defer os.Exit(0)

	if mode == "exit" {
		os.Exit(3)
	}

	in := bufio.NewScanner(os.Stdin)
	in.Buffer(make([]byte, 64*1024), 16*1024*1024)
	out := json.NewEncoder(os.Stdout)
	for in.Scan() {
		var msg detectorMessage
		if err := json.Unmarshal(in.Bytes(), &msg); err != nil {
			fmt.Fprintln(os.Stderr, "bad line:", err)
			continue
		}
		switch msg.Type {
		case "init":
			if mode == "fail-init" {
				_ = out.Encode(detectorMessage{Type: "error", Error: "model file missing"})
				continue
			}
			fmt.Println("loading model...") // noise the reader must skip
			_ = out.Encode(detectorMessage{Type: "ready"})
		case "detect":
			if mode == "frame-error" {
				_ = out.Encode(detectorMessage{Type: "error", ID: msg.ID, Error: "no tensor"})
				continue
			}
			faces := [][]Landmark{{
				{X: 0.5, Y: 0.5, Z: 0},
				{X: float64(msg.Width) / 1000, Y: float64(msg.Height) / 1000, Z: 0.1},
			}}
			_ = out.Encode(detectorMessage{Type: "result", ID: msg.ID, Faces: faces})
		}
	}
}

func helperCommand(t *testing.T, mode string) []string {
	t.Helper()
	t.Setenv(detectorHelperEnv, mode)
	return []string{os.Args[0], "-test.run=TestDetectorHelperProcess", "--"}
}

func TestProcessDetector_Detect(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	det, err := NewProcessDetector(ctx, helperCommand(t, "ok"), DefaultConfig().DetectorOptions(), nil)
	if err != nil {
		t.Fatalf("NewProcessDetector() error = %v", err)
	}
	defer det.Close()

	for i := 0; i < 3; i++ {
		result, err := det.Detect(ctx, CreateTestFrame(640, 480, color.RGBA{R: 10, A: 255}))
		if err != nil {
			t.Fatalf("Detect() #%d error = %v", i, err)
		}
		if len(result.Faces) != 1 || len(result.Faces[0]) != 2 {
			t.Fatalf("Detect() = %+v, want one face with two landmarks", result)
		}
		if result.Faces[0][1].X != 0.64 || result.Faces[0][1].Y != 0.48 {
			t.Errorf("Detect() second landmark = %+v, want frame size echoed", result.Faces[0][1])
		}
	}
}

func TestProcessDetector_InitFailures(t *testing.T) {
	tests := []struct {
		name    string
		command func(t *testing.T) []string
	}{
		{name: "error reply", command: func(t *testing.T) []string { return helperCommand(t, "fail-init") }},
		{name: "process exits", command: func(t *testing.T) []string { return helperCommand(t, "exit") }},
		{name: "missing binary", command: func(t *testing.T) []string { return []string{"/nonexistent/facemesh"} }},
		{name: "empty command", command: func(t *testing.T) []string { return nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			det, err := NewProcessDetector(ctx, tt.command(t), DetectorOptions{MaxFaces: 1}, nil)
			if err == nil {
				det.Close()
				t.Fatal("NewProcessDetector() expected error")
			}
			var detErr *DetectorError
			if !errors.As(err, &detErr) {
				t.Errorf("NewProcessDetector() error = %T, want *DetectorError", err)
			}
		})
	}
}

func TestProcessDetector_FrameError(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	det, err := NewProcessDetector(ctx, helperCommand(t, "frame-error"), DetectorOptions{MaxFaces: 1}, nil)
	if err != nil {
		t.Fatalf("NewProcessDetector() error = %v", err)
	}
	defer det.Close()

	if _, err := det.Detect(ctx, CreateTestFrame(8, 8, color.RGBA{A: 255})); err == nil {
		t.Error("Detect() expected error from detector")
	}
}

func TestProcessDetector_CloseIdempotent(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	det, err := NewProcessDetector(ctx, helperCommand(t, "ok"), DetectorOptions{MaxFaces: 1}, nil)
	if err != nil {
		t.Fatalf("NewProcessDetector() error = %v", err)
	}
	if err := det.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if err := det.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if _, err := det.Detect(ctx, CreateTestFrame(8, 8, color.RGBA{A: 255})); err == nil {
		t.Error("Detect() after Close() should fail")
	}
}
