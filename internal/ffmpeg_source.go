package internal

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
)

// FFmpegDevices captures display, camera and microphone with ffmpeg child processes
type FFmpegDevices struct {
	FFmpeg        string
	GOOS          string
	Capture       CaptureConfig
	DisplayWidth  int
	DisplayHeight int
	FPS           int
	Audio         AudioFormat
	Log           *zap.Logger
}

// NewFFmpegDevices builds devices from the configuration
func NewFFmpegDevices(cfg Config, logger *zap.Logger) *FFmpegDevices {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FFmpegDevices{
		FFmpeg:        cfg.Encoder.FFmpegPath,
		GOOS:          runtime.GOOS,
		Capture:       cfg.Capture,
		DisplayWidth:  cfg.Canvas.Width,
		DisplayHeight: cfg.Canvas.Height,
		FPS:           cfg.FPS,
		Audio:         DefaultAudioFormat,
		Log:           logger.With(zap.String("component", "capture")),
	}
}

// Display grabs the screen, scaled to the canvas size
func (d *FFmpegDevices) Display(ctx context.Context) (*MediaStream, error) {
	in, err := captureInputArgs(d.GOOS, "display", d.Capture, d.FPS)
	if err != nil {
		return nil, &AcquireError{Device: "display", Reason: ReasonDeviceUnavailable, Err: err}
	}
	track, err := d.startVideo(ctx, "display", in, d.DisplayWidth, d.DisplayHeight)
	if err != nil {
		return nil, err
	}
	return NewMediaStream("display", track), nil
}

// Camera opens the webcam
func (d *FFmpegDevices) Camera(ctx context.Context) (*MediaStream, error) {
	in, err := captureInputArgs(d.GOOS, "camera", d.Capture, d.FPS)
	if err != nil {
		return nil, &AcquireError{Device: "camera", Reason: ReasonDeviceUnavailable, Err: err}
	}
	track, err := d.startVideo(ctx, "camera", in, d.Capture.CameraWidth, d.Capture.CameraHeight)
	if err != nil {
		return nil, err
	}
	return NewMediaStream("camera", track), nil
}

// Microphone opens the default audio input as raw PCM
func (d *FFmpegDevices) Microphone(ctx context.Context) (*MediaStream, error) {
	in, err := captureInputArgs(d.GOOS, "microphone", d.Capture, d.FPS)
	if err != nil {
		return nil, &AcquireError{Device: "microphone", Reason: ReasonDeviceUnavailable, Err: err}
	}
	args := append(in,
		"-ac", strconv.Itoa(d.Audio.Channels),
		"-ar", strconv.Itoa(d.Audio.SampleRate),
		"-f", d.Audio.Encoding, "pipe:1")

	proc, err := startFFmpeg(d.FFmpeg, args, nil, nil, d.Log.With(zap.String("device", "microphone")))
	if err != nil {
		return nil, &AcquireError{Device: "microphone", Reason: ReasonDeviceUnavailable, Err: err}
	}

	t := &ffmpegAudioTrack{proc: proc, format: d.Audio, reader: bufio.NewReaderSize(proc.stdout, 64*1024)}
	t.trackBase = newTrackBase(TrackAudio, "microphone", func() {
		proc.kill()
		proc.stdout.Close()
	})
	go t.watch()

	ready := make(chan error, 1)
	go func() {
		_, err := t.reader.Peek(1)
		ready <- err
	}()

	if err := awaitFirstData(ctx, "microphone", proc, ready); err != nil {
		t.Stop()
		return nil, err
	}
	d.Log.Info("microphone acquired", zap.String("track_id", t.ID()))
	return NewMediaStream("microphone", t), nil
}

func (d *FFmpegDevices) startVideo(ctx context.Context, device string, input []string, w, h int) (*ffmpegVideoTrack, error) {
	args := append(input,
		"-vf", fmt.Sprintf("scale=%d:%d", w, h),
		"-pix_fmt", "rgba",
		"-f", "rawvideo", "pipe:1")

	proc, err := startFFmpeg(d.FFmpeg, args, nil, nil, d.Log.With(zap.String("device", device)))
	if err != nil {
		return nil, &AcquireError{Device: device, Reason: ReasonDeviceUnavailable, Err: err}
	}

	t := &ffmpegVideoTrack{proc: proc, width: w, height: h, first: make(chan error, 1)}
	t.trackBase = newTrackBase(TrackVideo, device, func() {
		proc.kill()
		proc.stdout.Close()
	})
	go t.readFrames()
	go t.watch()

	if err := awaitFirstData(ctx, device, proc, t.first); err != nil {
		t.Stop()
		return nil, err
	}
	d.Log.Info("device acquired", zap.String("device", device), zap.String("track_id", t.ID()),
		zap.Int("width", w), zap.Int("height", h))
	return t, nil
}

// awaitFirstData waits until ready reports, the process dies, or ctx ends
func awaitFirstData(ctx context.Context, device string, proc *ffmpegProcess, ready <-chan error) error {
	select {
	case err := <-ready:
		if err == nil {
			return nil
		}
		exitErr := proc.exitError()
		return &AcquireError{Device: device, Reason: classifyCaptureFailure(proc.stderr.String()), Err: exitErr}
	case <-proc.exited:
		return &AcquireError{Device: device, Reason: classifyCaptureFailure(proc.stderr.String()), Err: proc.exitError()}
	case <-ctx.Done():
		return &AcquireError{Device: device, Reason: ReasonCancelled, Err: ErrAcquireCancelled}
	}
}

// classifyCaptureFailure separates refused access from missing or busy devices
func classifyCaptureFailure(stderr string) AcquireReason {
	s := strings.ToLower(stderr)
	for _, marker := range []string{"permission denied", "operation not permitted", "not authorized", "access denied"} {
		if strings.Contains(s, marker) {
			return ReasonPermissionDenied
		}
	}
	return ReasonDeviceUnavailable
}

// captureInputArgs returns the ffmpeg input options for a device class on goos
func captureInputArgs(goos, device string, c CaptureConfig, fps int) ([]string, error) {
	rate := strconv.Itoa(fps)
	switch goos {
	case "linux":
		switch device {
		case "display":
			display := c.Display
			if display == "" {
				display = os.Getenv("DISPLAY")
			}
			if display == "" {
				display = ":0.0"
			}
			return []string{"-f", "x11grab", "-framerate", rate, "-draw_mouse", "1", "-i", display}, nil
		case "camera":
			cam := c.Camera
			if cam == "" {
				cam = "/dev/video0"
			}
			return []string{"-f", "v4l2", "-framerate", "30",
				"-video_size", fmt.Sprintf("%dx%d", c.CameraWidth, c.CameraHeight), "-i", cam}, nil
		case "microphone":
			mic := c.Microphone
			if mic == "" {
				mic = "default"
			}
			return []string{"-f", "pulse", "-i", mic}, nil
		}
	case "darwin":
		switch device {
		case "display":
			screen := c.Display
			if screen == "" {
				screen = "Capture screen 0"
			}
			return []string{"-f", "avfoundation", "-capture_cursor", "1", "-framerate", rate, "-i", screen + ":none"}, nil
		case "camera":
			cam := c.Camera
			if cam == "" {
				cam = "0"
			}
			return []string{"-f", "avfoundation", "-framerate", "30",
				"-video_size", fmt.Sprintf("%dx%d", c.CameraWidth, c.CameraHeight), "-i", cam + ":none"}, nil
		case "microphone":
			mic := c.Microphone
			if mic == "" {
				mic = "default"
			}
			return []string{"-f", "avfoundation", "-i", "none:" + mic}, nil
		}
	default:
		return nil, fmt.Errorf("unsupported OS: %s (only macOS and Linux are supported)", goos)
	}
	return nil, fmt.Errorf("unknown capture device %q", device)
}

type ffmpegVideoTrack struct {
	*trackBase
	proc   *ffmpegProcess
	width  int
	height int
	latest atomic.Pointer[image.RGBA]
	first  chan error
	frames atomic.Uint64
}

func (t *ffmpegVideoTrack) LatestFrame() image.Image {
	if f := t.latest.Load(); f != nil {
		return f
	}
	return nil
}

func (t *ffmpegVideoTrack) Size() (int, int) {
	return t.width, t.height
}

func (t *ffmpegVideoTrack) readFrames() {
	size := t.width * t.height * 4
	for {
		frame := image.NewRGBA(image.Rect(0, 0, t.width, t.height))
		if _, err := io.ReadFull(t.proc.stdout, frame.Pix[:size]); err != nil {
			if t.frames.Load() == 0 {
				if errors.Is(err, io.ErrUnexpectedEOF) {
					err = io.EOF
				}
				t.first <- err
			}
			return
		}
		t.latest.Store(frame)
		if t.frames.Add(1) == 1 {
			t.first <- nil
		}
	}
}

// watch ends the track when ffmpeg exits without being asked to
func (t *ffmpegVideoTrack) watch() {
	select {
	case <-t.proc.exited:
		t.end(t.proc.exitError())
	case <-t.Done():
	}
}

type ffmpegAudioTrack struct {
	*trackBase
	proc   *ffmpegProcess
	format AudioFormat
	reader *bufio.Reader
}

func (t *ffmpegAudioTrack) Samples() io.Reader {
	return t.reader
}

func (t *ffmpegAudioTrack) Format() AudioFormat {
	return t.format
}

func (t *ffmpegAudioTrack) watch() {
	select {
	case <-t.proc.exited:
		t.end(t.proc.exitError())
	case <-t.Done():
	}
}
