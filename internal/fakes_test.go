package internal

import (
	"bytes"
	"context"
	"errors"
	"image"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
)

// fakeVideoTrack serves a fixed frame until stopped
type fakeVideoTrack struct {
	*trackBase
	frame atomic.Pointer[image.RGBA]
	w, h  int
}

func newFakeVideoTrack(label string, frame *image.RGBA) *fakeVideoTrack {
	t := &fakeVideoTrack{}
	t.trackBase = newTrackBase(TrackVideo, label, nil)
	if frame != nil {
		t.frame.Store(frame)
		t.w, t.h = frame.Bounds().Dx(), frame.Bounds().Dy()
	}
	return t
}

func (t *fakeVideoTrack) LatestFrame() image.Image {
	if f := t.frame.Load(); f != nil {
		return f
	}
	return nil
}

func (t *fakeVideoTrack) Size() (int, int) { return t.w, t.h }

// fail ends the track as if the device disappeared
func (t *fakeVideoTrack) fail(err error) { t.end(err) }

// fakeAudioTrack streams from a pipe the test writes into
type fakeAudioTrack struct {
	*trackBase
	r *io.PipeReader
	w *io.PipeWriter
}

func newFakeAudioTrack() *fakeAudioTrack {
	r, w := io.Pipe()
	t := &fakeAudioTrack{r: r, w: w}
	t.trackBase = newTrackBase(TrackAudio, "microphone", func() { w.Close() })
	return t
}

func (t *fakeAudioTrack) Samples() io.Reader { return t.r }
func (t *fakeAudioTrack) Format() AudioFormat { return DefaultAudioFormat }

// fakeDevices hands out fake streams and records every track it created
type fakeDevices struct {
	mu       sync.Mutex
	frame    *image.RGBA
	failOn   map[string]error
	blockOn  string
	order    []string
	tracks   []Track
	acquired chan string
}

func newFakeDevices(frame *image.RGBA) *fakeDevices {
	return &fakeDevices{frame: frame, failOn: map[string]error{}, acquired: make(chan string, 8)}
}

func (d *fakeDevices) open(ctx context.Context, device string) (*MediaStream, error) {
	d.mu.Lock()
	d.order = append(d.order, device)
	err := d.failOn[device]
	block := d.blockOn == device
	d.mu.Unlock()

	if block {
		d.acquired <- device
		<-ctx.Done()
		return nil, &AcquireError{Device: device, Reason: ReasonCancelled, Err: ErrAcquireCancelled}
	}
	if err != nil {
		return nil, err
	}

	var track Track
	if device == "microphone" {
		track = newFakeAudioTrack()
	} else {
		track = newFakeVideoTrack(device, d.frame)
	}
	d.mu.Lock()
	d.tracks = append(d.tracks, track)
	d.mu.Unlock()
	d.acquired <- device
	return NewMediaStream(device, track), nil
}

func (d *fakeDevices) Display(ctx context.Context) (*MediaStream, error) {
	return d.open(ctx, "display")
}

func (d *fakeDevices) Camera(ctx context.Context) (*MediaStream, error) {
	return d.open(ctx, "camera")
}

func (d *fakeDevices) Microphone(ctx context.Context) (*MediaStream, error) {
	return d.open(ctx, "microphone")
}

func (d *fakeDevices) liveTracks() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, t := range d.tracks {
		if !t.Stopped() {
			n++
		}
	}
	return n
}

// drainAcquired empties the acquisition log so repeated sessions never block on it
func (d *fakeDevices) drainAcquired() {
	for {
		select {
		case <-d.acquired:
		default:
			return
		}
	}
}

// liveVideo returns the most recent live video track with the given label
func (d *fakeDevices) liveVideo(label string) *fakeVideoTrack {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := len(d.tracks) - 1; i >= 0; i-- {
		if vt, ok := d.tracks[i].(*fakeVideoTrack); ok && vt.Label() == label && !vt.Stopped() {
			return vt
		}
	}
	return nil
}

func (d *fakeDevices) opened() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.order...)
}

// fakeEncoder echoes every written frame as 4 bytes and copies audio through.
// With stallAfter set, frame writes past that count block until the pipe is killed.
type fakeEncoder struct {
	startErr   error
	stallAfter int64
	mu         sync.Mutex
	params     []EncodeParams
	frames     atomic.Int64
	kills      atomic.Int32
}

func (e *fakeEncoder) Open(ctx context.Context, p EncodeParams) (EncoderPipe, error) {
	if e.startErr != nil {
		return nil, e.startErr
	}
	e.mu.Lock()
	e.params = append(e.params, p)
	e.mu.Unlock()

	pr, pw := io.Pipe()
	pipe := &fakePipe{out: pr, w: pw, enc: e, audioDone: make(chan struct{}), killed: make(chan struct{})}
	if p.Audio != nil {
		go func() {
			defer close(pipe.audioDone)
			buf := make([]byte, 1024)
			for {
				n, err := p.Audio.Read(buf)
				if n > 0 {
					pipe.write(bytes.Repeat([]byte{'a'}, n))
				}
				if err != nil {
					return
				}
			}
		}()
	} else {
		close(pipe.audioDone)
	}
	return pipe, nil
}

type fakePipe struct {
	out       *io.PipeReader
	w         *io.PipeWriter
	enc       *fakeEncoder
	mu        sync.Mutex
	closed    bool
	audioDone chan struct{}
	killed    chan struct{}
	killOnce  sync.Once
}

func (p *fakePipe) write(b []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		_, _ = p.w.Write(b)
	}
}

func (p *fakePipe) Read(b []byte) (int, error) { return p.out.Read(b) }

func (p *fakePipe) WriteFrame(img *image.RGBA) error {
	if n := p.enc.stallAfter; n > 0 && p.enc.frames.Load() >= n {
		<-p.killed
		return errors.New("encoder killed")
	}
	p.enc.frames.Add(1)
	p.write([]byte("vvvv"))
	return nil
}

func (p *fakePipe) CloseInput() error {
	go func() {
		<-p.audioDone
		p.mu.Lock()
		p.closed = true
		p.mu.Unlock()
		p.w.Close()
	}()
	return nil
}

func (p *fakePipe) Wait() error { return nil }

func (p *fakePipe) Kill() {
	p.killOnce.Do(func() {
		p.enc.kills.Add(1)
		close(p.killed)
	})
	p.w.CloseWithError(errors.New("killed"))
}

// writeFakeFFmpeg writes an executable shell script standing in for ffmpeg
func writeFakeFFmpeg(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts required")
	}
	path := filepath.Join(t.TempDir(), "ffmpeg")
	script := "#!/bin/sh\n" + body + "\n"
	if err := os.WriteFile(path, []byte(script), 0755); err != nil {
		t.Fatalf("Failed to write fake ffmpeg: %v", err)
	}
	return path
}
