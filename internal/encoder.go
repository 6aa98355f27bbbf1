package internal

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// ContainerFormat describes how one output mime type is produced
type ContainerFormat struct {
	MimeType   string
	Extension  string
	Muxer      string
	Video      bool // container carries video
	VideoCodec []string
	AudioCodec []string
	MuxerArgs  []string
}

var containerFormats = map[string]ContainerFormat{
	"video/mp4": {
		MimeType:   "video/mp4",
		Extension:  "mp4",
		Muxer:      "mp4",
		Video:      true,
		VideoCodec: []string{"-c:v", "libx264", "-preset", "veryfast", "-pix_fmt", "yuv420p"},
		AudioCodec: []string{"-c:a", "aac", "-b:a", "128k"},
		MuxerArgs:  []string{"-movflags", "frag_keyframe+empty_moov+default_base_moof"},
	},
	"video/webm": {
		MimeType:   "video/webm",
		Extension:  "webm",
		Muxer:      "webm",
		Video:      true,
		VideoCodec: []string{"-c:v", "libvpx", "-deadline", "realtime", "-cpu-used", "8", "-b:v", "4M"},
		AudioCodec: []string{"-c:a", "libopus", "-b:a", "96k"},
	},
	"audio/webm": {
		MimeType:   "audio/webm",
		Extension:  "webm",
		Muxer:      "webm",
		AudioCodec: []string{"-c:a", "libopus", "-b:a", "96k"},
	},
	"audio/ogg": {
		MimeType:   "audio/ogg",
		Extension:  "ogg",
		Muxer:      "ogg",
		AudioCodec: []string{"-c:a", "libopus", "-b:a", "96k"},
	},
	"audio/mp4": {
		MimeType:   "audio/mp4",
		Extension:  "mp4",
		Muxer:      "mp4",
		AudioCodec: []string{"-c:a", "aac", "-b:a", "128k"},
		MuxerArgs:  []string{"-movflags", "frag_keyframe+empty_moov+default_base_moof"},
	},
}

// LookupFormat resolves a mime type; codec parameters after ';' are ignored
func LookupFormat(mime string) (ContainerFormat, error) {
	base := strings.ToLower(strings.TrimSpace(strings.SplitN(mime, ";", 2)[0]))
	f, ok := containerFormats[base]
	if !ok {
		return ContainerFormat{}, &EncoderError{MimeType: mime, Op: "start", Err: ErrUnsupportedFormat}
	}
	return f, nil
}

// SupportedMimeTypes lists the mime types LookupFormat accepts
func SupportedMimeTypes() []string {
	out := make([]string, 0, len(containerFormats))
	for k := range containerFormats {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// EncodeParams describes one encoding run
type EncodeParams struct {
	Format      ContainerFormat
	Width       int // zero for audio-only
	Height      int
	FPS         int
	Audio       io.Reader // nil for video-only
	AudioFormat AudioFormat
}

// EncoderPipe is a running encoder. Read yields container bytes until the encoder has
// finished; CloseInput signals end of input.
type EncoderPipe interface {
	io.Reader
	WriteFrame(img *image.RGBA) error
	CloseInput() error
	Wait() error
	Kill()
}

// EncoderBackend starts encoders
type EncoderBackend interface {
	Open(ctx context.Context, p EncodeParams) (EncoderPipe, error)
}

// RecorderOptions configure a Recorder
type RecorderOptions struct {
	MimeType        string
	Timeslice       time.Duration // zero delivers one chunk at stop
	Width, Height   int
	FPS             int
	Audio           io.Reader
	AudioFormat     AudioFormat
	ShutdownTimeout time.Duration
	OnData          func(chunk []byte)
	OnFinalize      func()
}

type recorderState int32

const (
	recorderIdle recorderState = iota
	recorderRecording
	recorderStopping
	recorderDone
)

// Recorder turns canvas frames plus an audio stream into encoded chunks.
// OnData is called from a single goroutine in stream order; after Stop exactly one
// final OnData is delivered, followed by exactly one OnFinalize.
type Recorder struct {
	backend EncoderBackend
	opts    RecorderOptions
	log     *zap.Logger

	mu    sync.RWMutex
	state recorderState
	pipe  EncoderPipe
	done  chan struct{}
	err   error

	chunks atomic.Int64
	bytes  atomic.Int64
}

// NewRecorder creates an idle recorder
func NewRecorder(backend EncoderBackend, opts RecorderOptions, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}
	return &Recorder{
		backend: backend,
		opts:    opts,
		log:     logger.With(zap.String("component", "recorder")),
		done:    make(chan struct{}),
	}
}

// Start launches the encoder. Unsupported formats and encoder launch failures are
// returned synchronously as *EncoderError.
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != recorderIdle {
		return &EncoderError{MimeType: r.opts.MimeType, Op: "start", Err: errors.New("recorder already started")}
	}

	format, err := LookupFormat(r.opts.MimeType)
	if err != nil {
		return err
	}
	hasVideo := r.opts.Width > 0 && r.opts.Height > 0
	if hasVideo && !format.Video {
		return &EncoderError{MimeType: r.opts.MimeType, Op: "start",
			Err: fmt.Errorf("%w: container has no video stream", ErrUnsupportedFormat)}
	}
	if !hasVideo && r.opts.Audio == nil {
		return &EncoderError{MimeType: r.opts.MimeType, Op: "start", Err: errors.New("no video or audio input")}
	}

	params := EncodeParams{
		Format:      format,
		FPS:         r.opts.FPS,
		Audio:       r.opts.Audio,
		AudioFormat: r.opts.AudioFormat,
	}
	if hasVideo {
		params.Width, params.Height = r.opts.Width, r.opts.Height
	}

	pipe, err := r.backend.Open(ctx, params)
	if err != nil {
		var encErr *EncoderError
		if errors.As(err, &encErr) {
			return err
		}
		return &EncoderError{MimeType: r.opts.MimeType, Op: "start", Err: err}
	}

	r.pipe = pipe
	r.state = recorderRecording
	go r.pump(pipe)

	r.log.Debug("recorder started", zap.String("mime_type", format.MimeType),
		zap.Bool("video", hasVideo), zap.Bool("audio", r.opts.Audio != nil),
		zap.Duration("timeslice", r.opts.Timeslice))
	return nil
}

// WriteFrame feeds one canvas frame to the encoder. The write happens outside the
// lock, so Signal and Abort still get through while the encoder is not reading.
func (r *Recorder) WriteFrame(img *image.RGBA) error {
	r.mu.RLock()
	state, pipe := r.state, r.pipe
	r.mu.RUnlock()
	if state != recorderRecording {
		return ErrNotRecording
	}
	if err := pipe.WriteFrame(img); err != nil {
		return &EncoderError{MimeType: r.opts.MimeType, Op: "write", Err: err}
	}
	return nil
}

// Abort kills a running encoder without waiting for it to finalize. Output read before
// the kill is still delivered. It is a no-op before Start and after finalization.
func (r *Recorder) Abort() {
	r.mu.RLock()
	state, pipe := r.state, r.pipe
	r.mu.RUnlock()
	if pipe == nil || state == recorderDone {
		return
	}
	r.log.Warn("aborting encoder", zap.Duration("timeout", r.opts.ShutdownTimeout))
	pipe.Kill()
}

// ShutdownTimeout is how long Stop waits for the encoder before killing it
func (r *Recorder) ShutdownTimeout() time.Duration {
	return r.opts.ShutdownTimeout
}

// Signal ends encoder input without waiting for finalization
func (r *Recorder) Signal() {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch r.state {
	case recorderIdle:
		r.state = recorderDone
		close(r.done)
	case recorderRecording:
		r.state = recorderStopping
		if err := r.pipe.CloseInput(); err != nil {
			r.log.Warn("closing encoder input failed", zap.Error(err))
		}
	}
}

// Stop signals end of input and waits for finalization. The encoder is killed if it
// has not finished within the shutdown timeout. Repeated calls wait for the same result.
func (r *Recorder) Stop() error {
	r.Signal()
	r.mu.RLock()
	pipe := r.pipe
	r.mu.RUnlock()

	select {
	case <-r.done:
	case <-time.After(r.opts.ShutdownTimeout):
		r.log.Warn("encoder did not finalize in time, killing", zap.Duration("timeout", r.opts.ShutdownTimeout))
		if pipe != nil {
			pipe.Kill()
		}
		<-r.done
	}
	return r.Err()
}

// Done is closed after OnFinalize has returned
func (r *Recorder) Done() <-chan struct{} {
	return r.done
}

// Err reports an encoder failure, nil after a clean finalize
func (r *Recorder) Err() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.err
}

// Stopping reports whether Stop has been called
func (r *Recorder) Stopping() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state >= recorderStopping
}

// Stats returns the number of chunks and bytes delivered so far
func (r *Recorder) Stats() (chunks, bytes int64) {
	return r.chunks.Load(), r.bytes.Load()
}

func (r *Recorder) pump(pipe EncoderPipe) {
	reads := make(chan []byte, 16)
	var readErr error
	go func() {
		defer close(reads)
		buf := make([]byte, 64*1024)
		for {
			n, err := pipe.Read(buf)
			if n > 0 {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])
				reads <- chunk
			}
			if err != nil {
				if !errors.Is(err, io.EOF) {
					readErr = err
				}
				return
			}
		}
	}()

	var tick <-chan time.Time
	if r.opts.Timeslice > 0 {
		ticker := time.NewTicker(r.opts.Timeslice)
		defer ticker.Stop()
		tick = ticker.C
	}

	var pending []byte
	for open := true; open; {
		select {
		case b, ok := <-reads:
			if !ok {
				open = false
				break
			}
			pending = append(pending, b...)
		case <-tick:
			if len(pending) > 0 {
				r.emit(pending)
				pending = nil
			}
		}
	}

	waitErr := pipe.Wait()
	r.emit(pending)
	if r.opts.OnFinalize != nil {
		r.opts.OnFinalize()
	}

	r.mu.Lock()
	stopping := r.state == recorderStopping
	r.state = recorderDone
	switch {
	case readErr != nil:
		r.err = &EncoderError{MimeType: r.opts.MimeType, Op: "finalize", Err: readErr}
	case waitErr != nil:
		r.err = &EncoderError{MimeType: r.opts.MimeType, Op: "finalize", Err: waitErr}
	case !stopping:
		r.err = &EncoderError{MimeType: r.opts.MimeType, Op: "finalize", Err: errors.New("encoder ended before stop")}
	}
	r.mu.Unlock()
	close(r.done)

	chunks, total := r.Stats()
	r.log.Debug("recorder finalized", zap.Int64("chunks", chunks), zap.Int64("bytes", total), zap.Error(r.err))
}

func (r *Recorder) emit(chunk []byte) {
	r.chunks.Add(1)
	r.bytes.Add(int64(len(chunk)))
	if r.opts.OnData != nil {
		r.opts.OnData(chunk)
	}
}
