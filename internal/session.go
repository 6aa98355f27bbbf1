package internal

import (
	"bytes"
	"context"
	"errors"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// SessionState is the capture lifecycle state
type SessionState int32

const (
	SessionIdle SessionState = iota
	SessionAcquiring
	SessionRecording
	SessionFinalizing
)

func (s SessionState) String() string {
	switch s {
	case SessionIdle:
		return "idle"
	case SessionAcquiring:
		return "acquiring"
	case SessionRecording:
		return "recording"
	case SessionFinalizing:
		return "finalizing"
	default:
		return "unknown"
	}
}

// Session event types
const (
	EventState    = "state"
	EventRecorded = "recorded"
	EventError    = "error"
	EventDegraded = "degraded"
)

// SessionEvent is published on every state change and outcome
type SessionEvent struct {
	Type        string    `json:"type"`
	State       string    `json:"state"`
	Mode        Mode      `json:"mode,omitempty"`
	RecordingID int64     `json:"recording_id,omitempty"`
	Size        int64     `json:"size,omitempty"`
	Error       string    `json:"error,omitempty"`
	At          time.Time `json:"at"`
}

// RecordingStore persists finished recordings
type RecordingStore interface {
	Save(ctx context.Context, rec *Recording, thumb []byte) error
}

// SessionDeps are the collaborators of a CaptureSession
type SessionDeps struct {
	Devices   Devices
	Encoder   EncoderBackend
	Detectors DetectorFactory // required for face mode
	Store     RecordingStore
	Logger    *zap.Logger
}

// sessionRun holds everything owned by one start-to-stop lifecycle
type sessionRun struct {
	mode      Mode
	cancelAcq context.CancelFunc
	settled   chan struct{} // closed once acquisition has succeeded or failed
	finalized chan struct{} // closed once the run is back to idle

	ctx    context.Context
	cancel context.CancelFunc

	display *MediaStream
	camera  *MediaStream
	mic     *MediaStream

	detector Detector
	adapter  *LandmarkAdapter
	comp     *Compositor
	recorder *Recorder
	clock    *FrameClock

	data        bytes.Buffer
	startedAt   time.Time
	detectAfter time.Time
	faulted     atomic.Bool

	result *Recording
	err    error
}

func (r *sessionRun) streams() []*MediaStream {
	return []*MediaStream{r.display, r.camera, r.mic}
}

// CaptureSession records one artifact at a time: acquire devices, composite, encode,
// then persist the artifact with its thumbnail.
type CaptureSession struct {
	cfg  Config
	deps SessionDeps
	log  *zap.Logger

	mu    sync.Mutex
	state SessionState
	run   *sessionRun
	last  *sessionRun

	faults chan error

	subMu   sync.Mutex
	subs    map[int]chan SessionEvent
	nextSub int
}

// NewCaptureSession creates an idle session
func NewCaptureSession(cfg Config, deps SessionDeps) *CaptureSession {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CaptureSession{
		cfg:    cfg,
		deps:   deps,
		log:    logger.With(zap.String("component", "session")),
		faults: make(chan error, 4),
		subs:   make(map[int]chan SessionEvent),
	}
}

// State returns the current lifecycle state
func (s *CaptureSession) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Mode returns the effective mode of the active session, or the configured mode when idle
func (s *CaptureSession) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.run != nil {
		return s.run.mode
	}
	return s.cfg.Mode
}

// Elapsed returns how long the current recording has been running
func (s *CaptureSession) Elapsed() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != SessionRecording || s.run == nil {
		return 0
	}
	return time.Since(s.run.startedAt)
}

// Preview returns a copy of the composite canvas, nil when nothing is being rendered
func (s *CaptureSession) Preview() *image.RGBA {
	s.mu.Lock()
	run := s.run
	s.mu.Unlock()
	if run == nil || run.comp == nil {
		return nil
	}
	return run.comp.Snapshot()
}

// Faults delivers errors that ended a recording without a Stop call
func (s *CaptureSession) Faults() <-chan error {
	return s.faults
}

// Subscribe returns a channel of session events and a function to cancel it. Slow
// subscribers miss events rather than blocking the session.
func (s *CaptureSession) Subscribe() (<-chan SessionEvent, func()) {
	ch := make(chan SessionEvent, 16)
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
			close(ch)
		})
	}
}

func (s *CaptureSession) publish(ev SessionEvent) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (s *CaptureSession) setState(run *sessionRun, st SessionState) {
	s.state = st
	s.publish(SessionEvent{Type: EventState, State: st.String(), Mode: run.mode})
}

// Start acquires the devices for the configured mode and begins recording. It returns
// once recording has started or acquisition has failed; failures leave the session idle
// with every acquired stream released. Cancelling ctx aborts acquisition only.
func (s *CaptureSession) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != SessionIdle {
		s.mu.Unlock()
		return ErrSessionActive
	}
	acqCtx, cancelAcq := context.WithCancel(ctx)
	runCtx, cancelRun := context.WithCancel(context.WithoutCancel(ctx))
	run := &sessionRun{
		mode:      s.cfg.Mode,
		cancelAcq: cancelAcq,
		settled:   make(chan struct{}),
		finalized: make(chan struct{}),
		ctx:       runCtx,
		cancel:    cancelRun,
	}
	s.run = run
	s.setState(run, SessionAcquiring)
	s.mu.Unlock()

	s.log.Info("starting session", zap.String("mode", string(run.mode)))

	err := s.acquire(acqCtx, run)
	if err == nil && acqCtx.Err() != nil {
		err = &AcquireError{Device: "session", Reason: ReasonCancelled, Err: ErrAcquireCancelled}
	}
	if err == nil {
		err = s.begin(run)
	}
	cancelAcq()

	if err != nil {
		s.abort(run, err)
		return err
	}

	s.mu.Lock()
	s.setState(run, SessionRecording)
	s.mu.Unlock()
	close(run.settled)

	s.watch(run)
	s.log.Info("recording started", zap.String("mode", string(run.mode)),
		zap.Int("width", s.cfg.Canvas.Width), zap.Int("height", s.cfg.Canvas.Height))
	return nil
}

// acquire opens display, camera and microphone in that order, as the mode requires
func (s *CaptureSession) acquire(ctx context.Context, run *sessionRun) error {
	var err error
	if run.mode.HasVideo() {
		if run.display, err = s.deps.Devices.Display(ctx); err != nil {
			return err
		}
	}
	if run.mode == ModeFace {
		if run.camera, err = s.deps.Devices.Camera(ctx); err != nil {
			return err
		}
	}
	if run.mic, err = s.deps.Devices.Microphone(ctx); err != nil {
		return err
	}

	if run.mode == ModeFace {
		if err := s.startDetector(ctx, run); err != nil {
			if s.cfg.Overlay.OnDetectorFailure != DetectorFailureScreen || ctx.Err() != nil {
				return err
			}
			s.log.Warn("landmark detector unavailable, recording screen only", zap.Error(err))
			run.camera.Stop()
			s.mu.Lock()
			run.camera = nil
			run.mode = ModeScreen
			s.mu.Unlock()
			s.publish(SessionEvent{Type: EventDegraded, State: SessionAcquiring.String(), Mode: run.mode, Error: err.Error()})
		}
	}
	return nil
}

func (s *CaptureSession) startDetector(ctx context.Context, run *sessionRun) error {
	if s.deps.Detectors == nil {
		return &DetectorError{Command: "none", Err: errors.New("no landmark detector configured")}
	}
	det, err := s.deps.Detectors(ctx, s.cfg.DetectorOptions())
	if err != nil {
		var detErr *DetectorError
		if !errors.As(err, &detErr) {
			err = &DetectorError{Command: "factory", Err: err}
		}
		return err
	}
	run.detector = det
	run.adapter = NewLandmarkAdapter(run.ctx, det, s.log)
	return nil
}

// begin sizes the canvas, starts the recorder and then the frame clock
func (s *CaptureSession) begin(run *sessionRun) error {
	opts := RecorderOptions{
		MimeType:        s.mimeType(run.mode),
		Timeslice:       s.cfg.Encoder.Timeslice,
		FPS:             s.cfg.FPS,
		ShutdownTimeout: s.cfg.Encoder.ShutdownTimeout,
		OnData:          func(chunk []byte) { run.data.Write(chunk) },
	}
	if tracks := run.mic.AudioTracks(); len(tracks) > 0 {
		opts.Audio = tracks[0].Samples()
		opts.AudioFormat = tracks[0].Format()
	}
	if run.mode.HasVideo() {
		opts.Width, opts.Height = s.cfg.Canvas.Width, s.cfg.Canvas.Height
		style := DefaultOverlayStyle(s.cfg.Overlay.Scale, s.cfg.Overlay.Offset)
		run.comp = NewCompositor(s.cfg.Canvas.Width, s.cfg.Canvas.Height, style)
	}

	run.recorder = NewRecorder(s.deps.Encoder, opts, s.log)
	if err := run.recorder.Start(run.ctx); err != nil {
		return err
	}

	run.startedAt = time.Now()
	run.detectAfter = run.startedAt.Add(s.cfg.Overlay.DetectDelay)
	if run.mode.HasVideo() {
		run.clock = NewFrameClock(s.cfg.FramePeriod(), func(n uint64) { s.tick(run, n) })
		if err := run.clock.Start(); err != nil {
			run.recorder.Signal()
			return err
		}
	}
	return nil
}

func (s *CaptureSession) mimeType(mode Mode) string {
	if mode == ModeAudio {
		return s.cfg.Encoder.AudioMimeType
	}
	return s.cfg.Encoder.VideoMimeType
}

// tick renders one frame and hands it to the encoder
func (s *CaptureSession) tick(run *sessionRun, n uint64) {
	var background image.Image
	if tracks := run.display.VideoTracks(); len(tracks) > 0 {
		background = tracks[0].LatestFrame()
	}

	var result DetectionResult
	if run.adapter != nil {
		result = run.adapter.Latest()
		every := uint64(s.cfg.DetectEvery)
		if every == 0 {
			every = 1
		}
		if n%every == 0 && !time.Now().Before(run.detectAfter) {
			if tracks := run.camera.VideoTracks(); len(tracks) > 0 {
				run.adapter.Submit(tracks[0].LatestFrame())
			}
		}
	}

	run.comp.RenderTick(background, result)
	err := run.comp.View(func(img *image.RGBA) error {
		return run.recorder.WriteFrame(img)
	})
	if err != nil && !errors.Is(err, ErrNotRecording) {
		// the clock goroutine cannot stop itself
		go s.fault(run, err)
	}
}

// watch turns unexpected track or encoder endings into faults
func (s *CaptureSession) watch(run *sessionRun) {
	for _, stream := range run.streams() {
		if stream == nil {
			continue
		}
		for _, t := range stream.Tracks() {
			go func(t Track) {
				select {
				case <-t.Done():
					if err := t.Err(); err != nil {
						s.fault(run, &AcquireError{Device: t.Label(), Reason: ReasonDeviceUnavailable, Err: err})
					}
				case <-run.finalized:
				}
			}(t)
		}
	}
	go func() {
		select {
		case <-run.recorder.Done():
			if err := run.recorder.Err(); err != nil {
				s.fault(run, err)
			}
		case <-run.finalized:
		}
	}()
}

// fault ends a recording that failed on its own; the partial artifact is still kept
func (s *CaptureSession) fault(run *sessionRun, cause error) {
	if !run.faulted.CompareAndSwap(false, true) {
		return
	}
	s.mu.Lock()
	if s.run != run || s.state != SessionRecording {
		s.mu.Unlock()
		return
	}
	s.setState(run, SessionFinalizing)
	s.mu.Unlock()

	s.log.Error("recording fault", zap.Error(cause))
	s.publish(SessionEvent{Type: EventError, State: SessionFinalizing.String(), Mode: run.mode, Error: cause.Error()})
	s.finalize(context.Background(), run)

	select {
	case s.faults <- cause:
	default:
	}
}

// abort releases everything acquired so far and returns to idle
func (s *CaptureSession) abort(run *sessionRun, cause error) {
	release := boundTeardown(run.recorder)
	if run.clock != nil {
		run.clock.Stop()
	}
	if run.recorder != nil {
		run.recorder.Signal()
	}
	StopStreams(run.streams()...)
	if run.recorder != nil {
		_ = run.recorder.Stop()
	}
	release()
	s.closeDetector(run)
	run.cancel()

	if errors.Is(cause, ErrAcquireCancelled) {
		s.log.Info("session start cancelled")
	} else {
		s.log.Error("session start failed", zap.Error(cause))
	}

	s.mu.Lock()
	s.state = SessionIdle
	s.run = nil
	run.err = cause
	s.last = run
	s.publish(SessionEvent{Type: EventError, State: SessionIdle.String(), Mode: run.mode, Error: cause.Error()})
	s.publish(SessionEvent{Type: EventState, State: SessionIdle.String(), Mode: run.mode})
	s.mu.Unlock()
	close(run.settled)
	close(run.finalized)
}

// boundTeardown kills the encoder if teardown has not finished within its shutdown
// timeout. Stopping the clock waits for the running tick, and that tick may be blocked
// writing to an encoder that stopped reading.
func boundTeardown(rec *Recorder) (release func()) {
	if rec == nil {
		return func() {}
	}
	timer := time.AfterFunc(rec.ShutdownTimeout(), rec.Abort)
	return func() { timer.Stop() }
}

func (s *CaptureSession) closeDetector(run *sessionRun) {
	if run.adapter != nil {
		run.adapter.Wait()
	}
	if run.detector != nil {
		if err := run.detector.Close(); err != nil {
			s.log.Warn("closing landmark detector failed", zap.Error(err))
		}
		run.detector = nil
	}
}

// Stop ends the current session. During acquisition it cancels and waits for the
// partial streams to be released, returning a nil recording. During recording it
// finalizes and persists the artifact. A stop racing a fault returns the fault's outcome.
func (s *CaptureSession) Stop(ctx context.Context) (*Recording, error) {
	s.mu.Lock()
	run := s.run
	switch s.state {
	case SessionIdle:
		s.mu.Unlock()
		return nil, ErrNotRecording
	case SessionAcquiring:
		s.mu.Unlock()
		run.cancelAcq()
		<-run.settled
		// acquisition may have completed just before the cancel landed
		if s.State() == SessionRecording {
			return s.Stop(ctx)
		}
		return nil, nil
	case SessionFinalizing:
		s.mu.Unlock()
		<-run.finalized
		return run.result, run.err
	}
	s.setState(run, SessionFinalizing)
	s.mu.Unlock()

	s.finalize(ctx, run)
	return run.result, run.err
}

// finalize tears the run down in order: clock, encoder input, sources, encoder output,
// detector, thumbnail, store
func (s *CaptureSession) finalize(ctx context.Context, run *sessionRun) {
	release := boundTeardown(run.recorder)
	if run.clock != nil {
		run.clock.Stop()
	}
	if run.adapter != nil {
		run.adapter.Reset()
	}
	run.recorder.Signal()
	StopStreams(run.streams()...)
	encErr := run.recorder.Stop()
	release()
	run.cancel()
	s.closeDetector(run)

	var thumb []byte
	if run.comp != nil {
		img, err := ExtractThumbnail(ctx, func() image.Image {
			if snap := run.comp.Snapshot(); snap != nil {
				return snap
			}
			return nil
		}, s.cfg.Thumbnail)
		if err != nil {
			s.log.Warn("no thumbnail for recording", zap.Error(err))
		}
		thumb = img
	}

	data := run.data.Bytes()
	switch {
	case len(data) == 0:
		if encErr == nil {
			encErr = &EncoderError{MimeType: s.mimeType(run.mode), Op: "finalize", Err: errors.New("encoder produced no data")}
		}
		run.err = encErr
	default:
		if encErr != nil {
			s.log.Warn("encoder finished with error, keeping partial recording", zap.Error(encErr))
		}
		rec := &Recording{
			Kind:     run.mode,
			MimeType: s.mimeType(run.mode),
			Data:     data,
		}
		if err := s.deps.Store.Save(ctx, rec, thumb); err != nil {
			s.log.Error("failed to store recording", zap.Error(err))
			run.err = err
		} else {
			run.result = rec
			s.log.Info("recording saved", zap.Int64("id", rec.ID), zap.String("mode", string(rec.Kind)),
				zap.Int64("size", rec.Size), zap.Bool("thumbnail", rec.HasThumbnail))
		}
	}

	if run.comp != nil {
		run.comp.Clear()
	}

	s.mu.Lock()
	s.state = SessionIdle
	s.run = nil
	s.last = run
	if run.result != nil {
		s.publish(SessionEvent{Type: EventRecorded, State: SessionIdle.String(), Mode: run.mode,
			RecordingID: run.result.ID, Size: run.result.Size})
	} else if run.err != nil {
		s.publish(SessionEvent{Type: EventError, State: SessionIdle.String(), Mode: run.mode, Error: run.err.Error()})
	}
	s.publish(SessionEvent{Type: EventState, State: SessionIdle.String(), Mode: run.mode})
	s.mu.Unlock()
	close(run.finalized)
}

// Record starts a session and stops it when d elapses (d <= 0 waits for ctx), ctx is
// cancelled, or the recording faults. Finalization is not bound to ctx.
func (s *CaptureSession) Record(ctx context.Context, d time.Duration) (*Recording, error) {
	if err := s.Start(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	run := s.run
	if run == nil {
		run = s.last
	}
	s.mu.Unlock()

	var timeout <-chan time.Time
	if d > 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case <-ctx.Done():
	case <-timeout:
	case <-run.finalized:
		return run.result, run.err
	}
	if _, err := s.Stop(context.WithoutCancel(ctx)); errors.Is(err, ErrNotRecording) {
		// a fault finished the run first
		<-run.finalized
	}
	return run.result, run.err
}
