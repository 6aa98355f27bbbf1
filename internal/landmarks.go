package internal

import (
	"context"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Landmark is a normalized 3D point: X and Y in [0,1] relative to the source frame,
// Z roughly in [-1,1].
type Landmark struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// LandmarkSet holds the landmarks of one face, in detector index order
type LandmarkSet []Landmark

// DetectionResult is one detector answer: zero or more faces
type DetectionResult struct {
	Faces      []LandmarkSet
	DetectedAt time.Time
}

// Empty reports whether no face was detected
func (r DetectionResult) Empty() bool {
	return len(r.Faces) == 0
}

// DetectorOptions are fixed when the detector is constructed
type DetectorOptions struct {
	MaxFaces               int     `json:"max_faces"`
	MinDetectionConfidence float64 `json:"min_detection_confidence"`
	MinTrackingConfidence  float64 `json:"min_tracking_confidence"`
}

// Detector finds face landmarks in a frame
type Detector interface {
	Detect(ctx context.Context, frame image.Image) (DetectionResult, error)
	Close() error
}

// DetectorFactory constructs a detector; errors are reported as initialization failures
type DetectorFactory func(ctx context.Context, opts DetectorOptions) (Detector, error)

// AdapterStats counts adapter activity
type AdapterStats struct {
	Submitted uint64 // detections started
	Coalesced uint64 // submissions dropped because one was in flight
	Completed uint64 // results published
	Failed    uint64 // per-frame detector errors
}

// LandmarkAdapter decouples detection latency from the render rate. At most one
// detection is in flight; Latest always returns the most recent completed result.
type LandmarkAdapter struct {
	ctx      context.Context
	detector Detector
	log      *zap.Logger

	inFlight atomic.Bool
	latest   atomic.Pointer[DetectionResult]
	wg       sync.WaitGroup

	// pubMu orders result publication against Reset; gen counts resets
	pubMu sync.Mutex
	gen   uint64

	submitted atomic.Uint64
	coalesced atomic.Uint64
	completed atomic.Uint64
	failed    atomic.Uint64
}

// NewLandmarkAdapter wraps a detector. ctx bounds every detection call.
func NewLandmarkAdapter(ctx context.Context, detector Detector, logger *zap.Logger) *LandmarkAdapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LandmarkAdapter{
		ctx:      ctx,
		detector: detector,
		log:      logger.With(zap.String("component", "landmarks")),
	}
}

// Submit starts a detection on frame and returns immediately. While a detection is in
// flight the call is a no-op and returns false. The frame must not be modified afterwards.
func (a *LandmarkAdapter) Submit(frame image.Image) bool {
	if frame == nil {
		return false
	}
	if !a.inFlight.CompareAndSwap(false, true) {
		a.coalesced.Add(1)
		return false
	}
	a.submitted.Add(1)
	a.wg.Add(1)
	a.pubMu.Lock()
	gen := a.gen
	a.pubMu.Unlock()

	go func() {
		defer a.wg.Done()
		defer a.inFlight.Store(false)

		result, err := a.detector.Detect(a.ctx, frame)
		if err != nil {
			// Keep the previous result; one bad frame should not blank the overlay.
			a.failed.Add(1)
			if a.ctx.Err() == nil {
				a.log.Warn("detection failed", zap.Error(err))
			}
			return
		}
		if result.DetectedAt.IsZero() {
			result.DetectedAt = time.Now()
		}
		a.completed.Add(1)

		a.pubMu.Lock()
		defer a.pubMu.Unlock()
		// a Reset since submission makes this result stale
		if a.gen == gen {
			a.latest.Store(&result)
		}
	}()
	return true
}

// Latest returns the most recent result, or an empty result before the first completes
func (a *LandmarkAdapter) Latest() DetectionResult {
	if r := a.latest.Load(); r != nil {
		return *r
	}
	return DetectionResult{}
}

// Busy reports whether a detection is in flight
func (a *LandmarkAdapter) Busy() bool {
	return a.inFlight.Load()
}

// Wait blocks until the in-flight detection, if any, has returned
func (a *LandmarkAdapter) Wait() {
	a.wg.Wait()
}

// Reset drops the latest result. A detection still in flight is discarded when it returns.
func (a *LandmarkAdapter) Reset() {
	a.pubMu.Lock()
	a.gen++
	a.latest.Store(nil)
	a.pubMu.Unlock()
}

// Stats returns a snapshot of the counters
func (a *LandmarkAdapter) Stats() AdapterStats {
	return AdapterStats{
		Submitted: a.submitted.Load(),
		Coalesced: a.coalesced.Load(),
		Completed: a.completed.Load(),
		Failed:    a.failed.Load(),
	}
}
