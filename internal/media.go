package internal

import (
	"context"
	"image"
	"io"
	"sync"

	"github.com/google/uuid"
)

// TrackKind is the media type of a track
type TrackKind string

const (
	TrackVideo TrackKind = "video"
	TrackAudio TrackKind = "audio"
)

// Track is one live capture source. Stop is idempotent and safe to call concurrently.
type Track interface {
	ID() string
	Kind() TrackKind
	Label() string
	Stop()
	Stopped() bool
	// Done is closed when the track ends, by Stop or because the device went away
	Done() <-chan struct{}
	// Err reports why the track ended on its own, nil after a clean Stop
	Err() error
}

// VideoTrack delivers frames; LatestFrame returns nil until the first frame arrives.
// Returned frames are never modified afterwards.
type VideoTrack interface {
	Track
	LatestFrame() image.Image
	Size() (width, height int)
}

// AudioFormat describes interleaved PCM samples
type AudioFormat struct {
	SampleRate int
	Channels   int
	Encoding   string // ffmpeg sample format name, e.g. "s16le"
}

// DefaultAudioFormat is 48 kHz mono signed 16-bit little endian
var DefaultAudioFormat = AudioFormat{SampleRate: 48000, Channels: 1, Encoding: "s16le"}

// AudioTrack delivers raw PCM. Samples has a single consumer.
type AudioTrack interface {
	Track
	Samples() io.Reader
	Format() AudioFormat
}

// MediaStream groups the tracks produced by one acquisition
type MediaStream struct {
	id     string
	source string
	tracks []Track
	once   sync.Once
}

// NewMediaStream creates a stream from already started tracks
func NewMediaStream(source string, tracks ...Track) *MediaStream {
	return &MediaStream{id: uuid.NewString(), source: source, tracks: tracks}
}

// ID returns the stream id
func (s *MediaStream) ID() string {
	if s == nil {
		return ""
	}
	return s.id
}

// Source returns the device class the stream came from
func (s *MediaStream) Source() string {
	if s == nil {
		return ""
	}
	return s.source
}

// Tracks returns every track
func (s *MediaStream) Tracks() []Track {
	if s == nil {
		return nil
	}
	return s.tracks
}

// VideoTracks returns the video tracks
func (s *MediaStream) VideoTracks() []VideoTrack {
	var out []VideoTrack
	for _, t := range s.Tracks() {
		if v, ok := t.(VideoTrack); ok {
			out = append(out, v)
		}
	}
	return out
}

// AudioTracks returns the audio tracks
func (s *MediaStream) AudioTracks() []AudioTrack {
	var out []AudioTrack
	for _, t := range s.Tracks() {
		if a, ok := t.(AudioTrack); ok {
			out = append(out, a)
		}
	}
	return out
}

// Live reports whether any track is still running
func (s *MediaStream) Live() bool {
	for _, t := range s.Tracks() {
		if !t.Stopped() {
			return true
		}
	}
	return false
}

// Stop stops every track. A nil stream is a no-op; repeated calls are no-ops.
func (s *MediaStream) Stop() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		var wg sync.WaitGroup
		for _, t := range s.tracks {
			if t == nil {
				continue
			}
			wg.Add(1)
			go func(t Track) {
				defer wg.Done()
				t.Stop()
			}(t)
		}
		wg.Wait()
	})
}

// StopStreams stops each stream, skipping nils
func StopStreams(streams ...*MediaStream) {
	for _, s := range streams {
		s.Stop()
	}
}

// Devices opens capture streams. Each call blocks until the device delivers its first
// data, fails, or ctx is cancelled; failures are returned as *AcquireError.
type Devices interface {
	Display(ctx context.Context) (*MediaStream, error)
	Camera(ctx context.Context) (*MediaStream, error)
	Microphone(ctx context.Context) (*MediaStream, error)
}

// trackBase implements the lifecycle half of Track
type trackBase struct {
	id    string
	kind  TrackKind
	label string

	stopOnce sync.Once
	mu       sync.Mutex
	stopped  bool
	err      error
	done     chan struct{}
	onStop   func()
}

func newTrackBase(kind TrackKind, label string, onStop func()) *trackBase {
	return &trackBase{
		id:     uuid.NewString(),
		kind:   kind,
		label:  label,
		done:   make(chan struct{}),
		onStop: onStop,
	}
}

func (t *trackBase) ID() string { return t.id }
func (t *trackBase) Kind() TrackKind { return t.kind }
func (t *trackBase) Label() string { return t.label }

func (t *trackBase) Done() <-chan struct{} { return t.done }

func (t *trackBase) Stopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

func (t *trackBase) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Stop runs onStop once and marks the track ended
func (t *trackBase) Stop() {
	t.end(nil)
}

// end records why the track ended; only the first call has any effect
func (t *trackBase) end(err error) {
	t.stopOnce.Do(func() {
		t.mu.Lock()
		t.stopped = true
		t.err = err
		t.mu.Unlock()
		if t.onStop != nil {
			t.onStop()
		}
		close(t.done)
	})
}
