package internal

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
)

// FFmpegEncoder encodes raw RGBA frames from stdin and PCM from fd 3 into a
// streamable container written to stdout
type FFmpegEncoder struct {
	FFmpeg      string
	KillTimeout time.Duration
	Log         *zap.Logger
}

// NewFFmpegEncoder creates an encoder backend from config
func NewFFmpegEncoder(cfg Config, logger *zap.Logger) *FFmpegEncoder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FFmpegEncoder{
		FFmpeg:      cfg.Encoder.FFmpegPath,
		KillTimeout: 2 * time.Second,
		Log:         logger.With(zap.String("component", "encoder")),
	}
}

// encodeArgs builds the ffmpeg argument list for p
func encodeArgs(p EncodeParams) ([]string, error) {
	hasVideo := p.Width > 0 && p.Height > 0
	hasAudio := p.Audio != nil
	if !hasVideo && !hasAudio {
		return nil, errors.New("no video or audio input")
	}
	if hasVideo && !p.Format.Video {
		return nil, fmt.Errorf("%w: %s has no video stream", ErrUnsupportedFormat, p.Format.MimeType)
	}

	var args []string
	if hasVideo {
		fps := p.FPS
		if fps <= 0 {
			fps = 30
		}
		args = append(args,
			"-f", "rawvideo", "-pix_fmt", "rgba",
			"-s", fmt.Sprintf("%dx%d", p.Width, p.Height),
			"-framerate", strconv.Itoa(fps),
			"-i", "pipe:0")
	}
	if hasAudio {
		af := p.AudioFormat
		if af.SampleRate == 0 {
			af = DefaultAudioFormat
		}
		args = append(args,
			"-f", af.Encoding,
			"-ar", strconv.Itoa(af.SampleRate),
			"-ac", strconv.Itoa(af.Channels),
			"-i", "pipe:3")
	}

	switch {
	case hasVideo && hasAudio:
		args = append(args, "-map", "0:v", "-map", "1:a")
		args = append(args, p.Format.VideoCodec...)
		args = append(args, p.Format.AudioCodec...)
	case hasVideo:
		args = append(args, p.Format.VideoCodec...)
	default:
		args = append(args, "-vn")
		args = append(args, p.Format.AudioCodec...)
	}
	args = append(args, p.Format.MuxerArgs...)
	args = append(args, "-f", p.Format.Muxer, "pipe:1")
	return args, nil
}

// Open starts ffmpeg for one recording
func (e *FFmpegEncoder) Open(ctx context.Context, p EncodeParams) (EncoderPipe, error) {
	args, err := encodeArgs(p)
	if err != nil {
		return nil, &EncoderError{MimeType: p.Format.MimeType, Op: "start", Err: err}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var stdinR, stdinW, audioR, audioW *os.File
	closeAll := func() {
		for _, f := range []*os.File{stdinR, stdinW, audioR, audioW} {
			if f != nil {
				f.Close()
			}
		}
	}
	if p.Width > 0 && p.Height > 0 {
		if stdinR, stdinW, err = os.Pipe(); err != nil {
			return nil, &EncoderError{MimeType: p.Format.MimeType, Op: "start", Err: err}
		}
	}
	var extra []*os.File
	if p.Audio != nil {
		if audioR, audioW, err = os.Pipe(); err != nil {
			closeAll()
			return nil, &EncoderError{MimeType: p.Format.MimeType, Op: "start", Err: err}
		}
		extra = []*os.File{audioR}
	}

	proc, err := startFFmpeg(e.FFmpeg, args, stdinR, extra, e.Log)
	if err != nil {
		closeAll()
		return nil, &EncoderError{MimeType: p.Format.MimeType, Op: "start", Err: err}
	}
	// The child holds its own copies of the read ends.
	if stdinR != nil {
		stdinR.Close()
	}
	if audioR != nil {
		audioR.Close()
	}

	pipe := &ffmpegEncoderPipe{
		proc:        proc,
		video:       stdinW,
		audio:       audioW,
		width:       p.Width,
		height:      p.Height,
		killTimeout: e.KillTimeout,
	}
	if audioW != nil {
		go pipe.copyAudio(p.Audio)
	}
	return pipe, nil
}

type ffmpegEncoderPipe struct {
	proc          *ffmpegProcess
	video         *os.File
	audio         *os.File
	width, height int
	killTimeout   time.Duration

	closeOnce sync.Once
}

func (p *ffmpegEncoderPipe) copyAudio(src io.Reader) {
	if _, err := io.Copy(p.audio, src); err != nil && !errors.Is(err, os.ErrClosed) {
		p.proc.log.Debug("audio feed ended", zap.Error(err))
	}
	p.audio.Close()
}

func (p *ffmpegEncoderPipe) Read(b []byte) (int, error) {
	return p.proc.stdout.Read(b)
}

func (p *ffmpegEncoderPipe) WriteFrame(img *image.RGBA) error {
	if p.video == nil {
		return errors.New("encoder has no video input")
	}
	b := img.Bounds()
	if b.Dx() != p.width || b.Dy() != p.height {
		return fmt.Errorf("frame is %dx%d, encoder expects %dx%d", b.Dx(), b.Dy(), p.width, p.height)
	}
	row := 4 * p.width
	if img.Stride == row {
		_, err := p.video.Write(img.Pix[:row*p.height])
		return err
	}
	for y := 0; y < p.height; y++ {
		off := y * img.Stride
		if _, err := p.video.Write(img.Pix[off : off+row]); err != nil {
			return err
		}
	}
	return nil
}

func (p *ffmpegEncoderPipe) CloseInput() error {
	var err error
	p.closeOnce.Do(func() {
		if p.video != nil {
			err = p.video.Close()
		}
		if p.audio != nil {
			// unblocks copyAudio; a second close there is harmless
			p.audio.Close()
		}
	})
	return err
}

func (p *ffmpegEncoderPipe) Wait() error {
	<-p.proc.exited
	if p.proc.waitErr != nil {
		return p.proc.exitError()
	}
	return nil
}

func (p *ffmpegEncoderPipe) Kill() {
	p.proc.interrupt(p.killTimeout)
}
