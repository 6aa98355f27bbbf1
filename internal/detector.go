package internal

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

const detectorReadyTimeout = 30 * time.Second

// detectorMessage is one JSON line exchanged with the detector process.
//
//	-> {"type":"init","options":{...}}
//	<- {"type":"ready"}
//	-> {"type":"detect","id":1,"width":640,"height":480,"image":"<base64 jpeg>"}
//	<- {"type":"result","id":1,"faces":[[{"x":0.5,"y":0.5,"z":0}, ...]]}
//	<- {"type":"error","id":1,"error":"..."}
type detectorMessage struct {
	Type    string           `json:"type"`
	ID      uint64           `json:"id,omitempty"`
	Options *DetectorOptions `json:"options,omitempty"`
	Width   int              `json:"width,omitempty"`
	Height  int              `json:"height,omitempty"`
	Image   string           `json:"image,omitempty"`
	Faces   [][]Landmark     `json:"faces,omitempty"`
	Error   string           `json:"error,omitempty"`
}

// ProcessDetector runs a landmark model in a child process speaking JSON lines on
// stdin and stdout. Detect calls are serialized.
type ProcessDetector struct {
	command []string
	log     *zap.Logger

	cmd     *exec.Cmd
	stdin   io.WriteCloser
	lines   chan detectorMessage
	exited  chan struct{}
	waitErr error

	mu     sync.Mutex
	seq    uint64
	closed atomic.Bool
}

// NewProcessDetector starts the detector command and waits for its ready line.
// Any failure is returned as a *DetectorError.
func NewProcessDetector(ctx context.Context, command []string, opts DetectorOptions, logger *zap.Logger) (*ProcessDetector, error) {
	if len(command) == 0 {
		return nil, &DetectorError{Command: "", Err: errors.New("no detector command configured")}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	name := strings.Join(command, " ")

	cmd := exec.Command(command[0], command[1:]...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, &DetectorError{Command: name, Err: err}
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &DetectorError{Command: name, Err: err}
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, &DetectorError{Command: name, Err: err}
	}
	if err := cmd.Start(); err != nil {
		return nil, &DetectorError{Command: name, Err: err}
	}

	d := &ProcessDetector{
		command: command,
		log:     logger.With(zap.String("component", "detector"), zap.Int("pid", cmd.Process.Pid)),
		cmd:     cmd,
		stdin:   stdin,
		lines:   make(chan detectorMessage, 4),
		exited:  make(chan struct{}),
	}

	go d.readStdout(stdout)
	go d.logStderr(stderr)
	go func() {
		d.waitErr = cmd.Wait()
		close(d.exited)
	}()

	if err := d.handshake(ctx, opts); err != nil {
		d.kill()
		return nil, &DetectorError{Command: name, Err: err}
	}

	d.log.Info("detector ready", zap.String("command", name))
	return d, nil
}

func (d *ProcessDetector) handshake(ctx context.Context, opts DetectorOptions) error {
	if err := d.send(detectorMessage{Type: "init", Options: &opts}); err != nil {
		return fmt.Errorf("send init: %w", err)
	}

	timer := time.NewTimer(detectorReadyTimeout)
	defer timer.Stop()

	select {
	case msg, ok := <-d.lines:
		if !ok {
			return d.exitError()
		}
		switch msg.Type {
		case "ready":
			return nil
		case "error":
			return errors.New(msg.Error)
		default:
			return fmt.Errorf("unexpected %q message before ready", msg.Type)
		}
	case <-d.exited:
		return d.exitError()
	case <-timer.C:
		return fmt.Errorf("no ready message within %s", detectorReadyTimeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Detect sends one frame and waits for its result
func (d *ProcessDetector) Detect(ctx context.Context, frame image.Image) (DetectionResult, error) {
	if d.closed.Load() {
		return DetectionResult{}, errors.New("detector closed")
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, frame, &jpeg.Options{Quality: 80}); err != nil {
		return DetectionResult{}, fmt.Errorf("encode frame: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.seq++
	id := d.seq
	b := frame.Bounds()
	req := detectorMessage{
		Type:   "detect",
		ID:     id,
		Width:  b.Dx(),
		Height: b.Dy(),
		Image:  base64.StdEncoding.EncodeToString(buf.Bytes()),
	}
	if err := d.send(req); err != nil {
		return DetectionResult{}, fmt.Errorf("send frame: %w", err)
	}

	for {
		select {
		case msg, ok := <-d.lines:
			if !ok {
				return DetectionResult{}, d.exitError()
			}
			if msg.ID != id {
				// Stale answer to a request whose caller gave up.
				continue
			}
			if msg.Type == "error" {
				return DetectionResult{}, errors.New(msg.Error)
			}
			faces := make([]LandmarkSet, 0, len(msg.Faces))
			for _, f := range msg.Faces {
				faces = append(faces, LandmarkSet(f))
			}
			return DetectionResult{Faces: faces, DetectedAt: time.Now()}, nil
		case <-ctx.Done():
			return DetectionResult{}, ctx.Err()
		}
	}
}

// Close closes stdin, giving the process a moment to exit before killing it
func (d *ProcessDetector) Close() error {
	if !d.closed.CompareAndSwap(false, true) {
		return nil
	}
	_ = d.stdin.Close()

	select {
	case <-d.exited:
	case <-time.After(2 * time.Second):
		d.log.Warn("detector did not exit, killing")
		d.kill()
	}
	return nil
}

func (d *ProcessDetector) send(msg detectorMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = d.stdin.Write(data)
	return err
}

func (d *ProcessDetector) readStdout(r io.Reader) {
	defer close(d.lines)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		var msg detectorMessage
		if err := json.Unmarshal(scanner.Bytes(), &msg); err != nil {
			d.log.Debug("ignoring non-protocol output", zap.String("line", truncate(scanner.Text(), 120)))
			continue
		}
		select {
		case d.lines <- msg:
		case <-d.exited:
			return
		}
	}
}

func (d *ProcessDetector) logStderr(r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		d.log.Debug(scanner.Text())
	}
}

func (d *ProcessDetector) exitError() error {
	<-d.exited
	if d.waitErr != nil {
		return fmt.Errorf("detector exited: %w", d.waitErr)
	}
	return errors.New("detector exited")
}

func (d *ProcessDetector) kill() {
	if d.cmd.Process != nil {
		_ = d.cmd.Process.Kill()
	}
	<-d.exited
}

// ProcessDetectorFactory returns a DetectorFactory launching command
func ProcessDetectorFactory(command []string, logger *zap.Logger) DetectorFactory {
	return func(ctx context.Context, opts DetectorOptions) (Detector, error) {
		return NewProcessDetector(ctx, command, opts, logger)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
