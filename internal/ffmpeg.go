package internal

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ffmpegProcess is a running ffmpeg child whose stdout is an OS pipe owned by the parent
type ffmpegProcess struct {
	cmd    *exec.Cmd
	stdout *os.File
	stderr *tailBuffer
	log    *zap.Logger

	exited  chan struct{}
	waitErr error
}

// startFFmpeg starts ffmpeg with args. extra files become fd 3, 4, ... in the child.
func startFFmpeg(bin string, args []string, stdin *os.File, extra []*os.File, logger *zap.Logger) (*ffmpegProcess, error) {
	pr, pw, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}

	full := append([]string{"-hide_banner", "-loglevel", "error", "-nostats"}, args...)
	cmd := exec.Command(bin, full...)
	cmd.Stdout = pw
	if stdin != nil {
		cmd.Stdin = stdin
	}
	cmd.ExtraFiles = extra
	tail := newTailBuffer(4096)
	cmd.Stderr = tail

	if err := cmd.Start(); err != nil {
		pr.Close()
		pw.Close()
		return nil, err
	}
	// The child holds its own copy; EOF on pr now means the child is gone.
	pw.Close()

	p := &ffmpegProcess{
		cmd:    cmd,
		stdout: pr,
		stderr: tail,
		log:    logger.With(zap.Int("pid", cmd.Process.Pid)),
		exited: make(chan struct{}),
	}
	p.log.Debug("ffmpeg started", zap.String("args", strings.Join(full, " ")))

	go func() {
		p.waitErr = cmd.Wait()
		close(p.exited)
	}()
	return p, nil
}

// interrupt asks ffmpeg to finish its output, killing it after timeout
func (p *ffmpegProcess) interrupt(timeout time.Duration) {
	select {
	case <-p.exited:
		return
	default:
	}
	_ = p.cmd.Process.Signal(os.Interrupt)
	select {
	case <-p.exited:
	case <-time.After(timeout):
		p.log.Warn("ffmpeg did not exit after interrupt, killing", zap.Duration("timeout", timeout))
		_ = p.cmd.Process.Kill()
		<-p.exited
	}
}

// kill stops ffmpeg immediately and waits for it
func (p *ffmpegProcess) kill() {
	select {
	case <-p.exited:
		return
	default:
	}
	_ = p.cmd.Process.Kill()
	<-p.exited
}

// exitError describes why the process ended, including its last stderr output
func (p *ffmpegProcess) exitError() error {
	<-p.exited
	msg := strings.TrimSpace(p.stderr.String())
	switch {
	case p.waitErr != nil && msg != "":
		return fmt.Errorf("ffmpeg exited: %w: %s", p.waitErr, msg)
	case p.waitErr != nil:
		return fmt.Errorf("ffmpeg exited: %w", p.waitErr)
	case msg != "":
		return fmt.Errorf("ffmpeg exited: %s", msg)
	default:
		return fmt.Errorf("ffmpeg exited")
	}
}

// tailBuffer keeps the last n bytes written to it
type tailBuffer struct {
	mu  sync.Mutex
	n   int
	buf []byte
}

func newTailBuffer(n int) *tailBuffer {
	return &tailBuffer{n: n}
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	if len(b.buf) > b.n {
		b.buf = b.buf[len(b.buf)-b.n:]
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}

// FFmpegAvailable reports whether the ffmpeg binary can be found
func FFmpegAvailable(bin string) (string, error) {
	return exec.LookPath(bin)
}
