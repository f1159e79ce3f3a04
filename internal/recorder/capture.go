package recorder

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"strconv"
)

// ExecCapturer records from the default microphone by spawning arecord, or
// ffmpeg when arecord is not installed.
type ExecCapturer struct {
	sampleRate int
	channels   int
}

// NewExecCapturer creates a subprocess-based capturer
func NewExecCapturer(sampleRate, channels int) *ExecCapturer {
	if sampleRate <= 0 {
		sampleRate = 16000
	}
	if channels <= 0 {
		channels = 1
	}
	return &ExecCapturer{sampleRate: sampleRate, channels: channels}
}

// Start launches the capture process writing to path. The returned stop
// function terminates the process and waits for the file to be flushed.
func (c *ExecCapturer) Start(ctx context.Context, path string) (func() error, error) {
	cmd, err := c.buildCommand(ctx, path)
	if err != nil {
		return nil, err
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", cmd.Path, err)
	}

	stop := func() error {
		if cmd.Process != nil {
			if err := cmd.Process.Signal(os.Interrupt); err != nil {
				cmd.Process.Kill()
			}
		}
		// The recorder exits non-zero when interrupted; the artifact on disk
		// is what matters.
		if err := cmd.Wait(); err != nil {
			log.Printf("[RECORDER]: capture process exited: %v", err)
		}
		return nil
	}

	return stop, nil
}

func (c *ExecCapturer) buildCommand(ctx context.Context, path string) (*exec.Cmd, error) {
	if _, err := exec.LookPath("arecord"); err == nil {
		return exec.CommandContext(ctx, "arecord",
			"-D", "default",
			"-f", "S16_LE",
			"-c", strconv.Itoa(c.channels),
			"-r", strconv.Itoa(c.sampleRate),
			path,
		), nil
	}

	if _, err := exec.LookPath("ffmpeg"); err == nil {
		return exec.CommandContext(ctx, "ffmpeg",
			"-f", "pulse",
			"-i", "default",
			"-ar", strconv.Itoa(c.sampleRate),
			"-ac", strconv.Itoa(c.channels),
			"-y",
			path,
		), nil
	}

	return nil, fmt.Errorf("no audio capture tool available (tried arecord, ffmpeg)")
}
