package transcribe

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"strings"
)

// WhisperCppProvider transcribes audio by shelling out to a local
// whisper.cpp binary. The binary writes a plain-text sidecar next to the
// audio file, which is read back as the transcript.
type WhisperCppProvider struct {
	executable string
	modelPath  string
	formats    []string
}

// NewWhisperCppProvider creates a local-binary provider
func NewWhisperCppProvider(executable, modelPath string, formats []string) *WhisperCppProvider {
	return &WhisperCppProvider{
		executable: executable,
		modelPath:  modelPath,
		formats:    formats,
	}
}

func (p *WhisperCppProvider) Name() string {
	return "whisper-cpp"
}

// Transcribe runs the whisper.cpp binary against the audio file
func (p *WhisperCppProvider) Transcribe(ctx context.Context, audioPath string) (*Result, error) {
	empty, err := checkAudio(audioPath, p.formats)
	if err != nil {
		return nil, err
	}
	if empty {
		log.Printf("[TRANSCRIBE]: %s is empty, skipping whisper.cpp", audioPath)
		return &Result{}, nil
	}

	cmd := exec.CommandContext(ctx, p.executable,
		"-m", p.modelPath,
		"-f", audioPath,
		"-l", "auto",
		"-otxt",
	)

	output, err := cmd.CombinedOutput()
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: whisper.cpp killed after deadline", ErrTimeout)
		}
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: whisper.cpp failed: %v: %s", ErrProviderUnavailable, err, strings.TrimSpace(string(output)))
	}

	// whisper.cpp -otxt writes <audio>.txt next to the input
	sidecar := audioPath + ".txt"
	content, err := os.ReadFile(sidecar)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read whisper.cpp transcript %s: %v", ErrProviderUnavailable, sidecar, err)
	}
	defer os.Remove(sidecar)

	return &Result{
		Text:       strings.TrimSpace(string(content)),
		Confidence: 1.0,
	}, nil
}
