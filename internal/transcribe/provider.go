// Package transcribe turns a recorded audio artifact into text through a
// pluggable provider, either a hosted API or a local whisper.cpp binary.
package transcribe

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrUnsupportedFormat means the audio format is not in the allowed set
	ErrUnsupportedFormat = errors.New("unsupported audio format")

	// ErrProviderUnavailable means the provider could not be reached. The
	// caller may retry or switch providers.
	ErrProviderUnavailable = errors.New("transcription provider unavailable")

	// ErrTimeout means the provider did not answer within the deadline
	ErrTimeout = errors.New("transcription timed out")
)

// Result is the outcome of one transcription call. An empty Text with no
// error is a valid terminal outcome for silent or empty audio; downstream
// stages must not treat it as a failure.
type Result struct {
	Text         string
	LanguageHint string
	Confidence   float64
}

// Provider is a pluggable transcription backend
type Provider interface {
	// Transcribe converts the audio file at the given path to text
	Transcribe(ctx context.Context, audioPath string) (*Result, error)

	// Name identifies the provider in transcript records and logs
	Name() string
}

// DefaultFormats are the audio formats accepted when none are configured
var DefaultFormats = []string{"wav", "mp3", "m4a", "flac", "ogg"}

// checkAudio validates the artifact before any provider call. A format
// outside the allowed set fails with ErrUnsupportedFormat; a zero-byte file
// reports empty audio so providers can short-circuit to an empty transcript.
func checkAudio(audioPath string, formats []string) (empty bool, err error) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(audioPath)), ".")
	if len(formats) == 0 {
		formats = DefaultFormats
	}
	supported := false
	for _, f := range formats {
		if ext == strings.ToLower(f) {
			supported = true
			break
		}
	}
	if !supported {
		return false, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}

	info, err := os.Stat(audioPath)
	if err != nil {
		return false, fmt.Errorf("failed to stat audio file: %w", err)
	}
	return info.Size() == 0, nil
}
