package transcribe

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/sashabaranov/go-openai"
)

// OpenAIProvider transcribes audio through the hosted Whisper API
type OpenAIProvider struct {
	client  *openai.Client
	formats []string
}

// NewOpenAIProvider creates a Whisper-backed provider. Formats may be nil to
// accept the default set.
func NewOpenAIProvider(apiKey string, formats []string) *OpenAIProvider {
	return &OpenAIProvider{
		client:  openai.NewClient(apiKey),
		formats: formats,
	}
}

func (p *OpenAIProvider) Name() string {
	return "openai-whisper"
}

// Transcribe sends the audio file to the Whisper API and returns the text
func (p *OpenAIProvider) Transcribe(ctx context.Context, audioPath string) (*Result, error) {
	empty, err := checkAudio(audioPath, p.formats)
	if err != nil {
		return nil, err
	}
	if empty {
		log.Printf("[TRANSCRIBE]: %s is empty, skipping provider call", audioPath)
		return &Result{}, nil
	}

	resp, err := p.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    openai.Whisper1,
		FilePath: audioPath,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	return &Result{
		Text: resp.Text,
		// Whisper auto-detects but does not report language or confidence on
		// this endpoint; the language detector downstream fills the gap.
		Confidence: 1.0,
	}, nil
}
