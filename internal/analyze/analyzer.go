package analyze

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/YoungApple/voice-recorder/internal/language"
)

// DefaultMaxAttempts is the total provider attempt budget per analysis
const DefaultMaxAttempts = 3

// DefaultBackoffBase scales the exponential delay between attempts: the wait
// before attempt n+1 is base * 2^n seconds with the default of one second.
const DefaultBackoffBase = time.Second

// AnalysisError reports that every attempt failed. It carries the last
// underlying cause.
type AnalysisError struct {
	Attempts int
	Cause    error
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("analysis failed after %d attempts: %v", e.Attempts, e.Cause)
}

func (e *AnalysisError) Unwrap() error {
	return e.Cause
}

// Analyzer orchestrates one analysis call: language detection, prompt
// selection, the provider call, response validation, and bounded retry with
// exponential backoff.
type Analyzer struct {
	provider    TextProvider
	detector    *language.Detector
	maxAttempts int
	backoffBase time.Duration
	templates   Templates

	// sleep waits between attempts; tests inject a recorder
	sleep func(ctx context.Context, d time.Duration) error
}

// Option configures an Analyzer
type Option func(*Analyzer)

// WithMaxAttempts overrides the attempt budget
func WithMaxAttempts(n int) Option {
	return func(a *Analyzer) {
		if n > 0 {
			a.maxAttempts = n
		}
	}
}

// WithBackoffBase overrides the backoff base duration
func WithBackoffBase(d time.Duration) Option {
	return func(a *Analyzer) {
		if d > 0 {
			a.backoffBase = d
		}
	}
}

// WithPromptTemplates replaces the built-in prompt templates. Empty fields
// keep their defaults.
func WithPromptTemplates(templates Templates) Option {
	return func(a *Analyzer) {
		if templates.English != "" {
			a.templates.English = templates.English
		}
		if templates.Chinese != "" {
			a.templates.Chinese = templates.Chinese
		}
	}
}

// WithSleeper replaces the inter-attempt wait, used by tests to observe the
// computed delays without real sleeping.
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(a *Analyzer) {
		a.sleep = sleep
	}
}

// NewAnalyzer creates an analyzer over the given provider and detector
func NewAnalyzer(provider TextProvider, detector *language.Detector, opts ...Option) *Analyzer {
	a := &Analyzer{
		provider:    provider,
		detector:    detector,
		maxAttempts: DefaultMaxAttempts,
		backoffBase: DefaultBackoffBase,
		templates:   DefaultTemplates(),
		sleep:       sleepCtx,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Provider returns the configured text provider
func (a *Analyzer) Provider() TextProvider {
	return a.provider
}

// Analyze extracts a structured result from transcript text. Empty or
// whitespace-only input short-circuits to an empty result without any
// provider call; that is a valid terminal outcome, not an error. Transient
// failures, including responses that fail schema validation, are retried up
// to the attempt budget; exhaustion returns an *AnalysisError with the last
// cause.
func (a *Analyzer) Analyze(ctx context.Context, transcript string) (*Result, error) {
	if strings.TrimSpace(transcript) == "" {
		log.Printf("[ANALYZE]: transcript is empty, returning empty result")
		return emptyResult(), nil
	}

	lang := a.detector.Detect(transcript)
	prompt := a.templates.Build(lang, transcript)
	log.Printf("[ANALYZE]: detected language %q, provider %s model %s", lang, a.provider.Name(), a.provider.Model())

	var lastErr error
	for attempt := 1; attempt <= a.maxAttempts; attempt++ {
		if attempt > 1 {
			// 2s before the 2nd attempt, 4s before the 3rd, with the default base.
			delay := a.backoffBase * (1 << (attempt - 1))
			log.Printf("[ANALYZE]: attempt %d failed, retrying in %s: %v", attempt-1, delay, lastErr)
			if err := a.sleep(ctx, delay); err != nil {
				return nil, err
			}
		}

		raw, err := a.provider.AnalyzeText(ctx, prompt)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				// Abandoned, not retried.
				return nil, err
			}
			lastErr = err
			continue
		}

		result, err := parseResponse(raw)
		if err != nil {
			lastErr = err
			continue
		}

		return result, nil
	}

	return nil, &AnalysisError{Attempts: a.maxAttempts, Cause: lastErr}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
