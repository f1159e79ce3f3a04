package analyze

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YoungApple/voice-recorder/internal/language"
)

const validResponse = `{
	"title": "Planning call",
	"summary": "Discussed next steps.",
	"ideas": ["try the new provider"],
	"tasks": [{"title": "write the doc", "description": "short one", "priority": "High"}],
	"structured_notes": [{"title": "Decision", "content": "ship it", "tags": ["release"], "note_type": "Decision"}]
}`

// fakeProvider returns scripted responses/errors in order, then repeats the
// last entry.
type fakeProvider struct {
	responses []string
	errs      []error
	calls     int
	prompts   []string
}

func (f *fakeProvider) AnalyzeText(_ context.Context, prompt string) (string, error) {
	i := f.calls
	f.calls++
	f.prompts = append(f.prompts, prompt)
	if i >= len(f.responses) {
		i = len(f.responses) - 1
	}
	if err := f.errs[i]; err != nil {
		return "", err
	}
	return f.responses[i], nil
}

func (f *fakeProvider) Name() string  { return "fake" }
func (f *fakeProvider) Model() string { return "fake-model" }

// sleepRecorder captures backoff delays without sleeping
type sleepRecorder struct {
	delays []time.Duration
	err    error
}

func (s *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	s.delays = append(s.delays, d)
	return s.err
}

func newTestAnalyzer(provider TextProvider, recorder *sleepRecorder) *Analyzer {
	return NewAnalyzer(provider, language.NewDetector(0), WithSleeper(recorder.sleep))
}

func TestAnalyzeEmptyTranscriptShortCircuits(t *testing.T) {
	provider := &fakeProvider{responses: []string{validResponse}, errs: []error{nil}}
	analyzer := newTestAnalyzer(provider, &sleepRecorder{})

	for _, transcript := range []string{"", "   ", "\n\t  \n"} {
		result, err := analyzer.Analyze(context.Background(), transcript)
		require.NoError(t, err)
		assert.True(t, result.Empty())
		assert.NotNil(t, result.Ideas)
		assert.NotNil(t, result.Tasks)
		assert.NotNil(t, result.StructuredNotes)
	}

	assert.Zero(t, provider.calls, "no provider calls for empty input")
}

func TestAnalyzeSuccessFirstAttempt(t *testing.T) {
	provider := &fakeProvider{responses: []string{validResponse}, errs: []error{nil}}
	recorder := &sleepRecorder{}
	analyzer := newTestAnalyzer(provider, recorder)

	result, err := analyzer.Analyze(context.Background(), "We planned the release.")
	require.NoError(t, err)
	assert.Equal(t, "Planning call", result.Title)
	assert.Equal(t, []string{"try the new provider"}, result.Ideas)
	require.Len(t, result.Tasks, 1)
	assert.Equal(t, "High", result.Tasks[0].Priority)
	assert.Equal(t, 1, provider.calls)
	assert.Empty(t, recorder.delays)
}

func TestAnalyzeRetriesThenSucceeds(t *testing.T) {
	provider := &fakeProvider{
		responses: []string{"", validResponse},
		errs:      []error{errors.New("connection refused"), nil},
	}
	recorder := &sleepRecorder{}
	analyzer := newTestAnalyzer(provider, recorder)

	result, err := analyzer.Analyze(context.Background(), "Some transcript.")
	require.NoError(t, err)
	assert.Equal(t, "Planning call", result.Title)

	// Success on attempt 2 stops further retries and sleeps.
	assert.Equal(t, 2, provider.calls)
	assert.Equal(t, []time.Duration{2 * time.Second}, recorder.delays)
}

func TestAnalyzeExhaustsAttempts(t *testing.T) {
	cause := errors.New("model overloaded")
	provider := &fakeProvider{
		responses: []string{""},
		errs:      []error{cause},
	}
	recorder := &sleepRecorder{}
	analyzer := newTestAnalyzer(provider, recorder)

	_, err := analyzer.Analyze(context.Background(), "Some transcript.")
	require.Error(t, err)

	var analysisErr *AnalysisError
	require.ErrorAs(t, err, &analysisErr)
	assert.Equal(t, 3, analysisErr.Attempts)
	assert.ErrorIs(t, err, cause)

	assert.Equal(t, 3, provider.calls)
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, recorder.delays)
}

func TestAnalyzeSchemaFailureIsRetryable(t *testing.T) {
	provider := &fakeProvider{
		responses: []string{
			`{"title": "x", "summary": "y", "ideas": []}`, // missing tasks + structured_notes
			"this is not json at all",
			validResponse,
		},
		errs: []error{nil, nil, nil},
	}
	recorder := &sleepRecorder{}
	analyzer := newTestAnalyzer(provider, recorder)

	result, err := analyzer.Analyze(context.Background(), "Some transcript.")
	require.NoError(t, err)
	assert.Equal(t, "Planning call", result.Title)
	assert.Equal(t, 3, provider.calls)
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, recorder.delays)
}

func TestAnalyzeCancellationNotRetried(t *testing.T) {
	provider := &fakeProvider{
		responses: []string{""},
		errs:      []error{context.Canceled},
	}
	recorder := &sleepRecorder{}
	analyzer := newTestAnalyzer(provider, recorder)

	_, err := analyzer.Analyze(context.Background(), "Some transcript.")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, provider.calls)
	assert.Empty(t, recorder.delays)
}

func TestAnalyzeBackoffSleepCancelled(t *testing.T) {
	provider := &fakeProvider{
		responses: []string{""},
		errs:      []error{errors.New("transient")},
	}
	recorder := &sleepRecorder{err: context.Canceled}
	analyzer := newTestAnalyzer(provider, recorder)

	_, err := analyzer.Analyze(context.Background(), "Some transcript.")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, provider.calls, "no further attempts after cancelled backoff")
}

func TestAnalyzePromptSelection(t *testing.T) {
	t.Run("english transcript gets english prompt", func(t *testing.T) {
		provider := &fakeProvider{responses: []string{validResponse}, errs: []error{nil}}
		analyzer := newTestAnalyzer(provider, &sleepRecorder{})

		_, err := analyzer.Analyze(context.Background(), "A plain English meeting recap.")
		require.NoError(t, err)
		require.Len(t, provider.prompts, 1)
		assert.Contains(t, provider.prompts[0], "analyzing meeting transcripts")
	})

	t.Run("chinese transcript gets chinese prompt", func(t *testing.T) {
		provider := &fakeProvider{responses: []string{validResponse}, errs: []error{nil}}
		analyzer := newTestAnalyzer(provider, &sleepRecorder{})

		_, err := analyzer.Analyze(context.Background(), "今天的会议讨论了发布计划和后续安排。")
		require.NoError(t, err)
		require.Len(t, provider.prompts, 1)
		assert.Contains(t, provider.prompts[0], "文本分析助手")
	})
}
