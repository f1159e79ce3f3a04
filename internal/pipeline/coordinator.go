// Package pipeline sequences a voice session through capture, transcription,
// analysis, and persistence, and exposes the session lifecycle to the API
// layer. Transcription and analysis for independent sessions run concurrently;
// outbound provider calls share a bounded pool.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/YoungApple/voice-recorder/internal/analyze"
	"github.com/YoungApple/voice-recorder/internal/language"
	"github.com/YoungApple/voice-recorder/internal/recorder"
	"github.com/YoungApple/voice-recorder/internal/storage"
	"github.com/YoungApple/voice-recorder/internal/transcribe"
)

var (
	// ErrNoAudio is returned when transcription is requested for a session
	// without a stored audio artifact
	ErrNoAudio = errors.New("session has no audio file")

	// ErrSessionBusy is returned when transcription or analysis is already
	// running for the same session
	ErrSessionBusy = errors.New("session already has work in flight")

	// ErrAudioTooLarge is returned when the stored audio exceeds the
	// configured size limit
	ErrAudioTooLarge = errors.New("audio file exceeds the size limit")

	// ErrNoRecorder is returned when a recording operation is invoked on a
	// coordinator built without a recorder, such as the backfill runner's
	ErrNoRecorder = errors.New("coordinator has no recorder")
)

// DefaultMaxProviderCalls bounds concurrent outbound transcription and
// analysis calls across all sessions
const DefaultMaxProviderCalls = 4

// Coordinator drives sessions through the processing stages. Each stage
// leaves the session in a well-defined state, so a failed stage can be
// re-invoked without cleanup.
type Coordinator struct {
	store       *storage.Store
	recorder    *recorder.Recorder
	transcriber transcribe.Provider
	analyzer    *analyze.Analyzer
	detector    *language.Detector
	calls       *semaphore.Weighted
	maxAudio    int64

	mu       sync.Mutex
	inflight map[uuid.UUID]context.CancelFunc
}

// Option configures a Coordinator
type Option func(*Coordinator)

// WithMaxProviderCalls sets the size of the outbound provider call pool.
// Callers queue when the pool is saturated.
func WithMaxProviderCalls(n int64) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.calls = semaphore.NewWeighted(n)
		}
	}
}

// WithMaxAudioBytes caps the audio file size accepted for transcription.
// Zero means no cap.
func WithMaxAudioBytes(n int64) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.maxAudio = n
		}
	}
}

// New creates a pipeline coordinator over the given stages
func New(store *storage.Store, rec *recorder.Recorder, transcriber transcribe.Provider, analyzer *analyze.Analyzer, detector *language.Detector, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:       store,
		recorder:    rec,
		transcriber: transcriber,
		analyzer:    analyzer,
		detector:    detector,
		calls:       semaphore.NewWeighted(DefaultMaxProviderCalls),
		inflight:    make(map[uuid.UUID]context.CancelFunc),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// StartSession begins a new recording. Fails if another recording is active.
func (c *Coordinator) StartSession(ctx context.Context) (uuid.UUID, error) {
	if c.recorder == nil {
		return uuid.Nil, ErrNoRecorder
	}
	id, err := c.recorder.Start(ctx)
	if err != nil {
		return uuid.Nil, err
	}
	log.Printf("[PIPELINE]: recording started for session %s\n", id)
	return id, nil
}

// StopSession finalizes the active recording and persists the session with
// its audio artifact
func (c *Coordinator) StopSession(ctx context.Context) (*storage.Session, error) {
	if c.recorder == nil {
		return nil, ErrNoRecorder
	}
	session, err := c.recorder.Stop(ctx)
	if err != nil {
		return nil, err
	}
	log.Printf("[PIPELINE]: recording stopped for session %s (%d bytes)\n", session.ID, session.Audio.FileSize)
	return session, nil
}

// CancelRecording aborts the active recording and discards partial audio.
// No session is created.
func (c *Coordinator) CancelRecording() error {
	if c.recorder == nil {
		return ErrNoRecorder
	}
	return c.recorder.Cancel()
}

// TranscribeAndAnalyze runs the full processing chain for a stopped session:
// transcription, language detection, analysis, and the atomic save of the
// analysis graph. An empty transcript is a valid terminal outcome and
// produces an empty analysis without any analysis provider call.
func (c *Coordinator) TranscribeAndAnalyze(ctx context.Context, id uuid.UUID) (*storage.AnalysisResult, error) {
	session, err := c.store.FindSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.Audio == nil {
		return nil, fmt.Errorf("session %s: %w", id, ErrNoAudio)
	}

	runCtx, err := c.trackSession(ctx, id)
	if err != nil {
		return nil, err
	}
	defer c.untrackSession(id)

	transcript, err := c.transcribeSession(runCtx, session)
	if err != nil {
		return nil, err
	}
	return c.analyzeSession(runCtx, session, transcript)
}

// Retranscribe runs transcription again for a session, appending a new
// transcript record. The previous transcript is kept for audit history.
func (c *Coordinator) Retranscribe(ctx context.Context, id uuid.UUID) (*storage.Transcript, error) {
	session, err := c.store.FindSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.Audio == nil {
		return nil, fmt.Errorf("session %s: %w", id, ErrNoAudio)
	}

	runCtx, err := c.trackSession(ctx, id)
	if err != nil {
		return nil, err
	}
	defer c.untrackSession(id)

	return c.transcribeSession(runCtx, session)
}

// Reanalyze runs analysis again over a session's newest transcript without
// re-transcribing the audio
func (c *Coordinator) Reanalyze(ctx context.Context, id uuid.UUID) (*storage.AnalysisResult, error) {
	session, err := c.store.FindSession(ctx, id)
	if err != nil {
		return nil, err
	}
	transcript := session.Transcript()
	if transcript == nil {
		return nil, fmt.Errorf("session %s has no transcript", id)
	}

	runCtx, err := c.trackSession(ctx, id)
	if err != nil {
		return nil, err
	}
	defer c.untrackSession(id)

	return c.analyzeSession(runCtx, session, transcript)
}

// GetSession loads a session with its audio, transcripts, and analysis graph
func (c *Coordinator) GetSession(ctx context.Context, id uuid.UUID) (*storage.Session, error) {
	return c.store.FindSession(ctx, id)
}

// ListSessions returns sessions matching the filter
func (c *Coordinator) ListSessions(ctx context.Context, filter storage.SessionFilter) ([]storage.Session, error) {
	return c.store.ListSessions(ctx, filter)
}

// CountSessions returns the number of sessions matching the filter
func (c *Coordinator) CountSessions(ctx context.Context, filter storage.SessionFilter) (int64, error) {
	return c.store.CountSessions(ctx, filter)
}

// DeleteSession removes a session and everything it owns. In-flight
// transcription or analysis for the session is cancelled first, so an
// abandoned provider call cannot commit results for a deleted session.
func (c *Coordinator) DeleteSession(ctx context.Context, id uuid.UUID) error {
	c.cancelInflight(id)
	if err := c.store.DeleteSession(ctx, id); err != nil {
		return err
	}
	log.Printf("[PIPELINE]: deleted session %s\n", id)
	return nil
}

// transcribeSession calls the transcription provider under the call pool and
// persists the resulting transcript
func (c *Coordinator) transcribeSession(ctx context.Context, session *storage.Session) (*storage.Transcript, error) {
	if c.maxAudio > 0 && session.Audio.FileSize > c.maxAudio {
		return nil, fmt.Errorf("session %s: %w (%d bytes)", session.ID, ErrAudioTooLarge, session.Audio.FileSize)
	}
	if err := c.calls.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	started := time.Now()
	result, err := c.transcriber.Transcribe(ctx, session.Audio.FilePath)
	c.calls.Release(1)
	if err != nil {
		return nil, fmt.Errorf("transcribe session %s: %w", session.ID, err)
	}

	lang := c.detector.Detect(result.Text)
	transcript := storage.NewTranscript(session.ID, result.Text, string(lang),
		c.transcriber.Name(), result.Confidence, time.Since(started).Milliseconds())
	if err := c.store.SaveTranscript(ctx, transcript); err != nil {
		return nil, err
	}
	log.Printf("[PIPELINE]: transcribed session %s (%d chars, language %s)\n",
		session.ID, len(result.Text), lang)
	return transcript, nil
}

// analyzeSession runs the analysis orchestrator under the call pool, saves
// the analysis graph atomically, and promotes the analysis title onto an
// untitled session
func (c *Coordinator) analyzeSession(ctx context.Context, session *storage.Session, transcript *storage.Transcript) (*storage.AnalysisResult, error) {
	if err := c.calls.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	started := time.Now()
	result, err := c.analyzer.Analyze(ctx, transcript.Content)
	c.calls.Release(1)
	if err != nil {
		return nil, fmt.Errorf("analyze session %s: %w", session.ID, err)
	}

	analysis := toAnalysisRecord(result, c.analyzer.Provider(), time.Since(started).Milliseconds())
	if err := c.store.SaveAnalysis(ctx, session.ID, analysis); err != nil {
		return nil, err
	}

	if strings.TrimSpace(session.Title) == "" && result.Title != "" {
		if err := c.store.UpdateSessionTitle(ctx, session.ID, result.Title); err != nil {
			return nil, err
		}
	}
	log.Printf("[PIPELINE]: analyzed session %s (%d ideas, %d tasks, %d notes)\n",
		session.ID, len(result.Ideas), len(result.Tasks), len(result.StructuredNotes))
	return analysis, nil
}

// toAnalysisRecord maps a provider analysis onto the persisted graph,
// preserving collection order
func toAnalysisRecord(result *analyze.Result, provider analyze.TextProvider, processingMS int64) *storage.AnalysisResult {
	analysis := &storage.AnalysisResult{
		Title:        result.Title,
		Summary:      result.Summary,
		Provider:     provider.Name(),
		ModelVersion: provider.Model(),
		ProcessingMS: processingMS,
	}
	for _, idea := range result.Ideas {
		analysis.Ideas = append(analysis.Ideas, storage.Idea{Content: idea})
	}
	for _, task := range result.Tasks {
		analysis.Tasks = append(analysis.Tasks, storage.Task{
			Title:       task.Title,
			Description: task.Description,
			Priority:    storage.Priority(task.Priority),
		})
	}
	for _, note := range result.StructuredNotes {
		analysis.Notes = append(analysis.Notes, storage.StructuredNote{
			Title:    note.Title,
			Content:  note.Content,
			Tags:     note.Tags,
			NoteType: storage.NoteType(note.NoteType),
		})
	}
	return analysis
}

// trackSession registers a cancellable context for the session's in-flight
// work. A second call for the same session fails until the first finishes.
func (c *Coordinator) trackSession(ctx context.Context, id uuid.UUID) (context.Context, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, busy := c.inflight[id]; busy {
		return nil, fmt.Errorf("session %s: %w", id, ErrSessionBusy)
	}
	runCtx, cancel := context.WithCancel(ctx)
	c.inflight[id] = cancel
	return runCtx, nil
}

func (c *Coordinator) untrackSession(id uuid.UUID) {
	c.mu.Lock()
	cancel, ok := c.inflight[id]
	delete(c.inflight, id)
	c.mu.Unlock()
	if ok {
		cancel()
	}
}

func (c *Coordinator) cancelInflight(id uuid.UUID) {
	c.mu.Lock()
	cancel, ok := c.inflight[id]
	c.mu.Unlock()
	if ok {
		cancel()
	}
}
