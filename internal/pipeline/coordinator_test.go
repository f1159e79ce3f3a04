package pipeline

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/YoungApple/voice-recorder/internal/analyze"
	"github.com/YoungApple/voice-recorder/internal/language"
	"github.com/YoungApple/voice-recorder/internal/storage"
	"github.com/YoungApple/voice-recorder/internal/transcribe"
)

const analysisResponse = `{
	"title": "Sprint planning",
	"summary": "Planned the next sprint.",
	"ideas": ["ship the importer"],
	"tasks": [{"title": "Write migration", "priority": "High"}],
	"structured_notes": [{"title": "Decision", "content": "Postpone the rewrite", "tags": ["planning"], "note_type": "Decision"}]
}`

// fakeTranscriber returns a fixed transcript, optionally blocking until its
// context is cancelled
type fakeTranscriber struct {
	text    string
	err     error
	block   bool
	calls   atomic.Int32
	running atomic.Int32
	maxSeen atomic.Int32
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, _ string) (*transcribe.Result, error) {
	f.calls.Add(1)
	now := f.running.Add(1)
	defer f.running.Add(-1)
	for {
		prev := f.maxSeen.Load()
		if now <= prev || f.maxSeen.CompareAndSwap(prev, now) {
			break
		}
	}
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	time.Sleep(5 * time.Millisecond)
	if f.err != nil {
		return nil, f.err
	}
	return &transcribe.Result{Text: f.text, Confidence: 0.92}, nil
}

func (f *fakeTranscriber) Name() string { return "fake-transcriber" }

// fakeTextProvider returns a fixed analysis response
type fakeTextProvider struct {
	response string
	err      error
	calls    atomic.Int32
}

func (f *fakeTextProvider) AnalyzeText(_ context.Context, _ string) (string, error) {
	f.calls.Add(1)
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func (f *fakeTextProvider) Name() string  { return "fake-analyzer" }
func (f *fakeTextProvider) Model() string { return "fake-model" }

func newTestStore(t *testing.T) *storage.Store {
	t.Helper()
	// _txlock=immediate plus _busy_timeout keeps concurrent writers from
	// flaking with SQLITE_BUSY lock-upgrade deadlocks
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "pipeline_test.db")+"?_busy_timeout=10000&_txlock=immediate"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	store, err := storage.NewStoreWithDB(db)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func newTestCoordinator(t *testing.T, store *storage.Store, transcriber transcribe.Provider, text *fakeTextProvider, opts ...Option) *Coordinator {
	t.Helper()
	detector := language.NewDetector(language.DefaultChineseThreshold)
	analyzer := analyze.NewAnalyzer(text, detector,
		analyze.WithSleeper(func(context.Context, time.Duration) error { return nil }))
	return New(store, nil, transcriber, analyzer, detector, opts...)
}

// seedStoppedSession inserts a session with a stored audio artifact, the
// state a session is in once recording has finished
func seedStoppedSession(t *testing.T, store *storage.Store) uuid.UUID {
	t.Helper()
	session := storage.NewSession("", 4200)
	audio := &storage.AudioFile{
		SessionID:  session.ID,
		FilePath:   filepath.Join(t.TempDir(), session.ID.String()+".wav"),
		FileSize:   2048,
		Format:     "wav",
		SampleRate: 16000,
		Channels:   1,
		Checksum:   "deadbeef",
	}
	require.NoError(t, store.CreateSession(context.Background(), session, audio))
	return session.ID
}

func TestTranscribeAndAnalyze(t *testing.T) {
	store := newTestStore(t)
	transcriber := &fakeTranscriber{text: "We planned the next sprint and assigned owners."}
	text := &fakeTextProvider{response: analysisResponse}
	coord := newTestCoordinator(t, store, transcriber, text)
	ctx := context.Background()

	id := seedStoppedSession(t, store)

	analysis, err := coord.TranscribeAndAnalyze(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Sprint planning", analysis.Title)
	assert.Equal(t, "fake-analyzer", analysis.Provider)
	assert.Equal(t, "fake-model", analysis.ModelVersion)

	session, err := coord.GetSession(ctx, id)
	require.NoError(t, err)

	transcript := session.Transcript()
	require.NotNil(t, transcript)
	assert.Equal(t, transcriber.text, transcript.Content)
	assert.Equal(t, "en", transcript.Language)
	assert.Equal(t, "fake-transcriber", transcript.Provider)

	require.NotNil(t, session.Analysis)
	require.Len(t, session.Analysis.Ideas, 1)
	assert.Equal(t, "ship the importer", session.Analysis.Ideas[0].Content)
	require.Len(t, session.Analysis.Tasks, 1)
	assert.Equal(t, storage.PriorityHigh, session.Analysis.Tasks[0].Priority)
	require.Len(t, session.Analysis.Notes, 1)
	assert.Equal(t, []string{"planning"}, session.Analysis.Notes[0].Tags)

	// An untitled session takes the analysis title.
	assert.Equal(t, "Sprint planning", session.Title)
}

func TestTranscribeAndAnalyzeEmptyTranscript(t *testing.T) {
	store := newTestStore(t)
	transcriber := &fakeTranscriber{text: "   "}
	text := &fakeTextProvider{response: analysisResponse}
	coord := newTestCoordinator(t, store, transcriber, text)
	ctx := context.Background()

	id := seedStoppedSession(t, store)

	analysis, err := coord.TranscribeAndAnalyze(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, analysis.Title)
	assert.Empty(t, analysis.Summary)
	assert.Empty(t, analysis.Ideas)
	assert.Empty(t, analysis.Tasks)
	assert.Empty(t, analysis.Notes)
	assert.Equal(t, int32(0), text.calls.Load(), "empty transcript must not reach the analysis provider")
}

func TestTranscribeAndAnalyzeNoAudio(t *testing.T) {
	store := newTestStore(t)
	coord := newTestCoordinator(t, store, &fakeTranscriber{}, &fakeTextProvider{})
	ctx := context.Background()

	session := storage.NewSession("bare", 0)
	require.NoError(t, store.CreateSession(ctx, session, nil))

	_, err := coord.TranscribeAndAnalyze(ctx, session.ID)
	assert.ErrorIs(t, err, ErrNoAudio)
}

func TestTranscribeAndAnalyzeUnknownSession(t *testing.T) {
	store := newTestStore(t)
	coord := newTestCoordinator(t, store, &fakeTranscriber{}, &fakeTextProvider{})

	_, err := coord.TranscribeAndAnalyze(context.Background(), uuid.New())
	assert.ErrorIs(t, err, storage.ErrSessionNotFound)
}

func TestAudioSizeLimit(t *testing.T) {
	store := newTestStore(t)
	transcriber := &fakeTranscriber{text: "should not be reached"}
	text := &fakeTextProvider{response: analysisResponse}
	coord := newTestCoordinator(t, store, transcriber, text, WithMaxAudioBytes(1024))

	id := seedStoppedSession(t, store) // 2048-byte artifact

	_, err := coord.TranscribeAndAnalyze(context.Background(), id)
	assert.ErrorIs(t, err, ErrAudioTooLarge)
	assert.Equal(t, int32(0), transcriber.calls.Load())
}

func TestSessionBusyRejected(t *testing.T) {
	store := newTestStore(t)
	transcriber := &fakeTranscriber{block: true}
	coord := newTestCoordinator(t, store, transcriber, &fakeTextProvider{response: analysisResponse})

	id := seedStoppedSession(t, store)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		coord.TranscribeAndAnalyze(ctx, id) //nolint:errcheck
	}()

	// Wait until the first run holds the session.
	require.Eventually(t, func() bool {
		return transcriber.running.Load() == 1
	}, time.Second, time.Millisecond)

	_, err := coord.TranscribeAndAnalyze(context.Background(), id)
	assert.ErrorIs(t, err, ErrSessionBusy)

	cancel()
	wg.Wait()
}

func TestDeleteSessionCancelsInflight(t *testing.T) {
	store := newTestStore(t)
	transcriber := &fakeTranscriber{block: true}
	coord := newTestCoordinator(t, store, transcriber, &fakeTextProvider{response: analysisResponse})
	ctx := context.Background()

	id := seedStoppedSession(t, store)

	errCh := make(chan error, 1)
	go func() {
		_, err := coord.TranscribeAndAnalyze(ctx, id)
		errCh <- err
	}()

	require.Eventually(t, func() bool {
		return transcriber.running.Load() == 1
	}, time.Second, time.Millisecond)

	require.NoError(t, coord.DeleteSession(ctx, id))

	err := <-errCh
	assert.ErrorIs(t, err, context.Canceled)

	_, err = coord.GetSession(ctx, id)
	assert.ErrorIs(t, err, storage.ErrSessionNotFound)
}

func TestRetranscribeAppendsTranscript(t *testing.T) {
	store := newTestStore(t)
	transcriber := &fakeTranscriber{text: "first pass"}
	coord := newTestCoordinator(t, store, transcriber, &fakeTextProvider{response: analysisResponse})
	ctx := context.Background()

	id := seedStoppedSession(t, store)

	_, err := coord.Retranscribe(ctx, id)
	require.NoError(t, err)

	transcriber.text = "second pass"
	latest, err := coord.Retranscribe(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "second pass", latest.Content)

	session, err := coord.GetSession(ctx, id)
	require.NoError(t, err)
	require.Len(t, session.Transcripts, 2)
	assert.Equal(t, "second pass", session.Transcript().Content)
}

func TestReanalyzeWithoutTranscript(t *testing.T) {
	store := newTestStore(t)
	coord := newTestCoordinator(t, store, &fakeTranscriber{}, &fakeTextProvider{})

	id := seedStoppedSession(t, store)

	_, err := coord.Reanalyze(context.Background(), id)
	assert.Error(t, err)
}

func TestReanalyzeUsesNewestTranscript(t *testing.T) {
	store := newTestStore(t)
	transcriber := &fakeTranscriber{text: "updated transcript"}
	text := &fakeTextProvider{response: analysisResponse}
	coord := newTestCoordinator(t, store, transcriber, text)
	ctx := context.Background()

	id := seedStoppedSession(t, store)
	_, err := coord.Retranscribe(ctx, id)
	require.NoError(t, err)

	analysis, err := coord.Reanalyze(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Sprint planning", analysis.Title)
	assert.Equal(t, int32(1), text.calls.Load())
}

func TestProviderPoolBoundsConcurrency(t *testing.T) {
	store := newTestStore(t)
	transcriber := &fakeTranscriber{text: "short note"}
	text := &fakeTextProvider{response: analysisResponse}
	coord := newTestCoordinator(t, store, transcriber, text, WithMaxProviderCalls(1))
	ctx := context.Background()

	ids := make([]uuid.UUID, 4)
	for i := range ids {
		ids[i] = seedStoppedSession(t, store)
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			_, err := coord.TranscribeAndAnalyze(ctx, id)
			assert.NoError(t, err)
		}(id)
	}
	wg.Wait()

	assert.Equal(t, int32(1), transcriber.maxSeen.Load(), "call pool of 1 must serialize provider calls")
	assert.Equal(t, int32(4), transcriber.calls.Load())
}

func TestRecordingOpsWithoutRecorder(t *testing.T) {
	store := newTestStore(t)
	transcriber := &fakeTranscriber{text: "short note"}
	text := &fakeTextProvider{response: analysisResponse}
	coord := newTestCoordinator(t, store, transcriber, text)
	ctx := context.Background()

	_, err := coord.StartSession(ctx)
	assert.ErrorIs(t, err, ErrNoRecorder)

	_, err = coord.StopSession(ctx)
	assert.ErrorIs(t, err, ErrNoRecorder)

	assert.ErrorIs(t, coord.CancelRecording(), ErrNoRecorder)
}
