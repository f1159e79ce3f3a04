package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/YoungApple/voice-recorder/internal/analyze"
	"github.com/YoungApple/voice-recorder/internal/language"
	"github.com/YoungApple/voice-recorder/internal/pipeline"
	"github.com/YoungApple/voice-recorder/internal/recorder"
	"github.com/YoungApple/voice-recorder/internal/storage"
	"github.com/YoungApple/voice-recorder/internal/transcribe"
	"github.com/YoungApple/voice-recorder/pkg/sdk"
	"github.com/YoungApple/voice-recorder/pkg/utils"
)

const analysisResponse = `{
	"title": "Project kickoff",
	"summary": "Kicked off the project.",
	"ideas": ["prototype first"],
	"tasks": [{"title": "Set up repo", "priority": "High"}],
	"structured_notes": [{"title": "Scope", "content": "MVP only", "tags": ["scope"], "note_type": "Decision"}]
}`

type fakeCapturer struct{}

func (fakeCapturer) Start(_ context.Context, path string) (func() error, error) {
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		return nil, err
	}
	return func() error {
		return os.WriteFile(path, []byte("RIFF fake audio"), 0o644)
	}, nil
}

type fakeTranscriber struct{ text string }

func (f *fakeTranscriber) Transcribe(context.Context, string) (*transcribe.Result, error) {
	return &transcribe.Result{Text: f.text, Confidence: 0.9}, nil
}

func (f *fakeTranscriber) Name() string { return "fake-transcriber" }

type fakeTextProvider struct{ response string }

func (f *fakeTextProvider) AnalyzeText(context.Context, string) (string, error) {
	return f.response, nil
}

func (f *fakeTextProvider) Name() string  { return "fake-analyzer" }
func (f *fakeTextProvider) Model() string { return "fake-model" }

func newTestRouter(t *testing.T, cfg *utils.Config) (*gin.Engine, *storage.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dir := t.TempDir()
	db, err := gorm.Open(sqlite.Open(filepath.Join(dir, "api_test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	store, err := storage.NewStoreWithDB(db)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	detector := language.NewDetector(language.DefaultChineseThreshold)
	analyzer := analyze.NewAnalyzer(&fakeTextProvider{response: analysisResponse}, detector,
		analyze.WithSleeper(func(context.Context, time.Duration) error { return nil }))
	rec := recorder.New(store, fakeCapturer{}, dir, 16000, 1)
	InitWithCoordinator(pipeline.New(store, rec, &fakeTranscriber{text: "We kicked off the project."}, analyzer, detector))

	engine := gin.New()
	RegisterRoutes(engine.Group("/api"), cfg)
	return engine, store
}

func do(t *testing.T, engine *gin.Engine, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req, err := http.NewRequest(method, path, nil)
	require.NoError(t, err)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) sdk.ApiResponse[T] {
	t.Helper()
	var out sdk.ApiResponse[T]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestRecordingLifecycle(t *testing.T) {
	engine, _ := newTestRouter(t, utils.NewConfig(nil))

	w := do(t, engine, http.MethodPost, "/api/sessions/record/start")
	require.Equal(t, http.StatusOK, w.Code)
	started := decode[sdk.StartRecordingResponse](t, w)
	require.NotEmpty(t, started.Data.SessionID)

	// A second start conflicts with the active recording.
	w = do(t, engine, http.MethodPost, "/api/sessions/record/start")
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(t, engine, http.MethodPost, "/api/sessions/record/stop")
	require.Equal(t, http.StatusOK, w.Code)
	stopped := decode[sdk.Session](t, w)
	assert.Equal(t, started.Data.SessionID, stopped.Data.ID)
	require.NotNil(t, stopped.Data.Audio)
	assert.Equal(t, "wav", stopped.Data.Audio.Format)
}

func TestCancelRecording(t *testing.T) {
	engine, store := newTestRouter(t, utils.NewConfig(nil))

	w := do(t, engine, http.MethodPost, "/api/sessions/record/start")
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, engine, http.MethodPost, "/api/sessions/record/cancel")
	assert.Equal(t, http.StatusOK, w.Code)

	sessions, err := store.ListSessions(context.Background(), storage.SessionFilter{})
	require.NoError(t, err)
	assert.Empty(t, sessions, "cancelled recording must not create a session")

	// Cancelling again conflicts; nothing is recording.
	w = do(t, engine, http.MethodPost, "/api/sessions/record/cancel")
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestAnalyzeEndpoint(t *testing.T) {
	engine, _ := newTestRouter(t, utils.NewConfig(nil))

	w := do(t, engine, http.MethodPost, "/api/sessions/record/start")
	require.Equal(t, http.StatusOK, w.Code)
	started := decode[sdk.StartRecordingResponse](t, w)

	w = do(t, engine, http.MethodPost, "/api/sessions/record/stop")
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, engine, http.MethodPost, "/api/sessions/"+started.Data.SessionID+"/analyze")
	require.Equal(t, http.StatusOK, w.Code)
	analyzed := decode[sdk.Analysis](t, w)
	assert.Equal(t, "Project kickoff", analyzed.Data.Title)
	assert.Equal(t, []string{"prototype first"}, analyzed.Data.Ideas)

	// The full graph is readable back through the API.
	w = do(t, engine, http.MethodGet, "/api/sessions/"+started.Data.SessionID)
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[sdk.Session](t, w)
	require.NotNil(t, got.Data.Transcript)
	assert.Equal(t, "We kicked off the project.", got.Data.Transcript.Content)
	require.NotNil(t, got.Data.Analysis)
	assert.Equal(t, "Project kickoff", got.Data.Title, "session takes the analysis title")
}

func TestAnalyzeUnknownSession(t *testing.T) {
	engine, _ := newTestRouter(t, utils.NewConfig(nil))

	w := do(t, engine, http.MethodPost, "/api/sessions/"+uuid.NewString()+"/analyze")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, engine, http.MethodPost, "/api/sessions/not-a-uuid/analyze")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListAndDelete(t *testing.T) {
	engine, store := newTestRouter(t, utils.NewConfig(nil))
	ctx := context.Background()

	session := storage.NewSession("standup notes", 1000)
	require.NoError(t, store.CreateSession(ctx, session, nil))

	w := do(t, engine, http.MethodGet, "/api/sessions?search=standup")
	require.Equal(t, http.StatusOK, w.Code)
	listed := decode[sdk.ListSessionsResponse](t, w)
	assert.Equal(t, int64(1), listed.Data.Count)
	require.Len(t, listed.Data.Sessions, 1)
	assert.Equal(t, session.ID.String(), listed.Data.Sessions[0].ID)

	w = do(t, engine, http.MethodDelete, "/api/sessions/"+session.ID.String())
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, engine, http.MethodGet, "/api/sessions/"+session.ID.String())
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListRejectsBadTimestamp(t *testing.T) {
	engine, _ := newTestRouter(t, utils.NewConfig(nil))

	w := do(t, engine, http.MethodGet, "/api/sessions?created_after=yesterday")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestApiKeyRequired(t *testing.T) {
	cfg := utils.NewConfig(map[string]string{"API_KEY": "secret"})
	engine, _ := newTestRouter(t, cfg)

	w := do(t, engine, http.MethodGet, "/api/sessions")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req, err := http.NewRequest(http.MethodGet, "/api/sessions", nil)
	require.NoError(t, err)
	req.Header.Set("X-API-KEY", "secret")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
