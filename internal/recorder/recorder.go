// Package recorder owns the single active audio recording and turns a
// finished capture into a persisted session with its audio artifact.
package recorder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/YoungApple/voice-recorder/internal/storage"
)

// State is the capture controller's lifecycle state
type State string

const (
	StateIdle      State = "idle"
	StateRecording State = "recording"
	StateStopping  State = "stopping"
	StateStopped   State = "stopped"
)

var (
	// ErrAlreadyRecording means another session holds the recorder
	ErrAlreadyRecording = errors.New("a recording is already in progress")

	// ErrNotRecording means stop or cancel was called with no active recording
	ErrNotRecording = errors.New("no recording in progress")

	// ErrEmptyRecording means the capture produced no audio data
	ErrEmptyRecording = errors.New("recording captured no audio")
)

// Capturer starts writing audio to a file and returns a stop function that
// finalizes the file. The process-spawning implementation lives in
// capture.go; tests inject fakes.
type Capturer interface {
	Start(ctx context.Context, path string) (stop func() error, err error)
}

type activeRecording struct {
	sessionID uuid.UUID
	path      string
	startedAt time.Time
	stop      func() error
}

// Recorder is the audio capture controller. At most one recording is active
// process-wide; all transitions go through the internal guard.
type Recorder struct {
	store      *storage.Store
	capturer   Capturer
	storageDir string
	sampleRate int
	channels   int

	mu     sync.Mutex
	state  State
	active *activeRecording
}

// New creates a recorder that stores audio under storageDir/audio
func New(store *storage.Store, capturer Capturer, storageDir string, sampleRate, channels int) *Recorder {
	if sampleRate <= 0 {
		sampleRate = 16000
	}
	if channels <= 0 {
		channels = 1
	}
	return &Recorder{
		store:      store,
		capturer:   capturer,
		storageDir: storageDir,
		sampleRate: sampleRate,
		channels:   channels,
		state:      StateIdle,
	}
}

// State returns the current lifecycle state
func (r *Recorder) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Start begins a new recording and returns its session id. Nothing is
// persisted until the recording stops successfully.
func (r *Recorder) Start(ctx context.Context) (uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == StateRecording || r.state == StateStopping {
		return uuid.Nil, ErrAlreadyRecording
	}

	sessionID := uuid.New()
	audioDir := filepath.Join(r.storageDir, "audio")
	if err := os.MkdirAll(audioDir, 0o755); err != nil {
		return uuid.Nil, fmt.Errorf("failed to create audio directory: %w", err)
	}
	path := filepath.Join(audioDir, sessionID.String()+".wav")

	stop, err := r.capturer.Start(ctx, path)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to start capture: %w", err)
	}

	r.active = &activeRecording{
		sessionID: sessionID,
		path:      path,
		startedAt: time.Now(),
		stop:      stop,
	}
	r.state = StateRecording
	log.Printf("[RECORDER]: recording started for session %s", sessionID)

	return sessionID, nil
}

// Stop finalizes the active recording: the capture is flushed, the artifact
// is checksummed and measured, and the session with its audio file record is
// persisted. A failure during finalization returns the recorder to idle and
// persists nothing.
func (r *Recorder) Stop(ctx context.Context) (*storage.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateRecording {
		return nil, ErrNotRecording
	}
	r.state = StateStopping
	active := r.active

	session, err := r.finalize(ctx, active)
	r.active = nil
	if err != nil {
		r.state = StateIdle
		os.Remove(active.path)
		return nil, err
	}

	r.state = StateStopped
	log.Printf("[RECORDER]: recording stopped, session %s saved", session.ID)
	return session, nil
}

func (r *Recorder) finalize(ctx context.Context, active *activeRecording) (*storage.Session, error) {
	if err := active.stop(); err != nil {
		return nil, fmt.Errorf("failed to stop capture: %w", err)
	}

	info, err := os.Stat(active.path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat audio file: %w", err)
	}
	if info.Size() == 0 {
		return nil, ErrEmptyRecording
	}

	checksum, err := fileChecksum(active.path)
	if err != nil {
		return nil, fmt.Errorf("failed to checksum audio file: %w", err)
	}

	durationMS := time.Since(active.startedAt).Milliseconds()
	session := storage.NewSession("", durationMS)
	session.ID = active.sessionID

	audio := &storage.AudioFile{
		FilePath:   active.path,
		FileSize:   info.Size(),
		Format:     "wav",
		SampleRate: r.sampleRate,
		Channels:   r.channels,
		Checksum:   checksum,
	}

	if err := r.store.CreateSession(ctx, session, audio); err != nil {
		return nil, err
	}
	session.Audio = audio

	return session, nil
}

// Cancel aborts the active recording, discarding partial audio. No session
// is created.
func (r *Recorder) Cancel() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateRecording {
		return ErrNotRecording
	}

	active := r.active
	r.active = nil
	r.state = StateIdle

	if err := active.stop(); err != nil {
		log.Printf("[RECORDER]: error stopping cancelled capture: %v", err)
	}
	if err := os.Remove(active.path); err != nil && !os.IsNotExist(err) {
		log.Printf("[RECORDER]: failed to remove partial audio %s: %v", active.path, err)
	}

	log.Printf("[RECORDER]: recording for session %s cancelled", active.sessionID)
	return nil
}

func fileChecksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
