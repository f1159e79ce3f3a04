package storage

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus is the lifecycle state of a recording session
type SessionStatus string

const (
	SessionActive   SessionStatus = "active"
	SessionArchived SessionStatus = "archived"
	SessionDeleted  SessionStatus = "deleted"
)

// Priority is the importance level of a task
type Priority string

const (
	PriorityLow    Priority = "Low"
	PriorityMedium Priority = "Medium"
	PriorityHigh   Priority = "High"
	PriorityUrgent Priority = "Urgent"
)

// TaskStatus is the progress state of a task
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in_progress"
	TaskCompleted  TaskStatus = "completed"
	TaskCancelled  TaskStatus = "cancelled"
)

// NoteType classifies a structured note
type NoteType string

const (
	NoteMeeting    NoteType = "Meeting"
	NoteBrainstorm NoteType = "Brainstorm"
	NoteDecision   NoteType = "Decision"
	NoteAction     NoteType = "Action"
	NoteReference  NoteType = "Reference"
)

// Session represents one recording-to-analysis unit of work
type Session struct {
	ID         uuid.UUID         `json:"id" gorm:"type:char(36);primaryKey"`
	Title      string            `json:"title" gorm:"size:512"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
	DurationMS int64             `json:"duration_ms"`
	Status     SessionStatus     `json:"status" gorm:"size:20;not null;default:active;index"`
	Metadata   map[string]string `json:"metadata,omitempty" gorm:"serializer:json"`

	Audio       *AudioFile      `json:"audio,omitempty" gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE"`
	Transcripts []Transcript    `json:"transcripts,omitempty" gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE"`
	Analysis    *AnalysisResult `json:"analysis,omitempty" gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE"`
}

// Transcript returns the most recent transcript, or nil if the session has
// not been transcribed. Re-transcription appends rather than mutates, so the
// newest row is the current one.
func (s *Session) Transcript() *Transcript {
	if len(s.Transcripts) == 0 {
		return nil
	}
	return &s.Transcripts[0]
}

// AudioFile is the stored audio artifact of a session. Immutable once created.
type AudioFile struct {
	ID         uuid.UUID `json:"id" gorm:"type:char(36);primaryKey"`
	SessionID  uuid.UUID `json:"session_id" gorm:"type:char(36);not null;uniqueIndex"`
	FilePath   string    `json:"file_path" gorm:"size:1024;not null"`
	FileSize   int64     `json:"file_size"`
	Format     string    `json:"format" gorm:"size:16"`
	SampleRate int       `json:"sample_rate"`
	Channels   int       `json:"channels"`
	Checksum   string    `json:"checksum" gorm:"size:64"`
	CreatedAt  time.Time `json:"created_at"`
}

// Transcript is the text output of one transcription run
type Transcript struct {
	ID           uuid.UUID `json:"id" gorm:"type:char(36);primaryKey"`
	SessionID    uuid.UUID `json:"session_id" gorm:"type:char(36);not null;index"`
	Content      string    `json:"content" gorm:"type:text"`
	Language     string    `json:"language" gorm:"size:8"`
	Confidence   float64   `json:"confidence"`
	Provider     string    `json:"provider" gorm:"size:64;not null"`
	ProcessingMS int64     `json:"processing_time_ms"`
	CreatedAt    time.Time `json:"created_at"`
}

// AnalysisResult is the structured extraction produced from a transcript.
// It owns its ideas, tasks, and notes; the whole graph is written atomically.
type AnalysisResult struct {
	ID           uuid.UUID `json:"id" gorm:"type:char(36);primaryKey"`
	SessionID    uuid.UUID `json:"session_id" gorm:"type:char(36);not null;uniqueIndex"`
	Title        string    `json:"title" gorm:"size:512"`
	Summary      string    `json:"summary" gorm:"type:text"`
	Provider     string    `json:"provider" gorm:"size:64;not null"`
	ModelVersion string    `json:"model_version" gorm:"size:128"`
	ProcessingMS int64     `json:"processing_time_ms"`
	CreatedAt    time.Time `json:"created_at"`

	Ideas []Idea           `json:"ideas" gorm:"foreignKey:AnalysisID;constraint:OnDelete:CASCADE"`
	Tasks []Task           `json:"tasks" gorm:"foreignKey:AnalysisID;constraint:OnDelete:CASCADE"`
	Notes []StructuredNote `json:"structured_notes" gorm:"foreignKey:AnalysisID;constraint:OnDelete:CASCADE"`
}

// Idea is a single extracted idea
type Idea struct {
	ID         uuid.UUID `json:"id" gorm:"type:char(36);primaryKey"`
	AnalysisID uuid.UUID `json:"analysis_id" gorm:"type:char(36);not null;index"`
	Content    string    `json:"content" gorm:"type:text;not null"`
	Category   string    `json:"category,omitempty" gorm:"size:128"`
	Priority   int       `json:"priority"`
	Position   int       `json:"-" gorm:"not null;default:0"`
	CreatedAt  time.Time `json:"created_at"`
}

// Task is an actionable item extracted from a transcript
type Task struct {
	ID          uuid.UUID  `json:"id" gorm:"type:char(36);primaryKey"`
	AnalysisID  uuid.UUID  `json:"analysis_id" gorm:"type:char(36);not null;index"`
	Title       string     `json:"title" gorm:"size:512;not null"`
	Description string     `json:"description,omitempty" gorm:"type:text"`
	Priority    Priority   `json:"priority" gorm:"size:16;not null;default:Medium"`
	Status      TaskStatus `json:"status" gorm:"size:20;not null;default:pending"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	Position    int        `json:"-" gorm:"not null;default:0"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// StructuredNote is a key discussion point or decision extracted from a transcript
type StructuredNote struct {
	ID         uuid.UUID `json:"id" gorm:"type:char(36);primaryKey"`
	AnalysisID uuid.UUID `json:"analysis_id" gorm:"type:char(36);not null;index"`
	Title      string    `json:"title" gorm:"size:512;not null"`
	Content    string    `json:"content" gorm:"type:text"`
	Tags       []string  `json:"tags" gorm:"serializer:json"`
	NoteType   NoteType  `json:"note_type" gorm:"size:20;not null;default:Reference"`
	Position   int       `json:"-" gorm:"not null;default:0"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// NewSession creates a new session with a generated UUID
func NewSession(title string, durationMS int64) *Session {
	return &Session{
		ID:         uuid.New(),
		Title:      title,
		DurationMS: durationMS,
		Status:     SessionActive,
	}
}

// NewTranscript creates a new transcript record for a session
func NewTranscript(sessionID uuid.UUID, content, language, provider string, confidence float64, processingMS int64) *Transcript {
	return &Transcript{
		ID:           uuid.New(),
		SessionID:    sessionID,
		Content:      content,
		Language:     language,
		Confidence:   confidence,
		Provider:     provider,
		ProcessingMS: processingMS,
	}
}
