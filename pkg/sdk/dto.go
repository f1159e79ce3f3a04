package sdk

import "time"

/** Requests */

// ListSessionsRequest carries the query parameters for listing sessions
type ListSessionsRequest struct {
	Status        string `form:"status"`
	Search        string `form:"search"`
	CreatedAfter  string `form:"created_after"`  // RFC 3339
	CreatedBefore string `form:"created_before"` // RFC 3339
	Limit         int    `form:"limit"`
	Offset        int    `form:"offset"`
	SortBy        string `form:"sort_by"`
	SortDesc      bool   `form:"sort_desc"`
}

/** Responses */

// StartRecordingResponse identifies the recording session that was started
type StartRecordingResponse struct {
	SessionID string `json:"session_id"`
}

// ListSessionsResponse is one page of sessions plus the unpaged total
type ListSessionsResponse struct {
	Sessions []Session `json:"sessions"`
	Count    int64     `json:"count"`
}

// Session is the wire representation of a recording session and whatever
// stages have completed for it
type Session struct {
	ID         string            `json:"id"`
	Title      string            `json:"title"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
	DurationMS int64             `json:"duration_ms"`
	Status     string            `json:"status"`
	Metadata   map[string]string `json:"metadata,omitempty"`

	Audio      *AudioFile  `json:"audio,omitempty"`
	Transcript *Transcript `json:"transcript,omitempty"`
	Analysis   *Analysis   `json:"analysis,omitempty"`
}

// AudioFile describes the stored audio artifact of a session
type AudioFile struct {
	FilePath   string `json:"file_path"`
	FileSize   int64  `json:"file_size"`
	Format     string `json:"format"`
	SampleRate int    `json:"sample_rate"`
	Channels   int    `json:"channels"`
	Checksum   string `json:"checksum"`
}

// Transcript is the newest transcription of a session's audio
type Transcript struct {
	Content      string    `json:"content"`
	Language     string    `json:"language"`
	Confidence   float64   `json:"confidence"`
	Provider     string    `json:"provider"`
	ProcessingMS int64     `json:"processing_time_ms"`
	CreatedAt    time.Time `json:"created_at"`
}

// Analysis is the structured extraction for a session. The title, summary,
// ideas, tasks, and structured_notes fields match the analysis provider's
// JSON schema.
type Analysis struct {
	Title           string           `json:"title"`
	Summary         string           `json:"summary"`
	Ideas           []string         `json:"ideas"`
	Tasks           []TaskItem       `json:"tasks"`
	StructuredNotes []StructuredNote `json:"structured_notes"`
	Provider        string           `json:"provider"`
	ModelVersion    string           `json:"model_version"`
	ProcessingMS    int64            `json:"processing_time_ms"`
}

// TaskItem is one actionable task extracted by analysis
type TaskItem struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Priority    string `json:"priority"`
	Status      string `json:"status"`
}

// StructuredNote is one structured note extracted by analysis
type StructuredNote struct {
	Title    string   `json:"title"`
	Content  string   `json:"content"`
	Tags     []string `json:"tags"`
	NoteType string   `json:"note_type"`
}
