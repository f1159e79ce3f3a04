package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// ErrSessionNotFound is returned when a session id does not exist
var ErrSessionNotFound = errors.New("session not found")

// Store handles session persistence using GORM
type Store struct {
	db *gorm.DB
}

// NewStore creates a new store with a GORM MySQL connection
func NewStore(databaseURL string) (*Store, error) {
	db, err := gorm.Open(mysql.Open(databaseURL), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return NewStoreWithDB(db)
}

// NewStoreWithDB creates a store over an existing GORM connection.
// Used by tests to run against in-memory SQLite.
func NewStoreWithDB(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(
		&Session{}, &AudioFile{}, &Transcript{},
		&AnalysisResult{}, &Idea{}, &Task{}, &StructuredNote{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate tables: %w", err)
	}

	return &Store{db: db}, nil
}

// CreateSession persists a session together with its audio file record.
// Both are written in one transaction so a recording never surfaces without
// its artifact.
func (s *Store) CreateSession(ctx context.Context, session *Session, audio *AudioFile) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Audio", "Transcripts", "Analysis").Create(session).Error; err != nil {
			return fmt.Errorf("failed to create session: %w", err)
		}
		if audio != nil {
			if audio.ID == uuid.Nil {
				audio.ID = uuid.New()
			}
			audio.SessionID = session.ID
			if err := tx.Create(audio).Error; err != nil {
				return fmt.Errorf("failed to create audio file record: %w", err)
			}
		}
		return nil
	})
}

// FindSession retrieves a session with its audio file, transcripts (newest
// first), and analysis graph (children in stored order).
func (s *Store) FindSession(ctx context.Context, id uuid.UUID) (*Session, error) {
	var session Session
	err := s.db.WithContext(ctx).
		Preload("Audio").
		Preload("Transcripts", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at DESC")
		}).
		Preload("Analysis").
		Preload("Analysis.Ideas", orderByPosition).
		Preload("Analysis.Tasks", orderByPosition).
		Preload("Analysis.Notes", orderByPosition).
		First(&session, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to find session: %w", err)
	}

	return &session, nil
}

func orderByPosition(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}

// SessionFilter narrows and pages ListSessions results
type SessionFilter struct {
	Status        SessionStatus
	Search        string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
	Limit         int
	Offset        int
	SortBy        string // created_at, updated_at, title, duration_ms
	SortDesc      bool
}

// applyFilter narrows a session query to the filter's predicates. ListSessions
// and CountSessions share it so the count always matches the unpaged list.
func applyFilter(query *gorm.DB, filter SessionFilter) *gorm.DB {
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	} else {
		query = query.Where("status != ?", SessionDeleted)
	}
	if filter.Search != "" {
		query = query.Where("title LIKE ?", "%"+filter.Search+"%")
	}
	if filter.CreatedAfter != nil {
		query = query.Where("created_at >= ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		query = query.Where("created_at <= ?", *filter.CreatedBefore)
	}
	return query
}

// ListSessions returns sessions matching the filter, without their
// transcript/analysis graphs.
func (s *Store) ListSessions(ctx context.Context, filter SessionFilter) ([]Session, error) {
	query := applyFilter(s.db.WithContext(ctx).Model(&Session{}), filter)

	sortBy := filter.SortBy
	switch sortBy {
	case "updated_at", "title", "duration_ms":
	default:
		sortBy = "created_at"
	}
	order := sortBy + " ASC"
	if filter.SortDesc || filter.SortBy == "" {
		order = sortBy + " DESC"
	}
	query = query.Order(order)

	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	var sessions []Session
	if err := query.Find(&sessions).Error; err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	return sessions, nil
}

// CountSessions returns the unpaged total of sessions matching the filter
func (s *Store) CountSessions(ctx context.Context, filter SessionFilter) (int64, error) {
	query := applyFilter(s.db.WithContext(ctx).Model(&Session{}), filter)

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count sessions: %w", err)
	}
	return count, nil
}

// SessionsNeedingTranscript returns sessions that have a stored audio file
// but no transcript yet
func (s *Store) SessionsNeedingTranscript(ctx context.Context) ([]Session, error) {
	var sessions []Session
	err := s.db.WithContext(ctx).Model(&Session{}).
		Where("status != ?", SessionDeleted).
		Where("EXISTS (SELECT 1 FROM audio_files WHERE audio_files.session_id = sessions.id)").
		Where("NOT EXISTS (SELECT 1 FROM transcripts WHERE transcripts.session_id = sessions.id)").
		Order("created_at ASC").
		Find(&sessions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find sessions needing transcription: %w", err)
	}
	return sessions, nil
}

// SessionsNeedingAnalysis returns sessions that have a transcript but no
// analysis result yet
func (s *Store) SessionsNeedingAnalysis(ctx context.Context) ([]Session, error) {
	var sessions []Session
	err := s.db.WithContext(ctx).Model(&Session{}).
		Where("status != ?", SessionDeleted).
		Where("EXISTS (SELECT 1 FROM transcripts WHERE transcripts.session_id = sessions.id)").
		Where("NOT EXISTS (SELECT 1 FROM analysis_results WHERE analysis_results.session_id = sessions.id)").
		Order("created_at ASC").
		Find(&sessions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find sessions needing analysis: %w", err)
	}
	return sessions, nil
}

// UpdateSessionTitle sets a session's title, typically promoted from analysis
func (s *Store) UpdateSessionTitle(ctx context.Context, id uuid.UUID, title string) error {
	result := s.db.WithContext(ctx).Model(&Session{}).Where("id = ?", id).Update("title", title)
	if result.Error != nil {
		return fmt.Errorf("failed to update session title: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// UpdateSessionStatus moves a session between active/archived/deleted
func (s *Store) UpdateSessionStatus(ctx context.Context, id uuid.UUID, status SessionStatus) error {
	result := s.db.WithContext(ctx).Model(&Session{}).Where("id = ?", id).Update("status", status)
	if result.Error != nil {
		return fmt.Errorf("failed to update session status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// SaveTranscript appends a transcript record for a session. Existing
// transcripts are kept so re-transcription preserves audit history.
func (s *Store) SaveTranscript(ctx context.Context, transcript *Transcript) error {
	if transcript.ID == uuid.Nil {
		transcript.ID = uuid.New()
	}

	if err := s.requireSession(ctx, transcript.SessionID); err != nil {
		return err
	}

	if err := s.db.WithContext(ctx).Create(transcript).Error; err != nil {
		return fmt.Errorf("failed to save transcript: %w", err)
	}
	return nil
}

// SaveAnalysis persists an analysis result and every idea, task, and note it
// owns as one transaction. A previous analysis for the session, including all
// of its children, is replaced. On any failure nothing is persisted.
func (s *Store) SaveAnalysis(ctx context.Context, sessionID uuid.UUID, analysis *AnalysisResult) error {
	if err := s.requireSession(ctx, sessionID); err != nil {
		return err
	}

	if analysis.ID == uuid.Nil {
		analysis.ID = uuid.New()
	}
	analysis.SessionID = sessionID

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := deleteAnalysisGraph(tx, sessionID); err != nil {
			return err
		}

		if err := tx.Omit("Ideas", "Tasks", "Notes").Create(analysis).Error; err != nil {
			return fmt.Errorf("failed to save analysis: %w", err)
		}

		for i := range analysis.Ideas {
			idea := &analysis.Ideas[i]
			if idea.ID == uuid.Nil {
				idea.ID = uuid.New()
			}
			idea.AnalysisID = analysis.ID
			idea.Position = i
			if err := tx.Create(idea).Error; err != nil {
				return fmt.Errorf("failed to save idea: %w", err)
			}
		}

		for i := range analysis.Tasks {
			task := &analysis.Tasks[i]
			if task.ID == uuid.Nil {
				task.ID = uuid.New()
			}
			task.AnalysisID = analysis.ID
			task.Position = i
			if task.Priority == "" {
				task.Priority = PriorityMedium
			}
			if task.Status == "" {
				task.Status = TaskPending
			}
			if err := tx.Create(task).Error; err != nil {
				return fmt.Errorf("failed to save task: %w", err)
			}
		}

		for i := range analysis.Notes {
			note := &analysis.Notes[i]
			if note.ID == uuid.Nil {
				note.ID = uuid.New()
			}
			note.AnalysisID = analysis.ID
			note.Position = i
			if note.NoteType == "" {
				note.NoteType = NoteReference
			}
			if err := tx.Create(note).Error; err != nil {
				return fmt.Errorf("failed to save structured note: %w", err)
			}
		}

		return nil
	})
}

// DeleteSession removes a session and every dependent row in one transaction
func (s *Store) DeleteSession(ctx context.Context, id uuid.UUID) error {
	if err := s.requireSession(ctx, id); err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := deleteAnalysisGraph(tx, id); err != nil {
			return err
		}
		if err := tx.Where("session_id = ?", id).Delete(&Transcript{}).Error; err != nil {
			return fmt.Errorf("failed to delete transcripts: %w", err)
		}
		if err := tx.Where("session_id = ?", id).Delete(&AudioFile{}).Error; err != nil {
			return fmt.Errorf("failed to delete audio file record: %w", err)
		}
		if err := tx.Where("id = ?", id).Delete(&Session{}).Error; err != nil {
			return fmt.Errorf("failed to delete session: %w", err)
		}
		return nil
	})
}

// deleteAnalysisGraph removes the analysis result for a session along with
// all of its children. Must run inside a transaction.
func deleteAnalysisGraph(tx *gorm.DB, sessionID uuid.UUID) error {
	var analysisIDs []uuid.UUID
	if err := tx.Model(&AnalysisResult{}).Where("session_id = ?", sessionID).
		Pluck("id", &analysisIDs).Error; err != nil {
		return fmt.Errorf("failed to look up prior analysis: %w", err)
	}
	if len(analysisIDs) == 0 {
		return nil
	}

	if err := tx.Where("analysis_id IN ?", analysisIDs).Delete(&Idea{}).Error; err != nil {
		return fmt.Errorf("failed to delete ideas: %w", err)
	}
	if err := tx.Where("analysis_id IN ?", analysisIDs).Delete(&Task{}).Error; err != nil {
		return fmt.Errorf("failed to delete tasks: %w", err)
	}
	if err := tx.Where("analysis_id IN ?", analysisIDs).Delete(&StructuredNote{}).Error; err != nil {
		return fmt.Errorf("failed to delete structured notes: %w", err)
	}
	if err := tx.Where("id IN ?", analysisIDs).Delete(&AnalysisResult{}).Error; err != nil {
		return fmt.Errorf("failed to delete analysis: %w", err)
	}
	return nil
}

func (s *Store) requireSession(ctx context.Context, id uuid.UUID) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&Session{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check session: %w", err)
	}
	if count == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// DB exposes the underlying GORM handle for migrations and tests
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Close closes the database connection
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB from gorm.DB: %w", err)
	}
	return sqlDB.Close()
}
