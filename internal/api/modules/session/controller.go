package session

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/YoungApple/voice-recorder/internal/pipeline"
	"github.com/YoungApple/voice-recorder/internal/recorder"
	"github.com/YoungApple/voice-recorder/internal/storage"
	"github.com/YoungApple/voice-recorder/pkg/sdk"
)

// StartRecording handles POST requests to begin a new recording session
func StartRecording(c *gin.Context) {
	coord := GetCoordinator()
	id, err := coord.StartSession(c.Request.Context())
	if err != nil {
		c.JSON(sdk.NewErrorResponse(errorStatus(err), "Failed to start recording", err).AsGinResponse())
		return
	}

	c.JSON(sdk.NewSuccessResponse("Recording started", sdk.StartRecordingResponse{
		SessionID: id.String(),
	}).AsGinResponse())
}

// StopRecording handles POST requests to finalize the active recording
func StopRecording(c *gin.Context) {
	coord := GetCoordinator()
	session, err := coord.StopSession(c.Request.Context())
	if err != nil {
		c.JSON(sdk.NewErrorResponse(errorStatus(err), "Failed to stop recording", err).AsGinResponse())
		return
	}

	c.JSON(sdk.NewSuccessResponse("Recording stopped", toSDKSession(session)).AsGinResponse())
}

// CancelRecording handles POST requests to abort the active recording
func CancelRecording(c *gin.Context) {
	coord := GetCoordinator()
	if err := coord.CancelRecording(); err != nil {
		c.JSON(sdk.NewErrorResponse(errorStatus(err), "Failed to cancel recording", err).AsGinResponse())
		return
	}

	c.JSON(sdk.NewSuccess("Recording cancelled").AsGinResponse())
}

// Analyze handles POST requests to transcribe and analyze a stopped session
func Analyze(c *gin.Context) {
	id, err := uuid.Parse(c.Param("uuid"))
	if err != nil {
		c.JSON(sdk.NewErrorResponse(http.StatusBadRequest, "Invalid session id", err).AsGinResponse())
		return
	}

	coord := GetCoordinator()
	analysis, err := coord.TranscribeAndAnalyze(c.Request.Context(), id)
	if err != nil {
		c.JSON(sdk.NewErrorResponse(errorStatus(err), "Failed to analyze session", err).AsGinResponse())
		return
	}

	c.JSON(sdk.NewSuccessResponse("Session analyzed", toSDKAnalysis(analysis)).AsGinResponse())
}

// Retranscribe handles POST requests to transcribe a session's audio again.
// The previous transcript is kept as history.
func Retranscribe(c *gin.Context) {
	id, err := uuid.Parse(c.Param("uuid"))
	if err != nil {
		c.JSON(sdk.NewErrorResponse(http.StatusBadRequest, "Invalid session id", err).AsGinResponse())
		return
	}

	coord := GetCoordinator()
	transcript, err := coord.Retranscribe(c.Request.Context(), id)
	if err != nil {
		c.JSON(sdk.NewErrorResponse(errorStatus(err), "Failed to transcribe session", err).AsGinResponse())
		return
	}

	c.JSON(sdk.NewSuccessResponse("Session transcribed", toSDKTranscript(transcript)).AsGinResponse())
}

// GetSession handles GET requests to retrieve an existing session by UUID
func GetSession(c *gin.Context) {
	id, err := uuid.Parse(c.Param("uuid"))
	if err != nil {
		c.JSON(sdk.NewErrorResponse(http.StatusBadRequest, "Invalid session id", err).AsGinResponse())
		return
	}

	coord := GetCoordinator()
	session, err := coord.GetSession(c.Request.Context(), id)
	if err != nil {
		c.JSON(sdk.NewErrorResponse(errorStatus(err), "Session not found", err).AsGinResponse())
		return
	}

	c.JSON(sdk.NewSuccessResponse("Session retrieved successfully", toSDKSession(session)).AsGinResponse())
}

// ListSessions handles GET requests to list sessions with optional filters
func ListSessions(c *gin.Context) {
	var req sdk.ListSessionsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(sdk.NewErrorResponse(http.StatusBadRequest, "Could not parse query parameters", err).AsGinResponse())
		return
	}

	filter, err := toStorageFilter(&req)
	if err != nil {
		c.JSON(sdk.NewErrorResponse(http.StatusBadRequest, "Invalid filter", err).AsGinResponse())
		return
	}

	coord := GetCoordinator()
	sessions, err := coord.ListSessions(c.Request.Context(), filter)
	if err != nil {
		c.JSON(sdk.NewErrorResponse(http.StatusInternalServerError, "Failed to list sessions", err).AsGinResponse())
		return
	}
	count, err := coord.CountSessions(c.Request.Context(), filter)
	if err != nil {
		c.JSON(sdk.NewErrorResponse(http.StatusInternalServerError, "Failed to count sessions", err).AsGinResponse())
		return
	}

	resp := sdk.ListSessionsResponse{Count: count, Sessions: []sdk.Session{}}
	for i := range sessions {
		resp.Sessions = append(resp.Sessions, toSDKSession(&sessions[i]))
	}

	c.JSON(sdk.NewSuccessResponse("Sessions retrieved successfully", resp).AsGinResponse())
}

// DeleteSession handles DELETE requests to remove an existing session
func DeleteSession(c *gin.Context) {
	id, err := uuid.Parse(c.Param("uuid"))
	if err != nil {
		c.JSON(sdk.NewErrorResponse(http.StatusBadRequest, "Invalid session id", err).AsGinResponse())
		return
	}

	coord := GetCoordinator()
	if err := coord.DeleteSession(c.Request.Context(), id); err != nil {
		c.JSON(sdk.NewErrorResponse(errorStatus(err), "Failed to delete session", err).AsGinResponse())
		return
	}

	c.JSON(sdk.NewSuccess("Session deleted successfully").AsGinResponse())
}

// errorStatus maps pipeline errors onto HTTP status codes
func errorStatus(err error) int {
	switch {
	case errors.Is(err, storage.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, recorder.ErrAlreadyRecording),
		errors.Is(err, recorder.ErrNotRecording),
		errors.Is(err, pipeline.ErrSessionBusy):
		return http.StatusConflict
	case errors.Is(err, recorder.ErrEmptyRecording),
		errors.Is(err, pipeline.ErrNoAudio),
		errors.Is(err, pipeline.ErrAudioTooLarge):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// toStorageFilter converts query parameters into a repository filter
func toStorageFilter(req *sdk.ListSessionsRequest) (storage.SessionFilter, error) {
	filter := storage.SessionFilter{
		Status:   storage.SessionStatus(req.Status),
		Search:   req.Search,
		Limit:    req.Limit,
		Offset:   req.Offset,
		SortBy:   req.SortBy,
		SortDesc: req.SortDesc,
	}

	if req.CreatedAfter != "" {
		ts, err := time.Parse(time.RFC3339, req.CreatedAfter)
		if err != nil {
			return filter, err
		}
		filter.CreatedAfter = &ts
	}
	if req.CreatedBefore != "" {
		ts, err := time.Parse(time.RFC3339, req.CreatedBefore)
		if err != nil {
			return filter, err
		}
		filter.CreatedBefore = &ts
	}

	return filter, nil
}

// Helper method to convert internal session to sdk session
func toSDKSession(session *storage.Session) sdk.Session {
	resp := sdk.Session{
		ID:         session.ID.String(),
		Title:      session.Title,
		CreatedAt:  session.CreatedAt,
		UpdatedAt:  session.UpdatedAt,
		DurationMS: session.DurationMS,
		Status:     string(session.Status),
		Metadata:   session.Metadata,
	}

	if session.Audio != nil {
		resp.Audio = &sdk.AudioFile{
			FilePath:   session.Audio.FilePath,
			FileSize:   session.Audio.FileSize,
			Format:     session.Audio.Format,
			SampleRate: session.Audio.SampleRate,
			Channels:   session.Audio.Channels,
			Checksum:   session.Audio.Checksum,
		}
	}
	if transcript := session.Transcript(); transcript != nil {
		t := toSDKTranscript(transcript)
		resp.Transcript = &t
	}
	if session.Analysis != nil {
		a := toSDKAnalysis(session.Analysis)
		resp.Analysis = &a
	}

	return resp
}

// Helper method to convert internal transcript to sdk transcript
func toSDKTranscript(transcript *storage.Transcript) sdk.Transcript {
	return sdk.Transcript{
		Content:      transcript.Content,
		Language:     transcript.Language,
		Confidence:   transcript.Confidence,
		Provider:     transcript.Provider,
		ProcessingMS: transcript.ProcessingMS,
		CreatedAt:    transcript.CreatedAt,
	}
}

// Helper method to convert internal analysis to sdk analysis
func toSDKAnalysis(analysis *storage.AnalysisResult) sdk.Analysis {
	resp := sdk.Analysis{
		Title:           analysis.Title,
		Summary:         analysis.Summary,
		Ideas:           []string{},
		Tasks:           []sdk.TaskItem{},
		StructuredNotes: []sdk.StructuredNote{},
		Provider:        analysis.Provider,
		ModelVersion:    analysis.ModelVersion,
		ProcessingMS:    analysis.ProcessingMS,
	}

	for _, idea := range analysis.Ideas {
		resp.Ideas = append(resp.Ideas, idea.Content)
	}
	for _, task := range analysis.Tasks {
		resp.Tasks = append(resp.Tasks, sdk.TaskItem{
			Title:       task.Title,
			Description: task.Description,
			Priority:    string(task.Priority),
			Status:      string(task.Status),
		})
	}
	for _, note := range analysis.Notes {
		resp.StructuredNotes = append(resp.StructuredNotes, sdk.StructuredNote{
			Title:    note.Title,
			Content:  note.Content,
			Tags:     note.Tags,
			NoteType: string(note.NoteType),
		})
	}

	return resp
}
