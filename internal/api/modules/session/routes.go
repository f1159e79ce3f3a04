package session

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/YoungApple/voice-recorder/pkg/sdk"
	"github.com/YoungApple/voice-recorder/pkg/utils"
)

// Register routes for the session module
func RegisterRoutes(g *gin.RouterGroup, cfg *utils.Config) {
	// Create base group for session routes
	group := g.Group("/sessions")

	// An API key is optional; when configured, every session route checks it
	if apiKey := cfg.Get("API_KEY"); apiKey != "" {
		group.Use(apiKeyHandler(apiKey))
	}

	// Recording lifecycle routes
	group.POST("/record/start", StartRecording)   // Begin a new recording
	group.POST("/record/stop", StopRecording)     // Finalize the active recording
	group.POST("/record/cancel", CancelRecording) // Abort the active recording

	// Session processing and management routes
	group.POST("/:uuid/analyze", Analyze)           // Transcribe and analyze a session
	group.POST("/:uuid/transcribe", Retranscribe)   // Transcribe again, keeping history
	group.GET("/:uuid", GetSession)                 // Get an existing session by UUID
	group.GET("", ListSessions)                     // List sessions with filters
	group.DELETE("/:uuid", DeleteSession)           // Delete an existing session
}

// apiKeyHandler rejects requests whose X-API-KEY header does not match
func apiKeyHandler(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("X-API-KEY") != apiKey {
			c.AbortWithStatusJSON(sdk.NewErrorResponse(http.StatusUnauthorized, "Invalid API key", nil).AsGinResponse())
			return
		}
		c.Next()
	}
}
