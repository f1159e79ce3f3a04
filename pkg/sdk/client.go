package sdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Client wraps calls to the voice-recorder backend
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
}

// StartRecording begins a new recording session
func (c *Client) StartRecording(ctx context.Context) (string, error) {
	var out ApiResponse[StartRecordingResponse]
	if err := c.doJSON(ctx, http.MethodPost, "/api/sessions/record/start", nil, &out); err != nil {
		return "", err
	}

	if out.Data.SessionID == "" {
		return "", fmt.Errorf("no session id returned")
	}
	return out.Data.SessionID, nil
}

// StopRecording finalizes the active recording and returns the stored session
func (c *Client) StopRecording(ctx context.Context) (*Session, error) {
	var out ApiResponse[Session]
	if err := c.doJSON(ctx, http.MethodPost, "/api/sessions/record/stop", nil, &out); err != nil {
		return nil, err
	}
	return &out.Data, nil
}

// CancelRecording aborts the active recording, discarding partial audio
func (c *Client) CancelRecording(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodPost, "/api/sessions/record/cancel", nil, nil)
}

// Analyze transcribes and analyzes a stopped session
func (c *Client) Analyze(ctx context.Context, uuid string) (*Analysis, error) {
	path := fmt.Sprintf("/api/sessions/%s/analyze", uuid)

	var out ApiResponse[Analysis]
	if err := c.doJSON(ctx, http.MethodPost, path, nil, &out); err != nil {
		return nil, err
	}
	return &out.Data, nil
}

// GetSession retrieves a session by UUID with its transcript and analysis
func (c *Client) GetSession(ctx context.Context, uuid string) (*Session, error) {
	path := fmt.Sprintf("/api/sessions/%s", uuid)

	var out ApiResponse[Session]
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}

	// Check for success
	switch out.Status {
	case StatusFail:
		return nil, fmt.Errorf("failed to get session: %s", out.Message)
	case StatusError:
		return nil, fmt.Errorf("error getting session (%s): %v", out.Message, out.Error)
	}

	// On success return data
	return &out.Data, nil
}

// ListSessions returns sessions matching the filter
func (c *Client) ListSessions(ctx context.Context, req *ListSessionsRequest) (*ListSessionsResponse, error) {
	path := "/api/sessions"
	if req != nil {
		path += "?" + listQuery(req).Encode()
	}

	var out ApiResponse[ListSessionsResponse]
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out.Data, nil
}

// DeleteSession removes an existing session and everything it owns
func (c *Client) DeleteSession(ctx context.Context, uuid string) error {
	path := fmt.Sprintf("/api/sessions/%s", uuid)

	return c.doJSON(ctx, http.MethodDelete, path, nil, nil)
}

// listQuery builds the query string for ListSessions
func listQuery(req *ListSessionsRequest) url.Values {
	query := url.Values{}
	if req.Status != "" {
		query.Set("status", req.Status)
	}
	if req.Search != "" {
		query.Set("search", req.Search)
	}
	if req.CreatedAfter != "" {
		query.Set("created_after", req.CreatedAfter)
	}
	if req.CreatedBefore != "" {
		query.Set("created_before", req.CreatedBefore)
	}
	if req.Limit > 0 {
		query.Set("limit", strconv.Itoa(req.Limit))
	}
	if req.Offset > 0 {
		query.Set("offset", strconv.Itoa(req.Offset))
	}
	if req.SortBy != "" {
		query.Set("sort_by", req.SortBy)
	}
	if req.SortDesc {
		query.Set("sort_desc", "true")
	}
	return query
}

// doJSON is a helper to perform JSON requests to the backend
func (c *Client) doJSON(ctx context.Context, method, path string, in any, out any) error {
	// Create request body if input is provided
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewBuffer(b)
	}

	// Create the request
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-KEY", c.apiKey)

	// Perform the request
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// On error, read body and return error
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("[BACKEND]: backend '%s %s' failed: %d: %s", method, path, resp.StatusCode, string(b))
	}

	// If no output expected, return early
	if out == nil {
		return nil
	}

	// Decode the response body into the output struct
	dec := json.NewDecoder(resp.Body)
	return dec.Decode(out)
}
