// Package nightnotes provides a typed HTTP client for the Night Notes API,
// for use by the mobile backend-for-frontend and scheduler scripts.
package nightnotes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// APIError is a non-2xx response decoded from the service's problem+json body.
type APIError struct {
	Status int    `json:"status"`
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("nightnotes: %s (%d): %s", e.Title, e.Status, e.Detail)
	}
	return fmt.Sprintf("nightnotes: %s (%d)", e.Title, e.Status)
}

// Config holds client settings.
type Config struct {
	// BaseURL is the service root, e.g. "https://api.trynightnotes.com".
	BaseURL string
	// APIKey is the service bearer token.
	APIKey string
	// Timeout applies per request. Defaults to 30s; reflection and analysis
	// calls wait on an upstream model, so keep this generous.
	Timeout time.Duration
}

// Client is the Night Notes API client.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// New creates a new Client.
func New(config Config) (*Client, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("BaseURL is required")
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}

	return &Client{
		baseURL: config.BaseURL,
		apiKey:  config.APIKey,
		client:  &http.Client{Timeout: config.Timeout},
	}, nil
}

// Health checks service availability. Does not require the API key.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var resp HealthResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/health", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CreateSession records a completed shutdown ritual.
func (c *Client) CreateSession(ctx context.Context, req RitualRequest) (*Session, error) {
	var resp Session
	if err := c.do(ctx, http.MethodPost, "/api/v1/sessions", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListSessions returns the user's sessions, most recent first. A limit of 0
// returns all of them.
func (c *Client) ListSessions(ctx context.Context, userID string, limit int) ([]Session, error) {
	q := url.Values{"user_id": {userID}}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	var resp []Session
	if err := c.do(ctx, http.MethodGet, "/api/v1/sessions?"+q.Encode(), nil, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Dashboard returns the aggregate home-screen view for a user.
func (c *Client) Dashboard(ctx context.Context, userID string) (*DashboardResponse, error) {
	q := url.Values{"user_id": {userID}}

	var resp DashboardResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/dashboard?"+q.Encode(), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CreateCheckin records a morning sharpness check-in.
func (c *Client) CreateCheckin(ctx context.Context, req CheckinRequest) (*MorningCheckin, error) {
	var resp MorningCheckin
	if err := c.do(ctx, http.MethodPost, "/api/v1/checkins", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RunAnalysis generates and persists the trailing-week analysis for a user.
func (c *Client) RunAnalysis(ctx context.Context, userID string) (*WeeklyAnalysis, error) {
	var resp WeeklyAnalysis
	if err := c.do(ctx, http.MethodPost, "/api/v1/analysis", analysisRequest{UserID: userID}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// LatestAnalysis returns the most recently generated weekly analysis.
func (c *Client) LatestAnalysis(ctx context.Context, userID string) (*WeeklyAnalysis, error) {
	q := url.Values{"user_id": {userID}}

	var resp WeeklyAnalysis
	if err := c.do(ctx, http.MethodGet, "/api/v1/analysis?"+q.Encode(), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Reflect generates a dream reflection.
func (c *Client) Reflect(ctx context.Context, req ReflectRequest) (string, error) {
	var resp ReflectResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/reflect", req, &resp); err != nil {
		return "", err
	}
	return resp.Reflection, nil
}

// UpsertProfile creates or updates a user's delivery preferences.
func (c *Client) UpsertProfile(ctx context.Context, req ProfileRequest) (*Profile, error) {
	var resp Profile
	if err := c.do(ctx, http.MethodPut, "/api/v1/profiles", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// do issues one request and decodes the JSON response into out. Non-2xx
// responses are returned as *APIError.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody *bytes.Buffer
	if body != nil {
		reqBody = &bytes.Buffer{}
		if err := json.NewEncoder(reqBody).Encode(body); err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode, Title: http.StatusText(resp.StatusCode)}
		// Best effort: keep the transport status if the body is not a problem document.
		_ = json.NewDecoder(resp.Body).Decode(apiErr)
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
