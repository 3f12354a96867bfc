// Package codestreaksdk is a minimal Codestreak HTTP API client, intended for
// external schedulers and admin tooling that drive the scoring pipeline
// remotely.
package codestreaksdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client is a minimal Codestreak HTTP API client.
type Client struct {
	BaseURL     string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults. The bearer token is either an
// admin JWT or the raw admin password.
func New(baseURL, bearerToken string) *Client {
	return &Client{
		BaseURL:     strings.TrimRight(baseURL, "/"),
		BearerToken: bearerToken,
		Timeout:     10 * time.Second,
	}
}

// ProcessingDay is the pipeline's current target day; 0 means stopped.
type ProcessingDay struct {
	Day     int    `json:"day"`
	Stopped bool   `json:"stopped"`
	State   string `json:"state"`
}

// Backlog lists participants not yet scored for a day.
type Backlog struct {
	Day       int      `json:"day"`
	Usernames []string `json:"usernames"`
	Remaining int      `json:"remaining"`
}

// LeaderboardEntry mirrors the API leaderboard model.
type LeaderboardEntry struct {
	Username         string `json:"username"`
	Points           int    `json:"points"`
	Streak           int    `json:"streak"`
	LastProcessedDay int    `json:"last_processed_day"`
}

// Problem mirrors the API problem model (partial).
type Problem struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Points    int    `json:"points"`
	Day       int    `json:"day"`
	Published bool   `json:"published"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// GetProcessingDay reads the state machine.
func (c *Client) GetProcessingDay(ctx context.Context) (ProcessingDay, error) {
	var resp ProcessingDay
	err := c.do(ctx, http.MethodGet, "/admin/processing-day", nil, &resp)
	return resp, err
}

// TriggerDay points the pipeline at a day.
func (c *Client) TriggerDay(ctx context.Context, day int) (ProcessingDay, error) {
	var resp ProcessingDay
	err := c.do(ctx, http.MethodPost, "/admin/trigger", map[string]any{"day": day}, &resp)
	return resp, err
}

// CompleteJob stops the pipeline.
func (c *Client) CompleteJob(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/admin/complete-job", nil, nil)
}

// GetBacklog lists participants still behind a day.
func (c *Client) GetBacklog(ctx context.Context, day int) (Backlog, error) {
	var resp Backlog
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/admin/backlog/%d", day), nil, &resp)
	return resp, err
}

// Leaderboard fetches the public standings.
func (c *Client) Leaderboard(ctx context.Context) ([]LeaderboardEntry, error) {
	var resp []LeaderboardEntry
	err := c.do(ctx, http.MethodGet, "/leaderboard", nil, &resp)
	return resp, err
}

// AddProblem creates an unpublished problem.
func (c *Client) AddProblem(ctx context.Context, name string, points, day int, link string) (Problem, error) {
	body := map[string]any{"name": name, "points": points, "day": day}
	if link != "" {
		body["link"] = link
	}
	var resp Problem
	err := c.do(ctx, http.MethodPost, "/admin/problems", body, &resp)
	return resp, err
}

// PublishDay makes a day's problems public.
func (c *Client) PublishDay(ctx context.Context, day int) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/admin/days/%d/publish", day), nil, nil)
}

// RegisterParticipant creates a user and a zeroed leaderboard row.
func (c *Client) RegisterParticipant(ctx context.Context, username, name string) (LeaderboardEntry, error) {
	body := map[string]any{"username": username}
	if name != "" {
		body["name"] = name
	}
	var resp LeaderboardEntry
	err := c.do(ctx, http.MethodPost, "/admin/participants", body, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	}
	client := c.HTTPClient
	if client == nil {
		timeout := c.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	res, err := client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return &APIError{StatusCode: res.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	if out == nil {
		io.Copy(io.Discard, res.Body)
		return nil
	}
	return json.NewDecoder(res.Body).Decode(out)
}
