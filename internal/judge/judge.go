// Package judge talks to the external judge service that holds participants'
// submission history. The service is read-only from our side and has unknown
// rate limits, so the client distinguishes "rate limited" from every other
// failure mode.
package judge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"codestreak/internal/scoring"
)

const statusAccepted = "Accepted"

// ErrRateLimited signals the judge rejected the call for throttling reasons.
// It must abort the current pass rather than being scored as empty.
var ErrRateLimited = errors.New("judge rate limited")

// Fetcher returns the set of problem names the judge reports as solved.
type Fetcher interface {
	FetchSolved(ctx context.Context, username string) (scoring.SolvedSet, error)
}

// Client is the HTTP judge client.
type Client struct {
	BaseURL      string
	HistoryLimit int
	HTTPClient   *http.Client
}

// NewClient builds a client with an explicit transport timeout. A generously
// large history limit matters: problems solved well before the checking pass
// must still be visible.
func NewClient(baseURL string, historyLimit int, timeout time.Duration) *Client {
	if historyLimit <= 0 {
		historyLimit = 1000
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		BaseURL:      strings.TrimRight(baseURL, "/"),
		HistoryLimit: historyLimit,
		HTTPClient:   &http.Client{Timeout: timeout},
	}
}

type submission struct {
	Title         string `json:"title"`
	StatusDisplay string `json:"statusDisplay"`
}

type submissionResponse struct {
	Submission []submission `json:"submission"`
}

// FetchSolved queries the accepted-submission history for a participant and
// reduces it to a set of solved problem names.
func (c *Client) FetchSolved(ctx context.Context, username string) (scoring.SolvedSet, error) {
	endpoint := fmt.Sprintf("%s/%s/acSubmission?limit=%d", c.BaseURL, url.PathEscape(username), c.HistoryLimit)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	res, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("%w: user %s", ErrRateLimited, username)
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return nil, fmt.Errorf("judge returned %d for user %s: %s", res.StatusCode, username, strings.TrimSpace(string(body)))
	}
	var decoded submissionResponse
	if err := json.NewDecoder(res.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode judge response for %s: %w", username, err)
	}
	solved := scoring.SolvedSet{}
	for _, sub := range decoded.Submission {
		if sub.StatusDisplay == statusAccepted {
			solved[sub.Title] = struct{}{}
		}
	}
	return solved, nil
}
