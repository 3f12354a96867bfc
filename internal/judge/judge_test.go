package judge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"codestreak/internal/scoring"
)

func newJudgeServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchSolvedFiltersAccepted(t *testing.T) {
	srv := newJudgeServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/alice/acSubmission" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("limit"); got != "1000" {
			t.Errorf("expected limit=1000, got %q", got)
		}
		fmt.Fprint(w, `{"submission":[
			{"title":"Two Sum","statusDisplay":"Accepted"},
			{"title":"LRU Cache","statusDisplay":"Wrong Answer"},
			{"title":"Two Sum","statusDisplay":"Accepted"},
			{"title":"Valid Parentheses","statusDisplay":"Accepted"}
		]}`)
	})
	c := NewClient(srv.URL, 1000, time.Second)
	solved, err := c.FetchSolved(context.Background(), "alice")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(solved) != 2 {
		t.Fatalf("expected 2 solved, got %d: %v", len(solved), solved)
	}
	for _, want := range []string{"Two Sum", "Valid Parentheses"} {
		if !solved.Contains(want) {
			t.Errorf("missing %q", want)
		}
	}
	if solved.Contains("LRU Cache") {
		t.Errorf("non-accepted submission credited")
	}
}

func TestFetchSolvedNoSubmissions(t *testing.T) {
	srv := newJudgeServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{}`)
	})
	c := NewClient(srv.URL, 1000, time.Second)
	solved, err := c.FetchSolved(context.Background(), "bob")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(solved) != 0 {
		t.Fatalf("expected empty set, got %v", solved)
	}
}

func TestFetchSolvedServerError(t *testing.T) {
	srv := newJudgeServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	c := NewClient(srv.URL, 1000, time.Second)
	_, err := c.FetchSolved(context.Background(), "bob")
	if err == nil {
		t.Fatalf("expected error on 500")
	}
	if errors.Is(err, ErrRateLimited) {
		t.Fatalf("500 must not be classified as rate limited")
	}
}

func TestFetchSolvedRateLimited(t *testing.T) {
	srv := newJudgeServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	})
	c := NewClient(srv.URL, 1000, time.Second)
	_, err := c.FetchSolved(context.Background(), "bob")
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
}

func TestFetchSolvedMalformedResponse(t *testing.T) {
	srv := newJudgeServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"submission": "not an array"`)
	})
	c := NewClient(srv.URL, 1000, time.Second)
	if _, err := c.FetchSolved(context.Background(), "bob"); err == nil {
		t.Fatalf("expected decode error")
	}
}

type stubFetcher struct {
	solved map[string][]string
	err    error
}

func (s stubFetcher) FetchSolved(ctx context.Context, username string) (scoring.SolvedSet, error) {
	if s.err != nil {
		return nil, s.err
	}
	return scoring.NewSolvedSet(s.solved[username]...), nil
}

func TestPolicyScoreAsEmpty(t *testing.T) {
	p := FetchPolicy{
		Fetcher:      stubFetcher{err: errors.New("connection refused")},
		OnFetchError: ScoreAsEmpty,
		Logger:       log.New(io.Discard, "", 0),
	}
	solved, err := p.FetchSolved(context.Background(), "alice")
	if err != nil {
		t.Fatalf("fail-open policy returned error: %v", err)
	}
	if len(solved) != 0 {
		t.Fatalf("expected empty set, got %v", solved)
	}
}

func TestPolicyRateLimitEscapes(t *testing.T) {
	p := FetchPolicy{
		Fetcher:      stubFetcher{err: fmt.Errorf("judge: %w", ErrRateLimited)},
		OnFetchError: ScoreAsEmpty,
		Logger:       log.New(io.Discard, "", 0),
	}
	if _, err := p.FetchSolved(context.Background(), "alice"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("rate limit must escape the fail-open policy, got %v", err)
	}
}

func TestPolicyPropagate(t *testing.T) {
	want := errors.New("connection refused")
	p := FetchPolicy{Fetcher: stubFetcher{err: want}, OnFetchError: Propagate}
	if _, err := p.FetchSolved(context.Background(), "alice"); !errors.Is(err, want) {
		t.Fatalf("expected propagated error, got %v", err)
	}
}
