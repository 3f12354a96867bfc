package judge

import (
	"context"
	"errors"
	"log"

	"codestreak/internal/scoring"
)

// FetchErrorMode decides what a pass does when a fetch fails.
type FetchErrorMode int

const (
	// ScoreAsEmpty substitutes an empty solved set so the pass keeps moving.
	// The participant scores zero for the day even if the miss was ours,
	// which is the accepted trade-off for forward progress.
	ScoreAsEmpty FetchErrorMode = iota
	// Propagate surfaces fetch errors to the caller.
	Propagate
)

// FetchPolicy wraps a Fetcher with an error-handling policy. Rate-limit
// errors always escape the policy: they must stop the pass, not zero a score.
type FetchPolicy struct {
	Fetcher      Fetcher
	OnFetchError FetchErrorMode
	Logger       *log.Logger
}

func (p FetchPolicy) logger() *log.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return log.Default()
}

func (p FetchPolicy) FetchSolved(ctx context.Context, username string) (scoring.SolvedSet, error) {
	solved, err := p.Fetcher.FetchSolved(ctx, username)
	if err == nil {
		return solved, nil
	}
	if errors.Is(err, ErrRateLimited) || p.OnFetchError == Propagate {
		return nil, err
	}
	p.logger().Printf("judge fetch failed for %s, scoring as empty: %v", username, err)
	return scoring.SolvedSet{}, nil
}
