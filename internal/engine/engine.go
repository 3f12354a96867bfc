package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"codestreak/internal/audit"
	"codestreak/internal/config"
	"codestreak/internal/domain"
	"codestreak/internal/jobstate"
	"codestreak/internal/judge"
	"codestreak/internal/repo"
)

// Engine wires the scoring pipeline together: repo for durable state, the
// judge fetcher for evidence, the state machine for the active day, and the
// audit writer for run records.
type Engine struct {
	Repo   repo.Repo
	Audit  audit.Writer
	State  jobstate.Machine
	Judge  judge.Fetcher
	Config *config.Config
	Now    func() time.Time
	Sleep  func(time.Duration)
	Logger *log.Logger
}

func New(db *sql.DB, cfg *config.Config) Engine {
	r := repo.Repo{DB: db}
	client := judge.NewClient(cfg.Judge.BaseURL, cfg.Judge.HistoryLimit,
		time.Duration(cfg.Judge.TimeoutSeconds)*time.Second)
	return Engine{
		Repo:   r,
		Audit:  audit.Writer{DB: db},
		State:  jobstate.Machine{Repo: r},
		Judge:  judge.FetchPolicy{Fetcher: client, OnFetchError: judge.ScoreAsEmpty},
		Config: cfg,
		Now:    time.Now,
		Sleep:  time.Sleep,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) sleep(d time.Duration) {
	if d <= 0 {
		return
	}
	if e.Sleep != nil {
		e.Sleep(d)
		return
	}
	time.Sleep(d)
}

func (e Engine) logger() *log.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return log.Default()
}

// RegisterParticipant creates the directory user and its zeroed leaderboard
// row together.
func (e Engine) RegisterParticipant(ctx context.Context, username, name string) (domain.LeaderboardEntry, error) {
	if username == "" {
		return domain.LeaderboardEntry{}, errors.New("username is required")
	}
	if name == "" {
		name = username
	}
	now := e.now().UTC().Format(time.RFC3339)
	if err := e.Repo.RegisterParticipant(ctx, username, name, now); err != nil {
		return domain.LeaderboardEntry{}, fmt.Errorf("register %s: %w", username, err)
	}
	return e.Repo.GetLeaderboardEntry(ctx, username)
}

// StartDay is the operator trigger: it moves the state machine to
// active(day) so scheduled passes pick that day up.
func (e Engine) StartDay(ctx context.Context, day int) error {
	return e.State.Start(ctx, day)
}

// CommitScore applies a score delta and the caller-computed streak to one
// participant and advances the marker, all in a single write. A run record
// is appended afterwards on a best-effort basis, success or failure.
func (e Engine) CommitScore(ctx context.Context, username string, day, delta, newStreak, totalRemaining int) error {
	commitErr := e.Repo.ApplyScore(ctx, username, day, delta, newStreak)

	status := domain.RunStatusSuccess
	detail := ""
	processed := 1
	if commitErr != nil {
		status = domain.RunStatusFailed
		processed = 0
		detail = fmt.Sprintf("commit for %s: %v", username, commitErr)
	}
	if err := e.Audit.Append(ctx, day, processed, totalRemaining, status, detail); err != nil {
		e.logger().Printf("audit append failed (day %d, user %s): %v", day, username, err)
	}

	if errors.Is(commitErr, repo.ErrNotFound) {
		return fmt.Errorf("no leaderboard record for %s: %w", username, commitErr)
	}
	return commitErr
}
