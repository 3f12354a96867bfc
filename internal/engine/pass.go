package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"codestreak/internal/domain"
	"codestreak/internal/judge"
	"codestreak/internal/scoring"
)

// PassOptions control one bounded driver pass.
type PassOptions struct {
	// Day 0 means "read the state machine" (scheduled trigger); a positive
	// day is a manual trigger and also records itself in the state machine.
	Day int
	// MaxBatch overrides config.Pipeline.MaxPerRun when positive.
	MaxBatch int
	// Pacing overrides the configured inter-participant delay when set.
	Pacing time.Duration
}

// PassReport summarizes what a pass did.
type PassReport struct {
	Day        int  `json:"day"`
	Skipped    bool `json:"skipped"`
	Candidates int  `json:"candidates"`
	Processed  int  `json:"processed"`
	Succeeded  int  `json:"succeeded"`
	Failed     int  `json:"failed"`
	Remaining  int  `json:"remaining"`
	Completed  bool `json:"completed"`
}

// RunPass executes one bounded scoring pass: resolve the target day, pull the
// backlog, score up to MaxBatch participants sequentially with pacing, and
// stop the state machine once the backlog is drained. Progress is durable per
// participant; an interrupted pass resumes from the still-behind backlog on
// the next invocation.
func (e Engine) RunPass(ctx context.Context, opts PassOptions) (PassReport, error) {
	var report PassReport

	day := opts.Day
	if day == 0 {
		state, err := e.State.Current(ctx)
		if err != nil {
			return report, fmt.Errorf("resolve processing day: %w", err)
		}
		if state.Stopped() {
			report.Skipped = true
			e.logger().Printf("processing day is stopped, nothing to do")
			return report, nil
		}
		day = state.Day
	} else {
		if err := e.State.Start(ctx, day); err != nil {
			return report, fmt.Errorf("start day %d: %w", day, err)
		}
	}
	report.Day = day

	backlog, err := e.Repo.ParticipantsBehind(ctx, day)
	if err != nil {
		return report, fmt.Errorf("fetch backlog for day %d: %w", day, err)
	}
	report.Candidates = len(backlog)
	if len(backlog) == 0 {
		if err := e.State.Complete(ctx); err != nil {
			return report, fmt.Errorf("complete day %d: %w", day, err)
		}
		report.Completed = true
		e.logger().Printf("day %d backlog empty, job stopped", day)
		return report, nil
	}

	maxBatch := opts.MaxBatch
	if maxBatch <= 0 {
		maxBatch = e.Config.Pipeline.MaxPerRun
	}
	pacing := opts.Pacing
	if pacing <= 0 {
		pacing = time.Duration(e.Config.Pipeline.PacingMS) * time.Millisecond
	}

	batch := backlog
	if len(batch) > maxBatch {
		batch = batch[:maxBatch]
	}

	problems, err := e.Repo.DayProblems(ctx, day)
	if err != nil {
		return report, fmt.Errorf("load problems for day %d: %w", day, err)
	}
	if len(problems) == 0 {
		return report, fmt.Errorf("no published problems for day %d", day)
	}

	e.logger().Printf("pass start: day=%d backlog=%d batch=%d pacing=%s", day, len(backlog), len(batch), pacing)

	for i, username := range batch {
		if i > 0 {
			e.sleep(pacing)
		}
		remaining := report.Candidates - report.Processed
		if err := e.scoreParticipant(ctx, username, day, problems, remaining); err != nil {
			if errors.Is(err, judge.ErrRateLimited) {
				e.logger().Printf("rate limited at %s, aborting pass (processed %d of %d)", username, report.Processed, len(batch))
				report.Remaining = report.Candidates - report.Succeeded
				return report, fmt.Errorf("pass aborted: %w", err)
			}
			report.Failed++
			report.Processed++
			e.logger().Printf("scoring %s for day %d failed: %v", username, day, err)
			continue
		}
		report.Succeeded++
		report.Processed++
	}

	report.Remaining = report.Candidates - report.Succeeded
	if report.Candidates <= maxBatch {
		if err := e.State.Complete(ctx); err != nil {
			return report, fmt.Errorf("complete day %d: %w", day, err)
		}
		report.Completed = true
	}
	e.logger().Printf("pass done: day=%d processed=%d succeeded=%d failed=%d remaining=%d completed=%v",
		day, report.Processed, report.Succeeded, report.Failed, report.Remaining, report.Completed)
	return report, nil
}

// scoreParticipant runs fetch -> score -> commit for one participant. The
// fetch goes through the fail-open policy, so only rate limiting surfaces
// from it.
func (e Engine) scoreParticipant(ctx context.Context, username string, day int, problems []domain.DayProblem, totalRemaining int) error {
	solved, err := e.Judge.FetchSolved(ctx, username)
	if err != nil {
		return err
	}
	result := scoring.Score(problems, solved)
	entry, err := e.Repo.GetLeaderboardEntry(ctx, username)
	if err != nil {
		return fmt.Errorf("leaderboard read for %s: %w", username, err)
	}
	newStreak := scoring.NextStreak(entry.Streak, result.SolvedCount)
	return e.CommitScore(ctx, username, day, result.Points, newStreak, totalRemaining)
}
