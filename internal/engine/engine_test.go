package engine_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"testing"
	"time"

	"codestreak/internal/config"
	"codestreak/internal/db"
	"codestreak/internal/domain"
	"codestreak/internal/engine"
	"codestreak/internal/judge"
	"codestreak/internal/migrate"
	"codestreak/internal/repo"
	"codestreak/internal/scoring"
)

// fakeJudge serves canned solved sets and records which users were fetched.
type fakeJudge struct {
	solved  map[string][]string
	errs    map[string]error
	fetched []string
}

func (f *fakeJudge) FetchSolved(ctx context.Context, username string) (scoring.SolvedSet, error) {
	f.fetched = append(f.fetched, username)
	if err, ok := f.errs[username]; ok {
		return nil, err
	}
	return scoring.NewSolvedSet(f.solved[username]...), nil
}

type testEnv struct {
	Engine engine.Engine
	Judge  *fakeJudge
	Ctx    context.Context
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(context.Background(), conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	cfg := config.Default()
	cfg.Pipeline.PacingMS = 0
	eng := engine.New(conn, cfg)
	eng.Now = func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }
	eng.Sleep = func(time.Duration) {}
	eng.Logger = log.New(io.Discard, "", 0)
	fj := &fakeJudge{solved: map[string][]string{}, errs: map[string]error{}}
	eng.Judge = judge.FetchPolicy{Fetcher: fj, OnFetchError: judge.ScoreAsEmpty, Logger: eng.Logger}
	return testEnv{Engine: eng, Judge: fj, Ctx: context.Background()}
}

func (env testEnv) addProblem(t *testing.T, name string, points, day int) {
	t.Helper()
	_, err := env.Engine.Repo.InsertProblem(env.Ctx, domain.Problem{
		Name:      name,
		Points:    points,
		Day:       day,
		Published: true,
		CreatedAt: "2024-06-01T00:00:00Z",
	})
	if err != nil {
		t.Fatalf("insert problem %s: %v", name, err)
	}
}

func (env testEnv) register(t *testing.T, usernames ...string) {
	t.Helper()
	for _, u := range usernames {
		if _, err := env.Engine.RegisterParticipant(env.Ctx, u, u); err != nil {
			t.Fatalf("register %s: %v", u, err)
		}
	}
}

func (env testEnv) entry(t *testing.T, username string) domain.LeaderboardEntry {
	t.Helper()
	e, err := env.Engine.Repo.GetLeaderboardEntry(env.Ctx, username)
	if err != nil {
		t.Fatalf("get entry %s: %v", username, err)
	}
	return e
}

func TestPassScoresAndAdvancesStreak(t *testing.T) {
	env := newTestEnv(t)
	env.addProblem(t, "Two Sum", 10, 3)
	env.addProblem(t, "LRU Cache", 20, 3)
	env.register(t, "alice")
	// alice enters day 3 with a streak of 2.
	if err := env.Engine.Repo.ApplyScore(env.Ctx, "alice", 2, 30, 2); err != nil {
		t.Fatalf("seed prior days: %v", err)
	}
	env.Judge.solved["alice"] = []string{"Two Sum"}

	report, err := env.Engine.RunPass(env.Ctx, engine.PassOptions{Day: 3})
	if err != nil {
		t.Fatalf("run pass: %v", err)
	}
	if report.Succeeded != 1 || report.Failed != 0 {
		t.Fatalf("unexpected report: %+v", report)
	}
	e := env.entry(t, "alice")
	if e.Points != 40 {
		t.Errorf("points = %d, want 40", e.Points)
	}
	if e.Streak != 3 {
		t.Errorf("streak = %d, want 3", e.Streak)
	}
	if e.LastProcessedDay != 3 {
		t.Errorf("marker = %d, want 3", e.LastProcessedDay)
	}
}

func TestFetchFailureScoresZeroAndResetsStreak(t *testing.T) {
	env := newTestEnv(t)
	env.addProblem(t, "Two Sum", 10, 1)
	env.register(t, "bob")
	// give bob a prior streak so the reset is visible
	if err := env.Engine.Repo.ApplyScore(env.Ctx, "bob", 0, 50, 4); err != nil {
		t.Fatalf("seed: %v", err)
	}
	env.Judge.errs["bob"] = errors.New("connection refused")

	report, err := env.Engine.RunPass(env.Ctx, engine.PassOptions{Day: 1})
	if err != nil {
		t.Fatalf("run pass: %v", err)
	}
	if report.Succeeded != 1 {
		t.Fatalf("fail-open fetch should still commit: %+v", report)
	}
	e := env.entry(t, "bob")
	if e.Points != 50 {
		t.Errorf("points changed on empty solve: %d", e.Points)
	}
	if e.Streak != 0 {
		t.Errorf("streak = %d, want 0 after empty day", e.Streak)
	}
	if e.LastProcessedDay != 1 {
		t.Errorf("marker = %d, want 1", e.LastProcessedDay)
	}
}

func TestStoppedStateDoesNothing(t *testing.T) {
	env := newTestEnv(t)
	env.addProblem(t, "Two Sum", 10, 1)
	env.register(t, "alice")

	report, err := env.Engine.RunPass(env.Ctx, engine.PassOptions{})
	if err != nil {
		t.Fatalf("run pass: %v", err)
	}
	if !report.Skipped {
		t.Fatalf("expected skipped pass, got %+v", report)
	}
	if len(env.Judge.fetched) != 0 {
		t.Fatalf("fetched users despite stopped state: %v", env.Judge.fetched)
	}
	e := env.entry(t, "alice")
	if e.Points != 0 || e.LastProcessedDay != 0 {
		t.Fatalf("store written despite stopped state: %+v", e)
	}
	runs, err := env.Engine.Repo.LatestRuns(env.Ctx, 10)
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	if len(runs) != 0 {
		t.Fatalf("audit written despite stopped state: %+v", runs)
	}
}

func TestScheduledPassReadsStateMachine(t *testing.T) {
	env := newTestEnv(t)
	env.addProblem(t, "Two Sum", 10, 2)
	env.register(t, "alice")
	env.Judge.solved["alice"] = []string{"Two Sum"}
	if err := env.Engine.StartDay(env.Ctx, 2); err != nil {
		t.Fatalf("trigger: %v", err)
	}

	report, err := env.Engine.RunPass(env.Ctx, engine.PassOptions{})
	if err != nil {
		t.Fatalf("run pass: %v", err)
	}
	if report.Day != 2 || report.Succeeded != 1 {
		t.Fatalf("unexpected report: %+v", report)
	}
}

func TestIdempotencePerDay(t *testing.T) {
	env := newTestEnv(t)
	env.addProblem(t, "Two Sum", 10, 1)
	env.register(t, "alice")
	env.Judge.solved["alice"] = []string{"Two Sum"}

	if _, err := env.Engine.RunPass(env.Ctx, engine.PassOptions{Day: 1}); err != nil {
		t.Fatalf("first pass: %v", err)
	}
	backlog, err := env.Engine.Repo.ParticipantsBehind(env.Ctx, 1)
	if err != nil {
		t.Fatalf("backlog: %v", err)
	}
	if len(backlog) != 0 {
		t.Fatalf("committed participant still in backlog: %v", backlog)
	}

	// A second pass for the same day finds nothing to do.
	report, err := env.Engine.RunPass(env.Ctx, engine.PassOptions{Day: 1})
	if err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if report.Candidates != 0 || !report.Completed {
		t.Fatalf("unexpected second-pass report: %+v", report)
	}
	e := env.entry(t, "alice")
	if e.Points != 10 || e.Streak != 1 {
		t.Fatalf("double commit detected: %+v", e)
	}
}

func TestBatchBoundAndTwoPassCompletion(t *testing.T) {
	env := newTestEnv(t)
	env.addProblem(t, "Two Sum", 10, 1)
	users := make([]string, 0, 150)
	for i := 0; i < 150; i++ {
		users = append(users, fmt.Sprintf("user-%03d", i))
	}
	env.register(t, users...)

	first, err := env.Engine.RunPass(env.Ctx, engine.PassOptions{Day: 1, MaxBatch: 120})
	if err != nil {
		t.Fatalf("first pass: %v", err)
	}
	if first.Processed != 120 || first.Completed {
		t.Fatalf("first pass should process 120 and stay active: %+v", first)
	}
	state, err := env.Engine.State.Current(env.Ctx)
	if err != nil || state.Day != 1 {
		t.Fatalf("expected active(1) after partial pass, got %v (%v)", state, err)
	}

	second, err := env.Engine.RunPass(env.Ctx, engine.PassOptions{Day: 1, MaxBatch: 120})
	if err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if second.Processed != 30 || !second.Completed {
		t.Fatalf("second pass should process the remaining 30 and complete: %+v", second)
	}
	state, _ = env.Engine.State.Current(env.Ctx)
	if !state.Stopped() {
		t.Fatalf("expected stopped after final batch, got %s", state)
	}
}

func TestRateLimitAbortsPassAndResumption(t *testing.T) {
	env := newTestEnv(t)
	env.addProblem(t, "Two Sum", 10, 1)
	env.register(t, "a", "b", "c", "d")
	env.Judge.solved["a"] = []string{"Two Sum"}
	env.Judge.solved["b"] = []string{"Two Sum"}
	env.Judge.errs["c"] = fmt.Errorf("judge: %w", judge.ErrRateLimited)

	_, err := env.Engine.RunPass(env.Ctx, engine.PassOptions{Day: 1})
	if !errors.Is(err, judge.ErrRateLimited) {
		t.Fatalf("expected rate-limit abort, got %v", err)
	}
	// a and b committed, c and d untouched
	if env.entry(t, "b").LastProcessedDay != 1 {
		t.Fatalf("participant before the abort lost progress")
	}
	for _, u := range []string{"c", "d"} {
		if env.entry(t, u).LastProcessedDay != 0 {
			t.Fatalf("participant %s advanced despite abort", u)
		}
	}
	state, _ := env.Engine.State.Current(env.Ctx)
	if state.Day != 1 {
		t.Fatalf("state should stay active after abort, got %s", state)
	}

	// Next invocation picks up only the remainder.
	delete(env.Judge.errs, "c")
	env.Judge.fetched = nil
	report, err := env.Engine.RunPass(env.Ctx, engine.PassOptions{Day: 1})
	if err != nil {
		t.Fatalf("resume pass: %v", err)
	}
	if report.Candidates != 2 || report.Succeeded != 2 || !report.Completed {
		t.Fatalf("unexpected resume report: %+v", report)
	}
	for _, u := range env.Judge.fetched {
		if u == "a" || u == "b" {
			t.Fatalf("already-committed participant %s re-fetched", u)
		}
	}
}

func TestCommitScoreMissingRow(t *testing.T) {
	env := newTestEnv(t)

	err := env.Engine.CommitScore(env.Ctx, "ghost", 1, 10, 1, 1)
	if err == nil {
		t.Fatalf("expected commit failure for missing leaderboard row")
	}
	if !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	runs, rerr := env.Engine.Repo.LatestRuns(env.Ctx, 10)
	if rerr != nil {
		t.Fatalf("runs: %v", rerr)
	}
	if len(runs) != 1 {
		t.Fatalf("expected one audit row, got %d", len(runs))
	}
	if runs[0].Status != domain.RunStatusFailed || runs[0].UsersProcessed != 0 {
		t.Fatalf("unexpected audit record: %+v", runs[0])
	}
}

func TestAuditRecordsPerCommit(t *testing.T) {
	env := newTestEnv(t)
	env.addProblem(t, "Two Sum", 10, 1)
	env.register(t, "a", "b")
	env.Judge.solved["a"] = []string{"Two Sum"}

	if _, err := env.Engine.RunPass(env.Ctx, engine.PassOptions{Day: 1}); err != nil {
		t.Fatalf("pass: %v", err)
	}
	runs, err := env.Engine.Repo.LatestRuns(env.Ctx, 10)
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected one audit row per commit, got %d", len(runs))
	}
	for _, run := range runs {
		if run.Status != domain.RunStatusSuccess {
			t.Errorf("unexpected status %s: %+v", run.Status, run)
		}
		if run.DayProcessed != 1 {
			t.Errorf("unexpected day %d", run.DayProcessed)
		}
	}
}

func TestPointsMonotonicAcrossDays(t *testing.T) {
	env := newTestEnv(t)
	env.addProblem(t, "Two Sum", 10, 1)
	env.addProblem(t, "LRU Cache", 20, 2)
	env.addProblem(t, "Word Ladder", 30, 3)
	env.register(t, "alice")
	env.Judge.solved["alice"] = []string{"Two Sum", "Word Ladder"}

	last := 0
	for day := 1; day <= 3; day++ {
		if _, err := env.Engine.RunPass(env.Ctx, engine.PassOptions{Day: day}); err != nil {
			t.Fatalf("pass day %d: %v", day, err)
		}
		e := env.entry(t, "alice")
		if e.Points < last {
			t.Fatalf("points decreased on day %d: %d -> %d", day, last, e.Points)
		}
		last = e.Points
	}
	if last != 40 {
		t.Fatalf("final points = %d, want 40", last)
	}
	// day 2 solved nothing, day 3 solved something: streak must be 1
	if got := env.entry(t, "alice").Streak; got != 1 {
		t.Fatalf("streak = %d, want 1", got)
	}
}

func TestEmptyBacklogStopsJob(t *testing.T) {
	env := newTestEnv(t)
	env.addProblem(t, "Two Sum", 10, 1)
	if err := env.Engine.StartDay(env.Ctx, 1); err != nil {
		t.Fatalf("trigger: %v", err)
	}

	report, err := env.Engine.RunPass(env.Ctx, engine.PassOptions{})
	if err != nil {
		t.Fatalf("pass: %v", err)
	}
	if !report.Completed || report.Candidates != 0 {
		t.Fatalf("unexpected report: %+v", report)
	}
	state, _ := env.Engine.State.Current(env.Ctx)
	if !state.Stopped() {
		t.Fatalf("expected stopped, got %s", state)
	}
}

func TestManualDayRecordsStateMachine(t *testing.T) {
	env := newTestEnv(t)
	env.addProblem(t, "Two Sum", 10, 2)
	users := []string{"a", "b", "c"}
	env.register(t, users...)

	// bounded pass leaves a remainder, so the manual day must stick
	if _, err := env.Engine.RunPass(env.Ctx, engine.PassOptions{Day: 2, MaxBatch: 1}); err != nil {
		t.Fatalf("pass: %v", err)
	}
	state, err := env.Engine.State.Current(env.Ctx)
	if err != nil || state.Day != 2 {
		t.Fatalf("manual trigger not recorded: %v (%v)", state, err)
	}
}
