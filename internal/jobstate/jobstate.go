// Package jobstate is the processing-day state machine. The durable state is
// a single job_state row holding "0" (stopped) or a positive day number
// (active). Only the enumerated transitions are allowed; there is no
// automatic advance to the next day.
package jobstate

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"codestreak/internal/repo"
)

const stateKey = "processing_day"

// State is the decoded processing-day value. Day 0 means stopped.
type State struct {
	Day int
}

func (s State) Stopped() bool { return s.Day == 0 }

func (s State) String() string {
	if s.Stopped() {
		return "stopped"
	}
	return fmt.Sprintf("active(day %d)", s.Day)
}

var Stopped = State{Day: 0}

type Machine struct {
	Repo repo.Repo
}

// Current reads the state. A never-written value reads as stopped.
func (m Machine) Current(ctx context.Context) (State, error) {
	raw, err := m.Repo.GetState(ctx, stateKey)
	if errors.Is(err, repo.ErrNotFound) {
		return Stopped, nil
	}
	if err != nil {
		return Stopped, err
	}
	day, err := strconv.Atoi(raw)
	if err != nil || day < 0 {
		return Stopped, fmt.Errorf("corrupt processing_day value %q", raw)
	}
	return State{Day: day}, nil
}

// Start transitions stopped -> active(day). Re-triggering the same day is a
// no-op; switching days while a different day is active is rejected.
func (m Machine) Start(ctx context.Context, day int) error {
	if day < 1 {
		return fmt.Errorf("day must be >= 1, got %d", day)
	}
	cur, err := m.Current(ctx)
	if err != nil {
		return err
	}
	if !cur.Stopped() && cur.Day != day {
		return fmt.Errorf("day %d is still being processed; complete it before starting day %d", cur.Day, day)
	}
	return m.Repo.SetState(ctx, stateKey, strconv.Itoa(day))
}

// Complete transitions active(day) -> stopped. Completing while already
// stopped is a no-op.
func (m Machine) Complete(ctx context.Context) error {
	return m.Repo.SetState(ctx, stateKey, "0")
}
