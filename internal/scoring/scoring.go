// Package scoring computes a day's score for one participant. Pure functions
// only; all I/O lives with the callers.
package scoring

import "codestreak/internal/domain"

// SolvedSet is the set of problem names the judge credits a participant with.
type SolvedSet map[string]struct{}

func NewSolvedSet(names ...string) SolvedSet {
	s := make(SolvedSet, len(names))
	for _, n := range names {
		s[n] = struct{}{}
	}
	return s
}

func (s SolvedSet) Contains(name string) bool {
	_, ok := s[name]
	return ok
}

// Result is the outcome of scoring one day for one participant.
type Result struct {
	Points      int
	SolvedCount int
}

// Score sums the points of every day problem whose name appears in the
// solved set. Order-independent and deterministic.
func Score(problems []domain.DayProblem, solved SolvedSet) Result {
	var res Result
	for _, p := range problems {
		if solved.Contains(p.Name) {
			res.Points += p.Points
			res.SolvedCount++
		}
	}
	return res
}

// NextStreak applies the streak law: solving nothing resets the streak,
// solving anything extends it by one.
func NextStreak(prev, solvedCount int) int {
	if solvedCount == 0 {
		return 0
	}
	return prev + 1
}
