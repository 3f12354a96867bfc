package domain

// Problem is one challenge question assigned to a day. The name is unique and
// is the join key against the external judge's submission titles.
type Problem struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	Points         int    `json:"points"`
	Link           string `json:"link,omitempty"`
	Day            int    `json:"day"`
	Published      bool   `json:"published"`
	SolutionLink   string `json:"solution_link,omitempty"`
	SolutionPublic bool   `json:"solution_public"`
	CreatedAt      string `json:"created_at" format:"date-time"`
}

// DayProblem is the (name, points) projection the scorer consumes.
type DayProblem struct {
	Name   string `json:"name"`
	Points int    `json:"points"`
}

// LeaderboardEntry is a participant's scoring record. It is mutated only by
// the score committer; LastProcessedDay is the sole re-processing guard.
type LeaderboardEntry struct {
	Username         string `json:"username"`
	DisplayName      string `json:"display_name,omitempty"`
	Points           int    `json:"points"`
	Streak           int    `json:"streak"`
	LastProcessedDay int    `json:"last_processed_day"`
	CreatedAt        string `json:"created_at" format:"date-time"`
}

// AutomationRun is an append-only audit record of one commit attempt.
type AutomationRun struct {
	ID             string `json:"id"`
	StartedAt      string `json:"started_at" format:"date-time"`
	FinishedAt     string `json:"finished_at" format:"date-time"`
	DayProcessed   int    `json:"day_processed"`
	UsersProcessed int    `json:"users_processed"`
	TotalRemaining int    `json:"total_remaining"`
	Status         string `json:"status" enum:"SUCCESS,FAILED"`
	ErrorMessage   string `json:"error_message,omitempty"`
}

const (
	RunStatusSuccess = "SUCCESS"
	RunStatusFailed  = "FAILED"
)
