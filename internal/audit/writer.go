// Package audit appends automation run records. The table is diagnostics
// only: the pipeline writes it and never reads it back.
package audit

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"codestreak/internal/domain"
)

type Writer struct {
	DB  *sql.DB
	Now func() time.Time
}

// Append writes one run record. Failures are returned so the caller can log
// them, but callers must never let an audit failure affect the commit that
// preceded it.
func (w Writer) Append(ctx context.Context, day, usersProcessed, totalRemaining int, status, errorMessage string) error {
	now := time.Now
	if w.Now != nil {
		now = w.Now
	}
	ts := now().UTC().Format(time.RFC3339)
	run := domain.AutomationRun{
		ID:             uuid.NewString(),
		StartedAt:      ts,
		FinishedAt:     ts,
		DayProcessed:   day,
		UsersProcessed: usersProcessed,
		TotalRemaining: totalRemaining,
		Status:         status,
		ErrorMessage:   errorMessage,
	}
	_, err := w.DB.ExecContext(ctx, `INSERT INTO automation_runs(id,start_time,end_time,day_processed,users_processed,total_remaining,status,error_message) VALUES (?,?,?,?,?,?,?,?)`,
		run.ID, run.StartedAt, run.FinishedAt, run.DayProcessed, run.UsersProcessed, run.TotalRemaining, run.Status, nullable(run.ErrorMessage))
	return err
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
