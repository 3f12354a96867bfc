package repo

import (
	"context"

	"codestreak/internal/domain"
)

func (r Repo) InsertRun(ctx context.Context, run domain.AutomationRun) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO automation_runs(id,start_time,end_time,day_processed,users_processed,total_remaining,status,error_message) VALUES (?,?,?,?,?,?,?,?)`,
		run.ID, run.StartedAt, run.FinishedAt, run.DayProcessed, run.UsersProcessed, run.TotalRemaining, run.Status, nullable(run.ErrorMessage))
	return err
}

// LatestRuns returns the most recent automation runs, newest first.
func (r Repo) LatestRuns(ctx context.Context, limit int) ([]domain.AutomationRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT id,start_time,end_time,day_processed,users_processed,total_remaining,status,COALESCE(error_message,'') FROM automation_runs ORDER BY start_time DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.AutomationRun
	for rows.Next() {
		var run domain.AutomationRun
		if err := rows.Scan(&run.ID, &run.StartedAt, &run.FinishedAt, &run.DayProcessed, &run.UsersProcessed, &run.TotalRemaining, &run.Status, &run.ErrorMessage); err != nil {
			return nil, err
		}
		res = append(res, run)
	}
	return res, rows.Err()
}
