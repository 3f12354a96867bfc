package repo

import (
	"context"
	"database/sql"

	"codestreak/internal/domain"
)

const leaderboardColumns = `l.username,COALESCE(u.name,'') AS name,l.points,l.streak,l.last_updated_for_day,l.created_at`

// RegisterParticipant creates the user row and its leaderboard row in one
// transaction so the directory and the leaderboard never drift apart.
func (r Repo) RegisterParticipant(ctx context.Context, username, name, createdAt string) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `INSERT INTO users(username,name,created_at) VALUES (?,?,?)`,
		username, name, createdAt); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO leaderboard(username,points,streak,last_updated_for_day,created_at) VALUES (?,0,0,0,?)`,
		username, createdAt); err != nil {
		return err
	}
	return tx.Commit()
}

func (r Repo) GetUser(ctx context.Context, username string) (string, error) {
	var name string
	err := r.DB.QueryRowContext(ctx, `SELECT name FROM users WHERE username=?`, username).Scan(&name)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	return name, err
}

func (r Repo) GetLeaderboardEntry(ctx context.Context, username string) (domain.LeaderboardEntry, error) {
	var e domain.LeaderboardEntry
	err := r.DB.QueryRowContext(ctx, `SELECT `+leaderboardColumns+` FROM leaderboard l LEFT JOIN users u ON u.username=l.username WHERE l.username=?`, username).
		Scan(&e.Username, &e.DisplayName, &e.Points, &e.Streak, &e.LastProcessedDay, &e.CreatedAt)
	if err == sql.ErrNoRows {
		return e, ErrNotFound
	}
	return e, err
}

// Leaderboard returns all entries ordered by streak then points, descending.
func (r Repo) Leaderboard(ctx context.Context) ([]domain.LeaderboardEntry, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+leaderboardColumns+` FROM leaderboard l LEFT JOIN users u ON u.username=l.username ORDER BY l.streak DESC, l.points DESC, l.username`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.LeaderboardEntry
	for rows.Next() {
		var e domain.LeaderboardEntry
		if err := rows.Scan(&e.Username, &e.DisplayName, &e.Points, &e.Streak, &e.LastProcessedDay, &e.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// ParticipantsBehind returns usernames whose marker is strictly behind day,
// oldest registrations first so retries keep a stable order.
func (r Repo) ParticipantsBehind(ctx context.Context, day int) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT username FROM leaderboard WHERE last_updated_for_day < ? ORDER BY created_at, username`, day)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, err
		}
		res = append(res, u)
	}
	return res, rows.Err()
}

// ApplyScore performs the single-statement commit: add the delta, set the
// streak, advance the marker. One row, one write; partial application is not
// observable. Zero rows affected means the leaderboard record is missing.
func (r Repo) ApplyScore(ctx context.Context, username string, day, delta, streak int) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE leaderboard SET points=points+?, streak=?, last_updated_for_day=? WHERE username=?`,
		delta, streak, day, username)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
