package repo

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"codestreak/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

const problemColumns = `id,question_name,points,COALESCE(link,'') AS link,day,is_public,COALESCE(solution_link,'') AS solution_link,is_solution_public,created_at`

func scanProblem(scan func(dest ...any) error) (domain.Problem, error) {
	var p domain.Problem
	var isPublic, isSolutionPublic int
	err := scan(&p.ID, &p.Name, &p.Points, &p.Link, &p.Day, &isPublic, &p.SolutionLink, &isSolutionPublic, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	if err != nil {
		return p, err
	}
	p.Published = isPublic != 0
	p.SolutionPublic = isSolutionPublic != 0
	return p, nil
}

func (r Repo) InsertProblem(ctx context.Context, p domain.Problem) (int64, error) {
	res, err := r.DB.ExecContext(ctx, `INSERT INTO problems(question_name,points,link,day,is_public,solution_link,is_solution_public,created_at) VALUES (?,?,?,?,?,?,?,?)`,
		p.Name, p.Points, nullable(p.Link), p.Day, boolInt(p.Published), nullable(p.SolutionLink), boolInt(p.SolutionPublic), p.CreatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return 0, ErrDuplicateProblem
		}
		return 0, err
	}
	return res.LastInsertId()
}

var ErrDuplicateProblem = errors.New("a problem with this name already exists")

func (r Repo) GetProblem(ctx context.Context, id int64) (domain.Problem, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+problemColumns+` FROM problems WHERE id=?`, id)
	return scanProblem(row.Scan)
}

func (r Repo) listProblems(ctx context.Context, query string, args ...any) ([]domain.Problem, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Problem
	for rows.Next() {
		p, err := scanProblem(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

// ListPublishedProblems returns public problems ordered by day.
func (r Repo) ListPublishedProblems(ctx context.Context) ([]domain.Problem, error) {
	return r.listProblems(ctx, `SELECT `+problemColumns+` FROM problems WHERE is_public=1 ORDER BY day, id`)
}

// ListAllProblems returns every problem regardless of publication state.
func (r Repo) ListAllProblems(ctx context.Context) ([]domain.Problem, error) {
	return r.listProblems(ctx, `SELECT `+problemColumns+` FROM problems ORDER BY day, id`)
}

// DayProblems returns the (name, points) pairs published for a day.
func (r Repo) DayProblems(ctx context.Context, day int) ([]domain.DayProblem, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT question_name,points FROM problems WHERE day=? AND is_public=1 ORDER BY id`, day)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.DayProblem
	for rows.Next() {
		var p domain.DayProblem
		if err := rows.Scan(&p.Name, &p.Points); err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

// CurrentDay returns the highest published day, 0 when nothing is published.
func (r Repo) CurrentDay(ctx context.Context) (int, error) {
	var day sql.NullInt64
	if err := r.DB.QueryRowContext(ctx, `SELECT MAX(day) FROM problems WHERE is_public=1`).Scan(&day); err != nil {
		return 0, err
	}
	return int(day.Int64), nil
}

func (r Repo) SetSolutionLink(ctx context.Context, id int64, link string) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE problems SET solution_link=? WHERE id=?`, link, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// PublishDay flips all of a day's problems public.
func (r Repo) PublishDay(ctx context.Context, day int) (int64, error) {
	res, err := r.DB.ExecContext(ctx, `UPDATE problems SET is_public=1 WHERE day=?`, day)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// PublishSolutions flips all of a day's solutions public.
func (r Repo) PublishSolutions(ctx context.Context, day int) (int64, error) {
	res, err := r.DB.ExecContext(ctx, `UPDATE problems SET is_solution_public=1 WHERE day=?`, day)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
