package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"showdown-grid/internal/domain"
)

// RunRepository stores quiz runs in Postgres.
type RunRepository struct {
	pool *pgxpool.Pool
}

func NewRunRepository(pool *pgxpool.Pool) *RunRepository {
	return &RunRepository{pool: pool}
}

const runColumns = `id, quiz_id, user_id, started_at, ended_at, duration_seconds,
	quiz_title, quiz_description, quiz_theme, quiz_time_limit, final_state,
	total_questions, answered_questions, completion_percentage, team_results,
	winning_team_name, winning_score, created_at, updated_at`

func scanRun(row pgx.Row) (domain.QuizRun, error) {
	var (
		run            domain.QuizRun
		state, results []byte
	)
	err := row.Scan(
		&run.ID, &run.QuizID, &run.UserID, &run.StartedAt, &run.EndedAt, &run.DurationSeconds,
		&run.QuizTitle, &run.QuizDescription, &run.QuizTheme, &run.QuizTimeLimit, &state,
		&run.TotalQuestions, &run.AnsweredQuestions, &run.CompletionPercentage, &results,
		&run.WinningTeamName, &run.WinningScore, &run.CreatedAt, &run.UpdatedAt,
	)
	if err != nil {
		return domain.QuizRun{}, err
	}
	if err := json.Unmarshal(state, &run.FinalState); err != nil {
		return domain.QuizRun{}, fmt.Errorf("unmarshal final state: %w", err)
	}
	if err := json.Unmarshal(results, &run.TeamResults); err != nil {
		return domain.QuizRun{}, fmt.Errorf("unmarshal team results: %w", err)
	}
	return run, nil
}

func encodeRun(run domain.QuizRun) (state, results []byte, err error) {
	if state, err = json.Marshal(run.FinalState); err != nil {
		return nil, nil, fmt.Errorf("marshal final state: %w", err)
	}
	teamResults := run.TeamResults
	if teamResults == nil {
		teamResults = []domain.TeamResult{}
	}
	if results, err = json.Marshal(teamResults); err != nil {
		return nil, nil, fmt.Errorf("marshal team results: %w", err)
	}
	return state, results, nil
}

func (r *RunRepository) CreateRun(ctx context.Context, run domain.QuizRun) error {
	state, results, err := encodeRun(run)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `INSERT INTO quiz_runs (`+runColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`,
		run.ID, run.QuizID, run.UserID, run.StartedAt, run.EndedAt, run.DurationSeconds,
		run.QuizTitle, run.QuizDescription, run.QuizTheme, run.QuizTimeLimit, state,
		run.TotalQuestions, run.AnsweredQuestions, run.CompletionPercentage, results,
		run.WinningTeamName, run.WinningScore, run.CreatedAt, run.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

func (r *RunRepository) GetRun(ctx context.Context, runID string) (domain.QuizRun, error) {
	run, err := scanRun(r.pool.QueryRow(ctx, `SELECT `+runColumns+` FROM quiz_runs WHERE id=$1`, runID))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.QuizRun{}, domain.ErrRunNotFound
	}
	if err != nil {
		return domain.QuizRun{}, fmt.Errorf("load run: %w", err)
	}
	return run, nil
}

func (r *RunRepository) UpdateRun(ctx context.Context, run domain.QuizRun) error {
	state, results, err := encodeRun(run)
	if err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE quiz_runs SET
			user_id=$2, started_at=$3, ended_at=$4, duration_seconds=$5,
			quiz_title=$6, quiz_description=$7, quiz_theme=$8, quiz_time_limit=$9, final_state=$10,
			total_questions=$11, answered_questions=$12, completion_percentage=$13, team_results=$14,
			winning_team_name=$15, winning_score=$16, updated_at=$17
		WHERE id=$1 AND ended_at IS NULL`,
		run.ID, run.UserID, run.StartedAt, run.EndedAt, run.DurationSeconds,
		run.QuizTitle, run.QuizDescription, run.QuizTheme, run.QuizTimeLimit, state,
		run.TotalQuestions, run.AnsweredQuestions, run.CompletionPercentage, results,
		run.WinningTeamName, run.WinningScore, run.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return r.missingOrCompleted(ctx, run.ID)
	}
	return nil
}

// missingOrCompleted explains why a live-only update touched no row.
func (r *RunRepository) missingOrCompleted(ctx context.Context, runID string) error {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM quiz_runs WHERE id=$1)`, runID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check run: %w", err)
	}
	if !exists {
		return domain.ErrRunNotFound
	}
	return domain.ErrRunCompleted
}

func (r *RunRepository) DeleteRun(ctx context.Context, runID string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM quiz_runs WHERE id=$1`, runID)
	if err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrRunNotFound
	}
	return nil
}

func (r *RunRepository) ActiveRun(ctx context.Context, userID, quizID string) (domain.QuizRun, error) {
	run, err := scanRun(r.pool.QueryRow(ctx, `SELECT `+runColumns+` FROM quiz_runs
		WHERE user_id=$1 AND quiz_id=$2 AND ended_at IS NULL
		ORDER BY started_at DESC LIMIT 1`, userID, quizID))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.QuizRun{}, domain.ErrRunNotFound
	}
	if err != nil {
		return domain.QuizRun{}, fmt.Errorf("load active run: %w", err)
	}
	return run, nil
}

func (r *RunRepository) ListCompleted(ctx context.Context, userID, quizID string, limit int) ([]domain.QuizRun, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+runColumns+` FROM quiz_runs
		WHERE user_id=$1 AND ended_at IS NOT NULL AND ($2 = '' OR quiz_id=$2)
		ORDER BY ended_at DESC, id LIMIT $3`, userID, quizID, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	out := make([]domain.QuizRun, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

func (r *RunRepository) TransferOwner(ctx context.Context, from, to string) (int, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE quiz_runs SET user_id=$2 WHERE user_id=$1`, from, to)
	if err != nil {
		return 0, fmt.Errorf("transfer runs: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
