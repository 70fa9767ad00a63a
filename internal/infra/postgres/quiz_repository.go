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

// QuizRepository stores quizzes in Postgres with the board as JSONB.
type QuizRepository struct {
	pool *pgxpool.Pool
}

func NewQuizRepository(pool *pgxpool.Pool) *QuizRepository {
	return &QuizRepository{pool: pool}
}

const quizColumns = `id, owner_id, title, description, is_public, time_limit, theme, created_at, updated_at`

func (r *QuizRepository) GetQuiz(ctx context.Context, quizID string) (domain.QuizRecord, error) {
	var (
		rec domain.QuizRecord
		raw []byte
	)
	err := r.pool.QueryRow(ctx, `SELECT `+quizColumns+`, data FROM quizzes WHERE id=$1`, quizID).Scan(
		&rec.ID, &rec.OwnerID, &rec.Title, &rec.Description, &rec.IsPublic,
		&rec.TimeLimit, &rec.Theme, &rec.CreatedAt, &rec.UpdatedAt, &raw,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.QuizRecord{}, domain.ErrQuizNotFound
	}
	if err != nil {
		return domain.QuizRecord{}, fmt.Errorf("load quiz: %w", err)
	}
	if err := json.Unmarshal(raw, &rec.Data); err != nil {
		return domain.QuizRecord{}, fmt.Errorf("unmarshal quiz: %w", err)
	}
	return rec, nil
}

func (r *QuizRepository) ListByOwner(ctx context.Context, ownerID string) ([]domain.QuizMetadata, error) {
	return r.list(ctx, `SELECT `+quizColumns+` FROM quizzes WHERE owner_id=$1 ORDER BY updated_at DESC, id`, ownerID)
}

func (r *QuizRepository) ListPublic(ctx context.Context) ([]domain.QuizMetadata, error) {
	return r.list(ctx, `SELECT `+quizColumns+` FROM quizzes WHERE is_public ORDER BY updated_at DESC, id`)
}

func (r *QuizRepository) list(ctx context.Context, query string, args ...interface{}) ([]domain.QuizMetadata, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list quizzes: %w", err)
	}
	defer rows.Close()

	out := make([]domain.QuizMetadata, 0)
	for rows.Next() {
		var m domain.QuizMetadata
		if err := rows.Scan(&m.ID, &m.OwnerID, &m.Title, &m.Description, &m.IsPublic,
			&m.TimeLimit, &m.Theme, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan quiz: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *QuizRepository) CreateQuiz(ctx context.Context, quiz domain.QuizRecord) error {
	raw, err := json.Marshal(quiz.Data)
	if err != nil {
		return fmt.Errorf("marshal quiz: %w", err)
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO quizzes (id, owner_id, title, description, is_public, time_limit, theme, data, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		quiz.ID, quiz.OwnerID, quiz.Title, quiz.Description, quiz.IsPublic,
		quiz.TimeLimit, quiz.Theme, raw, quiz.CreatedAt, quiz.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert quiz: %w", err)
	}
	return nil
}

func (r *QuizRepository) UpdateQuiz(ctx context.Context, quiz domain.QuizRecord) error {
	raw, err := json.Marshal(quiz.Data)
	if err != nil {
		return fmt.Errorf("marshal quiz: %w", err)
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE quizzes
		SET owner_id=$2, title=$3, description=$4, is_public=$5, time_limit=$6, theme=$7, data=$8, updated_at=$9
		WHERE id=$1`,
		quiz.ID, quiz.OwnerID, quiz.Title, quiz.Description, quiz.IsPublic,
		quiz.TimeLimit, quiz.Theme, raw, quiz.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update quiz: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrQuizNotFound
	}
	return nil
}

func (r *QuizRepository) DeleteQuiz(ctx context.Context, quizID string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM quizzes WHERE id=$1`, quizID)
	if err != nil {
		return fmt.Errorf("delete quiz: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrQuizNotFound
	}
	return nil
}

func (r *QuizRepository) TransferOwner(ctx context.Context, from, to string) (int, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE quizzes SET owner_id=$2 WHERE owner_id=$1`, from, to)
	if err != nil {
		return 0, fmt.Errorf("transfer quizzes: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
