package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"showdown-grid/internal/domain"
)

const uniqueViolation = "23505"

// AccountRepository stores accounts in the users table.
type AccountRepository struct {
	pool *pgxpool.Pool
}

func NewAccountRepository(pool *pgxpool.Pool) *AccountRepository {
	return &AccountRepository{pool: pool}
}

func (r *AccountRepository) CreateAccount(ctx context.Context, acc domain.Account) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO users (id, email, password_hash, is_anonymous, active_quiz_id, created_at)
		VALUES ($1, NULLIF($2, ''), $3, $4, NULLIF($5, ''), $6)`,
		acc.ID, acc.Email, acc.PasswordHash, acc.Anonymous, acc.ActiveQuizID, acc.CreatedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return domain.ErrEmailTaken
	}
	if err != nil {
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

func (r *AccountRepository) GetAccount(ctx context.Context, userID string) (domain.Account, error) {
	return r.get(ctx, `WHERE id=$1`, userID)
}

func (r *AccountRepository) GetAccountByEmail(ctx context.Context, email string) (domain.Account, error) {
	return r.get(ctx, `WHERE email=$1`, email)
}

func (r *AccountRepository) get(ctx context.Context, where string, arg string) (domain.Account, error) {
	var acc domain.Account
	err := r.pool.QueryRow(ctx, `
		SELECT id, COALESCE(email, ''), password_hash, is_anonymous, COALESCE(active_quiz_id, ''), created_at
		FROM users `+where, arg).Scan(
		&acc.ID, &acc.Email, &acc.PasswordHash, &acc.Anonymous, &acc.ActiveQuizID, &acc.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Account{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Account{}, fmt.Errorf("load account: %w", err)
	}
	return acc, nil
}

func (r *AccountRepository) SetActiveQuiz(ctx context.Context, userID, quizID string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET active_quiz_id=NULLIF($2, '') WHERE id=$1`, userID, quizID)
	if err != nil {
		return fmt.Errorf("set active quiz: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
