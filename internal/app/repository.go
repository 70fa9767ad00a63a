package app

import (
	"context"

	"showdown-grid/internal/domain"
)

// QuizRepository stores quizzes (in-memory, Postgres, optionally behind a cache).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.QuizRecord, error)
	// ListByOwner returns the owner's quizzes, most recently updated first.
	ListByOwner(ctx context.Context, ownerID string) ([]domain.QuizMetadata, error)
	// ListPublic returns public quizzes, most recently updated first.
	ListPublic(ctx context.Context) ([]domain.QuizMetadata, error)
	CreateQuiz(ctx context.Context, quiz domain.QuizRecord) error
	UpdateQuiz(ctx context.Context, quiz domain.QuizRecord) error
	DeleteQuiz(ctx context.Context, quizID string) error
	// TransferOwner moves every quiz of from to to and returns how many moved.
	TransferOwner(ctx context.Context, from, to string) (int, error)
}

// RunRepository stores quiz runs.
type RunRepository interface {
	CreateRun(ctx context.Context, run domain.QuizRun) error
	GetRun(ctx context.Context, runID string) (domain.QuizRun, error)
	// UpdateRun overwrites a live run. A run that has already ended is left
	// untouched and ErrRunCompleted is returned.
	UpdateRun(ctx context.Context, run domain.QuizRun) error
	DeleteRun(ctx context.Context, runID string) error
	// ActiveRun returns the newest live run of userID for quizID.
	ActiveRun(ctx context.Context, userID, quizID string) (domain.QuizRun, error)
	// ListCompleted returns completed runs, newest end first. Empty quizID means all quizzes.
	ListCompleted(ctx context.Context, userID, quizID string, limit int) ([]domain.QuizRun, error)
	TransferOwner(ctx context.Context, from, to string) (int, error)
}

// AccountRepository stores user accounts and their active-quiz pointer.
type AccountRepository interface {
	CreateAccount(ctx context.Context, acc domain.Account) error
	GetAccount(ctx context.Context, userID string) (domain.Account, error)
	GetAccountByEmail(ctx context.Context, email string) (domain.Account, error)
	SetActiveQuiz(ctx context.Context, userID, quizID string) error
}

// BlobStore keeps uploaded files.
type BlobStore interface {
	// Put stores data under name and returns its public URL.
	Put(ctx context.Context, name string, data []byte, contentType string) (string, error)
	Delete(ctx context.Context, name string) error
}
