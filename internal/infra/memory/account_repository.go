package memory

import (
	"context"
	"sync"

	"showdown-grid/internal/domain"
)

// AccountRepository is an in-memory implementation of app.AccountRepository.
type AccountRepository struct {
	mu       sync.RWMutex
	accounts map[string]domain.Account
	byEmail  map[string]string
}

func NewAccountRepository() *AccountRepository {
	return &AccountRepository{
		accounts: make(map[string]domain.Account),
		byEmail:  make(map[string]string),
	}
}

func (r *AccountRepository) CreateAccount(_ context.Context, acc domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if acc.Email != "" {
		if _, taken := r.byEmail[acc.Email]; taken {
			return domain.ErrEmailTaken
		}
		r.byEmail[acc.Email] = acc.ID
	}
	r.accounts[acc.ID] = acc
	return nil
}

func (r *AccountRepository) GetAccount(_ context.Context, userID string) (domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	acc, ok := r.accounts[userID]
	if !ok {
		return domain.Account{}, domain.ErrNotFound
	}
	return acc, nil
}

func (r *AccountRepository) GetAccountByEmail(_ context.Context, email string) (domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byEmail[email]
	if !ok {
		return domain.Account{}, domain.ErrNotFound
	}
	return r.accounts[id], nil
}

func (r *AccountRepository) SetActiveQuiz(_ context.Context, userID, quizID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	acc, ok := r.accounts[userID]
	if !ok {
		return domain.ErrNotFound
	}
	acc.ActiveQuizID = quizID
	r.accounts[userID] = acc
	return nil
}
