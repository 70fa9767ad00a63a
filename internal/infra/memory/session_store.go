package memory

import (
	"context"
	"sort"
	"sync"

	"showdown-grid/internal/domain"
)

// SessionStore is an in-memory implementation of app.RunRepository.
// Each quiz run is one play session.
type SessionStore struct {
	mu   sync.RWMutex
	runs map[string]domain.QuizRun
}

func NewSessionStore() *SessionStore {
	return &SessionStore{runs: make(map[string]domain.QuizRun)}
}

func (s *SessionStore) CreateRun(_ context.Context, run domain.QuizRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.ID] = cloneRun(run)
	return nil
}

func (s *SessionStore) GetRun(_ context.Context, runID string) (domain.QuizRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[runID]
	if !ok {
		return domain.QuizRun{}, domain.ErrRunNotFound
	}
	return cloneRun(run), nil
}

func (s *SessionStore) UpdateRun(_ context.Context, run domain.QuizRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.runs[run.ID]
	if !ok {
		return domain.ErrRunNotFound
	}
	if !stored.Live() {
		return domain.ErrRunCompleted
	}
	s.runs[run.ID] = cloneRun(run)
	return nil
}

func (s *SessionStore) DeleteRun(_ context.Context, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[runID]; !ok {
		return domain.ErrRunNotFound
	}
	delete(s.runs, runID)
	return nil
}

func (s *SessionStore) ActiveRun(_ context.Context, userID, quizID string) (domain.QuizRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var (
		best  domain.QuizRun
		found bool
	)
	for _, run := range s.runs {
		if run.UserID != userID || run.QuizID != quizID || !run.Live() {
			continue
		}
		if !found || run.StartedAt.After(best.StartedAt) {
			best, found = run, true
		}
	}
	if !found {
		return domain.QuizRun{}, domain.ErrRunNotFound
	}
	return cloneRun(best), nil
}

func (s *SessionStore) ListCompleted(_ context.Context, userID, quizID string, limit int) ([]domain.QuizRun, error) {
	s.mu.RLock()
	out := make([]domain.QuizRun, 0)
	for _, run := range s.runs {
		if run.UserID != userID || run.Live() {
			continue
		}
		if quizID != "" && run.QuizID != quizID {
			continue
		}
		out = append(out, cloneRun(run))
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].EndedAt.Equal(*out[j].EndedAt) {
			return out[i].EndedAt.After(*out[j].EndedAt)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *SessionStore) TransferOwner(_ context.Context, from, to string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, run := range s.runs {
		if run.UserID == from {
			run.UserID = to
			s.runs[id] = run
			n++
		}
	}
	return n, nil
}

func cloneRun(run domain.QuizRun) domain.QuizRun {
	run.FinalState = cloneState(run.FinalState)
	run.TeamResults = append([]domain.TeamResult(nil), run.TeamResults...)
	return run
}
