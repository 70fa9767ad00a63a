package redis

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"showdown-grid/internal/app"
	"showdown-grid/internal/domain"
)

// SessionStore indexes live quiz runs in Redis in front of a RunRepository.
// quiz:session:{userID}:{quizID} holds the id of the user's live run of that
// quiz, so resuming a session after a reload skips the run scan.
// The wrapped repository stays the source of truth; a stale pointer is
// dropped and rebuilt on the next lookup.
type SessionStore struct {
	app.RunRepository

	client *redis.Client
	ttl    time.Duration
}

func NewSessionStore(client *redis.Client, next app.RunRepository, ttl time.Duration) *SessionStore {
	return &SessionStore{RunRepository: next, client: client, ttl: ttl}
}

func (s *SessionStore) CreateRun(ctx context.Context, run domain.QuizRun) error {
	if err := s.RunRepository.CreateRun(ctx, run); err != nil {
		return err
	}
	if run.Live() {
		s.mark(ctx, run)
	}
	return nil
}

func (s *SessionStore) UpdateRun(ctx context.Context, run domain.QuizRun) error {
	if err := s.RunRepository.UpdateRun(ctx, run); err != nil {
		return err
	}
	if run.Live() {
		s.mark(ctx, run)
	} else {
		s.unmark(ctx, run)
	}
	return nil
}

func (s *SessionStore) DeleteRun(ctx context.Context, runID string) error {
	run, err := s.RunRepository.GetRun(ctx, runID)
	if err != nil {
		return err
	}
	if err := s.RunRepository.DeleteRun(ctx, runID); err != nil {
		return err
	}
	s.unmark(ctx, run)
	return nil
}

func (s *SessionStore) ActiveRun(ctx context.Context, userID, quizID string) (domain.QuizRun, error) {
	key := s.key(userID, quizID)
	runID, err := s.client.Get(ctx, key).Result()
	switch {
	case err == nil:
		run, err := s.RunRepository.GetRun(ctx, runID)
		if err == nil && run.Live() && run.UserID == userID {
			return run, nil
		}
		_ = s.client.Del(ctx, key).Err()
	case !errors.Is(err, redis.Nil):
		slog.Warn("read live run index", "key", key, "err", err)
	}

	run, err := s.RunRepository.ActiveRun(ctx, userID, quizID)
	if err != nil {
		return domain.QuizRun{}, err
	}
	s.mark(ctx, run)
	return run, nil
}

func (s *SessionStore) TransferOwner(ctx context.Context, from, to string) (int, error) {
	n, err := s.RunRepository.TransferOwner(ctx, from, to)
	if n > 0 {
		iter := s.client.Scan(ctx, 0, "quiz:session:"+from+":*", 100).Iterator()
		for iter.Next(ctx) {
			_ = s.client.Del(ctx, iter.Val()).Err()
		}
		if iterErr := iter.Err(); iterErr != nil {
			slog.Warn("clear live run index", "user_id", from, "err", iterErr)
		}
	}
	return n, err
}

// best-effort liveness marker
func (s *SessionStore) mark(ctx context.Context, run domain.QuizRun) {
	if err := s.client.Set(ctx, s.key(run.UserID, run.QuizID), run.ID, s.ttl).Err(); err != nil {
		slog.Warn("index live run", "run_id", run.ID, "err", err)
	}
}

func (s *SessionStore) unmark(ctx context.Context, run domain.QuizRun) {
	key := s.key(run.UserID, run.QuizID)
	current, err := s.client.Get(ctx, key).Result()
	if err != nil || current != run.ID {
		return
	}
	_ = s.client.Del(ctx, key).Err()
}

func (s *SessionStore) key(userID, quizID string) string {
	return "quiz:session:" + userID + ":" + quizID
}
