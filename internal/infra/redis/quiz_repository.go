package redis

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"showdown-grid/internal/app"
	"showdown-grid/internal/domain"
)

// QuizRepository caches quiz records in Redis as JSON (quiz:{quizID}) and
// falls back to the wrapped repository on a miss. Writes go through and evict.
type QuizRepository struct {
	app.QuizRepository

	client *redis.Client
	ttl    time.Duration
	sf     singleflight.Group

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewQuizRepository(client *redis.Client, next app.QuizRepository, ttl time.Duration) *QuizRepository {
	return &QuizRepository{
		QuizRepository: next,
		client:         client,
		ttl:            ttl,
		rnd:            rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *QuizRepository) GetQuiz(ctx context.Context, quizID string) (domain.QuizRecord, error) {
	if quiz, ok := r.cached(ctx, quizID); ok {
		return quiz, nil
	}

	result, err, _ := r.sf.Do(quizID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if quiz, ok := r.cached(ctx, quizID); ok {
			return quiz, nil
		}

		quiz, err := r.QuizRepository.GetQuiz(ctx, quizID)
		if err != nil {
			return domain.QuizRecord{}, err
		}

		raw, err := json.Marshal(cachedQuiz{Meta: quiz.QuizMetadata, Data: quiz.Data})
		if err == nil {
			if err := r.client.Set(ctx, r.key(quizID), raw, r.ttlWithJitter()).Err(); err != nil {
				slog.Warn("cache quiz", "quiz_id", quizID, "err", err)
			}
		}
		return quiz, nil
	})
	if err != nil {
		return domain.QuizRecord{}, err
	}
	return result.(domain.QuizRecord), nil
}

// cachedQuiz is the JSON value stored per quiz.
type cachedQuiz struct {
	Meta domain.QuizMetadata `json:"meta"`
	Data domain.RunState     `json:"data"`
}

func (r *QuizRepository) cached(ctx context.Context, quizID string) (domain.QuizRecord, bool) {
	raw, err := r.client.Get(ctx, r.key(quizID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.Warn("read quiz cache", "quiz_id", quizID, "err", err)
		}
		return domain.QuizRecord{}, false
	}
	var c cachedQuiz
	if err := json.Unmarshal(raw, &c); err != nil {
		return domain.QuizRecord{}, false
	}
	return domain.QuizRecord{QuizMetadata: c.Meta, Data: c.Data}, true
}

func (r *QuizRepository) UpdateQuiz(ctx context.Context, quiz domain.QuizRecord) error {
	defer r.evict(ctx, quiz.ID)
	return r.QuizRepository.UpdateQuiz(ctx, quiz)
}

func (r *QuizRepository) DeleteQuiz(ctx context.Context, quizID string) error {
	defer r.evict(ctx, quizID)
	return r.QuizRepository.DeleteQuiz(ctx, quizID)
}

func (r *QuizRepository) TransferOwner(ctx context.Context, from, to string) (int, error) {
	owned, err := r.QuizRepository.ListByOwner(ctx, from)
	if err != nil {
		return 0, err
	}
	n, err := r.QuizRepository.TransferOwner(ctx, from, to)
	if n > 0 {
		keys := make([]string, 0, len(owned))
		for _, q := range owned {
			keys = append(keys, r.key(q.ID))
		}
		if len(keys) > 0 {
			_ = r.client.Del(ctx, keys...).Err()
		}
	}
	return n, err
}

func (r *QuizRepository) evict(ctx context.Context, quizID string) {
	if err := r.client.Del(ctx, r.key(quizID)).Err(); err != nil {
		slog.Warn("evict quiz cache", "quiz_id", quizID, "err", err)
	}
}

func (r *QuizRepository) key(quizID string) string {
	return "quiz:" + quizID
}

func (r *QuizRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
