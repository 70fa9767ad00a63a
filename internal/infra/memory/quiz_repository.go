package memory

import (
	"context"
	"math/rand"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"showdown-grid/internal/app"
	"showdown-grid/internal/domain"
)

// QuizRepository is an in-memory implementation of app.QuizRepository.
type QuizRepository struct {
	mu      sync.RWMutex
	quizzes map[string]domain.QuizRecord
}

func NewQuizRepository() *QuizRepository {
	return &QuizRepository{quizzes: make(map[string]domain.QuizRecord)}
}

func (r *QuizRepository) GetQuiz(_ context.Context, quizID string) (domain.QuizRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.quizzes[quizID]
	if !ok {
		return domain.QuizRecord{}, domain.ErrQuizNotFound
	}
	return cloneRecord(rec), nil
}

func (r *QuizRepository) ListByOwner(_ context.Context, ownerID string) ([]domain.QuizMetadata, error) {
	return r.list(func(rec domain.QuizRecord) bool { return rec.OwnerID == ownerID }), nil
}

func (r *QuizRepository) ListPublic(context.Context) ([]domain.QuizMetadata, error) {
	return r.list(func(rec domain.QuizRecord) bool { return rec.IsPublic }), nil
}

func (r *QuizRepository) list(keep func(domain.QuizRecord) bool) []domain.QuizMetadata {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.QuizMetadata, 0)
	for _, rec := range r.quizzes {
		if keep(rec) {
			out = append(out, rec.QuizMetadata)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (r *QuizRepository) CreateQuiz(_ context.Context, quiz domain.QuizRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.quizzes[quiz.ID] = cloneRecord(quiz)
	return nil
}

func (r *QuizRepository) UpdateQuiz(_ context.Context, quiz domain.QuizRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.quizzes[quiz.ID]; !ok {
		return domain.ErrQuizNotFound
	}
	r.quizzes[quiz.ID] = cloneRecord(quiz)
	return nil
}

func (r *QuizRepository) DeleteQuiz(_ context.Context, quizID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.quizzes[quizID]; !ok {
		return domain.ErrQuizNotFound
	}
	delete(r.quizzes, quizID)
	return nil
}

func (r *QuizRepository) TransferOwner(_ context.Context, from, to string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, rec := range r.quizzes {
		if rec.OwnerID == from {
			rec.OwnerID = to
			r.quizzes[id] = rec
			n++
		}
	}
	return n, nil
}

// CachedQuizRepository keeps quiz reads in a TTL cache in front of another
// repository. Writes go through and evict.
type CachedQuizRepository struct {
	app.QuizRepository

	ttl   time.Duration
	clock func() time.Time
	sf    singleflight.Group
	rnd   *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedQuiz
}

type cachedQuiz struct {
	quiz      domain.QuizRecord
	expiresAt time.Time
}

func NewCachedQuizRepository(next app.QuizRepository, ttl time.Duration) *CachedQuizRepository {
	return NewCachedQuizRepositoryWithClock(next, ttl, time.Now)
}

// NewCachedQuizRepositoryWithClock is used by tests to drive expiry.
func NewCachedQuizRepositoryWithClock(next app.QuizRepository, ttl time.Duration, clock func() time.Time) *CachedQuizRepository {
	return &CachedQuizRepository{
		QuizRepository: next,
		ttl:            ttl,
		clock:          clock,
		rnd:            rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:          make(map[string]cachedQuiz),
	}
}

func (r *CachedQuizRepository) GetQuiz(ctx context.Context, quizID string) (domain.QuizRecord, error) {
	if quiz, ok := r.cached(quizID); ok {
		return quiz, nil
	}

	result, err, _ := r.sf.Do(quizID, func() (interface{}, error) {
		if quiz, ok := r.cached(quizID); ok {
			return quiz, nil
		}

		quiz, err := r.QuizRepository.GetQuiz(ctx, quizID)
		if err != nil {
			return domain.QuizRecord{}, err
		}

		expiresAt := r.clock().Add(r.ttlWithJitter())
		r.mu.Lock()
		r.cache[quizID] = cachedQuiz{quiz: quiz, expiresAt: expiresAt}
		r.mu.Unlock()
		return quiz, nil
	})
	if err != nil {
		return domain.QuizRecord{}, err
	}
	return cloneRecord(result.(domain.QuizRecord)), nil
}

func (r *CachedQuizRepository) cached(quizID string) (domain.QuizRecord, bool) {
	now := r.clock()
	r.mu.RLock()
	defer r.mu.RUnlock()
	if entry, ok := r.cache[quizID]; ok && entry.expiresAt.After(now) {
		return cloneRecord(entry.quiz), true
	}
	return domain.QuizRecord{}, false
}

func (r *CachedQuizRepository) UpdateQuiz(ctx context.Context, quiz domain.QuizRecord) error {
	defer r.evict(quiz.ID)
	return r.QuizRepository.UpdateQuiz(ctx, quiz)
}

func (r *CachedQuizRepository) DeleteQuiz(ctx context.Context, quizID string) error {
	defer r.evict(quizID)
	return r.QuizRepository.DeleteQuiz(ctx, quizID)
}

func (r *CachedQuizRepository) TransferOwner(ctx context.Context, from, to string) (int, error) {
	n, err := r.QuizRepository.TransferOwner(ctx, from, to)
	if n > 0 {
		// owner is part of the cached record; cheaper to drop everything than to track ids
		r.mu.Lock()
		r.cache = make(map[string]cachedQuiz)
		r.mu.Unlock()
	}
	return n, err
}

func (r *CachedQuizRepository) evict(quizID string) {
	r.mu.Lock()
	delete(r.cache, quizID)
	r.mu.Unlock()
}

func (r *CachedQuizRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

func cloneRecord(rec domain.QuizRecord) domain.QuizRecord {
	if rec.TimeLimit != nil {
		v := *rec.TimeLimit
		rec.TimeLimit = &v
	}
	rec.Data = cloneState(rec.Data)
	return rec
}

func cloneState(s domain.RunState) domain.RunState {
	out := domain.RunState{}
	if s.Categories != nil {
		out.Categories = make([]domain.Category, len(s.Categories))
		for i, c := range s.Categories {
			c.Questions = append([]domain.Question(nil), c.Questions...)
			out.Categories[i] = c
		}
	}
	if s.Teams != nil {
		out.Teams = make([]domain.Team, len(s.Teams))
		for i, t := range s.Teams {
			t.Players = append([]string(nil), t.Players...)
			out.Teams[i] = t
		}
	}
	if s.AdjustmentLog != nil {
		out.AdjustmentLog = append([]domain.AdjustmentEntry(nil), s.AdjustmentLog...)
	}
	return out
}
