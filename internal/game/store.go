// Package game holds the host-side game state: board, teams, rounds, turns and
// the two persistence sinks (quiz document autosave and live run snapshots).
package game

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"showdown-grid/internal/domain"
)

// Gateway is the persistence backend the Store talks to.
type Gateway interface {
	ActiveQuiz(ctx context.Context) (domain.QuizDocument, error)
	SaveQuiz(ctx context.Context, doc domain.QuizDocument) (domain.QuizMetadata, error)
	ListQuizzes(ctx context.Context) ([]domain.QuizMetadata, error)
	CreateQuiz(ctx context.Context, req domain.CreateQuizRequest) (domain.QuizMetadata, error)
	ActivateQuiz(ctx context.Context, id string) error
	DeleteQuiz(ctx context.Context, id string) error
	LoadQuiz(ctx context.Context, id string) (domain.QuizDocument, error)

	ActiveRun(ctx context.Context, quizID string) (domain.QuizRun, error)
	StartRun(ctx context.Context, req domain.StartRunRequest) (domain.QuizRun, error)
	UpdateRun(ctx context.Context, id string, state domain.RunState) (domain.QuizRun, error)
	CompleteRun(ctx context.Context, id string, state domain.RunState) (domain.QuizRun, error)
}

// Options tune the Store. Zero values pick the defaults below.
type Options struct {
	QuizSaveDelay      time.Duration
	SessionSaveDelay   time.Duration
	SessionMinInterval time.Duration
	SpinDelay          time.Duration
	// SaveTimeout bounds each background save.
	SaveTimeout time.Duration

	Clock  Clock
	Logger *slog.Logger
	Rand   *rand.Rand
}

const (
	DefaultQuizSaveDelay      = 1500 * time.Millisecond
	DefaultSessionSaveDelay   = 1000 * time.Millisecond
	DefaultSessionMinInterval = time.Second
	DefaultSpinDelay          = 3 * time.Second
	DefaultSaveTimeout        = 10 * time.Second
)

func (o Options) withDefaults() Options {
	if o.QuizSaveDelay <= 0 {
		o.QuizSaveDelay = DefaultQuizSaveDelay
	}
	if o.SessionSaveDelay <= 0 {
		o.SessionSaveDelay = DefaultSessionSaveDelay
	}
	if o.SessionMinInterval <= 0 {
		o.SessionMinInterval = DefaultSessionMinInterval
	}
	if o.SpinDelay <= 0 {
		o.SpinDelay = DefaultSpinDelay
	}
	if o.SaveTimeout <= 0 {
		o.SaveTimeout = DefaultSaveTimeout
	}
	if o.Clock == nil {
		o.Clock = SystemClock
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Rand == nil {
		o.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return o
}

// Status holds the flags the presentation layer reads to enable or disable actions.
type Status struct {
	Loading           bool
	Saving            bool
	HasUnsavedChanges bool
	Authenticated     bool
	PlayingPublicQuiz bool
	LastSaveError     error
	LastSavedAt       time.Time

	ActiveRunID  string
	RunStartedAt time.Time

	Quizzes []domain.QuizMetadata
}

// Store is the single owner of the game state. All mutations go through
// Dispatch and are applied in call order; persistence happens on timers.
type Store struct {
	api  Gateway
	opts Options
	log  *slog.Logger

	mu       sync.Mutex
	state    State
	status   Status
	revision uint64
	// saveDone is closed when the quiz save that set status.Saving returns.
	saveDone chan struct{}

	quizTimer    Timer
	sessionTimer Timer
	spinTimer    Timer
	limiter      *rate.Limiter
}

// New creates a Store holding the default board. It starts in the loading
// state; call Load before play.
func New(api Gateway, opts Options) *Store {
	opts = opts.withDefaults()
	return &Store{
		api:     api,
		opts:    opts,
		log:     opts.Logger,
		state:   DefaultState(),
		status:  Status{Loading: true},
		limiter: rate.NewLimiter(rate.Every(opts.SessionMinInterval), 1),
	}
}

// Dispatch applies cmd. Ignored commands leave the state untouched.
func (s *Store) Dispatch(cmd Command) Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dispatchLocked(cmd)
}

func (s *Store) dispatchLocked(cmd Command) Result {
	next := s.state.Clone()
	res := cmd.apply(&next, &env{now: s.opts.Clock.Now(), rng: s.opts.Rand})
	if res.Outcome == Ignored {
		s.log.Debug("command ignored", "command", commandName(cmd), "reason", string(res.Reason))
		return res
	}
	s.state = next
	if res.Changes.Dirty() {
		s.markDirtyLocked(res.Changes)
	}
	if res.spin {
		stopTimer(s.spinTimer)
		s.spinTimer = s.opts.Clock.AfterFunc(s.opts.SpinDelay, func() {
			s.Dispatch(settleTurn{})
		})
	}
	return res
}

func (s *Store) markDirtyLocked(c Changes) {
	s.revision++
	s.status.HasUnsavedChanges = true
	s.scheduleQuizSaveLocked()
	if c&ChangeBoard != 0 && s.status.ActiveRunID != "" {
		s.scheduleSessionSaveLocked()
	}
}

func (s *Store) scheduleSessionSaveLocked() {
	stopTimer(s.sessionTimer)
	s.sessionTimer = s.opts.Clock.AfterFunc(s.opts.SessionSaveDelay, s.autosaveSession)
}

// scheduleQuizSaveLocked restarts the trailing-edge debounce.
func (s *Store) scheduleQuizSaveLocked() {
	stopTimer(s.quizTimer)
	s.quizTimer = s.opts.Clock.AfterFunc(s.opts.QuizSaveDelay, s.autosaveQuiz)
}

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Status returns a copy of the store flags.
func (s *Store) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.status
	st.Quizzes = append([]domain.QuizMetadata(nil), s.status.Quizzes...)
	return st
}

// Close stops every pending timer. Unsaved changes stay unsaved; call Flush first.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	stopTimer(s.quizTimer)
	stopTimer(s.sessionTimer)
	stopTimer(s.spinTimer)
}

func (s *Store) backgroundContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.opts.SaveTimeout)
}

func commandName(cmd Command) string {
	return strings.TrimPrefix(fmt.Sprintf("%T", cmd), "game.")
}
