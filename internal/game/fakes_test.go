package game

import (
	"context"
	"io"
	"log/slog"
	"math/rand"
	"sort"
	"sync"
	"testing"
	"time"

	"showdown-grid/internal/domain"
)

type manualTimer struct {
	clock *manualClock
	id    int
}

func (t *manualTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	_, ok := t.clock.pending[t.id]
	delete(t.clock.pending, t.id)
	return ok
}

type pendingFunc struct {
	at time.Time
	id int
	f  func()
}

// manualClock only moves when Advance is called; due callbacks run on the caller's goroutine.
type manualClock struct {
	mu      sync.Mutex
	now     time.Time
	nextID  int
	pending map[int]pendingFunc
}

func newManualClock() *manualClock {
	return &manualClock{
		now:     time.Date(2024, 11, 22, 19, 0, 0, 0, time.UTC),
		pending: make(map[int]pendingFunc),
	}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	c.pending[c.nextID] = pendingFunc{at: c.now.Add(d), id: c.nextID, f: f}
	return &manualTimer{clock: c, id: c.nextID}
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()
	for {
		c.mu.Lock()
		var due []pendingFunc
		for _, p := range c.pending {
			if !p.at.After(target) {
				due = append(due, p)
			}
		}
		if len(due) == 0 {
			c.now = target
			c.mu.Unlock()
			return
		}
		sort.Slice(due, func(i, j int) bool {
			if due[i].at.Equal(due[j].at) {
				return due[i].id < due[j].id
			}
			return due[i].at.Before(due[j].at)
		})
		next := due[0]
		delete(c.pending, next.id)
		c.now = next.at
		c.mu.Unlock()
		next.f()
	}
}

func (c *manualClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// fakeGateway records calls and serves canned answers.
type fakeGateway struct {
	mu sync.Mutex

	doc       *domain.QuizDocument
	docErr    error
	quizzes   []domain.QuizMetadata
	listErr   error
	saveErr   error
	public    map[string]domain.QuizDocument
	activeRun *domain.QuizRun
	runErr    error
	nextRun   int

	// onSave and onComplete run before the call is answered, without g.mu held.
	onSave      func()
	onComplete  func()
	completeErr error

	saved       []domain.QuizDocument
	updates     []domain.RunState
	started     []domain.StartRunRequest
	completed   []string
	activated   []string
	deleted     []string
	created     []domain.CreateQuizRequest
	activeCalls int
}

func (g *fakeGateway) ActiveQuiz(context.Context) (domain.QuizDocument, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.docErr != nil {
		return domain.QuizDocument{}, g.docErr
	}
	if g.doc == nil {
		return domain.QuizDocument{}, domain.ErrNotFound
	}
	return *g.doc, nil
}

func (g *fakeGateway) SaveQuiz(_ context.Context, doc domain.QuizDocument) (domain.QuizMetadata, error) {
	g.mu.Lock()
	hook := g.onSave
	g.mu.Unlock()
	if hook != nil {
		hook()
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.saveErr != nil {
		return domain.QuizMetadata{}, g.saveErr
	}
	g.saved = append(g.saved, doc)
	id := doc.QuizID
	if id == "" {
		id = "quiz-created"
	}
	return domain.QuizMetadata{ID: id, Title: doc.QuizTitle, OwnerID: "user-1"}, nil
}

func (g *fakeGateway) ListQuizzes(context.Context) ([]domain.QuizMetadata, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.listErr != nil {
		return nil, g.listErr
	}
	return append([]domain.QuizMetadata(nil), g.quizzes...), nil
}

func (g *fakeGateway) CreateQuiz(_ context.Context, req domain.CreateQuizRequest) (domain.QuizMetadata, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.created = append(g.created, req)
	meta := domain.QuizMetadata{ID: "q-new", Title: req.Title}
	g.quizzes = append(g.quizzes, meta)
	return meta, nil
}

func (g *fakeGateway) ActivateQuiz(_ context.Context, id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.activated = append(g.activated, id)
	if doc, ok := g.public[id]; ok {
		g.doc = &doc
	}
	return nil
}

func (g *fakeGateway) DeleteQuiz(_ context.Context, id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.deleted = append(g.deleted, id)
	if g.doc != nil && g.doc.QuizID == id {
		g.doc = nil
	}
	return nil
}

func (g *fakeGateway) LoadQuiz(_ context.Context, id string) (domain.QuizDocument, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	doc, ok := g.public[id]
	if !ok {
		return domain.QuizDocument{}, domain.ErrNotFound
	}
	return doc, nil
}

func (g *fakeGateway) ActiveRun(context.Context, string) (domain.QuizRun, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.activeCalls++
	if g.runErr != nil {
		return domain.QuizRun{}, g.runErr
	}
	if g.activeRun == nil {
		return domain.QuizRun{}, domain.ErrNotFound
	}
	return *g.activeRun, nil
}

func (g *fakeGateway) StartRun(_ context.Context, req domain.StartRunRequest) (domain.QuizRun, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.started = append(g.started, req)
	g.nextRun++
	run := domain.QuizRun{
		ID:         "run-" + string(rune('0'+g.nextRun)),
		QuizID:     req.QuizID,
		StartedAt:  req.StartedAt,
		EndedAt:    req.EndedAt,
		FinalState: req.FinalState,
	}
	if run.EndedAt == nil {
		g.activeRun = &run
	}
	return run, nil
}

func (g *fakeGateway) UpdateRun(_ context.Context, id string, state domain.RunState) (domain.QuizRun, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.updates = append(g.updates, state)
	return domain.QuizRun{ID: id, FinalState: state}, nil
}

func (g *fakeGateway) CompleteRun(_ context.Context, id string, state domain.RunState) (domain.QuizRun, error) {
	g.mu.Lock()
	hook := g.onComplete
	g.mu.Unlock()
	if hook != nil {
		hook()
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.completeErr != nil {
		return domain.QuizRun{}, g.completeErr
	}
	g.completed = append(g.completed, id)
	g.activeRun = nil
	end := time.Now()
	return domain.QuizRun{ID: id, EndedAt: &end, FinalState: state}, nil
}

func (g *fakeGateway) counts() (saved, updates int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.saved), len(g.updates)
}

func testDoc() domain.QuizDocument {
	return domain.QuizDocument{
		QuizID:      "quiz-1",
		QuizOwnerID: "user-1",
		QuizTitle:   "Friday Night",
		QuizTheme:   "neon",
		Categories: []domain.Category{
			{ID: "sci", Name: "SCIENCE", Questions: []domain.Question{
				{ID: "sci-100", Points: 100, Question: "H2O?", Answer: "Water"},
				{ID: "sci-300", Points: 300, Question: "Force keeping us grounded", Answer: "Gravity"},
				{ID: "sci-101", Points: 101, Question: "Odd", Answer: "Odd"},
			}},
			{ID: "hist", Name: "HISTORY", Questions: []domain.Question{
				{ID: "hist-250", Points: 250, Question: "1066", Answer: "Hastings"},
				{ID: "hist-150", Points: 150, Question: "1492", Answer: "Columbus"},
			}},
		},
		Teams: []domain.Team{
			{ID: "A", Name: "Alpha", Players: []string{"Ann"}},
			{ID: "B", Name: "Bravo", Players: []string{"Bob"}},
			{ID: "C", Name: "Charlie", Players: []string{"Cid"}},
		},
	}
}

type harness struct {
	store *Store
	clock *manualClock
	api   *fakeGateway
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	doc := testDoc()
	api := &fakeGateway{doc: &doc}
	clock := newManualClock()
	store := New(api, Options{
		Clock:  clock,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Rand:   rand.New(rand.NewSource(1)),
	})
	if err := store.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	t.Cleanup(store.Close)
	return &harness{store: store, clock: clock, api: api}
}

func (h *harness) teamScore(t *testing.T, id string) int {
	t.Helper()
	st := h.store.Snapshot()
	for _, tm := range st.Teams {
		if tm.ID == id {
			return tm.Score
		}
	}
	t.Fatalf("team %s not found", id)
	return 0
}

func intPtr(v int) *int { return &v }
