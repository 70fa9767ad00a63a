package app

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"showdown-grid/internal/domain"
	"showdown-grid/internal/ranking"
)

const (
	DefaultRunListLimit = 20
	MaxRunListLimit     = 100
)

// RunService records play sessions of a quiz.
type RunService struct {
	runs    RunRepository
	quizzes QuizRepository
	now     func() time.Time
}

func NewRunService(runs RunRepository, quizzes QuizRepository) *RunService {
	return NewRunServiceWithClock(runs, quizzes, time.Now)
}

// NewRunServiceWithClock is used by tests for deterministic timestamps.
func NewRunServiceWithClock(runs RunRepository, quizzes QuizRepository, now func() time.Time) *RunService {
	return &RunService{runs: runs, quizzes: quizzes, now: now}
}

// Active returns the caller's live run of quizID.
func (s *RunService) Active(ctx context.Context, p domain.Principal, quizID string) (domain.QuizRun, error) {
	if quizID == "" {
		return domain.QuizRun{}, fmt.Errorf("quizId is required: %w", domain.ErrValidation)
	}
	return s.runs.ActiveRun(ctx, p.UserID, quizID)
}

// Start opens a run. A request with EndedAt is stored completed with statistics.
func (s *RunService) Start(ctx context.Context, p domain.Principal, req domain.StartRunRequest) (domain.QuizRun, error) {
	if req.QuizID == "" {
		return domain.QuizRun{}, fmt.Errorf("quizId is required: %w", domain.ErrValidation)
	}
	quiz, err := s.quizzes.GetQuiz(ctx, req.QuizID)
	if err != nil {
		return domain.QuizRun{}, err
	}
	if !quiz.IsPublic && quiz.OwnerID != p.UserID {
		return domain.QuizRun{}, fmt.Errorf("start run of quiz %s: %w", req.QuizID, domain.ErrForbidden)
	}

	now := s.now().UTC()
	started := req.StartedAt
	if started.IsZero() {
		started = now
	}
	run := domain.QuizRun{
		ID:         uuid.NewString(),
		QuizID:     quiz.ID,
		UserID:     p.UserID,
		StartedAt:  started.UTC(),
		FinalState: req.FinalState,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	snapshotQuiz(&run, quiz.QuizMetadata)
	if req.EndedAt != nil {
		ended := req.EndedAt.UTC()
		ranking.Summarize(run.FinalState, run.StartedAt, ended).Apply(&run, ended)
	}
	if err := s.runs.CreateRun(ctx, run); err != nil {
		return domain.QuizRun{}, fmt.Errorf("create run: %w", err)
	}
	return run, nil
}

func snapshotQuiz(run *domain.QuizRun, quiz domain.QuizMetadata) {
	run.QuizTitle = quiz.Title
	run.QuizDescription = quiz.Description
	run.QuizTheme = quiz.Theme
	run.QuizTimeLimit = quiz.TimeLimit
}

// Get returns one of the caller's runs.
func (s *RunService) Get(ctx context.Context, p domain.Principal, runID string) (domain.QuizRun, error) {
	run, err := s.runs.GetRun(ctx, runID)
	if err != nil {
		return domain.QuizRun{}, err
	}
	if run.UserID != p.UserID {
		return domain.QuizRun{}, domain.ErrRunNotFound
	}
	return run, nil
}

// Update replaces the snapshot of a live run.
func (s *RunService) Update(ctx context.Context, p domain.Principal, runID string, state domain.RunState) (domain.QuizRun, error) {
	run, err := s.Get(ctx, p, runID)
	if err != nil {
		return domain.QuizRun{}, err
	}
	if !run.Live() {
		return domain.QuizRun{}, domain.ErrRunCompleted
	}
	run.FinalState = state
	run.UpdatedAt = s.now().UTC()
	if err := s.runs.UpdateRun(ctx, run); err != nil {
		return domain.QuizRun{}, fmt.Errorf("update run: %w", err)
	}
	return run, nil
}

// Complete ends a live run and stamps its statistics.
func (s *RunService) Complete(ctx context.Context, p domain.Principal, runID string, state domain.RunState) (domain.QuizRun, error) {
	run, err := s.Get(ctx, p, runID)
	if err != nil {
		return domain.QuizRun{}, err
	}
	if !run.Live() {
		return domain.QuizRun{}, domain.ErrRunCompleted
	}

	// refresh the snapshot; a deleted quiz keeps the one taken at start
	quiz, err := s.quizzes.GetQuiz(ctx, run.QuizID)
	switch {
	case err == nil:
		snapshotQuiz(&run, quiz.QuizMetadata)
	case !errors.Is(err, domain.ErrQuizNotFound):
		return domain.QuizRun{}, err
	}

	now := s.now().UTC()
	run.FinalState = state
	run.UpdatedAt = now
	ranking.Summarize(state, run.StartedAt, now).Apply(&run, now)
	if err := s.runs.UpdateRun(ctx, run); err != nil {
		return domain.QuizRun{}, fmt.Errorf("complete run: %w", err)
	}
	return run, nil
}

// List returns summaries of the caller's completed runs.
func (s *RunService) List(ctx context.Context, p domain.Principal, quizID string, limit int) ([]domain.RunSummary, error) {
	if limit <= 0 {
		limit = DefaultRunListLimit
	}
	if limit > MaxRunListLimit {
		limit = MaxRunListLimit
	}
	runs, err := s.runs.ListCompleted(ctx, p.UserID, quizID, limit)
	if err != nil {
		return nil, err
	}
	out := make([]domain.RunSummary, 0, len(runs))
	for _, r := range runs {
		out = append(out, r.Summary())
	}
	return out, nil
}

// Delete removes one of the caller's runs.
func (s *RunService) Delete(ctx context.Context, p domain.Principal, runID string) error {
	if _, err := s.Get(ctx, p, runID); err != nil {
		return err
	}
	return s.runs.DeleteRun(ctx, runID)
}

// ExportCSV renders the standings of a run. Live runs are ranked from their current snapshot.
func (s *RunService) ExportCSV(ctx context.Context, p domain.Principal, runID string) ([]byte, error) {
	run, err := s.Get(ctx, p, runID)
	if err != nil {
		return nil, err
	}

	results := run.TeamResults
	if run.Live() {
		results = ranking.Summarize(run.FinalState, run.StartedAt, s.now()).TeamResults
	}

	rows := [][]string{{"Rank", "Team", "Score"}}
	for _, r := range results {
		rows = append(rows, []string{strconv.Itoa(r.Rank), r.TeamName, strconv.Itoa(r.FinalScore)})
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
