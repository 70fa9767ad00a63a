package game

import (
	"context"
	"errors"
	"fmt"
	"time"

	"showdown-grid/internal/domain"
)

// StartSession opens a live run for the loaded quiz. A live run left behind by
// an earlier visit is adopted instead of starting a second one.
func (s *Store) StartSession(ctx context.Context) (domain.QuizRun, error) {
	s.mu.Lock()
	quizID := s.state.QuizID
	board := s.state.Board()
	s.mu.Unlock()
	if quizID == "" {
		return domain.QuizRun{}, domain.ErrNoActiveQuiz
	}

	run, err := s.api.ActiveRun(ctx, quizID)
	switch {
	case err == nil:
		s.log.Info("resuming live run", "run_id", run.ID, "quiz_id", quizID)
	case errors.Is(err, domain.ErrNotFound):
		run, err = s.api.StartRun(ctx, domain.StartRunRequest{
			QuizID:     quizID,
			StartedAt:  s.opts.Clock.Now().UTC(),
			FinalState: board,
		})
		if err != nil {
			s.log.Error("failed to start run", "quiz_id", quizID, "err", err)
			return domain.QuizRun{}, fmt.Errorf("start run: %w", err)
		}
		s.log.Info("run started", "run_id", run.ID, "quiz_id", quizID)
	default:
		return domain.QuizRun{}, fmt.Errorf("look up live run: %w", err)
	}

	s.mu.Lock()
	s.status.ActiveRunID = run.ID
	s.status.RunStartedAt = run.StartedAt
	s.mu.Unlock()
	return run, nil
}

// SetRunStartTime records a start time for play that has no live run on the
// server. CompleteSession then files the run in one request.
func (s *Store) SetRunStartTime(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.RunStartedAt = t
}

// SaveSession writes the board to the live run. Calls closer together than
// the minimum interval are dropped without error.
func (s *Store) SaveSession(ctx context.Context) error {
	s.mu.Lock()
	runID := s.status.ActiveRunID
	if runID == "" {
		s.mu.Unlock()
		return domain.ErrNoActiveRun
	}
	if !s.limiter.AllowN(s.opts.Clock.Now(), 1) {
		s.mu.Unlock()
		s.log.Debug("run snapshot skipped by rate limit", "run_id", runID)
		return nil
	}
	board := s.state.Board()
	s.mu.Unlock()
	return s.writeSnapshot(ctx, runID, board)
}

// FlushSession writes a snapshot that is still waiting on its timer, ignoring
// the rate limit. Without a pending snapshot it does nothing.
func (s *Store) FlushSession(ctx context.Context) error {
	s.mu.Lock()
	runID := s.status.ActiveRunID
	if runID == "" {
		s.mu.Unlock()
		return domain.ErrNoActiveRun
	}
	pending := s.sessionTimer != nil && s.sessionTimer.Stop()
	board := s.state.Board()
	s.mu.Unlock()
	if !pending {
		return nil
	}
	return s.writeSnapshot(ctx, runID, board)
}

func (s *Store) writeSnapshot(ctx context.Context, runID string, board domain.RunState) error {
	if _, err := s.api.UpdateRun(ctx, runID, board); err != nil {
		s.log.Error("failed to save run snapshot", "run_id", runID, "err", err)
		return fmt.Errorf("save run %s: %w", runID, err)
	}
	return nil
}

func (s *Store) autosaveSession() {
	ctx, cancel := s.backgroundContext()
	defer cancel()
	// Failures are logged by SaveSession; there is no retry.
	_ = s.SaveSession(ctx)
}

// CompleteSession ends the live run with the current board and computed statistics.
// Without a live run id but with a recorded start time the run is filed in one go.
func (s *Store) CompleteSession(ctx context.Context) (domain.QuizRun, error) {
	s.mu.Lock()
	quizID := s.state.QuizID
	runID := s.status.ActiveRunID
	started := s.status.RunStartedAt
	if started.IsZero() || quizID == "" {
		s.mu.Unlock()
		return domain.QuizRun{}, domain.ErrNoActiveRun
	}
	board := s.state.Board()
	// No snapshot may reach the run once the complete request is out.
	stopTimer(s.sessionTimer)
	s.status.ActiveRunID = ""
	s.status.RunStartedAt = time.Time{}
	s.mu.Unlock()

	var (
		run domain.QuizRun
		err error
	)
	if runID != "" {
		run, err = s.api.CompleteRun(ctx, runID, board)
	} else {
		end := s.opts.Clock.Now().UTC()
		run, err = s.api.StartRun(ctx, domain.StartRunRequest{
			QuizID:     quizID,
			StartedAt:  started,
			EndedAt:    &end,
			FinalState: board,
		})
	}
	if err != nil {
		s.mu.Lock()
		// Nothing replaced the run meanwhile: hand it back so play can go on.
		if s.state.QuizID == quizID && s.status.ActiveRunID == "" && s.status.RunStartedAt.IsZero() {
			s.status.ActiveRunID = runID
			s.status.RunStartedAt = started
			if runID != "" {
				s.scheduleSessionSaveLocked()
			}
		}
		s.mu.Unlock()
		s.log.Error("failed to complete run", "run_id", runID, "quiz_id", quizID, "err", err)
		return domain.QuizRun{}, fmt.Errorf("complete run: %w", err)
	}

	s.log.Info("run completed", "run_id", run.ID, "answered", run.AnsweredQuestions, "total", run.TotalQuestions)
	return run, nil
}

// RestoreActiveSession looks for a live run of the loaded quiz and, if found,
// replaces the board, teams and log with its snapshot.
func (s *Store) RestoreActiveSession(ctx context.Context) (bool, error) {
	s.mu.Lock()
	quizID := s.state.QuizID
	s.mu.Unlock()
	if quizID == "" {
		return false, nil
	}
	run, err := s.api.ActiveRun(ctx, quizID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrUnauthorized) {
			return false, nil
		}
		return false, fmt.Errorf("look up live run: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.QuizID != quizID {
		// Another quiz was loaded while the lookup was in flight.
		return false, nil
	}
	next := s.state.Clone()
	next.Categories = cloneCategories(run.FinalState.Categories)
	assignIDs(next.Categories, &env{})
	next.Teams = cloneTeams(run.FinalState.Teams)
	next.AdjustmentLog = append([]domain.AdjustmentEntry{}, run.FinalState.AdjustmentLog...)
	next.clearSelection()
	s.state = next
	s.status.ActiveRunID = run.ID
	s.status.RunStartedAt = run.StartedAt
	s.log.Info("restored live run", "run_id", run.ID, "quiz_id", quizID)
	return true, nil
}
