package game

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"showdown-grid/internal/domain"
)

// autosaveQuiz is the debounced quiz-document save.
func (s *Store) autosaveQuiz() {
	s.mu.Lock()
	st := s.status
	s.mu.Unlock()
	if st.Loading || !st.Authenticated || st.Saving || !st.HasUnsavedChanges || st.PlayingPublicQuiz {
		return
	}
	ctx, cancel := s.backgroundContext()
	defer cancel()
	// Failures are recorded in Status and logged by saveQuiz.
	_ = s.saveQuiz(ctx)
}

// SaveQuiz writes the quiz document now. While a public quiz is loaded the
// caller's own quiz record must not be overwritten, so it refuses.
func (s *Store) SaveQuiz(ctx context.Context) error {
	s.mu.Lock()
	public := s.status.PlayingPublicQuiz
	s.mu.Unlock()
	if public {
		return fmt.Errorf("save public quiz: %w", domain.ErrForbidden)
	}
	return s.saveQuiz(ctx)
}

// Flush cancels the pending debounce and saves immediately if anything is dirty.
// A save already in flight is waited for, and edits it missed are saved after it.
func (s *Store) Flush(ctx context.Context) error {
	for {
		s.mu.Lock()
		stopTimer(s.quizTimer)
		st := s.status
		done := s.saveDone
		s.mu.Unlock()
		if !st.HasUnsavedChanges || !st.Authenticated || st.PlayingPublicQuiz {
			return nil
		}
		if st.Saving {
			select {
			case <-done:
				continue
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if err := s.saveQuiz(ctx); err != nil {
			return err
		}
		// Go round again: edits made while this save was in flight still
		// need one.
	}
}

// saveQuiz does nothing while another save is in flight.
func (s *Store) saveQuiz(ctx context.Context) error {
	s.mu.Lock()
	if s.status.Saving {
		s.mu.Unlock()
		return nil
	}
	s.status.Saving = true
	s.saveDone = make(chan struct{})
	rev := s.revision
	doc := s.state.Document()
	s.mu.Unlock()

	meta, err := s.api.SaveQuiz(ctx, doc)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.Saving = false
	close(s.saveDone)
	if err != nil {
		s.status.LastSaveError = err
		s.log.Error("failed to save quiz", "quiz_id", doc.QuizID, "err", err)
		return fmt.Errorf("save quiz: %w", err)
	}
	if s.state.QuizID == "" && doc.QuizID == "" {
		// First save of a fresh board created the quiz server-side.
		s.state.QuizID = meta.ID
		s.state.QuizOwnerID = meta.OwnerID
	}
	s.status.LastSaveError = nil
	s.status.LastSavedAt = s.opts.Clock.Now()
	if s.revision == rev {
		s.status.HasUnsavedChanges = false
	} else {
		// Edited while the request was in flight.
		s.scheduleQuizSaveLocked()
	}
	s.log.Debug("quiz saved", "quiz_id", doc.QuizID)
	return nil
}

// Load fetches the active quiz and the quiz list together, hydrates the state
// and then restores a live run if one exists. A missing quiz keeps the default
// board; an unauthenticated caller is not an error.
func (s *Store) Load(ctx context.Context) error {
	s.mu.Lock()
	s.status.Loading = true
	s.mu.Unlock()

	var (
		doc       domain.QuizDocument
		docErr    error
		quizzes   []domain.QuizMetadata
		quizzesOK bool
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		doc, docErr = s.api.ActiveQuiz(gctx)
		if docErr != nil && !errors.Is(docErr, domain.ErrNotFound) && !errors.Is(docErr, domain.ErrUnauthorized) {
			return fmt.Errorf("load active quiz: %w", docErr)
		}
		return nil
	})
	g.Go(func() error {
		list, err := s.api.ListQuizzes(gctx)
		if err != nil {
			if !errors.Is(err, domain.ErrUnauthorized) && !errors.Is(err, context.Canceled) {
				s.log.Warn("failed to load quiz list", "err", err)
			}
			return nil
		}
		quizzes, quizzesOK = list, true
		return nil
	})
	err := g.Wait()

	s.mu.Lock()
	s.status.Loading = false
	if quizzesOK {
		s.status.Quizzes = quizzes
	} else {
		s.status.Quizzes = nil
	}
	switch {
	case err != nil:
		s.status.HasUnsavedChanges = false
		s.mu.Unlock()
		s.log.Error("failed to load quiz", "err", err)
		return err
	case errors.Is(docErr, domain.ErrUnauthorized):
		s.status.Authenticated = false
		s.status.HasUnsavedChanges = false
		s.mu.Unlock()
		s.log.Info("not signed in, keeping local board")
		return nil
	case errors.Is(docErr, domain.ErrNotFound):
		s.status.Authenticated = true
		s.status.HasUnsavedChanges = false
		if s.state.QuizID != "" || s.status.PlayingPublicQuiz {
			s.hydrateLocked(DefaultState().Document(), false)
		}
		s.mu.Unlock()
		s.log.Info("no saved quiz, using default board")
		return nil
	}
	s.status.Authenticated = true
	s.hydrateLocked(doc, false)
	s.mu.Unlock()

	return s.restoreQuietly(ctx)
}

// hydrateLocked replaces the state wholesale with doc.
func (s *Store) hydrateLocked(doc domain.QuizDocument, public bool) {
	st := DefaultState()
	st.QuizID = doc.QuizID
	st.QuizOwnerID = doc.QuizOwnerID
	st.Title = doc.QuizTitle
	st.Description = doc.QuizDescription
	st.TimeLimit = cloneInt(doc.QuizTimeLimit)
	if doc.QuizTheme != "" {
		st.Theme = doc.QuizTheme
	}
	st.IsPublic = doc.QuizIsPublic
	st.Categories = cloneCategories(doc.Categories)
	assignIDs(st.Categories, &env{})
	st.Teams = cloneTeams(doc.Teams)
	st.AdjustmentLog = append([]domain.AdjustmentEntry{}, doc.AdjustmentLog...)

	stopTimer(s.quizTimer)
	stopTimer(s.sessionTimer)
	stopTimer(s.spinTimer)
	s.state = st
	s.revision++
	s.status.HasUnsavedChanges = false
	s.status.PlayingPublicQuiz = public
	s.status.ActiveRunID = ""
	s.status.RunStartedAt = time.Time{}
}

// RefreshQuizzes reloads the owned quiz list. Unauthenticated callers get an empty list.
func (s *Store) RefreshQuizzes(ctx context.Context) error {
	list, err := s.api.ListQuizzes(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		if errors.Is(err, domain.ErrUnauthorized) {
			s.status.Quizzes = nil
			return nil
		}
		s.log.Warn("failed to refresh quiz list", "err", err)
		return fmt.Errorf("refresh quizzes: %w", err)
	}
	s.status.Quizzes = list
	return nil
}

// SwitchQuiz makes id the active quiz and reloads everything from it.
func (s *Store) SwitchQuiz(ctx context.Context, id string) error {
	s.mu.Lock()
	s.status.Loading = true
	s.mu.Unlock()
	if err := s.api.ActivateQuiz(ctx, id); err != nil {
		s.mu.Lock()
		s.status.Loading = false
		s.mu.Unlock()
		s.log.Error("failed to switch quiz", "quiz_id", id, "err", err)
		return fmt.Errorf("activate quiz %s: %w", id, err)
	}
	return s.Load(ctx)
}

// LoadPublicQuiz plays someone else's public quiz without activating it. Quiz
// autosave stays off until another quiz is loaded; run snapshots still save.
func (s *Store) LoadPublicQuiz(ctx context.Context, id string) error {
	s.mu.Lock()
	s.status.Loading = true
	s.mu.Unlock()
	doc, err := s.api.LoadQuiz(ctx, id)
	s.mu.Lock()
	s.status.Loading = false
	if err != nil {
		s.mu.Unlock()
		s.log.Error("failed to load public quiz", "quiz_id", id, "err", err)
		return fmt.Errorf("load quiz %s: %w", id, err)
	}
	s.hydrateLocked(doc, true)
	s.mu.Unlock()
	return s.restoreQuietly(ctx)
}

// CreateQuiz creates a quiz without switching to it.
func (s *Store) CreateQuiz(ctx context.Context, title, description string) (domain.QuizMetadata, error) {
	meta, err := s.api.CreateQuiz(ctx, domain.CreateQuizRequest{Title: title, Description: description})
	if err != nil {
		s.log.Error("failed to create quiz", "title", title, "err", err)
		return domain.QuizMetadata{}, fmt.Errorf("create quiz: %w", err)
	}
	if err := s.RefreshQuizzes(ctx); err != nil {
		return meta, err
	}
	return meta, nil
}

// DeleteQuiz removes a quiz. Deleting the loaded quiz reloads whatever is active next.
func (s *Store) DeleteQuiz(ctx context.Context, id string) error {
	if err := s.api.DeleteQuiz(ctx, id); err != nil {
		s.log.Error("failed to delete quiz", "quiz_id", id, "err", err)
		return fmt.Errorf("delete quiz %s: %w", id, err)
	}
	s.mu.Lock()
	wasActive := s.state.QuizID == id
	s.mu.Unlock()
	if wasActive {
		return s.Load(ctx)
	}
	return s.RefreshQuizzes(ctx)
}

func (s *Store) restoreQuietly(ctx context.Context) error {
	if _, err := s.RestoreActiveSession(ctx); err != nil {
		s.log.Warn("failed to restore live run", "err", err)
	}
	return nil
}
