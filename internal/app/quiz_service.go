package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"showdown-grid/internal/bank"
	"showdown-grid/internal/domain"
)

// DefaultQuizTitle names quizzes saved before the host typed a title.
const DefaultQuizTitle = "Untitled quiz"

// QuizService contains the quiz use cases behind the REST API.
type QuizService struct {
	quizzes  QuizRepository
	accounts AccountRepository
	now      func() time.Time
}

func NewQuizService(quizzes QuizRepository, accounts AccountRepository) *QuizService {
	return NewQuizServiceWithClock(quizzes, accounts, time.Now)
}

// NewQuizServiceWithClock is used by tests for deterministic timestamps.
func NewQuizServiceWithClock(quizzes QuizRepository, accounts AccountRepository, now func() time.Time) *QuizService {
	return &QuizService{quizzes: quizzes, accounts: accounts, now: now}
}

// ActiveQuiz returns the caller's active quiz document.
func (s *QuizService) ActiveQuiz(ctx context.Context, p domain.Principal) (domain.QuizDocument, error) {
	rec, err := s.activeRecord(ctx, p)
	if err != nil {
		return domain.QuizDocument{}, err
	}
	return rec.Document(), nil
}

func (s *QuizService) activeRecord(ctx context.Context, p domain.Principal) (domain.QuizRecord, error) {
	acc, err := s.accounts.GetAccount(ctx, p.UserID)
	if err != nil {
		return domain.QuizRecord{}, fmt.Errorf("load account: %w", err)
	}
	if acc.ActiveQuizID == "" {
		return domain.QuizRecord{}, domain.ErrQuizNotFound
	}
	rec, err := s.quizzes.GetQuiz(ctx, acc.ActiveQuizID)
	if err != nil {
		return domain.QuizRecord{}, err
	}
	if rec.OwnerID != p.UserID {
		// stale pointer after a transfer or delete
		return domain.QuizRecord{}, domain.ErrQuizNotFound
	}
	return rec, nil
}

// Save writes doc. It targets doc.QuizID when the caller owns it, else the
// active quiz; with neither a new quiz is created and activated.
func (s *QuizService) Save(ctx context.Context, p domain.Principal, doc domain.QuizDocument) (domain.QuizMetadata, error) {
	var (
		rec   domain.QuizRecord
		found bool
	)
	if doc.QuizID != "" {
		existing, err := s.quizzes.GetQuiz(ctx, doc.QuizID)
		switch {
		case err == nil:
			if existing.OwnerID != p.UserID {
				return domain.QuizMetadata{}, fmt.Errorf("save quiz %s: %w", doc.QuizID, domain.ErrForbidden)
			}
			rec, found = existing, true
		case !errors.Is(err, domain.ErrQuizNotFound):
			return domain.QuizMetadata{}, err
		}
	}
	if !found {
		existing, err := s.activeRecord(ctx, p)
		switch {
		case err == nil:
			rec, found = existing, true
		case !errors.Is(err, domain.ErrQuizNotFound):
			return domain.QuizMetadata{}, err
		}
	}

	now := s.now().UTC()
	applyDocument(&rec, doc)
	rec.UpdatedAt = now

	if found {
		if err := s.quizzes.UpdateQuiz(ctx, rec); err != nil {
			return domain.QuizMetadata{}, fmt.Errorf("update quiz: %w", err)
		}
		return rec.QuizMetadata, nil
	}

	rec.ID = uuid.NewString()
	rec.OwnerID = p.UserID
	rec.CreatedAt = now
	if err := s.quizzes.CreateQuiz(ctx, rec); err != nil {
		return domain.QuizMetadata{}, fmt.Errorf("create quiz: %w", err)
	}
	if err := s.accounts.SetActiveQuiz(ctx, p.UserID, rec.ID); err != nil {
		return domain.QuizMetadata{}, fmt.Errorf("activate quiz: %w", err)
	}
	return rec.QuizMetadata, nil
}

func applyDocument(rec *domain.QuizRecord, doc domain.QuizDocument) {
	rec.Title = strings.TrimSpace(doc.QuizTitle)
	if rec.Title == "" {
		rec.Title = DefaultQuizTitle
	}
	rec.Description = doc.QuizDescription
	rec.TimeLimit = doc.QuizTimeLimit
	rec.Theme = doc.QuizTheme
	if rec.Theme == "" {
		rec.Theme = domain.DefaultTheme
	}
	rec.IsPublic = doc.QuizIsPublic
	rec.Data = doc.State()
}

// List returns the caller's quizzes.
func (s *QuizService) List(ctx context.Context, p domain.Principal) ([]domain.QuizMetadata, error) {
	return s.quizzes.ListByOwner(ctx, p.UserID)
}

// Public lists public quizzes. viewer may be nil for anonymous browsing.
func (s *QuizService) Public(ctx context.Context, viewer *domain.Principal) ([]domain.QuizMetadata, error) {
	list, err := s.quizzes.ListPublic(ctx)
	if err != nil {
		return nil, err
	}
	for i := range list {
		list[i].IsOwnedByCurrentUser = viewer != nil && list[i].OwnerID == viewer.UserID
	}
	return list, nil
}

// Create makes a new quiz seeded with the question bank unless req carries a board.
func (s *QuizService) Create(ctx context.Context, p domain.Principal, req domain.CreateQuizRequest) (domain.QuizMetadata, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return domain.QuizMetadata{}, fmt.Errorf("title is required: %w", domain.ErrValidation)
	}
	data := bank.DefaultState()
	if req.QuizData != nil {
		data = *req.QuizData
		if len(data.Teams) == 0 {
			data.Teams = bank.DefaultTeams()
		}
	}

	now := s.now().UTC()
	rec := domain.QuizRecord{
		QuizMetadata: domain.QuizMetadata{
			ID:          uuid.NewString(),
			Title:       title,
			Description: strings.TrimSpace(req.Description),
			Theme:       domain.DefaultTheme,
			OwnerID:     p.UserID,
			CreatedAt:   now,
			UpdatedAt:   now,
		},
		Data: data,
	}
	if err := s.quizzes.CreateQuiz(ctx, rec); err != nil {
		return domain.QuizMetadata{}, fmt.Errorf("create quiz: %w", err)
	}
	if req.SetAsActive {
		if err := s.accounts.SetActiveQuiz(ctx, p.UserID, rec.ID); err != nil {
			return domain.QuizMetadata{}, fmt.Errorf("activate quiz: %w", err)
		}
	}
	return rec.QuizMetadata, nil
}

// Activate points the caller's active quiz at quizID.
func (s *QuizService) Activate(ctx context.Context, p domain.Principal, quizID string) error {
	if _, err := s.owned(ctx, p, quizID); err != nil {
		return err
	}
	return s.accounts.SetActiveQuiz(ctx, p.UserID, quizID)
}

// Delete removes an owned quiz and clears the active pointer if it pointed there.
func (s *QuizService) Delete(ctx context.Context, p domain.Principal, quizID string) error {
	if _, err := s.owned(ctx, p, quizID); err != nil {
		return err
	}
	if err := s.quizzes.DeleteQuiz(ctx, quizID); err != nil {
		return fmt.Errorf("delete quiz: %w", err)
	}
	acc, err := s.accounts.GetAccount(ctx, p.UserID)
	if err != nil {
		return fmt.Errorf("load account: %w", err)
	}
	if acc.ActiveQuizID == quizID {
		return s.accounts.SetActiveQuiz(ctx, p.UserID, "")
	}
	return nil
}

// Load reads a quiz without activating it. Public quizzes are readable by
// anyone; private ones only by their owner.
func (s *QuizService) Load(ctx context.Context, viewer *domain.Principal, quizID string) (domain.QuizDocument, error) {
	rec, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.QuizDocument{}, err
	}
	if !rec.IsPublic && (viewer == nil || viewer.UserID != rec.OwnerID) {
		return domain.QuizDocument{}, fmt.Errorf("load quiz %s: %w", quizID, domain.ErrForbidden)
	}
	return rec.Document(), nil
}

// Metadata returns a public or owned quiz's metadata.
func (s *QuizService) Metadata(ctx context.Context, viewer *domain.Principal, quizID string) (domain.QuizMetadata, error) {
	rec, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.QuizMetadata{}, err
	}
	if !rec.IsPublic && (viewer == nil || viewer.UserID != rec.OwnerID) {
		return domain.QuizMetadata{}, fmt.Errorf("quiz %s: %w", quizID, domain.ErrForbidden)
	}
	return rec.QuizMetadata, nil
}

func (s *QuizService) owned(ctx context.Context, p domain.Principal, quizID string) (domain.QuizRecord, error) {
	rec, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.QuizRecord{}, err
	}
	if rec.OwnerID != p.UserID {
		return domain.QuizRecord{}, fmt.Errorf("quiz %s: %w", quizID, domain.ErrForbidden)
	}
	return rec, nil
}
