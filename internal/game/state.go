package game

import (
	"showdown-grid/internal/bank"
	"showdown-grid/internal/domain"
)

const (
	DefaultTitle       = "Showdown Grid"
	DefaultDescription = "A Jeopardy-style quiz game."
)

// State is the in-memory game tree. The Store owns it; callers only ever see copies.
type State struct {
	QuizID      string
	QuizOwnerID string
	Title       string
	Description string
	TimeLimit   *int
	Theme       string
	IsPublic    bool

	Categories    []domain.Category
	Teams         []domain.Team
	AdjustmentLog []domain.AdjustmentEntry

	LastQuestion *domain.LastQuestion
	QuestionOpen bool
	Round        domain.RoundProgress

	CurrentTurnTeamID    string
	InitialTurnSelection bool
	// PendingTurnTeamID is the team picked by an in-flight spin.
	PendingTurnTeamID string
}

// DefaultState is the seed board with three empty teams.
func DefaultState() State {
	seed := bank.DefaultState()
	return State{
		Title:         DefaultTitle,
		Description:   DefaultDescription,
		Theme:         domain.DefaultTheme,
		Categories:    seed.Categories,
		Teams:         seed.Teams,
		AdjustmentLog: seed.AdjustmentLog,
		Round:         emptyRound(false),
	}
}

func emptyRound(active bool) domain.RoundProgress {
	return domain.RoundProgress{Active: active, NegativeAwardedTo: []string{}}
}

// Clone returns a deep copy; mutating the copy never reaches the receiver.
func (s State) Clone() State {
	out := s
	out.TimeLimit = cloneInt(s.TimeLimit)
	out.Categories = cloneCategories(s.Categories)
	out.Teams = cloneTeams(s.Teams)
	out.AdjustmentLog = append([]domain.AdjustmentEntry{}, s.AdjustmentLog...)
	if s.LastQuestion != nil {
		lq := *s.LastQuestion
		out.LastQuestion = &lq
	}
	out.Round.NegativeAwardedTo = append([]string{}, s.Round.NegativeAwardedTo...)
	return out
}

// Board returns the slice persisted on quiz runs.
func (s State) Board() domain.RunState {
	c := s.Clone()
	return domain.RunState{
		Categories:    c.Categories,
		Teams:         c.Teams,
		AdjustmentLog: c.AdjustmentLog,
	}
}

// Document returns the quiz document written by autosave.
func (s State) Document() domain.QuizDocument {
	b := s.Board()
	return domain.QuizDocument{
		QuizID:          s.QuizID,
		QuizOwnerID:     s.QuizOwnerID,
		QuizTitle:       s.Title,
		QuizDescription: s.Description,
		QuizTimeLimit:   cloneInt(s.TimeLimit),
		QuizTheme:       s.Theme,
		QuizIsPublic:    s.IsPublic,
		Categories:      b.Categories,
		Teams:           b.Teams,
		AdjustmentLog:   b.AdjustmentLog,
	}
}

func (s *State) teamIndex(id string) int {
	for i := range s.Teams {
		if s.Teams[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *State) team(id string) *domain.Team {
	if i := s.teamIndex(id); i >= 0 {
		return &s.Teams[i]
	}
	return nil
}

func (s *State) categoryIndex(id string) int {
	for i := range s.Categories {
		if s.Categories[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *State) question(categoryID, questionID string) *domain.Question {
	ci := s.categoryIndex(categoryID)
	if ci < 0 {
		return nil
	}
	qs := s.Categories[ci].Questions
	for i := range qs {
		if qs[i].ID == questionID {
			return &qs[i]
		}
	}
	return nil
}

// selected resolves the question behind LastQuestion: by id first, then by
// category name and position for snapshots built without ids.
func (s *State) selected() *domain.Question {
	lq := s.LastQuestion
	if lq == nil {
		return nil
	}
	if lq.QuestionID != "" {
		if q := s.question(lq.CategoryID, lq.QuestionID); q != nil {
			return q
		}
	}
	for ci := range s.Categories {
		c := &s.Categories[ci]
		if c.Name != lq.CategoryName {
			continue
		}
		if lq.QuestionIndex >= 0 && lq.QuestionIndex < len(c.Questions) {
			return &c.Questions[lq.QuestionIndex]
		}
	}
	return nil
}

// selectedIn reports whether the open question belongs to c.
func (s *State) selectedIn(c *domain.Category) bool {
	q := s.selected()
	for i := range c.Questions {
		if &c.Questions[i] == q {
			return true
		}
	}
	return false
}

func (s *State) markSelectedAnswered() bool {
	q := s.selected()
	if q == nil || q.Answered {
		return false
	}
	q.Answered = true
	return true
}

func (s *State) clearSelection() {
	s.LastQuestion = nil
	s.QuestionOpen = false
	s.Round = emptyRound(false)
}

func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneCategories(in []domain.Category) []domain.Category {
	out := make([]domain.Category, len(in))
	for i, c := range in {
		out[i] = c
		out[i].Questions = append([]domain.Question{}, c.Questions...)
	}
	return out
}

func cloneTeams(in []domain.Team) []domain.Team {
	out := make([]domain.Team, len(in))
	for i, t := range in {
		out[i] = t
		out[i].Players = append([]string{}, t.Players...)
	}
	return out
}
