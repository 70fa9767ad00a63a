package game

import (
	"fmt"

	"showdown-grid/internal/bank"
	"showdown-grid/internal/domain"
)

// SetCategories replaces the board. Categories and questions without an id get one.
type SetCategories struct {
	Categories []domain.Category
}

func (c SetCategories) apply(s *State, e *env) Result {
	s.Categories = cloneCategories(c.Categories)
	assignIDs(s.Categories, e)
	return accepted(ChangeBoard)
}

func assignIDs(cats []domain.Category, e *env) {
	for ci := range cats {
		if cats[ci].ID == "" {
			cats[ci].ID = e.newID()
		}
		for qi := range cats[ci].Questions {
			if cats[ci].Questions[qi].ID == "" {
				cats[ci].Questions[qi].ID = e.newID()
			}
		}
	}
}

// AddCategory appends a category with the default five questions.
type AddCategory struct {
	Name string
}

func (c AddCategory) apply(s *State, e *env) Result {
	name := c.Name
	if name == "" {
		name = fmt.Sprintf("New Category %d", len(s.Categories)+1)
	}
	s.Categories = append(s.Categories, domain.Category{
		ID:        e.newID(),
		Name:      name,
		Questions: bank.DefaultQuestions(),
	})
	return accepted(ChangeBoard)
}

type RemoveCategory struct {
	ID string
}

func (c RemoveCategory) apply(s *State, _ *env) Result {
	i := s.categoryIndex(c.ID)
	if i < 0 {
		return ignored(ReasonUnknownCategory)
	}
	if s.selectedIn(&s.Categories[i]) {
		s.clearSelection()
	}
	s.Categories = append(s.Categories[:i], s.Categories[i+1:]...)
	return accepted(ChangeBoard)
}

type RenameCategory struct {
	ID   string
	Name string
}

func (c RenameCategory) apply(s *State, _ *env) Result {
	i := s.categoryIndex(c.ID)
	if i < 0 {
		return ignored(ReasonUnknownCategory)
	}
	s.Categories[i].Name = c.Name
	return accepted(ChangeBoard)
}

// AddQuestion appends a blank question worth 100 more than the last one.
type AddQuestion struct {
	CategoryID string
}

func (c AddQuestion) apply(s *State, e *env) Result {
	i := s.categoryIndex(c.CategoryID)
	if i < 0 {
		return ignored(ReasonUnknownCategory)
	}
	points := 100
	if qs := s.Categories[i].Questions; len(qs) > 0 {
		points = qs[len(qs)-1].Points + 100
	}
	s.Categories[i].Questions = append(s.Categories[i].Questions, domain.Question{ID: e.newID(), Points: points})
	return accepted(ChangeBoard)
}

type RemoveQuestion struct {
	CategoryID string
	QuestionID string
}

func (c RemoveQuestion) apply(s *State, _ *env) Result {
	ci := s.categoryIndex(c.CategoryID)
	if ci < 0 {
		return ignored(ReasonUnknownCategory)
	}
	qs := s.Categories[ci].Questions
	for i := range qs {
		if qs[i].ID == c.QuestionID {
			if s.selected() == &qs[i] {
				s.clearSelection()
			}
			s.Categories[ci].Questions = append(qs[:i], qs[i+1:]...)
			return accepted(ChangeBoard)
		}
	}
	return ignored(ReasonUnknownQuestion)
}

// QuestionPatch holds field-level edits; nil fields are left alone.
type QuestionPatch struct {
	Points     *int
	Question   *string
	Answer     *string
	ImageURL   *string
	Answered   *bool
	IsJoker    *bool
	JokerTask  *string
	JokerTimer *int
}

type UpdateQuestion struct {
	CategoryID string
	QuestionID string
	Patch      QuestionPatch
}

func (c UpdateQuestion) apply(s *State, _ *env) Result {
	if s.categoryIndex(c.CategoryID) < 0 {
		return ignored(ReasonUnknownCategory)
	}
	q := s.question(c.CategoryID, c.QuestionID)
	if q == nil {
		return ignored(ReasonUnknownQuestion)
	}
	p := c.Patch
	if p.Points != nil {
		q.Points = *p.Points
	}
	if p.Question != nil {
		q.Question = *p.Question
	}
	if p.Answer != nil {
		q.Answer = *p.Answer
	}
	if p.ImageURL != nil {
		q.ImageURL = *p.ImageURL
	}
	if p.Answered != nil {
		q.Answered = *p.Answered
	}
	if p.JokerTask != nil {
		q.JokerTask = *p.JokerTask
	}
	if p.JokerTimer != nil {
		q.JokerTimer = *p.JokerTimer
	}
	if p.IsJoker != nil {
		q.IsJoker = *p.IsJoker
		if !q.IsJoker {
			q.JokerTask = ""
		} else if q.JokerTimer <= 0 {
			q.JokerTimer = domain.DefaultJokerSeconds
		}
	}
	return accepted(ChangeBoard)
}

// AddTeam appends an empty team with a generated id.
type AddTeam struct {
	Name string
}

func (c AddTeam) apply(s *State, e *env) Result {
	name := c.Name
	if name == "" {
		name = fmt.Sprintf("Team %d", len(s.Teams)+1)
	}
	s.Teams = append(s.Teams, domain.Team{ID: e.shortID(), Name: name, Players: []string{}})
	return accepted(ChangeBoard)
}

// RemoveTeam drops a team. Log entries naming it stay; undoing them has no target.
// If the team held the turn, the turn passes to whichever team now sits at its position.
type RemoveTeam struct {
	ID string
}

func (c RemoveTeam) apply(s *State, _ *env) Result {
	i := s.teamIndex(c.ID)
	if i < 0 {
		return ignored(ReasonUnknownTeam)
	}
	s.Teams = append(s.Teams[:i], s.Teams[i+1:]...)
	if s.CurrentTurnTeamID == c.ID {
		s.CurrentTurnTeamID = ""
		if len(s.Teams) > 0 {
			s.CurrentTurnTeamID = s.Teams[i%len(s.Teams)].ID
		}
	}
	if s.PendingTurnTeamID == c.ID {
		s.PendingTurnTeamID = ""
	}
	return accepted(ChangeBoard)
}

type RenameTeam struct {
	ID   string
	Name string
}

func (c RenameTeam) apply(s *State, _ *env) Result {
	t := s.team(c.ID)
	if t == nil {
		return ignored(ReasonUnknownTeam)
	}
	t.Name = c.Name
	return accepted(ChangeBoard)
}

type SetTeamPlayers struct {
	ID      string
	Players []string
}

func (c SetTeamPlayers) apply(s *State, _ *env) Result {
	t := s.team(c.ID)
	if t == nil {
		return ignored(ReasonUnknownTeam)
	}
	t.Players = append([]string{}, c.Players...)
	return accepted(ChangeBoard)
}

type SetTitle struct{ Title string }

func (c SetTitle) apply(s *State, _ *env) Result {
	s.Title = c.Title
	return accepted(ChangeMeta)
}

type SetDescription struct{ Description string }

func (c SetDescription) apply(s *State, _ *env) Result {
	s.Description = c.Description
	return accepted(ChangeMeta)
}

// SetTimeLimit sets the per-question limit in seconds; nil removes it.
type SetTimeLimit struct{ Seconds *int }

func (c SetTimeLimit) apply(s *State, _ *env) Result {
	s.TimeLimit = cloneInt(c.Seconds)
	return accepted(ChangeMeta)
}

type SetTheme struct{ Theme string }

func (c SetTheme) apply(s *State, _ *env) Result {
	s.Theme = c.Theme
	if s.Theme == "" {
		s.Theme = domain.DefaultTheme
	}
	return accepted(ChangeMeta)
}

type SetPublic struct{ Public bool }

func (c SetPublic) apply(s *State, _ *env) Result {
	s.IsPublic = c.Public
	return accepted(ChangeMeta)
}

// ResetBoard clears every answered flag and leaves content and scores alone.
type ResetBoard struct{}

func (ResetBoard) apply(s *State, _ *env) Result {
	for ci := range s.Categories {
		for qi := range s.Categories[ci].Questions {
			s.Categories[ci].Questions[qi].Answered = false
		}
	}
	return accepted(ChangeBoard)
}

// ResetGame clears the board, zeroes scores and empties the selection, round and log.
type ResetGame struct{}

func (ResetGame) apply(s *State, e *env) Result {
	ResetBoard{}.apply(s, e)
	for i := range s.Teams {
		s.Teams[i].Score = 0
	}
	s.clearSelection()
	s.AdjustmentLog = []domain.AdjustmentEntry{}
	return accepted(ChangeBoard)
}
