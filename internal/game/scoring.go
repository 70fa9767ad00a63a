package game

import (
	"fmt"
	"math"

	"showdown-grid/internal/domain"
)

// SelectQuestion opens a board question by id and starts a fresh round.
type SelectQuestion struct {
	CategoryID string
	QuestionID string
}

func (c SelectQuestion) apply(s *State, e *env) Result {
	ci := s.categoryIndex(c.CategoryID)
	if ci < 0 {
		return ignored(ReasonUnknownCategory)
	}
	cat := s.Categories[ci]
	for i, q := range cat.Questions {
		if q.ID != c.QuestionID {
			continue
		}
		return SetLastQuestion{Question: snapshot(cat, i)}.apply(s, e)
	}
	return ignored(ReasonUnknownQuestion)
}

func snapshot(cat domain.Category, index int) *domain.LastQuestion {
	q := cat.Questions[index]
	lq := &domain.LastQuestion{
		CategoryID:    cat.ID,
		QuestionID:    q.ID,
		CategoryName:  cat.Name,
		QuestionIndex: index,
		Points:        q.Points,
		Question:      q.Question,
		Answer:        q.Answer,
		ImageURL:      q.ImageURL,
		IsJoker:       q.IsJoker,
		JokerTask:     q.JokerTask,
		JokerTimer:    q.JokerTimer,
	}
	if lq.IsJoker && lq.JokerTimer <= 0 {
		lq.JokerTimer = domain.DefaultJokerSeconds
	}
	return lq
}

// SetLastQuestion installs a question snapshot (nil closes the view). The round
// is always reset, whatever happened to the previous one.
type SetLastQuestion struct {
	Question *domain.LastQuestion
}

func (c SetLastQuestion) apply(s *State, _ *env) Result {
	s.LastQuestion = nil
	if c.Question != nil {
		lq := *c.Question
		s.LastQuestion = &lq
	}
	s.QuestionOpen = c.Question != nil
	s.Round = emptyRound(c.Question != nil)
	return accepted(0)
}

type SetQuestionOpen struct {
	Open bool
}

func (c SetQuestionOpen) apply(s *State, _ *env) Result {
	s.QuestionOpen = c.Open
	return accepted(0)
}

// Penalty is the default deduction for a wrong answer: half the face value,
// rounded half away from zero (101 -> 51).
func Penalty(points int) int {
	return int(math.Round(float64(points) * 0.5))
}

// AwardPositive scores the open question for a team and closes scoring for the round.
// CustomPoints overrides the face value; a deviation is written to the log.
type AwardPositive struct {
	TeamID       string
	CustomPoints *int
}

func (c AwardPositive) apply(s *State, e *env) Result {
	if s.LastQuestion == nil {
		return ignored(ReasonNoActiveQuestion)
	}
	if s.Round.PositiveTeamID != "" {
		return ignored(ReasonRoundClosed)
	}
	t := s.team(c.TeamID)
	if t == nil {
		return ignored(ReasonUnknownTeam)
	}
	face := s.LastQuestion.Points
	points := face
	if c.CustomPoints != nil {
		points = *c.CustomPoints
	}
	s.markSelectedAnswered()
	t.Score += points
	s.Round.PositiveTeamID = t.ID
	if points != face {
		s.appendEntry(e, t, points-face, domain.AdjustmentCustomScoring,
			fmt.Sprintf("custom score %d instead of %d", points, face))
	}
	return accepted(ChangeBoard)
}

// AwardNegative deducts a penalty from a team. The round stays open.
type AwardNegative struct {
	TeamID       string
	CustomPoints *int
}

func (c AwardNegative) apply(s *State, e *env) Result {
	if s.LastQuestion == nil {
		return ignored(ReasonNoActiveQuestion)
	}
	if s.Round.PositiveTeamID != "" {
		return ignored(ReasonRoundClosed)
	}
	if s.Round.Penalized(c.TeamID) {
		return ignored(ReasonAlreadyPenalized)
	}
	t := s.team(c.TeamID)
	if t == nil {
		return ignored(ReasonUnknownTeam)
	}
	def := Penalty(s.LastQuestion.Points)
	penalty := def
	if c.CustomPoints != nil {
		penalty = *c.CustomPoints
		if penalty < 0 {
			penalty = -penalty
		}
	}
	t.Score -= penalty
	s.Round.NegativeAwardedTo = append(s.Round.NegativeAwardedTo, t.ID)
	if penalty != def {
		s.appendEntry(e, t, def-penalty, domain.AdjustmentCustomScoring,
			fmt.Sprintf("custom penalty %d instead of %d", penalty, def))
	}
	return accepted(ChangeBoard)
}

// EndRound closes the open question, marking it answered even if nobody scored,
// and passes the turn on.
type EndRound struct{}

func (EndRound) apply(s *State, e *env) Result {
	return closeRound(s, e)
}

// SkipQuestion is EndRound with no points awarded to anyone.
type SkipQuestion struct{}

func (SkipQuestion) apply(s *State, e *env) Result {
	return closeRound(s, e)
}

func closeRound(s *State, e *env) Result {
	if s.LastQuestion == nil {
		return ignored(ReasonNoActiveQuestion)
	}
	var changes Changes
	if s.markSelectedAnswered() {
		changes = ChangeBoard
	}
	s.clearSelection()
	res := NextTurn{}.apply(s, e)
	res.Outcome, res.Reason = Accepted, ReasonNone
	res.Changes |= changes
	return res
}

// ManualAdjust applies a host correction at any time.
type ManualAdjust struct {
	TeamID string
	Delta  int
	Reason string
}

func (c ManualAdjust) apply(s *State, e *env) Result {
	t := s.team(c.TeamID)
	if t == nil {
		return ignored(ReasonUnknownTeam)
	}
	if c.Delta == 0 {
		return ignored(ReasonInvalidDelta)
	}
	t.Score += c.Delta
	s.appendEntry(e, t, c.Delta, domain.AdjustmentManual, c.Reason)
	return accepted(ChangeBoard)
}

// UndoAdjustment pops the newest log entry and reverses it on its team, if the team still exists.
type UndoAdjustment struct{}

func (UndoAdjustment) apply(s *State, _ *env) Result {
	n := len(s.AdjustmentLog)
	if n == 0 {
		return ignored(ReasonEmptyLog)
	}
	last := s.AdjustmentLog[n-1]
	s.AdjustmentLog = s.AdjustmentLog[:n-1]
	if t := s.team(last.TeamID); t != nil {
		t.Score -= last.Delta
	}
	return accepted(ChangeBoard)
}

func (s *State) appendEntry(e *env, t *domain.Team, delta int, typ domain.AdjustmentType, reason string) {
	s.AdjustmentLog = append(s.AdjustmentLog, domain.AdjustmentEntry{
		ID:               e.shortID(),
		TeamID:           t.ID,
		TeamNameSnapshot: t.Name,
		Delta:            delta,
		Reason:           reason,
		CreatedAt:        e.now.UnixMilli(),
		Type:             typ,
	})
}
