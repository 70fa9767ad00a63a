// Package ranking derives standings and run statistics from team scores.
package ranking

import (
	"math"
	"sort"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"showdown-grid/internal/domain"
)

// Locale orders team names that share a score.
var Locale = language.MustParse("nb")

// Standing is a team with its competition rank.
type Standing struct {
	Team domain.Team
	Rank int
}

// Rank sorts teams by score descending and assigns competition ranks (1,1,3).
// Equal scores are ordered by name using Locale, then by id.
func Rank(teams []domain.Team) []Standing {
	sorted := make([]domain.Team, len(teams))
	copy(sorted, teams)

	// Collator keeps internal buffers; one per call.
	col := collate.New(Locale)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if c := col.CompareString(a.Name, b.Name); c != 0 {
			return c < 0
		}
		return a.ID < b.ID
	})

	out := make([]Standing, len(sorted))
	for i, t := range sorted {
		rank := i + 1
		if i > 0 && t.Score == sorted[i-1].Score {
			rank = out[i-1].Rank
		}
		out[i] = Standing{Team: t, Rank: rank}
	}
	return out
}

// Podium groups standings by rank for places 1 to 3. Missing places are absent.
func Podium(standings []Standing) map[int][]Standing {
	groups := make(map[int][]Standing)
	for _, s := range standings {
		if s.Rank > 3 {
			continue
		}
		groups[s.Rank] = append(groups[s.Rank], s)
	}
	return groups
}

// Stats are the figures stamped on a completed run.
type Stats struct {
	TotalQuestions       int
	AnsweredQuestions    int
	CompletionPercentage float64
	DurationSeconds      int
	TeamResults          []domain.TeamResult
	WinningTeamName      *string
	WinningScore         *int
}

// Summarize computes run statistics from a board snapshot.
func Summarize(state domain.RunState, startedAt, endedAt time.Time) Stats {
	var st Stats
	for _, c := range state.Categories {
		st.TotalQuestions += len(c.Questions)
		for _, q := range c.Questions {
			if q.Answered {
				st.AnsweredQuestions++
			}
		}
	}
	if st.TotalQuestions > 0 {
		pct := float64(st.AnsweredQuestions) / float64(st.TotalQuestions) * 100
		st.CompletionPercentage = math.Round(pct*100) / 100
	}
	st.DurationSeconds = int(math.Round(endedAt.Sub(startedAt).Seconds()))

	standings := Rank(state.Teams)
	st.TeamResults = make([]domain.TeamResult, 0, len(standings))
	for _, s := range standings {
		st.TeamResults = append(st.TeamResults, domain.TeamResult{
			TeamID:     s.Team.ID,
			TeamName:   s.Team.Name,
			FinalScore: s.Team.Score,
			Rank:       s.Rank,
		})
	}
	if len(standings) > 0 {
		name := standings[0].Team.Name
		score := standings[0].Team.Score
		st.WinningTeamName = &name
		st.WinningScore = &score
	}
	return st
}

// Apply stamps the statistics and end time onto run.
func (s Stats) Apply(run *domain.QuizRun, endedAt time.Time) {
	d := s.DurationSeconds
	run.EndedAt = &endedAt
	run.DurationSeconds = &d
	run.TotalQuestions = s.TotalQuestions
	run.AnsweredQuestions = s.AnsweredQuestions
	run.CompletionPercentage = s.CompletionPercentage
	run.TeamResults = s.TeamResults
	run.WinningTeamName = s.WinningTeamName
	run.WinningScore = s.WinningScore
}
