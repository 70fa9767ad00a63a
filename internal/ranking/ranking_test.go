package ranking

import (
	"math/rand"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"showdown-grid/internal/domain"
)

func team(id, name string, score int) domain.Team {
	return domain.Team{ID: id, Name: name, Score: score}
}

func ranks(s []Standing) []int {
	out := make([]int, len(s))
	for i := range s {
		out[i] = s[i].Rank
	}
	return out
}

func TestRankCompetitionSkipsAfterTie(t *testing.T) {
	got := Rank([]domain.Team{team("a", "A", 300), team("b", "B", 100), team("c", "C", 300)})
	assert.Equal(t, []int{1, 1, 3}, ranks(got))
	assert.Equal(t, "A", got[0].Team.Name)
	assert.Equal(t, "C", got[1].Team.Name)
}

func TestRankTiesOrderedByName(t *testing.T) {
	teams := []domain.Team{
		team("team2", "Zebras", 500),
		team("team3", "Owls", 200),
		team("team1", "Antelopes", 500),
	}
	got := Rank(teams)
	require.Len(t, got, 3)
	assert.Equal(t, "team1", got[0].Team.ID)
	assert.Equal(t, 1, got[0].Rank)
	assert.Equal(t, "team2", got[1].Team.ID)
	assert.Equal(t, 1, got[1].Rank)
	assert.Equal(t, "team3", got[2].Team.ID)
	assert.Equal(t, 3, got[2].Rank)
}

func TestRankNameOrderIgnoresCase(t *testing.T) {
	got := Rank([]domain.Team{team("1", "Zulu", 0), team("2", "alpha", 0)})
	assert.Equal(t, "alpha", got[0].Team.Name)
}

func TestRankDoesNotMutateInput(t *testing.T) {
	teams := []domain.Team{team("a", "A", 1), team("b", "B", 2)}
	Rank(teams)
	assert.Equal(t, "a", teams[0].ID)
}

func TestRankIsStableUnderReRanking(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for round := 0; round < 50; round++ {
		n := r.Intn(8)
		teams := make([]domain.Team, n)
		for i := range teams {
			teams[i] = team(strconv.Itoa(i), "T"+strconv.Itoa(r.Intn(4)), r.Intn(4)*100)
		}
		first := Rank(teams)
		sorted := make([]domain.Team, len(first))
		for i, s := range first {
			sorted[i] = s.Team
		}
		second := Rank(sorted)
		require.Equal(t, first, second)

		for i := 1; i < len(first); i++ {
			prev, cur := first[i-1], first[i]
			require.GreaterOrEqual(t, prev.Team.Score, cur.Team.Score)
			if prev.Team.Score == cur.Team.Score {
				require.Equal(t, prev.Rank, cur.Rank)
			} else {
				require.Equal(t, i+1, cur.Rank)
			}
		}
	}
}

func TestPodiumGroupsTopThreeRanks(t *testing.T) {
	st := Rank([]domain.Team{
		team("a", "A", 10), team("b", "B", 10), team("c", "C", 5), team("d", "D", 1),
	})
	groups := Podium(st)
	assert.Len(t, groups[1], 2)
	assert.Len(t, groups[2], 0)
	assert.Len(t, groups[3], 1)
	_, ok := groups[4]
	assert.False(t, ok)
}

func TestSummarize(t *testing.T) {
	state := domain.RunState{
		Categories: []domain.Category{{
			Name: "SCIENCE",
			Questions: []domain.Question{
				{Points: 100, Answered: true},
				{Points: 200},
				{Points: 300, Answered: true},
			},
		}},
		Teams: []domain.Team{team("a", "A", 100), team("b", "B", 400)},
	}
	start := time.Date(2024, 5, 1, 20, 0, 0, 0, time.UTC)
	st := Summarize(state, start, start.Add(90*time.Second+600*time.Millisecond))

	assert.Equal(t, 3, st.TotalQuestions)
	assert.Equal(t, 2, st.AnsweredQuestions)
	assert.Equal(t, 66.67, st.CompletionPercentage)
	assert.Equal(t, 91, st.DurationSeconds)
	require.NotNil(t, st.WinningTeamName)
	assert.Equal(t, "B", *st.WinningTeamName)
	assert.Equal(t, 400, *st.WinningScore)
	assert.Equal(t, 2, st.TeamResults[1].Rank)
}

func TestSummarizeWithoutTeams(t *testing.T) {
	st := Summarize(domain.RunState{}, time.Unix(0, 0), time.Unix(10, 0))
	assert.Nil(t, st.WinningTeamName)
	assert.Nil(t, st.WinningScore)
	assert.Zero(t, st.CompletionPercentage)
	assert.Empty(t, st.TeamResults)
}

func TestStatsApply(t *testing.T) {
	end := time.Unix(100, 0)
	run := domain.QuizRun{}
	Summarize(domain.RunState{Teams: []domain.Team{team("a", "A", 5)}}, time.Unix(40, 0), end).Apply(&run, end)
	require.NotNil(t, run.EndedAt)
	assert.False(t, run.Live())
	assert.Equal(t, 60, *run.DurationSeconds)
	assert.Equal(t, "A", *run.WinningTeamName)
}
