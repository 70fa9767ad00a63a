package bank

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategoriesHaveFiveQuestionsEach(t *testing.T) {
	cats := Categories()
	require.Len(t, cats, 5)
	for _, c := range cats {
		require.Len(t, c.Questions, 5, c.Name)
		for i, q := range c.Questions {
			assert.Equal(t, DefaultPoints[i], q.Points)
			assert.NotEmpty(t, q.ID)
			assert.False(t, q.Answered)
		}
	}
}

func TestCategoriesReturnFreshIDs(t *testing.T) {
	a, b := Categories(), Categories()
	assert.NotEqual(t, a[0].ID, b[0].ID)
	a[0].Questions[0].Answered = true
	assert.False(t, b[0].Questions[0].Answered)
}

func TestDefaultTeams(t *testing.T) {
	teams := DefaultTeams()
	require.Len(t, teams, 3)
	assert.Equal(t, "1", teams[0].ID)
	assert.Equal(t, "Team 3", teams[2].Name)
	assert.Equal(t, []string{"Player 1"}, teams[1].Players)
}
