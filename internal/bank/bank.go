// Package bank holds the seed board a new quiz starts from.
package bank

import (
	"strconv"

	"github.com/google/uuid"

	"showdown-grid/internal/domain"
)

// DefaultPoints are the face values of a fresh category, top to bottom.
var DefaultPoints = []int{100, 200, 300, 400, 500}

type seedQuestion struct {
	points   int
	question string
	answer   string
	imageURL string
}

type seedCategory struct {
	name      string
	questions []seedQuestion
}

var seed = []seedCategory{
	{
		name: "U.S. PRESIDENTS",
		questions: []seedQuestion{
			{100, "Who was the first President of the United States?", "George Washington", ""},
			{200, "This president was known for the 'New Deal'.", "Franklin D. Roosevelt", ""},
			{300, "He was the 16th U.S. President and led the country through the Civil War.", "Abraham Lincoln", ""},
			{400, "Which president's likeness is on the $20 bill?", "Andrew Jackson", ""},
			{500, "He was the only president to serve non-consecutive terms.", "Grover Cleveland", ""},
		},
	},
	{
		name: "WORLD CAPITALS",
		questions: []seedQuestion{
			{100, "What is the capital of Japan?", "Tokyo", ""},
			{200, "This city is the capital of Canada.", "Ottawa", ""},
			{300, "What is the capital of Australia?", "Canberra", ""},
			{400, "This city, known for its pyramids, is the capital of Egypt.", "Cairo", ""},
			{500, "What is the capital of Brazil?", "Brasília", ""},
		},
	},
	{
		name: "SCIENCE & NATURE",
		questions: []seedQuestion{
			{100, "What is the chemical symbol for water?", "H2O", ""},
			{200, "What is the largest planet in our solar system?", "Jupiter", ""},
			{300, "This force keeps us on the ground.", "Gravity", ""},
			{400, "What is the process by which plants make their own food?", "Photosynthesis", ""},
			{500, "What animal is featured in this image?", "A red panda.",
				"https://images.unsplash.com/photo-1542842420-222b4597d748?auto=format&fit=crop&w=2070&q=80"},
		},
	},
	{
		name: "POP CULTURE",
		questions: []seedQuestion{
			{100, "Who wrote the 'Harry Potter' series?", "J.K. Rowling", ""},
			{200, "What is the name of the fictional city where Batman operates?", "Gotham City", ""},
			{300, "Which artist is known as the 'Queen of Pop'?", "Madonna", ""},
			{400, "In the movie 'The Matrix', what color pill does Neo take?", "The red pill", ""},
			{500, "What TV show is famous for the line, 'Winter is coming'?", "Game of Thrones", ""},
		},
	},
	{
		name: "SPORTS",
		questions: []seedQuestion{
			{100, "How many players are on a standard soccer team on the field at one time?", "11", ""},
			{200, "In which sport would you perform a slam dunk?", "Basketball", ""},
			{300, "What is the most-watched sporting event in the world?", "The Summer Olympics", ""},
			{400, "Which country has won the most FIFA World Cups?", "Brazil", ""},
			{500, "This athlete is widely considered the greatest hockey player of all time.", "Wayne Gretzky", ""},
		},
	},
}

// Categories returns a fresh copy of the seed board. Every call assigns new ids.
func Categories() []domain.Category {
	out := make([]domain.Category, 0, len(seed))
	for _, c := range seed {
		cat := domain.Category{ID: uuid.NewString(), Name: c.name}
		for _, q := range c.questions {
			cat.Questions = append(cat.Questions, domain.Question{
				ID:       uuid.NewString(),
				Points:   q.points,
				Question: q.question,
				Answer:   q.answer,
				ImageURL: q.imageURL,
			})
		}
		out = append(out, cat)
	}
	return out
}

// DefaultQuestions returns blank questions for a new category.
func DefaultQuestions() []domain.Question {
	out := make([]domain.Question, 0, len(DefaultPoints))
	for _, p := range DefaultPoints {
		out = append(out, domain.Question{ID: uuid.NewString(), Points: p})
	}
	return out
}

// DefaultTeams returns the starting roster of three teams.
func DefaultTeams() []domain.Team {
	teams := make([]domain.Team, 0, 3)
	for i := 1; i <= 3; i++ {
		n := strconv.Itoa(i)
		teams = append(teams, domain.Team{
			ID:      n,
			Name:    "Team " + n,
			Players: []string{"Player 1"},
		})
	}
	return teams
}

// DefaultState is the board a brand new quiz is created with.
func DefaultState() domain.RunState {
	return domain.RunState{
		Categories:    Categories(),
		Teams:         DefaultTeams(),
		AdjustmentLog: []domain.AdjustmentEntry{},
	}
}
