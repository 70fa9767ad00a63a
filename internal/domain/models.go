package domain

import "time"

// DefaultTheme is applied to quizzes saved without a theme.
const DefaultTheme = "classic"

// DefaultJokerSeconds is the countdown used for joker tasks without an explicit timer.
const DefaultJokerSeconds = 10

// Question is one tile on the board. It is addressed by ID; its index in the
// category only decides display order.
type Question struct {
	ID         string `json:"id"`
	Points     int    `json:"points"`
	Question   string `json:"question"`
	Answer     string `json:"answer"`
	ImageURL   string `json:"imageUrl,omitempty"`
	Answered   bool   `json:"answered"`
	IsJoker    bool   `json:"isJoker,omitempty"`
	JokerTask  string `json:"jokerTask,omitempty"`
	JokerTimer int    `json:"jokerTimer,omitempty"`
}

// Category is a board column.
type Category struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Questions []Question `json:"questions"`
}

// Team is a scoring unit. Score changes only through scoring operations.
type Team struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Score   int      `json:"score"`
	Players []string `json:"players"`
}

// LastQuestion is a value copy of the selected question. Edits to the board
// after selection never reach it.
type LastQuestion struct {
	CategoryID    string `json:"categoryId,omitempty"`
	QuestionID    string `json:"questionId,omitempty"`
	CategoryName  string `json:"categoryName"`
	QuestionIndex int    `json:"questionIndex"`
	Points        int    `json:"points"`
	Question      string `json:"question"`
	Answer        string `json:"answer"`
	ImageURL      string `json:"imageUrl,omitempty"`
	IsJoker       bool   `json:"isJoker,omitempty"`
	JokerTask     string `json:"jokerTask,omitempty"`
	JokerTimer    int    `json:"jokerTimer,omitempty"`
}

// RoundProgress tracks who scored on the open question.
type RoundProgress struct {
	Active            bool     `json:"active"`
	PositiveTeamID    string   `json:"positiveTeamId,omitempty"`
	NegativeAwardedTo []string `json:"negativeAwardedTo"`
}

// Penalized reports whether teamID already received a negative award this round.
func (r RoundProgress) Penalized(teamID string) bool {
	for _, id := range r.NegativeAwardedTo {
		if id == teamID {
			return true
		}
	}
	return false
}

// AdjustmentType distinguishes host corrections from off-script scoring.
type AdjustmentType string

const (
	AdjustmentManual        AdjustmentType = "manual"
	AdjustmentCustomScoring AdjustmentType = "custom_scoring"
)

// AdjustmentEntry is an immutable score-log record.
type AdjustmentEntry struct {
	ID               string         `json:"id"`
	TeamID           string         `json:"teamId"`
	TeamNameSnapshot string         `json:"teamNameSnapshot"`
	Delta            int            `json:"delta"`
	Reason           string         `json:"reason,omitempty"`
	CreatedAt        int64          `json:"createdAt"`
	Type             AdjustmentType `json:"type"`
}

// RunState is the board snapshot stored on a quiz run (finalState on the wire).
type RunState struct {
	Categories    []Category        `json:"categories"`
	Teams         []Team            `json:"teams"`
	AdjustmentLog []AdjustmentEntry `json:"adjustmentLog"`
}

// QuizMetadata describes a saved quiz without its board.
type QuizMetadata struct {
	ID                   string    `json:"id"`
	Title                string    `json:"title"`
	Description          string    `json:"description"`
	IsPublic             bool      `json:"is_public"`
	TimeLimit            *int      `json:"time_limit"`
	Theme                string    `json:"theme"`
	OwnerID              string    `json:"owner,omitempty"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
	IsOwnedByCurrentUser bool      `json:"isOwnedByCurrentUser,omitempty"`
}

// QuizRecord is a persisted quiz: metadata plus its board.
type QuizRecord struct {
	QuizMetadata
	Data RunState
}

// QuizDocument is the flat shape the client loads and saves.
type QuizDocument struct {
	QuizID          string            `json:"quizId,omitempty"`
	QuizOwnerID     string            `json:"quizOwnerId,omitempty"`
	QuizTitle       string            `json:"quizTitle"`
	QuizDescription string            `json:"quizDescription"`
	QuizTimeLimit   *int              `json:"quizTimeLimit"`
	QuizTheme       string            `json:"quizTheme"`
	QuizIsPublic    bool              `json:"quizIsPublic"`
	Categories      []Category        `json:"categories"`
	Teams           []Team            `json:"teams"`
	AdjustmentLog   []AdjustmentEntry `json:"adjustmentLog"`
}

// Document flattens a record into the client shape.
func (r QuizRecord) Document() QuizDocument {
	return QuizDocument{
		QuizID:          r.ID,
		QuizOwnerID:     r.OwnerID,
		QuizTitle:       r.Title,
		QuizDescription: r.Description,
		QuizTimeLimit:   r.TimeLimit,
		QuizTheme:       r.Theme,
		QuizIsPublic:    r.IsPublic,
		Categories:      r.Data.Categories,
		Teams:           r.Data.Teams,
		AdjustmentLog:   r.Data.AdjustmentLog,
	}
}

// State extracts the board part of a document.
func (d QuizDocument) State() RunState {
	return RunState{
		Categories:    d.Categories,
		Teams:         d.Teams,
		AdjustmentLog: d.AdjustmentLog,
	}
}

// CreateQuizRequest is the payload for creating a quiz.
type CreateQuizRequest struct {
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	SetAsActive bool      `json:"setAsActive,omitempty"`
	QuizData    *RunState `json:"quizData,omitempty"`
}

// TeamResult is a team's standing at the end of a run.
type TeamResult struct {
	TeamID     string `json:"teamId"`
	TeamName   string `json:"teamName"`
	FinalScore int    `json:"finalScore"`
	Rank       int    `json:"rank"`
}

// QuizRun is a play session. A run with EndedAt == nil is live.
type QuizRun struct {
	ID                   string       `json:"id"`
	QuizID               string       `json:"quizId"`
	UserID               string       `json:"userId"`
	StartedAt            time.Time    `json:"startedAt"`
	EndedAt              *time.Time   `json:"endedAt"`
	DurationSeconds      *int         `json:"durationSeconds"`
	QuizTitle            string       `json:"quizTitle"`
	QuizDescription      string       `json:"quizDescription,omitempty"`
	QuizTheme            string       `json:"quizTheme,omitempty"`
	QuizTimeLimit        *int         `json:"quizTimeLimit"`
	FinalState           RunState     `json:"finalState"`
	TotalQuestions       int          `json:"totalQuestions"`
	AnsweredQuestions    int          `json:"answeredQuestions"`
	CompletionPercentage float64      `json:"completionPercentage"`
	TeamResults          []TeamResult `json:"teamResults"`
	WinningTeamName      *string      `json:"winningTeamName"`
	WinningScore         *int         `json:"winningScore"`
	CreatedAt            time.Time    `json:"createdAt"`
	UpdatedAt            time.Time    `json:"updatedAt"`
}

// Live reports whether the run is still accepting snapshots.
func (r QuizRun) Live() bool {
	return r.EndedAt == nil
}

// Summary projects a run for history lists.
func (r QuizRun) Summary() RunSummary {
	return RunSummary{
		ID:                   r.ID,
		QuizID:               r.QuizID,
		QuizTitle:            r.QuizTitle,
		EndedAt:              r.EndedAt,
		DurationSeconds:      r.DurationSeconds,
		TotalQuestions:       r.TotalQuestions,
		AnsweredQuestions:    r.AnsweredQuestions,
		CompletionPercentage: r.CompletionPercentage,
		WinningTeamName:      r.WinningTeamName,
		WinningScore:         r.WinningScore,
	}
}

// RunSummary is the list projection of a run.
type RunSummary struct {
	ID                   string     `json:"id"`
	QuizID               string     `json:"quizId"`
	QuizTitle            string     `json:"quizTitle"`
	EndedAt              *time.Time `json:"endedAt"`
	DurationSeconds      *int       `json:"durationSeconds"`
	TotalQuestions       int        `json:"totalQuestions"`
	AnsweredQuestions    int        `json:"answeredQuestions"`
	CompletionPercentage float64    `json:"completionPercentage"`
	WinningTeamName      *string    `json:"winningTeamName"`
	WinningScore         *int       `json:"winningScore"`
}

// StartRunRequest opens a run. EndedAt set means the run is recorded already completed.
type StartRunRequest struct {
	QuizID     string     `json:"quizId"`
	StartedAt  time.Time  `json:"startedAt"`
	EndedAt    *time.Time `json:"endedAt,omitempty"`
	FinalState RunState   `json:"finalState"`
}

// Account is a user known to the server. Anonymous accounts have no email.
type Account struct {
	ID           string    `json:"id"`
	Email        string    `json:"email,omitempty"`
	PasswordHash string    `json:"-"`
	Anonymous    bool      `json:"isAnonymous"`
	ActiveQuizID string    `json:"activeQuizId,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Principal is the verified caller identity.
type Principal struct {
	UserID    string `json:"userId"`
	Anonymous bool   `json:"isAnonymous"`
}

// Session pairs a token with the principal it identifies.
type Session struct {
	Token string `json:"token"`
	Principal
	ExpiresAt time.Time `json:"expiresAt"`
}

// MigrationResult reports ownership transferred between identities.
type MigrationResult struct {
	Success          bool `json:"success"`
	QuizzesMigrated  int  `json:"quizzesMigrated"`
	SessionsMigrated int  `json:"sessionsMigrated"`
}

// Upload is a stored file reference.
type Upload struct {
	URL      string `json:"url"`
	FileName string `json:"fileName"`
}
