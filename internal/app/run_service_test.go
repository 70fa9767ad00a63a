package app_test

import (
	"context"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"showdown-grid/internal/app"
	"showdown-grid/internal/domain"
	"showdown-grid/internal/infra/memory"
)

func TestRunLifecycle(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	user := env.anon(t)
	quiz, err := env.quizSvc.Save(ctx, user, sampleDoc())
	require.NoError(t, err)

	_, err = env.runSvc.Active(ctx, user, quiz.ID)
	require.ErrorIs(t, err, domain.ErrRunNotFound)

	start := env.now
	run, err := env.runSvc.Start(ctx, user, domain.StartRunRequest{
		QuizID:     quiz.ID,
		StartedAt:  start,
		FinalState: sampleDoc().State(),
	})
	require.NoError(t, err)
	assert.True(t, run.Live())
	assert.Equal(t, "Friday Night", run.QuizTitle)

	active, err := env.runSvc.Active(ctx, user, quiz.ID)
	require.NoError(t, err)
	assert.Equal(t, run.ID, active.ID)

	state := sampleDoc().State()
	state.Teams[1].Score = 300
	_, err = env.runSvc.Update(ctx, user, run.ID, state)
	require.NoError(t, err)

	env.now = start.Add(90 * time.Second)
	done, err := env.runSvc.Complete(ctx, user, run.ID, state)
	require.NoError(t, err)
	require.NotNil(t, done.EndedAt)
	require.NotNil(t, done.DurationSeconds)
	assert.Equal(t, 90, *done.DurationSeconds)
	assert.Equal(t, 2, done.TotalQuestions)
	assert.Equal(t, 1, done.AnsweredQuestions)
	assert.Equal(t, 50.0, done.CompletionPercentage)
	require.NotNil(t, done.WinningTeamName)
	assert.Equal(t, "Bravo", *done.WinningTeamName)
	assert.Equal(t, 300, *done.WinningScore)

	_, err = env.runSvc.Update(ctx, user, run.ID, state)
	require.ErrorIs(t, err, domain.ErrRunCompleted)
	_, err = env.runSvc.Complete(ctx, user, run.ID, state)
	require.ErrorIs(t, err, domain.ErrRunCompleted)

	_, err = env.runSvc.Active(ctx, user, quiz.ID)
	require.ErrorIs(t, err, domain.ErrRunNotFound)

	list, err := env.runSvc.List(ctx, user, quiz.ID, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, run.ID, list[0].ID)
}

func TestStartWithEndedAtIsCompleted(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	user := env.anon(t)
	quiz, err := env.quizSvc.Save(ctx, user, sampleDoc())
	require.NoError(t, err)

	start := env.now.Add(-10 * time.Minute)
	end := env.now
	run, err := env.runSvc.Start(ctx, user, domain.StartRunRequest{
		QuizID:     quiz.ID,
		StartedAt:  start,
		EndedAt:    &end,
		FinalState: sampleDoc().State(),
	})
	require.NoError(t, err)
	assert.False(t, run.Live())
	assert.Equal(t, 600, *run.DurationSeconds)
	assert.Equal(t, "Alpha", *run.WinningTeamName)

	_, err = env.runSvc.Active(ctx, user, quiz.ID)
	require.ErrorIs(t, err, domain.ErrRunNotFound)
}

func TestRunsArePrivate(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	owner := env.anon(t)
	other := env.anon(t)
	quiz, err := env.quizSvc.Save(ctx, owner, sampleDoc())
	require.NoError(t, err)

	_, err = env.runSvc.Start(ctx, other, domain.StartRunRequest{QuizID: quiz.ID})
	require.ErrorIs(t, err, domain.ErrForbidden)

	run, err := env.runSvc.Start(ctx, owner, domain.StartRunRequest{QuizID: quiz.ID})
	require.NoError(t, err)
	assert.Equal(t, env.now, run.StartedAt)

	_, err = env.runSvc.Get(ctx, other, run.ID)
	require.ErrorIs(t, err, domain.ErrRunNotFound)
	require.ErrorIs(t, env.runSvc.Delete(ctx, other, run.ID), domain.ErrRunNotFound)
	require.NoError(t, env.runSvc.Delete(ctx, owner, run.ID))

	_, err = env.runSvc.Start(ctx, owner, domain.StartRunRequest{})
	require.ErrorIs(t, err, domain.ErrValidation)
	_, err = env.runSvc.Start(ctx, owner, domain.StartRunRequest{QuizID: "missing"})
	require.ErrorIs(t, err, domain.ErrQuizNotFound)
}

func TestListLimitDefaults(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	user := env.anon(t)
	quiz, err := env.quizSvc.Save(ctx, user, sampleDoc())
	require.NoError(t, err)

	for i := 0; i < app.DefaultRunListLimit+5; i++ {
		end := env.now.Add(time.Duration(i) * time.Minute)
		_, err := env.runSvc.Start(ctx, user, domain.StartRunRequest{QuizID: quiz.ID, StartedAt: env.now, EndedAt: &end})
		require.NoError(t, err)
	}

	list, err := env.runSvc.List(ctx, user, "", 0)
	require.NoError(t, err)
	assert.Len(t, list, app.DefaultRunListLimit)
	assert.True(t, list[0].EndedAt.After(*list[1].EndedAt))

	list, err = env.runSvc.List(ctx, user, quiz.ID, 3)
	require.NoError(t, err)
	assert.Len(t, list, 3)
}

func TestExportCSV(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	user := env.anon(t)
	quiz, err := env.quizSvc.Save(ctx, user, sampleDoc())
	require.NoError(t, err)

	state := sampleDoc().State()
	state.Teams = append(state.Teams, domain.Team{ID: "C", Name: "Charlie", Score: 100})
	end := env.now
	run, err := env.runSvc.Start(ctx, user, domain.StartRunRequest{QuizID: quiz.ID, StartedAt: env.now, EndedAt: &end, FinalState: state})
	require.NoError(t, err)

	data, err := env.runSvc.ExportCSV(ctx, user, run.ID)
	require.NoError(t, err)

	records, err := csv.NewReader(strings.NewReader(string(data))).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, []string{"Rank", "Team", "Score"}, records[0])
	assert.Equal(t, []string{"1", "Alpha", "100"}, records[1])
	assert.Equal(t, []string{"1", "Charlie", "100"}, records[2])
	assert.Equal(t, []string{"3", "Bravo", "0"}, records[3])
}

// racingRuns runs onRead once, right after the next GetRun has read its row.
type racingRuns struct {
	*memory.SessionStore
	onRead func()
}

func (r *racingRuns) GetRun(ctx context.Context, runID string) (domain.QuizRun, error) {
	run, err := r.SessionStore.GetRun(ctx, runID)
	if hook := r.onRead; hook != nil {
		r.onRead = nil
		hook()
	}
	return run, err
}

func TestUpdateLosesToConcurrentComplete(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	runs := &racingRuns{SessionStore: env.runs}
	clock := func() time.Time { return env.now }
	runSvc := app.NewRunServiceWithClock(runs, env.quizzes, clock)

	user := env.anon(t)
	quiz, err := env.quizSvc.Save(ctx, user, sampleDoc())
	require.NoError(t, err)
	run, err := runSvc.Start(ctx, user, domain.StartRunRequest{
		QuizID:     quiz.ID,
		StartedAt:  env.now,
		FinalState: sampleDoc().State(),
	})
	require.NoError(t, err)

	final := sampleDoc().State()
	final.Teams[1].Score = 300
	env.now = env.now.Add(time.Minute)
	runs.onRead = func() {
		_, err := runSvc.Complete(ctx, user, run.ID, final)
		require.NoError(t, err)
	}

	_, err = runSvc.Update(ctx, user, run.ID, sampleDoc().State())
	require.ErrorIs(t, err, domain.ErrRunCompleted)

	stored, err := runSvc.Get(ctx, user, run.ID)
	require.NoError(t, err)
	assert.False(t, stored.Live())
	require.NotNil(t, stored.EndedAt)
	assert.Equal(t, 2, stored.TotalQuestions)
	assert.Equal(t, 300, stored.FinalState.Teams[1].Score)
	require.NotNil(t, stored.WinningTeamName)
	assert.Equal(t, "Bravo", *stored.WinningTeamName)

	_, err = runSvc.Active(ctx, user, quiz.ID)
	require.ErrorIs(t, err, domain.ErrRunNotFound)
}
