package gateway_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"showdown-grid/internal/app"
	"showdown-grid/internal/domain"
	"showdown-grid/internal/game"
	"showdown-grid/internal/gateway"
	"showdown-grid/internal/infra/filestore"
	"showdown-grid/internal/infra/memory"
	transport "showdown-grid/internal/transport/http"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func newServer(t *testing.T) string {
	t.Helper()
	quizzes := memory.NewQuizRepository()
	runs := memory.NewSessionStore()
	accounts := memory.NewAccountRepository()
	dir := t.TempDir()
	blobs, err := filestore.New(dir, "/uploads")
	require.NoError(t, err)

	h := transport.NewHandler(
		app.NewQuizService(quizzes, accounts),
		app.NewRunService(runs, quizzes),
		app.NewAccountService(accounts, quizzes, runs, "gateway-test", time.Hour),
		app.NewUploadService(blobs, app.DefaultMaxUploadBytes),
		transport.Options{UploadsDir: dir, Logger: discard},
	)
	srv := httptest.NewServer(h.Routes())
	t.Cleanup(srv.Close)
	return srv.URL
}

func TestClientErrorsUnwrapToSentinels(t *testing.T) {
	ctx := context.Background()
	client := gateway.New(newServer(t), nil)

	_, err := client.ActiveQuiz(ctx)
	require.Error(t, err)
	assert.True(t, gateway.IsUnauthorized(err))

	var apiErr *gateway.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 401, apiErr.Status)

	_, err = client.SignInAnonymous(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, client.Token())

	_, err = client.ActiveQuiz(ctx)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = client.CreateQuiz(ctx, domain.CreateQuizRequest{})
	assert.ErrorIs(t, err, domain.ErrValidation)

	meta, err := client.CreateQuiz(ctx, domain.CreateQuizRequest{Title: "Private"})
	require.NoError(t, err)
	err = client.ShareCode(ctx, meta.ID, io.Discard)
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestClientUploads(t *testing.T) {
	ctx := context.Background()
	client := gateway.New(newServer(t), nil)
	sess, err := client.SignInAnonymous(ctx)
	require.NoError(t, err)

	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	up, err := client.Upload(ctx, "board.png", png)
	require.NoError(t, err)
	assert.Contains(t, up.FileName, sess.UserID+"/")
	assert.Contains(t, up.URL, "/uploads/")

	_, err = client.Upload(ctx, "notes.txt", []byte("plain words"))
	assert.ErrorIs(t, err, domain.ErrUnsupportedMedia)

	require.NoError(t, client.DeleteUpload(ctx, up.FileName))
	assert.ErrorIs(t, client.DeleteUpload(ctx, up.FileName), domain.ErrNotFound)
}

func TestStoreOverGateway(t *testing.T) {
	ctx := context.Background()
	baseURL := newServer(t)
	client := gateway.New(baseURL, nil)
	anon, err := client.SignInAnonymous(ctx)
	require.NoError(t, err)

	opts := game.Options{
		QuizSaveDelay:    time.Hour,
		SessionSaveDelay: time.Hour,
		Logger:           discard,
	}
	store := game.New(client, opts)
	t.Cleanup(store.Close)

	require.NoError(t, store.Load(ctx))
	st := store.Status()
	assert.True(t, st.Authenticated)
	assert.False(t, st.Loading)
	assert.Empty(t, store.Snapshot().QuizID)

	store.Dispatch(game.SetTitle{Title: "Trivia Night"})
	require.NoError(t, store.Flush(ctx))
	snap := store.Snapshot()
	require.NotEmpty(t, snap.QuizID)
	assert.False(t, store.Status().HasUnsavedChanges)

	run, err := store.StartSession(ctx)
	require.NoError(t, err)
	assert.True(t, run.Live())

	cat := snap.Categories[0]
	q := cat.Questions[0]
	team := snap.Teams[0]
	res := store.Dispatch(game.SelectQuestion{CategoryID: cat.ID, QuestionID: q.ID})
	require.Equal(t, game.Accepted, res.Outcome)
	res = store.Dispatch(game.AwardPositive{TeamID: team.ID})
	require.Equal(t, game.Accepted, res.Outcome)

	require.NoError(t, store.SaveSession(ctx))
	live, err := client.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, q.Points, live.FinalState.Teams[0].Score)

	done, err := store.CompleteSession(ctx)
	require.NoError(t, err)
	require.NotNil(t, done.EndedAt)
	assert.Equal(t, 1, done.AnsweredQuestions)
	require.NotNil(t, done.WinningTeamName)
	assert.Equal(t, team.Name, *done.WinningTeamName)
	assert.Empty(t, store.Status().ActiveRunID)

	runs, err := client.ListRuns(ctx, snap.QuizID, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, run.ID, runs[0].ID)

	var csv bytes.Buffer
	require.NoError(t, client.ExportRun(ctx, run.ID, &csv))
	assert.Contains(t, csv.String(), "Rank,Team,Score")

	// A fresh store for the same identity picks up the saved quiz.
	require.NoError(t, store.Flush(ctx))
	again := game.New(client, opts)
	t.Cleanup(again.Close)
	require.NoError(t, again.Load(ctx))
	assert.Equal(t, snap.QuizID, again.Snapshot().QuizID)
	assert.Equal(t, "Trivia Night", again.Snapshot().Title)

	// Registering from the anonymous token keeps the data.
	reg, err := client.Register(ctx, "host@example.com", "hunter22")
	require.NoError(t, err)
	assert.NotEqual(t, anon.UserID, reg.UserID)
	quizzes, err := client.ListQuizzes(ctx)
	require.NoError(t, err)
	require.Len(t, quizzes, 1)
	assert.Equal(t, snap.QuizID, quizzes[0].ID)
}
