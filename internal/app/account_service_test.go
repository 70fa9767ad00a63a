package app_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"showdown-grid/internal/domain"
)

func TestAnonymousTokenVerifies(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	sess, err := env.accountSvc.SignInAnonymous(ctx)
	require.NoError(t, err)
	assert.True(t, sess.Anonymous)
	assert.Equal(t, env.now.Add(time.Hour), sess.ExpiresAt)

	p, err := env.accountSvc.Verify(ctx, sess.Token)
	require.NoError(t, err)
	assert.Equal(t, sess.UserID, p.UserID)
	assert.True(t, p.Anonymous)

	env.now = env.now.Add(2 * time.Hour)
	_, err = env.accountSvc.Verify(ctx, sess.Token)
	require.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = env.accountSvc.Verify(ctx, "not-a-token")
	require.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	_, err := env.accountSvc.Register(ctx, "nope", "secret123", nil)
	require.ErrorIs(t, err, domain.ErrValidation)
	_, err = env.accountSvc.Register(ctx, "host@example.com", "123", nil)
	require.ErrorIs(t, err, domain.ErrValidation)

	sess, err := env.accountSvc.Register(ctx, " Host@Example.com ", "secret123", nil)
	require.NoError(t, err)
	assert.False(t, sess.Anonymous)

	_, err = env.accountSvc.Register(ctx, "host@example.com", "other-pass", nil)
	require.ErrorIs(t, err, domain.ErrEmailTaken)

	login, err := env.accountSvc.Login(ctx, "HOST@example.com", "secret123")
	require.NoError(t, err)
	assert.Equal(t, sess.UserID, login.UserID)

	_, err = env.accountSvc.Login(ctx, "host@example.com", "wrong-pass")
	require.ErrorIs(t, err, domain.ErrInvalidCredentials)
	_, err = env.accountSvc.Login(ctx, "ghost@example.com", "secret123")
	require.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestRegisterFromAnonymousMovesData(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	anon := env.anon(t)

	quiz, err := env.quizSvc.Save(ctx, anon, sampleDoc())
	require.NoError(t, err)
	_, err = env.runSvc.Start(ctx, anon, domain.StartRunRequest{QuizID: quiz.ID})
	require.NoError(t, err)

	sess, err := env.accountSvc.Register(ctx, "host@example.com", "secret123", &anon)
	require.NoError(t, err)

	doc, err := env.quizSvc.ActiveQuiz(ctx, sess.Principal)
	require.NoError(t, err)
	assert.Equal(t, quiz.ID, doc.QuizID)
	assert.Equal(t, sess.UserID, doc.QuizOwnerID)

	run, err := env.runSvc.Active(ctx, sess.Principal, quiz.ID)
	require.NoError(t, err)
	assert.Equal(t, sess.UserID, run.UserID)

	left, err := env.quizSvc.List(ctx, anon)
	require.NoError(t, err)
	assert.Empty(t, left)
}

func TestMigrateRules(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	anon := env.anon(t)
	_, err := env.quizSvc.Save(ctx, anon, sampleDoc())
	require.NoError(t, err)

	reg, err := env.accountSvc.Register(ctx, "host@example.com", "secret123", nil)
	require.NoError(t, err)
	other, err := env.accountSvc.Register(ctx, "other@example.com", "secret123", nil)
	require.NoError(t, err)

	_, err = env.accountSvc.Migrate(ctx, other.Principal, anon.UserID, reg.UserID)
	require.ErrorIs(t, err, domain.ErrForbidden)

	_, err = env.accountSvc.Migrate(ctx, reg.Principal, reg.UserID, reg.UserID)
	require.ErrorIs(t, err, domain.ErrValidation)

	_, err = env.accountSvc.Migrate(ctx, reg.Principal, other.UserID, reg.UserID)
	require.ErrorIs(t, err, domain.ErrForbidden, "registered accounts cannot be drained")

	res, err := env.accountSvc.Migrate(ctx, reg.Principal, anon.UserID, reg.UserID)
	require.NoError(t, err)
	assert.Equal(t, domain.MigrationResult{Success: true, QuizzesMigrated: 1, SessionsMigrated: 0}, res)

	res, err = env.accountSvc.Migrate(ctx, reg.Principal, anon.UserID, reg.UserID)
	require.NoError(t, err)
	assert.Equal(t, 0, res.QuizzesMigrated)
}
