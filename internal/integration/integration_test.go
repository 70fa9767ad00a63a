package integration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"

	"showdown-grid/internal/app"
	"showdown-grid/internal/domain"
	pgrepo "showdown-grid/internal/infra/postgres"
	pgmigrations "showdown-grid/internal/infra/postgres/migrations"
	infraredis "showdown-grid/internal/infra/redis"
)

type stack struct {
	quizzes  *app.QuizService
	runs     *app.RunService
	accounts *app.AccountService
	redis    *goredis.Client
	pool     *pgxpool.Pool
}

func newStack(t *testing.T, ctx context.Context) *stack {
	t.Helper()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	t.Cleanup(pgCleanup)
	redisURL, redisCleanup := startRedis(t, ctx)
	t.Cleanup(redisCleanup)

	migrateSchema(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	t.Cleanup(pool.Close)

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	t.Cleanup(func() { _ = redisClient.Close() })

	quizzes := infraredis.NewQuizRepository(redisClient, pgrepo.NewQuizRepository(pool), 5*time.Minute)
	runs := infraredis.NewSessionStore(redisClient, pgrepo.NewRunRepository(pool), 5*time.Minute)
	accounts := pgrepo.NewAccountRepository(pool)

	return &stack{
		quizzes:  app.NewQuizService(quizzes, accounts),
		runs:     app.NewRunService(runs, quizzes),
		accounts: app.NewAccountService(accounts, quizzes, runs, "integration", time.Hour),
		redis:    redisClient,
		pool:     pool,
	}
}

func TestHostFlowEndToEnd(t *testing.T) {
	ctx := context.Background()
	s := newStack(t, ctx)

	sess, err := s.accounts.SignInAnonymous(ctx)
	if err != nil {
		t.Fatalf("anonymous: %v", err)
	}
	anon, err := s.accounts.Verify(ctx, sess.Token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}

	if _, err := s.quizzes.ActiveQuiz(ctx, anon); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected no active quiz, got %v", err)
	}

	doc := domain.QuizDocument{
		QuizTitle: "Pub Night",
		Categories: []domain.Category{{ID: "c1", Name: "SCIENCE", Questions: []domain.Question{
			{ID: "q1", Points: 100, Question: "H2O?", Answer: "Water", Answered: true},
			{ID: "q2", Points: 200, Question: "Au?", Answer: "Gold"},
		}}},
		Teams: []domain.Team{{ID: "A", Name: "Alpha", Score: 100}, {ID: "B", Name: "Bravo"}},
	}
	meta, err := s.quizzes.Save(ctx, anon, doc)
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	active, err := s.quizzes.ActiveQuiz(ctx, anon)
	if err != nil {
		t.Fatalf("active quiz: %v", err)
	}
	if active.QuizID != meta.ID || active.QuizTitle != "Pub Night" || len(active.Categories[0].Questions) != 2 {
		t.Fatalf("unexpected active quiz %+v", active)
	}
	if n, err := s.redis.Exists(ctx, "quiz:"+meta.ID).Result(); err != nil || n != 1 {
		t.Fatalf("expected quiz cached in redis, n=%d err=%v", n, err)
	}

	run, err := s.runs.Start(ctx, anon, domain.StartRunRequest{
		QuizID:     meta.ID,
		StartedAt:  time.Now().Add(-2 * time.Minute).UTC(),
		FinalState: active.State(),
	})
	if err != nil {
		t.Fatalf("start run: %v", err)
	}
	live, err := s.runs.Active(ctx, anon, meta.ID)
	if err != nil || live.ID != run.ID {
		t.Fatalf("expected live run %s, got %s err=%v", run.ID, live.ID, err)
	}

	final := active.State()
	final.Teams[1].Score = 200
	final.Categories[0].Questions[1].Answered = true
	done, err := s.runs.Complete(ctx, anon, run.ID, final)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done.WinningTeamName == nil || *done.WinningTeamName != "Bravo" || done.CompletionPercentage != 100 {
		t.Fatalf("unexpected completed run %+v", done)
	}
	if _, err := s.runs.Active(ctx, anon, meta.ID); !errors.Is(err, domain.ErrRunNotFound) {
		t.Fatalf("expected no live run after completion, got %v", err)
	}

	reopened := done
	reopened.EndedAt = nil
	if err := pgrepo.NewRunRepository(s.pool).UpdateRun(ctx, reopened); !errors.Is(err, domain.ErrRunCompleted) {
		t.Fatalf("expected completed run to refuse updates, got %v", err)
	}
	if err := pgrepo.NewRunRepository(s.pool).UpdateRun(ctx, domain.QuizRun{ID: "missing-run"}); !errors.Is(err, domain.ErrRunNotFound) {
		t.Fatalf("expected missing run, got %v", err)
	}

	history, err := s.runs.List(ctx, anon, meta.ID, 0)
	if err != nil || len(history) != 1 {
		t.Fatalf("expected one completed run, got %d err=%v", len(history), err)
	}

	registered, err := s.accounts.Register(ctx, "Host@Example.com", "secret123", &anon)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	owner := registered.Principal
	list, err := s.quizzes.List(ctx, owner)
	if err != nil || len(list) != 1 || list[0].ID != meta.ID {
		t.Fatalf("expected migrated quiz, got %+v err=%v", list, err)
	}
	history, err = s.runs.List(ctx, owner, "", 0)
	if err != nil || len(history) != 1 {
		t.Fatalf("expected migrated run, got %d err=%v", len(history), err)
	}
	if _, err := s.quizzes.ActiveQuiz(ctx, owner); err != nil {
		t.Fatalf("active quiz should follow the migration: %v", err)
	}

	if _, err := s.accounts.Login(ctx, "host@example.com", "secret123"); err != nil {
		t.Fatalf("login: %v", err)
	}
	if _, err := s.accounts.Register(ctx, "host@example.com", "another1", nil); !errors.Is(err, domain.ErrEmailTaken) {
		t.Fatalf("expected email taken, got %v", err)
	}
}

func TestPostgresRunHistoryOrdering(t *testing.T) {
	ctx := context.Background()
	s := newStack(t, ctx)

	sess, err := s.accounts.SignInAnonymous(ctx)
	if err != nil {
		t.Fatalf("anonymous: %v", err)
	}
	p := sess.Principal
	meta, err := s.quizzes.Create(ctx, p, domain.CreateQuizRequest{Title: "History", SetAsActive: true})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	base := time.Date(2024, 11, 22, 19, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		end := base.Add(time.Duration(i) * time.Hour)
		_, err := s.runs.Start(ctx, p, domain.StartRunRequest{
			QuizID:    meta.ID,
			StartedAt: end.Add(-30 * time.Minute),
			EndedAt:   &end,
			FinalState: domain.RunState{
				Teams: []domain.Team{{ID: "A", Name: fmt.Sprintf("Team %d", i), Score: i * 100}},
			},
		})
		if err != nil {
			t.Fatalf("start completed run %d: %v", i, err)
		}
	}

	runs, err := s.runs.List(ctx, p, meta.ID, 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected limit 2, got %d", len(runs))
	}
	if !runs[0].EndedAt.After(*runs[1].EndedAt) {
		t.Fatalf("expected newest first, got %v then %v", runs[0].EndedAt, runs[1].EndedAt)
	}
	if runs[0].WinningTeamName == nil || *runs[0].WinningTeamName != "Team 2" {
		t.Fatalf("unexpected newest run %+v", runs[0])
	}
}

func migrateSchema(t *testing.T, ctx context.Context, dsn string) {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "showdown", "POSTGRES_PASSWORD": "showdown", "POSTGRES_DB": "showdown"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForLog("database system is ready to accept connections").WithOccurrence(2).WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://showdown:showdown@%s:%s/showdown?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(opts), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
