package cli

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"showdown-grid/internal/app"
	"showdown-grid/internal/config"
	"showdown-grid/internal/infra/filestore"
	"showdown-grid/internal/infra/memory"
	pgrepo "showdown-grid/internal/infra/postgres"
	redisrepo "showdown-grid/internal/infra/redis"
	transport "showdown-grid/internal/transport/http"
)

const (
	defaultPort       = "8080"
	defaultUploadsDir = "uploads"
	defaultCacheTTL   = 10 * time.Minute
	defaultIOTimeout  = 15 * time.Second
	shutdownTimeout   = 5 * time.Second
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "serve",
		Aliases: []string{"start"},
		Short:   "Start the quiz API server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadOptional(opts.configPath)
			if err != nil {
				return err
			}
			return runServer(cmd.Context(), cfg, opts.port)
		},
	}
}

type repositories struct {
	quizzes  app.QuizRepository
	runs     app.RunRepository
	accounts app.AccountRepository
	closers  []func()
}

func (r *repositories) close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
}

// openRepositories picks postgres when configured, else process memory, and
// layers the redis (or in-process) caches on top.
func openRepositories(ctx context.Context, cfg config.Config) (*repositories, error) {
	repos := &repositories{}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		if err := runMigrations(ctx, cfg); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
		p, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		pool = p
		repos.closers = append(repos.closers, pool.Close)
		repos.quizzes = pgrepo.NewQuizRepository(pool)
		repos.runs = pgrepo.NewRunRepository(pool)
		repos.accounts = pgrepo.NewAccountRepository(pool)
		slog.Info("using postgres storage")
	} else {
		repos.quizzes = memory.NewQuizRepository()
		repos.runs = memory.NewSessionStore()
		repos.accounts = memory.NewAccountRepository()
		slog.Warn("postgres not configured, data lives in memory only")
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, defaultCacheTTL)
	switch {
	case cfg.Redis.Addr != "":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			repos.close()
			_ = client.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		repos.closers = append(repos.closers, func() { _ = client.Close() })
		sessionTTL := config.TTLDuration(cfg.Redis.TTL, defaultCacheTTL)
		repos.quizzes = redisrepo.NewQuizRepository(client, repos.quizzes, quizTTL)
		repos.runs = redisrepo.NewSessionStore(client, repos.runs, sessionTTL)
		slog.Info("using redis cache", "addr", cfg.Redis.Addr)
	case pool != nil:
		repos.quizzes = memory.NewCachedQuizRepository(repos.quizzes, quizTTL)
	}
	return repos, nil
}

func jwtSecret(cfg config.Config) (string, error) {
	if cfg.Auth.JWTSecret != "" {
		return cfg.Auth.JWTSecret, nil
	}
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	slog.Warn("auth.jwt_secret not set, tokens will not survive a restart")
	return hex.EncodeToString(buf), nil
}

func runServer(ctx context.Context, cfg config.Config, portFlag string) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	port := portFlag
	if port == "" {
		port = cfg.Server.Port
	}
	if port == "" {
		port = defaultPort
	}

	repos, err := openRepositories(ctx, cfg)
	if err != nil {
		return err
	}
	defer repos.close()

	secret, err := jwtSecret(cfg)
	if err != nil {
		return err
	}

	uploadsDir := cfg.Uploads.Dir
	if uploadsDir == "" {
		uploadsDir = defaultUploadsDir
	}
	blobs, err := filestore.New(uploadsDir, cfg.Uploads.PublicPrefix)
	if err != nil {
		return err
	}
	maxUpload := cfg.Uploads.MaxBytes
	if maxUpload <= 0 {
		maxUpload = app.DefaultMaxUploadBytes
	}

	handler := transport.NewHandler(
		app.NewQuizService(repos.quizzes, repos.accounts),
		app.NewRunService(repos.runs, repos.quizzes),
		app.NewAccountService(repos.accounts, repos.quizzes, repos.runs, secret,
			config.TTLDuration(cfg.Auth.TokenTTL, app.DefaultTokenTTL)),
		app.NewUploadService(blobs, maxUpload),
		transport.Options{
			UploadsDir:    blobs.Dir(),
			PublicBaseURL: cfg.Server.PublicBaseURL,
			Logger:        slog.Default(),
		},
	)

	server := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Bind, port),
		Handler:      handler.Routes(),
		ReadTimeout:  config.TTLDuration(cfg.Server.ReadTimeout, defaultIOTimeout),
		WriteTimeout: config.TTLDuration(cfg.Server.WriteTimeout, defaultIOTimeout),
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting showdown-grid api", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
		slog.Info("shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
