package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"showdown-grid/internal/domain"
)

const (
	DefaultTokenTTL   = 30 * 24 * time.Hour
	MinPasswordLength = 6
)

// AccountService issues and verifies identities and moves data between them.
type AccountService struct {
	accounts AccountRepository
	quizzes  QuizRepository
	runs     RunRepository
	secret   []byte
	ttl      time.Duration
	now      func() time.Time
}

func NewAccountService(accounts AccountRepository, quizzes QuizRepository, runs RunRepository, secret string, ttl time.Duration) *AccountService {
	return NewAccountServiceWithClock(accounts, quizzes, runs, secret, ttl, time.Now)
}

// NewAccountServiceWithClock is used by tests for deterministic token expiry.
func NewAccountServiceWithClock(accounts AccountRepository, quizzes QuizRepository, runs RunRepository, secret string, ttl time.Duration, now func() time.Time) *AccountService {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &AccountService{
		accounts: accounts,
		quizzes:  quizzes,
		runs:     runs,
		secret:   []byte(secret),
		ttl:      ttl,
		now:      now,
	}
}

// SignInAnonymous creates a throwaway identity.
func (s *AccountService) SignInAnonymous(ctx context.Context) (domain.Session, error) {
	acc := domain.Account{
		ID:        uuid.NewString(),
		Anonymous: true,
		CreatedAt: s.now().UTC(),
	}
	if err := s.accounts.CreateAccount(ctx, acc); err != nil {
		return domain.Session{}, fmt.Errorf("create account: %w", err)
	}
	return s.issue(acc)
}

// Register creates a password account. When caller is an anonymous identity
// its quizzes and runs move to the new account.
func (s *AccountService) Register(ctx context.Context, email, password string, caller *domain.Principal) (domain.Session, error) {
	email = normalizeEmail(email)
	if !strings.Contains(email, "@") {
		return domain.Session{}, fmt.Errorf("invalid email: %w", domain.ErrValidation)
	}
	if len(password) < MinPasswordLength {
		return domain.Session{}, fmt.Errorf("password must be at least %d characters: %w", MinPasswordLength, domain.ErrValidation)
	}
	if _, err := s.accounts.GetAccountByEmail(ctx, email); err == nil {
		return domain.Session{}, domain.ErrEmailTaken
	} else if !errors.Is(err, domain.ErrNotFound) {
		return domain.Session{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return domain.Session{}, err
	}
	acc := domain.Account{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    s.now().UTC(),
	}
	if err := s.accounts.CreateAccount(ctx, acc); err != nil {
		return domain.Session{}, fmt.Errorf("create account: %w", err)
	}

	if caller != nil && caller.Anonymous {
		if _, err := s.transfer(ctx, caller.UserID, acc.ID); err != nil {
			return domain.Session{}, err
		}
	}
	return s.issue(acc)
}

// Login checks a password and issues a token.
func (s *AccountService) Login(ctx context.Context, email, password string) (domain.Session, error) {
	acc, err := s.accounts.GetAccountByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Session{}, domain.ErrInvalidCredentials
		}
		return domain.Session{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(password)); err != nil {
		return domain.Session{}, domain.ErrInvalidCredentials
	}
	return s.issue(acc)
}

// Verify validates a bearer token and returns the identity it carries.
func (s *AccountService) Verify(ctx context.Context, token string) (domain.Principal, error) {
	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil || !parsed.Valid {
		return domain.Principal{}, domain.ErrUnauthorized
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return domain.Principal{}, domain.ErrUnauthorized
	}
	acc, err := s.accounts.GetAccount(ctx, sub)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Principal{}, domain.ErrUnauthorized
		}
		return domain.Principal{}, err
	}
	return domain.Principal{UserID: acc.ID, Anonymous: acc.Anonymous}, nil
}

// Migrate moves quizzes and runs from an anonymous identity to the caller.
func (s *AccountService) Migrate(ctx context.Context, caller domain.Principal, fromUserID, toUserID string) (domain.MigrationResult, error) {
	if fromUserID == "" || toUserID == "" {
		return domain.MigrationResult{}, fmt.Errorf("fromUserId and toUserId are required: %w", domain.ErrValidation)
	}
	if toUserID != caller.UserID {
		return domain.MigrationResult{}, fmt.Errorf("migrate to %s: %w", toUserID, domain.ErrForbidden)
	}
	if fromUserID == toUserID {
		return domain.MigrationResult{}, fmt.Errorf("source and target are the same account: %w", domain.ErrValidation)
	}
	from, err := s.accounts.GetAccount(ctx, fromUserID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.MigrationResult{}, fmt.Errorf("source account: %w", domain.ErrValidation)
		}
		return domain.MigrationResult{}, err
	}
	if !from.Anonymous {
		return domain.MigrationResult{}, fmt.Errorf("source account is not anonymous: %w", domain.ErrForbidden)
	}
	return s.transfer(ctx, fromUserID, toUserID)
}

func (s *AccountService) transfer(ctx context.Context, from, to string) (domain.MigrationResult, error) {
	quizzes, err := s.quizzes.TransferOwner(ctx, from, to)
	if err != nil {
		return domain.MigrationResult{}, fmt.Errorf("transfer quizzes: %w", err)
	}
	runs, err := s.runs.TransferOwner(ctx, from, to)
	if err != nil {
		return domain.MigrationResult{}, fmt.Errorf("transfer runs: %w", err)
	}

	src, err := s.accounts.GetAccount(ctx, from)
	if err != nil {
		return domain.MigrationResult{}, fmt.Errorf("load source account: %w", err)
	}
	dst, err := s.accounts.GetAccount(ctx, to)
	if err != nil {
		return domain.MigrationResult{}, fmt.Errorf("load target account: %w", err)
	}
	if dst.ActiveQuizID == "" && src.ActiveQuizID != "" {
		if err := s.accounts.SetActiveQuiz(ctx, to, src.ActiveQuizID); err != nil {
			return domain.MigrationResult{}, fmt.Errorf("carry active quiz: %w", err)
		}
	}
	return domain.MigrationResult{Success: true, QuizzesMigrated: quizzes, SessionsMigrated: runs}, nil
}

func (s *AccountService) issue(acc domain.Account) (domain.Session, error) {
	now := s.now()
	expires := now.Add(s.ttl)
	claims := jwt.MapClaims{
		"sub":  acc.ID,
		"anon": acc.Anonymous,
		"iat":  now.Unix(),
		"exp":  expires.Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return domain.Session{}, fmt.Errorf("sign token: %w", err)
	}
	return domain.Session{
		Token:     token,
		Principal: domain.Principal{UserID: acc.ID, Anonymous: acc.Anonymous},
		ExpiresAt: time.Unix(expires.Unix(), 0).UTC(),
	}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
