// Package gateway is the HTTP client for the showdown-grid REST API.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"showdown-grid/internal/domain"
)

const defaultTimeout = 15 * time.Second

// Client implements game.Gateway over HTTP. It holds no state besides the bearer token.
type Client struct {
	baseURL    string
	httpClient *http.Client

	mu    sync.RWMutex
	token string
}

// New creates a client for the API rooted at baseURL. A nil httpClient gets a default with a timeout.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// SetToken sets the bearer token sent with every request.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// APIError is a non-2xx response. It unwraps to the domain sentinel for its status.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api: status %d", e.Status)
	}
	return fmt.Sprintf("api: status %d: %s", e.Status, e.Message)
}

func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusNotFound:
		return domain.ErrNotFound
	case http.StatusUnauthorized:
		return domain.ErrUnauthorized
	case http.StatusForbidden:
		return domain.ErrForbidden
	case http.StatusBadRequest:
		return domain.ErrValidation
	case http.StatusRequestEntityTooLarge:
		return domain.ErrFileTooLarge
	case http.StatusUnsupportedMediaType:
		return domain.ErrUnsupportedMedia
	}
	return nil
}

func (c *Client) doRequest(ctx context.Context, method, path string, query url.Values, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(raw)
	}
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, out)
}

func (c *Client) send(req *http.Request, out any) error {
	req.Header.Set("Accept", "application/json")
	if tok := c.Token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var body struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&body)
		return &APIError{Status: resp.StatusCode, Message: body.Error}
	}
	if out == nil {
		return nil
	}
	if w, ok := out.(io.Writer); ok {
		_, err = io.Copy(w, resp.Body)
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", req.Method, req.URL.Path, err)
	}
	return nil
}

// IsUnauthorized reports whether err came from a 401.
func IsUnauthorized(err error) bool {
	return errors.Is(err, domain.ErrUnauthorized)
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignInAnonymous creates a throwaway identity and keeps its token.
func (c *Client) SignInAnonymous(ctx context.Context) (domain.Session, error) {
	var sess domain.Session
	if err := c.doRequest(ctx, http.MethodPost, "/api/auth/anonymous", nil, nil, &sess); err != nil {
		return domain.Session{}, err
	}
	c.SetToken(sess.Token)
	return sess, nil
}

// Register creates an account. Called with an anonymous token, the anonymous
// identity's quizzes and runs move to the new account.
func (c *Client) Register(ctx context.Context, email, password string) (domain.Session, error) {
	var sess domain.Session
	if err := c.doRequest(ctx, http.MethodPost, "/api/auth/register", nil, credentials{email, password}, &sess); err != nil {
		return domain.Session{}, err
	}
	c.SetToken(sess.Token)
	return sess, nil
}

func (c *Client) Login(ctx context.Context, email, password string) (domain.Session, error) {
	var sess domain.Session
	if err := c.doRequest(ctx, http.MethodPost, "/api/auth/login", nil, credentials{email, password}, &sess); err != nil {
		return domain.Session{}, err
	}
	c.SetToken(sess.Token)
	return sess, nil
}

// Verify returns the principal behind the current token.
func (c *Client) Verify(ctx context.Context) (domain.Principal, error) {
	var p domain.Principal
	err := c.doRequest(ctx, http.MethodGet, "/api/auth/verify", nil, nil, &p)
	return p, err
}

// Migrate moves quizzes and runs from an anonymous identity to the caller.
func (c *Client) Migrate(ctx context.Context, fromUserID, toUserID string) (domain.MigrationResult, error) {
	var res domain.MigrationResult
	body := map[string]string{"fromUserId": fromUserID, "toUserId": toUserID}
	err := c.doRequest(ctx, http.MethodPost, "/api/auth/migrate", nil, body, &res)
	return res, err
}

type dataEnvelope struct {
	Data domain.QuizDocument `json:"data"`
}

type quizEnvelope struct {
	Quiz domain.QuizMetadata `json:"quiz"`
}

type quizzesEnvelope struct {
	Quizzes []domain.QuizMetadata `json:"quizzes"`
}

type runEnvelope struct {
	Run domain.QuizRun `json:"run"`
}

type runsEnvelope struct {
	Runs []domain.RunSummary `json:"runs"`
}

type stateEnvelope struct {
	FinalState domain.RunState `json:"finalState"`
}

func (c *Client) ActiveQuiz(ctx context.Context) (domain.QuizDocument, error) {
	var env dataEnvelope
	err := c.doRequest(ctx, http.MethodGet, "/api/quiz", nil, nil, &env)
	return env.Data, err
}

// SaveQuiz upserts the caller's active quiz and returns its metadata.
func (c *Client) SaveQuiz(ctx context.Context, doc domain.QuizDocument) (domain.QuizMetadata, error) {
	var env quizEnvelope
	err := c.doRequest(ctx, http.MethodPost, "/api/quiz", nil, dataEnvelope{Data: doc}, &env)
	return env.Quiz, err
}

func (c *Client) ListQuizzes(ctx context.Context) ([]domain.QuizMetadata, error) {
	var env quizzesEnvelope
	err := c.doRequest(ctx, http.MethodGet, "/api/quizzes", nil, nil, &env)
	return env.Quizzes, err
}

func (c *Client) PublicQuizzes(ctx context.Context) ([]domain.QuizMetadata, error) {
	var env quizzesEnvelope
	err := c.doRequest(ctx, http.MethodGet, "/api/public-quizzes", nil, nil, &env)
	return env.Quizzes, err
}

func (c *Client) CreateQuiz(ctx context.Context, req domain.CreateQuizRequest) (domain.QuizMetadata, error) {
	var env quizEnvelope
	err := c.doRequest(ctx, http.MethodPost, "/api/quizzes", nil, req, &env)
	return env.Quiz, err
}

func (c *Client) ActivateQuiz(ctx context.Context, id string) error {
	return c.doRequest(ctx, http.MethodPost, "/api/quizzes/"+url.PathEscape(id)+"/activate", nil, nil, nil)
}

func (c *Client) DeleteQuiz(ctx context.Context, id string) error {
	return c.doRequest(ctx, http.MethodDelete, "/api/quizzes/"+url.PathEscape(id), nil, nil, nil)
}

// LoadQuiz reads a quiz without activating it.
func (c *Client) LoadQuiz(ctx context.Context, id string) (domain.QuizDocument, error) {
	var env dataEnvelope
	err := c.doRequest(ctx, http.MethodGet, "/api/quizzes/"+url.PathEscape(id)+"/load", nil, nil, &env)
	return env.Data, err
}

// ShareCode writes the PNG QR code of a public quiz to w.
func (c *Client) ShareCode(ctx context.Context, id string, w io.Writer) error {
	return c.doRequest(ctx, http.MethodGet, "/api/quizzes/"+url.PathEscape(id)+"/qr", nil, nil, w)
}

func (c *Client) ActiveRun(ctx context.Context, quizID string) (domain.QuizRun, error) {
	var env runEnvelope
	q := url.Values{"quizId": {quizID}}
	err := c.doRequest(ctx, http.MethodGet, "/api/quiz-runs/active", q, nil, &env)
	return env.Run, err
}

func (c *Client) StartRun(ctx context.Context, req domain.StartRunRequest) (domain.QuizRun, error) {
	var env runEnvelope
	err := c.doRequest(ctx, http.MethodPost, "/api/quiz-runs", nil, req, &env)
	return env.Run, err
}

func (c *Client) GetRun(ctx context.Context, id string) (domain.QuizRun, error) {
	var env runEnvelope
	err := c.doRequest(ctx, http.MethodGet, "/api/quiz-runs/"+url.PathEscape(id), nil, nil, &env)
	return env.Run, err
}

func (c *Client) UpdateRun(ctx context.Context, id string, state domain.RunState) (domain.QuizRun, error) {
	var env runEnvelope
	err := c.doRequest(ctx, http.MethodPatch, "/api/quiz-runs/"+url.PathEscape(id), nil, stateEnvelope{state}, &env)
	return env.Run, err
}

func (c *Client) CompleteRun(ctx context.Context, id string, state domain.RunState) (domain.QuizRun, error) {
	var env runEnvelope
	err := c.doRequest(ctx, http.MethodPost, "/api/quiz-runs/"+url.PathEscape(id)+"/complete", nil, stateEnvelope{state}, &env)
	return env.Run, err
}

// ListRuns returns completed runs, newest first. Empty quizID lists all quizzes; limit <= 0 uses the server default.
func (c *Client) ListRuns(ctx context.Context, quizID string, limit int) ([]domain.RunSummary, error) {
	q := url.Values{}
	if quizID != "" {
		q.Set("quizId", quizID)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var env runsEnvelope
	err := c.doRequest(ctx, http.MethodGet, "/api/quiz-runs", q, nil, &env)
	return env.Runs, err
}

func (c *Client) DeleteRun(ctx context.Context, id string) error {
	return c.doRequest(ctx, http.MethodDelete, "/api/quiz-runs/"+url.PathEscape(id), nil, nil, nil)
}

// ExportRun writes the CSV standings of a run to w.
func (c *Client) ExportRun(ctx context.Context, id string, w io.Writer) error {
	return c.doRequest(ctx, http.MethodGet, "/api/quiz-runs/"+url.PathEscape(id)+"/export", nil, nil, w)
}

// Upload sends an image as multipart field "file".
func (c *Client) Upload(ctx context.Context, fileName string, data []byte) (domain.Upload, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, fileName))
	header.Set("Content-Type", http.DetectContentType(data))
	part, err := writer.CreatePart(header)
	if err != nil {
		return domain.Upload{}, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return domain.Upload{}, fmt.Errorf("failed to write form file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return domain.Upload{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/upload", &buf)
	if err != nil {
		return domain.Upload{}, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	var up domain.Upload
	err = c.send(req, &up)
	return up, err
}

func (c *Client) DeleteUpload(ctx context.Context, fileName string) error {
	q := url.Values{"fileName": {fileName}}
	return c.doRequest(ctx, http.MethodDelete, "/api/upload", q, nil, nil)
}
