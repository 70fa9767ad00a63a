package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"

	"showdown-grid/internal/app"
)

// Handler serves the REST API over the app services.
type Handler struct {
	quizzes  *app.QuizService
	runs     *app.RunService
	accounts *app.AccountService
	uploads  *app.UploadService

	uploadsDir    string
	publicBaseURL string
	logger        *slog.Logger
}

type Options struct {
	// UploadsDir is served under /uploads/ when set.
	UploadsDir string
	// PublicBaseURL is encoded into share codes; derived from the request when empty.
	PublicBaseURL string
	Logger        *slog.Logger
}

func NewHandler(quizzes *app.QuizService, runs *app.RunService, accounts *app.AccountService, uploads *app.UploadService, opts Options) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		quizzes:       quizzes,
		runs:          runs,
		accounts:      accounts,
		uploads:       uploads,
		uploadsDir:    opts.UploadsDir,
		publicBaseURL: opts.PublicBaseURL,
		logger:        logger,
	}
}

// Routes builds the router wrapped in request logging.
func (h *Handler) Routes() http.Handler {
	mux := httprouter.New()

	mux.PanicHandler = func(w http.ResponseWriter, r *http.Request, v any) {
		h.logger.Error("panic serving request", "method", r.Method, "path", r.URL.Path, "panic", v)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
	mux.NotFound = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not found"})
	})

	mux.GET("/healthz", func(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})

	mux.POST("/api/auth/anonymous", h.signInAnonymous)
	mux.POST("/api/auth/register", h.optionalAuth(h.register))
	mux.POST("/api/auth/login", h.login)
	mux.GET("/api/auth/verify", h.requireAuth(h.verify))
	mux.POST("/api/auth/migrate", h.requireAuth(h.migrate))

	mux.GET("/api/quiz", h.requireAuth(h.activeQuiz))
	mux.POST("/api/quiz", h.requireAuth(h.saveQuiz))

	mux.GET("/api/quizzes", h.requireAuth(h.listQuizzes))
	mux.POST("/api/quizzes", h.requireAuth(h.createQuiz))
	mux.DELETE("/api/quizzes/:id", h.requireAuth(h.deleteQuiz))
	mux.POST("/api/quizzes/:id/activate", h.requireAuth(h.activateQuiz))
	mux.GET("/api/quizzes/:id/load", h.optionalAuth(h.loadQuiz))
	mux.GET("/api/quizzes/:id/qr", h.optionalAuth(h.shareCode))
	mux.GET("/api/public-quizzes", h.optionalAuth(h.publicQuizzes))

	mux.GET("/api/quiz-runs", h.requireAuth(h.listRuns))
	mux.POST("/api/quiz-runs", h.requireAuth(h.startRun))
	// GET /api/quiz-runs/active is dispatched inside getRun.
	mux.GET("/api/quiz-runs/:id", h.requireAuth(h.getRun))
	mux.PATCH("/api/quiz-runs/:id", h.requireAuth(h.updateRun))
	mux.DELETE("/api/quiz-runs/:id", h.requireAuth(h.deleteRun))
	mux.POST("/api/quiz-runs/:id/complete", h.requireAuth(h.completeRun))
	mux.GET("/api/quiz-runs/:id/export", h.requireAuth(h.exportRun))

	mux.POST("/api/upload", h.requireAuth(h.upload))
	mux.DELETE("/api/upload", h.requireAuth(h.deleteUpload))
	if h.uploadsDir != "" {
		mux.ServeFiles("/uploads/*filepath", http.Dir(h.uploadsDir))
	}

	return h.logRequests(mux)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (h *Handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		h.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start).Round(time.Microsecond),
		)
	})
}
