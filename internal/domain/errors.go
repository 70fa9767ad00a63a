package domain

import "errors"

var (
	// ErrNotFound is the generic missing-resource error the gateway reports for a 404.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized is returned when the caller has no verified identity.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden is returned when the caller may not touch the resource.
	ErrForbidden = errors.New("forbidden")
	// ErrValidation marks malformed input.
	ErrValidation = errors.New("validation failed")

	// ErrQuizNotFound indicates the quiz does not exist or is not visible to the caller.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrRunNotFound indicates the quiz run does not exist for the caller.
	ErrRunNotFound = errors.New("quiz run not found")
	// ErrRunCompleted is returned when a completed run is written to.
	ErrRunCompleted = errors.New("quiz run already completed")

	// ErrNoActiveQuiz is returned by session operations before a quiz is loaded.
	ErrNoActiveQuiz = errors.New("no active quiz")
	// ErrNoActiveRun is returned when completing without a known live run and start time.
	ErrNoActiveRun = errors.New("no active run: missing run id, start time or quiz id")

	// ErrUnsupportedMedia is returned for uploads outside the MIME allow-list.
	ErrUnsupportedMedia = errors.New("unsupported file type")
	// ErrFileTooLarge is returned for uploads above the size cap.
	ErrFileTooLarge = errors.New("file too large")

	// ErrInvalidCredentials is returned for a failed login.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrEmailTaken is returned when registering an email that already has an account.
	ErrEmailTaken = errors.New("email already registered")
)

// IsNotFound reports whether err is any of the not-found sentinels.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrQuizNotFound) || errors.Is(err, ErrRunNotFound)
}
