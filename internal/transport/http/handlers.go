package http

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/julienschmidt/httprouter"
	qrcode "github.com/skip2/go-qrcode"

	"showdown-grid/internal/domain"
)

const qrSize = 320

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type migrateRequest struct {
	FromUserID string `json:"fromUserId"`
	ToUserID   string `json:"toUserId"`
}

type dataEnvelope struct {
	Data domain.QuizDocument `json:"data"`
}

type stateEnvelope struct {
	FinalState domain.RunState `json:"finalState"`
}

func (h *Handler) signInAnonymous(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	sess, err := h.accounts.SignInAnonymous(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request, _ httprouter.Params, p *domain.Principal) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	sess, err := h.accounts.Register(r.Context(), req.Email, req.Password, p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	sess, err := h.accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (h *Handler) verify(w http.ResponseWriter, _ *http.Request, _ httprouter.Params, p domain.Principal) {
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) migrate(w http.ResponseWriter, r *http.Request, _ httprouter.Params, p domain.Principal) {
	var req migrateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.accounts.Migrate(r.Context(), p, req.FromUserID, req.ToUserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) activeQuiz(w http.ResponseWriter, r *http.Request, _ httprouter.Params, p domain.Principal) {
	doc, err := h.quizzes.ActiveQuiz(r.Context(), p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dataEnvelope{Data: doc})
}

func (h *Handler) saveQuiz(w http.ResponseWriter, r *http.Request, _ httprouter.Params, p domain.Principal) {
	var req dataEnvelope
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	meta, err := h.quizzes.Save(r.Context(), p, req.Data)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"quiz": meta})
}

func (h *Handler) listQuizzes(w http.ResponseWriter, r *http.Request, _ httprouter.Params, p domain.Principal) {
	list, err := h.quizzes.List(r.Context(), p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"quizzes": list})
}

func (h *Handler) publicQuizzes(w http.ResponseWriter, r *http.Request, _ httprouter.Params, p *domain.Principal) {
	list, err := h.quizzes.Public(r.Context(), p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"quizzes": list})
}

func (h *Handler) createQuiz(w http.ResponseWriter, r *http.Request, _ httprouter.Params, p domain.Principal) {
	var req domain.CreateQuizRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	meta, err := h.quizzes.Create(r.Context(), p, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"quiz": meta})
}

func (h *Handler) deleteQuiz(w http.ResponseWriter, r *http.Request, ps httprouter.Params, p domain.Principal) {
	if err := h.quizzes.Delete(r.Context(), p, ps.ByName("id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *Handler) activateQuiz(w http.ResponseWriter, r *http.Request, ps httprouter.Params, p domain.Principal) {
	if err := h.quizzes.Activate(r.Context(), p, ps.ByName("id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *Handler) loadQuiz(w http.ResponseWriter, r *http.Request, ps httprouter.Params, p *domain.Principal) {
	doc, err := h.quizzes.Load(r.Context(), p, ps.ByName("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dataEnvelope{Data: doc})
}

// shareCode renders a PNG QR code pointing at the public load URL of a quiz.
func (h *Handler) shareCode(w http.ResponseWriter, r *http.Request, ps httprouter.Params, _ *domain.Principal) {
	id := ps.ByName("id")
	if _, err := h.quizzes.Metadata(r.Context(), nil, id); err != nil {
		writeError(w, r, err)
		return
	}

	base := strings.TrimSuffix(h.publicBaseURL, "/")
	if base == "" {
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		}
		base = scheme + "://" + r.Host
	}

	png, err := qrcode.Encode(base+"/api/quizzes/"+id+"/load", qrcode.Medium, qrSize)
	if err != nil {
		writeError(w, r, fmt.Errorf("qr generation failed: %w", err))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}

func (h *Handler) listRuns(w http.ResponseWriter, r *http.Request, _ httprouter.Params, p domain.Principal) {
	q := r.URL.Query()
	limit := 0
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, r, fmt.Errorf("invalid limit %q: %w", raw, domain.ErrValidation))
			return
		}
		limit = n
	}
	runs, err := h.runs.List(r.Context(), p, q.Get("quizId"), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (h *Handler) startRun(w http.ResponseWriter, r *http.Request, _ httprouter.Params, p domain.Principal) {
	var req domain.StartRunRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	run, err := h.runs.Start(r.Context(), p, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"run": run})
}

func (h *Handler) getRun(w http.ResponseWriter, r *http.Request, ps httprouter.Params, p domain.Principal) {
	var (
		run domain.QuizRun
		err error
	)
	if id := ps.ByName("id"); id == "active" {
		run, err = h.runs.Active(r.Context(), p, r.URL.Query().Get("quizId"))
	} else {
		run, err = h.runs.Get(r.Context(), p, id)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"run": run})
}

func (h *Handler) updateRun(w http.ResponseWriter, r *http.Request, ps httprouter.Params, p domain.Principal) {
	var req stateEnvelope
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	run, err := h.runs.Update(r.Context(), p, ps.ByName("id"), req.FinalState)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"run": run})
}

func (h *Handler) completeRun(w http.ResponseWriter, r *http.Request, ps httprouter.Params, p domain.Principal) {
	var req stateEnvelope
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	run, err := h.runs.Complete(r.Context(), p, ps.ByName("id"), req.FinalState)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"run": run})
}

func (h *Handler) deleteRun(w http.ResponseWriter, r *http.Request, ps httprouter.Params, p domain.Principal) {
	if err := h.runs.Delete(r.Context(), p, ps.ByName("id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *Handler) exportRun(w http.ResponseWriter, r *http.Request, ps httprouter.Params, p domain.Principal) {
	id := ps.ByName("id")
	data, err := h.runs.ExportCSV(r.Context(), p, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "run-"+id+".csv"))
	_, _ = w.Write(data)
}

func (h *Handler) upload(w http.ResponseWriter, r *http.Request, _ httprouter.Params, p domain.Principal) {
	// room for the multipart envelope around the file
	r.Body = http.MaxBytesReader(w, r.Body, h.uploads.MaxBytes()+1<<20)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) || strings.Contains(err.Error(), "request body too large") {
			writeError(w, r, domain.ErrFileTooLarge)
			return
		}
		writeError(w, r, fmt.Errorf("missing file field: %w", domain.ErrValidation))
		return
	}
	defer file.Close()

	up, err := h.uploads.Upload(r.Context(), p, header.Header.Get("Content-Type"), file)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, up)
}

func (h *Handler) deleteUpload(w http.ResponseWriter, r *http.Request, _ httprouter.Params, p domain.Principal) {
	if err := h.uploads.Delete(r.Context(), p, r.URL.Query().Get("fileName")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
