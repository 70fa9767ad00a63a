package http

import (
	"net/http"
	"strings"

	"github.com/julienschmidt/httprouter"

	"showdown-grid/internal/domain"
)

type authedHandle func(w http.ResponseWriter, r *http.Request, ps httprouter.Params, p domain.Principal)

type optionalHandle func(w http.ResponseWriter, r *http.Request, ps httprouter.Params, p *domain.Principal)

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) < 7 || !strings.EqualFold(h[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(h[7:])
}

// requireAuth rejects requests without a valid bearer token.
func (h *Handler) requireAuth(next authedHandle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		token := bearerToken(r)
		if token == "" {
			writeError(w, r, domain.ErrUnauthorized)
			return
		}
		p, err := h.accounts.Verify(r.Context(), token)
		if err != nil {
			writeError(w, r, err)
			return
		}
		next(w, r, ps, p)
	}
}

// optionalAuth passes nil when the caller has no valid token.
func (h *Handler) optionalAuth(next optionalHandle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		token := bearerToken(r)
		if token == "" {
			next(w, r, ps, nil)
			return
		}
		p, err := h.accounts.Verify(r.Context(), token)
		if err != nil {
			next(w, r, ps, nil)
			return
		}
		next(w, r, ps, &p)
	}
}
