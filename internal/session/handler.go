// AngelaMos | 2026
// handler.go

package session

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/BfdCampos/workplay/internal/core"
	"github.com/BfdCampos/workplay/internal/middleware"
)

type Handler struct {
	revoker *Revoker
}

func NewHandler(revoker *Revoker) *Handler {
	return &Handler{revoker: revoker}
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator, dashboardOnly func(http.Handler) http.Handler,
) {
	r.Route("/sessions", func(r chi.Router) {
		r.Use(authenticator)
		r.Use(dashboardOnly)

		r.Delete("/", h.DeleteAll)
		r.Delete("/{sessionID}", h.Delete)
	})
}

func (h *Handler) DeleteAll(w http.ResponseWriter, r *http.Request) {
	if _, err := h.revoker.DeleteAllSessions(r.Context(), middleware.GetSession(r.Context())); err != nil {
		WriteError(w, err)
		return
	}

	core.Done(w)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	err := h.revoker.DeleteSession(r.Context(), middleware.GetSession(r.Context()), sessionID)
	if err != nil {
		WriteError(w, err)
		return
	}

	core.Done(w)
}

// WriteError maps revocation errors onto the response envelope.
func WriteError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrUnauthorized):
		core.Unauthorized(w, "")
	case errors.Is(err, core.ErrSelfRevocation):
		core.JSONError(w, core.NewAppError(
			err,
			"you cannot revoke your own active session",
			http.StatusBadRequest,
			"SELF_REVOCATION",
		))
	default:
		core.InternalServerError(w, err)
	}
}
