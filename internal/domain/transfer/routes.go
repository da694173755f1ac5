package transfer

import (
	"github.com/go-chi/chi/v5"
)

// Routes returns transfer router. Auth is applied by the caller.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/to-character", h.ToCharacter)
	r.Post("/from-character", h.FromCharacter)

	return r
}
