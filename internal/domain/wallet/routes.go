package wallet

import (
	"github.com/go-chi/chi/v5"
)

// Routes returns wallet router. Auth is applied by the caller.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.Get)
	r.Get("/entries", h.Entries)

	return r
}
