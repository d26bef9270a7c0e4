// AngelaMos | 2026
// handler.go

package preference

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/carterperez-dev/templates/user-admin/internal/core"
)

type Handler struct {
	store *Store
}

func NewHandler(store *Store) *Handler {
	return &Handler{store: store}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/preferences", func(r chi.Router) {
		r.Get("/theme", h.GetTheme)
		r.Put("/theme", h.SetTheme)
	})
}

type ThemeRequest struct {
	Theme Theme `json:"theme"`
}

type ThemeResponse struct {
	Theme Theme `json:"theme"`
}

func (h *Handler) GetTheme(w http.ResponseWriter, r *http.Request) {
	t, err := h.store.Theme(r.Context())
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, ThemeResponse{Theme: t})
}

func (h *Handler) SetTheme(w http.ResponseWriter, r *http.Request) {
	var req ThemeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.store.SetTheme(r.Context(), req.Theme); err != nil {
		if errors.Is(err, ErrInvalidTheme) {
			core.BadRequest(w, ErrInvalidTheme.Error())
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, ThemeResponse{Theme: req.Theme})
}
