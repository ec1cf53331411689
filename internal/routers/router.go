package routers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"pairpad/internal/api"
)

func New(h *api.Handlers) http.Handler {
	r := chi.NewRouter()

	r.Get("/api/v1/healthz", h.Health)

	r.Post("/api/v1/rooms", h.CreateRoom)
	r.Get("/api/v1/rooms/{id}", h.ValidateRoom)

	r.Post("/api/v1/autocomplete", h.Autocomplete)

	r.Get("/ws/rooms/{id}", h.RoomWS)

	return r
}
