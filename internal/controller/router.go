package controller

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (c *controller) GetMux() http.Handler {
	r := chi.NewRouter()
	r.Use(c.requestIdMw)

	r.Post("/sessions", c.JoinTown)

	r.Route("/towns", func(r chi.Router) {
		r.Get("/", c.ListTowns)
		r.Post("/", c.CreateTown)
		r.Patch("/{town-id}", c.UpdateTown)
		r.Delete("/{town-id}/{town-password}", c.DeleteTown)
		r.Post("/{town-id}/conversation-areas", c.CreateConversationArea)
	})

	r.HandleFunc("/ws/{town-id}", c.Subscribe)

	return r
}
