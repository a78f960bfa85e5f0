package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/Umairyojo/NexMark/internal/auth"
	"github.com/Umairyojo/NexMark/internal/httpserver/deps"
	"github.com/Umairyojo/NexMark/internal/httpserver/handlers"
)

// No timeout middleware: the socket lives as long as the tab
func init() { Register("live", registerLive, auth.RequireSession) }

func registerLive(r chi.Router, d deps.Deps) {
	r.Get("/ws", handlers.Live(d))
}
