package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/Umairyojo/NexMark/internal/httpserver/deps"
	"github.com/Umairyojo/NexMark/internal/httpserver/handlers"
	"github.com/Umairyojo/NexMark/internal/httpserver/mw"
)

func init() { Register("health", registerHealth) }

func registerHealth(r chi.Router, d deps.Deps) {
	restricted := r.With(mw.AllowOnlyCIDRS(d.AllowedCIDRS, d.TrustProxy, d.Logger))
	restricted.Get("/healthz", handlers.Healthz(d))
	restricted.Get("/readyz", handlers.Readyz(d))
	restricted.Get("/infra", handlers.Infra(d))
}
