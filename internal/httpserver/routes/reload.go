package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/Umairyojo/NexMark/internal/httpserver/deps"
	"github.com/Umairyojo/NexMark/internal/httpserver/handlers"
	"github.com/Umairyojo/NexMark/internal/httpserver/mw"
)

func init() { Register("reload", registerReload) }

func registerReload(r chi.Router, d deps.Deps) {
	r.With(mw.AllowOnlyCIDRS(d.AllowedCIDRS, d.TrustProxy, d.Logger)).Post("/reload", handlers.Reload(d))
}
