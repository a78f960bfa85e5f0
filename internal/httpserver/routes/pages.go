package routes

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Umairyojo/NexMark/internal/auth"
	"github.com/Umairyojo/NexMark/internal/httpserver/deps"
	"github.com/Umairyojo/NexMark/internal/httpserver/handlers"
)

func init() { Register("pages", registerPages, middleware.Timeout(pageTimeout)) }

func registerPages(r chi.Router, d deps.Deps) {
	r.Get("/", handlers.Home(d))
	r.With(auth.RedirectAnonymous("/?auth=required")).Get("/dashboard", handlers.Dashboard(d))
}
