package routes

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Umairyojo/NexMark/internal/auth"
	"github.com/Umairyojo/NexMark/internal/httpserver/deps"
	"github.com/Umairyojo/NexMark/internal/httpserver/handlers"
	"github.com/Umairyojo/NexMark/internal/httpserver/mw"
)

func init() {
	Register("bookmarks", registerBookmarks, auth.RequireSession, middleware.Timeout(apiTimeout))
}

func registerBookmarks(r chi.Router, d deps.Deps) {
	mutations := r.With(mw.RateLimit(mw.RateLimitConfig{
		Burst:             d.RateBurst,
		RefillPerIPPerMin: d.RateRefillPerMin,
		MaxEntries:        10000,
		TrustProxy:        d.TrustProxy,
		KeyFunc:           mw.SessionOrIP,
	}))

	r.Get("/api/bookmarks", handlers.ListBookmarks(d))
	r.Get("/api/bookmarks/count", handlers.CountBookmarks(d))
	mutations.Post("/api/bookmarks", handlers.CreateBookmark(d))
	mutations.Post("/api/bookmarks/import", handlers.ImportBookmarks(d))
	mutations.Delete("/api/bookmarks/{id}", handlers.DeleteBookmark(d))
}
