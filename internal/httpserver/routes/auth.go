package routes

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Umairyojo/NexMark/internal/auth"
	"github.com/Umairyojo/NexMark/internal/httpserver/deps"
	"github.com/Umairyojo/NexMark/internal/httpserver/handlers"
	"github.com/Umairyojo/NexMark/internal/httpserver/mw"
)

func init() { Register("auth", registerAuth, middleware.Timeout(pageTimeout)) }

func registerAuth(r chi.Router, d deps.Deps) {
	signIn := r.With(mw.RateLimit(mw.RateLimitConfig{
		Burst:             d.RateBurst,
		RefillPerIPPerMin: d.RateRefillPerMin,
		MaxEntries:        10000,
		TrustProxy:        d.TrustProxy,
	}))
	signIn.Post("/auth/signin", handlers.SignIn(d))

	r.Get(auth.CallbackPath, handlers.Callback(d))
	r.Post("/auth/signout", handlers.SignOut(d))
	r.Get(auth.ErrorPath, handlers.AuthError(d))
}
