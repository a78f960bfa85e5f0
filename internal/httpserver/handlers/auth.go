package handlers

import (
	"net/http"

	"github.com/Umairyojo/NexMark/internal/auth"
	"github.com/Umairyojo/NexMark/internal/httpserver/deps"
	"github.com/Umairyojo/NexMark/internal/logger"
	"github.com/Umairyojo/NexMark/internal/utils"
)

// SignIn starts the provider round trip. The callback goes back to the
// origin the browser used.
func SignIn(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		origin := utils.RequestOrigin(r, d.TrustProxy)
		if origin == "" {
			http.Redirect(w, r, auth.ErrorURL("Request origin is missing."), http.StatusSeeOther)
			return
		}

		next := r.FormValue("next")
		authURL, err := d.Auth.Begin(origin, next)
		if err != nil {
			d.Logger.Warn("failed to start sign-in", logger.Error(err))
			http.Redirect(w, r, auth.ErrorURL("Google sign-in failed."), http.StatusSeeOther)
			return
		}

		http.Redirect(w, r, authURL, http.StatusSeeOther)
	}
}

// Callback exchanges the code, issues the session cookie and continues to next
func Callback(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if msg := q.Get("error"); msg != "" {
			d.Logger.Warn("provider returned an error", logger.String("error", msg))
			http.Redirect(w, r, auth.ErrorURL(""), http.StatusFound)
			return
		}

		session, next, err := d.Auth.Complete(r.Context(), q.Get("state"), q.Get("code"))
		if err != nil {
			d.Logger.Warn("failed to complete sign-in", logger.Error(err))
			http.Redirect(w, r, auth.ErrorURL(""), http.StatusFound)
			return
		}

		if err := d.Auth.Sessions().SetCookie(w, session); err != nil {
			d.Logger.Error("failed to issue session", logger.Error(err))
			http.Redirect(w, r, auth.ErrorURL(""), http.StatusFound)
			return
		}

		if override := q.Get("next"); override != "" {
			next = auth.SanitizeNext(override)
		}
		http.Redirect(w, r, next, http.StatusFound)
	}
}

// SignOut clears the session cookie
func SignOut(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d.Auth.Sessions().ClearCookie(w)
		http.Redirect(w, r, "/", http.StatusSeeOther)
	}
}
