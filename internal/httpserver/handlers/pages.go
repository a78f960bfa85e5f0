package handlers

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"

	"github.com/Umairyojo/NexMark/internal/auth"
	"github.com/Umairyojo/NexMark/internal/domain"
	"github.com/Umairyojo/NexMark/internal/httpserver/deps"
	"github.com/Umairyojo/NexMark/internal/logger"
	"github.com/Umairyojo/NexMark/internal/view"
)

//go:embed templates/*.html
var templateFS embed.FS

var pages = map[string]*template.Template{
	"home":      parsePage("home"),
	"dashboard": parsePage("dashboard"),
	"error":     parsePage("error"),
}

func parsePage(name string) *template.Template {
	return template.Must(template.ParseFS(templateFS, "templates/base.html", "templates/"+name+".html"))
}

type pageData struct {
	Title  string
	Signed bool
	Name   string

	AuthRequired bool
	Message      string
	State        view.State
	Variants     map[domain.Status]string
}

func newPageData(r *http.Request, title string) pageData {
	data := pageData{Title: title}
	if s, ok := auth.FromContext(r.Context()); ok {
		data.Signed = true
		data.Name = s.DisplayName()
	}
	return data
}

// render executes into a buffer first so a template error never sends a half page
func render(w http.ResponseWriter, log logger.Logger, name string, status int, data pageData) {
	var buf bytes.Buffer
	if err := pages[name].ExecuteTemplate(&buf, name+".html", data); err != nil {
		log.Error("failed to render page", logger.String("page", name), logger.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// Home renders the landing page
func Home(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data := newPageData(r, "Home")
		data.AuthRequired = r.URL.Query().Get("auth") == "required"
		render(w, d.Logger, "home", http.StatusOK, data)
	}
}

// Dashboard renders the first paint of the dashboard; updates arrive over /ws
func Dashboard(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, _ := auth.FromContext(r.Context())
		data := newPageData(r, "Dashboard")
		data.Variants = statusVariants()

		bookmarks, err := d.Data.List(r.Context(), s.UserID)
		if err != nil {
			d.Logger.Warn("failed to load bookmarks for first paint",
				logger.String("user_id", s.UserID),
				logger.Error(err))
			bookmarks = nil
		}
		data.State = view.State{
			Bookmarks: bookmarks,
			Count:     len(bookmarks),
			Status:    domain.StatusIdle,
		}
		render(w, d.Logger, "dashboard", http.StatusOK, data)
	}
}

// AuthError renders a sign-in failure
func AuthError(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data := newPageData(r, "Sign-in failed")
		data.Message = r.URL.Query().Get("message")
		if data.Message == "" {
			data.Message = auth.DefaultErrorMessage
		}
		render(w, d.Logger, "error", http.StatusOK, data)
	}
}

func statusVariants() map[domain.Status]string {
	statuses := []domain.Status{
		domain.StatusCreated,
		domain.StatusDeleted,
		domain.StatusInvalidInput,
		domain.StatusInvalidURL,
		domain.StatusError,
	}
	out := make(map[domain.Status]string, len(statuses))
	for _, s := range statuses {
		out[s] = s.Variant()
	}
	return out
}
