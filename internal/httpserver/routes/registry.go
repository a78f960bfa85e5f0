// Package routes wires handlers onto the router. Each file registers one
// route group from init(); RegisterAll mounts them in registration order.
package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Umairyojo/NexMark/internal/httpserver/deps"
	"github.com/Umairyojo/NexMark/internal/logger"
)

type (
	Registrar  func(r chi.Router, d deps.Deps)
	Middleware = func(http.Handler) http.Handler
)

// No global timeout: /ws connections are long-lived.
const (
	pageTimeout = 15 * time.Second
	apiTimeout  = 20 * time.Second
)

type group struct {
	name string
	reg  Registrar
	mws  []Middleware
}

var groups []group

// Register adds a named route group guarded by mws.
func Register(name string, reg Registrar, mws ...Middleware) {
	groups = append(groups, group{name: name, reg: reg, mws: mws})
}

// RegisterAll mounts every group. Called once from server.New().
func RegisterAll(r chi.Router, d deps.Deps) {
	for _, g := range groups {
		r.Group(func(gr chi.Router) {
			gr.Use(g.mws...)
			g.reg(gr, d)
		})
		if d.Logger != nil {
			d.Logger.Debug("route group mounted",
				logger.String("group", g.name),
				logger.Int("middlewares", len(g.mws)))
		}
	}
}
