package httpserver

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Umairyojo/NexMark/internal/config"
	"github.com/Umairyojo/NexMark/internal/httpserver/deps"
	"github.com/Umairyojo/NexMark/internal/httpserver/mw"
	"github.com/Umairyojo/NexMark/internal/httpserver/routes"
	"github.com/Umairyojo/NexMark/internal/logger"
)

const (
	readHeaderTimeout = 5 * time.Second
	readTimeout       = 15 * time.Second
	writeTimeout      = 30 * time.Second
	idleTimeout       = 60 * time.Second
)

// Server owns the HTTP listener.
type Server struct {
	http   *http.Server
	logger logger.Logger
}

// NewRouter installs the global middlewares, then every route group.
// Timeouts are per group because /ws is long-lived.
func NewRouter(d deps.Deps) chi.Router {
	r := chi.NewRouter()
	r.Use(
		middleware.GetHead,
		middleware.RequestID,
		middleware.Recoverer,
		mw.EnforceHost(d.AllowedHosts, d.Logger),
		d.Auth.LoadSession,
		mw.Log(d.Logger),
	)
	routes.RegisterAll(r, d)
	return r
}

// New builds the HTTP server. Request contexts derive from ctx, so
// cancelling it also ends the live websocket views.
func New(ctx context.Context, cfg *config.Config, loggerClient logger.Logger, d deps.Deps) *Server {
	return &Server{
		http: &http.Server{
			Addr:              cfg.ListenPort,
			Handler:           NewRouter(d),
			ReadHeaderTimeout: readHeaderTimeout,
			ReadTimeout:       readTimeout,
			WriteTimeout:      writeTimeout,
			IdleTimeout:       idleTimeout,
			MaxHeaderBytes:    1 << 20,
			BaseContext:       func(net.Listener) context.Context { return ctx },
		},
		logger: loggerClient,
	}
}

// Start blocks until the server fails or is shut down.
func (s *Server) Start() error {
	s.logger.Info("http server listening", logger.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop drains in-flight requests until ctx expires. Hijacked websocket
// connections are not tracked by Shutdown; cancel the base context for those.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("http server shutting down")
	return s.http.Shutdown(ctx)
}
