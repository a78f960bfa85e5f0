package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/Umairyojo/NexMark/internal/httpserver/deps"
	"github.com/Umairyojo/NexMark/internal/logger"
)

const readyzPingTimeout = 2 * time.Second

type readyzResponse struct {
	Ready   bool   `json:"ready"`
	Backend string `json:"backend,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Readyz reports ready once the data service answers a ping.
func Readyz(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readyzPingTimeout)
		defer cancel()

		if err := d.Data.Ping(ctx); err != nil {
			d.Logger.Warn("readiness probe failed",
				logger.String("backend", d.Backend),
				logger.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, readyzResponse{
				Backend: d.Backend,
				Error:   "data service unreachable",
			})
			return
		}
		writeJSON(w, http.StatusOK, readyzResponse{Ready: true, Backend: d.Backend})
	}
}
