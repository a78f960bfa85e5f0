package handlers

import (
	"net/http"
	"time"

	"github.com/Umairyojo/NexMark/internal/httpserver/deps"
	"github.com/Umairyojo/NexMark/internal/version"
)

// healthz only proves the process serves requests; readiness lives in /readyz.
type healthzResponse struct {
	Status  string       `json:"status"`
	Uptime  string       `json:"uptime"`
	Backend string       `json:"backend"`
	Views   int          `json:"live_views"`
	Build   version.Info `json:"build"`
}

func Healthz(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthzResponse{
			Status:  "ok",
			Uptime:  time.Since(d.StartTime).Truncate(time.Second).String(),
			Backend: d.Backend,
			Build:   d.Build,
		}
		if d.Views != nil {
			resp.Views = d.Views.Len()
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
