package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/Umairyojo/NexMark/internal/httpserver/deps"
)

type componentStatus struct {
	OK      bool   `json:"ok"`
	Mode    string `json:"mode,omitempty"`
	Impact  string `json:"impact,omitempty"`
	Views   *int   `json:"views,omitempty"`
	Users   *int   `json:"users,omitempty"`
	Latency string `json:"latency,omitempty"`
	Error   string `json:"error,omitempty"`
}

type infraResponse struct {
	SyncMode   string                     `json:"sync_mode"`
	Components map[string]componentStatus `json:"components"`
}

func Infra(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")

		views, users := d.Views.Len(), d.Views.Users()

		components := map[string]componentStatus{
			"data_service": checkDataService(r.Context(), d),
			"broadcast": {
				OK:   d.Bus != nil,
				Mode: d.Broadcast,
			},
			"live_views": {
				OK:    true,
				Views: &views,
				Users: &users,
			},
		}

		response := infraResponse{
			SyncMode:   determineSyncMode(components),
			Components: components,
		}

		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(response)
	}
}

func determineSyncMode(components map[string]componentStatus) string {
	// No data service = nothing to list or mutate
	if ds, exists := components["data_service"]; exists && !ds.OK {
		return "critical"
	}

	// No broadcast = other tabs wait for the change feed
	if bc, exists := components["broadcast"]; exists && !bc.OK {
		return "degraded"
	}

	return "live"
}

func checkDataService(parent context.Context, d deps.Deps) componentStatus {
	if d.Data == nil {
		return componentStatus{
			OK:     false,
			Mode:   d.Backend,
			Impact: "dashboard-unavailable",
			Error:  "client not initialized",
		}
	}

	ctx, cancel := context.WithTimeout(parent, 2*time.Second)
	defer cancel()

	start := time.Now()
	if err := d.Data.Ping(ctx); err != nil {
		return componentStatus{
			OK:     false,
			Mode:   d.Backend,
			Impact: "dashboard-unavailable",
			Error:  "unreachable",
		}
	}

	return componentStatus{
		OK:      true,
		Mode:    d.Backend,
		Impact:  "none",
		Latency: time.Since(start).Round(time.Microsecond).String(),
	}
}
