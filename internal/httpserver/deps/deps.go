package deps

import (
	"time"

	"github.com/Umairyojo/NexMark/internal/auth"
	"github.com/Umairyojo/NexMark/internal/broadcast"
	"github.com/Umairyojo/NexMark/internal/dataservice"
	"github.com/Umairyojo/NexMark/internal/logger"
	"github.com/Umairyojo/NexMark/internal/version"
	"github.com/Umairyojo/NexMark/internal/view"
)

type Deps struct {
	Logger    logger.Logger
	StartTime time.Time
	Build     version.Info

	AllowedHosts []string // Host headers allowed to access the server
	AllowedCIDRS []string // IPs allowed to access healthz/readyz/infra endpoints
	TrustProxy   bool     // true if running behind a trusted reverse proxy (e.g., cloudflared)

	RateBurst        int // mutation burst per user or IP
	RateRefillPerMin int // mutation refill per minute

	Backend   string              // data service backend name, reported by /infra
	Broadcast string              // broadcast bus name, reported by /infra
	Data      dataservice.Service // bookmarks, counts and change feed
	Bus       broadcast.Bus       // cross-tab broadcast
	Auth      *auth.Manager       // sign-in flow and session cookies
	Views     *view.Registry      // mounted live dashboards

	FeedRetryPause time.Duration // 0 = feed.DefaultRetryPause

	HomepageTrigger chan struct{} // nil when no Homepage file is synced
}

// ViewDeps returns what a live dashboard is mounted on
func (d Deps) ViewDeps() view.Deps {
	return view.Deps{
		Data:           d.Data,
		Bus:            d.Bus,
		Logger:         d.Logger,
		FeedRetryPause: d.FeedRetryPause,
	}
}
