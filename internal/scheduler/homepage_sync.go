package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/Umairyojo/NexMark/internal/logger"
	"github.com/Umairyojo/NexMark/internal/sources/homepage"
)

// Importer is what a sync writes through
type Importer interface {
	Import(ctx context.Context, userID string, links []homepage.Link) (homepage.Result, error)
}

// HomepageSync periodically imports a Homepage file into one user's bookmarks.
// Links already saved are skipped, so repeated runs only add new entries.
type HomepageSync struct {
	file          string
	userID        string
	importer      Importer
	logger        logger.Logger
	interval      time.Duration
	stopCh        chan struct{}
	done          chan struct{}
	manualTrigger chan struct{}
}

// NewHomepageSync creates a sync. An interval <= 0 imports once at Start.
func NewHomepageSync(
	file string,
	userID string,
	importer Importer,
	log logger.Logger,
	interval time.Duration,
	manualTrigger chan struct{},
) *HomepageSync {
	return &HomepageSync{
		file:          file,
		userID:        userID,
		importer:      importer,
		logger:        log,
		interval:      interval,
		stopCh:        make(chan struct{}),
		done:          make(chan struct{}),
		manualTrigger: manualTrigger,
	}
}

// Start imports immediately, then on every tick or manual trigger
func (hs *HomepageSync) Start(ctx context.Context) error {
	if _, err := hs.Sync(ctx); err != nil {
		close(hs.done)
		return fmt.Errorf("initial homepage sync failed: %w", err)
	}

	go func() {
		defer close(hs.done)

		var tick <-chan time.Time
		if hs.interval > 0 {
			ticker := time.NewTicker(hs.interval)
			defer ticker.Stop()
			tick = ticker.C
		}

		for {
			select {
			case <-tick:
				hs.syncLogged(ctx)
			case <-hs.manualTrigger:
				hs.logger.Info("manual homepage sync triggered")
				hs.syncLogged(ctx)
			case <-hs.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop stops the sync and waits for a running import to finish
func (hs *HomepageSync) Stop() {
	select {
	case <-hs.stopCh:
	default:
		close(hs.stopCh)
	}
	<-hs.done
}

// Sync loads the file and imports its links
func (hs *HomepageSync) Sync(ctx context.Context) (homepage.Result, error) {
	links, err := homepage.LoadFile(hs.file)
	if err != nil {
		return homepage.Result{}, fmt.Errorf("failed to load homepage file: %w", err)
	}

	hs.logger.Debug("loaded links from homepage",
		logger.String("file", hs.file),
		logger.Int("count", len(links)))

	res, err := hs.importer.Import(ctx, hs.userID, links)
	if err != nil {
		return res, fmt.Errorf("failed to import homepage links: %w", err)
	}
	return res, nil
}

func (hs *HomepageSync) syncLogged(ctx context.Context) {
	if _, err := hs.Sync(ctx); err != nil {
		hs.logger.Error("failed to sync homepage", logger.Error(err))
	}
}
