package homepage

import (
	"context"
	"fmt"

	"github.com/Umairyojo/NexMark/internal/dataservice"
	"github.com/Umairyojo/NexMark/internal/domain"
	"github.com/Umairyojo/NexMark/internal/gateway"
	"github.com/Umairyojo/NexMark/internal/logger"
)

// Result summarizes an import
type Result struct {
	Created   int       `json:"created"`
	Duplicate int       `json:"duplicate"`
	Rejected  []Failure `json:"rejected,omitempty"`
}

// Failure is a link the gateway refused
type Failure struct {
	Title  string        `json:"title"`
	URL    string        `json:"url"`
	Status domain.Status `json:"status"`
}

// Importer creates bookmarks from Homepage links through a gateway, so
// imported rows reach open dashboards like any other insert.
type Importer struct {
	repo    dataservice.Repository
	gateway *gateway.Gateway
	logger  logger.Logger
}

// NewImporter creates an importer writing through gw
func NewImporter(repo dataservice.Repository, gw *gateway.Gateway, log logger.Logger) *Importer {
	return &Importer{repo: repo, gateway: gw, logger: log}
}

// Import creates one bookmark per link whose URL the user does not have yet.
// A data service failure aborts the import.
func (im *Importer) Import(ctx context.Context, userID string, links []Link) (Result, error) {
	existing, err := im.repo.List(ctx, userID)
	if err != nil {
		return Result{}, fmt.Errorf("failed to list existing bookmarks: %w", err)
	}

	seen := make(map[string]struct{}, len(existing)+len(links))
	for _, b := range existing {
		seen[b.URL] = struct{}{}
	}

	var res Result
	for _, link := range links {
		if _, ok := seen[link.URL]; ok {
			res.Duplicate++
			continue
		}

		_, err := im.gateway.Create(ctx, link.Title, link.URL, userID)
		status := gateway.StatusOf(gateway.OpCreate, err)
		switch status {
		case domain.StatusCreated:
			res.Created++
			seen[link.URL] = struct{}{}
		case domain.StatusError:
			return res, err
		default:
			res.Rejected = append(res.Rejected, Failure{Title: link.Title, URL: link.URL, Status: status})
		}
	}

	im.logger.Info("homepage import finished",
		logger.String("user_id", userID),
		logger.Int("created", res.Created),
		logger.Int("duplicate", res.Duplicate),
		logger.Int("rejected", len(res.Rejected)))
	return res, nil
}
