package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Umairyojo/NexMark/internal/auth"
	"github.com/Umairyojo/NexMark/internal/broadcast"
	"github.com/Umairyojo/NexMark/internal/domain"
	"github.com/Umairyojo/NexMark/internal/gateway"
	"github.com/Umairyojo/NexMark/internal/httpserver/deps"
	"github.com/Umairyojo/NexMark/internal/logger"
	"github.com/Umairyojo/NexMark/internal/sources/homepage"
)

const (
	maxJSONBody   = 64 << 10
	maxImportBody = 1 << 20
)

type listResponse struct {
	Bookmarks []domain.Bookmark `json:"bookmarks"`
}

type countResponse struct {
	Count int `json:"count"`
}

type createRequest struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

type mutationResponse struct {
	Status     domain.Status    `json:"status"`
	StatusText string           `json:"statusText,omitempty"`
	Bookmark   *domain.Bookmark `json:"bookmark,omitempty"`
}

type importResponse struct {
	mutationResponse
	homepage.Result
}

// ListBookmarks returns the user's bookmarks, newest first
func ListBookmarks(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, _ := auth.FromContext(r.Context())

		bookmarks, err := d.Data.List(r.Context(), s.UserID)
		if err != nil {
			d.Logger.Warn("failed to list bookmarks", logger.String("user_id", s.UserID), logger.Error(err))
			writeStatus(w, domain.StatusError, nil)
			return
		}
		if bookmarks == nil {
			bookmarks = []domain.Bookmark{}
		}
		writeJSON(w, http.StatusOK, listResponse{Bookmarks: bookmarks})
	}
}

// CountBookmarks returns the exact number of bookmarks the user owns
func CountBookmarks(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, _ := auth.FromContext(r.Context())

		n, err := d.Data.Count(r.Context(), s.UserID)
		if err != nil {
			d.Logger.Warn("failed to count bookmarks", logger.String("user_id", s.UserID), logger.Error(err))
			writeStatus(w, domain.StatusError, nil)
			return
		}
		writeJSON(w, http.StatusOK, countResponse{Count: n})
	}
}

// CreateBookmark accepts a JSON body or a form post with title and url
func CreateBookmark(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, _ := auth.FromContext(r.Context())

		var req createRequest
		if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
			if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody)).Decode(&req); err != nil {
				writeStatus(w, domain.StatusInvalidInput, nil)
				return
			}
		} else {
			r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
			req.Title, req.URL = r.FormValue("title"), r.FormValue("url")
		}

		var (
			created domain.Bookmark
			err     error
		)
		withGateway(r.Context(), d, s.UserID, func(gw *gateway.Gateway) {
			created, err = gw.Create(r.Context(), req.Title, req.URL, s.UserID)
		})

		status := gateway.StatusOf(gateway.OpCreate, err)
		if status != domain.StatusCreated {
			if status == domain.StatusError {
				d.Logger.Warn("failed to create bookmark", logger.String("user_id", s.UserID), logger.Error(err))
			}
			writeStatus(w, status, nil)
			return
		}
		writeStatus(w, status, &created)
	}
}

// DeleteBookmark removes one of the user's bookmarks
func DeleteBookmark(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, _ := auth.FromContext(r.Context())
		id := chi.URLParam(r, "id")

		var err error
		withGateway(r.Context(), d, s.UserID, func(gw *gateway.Gateway) {
			err = gw.Delete(r.Context(), id, s.UserID)
		})

		status := gateway.StatusOf(gateway.OpDelete, err)
		if status == domain.StatusError {
			d.Logger.Warn("failed to delete bookmark",
				logger.String("user_id", s.UserID),
				logger.String("bookmark_id", id),
				logger.Error(err))
		}
		writeStatus(w, status, nil)
	}
}

// ImportBookmarks creates bookmarks from a Homepage bookmarks.yaml or
// services.yaml request body
func ImportBookmarks(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, _ := auth.FromContext(r.Context())

		links, err := homepage.Read(r.Body, maxImportBody)
		if err != nil {
			d.Logger.Debug("rejected homepage import", logger.String("user_id", s.UserID), logger.Error(err))
			writeStatus(w, domain.StatusInvalidInput, nil)
			return
		}

		var res homepage.Result
		withGateway(r.Context(), d, s.UserID, func(gw *gateway.Gateway) {
			res, err = homepage.NewImporter(d.Data, gw, d.Logger).Import(r.Context(), s.UserID, links)
		})

		status := domain.StatusCreated
		if err != nil {
			d.Logger.Warn("homepage import aborted", logger.String("user_id", s.UserID), logger.Error(err))
			status = domain.StatusError
		}
		writeJSON(w, httpStatusOf(status), importResponse{
			mutationResponse: mutationResponse{Status: status, StatusText: status.Text()},
			Result:           res,
		})
	}
}

// withGateway runs fn with a gateway posting to the user's open tabs.
// When the broadcast channel cannot be joined, tabs still catch up
// through the change feed.
func withGateway(ctx context.Context, d deps.Deps, userID string, fn func(*gateway.Gateway)) {
	var endpoint broadcast.Endpoint
	if d.Bus != nil && userID != "" {
		ep, err := d.Bus.Join(ctx, broadcast.ChannelName(userID))
		switch {
		case err == nil:
			endpoint = ep
			defer func() { _ = ep.Close() }()
		case errors.Is(err, context.Canceled):
		default:
			d.Logger.Warn("failed to join broadcast channel", logger.String("user_id", userID), logger.Error(err))
		}
	}
	fn(gateway.New(d.Data, nil, endpoint, d.Logger))
}

func writeStatus(w http.ResponseWriter, status domain.Status, b *domain.Bookmark) {
	writeJSON(w, httpStatusOf(status), mutationResponse{
		Status:     status,
		StatusText: status.Text(),
		Bookmark:   b,
	})
}

func httpStatusOf(status domain.Status) int {
	switch status {
	case domain.StatusCreated:
		return http.StatusCreated
	case domain.StatusDeleted, domain.StatusIdle:
		return http.StatusOK
	case domain.StatusInvalidInput, domain.StatusInvalidURL:
		return http.StatusBadRequest
	default:
		return http.StatusBadGateway
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
