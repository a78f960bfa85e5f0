package domain

import (
	"net/url"
	"sort"
	"strings"
	"time"
)

// Bookmark is a single saved link owned by one user.
//
// It mirrors one row of the data service "bookmarks" collection.
// The JSON field names are the wire names used by the change feed,
// the broadcast channel and the HTTP API.
type Bookmark struct {
	// ─────────────────────────────
	// Identity (immutable)
	// ─────────────────────────────

	// ID is assigned by the data service at insert time.
	ID string `json:"id"`

	// UserID is the owner. Every bookmark belongs to exactly one user.
	UserID string `json:"user_id"`

	// ─────────────────────────────
	// User-supplied content
	// ─────────────────────────────

	// Title is the non-empty display string.
	Title string `json:"title"`

	// URL is an absolute http:// or https:// URL.
	URL string `json:"url"`

	// ─────────────────────────────
	// Metadata
	// ─────────────────────────────

	// CreatedAt is assigned server-side and is the sole sort key (newest first).
	CreatedAt time.Time `json:"created_at"`
}

// NewBookmark is the insert payload sent to the data service.
// ID and CreatedAt are left to the service.
type NewBookmark struct {
	UserID string `json:"user_id"`
	Title  string `json:"title"`
	URL    string `json:"url"`
}

// IsValidHTTPURL reports whether raw parses as an absolute URL
// with an http or https scheme and a host.
func IsValidHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return false
	}
	return u.Host != ""
}

// SortNewestFirst sorts bookmarks by CreatedAt descending.
// The sort is stable so records sharing a timestamp keep their relative order.
func SortNewestFirst(bookmarks []Bookmark) {
	sort.SliceStable(bookmarks, func(i, j int) bool {
		return bookmarks[i].CreatedAt.After(bookmarks[j].CreatedAt)
	})
}

// IsSortedNewestFirst reports whether bookmarks are ordered by CreatedAt descending.
func IsSortedNewestFirst(bookmarks []Bookmark) bool {
	for i := 1; i < len(bookmarks); i++ {
		if bookmarks[i].CreatedAt.After(bookmarks[i-1].CreatedAt) {
			return false
		}
	}
	return true
}
