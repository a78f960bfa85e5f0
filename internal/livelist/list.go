package livelist

import (
	"sync"

	"github.com/Umairyojo/NexMark/internal/domain"
)

// Reconciler is the merge surface shared by every update origin
// (local mutation, cross-tab broadcast, change feed).
// All methods are keyed purely by bookmark id and are idempotent,
// so origins may be applied in any order.
type Reconciler interface {
	Upsert(b domain.Bookmark)
	Remove(id string)
	ReplaceAll(bookmarks []domain.Bookmark)
}

// List is the in-memory bookmark list of one dashboard view.
// It is kept sorted by CreatedAt descending after every mutation.
type List struct {
	mu        sync.RWMutex
	bookmarks []domain.Bookmark
	observer  func()
}

var _ Reconciler = (*List)(nil)

// New creates a list seeded with initial. The observer, when non-nil,
// is called after every mutation (outside the lock).
func New(initial []domain.Bookmark, observer func()) *List {
	l := &List{observer: observer}
	l.bookmarks = normalize(initial)
	return l
}

// Upsert inserts b when its id is unseen, otherwise replaces the record
// with the same id, then re-sorts.
func (l *List) Upsert(b domain.Bookmark) {
	if b.ID == "" {
		return
	}

	l.mu.Lock()
	replaced := false
	for i := range l.bookmarks {
		if l.bookmarks[i].ID == b.ID {
			l.bookmarks[i] = b
			replaced = true
			break
		}
	}
	if !replaced {
		// Prepend: the common case is a brand new bookmark.
		l.bookmarks = append([]domain.Bookmark{b}, l.bookmarks...)
	}
	domain.SortNewestFirst(l.bookmarks)
	l.mu.Unlock()

	l.notify()
}

// Remove drops any record with the given id. Absent ids are a no-op.
func (l *List) Remove(id string) {
	l.mu.Lock()
	next := l.bookmarks[:0:0]
	for _, b := range l.bookmarks {
		if b.ID != id {
			next = append(next, b)
		}
	}
	changed := len(next) != len(l.bookmarks)
	l.bookmarks = next
	l.mu.Unlock()

	if changed {
		l.notify()
	}
}

// ReplaceAll swaps the whole content, used after an authoritative refetch.
func (l *List) ReplaceAll(bookmarks []domain.Bookmark) {
	normalized := normalize(bookmarks)

	l.mu.Lock()
	l.bookmarks = normalized
	l.mu.Unlock()

	l.notify()
}

// Snapshot returns a copy of the list in render order.
func (l *List) Snapshot() []domain.Bookmark {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]domain.Bookmark, len(l.bookmarks))
	copy(out, l.bookmarks)
	return out
}

// Get returns the bookmark with the given id.
func (l *List) Get(id string) (domain.Bookmark, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	for _, b := range l.bookmarks {
		if b.ID == id {
			return b, true
		}
	}
	return domain.Bookmark{}, false
}

// Len returns the number of bookmarks held.
func (l *List) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return len(l.bookmarks)
}

func (l *List) notify() {
	if l.observer != nil {
		l.observer()
	}
}

// normalize copies bookmarks, keeps the last record per id and sorts.
func normalize(bookmarks []domain.Bookmark) []domain.Bookmark {
	out := make([]domain.Bookmark, 0, len(bookmarks))
	pos := make(map[string]int, len(bookmarks))
	for _, b := range bookmarks {
		if b.ID == "" {
			continue
		}
		if i, ok := pos[b.ID]; ok {
			out[i] = b
			continue
		}
		pos[b.ID] = len(out)
		out = append(out, b)
	}
	domain.SortNewestFirst(out)
	return out
}
