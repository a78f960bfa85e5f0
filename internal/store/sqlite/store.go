// Package sqlite is the embedded data service backend: bookmarks in a
// single SQLite file, change feed through an in-process feedhub.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/Umairyojo/NexMark/internal/dataservice"
	"github.com/Umairyojo/NexMark/internal/domain"
	"github.com/Umairyojo/NexMark/internal/feedhub"
	"github.com/Umairyojo/NexMark/internal/logger"
)

//go:embed schema.sql
var schemaSQL string

// Store implements dataservice.Service on SQLite.
type Store struct {
	db     *sql.DB
	hub    *feedhub.Hub
	logger logger.Logger
	now    func() time.Time
}

var _ dataservice.Service = (*Store)(nil)

// Open creates or opens the database at path and applies the schema.
func Open(path string, log logger.Logger) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite has a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Store{
		db:     db,
		hub:    feedhub.New(feedhub.DefaultBuffer, log),
		logger: log,
		now:    time.Now,
	}, nil
}

// Ping checks the database connection
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close ends every feed subscription and closes the database
func (s *Store) Close() error {
	_ = s.hub.Close()
	return s.db.Close()
}

// Subscribe opens the user's change feed
func (s *Store) Subscribe(ctx context.Context, userID string) (dataservice.Subscription, error) {
	return s.hub.Subscribe(ctx, userID)
}

// List returns the user's bookmarks, newest first
func (s *Store) List(ctx context.Context, userID string) ([]domain.Bookmark, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, title, url, created_at
		FROM bookmarks
		WHERE user_id = ?
		ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query bookmarks: %w", err)
	}
	defer rows.Close()

	bookmarks := []domain.Bookmark{}
	for rows.Next() {
		b, err := scanBookmark(rows)
		if err != nil {
			return nil, err
		}
		bookmarks = append(bookmarks, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read bookmarks: %w", err)
	}

	domain.SortNewestFirst(bookmarks)
	return bookmarks, nil
}

// Count returns the exact number of bookmarks owned by userID
func (s *Store) Count(ctx context.Context, userID string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM bookmarks WHERE user_id = ?`, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count bookmarks: %w", err)
	}
	return n, nil
}

// Insert stores a new bookmark and publishes an INSERT event
func (s *Store) Insert(ctx context.Context, nb domain.NewBookmark) (domain.Bookmark, error) {
	if nb.UserID == "" {
		return domain.Bookmark{}, errors.New("insert requires a user id")
	}

	b := domain.Bookmark{
		ID:        uuid.Must(uuid.NewV7()).String(),
		UserID:    nb.UserID,
		Title:     nb.Title,
		URL:       nb.URL,
		CreatedAt: s.now().UTC().Truncate(time.Microsecond),
	}

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO bookmarks (id, user_id, title, url, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		b.ID, b.UserID, b.Title, b.URL, b.CreatedAt.UnixMicro()); err != nil {
		return domain.Bookmark{}, fmt.Errorf("failed to insert bookmark: %w", err)
	}

	s.hub.Publish(b.UserID, domain.ChangeEvent{Type: domain.ChangeInsert, New: &b})
	return b, nil
}

// Delete removes the bookmark only if it belongs to userID and publishes a DELETE event
func (s *Store) Delete(ctx context.Context, id, userID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `
		SELECT id, user_id, title, url, created_at
		FROM bookmarks
		WHERE id = ? AND user_id = ?`, id, userID)
	old, err := scanBookmark(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM bookmarks WHERE id = ? AND user_id = ?`, id, userID); err != nil {
		return fmt.Errorf("failed to delete bookmark: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit delete: %w", err)
	}

	s.hub.Publish(userID, domain.ChangeEvent{Type: domain.ChangeDelete, Old: &old})
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBookmark(row scanner) (domain.Bookmark, error) {
	var (
		b       domain.Bookmark
		created int64
	)
	if err := row.Scan(&b.ID, &b.UserID, &b.Title, &b.URL, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Bookmark{}, err
		}
		return domain.Bookmark{}, fmt.Errorf("failed to scan bookmark: %w", err)
	}
	b.CreatedAt = time.UnixMicro(created).UTC()
	return b, nil
}
