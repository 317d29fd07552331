package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/shelfx/internal/models"
	"github.com/desertthunder/shelfx/internal/shared"
)

// ShelfCacheRepository caches book details scraped from the catalog site, keyed by md5 of the book url.
type ShelfCacheRepository struct {
	cacheTable
}

// NewShelfCacheRepository creates a new ShelfCacheRepository with the given database connection
func NewShelfCacheRepository(db *sql.DB) *ShelfCacheRepository {
	return &ShelfCacheRepository{cacheTable: newCacheTable(db, "book_shelf_info")}
}

// Get returns the cached book for url when it is younger than maxAge, or [shared.ErrCacheMiss].
func (r *ShelfCacheRepository) Get(ctx context.Context, url string, maxAge time.Duration) (*models.Book, error) {
	query := `SELECT book_info FROM book_shelf_info WHERE url_md5 = ? AND created >= ?`

	var payload string
	err := r.db.QueryRowContext(ctx, query, shared.MD5Hex(url), r.cutoff(maxAge)).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read book info: %v", shared.ErrDatabase, err)
	}

	var book models.Book
	if err := json.Unmarshal([]byte(payload), &book); err != nil {
		return nil, fmt.Errorf("%w: corrupt book info for %s", shared.ErrCacheMiss, url)
	}
	return &book, nil
}

// Put stores book under url, replacing any previous entry.
func (r *ShelfCacheRepository) Put(ctx context.Context, url string, book models.Book) error {
	payload, err := json.Marshal(book)
	if err != nil {
		return fmt.Errorf("failed to encode book info: %w", err)
	}

	query := `
		INSERT INTO book_shelf_info (url_md5, book_info, created) VALUES (?, ?, ?)
		ON CONFLICT(url_md5) DO UPDATE SET book_info = excluded.book_info, created = excluded.created
	`
	if _, err := r.db.ExecContext(ctx, query, shared.MD5Hex(url), string(payload), r.stamp()); err != nil {
		return fmt.Errorf("%w: failed to store book info: %v", shared.ErrDatabase, err)
	}
	return nil
}

// Delete removes the entry for url.
func (r *ShelfCacheRepository) Delete(ctx context.Context, url string) error {
	_, err := r.exec(ctx, `DELETE FROM book_shelf_info WHERE url_md5 = ?`, shared.MD5Hex(url))
	return err
}
