package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/shelfx/internal/models"
	"github.com/desertthunder/shelfx/internal/shared"
)

// NewBooksRepository caches the ISBNs found on library new arrivals pages, one row per ISBN.
type NewBooksRepository struct {
	cacheTable
}

// NewNewBooksRepository creates a new NewBooksRepository with the given database connection
func NewNewBooksRepository(db *sql.DB) *NewBooksRepository {
	return &NewBooksRepository{cacheTable: newCacheTable(db, "new_books_info")}
}

// ISBNs returns the fresh ISBNs stored for a page url.
//
// It returns nil when nothing fresh is stored, so callers can tell a miss from a page without ISBNs.
func (r *NewBooksRepository) ISBNs(ctx context.Context, url string, maxAge time.Duration) ([]string, error) {
	query := `SELECT isbn FROM new_books_info WHERE url_md5 = ? AND created >= ? ORDER BY isbn`

	rows, err := r.db.QueryContext(ctx, query, shared.MD5Hex(url), r.cutoff(maxAge))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read new books: %v", shared.ErrDatabase, err)
	}
	defer rows.Close()

	var isbns []string
	for rows.Next() {
		var isbn string
		if err := rows.Scan(&isbn); err != nil {
			return nil, fmt.Errorf("%w: failed to scan isbn: %v", shared.ErrDatabase, err)
		}
		isbns = append(isbns, isbn)
	}
	return isbns, rows.Err()
}

// Replace deletes the rows stored for url and inserts one row per ISBN in a single transaction.
func (r *NewBooksRepository) Replace(ctx context.Context, url, libraryID string, isbns []string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	urlMD5 := shared.MD5Hex(url)
	if _, err := tx.ExecContext(ctx, `DELETE FROM new_books_info WHERE url_md5 = ?`, urlMD5); err != nil {
		return fmt.Errorf("%w: failed to delete new books: %v", shared.ErrDatabase, err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO new_books_info (id, url_md5, library_id, isbn, created) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	created := r.stamp()
	for _, isbn := range isbns {
		if _, err := stmt.ExecContext(ctx, shared.GenerateID(), urlMD5, libraryID, isbn, created); err != nil {
			return fmt.Errorf("%w: failed to insert new book: %v", shared.ErrDatabase, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit new books: %w", err)
	}
	return nil
}

// List returns every fresh row for a library.
func (r *NewBooksRepository) List(ctx context.Context, libraryID string, maxAge time.Duration) ([]models.NewBook, error) {
	query := `
		SELECT url_md5, library_id, isbn, created FROM new_books_info
		WHERE library_id = ? AND created >= ?
		ORDER BY created DESC, isbn
	`

	rows, err := r.db.QueryContext(ctx, query, libraryID, r.cutoff(maxAge))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list new books: %v", shared.ErrDatabase, err)
	}
	defer rows.Close()

	var out []models.NewBook
	for rows.Next() {
		var (
			nb      models.NewBook
			created int64
		)
		if err := rows.Scan(&nb.URLMD5, &nb.LibraryID, &nb.ISBN, &created); err != nil {
			return nil, fmt.Errorf("%w: failed to scan new book: %v", shared.ErrDatabase, err)
		}
		nb.Created = time.Unix(created, 0).UTC()
		out = append(out, nb)
	}
	return out, rows.Err()
}

// ClearLibrary deletes every row of libraryID.
func (r *NewBooksRepository) ClearLibrary(ctx context.Context, libraryID string) (int64, error) {
	return r.exec(ctx, "DELETE FROM "+r.table+" WHERE library_id = ?", libraryID)
}
