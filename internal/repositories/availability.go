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

// AvailabilityRepository caches library search outcomes per library and book fingerprint.
//
// All three outcomes are stored so a missing book is not searched again until its row ages out.
type AvailabilityRepository struct {
	cacheTable
}

// NewAvailabilityRepository creates a new AvailabilityRepository with the given database connection
func NewAvailabilityRepository(db *sql.DB) *AvailabilityRepository {
	return &AvailabilityRepository{cacheTable: newCacheTable(db, "book_library_availability")}
}

// Get returns the cached outcome when it is younger than maxAge, or [shared.ErrCacheMiss].
func (r *AvailabilityRepository) Get(ctx context.Context, libraryID, fingerprint string, maxAge time.Duration) (*models.Availability, error) {
	query := `
		SELECT library_id, book_md5, outcome, search_field, search_results, created
		FROM book_library_availability
		WHERE library_id = ? AND book_md5 = ? AND created >= ?
	`

	a, err := r.scanOne(r.db.QueryRowContext(ctx, query, libraryID, fingerprint, r.cutoff(maxAge)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.ErrCacheMiss
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Put stores an outcome, replacing the previous one for the same library and book.
func (r *AvailabilityRepository) Put(ctx context.Context, a models.Availability) error {
	if a.LibraryID == "" || a.BookFingerprint == "" {
		return fmt.Errorf("%w: availability needs a library id and book fingerprint", shared.ErrInvalidArgument)
	}

	holdings := a.Holdings
	if holdings == nil {
		holdings = []models.Holding{}
	}
	payload, err := json.Marshal(holdings)
	if err != nil {
		return fmt.Errorf("failed to encode search results: %w", err)
	}

	query := `
		INSERT INTO book_library_availability (library_id, book_md5, outcome, search_field, search_results, created)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(library_id, book_md5) DO UPDATE SET
			outcome = excluded.outcome,
			search_field = excluded.search_field,
			search_results = excluded.search_results,
			created = excluded.created
	`
	_, err = r.db.ExecContext(ctx, query, a.LibraryID, a.BookFingerprint, string(a.Outcome), string(a.Field), string(payload), r.stamp())
	if err != nil {
		return fmt.Errorf("%w: failed to store availability: %v", shared.ErrDatabase, err)
	}
	return nil
}

// List returns every fresh outcome for a library.
func (r *AvailabilityRepository) List(ctx context.Context, libraryID string, maxAge time.Duration) ([]*models.Availability, error) {
	query := `
		SELECT library_id, book_md5, outcome, search_field, search_results, created
		FROM book_library_availability
		WHERE library_id = ? AND created >= ?
		ORDER BY created DESC
	`

	rows, err := r.db.QueryContext(ctx, query, libraryID, r.cutoff(maxAge))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list availability: %v", shared.ErrDatabase, err)
	}
	defer rows.Close()

	var out []*models.Availability
	for rows.Next() {
		a, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func (r *AvailabilityRepository) scanOne(row *sql.Row) (*models.Availability, error) {
	return r.scan(row)
}

func (r *AvailabilityRepository) scanRow(rows *sql.Rows) (*models.Availability, error) {
	return r.scan(rows)
}

func (r *AvailabilityRepository) scan(s scanner) (*models.Availability, error) {
	var (
		a              models.Availability
		outcome, field string
		payload        string
		created        int64
	)
	if err := s.Scan(&a.LibraryID, &a.BookFingerprint, &outcome, &field, &payload, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: failed to scan availability: %v", shared.ErrDatabase, err)
	}

	a.Outcome = models.Outcome(outcome)
	a.Field = models.Field(field)
	a.CheckedAt = time.Unix(created, 0).UTC()
	if err := json.Unmarshal([]byte(payload), &a.Holdings); err != nil {
		return nil, fmt.Errorf("%w: corrupt search results for %s", shared.ErrCacheMiss, a.BookFingerprint)
	}
	return &a, nil
}

// ClearLibrary deletes every row of libraryID.
func (r *AvailabilityRepository) ClearLibrary(ctx context.Context, libraryID string) (int64, error) {
	return r.exec(ctx, "DELETE FROM "+r.table+" WHERE library_id = ?", libraryID)
}
