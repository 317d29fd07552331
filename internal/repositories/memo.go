package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/shelfx/internal/shared"
)

// MemoRepository persists memoized results of remote lookups keyed by function name and argument fingerprint.
type MemoRepository struct {
	cacheTable
}

// NewMemoRepository creates a new MemoRepository with the given database connection
func NewMemoRepository(db *sql.DB) *MemoRepository {
	return &MemoRepository{cacheTable: newCacheTable(db, "memo_cache")}
}

// Invalidate deletes the entries of function older than maxAge.
func (r *MemoRepository) Invalidate(ctx context.Context, function string, maxAge time.Duration) (int64, error) {
	if maxAge <= 0 {
		return 0, nil
	}
	return r.exec(ctx, `DELETE FROM memo_cache WHERE function = ? AND created < ?`, function, r.cutoff(maxAge))
}

// Get returns the stored result when it is younger than maxAge, or [shared.ErrCacheMiss].
func (r *MemoRepository) Get(ctx context.Context, function, fingerprint string, maxAge time.Duration) ([]byte, error) {
	query := `SELECT result FROM memo_cache WHERE function = ? AND fingerprint = ? AND created >= ?`

	var result []byte
	err := r.db.QueryRowContext(ctx, query, function, fingerprint, r.cutoff(maxAge)).Scan(&result)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read memo: %v", shared.ErrDatabase, err)
	}
	return result, nil
}

// Set stores result. An existing entry for the fingerprint is kept until it is invalidated.
func (r *MemoRepository) Set(ctx context.Context, function, fingerprint string, result []byte) error {
	query := `INSERT OR IGNORE INTO memo_cache (function, fingerprint, result, created) VALUES (?, ?, ?, ?)`
	if _, err := r.db.ExecContext(ctx, query, function, fingerprint, string(result), r.stamp()); err != nil {
		return fmt.Errorf("%w: failed to store memo: %v", shared.ErrDatabase, err)
	}
	return nil
}

// CountByFunction returns the number of entries per memoized function.
func (r *MemoRepository) CountByFunction(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT function, COUNT(*) FROM memo_cache GROUP BY function`)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to count memo entries: %v", shared.ErrDatabase, err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			fn string
			n  int
		)
		if err := rows.Scan(&fn, &n); err != nil {
			return nil, fmt.Errorf("%w: failed to scan memo count: %v", shared.ErrDatabase, err)
		}
		counts[fn] = n
	}
	return counts, rows.Err()
}
