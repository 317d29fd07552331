// package repositories provides the SQLite cache tables.
//
// Every table stores a fingerprint, a JSON payload and a created timestamp in unix seconds.
// Rows are invalidated by age: a read with maxAge ignores rows created before now - maxAge.
package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/shelfx/internal/models"
	"github.com/desertthunder/shelfx/internal/shared"
)

// Clock returns the current time. Repositories default to [time.Now].
type Clock func() time.Time

// cacheTable implements [models.CacheStore] for one table and is embedded in every repository.
type cacheTable struct {
	db    *sql.DB
	table string
	now   Clock
}

func newCacheTable(db *sql.DB, table string) cacheTable {
	return cacheTable{db: db, table: table, now: time.Now}
}

// Name returns the table name.
func (c *cacheTable) Name() string {
	return c.table
}

// SetClock replaces the clock used for timestamps and age checks.
func (c *cacheTable) SetClock(clock Clock) {
	c.now = clock
}

// stamp is the created value for a row written now.
func (c *cacheTable) stamp() int64 {
	return c.now().Unix()
}

// cutoff returns the oldest created value still fresh for maxAge.
// A non-positive maxAge accepts every row.
func (c *cacheTable) cutoff(maxAge time.Duration) int64 {
	if maxAge <= 0 {
		return 0
	}
	return c.now().Add(-maxAge).Unix()
}

// Count returns the number of rows in the table.
func (c *cacheTable) Count(ctx context.Context) (int, error) {
	var n int
	if err := c.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", c.table)).Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: failed to count %s: %v", shared.ErrDatabase, c.table, err)
	}
	return n, nil
}

// Prune deletes rows older than maxAge and returns how many were removed.
func (c *cacheTable) Prune(ctx context.Context, maxAge time.Duration) (int64, error) {
	if maxAge <= 0 {
		return 0, fmt.Errorf("%w: max age must be positive", shared.ErrInvalidArgument)
	}
	return c.exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE created < ?", c.table), c.cutoff(maxAge))
}

// Clear deletes every row.
func (c *cacheTable) Clear(ctx context.Context) (int64, error) {
	return c.exec(ctx, fmt.Sprintf("DELETE FROM %s", c.table))
}

func (c *cacheTable) exec(ctx context.Context, query string, args ...any) (int64, error) {
	result, err := c.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", shared.ErrDatabase, c.table, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return rows, nil
}

// Stores returns every cache table backed by db, in a stable order.
func Stores(db *sql.DB) []models.CacheStore {
	return []models.CacheStore{
		NewShelfCacheRepository(db),
		NewAvailabilityRepository(db),
		NewNewBooksRepository(db),
		NewMemoRepository(db),
	}
}

var (
	_ models.CacheStore = (*ShelfCacheRepository)(nil)
	_ models.CacheStore = (*AvailabilityRepository)(nil)
	_ models.CacheStore = (*NewBooksRepository)(nil)
	_ models.CacheStore = (*MemoRepository)(nil)
)
