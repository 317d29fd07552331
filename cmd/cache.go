package main

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strconv"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/shelfx/internal/formatter"
	"github.com/desertthunder/shelfx/internal/models"
	"github.com/desertthunder/shelfx/internal/repositories"
	"github.com/desertthunder/shelfx/internal/shared"
)

// stores returns the cache tables, or only the one named by the --table flag.
func (r *Runner) stores(cmd *cli.Command) ([]models.CacheStore, error) {
	db, err := r.database()
	if err != nil {
		return nil, err
	}
	stores := repositories.Stores(db)

	name := cmd.String("table")
	if name == "" {
		return stores, nil
	}
	for _, s := range stores {
		if s.Name() == name {
			return []models.CacheStore{s}, nil
		}
	}
	return nil, fmt.Errorf("%w: unknown cache table %q", shared.ErrInvalidArgument, name)
}

// CacheStats shows the number of rows in each cache table, and the memoized lookups per function.
func (r *Runner) CacheStats(ctx context.Context, cmd *cli.Command) error {
	stores, err := r.stores(cmd)
	if err != nil {
		return err
	}

	sheet := formatter.Sheet{Headers: []string{"table", "rows"}}
	for _, s := range stores {
		n, err := s.Count(ctx)
		if err != nil {
			return err
		}
		sheet.Rows = append(sheet.Rows, []string{s.Name(), strconv.Itoa(n)})
	}
	r.writeTable(sheet)

	counts, err := repositories.NewMemoRepository(r.db).CountByFunction(ctx)
	if err != nil {
		return err
	}
	if len(counts) == 0 {
		return nil
	}
	memo := formatter.Sheet{Headers: []string{"function", "entries"}}
	for _, fn := range slices.Sorted(maps.Keys(counts)) {
		memo.Rows = append(memo.Rows, []string{fn, strconv.Itoa(counts[fn])})
	}
	r.writePlain("\n")
	r.writeTable(memo)
	return nil
}

// CachePrune deletes cache entries older than --days.
func (r *Runner) CachePrune(ctx context.Context, cmd *cli.Command) error {
	days := int(cmd.Int("days"))
	if days <= 0 {
		return fmt.Errorf("%w: --days must be positive", shared.ErrInvalidArgument)
	}
	stores, err := r.stores(cmd)
	if err != nil {
		return err
	}

	for _, s := range stores {
		n, err := s.Prune(ctx, shared.MaxAge(days))
		if err != nil {
			return err
		}
		r.logger.Debug("pruned cache table", "table", s.Name(), "rows", n)
		r.writePlain("✓ %s: %d pruned\n", s.Name(), n)
	}
	return nil
}

// CacheClear deletes every cache entry.
func (r *Runner) CacheClear(ctx context.Context, cmd *cli.Command) error {
	stores, err := r.stores(cmd)
	if err != nil {
		return err
	}

	for _, s := range stores {
		n, err := s.Clear(ctx)
		if err != nil {
			return err
		}
		r.writePlain("✓ %s: %d cleared\n", s.Name(), n)
	}
	return nil
}
