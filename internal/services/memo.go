package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/desertthunder/shelfx/internal/repositories"
	"github.com/desertthunder/shelfx/internal/shared"
)

// Cache lifetimes for memoized lookups.
const (
	Hour  = time.Hour
	Day   = 24 * Hour
	Month = 30 * Day
	Year  = 365 * Day
)

// Memo memoizes remote lookups in two levels: an in-process expirable LRU in front of [repositories.MemoRepository].
//
// Results are stored as JSON, so memoized values must round trip through encoding/json.
// Errors are never cached.
type Memo struct {
	lru    *expirable.LRU[string, []byte]
	repo   *repositories.MemoRepository
	logger *log.Logger
}

// NewMemo creates a Memo. repo may be nil, in which case only the in-process level is used.
func NewMemo(repo *repositories.MemoRepository, size int, ttl time.Duration, logger *log.Logger) *Memo {
	if size <= 0 {
		size = 2048
	}
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Memo{
		lru:    expirable.NewLRU[string, []byte](size, nil, ttl),
		repo:   repo,
		logger: logger,
	}
}

// Memoize returns the stored result of function for args, calling fn on a miss.
//
// Entries of function older than maxAge are dropped before the lookup.
func Memoize[T any](ctx context.Context, m *Memo, function string, maxAge time.Duration, fn func(context.Context) (T, error), args ...any) (T, error) {
	var zero T
	if m == nil {
		return fn(ctx)
	}

	fp, err := shared.Fingerprint(function, args...)
	if err != nil {
		return zero, err
	}
	key := function + ":" + fp

	if data, ok := m.lru.Get(key); ok {
		var v T
		if err := json.Unmarshal(data, &v); err == nil {
			return v, nil
		}
		m.lru.Remove(key)
	}

	if m.repo != nil {
		if _, err := m.repo.Invalidate(ctx, function, maxAge); err != nil {
			m.logger.Warn("memo invalidation failed", "function", function, "error", err)
		}

		data, err := m.repo.Get(ctx, function, fp, maxAge)
		switch {
		case err == nil:
			var v T
			if err := json.Unmarshal(data, &v); err == nil {
				m.lru.Add(key, data)
				return v, nil
			}
			m.logger.Warn("discarding undecodable memo entry", "function", function)
		case !errors.Is(err, shared.ErrCacheMiss):
			m.logger.Warn("memo read failed", "function", function, "error", err)
		}
	}

	v, err := fn(ctx)
	if err != nil {
		return zero, err
	}

	data, err := json.Marshal(v)
	if err != nil {
		return zero, fmt.Errorf("failed to encode %s result: %w", function, err)
	}
	m.lru.Add(key, data)
	if m.repo != nil {
		if err := m.repo.Set(ctx, function, fp, data); err != nil {
			m.logger.Warn("memo write failed", "function", function, "error", err)
		}
	}
	return v, nil
}

// Purge drops the in-process level.
func (m *Memo) Purge() {
	m.lru.Purge()
}
