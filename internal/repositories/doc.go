// Package repositories implements the SQLite caches behind the scrapers.
//
// Key Implementations:
//   - [ShelfCacheRepository] : book details keyed by md5 of the catalog url
//   - [AvailabilityRepository] : library search outcomes keyed by library id and book fingerprint
//   - [NewBooksRepository] : ISBNs listed on library new arrivals pages
//   - [MemoRepository] : memoized remote lookups keyed by function name and argument fingerprint
//
// Rows are never updated in place by readers. Writers replace the row for a key ("last write wins")
// except [MemoRepository.Set], which keeps the first value until [MemoRepository.Invalidate] drops it.
// Each repository embeds the same count, prune and clear helpers and satisfies [models.CacheStore].
package repositories
