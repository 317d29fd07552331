package tasks

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/shelfx/internal/models"
	"github.com/desertthunder/shelfx/internal/shared"
)

// CollectOpts contains configuration for collecting shelves.
type CollectOpts struct {
	Profile   string  // Profile name on the catalog site
	Shelf     string  // Shelf name, or services.AllShelves
	Prices    bool    // Look up prices and sort by them
	Refresh   bool    // Ignore cached book pages
	Workers   int     // Concurrent workers (default: 5, max: 10)
	RateLimit float64 // Requests per second (default: unlimited)
	OutputDir string  // Directory of the shelf JSON files
}

// ShelfResult is one collected shelf.
type ShelfResult struct {
	Shelf  models.Shelf
	Books  []models.Book
	Path   string   // Written JSON file
	Failed []string // Book urls that could not be scraped
}

// CollectResult contains the shelves collected for a profile.
type CollectResult struct {
	Profile models.Profile
	Shelves []ShelfResult
}

// ShelfEngine collects books from catalog shelves into JSON files.
type ShelfEngine struct {
	catalog Catalog
	cache   BookCache
	config  shared.CatalogConfig
	logger  *log.Logger
}

// NewShelfEngine creates a ShelfEngine. cache may be nil to always scrape book pages.
func NewShelfEngine(catalog Catalog, cache BookCache, config shared.CatalogConfig, logger *log.Logger) *ShelfEngine {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &ShelfEngine{
		catalog: catalog,
		cache:   cache,
		config:  config,
		logger:  shared.WithLogger(logger, "engine", "shelf"),
	}
}

// Collect resolves the profile, reads every page of the selected shelves, scrapes each book (served from the cache
// when fresh), optionally adds prices, sorts the books and writes one JSON file per shelf.
//
// Books are sorted by ascending price when prices are collected and by descending release date otherwise.
func (e *ShelfEngine) Collect(ctx context.Context, progress chan<- ProgressUpdate, opts CollectOpts) (*CollectResult, error) {
	if opts.Profile == "" || opts.Shelf == "" {
		return nil, fmt.Errorf("%w: profile and shelf names are required", shared.ErrMissingArgument)
	}
	if opts.OutputDir == "" {
		opts.OutputDir = e.config.ShelvesDir
	}
	if opts.Workers <= 0 {
		opts.Workers = e.config.Workers
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = e.config.RateLimit
	}

	sendProgress(progress, fetchProfileUpdate(opts.Profile))
	profile, err := e.catalog.FindProfile(ctx, opts.Profile)
	if err != nil {
		return nil, err
	}
	sendProgress(progress, foundProfileUpdate(profile))

	shelves, err := e.catalog.Shelves(ctx, profile, opts.Shelf)
	if err != nil {
		return nil, err
	}
	sendProgress(progress, foundShelvesUpdate(shelves))

	result := &CollectResult{Profile: profile}
	for _, shelf := range shelves {
		shelfResult, err := e.collectShelf(ctx, progress, profile, shelf, opts)
		if err != nil {
			return result, err
		}
		result.Shelves = append(result.Shelves, *shelfResult)
	}
	return result, nil
}

func (e *ShelfEngine) collectShelf(ctx context.Context, progress chan<- ProgressUpdate, profile models.Profile, shelf models.Shelf, opts CollectOpts) (*ShelfResult, error) {
	e.logger.Info("Collecting shelf", "shelf", shelf.Name, "pages", shelf.PageCount)

	pages := max(shelf.PageCount, 1)
	var urls []string
	for page := 1; page <= pages; page++ {
		sendProgress(progress, fetchPageUpdate(page, pages, shelf.Name))
		pageURLs, err := e.catalog.BookURLs(ctx, profile, shelf, page)
		if err != nil {
			return nil, err
		}
		urls = append(urls, pageURLs...)
	}
	urls = dedupe(urls)

	type scraped struct {
		url  string
		book models.Book
		err  error
	}
	pool := PoolOpts{Workers: opts.Workers, RateLimit: opts.RateLimit}
	results := runPool(ctx, urls, pool, func(ctx context.Context, url string) scraped {
		book, err := e.book(ctx, url, opts.Refresh)
		return scraped{url: url, book: book, err: err}
	}, func(completed int, r scraped) {
		if r.err != nil {
			sendProgress(progress, fetchBookFailedUpdate(completed, len(urls), r.url, r.err))
			return
		}
		sendProgress(progress, fetchBookUpdate(completed, len(urls), r.book))
	})
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := &ShelfResult{Shelf: shelf, Books: make([]models.Book, 0, len(results))}
	for _, r := range results {
		if r.err != nil {
			e.logger.Warn("Skipping book", "url", r.url, "error", r.err)
			out.Failed = append(out.Failed, r.url)
			continue
		}
		out.Books = append(out.Books, r.book)
	}

	if opts.Prices {
		e.prices(ctx, progress, out.Books, pool)
	}
	SortBooks(out.Books, opts.Prices)

	out.Path = shared.ShelfFilePath(opts.OutputDir, opts.Profile, shelf.Name)
	if err := shared.WriteJSONFile(out.Path, out.Books); err != nil {
		return nil, err
	}
	e.logger.Info("Shelf written", "shelf", shelf.Name, "books", len(out.Books), "failed", len(out.Failed), "path", out.Path)
	return out, nil
}

// book returns the cached book for url or scrapes and caches it.
func (e *ShelfEngine) book(ctx context.Context, url string, refresh bool) (models.Book, error) {
	maxAge := shared.MaxAge(e.config.InvalidateDays)
	if e.cache != nil && !refresh {
		cached, err := e.cache.Get(ctx, url, maxAge)
		if err == nil {
			return *cached, nil
		}
		if !errors.Is(err, shared.ErrCacheMiss) {
			e.logger.Warn("Book cache read failed", "url", url, "error", err)
		}
	}

	book, err := e.catalog.Book(ctx, url)
	if err != nil {
		return book, err
	}
	if e.cache != nil {
		if err := e.cache.Put(ctx, url, book); err != nil {
			e.logger.Warn("Book cache write failed", "url", url, "error", err)
		}
	}
	return book, nil
}

// prices fills Price in place. Failed lookups leave the price at zero.
func (e *ShelfEngine) prices(ctx context.Context, progress chan<- ProgressUpdate, books []models.Book, pool PoolOpts) {
	prices := runPool(ctx, books, pool, func(ctx context.Context, b models.Book) float64 {
		price, err := e.catalog.Price(ctx, b)
		if err != nil {
			e.logger.Debug("Price lookup failed", "title", b.Title, "error", err)
			return 0
		}
		return price
	}, nil)

	for i := range books {
		books[i].Price = prices[i]
		sendProgress(progress, fetchPriceUpdate(i+1, len(books), books[i]))
	}
}

// SortBooks orders books by ascending price when byPrice is set, otherwise by descending release date.
func SortBooks(books []models.Book, byPrice bool) {
	if byPrice {
		sort.SliceStable(books, func(i, j int) bool { return books[i].Price < books[j].Price })
		return
	}
	sort.SliceStable(books, func(i, j int) bool { return books[i].Release > books[j].Release })
}
