package tasks

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/shelfx/internal/formatter"
	"github.com/desertthunder/shelfx/internal/libraries"
	"github.com/desertthunder/shelfx/internal/models"
	"github.com/desertthunder/shelfx/internal/repositories"
	"github.com/desertthunder/shelfx/internal/shared"
)

// SiteSource builds configured library sites. Implemented by [LibraryEngine].
type SiteSource interface {
	Site(id string) (libraries.Site, error)
}

// LatestOpts configures [LatestEngine.Run].
type LatestOpts struct {
	SiteID   string
	Profile  string
	Exporter formatter.Exporter
	Workers  int       // Concurrent detail page fetches (default: 5, max: 10)
	Date     time.Time // Report date (default: today)
}

// LatestResult is the outcome of a new arrivals run.
type LatestResult struct {
	Pages    int           // New arrival detail pages found
	ISBNs    int           // Distinct ISBNs on those pages
	Books    []models.Book // Wanted books among the new arrivals
	Location string        // Where the report was exported, "" when nothing was written
}

// LatestEngine matches a library's new arrivals against the books a profile wants.
type LatestEngine struct {
	sites  SiteSource
	repo   *repositories.NewBooksRepository
	config *shared.Config
	logger *log.Logger
}

// NewLatestEngine creates a LatestEngine. repo may be nil to always fetch detail pages.
func NewLatestEngine(sites SiteSource, repo *repositories.NewBooksRepository, config *shared.Config, logger *log.Logger) *LatestEngine {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &LatestEngine{
		sites:  sites,
		repo:   repo,
		config: config,
		logger: shared.WithLogger(logger, "engine", "latest"),
	}
}

// Run collects the ISBNs of the library's new arrivals and reports the books of the search shelf that are among them,
// leaving out books already on the library shelf.
func (e *LatestEngine) Run(ctx context.Context, progress chan<- ProgressUpdate, opts LatestOpts) (*LatestResult, error) {
	site, err := e.sites.Site(opts.SiteID)
	if err != nil {
		return nil, err
	}
	news, ok := site.(libraries.NewsSource)
	if !ok {
		return nil, fmt.Errorf("%w: library %s has no new arrivals listing", shared.ErrLibraryNotSupported, opts.SiteID)
	}

	isbns, pages, err := e.newISBNs(ctx, progress, opts.SiteID, news, opts.Workers)
	if err != nil {
		return nil, err
	}
	result := &LatestResult{Pages: pages, ISBNs: len(isbns)}
	if len(isbns) == 0 {
		e.logger.Info("No new books found")
		return result, nil
	}

	dir := e.config.Catalog.ShelvesDir
	wanted, err := ReadShelf(shared.ShelfFilePath(dir, opts.Profile, e.config.Latest.SearchShelfName))
	if err != nil {
		return nil, err
	}
	var owned []models.Book
	if shelf := site.Config().ShelfName; shelf != "" {
		if owned, err = ReadShelf(shared.ShelfFilePath(dir, opts.Profile, shelf)); err != nil {
			return nil, err
		}
	}

	result.Books = MatchNewBooks(isbns, wanted, owned)
	e.logger.Info("Matched new books", "wanted", len(wanted), "owned", len(owned), "matching", len(result.Books))
	if len(result.Books) == 0 {
		e.logger.Info("No matching books found")
		return result, nil
	}

	day := opts.Date
	if day.IsZero() {
		day = time.Now()
	}
	latest := e.config.Latest
	target := formatter.Target{
		Workbook:  latest.WorkbookTitle,
		Worksheet: formatter.Dated(latest.WorksheetTitle, day),
		File:      latest.XLSFileName,
		FileSheet: day.Format(time.DateOnly),
	}
	sheet := formatter.NewSheet(target.FileSheet, latest.WorksheetHeaders, result.Books)
	result.Location, err = export(ctx, progress, opts.Exporter, target, sheet, e.logger)
	return result, err
}

// newISBNs crawls the news listing and reads the ISBNs of every listed book, using the cache for fresh pages.
func (e *LatestEngine) newISBNs(ctx context.Context, progress chan<- ProgressUpdate, siteID string, news libraries.NewsSource, workers int) (map[string]bool, int, error) {
	urls, err := news.NewBookURLs(ctx)
	if err != nil {
		return nil, 0, err
	}
	urls = dedupe(urls)
	e.logger.Info("Collecting books isbn", "pages", len(urls))

	maxAge := shared.MaxAge(e.config.Latest.InvalidateDays)
	type page struct {
		url   string
		isbns []string
	}
	pages := runPool(ctx, urls, PoolOpts{Workers: workers}, func(ctx context.Context, url string) page {
		return page{url: url, isbns: e.pageISBNs(ctx, siteID, news, url, maxAge)}
	}, func(completed int, p page) {
		sendProgress(progress, crawlNewsUpdate(completed, len(urls), p.url))
	})
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	isbns := map[string]bool{}
	for _, p := range pages {
		for _, isbn := range p.isbns {
			if digits := shared.DigitsOnly(isbn); digits != "" {
				isbns[digits] = true
			}
		}
	}
	return isbns, len(urls), nil
}

func (e *LatestEngine) pageISBNs(ctx context.Context, siteID string, news libraries.NewsSource, url string, maxAge time.Duration) []string {
	if e.repo != nil {
		cached, err := e.repo.ISBNs(ctx, url, maxAge)
		if err != nil {
			e.logger.Warn("New books cache read failed", "url", url, "error", err)
		} else if cached != nil {
			return cached
		}
	}

	isbns, err := news.ISBNs(ctx, url)
	if err != nil {
		e.logger.Error("Fetching book failed", "url", url, "error", err)
		return nil
	}
	if e.repo != nil && len(isbns) > 0 {
		if err := e.repo.Replace(ctx, url, siteID, isbns); err != nil {
			e.logger.Warn("New books cache write failed", "url", url, "error", err)
		}
	}
	return isbns
}

// MatchNewBooks returns the wanted books whose ISBN is in isbns and not on the owned list, ordered by author and title.
func MatchNewBooks(isbns map[string]bool, wanted, owned []models.Book) []models.Book {
	exclude := map[string]bool{}
	for _, b := range owned {
		if isbn := shared.DigitsOnly(b.ISBN); isbn != "" {
			exclude[isbn] = true
		}
	}

	byISBN := map[string]models.Book{}
	for _, b := range wanted {
		isbn := shared.DigitsOnly(b.ISBN)
		if isbn == "" || exclude[isbn] || !isbns[isbn] {
			continue
		}
		byISBN[isbn] = b
	}

	out := make([]models.Book, 0, len(byISBN))
	for _, b := range byISBN {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Author != out[j].Author {
			return out[i].Author < out[j].Author
		}
		return out[i].Title < out[j].Title
	})
	return out
}
