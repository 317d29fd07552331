package tasks

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/shelfx/internal/formatter"
	"github.com/desertthunder/shelfx/internal/libraries"
	"github.com/desertthunder/shelfx/internal/models"
	"github.com/desertthunder/shelfx/internal/repositories"
	"github.com/desertthunder/shelfx/internal/shared"
)

// Session is a browser page that must be closed after its batch.
type Session interface {
	libraries.Page
	Close()
}

// SessionOpener opens a browser session on the start page of site.
type SessionOpener func(ctx context.Context, site libraries.Site) (Session, error)

// ChromeSessions opens chromedp sessions configured by browser.
func ChromeSessions(browser shared.BrowserConfig, userAgent string, logger *log.Logger) SessionOpener {
	return func(ctx context.Context, site libraries.Site) (Session, error) {
		cfg := site.Config()
		s, err := libraries.OpenChrome(ctx, libraries.ChromeOptions{
			Headless:     browser.Headless,
			ExecPath:     browser.ExecPath,
			UserAgent:    userAgent,
			StartRetries: browser.StartRetries,
			QueryTimeout: time.Duration(browser.QueryTimeoutSeconds) * time.Second,
			StartURL:     cfg.StartURL,
			Title:        cfg.Title,
		}, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

// CheckResult summarizes a library check.
type CheckResult struct {
	SiteID   string
	Checked  int                    // Books looked up, cached or not
	Skipped  int                    // Books without an ISBN or title, and duplicates
	Outcomes map[models.Outcome]int // Books per outcome
	Holdings []models.Holding       // Borrowable copies sorted by department and section
	Failed   []models.Book          // Books that could not be checked
}

// LibraryReport is the result of [LibraryEngine.Report].
type LibraryReport struct {
	*CheckResult
	Shelf    string
	Location string // Where the report was exported, "" when nothing was written
}

// LibraryReportOpts configures [LibraryEngine.Report].
type LibraryReportOpts struct {
	SiteID   string
	Profile  string
	Exporter formatter.Exporter
	Date     time.Time // Report date (default: today)
}

// LibraryEngine checks shelf books against library OPACs using batches of browser sessions.
type LibraryEngine struct {
	registry *libraries.Registry
	config   *shared.Config
	repo     *repositories.AvailabilityRepository
	open     SessionOpener
	deps     libraries.Deps
	logger   *log.Logger
}

// NewLibraryEngine creates a LibraryEngine. repo may be nil to disable the availability cache.
func NewLibraryEngine(registry *libraries.Registry, config *shared.Config, repo *repositories.AvailabilityRepository, open SessionOpener, deps libraries.Deps, logger *log.Logger) *LibraryEngine {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	if deps.Logger == nil {
		deps.Logger = logger
	}
	return &LibraryEngine{
		registry: registry,
		config:   config,
		repo:     repo,
		open:     open,
		deps:     deps,
		logger:   shared.WithLogger(logger, "engine", "library"),
	}
}

// Site builds the configured site for id.
func (e *LibraryEngine) Site(id string) (libraries.Site, error) {
	if !slices.Contains(e.registry.IDs(), id) {
		return nil, fmt.Errorf("%w: %s", shared.ErrLibraryNotSupported, id)
	}
	cfg, err := e.config.Library(id)
	if err != nil {
		return nil, err
	}
	return e.registry.New(id, cfg, e.deps)
}

// Check looks up books in the library siteID.
//
// Books without an ISBN or title are skipped and duplicates are checked once. The rest is split into batches of
// ceil(n/nodes) books, each checked in its own browser session. A batch whose browser fails is resumed in a new
// session up to retry_run times.
func (e *LibraryEngine) Check(ctx context.Context, progress chan<- ProgressUpdate, siteID string, books []models.Book) (*CheckResult, error) {
	site, err := e.Site(siteID)
	if err != nil {
		return nil, err
	}
	checker := libraries.NewChecker(site, e.repo, e.deps.Logger)

	result := &CheckResult{SiteID: siteID, Outcomes: map[models.Outcome]int{}}
	seen := make(map[string]bool, len(books))
	var todo []models.Book
	for _, b := range books {
		fp := b.Fingerprint()
		if !b.Searchable() || seen[fp] {
			result.Skipped++
			continue
		}
		seen[fp] = true
		todo = append(todo, b)
	}

	batches := Batches(todo, e.config.Browser.Nodes)
	e.logger.Info("Checking books", "library", siteID, "books", len(todo), "batches", len(batches))

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		counter  atomic.Int32
		firstErr error
	)
	for _, batch := range batches {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := e.runBatch(ctx, progress, checker, batch, &counter, len(todo))

			mu.Lock()
			defer mu.Unlock()
			if err != nil && firstErr == nil {
				firstErr = err
			}
			result.Failed = append(result.Failed, out.failed...)
			result.Holdings = append(result.Holdings, out.holdings...)
			for outcome, n := range out.outcomes {
				result.Outcomes[outcome] += n
				result.Checked += n
			}
		}()
	}
	wg.Wait()

	if firstErr != nil {
		return result, firstErr
	}
	if err := ctx.Err(); err != nil {
		return result, err
	}

	SortHoldings(result.Holdings)
	return result, nil
}

type batchResult struct {
	outcomes map[models.Outcome]int
	holdings []models.Holding
	failed   []models.Book
}

// runBatch checks batch in a browser session, reopening it when the browser fails.
// A start page that is not the expected library aborts the batch.
func (e *LibraryEngine) runBatch(ctx context.Context, progress chan<- ProgressUpdate, checker *libraries.Checker, batch []models.Book, counter *atomic.Int32, total int) (batchResult, error) {
	out := batchResult{outcomes: map[models.Outcome]int{}}
	retries := max(e.config.Browser.RetryRun, 1)

	next := 0
	for attempt := 1; attempt <= retries && next < len(batch); attempt++ {
		if ctx.Err() != nil {
			break
		}

		session, err := e.open(ctx, checker.Site())
		if err != nil {
			if errors.Is(err, shared.ErrLibraryPageNotValid) {
				out.failed = append(out.failed, batch[next:]...)
				return out, err
			}
			e.logger.Error("Restarting browser", "attempt", attempt, "error", err)
			sendProgress(progress, restartBrowserUpdate(int(counter.Load()), total, attempt, err))
			continue
		}

		err = e.checkBooks(ctx, progress, checker, session, batch, &next, &out, counter, total)
		session.Close()
		if err == nil {
			break
		}
		e.logger.Error("Restarting browser", "attempt", attempt, "error", err)
		sendProgress(progress, restartBrowserUpdate(int(counter.Load()), total, attempt, err))
	}

	if next < len(batch) {
		e.logger.Error("Unable to search library", "library", checker.Site().ID(), "unchecked", len(batch)-next)
		out.failed = append(out.failed, batch[next:]...)
	}
	return out, nil
}

// checkBooks checks batch from *next on, advancing *next past every finished book.
// It stops at the first browser failure so the caller can reopen the session.
func (e *LibraryEngine) checkBooks(ctx context.Context, progress chan<- ProgressUpdate, checker *libraries.Checker, page libraries.Page, batch []models.Book, next *int, out *batchResult, counter *atomic.Int32, total int) error {
	for ; *next < len(batch); *next++ {
		if err := ctx.Err(); err != nil {
			return nil
		}
		book := batch[*next]

		a, err := checker.Check(ctx, page, book)
		if errors.Is(err, shared.ErrBrowserUnavailable) {
			return err
		}
		step := int(counter.Add(1))
		if err != nil {
			e.logger.Warn("Book check failed", "title", book.Title, "error", err)
			out.failed = append(out.failed, book)
			continue
		}

		out.outcomes[a.Outcome]++
		out.holdings = append(out.holdings, a.Holdings...)
		sendProgress(progress, checkBookUpdate(step, total, book, a))
	}
	return nil
}

// Report reads the library shelf of a profile, checks it and exports the borrowable copies.
//
// Google Sheets reports go to the report workbook in a "{shelf} {date}" worksheet. File reports go to a "{shelf}"
// file with a "{date}" sheet.
func (e *LibraryEngine) Report(ctx context.Context, progress chan<- ProgressUpdate, opts LibraryReportOpts) (*LibraryReport, error) {
	site, err := e.Site(opts.SiteID)
	if err != nil {
		return nil, err
	}
	shelf := site.Config().ShelfName
	if shelf == "" {
		return nil, fmt.Errorf("%w: libraries.%s has no shelf_name", shared.ErrLibraryNotConfigured, opts.SiteID)
	}

	path := shared.ShelfFilePath(e.config.Catalog.ShelvesDir, opts.Profile, shelf)
	e.logger.Info("Reading books list", "shelf", shelf, "path", path)
	books, err := ReadShelf(path)
	if err != nil {
		return nil, err
	}

	checked, err := e.Check(ctx, progress, opts.SiteID, books)
	if err != nil {
		return nil, err
	}
	report := &LibraryReport{CheckResult: checked, Shelf: shelf}
	if len(checked.Holdings) == 0 {
		e.logger.Info("No books from list available")
		return report, nil
	}

	day := opts.Date
	if day.IsZero() {
		day = time.Now()
	}
	date := day.Format(time.DateOnly)
	sheet := formatter.NewSheet(date, e.config.Report.WorksheetHeaders, checked.Holdings)
	target := formatter.Target{
		Workbook:  e.config.Report.WorkbookTitle,
		Worksheet: shelf + " " + date,
		File:      shelf,
		FileSheet: date,
	}
	report.Location, err = export(ctx, progress, opts.Exporter, target, sheet, e.logger)
	return report, err
}

// Batches splits books into at most nodes batches of ceil(len/nodes) books.
func Batches(books []models.Book, nodes int) [][]models.Book {
	if len(books) == 0 {
		return nil
	}
	nodes = max(nodes, 1)
	size := (len(books) + nodes - 1) / nodes

	var out [][]models.Book
	for i := 0; i < len(books); i += size {
		out = append(out, books[i:min(i+size, len(books))])
	}
	return out
}

// SortHoldings orders holdings by department, then section.
func SortHoldings(h []models.Holding) {
	sort.SliceStable(h, func(i, j int) bool {
		if h[i].Department != h[j].Department {
			return h[i].Department < h[j].Department
		}
		return h[i].Section < h[j].Section
	})
}
