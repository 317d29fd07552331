package libraries

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/shelfx/internal/models"
	"github.com/desertthunder/shelfx/internal/repositories"
	"github.com/desertthunder/shelfx/internal/shared"
)

// Checker runs the search strategies of one site for a book and caches the outcome.
type Checker struct {
	site   Site
	repo   *repositories.AvailabilityRepository
	maxAge time.Duration
	logger *log.Logger
}

// NewChecker creates a checker for site. A nil repo disables caching.
func NewChecker(site Site, repo *repositories.AvailabilityRepository, logger *log.Logger) *Checker {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Checker{
		site:   site,
		repo:   repo,
		maxAge: shared.MaxAge(site.Config().InvalidateDays),
		logger: shared.WithLogger(logger, "library", site.ID()),
	}
}

// Site returns the checked site.
func (c *Checker) Site() Site { return c.site }

// Check returns the availability of book.
//
// Fields are tried in order and a field without results moves on to the next one. The first field that finds the book
// decides the outcome: Available when a copy can be borrowed, Unavailable otherwise. A book no field finds is NotFound.
// Errors are returned without caching; [shared.ErrBrowserUnavailable] means the page must be reopened.
func (c *Checker) Check(ctx context.Context, page Page, book models.Book) (models.Availability, error) {
	fp := book.Fingerprint()
	if cached, ok := c.cached(ctx, fp); ok {
		return cached, nil
	}

	result := models.Availability{
		LibraryID:       c.site.ID(),
		BookFingerprint: fp,
		Outcome:         models.NotFound,
	}

	for _, field := range c.site.Fields() {
		if book.Value(field) == "" {
			continue
		}

		urls, err := c.search(ctx, page, book, field)
		if err != nil {
			return result, err
		}
		if len(urls) == 0 {
			c.logger.Debug("no results, trying next field", "title", book.Title, "field", field)
			continue
		}

		locations, err := c.site.Scrape(ctx, book, urls)
		if err != nil {
			return result, err
		}

		result.Field = field
		if len(locations) == 0 {
			result.Outcome = models.Unavailable
		} else {
			result.Outcome = models.Available
			result.Holdings = holdings(book, locations)
		}
		break
	}

	result.CheckedAt = time.Now().UTC()
	switch result.Outcome {
	case models.Available:
		c.logger.Info("book available", "title", book.Title, "author", book.Author, "copies", len(result.Holdings))
	case models.Unavailable:
		c.logger.Info("book not available", "title", book.Title, "author", book.Author)
	default:
		c.logger.Info("book not found", "title", book.Title, "author", book.Author)
	}

	if c.repo != nil {
		if err := c.repo.Put(ctx, result); err != nil {
			c.logger.Warn("failed to cache availability", "title", book.Title, "error", err)
		}
	}
	return result, nil
}

func (c *Checker) cached(ctx context.Context, fp string) (models.Availability, bool) {
	if c.repo == nil {
		return models.Availability{}, false
	}
	a, err := c.repo.Get(ctx, c.site.ID(), fp, c.maxAge)
	if err != nil {
		if !errors.Is(err, shared.ErrCacheMiss) {
			c.logger.Warn("failed to read availability cache", "error", err)
		}
		return models.Availability{}, false
	}
	return *a, true
}

func (c *Checker) search(ctx context.Context, page Page, book models.Book, field models.Field) ([]string, error) {
	if p, ok := c.site.(Preparer); ok {
		if err := p.Prepare(ctx, page); err != nil {
			return nil, err
		}
	}

	urls, err := c.site.Search(ctx, page, book, field)
	if err != nil {
		return nil, err
	}

	if f, ok := c.site.(Finisher); ok {
		if err := f.Finish(ctx, page); err != nil {
			c.logger.Warn("failed to reset search page", "error", err)
		}
	}
	return urls, nil
}

// holdings turns locations into report rows, dropping repeated department and section pairs.
func holdings(book models.Book, locations []Location) []models.Holding {
	seen := make(map[Location]bool, len(locations))
	out := make([]models.Holding, 0, len(locations))
	for _, l := range locations {
		if seen[l] {
			continue
		}
		seen[l] = true
		out = append(out, models.NewHolding(book, l.Department, l.Section))
	}
	return out
}
