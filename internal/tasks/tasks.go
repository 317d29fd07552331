package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/shelfx/internal/formatter"
	"github.com/desertthunder/shelfx/internal/models"
	"github.com/desertthunder/shelfx/internal/shared"
)

// Catalog scrapes profiles, shelves and books from the cataloging site.
// Implemented by services.CatalogService.
type Catalog interface {
	FindProfile(ctx context.Context, name string) (models.Profile, error)
	Shelves(ctx context.Context, profile models.Profile, name string) ([]models.Shelf, error)
	BookURLs(ctx context.Context, profile models.Profile, shelf models.Shelf, page int) ([]string, error)
	Book(ctx context.Context, url string) (models.Book, error)
	Price(ctx context.Context, book models.Book) (float64, error)
}

// BookCache stores scraped books by url. Implemented by repositories.ShelfCacheRepository.
type BookCache interface {
	Get(ctx context.Context, url string, maxAge time.Duration) (*models.Book, error)
	Put(ctx context.Context, url string, book models.Book) error
}

// ReadShelf loads a shelf file written by [ShelfEngine.Collect].
// A missing or unreadable file is reported as [shared.ErrBooksListUnavailable].
func ReadShelf(path string) ([]models.Book, error) {
	var books []models.Book
	if err := shared.ReadJSONFile(path, &books); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrBooksListUnavailable, err)
	}
	return books, nil
}

// export writes sheet through exporter and reports where it went.
// An empty sheet is not an error: nothing is written and the location is "".
func export(ctx context.Context, progress chan<- ProgressUpdate, exporter formatter.Exporter, target formatter.Target, sheet formatter.Sheet, logger *log.Logger) (string, error) {
	if exporter == nil {
		return "", nil
	}
	location, err := exporter.Export(ctx, target, sheet)
	if errors.Is(err, shared.ErrNothingToExport) {
		logger.Info("Nothing to export", "target", target.File)
		return "", nil
	}
	if err != nil {
		return "", err
	}
	logger.Info("Report written", "location", location, "rows", len(sheet.Rows))
	sendProgress(progress, writeReportUpdate(location, len(sheet.Rows)))
	return location, nil
}

func dedupe(items []string) []string {
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, it := range items {
		if it == "" || seen[it] {
			continue
		}
		seen[it] = true
		out = append(out, it)
	}
	return out
}
