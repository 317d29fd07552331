package tasks

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/desertthunder/shelfx/internal/formatter"
	"github.com/desertthunder/shelfx/internal/libraries"
	"github.com/desertthunder/shelfx/internal/models"
	"github.com/desertthunder/shelfx/internal/shared"
	tu "github.com/desertthunder/shelfx/internal/testing"
)

type mockCatalog struct {
	profile    models.Profile
	shelves    []models.Shelf
	pages      map[string][][]string // shelf name to urls per page
	books      map[string]models.Book
	prices     map[string]float64
	profileErr error
	shelvesErr error

	mu        sync.Mutex
	bookCalls int
}

func (m *mockCatalog) FindProfile(ctx context.Context, name string) (models.Profile, error) {
	if m.profileErr != nil {
		return models.Profile{}, m.profileErr
	}
	return m.profile, nil
}

func (m *mockCatalog) Shelves(ctx context.Context, profile models.Profile, name string) ([]models.Shelf, error) {
	if m.shelvesErr != nil {
		return nil, m.shelvesErr
	}
	if name == "all" {
		return m.shelves, nil
	}
	for _, s := range m.shelves {
		if s.Name == name {
			return []models.Shelf{s}, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", shared.ErrShelvesScrape, name)
}

func (m *mockCatalog) BookURLs(ctx context.Context, profile models.Profile, shelf models.Shelf, page int) ([]string, error) {
	pages := m.pages[shelf.Name]
	if page > len(pages) {
		return nil, nil
	}
	return pages[page-1], nil
}

func (m *mockCatalog) Book(ctx context.Context, url string) (models.Book, error) {
	m.mu.Lock()
	m.bookCalls++
	m.mu.Unlock()

	book, ok := m.books[url]
	if !ok {
		return models.Book{}, fmt.Errorf("%w: %s", shared.ErrBooksCollect, url)
	}
	return book, nil
}

func (m *mockCatalog) Price(ctx context.Context, book models.Book) (float64, error) {
	price, ok := m.prices[book.Title]
	if !ok {
		return 0, fmt.Errorf("no price for %s", book.Title)
	}
	return price, nil
}

func (m *mockCatalog) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bookCalls
}

// mockExporter records exports and refuses empty sheets like the real exporters.
type mockExporter struct {
	targets []formatter.Target
	sheets  []formatter.Sheet
	err     error
}

func (m *mockExporter) Export(ctx context.Context, target formatter.Target, sheet formatter.Sheet) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	if sheet.Empty() {
		return "", shared.ErrNothingToExport
	}
	m.targets = append(m.targets, target)
	m.sheets = append(m.sheets, sheet)
	return "mock://" + target.File, nil
}

// stubSite finds books by ISBN. Every book with a location is available, books listed in unavailable are found
// without a copy, and the rest are not found. browserFails makes the search of an ISBN fail with a browser error
// that many times.
type stubSite struct {
	cfg          shared.LibraryConfig
	locations    map[string][]libraries.Location
	unavailable  map[string]bool
	browserFails map[string]*atomic.Int32
}

func (s *stubSite) ID() string                   { return "stub" }
func (s *stubSite) Config() shared.LibraryConfig { return s.cfg }
func (s *stubSite) Fields() []models.Field       { return []models.Field{models.FieldISBN} }

func (s *stubSite) Search(ctx context.Context, page libraries.Page, book models.Book, field models.Field) ([]string, error) {
	if n, ok := s.browserFails[book.ISBN]; ok && n.Add(-1) >= 0 {
		return nil, fmt.Errorf("%w: tab crashed", shared.ErrBrowserUnavailable)
	}
	if _, ok := s.locations[book.ISBN]; ok || s.unavailable[book.ISBN] {
		return []string{"https://opac.example.com/" + book.ISBN}, nil
	}
	return nil, nil
}

func (s *stubSite) Scrape(ctx context.Context, book models.Book, urls []string) ([]libraries.Location, error) {
	return s.locations[book.ISBN], nil
}

// newsSite adds a new arrivals listing to stubSite.
type newsSite struct {
	*stubSite
	pages     map[string][]string
	isbnCalls atomic.Int32
}

func (s *newsSite) NewBookURLs(ctx context.Context) ([]string, error) {
	urls := make([]string, 0, len(s.pages))
	for url := range s.pages {
		urls = append(urls, url)
	}
	return urls, nil
}

func (s *newsSite) ISBNs(ctx context.Context, url string) ([]string, error) {
	s.isbnCalls.Add(1)
	return s.pages[url], nil
}

type siteMap map[string]libraries.Site

func (m siteMap) Site(id string) (libraries.Site, error) {
	site, ok := m[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrLibraryNotSupported, id)
	}
	return site, nil
}

type fakeSession struct {
	*tu.FakePage
	closed *atomic.Int32
}

func (s fakeSession) Close() { s.closed.Add(1) }

// fakeOpener opens fake sessions, failing the first failures opens with err.
type fakeOpener struct {
	failures int32
	err      error
	opened   atomic.Int32
	closed   atomic.Int32
}

func (o *fakeOpener) open(ctx context.Context, site libraries.Site) (Session, error) {
	n := o.opened.Add(1)
	if n <= o.failures {
		return nil, o.err
	}
	return fakeSession{FakePage: tu.NewFakePage(site.Config().StartURL, "<html></html>"), closed: &o.closed}, nil
}

func testConfig(t *testing.T) *shared.Config {
	t.Helper()
	cfg := shared.DefaultConfig()
	cfg.Catalog.ShelvesDir = t.TempDir()
	cfg.Catalog.InvalidateDays = 7
	cfg.Browser.Nodes = 2
	cfg.Browser.RetryRun = 2
	cfg.Libraries["stub"] = shared.LibraryConfig{
		ShelfName:      "Biblioteka",
		StartURL:       "https://opac.example.com/",
		InvalidateDays: 1,
	}
	return cfg
}

func writeShelf(t *testing.T, cfg *shared.Config, profile, shelf string, books []models.Book) string {
	t.Helper()
	path := shared.ShelfFilePath(cfg.Catalog.ShelvesDir, profile, shelf)
	require.NoError(t, shared.WriteJSONFile(path, books))
	return path
}

func drain(progress chan ProgressUpdate) []ProgressUpdate {
	var out []ProgressUpdate
	for {
		select {
		case u := <-progress:
			out = append(out, u)
		default:
			return out
		}
	}
}

func TestReadShelf(t *testing.T) {
	t.Run("Reads Written Shelf", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "shelf.json")
		books := []models.Book{{Title: "Solaris", Author: "Stanisław Lem", ISBN: "9788308049386"}}
		require.NoError(t, shared.WriteJSONFile(path, books))

		got, err := ReadShelf(path)
		require.NoError(t, err)
		assert.Equal(t, books, got)
	})

	t.Run("Missing File", func(t *testing.T) {
		_, err := ReadShelf(filepath.Join(t.TempDir(), "missing.json"))
		require.ErrorIs(t, err, shared.ErrBooksListUnavailable)
	})
}

func TestExport(t *testing.T) {
	ctx := context.Background()
	logger := shared.NewLogger(nil)
	sheet := formatter.Sheet{Headers: []string{"title"}, Rows: [][]string{{"Solaris"}}}

	t.Run("Nil Exporter", func(t *testing.T) {
		location, err := export(ctx, nil, nil, formatter.Target{File: "x"}, sheet, logger)
		require.NoError(t, err)
		assert.Empty(t, location)
	})

	t.Run("Empty Sheet Is Not An Error", func(t *testing.T) {
		exporter := &mockExporter{}
		location, err := export(ctx, nil, exporter, formatter.Target{File: "x"}, formatter.Sheet{}, logger)
		require.NoError(t, err)
		assert.Empty(t, location)
		assert.Empty(t, exporter.targets)
	})

	t.Run("Reports Location", func(t *testing.T) {
		progress := make(chan ProgressUpdate, 4)
		location, err := export(ctx, progress, &mockExporter{}, formatter.Target{File: "report"}, sheet, logger)
		require.NoError(t, err)
		assert.Equal(t, "mock://report", location)

		updates := drain(progress)
		require.Len(t, updates, 1)
		assert.Equal(t, WriteReport, updates[0].Phase)
	})

	t.Run("Exporter Error", func(t *testing.T) {
		_, err := export(ctx, nil, &mockExporter{err: shared.ErrMissingCredentials}, formatter.Target{}, sheet, logger)
		require.ErrorIs(t, err, shared.ErrMissingCredentials)
	})
}

func TestDedupe(t *testing.T) {
	got := dedupe([]string{"a", "", "b", "a", "c", "b"})
	assert.Equal(t, []string{"a", "b", "c"}, got)
}
