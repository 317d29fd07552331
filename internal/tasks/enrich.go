package tasks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/shelfx/internal/formatter"
	"github.com/desertthunder/shelfx/internal/models"
	"github.com/desertthunder/shelfx/internal/shared"
)

// AuthorSource looks up author biographies. Implemented by services.GoodreadsService.
type AuthorSource interface {
	AuthorInfo(ctx context.Context, author string) (models.AuthorInfo, error)
}

// MovieRater rates movies found in directory names. Implemented by services.MovieService.
type MovieRater interface {
	Tokens(dirname string) models.MovieQuery
	Rate(ctx context.Context, q models.MovieQuery) models.MovieInfo
}

// ISBNFinder searches an ISBN for a book by title and author. Implemented by services.OpenLibraryService.
type ISBNFinder interface {
	FindISBN(ctx context.Context, book models.Book) (string, error)
}

// AuthorsResult groups author names by birth country.
type AuthorsResult struct {
	Authors   []models.AuthorInfo
	Countries map[string][]string
	Location  string
}

// MoviesResult holds the ratings found for a movie directory.
type MoviesResult struct {
	Movies   []models.MovieInfo
	Location string
}

// FillResult reports the ISBNs added to a shelf file.
type FillResult struct {
	Path    string
	Missing int // Books that had no ISBN
	Filled  int // Books an ISBN was found for
}

// EnrichEngine adds metadata from other sites to shelf books and movie directories.
// Any source may be nil when the matching operation is not used.
type EnrichEngine struct {
	authors AuthorSource
	movies  MovieRater
	isbns   ISBNFinder
	config  *shared.Config
	logger  *log.Logger
}

// NewEnrichEngine creates an EnrichEngine.
func NewEnrichEngine(authors AuthorSource, movies MovieRater, isbns ISBNFinder, config *shared.Config, logger *log.Logger) *EnrichEngine {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &EnrichEngine{
		authors: authors,
		movies:  movies,
		isbns:   isbns,
		config:  config,
		logger:  shared.WithLogger(logger, "engine", "enrich"),
	}
}

// Authors looks up the birth country of every author on a shelf and exports one row per country
// with the author names one per line.
func (e *EnrichEngine) Authors(ctx context.Context, progress chan<- ProgressUpdate, books []models.Book, exporter formatter.Exporter) (*AuthorsResult, error) {
	if e.authors == nil {
		return nil, fmt.Errorf("%w: author source", shared.ErrNotImplemented)
	}
	names := UniqueAuthors(books)
	e.logger.Info("Fetching authors info", "authors", len(names))

	type lookup struct {
		info models.AuthorInfo
		err  error
	}
	pool := PoolOpts{Workers: e.config.Authors.Workers}
	lookups := runPool(ctx, names, pool, func(ctx context.Context, name string) lookup {
		info, err := e.authors.AuthorInfo(ctx, name)
		if info.Name == "" {
			info.Name = name
		}
		return lookup{info: info, err: err}
	}, func(completed int, l lookup) {
		sendProgress(progress, fetchAuthorUpdate(completed, len(names), l.info))
	})
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := &AuthorsResult{}
	for _, l := range lookups {
		if l.err != nil {
			e.logger.Warn("Author lookup failed", "author", l.info.Name, "error", l.err)
			continue
		}
		result.Authors = append(result.Authors, l.info)
	}
	result.Countries = GroupByCountry(result.Authors)

	cfg := e.config.Authors
	sheet := formatter.Sheet{
		Title:   cfg.WorksheetTitle,
		Headers: []string{"country", "authors"},
		Rows:    CountryRows(result.Countries),
	}
	target := formatter.Target{
		Workbook:  cfg.WorkbookTitle,
		Worksheet: cfg.WorksheetTitle,
		File:      "authors",
		FileSheet: cfg.WorksheetTitle,
	}
	location, err := export(ctx, progress, exporter, target, sheet, e.logger)
	if err != nil {
		return nil, err
	}
	result.Location = location
	return result, nil
}

// UniqueAuthors returns the distinct non-empty authors of books, sorted.
func UniqueAuthors(books []models.Book) []string {
	names := make([]string, 0, len(books))
	for _, b := range books {
		names = append(names, strings.TrimSpace(b.Author))
	}
	names = dedupe(names)
	sort.Strings(names)
	return names
}

// GroupByCountry maps countries to sorted author names. Authors without a country are left out.
func GroupByCountry(authors []models.AuthorInfo) map[string][]string {
	out := map[string][]string{}
	for _, a := range authors {
		if a.Country == "" {
			continue
		}
		out[a.Country] = append(out[a.Country], a.Name)
	}
	for _, names := range out {
		sort.Strings(names)
	}
	return out
}

// CountryRows renders countries sorted by name as [country, names joined by newlines].
func CountryRows(countries map[string][]string) [][]string {
	keys := make([]string, 0, len(countries))
	for k := range countries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	rows := make([][]string, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, []string{k, strings.Join(countries[k], "\n")})
	}
	return rows
}

// Movies rates every entry of dir, reading the title and year from the entry names.
func (e *EnrichEngine) Movies(ctx context.Context, progress chan<- ProgressUpdate, dir string, exporter formatter.Exporter) (*MoviesResult, error) {
	if e.movies == nil {
		return nil, fmt.Errorf("%w: movie rater", shared.ErrNotImplemented)
	}
	names, err := e.movieNames(dir)
	if err != nil {
		return nil, err
	}
	e.logger.Info("Fetching movies info", "movies", len(names))

	movies := runPool(ctx, names, PoolOpts{}, func(ctx context.Context, name string) models.MovieInfo {
		return e.movies.Rate(ctx, e.movies.Tokens(name))
	}, func(completed int, m models.MovieInfo) {
		sendProgress(progress, fetchMovieUpdate(completed, len(names), m))
	})
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cfg := e.config.Movies
	result := &MoviesResult{Movies: movies}
	sheet := formatter.NewSheet(cfg.WorksheetTitle, cfg.WorksheetHeaders, movies)
	target := formatter.Target{
		Workbook:  cfg.WorkbookTitle,
		Worksheet: cfg.WorksheetTitle,
		File:      "movie_rating",
		FileSheet: cfg.WorksheetTitle,
	}
	if result.Location, err = export(ctx, progress, exporter, target, sheet, e.logger); err != nil {
		return nil, err
	}
	return result, nil
}

// movieNames lists dir, dropping hidden entries and the extension of video files.
func (e *EnrichEngine) movieNames(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
	}

	var names []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		if !entry.IsDir() {
			ext := strings.ToLower(filepath.Ext(name))
			if !slices.Contains(e.config.Movies.VideoExtensions, ext) {
				continue
			}
			name = strings.TrimSuffix(name, filepath.Ext(name))
		}
		names = append(names, name)
	}
	return names, nil
}

// ExtractFolders creates an empty directory in dst for every entry of src, so a movie collection can be
// rated from a copy of its names.
func ExtractFolders(src, dst string) ([]string, error) {
	entries, err := os.ReadDir(src)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
	}
	if len(entries) == 0 {
		return nil, nil
	}
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return nil, err
	}

	created := make([]string, 0, len(entries))
	for _, entry := range entries {
		path := filepath.Join(dst, entry.Name())
		if err := os.MkdirAll(path, 0o755); err != nil {
			return created, err
		}
		created = append(created, path)
	}
	return created, nil
}

// FillISBN searches an ISBN for every book of the shelf file at path that has none and rewrites the file.
func (e *EnrichEngine) FillISBN(ctx context.Context, progress chan<- ProgressUpdate, path string) (*FillResult, error) {
	if e.isbns == nil {
		return nil, fmt.Errorf("%w: isbn finder", shared.ErrNotImplemented)
	}
	books, err := ReadShelf(path)
	if err != nil {
		return nil, err
	}

	var missing []int
	for i, b := range books {
		if shared.DigitsOnly(b.ISBN) == "" && b.Title != "" {
			missing = append(missing, i)
		}
	}
	result := &FillResult{Path: path, Missing: len(missing)}
	if len(missing) == 0 {
		return result, nil
	}
	e.logger.Info("Searching missing isbns", "books", len(missing))

	type found struct {
		index int
		isbn  string
	}
	pool := PoolOpts{Workers: 1, RateLimit: e.config.OpenLibrary.RateLimit}
	finds := runPool(ctx, missing, pool, func(ctx context.Context, i int) found {
		isbn, err := e.isbns.FindISBN(ctx, books[i])
		if err != nil {
			e.logger.Warn("ISBN search failed", "title", books[i].Title, "error", err)
		}
		return found{index: i, isbn: isbn}
	}, func(completed int, f found) {
		b := books[f.index]
		b.ISBN = f.isbn
		sendProgress(progress, fetchISBNUpdate(completed, len(missing), b))
	})
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for _, f := range finds {
		if f.isbn == "" {
			continue
		}
		books[f.index].ISBN = f.isbn
		result.Filled++
	}
	if result.Filled > 0 {
		if err := shared.WriteJSONFile(path, books); err != nil {
			return nil, err
		}
	}
	e.logger.Info("Shelf updated", "path", path, "filled", result.Filled, "missing", result.Missing)
	return result, nil
}
