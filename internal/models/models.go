// package models defines the records passed between scrapers, caches and exporters
package models

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/shelfx/internal/shared"
)

// Field names a search strategy a library site can run for a book.
type Field string

const (
	FieldISBN           Field = "isbn"
	FieldTitle          Field = "title"
	FieldTitleAndAuthor Field = "title_and_author"
)

// Outcome is the result of searching one library for one book.
type Outcome string

const (
	// NotFound means no strategy located the book. It is cached so the book is not re-searched until the entry ages out.
	NotFound Outcome = "not_found"
	// Unavailable means the book was located but no copy can be borrowed. It ends the search.
	Unavailable Outcome = "unavailable"
	// Available means at least one borrowable copy was found.
	Available Outcome = "available"
)

// Record is anything that can be rendered as a spreadsheet row by column name.
type Record interface {
	Column(name string) string
}

// CacheStore is implemented by every age invalidated cache table.
type CacheStore interface {
	Name() string
	Count(ctx context.Context) (int, error)
	Prune(ctx context.Context, maxAge time.Duration) (int64, error)
	Clear(ctx context.Context) (int64, error)
}

// Book is a single entry scraped from a catalog shelf.
type Book struct {
	Title         string  `json:"title"`
	Subtitle      string  `json:"subtitle,omitempty"`
	OriginalTitle string  `json:"original_title,omitempty"`
	Author        string  `json:"author"`
	Category      string  `json:"category,omitempty"`
	Pages         string  `json:"pages,omitempty"`
	URL           string  `json:"url"`
	ISBN          string  `json:"isbn,omitempty"`
	Release       string  `json:"release,omitempty"`
	Price         float64 `json:"price,omitempty"`
}

// Fingerprint identifies the book across libraries: md5 of title, author and isbn.
func (b Book) Fingerprint() string {
	return shared.MD5Hex(b.Title, b.Author, b.ISBN)
}

// Value returns the search value for f, or "" when the book lacks it.
func (b Book) Value(f Field) string {
	switch f {
	case FieldISBN:
		return strings.TrimSpace(b.ISBN)
	case FieldTitle:
		return strings.TrimSpace(b.Title)
	case FieldTitleAndAuthor:
		if strings.TrimSpace(b.Title) == "" || strings.TrimSpace(b.Author) == "" {
			return ""
		}
		return fmt.Sprintf(`"%s" AND "%s"`, strings.TrimSpace(b.Title), strings.TrimSpace(b.Author))
	default:
		return ""
	}
}

// Searchable reports whether the book carries enough data for any library search.
func (b Book) Searchable() bool {
	return b.ISBN != "" || b.Title != ""
}

// Column implements [Record].
func (b Book) Column(name string) string {
	switch strings.ToLower(name) {
	case "title":
		return b.Title
	case "subtitle":
		return b.Subtitle
	case "original_title":
		return b.OriginalTitle
	case "author":
		return b.Author
	case "category":
		return b.Category
	case "pages":
		return b.Pages
	case "url", "link":
		return b.URL
	case "isbn":
		return b.ISBN
	case "release":
		return b.Release
	case "price":
		if b.Price == 0 {
			return ""
		}
		return strconv.FormatFloat(b.Price, 'f', 2, 64)
	default:
		return ""
	}
}

// Profile is a user profile on the catalog site.
type Profile struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Shelf is a named list of books on a profile.
type Shelf struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	URL       string `json:"url"`
	PageCount int    `json:"page_count"`
}

// Holding is one borrowable copy location of a book in a library.
type Holding struct {
	Author     string `json:"author"`
	Title      string `json:"title"`
	Department string `json:"department"`
	Section    string `json:"section"`
	Pages      string `json:"pages"`
	Link       string `json:"link"`
}

// NewHolding builds a report row for book at the given department and section.
func NewHolding(book Book, department, section string) Holding {
	return Holding{
		Author:     book.Author,
		Title:      `"` + book.Title + `"`,
		Department: department,
		Section:    section,
		Pages:      book.Pages,
		Link:       book.URL,
	}
}

// Column implements [Record].
func (h Holding) Column(name string) string {
	switch strings.ToLower(name) {
	case "author":
		return h.Author
	case "title":
		return h.Title
	case "department":
		return h.Department
	case "section":
		return h.Section
	case "pages":
		return h.Pages
	case "link", "url":
		return h.Link
	default:
		return ""
	}
}

// Availability is the cached outcome of checking one book in one library.
type Availability struct {
	LibraryID       string    `json:"library_id"`
	BookFingerprint string    `json:"book_md5"`
	Outcome         Outcome   `json:"outcome"`
	Field           Field     `json:"field,omitempty"`
	Holdings        []Holding `json:"holdings"`
	CheckedAt       time.Time `json:"checked_at"`
}

// AuthorInfo is biographical data found for an author.
type AuthorInfo struct {
	Name       string `json:"name"`
	URL        string `json:"url,omitempty"`
	BirthPlace string `json:"birth_place,omitempty"`
	Country    string `json:"country,omitempty"`
}

// Column implements [Record].
func (a AuthorInfo) Column(name string) string {
	switch strings.ToLower(name) {
	case "name", "author":
		return a.Name
	case "url", "link":
		return a.URL
	case "birth_place":
		return a.BirthPlace
	case "country":
		return a.Country
	default:
		return ""
	}
}

// MovieQuery is the title and year extracted from a video directory name.
type MovieQuery struct {
	Title string `json:"title"`
	Year  int    `json:"year,omitempty"`
}

// String renders the query the way search pages expect it.
func (q MovieQuery) String() string {
	if q.Year == 0 {
		return q.Title
	}
	return fmt.Sprintf("%s %d", q.Title, q.Year)
}

// MovieInfo aggregates the ratings found for a movie.
type MovieInfo struct {
	Title       string `json:"title"`
	Year        int    `json:"year,omitempty"`
	Tomato      string `json:"tomato"`
	IMDB        string `json:"imdb"`
	Metacritic  string `json:"metacritic"`
	Length      string `json:"length"`
	Genre       string `json:"genre"`
	Description string `json:"description"`
}

// Column implements [Record].
func (m MovieInfo) Column(name string) string {
	switch strings.ToLower(name) {
	case "title":
		return m.Title
	case "tomato":
		return m.Tomato
	case "imdb":
		return m.IMDB
	case "metacritic":
		return m.Metacritic
	case "length":
		return m.Length
	case "genre":
		return m.Genre
	case "description":
		return m.Description
	default:
		return ""
	}
}

// NewBook is an ISBN listed on a library's new arrivals page.
type NewBook struct {
	URLMD5    string    `json:"url_md5"`
	LibraryID string    `json:"library_id"`
	ISBN      string    `json:"isbn"`
	Created   time.Time `json:"created"`
}

// Rows renders records as string rows for the given columns.
func Rows[T Record](records []T, columns []string) [][]string {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		row := make([]string, len(columns))
		for i, c := range columns {
			row[i] = r.Column(c)
		}
		rows = append(rows, row)
	}
	return rows
}
