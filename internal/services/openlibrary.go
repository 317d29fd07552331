package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/antzucaro/matchr"
	"github.com/charmbracelet/log"
	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"github.com/desertthunder/shelfx/internal/models"
	"github.com/desertthunder/shelfx/internal/shared"
)

const searchFields = "key,title,author_name,author_key,isbn,first_publish_year,number_of_pages_median,language"

// titleMatchThreshold is the JaroWinkler score a search result title needs to be taken as the same book.
const titleMatchThreshold = 0.9

// SearchResponse matches search.json
type SearchResponse struct {
	NumFound int         `json:"numFound"`
	Docs     []SearchDoc `json:"docs"`
}

// SearchDoc is one work in a search response.
type SearchDoc struct {
	Key              string   `json:"key"`
	Title            string   `json:"title"`
	AuthorNames      []string `json:"author_name"`
	AuthorKeys       []string `json:"author_key"`
	ISBN             []string `json:"isbn"`
	FirstPublishYear int      `json:"first_publish_year"`
	Pages            int      `json:"number_of_pages_median"`
	Language         []string `json:"language"`
}

type Publisher struct {
	Name string `json:"name"`
}

// BookDetails matches api/books?jscmd=data
type BookDetails struct {
	Title       string      `json:"title"`
	Subtitle    string      `json:"subtitle"`
	Publishers  []Publisher `json:"publishers"`
	PublishDate string      `json:"publish_date"`
	Cover       struct {
		Large string `json:"large"`
	} `json:"cover"`
	Authors []struct {
		URL  string `json:"url"`
		Name string `json:"name"`
	} `json:"authors"`
	Subjects []struct {
		Name string `json:"name"`
		URL  string `json:"url"`
	} `json:"subjects"`
	NumberOfPages int    `json:"number_of_pages"`
	URL           string `json:"url"`
}

// AuthorDetails matches authors/{key}.json
type AuthorDetails struct {
	Name         string `json:"name"`
	PersonalName string `json:"personal_name"`
	BirthDate    string `json:"birth_date"`
	// Bio is either a string or {type, value}.
	Bio    any   `json:"bio"`
	Photos []int `json:"photos"`
}

// Biography returns Bio as plain text.
func (a AuthorDetails) Biography() string {
	switch v := a.Bio.(type) {
	case string:
		return v
	case map[string]any:
		if s, ok := v["value"].(string); ok {
			return s
		}
	}
	return ""
}

// OpenLibraryService looks up books and authors on OpenLibrary.
type OpenLibraryService struct {
	client     *resty.Client
	limiter    *rate.Limiter
	maxRetries int
	backoff    time.Duration
	memo       *Memo
	logger     *log.Logger
}

// NewOpenLibraryService creates an OpenLibraryService from config. memo may be nil.
func NewOpenLibraryService(client *resty.Client, config shared.OpenLibraryConfig, memo *Memo, logger *log.Logger) *OpenLibraryService {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	rps := config.RateLimit
	if rps <= 0 {
		rps = 1
	}
	if config.URL != "" {
		client.SetBaseURL(strings.TrimSuffix(config.URL, "/"))
	}
	if config.UserAgent != "" {
		client.SetHeader("User-Agent", config.UserAgent)
	}
	return &OpenLibraryService{
		client:     client,
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		maxRetries: max(config.MaxRetries, 0),
		backoff:    time.Second,
		memo:       memo,
		logger:     shared.WithLogger(logger, "service", "openlibrary"),
	}
}

// SetBackoff changes the first retry delay. Later retries double it.
func (s *OpenLibraryService) SetBackoff(d time.Duration) {
	s.backoff = d
}

// Search queries works by title and author.
func (s *OpenLibraryService) Search(ctx context.Context, title, author string, limit int) (*SearchResponse, error) {
	if limit <= 0 {
		limit = 10
	}
	params := map[string]string{
		"title":  title,
		"fields": searchFields,
		"limit":  strconv.Itoa(limit),
	}
	if author != "" {
		params["author"] = author
	}

	var res SearchResponse
	if err := s.get(ctx, "/search.json", params, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// BooksByISBN returns book details keyed by "ISBN:<isbn>".
func (s *OpenLibraryService) BooksByISBN(ctx context.Context, isbns []string) (map[string]BookDetails, error) {
	if len(isbns) == 0 {
		return nil, nil
	}
	bibkeys := make([]string, len(isbns))
	for i, isbn := range isbns {
		bibkeys[i] = "ISBN:" + shared.DigitsOnly(isbn)
	}

	var res map[string]BookDetails
	params := map[string]string{"bibkeys": strings.Join(bibkeys, ","), "jscmd": "data", "format": "json"}
	if err := s.get(ctx, "/api/books", params, &res); err != nil {
		return nil, err
	}
	return res, nil
}

// Author fetches an author record. key may be "/authors/OL..." or just "OL...".
func (s *OpenLibraryService) Author(ctx context.Context, key string) (*AuthorDetails, error) {
	key = strings.TrimPrefix(key, "/authors/")
	if key == "" {
		return nil, fmt.Errorf("%w: author key", shared.ErrMissingArgument)
	}
	var res AuthorDetails
	if err := s.get(ctx, "/authors/"+key+".json", nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// LookupISBN returns the book published under isbn.
func (s *OpenLibraryService) LookupISBN(ctx context.Context, isbn string) (models.Book, error) {
	digits := shared.DigitsOnly(isbn)
	if digits == "" {
		return models.Book{}, fmt.Errorf("%w: %q is not an ISBN", shared.ErrInvalidArgument, isbn)
	}
	books, err := s.BooksByISBN(ctx, []string{digits})
	if err != nil {
		return models.Book{}, err
	}
	details, ok := books["ISBN:"+digits]
	if !ok {
		return models.Book{}, fmt.Errorf("%w: isbn %s", shared.ErrBookNotFound, digits)
	}

	book := models.Book{
		Title:    details.Title,
		Subtitle: details.Subtitle,
		ISBN:     digits,
		Release:  details.PublishDate,
		URL:      details.URL,
	}
	if len(details.Authors) > 0 {
		book.Author = details.Authors[0].Name
	}
	if details.NumberOfPages > 0 {
		book.Pages = strconv.Itoa(details.NumberOfPages)
	}
	if len(details.Subjects) > 0 {
		book.Category = details.Subjects[0].Name
	}
	return book, nil
}

// FindISBN searches for the book by title and author and returns an ISBN of the best matching work,
// preferring ISBN-13. It returns "" when nothing matches. Results are memoized for a month.
func (s *OpenLibraryService) FindISBN(ctx context.Context, book models.Book) (string, error) {
	return Memoize(ctx, s.memo, "openlibrary.find_isbn", Month, func(ctx context.Context) (string, error) {
		res, err := s.Search(ctx, book.Title, book.Author, 10)
		if err != nil {
			return "", err
		}
		return bestISBN(res.Docs, book.Title), nil
	}, book.Title, book.Author)
}

func bestISBN(docs []SearchDoc, title string) string {
	want := strings.ToLower(strings.TrimSpace(title))
	var (
		best  *SearchDoc
		score float64
	)
	for i := range docs {
		if len(docs[i].ISBN) == 0 {
			continue
		}
		s := matchr.JaroWinkler(strings.ToLower(docs[i].Title), want, false)
		if s > score {
			best, score = &docs[i], s
		}
	}
	if best == nil || score < titleMatchThreshold {
		return ""
	}
	for _, isbn := range best.ISBN {
		if len(isbn) == 13 {
			return isbn
		}
	}
	return best.ISBN[0]
}

// get retries 429 and 5xx responses with exponential backoff.
func (s *OpenLibraryService) get(ctx context.Context, path string, params map[string]string, target any) error {
	var lastErr error
	for i := 0; i <= s.maxRetries; i++ {
		if i > 0 {
			backoff := s.backoff * time.Duration(1<<uint(i-1))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}

		resp, err := s.client.R().
			SetContext(ctx).
			SetQueryParams(params).
			Get(path)
		if err != nil {
			lastErr = err
			continue
		}

		if resp.StatusCode() != http.StatusOK {
			if resp.StatusCode() == http.StatusTooManyRequests || resp.StatusCode() >= 500 {
				lastErr = fmt.Errorf("unexpected status code: %d", resp.StatusCode())
				s.logger.Debug("Retrying request", "path", path, "attempt", i+1, "status", resp.StatusCode())
				continue
			}
			return fmt.Errorf("%w: %s returned status %d", shared.ErrAPIRequest, path, resp.StatusCode())
		}

		if err := json.Unmarshal(resp.Body(), target); err != nil {
			return fmt.Errorf("%w: %s returned invalid JSON: %v", shared.ErrAPIRequest, path, err)
		}
		return nil
	}
	return fmt.Errorf("%w: after %d retries: %v", shared.ErrServiceUnavailable, s.maxRetries, lastErr)
}
