package services

import (
	"context"
	"net/url"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/antzucaro/matchr"
	"github.com/charmbracelet/log"
	"github.com/go-resty/resty/v2"

	"github.com/desertthunder/shelfx/internal/models"
	"github.com/desertthunder/shelfx/internal/shared"
)

// authorMatchThreshold is the JaroWinkler score an author link needs when no link text is an exact match.
const authorMatchThreshold = 0.95

// GoodreadsService finds author birthplaces on Goodreads.
type GoodreadsService struct {
	client *resty.Client
	config shared.AuthorsConfig
	memo   *Memo
	logger *log.Logger
	warmup sync.Once
}

// NewGoodreadsService creates a GoodreadsService. memo may be nil to disable memoization.
func NewGoodreadsService(client *resty.Client, config shared.AuthorsConfig, memo *Memo, logger *log.Logger) *GoodreadsService {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &GoodreadsService{
		client: client,
		config: config,
		memo:   memo,
		logger: shared.WithLogger(logger, "service", "goodreads"),
	}
}

// AuthorInfo returns the birthplace of author. A zero Country means the author or
// the birthplace was not found. Results are memoized for a year.
func (s *GoodreadsService) AuthorInfo(ctx context.Context, author string) (models.AuthorInfo, error) {
	author = strings.TrimSpace(author)
	return Memoize(ctx, s.memo, "goodreads.author_info", Year, func(ctx context.Context) (models.AuthorInfo, error) {
		return s.authorInfo(ctx, author)
	}, author)
}

func (s *GoodreadsService) authorInfo(ctx context.Context, author string) (models.AuthorInfo, error) {
	info := models.AuthorInfo{Name: author}
	s.initSession(ctx)

	results, err := fetchDocument(ctx, s.client, s.config.SearchURL, map[string]string{"q": author})
	if err != nil {
		return info, err
	}
	href := authorLink(results, author)
	if href == "" {
		s.logger.Debug("Author not found", "author", author)
		return info, nil
	}
	info.URL = resolveURL(s.config.SearchURL, href)

	page, err := fetchDocument(ctx, s.client, info.URL, nil)
	if err != nil {
		return info, err
	}
	info.BirthPlace, info.Country = birthPlace(page)
	return info, nil
}

// initSession requests the site root once so the cookie jar is primed like a browser visit.
func (s *GoodreadsService) initSession(ctx context.Context) {
	s.warmup.Do(func() {
		u, err := url.Parse(s.config.SearchURL)
		if err != nil || u.Host == "" {
			return
		}
		root := u.Scheme + "://" + u.Host + "/"
		if _, err := s.client.R().SetContext(ctx).Get(root); err != nil {
			s.logger.Debug("Session warmup failed", "error", err)
		}
	})
}

// authorLink returns the href of the link whose text is the author name,
// falling back to the closest JaroWinkler match of the names without diacritics.
func authorLink(doc *goquery.Document, author string) string {
	var (
		exact string
		best  string
		score float64
	)
	want := strings.ToLower(shared.FoldDiacritics(author))
	doc.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		text := strings.TrimSpace(a.Text())
		if text == "" {
			return true
		}
		if text == author {
			exact = a.AttrOr("href", "")
			return false
		}
		if s := matchr.JaroWinkler(strings.ToLower(shared.FoldDiacritics(text)), want, false); s > score {
			score, best = s, a.AttrOr("href", "")
		}
		return true
	})
	if exact != "" {
		return exact
	}
	if score >= authorMatchThreshold {
		return best
	}
	return ""
}

// birthPlace reads the text node following the "Born" label. The country is its last comma separated part.
func birthPlace(doc *goquery.Document) (place, country string) {
	doc.Find("div").EachWithBreak(func(_ int, div *goquery.Selection) bool {
		if strings.TrimSpace(div.Text()) != "Born" || div.Children().Length() > 0 {
			return true
		}
		next := div.Nodes[0].NextSibling
		if next == nil {
			return false
		}
		text := strings.TrimSpace(goquery.NewDocumentFromNode(next).Text())
		text = strings.TrimSpace(strings.TrimPrefix(text, "in "))
		if text == "" {
			return false
		}
		parts := strings.Split(text, ",")
		place = text
		country = strings.TrimSpace(strings.Replace(parts[len(parts)-1], "in ", "", 1))
		return false
	})
	return place, country
}
