package libraries

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	"github.com/desertthunder/shelfx/internal/shared"
)

const newsBookLinks = "div.description-list-section > dl > dd:nth-child(2) > a"

// Filter values used when the news page does not offer a matching link.
var defaultNewsParams = newsParams{
	agenda:       "f2[0]=7",
	documentType: "f4[0]=1",
	language:     "f8[0]=pol",
	pagination:   "rp=100",
}

type newsParams struct {
	agenda, documentType, language, pagination string
}

// newsURL fills the news url template with the filters and a pager suffix.
func (s *Site5004) newsURL(p newsParams, pager string) string {
	return strings.NewReplacer(
		"{0}", p.agenda,
		"{1}", p.documentType,
		"{2}", p.language,
		"{3}", p.pagination,
		"{4}", pager,
	).Replace(s.cfg.NewsURLTemplate)
}

func (s *Site5004) collector(ctx context.Context, async bool) *colly.Collector {
	// colly.Async ignores its argument, so a synchronous collector must not get the option at all.
	opts := []colly.CollectorOption{colly.AllowURLRevisit()}
	if async {
		opts = append(opts, colly.Async())
	}
	c := colly.NewCollector(opts...)
	if s.cfg.InsecureTLS {
		c.WithTransport(&http.Transport{TLSClientConfig: &tls.Config{InsecureSkipVerify: true}})
	}
	if async {
		if err := c.Limit(&colly.LimitRule{DomainGlob: "*", Parallelism: 4}); err != nil {
			s.logger.Warn("failed to set crawl limit", "error", err)
		}
	}
	c.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			r.Abort()
		}
	})
	return c
}

// NewBookURLs crawls every page of the filtered new arrivals listing and returns the book detail urls.
func (s *Site5004) NewBookURLs(ctx context.Context) ([]string, error) {
	if s.cfg.NewsURLTemplate == "" {
		return nil, fmt.Errorf("%w: library %s has no news_url_template", shared.ErrLibraryNotConfigured, ID5004)
	}

	params := s.newsParams(ctx)
	pagers, err := s.newsPagers(ctx, params)
	if err != nil {
		return nil, err
	}

	var (
		mu   sync.Mutex
		urls []string
	)
	c := s.collector(ctx, true)
	c.OnHTML(newsBookLinks, func(e *colly.HTMLElement) {
		href := e.Attr("href")
		if href == "" {
			return
		}
		mu.Lock()
		urls = append(urls, s.cfg.BaseURL+href)
		mu.Unlock()
	})
	c.OnError(func(r *colly.Response, err error) {
		s.logger.Error("fetching book urls on page failed", "url", r.Request.URL, "error", err)
	})

	for _, pager := range pagers {
		if err := c.Visit(s.newsURL(params, pager)); err != nil {
			s.logger.Error("failed to queue news page", "pager", pager, "error", err)
		}
	}
	c.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return urls, nil
}

// newsParams reads the filter links from the unfiltered news page.
func (s *Site5004) newsParams(ctx context.Context) newsParams {
	root, _, _ := strings.Cut(s.cfg.NewsURLTemplate, "?")
	params := defaultNewsParams
	pagination := regexp.MustCompile(regexp.QuoteMeta(strconv.Itoa(s.cfg.PaginationValue)))

	c := s.collector(ctx, false)
	c.OnHTML("html", func(e *colly.HTMLElement) {
		pick := func(title, def string) string {
			href := e.ChildAttr(fmt.Sprintf("a[title=%q]", title), "href")
			if href == "" {
				return def
			}
			return filterParam(href)
		}
		params.agenda = pick(s.cfg.AgendaTitle, params.agenda)
		params.documentType = pick(s.cfg.DocumentTypeTitle, params.documentType)
		params.language = pick(s.cfg.LanguageTitle, params.language)

		e.DOM.Find("a").EachWithBreak(func(_ int, a *goquery.Selection) bool {
			href, ok := a.Attr("href")
			if ok && pagination.MatchString(a.Text()) {
				params.pagination = filterParam(href)
				return false
			}
			return true
		})
	})

	if err := c.Visit(root); err != nil {
		s.logger.Error("fetching news url params failed, using defaults", "error", err)
		return defaultNewsParams
	}
	return params
}

func filterParam(href string) string {
	return strings.TrimPrefix(strings.ReplaceAll(href, "/news?", ""), "?")
}

// newsPagers builds one pager suffix per listing page from the "last page" link.
func (s *Site5004) newsPagers(ctx context.Context, params newsParams) ([]string, error) {
	var last string
	c := s.collector(ctx, false)
	c.OnHTML("a", func(e *colly.HTMLElement) {
		if last == "" && strings.Contains(e.Text, s.cfg.LastPageTitle) {
			last = e.Attr("href")
		}
	})

	if err := c.Visit(s.newsURL(params, "")); err != nil {
		return nil, fmt.Errorf("%w: fetching news pages failed: %v", shared.ErrAPIRequest, err)
	}
	if last == "" {
		// A single page has no pager.
		return []string{""}, nil
	}

	u, err := url.Parse(last)
	if err != nil {
		return nil, fmt.Errorf("%w: last page link %q: %v", shared.ErrLibraryPageNotValid, last, err)
	}
	lastItem, err := strconv.Atoi(nonDigitRe.ReplaceAllString(u.Query().Get(s.cfg.PagerParam), ""))
	if err != nil {
		return nil, fmt.Errorf("%w: last page link %q has no %s", shared.ErrLibraryPageNotValid, last, s.cfg.PagerParam)
	}

	perPage := max(s.cfg.PaginationValue, 1)
	var pagers []string
	for item := 1; item <= lastItem; item += perPage {
		pagers = append(pagers, fmt.Sprintf("&%s=%d", s.cfg.PagerParam, item))
	}
	return pagers, nil
}

// ISBNs reads the ISBN list from a book detail page. A page without one yields no ISBNs.
func (s *Site5004) ISBNs(ctx context.Context, bookURL string) ([]string, error) {
	var (
		isbns []string
		found bool
	)
	c := s.collector(ctx, false)
	c.OnHTML("dt", func(e *colly.HTMLElement) {
		if found || !strings.Contains(e.Text, "ISBN") {
			return
		}
		found = true
		e.DOM.NextFiltered("dd").Contents().Each(func(_ int, child *goquery.Selection) {
			for _, part := range strings.FieldsFunc(child.Text(), isISBNSeparator) {
				if isbn := nonDigitRe.ReplaceAllString(part, ""); isbn != "" {
					isbns = append(isbns, isbn)
				}
			}
		})
	})

	if err := c.Visit(bookURL); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", shared.ErrAPIRequest, bookURL, err)
	}
	return isbns, nil
}

// isISBNSeparator splits several ISBNs written in one text node, e.g. "978-83-08-04938-6 / 83-08-04938-1".
func isISBNSeparator(r rune) bool {
	return r == '/' || r == ',' || r == ';' || unicode.IsSpace(r)
}
