package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/charmbracelet/log"
	"github.com/go-resty/resty/v2"

	"github.com/desertthunder/shelfx/internal/models"
	"github.com/desertthunder/shelfx/internal/shared"
)

// AllShelves selects every shelf of a profile.
const AllShelves = "all"

const booksListID = "booksFilteredList"

var profileIDRe = regexp.MustCompile(`\d+`)

// CatalogService scrapes profiles, shelves and book pages from the catalog site.
type CatalogService struct {
	client  *resty.Client
	catalog shared.CatalogConfig
	prices  shared.PricesConfig
	logger  *log.Logger
}

// NewCatalogService creates a CatalogService that sends its requests through client.
func NewCatalogService(client *resty.Client, catalog shared.CatalogConfig, prices shared.PricesConfig, logger *log.Logger) *CatalogService {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &CatalogService{
		client:  client,
		catalog: catalog,
		prices:  prices,
		logger:  shared.WithLogger(logger, "service", "catalog"),
	}
}

// ajaxContent is the envelope of the catalog's XHR endpoints.
type ajaxContent struct {
	Data struct {
		Content string `json:"content"`
	} `json:"data"`
}

func (s *CatalogService) postAjax(ctx context.Context, target string, form url.Values) (string, error) {
	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("X-Requested-With", "XMLHttpRequest").
		SetFormDataFromValues(form).
		Post(target)
	if err != nil {
		return "", fmt.Errorf("%w: POST %s: %v", shared.ErrAPIRequest, target, err)
	}
	if err := checkResponse(resp); err != nil {
		return "", err
	}

	var payload ajaxContent
	if err := json.Unmarshal(resp.Body(), &payload); err != nil {
		return "", fmt.Errorf("%w: %s did not return JSON: %v", shared.ErrPageNotValid, target, err)
	}
	return payload.Data.Content, nil
}

// FindProfile searches the catalog for a user and returns the first profile whose link carries the name.
func (s *CatalogService) FindProfile(ctx context.Context, name string) (models.Profile, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Profile{}, fmt.Errorf("%w: profile name", shared.ErrMissingArgument)
	}
	s.logger.Info("Searching for profile", "name", name)

	content, err := s.postAjax(ctx, s.catalog.ProfileSearchURL, url.Values{"phrase": {name}})
	if err != nil {
		return models.Profile{}, fmt.Errorf("%w: %v", shared.ErrProfileNotFound, err)
	}

	doc, err := parseHTML([]byte(content))
	if err != nil {
		return models.Profile{}, fmt.Errorf("%w: %v", shared.ErrProfileNotFound, err)
	}

	linkRe := regexp.MustCompile(`(?i)/profil/\d+/` + regexp.QuoteMeta(name))
	var href string
	doc.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		h, _ := a.Attr("href")
		if linkRe.MatchString(h) {
			href = h
			return false
		}
		return true
	})
	if href == "" {
		return models.Profile{}, fmt.Errorf("%w: no result matching %q", shared.ErrProfileNotFound, name)
	}

	u, err := url.Parse(href)
	if err != nil || u.Path == "" {
		return models.Profile{}, fmt.Errorf("%w: invalid profile link %q", shared.ErrProfileNotFound, href)
	}
	id := profileIDRe.FindString(u.Path)
	if id == "" {
		return models.Profile{}, fmt.Errorf("%w: no id in profile link %q", shared.ErrProfileNotFound, href)
	}

	profile := models.Profile{ID: id, Name: name, URL: s.profileURL(id + "/" + name)}
	s.logger.Info("Found profile", "name", name, "id", id)
	return profile, nil
}

func (s *CatalogService) profileURL(path string) string {
	if strings.HasPrefix(path, s.catalog.ProfileURL) {
		return path
	}
	return strings.TrimSuffix(s.catalog.ProfileURL, "/") + "/" + strings.TrimPrefix(path, "/")
}

// LibraryURL is the shelves overview page of a profile.
func (s *CatalogService) LibraryURL(profile models.Profile) string {
	return s.profileURL(fmt.Sprintf("%s/%s/biblioteczka/lista", profile.ID, profile.Name))
}

// ShelfURL is the first page of one shelf.
func (s *CatalogService) ShelfURL(profile models.Profile, shelfID string) string {
	return s.LibraryURL(profile) + "?shelfs=" + url.QueryEscape(shelfID)
}

// Shelves returns the named shelf of a profile, or every shelf when name is [AllShelves].
// Each shelf carries its page count.
func (s *CatalogService) Shelves(ctx context.Context, profile models.Profile, name string) ([]models.Shelf, error) {
	doc, err := fetchDocument(ctx, s.client, s.LibraryURL(profile), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrShelvesScrape, err)
	}

	selector := `ul.filtr__wrapItems input[name="shelfs[]"]`
	if name != AllShelves {
		selector = fmt.Sprintf(`ul.filtr__wrapItems input[data-shelf-name=%q]`, name)
	}

	var shelves []models.Shelf
	doc.Find(selector).Each(func(_ int, in *goquery.Selection) {
		id, _ := in.Attr("value")
		shelfName, _ := in.Attr("data-shelf-name")
		if id == "" {
			return
		}
		shelves = append(shelves, models.Shelf{ID: id, Name: shelfName, URL: s.ShelfURL(profile, id)})
	})
	if len(shelves) == 0 {
		return nil, fmt.Errorf("%w: shelf %q not found for %s", shared.ErrShelvesScrape, name, profile.Name)
	}

	for i := range shelves {
		count, err := s.PageCount(ctx, shelves[i])
		if err != nil {
			return nil, err
		}
		shelves[i].PageCount = count
		s.logger.Debug("Shelf info", "id", shelves[i].ID, "name", shelves[i].Name, "pages", count)
	}
	return shelves, nil
}

// PageCount reads the number of listing pages from the pager of the shelf page.
func (s *CatalogService) PageCount(ctx context.Context, shelf models.Shelf) (int, error) {
	doc, err := fetchDocument(ctx, s.client, shelf.URL, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", shared.ErrShelvesScrape, err)
	}
	return pageCount(doc), nil
}

func pageCount(doc *goquery.Document) int {
	last := doc.Find("ul#buttonPaginationListP > li.page-item:nth-last-child(2) > a.page-link").First()
	if last.Length() == 0 {
		return 1
	}
	n, err := strconv.Atoi(strings.TrimSpace(last.AttrOr("data-pager-page", "")))
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// BookURLs returns the book links on one listing page of a shelf. Pages start at 1.
func (s *CatalogService) BookURLs(ctx context.Context, profile models.Profile, shelf models.Shelf, page int) ([]string, error) {
	form := url.Values{
		"page":     {strconv.Itoa(page)},
		"listId":   {booksListID},
		"shelfs[]": {shelf.ID},
		"objectId": {profile.ID},
		"own":      {"0"},
	}
	s.logger.Debug("Requesting shelf page", "shelf", shelf.Name, "page", page)

	content, err := s.postAjax(ctx, s.catalog.ShelfPageURL, form)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrBooksCollect, err)
	}
	doc, err := parseHTML([]byte(content))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrBooksCollect, err)
	}

	var urls []string
	doc.Find("div#booksFilteredListPaginator a.authorAllBooks__singleTextTitle").Each(func(_ int, a *goquery.Selection) {
		if href, ok := a.Attr("href"); ok && href != "" {
			urls = append(urls, strings.TrimSuffix(s.catalog.URL, "/")+href)
		}
	})
	s.logger.Debug("Found book urls", "page", page, "count", len(urls))
	return urls, nil
}

// Book scrapes a book detail page.
func (s *CatalogService) Book(ctx context.Context, bookURL string) (models.Book, error) {
	doc, err := fetchDocument(ctx, s.client, bookURL, nil)
	if err != nil {
		return models.Book{}, fmt.Errorf("%w: %v", shared.ErrBooksCollect, err)
	}
	book, err := parseBookPage(doc)
	if err != nil {
		return models.Book{}, fmt.Errorf("%w: %s: %w", shared.ErrBooksCollect, bookURL, err)
	}
	book.URL = bookURL
	return book, nil
}

func parseBookPage(doc *goquery.Document) (models.Book, error) {
	title, ok := doc.Find("div.title-container").First().Attr("data-title")
	if !ok {
		return models.Book{}, fmt.Errorf("%w: missing title", shared.ErrPageNotValid)
	}

	var book models.Book
	if before, after, found := strings.Cut(title, "."); found {
		book.Title, book.Subtitle = strings.TrimSpace(before), strings.TrimSpace(after)
	} else {
		book.Title = strings.TrimSpace(title)
	}
	book.Author = strings.TrimSpace(doc.Find("span.author > a.link-name").First().Text())
	book.Category = strings.TrimSpace(doc.Find("a.book__category").First().Text())

	details := doc.Find("div#book-details")
	book.OriginalTitle = definition(details, "Tytuł oryginału")
	book.Pages = definition(details, "Liczba stron")
	book.Release = definition(details, "Data wydania")
	book.ISBN = shared.DigitsOnly(definition(details, "ISBN"))
	return book, nil
}

// priceEntry is one offer returned by the price comparison endpoint.
type priceEntry struct {
	Type  string          `json:"type"`
	Name  string          `json:"name"`
	Price json.RawMessage `json:"price"`
}

// Price looks the book up on the price comparison site and returns the first
// whitelisted retailer's book price, or 0 when there is none.
func (s *CatalogService) Price(ctx context.Context, book models.Book) (float64, error) {
	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"name":        book.Title,
			"info":        book.Author,
			"number":      book.ISBN,
			"skip_jQuery": "1",
		}).
		Get(s.prices.URL)
	if err != nil {
		return 0, fmt.Errorf("%w: price request: %v", shared.ErrBooksCollect, err)
	}
	if err := checkResponse(resp); err != nil {
		return 0, fmt.Errorf("%w: %v", shared.ErrBooksCollect, err)
	}
	price, err := parsePrice(resp.Body(), s.prices.Retailers)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", shared.ErrBooksCollect, err)
	}
	return price, nil
}

// parsePrice reads the {status, data} envelope, where data is either an object or a list of offers.
func parsePrice(body []byte, retailers []string) (float64, error) {
	var envelope struct {
		Status any             `json:"status"`
		Data   json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return 0, fmt.Errorf("price response is not JSON: %w", err)
	}
	if !truthy(envelope.Status) {
		return 0, nil
	}

	var entries []priceEntry
	if err := json.Unmarshal(envelope.Data, &entries); err != nil {
		var keyed map[string]priceEntry
		if err := json.Unmarshal(envelope.Data, &keyed); err != nil {
			return 0, fmt.Errorf("unexpected price data: %w", err)
		}
		// Object order is lost, so offers are visited in retailer order.
		for _, r := range retailers {
			for _, e := range keyed {
				if e.Type == "book" && e.Name == r {
					return priceValue(e.Price), nil
				}
			}
		}
		return 0, nil
	}

	for _, e := range entries {
		if e.Type != "book" || !slices.Contains(retailers, e.Name) {
			continue
		}
		return priceValue(e.Price), nil
	}
	return 0, nil
}

func priceValue(raw json.RawMessage) float64 {
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	}
	return 0
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		return t != "" && t != "0"
	default:
		return true
	}
}
