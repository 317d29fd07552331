package libraries

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/charmbracelet/log"
	"github.com/go-resty/resty/v2"

	"github.com/desertthunder/shelfx/internal/models"
	"github.com/desertthunder/shelfx/internal/shared"
)

// ID5004 is the prolib OPAC.
const ID5004 = "5004"

const (
	sel5004Input      = "#SimpleSearchForm_q"
	sel5004Submit     = ".btn.search-main-btn"
	sel5004Results    = ".row.row-full-text"
	sel5004Empty      = ".info-empty"
	sel5004PageSize   = ".btn-group>.hidden-xs"
	sel5004SizeMenu   = ".btn-group.open>.dropdown-menu"
	sel5004SizeLast   = ".btn-group.open>.dropdown-menu>li:last-child"
	sel5004BackToList = ".library_title-pages a"

	availableMarker = "Dostępny"
)

// Site5004 runs a single quoted title and author query and checks each copy through the accessibility endpoint.
type Site5004 struct {
	cfg    shared.LibraryConfig
	fields []models.Field
	client *resty.Client
	logger *log.Logger
}

// New5004 is the [Factory] for [ID5004].
func New5004(cfg shared.LibraryConfig, deps Deps) (Site, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: library %s needs base_url", shared.ErrLibraryNotConfigured, ID5004)
	}
	return &Site5004{
		cfg:    cfg,
		fields: searchFields(cfg.SearchFields, models.FieldTitleAndAuthor),
		client: deps.Client,
		logger: deps.Logger,
	}, nil
}

func (s *Site5004) ID() string                   { return ID5004 }
func (s *Site5004) Config() shared.LibraryConfig { return s.cfg }
func (s *Site5004) Fields() []models.Field       { return s.fields }

// Prepare waits for the search button so the form is usable.
func (s *Site5004) Prepare(ctx context.Context, page Page) error {
	_, err := page.WaitVisible(ctx, sel5004Submit, waitTimeout)
	return err
}

// Finish goes back to the search page when a result page left a link to it.
func (s *Site5004) Finish(ctx context.Context, page Page) error {
	doc, err := document(ctx, page)
	if err != nil {
		return err
	}
	if doc.Find(sel5004BackToList).Length() == 0 {
		return nil
	}
	return page.Click(ctx, sel5004BackToList)
}

func (s *Site5004) Search(ctx context.Context, page Page, book models.Book, field models.Field) ([]string, error) {
	query := book.Value(field)
	if query == "" {
		return nil, nil
	}
	if field != models.FieldTitleAndAuthor {
		return nil, fmt.Errorf("%w: library %s cannot search by %s", shared.ErrInvalidArgument, ID5004, field)
	}

	// The form did not load, so the query cannot run.
	if ok, err := page.WaitVisible(ctx, sel5004Input, waitTimeout); err != nil || !ok {
		return nil, err
	}
	if err := page.SendKeys(ctx, sel5004Input, query); err != nil {
		return nil, err
	}
	if err := page.Click(ctx, sel5004Submit); err != nil {
		return nil, err
	}
	if _, err := page.WaitVisible(ctx, sel5004Results, waitTimeout); err != nil {
		return nil, err
	}

	doc, err := document(ctx, page)
	if err != nil {
		return nil, err
	}
	if doc.Find(sel5004Empty).Length() > 0 {
		return nil, nil
	}

	if ok, err := page.WaitVisible(ctx, sel5004PageSize, time.Second); err != nil {
		return nil, err
	} else if ok {
		if err := s.showAllResults(ctx, page); err != nil {
			return nil, err
		}
		if doc, err = document(ctx, page); err != nil {
			return nil, err
		}
	}

	location, err := page.Location(ctx)
	if err != nil {
		return nil, err
	}

	var urls []string
	doc.Find("dl.dl-horizontal").Each(func(_ int, dl *goquery.Selection) {
		if href, ok := dl.Find("a").First().Attr("href"); ok && href != "" {
			urls = append(urls, resolve(location, href))
		}
	})
	return urls, nil
}

// showAllResults picks the largest page size from the results dropdown.
func (s *Site5004) showAllResults(ctx context.Context, page Page) error {
	if err := page.Click(ctx, sel5004PageSize); err != nil {
		return err
	}
	ok, err := page.WaitVisible(ctx, sel5004SizeMenu, time.Second)
	if err != nil || !ok {
		return err
	}
	return page.Click(ctx, sel5004SizeLast)
}

// Scrape returns the first accepted location with a borrowable copy. Every copy of a title shares one section.
func (s *Site5004) Scrape(ctx context.Context, book models.Book, urls []string) ([]Location, error) {
	for _, u := range urls {
		doc, err := fetch(ctx, s.client, u)
		if err != nil {
			return nil, err
		}

		items := doc.Find(`div[class*="prolibitem"]`)
		if items.Length() == 0 {
			continue
		}
		token, _ := doc.Find(`input[name="YII_CSRF_TOKEN"]`).Attr("value")

		loc, ok, err := s.firstAvailable(ctx, token, items)
		if err != nil {
			return nil, err
		}
		if ok {
			return []Location{loc}, nil
		}
	}
	return nil, nil
}

func (s *Site5004) firstAvailable(ctx context.Context, token string, items *goquery.Selection) (Location, bool, error) {
	for i := range items.Length() {
		item := items.Eq(i)

		available, err := s.accessible(ctx, token, item)
		if err != nil {
			return Location{}, false, err
		}
		if !available {
			continue
		}

		signature := strings.Fields(item.Find("dl.dl-horizontal dd").Last().Text())
		// Copies without a section name are skipped.
		if len(signature) < 2 {
			continue
		}
		if !slices.Contains(s.cfg.AcceptedLocations, signature[0]) {
			continue
		}
		return Location{Department: s.cfg.Department, Section: strings.Join(signature[1:], " ")}, true, nil
	}
	return Location{}, false, nil
}

// accessible asks the OPAC whether one copy can be borrowed.
func (s *Site5004) accessible(ctx context.Context, token string, item *goquery.Selection) (bool, error) {
	docID, _ := item.Attr("data-item-id")
	libID, _ := item.Attr("data-item-lib-id")

	resp, err := s.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"docid":          docID,
			"doclibid":       libID,
			"libid":          libID,
			"YII_CSRF_TOKEN": token,
		}).
		Post(strings.TrimRight(s.cfg.BaseURL, "/") + "/ajax/getaccessibilityicon")
	if err != nil {
		return false, fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	if resp.IsError() {
		return false, fmt.Errorf("%w: accessibility check returned %s", shared.ErrAPIRequest, resp.Status())
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(resp.String()))
	if err != nil {
		return false, fmt.Errorf("%w: %v", shared.ErrLibraryPageNotValid, err)
	}
	return strings.Contains(doc.Find("div").First().Text(), availableMarker), nil
}
