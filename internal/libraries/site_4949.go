package libraries

import (
	"context"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/antzucaro/matchr"
	"github.com/charmbracelet/log"
	"github.com/chromedp/chromedp/kb"
	"github.com/go-resty/resty/v2"

	"github.com/desertthunder/shelfx/internal/models"
	"github.com/desertthunder/shelfx/internal/shared"
)

// ID4949 is the iso form OPAC.
const ID4949 = "4949"

const (
	formIndex    = "Indeks"
	formAdvanced = "Złożone"

	// dropdown1 search type: 1 author, 2 title, 3 isbn, 4 series.
	searchTypeISBN = "3"
	// dropdown4 resource type: 1 all, 2 book, 9 magazine, 15 audiobook.
	resourceTypeBook = "2"

	noResource  = "Brak zasobu"
	notForLoan  = "Pozycja nie do wypożyczenia"
	waitTimeout = 10 * time.Second
)

var (
	nonDigitRe = regexp.MustCompile(`\D+`)
	sectionRe  = regexp.MustCompile(`\s\(\s.+\s\)\s`)
)

func byID(id string) string { return fmt.Sprintf(`[id=%q]`, id) }

var (
	sel4949TextField1  = byID("form1:textField1")
	sel4949TextField2  = byID("form1:textField2")
	sel4949SearchType  = byID("form1:dropdown1")
	sel4949Resource    = byID("form1:dropdown4")
	sel4949Clear       = byID("form1:btnCzyscForme")
	sel4949IndexSubmit = byID("form1:btnSzukajIndeks")
	sel4949DescSubmit  = byID("form1:btnSzukajOpisow")
	sel4949Autoc1      = byID("autoc1")
	sel4949Autoc2      = byID("autoc2")
)

// Site4949 searches the index form by ISBN and the advanced form by author and title.
type Site4949 struct {
	cfg    shared.LibraryConfig
	fields []models.Field
	client *resty.Client
	logger *log.Logger
}

// New4949 is the [Factory] for [ID4949].
func New4949(cfg shared.LibraryConfig, deps Deps) (Site, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: library %s needs base_url", shared.ErrLibraryNotConfigured, ID4949)
	}
	return &Site4949{
		cfg:    cfg,
		fields: searchFields(cfg.SearchFields, models.FieldISBN, models.FieldTitle),
		client: deps.Client,
		logger: deps.Logger,
	}, nil
}

func (s *Site4949) ID() string                   { return ID4949 }
func (s *Site4949) Config() shared.LibraryConfig { return s.cfg }
func (s *Site4949) Fields() []models.Field       { return s.fields }

func (s *Site4949) Search(ctx context.Context, page Page, book models.Book, field models.Field) ([]string, error) {
	switch field {
	case models.FieldISBN:
		if book.Value(field) == "" {
			return nil, nil
		}
		return s.searchISBN(ctx, page, book)
	case models.FieldTitle:
		if book.Value(field) == "" {
			return nil, nil
		}
		return s.searchTitle(ctx, page, book)
	default:
		return nil, fmt.Errorf("%w: library %s cannot search by %s", shared.ErrInvalidArgument, ID4949, field)
	}
}

// selectForm switches to the named search form and clears it.
func (s *Site4949) selectForm(ctx context.Context, page Page, form string) error {
	doc, err := document(ctx, page)
	if err != nil {
		return err
	}

	idx := -1
	doc.Find(".historia a").EachWithBreak(func(i int, a *goquery.Selection) bool {
		if strings.TrimSpace(a.Text()) == form {
			idx = i
			return false
		}
		return true
	})
	if idx >= 0 {
		if err := page.ClickNth(ctx, ".historia a", idx); err != nil {
			return err
		}
	}

	visible, err := page.WaitVisible(ctx, sel4949Clear, waitTimeout)
	if err != nil || !visible {
		return err
	}
	return page.Click(ctx, sel4949Clear)
}

func (s *Site4949) hideAutocomplete(ctx context.Context, page Page, field, popup string) error {
	visible, err := page.WaitVisible(ctx, popup, time.Second)
	if err != nil || !visible {
		return err
	}
	if err := page.SendKeys(ctx, field, kb.Escape); err != nil {
		return err
	}
	_, err = page.WaitNotVisible(ctx, popup, waitTimeout)
	return err
}

func (s *Site4949) searchISBN(ctx context.Context, page Page, book models.Book) ([]string, error) {
	if err := s.selectForm(ctx, page, formIndex); err != nil {
		return nil, err
	}
	if err := page.SendKeys(ctx, sel4949TextField1, book.ISBN); err != nil {
		return nil, err
	}
	if err := s.hideAutocomplete(ctx, page, sel4949TextField1, sel4949Autoc1); err != nil {
		return nil, err
	}
	if err := page.SetValue(ctx, sel4949SearchType, searchTypeISBN); err != nil {
		return nil, err
	}
	if err := page.SetValue(ctx, sel4949Resource, resourceTypeBook); err != nil {
		return nil, err
	}

	if ok, err := page.WaitVisible(ctx, sel4949IndexSubmit, waitTimeout); err != nil || !ok {
		return nil, err
	}
	if err := page.Click(ctx, sel4949IndexSubmit); err != nil {
		return nil, err
	}
	if ok, err := page.WaitVisible(ctx, "ul.kl", waitTimeout); err != nil || !ok {
		return nil, err
	}

	doc, err := document(ctx, page)
	if err != nil {
		return nil, err
	}

	want := nonDigitRe.ReplaceAllString(book.ISBN, "")
	idx := -1
	doc.Find("ul.kl > li > a").EachWithBreak(func(i int, a *goquery.Selection) bool {
		if nonDigitRe.ReplaceAllString(a.Text(), "") == want {
			idx = i
			return false
		}
		return true
	})
	if idx < 0 {
		return nil, nil
	}

	// Clicking the index entry expands the list of matching records below it.
	if err := page.ClickNth(ctx, "ul.kl > li > a", idx); err != nil {
		return nil, err
	}
	if doc, err = document(ctx, page); err != nil {
		return nil, err
	}
	location, err := page.Location(ctx)
	if err != nil {
		return nil, err
	}

	var urls []string
	doc.Find("ul.kl > li").Eq(idx).Find(".zawartosc a").Each(func(_ int, a *goquery.Selection) {
		if href, ok := a.Attr("href"); ok && href != "" {
			urls = append(urls, resolve(location, href))
		}
	})
	return urls, nil
}

// authorQuery turns "Jan Maria Kowalski" into "Kowalski, Jan Maria".
func authorQuery(author string) string {
	parts := strings.Fields(author)
	if len(parts) == 0 {
		return ""
	}
	last := parts[len(parts)-1]
	return last + ", " + strings.Join(parts[:len(parts)-1], " ")
}

func (s *Site4949) searchTitle(ctx context.Context, page Page, book models.Book) ([]string, error) {
	if err := s.selectForm(ctx, page, formAdvanced); err != nil {
		return nil, err
	}
	if err := page.SendKeys(ctx, sel4949TextField1, authorQuery(book.Author)); err != nil {
		return nil, err
	}
	if err := s.hideAutocomplete(ctx, page, sel4949TextField1, sel4949Autoc1); err != nil {
		return nil, err
	}
	if err := page.SendKeys(ctx, sel4949TextField2, book.Title); err != nil {
		return nil, err
	}
	if err := s.hideAutocomplete(ctx, page, sel4949TextField2, sel4949Autoc2); err != nil {
		return nil, err
	}
	if err := page.SetValue(ctx, sel4949Resource, resourceTypeBook); err != nil {
		return nil, err
	}

	if ok, err := page.WaitVisible(ctx, sel4949DescSubmit, waitTimeout); err != nil || !ok {
		return nil, err
	}
	if err := page.Click(ctx, sel4949DescSubmit); err != nil {
		return nil, err
	}
	if ok, err := page.WaitVisible(ctx, "#opisy", waitTimeout); err != nil || !ok {
		return nil, err
	}

	doc, err := document(ctx, page)
	if err != nil {
		return nil, err
	}

	var urls []string
	doc.Find(".opis").Each(func(_ int, opis *goquery.Selection) {
		id, _ := opis.Attr("id")
		id = strings.TrimPrefix(id, "dvop")
		if id == "" {
			return
		}
		if !s.titleMatches(book.Title, opis.Find("a").First().Text()) {
			s.logger.Debug("skipping result", "title", book.Title, "result", id)
			return
		}
		urls = append(urls, s.cfg.BaseURL+s.cfg.BookURLSuffix+id)
	})
	return urls, nil
}

func (s *Site4949) titleMatches(title, candidate string) bool {
	if s.cfg.MatchThreshold <= 0 {
		return true
	}
	title = strings.ToLower(strings.TrimSpace(title))
	candidate = strings.ToLower(strings.TrimSpace(candidate))
	if candidate == "" || strings.Contains(candidate, title) {
		return true
	}
	return matchr.JaroWinkler(title, candidate, false) >= s.cfg.MatchThreshold
}

// Scrape reads the holdings block of every detail page.
func (s *Site4949) Scrape(ctx context.Context, book models.Book, urls []string) ([]Location, error) {
	var locations []Location
	for _, u := range urls {
		doc, err := fetch(ctx, s.client, u)
		if err != nil {
			return locations, err
		}
		locations = append(locations, s.holdings(doc)...)
	}
	return locations, nil
}

func (s *Site4949) holdings(doc *goquery.Document) []Location {
	resource := doc.Find("div#zasob")
	if resource.Length() == 0 || resource.Contents().Length() == 0 || strings.TrimSpace(resource.Text()) == noResource {
		return nil
	}

	var locations []Location
	resource.Find("ul.zas_filie li").Each(func(_ int, li *goquery.Selection) {
		department, address := filia(li.Find("div.filia").First())
		if !slices.Contains(s.cfg.AcceptedLocations, address) {
			return
		}

		if strings.TrimSpace(li.Find("div.opis_uwaga").Text()) != "" {
			return
		}
		if li.Find(fmt.Sprintf(`img[title=%q]`, notForLoan)).Length() > 0 {
			return
		}
		if firstCount(li.Find("div.dostepnosc").Text()) <= 0 {
			return
		}

		var section string
		info := li.Find("table.zasob td").Eq(1).Text()
		if m := sectionRe.FindString(info); m != "" {
			section = strings.TrimSpace(m)
		}
		locations = append(locations, Location{Department: department, Section: section})
	})
	return locations
}

// filia splits a department block into its name (first node) and street address (first part of the last node).
func filia(sel *goquery.Selection) (department, address string) {
	nodes := sel.Contents()
	if nodes.Length() == 0 {
		return "", ""
	}
	department = strings.TrimSpace(nodes.First().Text())
	last := nodes.Last().Text()
	address, _, _ = strings.Cut(last, ",")
	return department, strings.TrimSpace(address)
}

// firstCount returns the first whitespace separated all-digit token of s, or 0.
func firstCount(s string) int {
	for _, tok := range strings.Fields(s) {
		if n, err := strconv.Atoi(tok); err == nil && nonDigitRe.FindString(tok) == "" {
			return n
		}
	}
	return 0
}
