package libraries

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/desertthunder/shelfx/internal/models"
	"github.com/desertthunder/shelfx/internal/shared"
	tu "github.com/desertthunder/shelfx/internal/testing"
)

const prolibURL = "https://opac.test/"

const prolibSearch = `<html><head><title>Katalog</title></head><body>
<form><input id="SimpleSearchForm_q"><button class="btn search-main-btn">Szukaj</button></form>
</body></html>`

const prolibResults = `<html><body><div class="row row-full-text">
  <dl class="dl-horizontal"><dt>Tytuł</dt><dd><a href="/book/1">Solaris</a></dd></dl>
  <dl class="dl-horizontal"><dt>Tytuł</dt><dd><a href="https://opac.test/book/2">Solaris (wyd. 2)</a></dd></dl>
  <div class="library_title-pages"><a href="/">Wróć</a></div>
</div></body></html>`

const prolibPaged = `<html><body><div class="row row-full-text">
  <div class="btn-group"><button class="hidden-xs">20</button></div>
  <dl class="dl-horizontal"><dd><a href="/book/1">Solaris</a></dd></dl>
</div></body></html>`

const prolibMenu = `<html><body><div class="row row-full-text">
  <div class="btn-group open"><ul class="dropdown-menu"><li>20</li><li>100</li></ul></div>
</div></body></html>`

const prolibAll = `<html><body><div class="row row-full-text">
  <dl class="dl-horizontal"><dd><a href="/book/1">Solaris</a></dd></dl>
  <dl class="dl-horizontal"><dd><a href="/book/3">Solaris (wyd. 3)</a></dd></dl>
</div></body></html>`

func new5004(t *testing.T, baseURL string) Site {
	t.Helper()
	cfg := shared.DefaultConfig().Libraries[ID5004]
	cfg.BaseURL = baseURL
	cfg.InsecureTLS = false
	deps := Deps{Client: shared.NewHTTPClient(shared.HTTPOptions{Transport: http.DefaultTransport})}
	site, err := Builtin().New(ID5004, cfg, deps)
	require.NoError(t, err)
	return site
}

func TestSite5004Search(t *testing.T) {
	ctx := context.Background()
	book := models.Book{Title: "Solaris", Author: "Stanisław Lem"}
	site := new5004(t, "https://opac.test")

	t.Run("Results", func(t *testing.T) {
		page := tu.NewFakePage(prolibURL, prolibSearch)
		page.Clicks[".btn.search-main-btn"] = prolibResults

		urls, err := site.Search(ctx, page, book, models.FieldTitleAndAuthor)
		require.NoError(t, err)
		require.Equal(t, []string{"https://opac.test/book/1", "https://opac.test/book/2"}, urls)
		require.Contains(t, page.Actions(), `keys #SimpleSearchForm_q "\"Solaris\" AND \"Stanisław Lem\""`)
	})

	t.Run("Largest Page Size", func(t *testing.T) {
		page := tu.NewFakePage(prolibURL, prolibSearch)
		page.Clicks[".btn.search-main-btn"] = prolibPaged
		page.Clicks[".btn-group>.hidden-xs"] = prolibMenu
		page.Clicks[".btn-group.open>.dropdown-menu>li:last-child"] = prolibAll

		urls, err := site.Search(ctx, page, book, models.FieldTitleAndAuthor)
		require.NoError(t, err)
		require.Equal(t, []string{"https://opac.test/book/1", "https://opac.test/book/3"}, urls)
	})

	t.Run("Empty", func(t *testing.T) {
		page := tu.NewFakePage(prolibURL, prolibSearch)
		page.Clicks[".btn.search-main-btn"] = `<div class="row row-full-text"><div class="info-empty">Brak wyników</div></div>`

		urls, err := site.Search(ctx, page, book, models.FieldTitleAndAuthor)
		require.NoError(t, err)
		require.Empty(t, urls)
	})

	t.Run("Form Not Loaded", func(t *testing.T) {
		page := tu.NewFakePage(prolibURL, `<html><body></body></html>`)

		urls, err := site.Search(ctx, page, book, models.FieldTitleAndAuthor)
		require.NoError(t, err)
		require.Nil(t, urls)
		require.NotContains(t, page.Actions(), "click .btn.search-main-btn")
	})

	t.Run("Finish Returns To Search", func(t *testing.T) {
		page := tu.NewFakePage(prolibURL, prolibResults)
		require.NoError(t, site.(Finisher).Finish(ctx, page))
		require.Contains(t, page.Actions(), "click .library_title-pages a")

		page = tu.NewFakePage(prolibURL, prolibSearch)
		require.NoError(t, site.(Finisher).Finish(ctx, page))
		require.Empty(t, page.Actions())
	})
}

const prolibItem = `<html><body>
<input type="hidden" name="YII_CSRF_TOKEN" value="tok123">
<div class="prolibitem row" data-item-id="1" data-item-lib-id="10">
  <div><dl class="dl-horizontal"><dt>Sygnatura</dt><dd>W01 821-3 Lem</dd></dl></div>
</div>
<div class="prolibitem row" data-item-id="2" data-item-lib-id="10">
  <div><dl class="dl-horizontal"><dt>Sygnatura</dt><dd>F05 821-3</dd></dl></div>
</div>
<div class="prolibitem row" data-item-id="3" data-item-lib-id="10">
  <div><dl class="dl-horizontal"><dt>Sygnatura</dt><dd>W01</dd></dl></div>
</div>
<div class="prolibitem row" data-item-id="4" data-item-lib-id="10">
  <div><dl class="dl-horizontal"><dt>Sygnatura</dt><dd>W01 Fantastyka</dd></dl></div>
</div>
</body></html>`

func TestSite5004Scrape(t *testing.T) {
	ctx := context.Background()

	var checks atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/book/1", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, prolibItem)
	})
	mux.HandleFunc("/book/empty", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><p>Brak egzemplarzy</p></body></html>`)
	})
	mux.HandleFunc("/ajax/getaccessibilityicon", func(w http.ResponseWriter, r *http.Request) {
		checks.Add(1)
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "tok123", r.PostForm.Get("YII_CSRF_TOKEN"))
		assert.Equal(t, r.PostForm.Get("doclibid"), r.PostForm.Get("libid"))
		switch r.PostForm.Get("docid") {
		case "1":
			fmt.Fprint(w, `<div><span>Wypożyczony</span></div>`)
		default:
			fmt.Fprint(w, `<div><span>Dostępny</span></div>`)
		}
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	site := new5004(t, server.URL)

	t.Run("First Accepted Copy", func(t *testing.T) {
		locations, err := site.Scrape(ctx, models.Book{}, []string{server.URL + "/book/empty", server.URL + "/book/1"})
		require.NoError(t, err)
		require.Equal(t, []Location{{Department: "Wypożyczalnia Główna", Section: "Fantastyka"}}, locations)
		require.EqualValues(t, 4, checks.Load())
	})

	t.Run("No Items", func(t *testing.T) {
		locations, err := site.Scrape(ctx, models.Book{}, []string{server.URL + "/book/empty"})
		require.NoError(t, err)
		require.Nil(t, locations)
	})
}
