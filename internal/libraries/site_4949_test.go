package libraries

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/desertthunder/shelfx/internal/models"
	"github.com/desertthunder/shelfx/internal/shared"
	tu "github.com/desertthunder/shelfx/internal/testing"
)

const opacURL = "https://katalog.test/Opac5/faces/Szukaj.jsp"

const formPage = `<html><head><title>Katalog</title></head><body>
<div class="historia"><a href="#">Złożone</a><a href="#">Indeks</a></div>
<form id="form1">
  <input id="form1:textField1"><input id="form1:textField2">
  <select id="form1:dropdown1"></select><select id="form1:dropdown4"></select>
  <button id="form1:btnCzyscForme">Wyczyść</button>
  <button id="form1:btnSzukajIndeks">Szukaj</button>
  <button id="form1:btnSzukajOpisow">Szukaj</button>
</form>
</body></html>`

const indexResults = `<html><body><ul class="kl">
  <li><a href="#">978-83-0000-000-0</a></li>
  <li><a href="#">978-83-08-04938-6</a></li>
</ul></body></html>`

const indexExpanded = `<html><body><ul class="kl">
  <li><a href="#">978-83-0000-000-0</a></li>
  <li><a href="#">978-83-08-04938-6</a>
    <div class="zawartosc"><a href="Opis.jsp?ido=11">Solaris</a><a href="/Opac5/faces/Opis.jsp?ido=12">Solaris (2012)</a></div>
  </li>
</ul></body></html>`

const descriptionResults = `<html><body><div id="opisy">
  <div class="opis" id="dvop501"><a href="#">Solaris / Stanisław Lem</a></div>
  <div class="opis" id="dvop502"><a href="#">Powrót z gwiazd / Stanisław Lem</a></div>
  <div class="opis" id="dvop503"><a href="#">Solaris : powieść</a></div>
</div></body></html>`

func new4949(t *testing.T, threshold float64) Site {
	t.Helper()
	cfg := shared.LibraryConfig{
		BaseURL:           "https://katalog.test",
		BookURLSuffix:     "/Opac5/faces/Opis.jsp?ido=",
		AcceptedLocations: []string{"ul. Pułaskiego 8"},
		MatchThreshold:    threshold,
	}
	deps := Deps{Client: shared.NewHTTPClient(shared.HTTPOptions{Transport: http.DefaultTransport})}
	site, err := Builtin().New(ID4949, cfg, deps)
	require.NoError(t, err)
	return site
}

func TestSite4949Search(t *testing.T) {
	ctx := context.Background()
	book := models.Book{Title: "Solaris", Author: "Stanisław Lem", ISBN: "9788308049386"}

	t.Run("ISBN", func(t *testing.T) {
		site := new4949(t, 0)
		page := tu.NewFakePage(opacURL, formPage)
		page.Clicks[`[id="form1:btnSzukajIndeks"]`] = indexResults
		page.Clicks["ul.kl > li > a#1"] = indexExpanded

		urls, err := site.Search(ctx, page, book, models.FieldISBN)
		require.NoError(t, err)
		require.Equal(t, []string{
			"https://katalog.test/Opac5/faces/Opis.jsp?ido=11",
			"https://katalog.test/Opac5/faces/Opis.jsp?ido=12",
		}, urls)

		actions := page.Actions()
		require.Contains(t, actions, "click .historia a#1")
		require.Contains(t, actions, `click [id="form1:btnCzyscForme"]`)
		require.Contains(t, actions, `keys [id="form1:textField1"] "9788308049386"`)
		require.Contains(t, actions, `value [id="form1:dropdown1"] 3`)
		require.Contains(t, actions, `value [id="form1:dropdown4"] 2`)
	})

	t.Run("ISBN Not Listed", func(t *testing.T) {
		site := new4949(t, 0)
		page := tu.NewFakePage(opacURL, formPage)
		page.Clicks[`[id="form1:btnSzukajIndeks"]`] = indexResults

		urls, err := site.Search(ctx, page, models.Book{Title: "X", ISBN: "9780000000001"}, models.FieldISBN)
		require.NoError(t, err)
		require.Empty(t, urls)
	})

	t.Run("No Results List", func(t *testing.T) {
		site := new4949(t, 0)
		page := tu.NewFakePage(opacURL, formPage)

		urls, err := site.Search(ctx, page, book, models.FieldISBN)
		require.NoError(t, err)
		require.Empty(t, urls)
	})

	t.Run("Title", func(t *testing.T) {
		site := new4949(t, 0.8)
		page := tu.NewFakePage(opacURL, formPage)
		page.Clicks[`[id="form1:btnSzukajOpisow"]`] = descriptionResults

		urls, err := site.Search(ctx, page, book, models.FieldTitle)
		require.NoError(t, err)
		require.Equal(t, []string{
			"https://katalog.test/Opac5/faces/Opis.jsp?ido=501",
			"https://katalog.test/Opac5/faces/Opis.jsp?ido=503",
		}, urls)
		require.Contains(t, page.Actions(), "click .historia a#0")
		require.Contains(t, page.Actions(), `keys [id="form1:textField1"] "Lem, Stanisław"`)
	})

	t.Run("Title Without Filter", func(t *testing.T) {
		site := new4949(t, 0)
		page := tu.NewFakePage(opacURL, formPage)
		page.Clicks[`[id="form1:btnSzukajOpisow"]`] = descriptionResults

		urls, err := site.Search(ctx, page, book, models.FieldTitle)
		require.NoError(t, err)
		require.Len(t, urls, 3)
	})

	t.Run("Missing Value", func(t *testing.T) {
		site := new4949(t, 0)
		page := tu.NewFakePage(opacURL, formPage)

		urls, err := site.Search(ctx, page, models.Book{Title: "Solaris"}, models.FieldISBN)
		require.NoError(t, err)
		require.Nil(t, urls)
		require.Empty(t, page.Actions())
	})

	t.Run("Unsupported Field", func(t *testing.T) {
		site := new4949(t, 0)
		_, err := site.Search(ctx, tu.NewFakePage(opacURL, formPage), book, models.FieldTitleAndAuthor)
		require.ErrorIs(t, err, shared.ErrInvalidArgument)
	})

	t.Run("Browser Failure", func(t *testing.T) {
		site := new4949(t, 0)
		page := tu.NewFakePage(opacURL, formPage)
		page.Err = shared.ErrBrowserUnavailable

		_, err := site.Search(ctx, page, book, models.FieldISBN)
		require.ErrorIs(t, err, shared.ErrBrowserUnavailable)
	})
}

func TestAuthorQuery(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Stanisław Lem", "Lem, Stanisław"},
		{"Jan Maria Kowalski", "Kowalski, Jan Maria"},
		{"Homer", "Homer, "},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			require.Equal(t, tt.want, authorQuery(tt.in))
		})
	}
}

const holdingsPage = `<html><body><div id="zasob"><ul class="zas_filie">
  <li>
    <div class="filia">Wypożyczalnia nr 1<br/>ul. Pułaskiego 8, Warszawa</div>
    <div class="dostepnosc">Dostępne: 2 z 3</div>
    <table class="zasob"><tr><td>Sygnatura</td><td> 821-3 ( Literatura piękna ) </td></tr></table>
  </li>
  <li>
    <div class="filia">Filia nr 7<br/>ul. Inna 1, Warszawa</div>
    <div class="dostepnosc">Dostępne: 1 z 1</div>
    <table class="zasob"><tr><td>Sygnatura</td><td> 821-3 ( Fantastyka ) </td></tr></table>
  </li>
  <li>
    <div class="filia">Czytelnia<br/>ul. Pułaskiego 8, Warszawa</div>
    <div class="dostepnosc">Dostępne: 1 z 1</div>
    <img title="Pozycja nie do wypożyczenia">
    <table class="zasob"><tr><td>Sygnatura</td><td> 821-3 ( Czytelnia ) </td></tr></table>
  </li>
  <li>
    <div class="filia">Wypożyczalnia nr 2<br/>ul. Pułaskiego 8, Warszawa</div>
    <div class="opis_uwaga">Wycofane</div>
    <div class="dostepnosc">Dostępne: 1 z 1</div>
  </li>
  <li>
    <div class="filia">Wypożyczalnia nr 3<br/>ul. Pułaskiego 8, Warszawa</div>
    <div class="dostepnosc">Dostępne: 0 z 4</div>
  </li>
</ul></div></body></html>`

func TestSite4949Scrape(t *testing.T) {
	ctx := context.Background()

	mux := http.NewServeMux()
	mux.HandleFunc("/Opis.jsp", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("ido") {
		case "1":
			fmt.Fprint(w, holdingsPage)
		case "2":
			fmt.Fprint(w, `<html><body><div id="zasob"> Brak zasobu </div></body></html>`)
		default:
			fmt.Fprint(w, `<html><body></body></html>`)
		}
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	site := new4949(t, 0)

	t.Run("Accepted Borrowable Copies", func(t *testing.T) {
		locations, err := site.Scrape(ctx, models.Book{}, []string{
			server.URL + "/Opis.jsp?ido=2",
			server.URL + "/Opis.jsp?ido=1",
			server.URL + "/Opis.jsp?ido=3",
		})
		require.NoError(t, err)
		require.Equal(t, []Location{{Department: "Wypożyczalnia nr 1", Section: "( Literatura piękna )"}}, locations)
	})

	t.Run("Nothing To Borrow", func(t *testing.T) {
		locations, err := site.Scrape(ctx, models.Book{}, []string{server.URL + "/Opis.jsp?ido=2"})
		require.NoError(t, err)
		require.Empty(t, locations)
	})

	t.Run("HTTP Error", func(t *testing.T) {
		_, err := site.Scrape(ctx, models.Book{}, []string{server.URL + "/missing"})
		require.ErrorIs(t, err, shared.ErrAPIRequest)
	})
}

func TestFirstCount(t *testing.T) {
	require.Equal(t, 2, firstCount("Dostępne: 2 z 3"))
	require.Equal(t, 0, firstCount("brak"))
	require.Equal(t, 5, firstCount("-1 5"))
}
