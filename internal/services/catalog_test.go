package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-resty/resty/v2"
	"github.com/google/go-cmp/cmp"

	"github.com/desertthunder/shelfx/internal/models"
	"github.com/desertthunder/shelfx/internal/shared"
)

const shelvesPage = `<html><body>
<ul class="filtr__wrapItems">
  <li><input type="checkbox" name="shelfs[]" value="11" data-shelf-name="Przeczytane"></li>
  <li><input type="checkbox" name="shelfs[]" value="12" data-shelf-name="Chcę przeczytać"></li>
</ul>
</body></html>`

const shelfPager = `<html><body>
<ul id="buttonPaginationListP">
  <li class="page-item"><a class="page-link" data-pager-page="1">1</a></li>
  <li class="page-item"><a class="page-link" data-pager-page="2">2</a></li>
  <li class="page-item"><a class="page-link" data-pager-page="3">3</a></li>
  <li class="page-item"><a class="page-link" data-pager-page="2">&raquo;</a></li>
</ul>
</body></html>`

const bookPage = `<html><body>
<div class="title-container" data-title="Diuna. Tom pierwszy"></div>
<span class="author"><a class="link-name"> Frank Herbert </a></span>
<a class="book__category">fantasy, science fiction</a>
<div id="book-details"><dl>
  <dt>Tytuł oryginału:</dt><dd> Dune </dd>
  <dt>Data wydania:</dt><dd>2019-06-05</dd>
  <dt>ISBN:</dt><dd>978-83-8188-000-1</dd>
  <dt>Liczba stron:</dt><dd>704</dd>
</dl></div>
</body></html>`

func ajax(w http.ResponseWriter, content string) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"data": map[string]string{"content": content}})
}

func newTestClient() *resty.Client {
	return shared.NewHTTPClient(shared.HTTPOptions{Transport: http.DefaultTransport})
}

func newCatalogServer(t *testing.T) (*httptest.Server, *CatalogService) {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/searcher/users", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Requested-With") != "XMLHttpRequest" {
			t.Errorf("expected XHR header")
		}
		r.ParseForm()
		if r.PostForm.Get("phrase") == "nobody" {
			ajax(w, `<ul></ul>`)
			return
		}
		ajax(w, `<ul><li><a href="/profil/99/other">other</a></li><li><a href="https://example.com/profil/4821/JanKowalski">Jan</a></li></ul>`)
	})
	mux.HandleFunc("/profil/4821/jankowalski/biblioteczka/lista", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("shelfs") != "" {
			fmt.Fprint(w, shelfPager)
			return
		}
		fmt.Fprint(w, shelvesPage)
	})
	mux.HandleFunc("/profile/books", func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		for key, want := range map[string]string{"listId": "booksFilteredList", "shelfs[]": "12", "objectId": "4821", "own": "0"} {
			if got := r.PostForm.Get(key); got != want {
				t.Errorf("expected %s=%s, got %q", key, want, got)
			}
		}
		page := r.PostForm.Get("page")
		ajax(w, fmt.Sprintf(`<div id="booksFilteredListPaginator">
			<a class="authorAllBooks__singleTextTitle" href="/ksiazka/%s01/a">A</a>
			<a class="authorAllBooks__singleTextTitle" href="/ksiazka/%s02/b">B</a>
			<a class="other" href="/ksiazka/0/x">X</a>
		</div>`, page, page))
	})
	mux.HandleFunc("/ksiazka/1/diuna", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, bookPage)
	})
	mux.HandleFunc("/ksiazka/broken", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><p>gone</p></body></html>`)
	})
	mux.HandleFunc("/prices", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("skip_jQuery") != "1" || q.Get("number") != "9788381880001" {
			t.Errorf("unexpected price query %v", q)
		}
		fmt.Fprint(w, `{"status": true, "data": [{"type": "ebook", "name": "Empik", "price": 19.99}, {"type": "book", "name": "Empik", "price": "39,90"}]}`)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	catalog := shared.CatalogConfig{
		URL:              server.URL,
		ProfileURL:       server.URL + "/profil",
		ProfileSearchURL: server.URL + "/searcher/users",
		ShelfPageURL:     server.URL + "/profile/books",
	}
	prices := shared.PricesConfig{URL: server.URL + "/prices", Retailers: []string{"Empik"}}
	return server, NewCatalogService(newTestClient(), catalog, prices, nil)
}

func TestCatalogService(t *testing.T) {
	ctx := context.Background()
	server, svc := newCatalogServer(t)
	profile := models.Profile{ID: "4821", Name: "jankowalski"}

	t.Run("FindProfile", func(t *testing.T) {
		t.Run("Matches Name Case Insensitively", func(t *testing.T) {
			got, err := svc.FindProfile(ctx, "jankowalski")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if got.ID != "4821" {
				t.Errorf("expected id 4821, got %s", got.ID)
			}
			if got.URL != server.URL+"/profil/4821/jankowalski" {
				t.Errorf("unexpected profile url %s", got.URL)
			}
		})

		t.Run("No Match", func(t *testing.T) {
			_, err := svc.FindProfile(ctx, "nobody")
			if !errors.Is(err, shared.ErrProfileNotFound) {
				t.Errorf("expected ErrProfileNotFound, got %v", err)
			}
		})

		t.Run("Empty Name", func(t *testing.T) {
			_, err := svc.FindProfile(ctx, "  ")
			if !errors.Is(err, shared.ErrMissingArgument) {
				t.Errorf("expected ErrMissingArgument, got %v", err)
			}
		})
	})

	t.Run("Shelves", func(t *testing.T) {
		t.Run("Named Shelf", func(t *testing.T) {
			shelves, err := svc.Shelves(ctx, profile, "Chcę przeczytać")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			want := []models.Shelf{{
				ID:        "12",
				Name:      "Chcę przeczytać",
				URL:       server.URL + "/profil/4821/jankowalski/biblioteczka/lista?shelfs=12",
				PageCount: 3,
			}}
			if diff := cmp.Diff(want, shelves); diff != "" {
				t.Errorf("shelves mismatch (-want +got):\n%s", diff)
			}
		})

		t.Run("All Shelves", func(t *testing.T) {
			shelves, err := svc.Shelves(ctx, profile, AllShelves)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if len(shelves) != 2 {
				t.Fatalf("expected 2 shelves, got %d", len(shelves))
			}
			if shelves[0].Name != "Przeczytane" || shelves[1].ID != "12" {
				t.Errorf("unexpected shelves %+v", shelves)
			}
		})

		t.Run("Unknown Shelf", func(t *testing.T) {
			_, err := svc.Shelves(ctx, profile, "Ulubione")
			if !errors.Is(err, shared.ErrShelvesScrape) {
				t.Errorf("expected ErrShelvesScrape, got %v", err)
			}
		})
	})

	t.Run("BookURLs", func(t *testing.T) {
		urls, err := svc.BookURLs(ctx, profile, models.Shelf{ID: "12"}, 2)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		want := []string{server.URL + "/ksiazka/201/a", server.URL + "/ksiazka/202/b"}
		if diff := cmp.Diff(want, urls); diff != "" {
			t.Errorf("urls mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("Book", func(t *testing.T) {
		t.Run("Parses Detail Page", func(t *testing.T) {
			url := server.URL + "/ksiazka/1/diuna"
			got, err := svc.Book(ctx, url)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			want := models.Book{
				Title:         "Diuna",
				Subtitle:      "Tom pierwszy",
				OriginalTitle: "Dune",
				Author:        "Frank Herbert",
				Category:      "fantasy, science fiction",
				Pages:         "704",
				URL:           url,
				ISBN:          "9788381880001",
				Release:       "2019-06-05",
			}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("book mismatch (-want +got):\n%s", diff)
			}
		})

		t.Run("Invalid Page", func(t *testing.T) {
			_, err := svc.Book(ctx, server.URL+"/ksiazka/broken")
			if !errors.Is(err, shared.ErrBooksCollect) || !errors.Is(err, shared.ErrPageNotValid) {
				t.Errorf("expected ErrBooksCollect wrapping ErrPageNotValid, got %v", err)
			}
		})

		t.Run("HTTP Error", func(t *testing.T) {
			_, err := svc.Book(ctx, server.URL+"/missing")
			if !errors.Is(err, shared.ErrBooksCollect) {
				t.Errorf("expected ErrBooksCollect, got %v", err)
			}
		})
	})

	t.Run("Price", func(t *testing.T) {
		price, err := svc.Price(ctx, models.Book{Title: "Diuna", Author: "Frank Herbert", ISBN: "9788381880001"})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if price != 39.90 {
			t.Errorf("expected 39.90, got %v", price)
		}
	})
}

func TestParsePrice(t *testing.T) {
	retailers := []string{"Empik", "Bonito"}
	tests := []struct {
		name string
		body string
		want float64
	}{
		{"status false", `{"status": false, "data": []}`, 0},
		{"status zero", `{"status": 0}`, 0},
		{"list first retailer book", `{"status": 1, "data": [{"type": "book", "name": "Other", "price": 10}, {"type": "book", "name": "Bonito", "price": 25.5}, {"type": "book", "name": "Empik", "price": 30}]}`, 25.5},
		{"list without retailer", `{"status": true, "data": [{"type": "book", "name": "Other", "price": 10}]}`, 0},
		{"object data", `{"status": true, "data": {"a": {"type": "audiobook", "name": "Empik", "price": 5}, "b": {"type": "book", "name": "Empik", "price": 42}}}`, 42},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parsePrice([]byte(tt.body), retailers)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}

	t.Run("invalid JSON", func(t *testing.T) {
		if _, err := parsePrice([]byte(`<html>`), retailers); err == nil {
			t.Error("expected error")
		}
	})
}

func TestPageCount(t *testing.T) {
	t.Run("Without Pager", func(t *testing.T) {
		doc, _ := parseHTML([]byte(`<html><body></body></html>`))
		if got := pageCount(doc); got != 1 {
			t.Errorf("expected 1, got %d", got)
		}
	})

	t.Run("With Pager", func(t *testing.T) {
		doc, _ := parseHTML([]byte(shelfPager))
		if got := pageCount(doc); got != 3 {
			t.Errorf("expected 3, got %d", got)
		}
	})
}
