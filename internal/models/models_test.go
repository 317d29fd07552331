package models

import (
	"testing"
)

func TestBook(t *testing.T) {
	book := Book{
		Title:  "Solaris",
		Author: "Stanisław Lem",
		ISBN:   "9788308049386",
		Pages:  "340",
		URL:    "https://lubimyczytac.pl/ksiazka/4833/solaris",
		Price:  29.9,
	}

	t.Run("Fingerprint", func(t *testing.T) {
		other := book
		other.Pages = "400"
		if book.Fingerprint() != other.Fingerprint() {
			t.Error("fingerprint should depend only on title, author and isbn")
		}

		other.ISBN = ""
		if book.Fingerprint() == other.Fingerprint() {
			t.Error("fingerprint should change with isbn")
		}
	})

	t.Run("Value", func(t *testing.T) {
		tc := []struct {
			field Field
			want  string
		}{
			{FieldISBN, "9788308049386"},
			{FieldTitle, "Solaris"},
			{FieldTitleAndAuthor, `"Solaris" AND "Stanisław Lem"`},
			{Field("unknown"), ""},
		}
		for _, tt := range tc {
			if got := book.Value(tt.field); got != tt.want {
				t.Errorf("Value(%s) = %q, want %q", tt.field, got, tt.want)
			}
		}

		if got := (Book{Title: "Solaris"}).Value(FieldTitleAndAuthor); got != "" {
			t.Errorf("expected empty value without author, got %q", got)
		}
	})

	t.Run("Searchable", func(t *testing.T) {
		if !book.Searchable() {
			t.Error("book with title should be searchable")
		}
		if (Book{Author: "Anonim"}).Searchable() {
			t.Error("book without isbn and title should not be searchable")
		}
	})

	t.Run("Column", func(t *testing.T) {
		if got := book.Column("Price"); got != "29.90" {
			t.Errorf("expected price 29.90, got %s", got)
		}
		if got := (Book{}).Column("price"); got != "" {
			t.Errorf("expected empty price, got %s", got)
		}
		if got := book.Column("link"); got != book.URL {
			t.Errorf("expected link to map to url, got %s", got)
		}
	})
}

func TestHolding(t *testing.T) {
	book := Book{Title: "Solaris", Author: "Stanisław Lem", Pages: "340", URL: "https://example.org/b/1"}
	h := NewHolding(book, "Filia nr 3", "F III")

	if h.Title != `"Solaris"` {
		t.Errorf("expected quoted title, got %s", h.Title)
	}
	if h.Link != book.URL || h.Pages != "340" {
		t.Errorf("unexpected holding: %+v", h)
	}

	rows := Rows([]Holding{h}, []string{"author", "title", "department", "section", "pages", "link"})
	want := []string{"Stanisław Lem", `"Solaris"`, "Filia nr 3", "F III", "340", "https://example.org/b/1"}
	if len(rows) != 1 {
		t.Fatalf("expected one row, got %d", len(rows))
	}
	for i := range want {
		if rows[0][i] != want[i] {
			t.Errorf("column %d = %q, want %q", i, rows[0][i], want[i])
		}
	}
}

func TestMovieQuery(t *testing.T) {
	if got := (MovieQuery{Title: "Alien", Year: 1979}).String(); got != "Alien 1979" {
		t.Errorf("unexpected query %q", got)
	}
	if got := (MovieQuery{Title: "Alien"}).String(); got != "Alien" {
		t.Errorf("unexpected query %q", got)
	}
}
