package libraries

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/desertthunder/shelfx/internal/models"
	"github.com/desertthunder/shelfx/internal/repositories"
	"github.com/desertthunder/shelfx/internal/shared"
	tu "github.com/desertthunder/shelfx/internal/testing"
)

// stubSite answers searches from fixed per-field results.
type stubSite struct {
	results   map[models.Field][]string
	locations []Location
	searchErr error

	searches           []models.Field
	prepared, finished int
}

func (s *stubSite) ID() string                   { return "stub" }
func (s *stubSite) Config() shared.LibraryConfig { return shared.LibraryConfig{InvalidateDays: 1} }
func (s *stubSite) Fields() []models.Field {
	return []models.Field{models.FieldISBN, models.FieldTitle}
}

func (s *stubSite) Prepare(ctx context.Context, page Page) error {
	s.prepared++
	return nil
}

func (s *stubSite) Finish(ctx context.Context, page Page) error {
	s.finished++
	return nil
}

func (s *stubSite) Search(ctx context.Context, page Page, book models.Book, field models.Field) ([]string, error) {
	s.searches = append(s.searches, field)
	if s.searchErr != nil {
		return nil, s.searchErr
	}
	return s.results[field], nil
}

func (s *stubSite) Scrape(ctx context.Context, book models.Book, urls []string) ([]Location, error) {
	return s.locations, nil
}

func TestChecker(t *testing.T) {
	ctx := context.Background()
	book := models.Book{Title: "Solaris", Author: "Stanisław Lem", ISBN: "9788308049386", Pages: "340", URL: "https://example.com/solaris"}
	page := tu.NewFakePage("about:blank", "")

	t.Run("Falls Through To Next Field", func(t *testing.T) {
		repo := repositories.NewAvailabilityRepository(tu.MustDatabase(t))
		site := &stubSite{
			results: map[models.Field][]string{models.FieldTitle: {"title-hit"}},
			locations: []Location{
				{Department: "Wypożyczalnia nr 1", Section: "Fantastyka"},
				{Department: "Wypożyczalnia nr 1", Section: "Fantastyka"},
				{Department: "Filia 2", Section: ""},
			},
		}
		checker := NewChecker(site, repo, nil)

		got, err := checker.Check(ctx, page, book)
		require.NoError(t, err)
		require.Equal(t, models.Available, got.Outcome)
		require.Equal(t, models.FieldTitle, got.Field)
		require.Equal(t, []models.Field{models.FieldISBN, models.FieldTitle}, site.searches)
		require.Equal(t, []models.Holding{
			models.NewHolding(book, "Wypożyczalnia nr 1", "Fantastyka"),
			models.NewHolding(book, "Filia 2", ""),
		}, got.Holdings)
		require.Equal(t, 2, site.prepared)
		require.Equal(t, 2, site.finished)

		t.Run("Served From Cache", func(t *testing.T) {
			again, err := checker.Check(ctx, page, book)
			require.NoError(t, err)
			require.Equal(t, models.Available, again.Outcome)
			require.Len(t, again.Holdings, 2)
			require.Len(t, site.searches, 2)
		})
	})

	t.Run("Found But Unavailable Ends Search", func(t *testing.T) {
		site := &stubSite{results: map[models.Field][]string{
			models.FieldISBN:  {"isbn-hit"},
			models.FieldTitle: {"title-hit"},
		}}
		got, err := NewChecker(site, nil, nil).Check(ctx, page, book)
		require.NoError(t, err)
		require.Equal(t, models.Unavailable, got.Outcome)
		require.Equal(t, models.FieldISBN, got.Field)
		require.Equal(t, []models.Field{models.FieldISBN}, site.searches)
		require.Empty(t, got.Holdings)
	})

	t.Run("Not Found Is Cached", func(t *testing.T) {
		repo := repositories.NewAvailabilityRepository(tu.MustDatabase(t))
		site := &stubSite{}
		checker := NewChecker(site, repo, nil)

		got, err := checker.Check(ctx, page, book)
		require.NoError(t, err)
		require.Equal(t, models.NotFound, got.Outcome)

		_, err = checker.Check(ctx, page, book)
		require.NoError(t, err)
		require.Len(t, site.searches, 2)
	})

	t.Run("Skips Fields Without Value", func(t *testing.T) {
		site := &stubSite{}
		_, err := NewChecker(site, nil, nil).Check(ctx, page, models.Book{Title: "Solaris"})
		require.NoError(t, err)
		require.Equal(t, []models.Field{models.FieldTitle}, site.searches)
	})

	t.Run("Browser Failure Is Not Cached", func(t *testing.T) {
		repo := repositories.NewAvailabilityRepository(tu.MustDatabase(t))
		site := &stubSite{searchErr: shared.ErrBrowserUnavailable}
		checker := NewChecker(site, repo, nil)

		_, err := checker.Check(ctx, page, book)
		require.ErrorIs(t, err, shared.ErrBrowserUnavailable)

		_, err = repo.Get(ctx, "stub", book.Fingerprint(), shared.MaxAge(1))
		require.ErrorIs(t, err, shared.ErrCacheMiss)
	})
}

func TestRegistry(t *testing.T) {
	r := Builtin()
	require.Equal(t, []string{ID4949, ID5004}, r.IDs())

	_, err := r.New("9999", shared.LibraryConfig{}, Deps{})
	require.ErrorIs(t, err, shared.ErrLibraryNotSupported)

	_, err = r.New(ID4949, shared.LibraryConfig{}, Deps{})
	require.ErrorIs(t, err, shared.ErrLibraryNotConfigured)

	r.Register("stub", func(cfg shared.LibraryConfig, deps Deps) (Site, error) { return &stubSite{}, nil })
	site, err := r.New("stub", shared.LibraryConfig{}, Deps{})
	require.NoError(t, err)
	require.Equal(t, "stub", site.ID())

	site, err = r.New(ID5004, shared.LibraryConfig{BaseURL: "https://opac.test"}, Deps{})
	require.NoError(t, err)
	require.Equal(t, []models.Field{models.FieldTitleAndAuthor}, site.Fields())
	_, ok := site.(NewsSource)
	require.True(t, ok)
}
