package ui

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/desertthunder/shelfx/internal/models"
	"github.com/desertthunder/shelfx/internal/shared"
	"github.com/desertthunder/shelfx/internal/tasks"
)

type fakeChecker struct {
	siteID string
	books  []models.Book
	result *tasks.CheckResult
	err    error
}

func (c *fakeChecker) Check(ctx context.Context, progress chan<- tasks.ProgressUpdate, siteID string, books []models.Book) (*tasks.CheckResult, error) {
	c.siteID, c.books = siteID, books
	progress <- tasks.ProgressUpdate{Phase: tasks.CheckLibrary, Step: 1, Total: len(books), Message: books[0].Title}
	return c.result, c.err
}

var shelf = []models.Book{
	{Title: "Solaris", Author: "Stanisław Lem", ISBN: "9788308049348", Release: "1961"},
	{Title: "Katedra", Author: "Jacek Dukaj", ISBN: "9788308064464"},
}

func writeShelves(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, shared.WriteJSONFile(filepath.Join(dir, "reader_read.json"), shelf))
	require.NoError(t, shared.WriteJSONFile(filepath.Join(dir, "reader_wishlist.json"), shelf[:1]))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{"), 0o644))
	return dir
}

// run executes cmd and feeds the message it produces back into m.
func run(t *testing.T, m *Model, cmd tea.Cmd) {
	t.Helper()
	require.NotNil(t, cmd)
	m.Update(cmd())
}

func press(m *Model, keys string) tea.Cmd {
	var msg tea.KeyMsg
	switch keys {
	case "enter":
		msg = tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		msg = tea.KeyMsg{Type: tea.KeyEsc}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(keys)}
	}
	_, cmd := m.Update(msg)
	return cmd
}

func TestShelfBrowsing(t *testing.T) {
	dir := writeShelves(t)
	m := NewModel(context.Background(), Options{Dir: dir})
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})

	t.Run("Lists Readable Shelves", func(t *testing.T) {
		run(t, m, m.Init())
		assert.Equal(t, ShelfListView, m.State())

		items := m.shelfList.Items()
		require.Len(t, items, 2)
		assert.Equal(t, shelfItem{name: "reader_read", path: filepath.Join(dir, "reader_read.json"), books: 2}, items[0])
		assert.Contains(t, m.View(), "reader_read")
	})

	t.Run("Opens Shelf", func(t *testing.T) {
		run(t, m, press(m, "enter"))
		assert.Equal(t, BookListView, m.State())
		assert.Len(t, m.bookList.Items(), 2)
		assert.Contains(t, m.View(), "Solaris")
	})

	t.Run("Opens Detail", func(t *testing.T) {
		press(m, "enter")
		assert.Equal(t, DetailView, m.State())
		view := m.View()
		assert.Contains(t, view, "Stanisław Lem")
		assert.Contains(t, view, "9788308049348")

		press(m, "esc")
		assert.Equal(t, BookListView, m.State())
	})

	t.Run("Check Needs A Checker", func(t *testing.T) {
		press(m, "c")
		assert.Equal(t, BookListView, m.State())
	})

	t.Run("Back To Shelves", func(t *testing.T) {
		press(m, "esc")
		assert.Equal(t, ShelfListView, m.State())
	})

	t.Run("Quit", func(t *testing.T) {
		cmd := press(m, "q")
		require.NotNil(t, cmd)
		assert.IsType(t, tea.QuitMsg{}, cmd())
	})
}

func TestLibraryCheck(t *testing.T) {
	dir := writeShelves(t)
	holding := models.Holding{Title: "Solaris", Author: "Stanisław Lem", Department: "Filia 7", Section: "Fantastyka"}
	checker := &fakeChecker{result: &tasks.CheckResult{
		SiteID:   "4949",
		Checked:  2,
		Outcomes: map[models.Outcome]int{models.Available: 1, models.NotFound: 1},
		Holdings: []models.Holding{holding},
	}}

	m := NewModel(context.Background(), Options{File: filepath.Join(dir, "reader_read.json"), SiteID: "4949", Checker: checker})
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	run(t, m, m.Init())
	require.Equal(t, BookListView, m.State())

	press(m, "c")
	require.Equal(t, ConfirmView, m.State())
	assert.Contains(t, m.View(), "4949")

	t.Run("Declined", func(t *testing.T) {
		press(m, "n")
		assert.Equal(t, BookListView, m.State())
		press(m, "c")
	})

	wait := press(m, "y")
	require.Equal(t, CheckView, m.State())

	// progress first, then completion once the channel is closed
	_, wait = m.Update(wait())
	assert.Equal(t, 1, m.progress.Step)
	assert.Contains(t, m.View(), "Solaris")
	m.Update(wait())

	require.Equal(t, ResultView, m.State())
	assert.Equal(t, "4949", checker.siteID)
	assert.Len(t, checker.books, 2)
	assert.Equal(t, []any{holdingItem{holding: holding}}, toAny(m.resultList.Items()))

	view := m.View()
	assert.Contains(t, view, "Available: 1")
	assert.Contains(t, view, "Filia 7")

	t.Run("Back Stays On Single Shelf", func(t *testing.T) {
		press(m, "esc")
		assert.Equal(t, BookListView, m.State())
		press(m, "esc")
		assert.Equal(t, BookListView, m.State())
	})
}

func TestLibraryCheckFailure(t *testing.T) {
	dir := writeShelves(t)
	checker := &fakeChecker{err: errors.New("chrome not found")}
	m := NewModel(context.Background(), Options{File: filepath.Join(dir, "reader_read.json"), SiteID: "4949", Checker: checker})
	run(t, m, m.Init())

	press(m, "c")
	wait := press(m, "y")
	_, wait = m.Update(wait())
	m.Update(wait())

	require.Equal(t, ResultView, m.State())
	assert.Contains(t, m.View(), "chrome not found")
}

func TestMissingShelfFile(t *testing.T) {
	m := NewModel(context.Background(), Options{File: filepath.Join(t.TempDir(), "missing.json")})
	_, cmd := m.Update(m.Init()())
	require.ErrorIs(t, m.Err(), shared.ErrBooksListUnavailable)
	require.NotNil(t, cmd)
}

func toAny[T any](items []T) []any {
	out := make([]any, len(items))
	for i, v := range items {
		out[i] = v
	}
	return out
}
