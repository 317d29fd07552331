package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"

	"github.com/desertthunder/shelfx/internal/models"
)

var (
	_ list.Item = shelfItem{}
	_ list.Item = bookItem{}
	_ list.Item = holdingItem{}
)

// shelfItem is a shelf JSON file in the shelves directory.
type shelfItem struct {
	name  string
	path  string
	books int
}

func (i shelfItem) FilterValue() string { return i.name }
func (i shelfItem) Title() string       { return i.name }
func (i shelfItem) Description() string { return fmt.Sprintf("%d books • %s", i.books, i.path) }

// bookItem wraps [models.Book] to implement [list.Item].
type bookItem struct {
	book models.Book
}

func (i bookItem) FilterValue() string { return i.book.Title + " " + i.book.Author }
func (i bookItem) Title() string       { return i.book.Title }
func (i bookItem) Description() string {
	parts := []string{i.book.Author}
	if i.book.Release != "" {
		parts = append(parts, i.book.Release)
	}
	if i.book.ISBN != "" {
		parts = append(parts, "ISBN "+i.book.ISBN)
	}
	return strings.Join(parts, " • ")
}

// holdingItem wraps [models.Holding] to implement [list.Item].
type holdingItem struct {
	holding models.Holding
}

func (i holdingItem) FilterValue() string { return i.holding.Title + " " + i.holding.Section }
func (i holdingItem) Title() string       { return fmt.Sprintf("%s - %s", i.holding.Author, i.holding.Title) }
func (i holdingItem) Description() string {
	return fmt.Sprintf("%s • %s", i.holding.Department, strings.ReplaceAll(i.holding.Section, "\n", " "))
}
