package ui

import (
	"github.com/desertthunder/shelfx/internal/models"
	"github.com/desertthunder/shelfx/internal/tasks"
)

type shelvesLoadedMsg struct {
	shelves []shelfItem
	err     error
}

type booksLoadedMsg struct {
	name  string
	books []models.Book
	err   error
}

type progressUpdateMsg tasks.ProgressUpdate

type checkCompleteMsg struct {
	result *tasks.CheckResult
	err    error
}
