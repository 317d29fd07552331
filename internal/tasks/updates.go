package tasks

import (
	"fmt"

	"github.com/desertthunder/shelfx/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	FetchProfile Phase = iota
	FetchShelves
	FetchPages
	FetchBooks
	FetchPrices
	CheckLibrary
	CrawlNews
	FetchISBN
	FetchAuthors
	FetchMovies
	WriteReport
)

func (p Phase) String() string {
	switch p {
	case FetchProfile:
		return "fetch_profile"
	case FetchShelves:
		return "fetch_shelves"
	case FetchPages:
		return "fetch_pages"
	case FetchBooks:
		return "fetch_books"
	case FetchPrices:
		return "fetch_prices"
	case CheckLibrary:
		return "check_library"
	case CrawlNews:
		return "crawl_news"
	case FetchISBN:
		return "fetch_isbn"
	case FetchAuthors:
		return "fetch_authors"
	case FetchMovies:
		return "fetch_movies"
	case WriteReport:
		return "write_report"
	default:
		return ""
	}
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
		// Sent successfully
	default:
		// Channel full or closed, skip this update
	}
}

func fetchProfileUpdate(name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchProfile,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Searching for profile %s...", name),
	}
}

func foundProfileUpdate(profile models.Profile) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchProfile,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Found profile: %s (ID: %s)", profile.Name, profile.ID),
		Data:    profile,
	}
}

func foundShelvesUpdate(shelves []models.Shelf) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchShelves,
		Step:    len(shelves),
		Total:   len(shelves),
		Message: fmt.Sprintf("Found %d shelves", len(shelves)),
		Data:    shelves,
	}
}

func fetchPageUpdate(step, total int, shelf string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchPages,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Reading %s page...", step, total, shelf),
	}
}

func fetchBookUpdate(step, total int, book models.Book) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchBooks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s - %s", step, total, book.Author, book.Title),
	}
}

func fetchBookFailedUpdate(step, total int, url string, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchBooks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, url, err),
	}
}

func fetchPriceUpdate(step, total int, book models.Book) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchPrices,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s: %.2f", step, total, book.Title, book.Price),
	}
}

func checkBookUpdate(step, total int, book models.Book, a models.Availability) ProgressUpdate {
	return ProgressUpdate{
		Phase:   CheckLibrary,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s: %s", step, total, book.Title, a.Outcome),
		Data:    a,
	}
}

func restartBrowserUpdate(step, total int, attempt int, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   CheckLibrary,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Restarting browser (attempt %d): %v", attempt, err),
	}
}

func crawlNewsUpdate(step, total int, url string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   CrawlNews,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s", step, total, url),
	}
}

func fetchISBNUpdate(step, total int, book models.Book) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchISBN,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s: %s", step, total, book.Title, book.ISBN),
	}
}

func fetchAuthorUpdate(step, total int, info models.AuthorInfo) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchAuthors,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s (%s)", step, total, info.Name, info.Country),
	}
}

func fetchMovieUpdate(step, total int, info models.MovieInfo) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchMovies,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s: %s / %s", step, total, info.Title, info.Tomato, info.IMDB),
	}
}

func writeReportUpdate(location string, rows int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   WriteReport,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("✓ %d rows written to %s", rows, location),
		Data:    location,
	}
}
