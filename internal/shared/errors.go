package shared

import (
	"errors"
	"fmt"
)

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authentication errors
	ErrAuthFailed = fmt.Errorf("authentication failed")
	ErrTimeout    = fmt.Errorf("operation timed out")

	// Catalog errors
	ErrProfileNotFound = fmt.Errorf("profile not found")
	ErrShelvesScrape   = fmt.Errorf("unable to scrape shelves")
	ErrBooksCollect    = fmt.Errorf("unable to collect books")
	ErrPageNotValid    = fmt.Errorf("unexpected page content")
	ErrBookNotFound    = fmt.Errorf("book not found")

	// Library errors
	ErrLibraryNotSupported  = fmt.Errorf("library not supported")
	ErrLibraryNotConfigured = fmt.Errorf("library not configured")
	ErrLibraryPageNotValid  = fmt.Errorf("library page not valid")
	ErrBrowserUnavailable   = fmt.Errorf("browser unavailable")
	ErrBooksListUnavailable = fmt.Errorf("books list unavailable")

	// Cache and storage errors
	ErrCacheMiss = fmt.Errorf("cache miss")
	ErrDatabase  = fmt.Errorf("database error")

	// Export errors
	ErrNothingToExport = fmt.Errorf("nothing to export")

	// API and service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)

// IsUserFacing reports whether err is a library or list problem that should be
// shown to the user instead of failing the process.
func IsUserFacing(err error) bool {
	for _, target := range []error{
		ErrLibraryNotSupported,
		ErrLibraryNotConfigured,
		ErrLibraryPageNotValid,
		ErrBooksListUnavailable,
		ErrProfileNotFound,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
