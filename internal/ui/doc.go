// Package ui implements an interactive terminal browser for stored shelves using bubbletea's Elm architecture.
//
// The TUI provides a multi-view workflow:
//  1. [ShelfListView] : Pick a shelf file from the shelves directory
//  2. [BookListView] : Browse and filter its books
//  3. [DetailView] : Show every field of one book
//  4. [ConfirmView] : Confirm a library availability check of the shelf
//  5. [CheckView] : Monitor real-time progress updates
//  6. [ResultView] : Browse the borrowable copies found
//
// The [Model] implements bubbletea's Init/Update/View pattern. Progress updates flow through a channel from
// the library engine, so the interface stays responsive while the browser works.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, esc, c, y/n, q) with contextual help from
// charmbracelet/bubbles/help.
package ui
