// Package models defines the records shared by the shelf scraper, library checks, enrichment and exporters.
//
// The package contains two categories of types:
//
// 1. Scraped records: loosely typed data read from HTML or JSON files
//   - [Book] : a catalog shelf entry, fingerprinted by title, author and isbn
//   - [Profile], [Shelf] : catalog site navigation
//   - [Holding] : one borrowable location of a book in a library
//   - [AuthorInfo], [MovieQuery], [MovieInfo] : enrichment results
//
// 2. Cached outcomes: rows stored in the age invalidated SQLite caches
//   - [Availability] : the [Outcome] of a library search for a book
//   - [NewBook] : an ISBN seen on a library new arrivals page
//
// Every cache table implements [CacheStore] so the CLI can count, prune and clear them uniformly.
// [Record] lets exporters render any of these as spreadsheet rows.
package models
