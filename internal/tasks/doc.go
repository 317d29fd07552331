// Package tasks runs the long shelfx operations and reports their progress over channels.
//
// # Engines
//
//  1. [ShelfEngine.Collect] : catalog shelves to JSON files
//     - Resolves the profile and the requested shelves
//     - Reads every shelf page and scrapes each book, served from the book cache while fresh
//     - Optionally adds prices, then sorts and writes one file per shelf
//
//  2. [LibraryEngine.Check] and [LibraryEngine.Report] : library availability
//     - Splits the books into batches, one browser session per batch
//     - Reopens a failed session and resumes where the batch stopped
//     - Exports the borrowable copies sorted by department and section
//
//  3. [LatestEngine.Run] : new arrivals
//     - Crawls the library news listing and caches the ISBNs of every listed book
//     - Reports the wanted books among them that are not on the library shelf yet
//
//  4. [EnrichEngine] : authors by birth country, movie ratings and missing ISBNs
//
// # Progress Reporting
//
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data for advanced UI rendering.
// Updates use select with default so a slow reader never blocks an engine.
//
// # Worker Pools
//
// Network bound steps run on a pool of 1 to 10 workers with an optional rate limit. Results keep the order of the
// input regardless of completion order.
package tasks
