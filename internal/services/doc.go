// Package services implements the HTTP clients behind the scrapers and the enrichment lookups.
//
// # Catalog
//
// [CatalogService] talks to the social cataloging site: it resolves a profile by name, lists its shelves,
// walks the paginated shelf listings and scrapes each book page. Prices come from a separate comparison
// endpoint and are optional.
//
// Requests that the site only answers from a browser session can reuse headers captured from a
// "Copy as cURL" command (see [shared.ParseCurlCommand]).
//
// # Enrichment
//
//   - [GoodreadsService] : author birthplaces
//   - [MovieService] : IMDB, Metacritic and Rotten Tomatoes ratings for a movie title
//   - [OpenLibraryService] : ISBN lookup by title and author
//
// Enrichment lookups are slow and change rarely, so they go through [Memoize], which keeps results
// in an in-process LRU in front of the SQLite memo table.
//
// # Error Handling
//
// Services use typed errors from shared package:
//   - [shared.ErrAPIRequest] : HTTP request failed or returned a non-2xx status
//   - [shared.ErrPageNotValid] : page did not have the expected structure
//   - [shared.ErrProfileNotFound] : no profile matched the name
//   - [shared.ErrServiceUnavailable] : retries exhausted
package services
