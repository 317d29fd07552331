// Package libraries checks whether shelf books can be borrowed from a library OPAC.
//
// A [Site] knows how to search one OPAC through a browser [Page] and how to read the holdings of its detail pages.
// Sites are built from a [Registry], so commands never reach for a global table:
//
//	registry := libraries.Builtin()
//	site, err := registry.New("4949", cfg, libraries.Deps{Logger: logger})
//
// The [Checker] runs the site's search fields in order for each book. An empty search result moves on to the next field,
// while a book that is found but has no borrowable copy ends the search as Unavailable. Outcomes are cached in the
// availability table.
//
// [ChromeSession] implements [Page] with chromedp. Each batch of books opens its own session and closes it when done.
//
// Sites publishing a new arrivals listing also implement [NewsSource], crawled with colly.
package libraries
