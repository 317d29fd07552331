// submodule cmd contains command definitions
package main

import (
	"time"

	"github.com/urfave/cli/v3"
)

func profileFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "profile-name",
		Aliases:  []string{"p"},
		Usage:    "Profile name on the catalog site",
		Required: true,
	}
}

func shelfFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "shelf-name",
		Aliases:  []string{"s"},
		Usage:    "Shelf name",
		Required: true,
	}
}

func libraryFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "library-id",
		Aliases:  []string{"l"},
		Usage:    "Library site id (see `library sites`)",
		Required: true,
	}
}

func refreshFlag() cli.Flag {
	return &cli.BoolFlag{Name: "refresh", Usage: "Ignore cached entries"}
}

// exportFlags select Google Sheets instead of local files.
func exportFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "auth-data",
			Usage: "Google token or service account JSON, exports to Google Sheets",
		},
		&cli.BoolFlag{
			Name:  "sheets",
			Usage: "Export to Google Sheets with the token from `auth google`",
		},
	}
}

// globalFlags are inherited by every command.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to configuration file",
			Value:   "config.toml",
		},
		&cli.StringFlag{
			Name:  "env",
			Usage: "Path to a dotenv file with SHELFX_* overrides",
			Value: ".env",
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"v"},
			Usage:   "Enable debug logging",
		},
	}
}

// setupCommand handles setup operations for the config file, database and catalog session.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "setup",
		Usage:  "Create the config file, initialize the database and run migrations",
		Action: r.Setup,
		Commands: []*cli.Command{
			{
				Name:  "catalog",
				Usage: "Store catalog session headers from a browser request",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "curl",
						Usage: "cURL command from browser DevTools (Copy as cURL)",
					},
					&cli.StringFlag{
						Name:  "curl-file",
						Usage: "Path to .sh file containing cURL command",
					},
				},
				Action: r.SetupCatalog,
			},
		},
	}
}

// shelfCommand handles catalog profile and shelf operations
func shelfCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "shelf",
		Usage: "Catalog profile and shelf operations",
		Commands: []*cli.Command{
			{
				Name:  "profile",
				Usage: "Resolve a profile id from its name",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "name"},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "json", Usage: "Output raw JSON"},
				},
				Action: r.ShelfProfile,
			},
			{
				Name:  "list",
				Usage: "List the shelves of a profile",
				Flags: []cli.Flag{
					profileFlag(),
					&cli.BoolFlag{Name: "json", Usage: "Output raw JSON"},
				},
				Action: r.ShelfList,
			},
			{
				Name:  "fetch",
				Usage: "Scrape a shelf into a JSON file",
				Flags: []cli.Flag{
					profileFlag(),
					&cli.StringFlag{
						Name:     "shelf-name",
						Aliases:  []string{"s"},
						Usage:    "Shelf name, or \"all\" for every shelf",
						Required: true,
					},
					&cli.BoolFlag{
						Name:  "include-price",
						Usage: "Look up prices and sort by them",
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Concurrent book page fetches",
					},
					refreshFlag(),
				},
				Action: r.ShelfFetch,
			},
		},
	}
}

// libraryCommand handles library availability operations
func libraryCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "library",
		Aliases: []string{"lib"},
		Usage:   "Library availability operations",
		Commands: []*cli.Command{
			{
				Name:   "check",
				Usage:  "Check the library shelf against the library catalog and export the available copies",
				Flags:  append([]cli.Flag{libraryFlag(), profileFlag(), refreshFlag()}, exportFlags()...),
				Action: r.LibraryCheck,
			},
			{
				Name:   "sites",
				Usage:  "List supported library sites",
				Action: r.LibrarySites,
			},
			{
				Name:  "latest",
				Usage: "Export new arrivals that are on the wanted shelf",
				Flags: append([]cli.Flag{
					libraryFlag(), profileFlag(), refreshFlag(),
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Concurrent detail page fetches",
					},
				}, exportFlags()...),
				Action: r.LibraryLatest,
			},
		},
	}
}

// enrichCommand handles metadata lookups on other sites
func enrichCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "enrich",
		Usage: "Add author, movie and ISBN metadata",
		Commands: []*cli.Command{
			{
				Name:   "authors",
				Usage:  "Group the authors of a shelf by birth country",
				Flags:  append([]cli.Flag{profileFlag(), shelfFlag()}, exportFlags()...),
				Action: r.EnrichAuthors,
			},
			{
				Name:  "movies",
				Usage: "Rate the movies in a directory",
				Flags: append([]cli.Flag{
					&cli.StringFlag{
						Name:  "dir",
						Usage: "Directory of movie folders and files",
					},
					&cli.StringFlag{
						Name:  "extract",
						Usage: "Mirror the folder names of this directory into --dir as empty folders",
					},
				}, exportFlags()...),
				Action: r.EnrichMovies,
			},
			{
				Name:  "isbn",
				Usage: "OpenLibrary ISBN operations",
				Commands: []*cli.Command{
					{
						Name:  "lookup",
						Usage: "Print the book published under an ISBN",
						Arguments: []cli.Argument{
							&cli.StringArg{Name: "isbn"},
						},
						Flags: []cli.Flag{
							&cli.BoolFlag{Name: "json", Usage: "Output raw JSON"},
						},
						Action: r.ISBNLookup,
					},
					{
						Name:  "fill",
						Usage: "Fill missing ISBNs in a shelf file",
						Flags: []cli.Flag{
							profileFlag(),
							shelfFlag(),
						},
						Action: r.ISBNFill,
					},
				},
			},
		},
	}
}

// exportCommand re-exports a stored shelf file
func exportCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Export a shelf JSON file to a spreadsheet, CSV, JSON or the terminal",
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:     "file",
				Aliases:  []string{"f"},
				Usage:    "Shelf JSON file",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "format",
				Usage: "xlsx, csv, json or table",
				Value: "xlsx",
			},
			&cli.StringSliceFlag{
				Name:  "columns",
				Usage: "Columns to export",
				Value: []string{"author", "title", "isbn", "pages", "release", "price", "url"},
			},
		}, exportFlags()...),
		Action: r.Export,
	}
}

// cacheCommand handles the age invalidated cache tables
func cacheCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Inspect and invalidate the cache tables",
		Commands: []*cli.Command{
			{
				Name:  "stats",
				Usage: "Show the rows of each cache table",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "table",
						Usage: "Only show this table",
					},
				},
				Action: r.CacheStats,
			},
			{
				Name:  "prune",
				Usage: "Delete entries older than --days",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:     "days",
						Usage:    "Maximum entry age in days",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "table",
						Usage: "Only prune this table",
					},
				},
				Action: r.CachePrune,
			},
			{
				Name:  "clear",
				Usage: "Delete every entry",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "table",
						Usage: "Only clear this table",
					},
				},
				Action: r.CacheClear,
			},
		},
	}
}

// authCommand handles authentication operations
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage authentication",
		Commands: []*cli.Command{
			{
				Name:  "google",
				Usage: "Authorize Google Sheets exports through a local callback server",
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:  "timeout",
						Usage: "How long to wait for the browser callback",
						Value: 2 * time.Minute,
					},
					&cli.BoolFlag{
						Name:  "no-browser",
						Usage: "Print the authorization URL instead of opening it",
					},
				},
				Action: r.AuthGoogle,
			},
		},
	}
}

// tuiCommand returns the top-level TUI command for browsing shelves.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Browse stored shelves and check them against a library",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "file",
				Aliases: []string{"f"},
				Usage:   "Open this shelf file directly",
			},
			&cli.StringFlag{
				Name:    "library-id",
				Aliases: []string{"l"},
				Usage:   "Library checked with the c key",
			},
		},
		Action: r.TUI,
	}
}
