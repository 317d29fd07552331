package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/shelfx/internal/formatter"
	"github.com/desertthunder/shelfx/internal/shared"
	"github.com/desertthunder/shelfx/internal/tasks"
)

// EnrichAuthors groups the authors of a shelf by birth country.
func (r *Runner) EnrichAuthors(ctx context.Context, cmd *cli.Command) error {
	path := shared.ShelfFilePath(r.config.Catalog.ShelvesDir, cmd.String("profile-name"), cmd.String("shelf-name"))
	books, err := tasks.ReadShelf(path)
	if err != nil {
		return err
	}

	engine, err := r.enrichEngine()
	if err != nil {
		return err
	}
	exporter, err := r.exporter(ctx, cmd)
	if err != nil {
		return err
	}

	progress, stop := r.watch()
	result, err := engine.Authors(ctx, progress, books, exporter)
	stop()
	if err != nil {
		return err
	}

	r.writePlain("\n")
	r.writePlainHeader("Authors by Country")
	r.writePlain("Authors found: %d, countries: %d\n\n", len(result.Authors), len(result.Countries))
	r.writeTable(formatter.Sheet{Headers: []string{"country", "authors"}, Rows: tasks.CountryRows(result.Countries)})
	r.writeLocation(result.Location)
	return nil
}

// EnrichMovies rates the movies in --dir. With --extract the folder names of the source directory are first mirrored
// into --dir, which allows rating a library on a slow or read-only drive.
func (r *Runner) EnrichMovies(ctx context.Context, cmd *cli.Command) error {
	dir := cmd.String("dir")
	if src := cmd.String("extract"); src != "" {
		if dir == "" {
			return fmt.Errorf("%w: --dir is required with --extract", shared.ErrMissingArgument)
		}
		created, err := tasks.ExtractFolders(src, dir)
		if err != nil {
			return err
		}
		r.logger.Info("extracted movie folders", "from", src, "to", dir, "folders", len(created))
		r.writePlain("✓ Extracted %d folders into %s\n", len(created), dir)
	}
	if dir == "" {
		return fmt.Errorf("%w: --dir", shared.ErrMissingArgument)
	}

	engine, err := r.enrichEngine()
	if err != nil {
		return err
	}
	exporter, err := r.exporter(ctx, cmd)
	if err != nil {
		return err
	}

	progress, stop := r.watch()
	result, err := engine.Movies(ctx, progress, dir, exporter)
	stop()
	if err != nil {
		return err
	}

	r.writePlain("\n")
	r.writeTable(formatter.NewSheet(r.config.Movies.WorksheetTitle, r.config.Movies.WorksheetHeaders, result.Movies))
	r.writeLocation(result.Location)
	return nil
}

// ISBNLookup prints the OpenLibrary record of one ISBN.
func (r *Runner) ISBNLookup(ctx context.Context, cmd *cli.Command) error {
	isbn := cmd.StringArg("isbn")
	if isbn == "" {
		return fmt.Errorf("%w: isbn", shared.ErrMissingArgument)
	}

	memo, err := r.memo()
	if err != nil {
		return err
	}
	book, err := r.openLibrary(memo).LookupISBN(ctx, isbn)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(book, true)
	}
	r.writePlain("%s\n", book.Title)
	for _, field := range []string{"subtitle", "author", "category", "pages", "release", "isbn", "url"} {
		if v := book.Column(field); v != "" {
			r.writePlain("%-10s %s\n", formatter.Capitalize(field)+":", v)
		}
	}
	return nil
}

// ISBNFill looks up the ISBNs missing from a shelf file and writes them back.
func (r *Runner) ISBNFill(ctx context.Context, cmd *cli.Command) error {
	path := shared.ShelfFilePath(r.config.Catalog.ShelvesDir, cmd.String("profile-name"), cmd.String("shelf-name"))

	engine, err := r.enrichEngine()
	if err != nil {
		return err
	}

	progress, stop := r.watch()
	result, err := engine.FillISBN(ctx, progress, path)
	stop()
	if err != nil {
		return err
	}

	r.writePlain("\n✓ Filled %d of %d missing ISBNs in %s\n", result.Filled, result.Missing, result.Path)
	return nil
}
