package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/shelfx/internal/formatter"
	"github.com/desertthunder/shelfx/internal/repositories"
	"github.com/desertthunder/shelfx/internal/services"
	"github.com/desertthunder/shelfx/internal/shared"
	"github.com/desertthunder/shelfx/internal/tasks"
)

// ShelfProfile resolves a catalog profile by name.
func (r *Runner) ShelfProfile(ctx context.Context, cmd *cli.Command) error {
	name := cmd.StringArg("name")
	if name == "" {
		return fmt.Errorf("%w: profile name", shared.ErrMissingArgument)
	}

	catalog, err := r.catalog()
	if err != nil {
		return err
	}
	profile, err := catalog.FindProfile(ctx, name)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(profile, true)
	}
	r.writePlain("✓ %s\n", profile.Name)
	r.writePlain("ID: %s\n", profile.ID)
	r.writePlain("URL: %s\n", profile.URL)
	return nil
}

// ShelfList lists every shelf of a profile.
func (r *Runner) ShelfList(ctx context.Context, cmd *cli.Command) error {
	catalog, err := r.catalog()
	if err != nil {
		return err
	}
	profile, err := catalog.FindProfile(ctx, cmd.String("profile-name"))
	if err != nil {
		return err
	}
	shelves, err := catalog.Shelves(ctx, profile, services.AllShelves)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(shelves, true)
	}

	sheet := formatter.Sheet{Title: profile.Name, Headers: []string{"id", "name", "file"}}
	for _, s := range shelves {
		sheet.Rows = append(sheet.Rows, []string{s.ID, s.Name, shared.ShelfFileName(profile.Name, s.Name)})
	}
	r.writeTable(sheet)
	return nil
}

// ShelfFetch scrapes one shelf, or every shelf, into JSON files under the shelves directory.
func (r *Runner) ShelfFetch(ctx context.Context, cmd *cli.Command) error {
	catalog, err := r.catalog()
	if err != nil {
		return err
	}
	db, err := r.database()
	if err != nil {
		return err
	}

	engine := tasks.NewShelfEngine(catalog, repositories.NewShelfCacheRepository(db), r.config.Catalog, r.logger)

	progress, stop := r.watch()
	result, err := engine.Collect(ctx, progress, tasks.CollectOpts{
		Profile: cmd.String("profile-name"),
		Shelf:   cmd.String("shelf-name"),
		Prices:  cmd.Bool("include-price"),
		Refresh: cmd.Bool("refresh"),
		Workers: int(cmd.Int("workers")),
	})
	stop()
	if err != nil {
		return err
	}

	r.writePlain("\n")
	r.writePlainHeader(fmt.Sprintf("Shelves of %s", result.Profile.Name))
	sheet := formatter.Sheet{Headers: []string{"shelf", "books", "failed", "file"}}
	for _, s := range result.Shelves {
		sheet.Rows = append(sheet.Rows, []string{s.Shelf.Name, strconv.Itoa(len(s.Books)), strconv.Itoa(len(s.Failed)), s.Path})
	}
	r.writeTable(sheet)
	return nil
}
