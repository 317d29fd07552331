package main

import (
	"context"
	"strconv"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/shelfx/internal/formatter"
	"github.com/desertthunder/shelfx/internal/libraries"
	"github.com/desertthunder/shelfx/internal/models"
	"github.com/desertthunder/shelfx/internal/repositories"
	"github.com/desertthunder/shelfx/internal/tasks"
)

// LibraryCheck checks the library's shelf against its catalog and exports the borrowable copies.
func (r *Runner) LibraryCheck(ctx context.Context, cmd *cli.Command) error {
	siteID := cmd.String("library-id")
	engine, err := r.libraryEngine()
	if err != nil {
		return err
	}
	if _, err := engine.Site(siteID); err != nil {
		return err
	}

	if cmd.Bool("refresh") {
		n, err := repositories.NewAvailabilityRepository(r.db).ClearLibrary(ctx, siteID)
		if err != nil {
			return err
		}
		r.logger.Info("cleared cached availability", "library", siteID, "rows", n)
	}

	exporter, err := r.exporter(ctx, cmd)
	if err != nil {
		return err
	}

	progress, stop := r.watch()
	report, err := engine.Report(ctx, progress, tasks.LibraryReportOpts{
		SiteID:   siteID,
		Profile:  cmd.String("profile-name"),
		Exporter: exporter,
		Date:     r.now(),
	})
	stop()
	if err != nil {
		return err
	}

	r.writePlain("\n")
	r.writePlainHeader("Library Check Complete!")
	r.writePlain("Shelf: %s\n", report.Shelf)
	r.writePlain("Checked: %d, skipped: %d\n", report.Checked, report.Skipped)
	r.writePlain("Available: %d, unavailable: %d, not found: %d\n",
		report.Outcomes[models.Available], report.Outcomes[models.Unavailable], report.Outcomes[models.NotFound])

	if len(report.Failed) > 0 {
		r.writePlain("\nCould not check %d books:\n", len(report.Failed))
		for _, b := range report.Failed {
			r.writePlain("  - %s - %s\n", b.Author, b.Title)
		}
	}

	if len(report.Holdings) == 0 {
		r.writePlainln("No books from the list are available")
		return nil
	}
	r.writePlain("\n")
	r.writeTable(formatter.NewSheet(report.Shelf, r.config.Report.WorksheetHeaders, report.Holdings))
	r.writeLocation(report.Location)
	return nil
}

// LibrarySites lists the supported library sites and whether they are configured.
func (r *Runner) LibrarySites(ctx context.Context, cmd *cli.Command) error {
	sheet := formatter.Sheet{Headers: []string{"id", "configured", "shelf", "fields", "news"}}
	for _, id := range r.registry.IDs() {
		row := []string{id, "no", "", "", ""}
		if cfg, err := r.config.Library(id); err == nil {
			row[1] = "yes"
			row[2] = cfg.ShelfName
			row[3] = strings.Join(cfg.SearchFields, ", ")
			if site, err := r.registry.New(id, cfg, libraries.Deps{Logger: r.logger}); err == nil {
				_, news := site.(libraries.NewsSource)
				row[4] = strconv.FormatBool(news)
			}
		}
		sheet.Rows = append(sheet.Rows, row)
	}
	r.writeTable(sheet)
	return nil
}

// LibraryLatest exports the library's new arrivals that are on the profile's wanted shelf.
func (r *Runner) LibraryLatest(ctx context.Context, cmd *cli.Command) error {
	siteID := cmd.String("library-id")
	sites, err := r.libraryEngine()
	if err != nil {
		return err
	}

	repo := repositories.NewNewBooksRepository(r.db)
	if cmd.Bool("refresh") {
		n, err := repo.ClearLibrary(ctx, siteID)
		if err != nil {
			return err
		}
		r.logger.Info("cleared cached new arrivals", "library", siteID, "rows", n)
	}

	exporter, err := r.exporter(ctx, cmd)
	if err != nil {
		return err
	}

	engine := tasks.NewLatestEngine(sites, repo, r.config, r.logger)
	progress, stop := r.watch()
	result, err := engine.Run(ctx, progress, tasks.LatestOpts{
		SiteID:   siteID,
		Profile:  cmd.String("profile-name"),
		Exporter: exporter,
		Workers:  int(cmd.Int("workers")),
		Date:     r.now(),
	})
	stop()
	if err != nil {
		return err
	}

	r.writePlain("\n")
	r.writePlainHeader("New Arrivals")
	r.writePlain("Pages: %d, ISBNs: %d, wanted: %d\n", result.Pages, result.ISBNs, len(result.Books))
	if len(result.Books) == 0 {
		r.writePlainln("None of the new arrivals are on the wanted shelf")
		return nil
	}
	r.writePlain("\n")
	r.writeTable(formatter.NewSheet(r.config.Latest.WorksheetTitle, r.config.Latest.WorksheetHeaders, result.Books))
	r.writeLocation(result.Location)
	return nil
}
