package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/shelfx/internal/formatter"
	"github.com/desertthunder/shelfx/internal/shared"
	"github.com/desertthunder/shelfx/internal/tasks"
)

// Export re-exports a stored shelf file.
//
// The table format prints to the terminal. Other formats are written next to the reports, or to a
// Google Sheets workbook named after the file when --auth-data or --sheets is set.
func (r *Runner) Export(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("file")
	format := strings.ToLower(cmd.String("format"))
	switch format {
	case "table", string(formatter.FormatXLSX), string(formatter.FormatCSV), string(formatter.FormatJSON):
	default:
		return fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, format)
	}

	books, err := tasks.ReadShelf(path)
	if err != nil {
		return err
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	sheet := formatter.NewSheet(name, cmd.StringSlice("columns"), books)

	if format == "table" {
		r.writeTable(sheet)
		return nil
	}

	exporter, err := r.exporter(ctx, cmd)
	if err != nil {
		return err
	}
	// the shelf file itself may live in the output directory
	target := formatter.Target{Workbook: name, Worksheet: name, File: name + "_export", FileSheet: name}
	location, err := exporter.Export(ctx, target, sheet)
	if errors.Is(err, shared.ErrNothingToExport) {
		location = ""
	} else if err != nil {
		return err
	}
	r.writeLocation(location)
	return nil
}
