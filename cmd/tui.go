package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/shelfx/internal/shared"
	"github.com/desertthunder/shelfx/internal/ui"
)

// TUI launches the interactive shelf browser.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger("./tmp/shelfx-tui.log")
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	r.SetLogger(fileLogger)

	opts := ui.Options{
		Dir:    r.config.Catalog.ShelvesDir,
		File:   cmd.String("file"),
		SiteID: cmd.String("library-id"),
	}
	if opts.SiteID != "" {
		engine, err := r.libraryEngine()
		if err != nil {
			return err
		}
		if _, err := engine.Site(opts.SiteID); err != nil {
			return err
		}
		opts.Checker = engine
	}

	model := ui.NewModel(ctx, opts)
	p := tea.NewProgram(model, tea.WithContext(ctx), tea.WithAltScreen())

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}
	return model.Err()
}
