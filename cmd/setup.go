package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/shelfx/internal/shared"
)

// Setup creates the config file when missing, then initializes the database and runs migrations.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	configPath := r.configPath
	if configPath == "" {
		configPath = "config.toml"
	}

	if _, err := os.Stat(configPath); err != nil {
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			r.logger.Warn("failed to create config file, using defaults", "error", err)
		} else {
			r.logger.Info("config file created", "path", configPath)
			if config, err := shared.LoadConfig(configPath); err != nil {
				r.logger.Warn("failed to load created config, using defaults", "error", err)
			} else {
				r.config = config
			}
		}
	}

	r.logger.Info("initializing database", "path", r.config.Database.Path)
	if _, err := r.database(); err != nil {
		return err
	}

	status, err := shared.MigrationStatus(r.db)
	if err != nil {
		return fmt.Errorf("failed to read migration status: %w", err)
	}
	for _, m := range status {
		r.logger.Debug("migration", "version", m.Version, "name", m.Name, "applied", m.Applied)
	}

	r.logger.Infof("setup complete for database: %v", r.config.Database.Path)
	r.writePlain("✓ Config: %s\n", configPath)
	r.writePlain("✓ Database: %s (%d migrations)\n", r.config.Database.Path, len(status))
	return nil
}

// SetupCatalog stores catalog session headers from a browser "Copy as cURL" command.
//
// The saved headers and cookie are replayed by every catalog request, which lets shelves of
// profiles that are only visible to a logged in user be scraped.
func (r *Runner) SetupCatalog(ctx context.Context, cmd *cli.Command) error {
	curlCmd := cmd.String("curl")
	curlFile := cmd.String("curl-file")

	if curlCmd == "" && curlFile == "" {
		return fmt.Errorf("%w: either --curl or --curl-file must be provided", shared.ErrMissingArgument)
	}

	if curlCmd != "" && curlFile != "" {
		return fmt.Errorf("%w: cannot specify both --curl and --curl-file", shared.ErrInvalidArgument)
	}

	var (
		headers *shared.CurlHeaders
		err     error
	)
	if curlFile != "" {
		headers, err = shared.ParseCurlFile(curlFile)
	} else {
		headers, err = shared.ParseCurlCommand([]byte(curlCmd))
	}
	if err != nil {
		return fmt.Errorf("failed to parse cURL command: %w", err)
	}
	r.logger.Debug("parsed cURL command", "headers", len(headers.Headers), "cookie", headers.Cookie != "")

	outputPath := r.config.Catalog.SessionHeaderPath
	if outputPath == "" {
		return fmt.Errorf("%w: catalog.session_headers_path is empty", shared.ErrInvalidConfig)
	}
	if err := headers.Save(outputPath); err != nil {
		return fmt.Errorf("failed to write session headers: %w", err)
	}

	r.logger.Info("catalog session headers saved", "path", outputPath)
	r.writePlain("✓ Catalog session configured\n")
	r.writePlain("Headers saved to: %s\n", outputPath)
	return nil
}
