package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/shelfx/internal/formatter"
	"github.com/desertthunder/shelfx/internal/server"
	"github.com/desertthunder/shelfx/internal/shared"
)

// AuthGoogle authorizes Google Sheets exports and stores the token at google.token_path.
//
// The consent page redirects to a temporary callback server on google.redirect_uri.
func (r *Runner) AuthGoogle(ctx context.Context, cmd *cli.Command) error {
	config, err := server.GoogleOAuthConfig(r.config.Google, formatter.SheetsScopes...)
	if err != nil {
		return err
	}

	open := shared.OpenBrowser
	if cmd.Bool("no-browser") {
		open = func(authURL string) error {
			return r.writePlain("Open this URL to authorize shelfx:\n\n%s\n\n", authURL)
		}
	}

	flow := &server.Flow{
		Config:  config,
		Timeout: cmd.Duration("timeout"),
		Open:    open,
		Logger:  r.logger,
	}
	r.writePlain("Waiting for Google authorization...\n")
	token, err := flow.Run(ctx)
	if err != nil {
		return err
	}

	if err := server.SaveToken(r.config.Google.TokenPath, token); err != nil {
		return err
	}
	r.logger.Info("google token saved", "path", r.config.Google.TokenPath)
	r.writePlain("✓ Authorization successful\n")
	r.writePlain("Token saved to: %s\n", r.config.Google.TokenPath)
	return nil
}
