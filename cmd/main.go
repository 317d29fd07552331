package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/shelfx/internal/shared"
)

func main() {
	logger := shared.NewLogger(nil)
	runner := NewRunner(RunnerOpts{Logger: logger})

	err := newApp(runner).Run(context.Background(), os.Args)
	os.Exit(exitCode(err, logger, os.Stderr))
}

func newApp(r *Runner) *cli.Command {
	return &cli.Command{
		Name:     "shelfx",
		Usage:    "Track catalog shelves, library availability and book metadata",
		Version:  "0.3.0",
		Flags:    globalFlags(),
		Before:   r.Configure,
		After:    r.Close,
		Commands: r.register(),
	}
}

// exitCode reports err and returns the process exit status.
//
// Unimplemented features only warn. Library and shelf problems the user can fix are printed
// and exit cleanly. Anything else is fatal.
func exitCode(err error, logger *log.Logger, w io.Writer) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, shared.ErrNotImplemented):
		logger.Warn("not implemented", "error", err)
		return 0
	case shared.IsUserFacing(err):
		fmt.Fprintln(w, err)
		return 0
	default:
		logger.Error("application error", "error", err)
		return 1
	}
}
