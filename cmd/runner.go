package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-resty/resty/v2"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/shelfx/internal/formatter"
	"github.com/desertthunder/shelfx/internal/libraries"
	"github.com/desertthunder/shelfx/internal/repositories"
	"github.com/desertthunder/shelfx/internal/server"
	"github.com/desertthunder/shelfx/internal/services"
	"github.com/desertthunder/shelfx/internal/shared"
	"github.com/desertthunder/shelfx/internal/tasks"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	db         *sql.DB
	registry   *libraries.Registry
	sessions   tasks.SessionOpener
	transport  http.RoundTripper
	logger     *log.Logger
	output     io.Writer
	now        func() time.Time
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	DB         *sql.DB             // Opened from the config on first use when nil
	Registry   *libraries.Registry // Defaults to the built-in library sites
	Sessions   tasks.SessionOpener // Defaults to chromedp sessions
	Transport  http.RoundTripper   // Replaces the scraping transport, for tests
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Registry == nil {
		opts.Registry = libraries.Builtin()
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		db:         opts.DB,
		registry:   opts.Registry,
		sessions:   opts.Sessions,
		transport:  opts.Transport,
		logger:     opts.Logger,
		output:     opts.Output,
		now:        time.Now,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, shelfCommand, libraryCommand, enrichCommand, exportCommand, cacheCommand, authCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// SetLogger replaces the logger, e.g. with a file logger while the TUI owns the terminal.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
}

// Configure loads the config file named by the --config flag and applies the env file.
// A missing config file keeps the defaults.
func (r *Runner) Configure(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if cmd.Bool("verbose") {
		shared.SetLogLevel(r.logger, log.DebugLevel)
	}

	if path := cmd.String("config"); path != "" {
		r.configPath = path
	}
	if r.configPath != "" {
		if _, err := os.Stat(r.configPath); err == nil {
			config, err := shared.LoadConfig(r.configPath)
			if err != nil {
				return ctx, err
			}
			r.config = config
		} else {
			r.logger.Debug("config file not found, using defaults", "path", r.configPath)
		}
	}

	if err := shared.LoadEnv(cmd.String("env"), r.config); err != nil {
		return ctx, err
	}
	return ctx, nil
}

// Close releases the database when it was opened.
func (r *Runner) Close(ctx context.Context, cmd *cli.Command) error {
	if r.db == nil {
		return nil
	}
	err := r.db.Close()
	r.db = nil
	return err
}

// database opens the cache database and runs pending migrations.
func (r *Runner) database() (*sql.DB, error) {
	if r.db != nil {
		return r.db, nil
	}

	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to create database: %w", err)
	}
	shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	r.db = db
	return db, nil
}

// client builds a scraping client for one operation.
func (r *Runner) client(baseURL string, insecure bool) *resty.Client {
	return shared.NewHTTPClient(shared.HTTPOptions{
		BaseURL:     baseURL,
		UserAgent:   r.config.Catalog.UserAgent,
		Timeout:     time.Duration(r.config.Catalog.TimeoutSeconds) * time.Second,
		InsecureTLS: insecure,
		Transport:   r.transport,
	})
}

// catalog builds the catalog client, replaying session headers saved by `setup catalog`.
func (r *Runner) catalog() (*services.CatalogService, error) {
	client := r.client(r.config.Catalog.URL, false)

	headers, err := shared.LoadCurlHeaders(r.config.Catalog.SessionHeaderPath)
	if err != nil {
		return nil, err
	}
	if headers != nil {
		r.logger.Debug("using saved catalog session headers", "path", r.config.Catalog.SessionHeaderPath)
		headers.Apply(client)
	}
	return services.NewCatalogService(client, r.config.Catalog, r.config.Prices, r.logger), nil
}

func (r *Runner) memo() (*services.Memo, error) {
	db, err := r.database()
	if err != nil {
		return nil, err
	}
	return services.NewMemo(repositories.NewMemoRepository(db), 0, 0, r.logger), nil
}

func (r *Runner) libraryEngine() (*tasks.LibraryEngine, error) {
	db, err := r.database()
	if err != nil {
		return nil, err
	}
	sessions := r.sessions
	if sessions == nil {
		sessions = tasks.ChromeSessions(r.config.Browser, r.config.Catalog.UserAgent, r.logger)
	}
	deps := libraries.Deps{Logger: r.logger}
	if r.transport != nil {
		deps.Client = r.client("", false)
	}
	repo := repositories.NewAvailabilityRepository(db)
	return tasks.NewLibraryEngine(r.registry, r.config, repo, sessions, deps, r.logger), nil
}

func (r *Runner) enrichEngine() (*tasks.EnrichEngine, error) {
	memo, err := r.memo()
	if err != nil {
		return nil, err
	}

	movies, err := services.NewMovieService(r.client("", false), r.config.Movies, memo, r.logger)
	if err != nil {
		return nil, err
	}
	return tasks.NewEnrichEngine(
		services.NewGoodreadsService(r.client("", false), r.config.Authors, memo, r.logger),
		movies,
		r.openLibrary(memo),
		r.config,
		r.logger,
	), nil
}

func (r *Runner) openLibrary(memo *services.Memo) *services.OpenLibraryService {
	return services.NewOpenLibraryService(r.client("", false), r.config.OpenLibrary, memo, r.logger)
}

// exporter picks Google Sheets when --auth-data or --sheets is given and local files otherwise.
func (r *Runner) exporter(ctx context.Context, cmd *cli.Command) (formatter.Exporter, error) {
	authData := cmd.String("auth-data")
	if authData == "" && !cmd.Bool("sheets") {
		return formatter.FileExporter{
			Dir:    r.config.Report.OutputDir,
			Format: formatter.Format(cmd.String("format")),
		}, nil
	}

	opts, err := server.GoogleClientOptions(ctx, r.config.Google, authData, formatter.SheetsScopes...)
	if err != nil {
		return nil, err
	}
	writer, err := formatter.DialSheets(ctx, r.logger, opts...)
	if err != nil {
		return nil, err
	}
	return formatter.SheetsExporter{Writer: writer}, nil
}

// watch prints progress messages until the returned channel is closed by stop.
func (r *Runner) watch() (progress chan tasks.ProgressUpdate, stop func()) {
	progress = make(chan tasks.ProgressUpdate, 50)
	done := make(chan struct{})
	go func() {
		defer close(done)
		last := tasks.Phase(-1)
		for update := range progress {
			if update.Phase != last {
				r.writePlain("\n%s\n", update.Phase)
				last = update.Phase
			}
			if update.Total > 0 {
				r.writePlain("  [%d/%d] %s\n", update.Step, update.Total, update.Message)
			} else {
				r.writePlain("  %s\n", update.Message)
			}
		}
	}()
	return progress, func() {
		close(progress)
		<-done
	}
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	output, err := shared.MarshalJSON(data, pretty)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}

func (r *Runner) writeTable(sheet formatter.Sheet) {
	formatter.RenderTable(r.output, sheet)
}

// writeLocation reports where an export went, or that there was nothing to write.
func (r *Runner) writeLocation(location string) {
	if location == "" {
		r.writePlain("Nothing to export\n")
		return
	}
	r.writePlain("✓ Exported to %s\n", location)
}
