package shared

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"dario.cat/mergo"
	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
//
// It is built once by the CLI and handed to every component that needs it.
type Config struct {
	Database    DatabaseConfig           `toml:"database"`
	Catalog     CatalogConfig            `toml:"catalog"`
	Prices      PricesConfig             `toml:"prices"`
	Browser     BrowserConfig            `toml:"browser"`
	Libraries   map[string]LibraryConfig `toml:"libraries"`
	Latest      LatestConfig             `toml:"latest"`
	Report      ReportConfig             `toml:"report"`
	Authors     AuthorsConfig            `toml:"authors"`
	Movies      MoviesConfig             `toml:"movies"`
	OpenLibrary OpenLibraryConfig        `toml:"openlibrary"`
	Google      GoogleConfig             `toml:"google"`
	Server      ServerConfig             `toml:"server"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// CatalogConfig points at the social cataloging site the shelves are scraped from.
type CatalogConfig struct {
	URL               string  `toml:"url"`
	ProfileURL        string  `toml:"profile_url"`
	ProfileSearchURL  string  `toml:"profile_search_url"`
	ShelfPageURL      string  `toml:"shelf_page_url"`
	UserAgent         string  `toml:"user_agent"`
	TimeoutSeconds    int     `toml:"timeout_seconds"`
	InvalidateDays    int     `toml:"invalidate_days"`
	Workers           int     `toml:"workers"`
	RateLimit         float64 `toml:"rate_limit"`
	ShelvesDir        string  `toml:"shelves_dir"`
	SessionHeaderPath string  `toml:"session_headers_path"`
}

// PricesConfig configures the price comparison lookup.
type PricesConfig struct {
	URL       string   `toml:"url"`
	Retailers []string `toml:"retailers"`
}

// BrowserConfig configures the headless browser used for OPAC searches.
type BrowserConfig struct {
	Headless            bool   `toml:"headless"`
	ExecPath            string `toml:"exec_path"`
	Nodes               int    `toml:"nodes"`
	RetryRun            int    `toml:"retry_run"`
	StartRetries        int    `toml:"start_retries"`
	QueryTimeoutSeconds int    `toml:"query_timeout_seconds"`
}

// LibraryConfig holds the settings of one library OPAC, keyed by its site id.
type LibraryConfig struct {
	ShelfName         string   `toml:"shelf_name"`
	BaseURL           string   `toml:"base_url"`
	StartURL          string   `toml:"start_url"`
	Title             string   `toml:"title"`
	AcceptedLocations []string `toml:"accepted_locations"`
	Department        string   `toml:"department"`
	SearchFields      []string `toml:"search_fields"`
	BookURLSuffix     string   `toml:"book_url_suffix"`
	MatchThreshold    float64  `toml:"match_threshold"`
	InvalidateDays    int      `toml:"invalidate_days"`
	InsecureTLS       bool     `toml:"insecure_tls"`

	NewsURLTemplate   string `toml:"news_url_template"`
	AgendaTitle       string `toml:"agenda_title"`
	DocumentTypeTitle string `toml:"document_type_title"`
	LanguageTitle     string `toml:"language_title"`
	PaginationValue   int    `toml:"pagination_value"`
	LastPageTitle     string `toml:"last_page_title"`
	PagerParam        string `toml:"pager_param"`
}

// LatestConfig configures the new arrivals report.
type LatestConfig struct {
	SearchShelfName  string   `toml:"search_shelf_name"`
	InvalidateDays   int      `toml:"invalidate_days"`
	WorkbookTitle    string   `toml:"workbook_title"`
	WorksheetTitle   string   `toml:"worksheet_title"`
	XLSFileName      string   `toml:"xls_file_name"`
	WorksheetHeaders []string `toml:"worksheet_headers"`
}

// ReportConfig configures the availability report.
type ReportConfig struct {
	WorkbookTitle    string   `toml:"workbook_title"`
	WorksheetHeaders []string `toml:"worksheet_headers"`
	OutputDir        string   `toml:"output_dir"`
}

// AuthorsConfig configures the author birthplace lookup.
type AuthorsConfig struct {
	SearchURL      string `toml:"search_url"`
	WorkbookTitle  string `toml:"workbook_title"`
	WorksheetTitle string `toml:"worksheet_title"`
	Workers        int    `toml:"workers"`
}

// MoviesConfig configures the movie rating lookup.
type MoviesConfig struct {
	IMDBURL          string   `toml:"imdb_url"`
	RottenURL        string   `toml:"rotten_url"`
	VersionPatterns  []string `toml:"version_patterns"`
	ReleasePatterns  []string `toml:"release_patterns"`
	MatchThreshold   float64  `toml:"match_threshold"`
	WorkbookTitle    string   `toml:"workbook_title"`
	WorksheetTitle   string   `toml:"worksheet_title"`
	VideoExtensions  []string `toml:"video_extensions"`
	WorksheetHeaders []string `toml:"worksheet_headers"`
}

// OpenLibraryConfig configures the ISBN lookup client.
type OpenLibraryConfig struct {
	URL        string  `toml:"url"`
	UserAgent  string  `toml:"user_agent"`
	RateLimit  float64 `toml:"rate_limit"`
	MaxRetries int     `toml:"max_retries"`
}

// GoogleConfig contains the OAuth client used for Sheets exports.
type GoogleConfig struct {
	ClientID        string `toml:"client_id"`
	ClientSecret    string `toml:"client_secret"`
	RedirectURI     string `toml:"redirect_uri"`
	TokenPath       string `toml:"token_path"`
	CredentialsPath string `toml:"credentials_path"`
}

// ServerConfig contains HTTP server settings for the OAuth callback.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// Library returns the settings for a library id, with unset keys filled from the
// defaults of the built-in library with the same id.
func (c *Config) Library(id string) (LibraryConfig, error) {
	lib, ok := c.Libraries[id]
	if !ok {
		return LibraryConfig{}, fmt.Errorf("%w: no [libraries.%s] section", ErrLibraryNotConfigured, id)
	}

	if defaults, ok := DefaultConfig().Libraries[id]; ok {
		if err := mergo.Merge(&lib, defaults); err != nil {
			return LibraryConfig{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
	}
	return lib, nil
}

// LibraryIDs lists the configured library ids in order.
func (c *Config) LibraryIDs() []string {
	ids := make([]string, 0, len(c.Libraries))
	for id := range c.Libraries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// MaxAge converts a number of days into a cache age.
func MaxAge(days int) time.Duration {
	return time.Duration(days) * 24 * time.Hour
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Values from the file override the embedded defaults. Keys missing from the file keep their default.
// A missing file is reported as [ErrMissingConfig].
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrMissingConfig, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	md, err := toml.Decode(string(data), &config)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrInvalidConfig, err)
	}

	merged := DefaultConfig()
	if err := mergo.Merge(merged, config, mergo.WithOverride); err != nil {
		return nil, fmt.Errorf("%w: failed to merge config: %v", ErrInvalidConfig, err)
	}

	// mergo skips zero values, so an explicit false has to be copied over.
	if md.IsDefined("browser", "headless") {
		merged.Browser.Headless = config.Browser.Headless
	}

	return merged, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// LoadEnv reads the dotenv file at path, when present, and applies SHELFX_* overrides to config.
//
// Recognized variables: SHELFX_DATABASE_PATH, SHELFX_GOOGLE_CLIENT_ID, SHELFX_GOOGLE_CLIENT_SECRET,
// SHELFX_GOOGLE_TOKEN_PATH and SHELFX_SHELVES_DIR.
func LoadEnv(path string, config *Config) error {
	if path != "" {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to load env file: %w", err)
		}
	}

	overrides := map[string]*string{
		"SHELFX_DATABASE_PATH":        &config.Database.Path,
		"SHELFX_GOOGLE_CLIENT_ID":     &config.Google.ClientID,
		"SHELFX_GOOGLE_CLIENT_SECRET": &config.Google.ClientSecret,
		"SHELFX_GOOGLE_TOKEN_PATH":    &config.Google.TokenPath,
		"SHELFX_SHELVES_DIR":          &config.Catalog.ShelvesDir,
	}
	for key, dest := range overrides {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dest = v
		}
	}
	return nil
}
