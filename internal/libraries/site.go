package libraries

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/go-resty/resty/v2"

	"github.com/desertthunder/shelfx/internal/models"
	"github.com/desertthunder/shelfx/internal/shared"
)

// Location is a department and shelf section where a borrowable copy sits.
type Location struct {
	Department string
	Section    string
}

// Site is one library OPAC.
//
// Search drives the browser page and returns candidate detail page urls. Scrape reads those pages and
// returns the locations with a borrowable copy. Neither keeps state between books.
type Site interface {
	ID() string
	Config() shared.LibraryConfig
	// Fields lists the search strategies in the order they are tried.
	Fields() []models.Field
	Search(ctx context.Context, page Page, book models.Book, field models.Field) ([]string, error)
	Scrape(ctx context.Context, book models.Book, urls []string) ([]Location, error)
}

// Preparer is implemented by sites that need the page in a known state before each search.
type Preparer interface {
	Prepare(ctx context.Context, page Page) error
}

// Finisher is implemented by sites that reset the page after each search.
type Finisher interface {
	Finish(ctx context.Context, page Page) error
}

// NewsSource is implemented by sites that publish a new arrivals listing.
type NewsSource interface {
	NewBookURLs(ctx context.Context) ([]string, error)
	ISBNs(ctx context.Context, url string) ([]string, error)
}

// Deps are the collaborators handed to a [Factory].
type Deps struct {
	// Client fetches detail pages. A nil client gets one built from the library config.
	Client *resty.Client
	Logger *log.Logger
}

// Factory builds a site from its configuration.
type Factory func(cfg shared.LibraryConfig, deps Deps) (Site, error)

// Registry maps library ids to site factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Builtin returns a registry holding every library shipped with shelfx.
func Builtin() *Registry {
	r := NewRegistry()
	r.Register(ID4949, New4949)
	r.Register(ID5004, New5004)
	return r
}

// Register adds or replaces the factory for id.
func (r *Registry) Register(id string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[id] = f
}

// New builds the site registered under id.
func (r *Registry) New(id string, cfg shared.LibraryConfig, deps Deps) (Site, error) {
	r.mu.RLock()
	f, ok := r.factories[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrLibraryNotSupported, id)
	}

	if deps.Logger == nil {
		deps.Logger = shared.NewLogger(nil)
	}
	deps.Logger = shared.WithLogger(deps.Logger, "library", id)
	if deps.Client == nil {
		deps.Client = shared.NewHTTPClient(shared.HTTPOptions{InsecureTLS: cfg.InsecureTLS})
	}
	return f(cfg, deps)
}

// IDs lists the registered library ids in order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.factories))
	for id := range r.factories {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// searchFields converts configured field names, falling back to def when none are set.
func searchFields(names []string, def ...models.Field) []models.Field {
	if len(names) == 0 {
		return def
	}
	fields := make([]models.Field, 0, len(names))
	for _, n := range names {
		fields = append(fields, models.Field(n))
	}
	return fields
}
