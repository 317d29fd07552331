package ui

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/shelfx/internal/models"
	"github.com/desertthunder/shelfx/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	ShelfListView ViewState = iota
	BookListView
	DetailView
	ConfirmView
	CheckView
	ResultView
)

// Checker runs a library availability check. Implemented by tasks.LibraryEngine.
type Checker interface {
	Check(ctx context.Context, progress chan<- tasks.ProgressUpdate, siteID string, books []models.Book) (*tasks.CheckResult, error)
}

// Options configures the browser.
type Options struct {
	Dir     string  // Shelves directory listed in the first view
	File    string  // Shelf file opened directly, skipping the shelf list
	SiteID  string  // Library checked with the check key
	Checker Checker // nil disables library checks
}

// Model represents the TUI application state.
type Model struct {
	ctx  context.Context
	opts Options
	view ViewState

	width, height int

	shelfList  list.Model
	bookList   list.Model
	resultList list.Model
	shelfName  string
	books      []models.Book
	selected   models.Book
	progress   tasks.ProgressUpdate
	progressCh chan tasks.ProgressUpdate
	finished   chan checkCompleteMsg
	result     *tasks.CheckResult
	err        error
	checkErr   error
	help       help.Model
	keys       keyMap
}

// NewModel creates a new TUI model.
func NewModel(ctx context.Context, opts Options) *Model {
	view := ShelfListView
	if opts.File != "" {
		view = BookListView
	}
	return &Model{
		ctx:        ctx,
		opts:       opts,
		view:       view,
		shelfList:  newList("Shelves", nil),
		bookList:   newList("Books", nil),
		resultList: newList("Available copies", nil),
		help:       help.New(),
		keys:       newKeyMap(),
	}
}

func newList(title string, items []list.Item) list.Model {
	l := list.New(items, list.NewDefaultDelegate(), 0, 0)
	l.Title = title
	return l
}

// Err returns the error that stopped the browser, if any.
func (m *Model) Err() error { return m.err }

// State returns the current view.
func (m *Model) State() ViewState { return m.view }

// Init loads the shelf list, or the shelf file given in the options.
func (m *Model) Init() tea.Cmd {
	if m.opts.File != "" {
		return loadBooks(m.opts.File)
	}
	return loadShelves(m.opts.Dir)
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		for _, l := range []*list.Model{&m.shelfList, &m.bookList, &m.resultList} {
			l.SetSize(msg.Width-4, msg.Height-6)
		}
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case ShelfListView:
			return m.handleShelfListKeys(msg)
		case BookListView:
			return m.handleBookListKeys(msg)
		case DetailView:
			return m.handleDetailKeys(msg)
		case ConfirmView:
			return m.handleConfirmKeys(msg)
		case CheckView:
			if msg.String() == "ctrl+c" {
				return m, tea.Quit
			}
			return m, nil
		case ResultView:
			return m.handleResultKeys(msg)
		}

	case shelvesLoadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, tea.Quit
		}
		items := make([]list.Item, len(msg.shelves))
		for i, s := range msg.shelves {
			items[i] = s
		}
		return m, m.shelfList.SetItems(items)

	case booksLoadedMsg:
		if msg.err != nil {
			if m.opts.File != "" {
				m.err = msg.err
				return m, tea.Quit
			}
			m.shelfList.NewStatusMessage(styles.err.Render(msg.err.Error()))
			return m, nil
		}
		m.shelfName = msg.name
		m.books = msg.books
		items := make([]list.Item, len(msg.books))
		for i, b := range msg.books {
			items[i] = bookItem{book: b}
		}
		m.bookList.Title = fmt.Sprintf("%s (%d books)", msg.name, len(msg.books))
		m.bookList.ResetFilter()
		m.view = BookListView
		return m, m.bookList.SetItems(items)

	case progressUpdateMsg:
		m.progress = tasks.ProgressUpdate(msg)
		return m, m.waitForProgress()

	case checkCompleteMsg:
		m.result = msg.result
		m.checkErr = msg.err
		m.progressCh = nil
		m.view = ResultView
		var items []list.Item
		if msg.result != nil {
			for _, h := range msg.result.Holdings {
				items = append(items, holdingItem{holding: h})
			}
		}
		m.resultList.Title = fmt.Sprintf("Available copies of %s", m.shelfName)
		return m, m.resultList.SetItems(items)
	}

	return m.updateLists(msg)
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case ShelfListView:
		return m.withHelp(m.shelfList.View(), m.keys.open, m.keys.quit)
	case BookListView:
		return m.renderBookList()
	case DetailView:
		return m.renderDetail()
	case ConfirmView:
		return m.renderConfirm()
	case CheckView:
		return m.renderCheck()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

func (m *Model) filtering(l list.Model) bool {
	return l.FilterState() == list.Filtering
}

func (m *Model) handleShelfListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if !m.filtering(m.shelfList) {
		switch {
		case key.Matches(msg, m.keys.quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.open):
			if s, ok := m.shelfList.SelectedItem().(shelfItem); ok {
				return m, loadBooks(s.path)
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.shelfList, cmd = m.shelfList.Update(msg)
	return m, cmd
}

func (m *Model) handleBookListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if !m.filtering(m.bookList) {
		switch {
		case key.Matches(msg, m.keys.quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.open):
			if b, ok := m.bookList.SelectedItem().(bookItem); ok {
				m.selected = b.book
				m.view = DetailView
			}
			return m, nil
		case key.Matches(msg, m.keys.check):
			if m.canCheck() {
				m.view = ConfirmView
			}
			return m, nil
		case key.Matches(msg, m.keys.back) && m.bookList.FilterState() == list.Unfiltered:
			if m.opts.File == "" {
				m.view = ShelfListView
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.bookList, cmd = m.bookList.Update(msg)
	return m, cmd
}

func (m *Model) handleDetailKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.back), key.Matches(msg, m.keys.open):
		m.view = BookListView
	}
	return m, nil
}

func (m *Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.yes):
		m.view = CheckView
		return m, m.startCheck()
	case key.Matches(msg, m.keys.no), key.Matches(msg, m.keys.back), key.Matches(msg, m.keys.quit):
		m.view = BookListView
	}
	return m, nil
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if !m.filtering(m.resultList) {
		switch {
		case key.Matches(msg, m.keys.quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.back):
			m.view = BookListView
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.resultList, cmd = m.resultList.Update(msg)
	return m, cmd
}

func (m *Model) updateLists(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.view {
	case ShelfListView:
		m.shelfList, cmd = m.shelfList.Update(msg)
	case BookListView:
		m.bookList, cmd = m.bookList.Update(msg)
	case ResultView:
		m.resultList, cmd = m.resultList.Update(msg)
	}
	return m, cmd
}

func (m *Model) canCheck() bool {
	return m.opts.Checker != nil && m.opts.SiteID != "" && len(m.books) > 0
}

func (m *Model) startCheck() tea.Cmd {
	progress := make(chan tasks.ProgressUpdate, 50)
	m.progressCh = progress
	m.result, m.checkErr = nil, nil
	books := append([]models.Book(nil), m.books...)

	done := make(chan checkCompleteMsg, 1)
	go func() {
		result, err := m.opts.Checker.Check(m.ctx, progress, m.opts.SiteID, books)
		done <- checkCompleteMsg{result: result, err: err}
		close(progress)
	}()

	m.finished = done
	return m.waitForProgress()
}

func (m *Model) waitForProgress() tea.Cmd {
	progress, done := m.progressCh, m.finished
	return func() tea.Msg {
		if update, ok := <-progress; ok {
			return progressUpdateMsg(update)
		}
		return <-done
	}
}

func loadShelves(dir string) tea.Cmd {
	return func() tea.Msg {
		paths, err := filepath.Glob(filepath.Join(dir, "*.json"))
		if err != nil {
			return shelvesLoadedMsg{err: err}
		}
		sort.Strings(paths)

		shelves := make([]shelfItem, 0, len(paths))
		for _, p := range paths {
			books, err := tasks.ReadShelf(p)
			if err != nil {
				continue
			}
			name := strings.TrimSuffix(filepath.Base(p), ".json")
			shelves = append(shelves, shelfItem{name: name, path: p, books: len(books)})
		}
		return shelvesLoadedMsg{shelves: shelves}
	}
}

func loadBooks(path string) tea.Cmd {
	return func() tea.Msg {
		books, err := tasks.ReadShelf(path)
		name := strings.TrimSuffix(filepath.Base(path), ".json")
		return booksLoadedMsg{name: name, books: books, err: err}
	}
}

func (m *Model) withHelp(body string, bindings ...key.Binding) string {
	return fmt.Sprintf("%s\n\n%s", body, m.help.ShortHelpView(bindings))
}

func (m *Model) renderBookList() string {
	bindings := []key.Binding{m.keys.open}
	if m.canCheck() {
		bindings = append(bindings, m.keys.check)
	}
	if m.opts.File == "" {
		bindings = append(bindings, m.keys.back)
	}
	return m.withHelp(m.bookList.View(), append(bindings, m.keys.quit)...)
}

func (m *Model) renderDetail() string {
	b := m.selected
	fields := [][2]string{
		{"Title", b.Title},
		{"Subtitle", b.Subtitle},
		{"Original", b.OriginalTitle},
		{"Author", b.Author},
		{"Category", b.Category},
		{"Pages", b.Pages},
		{"Release", b.Release},
		{"ISBN", b.ISBN},
		{"Price", b.Column("price")},
		{"URL", b.URL},
	}

	var sb strings.Builder
	sb.WriteString(styles.title.Render(b.Title))
	sb.WriteString("\n")
	for _, f := range fields {
		if f[1] == "" {
			continue
		}
		sb.WriteString(styles.label.Render(f[0]))
		sb.WriteString(f[1])
		sb.WriteString("\n")
	}
	return m.withHelp(styles.box.Render(strings.TrimRight(sb.String(), "\n")), m.keys.back, m.keys.quit)
}

func (m *Model) renderConfirm() string {
	title := styles.title.Render(fmt.Sprintf("Check %s in library %s?", m.shelfName, m.opts.SiteID))
	info := fmt.Sprintf("Books: %d\n\nA browser session is started for every batch of books.", len(m.books))
	return m.withHelp(title+"\n"+info, m.keys.yes, m.keys.no)
}

func (m *Model) renderCheck() string {
	title := styles.title.Render(fmt.Sprintf("Checking %s", m.shelfName))

	phase := "Starting browser..."
	if m.progress.Total > 0 {
		phase = fmt.Sprintf("%s (%d/%d)", m.progress.Phase, m.progress.Step, m.progress.Total)
	}
	return fmt.Sprintf("%s\n\n%s\n%s", title, phase, m.progress.Message)
}

func (m *Model) renderResult() string {
	if m.checkErr != nil {
		return m.withHelp(styles.err.Render(fmt.Sprintf("Check failed: %v", m.checkErr)), m.keys.back, m.keys.quit)
	}
	if m.result == nil {
		return m.withHelp(styles.err.Render("No result available"), m.keys.back, m.keys.quit)
	}

	r := m.result
	summary := styles.ok.Render("✓ Check complete") + fmt.Sprintf(
		"\nChecked: %d  Skipped: %d  Available: %d  Unavailable: %d  Not found: %d",
		r.Checked, r.Skipped, r.Outcomes[models.Available], r.Outcomes[models.Unavailable], r.Outcomes[models.NotFound],
	)
	if len(r.Failed) > 0 {
		summary += "\n" + styles.warn.Render(fmt.Sprintf("Could not check %d books", len(r.Failed)))
	}
	if len(r.Holdings) == 0 {
		return m.withHelp(summary+"\n\n"+styles.help.Render("No books from the shelf are available."), m.keys.back, m.keys.quit)
	}
	return m.withHelp(summary+"\n\n"+m.resultList.View(), m.keys.back, m.keys.quit)
}
