package libraries

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/chromedp/chromedp"

	"github.com/desertthunder/shelfx/internal/shared"
)

const defaultQueryTimeout = 20 * time.Second

// Page is the slice of a browser tab the OPAC sites drive.
//
// Selectors are CSS selectors. Element ids containing colons are written as attribute selectors, e.g. `[id="form1:textField1"]`.
type Page interface {
	Navigate(ctx context.Context, url string) error
	Location(ctx context.Context) (string, error)
	Title(ctx context.Context) (string, error)
	// HTML returns the outer HTML of the whole document.
	HTML(ctx context.Context) (string, error)
	// WaitVisible reports false when sel did not become visible within timeout.
	WaitVisible(ctx context.Context, sel string, timeout time.Duration) (bool, error)
	// WaitNotVisible reports false when sel was still visible after timeout.
	WaitNotVisible(ctx context.Context, sel string, timeout time.Duration) (bool, error)
	SendKeys(ctx context.Context, sel, text string) error
	// SetValue sets the value of an input or select and fires its change event.
	SetValue(ctx context.Context, sel, value string) error
	Click(ctx context.Context, sel string) error
	// ClickNth clicks the n-th (zero based) element matching sel.
	ClickNth(ctx context.Context, sel string, n int) error
}

// ChromeOptions configures [OpenChrome].
type ChromeOptions struct {
	Headless     bool
	ExecPath     string
	UserAgent    string
	StartRetries int
	QueryTimeout time.Duration
	// StartURL is opened once the browser is up, and its title must contain Title.
	StartURL string
	Title    string
}

// ChromeSession is a [Page] backed by a chromedp controlled browser.
//
// A session belongs to one batch of checks; [ChromeSession.Close] releases the browser process.
type ChromeSession struct {
	ctx          context.Context
	cancel       context.CancelFunc
	queryTimeout time.Duration
	logger       *log.Logger
}

// OpenChrome starts a browser and opens the site start page, retrying the whole start up to opts.StartRetries times.
func OpenChrome(ctx context.Context, opts ChromeOptions, logger *log.Logger) (*ChromeSession, error) {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	logger = shared.WithLogger(logger, "service", "chrome")

	attempts := max(opts.StartRetries, 1)
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		s, err := startChrome(ctx, opts, logger)
		if err == nil {
			return s, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		logger.Warn("browser start failed", "attempt", attempt, "of", attempts, "error", err)
	}
	return nil, fmt.Errorf("%w: %w", shared.ErrBrowserUnavailable, lastErr)
}

func startChrome(ctx context.Context, opts ChromeOptions, logger *log.Logger) (*ChromeSession, error) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.WindowSize(1280, 1024),
	)
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)

	s := &ChromeSession{
		ctx: browserCtx,
		cancel: func() {
			cancelBrowser()
			cancelAlloc()
		},
		queryTimeout: opts.QueryTimeout,
		logger:       logger,
	}
	if s.queryTimeout <= 0 {
		s.queryTimeout = defaultQueryTimeout
	}

	// An empty run launches the browser.
	if err := chromedp.Run(browserCtx); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	if opts.StartURL == "" {
		return s, nil
	}
	if err := s.Navigate(ctx, opts.StartURL); err != nil {
		s.Close()
		return nil, err
	}

	title, err := s.Title(ctx)
	if err != nil {
		s.Close()
		return nil, err
	}
	if opts.Title != "" && !strings.Contains(title, opts.Title) {
		s.Close()
		return nil, fmt.Errorf("%w: start page title %q does not contain %q", shared.ErrLibraryPageNotValid, title, opts.Title)
	}

	logger.Debug("browser ready", "url", opts.StartURL)
	return s, nil
}

// Close releases the browser. It is safe to call more than once.
func (s *ChromeSession) Close() {
	if s == nil || s.cancel == nil {
		return
	}
	s.cancel()
}

// run executes actions in the browser, bounded by timeout and cancelled with ctx.
func (s *ChromeSession) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil:
		return ctx.Err()
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", shared.ErrBrowserUnavailable, shared.ErrTimeout)
	default:
		return fmt.Errorf("%w: %v", shared.ErrBrowserUnavailable, err)
	}
}

// wait is run for conditions that may legitimately never hold.
func (s *ChromeSession) wait(ctx context.Context, timeout time.Duration, action chromedp.Action) (bool, error) {
	err := s.run(ctx, timeout, action)
	if errors.Is(err, shared.ErrTimeout) {
		return false, nil
	}
	return err == nil, err
}

func (s *ChromeSession) Navigate(ctx context.Context, url string) error {
	return s.run(ctx, s.queryTimeout, chromedp.Navigate(url))
}

func (s *ChromeSession) Location(ctx context.Context) (string, error) {
	var loc string
	err := s.run(ctx, s.queryTimeout, chromedp.Location(&loc))
	return loc, err
}

func (s *ChromeSession) Title(ctx context.Context) (string, error) {
	var title string
	err := s.run(ctx, s.queryTimeout, chromedp.Title(&title))
	return title, err
}

func (s *ChromeSession) HTML(ctx context.Context) (string, error) {
	var html string
	err := s.run(ctx, s.queryTimeout, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	return html, err
}

func (s *ChromeSession) WaitVisible(ctx context.Context, sel string, timeout time.Duration) (bool, error) {
	return s.wait(ctx, timeout, chromedp.WaitVisible(sel, chromedp.ByQuery))
}

func (s *ChromeSession) WaitNotVisible(ctx context.Context, sel string, timeout time.Duration) (bool, error) {
	return s.wait(ctx, timeout, chromedp.WaitNotVisible(sel, chromedp.ByQuery))
}

func (s *ChromeSession) SendKeys(ctx context.Context, sel, text string) error {
	return s.run(ctx, s.queryTimeout, chromedp.SendKeys(sel, text, chromedp.ByQuery))
}

func (s *ChromeSession) SetValue(ctx context.Context, sel, value string) error {
	fire := fmt.Sprintf(`document.querySelector(%s).dispatchEvent(new Event("change", {bubbles: true}))`, strconv.Quote(sel))
	return s.run(ctx, s.queryTimeout,
		chromedp.SetValue(sel, value, chromedp.ByQuery),
		chromedp.Evaluate(fire, nil),
	)
}

func (s *ChromeSession) Click(ctx context.Context, sel string) error {
	return s.run(ctx, s.queryTimeout, chromedp.Click(sel, chromedp.ByQuery))
}

func (s *ChromeSession) ClickNth(ctx context.Context, sel string, n int) error {
	var count int
	query := fmt.Sprintf(`document.querySelectorAll(%s).length`, strconv.Quote(sel))
	if err := s.run(ctx, s.queryTimeout, chromedp.Evaluate(query, &count)); err != nil {
		return err
	}
	if n < 0 || n >= count {
		return fmt.Errorf("%w: no element %d for %s", shared.ErrLibraryPageNotValid, n, sel)
	}
	click := fmt.Sprintf(`document.querySelectorAll(%s)[%d].click()`, strconv.Quote(sel), n)
	return s.run(ctx, s.queryTimeout, chromedp.Evaluate(click, nil))
}
