package testing

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// FakePage is a scripted browser page for site tests.
//
// Navigate loads the HTML stored in Routes. Clicks switch the document to the HTML stored in Clicks under the selector,
// or under "selector#n" for ClickNth. Every call is recorded in Actions.
type FakePage struct {
	mu sync.Mutex

	Routes map[string]string
	Clicks map[string]string
	// Hidden selectors never report as visible even when present in the document.
	Hidden map[string]bool
	// Err is returned from every call when set.
	Err error

	url     string
	html    string
	actions []string
}

// NewFakePage creates a page showing html at url.
func NewFakePage(url, html string) *FakePage {
	return &FakePage{
		Routes: map[string]string{url: html},
		Clicks: map[string]string{},
		Hidden: map[string]bool{},
		url:    url,
		html:   html,
	}
}

// Actions returns the recorded calls.
func (p *FakePage) Actions() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.actions...)
}

// SetHTML replaces the current document.
func (p *FakePage) SetHTML(html string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.html = html
}

func (p *FakePage) record(format string, args ...any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.actions = append(p.actions, fmt.Sprintf(format, args...))
	return p.Err
}

func (p *FakePage) present(sel string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Hidden[sel] {
		return false
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(p.html))
	if err != nil {
		return false
	}
	return doc.Find(sel).Length() > 0
}

func (p *FakePage) transition(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if html, ok := p.Clicks[key]; ok {
		p.html = html
	}
}

func (p *FakePage) Navigate(ctx context.Context, url string) error {
	if err := p.record("navigate %s", url); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	html, ok := p.Routes[url]
	if !ok {
		return fmt.Errorf("no route for %s", url)
	}
	p.url, p.html = url, html
	return nil
}

func (p *FakePage) Location(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url, p.Err
}

func (p *FakePage) Title(ctx context.Context) (string, error) {
	p.mu.Lock()
	html, err := p.html, p.Err
	p.mu.Unlock()
	if err != nil {
		return "", err
	}
	doc, perr := goquery.NewDocumentFromReader(strings.NewReader(html))
	if perr != nil {
		return "", perr
	}
	return strings.TrimSpace(doc.Find("title").Text()), nil
}

func (p *FakePage) HTML(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.html, p.Err
}

func (p *FakePage) WaitVisible(ctx context.Context, sel string, timeout time.Duration) (bool, error) {
	if err := p.record("wait %s", sel); err != nil {
		return false, err
	}
	return p.present(sel), nil
}

func (p *FakePage) WaitNotVisible(ctx context.Context, sel string, timeout time.Duration) (bool, error) {
	if err := p.record("wait-hidden %s", sel); err != nil {
		return false, err
	}
	return !p.present(sel), nil
}

func (p *FakePage) SendKeys(ctx context.Context, sel, text string) error {
	return p.record("keys %s %q", sel, text)
}

func (p *FakePage) SetValue(ctx context.Context, sel, value string) error {
	return p.record("value %s %s", sel, value)
}

func (p *FakePage) Click(ctx context.Context, sel string) error {
	if err := p.record("click %s", sel); err != nil {
		return err
	}
	p.transition(sel)
	return nil
}

func (p *FakePage) ClickNth(ctx context.Context, sel string, n int) error {
	key := fmt.Sprintf("%s#%d", sel, n)
	if err := p.record("click %s", key); err != nil {
		return err
	}
	p.transition(key)
	return nil
}
