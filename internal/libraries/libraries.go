package libraries

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"

	"github.com/desertthunder/shelfx/internal/shared"
)

// document parses the current page of the browser.
func document(ctx context.Context, page Page) (*goquery.Document, error) {
	html, err := page.HTML(ctx)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrLibraryPageNotValid, err)
	}
	return doc, nil
}

// fetch downloads and parses a detail page outside the browser.
func fetch(ctx context.Context, client *resty.Client, target string) (*goquery.Document, error) {
	resp, err := client.R().SetContext(ctx).Get(target)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", shared.ErrAPIRequest, target, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: %s returned %s", shared.ErrAPIRequest, target, resp.Status())
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(resp.String()))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", shared.ErrLibraryPageNotValid, target, err)
	}
	return doc, nil
}

// resolve makes ref absolute against base, returning ref unchanged when either fails to parse.
func resolve(base, ref string) string {
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}
