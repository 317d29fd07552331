package services

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"

	"github.com/desertthunder/shelfx/internal/shared"
)

// fetchDocument issues a GET and parses the body as HTML.
func fetchDocument(ctx context.Context, client *resty.Client, target string, query map[string]string) (*goquery.Document, error) {
	resp, err := client.R().
		SetContext(ctx).
		SetQueryParams(query).
		Get(target)
	if err != nil {
		return nil, fmt.Errorf("%w: GET %s: %v", shared.ErrAPIRequest, target, err)
	}
	if err := checkResponse(resp); err != nil {
		return nil, err
	}
	return parseHTML(resp.Body())
}

// parseHTML wraps goquery parsing errors in [shared.ErrPageNotValid].
func parseHTML(body []byte) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrPageNotValid, err)
	}
	return doc, nil
}

// checkResponse maps non-2xx responses to [shared.ErrAPIRequest].
func checkResponse(resp *resty.Response) error {
	if resp.IsError() {
		return fmt.Errorf("%w: %s %s returned status %d", shared.ErrAPIRequest, resp.Request.Method, resp.Request.URL, resp.StatusCode())
	}
	return nil
}

// resolveURL returns ref resolved against base. Invalid input is returned unchanged.
func resolveURL(base, ref string) string {
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	r, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}

// definition returns the text of the <dd> following the <dt> whose text contains label.
func definition(sel *goquery.Selection, label string) string {
	var value string
	sel.Find("dt").EachWithBreak(func(_ int, dt *goquery.Selection) bool {
		if !strings.Contains(dt.Text(), label) {
			return true
		}
		value = strings.TrimSpace(dt.NextFiltered("dd").Text())
		return false
	})
	return value
}
