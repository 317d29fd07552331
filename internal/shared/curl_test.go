package shared

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestParseCurlCommand(t *testing.T) {
	tt := []struct {
		name        string
		curlCmd     string
		wantHeaders map[string]string
		wantCookie  string
		wantErr     bool
	}{
		{
			name:        "single header with single quotes",
			curlCmd:     `curl -H 'X-Requested-With: XMLHttpRequest' https://lubimyczytac.pl`,
			wantHeaders: map[string]string{"X-Requested-With": "XMLHttpRequest"},
		},
		{
			name:        "single header with double quotes",
			curlCmd:     `curl -H "X-Requested-With: XMLHttpRequest" https://lubimyczytac.pl`,
			wantHeaders: map[string]string{"X-Requested-With": "XMLHttpRequest"},
		},
		{
			name:        "cookie in -b flag",
			curlCmd:     `curl -b 'PHPSESSID=abc123' https://lubimyczytac.pl`,
			wantHeaders: map[string]string{},
			wantCookie:  "PHPSESSID=abc123",
		},
		{
			name:        "cookie header is excluded from regular headers",
			curlCmd:     `curl -H 'Cookie: PHPSESSID=abc123' -H 'Accept: text/html' https://lubimyczytac.pl`,
			wantHeaders: map[string]string{"Accept": "text/html"},
			wantCookie:  "PHPSESSID=abc123",
		},
		{
			name:        "-b cookie takes precedence over -H cookie",
			curlCmd:     `curl -H 'Cookie: old=value' -b 'new=value' https://lubimyczytac.pl`,
			wantHeaders: map[string]string{},
			wantCookie:  "new=value",
		},
		{
			name:        "request specific headers are dropped",
			curlCmd:     `curl -H 'Host: lubimyczytac.pl' -H 'Content-Length: 12' -H 'Accept: */*' https://lubimyczytac.pl`,
			wantHeaders: map[string]string{"Accept": "*/*"},
		},
		{
			name: "multiline curl with backslashes",
			curlCmd: `curl 'https://lubimyczytac.pl/profil' \
  -H 'accept-language: pl-PL,pl;q=0.9' \
  -H 'user-agent: Mozilla/5.0' \
  -b 'PHPSESSID=xyz; remember=1'`,
			wantHeaders: map[string]string{
				"accept-language": "pl-PL,pl;q=0.9",
				"user-agent":      "Mozilla/5.0",
			},
			wantCookie: "PHPSESSID=xyz; remember=1",
		},
		{
			name:    "no headers or cookies",
			curlCmd: `curl https://lubimyczytac.pl`,
			wantErr: true,
		},
		{
			name:    "empty command",
			curlCmd: "",
			wantErr: true,
		},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseCurlCommand([]byte(tc.curlCmd))
			if tc.wantErr {
				if !errors.Is(err, ErrInvalidInput) {
					t.Fatalf("expected ErrInvalidInput, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if len(got.Headers) != len(tc.wantHeaders) {
				t.Errorf("expected %d headers, got %d: %v", len(tc.wantHeaders), len(got.Headers), got.Headers)
			}
			for k, v := range tc.wantHeaders {
				if got.Headers[k] != v {
					t.Errorf("header %q = %q, want %q", k, got.Headers[k], v)
				}
			}
			if got.Cookie != tc.wantCookie {
				t.Errorf("cookie = %q, want %q", got.Cookie, tc.wantCookie)
			}
		})
	}
}

func TestParseCurlFile(t *testing.T) {
	t.Run("reads command from file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "curl.sh")
		if err := os.WriteFile(path, []byte(`curl -H 'Accept: text/html' https://lubimyczytac.pl`), 0644); err != nil {
			t.Fatalf("failed to write file: %v", err)
		}

		got, err := ParseCurlFile(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.Headers["Accept"] != "text/html" {
			t.Errorf("unexpected headers: %v", got.Headers)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if _, err := ParseCurlFile(filepath.Join(t.TempDir(), "nope.sh")); err == nil {
			t.Error("expected error for missing file")
		}
	})
}

func TestCurlHeaders(t *testing.T) {
	headers := &CurlHeaders{
		Headers: map[string]string{"Accept-Language": "pl-PL"},
		Cookie:  "PHPSESSID=abc",
	}

	t.Run("Save and Load", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "headers.json")
		if err := headers.Save(path); err != nil {
			t.Fatalf("failed to save: %v", err)
		}

		loaded, err := LoadCurlHeaders(path)
		if err != nil {
			t.Fatalf("failed to load: %v", err)
		}
		if loaded.Cookie != headers.Cookie || loaded.Headers["Accept-Language"] != "pl-PL" {
			t.Errorf("unexpected headers after round trip: %+v", loaded)
		}
	})

	t.Run("Load missing file", func(t *testing.T) {
		loaded, err := LoadCurlHeaders(filepath.Join(t.TempDir(), "missing.json"))
		if err != nil || loaded != nil {
			t.Errorf("expected nil, nil for missing file, got %v, %v", loaded, err)
		}
	})

	t.Run("Apply", func(t *testing.T) {
		var gotCookie, gotLang string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotCookie = r.Header.Get("Cookie")
			gotLang = r.Header.Get("Accept-Language")
		}))
		defer srv.Close()

		client := NewHTTPClient(HTTPOptions{BaseURL: srv.URL, Transport: http.DefaultTransport})
		headers.Apply(client)

		if _, err := client.R().Get("/"); err != nil {
			t.Fatalf("request failed: %v", err)
		}
		if gotCookie != "PHPSESSID=abc" {
			t.Errorf("expected cookie to be sent, got %q", gotCookie)
		}
		if gotLang != "pl-PL" {
			t.Errorf("expected Accept-Language to be sent, got %q", gotLang)
		}
	})
}
