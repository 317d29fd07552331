package libraries

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newsServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/news", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		switch {
		case r.URL.RawQuery == "":
			fmt.Fprint(w, `<html><body>
				<a title="Wypożyczalnia Główna" href="/news?f2[0]=9">Wypożyczalnia Główna</a>
				<a title="Książka" href="/news?f4[0]=1">Książka</a>
				<a title="polski" href="/news?f8[0]=pol">polski</a>
				<a href="/news?rp=50">50</a>
				<a href="/news?rp=100">100</a>
			</body></html>`)
		case q.Get("ps") == "":
			assert.Equal(t, "9", q.Get("f2[0]"))
			assert.Equal(t, "100", q.Get("rp"))
			fmt.Fprint(w, `<html><body>
				<a href="/news?f2[0]=9&f4[0]=1&f8[0]=pol&rp=100&ps=101">Następna</a>
				<a href="/news?f2[0]=9&f4[0]=1&f8[0]=pol&rp=100&ps=201">Ostatnia</a>
			</body></html>`)
		default:
			ps := q.Get("ps")
			fmt.Fprintf(w, `<html><body><div class="description-list-section">
				<dl><dt>Tytuł</dt><dd><a href="/book/%s-a">A</a></dd></dl>
				<dl><dt>Tytuł</dt><dd><a href="/book/%s-b">B</a></dd></dl>
			</div></body></html>`, ps, ps)
		}
	})
	mux.HandleFunc("/book/isbn", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><dl>
			<dt>Autor</dt><dd>Stanisław Lem</dd>
			<dt>ISBN</dt><dd><span>978-83-08-04938-6</span><br/><span>83-08-04938-1</span></dd>
		</dl></body></html>`)
	})
	mux.HandleFunc("/book/inline", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><dl>
			<dt>ISBN</dt><dd>978-83-08-04938-6 / 83-08-04938-1</dd>
		</dl></body></html>`)
	})
	mux.HandleFunc("/book/plain", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><dl><dt>Autor</dt><dd>Anonim</dd></dl></body></html>`)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestSite5004News(t *testing.T) {
	ctx := context.Background()
	server := newsServer(t)

	site := new5004(t, server.URL).(*Site5004)
	site.cfg.NewsURLTemplate = server.URL + "/news?{0}&{1}&{2}&{3}{4}"

	t.Run("NewBookURLs", func(t *testing.T) {
		urls, err := site.NewBookURLs(ctx)
		require.NoError(t, err)
		sort.Strings(urls)
		require.Equal(t, []string{
			server.URL + "/book/1-a", server.URL + "/book/1-b",
			server.URL + "/book/101-a", server.URL + "/book/101-b",
			server.URL + "/book/201-a", server.URL + "/book/201-b",
		}, urls)
	})

	t.Run("ISBNs", func(t *testing.T) {
		isbns, err := site.ISBNs(ctx, server.URL+"/book/isbn")
		require.NoError(t, err)
		require.Equal(t, []string{"9788308049386", "8308049381"}, isbns)

		isbns, err = site.ISBNs(ctx, server.URL+"/book/inline")
		require.NoError(t, err)
		require.Equal(t, []string{"9788308049386", "8308049381"}, isbns)

		isbns, err = site.ISBNs(ctx, server.URL+"/book/plain")
		require.NoError(t, err)
		require.Empty(t, isbns)
	})

	t.Run("Without Template", func(t *testing.T) {
		bare := new5004(t, server.URL).(*Site5004)
		bare.cfg.NewsURLTemplate = ""
		_, err := bare.NewBookURLs(ctx)
		require.Error(t, err)
	})
}

func TestNewsPagesAreReadBeforeReturning(t *testing.T) {
	ctx := context.Background()
	server := newsServer(t)

	site := new5004(t, server.URL).(*Site5004)
	site.cfg.NewsURLTemplate = server.URL + "/news?{0}&{1}&{2}&{3}{4}"

	for range 3 {
		params := site.newsParams(ctx)
		require.Equal(t, "f2[0]=9", params.agenda)
		require.Equal(t, "rp=100", params.pagination)

		pagers, err := site.newsPagers(ctx, params)
		require.NoError(t, err)
		require.Equal(t, []string{"&ps=1", "&ps=101", "&ps=201"}, pagers)
	}
}

func TestNewsParamsDefaults(t *testing.T) {
	site := new5004(t, "http://127.0.0.1:1").(*Site5004)
	site.cfg.NewsURLTemplate = "http://127.0.0.1:1/news?{0}&{1}&{2}&{3}{4}"

	params := site.newsParams(context.Background())
	require.Equal(t, defaultNewsParams, params)
	require.Equal(t, "http://127.0.0.1:1/news?f2[0]=7&f4[0]=1&f8[0]=pol&rp=100&ps=1", site.newsURL(params, "&ps=1"))
}
