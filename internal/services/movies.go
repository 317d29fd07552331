package services

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/antzucaro/matchr"
	"github.com/charmbracelet/log"
	"github.com/go-resty/resty/v2"
	"github.com/titanous/json5"

	"github.com/desertthunder/shelfx/internal/models"
	"github.com/desertthunder/shelfx/internal/shared"
)

var (
	closerRe  = regexp.MustCompile(`[)\]}].*$`)
	openerRe  = regexp.MustCompile(`[(\[{]`)
	spaceRe   = regexp.MustCompile(`[._]`)
	yearRe    = regexp.MustCompile(`\d{4}`)
	floatRe   = regexp.MustCompile(`\d+\.\d+`)
	slashRe   = regexp.MustCompile(`\d+/\d+`)
	percentRe = regexp.MustCompile(`\d+%`)
)

// MovieCandidate is one search result considered by [MatchTitleAndYear].
type MovieCandidate struct {
	Title      string `json:"title"`
	Year       int    `json:"year,omitempty"`
	Href       string `json:"href,omitempty"`
	MeterScore string `json:"meter_score,omitempty"`
}

// IMDBInfo holds the values read from an IMDB title page.
type IMDBInfo struct {
	Rating      string `json:"rating"`
	Metacritic  string `json:"metacritic"`
	Length      string `json:"length"`
	Genre       string `json:"genre"`
	Description string `json:"description"`
}

// MovieService rates movies by directory name using IMDB and Rotten Tomatoes.
type MovieService struct {
	client    *resty.Client
	config    shared.MoviesConfig
	version   []*regexp.Regexp
	release   []*regexp.Regexp
	threshold float64
	memo      *Memo
	logger    *log.Logger
}

// NewMovieService compiles the configured version and release patterns.
func NewMovieService(client *resty.Client, config shared.MoviesConfig, memo *Memo, logger *log.Logger) (*MovieService, error) {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	version, err := compilePatterns(config.VersionPatterns, true)
	if err != nil {
		return nil, err
	}
	release, err := compilePatterns(config.ReleasePatterns, false)
	if err != nil {
		return nil, err
	}
	threshold := config.MatchThreshold
	if threshold <= 0 {
		threshold = 0.9
	}
	return &MovieService{
		client:    client,
		config:    config,
		version:   version,
		release:   release,
		threshold: threshold,
		memo:      memo,
		logger:    shared.WithLogger(logger, "service", "movies"),
	}, nil
}

func compilePatterns(patterns []string, ignoreCase bool) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		if ignoreCase && !strings.HasPrefix(p, "(?i)") {
			p = "(?i)" + p
		}
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("%w: pattern %q: %v", shared.ErrInvalidConfig, p, err)
		}
		out = append(out, re)
	}
	return out, nil
}

// Tokens extracts the title and year from a release directory name,
// e.g. "The.Thing.1982.1080p.BluRay.x264" becomes {The Thing, 1982}.
func (s *MovieService) Tokens(dirname string) models.MovieQuery {
	title := closerRe.ReplaceAllString(dirname, "")
	title = openerRe.ReplaceAllString(title, "")
	for _, re := range s.version {
		title = re.ReplaceAllString(title, "")
	}
	for _, re := range s.release {
		title = re.ReplaceAllString(title, "")
	}
	title = spaceRe.ReplaceAllString(title, " ")

	var q models.MovieQuery
	if y := yearRe.FindString(title); y != "" {
		q.Year, _ = strconv.Atoi(y)
	}
	title = yearRe.ReplaceAllString(title, "")
	q.Title = shared.CollapseSpace(title)
	return q
}

// NormalizeRating converts a rating to a 0-100 integer string.
//
// "N/A" yields "". Decimals are scaled from base 10, or base 5 when written as "x.y/5".
// "n/m" yields n and "n%" yields n.
func NormalizeRating(rating string) string {
	r := strings.TrimSpace(rating)
	if r == "" || strings.HasPrefix(r, "N/A") {
		return ""
	}

	if floatRe.MatchString(r) {
		value, base := r, 10
		if slashRe.MatchString(r) {
			var b string
			value, b, _ = strings.Cut(r, "/")
			if n, err := strconv.Atoi(strings.TrimSpace(b)); err == nil {
				base = n
			}
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return ""
		}
		switch base {
		case 5:
			v *= 20
		case 10:
			v *= 10
		}
		return strconv.Itoa(int(v))
	}

	value := r
	switch {
	case slashRe.MatchString(r):
		value, _, _ = strings.Cut(r, "/")
	case percentRe.MatchString(r):
		value = strings.ReplaceAll(r, "%", "")
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return ""
	}
	return strconv.Itoa(n)
}

// MatchTitleAndYear picks the candidate for title and year.
//
// A title scoring at least threshold with the same year (or any year when year is 0) wins outright.
// Otherwise the best scoring title within one year of the query is returned.
func MatchTitleAndYear(title string, year int, candidates []MovieCandidate, threshold float64) (MovieCandidate, bool) {
	want := strings.ToLower(title)
	var (
		maybe     MovieCandidate
		bestRatio float64
		found     bool
	)
	for _, c := range candidates {
		ratio := matchr.JaroWinkler(strings.ToLower(c.Title), want, false)
		if ratio < threshold {
			continue
		}
		if year == 0 || c.Year == year {
			return c, true
		}
		if c.Year >= year-1 && c.Year <= year+1 && ratio > bestRatio {
			maybe, bestRatio, found = c, ratio, true
		}
	}
	return maybe, found
}

// Rate returns the ratings of a movie. Lookups that fail leave their columns empty.
func (s *MovieService) Rate(ctx context.Context, q models.MovieQuery) models.MovieInfo {
	info := models.MovieInfo{Title: q.Title, Year: q.Year}

	tomato, err := s.RottenTomatoes(ctx, q)
	if err != nil {
		s.logger.Warn("Rotten Tomatoes lookup failed", "title", q.Title, "error", err)
	}
	info.Tomato = tomato

	imdb, err := s.IMDB(ctx, q)
	if err != nil {
		s.logger.Warn("IMDB lookup failed", "title", q.Title, "error", err)
	}
	info.IMDB = imdb.Rating
	info.Metacritic = imdb.Metacritic
	info.Length = imdb.Length
	info.Genre = imdb.Genre
	info.Description = imdb.Description
	return info
}

// IMDB reads the rating, Metacritic score, length, genres and summary of the matching title.
// Results are memoized for a month.
func (s *MovieService) IMDB(ctx context.Context, q models.MovieQuery) (IMDBInfo, error) {
	return Memoize(ctx, s.memo, "movies.imdb_info", Month, func(ctx context.Context) (IMDBInfo, error) {
		return s.imdb(ctx, q)
	}, q.Title, q.Year)
}

func (s *MovieService) imdb(ctx context.Context, q models.MovieQuery) (IMDBInfo, error) {
	base := strings.TrimSuffix(s.config.IMDBURL, "/")
	results, err := fetchDocument(ctx, s.client, base+"/find", map[string]string{"q": q.Title})
	if err != nil {
		return IMDBInfo{}, err
	}
	if results.Find("div.findNoResults").Length() > 0 {
		return IMDBInfo{}, nil
	}

	match, ok := MatchTitleAndYear(q.Title, q.Year, imdbCandidates(results), s.threshold)
	if !ok || match.Href == "" {
		return IMDBInfo{}, nil
	}

	page, err := fetchDocument(ctx, s.client, resolveURL(base+"/", match.Href), nil)
	if err != nil {
		return IMDBInfo{}, err
	}
	return parseIMDBTitle(page), nil
}

func imdbCandidates(doc *goquery.Document) []MovieCandidate {
	var out []MovieCandidate
	doc.Find("table.findList td.result_text").Each(func(_ int, td *goquery.Selection) {
		a := td.Find("a").First()
		c := MovieCandidate{Href: a.AttrOr("href", "")}
		if i := td.Find("i").First(); i.Length() > 0 {
			c.Title = strings.TrimSpace(i.Text())
		} else {
			c.Title = strings.TrimSpace(a.Text())
		}
		if a.Length() > 0 && a.Nodes[0].NextSibling != nil {
			after := goquery.NewDocumentFromNode(a.Nodes[0].NextSibling).Text()
			if y := yearRe.FindString(after); y != "" {
				c.Year, _ = strconv.Atoi(y)
			}
		}
		out = append(out, c)
	})
	return out
}

func parseIMDBTitle(doc *goquery.Document) IMDBInfo {
	var info IMDBInfo
	overview := doc.Find("div#title-overview-widget")
	if overview.Length() == 0 {
		return info
	}

	if bar := overview.Find("div.title_bar_wrapper"); bar.Length() > 0 {
		if r := bar.Find(`span[itemprop="ratingValue"]`).First(); r.Length() > 0 {
			info.Rating = NormalizeRating(r.Text())
		}
		if d := bar.Find(`time[itemprop="duration"]`).First(); d.Length() > 0 {
			info.Length = strings.TrimSpace(strings.ReplaceAll(d.Text(), "min", ""))
		}
		var genres []string
		bar.Find(`span[itemprop="genre"]`).Each(func(_ int, g *goquery.Selection) {
			genres = append(genres, strings.TrimSpace(g.Text()))
		})
		info.Genre = strings.Join(genres, ", ")
	}

	if summary := overview.Find("div.plot_summary_wrapper"); summary.Length() > 0 {
		if m := summary.Find(`div[class*="metacriticScore"] span`).First(); m.Length() > 0 {
			info.Metacritic = NormalizeRating(m.Text())
		}
		info.Description = strings.TrimSpace(summary.Find("div.summary_text").First().Text())
	}
	return info
}

// RottenTomatoes returns the Tomatometer score of the matching movie, or "".
// Results are memoized for a month.
func (s *MovieService) RottenTomatoes(ctx context.Context, q models.MovieQuery) (string, error) {
	return Memoize(ctx, s.memo, "movies.rottentomatoes_info", Month, func(ctx context.Context) (string, error) {
		return s.rottenTomatoes(ctx, q)
	}, q.Title, q.Year)
}

func (s *MovieService) rottenTomatoes(ctx context.Context, q models.MovieQuery) (string, error) {
	base := strings.TrimSuffix(s.config.RottenURL, "/")
	doc, err := fetchDocument(ctx, s.client, base+"/search/", map[string]string{"search": q.Title})
	if err != nil {
		return "", err
	}

	candidates, err := rottenCandidates(doc, q.Title)
	if err != nil {
		return "", err
	}
	match, ok := MatchTitleAndYear(q.Title, q.Year, candidates, s.threshold)
	if !ok {
		return "", nil
	}
	return match.MeterScore, nil
}

// rottenCandidates decodes the search object the results page passes to its loader script:
// loader('<title>', {...});
func rottenCandidates(doc *goquery.Document, title string) ([]MovieCandidate, error) {
	script := doc.Find("div#main_container script").First().Text()
	re := regexp.MustCompile(`(?s)'` + regexp.QuoteMeta(title) + `',\s(\{.*\})\);`)
	m := re.FindStringSubmatch(script)
	if m == nil {
		return nil, nil
	}

	var payload struct {
		Movies []struct {
			Name       string `json:"name"`
			Year       any    `json:"year"`
			MeterScore any    `json:"meterScore"`
		} `json:"movies"`
	}
	if err := json5.Unmarshal([]byte(m[1]), &payload); err != nil {
		return nil, fmt.Errorf("%w: rotten tomatoes search object: %v", shared.ErrPageNotValid, err)
	}

	out := make([]MovieCandidate, 0, len(payload.Movies))
	for _, mv := range payload.Movies {
		out = append(out, MovieCandidate{
			Title:      mv.Name,
			Year:       anyInt(mv.Year),
			MeterScore: anyString(mv.MeterScore),
		})
	}
	return out, nil
}

func anyInt(v any) int {
	switch t := v.(type) {
	case float64:
		return int(t)
	case string:
		n, _ := strconv.Atoi(strings.TrimSpace(t))
		return n
	}
	return 0
}

func anyString(v any) string {
	switch t := v.(type) {
	case float64:
		return strconv.Itoa(int(t))
	case string:
		return t
	}
	return ""
}
