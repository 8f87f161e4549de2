package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/eliseohh/moviebot/internal/config"
	"github.com/eliseohh/moviebot/internal/monitor"
	"github.com/eliseohh/moviebot/internal/movie"
	"github.com/eliseohh/moviebot/internal/request"
	"github.com/eliseohh/moviebot/internal/ttlcache"
)

const (
	tmdbPosterBase = "https://image.tmdb.org/t/p/w500"
	tmdbGenreTTL   = 30 * time.Minute
	tmdbCooldown   = 10 * time.Minute
)

var DefaultTMDBHosts = []string{"https://api.themoviedb.org/3", "https://api.tmdb.org/3"}

var (
	ErrTMDBDisabled    = errors.New("TMDB_API_KEY is not configured")
	ErrTMDBUnavailable = errors.New("TMDB is temporarily unavailable")
)

type TMDB struct {
	APIKey     string
	Language   string
	Region     string
	Hosts      []string
	MaxRetries int
	HTTPClient *http.Client

	genres *ttlcache.Cache[string, map[int]string]
	now    func() time.Time

	mu               sync.Mutex
	unavailableUntil time.Time
}

func NewTMDB(cfg config.MetadataConfig, httpc *http.Client) *TMDB {
	return &TMDB{
		APIKey:     cfg.TMDBKey,
		Language:   cfg.TMDBLanguage,
		Region:     cfg.TMDBRegion,
		Hosts:      DefaultTMDBHosts,
		MaxRetries: max(cfg.MaxRetries, 1),
		HTTPClient: httpc,
		genres:     ttlcache.New[string, map[int]string](tmdbGenreTTL, 1),
		now:        time.Now,
	}
}

func (t *TMDB) Enabled() bool { return t != nil && t.APIKey != "" }

type tmdbItem struct {
	ID          int     `json:"id"`
	Title       string  `json:"title"`
	Name        string  `json:"name"`
	ReleaseDate string  `json:"release_date"`
	VoteAverage float64 `json:"vote_average"`
	VoteCount   int     `json:"vote_count"`
	GenreIDs    []int   `json:"genre_ids"`
	PosterPath  string  `json:"poster_path"`
	Overview    string  `json:"overview"`
	Genres      []struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	} `json:"genres"`
}

func (it tmdbItem) title() string {
	if s := strings.TrimSpace(it.Title); s != "" {
		return s
	}
	return strings.TrimSpace(it.Name)
}

func (it tmdbItem) year() int { return movie.ParseYear(it.ReleaseDate) }

func (it tmdbItem) posterURL() string {
	p := strings.TrimSpace(it.PosterPath)
	if p == "" {
		return ""
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return tmdbPosterBase + p
}

type tmdbPage struct {
	Results []tmdbItem `json:"results"`
}

type tmdbGenres struct {
	Genres []struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	} `json:"genres"`
}

// tmdbGet tries each host in turn. When all fail, TMDB is skipped for ten
// minutes.
func tmdbGet[T any](ctx context.Context, t *TMDB, path string, q url.Values) (T, error) {
	var zero T
	if !t.Enabled() {
		return zero, ErrTMDBDisabled
	}
	t.mu.Lock()
	cooling := t.now().Before(t.unavailableUntil)
	t.mu.Unlock()
	if cooling {
		return zero, ErrTMDBUnavailable
	}

	query := url.Values{
		"api_key":  {t.APIKey},
		"language": {t.Language},
		"region":   {t.Region},
	}
	for k, v := range q {
		query[k] = v
	}

	var lastErr error
	for _, host := range t.Hosts {
		res, err := request.JSON[T](ctx, request.Params{
			URL:        strings.TrimRight(host, "/") + path,
			Query:      query,
			HTTPClient: t.HTTPClient,
			MaxRetries: t.MaxRetries,
			Source:     "tmdb",
			Scrubber:   strings.NewReplacer(t.APIKey, "[TMDB_KEY]"),
		})
		if err == nil {
			return res, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return zero, err
		}
	}

	t.mu.Lock()
	t.unavailableUntil = t.now().Add(tmdbCooldown)
	t.mu.Unlock()
	if lastErr == nil {
		lastErr = ErrTMDBUnavailable
	}
	monitor.Record("tmdb", lastErr)
	return zero, lastErr
}

// GenreMap returns TMDB movie genre names by id, cached for 30 minutes.
func (t *TMDB) GenreMap(ctx context.Context) (map[int]string, error) {
	if m, ok := t.genres.Get(""); ok {
		return m, nil
	}
	res, err := tmdbGet[tmdbGenres](ctx, t, "/genre/movie/list", nil)
	if err != nil {
		return nil, err
	}
	m := make(map[int]string, len(res.Genres))
	for _, g := range res.Genres {
		m[g.ID] = g.Name
	}
	t.genres.Set("", m)
	return m, nil
}

func (t *TMDB) search(ctx context.Context, title string, year int) ([]tmdbItem, error) {
	q := url.Values{"query": {title}, "include_adult": {"false"}, "page": {"1"}}
	if year > 0 {
		q.Set("year", strconv.Itoa(year))
	}
	res, err := tmdbGet[tmdbPage](ctx, t, "/search/movie", q)
	return res.Results, err
}

func (t *TMDB) recommendations(ctx context.Context, id int) ([]tmdbItem, error) {
	q := url.Values{"include_adult": {"false"}, "page": {"1"}}
	res, err := tmdbGet[tmdbPage](ctx, t, fmt.Sprintf("/movie/%d/recommendations", id), q)
	return res.Results, err
}

func (t *TMDB) discover(ctx context.Context, genreIDs []int) ([]tmdbItem, error) {
	q := url.Values{
		"include_adult":  {"false"},
		"sort_by":        {"vote_average.desc"},
		"vote_count.gte": {"700"},
		"page":           {"1"},
	}
	if len(genreIDs) > 0 {
		ids := make([]string, len(genreIDs))
		for i, id := range genreIDs {
			ids[i] = strconv.Itoa(id)
		}
		q.Set("with_genres", strings.Join(ids, ","))
	}
	res, err := tmdbGet[tmdbPage](ctx, t, "/discover/movie", q)
	return res.Results, err
}

// LookupDetails searches title and fetches full details of the best match.
func (t *TMDB) LookupDetails(ctx context.Context, title string, year int) (*Details, error) {
	results, err := t.search(ctx, title, year)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
	}
	best, ok := pickBestSeed(results, title, year)
	if !ok {
		best = results[0]
	}
	details := best
	if best.ID > 0 {
		if full, err := tmdbGet[tmdbItem](ctx, t, fmt.Sprintf("/movie/%d", best.ID), nil); err == nil {
			details = full
		}
	}
	var genres []string
	for _, g := range details.Genres {
		if n := strings.TrimSpace(g.Name); n != "" {
			genres = append(genres, n)
		}
	}
	d := &Details{
		Title:      details.title(),
		Genre:      strings.Join(genres, ", "),
		Type:       "movie",
		Plot:       strings.TrimSpace(details.Overview),
		Poster:     details.posterURL(),
		TMDBRating: formatRating(details.VoteAverage),
	}
	if y := details.year(); y > 0 {
		d.Year = strconv.Itoa(y)
	}
	return d, nil
}

// Probe is used by /diag.
func (t *TMDB) Probe(ctx context.Context) (string, error) {
	if !t.Enabled() {
		return "disabled", nil
	}
	m, err := t.GenreMap(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("ok (genres=%d)", len(m)), nil
}

// seedMatchScore rates how well a search hit matches the title we looked for.
func seedMatchScore(it tmdbItem, seedNorm string, seedYear int) float64 {
	norm := movie.NormalizeTitle(it.title())
	if norm == "" {
		return -1
	}
	score := titleScore(norm, seedNorm, 3.0)
	if seedYear > 0 {
		if y := it.year(); y > 0 {
			switch diff := absInt(y - seedYear); {
			case diff == 0:
				score += 2.0
			case diff <= 1:
				score += 1.4
			case diff <= 3:
				score += 0.6
			default:
				score -= 0.8
			}
		}
	}
	score += min(it.VoteAverage, 10.0) / 20.0
	score += min(float64(it.VoteCount)/20000.0, 0.5)
	return score
}

// titleScore is 6 for an exact match, partial for containment and up to 2
// for token overlap.
func titleScore(norm, want string, partial float64) float64 {
	switch {
	case norm == want:
		return 6.0
	case want != "" && (strings.Contains(norm, want) || strings.Contains(want, norm)):
		return partial
	}
	a, b := strings.Fields(want), strings.Fields(norm)
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[string]bool, len(b))
	for _, tok := range b {
		set[tok] = true
	}
	seen := make(map[string]bool)
	overlap := 0
	for _, tok := range a {
		if set[tok] && !seen[tok] {
			overlap++
		}
		seen[tok] = true
	}
	return float64(overlap) / float64(len(seen)) * 2.0
}

func pickBestSeed(results []tmdbItem, title string, year int) (tmdbItem, bool) {
	seedNorm := movie.NormalizeTitle(title)
	if seedNorm == "" {
		return tmdbItem{}, false
	}
	var best tmdbItem
	bestScore := -1.0
	for i, it := range results {
		if i >= 8 {
			break
		}
		if s := seedMatchScore(it, seedNorm, year); s > bestScore {
			bestScore = s
			best = it
		}
	}
	if bestScore < 1.5 {
		return tmdbItem{}, false
	}
	return best, true
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
