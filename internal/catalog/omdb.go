package catalog

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/eliseohh/moviebot/internal/config"
	"github.com/eliseohh/moviebot/internal/movie"
	"github.com/eliseohh/moviebot/internal/request"
	"github.com/eliseohh/moviebot/internal/ttlcache"
)

const (
	omdbFoundTTL    = 24 * time.Hour
	omdbNotFoundTTL = 10 * time.Minute
	omdbErrorTTL    = time.Minute
)

type OMDB struct {
	APIKey     string
	BaseURL    string
	MaxRetries int
	HTTPClient *http.Client

	// nil values cache misses and errors.
	cache *ttlcache.Cache[string, *Details]
}

func NewOMDB(cfg config.MetadataConfig, httpc *http.Client) *OMDB {
	return &OMDB{
		APIKey:     cfg.OMDBKey,
		BaseURL:    cfg.OMDBBaseURL,
		MaxRetries: max(cfg.MaxRetries, 1),
		HTTPClient: httpc,
		cache:      ttlcache.New[string, *Details](omdbFoundTTL, 1024),
	}
}

func (o *OMDB) Enabled() bool { return o != nil && o.APIKey != "" }

type omdbResponse struct {
	Response   string `json:"Response"`
	Title      string `json:"Title"`
	Year       string `json:"Year"`
	Genre      string `json:"Genre"`
	Type       string `json:"Type"`
	IMDbRating string `json:"imdbRating"`
	Plot       string `json:"Plot"`
	Poster     string `json:"Poster"`
}

func (r omdbResponse) found() bool { return strings.EqualFold(r.Response, "true") }

func (o *OMDB) fetch(ctx context.Context, title string, year int) (omdbResponse, error) {
	q := url.Values{"apikey": {o.APIKey}, "t": {title}}
	if year > 0 {
		q.Set("y", strconv.Itoa(year))
	}
	return request.JSON[omdbResponse](ctx, request.Params{
		URL:        o.BaseURL,
		Query:      q,
		HTTPClient: o.HTTPClient,
		MaxRetries: o.MaxRetries,
		Source:     "omdb",
		Scrubber:   strings.NewReplacer(o.APIKey, "[OMDB_KEY]"),
	})
}

// Lookup returns nil when OMDB is disabled, has no match or fails. A miss
// with a year is retried once without it.
func (o *OMDB) Lookup(ctx context.Context, title string, year int) *Details {
	if !o.Enabled() {
		return nil
	}
	key := movie.NormalizeTitle(title) + "::"
	if year > 0 {
		key += strconv.Itoa(year)
	}
	if d, ok := o.cache.Get(key); ok {
		return d
	}

	res, err := o.fetch(ctx, title, year)
	if err != nil {
		o.cache.SetTTL(key, nil, omdbErrorTTL)
		return nil
	}
	if !res.found() && year > 0 {
		if res, err = o.fetch(ctx, title, 0); err != nil {
			res = omdbResponse{}
		}
	}
	if !res.found() {
		o.cache.SetTTL(key, nil, omdbNotFoundTTL)
		return nil
	}
	d := &Details{
		Title:      res.Title,
		Year:       res.Year,
		Genre:      res.Genre,
		Type:       res.Type,
		IMDbRating: res.IMDbRating,
		Plot:       res.Plot,
		Poster:     res.Poster,
	}
	o.cache.Set(key, d)
	return d
}
