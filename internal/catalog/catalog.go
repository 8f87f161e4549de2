// Package catalog looks up movie metadata in TMDB, OMDB and Kinopoisk and
// builds recommendation candidates from the household taste profile.
package catalog

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/eliseohh/moviebot/internal/config"
	"github.com/eliseohh/moviebot/internal/movie"
	"github.com/eliseohh/moviebot/internal/ttlcache"
)

const (
	candidatesTTL      = 20 * time.Minute
	candidatesMaxItems = 128
)

// Details is the merged metadata of one title.
type Details struct {
	Title      string
	Year       string
	Genre      string
	Type       string
	IMDbRating string
	Plot       string
	Poster     string
	TMDBRating string
}

func (d *Details) fields() []*string {
	return []*string{&d.Title, &d.Year, &d.Genre, &d.Type, &d.IMDbRating, &d.Plot, &d.Poster, &d.TMDBRating}
}

func (d Details) Empty() bool { return d == Details{} }

// YearValue returns the release year or 0.
func (d Details) YearValue() int { return movie.ParseYear(d.Year) }

// merge copies non-empty, non-"N/A" values of extra into d. Existing values
// are kept unless overwrite is set.
func (d *Details) merge(extra *Details, overwrite bool) {
	if extra == nil {
		return
	}
	dst, src := d.fields(), extra.fields()
	for i := range dst {
		v := strings.TrimSpace(*src[i])
		if !present(v) {
			continue
		}
		if overwrite || !present(strings.TrimSpace(*dst[i])) {
			*dst[i] = v
		}
	}
}

func present(v string) bool {
	return v != "" && !strings.EqualFold(v, "n/a")
}

// Candidate is a movie the household has not watched yet.
type Candidate struct {
	ID         int
	Title      string
	Year       int
	TMDBRating float64
	VoteCount  int
	Genres     []string
	Score      float64
	Reason     string
	IMDbRating float64
	Plot       string
	PosterURL  string
}

type Catalog struct {
	TMDB      *TMDB
	OMDB      *OMDB
	Kinopoisk *Kinopoisk

	logger     *slog.Logger
	candidates *ttlcache.Cache[string, []Candidate]
}

func New(cfg config.MetadataConfig, logger *slog.Logger) *Catalog {
	return NewWithClient(cfg, nil, logger)
}

// NewWithClient uses httpc for every provider; nil means request.DefaultClient.
func NewWithClient(cfg config.MetadataConfig, httpc *http.Client, logger *slog.Logger) *Catalog {
	if logger == nil {
		logger = slog.Default()
	}
	return &Catalog{
		TMDB:       NewTMDB(cfg, httpc),
		OMDB:       NewOMDB(cfg, httpc),
		Kinopoisk:  NewKinopoisk(cfg, httpc),
		logger:     logger,
		candidates: ttlcache.New[string, []Candidate](candidatesTTL, candidatesMaxItems),
	}
}

// Lookup merges TMDB details, then OMDB (overwriting), then Kinopoisk when
// plot, genre or poster are still missing. ok is false when nothing was found.
func (c *Catalog) Lookup(ctx context.Context, title string, year int) (Details, bool) {
	title = strings.TrimSpace(title)
	if title == "" {
		return Details{}, false
	}
	var d Details
	if td, err := c.TMDB.LookupDetails(ctx, title, year); err == nil {
		d.merge(td, false)
	} else if c.TMDB.Enabled() {
		c.logger.Debug("tmdb lookup failed", slog.String("title", title), slog.Any("error", err))
	}
	d.merge(c.OMDB.Lookup(ctx, title, year), true)
	if d.Plot == "" || d.Genre == "" || d.Poster == "" {
		if kd, err := c.Kinopoisk.Lookup(ctx, title, year); err == nil {
			d.merge(kd, false)
		}
	}
	return d, !d.Empty()
}

// parseRating accepts numbers or numeric strings; anything else is 0.
func parseRating(v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case string:
		return movie.ParseRating(x)
	case int:
		return float64(x)
	}
	return 0
}

func formatRating(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}
