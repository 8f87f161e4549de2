package catalog

import (
	"context"
	"fmt"
	"hash/fnv"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/eliseohh/moviebot/internal/config"
	"github.com/eliseohh/moviebot/internal/movie"
	"github.com/eliseohh/moviebot/internal/request"
)

type Kinopoisk struct {
	APIKey     string
	BaseURL    string
	MaxRetries int
	HTTPClient *http.Client
}

func NewKinopoisk(cfg config.MetadataConfig, httpc *http.Client) *Kinopoisk {
	return &Kinopoisk{
		APIKey:     cfg.KinopoiskKey,
		BaseURL:    cfg.KinopoiskBaseURL,
		MaxRetries: max(cfg.MaxRetries, 1),
		HTTPClient: httpc,
	}
}

func (k *Kinopoisk) Enabled() bool { return k != nil && k.APIKey != "" }

type kpName struct {
	Name string `json:"name"`
}

type kpDoc struct {
	ID               int      `json:"id"`
	Name             string   `json:"name"`
	AlternativeName  string   `json:"alternativeName"`
	EnName           string   `json:"enName"`
	Type             string   `json:"type"`
	Year             int      `json:"year"`
	Description      string   `json:"description"`
	ShortDescription string   `json:"shortDescription"`
	Genres           []kpName `json:"genres"`
	Poster           *struct {
		URL        string `json:"url"`
		PreviewURL string `json:"previewUrl"`
	} `json:"poster"`
	Rating *struct {
		KP   float64 `json:"kp"`
		IMDb float64 `json:"imdb"`
	} `json:"rating"`
	Votes *struct {
		KP float64 `json:"kp"`
	} `json:"votes"`
}

func (d kpDoc) title() string {
	for _, s := range []string{d.Name, d.AlternativeName, d.EnName} {
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}

func (d kpDoc) genres() []string {
	var out []string
	for _, g := range d.Genres {
		if n := strings.TrimSpace(g.Name); n != "" {
			out = append(out, n)
		}
	}
	return out
}

func (d kpDoc) posterURL() string {
	if d.Poster == nil {
		return ""
	}
	if u := strings.TrimSpace(d.Poster.URL); u != "" {
		return u
	}
	return strings.TrimSpace(d.Poster.PreviewURL)
}

func (d kpDoc) ratings() (kp, imdb float64) {
	if d.Rating == nil {
		return 0, 0
	}
	return d.Rating.KP, d.Rating.IMDb
}

type kpSearch struct {
	Docs []kpDoc `json:"docs"`
}

func (k *Kinopoisk) search(ctx context.Context, query string, limit int) ([]kpDoc, error) {
	if !k.Enabled() {
		return nil, fmt.Errorf("KINOPOISK_API_KEY is not configured")
	}
	res, err := request.JSON[kpSearch](ctx, request.Params{
		URL:        strings.TrimRight(k.BaseURL, "/") + "/movie/search",
		Query:      url.Values{"query": {query}, "page": {"1"}, "limit": {strconv.Itoa(max(limit, 1))}},
		Headers:    map[string]string{"X-API-KEY": k.APIKey},
		HTTPClient: k.HTTPClient,
		MaxRetries: k.MaxRetries,
		Source:     "kinopoisk",
	})
	if err != nil {
		return nil, err
	}
	return res.Docs, nil
}

// docScore rates a search hit against the wanted title and year.
func docScore(d kpDoc, titleNorm string, year int) float64 {
	score := 0.0
	for _, name := range []string{d.Name, d.AlternativeName, d.EnName} {
		norm := movie.NormalizeTitle(name)
		if norm == "" {
			continue
		}
		score = max(score, titleScore(norm, titleNorm, 3.5))
	}
	if year > 0 && d.Year > 0 {
		switch diff := absInt(d.Year - year); {
		case diff == 0:
			score += 2.0
		case diff <= 1:
			score += 1.2
		case diff <= 3:
			score += 0.4
		}
	}
	return score
}

// Lookup returns details of the best of the first eight search hits.
func (k *Kinopoisk) Lookup(ctx context.Context, title string, year int) (*Details, error) {
	docs, err := k.search(ctx, title, 8)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, nil
	}
	titleNorm := movie.NormalizeTitle(title)
	best, bestScore := -1, -1.0
	for i, d := range docs {
		if i >= 8 {
			break
		}
		if s := docScore(d, titleNorm, year); s > bestScore {
			best, bestScore = i, s
		}
	}
	d := docs[best]
	out := &Details{
		Title:  d.title(),
		Genre:  strings.Join(d.genres(), ", "),
		Type:   d.Type,
		Poster: d.posterURL(),
		Plot:   strings.TrimSpace(d.Description),
	}
	if out.Plot == "" {
		out.Plot = strings.TrimSpace(d.ShortDescription)
	}
	if d.Year > 0 {
		out.Year = strconv.Itoa(d.Year)
	}
	if kp, imdb := d.ratings(); imdb > 0 {
		out.IMDbRating = formatRating(imdb)
	} else if kp > 0 {
		out.IMDbRating = formatRating(kp)
	}
	return out, nil
}

// Probe is used by /diag.
func (k *Kinopoisk) Probe(ctx context.Context) (string, error) {
	if !k.Enabled() {
		return "disabled", nil
	}
	docs, err := k.search(ctx, "Matrix", 1)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("ok (docs=%d)", len(docs)), nil
}

// candidatesFor turns a search for query into unwatched candidates. A genre
// matching hint adds a bonus.
func (k *Kinopoisk) candidatesFor(ctx context.Context, query string, p Profile, hint string, limit int) []Candidate {
	docs, err := k.search(ctx, query, limit)
	if err != nil {
		return nil
	}
	hintNorm := movie.NormalizeTitle(hint)
	var out []Candidate
	for i, d := range docs {
		if i >= max(limit, 1) {
			break
		}
		title := d.title()
		if title == "" || p.HasWatched(title) {
			continue
		}
		genres := d.genres()
		if len(genres) == 0 {
			genres = []string{"—"}
		}
		kp, imdb := d.ratings()
		base := kp
		if imdb > 0 {
			base = imdb
		}
		votes := 0.0
		if d.Votes != nil {
			votes = d.Votes.KP
		}
		score := base*1.2 + min(votes/5000.0, 1.5)

		reason := "похоже на ваш профиль"
		for _, g := range genres {
			if hintNorm != "" && movie.NormalizeTitle(g) == hintNorm {
				score += 2.2
				reason = "совпадает по жанру: " + hint
				break
			}
		}

		id := d.ID
		if id == 0 {
			h := fnv.New32a()
			h.Write([]byte(movie.NormalizeTitle(title)))
			id = int(h.Sum32()%1_000_000_000) + 1_000_000_000
		}
		c := Candidate{
			ID:         id,
			Title:      title,
			Year:       d.Year,
			TMDBRating: base,
			Genres:     genres,
			Score:      score,
			Reason:     reason,
			PosterURL:  d.posterURL(),
		}
		if imdb > 0 {
			c.IMDbRating = imdb
		}
		out = append(out, c)
	}
	return out
}
