package catalog

import (
	"sort"

	"github.com/eliseohh/moviebot/internal/movie"
)

type Seed struct {
	Title  string
	Year   int
	Rating float64
	Genres []string
}

type GenreScore struct {
	Genre string
	Score float64
}

// Profile summarizes what the household watches and how it rates it.
type Profile struct {
	Total     int
	Rated     int
	Average   float64
	TopGenres []GenreScore
	Favorites []Seed
	// WatchedTitles holds one original title per normalized title, sorted.
	WatchedTitles []string
	watched       map[string]struct{}
}

func (p Profile) HasWatched(title string) bool {
	_, ok := p.watched[movie.NormalizeTitle(title)]
	return ok
}

// BuildProfile scores genres by the sum of ratings of the rows that carry
// them and keeps the top 8 genres and the top 25 rows by rating.
func BuildProfile(records []movie.Record) Profile {
	p := Profile{Total: len(records), watched: make(map[string]struct{})}
	scores := make(map[string]float64)
	var order []string
	var sum float64

	for _, r := range records {
		if r.Film == "" {
			continue
		}
		rating := r.RatingValue()
		genres := r.Genres()
		if key := movie.NormalizeTitle(r.Film); key != "" {
			if _, seen := p.watched[key]; !seen {
				p.watched[key] = struct{}{}
				p.WatchedTitles = append(p.WatchedTitles, r.Film)
			}
		}
		if rating > 0 {
			p.Rated++
			sum += rating
			for _, g := range genres {
				if _, ok := scores[g]; !ok {
					order = append(order, g)
				}
				scores[g] += rating
			}
		}
		p.Favorites = append(p.Favorites, Seed{Title: r.Film, Year: r.YearValue(), Rating: rating, Genres: genres})
	}

	if p.Rated > 0 {
		p.Average = sum / float64(p.Rated)
	}
	sort.SliceStable(p.Favorites, func(i, j int) bool { return p.Favorites[i].Rating > p.Favorites[j].Rating })
	if len(p.Favorites) > 25 {
		p.Favorites = p.Favorites[:25]
	}
	for _, g := range order {
		p.TopGenres = append(p.TopGenres, GenreScore{Genre: g, Score: scores[g]})
	}
	sort.SliceStable(p.TopGenres, func(i, j int) bool { return p.TopGenres[i].Score > p.TopGenres[j].Score })
	if len(p.TopGenres) > 8 {
		p.TopGenres = p.TopGenres[:8]
	}
	sort.Strings(p.WatchedTitles)
	return p
}

// genreWeights maps normalized top genres to score / best score.
func (p Profile) genreWeights() map[string]float64 {
	if len(p.TopGenres) == 0 {
		return nil
	}
	best := 0.0
	for _, g := range p.TopGenres {
		best = max(best, g.Score)
	}
	if best <= 0 {
		best = 1
	}
	w := make(map[string]float64)
	for _, g := range p.TopGenres {
		if n := movie.NormalizeTitle(g.Genre); n != "" {
			w[n] = max(g.Score, 0.1) / best
		}
	}
	return w
}
