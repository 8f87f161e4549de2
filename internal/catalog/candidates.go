package catalog

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/eliseohh/moviebot/internal/movie"
)

const (
	enrichLimit   = 12
	enrichWorkers = 6
)

// bucket keeps the best-scored candidate per id in insertion order.
type bucket struct {
	index map[int]int
	items []Candidate
}

func newBucket() *bucket { return &bucket{index: make(map[int]int)} }

func (b *bucket) add(c Candidate) {
	if i, ok := b.index[c.ID]; ok {
		if c.Score > b.items[i].Score {
			b.items[i] = c
		}
		return
	}
	b.index[c.ID] = len(b.items)
	b.items = append(b.items, c)
}

func rank(cs []Candidate) {
	sort.SliceStable(cs, func(i, j int) bool { return cs[i].Score > cs[j].Score })
}

// Candidates returns up to limit unwatched movies ranked for the profile.
// TMDB recommendations for the best rated seeds come first, a discover query
// on preferred genres fills up the pool, the top 12 are enriched through
// OMDB. Without TMDB, Kinopoisk genre searches are used. Results are cached
// for 20 minutes per profile.
func (c *Catalog) Candidates(ctx context.Context, p Profile, limit int) []Candidate {
	if limit <= 0 {
		limit = 80
	}
	if !c.TMDB.Enabled() {
		return c.fallbackCandidates(ctx, p, limit)
	}
	key := cacheKey(p, limit)
	if cached, ok := c.candidates.Get(key); ok {
		return append([]Candidate(nil), cached...)
	}

	genreMap, err := c.TMDB.GenreMap(ctx)
	if err != nil {
		c.logger.Warn("tmdb genres unavailable", slog.Any("error", err))
		return c.fallbackCandidates(ctx, p, limit)
	}

	var preferred []string
	for i, g := range p.TopGenres {
		if i >= 5 {
			break
		}
		preferred = append(preferred, g.Genre)
	}
	preferredIDs := matchGenreIDs(preferred, genreMap)
	weights := p.genreWeights()
	preferredSet := make(map[string]bool)
	for g := range weights {
		preferredSet[g] = true
	}
	if len(preferredSet) == 0 {
		for _, g := range preferred {
			if n := movie.NormalizeTitle(g); n != "" {
				preferredSet[n] = true
			}
		}
	}

	b := newBucket()
	for _, seed := range seeds(p) {
		results, err := c.TMDB.search(ctx, seed.Title, seed.Year)
		if err != nil || len(results) == 0 {
			continue
		}
		hit, ok := pickBestSeed(results, seed.Title, seed.Year)
		if !ok || hit.ID <= 0 {
			continue
		}
		recs, err := c.TMDB.recommendations(ctx, hit.ID)
		if err != nil {
			continue
		}
		for i, it := range recs {
			if i >= 15 {
				break
			}
			if p.HasWatched(it.title()) {
				continue
			}
			shared := sharedGenres(it.GenreIDs, genreMap, preferredSet)
			if len(preferredSet) > 0 && len(shared) == 0 {
				continue
			}
			score := seed.Rating*0.7 +
				it.VoteAverage*0.9 +
				min(float64(it.VoteCount)/4000.0, 2.5) +
				float64(len(shared))*1.8 +
				affinity(shared, weights)*2.2
			if cand, ok := fromTMDB(it, genreMap, reasonFor(shared), score); ok {
				b.add(cand)
			}
		}
	}

	if len(b.items) < 25 {
		ids := preferredIDs
		if len(ids) > 3 {
			ids = ids[:3]
		}
		results, err := c.TMDB.discover(ctx, ids)
		if err == nil {
			for _, it := range results {
				if p.HasWatched(it.title()) {
					continue
				}
				shared := sharedGenres(it.GenreIDs, genreMap, preferredSet)
				if len(preferredSet) > 0 && len(shared) == 0 {
					continue
				}
				score := it.VoteAverage*0.9 +
					min(float64(it.VoteCount)/5000.0, 2.0) +
					float64(len(shared))*2.0 +
					affinity(shared, weights)*2.4
				if cand, ok := fromTMDB(it, genreMap, reasonFor(shared), score); ok {
					b.add(cand)
				}
			}
		}
	}

	ranked := b.items
	rank(ranked)
	c.enrich(ctx, ranked)
	rank(ranked)
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	if len(ranked) == 0 {
		ranked = c.fallbackCandidates(ctx, p, limit)
	}
	c.candidates.Set(key, ranked)
	return append([]Candidate(nil), ranked...)
}

// seeds are up to four favorites rated 8+, or 6.5+ when fewer than three.
func seeds(p Profile) []Seed {
	pick := func(minRating float64) []Seed {
		var out []Seed
		for _, s := range p.Favorites {
			if s.Rating >= minRating {
				out = append(out, s)
				if len(out) == 4 {
					break
				}
			}
		}
		return out
	}
	if s := pick(8.0); len(s) >= 3 {
		return s
	}
	return pick(6.5)
}

// enrich adds IMDb rating, plot and a fallback poster from OMDB to the top
// candidates in place.
func (c *Catalog) enrich(ctx context.Context, cs []Candidate) {
	if !c.OMDB.Enabled() || len(cs) == 0 {
		return
	}
	n := min(enrichLimit, len(cs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(enrichWorkers)
	for i := 0; i < n; i++ {
		item := &cs[i]
		g.Go(func() error {
			d := c.OMDB.Lookup(gctx, item.Title, item.Year)
			if d == nil {
				return nil
			}
			if r := movie.ParseRating(d.IMDbRating); r > 0 {
				item.IMDbRating = r
				item.Score += min(r/10.0, 1.0) * 0.8
			}
			if present(strings.TrimSpace(d.Plot)) {
				item.Plot = strings.TrimSpace(d.Plot)
			}
			if item.PosterURL == "" && present(strings.TrimSpace(d.Poster)) {
				item.PosterURL = strings.TrimSpace(d.Poster)
			}
			return nil
		})
	}
	g.Wait()
}

func (c *Catalog) fallbackCandidates(ctx context.Context, p Profile, limit int) []Candidate {
	if !c.Kinopoisk.Enabled() {
		return nil
	}
	var genres []string
	for i, g := range p.TopGenres {
		if i >= 4 {
			break
		}
		if g.Genre != "" {
			genres = append(genres, g.Genre)
		}
	}
	if len(genres) == 0 {
		genres = []string{"триллер", "драма"}
	}

	best := make(map[string]int)
	var out []Candidate
	for _, g := range genres {
		for _, cand := range c.Kinopoisk.candidatesFor(ctx, g, p, g, 20) {
			key := movie.NormalizeTitle(cand.Title)
			if key == "" {
				continue
			}
			if i, ok := best[key]; ok {
				if cand.Score > out[i].Score {
					out[i] = cand
				}
				continue
			}
			best[key] = len(out)
			out = append(out, cand)
		}
	}
	rank(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func fromTMDB(it tmdbItem, genreMap map[int]string, reason string, score float64) (Candidate, bool) {
	title := it.title()
	if it.ID <= 0 || title == "" {
		return Candidate{}, false
	}
	var genres []string
	for _, id := range it.GenreIDs {
		if n, ok := genreMap[id]; ok {
			genres = append(genres, n)
		}
	}
	if len(genres) == 0 {
		genres = []string{"—"}
	}
	return Candidate{
		ID:         it.ID,
		Title:      title,
		Year:       it.year(),
		TMDBRating: it.VoteAverage,
		VoteCount:  it.VoteCount,
		Genres:     genres,
		Score:      score,
		Reason:     reason,
		Plot:       strings.TrimSpace(it.Overview),
		PosterURL:  it.posterURL(),
	}, true
}

// matchGenreIDs returns TMDB genre ids whose names contain or are contained
// in a preferred genre, in preference order.
func matchGenreIDs(preferred []string, genreMap map[int]string) []int {
	ids := make([]int, 0, len(genreMap))
	for id := range genreMap {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	var out []int
	seen := make(map[int]bool)
	for _, pref := range preferred {
		pn := movie.NormalizeTitle(pref)
		if pn == "" {
			continue
		}
		for _, id := range ids {
			n := movie.NormalizeTitle(genreMap[id])
			if (strings.Contains(n, pn) || strings.Contains(pn, n)) && !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
	}
	return out
}

func sharedGenres(ids []int, genreMap map[int]string, preferred map[string]bool) []string {
	if len(ids) == 0 || len(preferred) == 0 {
		return nil
	}
	var out []string
	seen := make(map[string]bool)
	for _, id := range ids {
		name, ok := genreMap[id]
		if !ok || name == "" {
			continue
		}
		n := movie.NormalizeTitle(name)
		if preferred[n] && !seen[n] {
			seen[n] = true
			out = append(out, name)
		}
	}
	return out
}

func affinity(shared []string, weights map[string]float64) float64 {
	var sum float64
	var n int
	for _, g := range shared {
		if w := weights[movie.NormalizeTitle(g)]; w > 0 {
			sum += w
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

func reasonFor(shared []string) string {
	if len(shared) == 0 {
		return "близко к вашим любимым жанрам и оценкам"
	}
	if len(shared) > 3 {
		shared = shared[:3]
	}
	return "совпадают жанры: " + strings.Join(shared, ", ")
}

func cacheKey(p Profile, limit int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d|%d|%d|%.2f|", limit, p.Total, p.Rated, p.Average)
	for i, g := range p.TopGenres {
		if i >= 6 {
			break
		}
		fmt.Fprintf(&sb, "%s:%.2f,", movie.NormalizeTitle(g.Genre), g.Score)
	}
	sb.WriteByte('|')
	for i, f := range p.Favorites {
		if i >= 10 {
			break
		}
		fmt.Fprintf(&sb, "%s:%d:%.1f,", movie.NormalizeTitle(f.Title), f.Year, f.Rating)
	}
	keys := make([]string, 0, len(p.watched))
	for k := range p.watched {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	h := sha256.Sum256([]byte(strings.Join(keys, "\x00")))
	fmt.Fprintf(&sb, "|%x", h[:8])
	return sb.String()
}
