package catalog

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// ProfileSummary renders the profile block of AI prompts.
func ProfileSummary(p Profile) string {
	lines := []string{
		fmt.Sprintf("Записей в таблице: %d", p.Total),
		fmt.Sprintf("С оценками: %d", p.Rated),
	}
	if p.Rated > 0 {
		lines = append(lines, fmt.Sprintf("Средняя оценка: %.2f/10", p.Average))
	} else {
		lines = append(lines, "Средняя оценка: нет данных")
	}
	if len(p.TopGenres) > 0 {
		var parts []string
		for i, g := range p.TopGenres {
			if i >= 5 {
				break
			}
			parts = append(parts, fmt.Sprintf("%s (%.1f)", g.Genre, g.Score))
		}
		lines = append(lines, "Любимые жанры: "+strings.Join(parts, ", "))
	}
	var favs []string
	for i, f := range p.Favorites {
		if i >= 8 {
			break
		}
		if f.Rating > 0 {
			favs = append(favs, fmt.Sprintf("%s (%s)", f.Title, strconv.FormatFloat(f.Rating, 'g', -1, 64)))
		}
	}
	if len(favs) > 0 {
		lines = append(lines, "Топ по оценке: "+strings.Join(favs, ", "))
	}
	lines = append(lines, "Уже просмотрено: "+JoinLimited(p.WatchedTitles, 1800))
	return strings.Join(lines, "\n")
}

// JoinLimited joins items with ", " while the running length stays within
// maxChars runes.
func JoinLimited(items []string, maxChars int) string {
	var out []string
	current := 0
	for _, it := range items {
		n := utf8.RuneCountInString(it) + 1
		if current+n > maxChars {
			break
		}
		out = append(out, it)
		current += n
	}
	return strings.Join(out, ", ")
}

const noCandidates = "TMDB candidates are unavailable."

// CandidatesSummary renders up to maxItems candidates within maxChars runes.
func CandidatesSummary(cs []Candidate, maxItems, maxChars int) string {
	if len(cs) == 0 {
		return noCandidates
	}
	if maxItems <= 0 {
		maxItems = 35
	}
	if maxChars <= 0 {
		maxChars = 7000
	}
	var lines []string
	current := 0
	for i, c := range cs {
		if i >= maxItems {
			break
		}
		year := "-"
		if c.Year > 0 {
			year = strconv.Itoa(c.Year)
		}
		genres := "-"
		if len(c.Genres) > 0 {
			g := c.Genres
			if len(g) > 3 {
				g = g[:3]
			}
			genres = strings.Join(g, ", ")
		}
		ratings := []string{fmt.Sprintf("TMDB %.1f/10", c.TMDBRating)}
		if c.IMDbRating > 0 {
			ratings = append(ratings, fmt.Sprintf("IMDb %.1f/10", c.IMDbRating))
		}
		line := fmt.Sprintf("- %s (%s), %s, votes=%d, genres=%s, reason=%s",
			c.Title, year, strings.Join(ratings, " | "), c.VoteCount, genres, c.Reason)
		if c.Plot != "" {
			line += ", plot=" + strings.TrimSpace(truncateRunes(c.Plot, 140))
		}
		n := utf8.RuneCountInString(line) + 1
		if current+n > maxChars {
			break
		}
		lines = append(lines, line)
		current += n
	}
	return strings.Join(lines, "\n")
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
