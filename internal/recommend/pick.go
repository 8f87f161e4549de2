package recommend

import (
	"math/rand/v2"
	"strings"

	"github.com/eliseohh/moviebot/internal/catalog"
	"github.com/eliseohh/moviebot/internal/movie"
)

const weightedPool = 35

// FilterMinYear drops candidates released before minYear or with no year.
func FilterMinYear(cs []catalog.Candidate, minYear int) []catalog.Candidate {
	var out []catalog.Candidate
	for _, c := range cs {
		if c.Year >= minYear {
			out = append(out, c)
		}
	}
	return out
}

// Exclude drops candidates whose normalized title is in titles.
func Exclude(cs []catalog.Candidate, titles []string) []catalog.Candidate {
	if len(cs) == 0 || len(titles) == 0 {
		return cs
	}
	blocked := make(map[string]bool, len(titles))
	for _, t := range titles {
		blocked[movie.NormalizeTitle(t)] = true
	}
	var out []catalog.Candidate
	for _, c := range cs {
		if !blocked[movie.NormalizeTitle(c.Title)] {
			out = append(out, c)
		}
	}
	return out
}

// WeightedPick draws one of the first 35 candidates with probability
// proportional to max(score, 0.1). cs must not be empty.
func WeightedPick(cs []catalog.Candidate, rnd *rand.Rand) catalog.Candidate {
	pool := cs
	if len(pool) > weightedPool {
		pool = pool[:weightedPool]
	}
	var total float64
	for _, c := range pool {
		total += max(c.Score, 0.1)
	}
	var x float64
	if rnd != nil {
		x = rnd.Float64() * total
	} else {
		x = rand.Float64() * total
	}
	for _, c := range pool {
		x -= max(c.Score, 0.1)
		if x < 0 {
			return c
		}
	}
	return pool[len(pool)-1]
}

// ParseSinglePick reads the first "Title (Year) - reason" line of an answer.
// Heading lines with a colon and no year are skipped.
func ParseSinglePick(answer string) (title, reason string) {
	for _, raw := range strings.Split(answer, "\n") {
		line := cleanLine(raw)
		if line == "" {
			continue
		}
		hasDash := strings.Contains(line, " - ")
		if strings.Contains(line, ":") && !hasDash && !yearLabelRe.MatchString(line) {
			continue
		}
		t, r, _ := strings.Cut(line, " - ")
		t = strings.Trim(t, " .")
		r = strings.Trim(r, " .")
		if t != "" {
			return t, r
		}
	}
	return "", ""
}

// AcceptSinglePick validates a parsed single pick: the year must be 2000 or
// later and the title must not be blocked.
func AcceptSinglePick(title string, blocked []string) bool {
	if title == "" || !allowedYear(YearOf(title)) {
		return false
	}
	norm := movie.NormalizeTitle(title)
	for _, b := range blocked {
		if movie.NormalizeTitle(b) == norm {
			return false
		}
	}
	return true
}
