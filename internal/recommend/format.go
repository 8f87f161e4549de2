package recommend

import (
	"fmt"
	"html"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/eliseohh/moviebot/internal/catalog"
	"github.com/eliseohh/moviebot/internal/movie"
)

const (
	// MinYear is the oldest release year the bot recommends.
	MinYear = 2000

	Heading        = "<b>New Recommendations</b>"
	wildcardTitle  = "<b>Wildcard</b>"
	defaultReason  = "matches your genres and ratings history"
	noValidAnswers = Heading + "\nНе нашёл подходящих фильмов с годом выхода 2000+."

	maxItems     = 8
	maxPrefill   = 220
	maxButtonLen = 32
)

var (
	yearLabelRe = regexp.MustCompile(`\((\d{4})\)`)
	bulletRe    = regexp.MustCompile(`^[-*]\s*`)
	numberRe    = regexp.MustCompile(`^\d+[.)]\s*`)
	boldRe      = regexp.MustCompile(`<b>(.*?)</b>`)
	spacesRe    = regexp.MustCompile(`\s+`)
)

// YearOf returns the year in a "Title (YYYY)" label, or 0.
func YearOf(label string) int {
	m := yearLabelRe.FindStringSubmatch(label)
	if m == nil {
		return 0
	}
	y, err := strconv.Atoi(m[1])
	if err != nil || y < 1888 || y > 2100 {
		return 0
	}
	return y
}

func allowedYear(y int) bool { return y >= MinYear }

func cleanLine(raw string) string {
	line := strings.TrimSpace(strings.ReplaceAll(raw, "**", ""))
	line = bulletRe.ReplaceAllString(line, "")
	return numberRe.ReplaceAllString(line, "")
}

func isWildcardHeading(lowered string) bool {
	return strings.Contains(lowered, "wildcard") || strings.Contains(lowered, "card") ||
		strings.Contains(lowered, "дикая карта")
}

// FormatAnswer turns a model answer into the Telegram HTML list: up to eight
// numbered "Title (Year) - reason" items with years of 2000 or later and an
// optional wildcard item.
func FormatAnswer(answer string) string {
	var lines []string
	for _, l := range strings.Split(answer, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	if len(lines) == 0 {
		return Heading + "\nNo data."
	}

	var numbered []string
	wildcard := ""
	wildcardMode := false
	for _, raw := range lines {
		lowered := strings.ToLower(strings.ReplaceAll(raw, "**", ""))
		if isWildcardHeading(lowered) {
			wildcardMode = true
			continue
		}
		line := cleanLine(raw)
		if line == "" {
			continue
		}
		hasYear := yearLabelRe.MatchString(line)
		if strings.Contains(line, ":") && !hasYear && !strings.Contains(line, " - ") {
			continue
		}
		var title, reason string
		if t, r, ok := strings.Cut(line, " - "); ok {
			title, reason = t, r
		} else if hasYear {
			title = line
		} else {
			continue
		}
		title = strings.Trim(title, " .")
		reason = strings.Trim(reason, " .")
		if !allowedYear(YearOf(title)) {
			continue
		}
		if reason == "" {
			reason = defaultReason
		}
		item := "<b>" + html.EscapeString(title) + "</b> - " + html.EscapeString(reason)
		if wildcardMode && wildcard == "" {
			wildcard = item
			continue
		}
		numbered = append(numbered, fmt.Sprintf("%d. %s", len(numbered)+1, item))
	}

	if len(numbered) == 0 && wildcard == "" {
		return noValidAnswers
	}
	if len(numbered) > maxItems {
		numbered = numbered[:maxItems]
	}
	parts := append([]string{Heading}, numbered...)
	if wildcard != "" {
		parts = append(parts, "", wildcardTitle, "* "+wildcard)
	}
	return strings.Join(parts, "\n")
}

// Clip cuts text to n runes and marks the cut with "...".
func Clip(text string, n int) string {
	if utf8.RuneCountInString(text) <= n {
		return text
	}
	return strings.TrimRight(string([]rune(text)[:n]), " \n\t") + "..."
}

// Titles returns the bold "Title (Year)" labels of a formatted answer,
// skipping headings and years before 2000.
func Titles(formatted string) []string {
	var out []string
	for _, m := range boldRe.FindAllStringSubmatch(formatted, -1) {
		title := strings.TrimSpace(html.UnescapeString(m[1]))
		switch strings.ToLower(title) {
		case "new recommendations", "wildcard":
			continue
		}
		if !allowedYear(YearOf(title)) {
			continue
		}
		out = append(out, title)
	}
	return out
}

// QuickAdd is one button that pre-fills the add command in the input field.
type QuickAdd struct {
	Label   string
	Prefill string
}

// QuickAdds returns buttons for up to eight unique titles of a formatted
// answer and the unique titles themselves.
func QuickAdds(formatted string, now time.Time) ([]QuickAdd, []string) {
	var titles []string
	seen := make(map[string]bool)
	for _, t := range Titles(formatted) {
		key := movie.NormalizeTitle(t)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		titles = append(titles, t)
	}
	var buttons []QuickAdd
	for i, t := range titles {
		if i >= maxItems {
			break
		}
		buttons = append(buttons, QuickAdd{
			Label:   fmt.Sprintf("➕ %d. %s", i+1, ShortTitle(t)),
			Prefill: Prefill(t, YearOf(t), now),
		})
	}
	return buttons, titles
}

// CleanTitle drops "(YYYY)" and turns ";" into "," so the title fits the
// add payload.
func CleanTitle(title string) string {
	clean := yearLabelRe.ReplaceAllString(title, "")
	clean = strings.TrimSpace(spacesRe.ReplaceAllString(clean, " "))
	clean = strings.ReplaceAll(clean, ";", ",")
	if clean == "" {
		return "Название"
	}
	return clean
}

// Prefill builds "/add Title;Year;жанр;8". An unknown year becomes the
// current one.
func Prefill(title string, year int, now time.Time) string {
	if year < 1888 || year > 2100 {
		year = now.Year()
	}
	s := fmt.Sprintf("/add %s;%d;жанр;8", CleanTitle(title), year)
	if utf8.RuneCountInString(s) > maxPrefill {
		s = strings.TrimRight(string([]rune(s)[:maxPrefill]), " ")
	}
	return s
}

func ShortTitle(title string) string {
	clean := CleanTitle(title)
	if utf8.RuneCountInString(clean) <= maxButtonLen {
		return clean
	}
	return strings.TrimRight(string([]rune(clean)[:maxButtonLen-1]), " ") + "…"
}

// RenderCandidates lists candidates in the answer format without the model.
func RenderCandidates(cs []catalog.Candidate, limit int, now time.Time) string {
	if len(cs) == 0 {
		return noValidAnswers
	}
	limit = max(limit, 1)
	lines := []string{Heading}
	for i, c := range cs {
		if i >= limit {
			break
		}
		year := c.Year
		if year == 0 {
			year = now.Year()
		}
		reason := c.Reason
		if reason == "" {
			reason = defaultReason
		}
		label := fmt.Sprintf("%s (%d)", c.Title, year)
		lines = append(lines, fmt.Sprintf("%d. <b>%s</b> - %s", i+1, html.EscapeString(label), html.EscapeString(reason)))
	}
	return strings.Join(lines, "\n")
}

// RestrictToPool keeps only the answer items that name a candidate, rewrites
// them with the candidate's title, year and reason and renumbers them. When
// nothing matches, the candidates are rendered directly.
func RestrictToPool(formatted string, cs []catalog.Candidate, limit int, now time.Time) string {
	if formatted == "" || len(cs) == 0 {
		return formatted
	}
	lookup := make(map[string]catalog.Candidate)
	for _, c := range cs {
		if key := movie.NormalizeTitle(c.Title); key != "" {
			if _, ok := lookup[key]; !ok {
				lookup[key] = c
			}
		}
	}
	if len(lookup) == 0 {
		return formatted
	}
	limit = max(limit, 1)

	var items []string
	seen := make(map[string]bool)
	for _, line := range strings.Split(formatted, "\n") {
		m := boldRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		label := strings.TrimSpace(html.UnescapeString(m[1]))
		norm := movie.NormalizeTitle(label)
		if norm == "new recommendations" || norm == "wildcard" {
			continue
		}
		c, ok := lookup[norm]
		if !ok {
			continue
		}
		year := c.Year
		if year == 0 {
			year = YearOf(label)
		}
		if year == 0 {
			year = now.Year()
		}
		final := fmt.Sprintf("%s (%d)", c.Title, year)
		key := movie.NormalizeTitle(final)
		if seen[key] {
			continue
		}
		seen[key] = true
		reason := c.Reason
		if reason == "" {
			reason = defaultReason
		}
		items = append(items, "<b>"+html.EscapeString(final)+"</b> - "+html.EscapeString(reason))
		if len(items) >= limit {
			break
		}
	}
	if len(items) == 0 {
		return RenderCandidates(cs, limit, now)
	}
	out := []string{Heading}
	for i, it := range items {
		out = append(out, fmt.Sprintf("%d. %s", i+1, it))
	}
	return strings.Join(out, "\n")
}
