// Package movie holds the library row model and the pure logic around it:
// normalization, payload parsing, queries, statistics and formatting.
package movie

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	TypeFilm   = "фильм"
	TypeSeries = "сериал"

	RecRecommend = "рекомендую"
	RecOK        = "можно посмотреть"
	RecSkip      = "в топку"

	OwnerHusband = "муж"
	OwnerWife    = "жена"

	// TimestampLayout is what the bot writes into the first column.
	TimestampLayout = "2006-01-02 15:04"
)

// Record is one library row as read from the sheet or the local mirror.
type Record struct {
	Added          string `db:"added"`
	Film           string `db:"film"`
	Year           string `db:"year"`
	Genre          string `db:"genre"`
	Rating         string `db:"rating"`
	Comment        string `db:"comment"`
	Type           string `db:"type"`
	Recommendation string `db:"recommendation"`
	Owner          string `db:"owner"`
}

// RatingValue parses the rating cell. A comma is accepted as decimal point.
// Unparseable values count as 0.
func (r Record) RatingValue() float64 {
	return ParseRating(r.Rating)
}

// YearValue returns the release year or 0.
func (r Record) YearValue() int {
	return ParseYear(r.Year)
}

func (r Record) AddedAt() (time.Time, bool) {
	return ParseTimestamp(r.Added)
}

func (r Record) Genres() []string {
	return SplitGenres(r.Genre)
}

func ParseRating(s string) float64 {
	v, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(s), ",", "."), 64)
	if err != nil {
		return 0
	}
	return v
}

// ParseYear reads a leading 4-digit year in the 1888..2100 range.
func ParseYear(s string) int {
	s = strings.TrimSpace(s)
	if len(s) < 4 {
		return 0
	}
	y, err := strconv.Atoi(s[:4])
	if err != nil || y < 1888 || y > 2100 {
		return 0
	}
	return y
}

var timestampLayouts = []string{
	"2006-01-02 15:04",
	"2006-01-02 15:04:05",
	"02.01.2006 15:04",
	"02.01.2006 15:04:05",
	"2006-01-02T15:04:05",
}

func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

var genreSplitRe = regexp.MustCompile(`[,/|;]+`)

// SplitGenres splits a genre cell on , / | ; and lowercases the parts.
func SplitGenres(s string) []string {
	var out []string
	for _, part := range genreSplitRe.Split(strings.TrimSpace(s), -1) {
		if part = strings.ToLower(strings.TrimSpace(part)); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func NormalizeType(s string) string {
	lowered := strings.ToLower(strings.TrimSpace(s))
	if strings.HasPrefix(lowered, "сериал") || strings.HasPrefix(lowered, "series") {
		return TypeSeries
	}
	return TypeFilm
}

func NormalizeRecommendation(s string) string {
	lowered := strings.ToLower(strings.TrimSpace(s))
	switch {
	case strings.HasPrefix(lowered, "рек"), strings.HasPrefix(lowered, "rec"):
		return RecRecommend
	case strings.HasPrefix(lowered, "мож"), strings.Contains(lowered, "можно"):
		return RecOK
	case strings.HasPrefix(lowered, "в топ"), strings.HasPrefix(lowered, "втоп"), strings.Contains(lowered, "топку"):
		return RecSkip
	case strings.HasPrefix(lowered, "skip"):
		return RecSkip
	}
	return RecOK
}

func NormalizeOwner(s string) string {
	lowered := strings.ToLower(strings.TrimSpace(s))
	switch {
	case strings.HasPrefix(lowered, "муж"), strings.HasPrefix(lowered, "husband"):
		return OwnerHusband
	case strings.HasPrefix(lowered, "жен"), strings.HasPrefix(lowered, "wife"):
		return OwnerWife
	}
	return ""
}

var (
	yearLabelRe  = regexp.MustCompile(`\(\d{4}\)`)
	nonWordRe    = regexp.MustCompile(`[^\p{L}\p{N}_\s]+`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// NormalizeTitle is the dedupe key for titles: lowercase, no "(YYYY)",
// punctuation replaced by spaces, spaces collapsed.
func NormalizeTitle(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = yearLabelRe.ReplaceAllString(s, "")
	s = nonWordRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}
