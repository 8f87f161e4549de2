package movie

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"time"
)

var (
	ErrMissingFields = errors.New("missing_fields")
	ErrInvalidYear   = errors.New("invalid_year")
	ErrInvalidRating = errors.New("invalid_rating")
)

// Entry is a validated row ready to be appended to the sheet.
type Entry struct {
	Film           string `db:"film" json:"film"`
	Year           string `db:"year" json:"year"`
	Genre          string `db:"genre" json:"genre"`
	Rating         string `db:"rating" json:"rating"`
	Comment        string `db:"comment" json:"comment"`
	Type           string `db:"type" json:"type"`
	Recommendation string `db:"recommendation" json:"recommendation"`
	Owner          string `db:"owner" json:"owner"`
}

// Normalized returns a copy with type, recommendation and owner normalized.
func (e Entry) Normalized() Entry {
	e.Type = NormalizeType(e.Type)
	e.Recommendation = NormalizeRecommendation(e.Recommendation)
	e.Owner = NormalizeOwner(e.Owner)
	return e
}

// Row renders the sheet row: timestamp first, owner last.
func (e Entry) Row(now time.Time) []string {
	return []string{
		now.Format(TimestampLayout),
		e.Film,
		e.Year,
		e.Genre,
		e.Rating,
		e.Comment,
		e.Type,
		e.Recommendation,
		e.Owner,
	}
}

// Payload renders the entry back into the /add format.
func (e Entry) Payload() string {
	return strings.Join([]string{e.Film, e.Year, e.Genre, e.Rating, e.Comment, e.Type, e.Recommendation, e.Owner}, ";")
}

// Missing lists the Russian labels of required fields that are absent or invalid.
func (e Entry) Missing() []string {
	var missing []string
	if strings.TrimSpace(e.Film) == "" {
		missing = append(missing, "название")
	}
	if !ValidYear(e.Year) {
		missing = append(missing, "год")
	}
	if strings.TrimSpace(e.Genre) == "" {
		missing = append(missing, "жанр")
	}
	if _, ok := ValidRating(e.Rating); !ok {
		missing = append(missing, "оценка")
	}
	return missing
}

// ParsePayload parses "Название;Год;Жанр;Оценка;Комментарий;Тип;Рекомендация;Владелец".
// The first four fields are required. Extra separators are kept inside the comment.
func ParsePayload(payload string) (Entry, error) {
	parts := strings.Split(payload, ";")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	if len(parts) < 4 {
		return Entry{}, ErrMissingFields
	}
	if len(parts) > 8 {
		comment := strings.TrimSpace(strings.Join(parts[4:len(parts)-3], ";"))
		tail := parts[len(parts)-3:]
		parts = append(append(parts[:4:4], comment), tail...)
	}
	for len(parts) < 8 {
		parts = append(parts, "")
	}

	e := Entry{
		Film:           parts[0],
		Year:           parts[1],
		Genre:          parts[2],
		Rating:         parts[3],
		Comment:        parts[4],
		Type:           parts[5],
		Recommendation: parts[6],
		Owner:          parts[7],
	}
	if e.Film == "" || e.Year == "" || e.Genre == "" || e.Rating == "" {
		return Entry{}, ErrMissingFields
	}
	if !ValidYear(e.Year) {
		return Entry{}, ErrInvalidYear
	}
	rating, ok := ValidRating(e.Rating)
	if !ok {
		return Entry{}, ErrInvalidRating
	}
	e.Rating = rating
	return e.Normalized(), nil
}

// ValidYear reports whether s is exactly four digits.
func ValidYear(s string) bool {
	if len(s) != 4 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// ValidRating parses a 1..10 rating and returns it in its shortest form.
func ValidRating(s string) (string, bool) {
	v, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(s), ",", "."), 64)
	if err != nil || math.IsNaN(v) || v < 1 || v > 10 {
		return "", false
	}
	return strconv.FormatFloat(v, 'g', -1, 64), true
}
