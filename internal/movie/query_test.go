package movie

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func titles(records []Record) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.Film)
	}
	return out
}

func sample() []Record {
	return []Record{
		{Added: "2024-05-01 10:00", Film: "Alien", Genre: "Ужасы, фантастика", Rating: "8", Owner: "муж"},
		{Added: "2024-05-20 10:00", Film: "Amelie", Genre: "Комедия", Rating: "9", Owner: "жена"},
		{Added: "", Film: "Heat", Genre: "криминал", Rating: "9", Owner: ""},
		{Added: "03.04.2024 12:00", Film: "Up", Genre: "мультфильм", Rating: "7,5", Owner: "Husband"},
	}
}

func TestFilters(t *testing.T) {
	records := sample()
	assert.Equal(t, []string{"Alien"}, titles(FilterByGenre(records, "ФАНТАСТ")))
	assert.Empty(t, FilterByGenre(records, "  "))
	assert.Equal(t, []string{"Amelie"}, titles(SearchTitle(records, "meli")))
	assert.Equal(t, []string{"Alien", "Up"}, titles(FilterByOwner(records, OwnerHusband)))
}

func TestTopByRating(t *testing.T) {
	assert.Equal(t, []string{"Heat", "Amelie", "Alien"}, titles(TopByRating(sample(), 3)))
	assert.Len(t, TopByRating(sample(), 20), 4)
}

func TestRecentAndSort(t *testing.T) {
	now := time.Date(2024, 5, 25, 0, 0, 0, 0, time.Local)
	assert.Equal(t, []string{"Alien", "Amelie"}, titles(Recent(sample(), now, 30*24*time.Hour)))
	assert.Equal(t, []string{"Amelie", "Alien", "Up", "Heat"}, titles(SortByAdded(sample())))

	unstamped := []Record{{Film: "b"}, {Film: "a"}}
	assert.Equal(t, []string{"b", "a"}, titles(SortByAdded(unstamped)))
}

func TestWatchedTitles(t *testing.T) {
	watched := WatchedTitles(sample())
	assert.Contains(t, watched, "amelie")
	assert.Len(t, watched, 4)
}
