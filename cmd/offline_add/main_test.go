package main

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eliseohh/moviebot/internal/index"
	"github.com/eliseohh/moviebot/internal/movie"
)

func TestReadEntryRepromptsInvalidValues(t *testing.T) {
	input := strings.Join([]string{
		"", "Дюна",
		"21", "2021",
		"фантастика",
		"11", "abc", "8,50",
		"  песок  ",
		"2", "1", "2",
	}, "\n") + "\n"
	var out strings.Builder

	e, err := readEntry(strings.NewReader(input), &out)
	require.NoError(t, err)

	want := movie.Entry{
		Film: "Дюна", Year: "2021", Genre: "фантастика", Rating: "8.5", Comment: "песок",
		Type: movie.TypeSeries, Recommendation: movie.RecRecommend, Owner: movie.OwnerWife,
	}
	if diff := cmp.Diff(want, e); diff != "" {
		t.Errorf("entry mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 1, strings.Count(out.String(), msgEmpty))
	assert.Equal(t, 3, strings.Count(out.String(), msgInvalid))
	assert.Equal(t, 2, strings.Count(out.String(), "Год выпуска: "))
}

func TestReadEntryDefaults(t *testing.T) {
	e, err := readEntry(strings.NewReader("A\n2020\nдрама\n7\n\n\n\n\n"), io.Discard)
	require.NoError(t, err)
	assert.Equal(t, movie.TypeFilm, e.Type)
	assert.Equal(t, movie.RecOK, e.Recommendation)
	assert.Equal(t, "", e.Owner)
	assert.Empty(t, e.Missing())
}

func TestReadEntryFreeTextChoices(t *testing.T) {
	e, err := readEntry(strings.NewReader("A\n2020\nдрама\n7\n\nсериал\nв топку\nмуж\n"), io.Discard)
	require.NoError(t, err)
	assert.Equal(t, movie.TypeSeries, e.Type)
	assert.Equal(t, movie.RecSkip, e.Recommendation)
	assert.Equal(t, movie.OwnerHusband, e.Owner)
}

func TestReadEntryStopsOnEOF(t *testing.T) {
	_, err := readEntry(strings.NewReader("Дюна\n20"), io.Discard)
	assert.True(t, errors.Is(err, io.ErrUnexpectedEOF))
}

func TestReadEntryQueuesOffline(t *testing.T) {
	db, err := index.NewDB(filepath.Join(t.TempDir(), "moviebot.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	e, err := readEntry(strings.NewReader("A\n2020\nдрама\n7\n\n1\n2\n"), io.Discard)
	require.NoError(t, err)

	ctx := context.Background()
	_, err = db.EnqueueOffline(ctx, e, 0)
	require.NoError(t, err)
	entries, err := db.OfflineEntries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "A", entries[0].Film)
	assert.Equal(t, int64(0), entries[0].ChatID)
}
