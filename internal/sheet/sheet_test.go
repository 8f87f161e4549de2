package sheet

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"

	"github.com/eliseohh/moviebot/internal/movie"
)

type fakeBackend struct {
	titles   map[string]string
	values   [][]interface{}
	appended [][]interface{}
	ranges   []string

	valueCalls int
	metaCalls  int
	err        error
}

func (f *fakeBackend) FindByTitle(_ context.Context, title string) (string, error) {
	id, ok := f.titles[title]
	if !ok {
		return "", ErrNotFound
	}
	return id, nil
}

func (f *fakeBackend) FirstSheet(_ context.Context, id string) (string, string, error) {
	f.metaCalls++
	if f.err != nil {
		return "", "", f.err
	}
	return "Movies " + id, "Лист1", nil
}

func (f *fakeBackend) Values(_ context.Context, _, rng string) ([][]interface{}, error) {
	f.valueCalls++
	f.ranges = append(f.ranges, rng)
	return f.values, nil
}

func (f *fakeBackend) Append(_ context.Context, _, rng string, row []interface{}) error {
	f.ranges = append(f.ranges, rng)
	f.appended = append(f.appended, row)
	return nil
}

func TestParseRef(t *testing.T) {
	cases := []struct {
		in   string
		want Ref
	}{
		{"https://docs.google.com/spreadsheets/d/abc123/edit#gid=0", Ref{Kind: RefURL, Value: "abc123"}},
		{"1BxiMVs0XRA5nFMdKvBdBZjgmUUqptlbs74OgvE2upms", Ref{Kind: RefKey, Value: "1BxiMVs0XRA5nFMdKvBdBZjgmUUqptlbs74OgvE2upms"}},
		{"Наши фильмы", Ref{Kind: RefTitle, Value: "Наши фильмы"}},
		{"short_key", Ref{Kind: RefTitle, Value: "short_key"}},
	}
	for _, tc := range cases {
		got, err := ParseRef(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}

	_, err := ParseRef("  ")
	assert.ErrorIs(t, err, ErrEmptyRef)
	_, err = ParseRef("https://docs.google.com/spreadsheets/u/0/")
	assert.Error(t, err)
}

func TestMapRowsAliases(t *testing.T) {
	values := [][]interface{}{
		{"Дата", "Название", "Год", "Жанр", "Оценка", "Extra", "Чье"},
		{"2024-01-02 10:00", "Дюна", "2021", "фантастика", "9", "x", "муж"},
		{"", "", "", "", "", "ignored"},
		{"2024-01-03 10:00", "Сияние", 1980},
	}
	got := MapRows(values)
	want := []movie.Record{
		{Added: "2024-01-02 10:00", Film: "Дюна", Year: "2021", Genre: "фантастика", Rating: "9", Owner: "муж"},
		{Added: "2024-01-03 10:00", Film: "Сияние", Year: "1980"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("MapRows mismatch (-want +got):\n%s", diff)
	}
	assert.Nil(t, MapRows(values[:1]))
}

func TestClientCachesAndInvalidatesOnAppend(t *testing.T) {
	fb := &fakeBackend{
		titles: map[string]string{"Movies": "id1"},
		values: [][]interface{}{{"Фильм", "Оценка"}, {"Дюна", "9"}},
	}
	c := New(fb, Ref{Kind: RefTitle, Value: "Movies"})
	c.now = func() time.Time { return time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC) }
	ctx := context.Background()

	recs, err := c.Records(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	_, err = c.Records(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, fb.valueCalls)
	assert.Equal(t, 1, fb.metaCalls)

	n, _, ok := c.CacheAge()
	assert.True(t, ok)
	assert.Equal(t, 1, n)

	require.NoError(t, c.Append(ctx, movie.Entry{Film: "Сияние", Year: "1980", Genre: "ужасы", Rating: "8", Type: movie.TypeFilm, Recommendation: movie.RecOK}))
	require.Len(t, fb.appended, 1)
	assert.Equal(t, []interface{}{"2024-05-01 12:30", "Сияние", "1980", "ужасы", "8", "", "фильм", "можно посмотреть", ""}, fb.appended[0])
	assert.Equal(t, "'Лист1'", fb.ranges[len(fb.ranges)-1])

	_, err = c.Records(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, fb.valueCalls)

	title, ws, err := c.Title(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Movies id1", title)
	assert.Equal(t, "Лист1", ws)
}

func TestClientMissingTitle(t *testing.T) {
	c := New(&fakeBackend{}, Ref{Kind: RefTitle, Value: "nope"})
	_, err := c.Records(context.Background())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestExplain(t *testing.T) {
	assert.Empty(t, Explain(nil, ""))
	assert.Contains(t, Explain(ErrNotFound, "bot@x.iam"), "bot@x.iam")
	forbidden := &googleapi.Error{Code: http.StatusForbidden, Message: "The caller does not have permission"}
	assert.Contains(t, Explain(forbidden, ""), "Поделитесь")
	disabled := &googleapi.Error{Code: http.StatusForbidden, Message: "Google Sheets API has not been used in project 1"}
	assert.Contains(t, Explain(disabled, ""), "не включен")
	assert.Contains(t, Explain(errors.New("boom"), ""), "boom")
}

func TestServiceAccountEmail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "creds.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"client_email":"bot@proj.iam.gserviceaccount.com"}`), 0o600))
	assert.Equal(t, "bot@proj.iam.gserviceaccount.com", ServiceAccountEmail(path))
	assert.Empty(t, ServiceAccountEmail(filepath.Join(t.TempDir(), "missing.json")))
}

func TestDriveQueryEscapes(t *testing.T) {
	tests := []struct {
		title string
		want  string
	}{
		{"Фильмы", `name = 'Фильмы'`},
		{"Rock'n'roll", `name = 'Rock\'n\'roll'`},
		{`a\b`, `name = 'a\\b'`},
		{`x\'`, `name = 'x\\\''`},
	}
	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			q := driveQuery(tt.title)
			assert.Contains(t, q, tt.want+" and mimeType = '"+spreadsheetMime+"'")
			assert.True(t, strings.HasSuffix(q, "trashed = false"))
		})
	}
}

func TestAppendStoresCellsAsTyped(t *testing.T) {
	assert.Equal(t, "RAW", valueInputOption)
}

func TestCallTimeoutKeepsCallerDeadline(t *testing.T) {
	parent, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	ctx, done := withCallTimeout(parent)
	defer done()
	want, _ := parent.Deadline()
	got, ok := ctx.Deadline()
	require.True(t, ok)
	assert.Equal(t, want, got)

	ctx, done = withCallTimeout(context.Background())
	defer done()
	got, ok = ctx.Deadline()
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(callTimeout), got, time.Second)
}
