package index

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eliseohh/moviebot/internal/movie"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "nested", "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func rec(film, rating string) movie.Record {
	return movie.Record{Added: "2024-01-01 10:00", Film: film, Year: "2020", Genre: "драма", Rating: rating}
}

func TestSyncIsIdempotentAndPrunes(t *testing.T) {
	db := newTestDB(t)
	idx := NewIndexer(db, nil)
	ctx := context.Background()

	records := []movie.Record{rec("A", "7"), rec("B", "8"), rec("C", "9")}
	res, err := idx.Sync(ctx, records)
	require.NoError(t, err)
	assert.Equal(t, SyncResult{Added: 3}, res)

	res, err = idx.Sync(ctx, records)
	require.NoError(t, err)
	assert.Equal(t, SyncResult{Unchanged: 3}, res)

	changed := []movie.Record{rec("A", "7"), rec("B", "10")}
	res, err = idx.Sync(ctx, changed)
	require.NoError(t, err)
	assert.Equal(t, SyncResult{Changed: 1, Unchanged: 1, Removed: 1}, res)

	got, err := db.MirrorRecords(ctx)
	require.NoError(t, err)
	if diff := cmp.Diff(changed, got); diff != "" {
		t.Errorf("mirror mismatch (-want +got):\n%s", diff)
	}

	require.NoError(t, db.ResetMirror())
	got, err = db.MirrorRecords(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRowHashDiffers(t *testing.T) {
	assert.Equal(t, RowHash(rec("A", "7")), RowHash(rec("A", "7")))
	assert.NotEqual(t, RowHash(rec("A", "7")), RowHash(rec("A", "8")))
}

type fakeAppender struct {
	got    []string
	failOn string
}

func (f *fakeAppender) Append(_ context.Context, e movie.Entry) error {
	if e.Film == f.failOn {
		return errors.New("sheet down")
	}
	f.got = append(f.got, e.Film)
	return nil
}

func TestOfflineQueueFlushKeepsOrder(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	for i, film := range []string{"first", "second", "third"} {
		_, err := db.EnqueueOffline(ctx, movie.Entry{Film: film, Type: "series", Recommendation: "rec", Owner: "wife"}, int64(100+i%2))
		require.NoError(t, err)
	}
	n, err := db.OfflineCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	entries, err := db.OfflineEntries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, movie.TypeSeries, entries[0].Type)
	assert.Equal(t, movie.RecRecommend, entries[0].Recommendation)
	assert.Equal(t, movie.OwnerWife, entries[0].Owner)

	app := &fakeAppender{failOn: "third"}
	res, err := db.Flush(ctx, app)
	require.Error(t, err)
	assert.Equal(t, 2, res.Processed)
	assert.Equal(t, []int64{100, 101}, res.ChatIDs)
	assert.Equal(t, []string{"first", "second"}, app.got)

	n, err = db.OfflineCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	app.failOn = ""
	res, err = db.Flush(ctx, app)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Processed)
	assert.Equal(t, []string{"first", "second", "third"}, app.got)
}

func TestUsageAccumulatesAndResets(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.RecordUsage(ctx, "gemini", 100, 20))
	require.NoError(t, db.RecordUsage(ctx, "gemini", 50, 5))
	require.NoError(t, db.RecordUsage(ctx, "mistral", 10, -3))

	snap, err := db.UsageSnapshot(ctx)
	require.NoError(t, err)
	want := UsageSnapshot{
		Providers: []Usage{
			{Provider: "gemini", InputTokens: 150, OutputTokens: 25, Requests: 2},
			{Provider: "mistral", InputTokens: 10, OutputTokens: 0, Requests: 1},
		},
		Total: Usage{Provider: "total", InputTokens: 160, OutputTokens: 25, Requests: 3},
	}
	if diff := cmp.Diff(want, snap); diff != "" {
		t.Errorf("snapshot mismatch (-want +got):\n%s", diff)
	}

	require.NoError(t, db.ResetUsage(ctx))
	snap, err = db.UsageSnapshot(ctx)
	require.NoError(t, err)
	assert.Empty(t, snap.Providers)
	assert.Zero(t, snap.Total.Requests)
}
