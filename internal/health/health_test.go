package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eliseohh/moviebot/internal/index"
	"github.com/eliseohh/moviebot/internal/movie"
)

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	return rr
}

func TestEndpoints(t *testing.T) {
	db, err := index.NewDB(filepath.Join(t.TempDir(), "health.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	require.NoError(t, db.RecordUsage(ctx, "gemini", 120, 30))
	_, err = db.EnqueueOffline(ctx, movie.Entry{Film: "A", Year: "2020", Genre: "драма", Rating: "7"}, 1)
	require.NoError(t, err)

	s := New(db, nil)

	rr := get(t, s, "/healthz")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", rr.Body.String())

	rr = get(t, s, "/usage")
	require.Equal(t, http.StatusOK, rr.Code)
	var snap index.UsageSnapshot
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &snap))
	assert.Equal(t, int64(120), snap.Total.InputTokens)
	assert.Equal(t, int64(1), snap.Total.Requests)

	rr = get(t, s, "/offline")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"pending":1}`, rr.Body.String())

	assert.Equal(t, http.StatusNotFound, get(t, s, "/missing").Code)
}

type brokenStore struct{}

func (brokenStore) UsageSnapshot(context.Context) (index.UsageSnapshot, error) {
	return index.UsageSnapshot{}, errors.New("db closed")
}

func (brokenStore) OfflineCount(context.Context) (int, error) { return 0, errors.New("db closed") }

func TestStoreErrors(t *testing.T) {
	s := New(brokenStore{}, nil)
	assert.Equal(t, http.StatusInternalServerError, get(t, s, "/usage").Code)
	assert.Equal(t, http.StatusInternalServerError, get(t, s, "/offline").Code)
}
