package request

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Name string `json:"name"`
}

func TestJSONRetriesTransientStatus(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		assert.Equal(t, "secret", r.URL.Query().Get("api_key"))
		assert.Equal(t, "v", r.Header.Get("X-Test"))
		io.WriteString(w, `{"name":"ok"}`)
	}))
	defer ts.Close()

	got, err := JSON[payload](context.Background(), Params{
		URL:        ts.URL,
		Query:      url.Values{"api_key": {"secret"}},
		Headers:    map[string]string{"X-Test": "v"},
		MaxRetries: 3,
		BaseDelay:  time.Millisecond,
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", got.Name)
	assert.EqualValues(t, 3, calls.Load())
}

func TestJSONDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad key secret", http.StatusUnauthorized)
	}))
	defer ts.Close()

	_, err := JSON[payload](context.Background(), Params{
		URL:        ts.URL,
		MaxRetries: 3,
		BaseDelay:  time.Millisecond,
		Source:     "tmdb",
		Scrubber:   strings.NewReplacer("secret", "[redacted]"),
	})
	require.Error(t, err)
	assert.EqualValues(t, 1, calls.Load())

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusUnauthorized, se.Code)
	assert.NotContains(t, err.Error(), "secret")
	assert.Contains(t, err.Error(), "tmdb: HTTP 401")
}

func TestJSONPostBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		b, _ := io.ReadAll(r.Body)
		w.Write(b)
	}))
	defer ts.Close()

	got, err := JSON[payload](context.Background(), Params{Method: http.MethodPost, URL: ts.URL + "?a=1", Body: payload{Name: "echo"}})
	require.NoError(t, err)
	assert.Equal(t, "echo", got.Name)
}

func TestBackoff(t *testing.T) {
	assert.Equal(t, 100*time.Millisecond, Backoff(100*time.Millisecond, 1))
	assert.Equal(t, 400*time.Millisecond, Backoff(100*time.Millisecond, 3))
	assert.Equal(t, 500*time.Millisecond, Backoff(0, 0))
	assert.True(t, Retryable(429))
	assert.False(t, Retryable(404))
}

func TestSleepHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Sleep(ctx, time.Hour), context.Canceled)
}
