package recommend

import (
	"time"

	"github.com/eliseohh/moviebot/internal/movie"
	"github.com/eliseohh/moviebot/internal/ttlcache"
)

const (
	recentTTL       = 24 * time.Hour
	recentMaxScopes = 500
	recentMaxTitles = 200
)

// RecentStore remembers recommended titles per chat scope for a day so
// follow-up requests suggest something else.
type RecentStore struct {
	cache *ttlcache.Cache[string, []string]
}

func NewRecentStore() *RecentStore {
	return &RecentStore{cache: ttlcache.New[string, []string](recentTTL, recentMaxScopes)}
}

func (s *RecentStore) Get(scope string) []string {
	titles, ok := s.cache.Get(scope)
	if !ok {
		return nil
	}
	return append([]string(nil), titles...)
}

// Add merges titles into the scope, dedupes them by normalized title, keeps
// the newest 200 and restarts the 24h expiry.
func (s *RecentStore) Add(scope string, titles []string) {
	if len(titles) == 0 {
		return
	}
	merged := append(s.Get(scope), titles...)
	var out []string
	seen := make(map[string]bool)
	for _, t := range merged {
		norm := movie.NormalizeTitle(t)
		if norm == "" || seen[norm] {
			continue
		}
		seen[norm] = true
		out = append(out, t)
	}
	if len(out) > recentMaxTitles {
		out = out[len(out)-recentMaxTitles:]
	}
	s.cache.Set(scope, out)
}
