package movie

import (
	"sort"
	"strings"
	"time"
)

// FilterByGenre keeps records whose genre cell contains genre, case-insensitively.
func FilterByGenre(records []Record, genre string) []Record {
	needle := strings.ToLower(strings.TrimSpace(genre))
	if needle == "" {
		return nil
	}
	var out []Record
	for _, r := range records {
		if strings.Contains(strings.ToLower(r.Genre), needle) {
			out = append(out, r)
		}
	}
	return out
}

// SearchTitle keeps records whose title contains query, case-insensitively.
func SearchTitle(records []Record, query string) []Record {
	needle := strings.ToLower(strings.TrimSpace(query))
	if needle == "" {
		return nil
	}
	var out []Record
	for _, r := range records {
		if strings.Contains(strings.ToLower(r.Film), needle) {
			out = append(out, r)
		}
	}
	return out
}

// FilterByOwner keeps records whose normalized owner equals owner.
func FilterByOwner(records []Record, owner string) []Record {
	var out []Record
	for _, r := range records {
		if NormalizeOwner(r.Owner) == owner {
			out = append(out, r)
		}
	}
	return out
}

// TopByRating sorts by rating then title, both descending, and keeps n.
func TopByRating(records []Record, n int) []Record {
	out := make([]Record, len(records))
	copy(out, records)
	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := out[i].RatingValue(), out[j].RatingValue()
		if ri != rj {
			return ri > rj
		}
		return out[i].Film > out[j].Film
	})
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// Recent keeps records added within window before now, in sheet order.
func Recent(records []Record, now time.Time, window time.Duration) []Record {
	cutoff := now.Add(-window)
	var out []Record
	for _, r := range records {
		if t, ok := r.AddedAt(); ok && !t.Before(cutoff) {
			out = append(out, r)
		}
	}
	return out
}

// SortByAdded puts stamped records newest first, followed by unstamped ones
// in their original order. With no stamped records the input order is kept.
func SortByAdded(records []Record) []Record {
	type stamped struct {
		at  time.Time
		rec Record
	}
	var withStamp []stamped
	var without []Record
	for _, r := range records {
		if t, ok := r.AddedAt(); ok {
			withStamp = append(withStamp, stamped{t, r})
		} else {
			without = append(without, r)
		}
	}
	if len(withStamp) == 0 {
		out := make([]Record, len(records))
		copy(out, records)
		return out
	}
	sort.SliceStable(withStamp, func(i, j int) bool { return withStamp[i].at.After(withStamp[j].at) })
	out := make([]Record, 0, len(records))
	for _, s := range withStamp {
		out = append(out, s.rec)
	}
	return append(out, without...)
}

// WatchedTitles returns the set of normalized titles in the library.
func WatchedTitles(records []Record) map[string]struct{} {
	out := make(map[string]struct{}, len(records))
	for _, r := range records {
		if key := NormalizeTitle(r.Film); key != "" {
			out[key] = struct{}{}
		}
	}
	return out
}
