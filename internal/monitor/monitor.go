// Package monitor keeps the most recent external-service errors for /diag.
package monitor

import (
	"strings"
	"sync"
	"time"
)

const maxEvents = 100

type Event struct {
	Time    time.Time
	Source  string
	Message string
}

type Ring struct {
	mu     sync.Mutex
	max    int
	events []Event // newest first
}

func NewRing(max int) *Ring {
	if max <= 0 {
		max = maxEvents
	}
	return &Ring{max: max}
}

var defaultRing = NewRing(maxEvents)

// Default returns the process-wide ring.
func Default() *Ring { return defaultRing }

// Record stores err under source in the default ring.
func Record(source string, err error) {
	defaultRing.Record(source, err)
}

func (r *Ring) Record(source string, err error) {
	if err == nil {
		return
	}
	source = strings.TrimSpace(source)
	if source == "" {
		source = "unknown"
	}
	msg := strings.TrimSpace(err.Error())
	if len(msg) > 400 {
		msg = msg[:400]
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append([]Event{{Time: time.Now().UTC(), Source: source, Message: msg}}, r.events...)
	if len(r.events) > r.max {
		r.events = r.events[:r.max]
	}
}

// Recent returns up to limit events, newest first.
func (r *Ring) Recent(limit int) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	if limit > len(r.events) {
		limit = len(r.events)
	}
	if limit <= 0 {
		return nil
	}
	out := make([]Event, limit)
	copy(out, r.events[:limit])
	return out
}
