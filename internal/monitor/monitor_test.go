package monitor

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRingKeepsNewestFirst(t *testing.T) {
	r := NewRing(3)
	for i := 0; i < 5; i++ {
		r.Record("tmdb", fmt.Errorf("err %d", i))
	}
	r.Record("", nil)

	events := r.Recent(10)
	require.Len(t, events, 3)
	assert.Equal(t, "err 4", events[0].Message)
	assert.Equal(t, "err 2", events[2].Message)
	assert.Empty(t, r.Recent(0))
}

func TestRingTruncatesMessage(t *testing.T) {
	r := NewRing(1)
	r.Record("  ", errors.New(strings.Repeat("x", 500)))
	events := r.Recent(1)
	require.Len(t, events, 1)
	assert.Equal(t, "unknown", events[0].Source)
	assert.Len(t, events[0].Message, 400)
}
