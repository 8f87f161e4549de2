package movie

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestComputeStats(t *testing.T) {
	s := ComputeStats(sample())
	assert.Equal(t, 4, s.Total)
	assert.Equal(t, 4, s.Rated)
	assert.InDelta(t, 8.375, s.Mean, 1e-9)
	assert.Equal(t, 7.5, s.Min)
	assert.Equal(t, 9.0, s.Max)
	assert.Contains(t, s.Text(), "Средняя: 8.4/10")

	empty := ComputeStats([]Record{{Film: "x"}})
	assert.Contains(t, empty.Text(), "Пока нет оценок")
}

func TestWinner(t *testing.T) {
	month := time.Date(2024, 5, 1, 0, 0, 0, 0, time.Local)

	t.Run("wife wins quality, tie in activity", func(t *testing.T) {
		rep := Winner(sample(), month)
		assert.Equal(t, 1, rep.Husband.Count)
		assert.Equal(t, 1, rep.Wife.Count)
		assert.InDelta(t, 8.5, rep.Prior, 1e-9)
		// husband: 8.5 + (8-8.5)*0.2 = 8.4; wife: 8.5 + (9-8.5)*0.2 = 8.6
		assert.InDelta(t, 8.4, rep.Husband.Quality, 1e-9)
		assert.InDelta(t, 8.6, rep.Wife.Quality, 1e-9)
		text := rep.Text()
		assert.Contains(t, text, "Итоги месяца (май 2024)")
		assert.Contains(t, text, "победила жена (8.60 против 8.40)")
		assert.Contains(t, text, "Лига активности: ничья (1 предложений).")
	})

	t.Run("empty month", func(t *testing.T) {
		rep := Winner(sample(), month.AddDate(0, -6, 0))
		assert.Equal(t, 0, rep.Total())
		assert.True(t, strings.HasPrefix(rep.Text(), "🏁 Победитель месяца (ноябрь 2023)"))
	})

	t.Run("no ratings", func(t *testing.T) {
		records := []Record{{Added: "2024-05-02 10:00", Film: "x", Owner: "муж"}}
		rep := Winner(records, month)
		assert.Equal(t, 6.0, rep.Prior)
		assert.Contains(t, rep.Text(), "победитель не определен")
		assert.Contains(t, rep.Text(), "победил муж (1 против 0 предложений)")
		assert.Contains(t, rep.Text(), "средний нет оценок")
	})
}

func TestMonthStart(t *testing.T) {
	now := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2023, 12, 1, 0, 0, 0, 0, time.UTC), MonthStart(now, -1))
	assert.Equal(t, time.Date(2022, 11, 1, 0, 0, 0, 0, time.UTC), MonthStart(now, -14))
	assert.Equal(t, "январь 2024", MonthLabel(now))
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "Alien (—) — 8/10 • фильм • Ужасы, фантастика • муж", FormatEntry(sample()[0]))
	assert.Equal(t, "— (—) — —/10 • фильм • —", FormatEntry(Record{}))
	assert.Equal(t, "1 234 567", FormatInt(1234567))
	assert.Equal(t, "999", FormatInt(999))
	assert.Equal(t, "0", FormatInt(-5))
}
