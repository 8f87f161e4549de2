package recommend

import (
	"math/rand/v2"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eliseohh/moviebot/internal/catalog"
)

var now = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func TestBuildPromptProfileMode(t *testing.T) {
	got := BuildPrompt(PromptInput{
		Request:        "Recommend new movies based on my watch history and ratings.",
		Profile:        "Записей в таблице: 3",
		Candidates:     "- Джон Уик (2014)",
		Recent:         []string{"Дюна (2021)", "Довод (2020)"},
		RestrictToPool: true,
	})
	assert.True(t, strings.HasPrefix(got, "Task: recommend NEW movies"))
	assert.Contains(t, got, "User request:\nRecommend new movies based on my watch history and ratings.\n\n")
	assert.Contains(t, got, "already recently recommended):\nДюна (2021), Довод (2020)\n\n")
	assert.Contains(t, got, "Taste profile from Google Sheets:\nЗаписей в таблице: 3\n\n")
	assert.Contains(t, got, "TMDB candidate pool:\n- Джон Уик (2014)\n\n")
	assert.Contains(t, got, "select recommendations only from that pool")
	assert.True(t, strings.HasSuffix(got, "6) No markdown syntax (** or __)."))
}

func TestBuildPromptQueryMode(t *testing.T) {
	recent := make([]string, 50)
	for i := range recent {
		recent[i] = "t"
	}
	got := BuildPrompt(PromptInput{Request: "фильмы про остров", Profile: "p", Query: true, Recent: recent})
	assert.True(t, strings.HasPrefix(got, "Task: fulfill the exact user request"))
	assert.Contains(t, got, "TMDB candidate pool:\n"+NoCandidates)
	assert.NotContains(t, got, "only from that pool")
	assert.Contains(t, got, strings.Repeat("t, ", 39)+"t\n\n")
	assert.True(t, strings.HasSuffix(got, "7) No wildcard section and no markdown syntax (** or __)."))
}

func TestSinglePickPrompt(t *testing.T) {
	got := SinglePickPrompt("профиль", []string{"Матрица", "Начало"})
	assert.Contains(t, got, "Уже просмотрено: Матрица, Начало\n\n")
	assert.Contains(t, got, "Профиль вкуса:\nпрофиль\n\n")
	assert.True(t, strings.HasSuffix(got, "Без markdown."))
}

func TestFormatAnswer(t *testing.T) {
	answer := `Вот подборка:
1. **Дюна (2021)** - масштабная фантастика.
2) Довод (2020) - головоломка от Нолана
- Престиж (2006)
3. Старый фильм (1995) - слишком старый
4. Без года - пропускаем

Дикая карта:
Паразиты (2019) - неожиданный выбор & хороший`

	want := `<b>New Recommendations</b>
1. <b>Дюна (2021)</b> - масштабная фантастика
2. <b>Довод (2020)</b> - головоломка от Нолана
3. <b>Престиж (2006)</b> - matches your genres and ratings history

<b>Wildcard</b>
* <b>Паразиты (2019)</b> - неожиданный выбор &amp; хороший`
	if diff := cmp.Diff(want, FormatAnswer(answer)); diff != "" {
		t.Errorf("FormatAnswer mismatch (-want +got):\n%s", diff)
	}
}

func TestFormatAnswerEdgeCases(t *testing.T) {
	assert.Equal(t, "<b>New Recommendations</b>\nNo data.", FormatAnswer(" \n\n"))
	assert.Equal(t, noValidAnswers, FormatAnswer("1. Касабланка (1942) - классика"))

	var lines []string
	for i := 0; i < 10; i++ {
		lines = append(lines, "Фильм (2010) - причина")
	}
	got := FormatAnswer(strings.Join(lines, "\n"))
	assert.Len(t, strings.Split(got, "\n"), 9)
}

func TestYearOf(t *testing.T) {
	assert.Equal(t, 2014, YearOf("Джон Уик (2014)"))
	assert.Equal(t, 0, YearOf("Джон Уик"))
	assert.Equal(t, 0, YearOf("Будущее (3000)"))
}

func TestQuickAdds(t *testing.T) {
	formatted := FormatAnswer("1. Дюна (2021) - a\n2. Дюна (2021) - b\n3. Очень длинное название фильма для кнопки (2015) - c")
	buttons, titles := QuickAdds(formatted, now)
	assert.Equal(t, []string{"Дюна (2021)", "Очень длинное название фильма для кнопки (2015)"}, titles)
	require.Len(t, buttons, 2)
	assert.Equal(t, QuickAdd{Label: "➕ 1. Дюна", Prefill: "/add Дюна;2021;жанр;8"}, buttons[0])
	assert.Equal(t, "➕ 2. Очень длинное название фильма д…", buttons[1].Label)

	none, _ := QuickAdds("<b>New Recommendations</b>\nNo data.", now)
	assert.Empty(t, none)
}

func TestPrefill(t *testing.T) {
	assert.Equal(t, "/add Кошки, собаки;2025;жанр;8", Prefill("Кошки; собаки", 0, now))
	assert.Equal(t, "/add Название;1999;жанр;8", Prefill(" (1999) ", 1999, now))
	long := Prefill(strings.Repeat("я", 300), 2001, now)
	assert.Equal(t, 220, len([]rune(long)))
}

func TestRenderAndRestrictToPool(t *testing.T) {
	pool := []catalog.Candidate{
		{Title: "Джон Уик", Year: 2014, Reason: "совпадают жанры: Боевик"},
		{Title: "Престиж", Reason: ""},
	}

	formatted := FormatAnswer("1. Выдумка (2020) - нет в пуле\n2. Престиж (2006) - фокусы\n3. Джон Уик (2014) - боевик\n4. Джон Уик (2014) - повтор")
	got := RestrictToPool(formatted, pool, 8, now)
	want := "<b>New Recommendations</b>\n" +
		"1. <b>Престиж (2006)</b> - matches your genres and ratings history\n" +
		"2. <b>Джон Уик (2014)</b> - совпадают жанры: Боевик"
	assert.Equal(t, want, got)

	fallback := RestrictToPool(FormatAnswer("1. Выдумка (2020) - нет"), pool, 8, now)
	assert.Equal(t, "<b>New Recommendations</b>\n"+
		"1. <b>Джон Уик (2014)</b> - совпадают жанры: Боевик\n"+
		"2. <b>Престиж (2025)</b> - matches your genres and ratings history", fallback)

	assert.Equal(t, formatted, RestrictToPool(formatted, nil, 8, now))
	assert.Equal(t, noValidAnswers, RenderCandidates(nil, 8, now))
}

func TestClip(t *testing.T) {
	assert.Equal(t, "абв", Clip("абв", 3))
	assert.Equal(t, "аб...", Clip("аб вг", 3))
}

func TestFilters(t *testing.T) {
	cs := []catalog.Candidate{
		{Title: "Новый", Year: 2015},
		{Title: "Старый", Year: 1990},
		{Title: "Без года"},
		{Title: "Дюна", Year: 2021},
	}
	got := Exclude(FilterMinYear(cs, MinYear), []string{"дюна (2021)"})
	require.Len(t, got, 1)
	assert.Equal(t, "Новый", got[0].Title)
	assert.Equal(t, cs, Exclude(cs, nil))
}

func TestWeightedPick(t *testing.T) {
	cs := []catalog.Candidate{{Title: "a", Score: 0}, {Title: "b", Score: 100}}
	rnd := rand.New(rand.NewPCG(1, 2))
	counts := map[string]int{}
	for i := 0; i < 1000; i++ {
		counts[WeightedPick(cs, rnd).Title]++
	}
	assert.Greater(t, counts["b"], 950)

	var many []catalog.Candidate
	for i := 0; i < 50; i++ {
		many = append(many, catalog.Candidate{ID: i, Score: 1})
	}
	for i := 0; i < 200; i++ {
		assert.Less(t, WeightedPick(many, rnd).ID, 35)
	}
	assert.Equal(t, "only", WeightedPick([]catalog.Candidate{{Title: "only"}}, nil).Title)
}

func TestParseSinglePick(t *testing.T) {
	title, reason := ParseSinglePick("Рекомендация:\n1. **Дюна (2021)** - эпичная фантастика.")
	assert.Equal(t, "Дюна (2021)", title)
	assert.Equal(t, "эпичная фантастика", reason)

	title, reason = ParseSinglePick("Паразиты (2019)")
	assert.Equal(t, "Паразиты (2019)", title)
	assert.Empty(t, reason)

	title, _ = ParseSinglePick("\n\n")
	assert.Empty(t, title)

	assert.True(t, AcceptSinglePick("Дюна (2021)", []string{"Матрица"}))
	assert.False(t, AcceptSinglePick("Дюна (2021)", []string{"дюна"}))
	assert.False(t, AcceptSinglePick("Касабланка (1942)", nil))
	assert.False(t, AcceptSinglePick("Дюна", nil))
}

func TestRecentStore(t *testing.T) {
	s := NewRecentStore()
	assert.Empty(t, s.Get("1:2"))

	s.Add("1:2", []string{"Дюна (2021)", "Довод"})
	s.Add("1:2", []string{"дюна", "Престиж"})
	s.Add("1:2", nil)
	assert.Equal(t, []string{"Дюна (2021)", "Довод", "Престиж"}, s.Get("1:2"))
	assert.Empty(t, s.Get("3:4"))

	var many []string
	for i := 0; i < 250; i++ {
		many = append(many, "Фильм "+strings.Repeat("x", i+1))
	}
	s.Add("5:6", many)
	got := s.Get("5:6")
	assert.Len(t, got, 200)
	assert.Equal(t, many[50], got[0])
}
