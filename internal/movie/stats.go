package movie

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/montanaflynn/stats"
)

type Stats struct {
	Total int
	Rated int
	Mean  float64
	Min   float64
	Max   float64
}

// ComputeStats summarizes positive ratings.
func ComputeStats(records []Record) Stats {
	var ratings stats.Float64Data
	for _, r := range records {
		if v := r.RatingValue(); v > 0 {
			ratings = append(ratings, v)
		}
	}
	s := Stats{Total: len(records), Rated: len(ratings)}
	if len(ratings) == 0 {
		return s
	}
	s.Mean, _ = ratings.Mean()
	s.Min, _ = ratings.Min()
	s.Max, _ = ratings.Max()
	return s
}

func (s Stats) Text() string {
	var b strings.Builder
	b.WriteString("📉 Статистика по оценкам:\n")
	fmt.Fprintf(&b, "Всего записей: %d\n", s.Total)
	if s.Rated == 0 {
		b.WriteString("Пока нет оценок для расчета статистики.")
		return b.String()
	}
	fmt.Fprintf(&b, "С оценкой: %d\n", s.Rated)
	fmt.Fprintf(&b, "Средняя: %.1f/10\n", s.Mean)
	fmt.Fprintf(&b, "Мин: %.1f/10\n", s.Min)
	fmt.Fprintf(&b, "Макс: %.1f/10", s.Max)
	return b.String()
}

// OwnerMonth is one side of the monthly league.
type OwnerMonth struct {
	Count     int
	Rated     int
	RatingSum float64
	Quality   float64
}

func (o OwnerMonth) Average() (float64, bool) {
	if o.Rated == 0 {
		return 0, false
	}
	return o.RatingSum / float64(o.Rated), true
}

type WinnerReport struct {
	Month   time.Time
	Husband OwnerMonth
	Wife    OwnerMonth
	Prior   float64
}

func (w WinnerReport) Total() int { return w.Husband.Count + w.Wife.Count }

// MonthStart returns the first day of the month offset months away from now.
func MonthStart(now time.Time, offset int) time.Time {
	return time.Date(now.Year(), now.Month()+time.Month(offset), 1, 0, 0, 0, 0, now.Location())
}

var monthNames = [...]string{
	"январь", "февраль", "март", "апрель", "май", "июнь",
	"июль", "август", "сентябрь", "октябрь", "ноябрь", "декабрь",
}

func MonthLabel(t time.Time) string {
	return fmt.Sprintf("%s %d", monthNames[t.Month()-1], t.Year())
}

// Winner computes the husband vs wife league for the month of month.
// Quality is the owner mean shrunk towards the month mean until five rated entries.
func Winner(records []Record, month time.Time) WinnerReport {
	rep := WinnerReport{Month: month}
	for _, r := range records {
		var side *OwnerMonth
		switch NormalizeOwner(r.Owner) {
		case OwnerHusband:
			side = &rep.Husband
		case OwnerWife:
			side = &rep.Wife
		default:
			continue
		}
		t, ok := r.AddedAt()
		if !ok || t.Year() != month.Year() || t.Month() != month.Month() {
			continue
		}
		side.Count++
		if v := r.RatingValue(); v > 0 {
			side.Rated++
			side.RatingSum += v
		}
	}

	rep.Prior = 6.0
	if rated := rep.Husband.Rated + rep.Wife.Rated; rated > 0 {
		rep.Prior = (rep.Husband.RatingSum + rep.Wife.RatingSum) / float64(rated)
	}
	rep.Husband.Quality = quality(rep.Husband, rep.Prior)
	rep.Wife.Quality = quality(rep.Wife, rep.Prior)
	return rep
}

func quality(o OwnerMonth, prior float64) float64 {
	avg, ok := o.Average()
	if !ok {
		return 0
	}
	confidence := math.Min(float64(o.Rated)/5.0, 1.0)
	return prior + (avg-prior)*confidence
}

func (w WinnerReport) Text() string {
	label := MonthLabel(w.Month)
	if w.Total() == 0 {
		return fmt.Sprintf("🏁 Победитель месяца (%s):\nЗа выбранный месяц нет фильмов с владельцем «муж» или «жена».", label)
	}

	qh, qw := w.Husband.Quality, w.Wife.Quality
	var qualityLine string
	switch {
	case qh <= 0 && qw <= 0:
		qualityLine = "Лига качества: победитель не определен (нет оценок)."
	case math.Abs(qh-qw) < 1e-9:
		qualityLine = fmt.Sprintf("Лига качества: ничья (%.2f).", qh)
	case qh > qw:
		qualityLine = fmt.Sprintf("Лига качества: победил муж (%.2f против %.2f).", qh, qw)
	default:
		qualityLine = fmt.Sprintf("Лига качества: победила жена (%.2f против %.2f).", qw, qh)
	}

	ah, aw := w.Husband.Count, w.Wife.Count
	var activityLine string
	switch {
	case ah == aw:
		activityLine = fmt.Sprintf("Лига активности: ничья (%d предложений).", ah)
	case ah > aw:
		activityLine = fmt.Sprintf("Лига активности: победил муж (%d против %d предложений).", ah, aw)
	default:
		activityLine = fmt.Sprintf("Лига активности: победила жена (%d против %d предложений).", aw, ah)
	}

	avgText := func(o OwnerMonth) string {
		if avg, ok := o.Average(); ok {
			return fmt.Sprintf("%.2f/10", avg)
		}
		return "нет оценок"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🏁 Итоги месяца (%s):\n%s\n%s\n\n", label, qualityLine, activityLine)
	b.WriteString("Статистика за выбранный месяц:\n")
	fmt.Fprintf(&b, "• Муж: предложил %d, оценок %d, средний %s, качество %.2f\n",
		w.Husband.Count, w.Husband.Rated, avgText(w.Husband), qh)
	fmt.Fprintf(&b, "• Жена: предложила %d, оценок %d, средний %s, качество %.2f\n\n",
		w.Wife.Count, w.Wife.Rated, avgText(w.Wife), qw)
	b.WriteString("Качество = средний балл с поправкой на размер выборки.")
	return b.String()
}
