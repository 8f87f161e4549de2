package bot

import (
	"context"
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	tele "gopkg.in/telebot.v3"

	"github.com/eliseohh/moviebot/internal/catalog"
	"github.com/eliseohh/moviebot/internal/logging"
	"github.com/eliseohh/moviebot/internal/monitor"
	"github.com/eliseohh/moviebot/internal/movie"
	"github.com/eliseohh/moviebot/internal/neural"
)

const posterPrompt = "Определи фильм или сериал по изображению постера.\n" +
	"Ответ верни строго JSON без пояснений:\n" +
	`{"title":"...", "year":"....", "media_type":"movie|series|unknown", ` +
	`"confidence":0-100, "reason":"кратко"}` + "\n" +
	"Если не уверен, оставь title пустым."

var posterOptions = neural.Options{Temperature: 0.1, MaxTokens: 300}

// posterMatch is what the model recognized on a poster.
type posterMatch struct {
	Title      string
	Year       int
	MediaType  string
	Confidence float64
	Reason     string
}

func parsePosterMatch(fields map[string]any) posterMatch {
	m := posterMatch{
		Title:     jsonField(fields, "title"),
		MediaType: strings.ToLower(jsonField(fields, "media_type")),
		Reason:    jsonField(fields, "reason"),
	}
	if y := jsonField(fields, "year"); movie.ValidYear(y) {
		m.Year, _ = strconv.Atoi(y)
	}
	if c, err := strconv.ParseFloat(jsonField(fields, "confidence"), 64); err == nil {
		m.Confidence = c
	}
	if m.MediaType == "" {
		m.MediaType = "unknown"
	}
	return m
}

func posterTypeLabel(mediaType string) string {
	switch mediaType {
	case "movie":
		return photoTypeMovie
	case "series":
		return photoTypeSeries
	}
	return photoTypeUnknown
}

// posterReport renders the recognition card and the entry stored for the
// "add to watched" button.
func posterReport(m posterMatch, d catalog.Details, found bool, now time.Time) (string, movie.Entry) {
	yearLabel := ""
	if m.Year > 0 {
		yearLabel = fmt.Sprintf(" (%d)", m.Year)
	}
	lines := []string{
		fmt.Sprintf(photoFoundTemplate, html.EscapeString(m.Title), yearLabel),
		"Тип: " + html.EscapeString(posterTypeLabel(m.MediaType)),
	}
	if m.Confidence > 0 {
		lines = append(lines, fmt.Sprintf("Уверенность Gemini: %.0f%%", m.Confidence))
	}
	if m.Reason != "" {
		lines = append(lines, "Почему: "+html.EscapeString(m.Reason))
	}

	year := m.Year
	var imdb float64
	if found {
		if d.Genre != "" {
			lines = append(lines, "Жанры: "+html.EscapeString(d.Genre))
		}
		if imdb = movie.ParseRating(d.IMDbRating); imdb > 0 {
			lines = append(lines, fmt.Sprintf("IMDb: %.1f/10", imdb))
		}
		if d.Plot != "" {
			lines = append(lines, "Сюжет: "+html.EscapeString(clipRunes(d.Plot, plotPreview)))
		}
		if year == 0 {
			year = voiceYearValue(d.Year)
		}
	}

	prefill := movie.Entry{
		Film:    m.Title,
		Comment: m.Reason,
	}
	if year > 0 {
		prefill.Year = strconv.Itoa(year)
	}
	if found {
		prefill.Genre = d.Genre
	}
	if imdb > 0 {
		prefill.Rating = strconv.FormatFloat(imdb, 'g', -1, 64)
	}
	switch m.MediaType {
	case "movie", "series", "film", "фильм", "сериал":
		prefill.Type = movie.NormalizeType(m.MediaType)
	}

	quickYear := prefill.Year
	if quickYear == "" {
		quickYear = strconv.Itoa(now.Year())
	}
	lines = append(lines, "", fmt.Sprintf(photoQuickAdd,
		html.EscapeString(cleanVoiceText(prefill.Film)),
		quickYear,
		html.EscapeString(cleanVoiceText(orValue(prefill.Genre, "жанр"))),
		orValue(prefill.Rating, "8"),
	))
	return strings.Join(lines, "\n"), prefill
}

func voiceYearValue(s string) int {
	y, _ := strconv.Atoi(voiceYear(s))
	if y < 1888 || y > 2100 {
		return 0
	}
	return y
}

func (b *Bot) handlePhoto(c tele.Context) error {
	photo := c.Message().Photo
	if photo == nil {
		return c.Send(msgPhotoNotFound)
	}
	if !b.visionEnabled() {
		return c.Send(msgPhotoNeedsKey)
	}
	b.typing(c)

	ctx, cancel := context.WithTimeout(context.Background(), voiceTimeout)
	defer cancel()

	image, err := b.download(&photo.File)
	if err != nil {
		logging.LogError(b.logger, "photo download failed", err)
		return c.Send(msgPhotoDownload)
	}
	answer, err := b.gemini.DescribeImage(ctx, image, posterPrompt, posterOptions)
	if err != nil {
		monitor.Record("gemini", err)
		logging.LogError(b.logger, "poster recognition failed", err)
		return c.Send(msgPhotoUnavailable)
	}

	var fields map[string]any
	if err := neural.DecodeJSON(answer, &fields); err != nil {
		return c.Send(msgPhotoParseFailed)
	}
	match := parsePosterMatch(fields)
	if match.Title == "" {
		return c.Send(msgPhotoTitleUnsure)
	}

	details, found := b.catalog.Lookup(ctx, match.Title, match.Year)
	text, prefill := posterReport(match, details, found, b.now())
	b.sessions.setPrefill(chatID(c), prefill)
	return b.sendHTML(c, text, inline(row(btn(btnPhotoAddWatched, cbAddFromPoster))))
}
