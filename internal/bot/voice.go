package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	tele "gopkg.in/telebot.v3"

	"github.com/eliseohh/moviebot/internal/logging"
	"github.com/eliseohh/moviebot/internal/monitor"
	"github.com/eliseohh/moviebot/internal/movie"
	"github.com/eliseohh/moviebot/internal/neural"
)

const (
	voiceTimeout      = 2 * time.Minute
	transcriptPreview = 200
	voiceFileName     = "voice.ogg"
)

var extractOptions = neural.Options{Temperature: 0.1, MaxTokens: 300}

var (
	voiceYearRe     = regexp.MustCompile(`\b(19\d{2}|20\d{2}|2100)\b`)
	voiceNumberRe   = regexp.MustCompile(`\d+(?:\.\d+)?`)
	voiceSpaceRe    = regexp.MustCompile(`\s+`)
	sentenceSplitRe = regexp.MustCompile(`[.!?]+`)
	commentMarkerRe = regexp.MustCompile(`(?i)коммент\p{L}*`)
	ownerHusbandRe  = regexp.MustCompile(`(?i)(?:^|[^\p{L}])(муж|husband)(?:$|[^\p{L}])`)
	ownerWifeRe     = regexp.MustCompile(`(?i)(?:^|[^\p{L}])(жена|wife)(?:$|[^\p{L}])`)
)

// fillerWords are dropped from the start of a comment fragment.
var fillerWords = map[string]bool{
	"и": true, "ну": true, "короче": true, "вот": true, "это": true,
	"будет": true, "мой": true, "типа": true,
}

var instructionHints = []string{
	"фильм", "сериал", "называ", "оценк", "рейтинг", "жанр", "год",
	"добав", "постав", "рекоменд", "муж", "жена", "owner",
}

func extractPrompt(text string) string {
	return "Извлеки данные фильма из текста и верни строго JSON без markdown.\n" +
		"Ключевое: все фразы с впечатлениями/эмоциями/оценочными словами относить в поле comment.\n" +
		"Если слышно разговорный мусор (ну, короче, типа) - игнорируй его.\n" +
		"Если явно сказано кто добавил (муж/жена), заполни owner.\n" +
		"Если year/genre не названы, но фильм общеизвестный, заполни по известным данным.\n" +
		"Формат JSON:\n" +
		`{"film":"", "year":"", "genre":"", "rating":"", "comment":"", ` +
		`"type":"film|series", "recommendation":"рекомендую|можно посмотреть|в топку", ` +
		`"owner":"муж|жена|"}` + "\n" +
		"Если поля нет, оставь пустую строку.\n\n" +
		"Текст:\n" + text
}

// cleanVoiceText turns ";" into "," so the value fits the add payload and
// collapses whitespace.
func cleanVoiceText(s string) string {
	s = strings.ReplaceAll(strings.TrimSpace(s), ";", ",")
	return strings.TrimSpace(voiceSpaceRe.ReplaceAllString(s, " "))
}

func voiceYear(s string) string {
	raw := cleanVoiceText(s)
	if movie.ValidYear(raw) {
		return raw
	}
	if m := voiceYearRe.FindStringSubmatch(raw); m != nil {
		return m[1]
	}
	return ""
}

func voiceRating(s string) string {
	return voiceNumberRe.FindString(strings.ReplaceAll(cleanVoiceText(s), ",", "."))
}

// jsonField returns the first non-empty value among keys as text.
func jsonField(m map[string]any, keys ...string) string {
	for _, k := range keys {
		var s string
		switch v := m[k].(type) {
		case nil:
			continue
		case string:
			s = v
		case float64:
			s = strconv.FormatFloat(v, 'g', -1, 64)
		case []any:
			parts := make([]string, 0, len(v))
			for _, p := range v {
				parts = append(parts, fmt.Sprint(p))
			}
			s = strings.Join(parts, ", ")
		default:
			s = fmt.Sprint(v)
		}
		if s = cleanVoiceText(s); s != "" {
			return s
		}
	}
	return ""
}

// entryFromFields maps the extraction JSON onto an entry. Optional fields
// stay empty when absent so the catalog can fill them.
func entryFromFields(m map[string]any) movie.Entry {
	e := movie.Entry{
		Film:    jsonField(m, "film", "title"),
		Year:    voiceYear(jsonField(m, "year")),
		Genre:   jsonField(m, "genre", "genres"),
		Rating:  voiceRating(jsonField(m, "rating")),
		Comment: jsonField(m, "comment"),
		Owner:   movie.NormalizeOwner(jsonField(m, "owner")),
	}
	if t := jsonField(m, "type", "media_type"); t != "" {
		e.Type = movie.NormalizeType(t)
	}
	if r := jsonField(m, "recommendation"); r != "" {
		e.Recommendation = movie.NormalizeRecommendation(r)
	}
	return e
}

func inferOwner(transcript string) string {
	switch {
	case ownerHusbandRe.MatchString(transcript):
		return movie.OwnerHusband
	case ownerWifeRe.MatchString(transcript):
		return movie.OwnerWife
	}
	return ""
}

func looksLikeInstruction(s string) bool {
	lowered := strings.ToLower(strings.TrimSpace(s))
	if lowered == "" {
		return false
	}
	for _, h := range instructionHints {
		if strings.Contains(lowered, h) {
			return true
		}
	}
	return false
}

func commentFragment(s string) string {
	s = commentMarkerRe.ReplaceAllString(cleanVoiceText(s), "")
	words := strings.Fields(s)
	for len(words) > 0 {
		w := strings.ToLower(strings.Trim(words[0], ",.-:"))
		if w == "" || fillerWords[w] {
			words = words[1:]
			continue
		}
		if w == "не" && len(words) > 1 && strings.HasPrefix(strings.ToLower(words[1]), "знаю") {
			words = words[2:]
			continue
		}
		break
	}
	return strings.Trim(strings.Join(words, " "), " ,.-:")
}

// inferComment looks for the "комментарий" marker and takes the text around
// it, then the closest earlier sentence that is not an instruction.
func inferComment(transcript string) string {
	var sentences []string
	for _, s := range sentenceSplitRe.Split(cleanVoiceText(transcript), -1) {
		if s = strings.Trim(s, " ,.-:"); s != "" {
			sentences = append(sentences, s)
		}
	}
	for i, sentence := range sentences {
		loc := commentMarkerRe.FindStringIndex(sentence)
		if loc == nil {
			continue
		}
		if before := commentFragment(sentence[:loc[0]]); before != "" && !looksLikeInstruction(before) {
			return before
		}
		if after := commentFragment(sentence[loc[1]:]); after != "" && !looksLikeInstruction(after) {
			return after
		}
		for j := i - 1; j >= 0; j-- {
			if prev := commentFragment(sentences[j]); prev != "" && !looksLikeInstruction(prev) {
				return prev
			}
		}
	}
	return ""
}

// mergeEntries overlays the non-empty fields of patch on base.
func mergeEntries(base, patch movie.Entry) movie.Entry {
	set := func(dst *string, v string) {
		if v = cleanVoiceText(v); v != "" {
			*dst = v
		}
	}
	set(&base.Film, patch.Film)
	set(&base.Year, patch.Year)
	set(&base.Genre, patch.Genre)
	set(&base.Rating, patch.Rating)
	set(&base.Comment, patch.Comment)
	set(&base.Type, patch.Type)
	set(&base.Recommendation, patch.Recommendation)
	set(&base.Owner, patch.Owner)
	return base
}

// autofill completes year, genre and type from the catalog when the year or
// the genre was not named.
func (b *Bot) autofill(ctx context.Context, e movie.Entry) movie.Entry {
	if strings.TrimSpace(e.Film) == "" {
		return e
	}
	year := voiceYear(e.Year)
	e.Year = year
	if year != "" && strings.TrimSpace(e.Genre) != "" {
		return e
	}
	yearValue, _ := strconv.Atoi(year)
	d, ok := b.catalog.Lookup(ctx, e.Film, yearValue)
	if !ok {
		return e
	}
	if year == "" {
		e.Year = voiceYear(d.Year)
	}
	if strings.TrimSpace(e.Genre) == "" {
		if g := cleanVoiceText(d.Genre); g != "" {
			e.Genre = g
		}
	}
	if e.Type == "" && d.Type != "" {
		e.Type = movie.NormalizeType(d.Type)
	}
	return e
}

// extractEntry asks Mistral to structure free text into an entry and fills
// the gaps from the catalog and the text itself.
func (b *Bot) extractEntry(ctx context.Context, text string) (movie.Entry, error) {
	answer, err := b.mistral.Generate(ctx, extractPrompt(text), extractOptions)
	if err != nil {
		return movie.Entry{}, err
	}
	var fields map[string]any
	if err := neural.DecodeJSON(answer, &fields); err != nil {
		return movie.Entry{}, err
	}
	e := b.autofill(ctx, entryFromFields(fields))
	if e.Comment == "" {
		e.Comment = inferComment(text)
	}
	if e.Owner == "" {
		e.Owner = inferOwner(text)
	}
	return e, nil
}

func (b *Bot) handleVoice(c tele.Context) error {
	id := chatID(c)
	existing, has := b.sessions.get(id)

	if !b.speechEnabled() {
		return c.Send(msgVoiceNeedsKey)
	}
	voice := c.Message().Voice
	if voice == nil {
		return c.Send(msgVoiceTranscribe)
	}
	b.typing(c)

	ctx, cancel := context.WithTimeout(context.Background(), voiceTimeout)
	defer cancel()

	audio, err := b.download(&voice.File)
	if err != nil {
		logging.LogError(b.logger, "voice download failed", err)
		return c.Send(msgVoiceTranscribe)
	}
	transcript, err := b.mistral.Transcribe(ctx, audio, voiceFileName)
	if err != nil {
		monitor.Record("mistral", err)
		logging.LogError(b.logger, "voice transcription failed", err)
		if has {
			existing.step = stepVoiceClarify
			b.sessions.put(id, existing)
		}
		return c.Send(msgVoiceTranscribe)
	}

	preview := clipRunes(transcript, transcriptPreview)
	_ = c.Send(fmt.Sprintf(msgVoiceRecognized, preview))

	partial, err := b.extractEntry(ctx, transcript)
	if err != nil {
		logging.LogError(b.logger, "voice parse failed", err, slog.Int64("chat", id))
		if has {
			return b.promptClarify(c, existing.entry, preview)
		}
		return c.Send(msgVoiceParseFailed)
	}
	var base movie.Entry
	if has {
		base = existing.entry
	}
	return b.applyPartial(c, base, partial, preview)
}

// applyPartial merges a parsed fragment into the entry and shows the preview
// once the required fields are valid.
func (b *Bot) applyPartial(c tele.Context, base, patch movie.Entry, preview string) error {
	merged := mergeEntries(base, patch)
	entry, err := movie.ParsePayload(merged.Payload())
	if err != nil {
		if errors.Is(err, movie.ErrMissingFields) || errors.Is(err, movie.ErrInvalidYear) || errors.Is(err, movie.ErrInvalidRating) {
			return b.promptClarify(c, merged, preview)
		}
		b.sessions.clear(chatID(c))
		return c.Send(msgVoiceParseFailed)
	}
	return b.showPreview(c, entry)
}

func (b *Bot) promptClarify(c tele.Context, e movie.Entry, preview string) error {
	b.sessions.put(chatID(c), session{step: stepVoiceClarify, entry: e})
	missing := "обязательные поля"
	if labels := e.Missing(); len(labels) > 0 {
		missing = strings.Join(labels, ", ")
	}
	text := fmt.Sprintf(msgVoiceClarify, missing)
	if preview != "" {
		text += "\n\nТранскрипт: " + preview
	}
	return c.Send(text, voiceClarifyKeyboard())
}

// singleFieldPatch uses the raw text for the one required field that is
// still missing.
func singleFieldPatch(e movie.Entry, text string) (movie.Entry, bool) {
	missing := e.Missing()
	if len(missing) != 1 {
		return movie.Entry{}, false
	}
	var patch movie.Entry
	switch missing[0] {
	case "год":
		if y := voiceYear(text); movie.ValidYear(y) {
			patch.Year = y
		}
	case "оценка":
		if r, ok := movie.ValidRating(voiceRating(text)); ok {
			patch.Rating = r
		}
	case "жанр":
		patch.Genre = cleanVoiceText(text)
	case "название":
		patch.Film = cleanVoiceText(text)
	}
	return patch, patch != movie.Entry{}
}

// voiceClarifyText handles a text answer to a clarification request.
func (b *Bot) voiceClarifyText(c tele.Context, s session, text string) error {
	if text == "" {
		return b.promptClarify(c, s.entry, "")
	}
	ctx, cancel := context.WithTimeout(context.Background(), voiceTimeout)
	defer cancel()

	var patch movie.Entry
	ok := false
	if b.speechEnabled() {
		p, err := b.extractEntry(ctx, text)
		if err != nil {
			logging.LogError(b.logger, "clarification parse failed", err)
		} else {
			patch, ok = p, p != movie.Entry{}
		}
	}
	if !ok {
		patch, ok = singleFieldPatch(s.entry, text)
	}
	if !ok {
		return b.promptClarify(c, s.entry, "")
	}
	return b.applyPartial(c, s.entry, patch, "")
}
