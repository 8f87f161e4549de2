package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"time"

	tele "gopkg.in/telebot.v3"

	"github.com/eliseohh/moviebot/internal/catalog"
	"github.com/eliseohh/moviebot/internal/logging"
	"github.com/eliseohh/moviebot/internal/monitor"
	"github.com/eliseohh/moviebot/internal/neural"
	"github.com/eliseohh/moviebot/internal/recommend"
)

const (
	aiTimeout       = 90 * time.Second
	candidateLimit  = 60
	poolItems       = 35
	poolChars       = 7000
	answerItems     = 8
	maxAnswerLength = 3900
	singlePickTries = 2
	plotPreview     = 280
)

var (
	recommendOptions  = neural.Options{Temperature: 0.4, MaxTokens: 512}
	queryOptions      = neural.Options{Temperature: 0.25, MaxTokens: 900}
	singlePickOptions = neural.Options{Temperature: 0.45, MaxTokens: 220}
)

func (b *Bot) registerAI() {
	b.api.Handle(slash(cmdAI), b.handleAI)
	b.api.Handle(slash(cmdRecommend), b.handleRecommend)
	b.api.Handle(slash(cmdRandom), b.handleRandom)
}

// aiErrorText maps provider failures onto the user-facing message.
func aiErrorText(err error) string {
	switch {
	case errors.Is(err, neural.ErrNotConfigured):
		return msgAINotConfigured
	case errors.Is(err, neural.ErrBlocked):
		return msgAIBlocked
	case errors.Is(err, neural.ErrEmptyResponse):
		return msgAINoResponse
	case errors.Is(err, neural.ErrUnavailable):
		return msgAIUnavailable
	}
	return msgAINoResponse
}

func (b *Bot) handleRecommend(c tele.Context) error {
	return b.recommend(c, strings.TrimSpace(c.Message().Payload))
}

func (b *Bot) handleAI(c tele.Context) error {
	query := strings.TrimSpace(c.Message().Payload)
	if query == "" {
		return c.Send(msgAIUsage)
	}
	if !b.text.Enabled() {
		return c.Send(msgAINotConfigured)
	}
	b.typing(c)

	ctx, cancel := context.WithTimeout(context.Background(), aiTimeout)
	defer cancel()

	records, ok := b.safeRecords(c, "AI-запрос")
	if !ok {
		return nil
	}
	scope := chatScope(c)
	recent := b.recent.Get(scope)
	profile := catalog.BuildProfile(records)
	prompt := recommend.BuildPrompt(recommend.PromptInput{
		Request: query,
		Profile: catalog.ProfileSummary(profile),
		Recent:  recent,
		Query:   true,
	})

	answer, err := b.text.Generate(ctx, prompt, queryOptions)
	if err != nil {
		monitor.Record("ai", err)
		logging.LogError(b.logger, "ai query failed", err, slog.String("chat", scope))
		return c.Send(aiErrorText(err))
	}
	return b.sendAnswer(c, scope, recommend.FormatAnswer(answer))
}

// recommend asks the model for new titles. A non-empty hint narrows the
// request; the TMDB pool, when collected, restricts the answer.
func (b *Bot) recommend(c tele.Context, hint string) error {
	if !b.text.Enabled() {
		return c.Send(msgAINotConfigured)
	}
	_ = c.Send(msgRecommendLoading)
	b.typing(c)

	ctx, cancel := context.WithTimeout(context.Background(), aiTimeout)
	defer cancel()

	records, ok := b.safeRecords(c, "подбор рекомендаций")
	if !ok {
		return nil
	}
	scope := chatScope(c)
	recent := b.recent.Get(scope)
	profile := catalog.BuildProfile(records)

	pool := b.catalog.Candidates(ctx, profile, candidateLimit)
	pool = recommend.Exclude(recommend.FilterMinYear(pool, recommend.MinYear), recent)
	var summary string
	if len(pool) > 0 {
		summary = catalog.CandidatesSummary(pool, poolItems, poolChars)
	}

	request := "Recommend new movies based on my watch history and ratings."
	if hint != "" {
		request = "Recommend movies for this preference: " + hint
	}
	prompt := recommend.BuildPrompt(recommend.PromptInput{
		Request:        request,
		Profile:        catalog.ProfileSummary(profile),
		Candidates:     summary,
		Recent:         recent,
		RestrictToPool: len(pool) > 0,
	})

	start := time.Now()
	answer, err := b.text.Generate(ctx, prompt, recommendOptions)
	if err != nil {
		monitor.Record("ai", err)
		logging.LogError(b.logger, "recommendation failed", err, slog.String("chat", scope))
		if len(pool) == 0 {
			return c.Send(aiErrorText(err))
		}
		return b.sendAnswer(c, scope, recommend.RenderCandidates(pool, answerItems, b.now()))
	}
	logging.LogOperation(b.logger, "recommendation",
		slog.String("chat", scope),
		slog.Int("pool", len(pool)),
		slog.Duration("elapsed", time.Since(start)))

	formatted := recommend.FormatAnswer(answer)
	if len(pool) > 0 {
		formatted = recommend.RestrictToPool(formatted, pool, answerItems, b.now())
	}
	return b.sendAnswer(c, scope, formatted)
}

// sendAnswer clips a formatted answer, attaches quick-add buttons and
// remembers the titles so the next request avoids them.
func (b *Bot) sendAnswer(c tele.Context, scope, formatted string) error {
	text := recommend.Clip(formatted, maxAnswerLength)
	buttons, titles := recommend.QuickAdds(text, b.now())
	b.recent.Add(scope, titles)
	return b.sendHTML(c, text, quickAddKeyboard(buttons))
}

// handleRandom picks one unseen title: a weighted draw from the TMDB pool
// first, then a single AI suggestion.
func (b *Bot) handleRandom(c tele.Context) error {
	b.typing(c)
	records, ok := b.safeRecords(c, "подбор фильма")
	if !ok {
		return nil
	}
	if len(records) == 0 {
		return c.Send(msgRandomNoRecords)
	}

	ctx, cancel := context.WithTimeout(context.Background(), aiTimeout)
	defer cancel()

	scope := chatScope(c)
	recent := b.recent.Get(scope)
	profile := catalog.BuildProfile(records)

	pool := recommend.Exclude(
		recommend.FilterMinYear(b.catalog.Candidates(ctx, profile, candidateLimit), recommend.MinYear),
		profile.WatchedTitles,
	)
	fresh := recommend.Exclude(pool, recent)
	if len(fresh) == 0 {
		fresh = pool
	}
	if len(fresh) > 0 {
		b.rndMu.Lock()
		pick := recommend.WeightedPick(fresh, b.rnd)
		b.rndMu.Unlock()
		b.recent.Add(scope, []string{pick.Title})
		return b.sendCandidate(ctx, c, pick)
	}

	if b.text.Enabled() {
		blocked := append(append([]string{}, profile.WatchedTitles...), recent...)
		prompt := recommend.SinglePickPrompt(catalog.ProfileSummary(profile), blocked)
		for attempt := 1; attempt <= singlePickTries; attempt++ {
			answer, err := b.text.Generate(ctx, prompt, singlePickOptions)
			if err != nil {
				monitor.Record("ai", err)
				logging.LogError(b.logger, "random pick failed", err, slog.Int("attempt", attempt))
				continue
			}
			title, reason := recommend.ParseSinglePick(answer)
			if !recommend.AcceptSinglePick(title, blocked) {
				b.logger.Debug("random pick rejected", slog.String("title", title))
				continue
			}
			if reason == "" {
				reason = randomAIReason
			}
			b.recent.Add(scope, []string{title})
			text := fmt.Sprintf(randomAITemplate, html.EscapeString(title), html.EscapeString(reason))
			button := prefillButton(btnRandomQuickAdd, recommend.Prefill(title, recommend.YearOf(title), b.now()))
			return b.sendHTML(c, text, inline(row(button)))
		}
	}
	return c.Send(msgRandomNone)
}

func candidateRatings(cand catalog.Candidate) string {
	var parts []string
	if cand.TMDBRating > 0 {
		parts = append(parts, fmt.Sprintf("TMDB %.1f/10", cand.TMDBRating))
	}
	if cand.IMDbRating > 0 {
		parts = append(parts, fmt.Sprintf("IMDb %.1f/10", cand.IMDbRating))
	}
	if len(parts) == 0 {
		return randomNoRatings
	}
	return strings.Join(parts, " | ")
}

func clipRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimRight(string(r[:n]), " ") + "..."
}

// candidateText renders the random pick card.
func candidateText(cand catalog.Candidate) string {
	year := valueDash
	if cand.Year > 0 {
		year = fmt.Sprint(cand.Year)
	}
	genres := valueDash
	if len(cand.Genres) > 0 {
		genres = strings.Join(cand.Genres, ", ")
	}
	reason := cand.Reason
	if reason == "" {
		reason = randomDefaultReason
	}
	text := fmt.Sprintf(randomTemplate,
		html.EscapeString(cand.Title), year, html.EscapeString(genres),
		candidateRatings(cand), html.EscapeString(reason))
	if cand.Plot != "" {
		text += fmt.Sprintf(randomPlotTemplate, html.EscapeString(clipRunes(cand.Plot, plotPreview)))
	}
	return text
}

func (b *Bot) sendCandidate(ctx context.Context, c tele.Context, cand catalog.Candidate) error {
	text := candidateText(cand)
	markup := inline(row(prefillButton(btnRandomQuickAdd, recommend.Prefill(cand.Title, cand.Year, b.now()))))

	poster := cand.PosterURL
	if poster == "" {
		if d := b.catalog.OMDB.Lookup(ctx, cand.Title, cand.Year); d != nil {
			poster = d.Poster
		}
	}
	if poster != "" && strings.HasPrefix(poster, "http") {
		photo := &tele.Photo{File: tele.FromURL(poster), Caption: text}
		err := c.Send(photo, tele.ModeHTML, markup)
		if err == nil {
			return nil
		}
		b.logger.Warn("poster send failed", slog.String("title", cand.Title), slog.Any("error", err))
	}
	return b.sendHTML(c, text, markup)
}
