package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"sync"
	"time"

	tele "gopkg.in/telebot.v3"

	"github.com/eliseohh/moviebot/internal/logging"
	"github.com/eliseohh/moviebot/internal/monitor"
	"github.com/eliseohh/moviebot/internal/movie"
)

type addStep int

const (
	stepFilm addStep = iota + 1
	stepYear
	stepGenre
	stepRating
	stepComment
	stepType
	stepRecommendation
	stepOwner
	stepConfirm
	stepVoiceClarify
)

// session is one chat's add conversation. answered marks optional steps the
// user already went through, so an empty comment or owner is not asked twice.
type session struct {
	step     addStep
	entry    movie.Entry
	answered uint16
}

func (s *session) answer(step addStep) { s.answered |= 1 << step }

func (s session) isAnswered(step addStep) bool { return s.answered&(1<<step) != 0 }

// sessions keeps add conversations and poster prefills per chat.
type sessions struct {
	mu       sync.Mutex
	active   map[int64]session
	prefills map[int64]movie.Entry
}

func newSessions() *sessions {
	return &sessions{
		active:   make(map[int64]session),
		prefills: make(map[int64]movie.Entry),
	}
}

func (s *sessions) get(chatID int64) (session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.active[chatID]
	return sess, ok
}

func (s *sessions) put(chatID int64, sess session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active[chatID] = sess
}

// take removes and returns the session in one step.
func (s *sessions) take(chatID int64) (session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.active[chatID]
	delete(s.active, chatID)
	return sess, ok
}

func (s *sessions) clear(chatID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.active, chatID)
}

func (s *sessions) setPrefill(chatID int64, e movie.Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefills[chatID] = e
}

func (s *sessions) prefill(chatID int64) (movie.Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.prefills[chatID]
	return e, ok
}

// nextStep returns the first step whose field is still missing: required
// fields until they are valid, optional ones until answered or filled.
func nextStep(s session) addStep {
	e := s.entry
	switch {
	case strings.TrimSpace(e.Film) == "":
		return stepFilm
	case !movie.ValidYear(strings.TrimSpace(e.Year)):
		return stepYear
	case strings.TrimSpace(e.Genre) == "":
		return stepGenre
	}
	if _, ok := movie.ValidRating(e.Rating); !ok {
		return stepRating
	}
	optional := []struct {
		step  addStep
		value string
	}{
		{stepComment, e.Comment},
		{stepType, e.Type},
		{stepRecommendation, e.Recommendation},
		{stepOwner, e.Owner},
	}
	for _, o := range optional {
		if strings.TrimSpace(o.value) == "" && !s.isAnswered(o.step) {
			return o.step
		}
	}
	return stepConfirm
}

func stepPrompt(step addStep) (string, *tele.ReplyMarkup) {
	switch step {
	case stepFilm:
		return promptTitle, nil
	case stepYear:
		return promptYear, nil
	case stepGenre:
		return promptGenre, nil
	case stepRating:
		return promptRating, nil
	case stepComment:
		return promptComment, commentKeyboard()
	case stepType:
		return promptType, typeKeyboard()
	case stepRecommendation:
		return promptRecommendation, recommendationKeyboard()
	case stepOwner:
		return promptOwner, ownerKeyboard()
	}
	return "", nil
}

func orValue(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}

func previewText(e movie.Entry) string {
	return fmt.Sprintf(previewTemplate,
		html.EscapeString(e.Film),
		html.EscapeString(e.Year),
		html.EscapeString(e.Genre),
		html.EscapeString(e.Rating),
		html.EscapeString(orValue(e.Type, valueDash)),
		html.EscapeString(orValue(e.Recommendation, valueDash)),
		html.EscapeString(orValue(e.Owner, valueUnspecified)),
		html.EscapeString(orValue(e.Comment, valueDash)),
	)
}

// advance stores the session at its next step and sends that step's prompt
// or the preview.
func (b *Bot) advance(c tele.Context, s session) error {
	s.step = nextStep(s)
	b.sessions.put(chatID(c), s)
	if s.step == stepConfirm {
		return b.sendHTML(c, previewText(s.entry), confirmKeyboard())
	}
	text, markup := stepPrompt(s.step)
	return b.sendPanel(c, text, markup)
}

// showPreview jumps straight to the confirmation step.
func (b *Bot) showPreview(c tele.Context, e movie.Entry) error {
	b.sessions.put(chatID(c), session{step: stepConfirm, entry: e, answered: ^uint16(0)})
	return b.sendHTML(c, previewText(e), confirmKeyboard())
}

func (b *Bot) startAddFlow(c tele.Context) error {
	return b.advance(c, session{})
}

func (b *Bot) handleAdd(c tele.Context) error {
	payload := strings.TrimSpace(c.Message().Payload)
	if payload == "" {
		return b.startAddFlow(c)
	}
	entry, err := movie.ParsePayload(payload)
	if err != nil {
		b.sessions.clear(chatID(c))
		if errors.Is(err, movie.ErrMissingFields) || errors.Is(err, movie.ErrInvalidYear) || errors.Is(err, movie.ErrInvalidRating) {
			return c.Send(msgAddInvalidData + "\n\n" + addUsageText)
		}
		return c.Send(msgAddParseFailed)
	}
	return b.showPreview(c, entry)
}

func (b *Bot) handleCancel(c tele.Context) error {
	b.sessions.clear(chatID(c))
	return c.Send(msgAddCancelled)
}

// addFlowInput applies a text answer to the current step.
func (b *Bot) addFlowInput(c tele.Context, s session, text string) error {
	switch s.step {
	case stepFilm:
		if text == "" {
			return c.Send(promptTitle)
		}
		s.entry.Film = text
	case stepYear:
		if !movie.ValidYear(text) {
			return c.Send(promptYearInvalid)
		}
		s.entry.Year = text
	case stepGenre:
		if text == "" {
			return c.Send(promptGenreInvalid)
		}
		s.entry.Genre = text
	case stepRating:
		rating, ok := movie.ValidRating(text)
		if !ok {
			return c.Send(promptRatingInvalid)
		}
		s.entry.Rating = rating
	case stepComment:
		if skipTokens[strings.ToLower(text)] {
			text = ""
		}
		s.entry.Comment = text
		s.answer(stepComment)
	case stepType:
		s.entry.Type = movie.NormalizeType(text)
		s.answer(stepType)
	case stepRecommendation:
		s.entry.Recommendation = movie.NormalizeRecommendation(text)
		s.answer(stepRecommendation)
	case stepOwner:
		s.entry.Owner = movie.NormalizeOwner(text)
		s.answer(stepOwner)
	case stepConfirm:
		return b.sendHTML(c, previewText(s.entry), confirmKeyboard())
	case stepVoiceClarify:
		return b.voiceClarifyText(c, s, text)
	}
	return b.advance(c, s)
}

// handleAddFlowCallback serves every "add_flow:" button.
func (b *Bot) handleAddFlowCallback(c tele.Context, data string) error {
	switch data {
	case cbVoiceClarifyTxt:
		b.respond(c, msgVoiceHintText)
		return nil
	case cbVoiceClarifyVoc:
		b.respond(c, msgVoiceHintVoice)
		return nil
	}

	b.respond(c)
	switch data {
	case cbAddFromPoster:
		return b.startFromPoster(c)
	case cbAddConfirmStop, cbVoiceCancel:
		return b.handleCancel(c)
	case cbAddConfirmSave:
		return b.confirmSave(c)
	}

	s, ok := b.sessions.get(chatID(c))
	if !ok {
		return c.Send(msgAddMissingEntry)
	}
	choice := data[strings.LastIndex(data, ":")+1:]
	switch {
	case data == cbAddSkipComment:
		s.entry.Comment = ""
		s.answer(stepComment)
	case strings.HasPrefix(data, cbAddTypePrefix):
		s.entry.Type = movie.NormalizeType(choice)
		s.answer(stepType)
	case strings.HasPrefix(data, cbAddRecPrefix):
		s.entry.Recommendation = movie.NormalizeRecommendation(choice)
		s.answer(stepRecommendation)
	case strings.HasPrefix(data, cbAddOwnerPrefix):
		s.entry.Owner = movie.NormalizeOwner(choice)
		s.answer(stepOwner)
	default:
		b.logger.Debug("unknown add flow callback", slog.String("data", data))
		return nil
	}
	return b.advance(c, s)
}

// startFromPoster opens the add conversation with the last poster match.
func (b *Bot) startFromPoster(c tele.Context) error {
	entry, ok := b.sessions.prefill(chatID(c))
	if !ok {
		return c.Send(msgPhotoPrefillStale)
	}
	return b.advance(c, session{entry: entry})
}

// confirmSave appends the entry; when the sheet fails twice the entry goes to
// the offline queue instead.
func (b *Bot) confirmSave(c tele.Context) error {
	id := chatID(c)
	// Taking the session makes a second tap on the save button a no-op.
	s, ok := b.sessions.take(id)
	if !ok || s.entry == (movie.Entry{}) {
		return c.Send(msgAddMissingEntry)
	}
	if missing := s.entry.Missing(); len(missing) > 0 {
		b.sessions.put(id, s)
		return c.Send(fmt.Sprintf(msgAddRequired, strings.Join(missing, ", ")))
	}

	entry := s.entry.Normalized()
	if err := b.appendWithRetry(entry); err != nil {
		monitor.Record("sheet", err)
		logging.LogError(b.logger, "sheet append failed", err, slog.String("film", entry.Film))
		if b.db == nil {
			b.sessions.put(id, s)
			return c.Send(msgTemporaryError)
		}
		qCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if _, qErr := b.db.EnqueueOffline(qCtx, entry, id); qErr != nil {
			logging.LogError(b.logger, "offline enqueue failed", qErr)
			b.sessions.put(id, s)
			return c.Send(msgTemporaryError)
		}
		return c.Send(msgAddOfflineSaved)
	}

	logging.LogOperation(b.logger, "entry added", slog.String("film", entry.Film), slog.Int64("chat", id))
	return c.Send(fmt.Sprintf(msgAddSaved, entry.Film), quickKeyboard())
}

// appendWithRetry makes two append attempts, each with its own deadline.
func (b *Bot) appendWithRetry(entry movie.Entry) error {
	if b.library == nil {
		return errors.New("library is not configured")
	}
	var err error
	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			time.Sleep(b.saveRetryDelay)
		}
		ctx, cancel := context.WithTimeout(context.Background(), b.appendTimeout)
		err = b.library.Append(ctx, entry)
		cancel()
		if err == nil {
			return nil
		}
	}
	return err
}
