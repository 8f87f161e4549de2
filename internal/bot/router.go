package bot

import (
	"log/slog"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v3"

	"github.com/eliseohh/moviebot/internal/movie"
)

func (b *Bot) handleStart(c tele.Context) error {
	if err := b.sendPanel(c, panelStart, mainMenu()); err != nil {
		return err
	}
	return c.Send(quickHint, quickKeyboard())
}

func (b *Bot) handleMenu(c tele.Context) error {
	if err := b.sendPanel(c, panelMain, mainMenu()); err != nil {
		return err
	}
	return c.Send(quickHint, quickKeyboard())
}

func (b *Bot) handleHelp(c tele.Context) error {
	return c.Send(helpText)
}

// handleCallback routes every inline button by its raw data.
func (b *Bot) handleCallback(c tele.Context) error {
	data := strings.TrimSpace(c.Callback().Data)

	switch {
	case strings.HasPrefix(data, cbAddFlowPrefix):
		return b.handleAddFlowCallback(c, data)
	case strings.HasPrefix(data, cbPagePrefix):
		b.respond(c)
		return b.handlePageCallback(c, data)
	case data == cbWinnerMonth || strings.HasPrefix(data, cbWinnerMonth+":"):
		b.respond(c)
		offset := 0
		if _, raw, ok := strings.Cut(data, ":"); ok {
			if v, err := strconv.Atoi(raw); err == nil {
				offset = min(v, 0)
			}
		}
		return b.sendWinner(c, offset)
	}

	b.respond(c)
	switch data {
	case cbNoop:
		return nil
	case cbMenuMain:
		return b.sendPanel(c, panelMain, mainMenu())
	case cbMenuRecommend:
		return b.sendPanel(c, panelRecommend, recommendMenu())
	case cbMenuLibrary:
		return b.sendPanel(c, panelLibrary, libraryMenu())
	case cbMenuStats:
		return b.sendPanel(c, panelStats, statsMenu())
	case cbMenuHelp:
		return b.sendPanel(c, panelHelp, helpMenu())
	case cbHelp:
		return c.Send(helpText)
	case cbOfflineHelp:
		return c.Send(msgOfflineGuide)
	case cbAddFilm:
		return b.startAddFlow(c)
	case cbRecommendMe:
		return b.recommend(c, "")
	case cbRandomPick:
		return b.handleRandom(c)
	case cbAIHelp:
		return c.Send(msgAIHint)
	case cbListFilms:
		return b.sendPage(c, cmdList, 0)
	case cbRecentEntries:
		return b.sendPage(c, cmdRecent, 0)
	case cbTop5:
		return b.sendPage(c, cmdTop, 0)
	case cbSearchTitle:
		return c.Send(msgSearchHint)
	case cbSearchGenre:
		return c.Send(msgFindHint)
	case cbRatingStats:
		return b.handleStats(c)
	case cbOwnerHusband:
		return b.sendOwner(c, movie.OwnerHusband)
	case cbOwnerWife:
		return b.sendOwner(c, movie.OwnerWife)
	case cbTokenUsage:
		return b.sendTokens(c, false)
	case cbTokenReset:
		return b.sendTokens(c, true)
	}
	b.logger.Debug("unknown callback", slog.String("data", data))
	return nil
}

// handleText feeds an active add conversation first, then the quick reply
// buttons, then the usage hint.
func (b *Bot) handleText(c tele.Context) error {
	text := strings.TrimSpace(c.Text())
	if s, ok := b.sessions.get(chatID(c)); ok {
		return b.addFlowInput(c, s, text)
	}

	switch text {
	case quickRecommend:
		return b.recommend(c, "")
	case quickAdd:
		return b.startAddFlow(c)
	case quickRecent:
		return b.sendPage(c, cmdList, 0)
	case quickRandom:
		return b.handleRandom(c)
	case quickStats:
		return b.handleStats(c)
	case quickMenu:
		return b.handleMenu(c)
	}
	return c.Send(msgUnknownText)
}
