package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v3"

	"github.com/eliseohh/moviebot/internal/index"
	"github.com/eliseohh/moviebot/internal/logging"
	"github.com/eliseohh/moviebot/internal/movie"
)

func (b *Bot) handleStats(c tele.Context) error {
	b.typing(c)
	records, ok := b.safeRecords(c, "")
	if !ok {
		return nil
	}
	return c.Send(movie.ComputeStats(records).Text())
}

// handleWinner accepts an optional month offset: /winner -1 is last month.
func (b *Bot) handleWinner(c tele.Context) error {
	offset := 0
	if args := c.Args(); len(args) > 0 {
		if v, err := strconv.Atoi(strings.TrimSpace(args[0])); err == nil {
			offset = min(v, 0)
		}
	}
	return b.sendWinner(c, offset)
}

func (b *Bot) sendWinner(c tele.Context, offset int) error {
	b.typing(c)
	records, ok := b.safeRecords(c, "")
	if !ok {
		return nil
	}
	month := movie.MonthStart(b.now(), offset)
	return b.sendPanel(c, movie.Winner(records, month).Text(), winnerKeyboard(offset))
}

func (b *Bot) handleTokens(c tele.Context) error {
	return b.sendTokens(c, false)
}

func (b *Bot) sendTokens(c tele.Context, reset bool) error {
	if b.db == nil {
		return c.Send(msgTemporaryError)
	}
	ctx := context.Background()
	if reset {
		if err := b.db.ResetUsage(ctx); err != nil {
			logging.LogError(b.logger, "token usage reset failed", err)
			return c.Send(msgTemporaryError)
		}
	}
	snap, err := b.db.UsageSnapshot(ctx)
	if err != nil {
		logging.LogError(b.logger, "token usage read failed", err)
		return c.Send(msgTemporaryError)
	}
	return b.sendPanel(c, tokensText(snap, b.cfg.DBPath, reset), tokensKeyboard())
}

func providerUsage(snap index.UsageSnapshot, provider string) index.Usage {
	for _, u := range snap.Providers {
		if u.Provider == provider {
			return u
		}
	}
	return index.Usage{Provider: provider}
}

func usageLine(label string, u index.Usage) string {
	return fmt.Sprintf("%s: in %s, out %s, запросов %s", label,
		movie.FormatInt(u.InputTokens), movie.FormatInt(u.OutputTokens), movie.FormatInt(u.Requests))
}

func tokensText(snap index.UsageSnapshot, dbPath string, reset bool) string {
	lines := []string{tokensHeader}
	if reset {
		lines = append(lines, tokensResetNote)
	}
	lines = append(lines,
		usageLine("• Gemini", providerUsage(snap, "gemini")),
		usageLine("• Mistral", providerUsage(snap, "mistral")),
		"",
		usageLine("Итого", snap.Total),
		tokensPersistNote,
	)
	if dbPath != "" {
		lines = append(lines, "", fmt.Sprintf("%s: %s", tokensStoreLabel, dbPath))
	}
	return strings.Join(lines, "\n")
}
