package bot

import (
	"context"
	"fmt"
	"log/slog"

	tele "gopkg.in/telebot.v3"

	"github.com/eliseohh/moviebot/internal/logging"
	"github.com/eliseohh/moviebot/internal/monitor"
)

// Notifier sends a plain message to a chat. *tele.Bot satisfies it.
type Notifier interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// FlushOffline uploads queued entries and tells each affected chat how many
// entries reached the sheet.
func (b *Bot) FlushOffline(ctx context.Context) (int, error) {
	if b.db == nil || b.library == nil {
		return 0, nil
	}
	res, err := b.db.Flush(ctx, b.library)
	if err != nil {
		monitor.Record("offline", err)
		logging.LogError(b.logger, "offline flush stopped", err, slog.Int("processed", res.Processed))
	}
	if res.Processed == 0 {
		return 0, err
	}
	logging.LogOperation(b.logger, "offline entries flushed",
		slog.Int("processed", res.Processed),
		slog.Int("chats", len(res.ChatIDs)))

	var notifier Notifier
	if b.api != nil {
		notifier = b.api
	}
	if b.notifier != nil {
		notifier = b.notifier
	}
	if notifier == nil {
		return res.Processed, err
	}
	text := fmt.Sprintf(msgOfflineSynced, res.Processed)
	for _, id := range res.ChatIDs {
		if _, sendErr := notifier.Send(tele.ChatID(id), text); sendErr != nil {
			b.logger.Warn("offline sync notice failed", slog.Int64("chat", id), slog.Any("error", sendErr))
		}
	}
	return res.Processed, err
}
