package index

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/eliseohh/moviebot/internal/movie"
)

// OfflineEntry is an entry waiting for the sheet to come back.
type OfflineEntry struct {
	Seq       int64  `db:"seq"`
	ID        string `db:"id"`
	ChatID    int64  `db:"chat_id"`
	CreatedAt string `db:"created_at"`
	movie.Entry
}

// Appender is satisfied by *sheet.Client.
type Appender interface {
	Append(ctx context.Context, entry movie.Entry) error
}

// EnqueueOffline stores the normalized entry and returns its id.
func (d *DB) EnqueueOffline(ctx context.Context, entry movie.Entry, chatID int64) (string, error) {
	e := entry.Normalized()
	id := uuid.NewString()
	_, err := d.ExecContext(ctx, `
		INSERT INTO offline_entries (id, chat_id, created_at, film, year, genre, rating, comment, type, recommendation, owner)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, chatID, time.Now().Format(time.RFC3339), e.Film, e.Year, e.Genre, e.Rating, e.Comment, e.Type, e.Recommendation, e.Owner)
	if err != nil {
		return "", fmt.Errorf("enqueue offline entry: %w", err)
	}
	return id, nil
}

// OfflineEntries lists queued entries oldest first.
func (d *DB) OfflineEntries(ctx context.Context) ([]OfflineEntry, error) {
	var out []OfflineEntry
	err := d.SelectContext(ctx, &out, `
		SELECT seq, id, chat_id, created_at, film, year, genre, rating, comment, type, recommendation, owner
		FROM offline_entries ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("list offline entries: %w", err)
	}
	return out, nil
}

func (d *DB) DeleteOffline(ctx context.Context, id string) error {
	_, err := d.ExecContext(ctx, `DELETE FROM offline_entries WHERE id = ?`, id)
	return err
}

func (d *DB) OfflineCount(ctx context.Context) (int, error) {
	var n int
	if err := d.GetContext(ctx, &n, `SELECT COUNT(*) FROM offline_entries`); err != nil {
		return 0, err
	}
	return n, nil
}

type FlushResult struct {
	Processed int
	// ChatIDs are the distinct chats whose entries were uploaded.
	ChatIDs []int64
}

// Flush uploads queued entries in order. Each entry is deleted right after
// its append succeeds; the first failure stops the flush so order is kept.
func (d *DB) Flush(ctx context.Context, app Appender) (FlushResult, error) {
	var res FlushResult
	entries, err := d.OfflineEntries(ctx)
	if err != nil {
		return res, err
	}
	seen := make(map[int64]bool)
	for _, e := range entries {
		if err := app.Append(ctx, e.Entry); err != nil {
			return res, fmt.Errorf("upload offline entry %s: %w", e.ID, err)
		}
		if err := d.DeleteOffline(ctx, e.ID); err != nil {
			return res, fmt.Errorf("delete offline entry %s: %w", e.ID, err)
		}
		res.Processed++
		if e.ChatID != 0 && !seen[e.ChatID] {
			seen[e.ChatID] = true
			res.ChatIDs = append(res.ChatIDs, e.ChatID)
		}
	}
	return res, nil
}
