package index

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/eliseohh/moviebot/internal/movie"
)

const numWorkers = 4

// Indexer mirrors sheet rows into the library table.
type Indexer struct {
	db     *DB
	logger *slog.Logger
	now    func() time.Time
}

func NewIndexer(db *DB, logger *slog.Logger) *Indexer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{db: db, logger: logger, now: time.Now}
}

type SyncResult struct {
	Added     int
	Changed   int
	Unchanged int
	Removed   int
}

type hashJob struct {
	Position int
	Record   movie.Record
}

type hashResult struct {
	Position int
	Record   movie.Record
	Hash     string
}

// Sync hashes records with a worker pool and writes the differences in one
// transaction: new and changed positions are upserted, positions past the end
// of records are pruned.
func (idx *Indexer) Sync(ctx context.Context, records []movie.Record) (SyncResult, error) {
	var res SyncResult

	current := make(map[int]string)
	rows, err := idx.db.QueryxContext(ctx, `SELECT position, hash FROM library`)
	if err != nil {
		return res, fmt.Errorf("load mirror hashes: %w", err)
	}
	for rows.Next() {
		var pos int
		var hash string
		if err := rows.Scan(&pos, &hash); err != nil {
			rows.Close()
			return res, err
		}
		current[pos] = hash
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return res, err
	}

	jobs := make(chan hashJob, 100)
	results := make(chan hashResult, 100)

	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				results <- hashResult{Position: job.Position, Record: job.Record, Hash: RowHash(job.Record)}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i, r := range records {
			select {
			case jobs <- hashJob{Position: i, Record: r}:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	tx, err := idx.db.BeginTxx(ctx, nil)
	if err != nil {
		for range results {
		}
		return res, err
	}
	defer tx.Rollback()

	stamp := idx.now().Format(time.RFC3339)
	var writeErr error
	for r := range results {
		if writeErr != nil {
			continue
		}
		old, ok := current[r.Position]
		switch {
		case !ok:
			res.Added++
		case old != r.Hash:
			res.Changed++
		default:
			res.Unchanged++
			continue
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO library (position, hash, added, film, year, genre, rating, comment, type, recommendation, owner, synced_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(position) DO UPDATE SET
				hash = excluded.hash, added = excluded.added, film = excluded.film, year = excluded.year,
				genre = excluded.genre, rating = excluded.rating, comment = excluded.comment, type = excluded.type,
				recommendation = excluded.recommendation, owner = excluded.owner, synced_at = excluded.synced_at`,
			r.Position, r.Hash, r.Record.Added, r.Record.Film, r.Record.Year, r.Record.Genre, r.Record.Rating,
			r.Record.Comment, r.Record.Type, r.Record.Recommendation, r.Record.Owner, stamp)
		if err != nil {
			writeErr = fmt.Errorf("upsert row %d: %w", r.Position, err)
		}
	}
	if writeErr != nil {
		return res, writeErr
	}
	if err := ctx.Err(); err != nil {
		return res, err
	}

	pruned, err := tx.ExecContext(ctx, `DELETE FROM library WHERE position >= ?`, len(records))
	if err != nil {
		return res, fmt.Errorf("prune mirror: %w", err)
	}
	n, _ := pruned.RowsAffected()
	res.Removed = int(n)

	if err := tx.Commit(); err != nil {
		return res, err
	}

	if res.Added+res.Changed+res.Removed > 0 {
		idx.logger.Info("mirror synced",
			slog.Int("added", res.Added),
			slog.Int("changed", res.Changed),
			slog.Int("removed", res.Removed),
			slog.Int("total", len(records)))
	}
	return res, nil
}

// MirrorRecords returns the mirrored rows in sheet order.
func (d *DB) MirrorRecords(ctx context.Context) ([]movie.Record, error) {
	var recs []movie.Record
	err := d.SelectContext(ctx, &recs, `
		SELECT added, film, year, genre, rating, comment, type, recommendation, owner
		FROM library ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("read mirror: %w", err)
	}
	return recs, nil
}

// RowHash is a stable digest of every field of r.
func RowHash(r movie.Record) string {
	h := sha256.New()
	h.Write([]byte(strings.Join([]string{
		r.Added, r.Film, r.Year, r.Genre, r.Rating, r.Comment, r.Type, r.Recommendation, r.Owner,
	}, "\x1f")))
	return fmt.Sprintf("%x", h.Sum(nil))
}
