package index

import (
	"context"
	"fmt"
	"time"
)

type Usage struct {
	Provider     string `db:"provider" json:"provider"`
	InputTokens  int64  `db:"input_tokens" json:"input_tokens"`
	OutputTokens int64  `db:"output_tokens" json:"output_tokens"`
	Requests     int64  `db:"requests" json:"requests"`
}

type UsageSnapshot struct {
	Providers []Usage `json:"providers"`
	Total     Usage   `json:"total"`
}

// RecordUsage adds one request worth of tokens to provider's counters.
func (d *DB) RecordUsage(ctx context.Context, provider string, in, out int64) error {
	if in < 0 {
		in = 0
	}
	if out < 0 {
		out = 0
	}
	_, err := d.ExecContext(ctx, `
		INSERT INTO token_usage (provider, input_tokens, output_tokens, requests, updated_at)
		VALUES (?, ?, ?, 1, ?)
		ON CONFLICT(provider) DO UPDATE SET
			input_tokens = input_tokens + excluded.input_tokens,
			output_tokens = output_tokens + excluded.output_tokens,
			requests = requests + 1,
			updated_at = excluded.updated_at`,
		provider, in, out, time.Now().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("record usage: %w", err)
	}
	return nil
}

func (d *DB) UsageSnapshot(ctx context.Context) (UsageSnapshot, error) {
	var snap UsageSnapshot
	err := d.SelectContext(ctx, &snap.Providers, `
		SELECT provider, input_tokens, output_tokens, requests FROM token_usage ORDER BY provider`)
	if err != nil {
		return snap, fmt.Errorf("read usage: %w", err)
	}
	snap.Total.Provider = "total"
	for _, u := range snap.Providers {
		snap.Total.InputTokens += u.InputTokens
		snap.Total.OutputTokens += u.OutputTokens
		snap.Total.Requests += u.Requests
	}
	return snap, nil
}

func (d *DB) ResetUsage(ctx context.Context) error {
	_, err := d.ExecContext(ctx, `DELETE FROM token_usage`)
	return err
}
