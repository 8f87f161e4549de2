// Package neural wraps the text, vision and speech AI providers.
package neural

import (
	"context"
	"errors"
	"strings"
)

var (
	ErrNotConfigured = errors.New("no AI provider is configured")
	ErrBlocked       = errors.New("request blocked by the provider")
	ErrEmptyResponse = errors.New("empty response")
	ErrUnavailable   = errors.New("temporarily unavailable")
)

// Options tune one generation call. An empty System uses the provider default.
type Options struct {
	System      string
	Temperature float32
	MaxTokens   int32
}

func DefaultOptions() Options {
	return Options{Temperature: 0.4, MaxTokens: 512}
}

func (o Options) maxTokens() int32 {
	if o.MaxTokens <= 0 {
		return 512
	}
	return o.MaxTokens
}

// UsageRecorder is satisfied by *index.DB.
type UsageRecorder interface {
	RecordUsage(ctx context.Context, provider string, in, out int64) error
}

type TextGenerator interface {
	Enabled() bool
	Generate(ctx context.Context, prompt string, opts Options) (string, error)
}

// Chain tries each enabled provider in order and returns the first answer.
type Chain struct {
	providers []TextGenerator
}

func NewChain(providers ...TextGenerator) *Chain {
	return &Chain{providers: providers}
}

func (c *Chain) Enabled() bool {
	for _, p := range c.providers {
		if p != nil && p.Enabled() {
			return true
		}
	}
	return false
}

func (c *Chain) Generate(ctx context.Context, prompt string, opts Options) (string, error) {
	var errs []error
	for _, p := range c.providers {
		if p == nil || !p.Enabled() {
			continue
		}
		text, err := p.Generate(ctx, prompt, opts)
		if err == nil {
			return text, nil
		}
		errs = append(errs, err)
		if ctx.Err() != nil {
			break
		}
	}
	if len(errs) == 0 {
		return "", ErrNotConfigured
	}
	return "", &ChainError{Errs: errs}
}

// ChainError holds one error per provider tried.
type ChainError struct {
	Errs []error
}

func (e *ChainError) Error() string {
	msgs := make([]string, len(e.Errs))
	for i, err := range e.Errs {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, " | ")
}

func (e *ChainError) Unwrap() []error { return e.Errs }

// tokens fills a missing input or output count from the total.
func tokens(in, out, total int64) (int64, int64) {
	if in < 0 {
		in = 0
	}
	if out < 0 {
		out = 0
	}
	if total > 0 && in <= 0 && out > 0 && total >= out {
		in = total - out
	}
	if total > 0 && out <= 0 && in > 0 && total >= in {
		out = total - in
	}
	return in, out
}
