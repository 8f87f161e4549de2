package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	tele "gopkg.in/telebot.v3"

	"github.com/eliseohh/moviebot/internal/monitor"
	"github.com/eliseohh/moviebot/internal/neural"
)

const (
	probeTimeout      = 8 * time.Second
	sheetProbeTimeout = 12 * time.Second
	diagErrorLimit    = 6
	probeErrorChars   = 220
	probePrompt       = "Ответь одним словом: OK"
)

var probeOptions = neural.Options{Temperature: 0, MaxTokens: 8}

func shortError(err error) string {
	return clipRunes(strings.TrimSpace(err.Error()), probeErrorChars)
}

func ms(d time.Duration) string {
	return fmt.Sprintf("%d ms", d.Milliseconds())
}

// probeLine times fn and renders "• name: OK (n ms)" or the error.
func probeLine(ctx context.Context, name string, timeout time.Duration, fn func(context.Context) error) string {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)
	if err != nil {
		return fmt.Sprintf("• %s: ERROR (%s) %s", name, ms(elapsed), shortError(err))
	}
	return fmt.Sprintf("• %s: OK (%s)", name, ms(elapsed))
}

func (b *Bot) modelProbe(ctx context.Context, name string, gen neural.TextGenerator) string {
	if gen == nil || !gen.Enabled() {
		return fmt.Sprintf("• %s: disabled", name)
	}
	return probeLine(ctx, name, probeTimeout, func(ctx context.Context) error {
		_, err := gen.Generate(ctx, probePrompt, probeOptions)
		return err
	})
}

// catalogProbe renders a metadata provider whose Probe reports "disabled"
// when no key is set.
func catalogProbe(ctx context.Context, name string, probe func(context.Context) (string, error)) string {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	start := time.Now()
	details, err := probe(ctx)
	elapsed := time.Since(start)
	switch {
	case err != nil:
		return fmt.Sprintf("• %s: ERROR (%s) %s", name, ms(elapsed), shortError(err))
	case details == "disabled":
		return fmt.Sprintf("• %s: DISABLED", name)
	}
	return strings.TrimSpace(fmt.Sprintf("• %s: OK (%s) %s", name, ms(elapsed), details))
}

func (b *Bot) sheetProbe(ctx context.Context) string {
	if b.library == nil {
		return "• Google Sheets: disabled"
	}
	if inv, ok := b.library.(interface{ Invalidate() }); ok {
		inv.Invalidate()
	}
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, sheetProbeTimeout)
	defer cancel()
	_, err := b.library.Records(ctx)
	elapsed := time.Since(start)

	rows, age, _ := b.library.CacheAge()
	status := fmt.Sprintf("cache_rows=%d, cache_age=%.0fs", rows, age.Seconds())
	if err != nil {
		return fmt.Sprintf("• Google Sheets: ERROR (%s) %s; %s", ms(elapsed), shortError(err), status)
	}
	return fmt.Sprintf("• Google Sheets: OK (%s) %s", ms(elapsed), status)
}

func recentErrorLines(events []monitor.Event) []string {
	if len(events) == 0 {
		return []string{"", "Recent errors: none"}
	}
	lines := []string{"", "Recent errors:"}
	for _, e := range events {
		lines = append(lines, fmt.Sprintf("- %s [%s] %s", e.Time.Format(time.RFC3339), e.Source, e.Message))
	}
	return lines
}

// diagnostics probes every external service concurrently; each probe fills
// its own line so the order is fixed.
func (b *Bot) diagnostics(ctx context.Context) string {
	probes := []func(context.Context) string{
		func(ctx context.Context) string { return b.modelProbe(ctx, "Gemini", b.gemini) },
		func(ctx context.Context) string { return b.modelProbe(ctx, "Mistral", b.mistral) },
		func(ctx context.Context) string { return catalogProbe(ctx, "TMDB", b.catalog.TMDB.Probe) },
		func(ctx context.Context) string { return catalogProbe(ctx, "Kinopoisk", b.catalog.Kinopoisk.Probe) },
		b.sheetProbe,
	}
	results := make([]string, len(probes))
	g, gctx := errgroup.WithContext(ctx)
	for i, probe := range probes {
		g.Go(func() error {
			results[i] = probe(gctx)
			return nil
		})
	}
	_ = g.Wait()

	lines := append([]string{"🩺 Диагностика сервисов"}, results...)
	lines = append(lines, recentErrorLines(monitor.Default().Recent(diagErrorLimit))...)
	return strings.Join(lines, "\n")
}

func (b *Bot) handleDiag(c tele.Context) error {
	b.typing(c)
	return c.Send(b.diagnostics(context.Background()))
}

// Diagnostics runs the same probes as /diag without a Telegram connection.
func Diagnostics(ctx context.Context, deps Deps) string {
	return newBot(Config{}, deps).diagnostics(ctx)
}
