// Package startup opens the services the bot depends on and prints the
// startup report.
package startup

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/fatih/color"

	"github.com/eliseohh/moviebot/internal/bot"
	"github.com/eliseohh/moviebot/internal/catalog"
	"github.com/eliseohh/moviebot/internal/config"
	"github.com/eliseohh/moviebot/internal/index"
	"github.com/eliseohh/moviebot/internal/neural"
	"github.com/eliseohh/moviebot/internal/sheet"
)

// Services holds every long-lived client. Close releases them.
type Services struct {
	DB      *index.DB
	Sheet   *sheet.Client
	Catalog *catalog.Catalog
	Gemini  *neural.Gemini
	Mistral *neural.Mistral

	// ServiceAccount is the client_email of the credentials file.
	ServiceAccount string
}

func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Services, error) {
	db, err := index.NewDB(cfg.DBPath())
	if err != nil {
		return nil, err
	}
	svc := &Services{
		DB:             db,
		Catalog:        catalog.New(cfg.Metadata, logger),
		Mistral:        neural.NewMistral(cfg.Mistral, db, logger),
		ServiceAccount: sheet.ServiceAccountEmail(cfg.GoogleCredentials),
	}

	ref, err := sheet.ParseRef(cfg.SheetName)
	if err != nil {
		svc.Close()
		return nil, fmt.Errorf("GOOGLE_SHEET_NAME: %w", err)
	}
	backend, err := sheet.NewGoogleBackend(ctx, cfg.GoogleCredentials)
	if err != nil {
		svc.Close()
		return nil, err
	}
	svc.Sheet = sheet.New(backend, ref)

	gemini, err := neural.NewGemini(ctx, cfg.Gemini, db, logger)
	if err != nil {
		svc.Close()
		return nil, err
	}
	svc.Gemini = gemini
	return svc, nil
}

func (s *Services) Deps(logger *slog.Logger) bot.Deps {
	deps := bot.Deps{
		DB:      s.DB,
		Catalog: s.Catalog,
		Gemini:  s.Gemini,
		Mistral: s.Mistral,
		Logger:  logger,
	}
	if s.Sheet != nil {
		deps.Library = s.Sheet
	}
	return deps
}

func (s *Services) Close() {
	if s.Gemini != nil {
		_ = s.Gemini.Close()
	}
	if s.DB != nil {
		_ = s.DB.Close()
	}
}

// CheckSheet resolves the spreadsheet and returns its titles or a hint that
// explains the access problem.
func (s *Services) CheckSheet(ctx context.Context) (string, error) {
	title, worksheet, err := s.Sheet.Title(ctx)
	if err != nil {
		return "", fmt.Errorf("%s: %w", sheet.Explain(err, s.ServiceAccount), err)
	}
	return fmt.Sprintf("%s / %s", title, worksheet), nil
}

// Report is the colored summary printed when the process starts.
type Report struct {
	DBPath     string
	Sheet      string
	SheetErr   error
	Warnings   []string
	Providers  map[string]bool
	Offline    int
	MirrorRows int
}

var (
	okColor   = color.New(color.FgGreen)
	warnColor = color.New(color.FgYellow)
	errColor  = color.New(color.FgRed, color.Bold)
	headColor = color.New(color.FgCyan, color.Bold)
)

// providerOrder fixes the line order of the provider block.
var providerOrder = []string{"Gemini", "Mistral", "TMDB", "OMDB", "Kinopoisk"}

func (r Report) Print(w io.Writer) {
	headColor.Fprintln(w, "MovieBot")
	fmt.Fprintf(w, "  db: %s (mirror rows %d, offline queue %d)\n", r.DBPath, r.MirrorRows, r.Offline)

	switch {
	case r.SheetErr != nil:
		errColor.Fprintf(w, "  ✗ sheet: %v\n", r.SheetErr)
	case r.Sheet != "":
		okColor.Fprintf(w, "  ✓ sheet: %s\n", r.Sheet)
	default:
		warnColor.Fprintln(w, "  ! sheet: not checked")
	}

	for _, name := range providerOrder {
		enabled, known := r.Providers[name]
		if !known {
			continue
		}
		if enabled {
			okColor.Fprintf(w, "  ✓ %s\n", name)
		} else {
			warnColor.Fprintf(w, "  - %s: disabled\n", name)
		}
	}
	for _, msg := range r.Warnings {
		warnColor.Fprintf(w, "  ! %s\n", strings.TrimSpace(msg))
	}
}

// Providers reports which optional integrations have keys.
func Providers(cfg *config.Config) map[string]bool {
	return map[string]bool{
		"Gemini":    cfg.Gemini.APIKey != "",
		"Mistral":   cfg.Mistral.APIKey != "",
		"TMDB":      cfg.Metadata.TMDBKey != "",
		"OMDB":      cfg.Metadata.OMDBKey != "",
		"Kinopoisk": cfg.Metadata.KinopoiskKey != "",
	}
}

// Collect fills the report counters from the local database.
func (s *Services) Collect(ctx context.Context, cfg *config.Config) Report {
	r := Report{
		DBPath:    cfg.DBPath(),
		Warnings:  cfg.Warnings(),
		Providers: Providers(cfg),
	}
	if n, err := s.DB.OfflineCount(ctx); err == nil {
		r.Offline = n
	}
	if rows, err := s.DB.MirrorRecords(ctx); err == nil {
		r.MirrorRows = len(rows)
	}
	return r
}
