package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/eliseohh/moviebot/internal/bot"
	"github.com/eliseohh/moviebot/internal/config"
	"github.com/eliseohh/moviebot/internal/health"
	"github.com/eliseohh/moviebot/internal/index"
	"github.com/eliseohh/moviebot/internal/logging"
	"github.com/eliseohh/moviebot/internal/monitor"
	"github.com/eliseohh/moviebot/internal/startup"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Printf("⚠ .env not loaded: %v\n", err)
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Fatal: %v", err)
	}

	logger, closer, err := logging.Setup(cfg.LogPath(), cfg.LogLevel)
	if err != nil {
		log.Fatalf("Logging setup failed: %v", err)
	}
	defer closer.Close()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Open services
	svc, err := startup.Open(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("Startup failed: %v", err)
	}
	defer svc.Close()

	report := svc.Collect(ctx, cfg)
	if cfg.StartupCheckSheet {
		checkCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
		report.Sheet, report.SheetErr = svc.CheckSheet(checkCtx)
		cancel()
	}
	report.Print(os.Stdout)
	if report.SheetErr != nil {
		monitor.Record("sheet", report.SheetErr)
	}

	// 2. Bot
	b, err := bot.New(bot.Config{Token: cfg.TelegramToken, DBPath: cfg.DBPath()}, svc.Deps(logger))
	if err != nil {
		log.Fatalf("Bot init failed: %v", err)
	}

	// 3. Offline queue and initial mirror sync
	if n, err := b.FlushOffline(ctx); err == nil && n > 0 {
		fmt.Printf("Offline entries uploaded: %d\n", n)
	}
	idx := index.NewIndexer(svc.DB, logger)
	syncMirror(ctx, idx, svc, logger)

	// 4. Sync loop
	go func() {
		ticker := time.NewTicker(cfg.SyncInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := b.FlushOffline(ctx); err != nil {
					logging.LogError(logger, "offline flush failed", err)
				}
				syncMirror(ctx, idx, svc, logger)
			}
		}
	}()

	// 5. Health endpoints
	if cfg.HealthAddr != "" {
		srv := health.New(svc.DB, logger)
		go func() {
			if err := srv.ListenAndServe(ctx, cfg.HealthAddr); err != nil {
				logging.LogError(logger, "health server stopped", err)
			}
		}()
	}

	// 6. Start bot
	go func() {
		<-ctx.Done()
		logger.Info("shutting down")
		b.Stop()
	}()
	fmt.Println("🤖 Bot Online. Listening...")
	b.Start()
}

func syncMirror(ctx context.Context, idx *index.Indexer, svc *startup.Services, logger *slog.Logger) {
	readCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	records, err := svc.Sheet.Records(readCtx)
	cancel()
	if err != nil {
		monitor.Record("sheet", err)
		logging.LogError(logger, "mirror sync skipped", err)
		return
	}
	res, err := idx.Sync(ctx, records)
	if err != nil {
		monitor.Record("mirror", err)
		logging.LogError(logger, "mirror sync failed", err)
		return
	}
	logging.LogOperation(logger, "mirror synced",
		slog.Int("added", res.Added),
		slog.Int("changed", res.Changed),
		slog.Int("removed", res.Removed))
}
