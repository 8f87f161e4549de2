// Command diag prints the startup report and the service probes, then exits.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/eliseohh/moviebot/internal/bot"
	"github.com/eliseohh/moviebot/internal/config"
	"github.com/eliseohh/moviebot/internal/logging"
	"github.com/eliseohh/moviebot/internal/startup"
)

func main() {
	os.Exit(run())
}

func run() int {
	_ = godotenv.Load()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Fatal: %v", err)
	}
	logger := logging.NewStructuredLogger(os.Stderr, logging.ParseLevel(cfg.LogLevel))

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	svc, err := startup.Open(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("Startup failed: %v", err)
	}
	defer svc.Close()

	report := svc.Collect(ctx, cfg)
	report.Sheet, report.SheetErr = svc.CheckSheet(ctx)
	report.Print(os.Stdout)

	fmt.Println()
	fmt.Println(bot.Diagnostics(ctx, svc.Deps(logger)))

	if report.SheetErr != nil {
		return 1
	}
	return 0
}
