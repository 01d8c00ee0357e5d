package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/sonroyaalmerol/hkbot/internal/config"
	"github.com/sonroyaalmerol/hkbot/internal/handlers"
	"github.com/sonroyaalmerol/hkbot/internal/logging"
	"github.com/sonroyaalmerol/hkbot/internal/repository"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}
	logging.Setup(cfg.LogLevel, cfg.LogFile)

	db, err := repository.OpenDB(cfg.DataDir)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()
	repo := repository.NewRepo(db)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	bot := handlers.NewBot(ctx, cfg, repo)
	slog.Info("starting hkbot", "searchSource", cfg.SearchSource, "spotify", cfg.SpotifyEnabled(), "sponsorblock", cfg.EnableSponsorBlock)
	if err := bot.Run(ctx); err != nil {
		log.Fatal(err)
	}
}
