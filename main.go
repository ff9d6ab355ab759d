package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/goatanime/instagram-bot/internal/access"
	"github.com/goatanime/instagram-bot/internal/bot"
	"github.com/goatanime/instagram-bot/internal/config"
	"github.com/goatanime/instagram-bot/internal/credentials"
	"github.com/goatanime/instagram-bot/internal/fetch"
	"github.com/goatanime/instagram-bot/internal/orchestrator"
	"github.com/goatanime/instagram-bot/internal/shortlink"
	"github.com/goatanime/instagram-bot/internal/telegram"
)

// Version is set during build via -ldflags "-X main.version=X.Y.Z"
var version = "dev"

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	log := logrus.NewEntry(logger)

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}
	if !cfg.AdminConfigured() {
		log.Warn("ADMIN_ID is not set, admin features are disabled")
	}

	accessStore, err := access.Open(cfg.DBPath, cfg.AccessWindow, log)
	if err != nil {
		log.WithError(err).Fatal("failed to open access store")
	}
	defer func() { _ = accessStore.Close() }()

	credStore, err := credentials.NewStore(cfg.CredentialDir, log)
	if err != nil {
		log.WithError(err).Fatal("failed to open credential store")
	}

	messenger, err := telegram.New(cfg.BotToken, cfg.AdminID, log)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to the bot api")
	}

	fetcher := fetch.NewYTDLP(log)
	orch := orchestrator.New(credStore, fetcher, messenger, cfg.DownloadDir, cfg.MaxParallel, log)
	links := shortlink.New(cfg.ShortenerAPIURL, cfg.ShortenerToken, cfg.ShortenerTimeout, log)

	ctrl := bot.New(bot.Deps{
		Config:    cfg,
		Access:    accessStore,
		Creds:     credStore,
		Links:     links,
		Orch:      orch,
		Messenger: messenger,
		Log:       log,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctrl.NotifyStartup(ctx)

	log.WithField("version", version).Info("media downloader bot is now running")
	messenger.Run(ctx, ctrl)
	log.Info("shutdown complete")
}
