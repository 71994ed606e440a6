package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"facebook-video-server/internal/cache"
	"facebook-video-server/internal/config"
	"facebook-video-server/internal/extractor"
	"facebook-video-server/internal/monitor"
	"facebook-video-server/internal/resolver"
	"facebook-video-server/internal/scraper"
	"facebook-video-server/internal/server"
	"facebook-video-server/internal/session"
	"facebook-video-server/internal/storage"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	configManager := config.NewManager()
	cfg, err := configManager.Load("")
	if err != nil {
		log.Fatal().Err(err).Msg("Error loading configuration")
	}

	sess := session.NewManager(cfg.Session.CookieFile, cfg.Session.NetscapeFile, cfg.Session.CredentialsFile)
	if sess.Authenticated() {
		log.Info().Msg("Restored saved Facebook session")
	}

	mon := monitor.NewMonitor()
	mon.Start()
	defer mon.Stop()

	res := resolver.New(
		cfg.Resolver.Path,
		cfg.Resolver.UserAgent,
		time.Duration(cfg.Resolver.TitleTimeout)*time.Second,
		time.Duration(cfg.Resolver.MediaTimeout)*time.Second,
		sess,
	)
	if !res.Available() {
		log.Warn().Str("binary", cfg.Resolver.Path).
			Msg("Resolver binary not found; every extraction will use the browser")
	}

	scr := scraper.New(cfg, sess, mon)

	store, err := storage.NewSQLiteStorage(cfg.Database.Path)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing storage")
	}
	defer store.Close()

	resultCache := cache.New(time.Duration(cfg.Cache.TTLMinutes) * time.Minute)
	orch := extractor.NewOrchestrator(res, scr, resultCache, store, mon)

	srv, err := server.NewServer(cfg, orch, scr, sess, resultCache, store, mon)
	if err != nil {
		log.Fatal().Err(err).Msg("Error creating server")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("Error running server")
	}
}
