// Package main is the entry point for the Kaiboard server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/rs/zerolog/log"

	"github.com/kaiboard/backend/internal/api"
	"github.com/kaiboard/backend/internal/calendar"
	"github.com/kaiboard/backend/internal/config"
	"github.com/kaiboard/backend/internal/logging"
	"github.com/kaiboard/backend/internal/meeting"
	"github.com/kaiboard/backend/internal/storage"
	"github.com/kaiboard/backend/internal/websocket"
)

// version is set at build time via -ldflags "-X main.version=x.y.z".
var version = "dev"

func main() {
	configPath := flag.String("config", "/data/config.yaml", "Path to the YAML configuration file")
	addr := flag.String("addr", "", "HTTP server address (overrides config)")
	dataDir := flag.String("data", "", "Data directory for the SQLite database (overrides config)")
	staticDir := flag.String("static", "", "Directory for static frontend files (overrides config)")
	healthCheck := flag.Bool("health-check", false, "Run health check and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading config %s: %v\n", *configPath, err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Listen = *addr
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}
	if *staticDir != "" {
		cfg.StaticDir = *staticDir
	}

	// Health check mode for Docker HEALTHCHECK
	if *healthCheck {
		if err := runHealthCheck(cfg.Listen); err != nil {
			fmt.Fprintf(os.Stderr, "health check failed: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	if envVer := os.Getenv("VERSION"); envVer != "" {
		version = envVer
	}

	logging.Setup(cfg.Log.Level, cfg.Log.Format)
	log.Info().Str("version", version).Str("config", *configPath).Msg("starting kaiboard")

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		log.Fatal().Err(err).Str("dir", cfg.DataDir).Msg("creating data directory")
	}
	db, err := storage.NewDB(cfg.DatabasePath())
	if err != nil {
		log.Fatal().Err(err).Msg("opening database")
	}
	defer db.Close()

	if err := storage.RunMigrations(db); err != nil {
		log.Fatal().Err(err).Msg("running migrations")
	}

	hub := websocket.NewHub()
	go hub.Run()
	broadcaster := websocket.NewEventBroadcaster(hub)

	users := storage.NewUserRepository(db)
	teams := storage.NewTeamRepository(db)
	settings := storage.NewSettingsRepository(db)

	meetings := meeting.NewService(
		storage.NewMeetingRepository(db),
		users,
		settings,
		broadcaster,
		cfg.Meetings.DefaultDurationMin,
	)

	scheduler := meeting.NewScheduler(
		meetings,
		time.Duration(cfg.Reminder.LeadMinutes)*time.Minute,
		cfg.ReminderInterval(),
	)
	if err := scheduler.Start(); err != nil {
		log.Fatal().Err(err).Msg("starting reminder scheduler")
	}

	router := api.NewRouter(api.Services{
		DB:          db,
		Users:       users,
		Teams:       teams,
		Settings:    settings,
		Meetings:    meetings,
		Scheduler:   scheduler,
		Hub:         hub,
		Broadcaster: broadcaster,
		Fetcher:     calendar.NewFetcher(cfg.FetchTimeout(), calendar.AllowPrivateHosts(cfg.Import.AllowPrivateHosts)),
		StaticDir:   cfg.StaticDir,
	})

	server := &http.Server{
		Addr:         cfg.Listen,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.Listen).Msg("server listening")
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")

	scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server shutdown")
	}
	hub.Stop()

	log.Info().Msg("server stopped")
}

// runHealthCheck performs a health check against the running server.
func runHealthCheck(addr string) error {
	host := addr
	if len(host) > 0 && host[0] == ':' {
		host = "localhost" + host
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get("http://" + host + "/api/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return nil
}
