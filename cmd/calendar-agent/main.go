package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"calendar-agent/internal/calendar"
	"calendar-agent/internal/config"
	"calendar-agent/internal/confirmation"
	"calendar-agent/internal/crash"
	"calendar-agent/internal/handler"
	"calendar-agent/internal/history"
	"calendar-agent/internal/logger"
	"calendar-agent/internal/nlp"
	"calendar-agent/internal/server"
	"calendar-agent/internal/service"
	"calendar-agent/internal/storage"
)

func main() {
	defer crash.RecoverWithStackAndExit("main")

	configPath := flag.String("config", "configs/config.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := logger.Setup(cfg); err != nil {
		log.Fatalf("Failed to set up logger: %v", err)
	}

	if cfg.Database.Enabled {
		if err := storage.Initialize(cfg); err != nil {
			log.Fatalf("Failed to initialize database: %v", err)
		}
		service.Initialize(cfg)
		service.InitRepositories()
		logger.Info("Database connection established and repositories initialized")
	} else {
		logger.Info("Database support is disabled. Repositories will not be initialized.")
	}

	loc, err := cfg.Location()
	if err != nil {
		log.Fatalf("Failed to load timezone: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	calClient, err := calendar.NewClient(ctx, cfg, loc)
	if err != nil {
		log.Fatalf("Failed to initialize calendar client: %v", err)
	}

	pending := confirmation.NewStore(cfg.ConfirmationTimeout(), loc)
	hist := history.NewLog(cfg.History.Capacity, loc)
	parser := nlp.NewParser(cfg, loc)
	h := handler.New(calClient, parser, pending, hist, loc, cfg.LastActionWindow())

	srv := server.New(cfg, h, pending, hist, loc)

	crash.SafeGoroutine("http-server", func() {
		if err := srv.Start(); err != nil {
			logger.Fatalf("HTTP server error: %v", err)
		}
	})

	startMaintenance(pending, hist, cfg)

	logger.Infof("Calendar Agent started on port %s (timezone %s, confirmation timeout %ds)",
		cfg.Server.ListenPort, cfg.Calendar.Timezone, cfg.Confirmation.TimeoutSeconds)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)

	// Wait for signal
	sig := <-sigChan
	logger.Infof("Received signal: %v, shutting down...", sig)

	// Gracefully shutdown server
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	log.Println("Server gracefully stopped")
}

// startMaintenance runs the periodic cleanup passes. Both stores also sweep
// lazily on access; this only bounds memory between requests.
func startMaintenance(pending *confirmation.Store, hist *history.Log, cfg *config.Config) {
	retention := cfg.HistoryRetention()
	ticker := time.NewTicker(time.Minute)

	crash.SafeGoroutine("maintenance", func() {
		logger.Infof("Starting store maintenance goroutine with interval: %v", time.Minute)
		for range ticker.C {
			pending.SweepExpired()
			hist.PruneOlderThan(retention)
		}
	})
}
