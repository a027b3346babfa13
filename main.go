package main

import (
	"context"
	"log"
	"os"

	"notekeep/models"
	"notekeep/web"

	"github.com/rohanthewiz/logger"
)

func main() {
	// Initialize logger
	logger.SetLogLevel("info")

	dbPath := os.Getenv("NOTEKEEP_DB_PATH")
	if dbPath == "" {
		dbPath = "notekeep.db"
	}

	// Initialize database with dual-database architecture
	if err := models.InitDB(dbPath); err != nil {
		log.Fatal("Failed to initialize database:", err)
	}
	defer models.CloseDB()

	cfg, err := models.LoadSyncConfig()
	if err != nil {
		log.Fatal("Failed to load sync config:", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal("Invalid sync config:", err)
	}

	if cfg.Enabled {
		transport := models.NewHubTransport(cfg)
		engine, err := models.NewSyncEngine(cfg, transport, models.NewEventBus(), func(ctx context.Context) bool {
			return transport.Health(ctx) == nil
		})
		if err != nil {
			log.Fatal("Failed to initialize sync engine:", err)
		}

		watcher := models.NewNetworkWatcher(engine, func(ctx context.Context) bool {
			return transport.Health(ctx) == nil
		}, cfg)
		watcher.Start(context.Background())
		defer watcher.Stop()

		logger.Info("Sync enabled", "hub_url", cfg.HubURL)
	} else {
		logger.Info("Sync disabled; running as a standalone notebook")
	}

	// Start server
	srv := web.NewServer()
	log.Fatal(web.Run(srv))
}
