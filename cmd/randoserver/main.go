// Command randoserver runs the WebSocket map generation service.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lawnchairsociety/roomweaver/internal/config"
	"github.com/lawnchairsociety/roomweaver/internal/database"
	"github.com/lawnchairsociety/roomweaver/internal/library"
	"github.com/lawnchairsociety/roomweaver/internal/logger"
	"github.com/lawnchairsociety/roomweaver/internal/server"
)

func main() {
	os.Exit(run())
}

func run() int {
	configFile := flag.String("config", "data/service.yaml", "Path to service config YAML file")
	loggingConfig := flag.String("logging", "data/logging.yaml", "Path to logging config YAML file")
	listen := flag.String("listen", "", "Listen address override")
	flag.Parse()

	logConfig, _ := logger.LoadConfig(*loggingConfig)
	logger.Initialize(logConfig)

	cfg, err := config.LoadServiceConfig(*configFile)
	if err != nil {
		logger.Warning("Failed to load service config, using defaults", "path", *configFile, "error", err)
		cfg = config.DefaultServiceConfig()
	}
	if *listen != "" {
		cfg.ListenAddr = *listen
	}

	lib, err := library.LoadDir(cfg.Library)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load room library: %v\n", err)
		return 1
	}
	logger.Info("Room library loaded", "path", cfg.Library, "rooms", lib.Len(), "sources", lib.Sources())

	db, err := database.OpenWithConfig(database.ConfigFrom(cfg.Database))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open database: %v\n", err)
		return 1
	}
	defer db.Close()
	logger.Info("Run history initialized", "driver", cfg.Database.Driver)

	if len(cfg.WebSocket.AllowedOrigins) == 0 {
		logger.Info("WebSocket CORS policy", "mode", "same-origin")
	} else if len(cfg.WebSocket.AllowedOrigins) == 1 && cfg.WebSocket.AllowedOrigins[0] == "*" {
		logger.Warning("WebSocket CORS allows all origins (not recommended for production)")
	} else {
		logger.Info("WebSocket CORS policy", "allowed_origins", cfg.WebSocket.AllowedOrigins)
	}

	srv := server.NewServer(cfg, lib)
	srv.SetRunRecorder(db)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Start()
	}()

	logger.Info("Press Ctrl+C to shutdown")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	select {
	case <-sigChan:
	case err := <-serveErr:
		if err != nil {
			logger.Error("Server error", "error", err)
			return 1
		}
	}

	logger.Info("Shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Shutdown did not complete", "error", err)
		return 1
	}
	return 0
}
