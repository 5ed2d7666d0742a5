package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"batch-edit-engine/internal/config"
	"batch-edit-engine/internal/filesystem"
	"batch-edit-engine/internal/history"
	"batch-edit-engine/internal/lock"
	"batch-edit-engine/internal/service"
	"batch-edit-engine/internal/transport"
)

func main() {
	cfg := loadAndValidateConfig()
	initializeLogger(cfg.Transport)
	logEffectiveConfig(cfg)

	fsAdapter := filesystem.NewDefaultAdapter()
	lockManager := lock.NewManager(cfg.HistoryDirectory)
	historyStore, err := history.NewStore(fsAdapter, cfg.HistoryDirectory, cfg.HistoryMaxEntries)
	if err != nil {
		log.Printf("CRITICAL: Failed to initialize history store: %v", err)
		os.Exit(1)
	}
	editService, err := service.NewDefaultBatchEditService(fsAdapter, lockManager, historyStore, cfg)
	if err != nil {
		log.Printf("CRITICAL: Failed to initialize batch edit service: %v", err)
		os.Exit(1)
	}
	log.Println("Core services initialized successfully.")

	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, os.Interrupt, syscall.SIGTERM)
	serverDoneChan := make(chan error, 1)

	var httpHandler *transport.HTTPHandler
	switch cfg.Transport {
	case "http":
		log.Printf("Initializing HTTP transport on port %d...", cfg.Port)
		httpHandler = transport.NewHTTPHandler(editService)
		go func() {
			serverDoneChan <- httpHandler.StartServer(cfg.Port, cfg.LockTimeoutSec, cfg.LockTimeoutSec)
		}()
	case "stdio":
		log.Println("Initializing stdio JSON-RPC transport...")
		go func() {
			stdioHandler := transport.NewStdioHandler(editService)
			serverDoneChan <- stdioHandler.Start(os.Stdin, os.Stdout)
		}()
	default:
		// Config validation rejects anything else.
		log.Printf("CRITICAL: Unsupported transport type: %s", cfg.Transport)
		os.Exit(1)
	}

	select {
	case sig := <-shutdownChan:
		log.Printf("Shutdown signal received: %s. Initiating graceful shutdown...", sig)
		if cfg.Transport == "http" && httpHandler != nil {
			ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.LockTimeoutSec)*time.Second)
			defer cancel()
			if err := httpHandler.Server.Shutdown(ctx); err != nil {
				log.Printf("HTTP server graceful shutdown error: %v", err)
			} else {
				log.Println("HTTP server gracefully stopped.")
			}
		} else {
			log.Println("Stdio transport: handler stops on input EOF.")
		}
	case err := <-serverDoneChan:
		if err != nil && err != http.ErrServerClosed {
			log.Printf("Server stopped due to error: %v", err)
			os.Exit(1)
		}
		log.Println("Server stopped normally.")
	}

	log.Println("Application shutting down.")
}

func loadAndValidateConfig() *config.Config {
	cfg, err := config.ParseFlags(os.Args[1:])
	if err != nil {
		log.SetOutput(os.Stderr)
		log.Printf("CRITICAL: Flag error: %v", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		log.SetOutput(os.Stderr)
		log.Printf("CRITICAL: Configuration error: %v", err)
		os.Exit(1)
	}
	return cfg
}

func initializeLogger(transportType string) {
	if transportType == "stdio" {
		// JSON-RPC responses own stdout.
		log.SetOutput(os.Stderr)
	} else {
		log.SetOutput(os.Stdout)
	}
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	log.Println("Logger initialized.")
}

func logEffectiveConfig(cfg *config.Config) {
	log.Println("Effective configuration:")
	log.Printf("  Working Directory: %s", cfg.WorkingDirectory)
	log.Printf("  Transport: %s", cfg.Transport)
	if cfg.Transport == "http" {
		log.Printf("  HTTP Port: %d", cfg.Port)
	}
	log.Printf("  Max File Size (MB): %d", cfg.MaxFileSizeMB)
	log.Printf("  History Directory: %s", cfg.HistoryDirectory)
	log.Printf("  History Max Entries: %d", cfg.HistoryMaxEntries)
	log.Printf("  Context Lines: %d", cfg.ContextLines)
	log.Printf("  Lock Timeout (sec): %d", cfg.LockTimeoutSec)
}
