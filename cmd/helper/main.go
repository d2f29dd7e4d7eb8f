package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/example/assistbot/internal/config"
	"github.com/example/assistbot/internal/database"
	"github.com/example/assistbot/internal/helper"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.APIID == 0 || cfg.APIHash == "" {
		log.Fatal("API_ID and API_HASH environment variables are required for the helper")
	}
	if cfg.MainBotUsername == "" {
		log.Fatal("MAIN_BOT_USERNAME environment variable is not set")
	}
	if _, err := os.Stat(cfg.SessionFile); err != nil {
		log.Fatalf("Session file %s is missing: authorize the account with an interactive MTProto client first", cfg.SessionFile)
	}

	if err := database.Connect(cfg.DatabasePath); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Printf("Received signal: %v", sig)
		cancel()
	}()

	log.Println("Helper client starting. Press Ctrl+C to stop.")
	err = helper.RunClient(ctx, cfg.APIID, cfg.APIHash, cfg.SessionFile, func(ctx context.Context, s *helper.TDSession) error {
		worker := helper.NewWorker(database.NewTaskRepository(), s, cfg.MainBotUsername)
		worker.Run(ctx)
		return nil
	})
	if err != nil && err != context.Canceled {
		log.Fatalf("Helper error: %v", err)
	}
	log.Println("Helper client stopped")
}
