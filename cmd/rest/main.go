package main

import (
	"context"
	"log"

	"ai-triage-be/internal/bootstrap"
	"ai-triage-be/internal/config"
	"ai-triage-be/internal/server"
)

func main() {
	// 1. Load Configuration
	cfg := config.Load()

	// 2. Bootstrap Dependencies (Container)
	container := bootstrap.NewContainer(cfg)
	defer container.Logger.Sync()

	// 3. Start Background Services
	log.Println("Background: Starting Consumer Service...")
	if err := container.ConsumerService.Start(context.Background()); err != nil {
		log.Panicf("Unable to start consumer service: %v", err)
	}

	// 4. Initialize Server
	srv := server.New(cfg, container)

	// 5. Run Server
	log.Fatal(srv.Run())
}
