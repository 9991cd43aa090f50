package main

import (
	"context"
	"log"

	"ai-triage-be/internal/bootstrap"
	"ai-triage-be/internal/config"
)

// One-shot job: populates the vector store from the counseling dataset.
// Safe to run repeatedly; a non-empty collection is left untouched.
func main() {
	cfg := config.Load()

	container := bootstrap.NewContainer(cfg)
	defer container.Logger.Sync()

	if err := container.IngestService.Run(context.Background()); err != nil {
		log.Fatalf("Ingestion failed: %v", err)
	}

	log.Println("✅ Ingestion finished")
}
