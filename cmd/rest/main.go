package main

import (
	"context"
	"log"

	"doc-qa-be/internal/bootstrap"
	"doc-qa-be/internal/config"
	"doc-qa-be/internal/server"
	"doc-qa-be/internal/tracer"
	"doc-qa-be/pkg/database"

	"github.com/fatih/color"
)

func main() {
	// 1. Load Configuration
	cfg := config.Load()

	// 2. Initialize Tracer (no-op unless OTEL_ENABLED)
	shutdownTracer := tracer.InitTracer()
	defer shutdownTracer(context.Background())

	// 3. Initialize Database
	gormDB, err := database.NewGormDBFromDSN(cfg.Database.Connection)
	if err != nil {
		log.Panicf("Unable to connect to GORM DB: %v", err)
	}

	// 4. Bootstrap Dependencies (Container)
	container := bootstrap.NewContainer(gormDB, cfg)

	// 5. Start Background Services
	go func() {
		log.Println("Background: Starting Indexing Consumer...")
		if err := container.ConsumerService.Consume(context.Background()); err != nil {
			log.Printf("Background Consumer Error: %v", err)
		}
	}()

	color.Cyan("doc-qa-be | document question answering service")
	color.Green("env=%s port=%s llm=%s embedding=%s", cfg.App.Environment, cfg.App.Port, cfg.Ai.LLMProvider, cfg.Ai.EmbeddingProvider)

	// 6. Run Server
	srv := server.New(cfg, container)
	log.Fatal(srv.Run())
}
