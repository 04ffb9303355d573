package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/construex/whatsapp-designer/internal/config"
	"github.com/construex/whatsapp-designer/internal/repository/postgres"
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	sourceURL := os.Getenv("MIGRATIONS_URL")
	if sourceURL == "" {
		sourceURL = "file://migrations"
	}

	fmt.Printf("Running migrations against %s:%d...\n", cfg.Database.Host, cfg.Database.Port)

	if err := postgres.RunMigrations(cfg.Database.DSN(), sourceURL); err != nil {
		panic(fmt.Sprintf("Migration failed: %v", err))
	}
}
