// Command migrate initializes or updates the database schema.
package main

import (
	"log"

	"github.com/joho/godotenv"

	"github.com/solroute/orderengine/internal/config"
	"github.com/solroute/orderengine/internal/database"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := config.Load()

	log.Println("Starting database migration...")
	db, err := database.NewPostgres(
		cfg.Database.DSN,
		cfg.Database.MaxOpenConns,
		cfg.Database.MaxIdleConns,
		cfg.Database.ConnMaxLifetime,
	)
	if err != nil {
		log.Fatalf("Migration error: %v", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		log.Fatalf("Migration error: %v", err)
	}
	log.Println("Database migration completed successfully")
}
