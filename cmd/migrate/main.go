package main

import (
	"context"
	"fmt"
	"os"

	"github.com/finance-tracker/backend/internal/repository/postgres"
)

// Applies the embedded schema migrations and exits. The server also runs
// migrations on startup; this command exists for deploy pipelines that
// migrate before rolling the server.
func main() {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		fmt.Println("DATABASE_URL not set")
		os.Exit(1)
	}

	if err := postgres.RunMigrations(context.Background(), dbURL); err != nil {
		fmt.Printf("Migration failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Migrations applied successfully")
}
