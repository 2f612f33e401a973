// cmd/recount-likes/main.go
// Rebuilds posts.like_count from the like records for every live post
package main

import (
	"context"
	"database/sql"
	"os"
	"time"

	_ "github.com/lib/pq"

	"Fanvault/internal/config"
	postgresRepo "Fanvault/internal/db/postgres"
)

func main() {
	logger := config.NewLogger(config.Logging{
		Level:  os.Getenv("LOG_LEVEL"),
		Format: os.Getenv("LOG_FORMAT"),
	})

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		dbURL = config.Default().Database.URL
	}

	logger.Info("connecting to database")
	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	drifts, err := postgresRepo.NewPostRepository(db).ReconcileAllLikeCounts(ctx)
	if err != nil {
		logger.Error("recount failed", "error", err)
		os.Exit(1)
	}

	for _, d := range drifts {
		logger.Info("repaired like count", "post", d.PostID, "stored", d.Stored, "actual", d.Actual)
	}
	logger.Info("recount complete", "repaired", len(drifts))
}
