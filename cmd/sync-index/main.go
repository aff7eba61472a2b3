package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"time"

	"tripmate/internal/config"
	"tripmate/internal/database"
	"tripmate/internal/logger"
	"tripmate/internal/repository"
	"tripmate/internal/search"
)

func main() {
	var batchSize int
	var recreate bool
	flag.IntVar(&batchSize, "batch", 500, "Plans per bulk request")
	flag.BoolVar(&recreate, "recreate", false, "Drop and recreate the index before syncing")
	flag.Parse()

	// Load configuration
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogFormat)

	slog.Info("Starting plan index synchronization", "index", cfg.Elasticsearch.Index, "recreate", recreate)

	// Connect to database
	db, err := database.Connect(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", "error", err)
	}
	defer db.Close()

	es, err := search.NewElasticsearchClient(cfg.Elasticsearch)
	if err != nil {
		logger.Fatal("Failed to connect to Elasticsearch", "error", err)
	}

	plans := repository.NewPlanRepository(db)

	if err := syncPlans(context.Background(), plans, es, batchSize, recreate); err != nil {
		logger.Fatal("Plan index synchronization failed", "error", err)
	}

	slog.Info("Plan index synchronization completed successfully")
}

func syncPlans(ctx context.Context, plans *repository.PlanRepository, es *search.ElasticsearchClient, batchSize int, recreate bool) error {
	start := time.Now()

	// Step 1: Drop stale documents together with the index
	if recreate {
		slog.Info("Recreating index")
		if err := es.RecreateIndex(ctx); err != nil {
			return fmt.Errorf("failed to recreate index: %w", err)
		}
	}

	// Step 2: Page through open plans and bulk index them
	var afterID int64
	total := 0
	for {
		batch, err := plans.ListOpenAfter(ctx, afterID, batchSize)
		if err != nil {
			return fmt.Errorf("failed to list open plans after %d: %w", afterID, err)
		}
		if len(batch) == 0 {
			break
		}

		if err := es.BulkIndexPlans(ctx, batch); err != nil {
			return fmt.Errorf("failed to index batch after %d: %w", afterID, err)
		}

		total += len(batch)
		afterID = batch[len(batch)-1].ID
		slog.Info("Indexed batch", "count", len(batch), "last_id", afterID)

		if len(batch) < batchSize {
			break
		}
	}

	elapsed := time.Since(start)
	slog.Info("Plan index synchronization finished",
		"plans_indexed", total,
		"duration", elapsed.String())

	return nil
}
