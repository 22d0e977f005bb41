// The worker consumes budget events from the queue without serving HTTP.
// With the in-memory queue it is mainly a development harness; a production
// deployment would swap in a Cloud Tasks or Pub/Sub consumer.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/budget-engine/internal/allocation"
	"github.com/dvloznov/budget-engine/internal/category"
	"github.com/dvloznov/budget-engine/internal/config"
	"github.com/dvloznov/budget-engine/internal/engine"
	infraBQ "github.com/dvloznov/budget-engine/internal/infra/bigquery"
	infraFS "github.com/dvloznov/budget-engine/internal/infra/firestore"
	"github.com/dvloznov/budget-engine/internal/jobs/inmemory"
	"github.com/dvloznov/budget-engine/internal/logger"
	"github.com/dvloznov/budget-engine/internal/reassign"
	"github.com/dvloznov/budget-engine/internal/reconcile"
)

func main() {
	var configPath = flag.String("config", "", "Path to optional YAML config file")
	flag.Parse()

	log := logger.New()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if cfg.GCPProjectID == "" {
		log.Fatal().Msg("BUDGET_ENGINE_GCP_PROJECT_ID is required for the worker")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fs, err := infraFS.NewStore(ctx, cfg.GCPProjectID, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Firestore")
	}
	defer fs.Close()

	sink, err := infraBQ.NewAuditSink(ctx, cfg.GCPProjectID, cfg.BigQueryDataset, cfg.AuditTable, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create audit sink")
	}
	defer sink.Close()

	matcher := category.NewTaxonomyMatcher(nil)
	eng := engine.New(
		fs, fs,
		allocation.NewGenerator(fs, fs, log),
		reconcile.NewReconciler(fs, log),
		reconcile.NewRecalculator(fs, fs, fs, matcher, log),
		reassign.NewEngine(fs, fs, matcher, log),
		sink,
		cfg.HorizonMonths,
		log,
	)

	jobStore := inmemory.NewStore()
	queue := inmemory.NewQueue(cfg.QueueBufferSize, cfg.WorkerCount, jobStore)

	log.Info().Int("workers", cfg.WorkerCount).Msg("Starting worker service")
	if err := queue.Start(ctx, eng.HandleJob); err != nil {
		log.Fatal().Err(err).Msg("Failed to start event consumer")
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down")

	shutdownCtx, stop := context.WithTimeout(context.Background(), 30*time.Second)
	defer stop()
	if err := queue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Event consumer shutdown failed")
	}
}
