package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/civil"

	"github.com/dvloznov/budget-engine/internal/allocation"
	"github.com/dvloznov/budget-engine/internal/api/handlers"
	"github.com/dvloznov/budget-engine/internal/category"
	"github.com/dvloznov/budget-engine/internal/config"
	"github.com/dvloznov/budget-engine/internal/engine"
	"github.com/dvloznov/budget-engine/internal/export"
	infraBQ "github.com/dvloznov/budget-engine/internal/infra/bigquery"
	infraFS "github.com/dvloznov/budget-engine/internal/infra/firestore"
	"github.com/dvloznov/budget-engine/internal/jobs/inmemory"
	"github.com/dvloznov/budget-engine/internal/logger"
	"github.com/dvloznov/budget-engine/internal/reassign"
	"github.com/dvloznov/budget-engine/internal/reconcile"
	"github.com/dvloznov/budget-engine/internal/store"
	"github.com/dvloznov/budget-engine/internal/store/memory"
)

// stores bundles the repository interfaces one backend satisfies.
type stores struct {
	budgets      store.BudgetStore
	transactions store.TransactionStore
	allocations  store.AllocationStore
	periods      store.PeriodProvider
}

func main() {
	var configPath = flag.String("config", "", "Path to optional YAML config file")
	flag.Parse()

	log := logger.New()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	ctx := context.Background()

	var st stores
	var closeStore func() error
	if cfg.GCPProjectID != "" {
		fs, err := infraFS.NewStore(ctx, cfg.GCPProjectID, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Firestore")
		}
		st = stores{budgets: fs, transactions: fs, allocations: fs, periods: fs}
		closeStore = fs.Close
	} else {
		log.Warn().Msg("No GCP project configured; using in-memory store (data is not persisted)")
		mem := memory.NewStore()
		today := civil.DateOf(time.Now().UTC())
		mem.SeedCalendarPeriods(today.AddDays(-365), today.AddDays(365))
		st = stores{budgets: mem, transactions: mem, allocations: mem, periods: mem}
		closeStore = func() error { return nil }
	}
	defer closeStore()

	var audit engine.AuditSink
	if cfg.GCPProjectID != "" {
		sink, err := infraBQ.NewAuditSink(ctx, cfg.GCPProjectID, cfg.BigQueryDataset, cfg.AuditTable, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create audit sink")
		}
		defer sink.Close()
		audit = sink
	}

	matcher := category.NewTaxonomyMatcher(nil)
	eng := engine.New(
		st.budgets,
		st.allocations,
		allocation.NewGenerator(st.periods, st.allocations, log),
		reconcile.NewReconciler(st.allocations, log),
		reconcile.NewRecalculator(st.budgets, st.transactions, st.allocations, matcher, log),
		reassign.NewEngine(st.budgets, st.transactions, matcher, log),
		audit,
		cfg.HorizonMonths,
		log,
	)

	jobStore := inmemory.NewStore()
	queue := inmemory.NewQueue(cfg.QueueBufferSize, cfg.WorkerCount, jobStore)

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()
	if err := queue.Start(workerCtx, eng.HandleJob); err != nil {
		log.Fatal().Err(err).Msg("Failed to start event consumer")
	}

	var exporter handlers.Exporter
	if cfg.SnapshotBucket != "" {
		exporter = export.NewSnapshotter(st.budgets, st.allocations, cfg.SnapshotBucket, log)
	} else {
		log.Warn().Msg("No snapshot bucket configured; export endpoint is disabled")
	}

	router := handlers.NewRouter(
		handlers.NewEventsHandler(queue, log),
		handlers.NewBudgetsHandler(eng, st.budgets, st.allocations, log),
		handlers.NewJobsHandler(jobStore, log),
		handlers.NewAdminHandler(exporter, log),
		log,
	)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
	}
	if err := queue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Event consumer shutdown failed")
	}
}
