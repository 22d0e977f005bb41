package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/budget-engine/internal/allocation"
	"github.com/dvloznov/budget-engine/internal/category"
	"github.com/dvloznov/budget-engine/internal/config"
	"github.com/dvloznov/budget-engine/internal/engine"
	"github.com/dvloznov/budget-engine/internal/export"
	infraFS "github.com/dvloznov/budget-engine/internal/infra/firestore"
	"github.com/dvloznov/budget-engine/internal/logger"
	"github.com/dvloznov/budget-engine/internal/reassign"
	"github.com/dvloznov/budget-engine/internal/reconcile"
)

func main() {
	log := logger.New()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "recalculate":
		runRecalculate(log)
	case "reassign":
		runReassign(log)
	case "extend-periods":
		runExtendPeriods(log)
	case "export":
		runExport(log)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Budget Engine CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  recalculate     Rebuild a budget's spending from the transaction log")
	fmt.Println("  reassign        Re-home splits away from a soft-deleted budget")
	fmt.Println("  extend-periods  Materialize period allocations further into the future")
	fmt.Println("  export          Write an allocation snapshot to GCS")
	fmt.Println("\nConfiguration comes from BUDGET_ENGINE_* environment variables.")
}

// setup loads configuration and connects the Firestore-backed engine.
func setup(log zerolog.Logger) (*config.Config, *infraFS.Store, *engine.Engine) {
	cfg, err := config.Load("")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if cfg.GCPProjectID == "" {
		log.Fatal().Msg("BUDGET_ENGINE_GCP_PROJECT_ID is required")
	}

	fs, err := infraFS.NewStore(context.Background(), cfg.GCPProjectID, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Firestore")
	}

	matcher := category.NewTaxonomyMatcher(nil)
	eng := engine.New(
		fs, fs,
		allocation.NewGenerator(fs, fs, log),
		reconcile.NewReconciler(fs, log),
		reconcile.NewRecalculator(fs, fs, fs, matcher, log),
		reassign.NewEngine(fs, fs, matcher, log),
		nil,
		cfg.HorizonMonths,
		log,
	)
	return cfg, fs, eng
}

func runRecalculate(log zerolog.Logger) {
	fs := flag.NewFlagSet("recalculate", flag.ExitOnError)
	owner := fs.String("owner", "", "Owner ID (required)")
	budgetID := fs.String("budget", "", "Budget ID (required)")
	fs.Parse(os.Args[2:])

	if *owner == "" || *budgetID == "" {
		fs.Usage()
		os.Exit(1)
	}

	_, store, eng := setup(log)
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	b, err := store.GetBudget(ctx, *owner, *budgetID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load budget")
	}

	result, err := eng.OnBudgetCategoriesChanged(ctx, b)
	if err != nil {
		log.Fatal().Err(err).Msg("Recalculation failed")
	}

	fmt.Printf("Transactions processed: %d\n", result.TransactionsProcessed)
	fmt.Printf("Total spending found:   %.2f\n", result.TotalSpendingFound)
	fmt.Printf("Periods updated:        %d\n", result.PeriodsUpdated)
	fmt.Printf("Errors:                 %d\n", len(result.Errors))
}

func runReassign(log zerolog.Logger) {
	fs := flag.NewFlagSet("reassign", flag.ExitOnError)
	owner := fs.String("owner", "", "Owner ID (required)")
	budgetID := fs.String("budget", "", "Soft-deleted budget ID (required)")
	fs.Parse(os.Args[2:])

	if *owner == "" || *budgetID == "" {
		fs.Usage()
		os.Exit(1)
	}

	_, store, eng := setup(log)
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	b, err := store.GetBudget(ctx, *owner, *budgetID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load budget")
	}

	result, err := eng.OnBudgetDeleted(ctx, b)
	if err != nil {
		log.Fatal().Err(err).Msg("Reassignment failed")
	}

	fmt.Printf("Transactions reassigned: %d\n", result.TransactionsReassigned)
	fmt.Printf("Splits reassigned:       %d\n", result.SplitsReassigned)
	for dest, count := range result.BudgetAssignments {
		fmt.Printf("  %s: %d\n", dest, count)
	}
	fmt.Printf("Errors:                  %d\n", len(result.Errors))
}

func runExtendPeriods(log zerolog.Logger) {
	fs := flag.NewFlagSet("extend-periods", flag.ExitOnError)
	owner := fs.String("owner", "", "Owner ID (required)")
	budgetID := fs.String("budget", "", "Budget ID (optional; all active budgets when empty)")
	months := fs.Int("months", 0, "Months forward (defaults to the configured horizon)")
	fs.Parse(os.Args[2:])

	if *owner == "" {
		fs.Usage()
		os.Exit(1)
	}

	_, store, eng := setup(log)
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	result, err := eng.ExtendPeriods(ctx, *owner, *budgetID, *months)
	if err != nil {
		log.Fatal().Err(err).Msg("Period extension failed")
	}

	fmt.Printf("Budgets processed:    %d\n", result.BudgetsProcessed)
	fmt.Printf("Allocations upserted: %d\n", result.AllocationsUpserted)
	fmt.Printf("Errors:               %d\n", len(result.Errors))
}

func runExport(log zerolog.Logger) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	owner := fs.String("owner", "", "Owner ID (required)")
	fs.Parse(os.Args[2:])

	if *owner == "" {
		fs.Usage()
		os.Exit(1)
	}

	cfg, store, _ := setup(log)
	defer store.Close()
	if cfg.SnapshotBucket == "" {
		log.Fatal().Msg("BUDGET_ENGINE_SNAPSHOT_BUCKET is required for export")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	snapshotter := export.NewSnapshotter(store, store, cfg.SnapshotBucket, log)
	uri, err := snapshotter.Export(ctx, *owner)
	if err != nil {
		log.Fatal().Err(err).Msg("Export failed")
	}

	fmt.Printf("Snapshot written to %s\n", uri)
}
