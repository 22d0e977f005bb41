// Package bigquery records engine runs in a BigQuery table for offline
// analysis: which operation ran, for which owner and budget, what it touched
// and how long it took.
package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/rs/zerolog"

	"github.com/dvloznov/budget-engine/internal/engine"
)

// runRow is the schema of the reconciliation runs table.
type runRow struct {
	RunID     string `bigquery:"run_id"`
	OwnerID   string `bigquery:"owner_id"`
	BudgetID  string `bigquery:"budget_id"`
	Operation string `bigquery:"operation"`

	PeriodsUpdated        int `bigquery:"periods_updated"`
	TransactionsProcessed int `bigquery:"transactions_processed"`
	SplitsReassigned      int `bigquery:"splits_reassigned"`
	ErrorCount            int `bigquery:"error_count"`

	StartedTS  time.Time `bigquery:"started_ts"`
	FinishedTS time.Time `bigquery:"finished_ts"`
}

// AuditSink streams engine run records into BigQuery.
type AuditSink struct {
	client  *bigquery.Client
	dataset string
	table   string
	log     zerolog.Logger
}

// NewAuditSink connects to BigQuery in the given project.
func NewAuditSink(ctx context.Context, projectID, dataset, table string, log zerolog.Logger) (*AuditSink, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("audit sink: bigquery client: %w", err)
	}
	return &AuditSink{client: client, dataset: dataset, table: table, log: log}, nil
}

// RecordRun implements engine.AuditSink.
func (s *AuditSink) RecordRun(ctx context.Context, run engine.AuditRun) error {
	row := &runRow{
		RunID:                 run.RunID,
		OwnerID:               run.OwnerID,
		BudgetID:              run.BudgetID,
		Operation:             run.Operation,
		PeriodsUpdated:        run.PeriodsUpdated,
		TransactionsProcessed: run.TransactionsProcessed,
		SplitsReassigned:      run.SplitsReassigned,
		ErrorCount:            run.ErrorCount,
		StartedTS:             run.StartedAt,
		FinishedTS:            run.FinishedAt,
	}

	inserter := s.client.Dataset(s.dataset).Table(s.table).Inserter()
	if err := inserter.Put(ctx, row); err != nil {
		return fmt.Errorf("audit sink: inserting run %s: %w", run.RunID, err)
	}

	s.log.Debug().
		Str("run_id", run.RunID).
		Str("operation", run.Operation).
		Msg("Run recorded")
	return nil
}

// Close releases the underlying client.
func (s *AuditSink) Close() error {
	return s.client.Close()
}

var _ engine.AuditSink = (*AuditSink)(nil)
