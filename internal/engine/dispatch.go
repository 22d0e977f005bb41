package engine

import (
	"context"
	"fmt"

	"github.com/dvloznov/budget-engine/internal/jobs"
)

// HandleJob routes one queued event to the matching engine operation. It is
// the shared job handler for the API's background consumer and the
// standalone worker.
func (e *Engine) HandleJob(ctx context.Context, job *jobs.BudgetEventJob) error {
	log := e.log.With().Str("job_id", job.JobID).Str("type", string(job.Type)).Logger()
	log.Info().Msg("Processing event")

	var err error
	switch job.Type {
	case jobs.JobTypeTransactionWrite:
		_, err = e.OnTransactionWrite(ctx, job.OldTransaction, job.NewTransaction, job.OwnerID)
	case jobs.JobTypeBudgetCreated:
		_, err = e.OnBudgetCreated(ctx, job.Budget)
	case jobs.JobTypeBudgetCategoriesChanged:
		_, err = e.OnBudgetCategoriesChanged(ctx, job.Budget)
	case jobs.JobTypeBudgetDeleted:
		_, err = e.OnBudgetDeleted(ctx, job.Budget)
	case jobs.JobTypeExtendPeriods:
		_, err = e.ExtendPeriods(ctx, job.OwnerID, job.BudgetID, job.MonthsForward)
	default:
		return fmt.Errorf("unknown job type %q", job.Type)
	}

	if err != nil {
		log.Error().Err(err).Msg("Event processing failed")
		return err
	}
	log.Info().Msg("Event processed")
	return nil
}
