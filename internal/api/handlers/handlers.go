// Package handlers exposes the engine's operations over HTTP: event intake
// for transaction writes, synchronous budget maintenance, allocation progress
// reads, snapshot export and job status.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/dvloznov/budget-engine/internal/api/middleware"
	"github.com/dvloznov/budget-engine/internal/domain"
	"github.com/dvloznov/budget-engine/internal/engine"
	"github.com/dvloznov/budget-engine/internal/jobs"
	"github.com/dvloznov/budget-engine/internal/store"
)

// Exporter writes a snapshot of an owner's period allocations to object
// storage and returns the object path.
type Exporter interface {
	Export(ctx context.Context, ownerID string) (string, error)
}

// statusFor maps domain sentinel errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrPreconditionFailed):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// EventsHandler accepts transaction write events and hands them to the queue.
type EventsHandler struct {
	publisher jobs.Publisher
	log       zerolog.Logger
}

// NewEventsHandler creates an events handler.
func NewEventsHandler(publisher jobs.Publisher, log zerolog.Logger) *EventsHandler {
	return &EventsHandler{publisher: publisher, log: log}
}

// TransactionWrite handles POST /api/transactions/events
func (h *EventsHandler) TransactionWrite(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OldTransaction *domain.Transaction `json:"old_transaction"`
		NewTransaction *domain.Transaction `json:"new_transaction"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.OldTransaction == nil && req.NewTransaction == nil {
		middleware.WriteError(w, http.StatusBadRequest, "old_transaction or new_transaction is required")
		return
	}

	job := &jobs.BudgetEventJob{
		Type:           jobs.JobTypeTransactionWrite,
		OwnerID:        middleware.OwnerID(r.Context()),
		OldTransaction: req.OldTransaction,
		NewTransaction: req.NewTransaction,
	}
	if err := h.publisher.PublishBudgetEvent(r.Context(), job); err != nil {
		h.log.Error().Err(err).Msg("Failed to enqueue transaction event")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue event")
		return
	}

	h.log.Info().Str("job_id", job.JobID).Msg("Transaction event enqueued")
	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id": job.JobID,
		"status": string(job.Status),
	})
}

// BudgetsHandler serves synchronous budget maintenance and progress reads.
type BudgetsHandler struct {
	engine      *engine.Engine
	budgets     store.BudgetStore
	allocations store.AllocationStore
	log         zerolog.Logger
}

// NewBudgetsHandler creates a budgets handler.
func NewBudgetsHandler(eng *engine.Engine, budgets store.BudgetStore, allocations store.AllocationStore, log zerolog.Logger) *BudgetsHandler {
	return &BudgetsHandler{
		engine:      eng,
		budgets:     budgets,
		allocations: allocations,
		log:         log,
	}
}

// Recalculate handles POST /api/budgets/{budgetID}/recalculate
func (h *BudgetsHandler) Recalculate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ownerID := middleware.OwnerID(ctx)
	budgetID := chi.URLParam(r, "budgetID")

	b, err := h.budgets.GetBudget(ctx, ownerID, budgetID)
	if err != nil {
		middleware.WriteError(w, statusFor(err), "Budget not found")
		return
	}

	result, err := h.engine.OnBudgetCategoriesChanged(ctx, b)
	if err != nil {
		h.log.Error().Err(err).Str("budget_id", budgetID).Msg("Recalculation failed")
		middleware.WriteError(w, statusFor(err), "Recalculation failed")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"transactions_processed": result.TransactionsProcessed,
		"total_spending_found":   result.TotalSpendingFound,
		"periods_updated":        result.PeriodsUpdated,
		"errors":                 errorStrings(result.Errors),
	})
}

// Reassign handles POST /api/budgets/{budgetID}/reassign
func (h *BudgetsHandler) Reassign(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ownerID := middleware.OwnerID(ctx)
	budgetID := chi.URLParam(r, "budgetID")

	b, err := h.budgets.GetBudget(ctx, ownerID, budgetID)
	if err != nil {
		middleware.WriteError(w, statusFor(err), "Budget not found")
		return
	}

	result, err := h.engine.OnBudgetDeleted(ctx, b)
	if err != nil {
		if errors.Is(err, domain.ErrPreconditionFailed) {
			middleware.WriteError(w, http.StatusConflict, "Budget must be soft-deleted before reassignment")
			return
		}
		h.log.Error().Err(err).Str("budget_id", budgetID).Msg("Reassignment failed")
		middleware.WriteError(w, statusFor(err), "Reassignment failed")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"transactions_reassigned": result.TransactionsReassigned,
		"splits_reassigned":       result.SplitsReassigned,
		"budget_assignments":      result.BudgetAssignments,
		"errors":                  errorStrings(result.Errors),
	})
}

// ExtendPeriods handles POST /api/budgets/{budgetID}/periods/extend
func (h *BudgetsHandler) ExtendPeriods(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ownerID := middleware.OwnerID(ctx)
	budgetID := chi.URLParam(r, "budgetID")

	var req struct {
		MonthsForward int `json:"months_forward"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.engine.ExtendPeriods(ctx, ownerID, budgetID, req.MonthsForward)
	if err != nil {
		h.log.Error().Err(err).Str("budget_id", budgetID).Msg("Period extension failed")
		middleware.WriteError(w, statusFor(err), "Period extension failed")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"budgets_processed":    result.BudgetsProcessed,
		"allocations_upserted": result.AllocationsUpserted,
		"errors":               errorStrings(result.Errors),
	})
}

// ListPeriods handles GET /api/budgets/{budgetID}/periods
func (h *BudgetsHandler) ListPeriods(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ownerID := middleware.OwnerID(ctx)
	budgetID := chi.URLParam(r, "budgetID")

	if _, err := h.budgets.GetBudget(ctx, ownerID, budgetID); err != nil {
		middleware.WriteError(w, statusFor(err), "Budget not found")
		return
	}

	allocations, err := h.allocations.ListActiveAllocations(ctx, ownerID, budgetID)
	if err != nil {
		h.log.Error().Err(err).Str("budget_id", budgetID).Msg("Failed to list allocations")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list periods")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"periods": allocations,
		"count":   len(allocations),
	})
}

// JobsHandler handles job-status endpoints.
type JobsHandler struct {
	store jobs.JobStore
	log   zerolog.Logger
}

// NewJobsHandler creates a jobs handler.
func NewJobsHandler(store jobs.JobStore, log zerolog.Logger) *JobsHandler {
	return &JobsHandler{store: store, log: log}
}

// GetJob handles GET /api/jobs/{jobID}
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	job, err := h.store.GetJob(r.Context(), jobID)
	if err != nil {
		middleware.WriteError(w, http.StatusNotFound, "Job not found")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListJobs handles GET /api/jobs
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := jobs.JobFilter{
		OwnerID: middleware.OwnerID(r.Context()),
		Type:    jobs.JobType(query.Get("type")),
		Status:  jobs.JobStatus(query.Get("status")),
	}
	if limitStr := query.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	}
	if offsetStr := query.Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil {
			filter.Offset = offset
		}
	}

	jobsList, err := h.store.ListJobs(r.Context(), filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobsList,
		"count": len(jobsList),
	})
}

func errorStrings(errs []error) []string {
	out := make([]string, 0, len(errs))
	for _, err := range errs {
		out = append(out, err.Error())
	}
	return out
}
