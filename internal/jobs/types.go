package jobs

import (
	"context"
	"time"

	"github.com/dvloznov/budget-engine/internal/domain"
)

// JobType represents the type of job to be executed.
type JobType string

const (
	// JobTypeTransactionWrite reconciles a transaction create/update/delete.
	JobTypeTransactionWrite JobType = "transaction_write"
	// JobTypeBudgetCreated materializes allocations for a new budget and
	// absorbs pre-existing matching transactions.
	JobTypeBudgetCreated JobType = "budget_created"
	// JobTypeBudgetCategoriesChanged rebuilds spending after a category edit.
	JobTypeBudgetCategoriesChanged JobType = "budget_categories_changed"
	// JobTypeBudgetDeleted reassigns splits away from a soft-deleted budget.
	JobTypeBudgetDeleted JobType = "budget_deleted"
	// JobTypeExtendPeriods pushes the allocation horizon forward.
	JobTypeExtendPeriods JobType = "extend_periods"
)

// JobStatus represents the current status of a job.
type JobStatus string

const (
	// JobStatusPending indicates the job is waiting to be processed.
	JobStatusPending JobStatus = "pending"
	// JobStatusRunning indicates the job is currently being processed.
	JobStatusRunning JobStatus = "running"
	// JobStatusCompleted indicates the job completed successfully.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates the job failed.
	JobStatusFailed JobStatus = "failed"
	// JobStatusRetrying indicates the job failed and is being retried.
	JobStatusRetrying JobStatus = "retrying"
)

// BudgetEventJob carries one engine event through the queue. Which payload
// fields are set depends on Type: transaction writes carry OldTransaction
// and/or NewTransaction, budget lifecycle events carry Budget, and period
// extension carries BudgetID/MonthsForward.
type BudgetEventJob struct {
	// JobID is the unique identifier for this job.
	JobID string `json:"job_id"`

	// Type selects which engine operation the worker invokes.
	Type JobType `json:"type"`

	// OwnerID scopes every operation to one owner's data.
	OwnerID string `json:"owner_id"`

	// OldTransaction and NewTransaction are the two sides of a transaction
	// write event. A create has no old side; a delete has no new side.
	OldTransaction *domain.Transaction `json:"old_transaction,omitempty"`
	NewTransaction *domain.Transaction `json:"new_transaction,omitempty"`

	// Budget is the subject of budget lifecycle events.
	Budget *domain.Budget `json:"budget,omitempty"`

	// BudgetID optionally narrows an extend_periods run to one budget.
	BudgetID string `json:"budget_id,omitempty"`

	// MonthsForward is how far past today extend_periods materializes.
	MonthsForward int `json:"months_forward,omitempty"`

	// Status is the current status of the job.
	Status JobStatus `json:"status"`

	// CreatedAt is when the job was created.
	CreatedAt time.Time `json:"created_at"`

	// StartedAt is when the job started processing.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// CompletedAt is when the job completed (success or failure).
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Error contains error details if the job failed.
	Error string `json:"error,omitempty"`

	// RetryCount is the number of times this job has been retried.
	RetryCount int `json:"retry_count"`

	// MaxRetries is the maximum number of retries allowed.
	MaxRetries int `json:"max_retries"`
}

// Publisher defines the interface for publishing jobs to a queue.
// This abstraction allows for different queue implementations (in-memory, Cloud Tasks, Pub/Sub).
type Publisher interface {
	// PublishBudgetEvent publishes an engine event job.
	PublishBudgetEvent(ctx context.Context, job *BudgetEventJob) error

	// Close closes the publisher and releases resources.
	Close() error
}

// Consumer defines the interface for consuming jobs from a queue.
type Consumer interface {
	// Start begins consuming jobs from the queue.
	// The handler function is called for each job received.
	Start(ctx context.Context, handler JobHandler) error

	// Stop stops consuming jobs and waits for in-flight jobs to complete.
	Stop(ctx context.Context) error
}

// JobHandler is a function that processes a job.
// It should return an error if the job failed and should be retried.
type JobHandler func(ctx context.Context, job *BudgetEventJob) error

// JobStore defines the interface for storing and retrieving job status.
// This allows tracking job execution across service restarts.
type JobStore interface {
	// SaveJob saves or updates a job's state.
	SaveJob(ctx context.Context, job *BudgetEventJob) error

	// GetJob retrieves a job by ID.
	GetJob(ctx context.Context, jobID string) (*BudgetEventJob, error)

	// ListJobs retrieves jobs with optional filtering.
	ListJobs(ctx context.Context, filter JobFilter) ([]*BudgetEventJob, error)

	// UpdateJobStatus updates the status of a job.
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus, errorMsg string) error
}

// JobFilter defines filtering criteria for listing jobs.
type JobFilter struct {
	// OwnerID filters jobs by owner.
	OwnerID string

	// Type filters jobs by job type.
	Type JobType

	// Status filters jobs by status.
	Status JobStatus

	// Limit limits the number of results.
	Limit int

	// Offset for pagination.
	Offset int
}
