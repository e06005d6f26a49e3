// Package ledger records job lifecycle state transitions and final results,
// keyed by job id. Concurrent jobs update independent records; transitions
// are monotonic and terminal states are never overwritten.
package ledger

import (
	"context"
	"errors"

	"github.com/kapsule/studio-api/internal/models"
)

// ErrNotFound is returned by Get for unknown job ids.
var ErrNotFound = errors.New("job not found")

// Ledger is the job status store. UpdateStatus is deliberately forgiving:
// unknown ids and invalid transitions record nothing and log a warning
// instead of failing, so the orchestrator's terminal transition is
// unconditional. Only infrastructure failures surface as errors.
type Ledger interface {
	// Create stores a new job with a fresh id and status queued, and
	// returns the job id.
	Create(ctx context.Context, job *models.Job) (string, error)

	// UpdateStatus advances a job's status. videoURL is stored on the
	// transition to complete, errDetail on the transition to error; both
	// terminal transitions stamp completedAt exactly once.
	UpdateStatus(ctx context.Context, jobID string, status models.JobStatus, videoURL, errDetail string) error

	// Get returns the job record or ErrNotFound.
	Get(ctx context.Context, jobID string) (*models.Job, error)
}
