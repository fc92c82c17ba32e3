package queue

import (
	"context"
	"errors"

	"github.com/deploykit/templatehub/internal/models"
)

// ErrJobNotFound is returned when a job is not found
var ErrJobNotFound = errors.New("job not found")

// Queue transports extraction jobs from the request path to the worker.
// The database row is the source of truth for job state; the queue only
// carries dispatch.
type Queue interface {
	// Enqueue adds a job to the queue
	Enqueue(ctx context.Context, job *models.ExtractionJob) error

	// Dequeue retrieves the next job, blocking until one is available,
	// the context is done, or a poll timeout elapses
	// (context.DeadlineExceeded).
	Dequeue(ctx context.Context) (*models.ExtractionJob, error)

	// Close closes the queue and releases resources
	Close() error
}
