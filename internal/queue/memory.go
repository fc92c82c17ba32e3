package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/deploykit/templatehub/internal/models"
	"github.com/google/uuid"
)

// MemoryQueue implements an in-memory extraction job queue for
// single-instance deployments.
type MemoryQueue struct {
	jobChan chan *models.ExtractionJob
}

// NewMemoryQueue creates a new in-memory queue
func NewMemoryQueue(bufferSize int) *MemoryQueue {
	if bufferSize <= 0 {
		bufferSize = 100
	}

	q := &MemoryQueue{
		jobChan: make(chan *models.ExtractionJob, bufferSize),
	}

	slog.Info("Initialized in-memory extraction queue", "buffer_size", bufferSize)
	return q
}

// Enqueue adds a job to the queue
func (q *MemoryQueue) Enqueue(ctx context.Context, job *models.ExtractionJob) error {
	if job.ID == uuid.Nil {
		return fmt.Errorf("job must have an ID")
	}

	select {
	case q.jobChan <- job:
		slog.Debug("Extraction job enqueued", "job_id", job.ID, "template_id", job.TemplateID)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(5 * time.Second):
		return fmt.Errorf("queue is full, could not enqueue job %s", job.ID)
	}
}

// Dequeue retrieves the next job from the queue
func (q *MemoryQueue) Dequeue(ctx context.Context) (*models.ExtractionJob, error) {
	select {
	case job := <-q.jobChan:
		slog.Debug("Extraction job dequeued", "job_id", job.ID)
		return job, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close closes the queue and releases resources
func (q *MemoryQueue) Close() error {
	close(q.jobChan)
	slog.Info("Memory queue closed")
	return nil
}
