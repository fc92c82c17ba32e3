package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/deploykit/templatehub/internal/models"
	"github.com/google/uuid"
	"github.com/valkey-io/valkey-go"
	"gorm.io/gorm"
)

// ValkeyQueue implements a distributed extraction job queue using Valkey.
// Valkey carries job IDs only; the database row is the source of truth.
type ValkeyQueue struct {
	client valkey.Client
	db     *gorm.DB
	key    string
}

// NewValkeyQueue creates a new Valkey-backed queue
func NewValkeyQueue(addr string, db *gorm.DB) (*ValkeyQueue, error) {
	if db == nil {
		return nil, fmt.Errorf("database instance is required for Valkey queue")
	}

	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress: []string{addr},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Valkey: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pingCmd := client.B().Ping().Build()
	if err := client.Do(ctx, pingCmd).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping Valkey: %w", err)
	}

	q := &ValkeyQueue{
		client: client,
		db:     db,
		key:    "templatehub:extractions",
	}

	slog.Info("Initialized Valkey extraction queue", "address", addr, "queue_key", q.key)
	return q, nil
}

// Enqueue saves the job to the database, then pushes its ID to the Valkey
// list (RPUSH for FIFO).
func (q *ValkeyQueue) Enqueue(ctx context.Context, job *models.ExtractionJob) error {
	if job.ID == uuid.Nil {
		return fmt.Errorf("job must have an ID")
	}

	if err := q.db.WithContext(ctx).Save(job).Error; err != nil {
		return fmt.Errorf("failed to save job to database: %w", err)
	}

	jobData, err := json.Marshal(map[string]string{"id": job.ID.String()})
	if err != nil {
		return fmt.Errorf("failed to marshal job data: %w", err)
	}

	cmd := q.client.B().Rpush().Key(q.key).Element(string(jobData)).Build()
	if err := q.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("failed to push job to Valkey: %w", err)
	}

	slog.Debug("Extraction job enqueued",
		"job_id", job.ID, "template_id", job.TemplateID, "queue_key", q.key)
	return nil
}

// Dequeue blocks on BLPOP, then loads the full job from the database.
func (q *ValkeyQueue) Dequeue(ctx context.Context) (*models.ExtractionJob, error) {
	cmd := q.client.B().Blpop().Key(q.key).Timeout(5).Build()
	result := q.client.Do(ctx, cmd)

	values, err := result.AsStrSlice()
	if err != nil {
		// BLPOP returns a nil message on timeout; an empty queue is the
		// normal case, surfaced as DeadlineExceeded to the caller.
		return nil, context.DeadlineExceeded
	}
	if len(values) < 2 {
		return nil, fmt.Errorf("invalid BLPOP result: expected 2 values, got %d", len(values))
	}

	var jobData map[string]string
	if err := json.Unmarshal([]byte(values[1]), &jobData); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job data: %w", err)
	}

	jobID, err := uuid.Parse(jobData["id"])
	if err != nil {
		return nil, fmt.Errorf("failed to parse job ID: %w", err)
	}

	var job models.ExtractionJob
	if err := q.db.WithContext(ctx).First(&job, "id = ?", jobID).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch job from database: %w", err)
	}

	slog.Debug("Extraction job dequeued", "job_id", job.ID, "template_id", job.TemplateID)
	return &job, nil
}

// GetClient returns the underlying Valkey client
func (q *ValkeyQueue) GetClient() valkey.Client {
	return q.client
}

// Close closes the Valkey connection
func (q *ValkeyQueue) Close() error {
	q.client.Close()
	slog.Info("Valkey queue closed")
	return nil
}
