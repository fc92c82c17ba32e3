// Package worker dispatches queued extraction jobs to the extractor,
// capping global concurrency and enforcing single-flight per template.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/deploykit/templatehub/internal/archive"
	"github.com/deploykit/templatehub/internal/extract"
	"github.com/deploykit/templatehub/internal/models"
	"github.com/deploykit/templatehub/internal/queue"
	"github.com/deploykit/templatehub/internal/status"
	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
	"gorm.io/gorm"
)

// Worker processes extraction jobs from the queue
type Worker struct {
	db        *gorm.DB
	queue     queue.Queue
	store     status.Store
	archives  *archive.Store
	extractor *extract.Extractor
	logger    *slog.Logger
	sem       *semaphore.Weighted
	wg        sync.WaitGroup

	mu       sync.Mutex
	inFlight map[uuid.UUID]struct{}
}

// New creates a new worker instance
func New(db *gorm.DB, q queue.Queue, store status.Store, archives *archive.Store, extractor *extract.Extractor, maxConcurrent int) *Worker {
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}
	return &Worker{
		db:        db,
		queue:     q,
		store:     store,
		archives:  archives,
		extractor: extractor,
		logger:    slog.Default(),
		sem:       semaphore.NewWeighted(int64(maxConcurrent)),
		inFlight:  make(map[uuid.UUID]struct{}),
	}
}

// Start begins processing jobs from the queue and blocks until the context
// is canceled, then waits for in-flight extractions to finish.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("Extraction worker started")

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Worker shutting down, waiting for extractions to complete")
			w.wg.Wait()
			w.logger.Info("All extractions completed, worker stopped")
			return ctx.Err()
		default:
			job, err := w.queue.Dequeue(ctx)
			if err != nil {
				// DeadlineExceeded means the queue was empty; anything
				// else is a real transport error.
				if err == context.DeadlineExceeded {
					continue
				}
				if ctx.Err() != nil {
					continue
				}
				w.logger.Error("Failed to dequeue job", "error", err)
				time.Sleep(time.Second)
				continue
			}
			if job == nil {
				time.Sleep(100 * time.Millisecond)
				continue
			}

			if err := w.sem.Acquire(ctx, 1); err != nil {
				continue
			}

			w.wg.Add(1)
			go func(j *models.ExtractionJob) {
				defer w.wg.Done()
				defer w.sem.Release(1)

				w.processJob(ctx, j)
			}(job)
		}
	}
}

// tryLock marks a template as having an extraction in flight. Only one
// extraction may run per template at a time.
func (w *Worker) tryLock(id uuid.UUID) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, busy := w.inFlight[id]; busy {
		return false
	}
	w.inFlight[id] = struct{}{}
	return true
}

func (w *Worker) unlock(id uuid.UUID) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.inFlight, id)
}

func (w *Worker) processJob(ctx context.Context, job *models.ExtractionJob) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("Panic recovered in processJob", "job_id", job.ID, "panic", r)
			w.finishJob(job, fmt.Errorf("job panicked: %v", r))
		}
	}()

	if !w.tryLock(job.TemplateID) {
		w.logger.Warn("Extraction already in flight for template, rejecting job",
			"job_id", job.ID, "template_id", job.TemplateID)
		w.finishJob(job, fmt.Errorf("extraction already in flight for template %s", job.TemplateID))
		return
	}
	defer w.unlock(job.TemplateID)

	w.logger.Info("Processing extraction job", "job_id", job.ID, "template_id", job.TemplateID)

	now := time.Now()
	job.Status = models.JobStatusRunning
	job.StartedAt = &now
	w.db.Save(job)

	w.finishJob(job, w.runExtraction(ctx, job))
}

func (w *Worker) runExtraction(ctx context.Context, job *models.ExtractionJob) error {
	tpl, err := w.store.Get(ctx, job.TemplateID)
	if err != nil {
		return fmt.Errorf("failed to load template: %w", err)
	}

	archivePath, err := w.archives.Path(job.ArchiveName)
	if err != nil {
		return fmt.Errorf("invalid archive reference: %w", err)
	}

	if _, err := w.store.SetStatus(ctx, tpl.ID, models.ExtractionExtracting, ""); err != nil {
		return fmt.Errorf("failed to mark template extracting: %w", err)
	}

	res, err := w.extractor.Run(ctx, extract.Request{
		TemplateID:  tpl.ID,
		OwnerID:     tpl.OwnerID,
		Bucket:      tpl.Bucket,
		Name:        tpl.Name,
		Version:     job.Version,
		ArchivePath: archivePath,
	})
	if err != nil {
		return err
	}

	w.logger.Info("Extraction finished",
		"job_id", job.ID, "template_id", tpl.ID,
		"path", res.FinalPath, "entries", res.EntryCount)
	return nil
}

func (w *Worker) finishJob(job *models.ExtractionJob, err error) {
	now := time.Now()
	job.CompletedAt = &now

	if err != nil {
		w.logger.Error("Extraction job failed", "job_id", job.ID, "error", err)
		job.Status = models.JobStatusFailed
		job.Error = err.Error()
	} else {
		w.logger.Info("Extraction job completed", "job_id", job.ID)
		job.Status = models.JobStatusCompleted
	}

	w.db.Save(job)
}
