// Package worker retries durable result writes that failed during the
// completion transition. The in-memory session is already authoritative; the
// worker only catches the database up.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/civiq-care/backend/internal/results"
	"github.com/civiq-care/backend/internal/survey"
	"github.com/civiq-care/backend/pkg/queue"
)

// ResultProcessor processes result persist jobs against the PostgreSQL
// results repository.
type ResultProcessor struct {
	repo   *results.Repository
	queue  *queue.Queue
	logger *zap.Logger
}

// NewResultProcessor creates a result persist processor.
func NewResultProcessor(repo *results.Repository, q *queue.Queue, logger *zap.Logger) *ResultProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResultProcessor{repo: repo, queue: q, logger: logger}
}

// Process executes one result persist job. The repository upserts, so
// replaying an already stored record is harmless.
func (p *ResultProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeResultPersist {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var rec survey.Record
	if err := json.Unmarshal(job.Payload, &rec); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	if err := p.repo.Store(ctx, rec); err != nil {
		return fmt.Errorf("store result: %w", err)
	}
	p.logger.Info("result persisted by worker", zap.String("user_id", rec.UserID), zap.Int("attempt", job.Attempt))
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *ResultProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("result worker stopping")
			return
		default:
		}

		job, _, err := p.queue.Dequeue(ctx)
		if err != nil {
			p.logger.Warn("dequeue error", zap.Error(err))
			time.Sleep(queue.RetryBackoff)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			if reErr := p.queue.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			time.Sleep(queue.RetryBackoff)
			continue
		}
	}
}
