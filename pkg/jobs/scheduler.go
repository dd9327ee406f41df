package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/HenryBurlingameIV/OrderManagementSystem-sub000/pkg/mylogger"
)

type HandlerFunc func(ctx context.Context, payload json.RawMessage) error

// Scheduler polls the jobs table and dispatches due jobs to registered
// handlers. A failing job is rescheduled with exponential backoff until the
// attempts cap, then marked dead with its last error kept for operators.
type Scheduler struct {
	pool         *pgxpool.Pool
	repo         Repository
	logger       *zap.Logger
	handlers     map[string]HandlerFunc
	pollInterval time.Duration
	batchSize    int
	maxAttempts  int
	baseDelay    time.Duration
	maxDelay     time.Duration
	tracer       trace.Tracer
}

func NewScheduler(
	pool *pgxpool.Pool,
	repo Repository,
	logger *zap.Logger,
	pollInterval time.Duration,
	maxAttempts int,
) *Scheduler {
	return &Scheduler{
		pool:         pool,
		repo:         repo,
		logger:       logger,
		handlers:     make(map[string]HandlerFunc),
		pollInterval: pollInterval,
		batchSize:    10,
		maxAttempts:  maxAttempts,
		baseDelay:    time.Second,
		maxDelay:     time.Minute,
		tracer:       otel.Tracer("jobs-scheduler"),
	}
}

func (s *Scheduler) Register(kind string, handler HandlerFunc) {
	s.handlers[kind] = handler
}

// Schedule enqueues a job inside the caller's transaction, so scheduling is
// atomic with whatever state change triggered it.
func (s *Scheduler) Schedule(ctx context.Context, tx pgx.Tx, kind string, payload any, delay time.Duration) error {
	job, err := NewJob(kind, payload, delay)
	if err != nil {
		return fmt.Errorf("failed to build job: %w", err)
	}

	return s.repo.Enqueue(ctx, tx, job)
}

func (s *Scheduler) Start(ctx context.Context) {
	mylogger.Info(ctx, s.logger, "Starting job scheduler")

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			mylogger.Info(ctx, s.logger, "Job scheduler stopping")
			return
		case <-ticker.C:
			if err := s.processBatch(ctx); err != nil {
				mylogger.Error(ctx, s.logger, "Error processing job batch", zap.Error(err))
			}
		}
	}
}

func (s *Scheduler) processBatch(ctx context.Context) error {
	ctx, span := s.tracer.Start(ctx, "Scheduler.processBatch")
	defer span.End()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("error beginning transaction: %w", err)
	}
	defer func() {
		cleanupCtx := context.WithoutCancel(ctx)

		if err := tx.Rollback(cleanupCtx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			mylogger.Error(cleanupCtx, s.logger, "Scheduler failed to rollback transaction", zap.Error(err))
		}
	}()

	due, err := s.repo.ClaimDue(ctx, tx, s.batchSize)
	if err != nil {
		return err
	}

	if len(due) == 0 {
		return nil
	}

	for _, job := range due {
		s.runJob(ctx, tx, job)
	}

	return tx.Commit(ctx)
}

func (s *Scheduler) runJob(ctx context.Context, tx pgx.Tx, job *Job) {
	ctx, span := s.tracer.Start(ctx, "Scheduler.runJob")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("job_id", job.ID),
		attribute.String("kind", job.Kind),
		attribute.Int("attempt", job.Attempts+1),
	)

	handler, ok := s.handlers[job.Kind]
	if !ok {
		// No handler is not transient, retrying cannot help.
		s.bury(ctx, tx, job, fmt.Errorf("no handler registered for kind %q", job.Kind))
		return
	}

	if err := handler(ctx, job.Payload); err != nil {
		span.RecordError(err)

		if job.Attempts+1 >= s.maxAttempts {
			s.bury(ctx, tx, job, err)
			return
		}

		runAt := time.Now().UTC().Add(s.retryDelay(job.Attempts))
		if dbErr := s.repo.Reschedule(ctx, tx, job.ID, runAt, err.Error()); dbErr != nil {
			mylogger.Error(
				ctx,
				s.logger,
				"Failed to reschedule job",
				zap.Int64("job_id", job.ID),
				zap.Error(dbErr),
			)
		}

		mylogger.Warn(
			ctx,
			s.logger,
			"Job failed, rescheduled",
			zap.Int64("job_id", job.ID),
			zap.String("kind", job.Kind),
			zap.Int("attempt", job.Attempts+1),
			zap.Time("run_at", runAt),
			zap.Error(err),
		)
		return
	}

	if dbErr := s.repo.MarkCompleted(ctx, tx, job.ID); dbErr != nil {
		mylogger.Error(
			ctx,
			s.logger,
			"Failed to mark job completed",
			zap.Int64("job_id", job.ID),
			zap.Error(dbErr),
		)
	}
}

func (s *Scheduler) bury(ctx context.Context, tx pgx.Tx, job *Job, cause error) {
	mylogger.Error(
		ctx,
		s.logger,
		"Job moved to dead letter",
		zap.Int64("job_id", job.ID),
		zap.String("kind", job.Kind),
		zap.Int("attempts", job.Attempts+1),
		zap.Error(cause),
	)

	if dbErr := s.repo.MarkDead(ctx, tx, job.ID, cause.Error()); dbErr != nil {
		mylogger.Error(
			ctx,
			s.logger,
			"Failed to mark job dead",
			zap.Int64("job_id", job.ID),
			zap.Error(dbErr),
		)
	}
}

// retryDelay doubles the base delay per attempt, capped at maxDelay.
func (s *Scheduler) retryDelay(attempts int) time.Duration {
	delay := s.baseDelay
	for i := 0; i < attempts; i++ {
		delay *= 2
		if delay >= s.maxDelay {
			return s.maxDelay
		}
	}
	return delay
}
