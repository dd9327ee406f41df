package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type Repository interface {
	Enqueue(ctx context.Context, tx pgx.Tx, job *Job) error
	ClaimDue(ctx context.Context, tx pgx.Tx, batchSize int) ([]*Job, error)
	MarkCompleted(ctx context.Context, tx pgx.Tx, jobID int64) error
	Reschedule(ctx context.Context, tx pgx.Tx, jobID int64, runAt time.Time, errMsg string) error
	MarkDead(ctx context.Context, tx pgx.Tx, jobID int64, errMsg string) error
}

type jobRepo struct {
	pool   *pgxpool.Pool
	tracer trace.Tracer
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &jobRepo{
		pool:   pool,
		tracer: otel.Tracer("jobs_repository"),
	}
}

func (r *jobRepo) Enqueue(ctx context.Context, tx pgx.Tx, job *Job) error {
	ctx, span := r.tracer.Start(ctx, "JobRepository.Enqueue")
	defer span.End()

	span.SetAttributes(attribute.String("kind", job.Kind))

	query := `
		INSERT INTO jobs (kind, payload, run_at, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`

	err := tx.QueryRow(ctx, query, job.Kind, job.Payload, job.RunAt, string(job.Status)).
		Scan(&job.ID)
	if err != nil {
		span.RecordError(err)

		return fmt.Errorf("failed to enqueue job: %w", err)
	}

	return nil
}

func (r *jobRepo) ClaimDue(ctx context.Context, tx pgx.Tx, batchSize int) ([]*Job, error) {
	ctx, span := r.tracer.Start(ctx, "JobRepository.ClaimDue")
	defer span.End()

	query := `
		SELECT id, kind, payload, run_at, attempts, status, created_at
		FROM jobs
		WHERE status = 'queued' AND run_at <= NOW()
		ORDER BY run_at ASC
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`

	rows, err := tx.Query(ctx, query, batchSize)
	if err != nil {
		span.RecordError(err)

		return nil, fmt.Errorf("failed to claim due jobs: %w", err)
	}
	defer rows.Close()

	var due []*Job
	for rows.Next() {
		var j Job
		if err := rows.Scan(
			&j.ID,
			&j.Kind,
			&j.Payload,
			&j.RunAt,
			&j.Attempts,
			&j.Status,
			&j.CreatedAt,
		); err != nil {
			span.RecordError(err)

			return nil, fmt.Errorf("error scanning job: %w", err)
		}

		due = append(due, &j)
	}

	span.SetAttributes(attribute.Int("claimed", len(due)))

	return due, rows.Err()
}

func (r *jobRepo) MarkCompleted(ctx context.Context, tx pgx.Tx, jobID int64) error {
	ctx, span := r.tracer.Start(ctx, "JobRepository.MarkCompleted")
	defer span.End()

	span.SetAttributes(attribute.Int64("job_id", jobID))

	query := `
		UPDATE jobs
		SET status = 'completed', last_error = NULL
		WHERE id = $1
	`

	_, err := tx.Exec(ctx, query, jobID)
	if err != nil {
		span.RecordError(err)
	}

	return err
}

func (r *jobRepo) Reschedule(ctx context.Context, tx pgx.Tx, jobID int64, runAt time.Time, errMsg string) error {
	ctx, span := r.tracer.Start(ctx, "JobRepository.Reschedule")
	defer span.End()

	span.SetAttributes(attribute.Int64("job_id", jobID))

	query := `
		UPDATE jobs
		SET run_at = $1, attempts = attempts + 1, last_error = $2
		WHERE id = $3
	`

	_, err := tx.Exec(ctx, query, runAt, errMsg, jobID)
	if err != nil {
		span.RecordError(err)
	}

	return err
}

func (r *jobRepo) MarkDead(ctx context.Context, tx pgx.Tx, jobID int64, errMsg string) error {
	ctx, span := r.tracer.Start(ctx, "JobRepository.MarkDead")
	defer span.End()

	span.SetAttributes(attribute.Int64("job_id", jobID))

	query := `
		UPDATE jobs
		SET status = 'dead', attempts = attempts + 1, last_error = $1
		WHERE id = $2
	`

	_, err := tx.Exec(ctx, query, errMsg, jobID)
	if err != nil {
		span.RecordError(err)
	}

	return err
}
