package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/HenryBurlingameIV/OrderManagementSystem-sub000/internal/notification/domain"
)

var ErrTemplateNotFound = errors.New("notification template not found")

type TemplateRepository interface {
	GetByStatusCode(ctx context.Context, statusCode int) (*domain.Template, error)
}

type templateRepo struct {
	pool   *pgxpool.Pool
	tracer trace.Tracer
}

func NewTemplateRepository(pool *pgxpool.Pool) TemplateRepository {
	return &templateRepo{
		pool:   pool,
		tracer: otel.Tracer("template_repository"),
	}
}

func (r *templateRepo) GetByStatusCode(ctx context.Context, statusCode int) (*domain.Template, error) {
	ctx, span := r.tracer.Start(ctx, "TemplateRepository.GetByStatusCode")
	defer span.End()

	span.SetAttributes(attribute.Int("status_code", statusCode))

	query := `
		SELECT id, status_code, subject, body, created_at
		FROM notification_templates
		WHERE status_code = $1
	`

	var tpl domain.Template
	err := r.pool.QueryRow(ctx, query, statusCode).Scan(
		&tpl.ID,
		&tpl.StatusCode,
		&tpl.Subject,
		&tpl.Body,
		&tpl.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTemplateNotFound
		}

		span.RecordError(err)

		return nil, fmt.Errorf("failed to query notification template: %w", err)
	}

	return &tpl, nil
}
